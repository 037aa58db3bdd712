// Package businessflow contains the core business logic and use cases for oauth workflows
package businessflow

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/publora/publora/app/dto"
	"github.com/publora/publora/app/services"
	"github.com/publora/publora/config"
	"github.com/publora/publora/models"
	"github.com/publora/publora/repository"
	"github.com/publora/publora/utils"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const (
	oauthFlowKeyPrefix    = "oauth:flow:"
	oauthRefreshKeyPrefix = "oauth:refresh:"
	refreshLockTTL        = 30 * time.Second
)

// CallbackResult carries the connected account plus the browser redirect target
type CallbackResult struct {
	Response    *dto.OAuthCallbackResponse
	RedirectURI string
}

// oauthFlowRecord is the server-side state stored per nonce for the duration
// of one authorization round-trip. Consumed exactly once.
type oauthFlowRecord struct {
	OrganizationID uint   `json:"organization_id"`
	PKCEVerifier   string `json:"pkce_verifier"`
}

// OAuthFlow handles the provider connect lifecycle
type OAuthFlow interface {
	Start(ctx context.Context, req *dto.StartOAuthRequest, metadata *ClientMetadata) (*dto.StartOAuthResponse, error)
	Callback(ctx context.Context, req *dto.OAuthCallbackRequest, cookieState string, metadata *ClientMetadata) (*CallbackResult, error)
	DevSaveToken(ctx context.Context, req *dto.DevSaveTokenRequest, metadata *ClientMetadata) (*dto.OAuthCallbackResponse, error)
	ListAccounts(ctx context.Context, organizationID uint) (*dto.ListSocialAccountsResponse, error)
	DisconnectAccount(ctx context.Context, organizationID uint, req *dto.DisconnectAccountRequest) (*dto.DisconnectAccountResponse, error)
	TokenStatus(ctx context.Context, organizationID uint, platformStr string) (*dto.TokenStatusResponse, error)
	ForceRefresh(ctx context.Context, organizationID uint, platformStr string) (*dto.RefreshTokenResponse, error)
	// AccessTokenFor decrypts the current access token for publishing,
	// refreshing it first when expired. Used by the publish worker.
	AccessTokenFor(ctx context.Context, organizationID uint, platform models.Platform) (string, error)
}

// OAuthFlowImpl implements the oauth business flow
type OAuthFlowImpl struct {
	accountRepo repository.SocialAccountRepository
	tokenRepo   repository.TokenRepository
	orgRepo     repository.OrganizationRepository
	providers   *services.ProviderRegistry
	signer      services.StateSigner
	vault       services.CredentialVault
	oauthConfig config.OAuthConfig
	rc          *redis.Client
	db          *gorm.DB
}

// NewOAuthFlow creates a new oauth flow instance
func NewOAuthFlow(
	accountRepo repository.SocialAccountRepository,
	tokenRepo repository.TokenRepository,
	orgRepo repository.OrganizationRepository,
	providers *services.ProviderRegistry,
	signer services.StateSigner,
	vault services.CredentialVault,
	oauthConfig config.OAuthConfig,
	rc *redis.Client,
	db *gorm.DB,
) OAuthFlow {
	return &OAuthFlowImpl{
		accountRepo: accountRepo,
		tokenRepo:   tokenRepo,
		orgRepo:     orgRepo,
		providers:   providers,
		signer:      signer,
		vault:       vault,
		oauthConfig: oauthConfig,
		rc:          rc,
		db:          db,
	}
}

// Start validates the platform and redirect target, mints a signed state and
// stashes the PKCE verifier server-side keyed by the nonce.
func (s *OAuthFlowImpl) Start(ctx context.Context, req *dto.StartOAuthRequest, metadata *ClientMetadata) (*dto.StartOAuthResponse, error) {
	platform := models.Platform(req.Platform)
	if !platform.Valid() {
		return nil, NewBusinessError("OAUTH_INVALID_PROVIDER", "Unknown provider", ErrInvalidPlatform)
	}
	provider, err := s.providers.Get(platform)
	if err != nil {
		return nil, NewBusinessError("OAUTH_INVALID_PROVIDER", "Unknown provider", err)
	}
	if !s.redirectAllowed(req.RedirectURI) {
		return nil, NewBusinessError("OAUTH_REDIRECT_DENIED", "Redirect target is not allowed", ErrRedirectNotAllowed)
	}

	nonce := uuid.New().String()
	verifier, challenge, err := generatePKCE()
	if err != nil {
		return nil, NewBusinessError("OAUTH_START_FAILED", "Failed to start oauth flow", err)
	}

	pkceHash := sha256Hex(verifier)
	state, err := s.signer.Sign(platform, nonce, pkceHash, req.RedirectURI)
	if err != nil {
		return nil, NewBusinessError("OAUTH_START_FAILED", "Failed to sign state", err)
	}

	if s.rc == nil {
		return nil, NewBusinessError("OAUTH_START_FAILED", "Failed to start oauth flow", ErrCacheNotAvailable)
	}
	record, err := json.Marshal(oauthFlowRecord{
		OrganizationID: req.OrganizationID,
		PKCEVerifier:   verifier,
	})
	if err != nil {
		return nil, NewBusinessError("OAUTH_START_FAILED", "Failed to start oauth flow", err)
	}
	if err := s.rc.Set(ctx, oauthFlowKeyPrefix+nonce, record, utils.OAuthStateTTL).Err(); err != nil {
		return nil, NewBusinessError("OAUTH_START_FAILED", "Failed to persist flow state", err)
	}

	return &dto.StartOAuthResponse{
		AuthorizationURL: provider.AuthorizeURL(state, req.RedirectURI, challenge),
		State:            state,
		ExpiresIn:        utils.OAuthStateTTLSeconds,
	}, nil
}

// Callback verifies signature, TTL and browser binding before any exchange;
// the nonce record is consumed atomically so a replayed state fails closed.
func (s *OAuthFlowImpl) Callback(ctx context.Context, req *dto.OAuthCallbackRequest, cookieState string, metadata *ClientMetadata) (*CallbackResult, error) {
	claims, err := s.signer.Verify(req.State)
	if err != nil {
		return nil, NewBusinessError("OAUTH_STATE_INVALID", "State verification failed", err)
	}
	if models.Platform(req.Platform) != claims.Platform {
		return nil, NewBusinessError("OAUTH_STATE_INVALID", "State verification failed", services.ErrStateInvalid)
	}
	if cookieState == "" || cookieState != req.State {
		return nil, NewBusinessError("OAUTH_STATE_MISMATCH", "State does not match browser cookie", ErrStateMismatch)
	}

	if s.rc == nil {
		return nil, NewBusinessError("OAUTH_CALLBACK_FAILED", "Callback processing failed", ErrCacheNotAvailable)
	}
	raw, err := s.rc.GetDel(ctx, oauthFlowKeyPrefix+claims.Nonce).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, NewBusinessError("OAUTH_STATE_REPLAYED", "State already used or expired", ErrStateReplayed)
		}
		return nil, NewBusinessError("OAUTH_CALLBACK_FAILED", "Callback processing failed", err)
	}
	var record oauthFlowRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return nil, NewBusinessError("OAUTH_CALLBACK_FAILED", "Callback processing failed", err)
	}
	if claims.PKCEHash != "" && sha256Hex(record.PKCEVerifier) != claims.PKCEHash {
		return nil, NewBusinessError("OAUTH_STATE_INVALID", "State verification failed", services.ErrStateInvalid)
	}

	// State is verified from here on, so claims.RedirectURI is a trusted
	// allowlisted target; failures below carry it so the handler can send
	// the browser back with an error status instead of a bare JSON body.
	failed := &CallbackResult{RedirectURI: claims.RedirectURI}

	provider, err := s.providers.Get(claims.Platform)
	if err != nil {
		return failed, NewBusinessError("OAUTH_INVALID_PROVIDER", "Unknown provider", err)
	}

	tokens, err := provider.ExchangeCode(ctx, req.Code, claims.RedirectURI, record.PKCEVerifier)
	if err != nil {
		return failed, NewBusinessError("OAUTH_EXCHANGE_FAILED", "Code exchange failed", err)
	}

	profile, err := provider.FetchProfile(ctx, tokens.AccessToken)
	if err != nil {
		return failed, NewBusinessError("OAUTH_PROFILE_FAILED", "Profile fetch failed", err)
	}

	account, token, err := s.upsertAccountWithTokens(ctx, record.OrganizationID, claims.Platform, profile, tokens)
	if err != nil {
		return failed, NewBusinessError("OAUTH_ACCOUNT_SAVE_FAILED", "Failed to persist account", err)
	}

	return &CallbackResult{
		Response: &dto.OAuthCallbackResponse{
			Message: "Account connected successfully",
			Account: toSocialAccountDTO(account, token),
		},
		RedirectURI: claims.RedirectURI,
	}, nil
}

// DevSaveToken persists a dummy token for local development. The publisher
// recognizes the prefix and dry-runs instead of calling the platform.
func (s *OAuthFlowImpl) DevSaveToken(ctx context.Context, req *dto.DevSaveTokenRequest, metadata *ClientMetadata) (*dto.OAuthCallbackResponse, error) {
	platform := models.Platform(req.Platform)
	if !platform.Valid() {
		return nil, NewBusinessError("OAUTH_INVALID_PROVIDER", "Unknown provider", ErrInvalidPlatform)
	}
	if !strings.HasPrefix(req.AccessToken, utils.DummyTokenPrefix) {
		return nil, NewBusinessError("OAUTH_DEV_TOKEN_INVALID", "Only dummy tokens may be dev-saved", ErrInvalidPlatform)
	}

	tokens := &services.OAuthTokens{
		AccessToken: req.AccessToken,
	}
	if req.RefreshToken != nil {
		tokens.RefreshToken = *req.RefreshToken
	}
	profile := &services.OAuthProfile{
		ExternalID:  req.ExternalID,
		DisplayName: req.DisplayName,
	}

	account, token, err := s.upsertAccountWithTokens(ctx, req.OrganizationID, platform, profile, tokens)
	if err != nil {
		return nil, NewBusinessError("OAUTH_ACCOUNT_SAVE_FAILED", "Failed to persist account", err)
	}

	return &dto.OAuthCallbackResponse{
		Message: "Development token saved",
		Account: toSocialAccountDTO(account, token),
	}, nil
}

// ListAccounts returns the organization's connected accounts
func (s *OAuthFlowImpl) ListAccounts(ctx context.Context, organizationID uint) (*dto.ListSocialAccountsResponse, error) {
	accounts, err := s.accountRepo.ByFilter(ctx, models.SocialAccountFilter{OrganizationID: &organizationID}, "id ASC", 0, 0)
	if err != nil {
		return nil, NewBusinessError("ACCOUNT_LIST_FAILED", "Failed to list accounts", err)
	}

	resp := &dto.ListSocialAccountsResponse{}
	for _, account := range accounts {
		token, err := s.tokenRepo.CurrentByAccount(ctx, account.ID)
		if err != nil {
			return nil, NewBusinessError("TOKEN_LOOKUP_FAILED", "Failed to lookup token", err)
		}
		resp.Accounts = append(resp.Accounts, toSocialAccountDTO(account, token))
	}
	return resp, nil
}

// DisconnectAccount marks the account revoked; stored ciphertext stays for audit
func (s *OAuthFlowImpl) DisconnectAccount(ctx context.Context, organizationID uint, req *dto.DisconnectAccountRequest) (*dto.DisconnectAccountResponse, error) {
	account, err := s.accountRepo.ByUUID(ctx, req.AccountUUID)
	if err != nil {
		return nil, NewBusinessError("ACCOUNT_LOOKUP_FAILED", "Failed to lookup account", err)
	}
	if account == nil || account.OrganizationID != organizationID {
		return nil, NewBusinessError("ACCOUNT_NOT_FOUND", "Account not found", ErrAccountNotFound)
	}

	if err := s.accountRepo.UpdateStatus(ctx, account.ID, models.SocialAccountStatusRevoked); err != nil {
		return nil, NewBusinessError("ACCOUNT_REVOKE_FAILED", "Failed to revoke account", err)
	}

	return &dto.DisconnectAccountResponse{Message: "Account disconnected successfully"}, nil
}

// TokenStatus reports the current token state for the platform's account
func (s *OAuthFlowImpl) TokenStatus(ctx context.Context, organizationID uint, platformStr string) (*dto.TokenStatusResponse, error) {
	account, err := s.activeAccount(ctx, organizationID, platformStr)
	if err != nil {
		return nil, err
	}

	token, err := s.tokenRepo.CurrentByAccount(ctx, account.ID)
	if err != nil {
		return nil, NewBusinessError("TOKEN_LOOKUP_FAILED", "Failed to lookup token", err)
	}

	resp := &dto.TokenStatusResponse{Platform: account.Platform.String()}
	if token == nil {
		resp.Status = "missing"
		return resp, nil
	}

	resp.ExpiresAt = token.ExpiresAt
	resp.Scopes = token.Scopes
	if token.IsExpiredAt(utils.UTCNow()) {
		resp.Status = "expired"
	} else {
		resp.Status = "valid"
	}

	access, err := s.vault.Open(token.AccessTokenEnc)
	if err == nil && strings.HasPrefix(access, utils.DummyTokenPrefix) {
		resp.Dummy = true
	}
	return resp, nil
}

// ForceRefresh runs the refresh grant now regardless of expiry
func (s *OAuthFlowImpl) ForceRefresh(ctx context.Context, organizationID uint, platformStr string) (*dto.RefreshTokenResponse, error) {
	account, err := s.activeAccount(ctx, organizationID, platformStr)
	if err != nil {
		return nil, err
	}

	token, err := s.refreshAccountToken(ctx, account)
	if err != nil {
		return nil, err
	}

	return &dto.RefreshTokenResponse{
		Message:   "Token refreshed successfully",
		ExpiresAt: token.ExpiresAt,
	}, nil
}

// AccessTokenFor returns a usable plaintext access token for publishing,
// refreshing an expired one behind a per-account lock.
func (s *OAuthFlowImpl) AccessTokenFor(ctx context.Context, organizationID uint, platform models.Platform) (string, error) {
	account, err := s.activeAccount(ctx, organizationID, platform.String())
	if err != nil {
		return "", err
	}

	token, err := s.tokenRepo.CurrentByAccount(ctx, account.ID)
	if err != nil {
		return "", NewBusinessError("TOKEN_LOOKUP_FAILED", "Failed to lookup token", err)
	}
	if token == nil {
		return "", NewBusinessError("TOKEN_MISSING", "Account has no current token", ErrNoCurrentToken)
	}

	if token.IsExpiredAt(utils.UTCNow()) {
		token, err = s.refreshAccountToken(ctx, account)
		if err != nil {
			return "", err
		}
	}

	access, err := s.vault.Open(token.AccessTokenEnc)
	if err != nil {
		return "", NewBusinessError("TOKEN_DECRYPT_FAILED", "Failed to decrypt token", err)
	}
	return access, nil
}

// refreshAccountToken serializes refreshes per account with a redis lock and
// makes the refreshed token current.
func (s *OAuthFlowImpl) refreshAccountToken(ctx context.Context, account *models.SocialAccount) (*models.Token, error) {
	current, err := s.tokenRepo.CurrentByAccount(ctx, account.ID)
	if err != nil {
		return nil, NewBusinessError("TOKEN_LOOKUP_FAILED", "Failed to lookup token", err)
	}
	if current == nil {
		return nil, NewBusinessError("TOKEN_MISSING", "Account has no current token", ErrNoCurrentToken)
	}
	if current.RefreshTokenEnc == nil {
		return nil, NewBusinessError("TOKEN_REFRESH_UNSUPPORTED", "Account has no refresh token", ErrRefreshNotSupported)
	}

	if s.rc == nil {
		return nil, NewBusinessError("TOKEN_REFRESH_FAILED", "Token refresh failed", ErrCacheNotAvailable)
	}
	lockKey := fmt.Sprintf("%s%d", oauthRefreshKeyPrefix, account.ID)
	acquired, err := s.rc.SetNX(ctx, lockKey, "1", refreshLockTTL).Result()
	if err != nil {
		return nil, NewBusinessError("TOKEN_REFRESH_FAILED", "Token refresh failed", err)
	}
	if !acquired {
		return nil, NewBusinessError("TOKEN_REFRESH_IN_PROGRESS", "Refresh already in progress", ErrRefreshInProgress)
	}
	defer func() { _ = s.rc.Del(context.WithoutCancel(ctx), lockKey).Err() }()

	refreshPlain, err := s.vault.Open(*current.RefreshTokenEnc)
	if err != nil {
		return nil, NewBusinessError("TOKEN_DECRYPT_FAILED", "Failed to decrypt refresh token", err)
	}

	// Dummy accounts never talk to a provider; extend the expiry locally
	if strings.HasPrefix(refreshPlain, utils.DummyTokenPrefix) {
		expiry := utils.UTCNow().Add(time.Hour)
		current.ExpiresAt = &expiry
		if err := s.tokenRepo.Save(ctx, current); err != nil {
			return nil, NewBusinessError("TOKEN_REFRESH_FAILED", "Token refresh failed", err)
		}
		return current, nil
	}

	provider, err := s.providers.Get(account.Platform)
	if err != nil {
		return nil, NewBusinessError("OAUTH_INVALID_PROVIDER", "Unknown provider", err)
	}

	tokens, err := provider.Refresh(ctx, refreshPlain)
	if err != nil {
		return nil, NewBusinessError("TOKEN_REFRESH_FAILED", "Token refresh failed", err)
	}

	token, err := s.sealTokens(account.ID, tokens)
	if err != nil {
		return nil, NewBusinessError("TOKEN_SEAL_FAILED", "Failed to seal tokens", err)
	}
	if err := s.tokenRepo.ReplaceCurrent(ctx, token); err != nil {
		return nil, NewBusinessError("TOKEN_REFRESH_FAILED", "Token refresh failed", err)
	}
	return token, nil
}

// upsertAccountWithTokens creates or reactivates the (org, platform, external)
// account and installs the sealed tokens as current.
func (s *OAuthFlowImpl) upsertAccountWithTokens(ctx context.Context, organizationID uint, platform models.Platform, profile *services.OAuthProfile, tokens *services.OAuthTokens) (*models.SocialAccount, *models.Token, error) {
	org, err := s.orgRepo.ByID(ctx, organizationID)
	if err != nil {
		return nil, nil, err
	}
	if org == nil {
		return nil, nil, ErrOrganizationNotFound
	}
	if !utils.IsTrue(org.IsActive) {
		return nil, nil, ErrOrganizationInactive
	}

	var account *models.SocialAccount
	var token *models.Token
	err = repository.WithTransaction(ctx, s.db, func(txCtx context.Context) error {
		account, err = s.accountRepo.ByOrgPlatformExternalID(txCtx, organizationID, platform, profile.ExternalID)
		if err != nil {
			return err
		}
		if account == nil {
			account = &models.SocialAccount{
				UUID:           uuid.New(),
				OrganizationID: organizationID,
				Platform:       platform,
				ExternalID:     profile.ExternalID,
				DisplayName:    profile.DisplayName,
				Username:       profile.Username,
				Status:         models.SocialAccountStatusActive,
				CreatedAt:      utils.UTCNow(),
			}
			if err := s.accountRepo.Save(txCtx, account); err != nil {
				return err
			}
		} else if account.Status != models.SocialAccountStatusActive {
			if err := s.accountRepo.UpdateStatus(txCtx, account.ID, models.SocialAccountStatusActive); err != nil {
				return err
			}
			account.Status = models.SocialAccountStatusActive
		}

		token, err = s.sealTokens(account.ID, tokens)
		if err != nil {
			return err
		}
		return s.tokenRepo.ReplaceCurrent(txCtx, token)
	})
	if err != nil {
		return nil, nil, err
	}
	return account, token, nil
}

// sealTokens encrypts provider tokens into a Token row
func (s *OAuthFlowImpl) sealTokens(accountID uint, tokens *services.OAuthTokens) (*models.Token, error) {
	accessEnc, err := s.vault.Seal(tokens.AccessToken)
	if err != nil {
		return nil, err
	}

	token := &models.Token{
		SocialAccountID: accountID,
		AccessTokenEnc:  accessEnc,
		Scopes:          pq.StringArray(tokens.Scopes),
		IsCurrent:       true,
		CreatedAt:       utils.UTCNow(),
	}
	if tokens.RefreshToken != "" {
		refreshEnc, err := s.vault.Seal(tokens.RefreshToken)
		if err != nil {
			return nil, err
		}
		token.RefreshTokenEnc = &refreshEnc
	}
	if tokens.ExpiresIn > 0 {
		expiry := utils.UTCNow().Add(time.Duration(tokens.ExpiresIn) * time.Second)
		token.ExpiresAt = &expiry
	}
	return token, nil
}

// activeAccount resolves the most recently connected active account for the
// organization on a platform
func (s *OAuthFlowImpl) activeAccount(ctx context.Context, organizationID uint, platformStr string) (*models.SocialAccount, error) {
	platform := models.Platform(platformStr)
	if !platform.Valid() {
		return nil, NewBusinessError("OAUTH_INVALID_PROVIDER", "Unknown provider", ErrInvalidPlatform)
	}

	accounts, err := s.accountRepo.ListByOrgAndPlatform(ctx, organizationID, platform)
	if err != nil {
		return nil, NewBusinessError("ACCOUNT_LOOKUP_FAILED", "Failed to lookup account", err)
	}
	for i := len(accounts) - 1; i >= 0; i-- {
		if accounts[i].Status == models.SocialAccountStatusActive {
			return accounts[i], nil
		}
	}
	return nil, NewBusinessError("ACCOUNT_NOT_FOUND", "No active account for platform", ErrAccountNotFound)
}

func (s *OAuthFlowImpl) redirectAllowed(redirectURI string) bool {
	return slices.ContainsFunc(s.oauthConfig.RedirectAllowlist, func(allowed string) bool {
		return allowed != "" && strings.HasPrefix(redirectURI, allowed)
	})
}

func toSocialAccountDTO(account *models.SocialAccount, token *models.Token) dto.SocialAccountDTO {
	d := dto.SocialAccountDTO{
		UUID:        account.UUID.String(),
		Platform:    account.Platform.String(),
		ExternalID:  account.ExternalID,
		DisplayName: account.DisplayName,
		Username:    account.Username,
		Status:      string(account.Status),
		TokenStatus: "missing",
		CreatedAt:   account.CreatedAt,
	}
	if token != nil {
		d.ExpiresAt = token.ExpiresAt
		if token.IsExpiredAt(utils.UTCNow()) {
			d.TokenStatus = "expired"
		} else {
			d.TokenStatus = "valid"
		}
	}
	return d
}

// generatePKCE produces a verifier and its S256 challenge
func generatePKCE() (verifier, challenge string, err error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", "", err
	}
	verifier = base64.RawURLEncoding.EncodeToString(buf)
	sum := sha256.Sum256([]byte(verifier))
	challenge = base64.RawURLEncoding.EncodeToString(sum[:])
	return verifier, challenge, nil
}

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return fmt.Sprintf("%x", sum)
}
