package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/publora/publora/config"
	"github.com/publora/publora/models"
)

// OAuth provider error constants
var (
	ErrUnknownProvider  = errors.New("unknown oauth provider")
	ErrExchangeFailed   = errors.New("authorization code exchange failed")
	ErrRefreshFailed    = errors.New("token refresh failed")
	ErrNoRefreshToken   = errors.New("provider returned no refresh token")
	ErrProfileFetchFail = errors.New("profile fetch failed")
)

// OAuthTokens is the decoded token response from a provider
type OAuthTokens struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64 // seconds; 0 means the provider reported no expiry
	Scopes       []string
}

// OAuthProfile identifies the external account the tokens belong to
type OAuthProfile struct {
	ExternalID  string
	DisplayName string
	Username    string
}

// OAuthProvider performs the provider-side legs of the authorization code flow
type OAuthProvider interface {
	Platform() models.Platform
	AuthorizeURL(state, redirectURI, pkceChallenge string) string
	ExchangeCode(ctx context.Context, code, redirectURI, pkceVerifier string) (*OAuthTokens, error)
	Refresh(ctx context.Context, refreshToken string) (*OAuthTokens, error)
	FetchProfile(ctx context.Context, accessToken string) (*OAuthProfile, error)
}

// providerEndpoints holds the well-known URLs for one platform
type providerEndpoints struct {
	authURL    string
	tokenURL   string
	profileURL string
	scopes     []string
}

var defaultEndpoints = map[models.Platform]providerEndpoints{
	models.PlatformInstagram: {
		authURL:    "https://api.instagram.com/oauth/authorize",
		tokenURL:   "https://api.instagram.com/oauth/access_token",
		profileURL: "https://graph.instagram.com/me?fields=id,username",
		scopes:     []string{"instagram_basic", "instagram_content_publish"},
	},
	models.PlatformTwitter: {
		authURL:    "https://twitter.com/i/oauth2/authorize",
		tokenURL:   "https://api.twitter.com/2/oauth2/token",
		profileURL: "https://api.twitter.com/2/users/me",
		scopes:     []string{"tweet.read", "tweet.write", "users.read", "offline.access"},
	},
	models.PlatformFacebook: {
		authURL:    "https://www.facebook.com/v19.0/dialog/oauth",
		tokenURL:   "https://graph.facebook.com/v19.0/oauth/access_token",
		profileURL: "https://graph.facebook.com/v19.0/me?fields=id,name",
		scopes:     []string{"pages_manage_posts", "pages_read_engagement"},
	},
	models.PlatformLinkedIn: {
		authURL:    "https://www.linkedin.com/oauth/v2/authorization",
		tokenURL:   "https://www.linkedin.com/oauth/v2/accessToken",
		profileURL: "https://api.linkedin.com/v2/userinfo",
		scopes:     []string{"openid", "profile", "w_member_social"},
	},
	models.PlatformYouTube: {
		authURL:    "https://accounts.google.com/o/oauth2/v2/auth",
		tokenURL:   "https://oauth2.googleapis.com/token",
		profileURL: "https://www.googleapis.com/oauth2/v2/userinfo",
		scopes:     []string{"https://www.googleapis.com/auth/youtube.upload"},
	},
	models.PlatformTikTok: {
		authURL:    "https://www.tiktok.com/v2/auth/authorize",
		tokenURL:   "https://open.tiktokapis.com/v2/oauth/token",
		profileURL: "https://open.tiktokapis.com/v2/user/info",
		scopes:     []string{"user.info.basic", "video.publish"},
	},
}

// httpOAuthProvider is the default OAuthProvider backed by net/http
type httpOAuthProvider struct {
	platform  models.Platform
	cfg       config.OAuthProviderConfig
	endpoints providerEndpoints
	client    *http.Client
}

func newHTTPOAuthProvider(platform models.Platform, cfg config.OAuthProviderConfig) *httpOAuthProvider {
	ep := defaultEndpoints[platform]
	if cfg.AuthURL != "" {
		ep.authURL = cfg.AuthURL
	}
	if cfg.TokenURL != "" {
		ep.tokenURL = cfg.TokenURL
	}
	if cfg.ProfileURL != "" {
		ep.profileURL = cfg.ProfileURL
	}
	if len(cfg.Scopes) > 0 {
		ep.scopes = cfg.Scopes
	}
	return &httpOAuthProvider{
		platform:  platform,
		cfg:       cfg,
		endpoints: ep,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (p *httpOAuthProvider) Platform() models.Platform {
	return p.platform
}

// AuthorizeURL builds the provider authorization URL for a browser redirect
func (p *httpOAuthProvider) AuthorizeURL(state, redirectURI, pkceChallenge string) string {
	q := url.Values{}
	q.Set("client_id", p.cfg.ClientID)
	q.Set("redirect_uri", redirectURI)
	q.Set("response_type", "code")
	q.Set("state", state)
	if len(p.endpoints.scopes) > 0 {
		q.Set("scope", strings.Join(p.endpoints.scopes, " "))
	}
	if pkceChallenge != "" {
		q.Set("code_challenge", pkceChallenge)
		q.Set("code_challenge_method", "S256")
	}
	return p.endpoints.authURL + "?" + q.Encode()
}

// tokenResponse is the common OAuth2 token endpoint body
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	Scope        string `json:"scope"`
	Error        string `json:"error"`
	ErrorDesc    string `json:"error_description"`
}

// ExchangeCode trades the authorization code for tokens
func (p *httpOAuthProvider) ExchangeCode(ctx context.Context, code, redirectURI, pkceVerifier string) (*OAuthTokens, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("client_id", p.cfg.ClientID)
	form.Set("client_secret", p.cfg.ClientSecret)
	form.Set("redirect_uri", redirectURI)
	if pkceVerifier != "" {
		form.Set("code_verifier", pkceVerifier)
	}

	resp, err := p.postForm(ctx, p.endpoints.tokenURL, form)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("%w: %s (%s)", ErrExchangeFailed, resp.Error, resp.ErrorDesc)
	}
	if resp.AccessToken == "" {
		return nil, ErrExchangeFailed
	}
	return toOAuthTokens(resp), nil
}

// Refresh trades a refresh token for fresh tokens
func (p *httpOAuthProvider) Refresh(ctx context.Context, refreshToken string) (*OAuthTokens, error) {
	if refreshToken == "" {
		return nil, ErrNoRefreshToken
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	form.Set("client_id", p.cfg.ClientID)
	form.Set("client_secret", p.cfg.ClientSecret)

	resp, err := p.postForm(ctx, p.endpoints.tokenURL, form)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("%w: %s (%s)", ErrRefreshFailed, resp.Error, resp.ErrorDesc)
	}
	if resp.AccessToken == "" {
		return nil, ErrRefreshFailed
	}

	tokens := toOAuthTokens(resp)
	// Some providers rotate the refresh token, some keep it; carry the old one
	// forward when the response omits it.
	if tokens.RefreshToken == "" {
		tokens.RefreshToken = refreshToken
	}
	return tokens, nil
}

// FetchProfile resolves the external account identity behind an access token
func (p *httpOAuthProvider) FetchProfile(ctx context.Context, accessToken string) (*OAuthProfile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoints.profileURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	httpResp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProfileFetchFail, err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProfileFetchFail, err)
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrProfileFetchFail, httpResp.StatusCode)
	}

	var raw struct {
		ID       string `json:"id"`
		Sub      string `json:"sub"`
		Name     string `json:"name"`
		Username string `json:"username"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProfileFetchFail, err)
	}

	externalID := raw.ID
	if externalID == "" {
		externalID = raw.Sub
	}
	if externalID == "" {
		return nil, fmt.Errorf("%w: response carries no account id", ErrProfileFetchFail)
	}

	return &OAuthProfile{
		ExternalID:  externalID,
		DisplayName: raw.Name,
		Username:    raw.Username,
	}, nil
}

func (p *httpOAuthProvider) postForm(ctx context.Context, endpoint string, form url.Values) (*tokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	httpResp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = httpResp.Body.Close() }()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, err
	}

	var resp tokenResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("unexpected token response (status %d)", httpResp.StatusCode)
	}
	if httpResp.StatusCode != http.StatusOK && resp.Error == "" {
		resp.Error = fmt.Sprintf("status %d", httpResp.StatusCode)
	}
	return &resp, nil
}

func toOAuthTokens(resp *tokenResponse) *OAuthTokens {
	var scopes []string
	if resp.Scope != "" {
		scopes = strings.Fields(strings.ReplaceAll(resp.Scope, ",", " "))
	}
	return &OAuthTokens{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		ExpiresIn:    resp.ExpiresIn,
		Scopes:       scopes,
	}
}

// ProviderRegistry resolves platforms to configured providers.
// The platform set is fixed; an unconfigured or unknown platform is an error,
// never a silent default.
type ProviderRegistry struct {
	providers map[models.Platform]OAuthProvider
}

// NewProviderRegistry builds providers for every platform with credentials in config
func NewProviderRegistry(cfg config.OAuthConfig) *ProviderRegistry {
	providers := make(map[models.Platform]OAuthProvider)
	for _, platform := range models.AllPlatforms() {
		pc, ok := cfg.Providers[platform.String()]
		if !ok || pc.ClientID == "" {
			continue
		}
		providers[platform] = newHTTPOAuthProvider(platform, pc)
	}
	return &ProviderRegistry{providers: providers}
}

// Get returns the provider for a platform
func (r *ProviderRegistry) Get(platform models.Platform) (OAuthProvider, error) {
	p, ok := r.providers[platform]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, platform)
	}
	return p, nil
}
