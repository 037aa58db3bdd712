package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/publora/publora/models"
	"github.com/publora/publora/utils"
)

// State signer error constants
var (
	ErrStateInvalid = errors.New("invalid oauth state")
	ErrStateExpired = errors.New("oauth state has expired")
)

// StateClaims is the payload carried inside a signed OAuth state token.
// The nonce binds the callback to the browser that started the flow; the
// PKCE hash lets the callback recover the verifier without server storage.
type StateClaims struct {
	Platform    models.Platform `json:"platform"`
	Nonce       string          `json:"nonce"`
	PKCEHash    string          `json:"pkce_hash,omitempty"`
	RedirectURI string          `json:"redirect_uri"`
	IssuedAt    time.Time       `json:"issued_at"`
	ExpiresAt   time.Time       `json:"expires_at"`
}

// StateSigner mints and verifies signed TTL-bounded OAuth state tokens
type StateSigner interface {
	Sign(platform models.Platform, nonce, pkceHash, redirectURI string) (string, error)
	Verify(state string) (*StateClaims, error)
}

// StateSignerImpl implements StateSigner with HS256 over the cookie secret
type StateSignerImpl struct {
	secret []byte
	ttl    time.Duration
}

// NewStateSigner creates a new state signer
func NewStateSigner(secret string, ttl time.Duration) (StateSigner, error) {
	if secret == "" {
		return nil, fmt.Errorf("oauth state secret is required")
	}
	if ttl <= 0 {
		ttl = utils.OAuthStateTTL
	}
	return &StateSignerImpl{secret: []byte(secret), ttl: ttl}, nil
}

// Sign mints a state token for the given flow parameters
func (s *StateSignerImpl) Sign(platform models.Platform, nonce, pkceHash, redirectURI string) (string, error) {
	if !platform.Valid() {
		return "", fmt.Errorf("invalid platform: %s", platform)
	}
	if nonce == "" {
		return "", fmt.Errorf("nonce is required")
	}

	now := utils.UTCNow()
	claims := jwt.MapClaims{
		"platform":     platform.String(),
		"nonce":        nonce,
		"redirect_uri": redirectURI,
		"iat":          now.Unix(),
		"exp":          now.Add(s.ttl).Unix(),
	}
	if pkceHash != "" {
		claims["pkce_hash"] = pkceHash
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Verify checks signature and TTL and returns the embedded claims.
// Fails closed: any parse or claim anomaly is ErrStateInvalid.
func (s *StateSignerImpl) Verify(state string) (*StateClaims, error) {
	parsedToken, err := jwt.Parse(state, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		if strings.Contains(err.Error(), "expired") || strings.Contains(err.Error(), "exp") {
			return nil, ErrStateExpired
		}
		return nil, ErrStateInvalid
	}
	if !parsedToken.Valid {
		return nil, ErrStateInvalid
	}

	claims, ok := parsedToken.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrStateInvalid
	}

	platformStr, ok := claims["platform"].(string)
	if !ok {
		return nil, ErrStateInvalid
	}
	platform := models.Platform(platformStr)
	if !platform.Valid() {
		return nil, ErrStateInvalid
	}

	nonce, ok := claims["nonce"].(string)
	if !ok || nonce == "" {
		return nil, ErrStateInvalid
	}

	redirectURI, _ := claims["redirect_uri"].(string)
	pkceHash, _ := claims["pkce_hash"].(string)

	issuedAt, ok := claims["iat"].(float64)
	if !ok {
		return nil, ErrStateInvalid
	}
	expiresAt, ok := claims["exp"].(float64)
	if !ok {
		return nil, ErrStateInvalid
	}

	if utils.UTCNow().After(time.Unix(int64(expiresAt), 0)) {
		return nil, ErrStateExpired
	}

	return &StateClaims{
		Platform:    platform,
		Nonce:       nonce,
		PKCEHash:    pkceHash,
		RedirectURI: redirectURI,
		IssuedAt:    time.Unix(int64(issuedAt), 0),
		ExpiresAt:   time.Unix(int64(expiresAt), 0),
	}, nil
}
