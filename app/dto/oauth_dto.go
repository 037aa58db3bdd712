package dto

import "time"

// StartOAuthRequest represents the request to begin an OAuth connect flow
type StartOAuthRequest struct {
	OrganizationID uint   `json:"-"`
	Platform       string `json:"-"`
	RedirectURI    string `json:"redirect_uri" validate:"required,url"`
}

// StartOAuthResponse carries the provider authorization URL and the signed state
type StartOAuthResponse struct {
	AuthorizationURL string `json:"authorization_url"`
	State            string `json:"state"`
	ExpiresIn        int    `json:"expires_in"`
}

// OAuthCallbackRequest represents the provider redirect back to us
type OAuthCallbackRequest struct {
	Platform string `json:"-"`
	Code     string `json:"code" validate:"required"`
	State    string `json:"state" validate:"required"`
}

// OAuthCallbackResponse represents the connected account after a completed flow
type OAuthCallbackResponse struct {
	Message string           `json:"message"`
	Account SocialAccountDTO `json:"account"`
}

// SocialAccountDTO represents a connected social account in responses
type SocialAccountDTO struct {
	UUID        string     `json:"uuid"`
	Platform    string     `json:"platform"`
	ExternalID  string     `json:"external_id"`
	DisplayName string     `json:"display_name,omitempty"`
	Username    string     `json:"username,omitempty"`
	Status      string     `json:"status"`
	TokenStatus string     `json:"token_status"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// ListSocialAccountsResponse represents the connected accounts of an organization
type ListSocialAccountsResponse struct {
	Accounts []SocialAccountDTO `json:"accounts"`
}

// DisconnectAccountRequest represents the request to revoke a connected account
type DisconnectAccountRequest struct {
	AccountUUID string `json:"-"`
}

// DisconnectAccountResponse represents the response after revocation
type DisconnectAccountResponse struct {
	Message string `json:"message"`
}

// RefreshTokenResponse represents the response after a forced token refresh
type RefreshTokenResponse struct {
	Message   string     `json:"message"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// DevSaveTokenRequest persists a development token for a platform without a
// provider round-trip. Only dummy-prefixed tokens are accepted.
type DevSaveTokenRequest struct {
	OrganizationID uint    `json:"-"`
	Platform       string  `json:"-"`
	AccessToken    string  `json:"access_token" validate:"required,startswith=dummy_access_"`
	RefreshToken   *string `json:"refresh_token,omitempty"`
	ExternalID     string  `json:"external_id" validate:"required,max=255"`
	DisplayName    string  `json:"display_name,omitempty" validate:"omitempty,max=255"`
}

// TokenStatusResponse reports the current token state for an account
type TokenStatusResponse struct {
	Platform  string     `json:"platform"`
	Status    string     `json:"status"` // "valid", "expired", "missing"
	Dummy     bool       `json:"dummy"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Scopes    []string   `json:"scopes,omitempty"`
}
