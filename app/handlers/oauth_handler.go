// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"errors"
	"log"
	"net/url"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/publora/publora/app/dto"
	businessflow "github.com/publora/publora/business_flow"
	"github.com/publora/publora/config"
	"github.com/publora/publora/utils"
)

const oauthStateCookie = "oauth_state"

// OAuthHandlerInterface defines the contract for OAuth handlers
type OAuthHandlerInterface interface {
	Start(c fiber.Ctx) error
	Callback(c fiber.Ctx) error
	DevSaveToken(c fiber.Ctx) error
	ListAccounts(c fiber.Ctx) error
	DisconnectAccount(c fiber.Ctx) error
	TokenStatus(c fiber.Ctx) error
	RefreshToken(c fiber.Ctx) error
}

// OAuthHandler handles OAuth connect and credential HTTP requests
type OAuthHandler struct {
	oauthFlow   businessflow.OAuthFlow
	securityCfg config.SecurityConfig
	stateTTL    time.Duration
	validator   *validator.Validate
}

func (h *OAuthHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *OAuthHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// NewOAuthHandler creates a new OAuth handler
func NewOAuthHandler(oauthFlow businessflow.OAuthFlow, securityCfg config.SecurityConfig, stateTTL time.Duration) *OAuthHandler {
	if stateTTL <= 0 {
		stateTTL = utils.OAuthStateTTL
	}
	return &OAuthHandler{
		oauthFlow:   oauthFlow,
		securityCfg: securityCfg,
		stateTTL:    stateTTL,
		validator:   validator.New(),
	}
}

// Start begins the OAuth connect flow: signs state, stashes the PKCE verifier,
// sets the state as an HTTP-only cookie, and returns the authorize URL
func (h *OAuthHandler) Start(c fiber.Ctx) error {
	provider := c.Params("provider")
	if provider == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Provider is required", "MISSING_PROVIDER", nil)
	}

	organizationID, ok := c.Locals("organization_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Organization ID not found in context", "MISSING_ORGANIZATION_ID", nil)
	}

	req := &dto.StartOAuthRequest{
		OrganizationID: organizationID,
		Platform:       provider,
		RedirectURI:    c.Query("redirect_uri"),
	}

	if err := h.validator.Struct(req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := h.oauthFlow.Start(h.createRequestContext(c, "/oauth/"+provider+"/start"), req, metadata)
	if err != nil {
		if businessflow.IsInvalidPlatform(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Unknown provider", "OAUTH_INVALID_PROVIDER", nil)
		}
		if businessflow.IsRedirectNotAllowed(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Redirect target is not allowed", "OAUTH_REDIRECT_DENIED", nil)
		}

		log.Println("OAuth start failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "OAuth start failed", "OAUTH_START_FAILED", nil)
	}

	// Bind the state to this browser so the callback can reject cross-site use
	c.Cookie(&fiber.Cookie{
		Name:     oauthStateCookie,
		Value:    result.State,
		Expires:  time.Now().Add(h.stateTTL),
		HTTPOnly: h.securityCfg.CookieHTTPOnly,
		Secure:   h.securityCfg.CookieSecure,
		SameSite: h.securityCfg.CookieSameSite,
		Path:     "/",
	})

	return h.SuccessResponse(c, fiber.StatusOK, "OAuth flow started", fiber.Map{
		"authorization_url": result.AuthorizationURL,
		"expires_in":        result.ExpiresIn,
	})
}

// Callback completes the OAuth flow. Once the state is verified the browser is
// redirected to the allowlisted result page with status=success or status=error
// query parameters. Verification failures never redirect: an unverified state
// means the target cannot be trusted.
func (h *OAuthHandler) Callback(c fiber.Ctx) error {
	provider := c.Params("provider")
	if provider == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Provider is required", "MISSING_PROVIDER", nil)
	}

	req := &dto.OAuthCallbackRequest{
		Platform: provider,
		Code:     c.Query("code"),
		State:    c.Query("state"),
	}

	if err := h.validator.Struct(req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	cookieState := c.Cookies(oauthStateCookie)
	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := h.oauthFlow.Callback(h.createRequestContext(c, "/oauth/"+provider+"/callback"), req, cookieState, metadata)

	// The state cookie is single-use either way
	c.ClearCookie(oauthStateCookie)

	if err != nil {
		// Failures past state verification carry the trusted result page,
		// so the browser is sent back there instead of getting bare JSON
		if result != nil && result.RedirectURI != "" {
			return h.redirectCallbackError(c, provider, result.RedirectURI, err)
		}
		if businessflow.IsStateReplayed(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "State already used or expired", "OAUTH_STATE_REPLAYED", nil)
		}
		if businessflow.IsStateMismatch(err) {
			return h.ErrorResponse(c, fiber.StatusUnauthorized, "State does not match browser cookie", "OAUTH_STATE_MISMATCH", nil)
		}
		if businessflow.IsInvalidPlatform(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Unknown provider", "OAUTH_INVALID_PROVIDER", nil)
		}

		log.Println("OAuth callback failed", err)
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "OAuth callback failed", "OAUTH_CALLBACK_FAILED", nil)
	}

	redirect, err := url.Parse(result.RedirectURI)
	if err != nil {
		return h.SuccessResponse(c, fiber.StatusOK, "Account connected successfully", result.Response)
	}
	q := redirect.Query()
	q.Set("status", "success")
	q.Set("platform", result.Response.Account.Platform)
	q.Set("account", result.Response.Account.UUID)
	redirect.RawQuery = q.Encode()

	return c.Redirect().Status(fiber.StatusFound).To(redirect.String())
}

// redirectCallbackError sends the browser back to the verified result page
// with status=error and the failure code as query parameters
func (h *OAuthHandler) redirectCallbackError(c fiber.Ctx, provider, redirectURI string, cause error) error {
	log.Println("OAuth callback failed", cause)

	code := "OAUTH_CALLBACK_FAILED"
	var be *businessflow.BusinessError
	if errors.As(cause, &be) {
		code = be.Code
	}

	redirect, err := url.Parse(redirectURI)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "OAuth callback failed", code, nil)
	}
	q := redirect.Query()
	q.Set("status", "error")
	q.Set("error", code)
	q.Set("platform", provider)
	redirect.RawQuery = q.Encode()

	return c.Redirect().Status(fiber.StatusFound).To(redirect.String())
}

// DevSaveToken persists a dummy-prefixed token for local development
func (h *OAuthHandler) DevSaveToken(c fiber.Ctx) error {
	provider := c.Params("provider")
	if provider == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Provider is required", "MISSING_PROVIDER", nil)
	}

	var req dto.DevSaveTokenRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	req.Platform = provider

	organizationID, ok := c.Locals("organization_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Organization ID not found in context", "MISSING_ORGANIZATION_ID", nil)
	}
	req.OrganizationID = organizationID

	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := h.oauthFlow.DevSaveToken(h.createRequestContext(c, "/oauth/"+provider+"/dev-save"), &req, metadata)
	if err != nil {
		if businessflow.IsInvalidPlatform(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Unknown provider or invalid token prefix", "OAUTH_DEV_TOKEN_INVALID", nil)
		}

		log.Println("Dev token save failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Dev token save failed", "OAUTH_DEV_SAVE_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusCreated, "Development token saved", result)
}

// ListAccounts returns the organization's connected social accounts
func (h *OAuthHandler) ListAccounts(c fiber.Ctx) error {
	organizationID, ok := c.Locals("organization_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Organization ID not found in context", "MISSING_ORGANIZATION_ID", nil)
	}

	result, err := h.oauthFlow.ListAccounts(h.createRequestContext(c, "/api/v1/accounts"), organizationID)
	if err != nil {
		log.Println("List accounts failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list accounts", "LIST_ACCOUNTS_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Accounts retrieved successfully", result)
}

// DisconnectAccount revokes a connected account
func (h *OAuthHandler) DisconnectAccount(c fiber.Ctx) error {
	accountUUID := c.Params("uuid")
	if accountUUID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Account UUID is required", "MISSING_ACCOUNT_UUID", nil)
	}

	organizationID, ok := c.Locals("organization_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Organization ID not found in context", "MISSING_ORGANIZATION_ID", nil)
	}

	req := &dto.DisconnectAccountRequest{AccountUUID: accountUUID}

	result, err := h.oauthFlow.DisconnectAccount(h.createRequestContext(c, "/api/v1/accounts/"+accountUUID), organizationID, req)
	if err != nil {
		if businessflow.IsAccountNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Social account not found", "ACCOUNT_NOT_FOUND", nil)
		}

		log.Println("Account disconnect failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Account disconnect failed", "ACCOUNT_DISCONNECT_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Account disconnected successfully", fiber.Map{
		"message": result.Message,
	})
}

// TokenStatus reports the current credential state for a platform
func (h *OAuthHandler) TokenStatus(c fiber.Ctx) error {
	provider := c.Params("provider")
	if provider == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Provider is required", "MISSING_PROVIDER", nil)
	}

	organizationID, ok := c.Locals("organization_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Organization ID not found in context", "MISSING_ORGANIZATION_ID", nil)
	}

	result, err := h.oauthFlow.TokenStatus(h.createRequestContext(c, "/api/v1/tokens/"+provider+"/status"), organizationID, provider)
	if err != nil {
		if businessflow.IsInvalidPlatform(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Unknown provider", "OAUTH_INVALID_PROVIDER", nil)
		}
		if businessflow.IsAccountNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "No connected account for provider", "ACCOUNT_NOT_FOUND", nil)
		}

		log.Println("Token status failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to get token status", "TOKEN_STATUS_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Token status retrieved successfully", result)
}

// RefreshToken forces a credential refresh for a platform
func (h *OAuthHandler) RefreshToken(c fiber.Ctx) error {
	provider := c.Params("provider")
	if provider == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Provider is required", "MISSING_PROVIDER", nil)
	}

	organizationID, ok := c.Locals("organization_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Organization ID not found in context", "MISSING_ORGANIZATION_ID", nil)
	}

	result, err := h.oauthFlow.ForceRefresh(h.createRequestContext(c, "/api/v1/tokens/"+provider+"/refresh"), organizationID, provider)
	if err != nil {
		if businessflow.IsInvalidPlatform(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Unknown provider", "OAUTH_INVALID_PROVIDER", nil)
		}
		if businessflow.IsAccountNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "No connected account for provider", "ACCOUNT_NOT_FOUND", nil)
		}
		if businessflow.IsNoCurrentToken(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "Account has no current token", "NO_CURRENT_TOKEN", nil)
		}
		if businessflow.IsRefreshInProgress(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "Token refresh already in progress", "REFRESH_IN_PROGRESS", nil)
		}
		if businessflow.IsRefreshNotSupported(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "Account has no refresh token", "REFRESH_NOT_SUPPORTED", nil)
		}

		log.Println("Token refresh failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Token refresh failed", "TOKEN_REFRESH_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Token refreshed successfully", result)
}

// createRequestContext creates a context with request-scoped values for observability and timeout
func (h *OAuthHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)

	ctx = context.WithValue(ctx, utils.RequestIDKey, c.Get("X-Request-ID"))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	ctx = context.WithValue(ctx, utils.CancelFuncKey, cancel) // Store cancel function for cleanup

	return ctx
}
