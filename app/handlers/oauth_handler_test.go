package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/publora/publora/app/dto"
	businessflow "github.com/publora/publora/business_flow"
	"github.com/publora/publora/config"
	"github.com/publora/publora/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeOAuthFlow scripts the Callback outcome; everything else is unused here
type fakeOAuthFlow struct {
	callbackResult *businessflow.CallbackResult
	callbackErr    error
}

func (f *fakeOAuthFlow) Start(context.Context, *dto.StartOAuthRequest, *businessflow.ClientMetadata) (*dto.StartOAuthResponse, error) {
	return nil, nil
}

func (f *fakeOAuthFlow) Callback(context.Context, *dto.OAuthCallbackRequest, string, *businessflow.ClientMetadata) (*businessflow.CallbackResult, error) {
	return f.callbackResult, f.callbackErr
}

func (f *fakeOAuthFlow) DevSaveToken(context.Context, *dto.DevSaveTokenRequest, *businessflow.ClientMetadata) (*dto.OAuthCallbackResponse, error) {
	return nil, nil
}

func (f *fakeOAuthFlow) ListAccounts(context.Context, uint) (*dto.ListSocialAccountsResponse, error) {
	return nil, nil
}

func (f *fakeOAuthFlow) DisconnectAccount(context.Context, uint, *dto.DisconnectAccountRequest) (*dto.DisconnectAccountResponse, error) {
	return nil, nil
}

func (f *fakeOAuthFlow) TokenStatus(context.Context, uint, string) (*dto.TokenStatusResponse, error) {
	return nil, nil
}

func (f *fakeOAuthFlow) ForceRefresh(context.Context, uint, string) (*dto.RefreshTokenResponse, error) {
	return nil, nil
}

func (f *fakeOAuthFlow) AccessTokenFor(context.Context, uint, models.Platform) (string, error) {
	return "", nil
}

func newCallbackTestApp(flow businessflow.OAuthFlow) *fiber.App {
	handler := NewOAuthHandler(flow, config.SecurityConfig{}, 0)
	app := fiber.New()
	app.Get("/oauth/:provider/callback", handler.Callback)
	return app
}

func getCallback(t *testing.T, app *fiber.App) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/oauth/twitter/callback?code=auth-code&state=signed-state", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func TestOAuthCallbackRedirects(t *testing.T) {
	t.Run("SuccessRedirectsWithStatusSuccess", func(t *testing.T) {
		app := newCallbackTestApp(&fakeOAuthFlow{
			callbackResult: &businessflow.CallbackResult{
				Response: &dto.OAuthCallbackResponse{
					Message: "Account connected successfully",
					Account: dto.SocialAccountDTO{UUID: "acc-1", Platform: "twitter"},
				},
				RedirectURI: "https://app.example.com/connected",
			},
		})

		resp := getCallback(t, app)
		require.Equal(t, fiber.StatusFound, resp.StatusCode)

		location, err := url.Parse(resp.Header.Get("Location"))
		require.NoError(t, err)
		assert.Equal(t, "app.example.com", location.Host)
		assert.Equal(t, "success", location.Query().Get("status"))
		assert.Equal(t, "twitter", location.Query().Get("platform"))
		assert.Equal(t, "acc-1", location.Query().Get("account"))
	})

	t.Run("PostVerificationFailureRedirectsWithStatusError", func(t *testing.T) {
		// Exchange failed after the state was verified: the result page is
		// trusted, so the browser is sent back there with the failure code
		app := newCallbackTestApp(&fakeOAuthFlow{
			callbackResult: &businessflow.CallbackResult{RedirectURI: "https://app.example.com/connected"},
			callbackErr:    businessflow.NewBusinessError("OAUTH_EXCHANGE_FAILED", "Code exchange failed", assert.AnError),
		})

		resp := getCallback(t, app)
		require.Equal(t, fiber.StatusFound, resp.StatusCode)

		location, err := url.Parse(resp.Header.Get("Location"))
		require.NoError(t, err)
		assert.Equal(t, "app.example.com", location.Host)
		assert.Equal(t, "error", location.Query().Get("status"))
		assert.Equal(t, "OAUTH_EXCHANGE_FAILED", location.Query().Get("error"))
		assert.Equal(t, "twitter", location.Query().Get("platform"))
	})

	t.Run("VerificationFailureNeverRedirects", func(t *testing.T) {
		app := newCallbackTestApp(&fakeOAuthFlow{
			callbackErr: businessflow.NewBusinessError("OAUTH_STATE_MISMATCH", "State does not match browser cookie", businessflow.ErrStateMismatch),
		})

		resp := getCallback(t, app)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
		assert.Empty(t, resp.Header.Get("Location"))
	})
}
