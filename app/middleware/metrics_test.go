package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsMiddleware(t *testing.T) {
	app := fiber.New()
	app.Get("/ping", Metrics(), func(c fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Counters are registered under the publora_http namespace and labeled
	// by method, route template, and status
	assert.Equal(t, 1, testutil.CollectAndCount(httpRequestsTotal, "publora_http_requests_total"))
	assert.GreaterOrEqual(t, testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/ping", "200")), 1.0)
	assert.Equal(t, 1, testutil.CollectAndCount(httpRequestDuration, "publora_http_request_duration_seconds"))
}
