package middleware_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rise-and-shine/svcore/http/server"
	"github.com/rise-and-shine/svcore/http/server/middleware"
	"github.com/rise-and-shine/svcore/meta"
	"github.com/rise-and-shine/svcore/observability/logger"
	"github.com/rise-and-shine/svcore/reqctx"
)

func newServer(route fiber.Handler) *server.HTTPServer {
	srv := server.NewHTTPServer(server.Config{}, []server.Middleware{
		middleware.NewErrorHandlerMW(false),
		middleware.NewLoggerMW(logger.Nop()),
		middleware.NewRecoveryMW(logger.Nop()),
		middleware.NewMetaInjectMW("orders", "1.0.0"),
		middleware.NewTimeoutMW(50 * time.Millisecond),
		middleware.NewTracingMW(),
	})
	srv.RegisterRouter(func(r fiber.Router) {
		r.Get("/test", route)
	})
	return srv
}

func call(t *testing.T, srv *server.HTTPServer, req *http.Request) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := srv.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body))
	return resp, body
}

func TestRecoveryMW(t *testing.T) {
	// Arrange
	srv := newServer(func(*fiber.Ctx) error {
		panic("boom")
	})

	// Act
	resp, body := call(t, srv, httptest.NewRequest(http.MethodGet, "/test", nil))

	// Assert
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	e := body["error"].(map[string]any)
	assert.Equal(t, "HTTP_PANIC_RECOVERED", e["code"])
	assert.Equal(t, "boom", e["details"].(map[string]any)["panic_message"])
}

func TestTimeoutMW(t *testing.T) {
	// Arrange
	srv := server.NewHTTPServer(server.Config{}, []server.Middleware{
		middleware.NewTimeoutMW(20 * time.Millisecond),
	})
	srv.RegisterRouter(func(r fiber.Router) {
		r.Get("/test", func(c *fiber.Ctx) error {
			<-c.UserContext().Done()
			return c.UserContext().Err()
		})
	})

	// Act
	resp, body := call(t, srv, httptest.NewRequest(http.MethodGet, "/test", nil))

	// Assert
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "HTTP_REQUEST_TIMEOUT", body["error"].(map[string]any)["code"])
}

func TestMetaInjectMW(t *testing.T) {
	// Arrange
	var ctx context.Context
	srv := newServer(func(c *fiber.Ctx) error {
		ctx = c.UserContext()
		return c.JSON(map[string]any{"ok": true})
	})
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(reqctx.HeaderTenant, "acme")
	req.Header.Set(reqctx.HeaderCorrelationID, "corr-1")
	req.Header.Set(fiber.HeaderUserAgent, "tests")

	// Act
	resp, _ := call(t, srv, req)

	// Assert
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "acme", meta.Find(ctx, meta.Tenant))
	assert.Equal(t, "corr-1", meta.Find(ctx, meta.CorrelationID))
	assert.Equal(t, "tests", meta.Find(ctx, meta.UserAgent))
	assert.Equal(t, "orders", meta.Find(ctx, meta.ServiceNameKey))
}

func TestErrorHandlerMWEchoesCorrelationID(t *testing.T) {
	// Arrange
	srv := newServer(func(*fiber.Ctx) error {
		return fiber.ErrNotFound
	})
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(reqctx.HeaderCorrelationID, "corr-2")

	// Act
	resp, body := call(t, srv, req)

	// Assert
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "corr-2", resp.Header.Get(reqctx.HeaderCorrelationID))
	assert.Equal(t, "corr-2", body["correlation_id"])
}
