package middleware

import (
	"time"

	"github.com/code19m/errx"
	"github.com/gofiber/fiber/v2"

	"github.com/rise-and-shine/svcore/http/server"
	"github.com/rise-and-shine/svcore/meta"
	"github.com/rise-and-shine/svcore/observability/logger"
)

// NewLoggerMW creates a middleware that logs HTTP requests and responses.
//
// The log level follows the status code: info for 2xx and 3xx, warn for 4xx
// and error for 5xx. Correlation, tenant and user ids are read from the
// context left by the handler, so they are present once a request context
// was built for the call.
func NewLoggerMW(log logger.Logger) server.Middleware {
	return server.Middleware{
		Priority: 500,
		Handler: func(c *fiber.Ctx) error {
			start := time.Now()

			err := c.Next()

			ctx := c.UserContext()
			statusCode := c.Response().StatusCode()
			if err != nil && statusCode < fiber.StatusBadRequest {
				// the error response is written by an outer layer
				statusCode = server.StatusCodeOf(err)
			}

			l := log.Named("http.logger").
				WithContext(ctx).
				With("http_status_code", statusCode).
				With("http_method", c.Method()).
				With("http_path", c.Path()).
				With("hostname", c.Hostname()).
				With("duration", time.Since(start).String()).
				With("request_size", c.Request().Header.ContentLength()).
				With("correlation_id", meta.Find(ctx, meta.CorrelationID)).
				With("tenant", meta.Find(ctx, meta.Tenant)).
				With("request_user_id", meta.Find(ctx, meta.RequestUserID))

			if err != nil {
				e := errx.AsErrorX(err)
				l = l.With("error", map[string]any{
					"code":    e.Code(),
					"message": e.Error(),
					"type":    e.Type().String(),
					"trace":   e.Trace(),
					"fields":  e.Fields(),
					"details": e.Details(),
				})
			}

			switch {
			case statusCode >= fiber.StatusInternalServerError:
				l.Error("request failed")
			case statusCode >= fiber.StatusBadRequest:
				l.Warn("request rejected")
			default:
				l.Info("request processed successfully")
			}

			return err
		},
	}
}
