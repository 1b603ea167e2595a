package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/code19m/errx"
	"github.com/gofiber/fiber/v2"

	"github.com/rise-and-shine/svcore/http/server"
)

const codeRequestTimeout = "HTTP_REQUEST_TIMEOUT"

// NewTimeoutMW creates a middleware that bounds the request context by duration.
//
// Downstream work that honors the context aborts once the duration elapses and
// the resulting deadline error is reported as a request timeout. A non positive
// duration disables the middleware.
func NewTimeoutMW(duration time.Duration) server.Middleware {
	return server.Middleware{
		Priority: 800,
		Handler: func(c *fiber.Ctx) error {
			if duration <= 0 {
				return c.Next()
			}

			ctx, cancel := context.WithTimeout(c.UserContext(), duration)
			defer cancel()
			c.SetUserContext(ctx)

			err := c.Next()
			if err != nil && errors.Is(err, context.DeadlineExceeded) {
				return errx.Wrap(err,
					errx.WithCode(codeRequestTimeout),
					errx.WithDetails(errx.D{"timeout": duration.String()}),
				)
			}
			return err
		},
	}
}
