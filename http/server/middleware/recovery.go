package middleware

import (
	"fmt"
	"runtime"

	"github.com/code19m/errx"
	"github.com/gofiber/fiber/v2"

	"github.com/rise-and-shine/svcore/http/server"
	"github.com/rise-and-shine/svcore/observability/logger"
)

const (
	codePanicRecovered = "HTTP_PANIC_RECOVERED"
	stackTraceSize     = 4096
)

// NewRecoveryMW creates a middleware that recovers from panics in the request
// handling chain and converts them to internal errors.
//
// The stack trace and panic value are logged and kept in the error details.
func NewRecoveryMW(log logger.Logger) server.Middleware {
	return server.Middleware{
		Priority: 1000,
		Handler: func(c *fiber.Ctx) (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = panicError(r)
					log.Named("http.recovery").
						WithContext(c.UserContext()).
						With("panic_message", fmt.Sprintf("%v", r)).
						Errorx(err)
				}
			}()

			return c.Next()
		},
	}
}

func panicError(r any) error {
	stackTrace := make([]byte, stackTraceSize)
	stackTrace = stackTrace[:runtime.Stack(stackTrace, false)]

	return errx.New("panic recovered",
		errx.WithCode(codePanicRecovered),
		errx.WithType(errx.T_Internal),
		errx.WithDetails(errx.D{
			"stack_trace":   string(stackTrace),
			"panic_message": fmt.Sprintf("%v", r),
		}),
	)
}
