package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/rise-and-shine/svcore/http/server"
	"github.com/rise-and-shine/svcore/meta"
	"github.com/rise-and-shine/svcore/reqctx"
)

// NewErrorHandlerMW creates a middleware that converts errors into
// standardized JSON responses.
//
// Errors already written by an inner layer are passed through. The correlation
// id of the failed request is echoed in the response headers. When hideDetails
// is false the error trace and details are part of the body.
func NewErrorHandlerMW(hideDetails bool) server.Middleware {
	return server.Middleware{
		Priority: 400,
		Handler: func(c *fiber.Ctx) error {
			err := c.Next()
			if err == nil {
				return nil
			}

			if c.Response() != nil && c.Response().StatusCode() >= 400 {
				return err
			}

			if id := meta.Find(c.UserContext(), meta.CorrelationID); id != "" {
				c.Set(reqctx.HeaderCorrelationID, id)
			}
			return server.WriteErrorResponse(c, err, hideDetails)
		},
	}
}
