package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/rise-and-shine/svcore/http/server"
	"github.com/rise-and-shine/svcore/meta"
	"github.com/rise-and-shine/svcore/reqctx"
)

// NewMetaInjectMW creates a middleware that injects call metadata into the request context.
//
// Client address, user agent, service identity and the tenant and correlation
// headers are stored under their meta keys so that every log line of the call
// carries them. Ids generated later by the request context take precedence.
func NewMetaInjectMW(serviceName, serviceVersion string) server.Middleware {
	return server.Middleware{
		Priority: 700,
		Handler: func(c *fiber.Ctx) error {
			ctx := meta.InjectMetaToContext(c.UserContext(), map[meta.ContextKey]string{
				meta.IPAddress:         c.IP(),
				meta.UserAgent:         c.Get(fiber.HeaderUserAgent),
				meta.ServiceNameKey:    serviceName,
				meta.ServiceVersionKey: serviceVersion,
				meta.Tenant:            c.Get(reqctx.HeaderTenant),
				meta.CorrelationID:     c.Get(reqctx.HeaderCorrelationID),
			})
			c.SetUserContext(ctx)

			return c.Next()
		},
	}
}
