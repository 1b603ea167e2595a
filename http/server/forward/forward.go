// Package forward routes HTTP calls to the dispatch engine.
package forward

import (
	"fmt"

	"github.com/code19m/errx"
	"github.com/gofiber/fiber/v2"

	"github.com/rise-and-shine/svcore/cqrs"
	"github.com/rise-and-shine/svcore/mask"
	"github.com/rise-and-shine/svcore/observability/logger"
	"github.com/rise-and-shine/svcore/reqctx"
)

const maxLogAllowedSize = 8 << 10 // 8KB

// Executor runs normalized requests. *manager.Manager implements it.
type Executor interface {
	Execute(rc *reqctx.Context) (*cqrs.Response, error)
	ContextOptions() []reqctx.Option
}

// UserResolver returns the identity of a call, nil for anonymous ones.
type UserResolver func(c *fiber.Ctx) (*cqrs.UserContext, error)

type options struct {
	prefix      string
	resolveUser UserResolver
	contextOpts []reqctx.Option
}

type Option func(*options)

// WithPrefix sets the path prefix stripped before the verb is read.
func WithPrefix(prefix string) Option {
	return func(o *options) {
		o.prefix = prefix
	}
}

// WithUserResolver sets how the caller identity is read from the call.
func WithUserResolver(fn UserResolver) Option {
	return func(o *options) {
		o.resolveUser = fn
	}
}

// WithContextOptions adds options to every request context.
func WithContextOptions(opts ...reqctx.Option) Option {
	return func(o *options) {
		o.contextOpts = append(o.contextOpts, opts...)
	}
}

// ToManager returns a handler that builds a request context from the call,
// normalizes it and executes it with e. The context is disposed when the
// response is written.
func ToManager(e Executor, opts ...Option) fiber.Handler {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	return func(c *fiber.Ctx) error {
		req, err := transportRequest(c)
		if err != nil {
			return err
		}

		ctxOpts := append(e.ContextOptions(), o.contextOpts...)
		if o.resolveUser != nil {
			user, err := o.resolveUser(c)
			if err != nil {
				return errx.Wrap(err, errx.WithType(errx.T_Authentication), errx.WithCode(codeUnauthorized))
			}
			ctxOpts = append(ctxOpts, reqctx.WithUser(user))
		}

		rc, err := reqctx.New(c.UserContext(), reqctx.KindRequest, req, ctxOpts...)
		if err != nil {
			return errx.Wrap(err)
		}
		defer rc.Dispose()

		rc.Normalize(o.prefix)
		c.Set(reqctx.HeaderCorrelationID, rc.Data().CorrelationID)
		c.SetUserContext(rc.Context())

		log := logger.
			Named("http.handler").
			WithContext(rc.Context()).
			With("verb", rc.Data().Verb)

		if len(c.Body()) <= maxLogAllowedSize {
			log = log.With("request_params", mask.Redact(rc.Data().Params))
		} else {
			log = log.With("request_params", fmt.Sprintf("too large for logging: %d bytes", len(c.Body())))
		}

		resp, err := e.Execute(rc)
		if err != nil {
			return err
		}

		size, err := writeResponse(c, resp)
		if err != nil {
			return err
		}

		if size > maxLogAllowedSize {
			log = log.With("response_size", size)
		}
		log.Debug("request forwarded")
		return nil
	}
}

// writeResponse writes resp and returns the body size.
func writeResponse(c *fiber.Ctx, resp *cqrs.Response) (int, error) {
	status := resp.StatusCode
	if status == 0 {
		status = fiber.StatusOK
	}
	for k, v := range resp.Headers {
		c.Set(k, v)
	}
	c.Status(status)

	if resp.ContentType != "" {
		switch content := resp.Content.(type) {
		case []byte:
			c.Set(fiber.HeaderContentType, resp.ContentType)
			return len(content), c.Send(content)
		case string:
			c.Set(fiber.HeaderContentType, resp.ContentType)
			return len(content), c.SendString(content)
		}
	}

	raw, err := c.App().Config().JSONEncoder(resp.Content)
	if err != nil {
		return 0, errx.Wrap(err)
	}
	c.Response().SetBodyRaw(raw)
	c.Response().Header.SetContentType(fiber.MIMEApplicationJSON)
	return len(raw), nil
}
