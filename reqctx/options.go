package reqctx

import (
	"go.opentelemetry.io/otel/trace"

	"github.com/rise-and-shine/svcore/cqrs"
	"github.com/rise-and-shine/svcore/di"
	"github.com/rise-and-shine/svcore/observability/logger"
	"github.com/rise-and-shine/svcore/pagination"
)

type options struct {
	container     *di.Container
	correlationID string
	user          *cqrs.UserContext
	tenant        string
	domain        string
	tp            trace.TracerProvider
	log           logger.Logger
	paging        []pagination.Option
}

// Option configures a Context.
type Option func(*options)

// WithContainer sets the container the context opens its scope from.
func WithContainer(c *di.Container) Option {
	return func(o *options) {
		o.container = c
	}
}

// WithCorrelationID supplies a correlation id used when the transport carries none.
func WithCorrelationID(id string) Option {
	return func(o *options) {
		o.correlationID = id
	}
}

// WithUser sets the security identity of the context.
func WithUser(u *cqrs.UserContext) Option {
	return func(o *options) {
		o.user = u
	}
}

// WithTenant sets the tenant used when the transport carries none.
func WithTenant(tenant string) Option {
	return func(o *options) {
		o.tenant = tenant
	}
}

// WithDomain sets the domain of request data built from a transport call.
func WithDomain(domain string) Option {
	return func(o *options) {
		o.domain = domain
	}
}

// WithTracerProvider overrides the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		o.tp = tp
	}
}

// WithLogger sets the base logger of the context tracker.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		o.log = l
	}
}

// WithPagination overrides the page size limits applied by Normalize.
func WithPagination(opts ...pagination.Option) Option {
	return func(o *options) {
		o.paging = opts
	}
}
