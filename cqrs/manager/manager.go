// Package manager is the dispatch engine of the runtime. It validates input,
// runs action and query handlers synchronously or through the task channel,
// publishes outcome events and feeds delivered events to subscribers.
package manager

import (
	"context"
	"sync"
	"time"

	"github.com/code19m/errx"
	"go.opentelemetry.io/otel/trace"

	"github.com/rise-and-shine/svcore/bus"
	"github.com/rise-and-shine/svcore/cqrs"
	"github.com/rise-and-shine/svcore/cqrs/handler"
	"github.com/rise-and-shine/svcore/cqrs/handler/wrapper"
	"github.com/rise-and-shine/svcore/di"
	"github.com/rise-and-shine/svcore/meta"
	"github.com/rise-and-shine/svcore/observability/logger"
	"github.com/rise-and-shine/svcore/observability/metrics"
	"github.com/rise-and-shine/svcore/registry"
	"github.com/rise-and-shine/svcore/reqctx"
	"github.com/rise-and-shine/svcore/schema"
	"github.com/rise-and-shine/svcore/taskstore"
)

// Deps are the collaborators of a Manager. Registry and Bus are required.
type Deps struct {
	Registry *registry.Registry
	Bus      *bus.Bus

	// Domain resolves input schemas and output redaction. Optional.
	Domain *schema.Domain
	// Container backs the dependency scope of event and task contexts. Optional.
	Container *di.Container
	// TaskStore records async task transitions. Optional.
	TaskStore taskstore.Store

	Metrics        *metrics.Collector
	Logger         logger.Logger
	TracerProvider trace.TracerProvider

	// Source is stamped on published events. Defaults to the full service name.
	Source string
}

type Manager struct {
	registry  *registry.Registry
	bus       *bus.Bus
	domain    *schema.Domain
	container *di.Container
	tasks     taskstore.Store
	metrics   *metrics.Collector
	logger    logger.Logger
	tp        trace.TracerProvider
	source    string
	now       func() time.Time

	subscribeOnce sync.Once
	subscribeErr  error
	consumeOnce   sync.Once
	consumeErr    error
}

// New creates a manager and freezes the registry.
func New(deps Deps) (*Manager, error) {
	if deps.Registry == nil || deps.Bus == nil {
		return nil, errx.New("[manager]: registry and bus are required", errx.WithCode(CodeInvalidDeps))
	}

	m := &Manager{
		registry:  deps.Registry,
		bus:       deps.Bus,
		domain:    deps.Domain,
		container: deps.Container,
		tasks:     deps.TaskStore,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
		tp:        deps.TracerProvider,
		source:    deps.Source,
		now:       func() time.Time { return time.Now().UTC() },
	}
	if m.logger == nil {
		m.logger = logger.Named("cqrs.manager")
	}
	if m.source == "" {
		m.source = meta.FullServiceName()
	}

	deps.Registry.Build()
	return m, nil
}

// Start binds the event subscribers and, when async actions are registered,
// starts consuming the task channel.
func (m *Manager) Start(_ context.Context) error {
	if err := m.SubscribeToEvents(); err != nil {
		return err
	}
	if !m.registry.HasAsyncHandlers() {
		return nil
	}

	m.consumeOnce.Do(func() {
		m.consumeErr = m.bus.ConsumeTasks(m.ProcessAsyncTask)
	})
	return m.consumeErr
}

// Close closes the bus.
func (m *Manager) Close() error {
	return m.bus.Close()
}

// Execute looks up the handler of the normalized request data of rc and runs it.
// The caller disposes rc.
func (m *Manager) Execute(rc *reqctx.Context) (*cqrs.Response, error) {
	data := rc.Data()
	desc, ok := m.registry.Lookup(data.Schema, data.Action)
	if !ok {
		return nil, errx.New("[manager]: no handler registered for verb",
			errx.WithCode(cqrs.CodeHandlerNotFound),
			errx.WithType(errx.T_NotFound),
			errx.WithDetails(errx.D{"verb": cqrs.Verb(data.Schema, data.Action)}),
		)
	}

	rc.Tracker().TrackAction(desc.Verb())
	return m.Run(rc.Context(), desc, data, rc)
}

// ContextOptions returns the options a request context dispatched by m is built with.
func (m *Manager) ContextOptions() []reqctx.Option {
	opts := []reqctx.Option{
		reqctx.WithContainer(m.container),
		reqctx.WithDomain(m.registry.Domain()),
	}
	if m.tp != nil {
		opts = append(opts, reqctx.WithTracerProvider(m.tp))
	}
	return opts
}

// instance builds the handler of desc in the scope of rc.
func (m *Manager) instance(desc *handler.Descriptor, rc *reqctx.Context) (handler.Handler, error) {
	h, err := desc.New(rc.Scope())
	if err == nil && h == nil {
		err = errx.New("[manager]: handler factory returned nil")
	}
	if err != nil {
		return nil, errx.Wrap(err,
			errx.WithCode(CodeHandlerInstantiation),
			errx.WithDetails(errx.D{"verb": desc.Verb(), "method": desc.MethodName}),
		)
	}
	return h, nil
}

// wrap decorates h with recovery, logging, tracing, metrics and the configured timeout.
func (m *Manager) wrap(desc *handler.Descriptor, h handler.Handler) handler.Handler {
	verb := desc.Verb()
	return wrapper.Chain(h,
		wrapper.NewRecovery(verb),
		wrapper.NewLogger(m.logger, verb),
		wrapper.NewTracing(verb),
		wrapper.NewMetrics(m.metrics, verb, desc.Kind),
		wrapper.NewTimeout(desc.Definition.Timeout),
	)
}
