// Package reqctx holds the execution state of one inbound operation.
//
// A Context binds the normalized request data, a tracker, a dependency scope
// and a buffer of custom events raised by the handler. It is built from a
// transport call, a delivered event, a resumed async task or a test, and must
// be disposed exactly once when the operation ends.
package reqctx

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"

	"github.com/code19m/errx"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/rise-and-shine/svcore/cqrs"
	"github.com/rise-and-shine/svcore/di"
	"github.com/rise-and-shine/svcore/meta"
	"github.com/rise-and-shine/svcore/observability/logger"
	"github.com/rise-and-shine/svcore/pagination"
	"github.com/rise-and-shine/svcore/tracker"
)

// Kind tells where a Context comes from.
type Kind string

const (
	KindRequest   Kind = "request"
	KindEvent     Kind = "event"
	KindAsyncTask Kind = "asyncTask"
	KindTest      Kind = "test"
)

const (
	HeaderTenant        = "X-Tenant"
	HeaderCorrelationID = "X-Correlation-Id"
	HeaderParentID      = "X-Parent-Id"
	HeaderForwardedHost = "X-Forwarded-Host"
	HeaderHost          = "Host"

	// DefaultTenant is used when neither the transport nor the user names one.
	DefaultTenant = "default"
)

// TransportRequest is the transport neutral view of a live call.
type TransportRequest struct {
	Method string
	URL    *url.URL
	Header http.Header

	// Body is the decoded JSON body, nil when the call has none.
	Body any
}

// Context is the unit of execution state of one operation.
type Context struct {
	kind Kind

	// root is set on command contexts and owns the shared state.
	root *Context

	tracker *tracker.Tracker
	data    *cqrs.RequestData
	raw     *TransportRequest
	event   *cqrs.Event
	task    *cqrs.AsyncTaskData
	scope   *di.Scope
	paging  []pagination.Option

	mu           sync.Mutex
	user         *cqrs.UserContext
	tenant       string
	customEvents []cqrs.CustomEvent

	disposed atomic.Bool
}

// New builds a Context of kind from raw.
//
// raw is a *TransportRequest for KindRequest, a *cqrs.Event for KindEvent, a
// *cqrs.AsyncTaskData for KindAsyncTask and an optional *cqrs.RequestData for KindTest.
// Transport calls must be normalized before dispatch.
func New(ctx context.Context, kind Kind, raw any, opts ...Option) (*Context, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	c := &Context{
		kind:   kind,
		user:   o.user,
		tenant: o.tenant,
		paging: o.paging,
	}

	var (
		id   tracker.ID
		name string
		tk   = tracker.KindRequest
	)

	switch kind {
	case KindRequest:
		req, ok := raw.(*TransportRequest)
		if !ok || req == nil || req.URL == nil {
			return nil, invalidRaw(kind)
		}
		if req.Header == nil {
			req.Header = http.Header{}
		}
		c.raw = req
		if t := req.Header.Get(HeaderTenant); t != "" {
			c.tenant = t
		}
		id = tracker.ID{
			CorrelationID: firstNonEmpty(req.Header.Get(HeaderCorrelationID), o.correlationID),
			ParentID:      req.Header.Get(HeaderParentID),
		}
		c.data = &cqrs.RequestData{
			CorrelationID: id.CorrelationID,
			Domain:        o.domain,
			PageSize:      pagination.DefaultPageSize,
		}
		name = req.Method + " " + req.URL.Path

	case KindEvent:
		evt, ok := raw.(*cqrs.Event)
		if !ok || evt == nil {
			return nil, invalidRaw(kind)
		}
		c.event = evt
		c.data = &cqrs.RequestData{
			Verb:          evt.Verb,
			CorrelationID: evt.CorrelationID,
			Domain:        evt.Domain,
			Schema:        evt.Schema,
			Action:        evt.Action,
			Params:        evt.Value,
		}
		if c.user == nil && evt.UserContext != nil {
			u := *evt.UserContext
			c.user = &u
		}
		id = tracker.ID{CorrelationID: evt.CorrelationID, ParentID: evt.CorrelationID}
		name = evt.Verb
		tk = tracker.KindEvent

	case KindAsyncTask:
		task, ok := raw.(*cqrs.AsyncTaskData)
		if !ok || task == nil {
			return nil, invalidRaw(kind)
		}
		c.task = task
		data := task.RequestData
		c.data = &data
		if c.user == nil && task.UserContext != nil {
			u := *task.UserContext
			c.user = &u
		}
		id = tracker.ID{CorrelationID: task.CorrelationID}
		name = task.Verb
		tk = tracker.KindTask
		ctx = context.WithValue(ctx, meta.TaskID, task.TaskID)

	case KindTest:
		c.data = &cqrs.RequestData{PageSize: pagination.DefaultPageSize}
		if data, ok := raw.(*cqrs.RequestData); ok && data != nil {
			c.data = data.Clone()
		}
		id = tracker.ID{CorrelationID: firstNonEmpty(c.data.CorrelationID, o.correlationID)}
		name = "test"
		o.tp = noop.NewTracerProvider()

	default:
		return nil, invalidRaw(kind)
	}

	if c.user != nil && c.tenant == "" {
		c.tenant = c.user.Tenant
	}
	if c.tenant == "" {
		c.tenant = DefaultTenant
	}
	ctx = context.WithValue(ctx, meta.Tenant, c.tenant)
	if c.user != nil && c.user.ID != "" {
		ctx = context.WithValue(ctx, meta.RequestUserID, c.user.ID)
	}

	trackerOpts := []tracker.Option{}
	if o.tp != nil {
		trackerOpts = append(trackerOpts, tracker.WithTracerProvider(o.tp))
	}
	if o.log != nil {
		trackerOpts = append(trackerOpts, tracker.WithLogger(o.log))
	}
	c.tracker = tracker.New(ctx, tk, id, name, trackerOpts...)
	c.data.CorrelationID = c.tracker.ID().CorrelationID
	if c.data.Verb != "" {
		c.tracker.TrackAction(c.data.Verb)
	}

	c.scope = o.container.NewScope()

	return c, nil
}

func invalidRaw(kind Kind) error {
	return errx.New("[reqctx]: raw data does not match context kind",
		errx.WithCode(CodeInvalidRawData),
		errx.WithDetails(errx.D{"kind": string(kind)}),
	)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// CreateCommandRequest derives a context for a nested call. It shares the
// user, scope, request data and custom event buffer of c and owns a child tracker.
func (c *Context) CreateCommandRequest(name string) *Context {
	root := c.owner()
	return &Context{
		kind:    c.kind,
		root:    root,
		tracker: c.tracker.CreateCommandTracker(name),
		data:    c.data,
		raw:     c.raw,
		event:   c.event,
		task:    c.task,
		scope:   root.scope,
		paging:  root.paging,
	}
}

// CreateCustomTracker starts a child tracker under the context tracker.
// The caller disposes it.
func (c *Context) CreateCustomTracker(name string, tags map[string]string) *tracker.Tracker {
	return c.tracker.CreateCustomTracker(name, tags)
}

func (c *Context) owner() *Context {
	if c.root != nil {
		return c.root
	}
	return c
}

// SendCustomEvent buffers an application raised event.
// An empty schema means the schema of the request.
func (c *Context) SendCustomEvent(action string, params any, schema string) error {
	if action == "" {
		return errx.New("[reqctx]: action is required for custom event",
			errx.WithCode(cqrs.CodeCustomEventActionRequired),
			errx.WithType(errx.T_Validation),
		)
	}

	o := c.owner()
	o.mu.Lock()
	defer o.mu.Unlock()
	o.customEvents = append(o.customEvents, cqrs.CustomEvent{Action: action, Schema: schema, Params: params})
	return nil
}

// FlushCustomEvents returns the buffered custom events and clears the buffer.
func (c *Context) FlushCustomEvents() []cqrs.CustomEvent {
	o := c.owner()
	o.mu.Lock()
	defer o.mu.Unlock()
	events := o.customEvents
	o.customEvents = nil
	return events
}

// Dispose releases the tracker and, for root contexts, the dependency scope.
// Later calls are no-ops.
func (c *Context) Dispose() {
	if !c.disposed.CompareAndSwap(false, true) {
		return
	}
	c.tracker.Dispose()
	if c.root == nil {
		if err := c.scope.Dispose(); err != nil {
			logger.Named("reqctx").WithContext(c.tracker.Context()).Warnx(err)
		}
	}
}

func (c *Context) Disposed() bool {
	return c.disposed.Load()
}

func (c *Context) Kind() Kind { return c.kind }

// Data returns the request data. Handlers must treat it as read only.
func (c *Context) Data() *cqrs.RequestData { return c.data }

// Event returns the delivered event of an event context.
func (c *Context) Event() *cqrs.Event { return c.event }

// Task returns the task of an async task context.
func (c *Context) Task() *cqrs.AsyncTaskData { return c.task }

func (c *Context) Tracker() *tracker.Tracker { return c.tracker }

func (c *Context) Scope() *di.Scope { return c.scope }

// Context returns the context.Context handlers run with.
func (c *Context) Context() context.Context { return c.tracker.Context() }

// Logger returns a logger bound to the context, a no-op one once disposed.
func (c *Context) Logger() logger.Logger { return c.tracker.Logger() }

func (c *Context) LogError(err error, msg string) { c.tracker.LogError(err, msg) }

func (c *Context) LogInfo(msg string) { c.tracker.LogInfo(msg) }

func (c *Context) LogVerbose(msg string) { c.tracker.LogVerbose(msg) }

// User returns the security identity, nil for anonymous calls.
func (c *Context) User() *cqrs.UserContext {
	o := c.owner()
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.user
}

// SetUser replaces the security identity. A user tenant replaces the context tenant.
func (c *Context) SetUser(u *cqrs.UserContext) {
	o := c.owner()
	o.mu.Lock()
	defer o.mu.Unlock()
	o.user = u
	if u != nil && u.Tenant != "" {
		o.tenant = u.Tenant
	}
}

func (c *Context) Tenant() string {
	o := c.owner()
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.tenant
}

// HostName returns the forwarded host or the host of a transport call.
func (c *Context) HostName() string {
	if c.raw == nil {
		return ""
	}
	if h := c.raw.Header.Get(HeaderForwardedHost); h != "" {
		return h
	}
	if h := c.raw.Header.Get(HeaderHost); h != "" {
		return h
	}
	return c.raw.URL.Host
}

// RequestDataObject returns a snapshot of the request data without the raw body.
func (c *Context) RequestDataObject() cqrs.RequestData {
	return cqrs.RequestData{
		Verb:          c.data.Verb,
		CorrelationID: c.data.CorrelationID,
		Domain:        c.data.Domain,
		Schema:        c.data.Schema,
		Action:        c.data.Action,
		Params:        c.data.Params,
		InputSchema:   c.data.InputSchema,
		Page:          c.data.Page,
		PageSize:      c.data.PageSize,
	}
}
