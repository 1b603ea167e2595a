// Package tracker keeps the span hierarchy of one operation hop.
//
// A Tracker wraps an OpenTelemetry span and the identifiers the rest of the
// runtime propagates: the correlation id shared by a whole causal chain and
// the span/parent ids forming the per hop tree.
package tracker

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/rise-and-shine/svcore/meta"
	"github.com/rise-and-shine/svcore/observability/logger"
)

const tracerName = "github.com/rise-and-shine/svcore/tracker"

// Kind tells what started a tracker.
type Kind string

const (
	KindRequest Kind = "request"
	KindCommand Kind = "command"
	KindEvent   Kind = "event"
	KindTask    Kind = "task"
	KindCustom  Kind = "custom"
)

// ID identifies one hop of a causal chain.
type ID struct {
	CorrelationID string
	SpanID        string
	ParentID      string
}

// Tracker is the tracing bookkeeping of one request, command, event or task.
// All methods are safe for concurrent use and become no-ops after Dispose.
type Tracker struct {
	id   ID
	kind Kind
	name string

	tp   trace.TracerProvider
	log  logger.Logger
	span trace.Span

	mu   sync.RWMutex
	ctx  context.Context
	verb string

	disposed atomic.Bool
}

type options struct {
	tp   trace.TracerProvider
	log  logger.Logger
	tags map[string]string
}

// Option configures a Tracker.
type Option func(*options)

// WithTracerProvider overrides the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		o.tp = tp
	}
}

// WithLogger sets the logger used by the Log* methods.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		o.log = l
	}
}

// WithTags adds span attributes at start.
func WithTags(tags map[string]string) Option {
	return func(o *options) {
		o.tags = tags
	}
}

// New starts a tracker of kind named name.
//
// A missing correlation id is generated. When ctx carries no span and both the
// correlation id and the parent id are valid W3C ids, the span continues the
// remote trace they describe.
func New(ctx context.Context, kind Kind, id ID, name string, opts ...Option) *Tracker {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.tp == nil {
		o.tp = otel.GetTracerProvider()
	}
	if o.log == nil {
		o.log = logger.Named("tracker")
	}

	if id.CorrelationID == "" {
		id.CorrelationID = NewCorrelationID()
	}

	if !trace.SpanContextFromContext(ctx).IsValid() {
		if remote, ok := remoteParent(id); ok {
			ctx = trace.ContextWithRemoteSpanContext(ctx, remote)
		}
	}

	attrs := []attribute.KeyValue{
		attribute.String("correlation_id", id.CorrelationID),
		attribute.String("tracker.kind", string(kind)),
	}
	for k, v := range o.tags {
		attrs = append(attrs, attribute.String(k, v))
	}

	parent := trace.SpanContextFromContext(ctx)
	ctx, span := o.tp.Tracer(tracerName).Start(ctx, spanName(kind, name),
		trace.WithSpanKind(spanKind(kind)),
		trace.WithAttributes(attrs...),
	)

	// non recording tracers hand back the parent span context
	sc := span.SpanContext()
	if sc.SpanID().IsValid() && sc.SpanID() != parent.SpanID() {
		id.SpanID = sc.SpanID().String()
	} else {
		id.SpanID = newSpanID()
	}

	md := map[meta.ContextKey]string{
		meta.CorrelationID: id.CorrelationID,
		meta.SpanID:        id.SpanID,
		meta.ParentID:      id.ParentID,
	}
	if sc.TraceID().IsValid() {
		md[meta.TraceID] = sc.TraceID().String()
	}

	return &Tracker{
		id:   id,
		kind: kind,
		name: name,
		tp:   o.tp,
		log:  o.log,
		span: span,
		ctx:  meta.InjectMetaToContext(ctx, md),
	}
}

// NewCorrelationID returns a random 32 hex id usable as a W3C trace id.
func NewCorrelationID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func newSpanID() string {
	return NewCorrelationID()[:16]
}

func remoteParent(id ID) (trace.SpanContext, bool) {
	traceID, err := trace.TraceIDFromHex(id.CorrelationID)
	if err != nil {
		return trace.SpanContext{}, false
	}
	spanID, err := trace.SpanIDFromHex(id.ParentID)
	if err != nil {
		return trace.SpanContext{}, false
	}
	return trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	}), true
}

func spanName(kind Kind, name string) string {
	//nolint:exhaustive // other kinds use the name as is
	switch kind {
	case KindEvent:
		return "Event " + name
	case KindTask:
		return "Async " + name
	default:
		return name
	}
}

func spanKind(kind Kind) trace.SpanKind {
	//nolint:exhaustive // other kinds are internal
	switch kind {
	case KindRequest:
		return trace.SpanKindServer
	case KindEvent, KindTask:
		return trace.SpanKindConsumer
	default:
		return trace.SpanKindInternal
	}
}

// ID returns the identifiers of this hop.
func (t *Tracker) ID() ID { return t.id }

func (t *Tracker) Kind() Kind { return t.kind }

// Verb returns the last verb passed to TrackAction.
func (t *Tracker) Verb() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.verb
}

// Context returns a context carrying the span and the correlation metadata.
func (t *Tracker) Context() context.Context {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.ctx
}

// CreateCommandTracker starts a child tracker for a nested call.
func (t *Tracker) CreateCommandTracker(name string) *Tracker {
	return t.child(KindCommand, name, nil)
}

// CreateCustomTracker starts a child tracker carrying tags.
func (t *Tracker) CreateCustomTracker(name string, tags map[string]string) *Tracker {
	return t.child(KindCustom, name, tags)
}

func (t *Tracker) child(kind Kind, name string, tags map[string]string) *Tracker {
	return New(t.Context(), kind, ID{
		CorrelationID: t.id.CorrelationID,
		ParentID:      t.id.SpanID,
	}, name, WithTracerProvider(t.tp), WithLogger(t.log), WithTags(tags))
}

// TrackAction records the verb being executed and renames the span after it.
func (t *Tracker) TrackAction(verb string) {
	if t.disposed.Load() || verb == "" {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.verb = verb
	t.ctx = context.WithValue(t.ctx, meta.Verb, verb)
	t.span.SetName(spanName(t.kind, verb))
	t.span.SetAttributes(attribute.String("verb", verb))
}

// AddTag attaches an attribute to the span.
func (t *Tracker) AddTag(key string, value any) {
	if t.disposed.Load() {
		return
	}
	t.span.SetAttributes(attribute.String(key, fmt.Sprint(value)))
}

// LogError records err on the span and logs it.
func (t *Tracker) LogError(err error, msg string) {
	if t.disposed.Load() || err == nil {
		return
	}
	t.span.RecordError(err)
	t.span.SetStatus(codes.Error, err.Error())
	t.Logger().With("message", msg).Errorx(err)
}

// LogInfo adds an event to the span and logs msg at info level.
func (t *Tracker) LogInfo(msg string) {
	if t.disposed.Load() {
		return
	}
	t.span.AddEvent(msg)
	t.Logger().Info(msg)
}

// LogVerbose logs msg at debug level.
func (t *Tracker) LogVerbose(msg string) {
	if t.disposed.Load() {
		return
	}
	t.Logger().Debug(msg)
}

// Logger returns a logger bound to the tracker context, or a no-op logger once disposed.
func (t *Tracker) Logger() logger.Logger {
	if t.disposed.Load() {
		return logger.Nop()
	}
	return t.log.WithContext(t.Context())
}

// Dispose ends the span. Only the first call has an effect.
func (t *Tracker) Dispose() {
	if !t.disposed.CompareAndSwap(false, true) {
		return
	}
	t.span.End()
}

func (t *Tracker) Disposed() bool {
	return t.disposed.Load()
}
