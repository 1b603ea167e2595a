// Package handler defines the contracts between the dispatch engine and
// application code: handler instances, their definitions and the descriptors
// the registry indexes.
package handler

import (
	"context"
	"strings"
	"time"

	"github.com/rise-and-shine/svcore/cqrs"
	"github.com/rise-and-shine/svcore/di"
	"github.com/rise-and-shine/svcore/reqctx"
)

// Kind is the role of a handler.
type Kind string

const (
	KindAction Kind = "action"
	KindQuery  Kind = "query"
	KindEvent  Kind = "event"
)

// DistributionMode controls how events reach competing subscribers.
type DistributionMode string

const (
	// DistributionMany delivers every event to every subscriber.
	DistributionMany DistributionMode = "many"

	// DistributionOnce delivers each event to one member of the distribution key group.
	DistributionOnce DistributionMode = "once"
)

// Handler executes one operation. params are the coerced input, or the raw
// params when the handler declares no input schema.
//
// The result is either a *cqrs.Response or a plain value wrapped by the caller.
type Handler interface {
	Handle(ctx context.Context, rc *reqctx.Context, params any) (any, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, rc *reqctx.Context, params any) (any, error)

func (f HandlerFunc) Handle(ctx context.Context, rc *reqctx.Context, params any) (any, error) {
	return f(ctx, rc, params)
}

// InputValidator is implemented by handlers with their own input checks.
// It runs after schema validation and receives the coerced params.
type InputValidator interface {
	Validate(ctx context.Context, inputSchema string, params any, action string) []cqrs.ValidationError
}

// EventFactory transforms the outcome event of a handler before it is published.
// Returning nil suppresses the event.
type EventFactory func(rc *reqctx.Context, evt *cqrs.Event) *cqrs.Event

// EventFilter is a custom predicate of an event subscriber.
type EventFilter func(evt *cqrs.Event) bool

// Definition is the static configuration of a handler.
type Definition struct {
	// Name overrides the method name in the verb.
	Name        string
	Schema      string
	InputSchema string
	Description string

	// Async handlers run on the task channel and answer with a Pending acknowledgement.
	Async bool

	// EventMode defaults to successOnly for sync handlers and always for async ones.
	EventMode cqrs.EventMode

	// SkipDataValidation defaults to true for the delete action only.
	SkipDataValidation *bool

	EventFactory EventFactory

	// Event subscribers only. Empty schema and action mean every one.
	SubscribeToDomain string
	SubscribeToSchema string
	SubscribeToAction string
	DistributionMode DistributionMode
	// DistributionKey names the competing group of a DistributionOnce
	// subscriber and defaults to its method name. Subscribers with the same
	// key and the same domain, schema and action share one bus subscription:
	// each event is delivered to it once and all of them run, in registration
	// order. Same-key subscribers with different filters compete and each event
	// goes to one of those accepting it.
	DistributionKey string
	Filter          EventFilter

	// Timeout bounds the handler execution when positive.
	Timeout time.Duration
}

// Factory builds a handler instance from a request scope.
type Factory func(scope *di.Scope) (Handler, error)

// Static returns a Factory that always yields h.
func Static(h Handler) Factory {
	return func(*di.Scope) (Handler, error) {
		return h, nil
	}
}

// Descriptor ties a handler factory to its definition.
type Descriptor struct {
	Kind       Kind
	Domain     string
	MethodName string
	Definition Definition
	New        Factory
}

// Action returns the action name: the definition name or the method name, lower cased.
func (d *Descriptor) Action() string {
	name := d.Definition.Name
	if name == "" {
		name = d.MethodName
	}
	return strings.ToLower(name)
}

// Verb returns schema.action, or the bare action when no schema is set.
func (d *Descriptor) Verb() string {
	return cqrs.Verb(d.Definition.Schema, d.Action())
}

// SkipValidation reports whether input validation is skipped.
func (d *Descriptor) SkipValidation() bool {
	if d.Definition.SkipDataValidation != nil {
		return *d.Definition.SkipDataValidation
	}
	return d.Action() == "delete"
}

// EventMode returns the configured mode or the default for the execution path.
func (d *Descriptor) EventMode(async bool) cqrs.EventMode {
	if d.Definition.EventMode != "" {
		return d.Definition.EventMode
	}
	if async {
		return cqrs.EventModeAlways
	}
	return cqrs.EventModeSuccessOnly
}
