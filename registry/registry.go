// Package registry indexes handler descriptors.
//
// Descriptors are registered explicitly at startup. Build freezes the
// registry and indexes actions and queries by verb and event subscribers by
// subscription key. After Build the registry is read only and safe for
// concurrent use.
package registry

import (
	"slices"
	"strings"
	"sync"

	"github.com/code19m/errx"
	"github.com/samber/lo"

	"github.com/rise-and-shine/svcore/cqrs"
	"github.com/rise-and-shine/svcore/cqrs/handler"
)

const wildcard = "*"

// Key identifies one event subscription on the bus.
type Key struct {
	Domain          string
	Schema          string
	Action          string
	DistributionKey string
}

// Subscription groups the event descriptors sharing a key, in registration order.
type Subscription struct {
	Key         Key
	Descriptors []*handler.Descriptor
}

type Registry struct {
	defaultDomain string

	mu     sync.RWMutex
	built  bool
	all    []*handler.Descriptor
	byVerb map[string]*handler.Descriptor
	subs   []*Subscription
	subIdx map[Key]*Subscription
}

// New creates a registry whose descriptors default to defaultDomain.
func New(defaultDomain string) *Registry {
	return &Registry{
		defaultDomain: defaultDomain,
		byVerb:        make(map[string]*handler.Descriptor),
		subIdx:        make(map[Key]*Subscription),
	}
}

// Domain returns the default domain of the registry.
func (r *Registry) Domain() string {
	return r.defaultDomain
}

// Register adds a descriptor. It fails after Build, on duplicate verbs and
// on descriptors without a factory.
func (r *Registry) Register(desc handler.Descriptor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.built {
		return errx.New("[registry]: registry is already built", errx.WithCode(CodeRegistryFrozen))
	}
	if desc.New == nil {
		return errx.New("[registry]: descriptor has no handler factory",
			errx.WithCode(CodeInvalidDescriptor),
			errx.WithDetails(errx.D{"method": desc.MethodName}),
		)
	}

	d := normalize(desc, r.defaultDomain)

	switch d.Kind {
	case handler.KindAction, handler.KindQuery:
		if d.Action() == "" {
			return errx.New("[registry]: handler has no name",
				errx.WithCode(CodeInvalidDescriptor),
				errx.WithDetails(errx.D{"kind": string(d.Kind)}),
			)
		}
		key := strings.ToLower(d.Verb())
		if existing, ok := r.byVerb[key]; ok {
			return errx.New("[registry]: verb already registered",
				errx.WithCode(CodeDuplicateVerb),
				errx.WithDetails(errx.D{"verb": d.Verb(), "existing": existing.MethodName}),
			)
		}
		r.byVerb[key] = d
	case handler.KindEvent:
	default:
		return errx.New("[registry]: unknown handler kind",
			errx.WithCode(CodeInvalidDescriptor),
			errx.WithDetails(errx.D{"kind": string(d.Kind)}),
		)
	}

	r.all = append(r.all, d)
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(descs ...handler.Descriptor) *Registry {
	for _, d := range descs {
		if err := r.Register(d); err != nil {
			panic(err)
		}
	}
	return r
}

func normalize(desc handler.Descriptor, defaultDomain string) *handler.Descriptor {
	d := desc
	if d.Domain == "" {
		d.Domain = defaultDomain
	}
	if d.Kind != handler.KindEvent {
		return &d
	}

	def := &d.Definition
	if def.SubscribeToDomain == "" {
		def.SubscribeToDomain = d.Domain
	}
	if def.SubscribeToSchema == "" {
		def.SubscribeToSchema = wildcard
	}
	if def.SubscribeToAction == "" {
		def.SubscribeToAction = wildcard
	}
	if def.SubscribeToAction != wildcard {
		def.SubscribeToAction = strings.ToLower(def.SubscribeToAction)
	}
	if def.DistributionMode == "" {
		def.DistributionMode = handler.DistributionMany
	}
	switch def.DistributionMode {
	case handler.DistributionOnce:
		if def.DistributionKey == "" {
			def.DistributionKey = d.MethodName
		}
	case handler.DistributionMany:
		def.DistributionKey = ""
	}
	return &d
}

// Build freezes the registry and indexes event subscriptions. Calling it twice is a no-op.
func (r *Registry) Build() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.built {
		return
	}
	r.built = true

	for _, d := range r.all {
		if d.Kind != handler.KindEvent {
			continue
		}
		key := keyOf(d)
		sub, ok := r.subIdx[key]
		if !ok {
			sub = &Subscription{Key: key}
			r.subIdx[key] = sub
			r.subs = append(r.subs, sub)
		}
		sub.Descriptors = append(sub.Descriptors, d)
	}
}

func keyOf(d *handler.Descriptor) Key {
	return Key{
		Domain:          d.Definition.SubscribeToDomain,
		Schema:          d.Definition.SubscribeToSchema,
		Action:          d.Definition.SubscribeToAction,
		DistributionKey: d.Definition.DistributionKey,
	}
}

// Lookup returns the action or query registered for schema and action, ignoring case.
func (r *Registry) Lookup(schema, action string) (*handler.Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.byVerb[strings.ToLower(cqrs.Verb(schema, action))]
	return d, ok
}

// Subscriptions returns the event subscriptions in the order they were first registered.
func (r *Registry) Subscriptions() []Subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return lo.Map(r.subs, func(s *Subscription, _ int) Subscription {
		return Subscription{Key: s.Key, Descriptors: slices.Clone(s.Descriptors)}
	})
}

// Handlers returns the descriptors of key that accept evt, in registration order.
func (r *Registry) Handlers(key Key, evt *cqrs.Event) []*handler.Descriptor {
	r.mu.RLock()
	sub, ok := r.subIdx[key]
	r.mu.RUnlock()
	if !ok {
		return nil
	}

	return lo.Filter(sub.Descriptors, func(d *handler.Descriptor, _ int) bool {
		return d.Definition.Filter == nil || d.Definition.Filter(evt)
	})
}

// HasAsyncHandlers reports whether any action runs on the task channel.
func (r *Registry) HasAsyncHandlers() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return lo.SomeBy(r.all, func(d *handler.Descriptor) bool {
		return d.Kind == handler.KindAction && d.Definition.Async
	})
}

// All returns every registered descriptor in registration order.
func (r *Registry) All() []*handler.Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.all)
}
