package bus

import (
	"context"
	"slices"
	"sync"

	"github.com/rise-and-shine/svcore/cqrs"
)

// Filter accepts or rejects an event.
type Filter func(evt *cqrs.Event) bool

// Queue is a filtered view of a domain event stream. Filters run in the order
// they were added and a rejected event is never seen by later filters.
type Queue struct {
	bus     *Bus
	domain  string
	key     string
	filters []Filter
}

// Domain returns the domain the queue reads from.
func (q *Queue) Domain() string { return q.domain }

// DistributionKey returns the key subscribers of the queue compete under, if any.
func (q *Queue) DistributionKey() string { return q.key }

// Filter returns a copy of the queue narrowed by f.
func (q *Queue) Filter(f Filter) *Queue {
	next := *q
	next.filters = append(slices.Clip(q.filters), f)
	return &next
}

// FilterSchema keeps events of schema. "*" keeps everything.
func (q *Queue) FilterSchema(schema string) *Queue {
	return q.Filter(func(evt *cqrs.Event) bool { return evt.MatchesSchema(schema) })
}

// FilterAction keeps events of action, ignoring case. "*" and events without an action pass.
func (q *Queue) FilterAction(action string) *Queue {
	return q.Filter(func(evt *cqrs.Event) bool { return evt.MatchesAction(action) })
}

// Accepts reports whether evt passes every filter of the queue.
func (q *Queue) Accepts(evt *cqrs.Event) bool {
	for _, f := range q.filters {
		if !f(evt) {
			return false
		}
	}
	return true
}

// Subscribe attaches h to the queue until the bus is closed.
func (q *Queue) Subscribe(h EventHandler) error {
	return q.bus.subscribe(q, h)
}

type member struct {
	queue   *Queue
	handler EventHandler
}

// group is the set of local subscribers sharing a distribution key. Each
// event goes to one accepting member, picked round robin.
type group struct {
	mu      sync.Mutex
	members []*member
	next    int
}

func (g *group) add(m *member) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.members = append(g.members, m)
}

func (g *group) pick(evt *cqrs.Event) *member {
	g.mu.Lock()
	defer g.mu.Unlock()

	n := len(g.members)
	for i := range n {
		idx := (g.next + i) % n
		if g.members[idx].queue.Accepts(evt) {
			g.next = idx + 1
			return g.members[idx]
		}
	}
	return nil
}

func (g *group) dispatch(ctx context.Context, evt *cqrs.Event) error {
	m := g.pick(evt)
	if m == nil {
		return nil
	}
	return m.handler(ctx, evt)
}
