package manager

import (
	"context"

	"github.com/rise-and-shine/svcore/cqrs"
	"github.com/rise-and-shine/svcore/cqrs/handler"
	"github.com/rise-and-shine/svcore/mask"
	"github.com/rise-and-shine/svcore/reqctx"
)

// newEvent builds the outcome event of desc. value is redacted.
func (m *Manager) newEvent(
	desc *handler.Descriptor,
	data *cqrs.RequestData,
	rc *reqctx.Context,
	status cqrs.Status,
	value any,
	cause error,
) *cqrs.Event {
	evt := &cqrs.Event{
		Verb:          cqrs.Verb(data.Schema, data.Action),
		CorrelationID: data.CorrelationID,
		Action:        data.Action,
		Schema:        data.Schema,
		Domain:        eventDomain(desc, data),
		Source:        m.source,
		StartedAt:     m.now(),
		Value:         m.redact(desc, value),
		UserContext:   publicUser(rc.User()),
		Status:        status,
	}
	if evt.CorrelationID == "" {
		evt.CorrelationID = rc.Tracker().ID().CorrelationID
	}
	if cause != nil {
		evt.Error = cause.Error()
	}
	return evt
}

func eventDomain(desc *handler.Descriptor, data *cqrs.RequestData) string {
	if desc.Domain != "" {
		return desc.Domain
	}
	return data.Domain
}

// publicUser strips the credentials from u before it leaves the process on an event.
func publicUser(u *cqrs.UserContext) *cqrs.UserContext {
	if u == nil {
		return nil
	}
	c := *u
	c.Bearer = ""
	return &c
}

// redact hides the sensitive fields of value using the output schema of desc,
// or the mask tags of value when the schema is unknown.
func (m *Manager) redact(desc *handler.Descriptor, value any) any {
	if value == nil {
		return nil
	}
	if s := m.schema(desc.Definition.Schema); s != nil {
		return s.Redact(value)
	}
	return mask.Redact(value)
}

// publish runs the event factory of desc and sends the result. Publish
// failures are logged, the outcome of the handler stands.
func (m *Manager) publish(ctx context.Context, desc *handler.Descriptor, rc *reqctx.Context, evt *cqrs.Event) {
	if desc.Definition.EventFactory != nil {
		evt = desc.Definition.EventFactory(rc, evt)
	}
	if evt == nil {
		return
	}
	m.send(ctx, evt)
}

func (m *Manager) send(ctx context.Context, evt *cqrs.Event) {
	if err := m.bus.SendEvent(ctx, evt); err != nil {
		m.logger.WithContext(ctx).With("verb", evt.Verb, "status", evt.Status).Errorx(err)
	}
}

// flushCustomEvents publishes the events buffered on rc as Pending events.
func (m *Manager) flushCustomEvents(ctx context.Context, desc *handler.Descriptor, data *cqrs.RequestData, rc *reqctx.Context) {
	for _, ce := range rc.FlushCustomEvents() {
		schemaName := ce.Schema
		if schemaName == "" {
			schemaName = data.Schema
		}

		evt := &cqrs.Event{
			Verb:          cqrs.Verb(schemaName, ce.Action),
			CorrelationID: data.CorrelationID,
			Action:        ce.Action,
			Schema:        schemaName,
			Domain:        eventDomain(desc, data),
			Source:        m.source,
			StartedAt:     m.now(),
			UserContext:   publicUser(rc.User()),
			Status:        cqrs.StatusPending,
		}
		if ce.Params != nil {
			evt.Value = mask.Redact(ce.Params)
			if s := m.schema(schemaName); s != nil {
				evt.Value = s.Redact(ce.Params)
			}
		}
		m.send(ctx, evt)
	}
}
