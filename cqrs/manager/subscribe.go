package manager

import (
	"context"
	"fmt"

	"github.com/code19m/errx"

	"github.com/rise-and-shine/svcore/cqrs"
	"github.com/rise-and-shine/svcore/cqrs/handler"
	"github.com/rise-and-shine/svcore/registry"
	"github.com/rise-and-shine/svcore/reqctx"
)

// SubscribeToEvents opens one bus subscription per registry subscription key.
// Only the first call binds, later calls return the first result.
func (m *Manager) SubscribeToEvents() error {
	m.subscribeOnce.Do(func() {
		for _, sub := range m.registry.Subscriptions() {
			key := sub.Key
			q := m.bus.EventQueue(key.Domain, key.DistributionKey).
				FilterSchema(key.Schema).
				FilterAction(key.Action)

			err := q.Subscribe(func(ctx context.Context, evt *cqrs.Event) error {
				m.dispatchEvent(ctx, key, evt)
				return nil
			})
			if err != nil {
				m.subscribeErr = errx.Wrap(err, errx.WithDetails(errx.D{
					"domain": key.Domain,
					"schema": key.Schema,
					"action": key.Action,
				}))
				return
			}
		}
	})
	return m.subscribeErr
}

// dispatchEvent runs every subscriber of key accepting evt, in registration order.
func (m *Manager) dispatchEvent(ctx context.Context, key registry.Key, evt *cqrs.Event) {
	for _, desc := range m.registry.Handlers(key, evt) {
		m.invokeSubscriber(ctx, desc, evt)
	}
}

// invokeSubscriber runs one subscriber in its own event context. Its failure
// is logged and recorded and never reaches the other subscribers.
func (m *Manager) invokeSubscriber(ctx context.Context, desc *handler.Descriptor, evt *cqrs.Event) {
	rc, err := reqctx.New(ctx, reqctx.KindEvent, evt, m.ContextOptions()...)
	if err != nil {
		m.logger.WithContext(ctx).Errorx(err)
		m.metrics.RecordSubscriberFailure(evt.Domain, desc.MethodName)
		return
	}
	defer rc.Dispose()

	defer func() {
		if r := recover(); r != nil {
			rc.LogError(errx.New("[manager]: event handler panicked", errx.WithDetails(errx.D{
				"panic_values": fmt.Sprintf("%v", r),
				"method":       desc.MethodName,
			})), "event handler panicked")
			m.metrics.RecordSubscriberFailure(evt.Domain, desc.MethodName)
		}
	}()

	h, err := m.instance(desc, rc)
	if err != nil {
		rc.LogError(err, "unable to create event handler")
		m.metrics.RecordSubscriberFailure(evt.Domain, desc.MethodName)
		return
	}

	if _, err = m.wrap(desc, h).Handle(rc.Context(), rc, m.coerce(desc, evt.Value)); err != nil {
		m.metrics.RecordSubscriberFailure(evt.Domain, desc.MethodName)
		return
	}

	m.flushCustomEvents(rc.Context(), desc, rc.Data(), rc)
}
