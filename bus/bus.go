// Package bus carries outcome events and async tasks between the manager and
// its subscribers on top of watermill publishers and subscribers.
//
// Events are published on one topic per domain, tasks on one topic per
// service. Any watermill transport can be plugged in: the in-process
// gochannel pub/sub, Kafka or Postgres.
package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/code19m/errx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/rise-and-shine/svcore/cqrs"
	"github.com/rise-and-shine/svcore/observability/logger"
	"github.com/rise-and-shine/svcore/observability/metrics"
)

const (
	eventTopicPrefix = "events."
	taskTopicPrefix  = "tasks."

	MetaDomain        = "domain"
	MetaVerb          = "verb"
	MetaStatus        = "status"
	MetaCorrelationID = "correlation_id"
	MetaTaskID        = "task_id"
	// MetaPartitionKey is read by the kafka marshaler to keep a causal chain on one partition.
	MetaPartitionKey = "partition_key"
)

// EventTopic returns the topic events of domain are published on.
func EventTopic(domain string) string { return eventTopicPrefix + domain }

// TaskTopic returns the topic async tasks of service are pushed on.
func TaskTopic(service string) string { return taskTopicPrefix + service }

// SubscriberFactory creates a subscriber that joins consumerGroup.
// Subscribers sharing a group compete for messages, distinct groups each see every message.
type SubscriberFactory func(consumerGroup string) (message.Subscriber, error)

// EventHandler consumes one event.
type EventHandler func(ctx context.Context, evt *cqrs.Event) error

// TaskHandler consumes one async task.
type TaskHandler func(ctx context.Context, task *cqrs.AsyncTaskData) error

type Bus struct {
	serviceName     string
	publisher       message.Publisher
	subscribers     SubscriberFactory
	taskPublisher   message.Publisher
	taskSubscribers SubscriberFactory
	logger          logger.Logger
	metrics         *metrics.Collector

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed atomic.Bool

	mu     sync.Mutex
	groups map[string]*group
	opened []message.Subscriber
}

// New creates a bus publishing through pub and subscribing through subs.
// The task channel uses the same transport unless WithTaskTransport is given.
func New(serviceName string, pub message.Publisher, subs SubscriberFactory, opts ...Option) *Bus {
	o := resolveOptions(opts)

	b := &Bus{
		serviceName:     serviceName,
		publisher:       pub,
		subscribers:     subs,
		taskPublisher:   pub,
		taskSubscribers: subs,
		logger:          o.logger,
		metrics:         o.metrics,
		groups:          make(map[string]*group),
	}
	if o.taskPublisher != nil && o.taskSubscribers != nil {
		b.taskPublisher = o.taskPublisher
		b.taskSubscribers = o.taskSubscribers
	}
	b.ctx, b.cancel = context.WithCancel(context.Background())
	return b
}

// NewInProcess creates a bus on a watermill gochannel pub/sub. Messages never
// leave the process and are lost for topics nobody subscribed to yet.
func NewInProcess(serviceName string, opts ...Option) *Bus {
	o := resolveOptions(opts)
	ps := gochannel.NewGoChannel(gochannel.Config{}, NewLoggerAdapter(o.logger.Named("gochannel")))

	// the pub/sub is closed once, through the publisher
	subs := func(string) (message.Subscriber, error) {
		return sharedSubscriber{ps}, nil
	}
	return New(serviceName, ps, subs, opts...)
}

type sharedSubscriber struct {
	message.Subscriber
}

func (sharedSubscriber) Close() error { return nil }

func resolveOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logger.Named("bus")
	}
	return o
}

// ServiceName returns the service the task channel belongs to.
func (b *Bus) ServiceName() string { return b.serviceName }

// SendEvent publishes evt on its domain topic.
func (b *Bus) SendEvent(ctx context.Context, evt *cqrs.Event) error {
	if evt == nil || evt.Domain == "" {
		return errx.New("[bus]: event has no domain", errx.WithCode(CodeInvalidEvent))
	}

	msg, err := b.newMessage(ctx, evt, evt.CorrelationID)
	if err != nil {
		return err
	}
	msg.Metadata.Set(MetaDomain, evt.Domain)
	msg.Metadata.Set(MetaVerb, evt.Verb)
	msg.Metadata.Set(MetaStatus, string(evt.Status))

	err = b.publish(b.publisher, EventTopic(evt.Domain), msg)
	b.metrics.RecordEventPublished(evt.Domain, string(evt.Status), err)
	return err
}

// PushTask enqueues task on the service task channel.
func (b *Bus) PushTask(ctx context.Context, task *cqrs.AsyncTaskData) error {
	if task == nil || task.TaskID == "" {
		return errx.New("[bus]: task has no id", errx.WithCode(CodeInvalidEvent))
	}

	msg, err := b.newMessage(ctx, task, task.CorrelationID)
	if err != nil {
		return err
	}
	msg.Metadata.Set(MetaTaskID, task.TaskID)
	msg.Metadata.Set(MetaVerb, task.Verb)

	return b.publish(b.taskPublisher, TaskTopic(b.serviceName), msg)
}

func (b *Bus) newMessage(ctx context.Context, v any, correlationID string) (*message.Message, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, errx.Wrap(err, errx.WithCode(CodeInvalidEvent))
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set(MetaCorrelationID, correlationID)
	msg.Metadata.Set(MetaPartitionKey, correlationID)
	if correlationID == "" {
		msg.Metadata.Set(MetaPartitionKey, msg.UUID)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.MapCarrier(msg.Metadata))
	msg.SetContext(ctx)
	return msg, nil
}

func (b *Bus) publish(pub message.Publisher, topic string, msg *message.Message) error {
	if b.closed.Load() {
		return errx.New("[bus]: bus is closed", errx.WithCode(CodeBusClosed))
	}
	if err := pub.Publish(topic, msg); err != nil {
		return errx.Wrap(err,
			errx.WithCode(CodePublishFailed),
			errx.WithDetails(errx.D{"topic": topic, "message_id": msg.UUID}),
		)
	}
	return nil
}

// ConsumeTasks subscribes h to the service task channel. Instances of the
// service share one consumer group, so each task is processed once.
func (b *Bus) ConsumeTasks(h TaskHandler) error {
	msgs, err := b.open(b.taskSubscribers, b.serviceName, TaskTopic(b.serviceName))
	if err != nil {
		return err
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for msg := range msgs {
			b.handle(msg, func(ctx context.Context) error {
				var task cqrs.AsyncTaskData
				if err := json.Unmarshal(msg.Payload, &task); err != nil {
					return errx.Wrap(err, errx.WithCode(CodeInvalidEvent))
				}
				return h(ctx, &task)
			})
		}
	}()
	return nil
}

// EventQueue returns the event stream of domain. With a distribution key every
// subscriber of the key competes for events, without one each subscriber
// observes every event.
func (b *Bus) EventQueue(domain, distributionKey string) *Queue {
	return &Queue{bus: b, domain: domain, key: distributionKey}
}

func (b *Bus) subscribe(q *Queue, h EventHandler) error {
	m := &member{queue: q, handler: h}

	b.mu.Lock()
	defer b.mu.Unlock()

	if q.key == "" {
		// a private group per subscriber gives broadcast delivery
		msgs, err := b.openLocked(b.subscribers, b.serviceName+"."+watermill.NewShortUUID(), EventTopic(q.domain))
		if err != nil {
			return err
		}
		b.consumeEvents(msgs, func(ctx context.Context, evt *cqrs.Event) error {
			if !m.queue.Accepts(evt) {
				return nil
			}
			return m.handler(ctx, evt)
		})
		return nil
	}

	gk := q.domain + "|" + q.key
	g, ok := b.groups[gk]
	if !ok {
		msgs, err := b.openLocked(b.subscribers, b.serviceName+"."+q.key, EventTopic(q.domain))
		if err != nil {
			return err
		}
		g = &group{}
		b.groups[gk] = g
		b.consumeEvents(msgs, g.dispatch)
	}
	g.add(m)
	return nil
}

func (b *Bus) open(factory SubscriberFactory, consumerGroup, topic string) (<-chan *message.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.openLocked(factory, consumerGroup, topic)
}

func (b *Bus) openLocked(factory SubscriberFactory, consumerGroup, topic string) (<-chan *message.Message, error) {
	if b.closed.Load() {
		return nil, errx.New("[bus]: bus is closed", errx.WithCode(CodeBusClosed))
	}

	sub, err := factory(consumerGroup)
	if err != nil {
		return nil, errx.Wrap(err, errx.WithDetails(errx.D{"consumer_group": consumerGroup}))
	}
	msgs, err := sub.Subscribe(b.ctx, topic)
	if err != nil {
		return nil, errx.Wrap(errors.Join(err, sub.Close()), errx.WithDetails(errx.D{"topic": topic}))
	}
	b.opened = append(b.opened, sub)
	return msgs, nil
}

func (b *Bus) consumeEvents(msgs <-chan *message.Message, dispatch EventHandler) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for msg := range msgs {
			b.handle(msg, func(ctx context.Context) error {
				var evt cqrs.Event
				if err := json.Unmarshal(msg.Payload, &evt); err != nil {
					return errx.Wrap(err, errx.WithCode(CodeInvalidEvent))
				}
				return dispatch(ctx, &evt)
			})
		}
	}()
}

// handle runs fn for msg and always acks it. Failures are logged only.
func (b *Bus) handle(msg *message.Message, fn func(ctx context.Context) error) {
	defer msg.Ack()

	ctx := otel.GetTextMapPropagator().Extract(b.ctx, propagation.MapCarrier(msg.Metadata))
	if err := safeCall(ctx, fn); err != nil {
		b.logger.WithContext(ctx).
			With("message_id", msg.UUID, "correlation_id", msg.Metadata.Get(MetaCorrelationID)).
			Errorx(err)
	}
}

func safeCall(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errx.New("[bus]: subscriber panicked", errx.WithDetails(errx.D{"panic": fmt.Sprint(r)}))
		}
	}()
	return fn(ctx)
}

// Close stops every subscription and closes the transports. It is safe to call more than once.
func (b *Bus) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}

	b.mu.Lock()
	opened := b.opened
	b.opened = nil
	b.mu.Unlock()

	b.cancel()

	var errs []error
	for _, sub := range opened {
		errs = append(errs, sub.Close())
	}
	b.wg.Wait()

	errs = append(errs, b.publisher.Close())
	if b.taskPublisher != b.publisher {
		errs = append(errs, b.taskPublisher.Close())
	}
	return errx.Wrap(errors.Join(errs...))
}
