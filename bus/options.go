package bus

import (
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/rise-and-shine/svcore/observability/logger"
	"github.com/rise-and-shine/svcore/observability/metrics"
)

type options struct {
	taskPublisher   message.Publisher
	taskSubscribers SubscriberFactory
	logger          logger.Logger
	metrics         *metrics.Collector
}

// Option configures a Bus.
type Option func(*options)

// WithTaskTransport routes the task channel through pub and subs instead of the event transport.
func WithTaskTransport(pub message.Publisher, subs SubscriberFactory) Option {
	return func(o *options) {
		o.taskPublisher = pub
		o.taskSubscribers = subs
	}
}

// WithLogger sets the logger. The global logger is used by default.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithMetrics records publish outcomes on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(o *options) {
		o.metrics = c
	}
}
