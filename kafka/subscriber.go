package kafka

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/code19m/errx"

	"github.com/rise-and-shine/svcore/bus"
	"github.com/rise-and-shine/svcore/observability/logger"
)

// uuidHeaderKey is the header the watermill kafka marshaler stores the message uuid in.
const uuidHeaderKey = "_watermill_message_uuid"

var _ message.Subscriber = (*Subscriber)(nil)

// Subscriber consumes kafka topics through a sarama consumer group and
// delivers the records as watermill messages. An offset is committed only
// after the message was acked.
type Subscriber struct {
	cfg    Config
	group  string
	logger logger.Logger

	mu      sync.Mutex
	closed  bool
	groups  []sarama.ConsumerGroup
	wg      sync.WaitGroup
	closing chan struct{}
}

// NewSubscriber creates a subscriber joining consumerGroup.
func NewSubscriber(cfg Config, consumerGroup string, log logger.Logger) *Subscriber {
	return &Subscriber{
		cfg:     cfg,
		group:   consumerGroup,
		logger:  log.Named("kafka.subscriber").With("consumer_group", consumerGroup),
		closing: make(chan struct{}),
	}
}

// NewSubscriberFactory returns a bus.SubscriberFactory creating kafka subscribers.
func NewSubscriberFactory(cfg Config, log logger.Logger) bus.SubscriberFactory {
	return func(consumerGroup string) (message.Subscriber, error) {
		return NewSubscriber(cfg, consumerGroup, log), nil
	}
}

// Subscribe starts consuming topic. The returned channel is closed when ctx
// is done or the subscriber is closed.
func (s *Subscriber) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, errx.New("[kafka] subscriber is closed")
	}

	saramaCfg, err := s.cfg.getSaramaConsumerConfig(s.group)
	if err != nil {
		return nil, errx.Wrap(err)
	}

	consumerGroup, err := sarama.NewConsumerGroup(s.cfg.brokers(), s.group, saramaCfg)
	if err != nil {
		return nil, errx.Wrap(err, errx.WithDetails(errx.D{"topic": topic}))
	}
	s.groups = append(s.groups, consumerGroup)

	ctx, cancel := context.WithCancel(ctx)
	output := make(chan *message.Message)
	handler := &claimHandler{
		ctx:    ctx,
		output: output,
		logger: s.logger.With("topic", topic),
		resend: s.cfg.NackResendSleep,
	}

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.consume(ctx, consumerGroup, topic, handler)
		cancel()
		close(output)
	}()
	go func() {
		defer s.wg.Done()
		s.logErrors(ctx, consumerGroup)
	}()
	go func() {
		select {
		case <-ctx.Done():
		case <-s.closing:
			cancel()
		}
	}()

	return output, nil
}

// consume is the main loop, parent of the ConsumeClaim partition loops.
func (s *Subscriber) consume(ctx context.Context, group sarama.ConsumerGroup, topic string, h *claimHandler) {
	for {
		err := group.Consume(ctx, []string{topic}, h)
		switch {
		case errors.Is(err, sarama.ErrClosedConsumerGroup):
			return
		case err != nil:
			s.logger.Errorx(errx.Wrap(err))
		}
		if ctx.Err() != nil {
			return
		}
		s.logger.Debug("[kafka] rebalancing occurred, waiting for new messages")
	}
}

func (s *Subscriber) logErrors(ctx context.Context, group sarama.ConsumerGroup) {
	for {
		select {
		case err, ok := <-group.Errors():
			if !ok {
				return
			}
			s.logger.Errorx(errx.Wrap(err))
		case <-ctx.Done():
			return
		}
	}
}

// Close stops every consumer group of the subscriber.
func (s *Subscriber) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.closing)
	groups := s.groups
	s.mu.Unlock()

	var errs []error
	for _, g := range groups {
		errs = append(errs, g.Close())
	}
	s.wg.Wait()
	return errx.Wrap(errors.Join(errs...))
}

type claimHandler struct {
	ctx    context.Context
	output chan<- *message.Message
	logger logger.Logger
	resend time.Duration
}

// Setup implements sarama.ConsumerGroupHandler contract.
func (h *claimHandler) Setup(_ sarama.ConsumerGroupSession) error { return nil }

// Cleanup implements sarama.ConsumerGroupHandler contract.
func (h *claimHandler) Cleanup(_ sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim must start a consumer loop of ConsumerGroupClaim's Messages().
func (h *claimHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	// NOTE:
	// Do not move the code below to a goroutine.
	// The `ConsumeClaim` itself is called within a goroutine,
	// https://github.com/IBM/sarama/blob/main/consumer_group.go#L27-L29
	for {
		select {
		case record, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			if !h.deliver(session.Context(), toMessage(record)) {
				return nil
			}
			session.MarkMessage(record, "")

		// Should return when `session.Context()` is done
		// https://github.com/IBM/sarama/issues/1192
		case <-session.Context().Done():
			return nil
		}
	}
}

// deliver hands msg to the output channel until it is acked. It returns false
// when the session or subscriber ended before the ack.
func (h *claimHandler) deliver(sessionCtx context.Context, msg *message.Message) bool {
	for {
		msg.SetContext(h.ctx)

		select {
		case h.output <- msg:
		case <-sessionCtx.Done():
			return false
		case <-h.ctx.Done():
			return false
		}

		select {
		case <-msg.Acked():
			return true
		case <-msg.Nacked():
			h.logger.With("message_id", msg.UUID).Warn("[kafka] message nacked, resending")
			time.Sleep(h.resend)
			msg = msg.Copy()
		case <-sessionCtx.Done():
			return false
		case <-h.ctx.Done():
			return false
		}
	}
}

func toMessage(record *sarama.ConsumerMessage) *message.Message {
	var id string
	metadata := make(message.Metadata, len(record.Headers))
	for _, header := range record.Headers {
		if string(header.Key) == uuidHeaderKey {
			id = string(header.Value)
			continue
		}
		metadata.Set(string(header.Key), string(header.Value))
	}
	if id == "" {
		id = watermill.NewUUID()
	}

	msg := message.NewMessage(id, record.Value)
	msg.Metadata = metadata
	return msg
}
