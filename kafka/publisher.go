package kafka

import (
	wkafka "github.com/ThreeDotsLabs/watermill-kafka/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/code19m/errx"

	"github.com/rise-and-shine/svcore/bus"
	"github.com/rise-and-shine/svcore/meta"
	"github.com/rise-and-shine/svcore/observability/logger"
)

// NewPublisher creates a watermill kafka publisher for the bus. Messages are
// partitioned by correlation id, so every event of one causal chain lands on
// the same partition and keeps its order.
func NewPublisher(cfg Config, log logger.Logger) (message.Publisher, error) {
	saramaCfg := wkafka.DefaultSaramaSyncPublisherConfig()
	saramaCfg.ClientID = meta.ServiceName()

	// Currently support only SASL_PLAINTEXT authentication.
	if cfg.SaslUsername != "" && cfg.SaslPassword != "" {
		saramaCfg.Net.SASL.Enable = true
		saramaCfg.Net.SASL.User = cfg.SaslUsername
		saramaCfg.Net.SASL.Password = cfg.SaslPassword
	}

	marshaler := wkafka.NewWithPartitioningMarshaler(func(_ string, msg *message.Message) (string, error) {
		if key := msg.Metadata.Get(bus.MetaPartitionKey); key != "" {
			return key, nil
		}
		return msg.UUID, nil
	})

	publisher, err := wkafka.NewPublisher(
		cfg.brokers(),
		marshaler,
		saramaCfg,
		bus.NewLoggerAdapter(log.Named("kafka.publisher")),
	)
	if err != nil {
		return nil, errx.Wrap(err)
	}

	return publisher, nil
}
