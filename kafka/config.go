package kafka

import (
	"strings"
	"time"

	"github.com/IBM/sarama"
	"github.com/code19m/errx"
)

const (
	newestOffset = "newest"
	oldestOffset = "oldest"
)

// Config holds the broker settings shared by the bus publisher and subscribers.
type Config struct {
	Brokers      string `yaml:"brokers"       validate:"required"`
	SaslUsername string `yaml:"sasl_username"`
	SaslPassword string `yaml:"sasl_password"                     mask:"true"`

	KafkaVersion  string `yaml:"kafka_version"  default:"3.6.0"`
	InitialOffset string `yaml:"initial_offset" default:"newest" validate:"oneof=newest oldest"`

	// NackResendSleep is how long a nacked message waits before it is delivered again.
	NackResendSleep time.Duration `yaml:"nack_resend_sleep" default:"500ms"`
}

func (c *Config) brokers() []string {
	return strings.Split(c.Brokers, ",")
}

func (c *Config) getSaramaConsumerConfig(clientID string) (*sarama.Config, error) {
	saramaConf := sarama.NewConfig()
	saramaConf.ClientID = clientID
	version, err := sarama.ParseKafkaVersion(c.KafkaVersion)
	if err != nil {
		return nil, errx.Wrap(err)
	}
	saramaConf.Version = version

	// Currently support only SASL_PLAINTEXT authentication.
	if c.SaslUsername != "" && c.SaslPassword != "" {
		saramaConf.Net.SASL.Enable = true
		saramaConf.Net.SASL.User = c.SaslUsername
		saramaConf.Net.SASL.Password = c.SaslPassword
		saramaConf.Net.SASL.Mechanism = sarama.SASLTypePlaintext
	}

	switch c.InitialOffset {
	case newestOffset, "":
		saramaConf.Consumer.Offsets.Initial = sarama.OffsetNewest
	case oldestOffset:
		saramaConf.Consumer.Offsets.Initial = sarama.OffsetOldest
	default:
		return nil, errx.New("[kafka] unknown initial offset", errx.WithDetails(errx.D{
			"initial_offset": c.InitialOffset,
		}))
	}
	saramaConf.Consumer.Return.Errors = true

	return saramaConf, nil
}
