// Package taskqueue provides a durable task channel for the bus stored in
// PostgreSQL through watermill-sql.
//
// Tasks survive restarts and are shared by every instance of the service:
// instances join the same consumer group and each task is acked once.
package taskqueue

import (
	stdsql "database/sql"
	"strings"
	"time"
	"unicode"

	wsql "github.com/ThreeDotsLabs/watermill-sql/v3/pkg/sql"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/code19m/errx"

	"github.com/rise-and-shine/svcore/bus"
	"github.com/rise-and-shine/svcore/observability/logger"
)

// Config holds the polling settings of the postgres subscriber.
type Config struct {
	TablePrefix    string        `yaml:"table_prefix"    default:"svcore_"`
	PollInterval   time.Duration `yaml:"poll_interval"   default:"1s"`
	RetryInterval  time.Duration `yaml:"retry_interval"  default:"1s"`
	ResendInterval time.Duration `yaml:"resend_interval" default:"1s"`
	BatchSize      int           `yaml:"batch_size"      default:"10"   validate:"min=1"`
	// InitializeSchema creates the message and offset tables on first use.
	InitializeSchema bool `yaml:"initialize_schema" default:"true"`
}

// NewPublisher creates a publisher inserting tasks into postgres.
func NewPublisher(db *stdsql.DB, cfg Config, log logger.Logger) (message.Publisher, error) {
	publisher, err := wsql.NewPublisher(
		db,
		wsql.PublisherConfig{
			SchemaAdapter:        schemaAdapter(cfg),
			AutoInitializeSchema: cfg.InitializeSchema,
		},
		bus.NewLoggerAdapter(log.Named("taskqueue.publisher")),
	)
	if err != nil {
		return nil, errx.Wrap(err)
	}
	return publisher, nil
}

// NewSubscriberFactory returns a bus.SubscriberFactory reading tasks from postgres.
func NewSubscriberFactory(db *stdsql.DB, cfg Config, log logger.Logger) bus.SubscriberFactory {
	return func(consumerGroup string) (message.Subscriber, error) {
		subscriber, err := wsql.NewSubscriber(
			db,
			wsql.SubscriberConfig{
				ConsumerGroup:  consumerGroup,
				BackoffManager: wsql.NewDefaultBackoffManager(cfg.PollInterval, cfg.RetryInterval),
				ResendInterval: cfg.ResendInterval,
				SchemaAdapter:  schemaAdapter(cfg),
				OffsetsAdapter: wsql.DefaultPostgreSQLOffsetsAdapter{
					GenerateMessagesOffsetsTableName: func(topic string) string {
						return OffsetsTableName(cfg.TablePrefix, topic)
					},
				},
				InitializeSchema: cfg.InitializeSchema,
			},
			bus.NewLoggerAdapter(log.Named("taskqueue.subscriber")),
		)
		if err != nil {
			return nil, errx.Wrap(err, errx.WithDetails(errx.D{"consumer_group": consumerGroup}))
		}
		return subscriber, nil
	}
}

func schemaAdapter(cfg Config) wsql.DefaultPostgreSQLSchema {
	return wsql.DefaultPostgreSQLSchema{
		GenerateMessagesTableName: func(topic string) string {
			return MessagesTableName(cfg.TablePrefix, topic)
		},
		SubscribeBatchSize: cfg.BatchSize,
	}
}

// MessagesTableName returns the table holding the messages of topic.
func MessagesTableName(prefix, topic string) string {
	return `"` + prefix + sanitize(topic) + `"`
}

// OffsetsTableName returns the table holding the consumer group offsets of topic.
func OffsetsTableName(prefix, topic string) string {
	return `"` + prefix + "offsets_" + sanitize(topic) + `"`
}

func sanitize(topic string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return '_'
	}, topic)
}
