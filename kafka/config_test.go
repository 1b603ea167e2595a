package kafka

import (
	"testing"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSaramaConsumerConfig(t *testing.T) {
	tests := []struct {
		name       string
		cfg        Config
		wantOffset int64
		wantSASL   bool
		wantErr    bool
	}{
		{
			name:       "defaults to newest",
			cfg:        Config{Brokers: "localhost:9092", KafkaVersion: "3.6.0"},
			wantOffset: sarama.OffsetNewest,
		},
		{
			name:       "oldest with sasl",
			cfg:        Config{KafkaVersion: "3.6.0", InitialOffset: "oldest", SaslUsername: "u", SaslPassword: "p"},
			wantOffset: sarama.OffsetOldest,
			wantSASL:   true,
		},
		{
			name:    "unknown offset",
			cfg:     Config{KafkaVersion: "3.6.0", InitialOffset: "latest"},
			wantErr: true,
		},
		{
			name:    "bad version",
			cfg:     Config{KafkaVersion: "three"},
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			// Act
			got, err := tc.cfg.getSaramaConsumerConfig("orders")

			// Assert
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "orders", got.ClientID)
			assert.Equal(t, tc.wantOffset, got.Consumer.Offsets.Initial)
			assert.Equal(t, tc.wantSASL, got.Net.SASL.Enable)
		})
	}
}

func TestToMessage(t *testing.T) {
	// Arrange
	record := &sarama.ConsumerMessage{
		Value: []byte(`{"verb":"Order.create"}`),
		Headers: []*sarama.RecordHeader{
			{Key: []byte(uuidHeaderKey), Value: []byte("msg-1")},
			{Key: []byte("traceparent"), Value: []byte("00-abc-def-01")},
		},
	}

	// Act
	msg := toMessage(record)

	// Assert
	assert.Equal(t, "msg-1", msg.UUID)
	assert.Equal(t, "00-abc-def-01", msg.Metadata.Get("traceparent"))
	assert.Empty(t, msg.Metadata.Get(uuidHeaderKey))
	assert.JSONEq(t, `{"verb":"Order.create"}`, string(msg.Payload))
}

func TestToMessageWithoutUUIDHeader(t *testing.T) {
	msg := toMessage(&sarama.ConsumerMessage{Value: []byte("{}")})

	assert.NotEmpty(t, msg.UUID)
}
