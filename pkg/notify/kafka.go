package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/orchestra-labs/vesting-batcher/core/vesting"
)

const (
	kafkaWriteTimeout = 5 * time.Second
	// kafkaBatchTimeout caps how long a write waits for more messages before flushing.
	kafkaBatchTimeout = 10 * time.Millisecond
)

// messageWriter is the subset of *kafka.Writer used by KafkaObserver.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// batchEnvelope is the JSON payload published for every lifecycle event.
type batchEnvelope struct {
	Event        string                `json:"event"`
	RunID        string                `json:"run_id,omitempty"`
	Time         time.Time             `json:"time"`
	Batch        int                   `json:"batch,omitempty"`
	TotalBatches int                   `json:"total_batches,omitempty"`
	BatchSize    int                   `json:"batch_size,omitempty"`
	Status       string                `json:"status,omitempty"`
	GasLimit     uint64                `json:"gas_limit,omitempty"`
	Fee          string                `json:"fee,omitempty"`
	Result       *vesting.BatchResult  `json:"result,omitempty"`
	Results      []vesting.BatchResult `json:"results,omitempty"`
	Error        string                `json:"error,omitempty"`
}

// KafkaObserver publishes lifecycle events as JSON messages keyed by run id.
// Publishing failures are logged and never reach the orchestrator.
type KafkaObserver struct {
	writer messageWriter
	logger zerolog.Logger
}

// NewKafkaObserver creates a KafkaObserver writing to topic on brokers.
// Events are published one at a time, so every write flushes immediately.
func NewKafkaObserver(brokers []string, topic string, logger zerolog.Logger) *KafkaObserver {
	return newKafkaObserver(newKafkaWriter(brokers, topic), logger)
}

func newKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		RequiredAcks: kafka.RequireAll,
		Balancer:     &kafka.LeastBytes{},
		BatchSize:    1,
		BatchTimeout: kafkaBatchTimeout,
		WriteTimeout: kafkaWriteTimeout,
	}
}

func newKafkaObserver(w messageWriter, logger zerolog.Logger) *KafkaObserver {
	return &KafkaObserver{
		writer: w,
		logger: logger.With().Str("component", "kafka").Logger(),
	}
}

// Notify implements Observer.
func (k *KafkaObserver) Notify(ev Event) {
	if ev.Kind == EventWaiting {
		return
	}

	env := batchEnvelope{
		Event:        ev.Kind.String(),
		RunID:        ev.RunID,
		Time:         ev.Time,
		Batch:        ev.Batch,
		TotalBatches: ev.TotalBatches,
		BatchSize:    ev.BatchSize,
		Result:       ev.Result,
		Results:      ev.Results,
	}
	if ev.Code != vesting.StatusUnknown {
		env.Status = ev.Code.String()
	}
	if ev.GasPlan.GasLimit > 0 {
		env.GasLimit = ev.GasPlan.GasLimit
		env.Fee = ev.GasPlan.Fee().Amount.String()
	}
	if ev.Err != nil {
		env.Error = ev.Err.Error()
	}

	data, err := json.Marshal(env)
	if err != nil {
		k.logger.Error().Err(err).Str("event", env.Event).Msg("failed to encode batch event")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), kafkaWriteTimeout)
	defer cancel()
	if err := k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.RunID),
		Value: data,
		Time:  ev.Time,
	}); err != nil {
		k.logger.Warn().Err(err).Str("event", env.Event).Msg("failed to publish batch event")
	}
}

// Close flushes and closes the underlying writer.
func (k *KafkaObserver) Close() error {
	return k.writer.Close()
}
