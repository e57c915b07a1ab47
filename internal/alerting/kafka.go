package alerting

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// KafkaNotifier publishes alerts as JSON messages to a topic.
type KafkaNotifier struct {
	writer *kafka.Writer
	logger zerolog.Logger
}

type kafkaAlert struct {
	TimeIndex  int64  `json:"time_index"`
	Value      string `json:"value"`
	Mean       string `json:"mean"`
	StdDev     string `json:"std_dev"`
	ZScore     string `json:"z_score"`
	Threshold  string `json:"threshold"`
	Direction  string `json:"direction"`
	ObservedAt string `json:"observed_at"`
}

// NewKafkaNotifier constructs the Kafka channel.
func NewKafkaNotifier(brokers []string, topic string, logger zerolog.Logger) *KafkaNotifier {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
	}
	return &KafkaNotifier{
		writer: writer,
		logger: logger.With().Str("component", "alert_kafka").Logger(),
	}
}

// Notify writes one message keyed by time index.
func (n *KafkaNotifier) Notify(ctx context.Context, note Notification) error {
	payload := kafkaAlert{
		TimeIndex:  note.TimeIndex,
		Value:      note.Observed.StringFixed(6),
		Mean:       note.Mean.StringFixed(6),
		StdDev:     note.StdDev.StringFixed(6),
		ZScore:     note.ZScore.StringFixed(6),
		Threshold:  note.Threshold.StringFixed(6),
		Direction:  note.Direction,
		ObservedAt: note.ObservedAt.UTC().Format(time.RFC3339Nano),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal kafka alert: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(strconv.FormatInt(note.TimeIndex, 10)),
		Value: body,
	}
	if err := n.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write kafka alert: %w", err)
	}

	n.logger.Info().Int64("time_index", note.TimeIndex).
		Str("topic", n.writer.Topic).
		Msg("alert dispatched (kafka)")
	return nil
}

// Close flushes and closes the underlying writer.
func (n *KafkaNotifier) Close() error {
	if n == nil || n.writer == nil {
		return nil
	}
	return n.writer.Close()
}

var _ Notifier = (*KafkaNotifier)(nil)
