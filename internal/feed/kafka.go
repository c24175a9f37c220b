package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/twmb/franz-go/pkg/kgo"

	"caretrack/internal/platform/metrics"
)

// KafkaPublisher produces feed events asynchronously. Records are keyed by
// transport id so per-transport order survives partitioning.
type KafkaPublisher struct {
	client  *kgo.Client
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type KafkaOption func(*KafkaPublisher)

func WithKafkaLogger(logger *slog.Logger) KafkaOption {
	return func(p *KafkaPublisher) { p.logger = logger }
}

func WithKafkaMetrics(mx *metrics.Metrics) KafkaOption {
	return func(p *KafkaPublisher) { p.metrics = mx }
}

func NewKafkaPublisher(brokers []string, topic string, opts ...KafkaOption) (*KafkaPublisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}
	p := &KafkaPublisher{client: client, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Publish serializes the event and produces it without waiting for the ack.
func (p *KafkaPublisher) Publish(ctx context.Context, event Event) {
	value, err := json.Marshal(event)
	if err != nil {
		p.metrics.IncFeedPublishError()
		p.logger.ErrorContext(ctx, "feed event not serializable", "error", err)
		return
	}
	record := &kgo.Record{
		Key:   []byte(strconv.FormatInt(event.TransportID, 10)),
		Value: value,
	}
	p.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil {
			p.metrics.IncFeedPublishError()
			p.logger.Error("feed publish failed",
				"error", err,
				"transport_id", event.TransportID,
				"kind", event.Kind,
			)
		}
	})
}

// Close flushes buffered records and releases the client.
func (p *KafkaPublisher) Close() {
	p.client.Close()
}
