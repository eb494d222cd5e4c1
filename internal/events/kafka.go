package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Delivery bounds. A record still unacknowledged after DeliveryTimeout is
// failed and logged; Close waits at most FlushTimeout for in-flight records.
const (
	DeliveryTimeout = 30 * time.Second
	FlushTimeout    = 10 * time.Second
)

// KafkaPublisher produces events to a single topic with franz-go.
// Records are keyed by subscriber ID so one subscriber's events stay ordered
// within a partition.
//
// Publish only buffers the record: a broker outage never holds up the
// request that created the subscriber. Delivery failures surface in the log.
type KafkaPublisher struct {
	client       *kgo.Client
	logger       *slog.Logger
	flushTimeout time.Duration
}

// NewKafkaPublisher builds a producer for topic. franz-go connects lazily, so
// an unreachable broker shows up as delivery errors, not here. Extra kgo
// options are appended after the defaults.
func NewKafkaPublisher(brokers []string, topic string, logger *slog.Logger, opts ...kgo.Opt) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, errors.New("events: no kafka brokers configured")
	}
	if topic == "" {
		return nil, errors.New("events: no kafka topic configured")
	}

	client, err := kgo.NewClient(append([]kgo.Opt{
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.RecordDeliveryTimeout(DeliveryTimeout),
	}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("events: creating kafka client: %w", err)
	}
	return &KafkaPublisher{client: client, logger: logger, flushTimeout: FlushTimeout}, nil
}

// Publish buffers ev and returns. Only an encoding error is reported here.
//
// The record outlives the caller, so ctx's cancellation is dropped; its
// values (request id and the like) are kept.
func (p *KafkaPublisher) Publish(ctx context.Context, ev SubscriberCreated) error {
	rec, err := record(ev)
	if err != nil {
		return err
	}
	p.client.Produce(context.WithoutCancel(ctx), rec, func(r *kgo.Record, err error) {
		if err != nil {
			p.logger.Warn("failed to deliver subscriber event",
				slog.String("id", ev.ID),
				slog.String("topic", r.Topic),
				slog.String("error", err.Error()),
			)
		}
	})
	return nil
}

// Close waits up to the flush timeout for buffered records, then shuts the
// client down. Records still unacknowledged at that point are failed.
func (p *KafkaPublisher) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), p.flushTimeout)
	defer cancel()

	if err := p.client.Flush(ctx); err != nil {
		p.logger.Warn("kafka flush incomplete", slog.String("error", err.Error()))
	}
	p.client.Close()
}

func record(ev SubscriberCreated) (*kgo.Record, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("events: encoding %s: %w", ev.Event, err)
	}
	return &kgo.Record{
		Key:   []byte(ev.ID),
		Value: payload,
		Headers: []kgo.RecordHeader{
			{Key: "type", Value: []byte(ev.Event)},
			{Key: "version", Value: []byte(fmt.Sprint(ev.Version))},
		},
	}, nil
}
