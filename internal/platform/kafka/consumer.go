// Package kafka consumes the document store's change feed and hands each
// notification to the event bus.
package kafka

import (
	"context"
	"errors"
	"log/slog"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/rai/storefront-triggers/internal/platform/tracing"
	"github.com/rai/storefront-triggers/modules/shared/events"
	"github.com/rai/storefront-triggers/modules/shared/events/contracts"
)

// MessageReader is the subset of *kafka.Reader the consumer needs.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ReaderConfig describes one change-feed topic subscription.
type ReaderConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

// NewReader creates a consumer-group reader for a change-feed topic.
func NewReader(cfg ReaderConfig) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers: cfg.Brokers,
		Topic:   cfg.Topic,
		GroupID: cfg.GroupID,
	})
}

// Consumer reads one topic, decodes each message into a typed event and publishes it.
//
// Delivery is at-least-once: the offset is committed only after the bus returns,
// so a crash mid-dispatch redelivers the message. Undecodable messages are logged
// and committed so they cannot block the partition.
type Consumer struct {
	log       *slog.Logger
	reader    MessageReader
	topic     string
	decode    contracts.Decoder
	publisher events.Publisher
	tracer    trace.Tracer
}

func NewConsumer(log *slog.Logger, reader MessageReader, topic string, decode contracts.Decoder, publisher events.Publisher) *Consumer {
	if log == nil {
		log = slog.Default()
	}
	return &Consumer{
		log:       log.With(slog.String("topic", topic)),
		reader:    reader,
		topic:     topic,
		decode:    decode,
		publisher: publisher,
		tracer:    tracing.Tracer("change-feed-consumer"),
	}
}

// Run blocks until ctx is cancelled or the reader fails.
func (c *Consumer) Run(ctx context.Context) error {
	defer c.reader.Close()

	c.log.Info("consumer started")
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.log.Info("consumer shutting down")
				return nil
			}
			return err
		}

		c.handle(ctx, msg)

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			c.log.Error("commit failed", slog.Int("partition", msg.Partition), slog.Int64("offset", msg.Offset), slog.Any("error", err))
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message) {
	msgCtx := tracing.ExtractKafkaHeaders(ctx, msg.Headers)
	msgCtx, span := c.tracer.Start(msgCtx, "Consume "+c.topic, trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.destination.name", c.topic),
			attribute.Int("messaging.kafka.partition", msg.Partition),
			attribute.Int64("messaging.kafka.offset", msg.Offset),
		))

	event, err := c.decode(msg.Value)
	if err != nil {
		c.log.Error("decode failed, skipping message", slog.Int("partition", msg.Partition), slog.Int64("offset", msg.Offset), slog.Any("error", err))
		tracing.EndSpan(span, err)
		return
	}

	span.SetAttributes(tracing.EventAttributes(event.EventID(), event.EventType().String(), event.AggregateID())...)

	err = c.publisher.Publish(msgCtx, event)
	if err != nil {
		c.log.Error("publish failed", slog.String("event_id", event.EventID()), slog.Any("error", err))
	}
	tracing.EndSpan(span, err)
}
