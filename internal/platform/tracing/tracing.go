// Package tracing holds OpenTelemetry helpers shared by the event handlers and the consumer.
package tracing

import (
	"context"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const TraceparentHeader = "traceparent"

// Tracer returns the named tracer from the global provider.
// Without a configured SDK this is a no-op tracer.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

// ExtractKafkaHeaders restores the upstream trace context carried in message headers.
func ExtractKafkaHeaders(ctx context.Context, headers []kafka.Header) context.Context {
	carrier := propagation.MapCarrier{}

	for _, h := range headers {
		carrier[h.Key] = string(h.Value)
	}

	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}

// EndSpan records err on span (when non-nil) and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// EventAttributes are the span attributes every event handler records.
func EventAttributes(eventID, eventType, aggregateID string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("event.id", eventID),
		attribute.String("event.type", eventType),
		attribute.String("event.aggregate_id", aggregateID),
	}
}
