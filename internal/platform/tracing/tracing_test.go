package tracing_test

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/rai/storefront-triggers/internal/platform/tracing"
)

func TestExtractKafkaHeaders(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})

	headers := []kafka.Header{
		{Key: "event_type", Value: []byte("orders.OrderCreated")},
		{Key: tracing.TraceparentHeader, Value: []byte("00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")},
	}

	sc := trace.SpanContextFromContext(tracing.ExtractKafkaHeaders(context.Background(), headers))
	if !sc.IsValid() {
		t.Fatal("expected a valid remote span context")
	}
	if got := sc.TraceID().String(); got != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Errorf("unexpected trace id %s", got)
	}
	if !sc.IsRemote() {
		t.Error("expected span context to be marked remote")
	}
}

func TestExtractKafkaHeaders_NoTraceparent(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})

	sc := trace.SpanContextFromContext(tracing.ExtractKafkaHeaders(context.Background(), nil))
	if sc.IsValid() {
		t.Error("expected no span context without headers")
	}
}

func TestEndSpan_WithError(t *testing.T) {
	_, span := tracing.Tracer("test").Start(context.Background(), "op")
	// no-op tracer: must not panic
	tracing.EndSpan(span, errors.New("boom"))
}

func TestEventAttributes(t *testing.T) {
	attrs := tracing.EventAttributes("E1", "orders.OrderCreated", "O1")
	if len(attrs) != 3 {
		t.Fatalf("expected 3 attributes, got %d", len(attrs))
	}
	if attrs[2].Value.AsString() != "O1" {
		t.Errorf("expected aggregate id O1, got %s", attrs[2].Value.AsString())
	}
}
