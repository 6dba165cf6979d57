package tracing

import (
	"context"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"ThreatScanner/internal/config"
)

func TestSetupDisabledIsNoop(t *testing.T) {
	p, err := Setup(context.Background(), config.TracingConfig{}, nil)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	_, span := p.TracerProvider().Tracer("test").Start(context.Background(), "noop")
	if span.SpanContext().IsValid() {
		t.Fatalf("disabled tracing should not produce sampled spans")
	}
	span.End()
	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestNewProviderRecordsSpansWithServiceName(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp, err := NewProvider(config.TracingConfig{ServiceName: "threatscanner", SampleRate: 1}, sdktrace.WithSpanProcessor(recorder))
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	defer func() { _ = tp.Shutdown(context.Background()) }()

	_, span := tp.Tracer("test").Start(context.Background(), "cycle")
	span.End()

	spans := recorder.Ended()
	if len(spans) != 1 || spans[0].Name() != "cycle" {
		t.Fatalf("expected the cycle span, got %d spans", len(spans))
	}
	found := false
	for _, kv := range spans[0].Resource().Attributes() {
		if kv.Key == semconv.ServiceNameKey && kv.Value.AsString() == "threatscanner" {
			found = true
		}
	}
	if !found {
		t.Fatalf("service name missing from resource")
	}
}

func TestSamplerBounds(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp, err := NewProvider(config.TracingConfig{ServiceName: "x", SampleRate: 0}, sdktrace.WithSpanProcessor(recorder))
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	_, span := tp.Tracer("test").Start(context.Background(), "dropped")
	span.End()
	if len(recorder.Ended()) != 0 {
		t.Fatalf("zero sample rate should drop spans")
	}
}
