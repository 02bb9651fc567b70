package tracing

import (
	"context"
	"errors"
	"testing"
	"time"

	"relayhq/relay/pkg/config"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name        string
		config      *config.TracingConfig
		wantErr     bool
		wantEnabled bool
	}{
		{name: "nil config", config: nil, wantErr: true},
		{
			name:   "disabled tracing",
			config: &config.TracingConfig{ServiceName: "test-service"},
		},
		{
			name: "enabled with ratio sampler",
			config: &config.TracingConfig{
				Enabled:     true,
				Sampler:     SamplerRatio,
				SampleRatio: 0.5,
				Endpoint:    "localhost:4317",
				ServiceName: "test-service",
				Timeout:     time.Second,
			},
			wantEnabled: true,
		},
		{
			name: "bad sampler",
			config: &config.TracingConfig{
				Enabled:  true,
				Sampler:  "sometimes",
				Endpoint: "localhost:4317",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracer, err := New(tt.config, "test")
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			defer tracer.Shutdown(context.Background())

			if tracer.Enabled() != tt.wantEnabled {
				t.Errorf("Enabled() = %v, want %v", tracer.Enabled(), tt.wantEnabled)
			}
			if tracer.Tracer() == nil {
				t.Error("Tracer() returned nil")
			}
		})
	}
}

func newRecordingTracer(t *testing.T) (*Tracer, *tracetest.InMemoryExporter) {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tracer, err := NewWithExporter(&config.TracingConfig{
		Enabled:     true,
		Sampler:     SamplerAlways,
		ServiceName: "relay-test",
	}, "test", exporter)
	if err != nil {
		t.Fatalf("NewWithExporter() error = %v", err)
	}
	t.Cleanup(func() { _ = tracer.Shutdown(context.Background()) })
	return tracer, exporter
}

func TestTracer_ExportsSpans(t *testing.T) {
	tracer, exporter := newRecordingTracer(t)

	ctx, parent := tracer.Start(context.Background(), "relay.server")
	_, child := tracer.Start(ctx, "gateway.upstream")
	SetRequestAttributes(child, "req-1", "billing")
	SetCacheAttributes(child, false)
	child.End()
	parent.End()

	if err := tracer.Flush(context.Background()); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("exported %d spans, want 2", len(spans))
	}
	upstream := spans[0]
	if upstream.Name != "gateway.upstream" {
		t.Fatalf("first ended span = %q", upstream.Name)
	}
	if upstream.Parent.SpanID() != spans[1].SpanContext.SpanID() {
		t.Error("child span is not linked to its parent")
	}

	attrs := make(map[string]string)
	for _, kv := range upstream.Attributes {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	if attrs[AttrRequestID] != "req-1" || attrs[AttrAppID] != "billing" || attrs[AttrCacheHit] != "false" {
		t.Errorf("unexpected attributes %v", attrs)
	}
}

func TestSetError(t *testing.T) {
	tracer, exporter := newRecordingTracer(t)

	_, failed := tracer.Start(context.Background(), "failed")
	SetError(failed, errors.New("connection refused"))
	failed.End()

	_, ok := tracer.Start(context.Background(), "ok")
	SetError(ok, nil)
	ok.End()

	_ = tracer.Flush(context.Background())

	spans := exporter.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("exported %d spans, want 2", len(spans))
	}
	if spans[0].Status.Code != codes.Error || spans[0].Status.Description != "connection refused" {
		t.Errorf("failed span status = %+v", spans[0].Status)
	}
	if len(spans[0].Events) == 0 {
		t.Error("expected a recorded exception event")
	}
	if spans[1].Status.Code != codes.Ok {
		t.Errorf("ok span status = %+v", spans[1].Status)
	}
}

func TestTraceAndSpanID(t *testing.T) {
	if TraceID(context.Background()) != "" || SpanID(context.Background()) != "" {
		t.Error("expected empty ids without a span")
	}

	tracer, _ := newRecordingTracer(t)

	ctx, span := tracer.Start(context.Background(), "op")
	defer span.End()

	if len(TraceID(ctx)) != 32 {
		t.Errorf("TraceID() = %q", TraceID(ctx))
	}
	if len(SpanID(ctx)) != 16 {
		t.Errorf("SpanID() = %q", SpanID(ctx))
	}
}

func TestTracer_DisabledShutdown(t *testing.T) {
	tracer, err := New(&config.TracingConfig{}, "test")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, span := tracer.Start(context.Background(), "noop")
	span.End()

	if err := tracer.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}
