// Package tracing wires the engine's OIL-line and intent-step boundaries
// into OpenTelemetry spans, one span per unit of work (a line, an intent
// step), built directly on the otel SDK.
package tracing

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/nextlevelbuilder/oilengine/internal/config"
)

const tracerName = "oilengine"

// Provider wraps the process-wide TracerProvider and its Tracer, tracking
// whether telemetry is actually enabled so callers can no-op cheaply when
// it isn't (pipeline stays CPU-only and non-suspending when
// tracing is off; a disabled provider must add nothing on the hot path).
type Provider struct {
	tp      *sdktrace.TracerProvider
	tracer  trace.Tracer
	enabled bool
}

// NewProvider builds a Provider from cfg.Telemetry (internal/config). When
// disabled, it returns a Provider backed by the global no-op tracer so
// StartLine/StartStep are always safe to call unconditionally from the
// session and engine packages.
func NewProvider(ctx context.Context, cfg config.TelemetryConfig) (*Provider, error) {
	if !cfg.Enabled {
		return &Provider{tracer: otel.Tracer(tracerName), enabled: false}, nil
	}

	var opts []otlptracehttp.Option
	if cfg.Endpoint != "" {
		opts = append(opts, otlptracehttp.WithEndpoint(cfg.Endpoint))
	}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, err
	}

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "oilengine"
	}
	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceNameKey.String(serviceName)))
	if err != nil {
		slog.Warn("tracing: failed to build resource, using default", "error", err)
		res = resource.Default()
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return &Provider{tp: tp, tracer: tp.Tracer(tracerName), enabled: true}, nil
}

// Shutdown flushes and stops the exporter. Safe to call on a disabled
// Provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.tp == nil {
		return nil
	}
	return p.tp.Shutdown(ctx)
}

// StartLine opens the root span for one OIL line: parse, resolve,
// translate, dispatch, and format, as a single root-per-request span.
func (p *Provider) StartLine(ctx context.Context, line string) (context.Context, trace.Span) {
	if p == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return p.tracer.Start(ctx, "oil.line", trace.WithAttributes(attribute.String("oil.line", line)))
}

// StartStep opens a child span for one Intent Engine step.
func (p *Provider) StartStep(ctx context.Context, runID, kind string, index int) (context.Context, trace.Span) {
	if p == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return p.tracer.Start(ctx, "intent.step",
		trace.WithAttributes(
			attribute.String("intent.run_id", runID),
			attribute.String("intent.step_kind", kind),
			attribute.Int("intent.step_index", index),
		))
}

// EndWithError records err on span (if non-nil) and ends it.
func EndWithError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
	}
	span.End()
}
