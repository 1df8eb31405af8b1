package instrument

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/synapse-dev/synapse/pkg/synapse"
)

// Default tracer name for reactive spans.
const defaultTracerName = "synapse"

// TraceConfig configures the tracing wrappers.
type TraceConfig struct {
	// TracerName is the name of the tracer (default: "synapse").
	TracerName string

	// Attributes are added to every span created by the wrapper.
	Attributes []attribute.KeyValue

	// tracer is the resolved tracer instance.
	tracer trace.Tracer
}

// TraceOption configures the tracing wrappers.
type TraceOption func(*TraceConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) TraceOption {
	return func(c *TraceConfig) {
		c.TracerName = name
	}
}

// WithAttributes adds attributes to every span.
func WithAttributes(attrs ...attribute.KeyValue) TraceOption {
	return func(c *TraceConfig) {
		c.Attributes = append(c.Attributes, attrs...)
	}
}

func resolveTraceConfig(opts []TraceOption) TraceConfig {
	config := TraceConfig{TracerName: defaultTracerName}
	for _, opt := range opts {
		opt(&config)
	}
	config.tracer = otel.Tracer(config.TracerName)
	return config
}

// TracedBody wraps an effect body so every run is recorded in a span named
// "synapse.effect.run". A panicking run marks the span as failed and then
// panics onward, so the engine's retry behavior is unchanged. Use it
// directly when the effect needs engine options:
//
//	eff := synapse.CreateEffect(
//	    instrument.TracedBody("loader", body),
//	    synapse.WithMaxRetries(5),
//	)
func TracedBody(name string, fn func() synapse.Cleanup, opts ...TraceOption) func() synapse.Cleanup {
	config := resolveTraceConfig(opts)

	return func() synapse.Cleanup {
		attrs := append([]attribute.KeyValue{
			attribute.String("synapse.effect", name),
		}, config.Attributes...)

		_, span := config.tracer.Start(context.Background(), "synapse.effect.run",
			trace.WithSpanKind(trace.SpanKindInternal),
			trace.WithAttributes(attrs...),
		)

		var cleanup synapse.Cleanup
		panicked := true
		defer func() {
			if panicked {
				r := recover()
				err := normalizeTraceError(r)
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				span.End()
				panic(r)
			}
			span.SetStatus(codes.Ok, "")
			span.End()
		}()

		cleanup = fn()
		panicked = false
		return cleanup
	}
}

// TracedEffect creates an effect whose every run is wrapped in a span, via
// TracedBody.
//
// The tracer comes from the global OpenTelemetry tracer provider. Configure
// it in your main() before creating effects:
//
//	tp := sdktrace.NewTracerProvider(
//	    sdktrace.WithBatcher(exporter),
//	    sdktrace.WithResource(resource.NewWithAttributes(
//	        semconv.SchemaURL,
//	        semconv.ServiceName("my-app"),
//	    )),
//	)
//	otel.SetTracerProvider(tp)
func TracedEffect(name string, fn func() synapse.Cleanup, opts ...TraceOption) *synapse.Effect {
	return synapse.CreateEffect(TracedBody(name, fn, opts...), synapse.WithEffectName(name))
}

// TracedFetcher wraps a resource fetcher so each fetch runs inside a span
// named "synapse.resource.fetch". Pass the result to resource.New.
//
//	users := resource.New(instrument.TracedFetcher("users", listUsers))
func TracedFetcher[T any](name string, fetcher func() (T, error), opts ...TraceOption) func() (T, error) {
	config := resolveTraceConfig(opts)

	return func() (T, error) {
		attrs := append([]attribute.KeyValue{
			attribute.String("synapse.resource", name),
		}, config.Attributes...)

		_, span := config.tracer.Start(context.Background(), "synapse.resource.fetch",
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(attrs...),
		)
		defer span.End()

		value, err := fetcher()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return value, err
		}
		span.SetStatus(codes.Ok, "")
		return value, nil
	}
}

func normalizeTraceError(v any) error {
	if err, ok := v.(error); ok {
		return err
	}
	return fmt.Errorf("%v", v)
}
