// Package otelx installs the global OpenTelemetry tracer provider and
// propagators.
package otelx

import (
	"context"
	"errors"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"google.golang.org/grpc"

	"github.com/keithlinneman/docserve/internal/xerrors"
)

const (
	dialTimeout   = 3 * time.Second
	exportTimeout = 10 * time.Second
)

type Options struct {
	Enabled  bool
	Endpoint string // host:port of an OTLP gRPC collector
	Insecure bool
	Sample   float64 // ratio of new root traces kept, clamped to 0..1

	Service     string
	Component   string
	Version     string
	Environment string
	// extra resource attributes, e.g. the content backend
	Attributes []attribute.KeyValue
}

// ServiceName is "<service>.<component>", or just the service when no
// component is set.
func (o Options) ServiceName() string {
	if o.Component == "" {
		return o.Service
	}
	return o.Service + "." + o.Component
}

func clampSample(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}

// Init sets the global provider. Disabled tracing still installs an SDK
// provider without exporters so spans get valid IDs for log correlation.
// The returned func flushes pending spans and shuts the provider down.
func Init(ctx context.Context, o Options) (func(context.Context) error, error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))

	if !o.Enabled {
		tp := sdktrace.NewTracerProvider()
		otel.SetTracerProvider(tp)
		return tp.Shutdown, nil
	}

	exp, err := newExporter(ctx, o)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(newSampler(o.Sample)),
		sdktrace.WithBatcher(exp,
			sdktrace.WithMaxQueueSize(2048),
			sdktrace.WithBatchTimeout(5*time.Second),
			sdktrace.WithExportTimeout(exportTimeout),
		),
		sdktrace.WithResource(newResource(ctx, o)),
	)
	otel.SetTracerProvider(tp)

	return func(ctx context.Context) error {
		return errors.Join(
			xerrors.Wrap(tp.ForceFlush(ctx), "otel flush"),
			xerrors.Wrap(tp.Shutdown(ctx), "otel shutdown"),
		)
	}, nil
}

// newSampler keeps a ratio of root traces and follows the caller's decision
// for requests that arrive with a traceparent.
func newSampler(ratio float64) sdktrace.Sampler {
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(clampSample(ratio)))
}

func newExporter(ctx context.Context, o Options) (sdktrace.SpanExporter, error) {
	if o.Endpoint == "" {
		return nil, xerrors.New("otlp endpoint is required when tracing is enabled")
	}
	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(o.Endpoint),
		otlptracegrpc.WithCompressor("gzip"),
		otlptracegrpc.WithTimeout(exportTimeout),
		otlptracegrpc.WithDialOption(grpc.WithUserAgent(o.ServiceName() + "/" + o.Version)),
	}
	if o.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}

	// the local collector is expected to answer quickly
	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	exp, err := otlptracegrpc.New(dialCtx, opts...)
	if err != nil {
		return nil, xerrors.Wrapf(err, "otlp exporter endpoint=%s", o.Endpoint)
	}
	return exp, nil
}

// newResource describes this process. Detector failures leave a partial
// resource, which is still better than none.
func newResource(ctx context.Context, o Options) *resource.Resource {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(o.ServiceName()),
		semconv.ServiceNamespace(o.Service),
		semconv.ServiceVersion(o.Version),
	}
	if host, err := os.Hostname(); err == nil {
		attrs = append(attrs, semconv.ServiceInstanceID(host))
	}
	if o.Environment != "" {
		attrs = append(attrs, semconv.DeploymentEnvironment(o.Environment))
	}
	attrs = append(attrs, o.Attributes...)

	res, err := resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithProcess(),
		resource.WithHost(),
		resource.WithAttributes(attrs...),
	)
	if res == nil || (err != nil && len(res.Attributes()) == 0) {
		return resource.NewSchemaless(attrs...)
	}
	return res
}
