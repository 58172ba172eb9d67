// Package otlp exports spans over OTLP/HTTP to a collector such as Jaeger.
package otlp

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.12.0"

	"github.com/pure-golang/sheetmail/tracing"
)

var _ tracing.Provider = (*Provider)(nil)

const shutdownTimeout = 5 * time.Second

// Config leaves tracing off while Endpoint is empty.
type Config struct {
	Endpoint    string `envconfig:"TRACING_ENDPOINT"`
	ServiceName string `envconfig:"SERVICE_NAME" default:"sheetmail"`
	AppVersion  string `envconfig:"APP_VERSION" default:"dev"`
}

func (c Config) Enabled() bool {
	return c.Endpoint != ""
}

type Provider struct {
	*tracesdk.TracerProvider
}

// Close flushes pending spans and shuts the exporter down.
func (p *Provider) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := p.ForceFlush(ctx); err != nil {
		if shutdownErr := p.Shutdown(ctx); shutdownErr != nil {
			return errors.Wrap(err, "otlp force flush failed (also shutdown failed)")
		}
		return errors.Wrap(err, "otlp force flush failed")
	}
	return errors.Wrap(p.Shutdown(ctx), "failed to shutdown otlp exporter")
}

func NewProviderBuilder(conf Config) tracing.ProviderBuilder {
	return func() (tracing.Provider, error) {
		if conf.Endpoint == "" {
			return nil, errors.New("empty tracing endpoint")
		}
		if conf.ServiceName == "" {
			return nil, errors.New("service name is empty")
		}

		exp, err := otlptrace.New(
			context.Background(),
			otlptracehttp.NewClient(
				otlptracehttp.WithEndpointURL(conf.Endpoint),
			),
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create otlp exporter")
		}

		tp := tracesdk.NewTracerProvider(
			tracesdk.WithBatcher(exp),
			tracesdk.WithResource(resource.NewWithAttributes(
				semconv.SchemaURL,
				semconv.ServiceNameKey.String(conf.ServiceName),
				semconv.ServiceVersionKey.String(conf.AppVersion),
			)),
			tracesdk.WithSampler(tracesdk.AlwaysSample()),
		)
		return &Provider{TracerProvider: tp}, nil
	}
}
