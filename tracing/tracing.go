package tracing

import (
	"io"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

type Provider interface {
	trace.TracerProvider
	io.Closer
}

// ProviderBuilder hides the exporter setup behind a constructor.
type ProviderBuilder func() (Provider, error)

// Init installs the built provider globally. On failure it returns a
// NoopProvider along with the error, so the caller may log it and carry on
// without traces.
func Init(build ProviderBuilder) (Provider, error) {
	provider, err := build()
	if err != nil {
		return NoopProvider{}, errors.Wrap(err, "failed to load tracing provider")
	}

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	return provider, nil
}

// NoopProvider discards spans.
type NoopProvider struct{ noop.TracerProvider }

func (NoopProvider) Close() error { return nil }
