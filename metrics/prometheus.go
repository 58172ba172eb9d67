package metrics

import (
	"context"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/sdk/metric"
)

// Provider is the global OTel meter provider set by InitPrometheus.
type Provider struct {
	*metric.MeterProvider
}

func (p *Provider) Close() error {
	return errors.Wrap(p.Shutdown(context.Background()), "failed to shutdown meter provider")
}

// InitPrometheus exports OTel metrics, Go runtime metrics included, into reg
// and sets the global meter provider.
func InitPrometheus(reg prometheus.Registerer) (*Provider, error) {
	exporter, err := otelprom.New(otelprom.WithRegisterer(reg))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create prometheus instance")
	}
	provider := metric.NewMeterProvider(metric.WithReader(exporter))

	otel.SetMeterProvider(provider)

	if err := runtime.Start(runtime.WithMeterProvider(provider)); err != nil {
		return nil, errors.Wrap(err, "failed to start runtime")
	}

	return &Provider{MeterProvider: provider}, nil
}
