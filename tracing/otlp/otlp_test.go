package otlp

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"

	"github.com/pure-golang/sheetmail/env"
)

func TestConfig_Defaults(t *testing.T) {
	var cfg Config
	require.NoError(t, env.Process(&cfg))
	assert.Equal(t, "sheetmail", cfg.ServiceName)
	assert.Equal(t, "dev", cfg.AppVersion)
	assert.False(t, cfg.Enabled())
}

func TestNewProviderBuilder_Validation(t *testing.T) {
	tests := []struct {
		name string
		conf Config
		want string
	}{
		{"empty endpoint", Config{ServiceName: "sheetmail"}, "empty tracing endpoint"},
		{"empty service name", Config{Endpoint: "http://localhost:4318"}, "service name is empty"},
		{"both empty", Config{}, "empty tracing endpoint"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, err := NewProviderBuilder(tt.conf)()
			require.Error(t, err)
			assert.Nil(t, provider)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestProvider_ExportsOnClose(t *testing.T) {
	var received atomic.Int32
	collector := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		if r.URL.Path == "/v1/traces" {
			received.Add(1)
		}
		w.Header().Set("Content-Type", "application/x-protobuf")
		w.WriteHeader(http.StatusOK)
	}))
	defer collector.Close()

	provider, err := NewProviderBuilder(Config{
		Endpoint:    collector.URL + "/v1/traces",
		ServiceName: "sheetmail",
		AppVersion:  "test",
	})()
	require.NoError(t, err)
	require.IsType(t, &Provider{}, provider)

	_, span := provider.Tracer("test").Start(context.Background(), "Dispatch.Run")
	span.End()

	require.NoError(t, provider.Close())
	assert.Equal(t, int32(1), received.Load())
}

func TestProvider_CloseTwice(t *testing.T) {
	p := &Provider{TracerProvider: tracesdk.NewTracerProvider()}
	require.NoError(t, p.Close())

	err := p.Close()
	if err != nil {
		assert.ErrorContains(t, err, "otlp")
	}
}
