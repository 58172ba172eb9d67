package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pure-golang/sheetmail/logger/noop"
)

func TestNewDefault_Providers(t *testing.T) {
	for _, p := range []Provider{ProviderDevSlog, ProviderStdJson, ProviderStdText, ProviderNoop, Provider(""), Provider("invalid")} {
		t.Run(string(p), func(t *testing.T) {
			l := NewDefault(Config{Provider: p, Level: INFO})

			require.NotNil(t, l)
			assert.IsType(t, &slog.Logger{}, l)
		})
	}
}

func TestInitDefault_SetsGlobalLogger(t *testing.T) {
	original := slog.Default()
	t.Cleanup(func() { slog.SetDefault(original) })

	l := InitDefault(Config{Provider: ProviderNoop, Level: DEBUG})

	assert.NotSame(t, original, slog.Default())
	assert.Same(t, l, slog.Default())
}

func TestFromContext(t *testing.T) {
	ctx := context.Background()
	assert.Same(t, slog.Default(), FromContext(ctx))

	l := noop.NewNoop()
	ctx = NewContext(ctx, l)
	assert.Same(t, l, FromContext(ctx))
}

func TestNewContext_ReplacesExistingLogger(t *testing.T) {
	first := noop.NewNoop()
	second := noop.NewNoop()

	ctx := NewContext(context.Background(), first)
	ctx = NewContext(ctx, second)

	assert.Same(t, second, FromContext(ctx))
}

func TestWith_AccumulatesAttributes(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))

	ctx := NewContext(context.Background(), base)
	ctx = With(ctx, "run_id", "r-1")
	ctx = With(ctx, "row", 2)

	FromContext(ctx).Info("mail sent")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "r-1", entry["run_id"])
	assert.Equal(t, float64(2), entry["row"])
}

func TestFromContextWithErr_AttachesErrorAndStack(t *testing.T) {
	var buf bytes.Buffer
	ctx := NewContext(context.Background(), slog.New(slog.NewJSONHandler(&buf, nil)))

	err := errors.Wrap(errors.New("connection refused"), "failed to send email")
	FromContextWithErr(ctx, err).Error("row failed")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "failed to send email: connection refused", entry["error"])
	assert.Contains(t, entry, "stack")
}

func TestFromContextWithErrIf_NilErrorIsNoop(t *testing.T) {
	var buf bytes.Buffer
	ctx := NewContext(context.Background(), slog.New(slog.NewJSONHandler(&buf, nil)))

	FromContextWithErrIf(ctx, nil).Error("should not appear")

	assert.Zero(t, buf.Len())
}

func TestWithErrIf(t *testing.T) {
	original := slog.Default()
	t.Cleanup(func() { slog.SetDefault(original) })

	var buf bytes.Buffer
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))

	WithErrIf(nil).Error("nothing")
	assert.Zero(t, buf.Len())

	WithErrIf(errors.New("boom")).Error("something")
	assert.Contains(t, buf.String(), `"error":"boom"`)
}

func TestConvertLevel(t *testing.T) {
	cases := map[Level]slog.Level{
		INFO:             slog.LevelInfo,
		ERROR:            slog.LevelError,
		WARN:             slog.LevelWarn,
		DEBUG:            slog.LevelDebug,
		Level("DEBUG"):   slog.LevelDebug,
		Level("warning"): slog.LevelWarn,
		Level(" Error "): slog.LevelError,
		Level("unknown"): slog.LevelInfo,
		Level(""):        slog.LevelInfo,
	}
	for in, want := range cases {
		assert.Equal(t, want, convertLevel(in), "level %q", in)
	}
}

func TestConfig_Writer(t *testing.T) {
	assert.Equal(t, os.Stdout, Config{}.writer())
	assert.Equal(t, os.Stdout, Config{Provider: ProviderStdJson}.writer())
	assert.Equal(t, os.Stderr, Config{Provider: ProviderStdText}.writer())
	assert.Equal(t, os.Stdout, Config{Provider: ProviderStdText, Output: "STDOUT"}.writer())
	assert.Equal(t, os.Stderr, Config{Provider: ProviderStdJson, Output: OutputStderr}.writer())
}

func TestNew_WritesToWriter(t *testing.T) {
	var buf bytes.Buffer
	New(Config{Provider: ProviderStdText, Level: WARN}, &buf).Info("hidden")
	assert.Zero(t, buf.Len())

	New(Config{Provider: ProviderStdText, Level: WARN}, &buf).Warn("shown", "row", 3)
	assert.Contains(t, buf.String(), "msg=shown")
	assert.Contains(t, buf.String(), "row=3")

	buf.Reset()
	New(Config{Level: DEBUG}, &buf).Debug("json")
	assert.Contains(t, buf.String(), `"msg":"json"`)
}
