package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canonmorph/canonmorph/internal/util"
)

func TestDefaultLogConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultLogConfig()

	assert.Equal(t, "info", cfg.Level)
	assert.Equal(t, "json", cfg.Format)
	assert.Equal(t, "stdout", cfg.Output)
}

func TestNewLogger(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		config  LogConfig
		wantErr bool
	}{
		{
			name:    "default config",
			config:  DefaultLogConfig(),
			wantErr: false,
		},
		{
			name: "console format",
			config: LogConfig{
				Level:  "debug",
				Format: "console",
				Output: "stdout",
			},
			wantErr: false,
		},
		{
			name: "stderr output",
			config: LogConfig{
				Level:  "info",
				Format: "json",
				Output: "stderr",
			},
			wantErr: false,
		},
		{
			name: "custom time format",
			config: LogConfig{
				Level:      "info",
				Format:     "json",
				Output:     "stdout",
				TimeFormat: "2006-01-02T15:04:05.000Z07:00",
			},
			wantErr: false,
		},
		{
			name: "invalid level",
			config: LogConfig{
				Level:  "invalid",
				Format: "json",
				Output: "stdout",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			logger, err := NewLogger(tt.config)

			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, logger)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, logger)
			}
		})
	}
}

func TestZapLogger_Methods(t *testing.T) {
	t.Parallel()

	logger, err := NewLogger(LogConfig{
		Level:  "debug",
		Format: "json",
		Output: "stdout",
	})
	require.NoError(t, err)

	// These should not panic
	logger.Debug("debug message", String("key", "value"))
	logger.Info("info message", Int("count", 42))
	logger.Warn("warn message", Bool("flag", true))
	logger.Error("error message", Float64("value", 3.14))

	// Sync may return error for stdout/stderr in test environment
	_ = logger.Sync()
}

func TestZapLogger_With(t *testing.T) {
	t.Parallel()

	logger, err := NewLogger(DefaultLogConfig())
	require.NoError(t, err)

	childLogger := logger.With(String("service", "test"))

	assert.NotNil(t, childLogger)
	assert.NotEqual(t, logger, childLogger)
}

func TestZapLogger_Named(t *testing.T) {
	t.Parallel()

	logger, err := NewLogger(DefaultLogConfig())
	require.NoError(t, err)

	named := logger.Named("engine")

	assert.NotNil(t, named)
	assert.NotEqual(t, logger, named)
}

func TestZapLogger_WithContext(t *testing.T) {
	t.Parallel()

	logger, err := NewLogger(DefaultLogConfig())
	require.NoError(t, err)

	ctx := context.Background()

	// Empty context returns the same logger
	assert.Equal(t, logger, logger.WithContext(ctx))

	ctx = util.ContextWithRequestID(ctx, "req-1")
	ctx = util.ContextWithTraceID(ctx, "trace-1")
	ctx = util.ContextWithSpanID(ctx, "span-1")

	enriched := logger.WithContext(ctx)
	assert.NotNil(t, enriched)
	assert.NotEqual(t, logger, enriched)
}

func TestGlobalLogger(t *testing.T) {
	logger, err := NewLogger(DefaultLogConfig())
	require.NoError(t, err)

	SetGlobalLogger(logger)
	defer SetGlobalLogger(nil)

	assert.Equal(t, logger, GetGlobalLogger())
	assert.Equal(t, logger, L())
}

func TestGetGlobalLogger_Unset(t *testing.T) {
	SetGlobalLogger(nil)

	logger := GetGlobalLogger()
	assert.NotNil(t, logger)
}

func TestNopLogger(t *testing.T) {
	t.Parallel()

	logger := NopLogger()

	// Nop logger discards everything without panicking
	logger.Debug("discard")
	logger.Info("discard")
	logger.Warn("discard")
	logger.Error("discard")
	logger.With(String("k", "v")).Info("discard")
	logger.Named("sub").Info("discard")
	assert.NoError(t, logger.Sync())
}
