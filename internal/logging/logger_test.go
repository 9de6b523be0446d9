package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rohmanhakim/curlgrab/internal/logging"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected zerolog.Level
		wantErr  bool
	}{
		{input: "trace", expected: zerolog.TraceLevel},
		{input: "DEBUG", expected: zerolog.DebugLevel},
		{input: "", expected: zerolog.InfoLevel},
		{input: "warn", expected: zerolog.WarnLevel},
		{input: "error", expected: zerolog.ErrorLevel},
		{input: "off", expected: zerolog.Disabled},
		{input: "verbose", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := logging.ParseLevel(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestNew_JSONFormatWritesStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	cfg := logging.DefaultConfig()
	cfg.Format = logging.FormatJSON
	cfg.Output = &buf

	logger := logging.New(cfg)
	logger.Info().Str("url", "https://example.com").Msg("fetching")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "https://example.com", entry["url"])
	assert.Equal(t, "fetching", entry["message"])
}

func TestNew_LevelFiltersEvents(t *testing.T) {
	var buf bytes.Buffer
	cfg := logging.DefaultConfig()
	cfg.Format = logging.FormatJSON
	cfg.Level = zerolog.WarnLevel
	cfg.Output = &buf

	logger := logging.New(cfg)
	logger.Info().Msg("hidden")
	assert.Zero(t, buf.Len())

	logger.Warn().Msg("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestContextHelpers(t *testing.T) {
	var buf bytes.Buffer
	cfg := logging.DefaultConfig()
	cfg.Format = logging.FormatJSON
	cfg.Output = &buf

	ctx := logging.WithContext(context.Background(), logging.New(cfg))
	ctx = logging.WithComponent(ctx, "fetcher")
	ctx = logging.WithDownloadID(ctx, "abc-123")

	logging.FromContext(ctx).Info().Msg("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "fetcher", entry["component"])
	assert.Equal(t, "abc-123", entry["download_id"])
}

func TestFromContext_WithoutLoggerIsNoop(t *testing.T) {
	logger := logging.FromContext(context.Background())
	require.NotNil(t, logger)
	assert.NotPanics(t, func() {
		logger.Info().Msg("discarded")
	})
}
