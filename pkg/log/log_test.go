package log

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func TestInit(t *testing.T) {
	original := logger
	defer func() {
		logger = original
	}()

	t.Run("TextFormat", func(t *testing.T) {
		err := Init(Config{Level: "warn", Format: "text", Output: "stdout"})
		require.NoError(t, err)
		assert.Equal(t, logrus.WarnLevel, logger.Level)
		_, ok := logger.Formatter.(*logrus.TextFormatter)
		assert.True(t, ok)
	})

	t.Run("JSONFormat", func(t *testing.T) {
		err := Init(Config{Level: "debug", Format: "json", Output: "stdout"})
		require.NoError(t, err)
		_, ok := logger.Formatter.(*logrus.JSONFormatter)
		assert.True(t, ok)
	})

	t.Run("InvalidLevelFallsBackToInfo", func(t *testing.T) {
		err := Init(Config{Level: "verbose", Format: "text"})
		require.NoError(t, err)
		assert.Equal(t, logrus.InfoLevel, logger.Level)
	})

	t.Run("FileOutput", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "nested", "sync.log")
		err := Init(Config{
			Level:      "info",
			Format:     "json",
			Output:     "file",
			Filename:   logFile,
			MaxSize:    10,
			MaxAge:     7,
			MaxBackups: 3,
		})
		require.NoError(t, err)

		WithField("platform", "facebook").Info("catalog entry upserted")

		data, err := os.ReadFile(logFile)
		require.NoError(t, err)
		assert.Contains(t, string(data), "catalog entry upserted")
	})
}

func TestWithFields(t *testing.T) {
	original := logger
	defer func() {
		logger = original
	}()

	require.NoError(t, Init(Config{Level: "info", Format: "json"}))
	var buf bytes.Buffer
	SetOutput(&buf)

	WithFields(Fields{"sku": "SKU-1", "platform": "twitter"}).Info("published")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "SKU-1", entry["sku"])
	assert.Equal(t, "twitter", entry["platform"])
	assert.Equal(t, "published", entry["msg"])
}

func TestWithContext(t *testing.T) {
	t.Run("NoSpan", func(t *testing.T) {
		entry := WithContext(context.Background())
		_, ok := entry.Data["trace_id"]
		assert.False(t, ok)
	})

	t.Run("WithSpan", func(t *testing.T) {
		traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
		spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
		sc := trace.NewSpanContext(trace.SpanContextConfig{
			TraceID:    traceID,
			SpanID:     spanID,
			TraceFlags: trace.FlagsSampled,
		})
		ctx := trace.ContextWithSpanContext(context.Background(), sc)

		entry := WithContext(ctx)
		assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", entry.Data["trace_id"])
		assert.Equal(t, "00f067aa0ba902b7", entry.Data["span_id"])
	})
}
