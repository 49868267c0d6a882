package log

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/truematch/internal/errors"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestNew_JSONIncludesServiceAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{
		Level:          LevelDebug,
		Format:         FormatJSON,
		Output:         NewOutput(&buf),
		ServiceName:    "truematch",
		ServiceVersion: "1.2.3",
	})

	logger.Info("session bootstrapped", "status", "authenticated")

	entry := decodeLine(t, &buf)
	assert.Equal(t, "session bootstrapped", entry["msg"])
	assert.Equal(t, "truematch", entry["service"])
	assert.Equal(t, "1.2.3", entry["version"])
	assert.Equal(t, "authenticated", entry["status"])
}

func TestNew_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelWarn, Format: FormatText, Output: NewOutput(&buf)})

	logger.Debug("hidden")
	logger.Info("hidden")
	assert.Empty(t, buf.String())

	logger.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
	assert.True(t, logger.Enabled(context.Background(), LevelError))
	assert.False(t, logger.Enabled(context.Background(), LevelInfo))
}

func TestWithError(t *testing.T) {
	t.Run("coded error", func(t *testing.T) {
		var buf bytes.Buffer
		logger := New(Config{Level: LevelInfo, Output: NewOutput(&buf)})

		err := errors.Wrap(errors.ErrCodeNetworkUnavailable, "request failed", fmt.Errorf("dial tcp: refused"))
		logger.WithError(fmt.Errorf("login: %w", err)).Error("login failed")

		entry := decodeLine(t, &buf)
		assert.Equal(t, "request failed", entry["error"])
		assert.Equal(t, string(errors.ErrCodeNetworkUnavailable), entry["error_code"])
		assert.Equal(t, "dial tcp: refused", entry["cause"])
	})

	t.Run("plain error", func(t *testing.T) {
		var buf bytes.Buffer
		logger := New(Config{Level: LevelInfo, Output: NewOutput(&buf)})

		logger.WithError(fmt.Errorf("boom")).Error("failed")

		entry := decodeLine(t, &buf)
		assert.Equal(t, "boom", entry["error"])
	})

	t.Run("nil error", func(t *testing.T) {
		logger := Default()
		assert.Same(t, logger, logger.WithError(nil))
	})
}

func TestParseLevelAndFormat(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, LevelWarn, ParseLevel("warning"))
	assert.Equal(t, LevelError, ParseLevel(" error "))
	assert.Equal(t, LevelInfo, ParseLevel("verbose"))

	assert.Equal(t, FormatText, ParseFormat("console"))
	assert.Equal(t, FormatJSON, ParseFormat("anything"))
	assert.Equal(t, "text", FormatText.String())
}

func TestDefaultLogger(t *testing.T) {
	original := defaultLogger
	defer func() { defaultLogger = original }()

	defaultLogger = nil
	logger := DefaultLogger()
	require.NotNil(t, logger)
	assert.Same(t, logger, DefaultLogger())

	custom := Development()
	SetDefaultLogger(custom)
	assert.Same(t, custom, DefaultLogger())
	assert.Same(t, custom, OrDefault(nil))

	other := Default()
	assert.Same(t, other, OrDefault(other))
}
