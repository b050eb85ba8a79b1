package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/folio/pkg/contextkeys"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	buf.Reset()
	return out
}

func TestLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	logger.WithField("submission_id", 7).WithError(errors.New("boom")).Info("status changed")
	entry := decode(t, &buf)
	assert.Equal(t, "status changed", entry["message"])
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, float64(7), entry["submission_id"])
	assert.Equal(t, "boom", entry["error"])

	logger.Debug("hidden")
	assert.Zero(t, buf.Len())

	logger.WithFields(map[string]interface{}{"a": "b"}).Warnf("n=%d", 3)
	entry = decode(t, &buf)
	assert.Equal(t, "n=3", entry["message"])
	assert.Equal(t, "warning", entry["level"])
	assert.Equal(t, "b", entry["a"])

	assert.Same(t, logger, logger.WithError(nil))
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]LogLevel{"": InfoLevel, "DEBUG": DebugLevel, "warning": WarnLevel, "error": ErrorLevel} {
		got, err := ParseLevel(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseLevel("loud")
	assert.Error(t, err)
	assert.Equal(t, "WARN", WarnLevel.String())
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithLogger(context.Background(), NewLogger(DebugLevel, &buf))
	ctx = contextkeys.WithRequestID(ctx, "req-1")
	ctx = contextkeys.WithUserID(ctx, "42")

	FromContext(ctx).Debug("hello")
	entry := decode(t, &buf)
	assert.Equal(t, "req-1", entry["request_id"])
	assert.Equal(t, "42", entry["user_id"])

	assert.NotNil(t, GetLogger(context.Background()))
}

func TestTextFormatAndSetLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerFormat(ErrorLevel, "text", &buf)
	child := logger.WithField("k", "v")

	child.Info("quiet")
	assert.Zero(t, buf.Len())

	logger.SetLevel(InfoLevel)
	child.Info("loud")
	assert.Contains(t, buf.String(), `msg=loud`)
	assert.Contains(t, buf.String(), `k=v`)
}
