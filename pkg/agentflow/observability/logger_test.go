package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testHandler captures log records for testing.
type testHandler struct {
	buf   *bytes.Buffer
	level slog.Level
	attrs []slog.Attr
}

func newTestHandler() *testHandler {
	return &testHandler{
		buf:   &bytes.Buffer{},
		level: slog.LevelDebug,
	}
}

func (h *testHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *testHandler) Handle(_ context.Context, r slog.Record) error {
	data := map[string]any{
		"level": r.Level.String(),
		"msg":   r.Message,
	}
	for _, attr := range h.attrs {
		data[attr.Key] = attr.Value.Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		data[a.Key] = a.Value.Any()
		return true
	})
	enc := json.NewEncoder(h.buf)
	return enc.Encode(data)
}

func (h *testHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newH := &testHandler{
		buf:   h.buf,
		level: h.level,
		attrs: make([]slog.Attr, len(h.attrs)+len(attrs)),
	}
	copy(newH.attrs, h.attrs)
	copy(newH.attrs[len(h.attrs):], attrs)
	return newH
}

func (h *testHandler) WithGroup(_ string) slog.Handler {
	return h
}

func (h *testHandler) records() []map[string]any {
	var out []map[string]any
	for _, line := range bytes.Split(h.buf.Bytes(), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal(line, &m); err == nil {
			out = append(out, m)
		}
	}
	return out
}

func TestEnrichLogger(t *testing.T) {
	h := newTestHandler()
	logger := slog.New(h)

	enriched := EnrichLogger(logger, "th-123", "u-1")
	require.NotNil(t, enriched)

	enriched.Info("state stored")

	records := h.records()
	require.Len(t, records, 1)
	assert.Equal(t, "th-123", records[0]["thread_id"])
	assert.Equal(t, "u-1", records[0]["user_id"])
}

func TestEnrichLogger_NilLogger(t *testing.T) {
	assert.Nil(t, EnrichLogger(nil, "th-1", "u-1"))
}

func TestLogOperation(t *testing.T) {
	h := newTestHandler()
	logger := slog.New(h)

	LogOperation(logger, "get_state", "th-1", 42*time.Millisecond)

	records := h.records()
	require.Len(t, records, 1)
	assert.Equal(t, "get_state", records[0]["op"])
	assert.Equal(t, "th-1", records[0]["thread_id"])
	assert.Equal(t, "DEBUG", records[0]["level"])
}

func TestLogOperationError(t *testing.T) {
	h := newTestHandler()
	logger := slog.New(h)

	LogOperationError(logger, "put_state", "th-1", errors.New("connection reset"))

	records := h.records()
	require.Len(t, records, 1)
	assert.Equal(t, "ERROR", records[0]["level"])
	assert.Equal(t, "connection reset", records[0]["error"])
}

func TestLogRepair(t *testing.T) {
	t.Run("removal logged at info", func(t *testing.T) {
		h := newTestHandler()
		LogRepair(slog.New(h), "th-1", 3)

		records := h.records()
		require.Len(t, records, 1)
		assert.Equal(t, "INFO", records[0]["level"])
		assert.Equal(t, float64(3), records[0]["removed_messages"])
	})

	t.Run("no-op logged at debug", func(t *testing.T) {
		h := newTestHandler()
		LogRepair(slog.New(h), "th-1", 0)

		records := h.records()
		require.Len(t, records, 1)
		assert.Equal(t, "DEBUG", records[0]["level"])
	})
}

func TestLogHelpers_NilLogger(t *testing.T) {
	// All helpers must be nil-safe.
	assert.NotPanics(t, func() {
		LogOperation(nil, "op", "th", 0)
		LogOperationError(nil, "op", "th", errors.New("x"))
		LogStateMerged(nil, "th", 0)
		LogRepair(nil, "th", 1)
	})
}

func TestTimedOperation(t *testing.T) {
	done := TimedOperation()
	time.Sleep(5 * time.Millisecond)
	elapsed := done()
	assert.GreaterOrEqual(t, elapsed, float64(0))
}
