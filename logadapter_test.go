package omnitrace

import (
	"bytes"
	"errors"
	"testing"

	"github.com/joeycumines/stumpy"
	"github.com/stretchr/testify/require"
)

func TestLogifaceAdapter_WritesJSONLine(t *testing.T) {
	var buf bytes.Buffer
	adapter := NewLogifaceAdapter(LevelInfo, stumpy.WithWriter(&buf))

	adapter.Log(LogEntry{
		Level:    LevelInfo,
		Category: "activity",
		Message:  "device span emitted",
		ThreadID: 12,
		CorrID:   34,
	})

	require.Contains(t, buf.String(), "device span emitted")
	require.Contains(t, buf.String(), "activity")
}

func TestLogifaceAdapter_BelowLevelSuppressed(t *testing.T) {
	var buf bytes.Buffer
	adapter := NewLogifaceAdapter(LevelError, stumpy.WithWriter(&buf))

	adapter.Log(LogEntry{Level: LevelDebug, Category: "clock", Message: "should not appear"})

	require.Empty(t, buf.String())
}

func TestLogifaceAdapter_IncludesError(t *testing.T) {
	var buf bytes.Buffer
	adapter := NewLogifaceAdapter(LevelWarn, stumpy.WithWriter(&buf))

	adapter.Log(LogEntry{Level: LevelWarn, Category: "hostapi", Message: "degraded", Err: errors.New("registration failed")})

	require.Contains(t, buf.String(), "registration failed")
}

func TestLogifaceAdapter_IsEnabled(t *testing.T) {
	adapter := NewLogifaceAdapter(LevelWarn)

	require.False(t, adapter.IsEnabled(LevelDebug))
	require.True(t, adapter.IsEnabled(LevelError))
}
