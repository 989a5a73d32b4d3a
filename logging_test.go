package omnitrace

import (
	"bytes"
	"errors"
	"os"
	"testing"
)

func TestNoOpLogger(t *testing.T) {
	l := NewNoOpLogger()
	if l.IsEnabled(LevelError) {
		t.Fatal("no-op logger should never be enabled")
	}
	l.Log(LogEntry{Message: "discarded"}) // must not panic
}

func TestGlobalLogger_DefaultsToNoOp(t *testing.T) {
	SetStructuredLogger(nil)
	if getGlobalLogger().IsEnabled(LevelDebug) {
		t.Fatal("unset global logger should behave as a no-op")
	}
}

type recordingLogger struct {
	entries []LogEntry
}

func (r *recordingLogger) IsEnabled(LogLevel) bool { return true }
func (r *recordingLogger) Log(e LogEntry)          { r.entries = append(r.entries, e) }

func TestSetStructuredLogger_RoutesLogAt(t *testing.T) {
	rl := &recordingLogger{}
	SetStructuredLogger(rl)
	defer SetStructuredLogger(nil)

	logAt(LevelWarn, "clock", "skew fallback", errors.New("boom"))

	if len(rl.entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(rl.entries))
	}
	if rl.entries[0].Category != "clock" || rl.entries[0].Level != LevelWarn {
		t.Errorf("unexpected entry: %+v", rl.entries[0])
	}
}

func TestDefaultLogger_LevelGating(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	l := NewDefaultLogger(LevelWarn)
	l.Out = w

	l.Log(LogEntry{Level: LevelInfo, Message: "should not appear"})
	l.Log(LogEntry{Level: LevelError, Message: "should appear", ThreadID: 7, CorrID: 3})
	w.Close()

	var buf bytes.Buffer
	buf.ReadFrom(r)
	out := buf.String()

	if bytes.Contains(buf.Bytes(), []byte("should not appear")) {
		t.Error("info-level entry leaked through a warn-level logger")
	}
	if !bytes.Contains([]byte(out), []byte("should appear")) {
		t.Error("error-level entry was not written")
	}
}
