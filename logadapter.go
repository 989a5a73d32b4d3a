package omnitrace

import (
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// LogifaceAdapter binds this package's Logger interface to
// github.com/joeycumines/logiface backed by github.com/joeycumines/stumpy's
// JSON writer, exactly as joeycumines-go-utilpkg wires those two modules
// together. It is the structured-logging alternative to DefaultLogger for
// hosts that already standardize on logiface.
type LogifaceAdapter struct {
	logger *logiface.Logger[*stumpy.Event]
}

// NewLogifaceAdapter constructs an adapter at the given level, writing JSON
// lines through stumpy to stumpy's default writer (os.Stderr), or to a
// custom one via opts.
func NewLogifaceAdapter(level LogLevel, opts ...stumpy.Option) *LogifaceAdapter {
	return &LogifaceAdapter{
		logger: stumpy.L.New(
			stumpy.L.WithStumpy(opts...),
			stumpy.L.WithLevel(toLogifaceLevel(level)),
		),
	}
}

func toLogifaceLevel(l LogLevel) logiface.Level {
	switch l {
	case LevelDebug:
		return logiface.LevelDebug
	case LevelInfo:
		return logiface.LevelInformational
	case LevelWarn:
		return logiface.LevelWarning
	case LevelError:
		return logiface.LevelError
	default:
		return logiface.LevelInformational
	}
}

// IsEnabled implements Logger.
func (a *LogifaceAdapter) IsEnabled(level LogLevel) bool {
	return a.logger.Level() >= toLogifaceLevel(level)
}

// Log implements Logger, translating an omnitrace.LogEntry into a logiface
// builder chain.
func (a *LogifaceAdapter) Log(entry LogEntry) {
	b := a.logger.Build(toLogifaceLevel(entry.Level))
	if !b.Enabled() {
		b.Release()
		return
	}
	b = b.Str("category", entry.Category)
	if entry.ThreadID != 0 {
		b = b.Int("thread", int(entry.ThreadID))
	}
	if entry.CorrID != 0 {
		b = b.Int("corr_id", int(entry.CorrID))
	}
	if entry.Err != nil {
		b = b.Err(entry.Err)
	}
	b.Log(entry.Message)
}
