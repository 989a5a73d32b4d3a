package omnitrace

import "sync"

// Profiler exposes the `profiler.*` surface of §6: profiler_init,
// profiler_finalize, profiler_function, and the config settings object.
// It is a thin, independently lifecycled wrapper around InterpreterAdapter:
// the interpreter-side module can start/stop profiling without touching
// Tracer.InitializeCommand/Finalize, matching the source's separation of
// "initialize" (trace session) from "profiler_init" (the trace-hook
// itself).
type Profiler struct {
	adapter *InterpreterAdapter

	mu     sync.Mutex
	active bool
}

// NewProfiler wraps adapter.
func NewProfiler(adapter *InterpreterAdapter) *Profiler {
	return &Profiler{adapter: adapter}
}

// ProfilerInit activates the trace hook.
func (p *Profiler) ProfilerInit() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.active = true
}

// ProfilerFinalize deactivates the trace hook. Idempotent.
func (p *Profiler) ProfilerFinalize() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.active = false
}

// Active reports whether the trace hook is currently installed.
func (p *Profiler) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// ProfilerFunction is the per-frame hook itself (§6
// profiler.profiler_function(frame, event, arg)). A call while inactive is
// a cheap no-op.
func (p *Profiler) ProfilerFunction(frame Frame, event string, arg any) {
	if !p.Active() {
		return
	}
	p.adapter.ProfilerFunction(frame, event, arg)
}

// Config returns the settings object of §6 (profiler.config), the
// process-wide master InterpreterConfig. Flags and integers are exported
// fields, read and set directly. Each regex set exposes its patterns
// through Patterns(); it has no exported method for adding patterns.
func (p *Profiler) Config() *InterpreterConfig {
	return p.adapter.Config()
}

// Profiler returns this Tracer's Profiler, constructing it on first use.
func (t *Tracer) Profiler() *Profiler {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.profiler == nil {
		t.profiler = NewProfiler(t.interpreter)
	}
	return t.profiler
}
