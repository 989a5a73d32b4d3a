package omnitrace

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
)

// EventKind is the mapped interpreter event of §4.4. Event kinds other than
// these four return without effect.
type EventKind int

const (
	EventUnknown EventKind = iota
	EventCall
	EventCCall
	EventReturn
	EventCReturn
)

func parseEventKind(s string) EventKind {
	switch s {
	case "call":
		return EventCall
	case "c_call":
		return EventCCall
	case "return":
		return EventReturn
	case "c_return":
		return EventCReturn
	default:
		return EventUnknown
	}
}

// Frame is the per-call context handed to the profiler function, standing
// in for the interpreter's native frame object (§6
// profiler.profiler_function(frame, event, arg)).
type Frame struct {
	FuncName string
	Filename string
	Line     int
	Args     []string // formatted argument strings, used only if IncludeArgs
}

// perThreadInterpreterState is the recursion guard, ignore-stack depth, pop
// stack, and label cache private to one thread (§3, §4.4). None of it is
// ever shared across threads, so it needs no locking.
type perThreadInterpreterState struct {
	inGuard          bool
	ignoreStackDepth int
	popStack         []func()
	labelCache       map[string]string
}

// InterpreterAdapter is the Interpreter Trace Adapter of §4.4: the per-frame
// hook translating interpreter call/return events into push/pop region
// events through a RegionSink, applying regex-based filters and a
// per-thread recursion guard.
type InterpreterAdapter struct {
	config  *configRegistry
	sink    RegionSink
	install string

	stateMu sync.Mutex
	states  map[int64]*perThreadInterpreterState
}

// NewInterpreterAdapter constructs an adapter writing to sink, using
// installPrefix for the internal-path filter of §4.4 step 4.
func NewInterpreterAdapter(sink RegionSink, installPrefix string) *InterpreterAdapter {
	if sink == nil {
		sink = noopRegionSink{}
	}
	return &InterpreterAdapter{
		config:  newConfigRegistry(),
		sink:    sink,
		install: installPrefix,
		states:  make(map[int64]*perThreadInterpreterState),
	}
}

// Config returns the process-wide master config, for profiler.config
// setters/getters (§6).
func (a *InterpreterAdapter) Config() *InterpreterConfig {
	return a.config.Master()
}

func (a *InterpreterAdapter) stateFor(tid int64) *perThreadInterpreterState {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	st, ok := a.states[tid]
	if !ok {
		st = &perThreadInterpreterState{labelCache: make(map[string]string)}
		a.states[tid] = st
	}
	return st
}

// ProfilerFunction is the per-frame hook (§4.4, §6
// profiler.profiler_function). It is reentrancy-safe: a nested invocation
// reached through the adapter's own filter-matching or label-formatting
// code returns immediately.
func (a *InterpreterAdapter) ProfilerFunction(frame Frame, eventName string, arg any) {
	tid := threadID()
	st := a.stateFor(tid)

	if st.inGuard {
		return
	}
	st.inGuard = true
	defer func() { st.inGuard = false }() // scope-bound release (§5, §9): clears on every exit path

	kind := parseEventKind(eventName)
	switch kind {
	case EventCall, EventCCall:
		a.handleCall(st, tid, frame, kind)
	case EventReturn, EventCReturn:
		a.handleReturn(st, kind)
	default:
		logAt(LevelDebug, "interpreter", fmt.Sprintf("unexpected phase value %q", eventName), nil)
	}
}

func (a *InterpreterAdapter) handleCall(st *perThreadInterpreterState, tid int64, frame Frame, kind EventKind) {
	if st.ignoreStackDepth > 0 {
		if kind == EventCall {
			st.ignoreStackDepth++
		}
		return
	}

	cfg := a.config.SnapshotFor(tid)

	fd, shortCircuit := decideFunction(cfg, frame.FuncName)
	if !shortCircuit {
		fnd := decideFilename(cfg, frame.Filename, a.install)
		fd = mergeFilenameDecision(fd, fnd)
	}

	if !fd.collect {
		if fd.touchIgnoreStack && kind == EventCall {
			st.ignoreStackDepth++
		}
		return
	}

	label := a.internLabel(st, cfg, frame)
	a.sink.PushRegion(label)
	st.popStack = append(st.popStack, func() { a.sink.PopRegion(label) })
}

func mergeFilenameDecision(fnDecision, fileDecision filterDecision) filterDecision {
	if fnDecision.forceCollect {
		return fnDecision
	}
	return fileDecision
}

// handleReturn pops the matching push for a RETURN or C_RETURN. Only a
// plain RETURN adjusts ignoreStackDepth (§4.4: "non-matching C events do not
// update it") — a C_RETURN while skipping is itself skipped, symmetric with
// handleCall never bumping the depth for a C_CALL.
func (a *InterpreterAdapter) handleReturn(st *perThreadInterpreterState, kind EventKind) {
	if st.ignoreStackDepth > 0 {
		if kind == EventReturn {
			st.ignoreStackDepth--
		}
		return
	}
	n := len(st.popStack)
	if n == 0 {
		return
	}
	pop := st.popStack[n-1]
	st.popStack = st.popStack[:n-1]
	pop()
}

// internLabel builds the stable label described in §4.4 ("Label
// construction") and interns it per thread so push/pop always operate on
// the same string value for a given (func,file,line).
func (a *InterpreterAdapter) internLabel(st *perThreadInterpreterState, cfg *InterpreterConfig, frame Frame) string {
	key := fmt.Sprintf("%s\x00%s\x00%d", frame.FuncName, frame.Filename, frame.Line)
	if label, ok := st.labelCache[key]; ok {
		return label
	}
	label := buildLabel(cfg, frame)
	st.labelCache[key] = label
	return label
}

func buildLabel(cfg *InterpreterConfig, frame Frame) string {
	var b strings.Builder
	name := frame.FuncName
	if cfg.TraceC {
		b.WriteByte('[')
		b.WriteString(name)
		b.WriteByte(']')
	} else {
		b.WriteString(name)
	}
	if cfg.IncludeArgs && len(frame.Args) > 0 {
		b.WriteByte('(')
		b.WriteString(strings.Join(frame.Args, ", "))
		b.WriteByte(')')
	}
	if cfg.IncludeFilename {
		file := frame.Filename
		if !cfg.FullFilepath {
			file = filepath.Base(file)
		}
		fmt.Fprintf(&b, "[%s", file)
		if cfg.IncludeLine {
			fmt.Fprintf(&b, ":%d", frame.Line)
		}
		b.WriteByte(']')
	}
	return b.String()
}
