package omnitrace

import (
	"fmt"

	"github.com/dop251/goja"
)

// GojaInterpreter binds InterpreterAdapter to a goja.Runtime, the concrete
// embeddable interpreter for this module (goja stands in for the CPython
// interpreter the original tracer hooks via sys.settrace). goja has no
// bytecode-level trace hook exposed publicly, so instrumentation happens
// at the function-value boundary: every JS-callable function the host
// exposes to the runtime is wrapped so that invoking it fires
// ProfilerFunction with a CALL event before and a RETURN event after,
// exactly mirroring the push/pop discipline of §4.4 for C-call boundaries.
// This is the practical idiomatic analogue of sys.settrace in an embedded,
// non-bytecode-instrumentable runtime, following the same
// wrap-then-Set-on-global pattern goja-eventloop's Adapter.Bind uses for
// setTimeout/setInterval/queueMicrotask.
type GojaInterpreter struct {
	runtime *goja.Runtime
	adapter *InterpreterAdapter
	file    string
}

// NewGojaInterpreter wires adapter to runtime. file is reported as the
// Frame.Filename for every traced call (goja scripts are typically
// evaluated from a single named source unit per Tracer instance).
func NewGojaInterpreter(runtime *goja.Runtime, adapter *InterpreterAdapter, file string) *GojaInterpreter {
	return &GojaInterpreter{runtime: runtime, adapter: adapter, file: file}
}

// TraceFunction wraps fn so that every invocation emits a matched CALL and
// RETURN through the Interpreter Trace Adapter, then binds it under name on
// the runtime's global object, like Adapter.Bind binds setTimeout et al.
func (g *GojaInterpreter) TraceFunction(name string, fn func(goja.FunctionCall) goja.Value) error {
	traced := func(call goja.FunctionCall) (result goja.Value) {
		frame := Frame{FuncName: name, Filename: g.file, Line: 0}
		if len(call.Arguments) > 0 {
			args := make([]string, 0, len(call.Arguments))
			for _, a := range call.Arguments {
				args = append(args, a.String())
			}
			frame.Args = args
		}
		g.adapter.ProfilerFunction(frame, "call", nil)
		defer g.adapter.ProfilerFunction(frame, "return", result)

		result = fn(call)
		return result
	}
	return g.runtime.Set(name, traced)
}

// TraceAll wraps every currently-set global function value in place with
// the same CALL/RETURN instrumentation as TraceFunction, for scripts that
// register their own top-level functions before tracing is attached. The
// frames it reports carry no argument strings.
func (g *GojaInterpreter) TraceAll() error {
	global := g.runtime.GlobalObject()
	for _, key := range global.Keys() {
		v := global.Get(key)
		callable, ok := goja.AssertFunction(v)
		if !ok {
			continue
		}
		name := key
		wrapped := func(call goja.FunctionCall) (result goja.Value) {
			frame := Frame{FuncName: name, Filename: g.file}
			g.adapter.ProfilerFunction(frame, "call", nil)
			defer g.adapter.ProfilerFunction(frame, "return", result)

			res, err := callable(goja.Undefined(), call.Arguments...)
			if err != nil {
				panic(g.runtime.NewGoError(err))
			}
			return res
		}
		if err := global.Set(name, wrapped); err != nil {
			return fmt.Errorf("omnitrace: failed to wrap %q: %w", name, err)
		}
	}
	return nil
}
