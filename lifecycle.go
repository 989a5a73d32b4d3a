package omnitrace

import (
	"fmt"
	"sync"
	"time"

	catrate "github.com/joeycumines/go-catrate"
)

// TelemetryState is the per-device telemetry adapter's lifecycle state of
// §4.7.
type TelemetryState int

const (
	TelemetryInactive TelemetryState = iota
	TelemetryActive
	TelemetryFinalized
)

// SetupClosure is a registered setup/shutdown action (§4.7 step 4: "Register
// setup and shutdown closures under the name 'hsa'"). Name identifies the
// entry: registering again under an existing Name replaces that entry's
// closure (see RegisterSetup).
type SetupClosure struct {
	Name string
	Run  func() error
}

// Tracer is the top-level object wiring together every component in §2: the
// Clock Reconciler, Correlation Registry, per-thread activity queues, the
// Interpreter Trace Adapter, the Host-API and Activity callbacks, and the
// Lifecycle Controller that registers/deregisters them all.
type Tracer struct {
	opts *tracerOptions

	registry *correlationRegistry
	causal   *causalChainAllocator
	queues   *activityQueueSet
	clock    *clockReconciler

	interpreter *InterpreterAdapter
	hostAPI     *HostAPI
	activity    *ActivityCallback
	profiler    *Profiler

	mu          sync.Mutex
	initialized bool
	finalized   bool
	telemetry   TelemetryState

	setupMu   sync.Mutex
	setups    []SetupClosure
	shutdowns []SetupClosure
	setupDone map[string]bool

	degradeLimiter *catrate.Limiter
}

// New constructs a Tracer. It does not register any runtime callbacks; call
// OnLoad to do that (§4.7).
func New(opts ...Option) *Tracer {
	o := resolveTracerOptions(opts)
	return &Tracer{
		opts:           o,
		registry:       newCorrelationRegistry(),
		causal:         newCausalChainAllocator(),
		queues:         newActivityQueueSet(),
		clock:          &clockReconciler{},
		interpreter:    NewInterpreterAdapter(o.sinks.region, o.installPrefix),
		setupDone:      make(map[string]bool),
		degradeLimiter: catrate.NewLimiter(map[time.Duration]int{time.Second: 1, time.Minute: 10}),
	}
}

// Interpreter returns the Interpreter Trace Adapter for this tracer, the
// backing object for the profiler.* interpreter-side interface (§6).
func (t *Tracer) Interpreter() *InterpreterAdapter { return t.interpreter }

// BindHostAPI installs the Host-API Callback against a concrete runtime API
// table. Must be called (typically from a setup closure) before the
// runtime begins delivering calls.
func (t *Tracer) BindHostAPI(table APITable) {
	t.hostAPI = NewHostAPI(table, t.registry, t.causal, t.queues, t.opts.sinks.span)
}

// HostAPICallback returns the bound callback function, or nil if
// BindHostAPI has not been called.
func (t *Tracer) HostAPICallback() func(Phase, APIID, uint64, any) {
	if t.hostAPI == nil {
		return nil
	}
	return t.hostAPI.Callback
}

// BindActivity installs the Activity Callback.
func (t *Tracer) BindActivity() {
	t.activity = NewActivityCallback(t.registry, t.queues, t.clock, t.opts.sinks.span, t.opts.sinks.stat)
}

// ActivityCallback returns the bound callback, or nil if BindActivity has
// not been called.
func (t *Tracer) ActivityCallback() func(ActivityBuffer) {
	if t.activity == nil {
		return nil
	}
	return t.activity.Handle
}

// RegisterSetup adds a setup/shutdown closure pair under name (§4.7 step 4,
// §9 "the controller should make the setup lists idempotent with respect to
// re-registration"). Re-registering the same name replaces the prior
// closure rather than duplicating it.
func (t *Tracer) RegisterSetup(name string, setup, shutdown func() error) {
	t.setupMu.Lock()
	defer t.setupMu.Unlock()

	replaced := false
	for i := range t.setups {
		if t.setups[i].Name == name {
			t.setups[i].Run = setup
			replaced = true
			break
		}
	}
	if !replaced {
		t.setups = append(t.setups, SetupClosure{Name: name, Run: setup})
	}

	replaced = false
	for i := range t.shutdowns {
		if t.shutdowns[i].Name == name {
			t.shutdowns[i].Run = shutdown
			replaced = true
			break
		}
	}
	if !replaced {
		t.shutdowns = append(t.shutdowns, SetupClosure{Name: name, Run: shutdown})
	}
}

// OnLoad is the dynamic-library entry point of §4.7/§6. It returns true
// unconditionally on the successful path, false only if
// OMNITRACE_INIT_TOOLING instructs the tracer to stand down.
func (t *Tracer) OnLoad(deviceClock DeviceClock) bool {
	if !t.opts.initTooling {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	// §9: OnLoad must be safe to call more than once; re-registration of an
	// already-active telemetry state is a no-op rather than a double setup.
	if t.telemetry == TelemetryActive {
		return true
	}

	t.clock.resolve(t.opts.clockSkewEnabled, deviceClock)
	t.telemetry = TelemetryActive

	t.setupMu.Lock()
	setups := append([]SetupClosure(nil), t.setups...)
	t.setupMu.Unlock()

	for _, s := range setups {
		if s.Run == nil {
			continue
		}
		if err := s.Run(); err != nil {
			// §7: runtime registration failure is caught, logged, and does
			// not abort load.
			if _, allowed := t.degradeLimiter.Allow(s.Name); allowed {
				logAt(LevelError, "lifecycle", fmt.Sprintf("setup closure %q failed, tracing degrades", s.Name), err)
			}
		}
	}
	return true
}

// OnUnload is the dynamic-library entry point of §4.7/§6: moves telemetry
// to Finalized, disables domain callbacks via the registered shutdown
// closures, and performs the final global activity-queue drain (§4.6 state
// machine).
func (t *Tracer) OnUnload() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.telemetry == TelemetryFinalized {
		// §8 round-trip: a repeat OnUnload is a no-op.
		return
	}
	t.telemetry = TelemetryFinalized

	t.setupMu.Lock()
	shutdowns := append([]SetupClosure(nil), t.shutdowns...)
	t.setupMu.Unlock()

	for _, s := range shutdowns {
		if s.Run == nil {
			continue
		}
		if err := s.Run(); err != nil {
			logAt(LevelError, "lifecycle", fmt.Sprintf("shutdown closure %q failed", s.Name), err)
		}
	}

	t.queues.DrainAll()
}

// --- interpreter-side interface (§6) ---

// IsInitialized reports whether a trace session is currently in effect.
func (t *Tracer) IsInitialized() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.initialized
}

// IsFinalized reports whether Finalize has been called.
func (t *Tracer) IsFinalized() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.finalized
}

// InitializeCommand establishes a trace session from a single command
// string (§6, §9: one of the two disambiguated overloads).
func (t *Tracer) InitializeCommand(command string) error {
	return t.initializeLocked(command)
}

// InitializeArgv establishes a trace session from an argv list, whose
// space-joined concatenation is exposed to sinks as the command line (§6,
// §9: the second disambiguated overload).
func (t *Tracer) InitializeArgv(argv []string) error {
	joined := joinArgs(argv)
	return t.initializeLocked(joined)
}

func joinArgs(argv []string) string {
	out := ""
	for i, a := range argv {
		if i > 0 {
			out += " "
		}
		out += a
	}
	return out
}

func (t *Tracer) initializeLocked(commandLine string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.initialized {
		return contractViolation("initialize", ErrAlreadyInitialized)
	}

	t.opts.commandLine = commandLine
	_ = t.opts.mpiDetector() // MPI auto-detection gate (§9); result available to hosts via DetectMPI.
	t.initialized = true
	t.finalized = false
	return nil
}

// DetectMPI reports whether the configured MPI detector (WithMPIDetector)
// believes an MPI library is importable at runtime (§9 Open Questions). The
// default detector always returns false.
func (t *Tracer) DetectMPI() bool {
	return t.opts.mpiDetector()
}

// CommandLine returns the command line recorded by the most recent
// InitializeCommand/InitializeArgv call (§6 OMNITRACE_COMMAND_LINE).
func (t *Tracer) CommandLine() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.opts.commandLine
}

// Finalize ends the trace session (§6). One-shot: a second call raises.
func (t *Tracer) Finalize() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.finalized {
		return contractViolation("finalize", ErrAlreadyFinalized)
	}
	if !t.initialized {
		return contractViolation("finalize", ErrNotInitialized)
	}
	t.finalized = true
	t.initialized = false
	return nil
}
