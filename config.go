package omnitrace

import "sync"

// InterpreterConfig is the per-thread record of §3: booleans, integers, and
// six regex-set string collections. The first thread to touch it copies a
// process-wide master; from then on the copy is this thread's own,
// immutable with respect to any other thread (§3 invariant: "a thread's
// config never becomes visible to another thread").
type InterpreterConfig struct {
	// booleans
	TraceC           bool
	IncludeArgs      bool
	IncludeLine      bool
	IncludeFilename  bool
	FullFilepath     bool
	IncludeInternal  bool

	// integers
	IgnoreStackDepth int
	Verbose          int
	depthTracker     int

	// regex sets, six total: {restrict,include,exclude} x {functions,filenames}
	RestrictFunctions *regexSet
	IncludeFunctions  *regexSet
	ExcludeFunctions  *regexSet
	RestrictFilenames *regexSet
	IncludeFilenames  *regexSet
	ExcludeFilenames  *regexSet
}

// defaultExcludeFunctions mirrors the "default exclude set" referenced by
// §4.4 step 3: functions excluded by default do not perturb
// IgnoreStackDepth, since they're not considered part of the traced
// program's own call tree.
var defaultExcludeFunctions = []string{
	"^<genexpr>$",
	"^<listcomp>$",
	"^<dictcomp>$",
	"^<setcomp>$",
	"^__exit__$",
	"^__enter__$",
}

func newDefaultConfig() *InterpreterConfig {
	return &InterpreterConfig{
		IncludeLine:       true,
		IncludeFilename:   true,
		RestrictFunctions: newRegexSet(nil),
		IncludeFunctions:  newRegexSet(nil),
		ExcludeFunctions:  newRegexSet(defaultExcludeFunctions),
		RestrictFilenames: newRegexSet(nil),
		IncludeFilenames:  newRegexSet(nil),
		ExcludeFilenames:  newRegexSet(nil),
	}
}

// Clone returns an independent, deep copy suitable for a new thread's
// snapshot: mutating the clone never affects the master or any other
// thread's snapshot.
func (c *InterpreterConfig) Clone() *InterpreterConfig {
	clone := *c
	clone.RestrictFunctions = c.RestrictFunctions.clone()
	clone.IncludeFunctions = c.IncludeFunctions.clone()
	clone.ExcludeFunctions = c.ExcludeFunctions.clone()
	clone.RestrictFilenames = c.RestrictFilenames.clone()
	clone.IncludeFilenames = c.IncludeFilenames.clone()
	clone.ExcludeFilenames = c.ExcludeFilenames.clone()
	return &clone
}

// configRegistry owns the process-wide master config and hands out
// per-thread immutable snapshots on first access (§3, §9 "per-thread
// snapshot config").
type configRegistry struct {
	once   sync.Once
	mu     sync.RWMutex
	master *InterpreterConfig

	snapMu    sync.Mutex
	snapshots map[int64]*InterpreterConfig
}

func newConfigRegistry() *configRegistry {
	return &configRegistry{
		snapshots: make(map[int64]*InterpreterConfig),
	}
}

func (r *configRegistry) initMaster() {
	r.once.Do(func() {
		r.master = newDefaultConfig()
	})
}

// Master returns the process-wide master config, for mutation by
// profiler.config setters (§6) before any thread has snapshotted it, or to
// change defaults for threads that have not yet been seen.
func (r *configRegistry) Master() *InterpreterConfig {
	r.initMaster()
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.master
}

// SnapshotFor returns the calling thread's own config, copying the master
// on first access and caching it thereafter.
func (r *configRegistry) SnapshotFor(tid int64) *InterpreterConfig {
	r.initMaster()

	r.snapMu.Lock()
	defer r.snapMu.Unlock()
	if snap, ok := r.snapshots[tid]; ok {
		return snap
	}
	r.mu.RLock()
	snap := r.master.Clone()
	r.mu.RUnlock()
	r.snapshots[tid] = snap
	return snap
}
