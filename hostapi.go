package omnitrace

import (
	"sync"
	"time"
)

// Phase is the ENTER/EXIT discriminator of the host-API callback (§6).
type Phase int

const (
	PhaseEnter Phase = iota
	PhaseExit
)

// APIID identifies a host-API call of interest. The concrete numbering is
// owned by the accelerator runtime; this module only needs to compare ids
// against the tables below.
type APIID uint32

// APIDescriptor is the compile-time-switch replacement of §4.5 step 2/3:
// static metadata about one API id, supplied by the embedding host (it
// knows the real runtime's API table; this module only consumes the
// result).
type APIDescriptor struct {
	HasQueue       bool
	IsLaunchKernel bool
	// Filtered marks internal book-keeping APIs excluded before any work is
	// done (§4.5: "push/pop config, peer access enable, external-memory
	// import/destroy on supported runtime versions").
	Filtered bool
}

// APITable is the narrow seam into the real runtime's API metadata and
// per-call union (§6 "API-specific union").
type APITable interface {
	Describe(id APIID) APIDescriptor
	// QueueHandle extracts the stream handle from the API-specific union
	// for an API whose descriptor reports HasQueue. Returns 0 for APIs that
	// don't carry a stream.
	QueueHandle(data any, id APIID) uint64
	// KernelName resolves the symbol pointer carried by a launch-kernel
	// call's union into a display name. ok is false if the runtime's
	// pointer-to-name helper returned null (§7 "Missing symbol").
	KernelName(data any, id APIID) (name string, ok bool)
}

type hostAPIThreadState struct {
	inGuard bool
}

// HostAPI is the Host-API Callback of §4.5: entered synchronously on the
// traced application's thread for each API call of interest.
type HostAPI struct {
	table    APITable
	registry *correlationRegistry
	causal   *causalChainAllocator
	queues   *activityQueueSet
	sink     SpanSink

	stateMu sync.Mutex
	states  map[int64]*hostAPIThreadState

	// begins tracks the ENTER timestamp and queue per corrID so
	// EXIT can validate ordering (§8: END.timestamp >= BEGIN.timestamp) and
	// drop timestamp-inverted pairs (§7).
	beginMu sync.Mutex
	begins  map[uint64]hostAPIBegin
}

type hostAPIBegin struct {
	ns    int64
	queue uint64
}

// NewHostAPI constructs a Host-API Callback bound to the given shared
// state. All parameters are owned by the Tracer that constructs it.
func NewHostAPI(table APITable, registry *correlationRegistry, causal *causalChainAllocator, queues *activityQueueSet, sink SpanSink) *HostAPI {
	if sink == nil {
		sink = noopSpanSink{}
	}
	return &HostAPI{
		table:    table,
		registry: registry,
		causal:   causal,
		queues:   queues,
		sink:     sink,
		states:   make(map[int64]*hostAPIThreadState),
		begins:   make(map[uint64]hostAPIBegin),
	}
}

func (h *HostAPI) stateFor(tid int64) *hostAPIThreadState {
	h.stateMu.Lock()
	defer h.stateMu.Unlock()
	st, ok := h.states[tid]
	if !ok {
		st = &hostAPIThreadState{}
		h.states[tid] = st
	}
	return st
}

// Callback is invoked by the runtime once per host-API call, at ENTER and
// at EXIT (§4.5, §6 "(domain_id, call_id, const void* data, void* user)").
func (h *HostAPI) Callback(phase Phase, id APIID, corrID uint64, data any) {
	desc := h.table.Describe(id)
	if desc.Filtered {
		return
	}

	tid := threadID()
	st := h.stateFor(tid)
	if st.inGuard {
		return
	}
	st.inGuard = true
	defer func() { st.inGuard = false }()

	if phase == PhaseEnter {
		h.onEnter(id, desc, corrID, tid, data)
	} else {
		h.onExit(corrID, tid)
	}
}

func (h *HostAPI) onEnter(id APIID, desc APIDescriptor, corrID uint64, tid int64, data any) {
	hostNS := time.Now().UnixNano()

	var queue uint64
	if desc.HasQueue {
		queue = h.table.QueueHandle(data, id)
	}

	if desc.IsLaunchKernel {
		if name, ok := h.table.KernelName(data, id); ok {
			h.registry.InsertKeyName(corrID, name)
		}
		h.registry.InsertOriginThread(corrID, tid)
	}

	chain := h.causal.Push(tid)
	h.registry.InsertCausalChain(corrID, chain)

	h.beginMu.Lock()
	h.begins[corrID] = hostAPIBegin{ns: hostNS, queue: queue}
	h.beginMu.Unlock()

	name, _ := h.registry.LookupKeyName(corrID)
	h.sink.EmitHostBegin(corrID, chain, name, hostNS, queue)

	h.queues.For(tid).Drain()
}

func (h *HostAPI) onExit(corrID uint64, tid int64) {
	h.queues.For(tid).Drain()

	chain, _ := h.registry.LookupCausalChain(corrID)
	endNS := time.Now().UnixNano()

	h.beginMu.Lock()
	begin, ok := h.begins[corrID]
	delete(h.begins, corrID)
	h.beginMu.Unlock()

	if ok && endNS < begin.ns {
		// §7 "Timestamp inversion": event is dropped.
		logAt(LevelWarn, "hostapi", "dropping END with inverted timestamp", nil)
		h.causal.Pop(tid)
		return
	}

	h.sink.EmitHostEnd(corrID, chain, endNS, begin.queue)
	h.causal.Pop(tid)
}
