package omnitrace

// sinks.go defines the narrow interfaces the core consumes from the
// external collaborators named in spec §6: the perfetto/timemory sink
// layer, out of scope for this module, is whatever implements these.

// RegionSink receives push/pop region events from the Interpreter Trace
// Adapter. stableLabel must outlive the span it delimits (§6): callers pass
// the interned label pointer from the per-thread label cache in
// interpreter.go, never a freshly allocated string.
type RegionSink interface {
	PushRegion(stableLabel string)
	PopRegion(stableLabel string)
}

// SpanSink receives BEGIN/END host-API events and device-activity spans,
// all timestamps already in host-clock nanoseconds.
type SpanSink interface {
	// EmitHostBegin records the enter-phase of a host-API call. queue is the
	// stream handle extracted from the API-specific union (0 for APIs that
	// don't carry one, §4.5 step 2).
	EmitHostBegin(corrID uint64, causal CausalChain, name string, beginNS int64, queue uint64)
	// EmitHostEnd records the matching exit-phase, with the same queue
	// handle recorded at ENTER.
	EmitHostEnd(corrID uint64, causal CausalChain, endNS int64, queue uint64)
	// EmitDeviceSpan records a completed device-side operation (§4.6).
	EmitDeviceSpan(span DeviceSpan)
}

// StatSink receives duration samples for statistical aggregation,
// independent of the timeline sink (§4.6 step 4b).
type StatSink interface {
	RecordDuration(category string, d int64)
}

type sinkSet struct {
	region RegionSink
	span   SpanSink
	stat   StatSink
}

type noopRegionSink struct{}

func (noopRegionSink) PushRegion(string) {}
func (noopRegionSink) PopRegion(string)  {}

type noopSpanSink struct{}

func (noopSpanSink) EmitHostBegin(uint64, CausalChain, string, int64, uint64) {}
func (noopSpanSink) EmitHostEnd(uint64, CausalChain, int64, uint64)           {}
func (noopSpanSink) EmitDeviceSpan(DeviceSpan)                                {}

type noopStatSink struct{}

func (noopStatSink) RecordDuration(string, int64) {}

// DeviceSpan is the deferred payload built by the Activity Callback (§4.6
// step 4) and dispatched via the per-thread activity queue.
type DeviceSpan struct {
	KernelName string
	OpClass    string
	CorrID     uint64
	DeviceID   uint32
	QueueID    uint64
	BeginNS    int64
	EndNS      int64
	Fallback   bool // true if no kernel name was registered for CorrID and KernelName is the generic op name
}
