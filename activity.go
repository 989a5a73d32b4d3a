package omnitrace

import (
	"fmt"
	"sync"
	"time"

	catrate "github.com/joeycumines/go-catrate"
)

// OpClass classifies a device-side activity record (§4.6 step 1 "op id >
// BARRIER").
type OpClass int

const (
	OpDispatch OpClass = iota
	OpCopy
	OpBarrier
	opClassLimit // sentinel: anything >= this is out of range
)

func (c OpClass) fallbackName() string {
	switch c {
	case OpDispatch:
		return "DISPATCH"
	case OpCopy:
		return "COPY"
	case OpBarrier:
		return "BARRIER"
	default:
		return "UNKNOWN"
	}
}

// Domain distinguishes device-ops records from everything else the runtime
// might emit through the same buffer (§4.6 step 1).
type Domain int

const (
	DomainDeviceOps Domain = iota
	DomainOther
)

// ActivityRecord is the fixed-layout struct of §6, decoded by the
// embedding host from the raw `[begin,end)` buffer and handed to the
// Activity Callback one at a time.
type ActivityRecord struct {
	Domain    Domain
	Op        OpClass
	CorrID    uint64
	DeviceID  uint32
	QueueID   uint64
	ProcessID uint32
	BeginNS   int64
	EndNS     int64
}

// ActivityBuffer iterates a runtime-supplied buffer of activity records
// (§6 "const char* begin, const char* end"). The embedding host supplies
// the decode logic; this module only needs the sequence.
type ActivityBuffer interface {
	// Next decodes and advances past the next record. ok is false once the
	// buffer is exhausted. The iterator must always advance, even when the
	// decoded record is later skipped (§4.6: "must always advance the
	// record pointer, even on continue paths").
	Next() (rec ActivityRecord, ok bool)
}

// kernelNameCache maps a record's identifying info to a resolved name,
// populated lazily (§3). The source models this as thread-local; Go has no
// native thread-local storage, so it is kept as a per-thread map instead:
// each thread's names are kept apart, but every lookup and insert, from
// any thread, takes the one mutex below.
type kernelNameCache struct {
	mu     sync.Mutex
	caches map[int64]map[uint64]string
}

func newKernelNameCache() *kernelNameCache {
	return &kernelNameCache{caches: make(map[int64]map[uint64]string)}
}

func (c *kernelNameCache) get(tid int64, corrID uint64) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.caches[tid]
	if !ok {
		return "", false
	}
	name, ok := m[corrID]
	return name, ok
}

func (c *kernelNameCache) put(tid int64, corrID uint64, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.caches[tid]
	if !ok {
		m = make(map[uint64]string)
		c.caches[tid] = m
	}
	m[corrID] = name
}

// ActivityCallback is §4.6: entered on a runtime-owned worker thread with a
// buffer of completed device operations.
type ActivityCallback struct {
	registry *correlationRegistry
	queues   *activityQueueSet
	clock    *clockReconciler
	sink     SpanSink
	stats    StatSink
	names    *kernelNameCache

	malformedLimiter *catrate.Limiter
}

// NewActivityCallback constructs the Activity Callback bound to the given
// shared state. "Malformed record" diagnostics (§7) are rate-limited via
// go-catrate to at most one per second and 20 per minute, so a pathological
// stream of bad records can't flood the host process's log.
func NewActivityCallback(registry *correlationRegistry, queues *activityQueueSet, clock *clockReconciler, sink SpanSink, stats StatSink) *ActivityCallback {
	if sink == nil {
		sink = noopSpanSink{}
	}
	if stats == nil {
		stats = noopStatSink{}
	}
	limiter := catrate.NewLimiter(map[time.Duration]int{
		time.Second: 1,
		time.Minute: 20,
	})
	return &ActivityCallback{
		registry:         registry,
		queues:           queues,
		clock:            clock,
		sink:             sink,
		stats:            stats,
		names:            newKernelNameCache(),
		malformedLimiter: limiter,
	}
}

// Handle processes every record in buf (§4.6). Signal delivery on the
// calling OS thread is blocked for the duration of the loop (§5 "Signal
// handling"), so the sampling profiler external collaborator can't
// interrupt the critical section; the mask is restored on return.
func (a *ActivityCallback) Handle(buf ActivityBuffer) {
	unblock := blockSignals()
	defer unblock()

	workerTID := threadID()
	for {
		rec, ok := buf.Next()
		if !ok {
			return
		}
		a.handleOne(rec, workerTID)
	}
}

func (a *ActivityCallback) handleOne(rec ActivityRecord, workerTID int64) {
	// step 1: domain/op-range filter (§4.6, §7 "Malformed record")
	if rec.Domain != DomainDeviceOps || rec.Op >= opClassLimit || rec.Op < OpDispatch {
		if _, allowed := a.malformedLimiter.Allow("malformed-activity-record"); allowed {
			logAt(LevelDebug, "activity", "skipping record outside declared domain/op range", nil)
		}
		return
	}

	// step 2: skew-correct
	beginNS := a.clock.CorrectTimestamp(rec.BeginNS)
	endNS := a.clock.CorrectTimestamp(rec.EndNS)

	// step 3: correlate
	name, originTID, fallback := a.resolveName(rec, workerTID)

	// step 4: build the deferred closure and append to the origin thread's
	// queue (§4.6 step 5).
	span := DeviceSpan{
		KernelName: name,
		OpClass:    opClassName(rec.Op),
		CorrID:     rec.CorrID,
		DeviceID:   rec.DeviceID,
		QueueID:    rec.QueueID,
		BeginNS:    beginNS,
		EndNS:      endNS,
		Fallback:   fallback,
	}
	duration := endNS - beginNS
	a.queues.For(originTID).Append(func() {
		a.sink.EmitDeviceSpan(span)
		a.stats.RecordDuration(span.OpClass, duration)
	})
}

func (a *ActivityCallback) resolveName(rec ActivityRecord, workerTID int64) (name string, originTID int64, fallback bool) {
	if n, tid, _, found := a.registry.Lookup(rec.CorrID); found {
		if n != "" {
			return n, tid, false
		}
		// registered, but no kernel name (a launch-kernel call whose name
		// could not be resolved); still attribute to the recorded origin
		// thread.
		return rec.Op.fallbackName(), tid, true
	}
	if n, ok := a.names.get(workerTID, rec.CorrID); ok {
		return n, workerTID, true
	}
	n := rec.Op.fallbackName()
	a.names.put(workerTID, rec.CorrID, n)
	return n, workerTID, true
}

func opClassName(c OpClass) string {
	switch c {
	case OpDispatch:
		return "dispatch"
	case OpCopy:
		return "copy"
	case OpBarrier:
		return "barrier"
	default:
		return fmt.Sprintf("op(%d)", c)
	}
}
