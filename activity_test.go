package omnitrace

import "testing"

type sliceActivityBuffer struct {
	recs []ActivityRecord
	i    int
}

func (b *sliceActivityBuffer) Next() (ActivityRecord, bool) {
	if b.i >= len(b.recs) {
		return ActivityRecord{}, false
	}
	r := b.recs[b.i]
	b.i++
	return r, true
}

func newTestActivityCallback(sink SpanSink, stats StatSink) (*ActivityCallback, *correlationRegistry, *activityQueueSet) {
	registry := newCorrelationRegistry()
	queues := newActivityQueueSet()
	clock := &clockReconciler{}
	return NewActivityCallback(registry, queues, clock, sink, stats), registry, queues
}

func TestActivityCallback_MalformedRecordSkipped(t *testing.T) {
	sink := &recordingSpanSink{}
	a, _, _ := newTestActivityCallback(sink, nil)

	buf := &sliceActivityBuffer{recs: []ActivityRecord{
		{Domain: DomainOther, Op: OpDispatch, CorrID: 1},
		{Domain: DomainDeviceOps, Op: opClassLimit, CorrID: 2},
	}}
	a.Handle(buf)

	if len(sink.spans) != 0 {
		t.Fatalf("expected no emitted spans for malformed records, got %d", len(sink.spans))
	}
}

func TestActivityCallback_BufferAlwaysAdvances(t *testing.T) {
	sink := &recordingSpanSink{}
	a, _, _ := newTestActivityCallback(sink, nil)

	buf := &sliceActivityBuffer{recs: []ActivityRecord{
		{Domain: DomainOther, Op: OpDispatch},
		{Domain: DomainDeviceOps, Op: OpDispatch, CorrID: 5},
	}}
	a.Handle(buf)

	if buf.i != len(buf.recs) {
		t.Fatalf("buffer position = %d, want %d (must always advance)", buf.i, len(buf.recs))
	}
}

func TestActivityCallback_CorrelatedRecordUsesRegisteredNameAndThread(t *testing.T) {
	sink := &recordingSpanSink{}
	a, registry, queues := newTestActivityCallback(sink, nil)
	registry.InsertEnter(7, "vecAdd", 42, CausalChain{})

	buf := &sliceActivityBuffer{recs: []ActivityRecord{
		{Domain: DomainDeviceOps, Op: OpDispatch, CorrID: 7, BeginNS: 100, EndNS: 200},
	}}
	a.Handle(buf)
	queues.For(42).Drain()

	if len(sink.spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(sink.spans))
	}
	span := sink.spans[0]
	if span.KernelName != "vecAdd" || span.Fallback {
		t.Errorf("span = %+v, want KernelName=vecAdd Fallback=false", span)
	}
}

func TestActivityCallback_NonKernelHostCallFallsBackToWorkerThread(t *testing.T) {
	// A non-launch-kernel host call (e.g. a memcpy-async) gets a causal-chain
	// entry at ENTER (§4.5 step 4) but no keyName/originThread entry (§4.5
	// step 3 only applies to launch-kernel calls). Lookup must therefore
	// report not-found, and the activity record must fall back to the
	// current (worker) thread rather than the zero-value tid (§4.6 step 3).
	sink := &recordingSpanSink{}
	a, registry, queues := newTestActivityCallback(sink, nil)
	registry.InsertCausalChain(11, CausalChain{CID: 1})

	workerTID := threadID()
	buf := &sliceActivityBuffer{recs: []ActivityRecord{
		{Domain: DomainDeviceOps, Op: OpCopy, CorrID: 11, BeginNS: 0, EndNS: 5},
	}}
	a.Handle(buf)

	if zeroQ := queues.For(0); len(zeroQ.tasks) != 0 {
		t.Fatal("the span must not be queued under thread-id 0 (no thread ever drains it)")
	}
	queues.For(workerTID).Drain()

	if len(sink.spans) != 1 {
		t.Fatalf("expected 1 span attributed to the worker thread, got %d", len(sink.spans))
	}
	if !sink.spans[0].Fallback {
		t.Error("a causal-chain-only correlation hit must still be reported as a fallback attribution")
	}
	if sink.spans[0].KernelName != "COPY" {
		t.Errorf("fallback name = %q, want COPY", sink.spans[0].KernelName)
	}
}

func TestActivityCallback_UnknownCorrelationFallsBack(t *testing.T) {
	sink := &recordingSpanSink{}
	a, _, queues := newTestActivityCallback(sink, nil)

	workerTID := threadID()
	buf := &sliceActivityBuffer{recs: []ActivityRecord{
		{Domain: DomainDeviceOps, Op: OpCopy, CorrID: 999, BeginNS: 0, EndNS: 10},
	}}
	a.Handle(buf)
	queues.For(workerTID).Drain()

	if len(sink.spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(sink.spans))
	}
	if !sink.spans[0].Fallback {
		t.Error("an unregistered corrID should be reported as a fallback attribution")
	}
	if sink.spans[0].KernelName != "COPY" {
		t.Errorf("fallback name = %q, want COPY", sink.spans[0].KernelName)
	}
}

func TestActivityCallback_RecordsDurationToStatSink(t *testing.T) {
	sink := &recordingSpanSink{}
	stats := NewStatisticalSink()
	a, registry, queues := newTestActivityCallback(sink, stats)
	registry.InsertEnter(1, "k", 3, CausalChain{})

	buf := &sliceActivityBuffer{recs: []ActivityRecord{
		{Domain: DomainDeviceOps, Op: OpDispatch, CorrID: 1, BeginNS: 0, EndNS: 1000},
	}}
	a.Handle(buf)
	queues.For(3).Drain()

	snap, ok := stats.Snapshot("dispatch")
	if !ok {
		t.Fatal("expected a recorded sample under category dispatch")
	}
	if snap.Count != 1 || snap.SumNS != 1000 {
		t.Errorf("snap = %+v, want Count=1 SumNS=1000", snap)
	}
}
