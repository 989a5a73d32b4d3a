package omnitrace

import "sync"

// activityQueue is the per-thread deferred-work queue of §4.3: an ordered
// sequence of zero-argument closures, guarded by a per-thread mutex,
// appended by the Activity Callback and drained by the owning thread at
// every host-call boundary. The queue owns its mutex, so callers need no
// external lock; Drain moves the pending closures out under the lock and
// runs them after releasing it. A plain slice suffices since
// activity-callback fan-in per thread is modest.
type activityQueue struct {
	mu    sync.Mutex
	tasks []func()
}

// Append adds a closure to the tail of the queue. Called from the Activity
// Callback, which may run on any runtime worker thread.
func (q *activityQueue) Append(task func()) {
	q.mu.Lock()
	q.tasks = append(q.tasks, task)
	q.mu.Unlock()
}

// Drain empties the queue and runs every closure, in FIFO order, outside
// the lock (§4.3: "moved out, released, then each closure is executed
// outside the lock"). Drain is all-or-nothing: a closure appended after the
// move-out is not observed by this call.
func (q *activityQueue) Drain() {
	q.mu.Lock()
	tasks := q.tasks
	q.tasks = nil
	q.mu.Unlock()

	for _, t := range tasks {
		t()
	}
}

// activityQueueSet owns one activityQueue per origin thread, created
// lazily on first touch.
type activityQueueSet struct {
	mu     sync.Mutex
	queues map[int64]*activityQueue
}

func newActivityQueueSet() *activityQueueSet {
	return &activityQueueSet{queues: make(map[int64]*activityQueue)}
}

// For returns (creating if necessary) the queue for the given thread.
func (s *activityQueueSet) For(tid int64) *activityQueue {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.queues[tid]
	if !ok {
		q = &activityQueue{}
		s.queues[tid] = q
	}
	return q
}

// DrainAll drains every known per-thread queue. Used at OnUnload for the
// final global drain (§4.6 state machine: "unload triggers a final global
// drain").
func (s *activityQueueSet) DrainAll() {
	s.mu.Lock()
	queues := make([]*activityQueue, 0, len(s.queues))
	for _, q := range s.queues {
		queues = append(queues, q)
	}
	s.mu.Unlock()

	for _, q := range queues {
		q.Drain()
	}
}
