//go:build unix

package omnitrace

import "golang.org/x/sys/unix"

// blockSignals implements §5 "the activity callback requests that signal
// delivery be blocked on entry (to keep the sampling profiler, an external
// collaborator, from interrupting a critical section)". It masks every
// signal on the calling OS thread for the duration of the Activity
// Callback's dispatch loop and returns a restore func for the deferred
// unmask. If the mask cannot be set, the returned restore func does
// nothing.
func blockSignals() func() {
	var full, old unix.Sigset_t
	unix.SigFillSet(&full)
	if err := unix.PthreadSigmask(unix.SIG_SETMASK, &full, &old); err != nil {
		return func() {}
	}
	return func() {
		_ = unix.PthreadSigmask(unix.SIG_SETMASK, &old, nil)
	}
}
