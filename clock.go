package omnitrace

import (
	"runtime"
	"sync"
	"time"
)

// clockSkewSamples is the number of host/device sample pairs averaged by
// the reconciler (§4.1).
const clockSkewSamples = 10

// DeviceClock is the accelerator-runtime timestamp source the reconciler
// samples against the host wall clock. A real binding queries the runtime's
// own monotonic clock (e.g. an HSA system-clock call); it is supplied by
// the embedding host, not implemented here (§1 "external collaborators").
type DeviceClock interface {
	// NowNS returns the current device-clock timestamp in nanoseconds, or
	// an error if the query failed.
	NowNS() (int64, error)
}

// clockReconciler computes and caches the signed host/device clock offset
// described in §4.1: one fixed offset, computed once and never recomputed
// per call. Each sample triple is preceded by a runtime.Gosched call; no
// explicit memory fence surrounds the timestamp reads.
type clockReconciler struct {
	once    sync.Once
	skewNS  int64
	enabled bool
}

// resolve computes the skew exactly once. If disabled, it is 0 and the
// device clock is never queried. If the device clock query ever fails, the
// reconciler falls back to skew=0 and tracing continues (§4.1 failure mode).
func (c *clockReconciler) resolve(enabled bool, dc DeviceClock) int64 {
	c.once.Do(func() {
		c.enabled = enabled
		if !enabled || dc == nil {
			c.skewNS = 0
			return
		}
		skew, ok := measureSkew(dc, clockSkewSamples)
		if !ok {
			logAt(LevelWarn, "clock", "device clock query failed, tracing continues with skew=0", nil)
			c.skewNS = 0
			return
		}
		c.skewNS = skew
	})
	return c.skewNS
}

// measureSkew implements the N-iteration averaging algorithm of §4.1:
// host1, device, host2 per iteration, difference = avg(host1,host2) -
// device, skew = average of the N differences.
func measureSkew(dc DeviceClock, n int) (int64, bool) {
	var sum int64
	for i := 0; i < n; i++ {
		runtime.Gosched() // discourage reordering of the sample triple below
		host1 := time.Now().UnixNano()
		dev, err := dc.NowNS()
		if err != nil {
			return 0, false
		}
		host2 := time.Now().UnixNano()
		avgHost := (host1 + host2) / 2
		sum += avgHost - dev
	}
	return sum / int64(n), true
}

// CorrectTimestamp maps a device timestamp onto the host timeline:
// host_ns ≈ device_ns + skew (§4.1 contract).
func (c *clockReconciler) CorrectTimestamp(deviceNS int64) int64 {
	return deviceNS + c.skewNS
}
