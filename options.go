package omnitrace

import (
	"os"
	"strconv"
)

// tracerOptions holds configuration resolved at Tracer construction time.
type tracerOptions struct {
	clockSkewEnabled bool
	initTooling      bool
	commandLine      string
	installPrefix    string
	mpiDetector      func() bool
	sinks            sinkSet
}

// Option configures a Tracer returned by New.
type Option interface {
	apply(*tracerOptions)
}

type optionFunc func(*tracerOptions)

func (f optionFunc) apply(o *tracerOptions) { f(o) }

// WithRegionSink installs the region-emission sink consumed by the
// Interpreter Trace Adapter (§6 push_region/pop_region).
func WithRegionSink(sink RegionSink) Option {
	return optionFunc(func(o *tracerOptions) { o.sinks.region = sink })
}

// WithSpanSink installs the span-emission sink consumed by the Host-API and
// Activity callbacks (§6 emit_span).
func WithSpanSink(sink SpanSink) Option {
	return optionFunc(func(o *tracerOptions) { o.sinks.span = sink })
}

// WithStatSink installs the statistical-duration sink used by the Activity
// Callback (§4.6 step 4b).
func WithStatSink(sink StatSink) Option {
	return optionFunc(func(o *tracerOptions) { o.sinks.stat = sink })
}

// WithInstallPrefix sets the tracer's own installation path prefix, used by
// the internal-path filter (§4.4 step 4).
func WithInstallPrefix(prefix string) Option {
	return optionFunc(func(o *tracerOptions) { o.installPrefix = prefix })
}

// WithMPIDetector overrides the MPI auto-detection gate (§9 Open Questions).
// initialize calls the detector but does not act on its result; hosts read
// it through Tracer.DetectMPI. The default detector always reports false: no
// MPI library is wired into this module, only the seam for a host to supply
// one.
func WithMPIDetector(detect func() bool) Option {
	return optionFunc(func(o *tracerOptions) { o.mpiDetector = detect })
}

func resolveTracerOptions(opts []Option) *tracerOptions {
	o := &tracerOptions{
		clockSkewEnabled: envBool("OMNITRACE_USE_ROCTRACER_CLOCK_SKEW", true),
		initTooling:      envBool("OMNITRACE_INIT_TOOLING", true),
		mpiDetector:      func() bool { return false },
		sinks: sinkSet{
			region: noopRegionSink{},
			span:   noopSpanSink{},
			stat:   noopStatSink{},
		},
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt.apply(o)
	}
	return o
}

func envBool(name string, def bool) bool {
	v, ok := os.LookupEnv(name)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
