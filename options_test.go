package omnitrace

import (
	"os"
	"testing"
)

func TestResolveTracerOptions_Defaults(t *testing.T) {
	os.Unsetenv("OMNITRACE_USE_ROCTRACER_CLOCK_SKEW")
	os.Unsetenv("OMNITRACE_INIT_TOOLING")

	o := resolveTracerOptions(nil)
	if !o.clockSkewEnabled {
		t.Error("clock skew should default to enabled")
	}
	if !o.initTooling {
		t.Error("init tooling should default to enabled")
	}
	if o.mpiDetector == nil || o.mpiDetector() {
		t.Error("default MPI detector should exist and report false")
	}
	if o.sinks.region == nil || o.sinks.span == nil || o.sinks.stat == nil {
		t.Error("default sinks should never be nil")
	}
}

func TestResolveTracerOptions_EnvOverride(t *testing.T) {
	os.Setenv("OMNITRACE_INIT_TOOLING", "false")
	defer os.Unsetenv("OMNITRACE_INIT_TOOLING")

	o := resolveTracerOptions(nil)
	if o.initTooling {
		t.Error("OMNITRACE_INIT_TOOLING=false should disable init tooling")
	}
}

func TestResolveTracerOptions_InvalidEnvFallsBackToDefault(t *testing.T) {
	os.Setenv("OMNITRACE_INIT_TOOLING", "not-a-bool")
	defer os.Unsetenv("OMNITRACE_INIT_TOOLING")

	o := resolveTracerOptions(nil)
	if !o.initTooling {
		t.Error("an unparseable env value should fall back to the default")
	}
}

func TestWithMPIDetector(t *testing.T) {
	o := resolveTracerOptions([]Option{WithMPIDetector(func() bool { return true })})
	if !o.mpiDetector() {
		t.Error("custom MPI detector was not applied")
	}
}

func TestWithInstallPrefix(t *testing.T) {
	o := resolveTracerOptions([]Option{WithInstallPrefix("/opt/omnitrace")})
	if o.installPrefix != "/opt/omnitrace" {
		t.Errorf("installPrefix = %q", o.installPrefix)
	}
}

func TestOptions_NilOptionIgnored(t *testing.T) {
	o := resolveTracerOptions([]Option{nil, WithInstallPrefix("/x")})
	if o.installPrefix != "/x" {
		t.Error("a nil Option in the slice should be skipped, not panic")
	}
}
