package omnitrace

import (
	"sync"

	"github.com/dlclark/regexp2"
)

// regexSet is a named collection of regex patterns, matched as "any
// pattern matches" (§3: "six string-set regex collections"). It uses
// dlclark/regexp2 rather than the standard library's RE2-based regexp,
// the same engine goja's own regular-expression support is built on in
// this codebase's corpus, for full backtracking semantics matching the
// traced language's native regex dialect rather than RE2's restricted one.
type regexSet struct {
	mu       sync.RWMutex
	patterns []string
	compiled []*regexp2.Regexp
}

func newRegexSet(patterns []string) *regexSet {
	rs := &regexSet{}
	for _, p := range patterns {
		rs.add(p)
	}
	return rs
}

func (rs *regexSet) add(pattern string) error {
	re, err := regexp2.Compile(pattern, regexp2.None)
	if err != nil {
		return err
	}
	rs.mu.Lock()
	rs.patterns = append(rs.patterns, pattern)
	rs.compiled = append(rs.compiled, re)
	rs.mu.Unlock()
	return nil
}

// Patterns returns the configured pattern strings, for profiler.config
// getters (§6).
func (rs *regexSet) Patterns() []string {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	out := make([]string, len(rs.patterns))
	copy(out, rs.patterns)
	return out
}

// Empty reports whether no patterns are configured, used by the
// restrict_* short-circuit of §4.4 step 1/5 ("if non-empty and ... does
// not match").
func (rs *regexSet) Empty() bool {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return len(rs.compiled) == 0
}

// Match reports whether any configured pattern matches s.
func (rs *regexSet) Match(s string) bool {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	for _, re := range rs.compiled {
		if ok, _ := re.MatchString(s); ok {
			return true
		}
	}
	return false
}

func (rs *regexSet) clone() *regexSet {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	clone := &regexSet{
		patterns: append([]string(nil), rs.patterns...),
		compiled: append([]*regexp2.Regexp(nil), rs.compiled...),
	}
	return clone
}

// filterDecision is the outcome of the §4.4 filtering order.
type filterDecision struct {
	collect      bool // true if the call should be traced
	forceCollect bool // matched an include_* pattern; bypasses default-exclude bookkeeping
	touchIgnoreStack bool // whether to adjust ignore-stack-depth for a skip
}

// decideFunction applies §4.4 steps 1-3 (the function-name portion of the
// filtering order). shortCircuit is true when the decision is final and the
// filename checks must be skipped.
func decideFunction(cfg *InterpreterConfig, funcName string) (decision filterDecision, shortCircuit bool) {
	// step 1: restrict_functions
	if !cfg.RestrictFunctions.Empty() && !cfg.RestrictFunctions.Match(funcName) {
		return filterDecision{collect: false}, true
	}
	// step 2: include_functions forces collection
	if cfg.IncludeFunctions.Match(funcName) {
		return filterDecision{collect: true, forceCollect: true}, true
	}
	// step 3: exclude_functions
	if cfg.ExcludeFunctions.Match(funcName) {
		isDefault := matchesAny(defaultExcludeFunctions, funcName)
		return filterDecision{collect: false, touchIgnoreStack: !isDefault}, true
	}
	return filterDecision{collect: true}, false
}

func matchesAny(patterns []string, s string) bool {
	for _, p := range patterns {
		re, err := regexp2.Compile(p, regexp2.None)
		if err != nil {
			continue
		}
		if ok, _ := re.MatchString(s); ok {
			return true
		}
	}
	return false
}

// decideFilename applies §4.4 steps 4-6 (internal-path filter and the
// filename restrict/include/exclude checks).
func decideFilename(cfg *InterpreterConfig, filename, installPrefix string) filterDecision {
	// step 4: internal-path filter
	if installPrefix != "" && hasPrefix(filename, installPrefix) && !cfg.IncludeInternal {
		return filterDecision{collect: false}
	}
	// step 5: restrict_filenames
	if !cfg.RestrictFilenames.Empty() && !cfg.RestrictFilenames.Match(filename) {
		return filterDecision{collect: false}
	}
	// step 6: include/exclude filenames
	if cfg.IncludeFilenames.Match(filename) {
		return filterDecision{collect: true, forceCollect: true}
	}
	if cfg.ExcludeFilenames.Match(filename) {
		return filterDecision{collect: false}
	}
	return filterDecision{collect: true}
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}
