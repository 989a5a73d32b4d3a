package omnitrace

import "testing"

func TestCorrelationRegistry_LookupMissing(t *testing.T) {
	r := newCorrelationRegistry()
	if _, _, _, found := r.Lookup(1); found {
		t.Fatal("Lookup on an empty registry should report not found")
	}
}

func TestCorrelationRegistry_InsertEnterThenLookup(t *testing.T) {
	r := newCorrelationRegistry()
	chain := CausalChain{CID: 7, ParentCID: 3, Depth: 1}

	r.InsertEnter(42, "vecAdd", 9, chain)

	name, tid, gotChain, found := r.Lookup(42)
	if !found {
		t.Fatal("expected entry to be found")
	}
	if name != "vecAdd" {
		t.Errorf("name = %q, want vecAdd", name)
	}
	if tid != 9 {
		t.Errorf("tid = %d, want 9", tid)
	}
	if gotChain != chain {
		t.Errorf("chain = %+v, want %+v", gotChain, chain)
	}
}

func TestCorrelationRegistry_InsertEnter_EmptyNameNotRecorded(t *testing.T) {
	r := newCorrelationRegistry()
	r.InsertEnter(1, "", 5, CausalChain{})

	if _, ok := r.LookupKeyName(1); ok {
		t.Fatal("an empty name should not be inserted into keyName")
	}
	// the other two fields should still have been recorded, so Lookup
	// reports found even though the name is absent.
	if _, _, _, found := r.Lookup(1); !found {
		t.Fatal("origin thread / causal chain should still be recorded")
	}
}

func TestCorrelationRegistry_IndependentMaps(t *testing.T) {
	r := newCorrelationRegistry()
	r.InsertKeyName(1, "only-a-name")

	if _, ok := r.LookupOriginThread(1); ok {
		t.Fatal("inserting a name should not populate the origin-thread map")
	}
	if name, ok := r.LookupKeyName(1); !ok || name != "only-a-name" {
		t.Fatal("name lookup should still succeed")
	}
}
