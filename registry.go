package omnitrace

import "sync"

// correlationRegistry is the three logically separate mappings of §4.2,
// each guarded by its own mutex. Entries are never evicted; they are
// retained for the lifetime of the process: the key space is small per
// trace session, and
// evicting early would risk a use-after-free read from an activity record
// that arrives out of order (§4.2 rationale).
type correlationRegistry struct {
	keyNameMu sync.RWMutex
	keyName   map[uint64]string

	originThreadMu sync.RWMutex
	originThread   map[uint64]int64

	causalChainMu sync.RWMutex
	causalChain   map[uint64]CausalChain
}

func newCorrelationRegistry() *correlationRegistry {
	return &correlationRegistry{
		keyName:      make(map[uint64]string),
		originThread: make(map[uint64]int64),
		causalChain:  make(map[uint64]CausalChain),
	}
}

// InsertKeyName records the kernel/operation name for corrID. Called only
// from the Host-API Callback's ENTER phase, for launch-kernel APIs.
func (r *correlationRegistry) InsertKeyName(corrID uint64, name string) {
	r.keyNameMu.Lock()
	r.keyName[corrID] = name
	r.keyNameMu.Unlock()
}

// LookupKeyName returns the registered kernel name and whether it exists.
func (r *correlationRegistry) LookupKeyName(corrID uint64) (string, bool) {
	r.keyNameMu.RLock()
	defer r.keyNameMu.RUnlock()
	name, ok := r.keyName[corrID]
	return name, ok
}

// InsertOriginThread records the issuing thread for corrID.
func (r *correlationRegistry) InsertOriginThread(corrID uint64, tid int64) {
	r.originThreadMu.Lock()
	r.originThread[corrID] = tid
	r.originThreadMu.Unlock()
}

// LookupOriginThread returns the issuing thread id and whether it exists.
func (r *correlationRegistry) LookupOriginThread(corrID uint64) (int64, bool) {
	r.originThreadMu.RLock()
	defer r.originThreadMu.RUnlock()
	tid, ok := r.originThread[corrID]
	return tid, ok
}

// InsertCausalChain records the causal-chain triple for corrID.
func (r *correlationRegistry) InsertCausalChain(corrID uint64, chain CausalChain) {
	r.causalChainMu.Lock()
	r.causalChain[corrID] = chain
	r.causalChainMu.Unlock()
}

// LookupCausalChain returns the causal-chain triple and whether it exists.
func (r *correlationRegistry) LookupCausalChain(corrID uint64) (CausalChain, bool) {
	r.causalChainMu.RLock()
	defer r.causalChainMu.RUnlock()
	chain, ok := r.causalChain[corrID]
	return chain, ok
}

// InsertEnter performs the three-map insert of the enter-phase host-API
// callback (§4.2: "writers on enter-phase hold all three locks only long
// enough to insert"). The three inserts are not atomic as a group: it locks
// each map only for its own insert, in a fixed order, to
// avoid a lock-ordering deadlock with readers that ever touch more than one
// map (none currently do, but the fixed order keeps the invariant cheap to
// preserve).
func (r *correlationRegistry) InsertEnter(corrID uint64, name string, tid int64, chain CausalChain) {
	if name != "" {
		r.InsertKeyName(corrID, name)
	}
	r.InsertOriginThread(corrID, tid)
	r.InsertCausalChain(corrID, chain)
}

// Lookup is the read path used by the Activity Callback (§4.6 step 3): it
// takes at most one lock per field. found reflects origin-thread presence
// specifically, not "any of the three maps has an entry": §4.5 step 4
// inserts a causal-chain entry for every host call, but only launch-kernel
// calls get an origin-thread entry (step 3), so a causal-chain-only hit
// (e.g. a memcpy-async or barrier enqueue) must still report not-found here
// — otherwise the caller would attribute the record to the zero-value tid
// instead of falling back to the current thread per §4.6 step 3.
func (r *correlationRegistry) Lookup(corrID uint64) (name string, tid int64, chain CausalChain, found bool) {
	name, _ = r.LookupKeyName(corrID)
	tid, tidOK := r.LookupOriginThread(corrID)
	chain, _ = r.LookupCausalChain(corrID)
	return name, tid, chain, tidOK
}
