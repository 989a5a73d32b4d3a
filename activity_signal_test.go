package omnitrace

import "testing"

func TestBlockSignals_RestoreIsSafeToCall(t *testing.T) {
	unblock := blockSignals()
	if unblock == nil {
		t.Fatal("blockSignals returned a nil restore func")
	}
	unblock() // must not panic, regardless of platform
}
