package omnitrace

import (
	"bytes"
	"runtime"
	"strconv"
)

// threadID identifies the "origin thread" of spec §3/§4.2: in the source
// project this is a pthread id; in Go, the closest stable analogue visible
// from inside a callback is the calling goroutine's id. The host-API
// callback and the interpreter adapter are both invoked synchronously on
// the application's own goroutine, so goroutine id is a faithful stand-in
// for "the thread that issued the call".
func threadID() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	// The first line of runtime.Stack output is "goroutine N [state]:".
	b := buf[:n]
	const prefix = "goroutine "
	if !bytes.HasPrefix(b, []byte(prefix)) {
		return 0
	}
	b = b[len(prefix):]
	if i := bytes.IndexByte(b, ' '); i >= 0 {
		b = b[:i]
	}
	id, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
