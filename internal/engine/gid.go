package engine

import (
	"bytes"
	"runtime"
	"strconv"
)

// goroutineID returns the numeric id of the calling goroutine, parsed from
// the first line of its stack header ("goroutine N [running]:").
//
// The runtime deliberately hides goroutine identity, but fail-fast
// re-entrancy detection needs to distinguish "Dispatch called again on the
// goroutine that is currently dispatching" (a structural bug) from
// "Dispatch called concurrently from another goroutine" (legitimate, and
// serialized on the dispatch lock). Parsing the stack header is the only
// stable way to make that distinction without threading a token through
// every reducer and callback signature.
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	// Header: "goroutine 123 ["
	frame := buf[:n]
	frame = bytes.TrimPrefix(frame, []byte("goroutine "))
	if i := bytes.IndexByte(frame, ' '); i >= 0 {
		frame = frame[:i]
	}
	id, err := strconv.ParseUint(string(frame), 10, 64)
	if err != nil {
		// Unknown stack format; 0 disables re-entrancy detection for this
		// call rather than failing the dispatch.
		return 0
	}
	return id
}
