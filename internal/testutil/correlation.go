package testutil

import (
	"fmt"
	"sync"
)

// SequentialCorrelation returns a correlation id generator that yields
// "<prefix>-000001", "<prefix>-000002", and so on. It replaces the
// journal's UUIDv7 default in tests so records are byte-identical
// across runs.
//
// An empty prefix defaults to "corr".
//
// Thread-safety: safe for concurrent use via internal mutex.
func SequentialCorrelation(prefix string) func() string {
	if prefix == "" {
		prefix = "corr"
	}
	var mu sync.Mutex
	var n int
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s-%06d", prefix, n)
	}
}
