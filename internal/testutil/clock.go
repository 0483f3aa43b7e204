package testutil

import (
	"sync"
	"time"
)

// DeterministicNow returns a wall clock function that yields evenly spaced
// timestamps starting at start. Each call advances by step.
//
// Wire it into a store with engine.WithNow so journal timestamps are
// byte-stable across runs and golden snapshots compare clean.
//
// Thread-safety: safe for concurrent use via internal mutex.
func DeterministicNow(start time.Time, step time.Duration) func() time.Time {
	var mu sync.Mutex
	next := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t := next
		next = next.Add(step)
		return t
	}
}

// Epoch is the base timestamp used by scenario and golden tests.
var Epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
