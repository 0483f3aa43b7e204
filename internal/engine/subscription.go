package engine

import (
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
)

// Target is what a subscription observes: a raw state slice or a selector
// derivation over the snapshot.
type Target interface {
	// Name identifies the target for logging and diagnostics.
	Name() string

	// Read extracts the target's value from a snapshot.
	Read(*Snapshot) (any, error)
}

// SliceOf returns a Target reading the named raw slice.
func SliceOf(name string) Target {
	return sliceTarget(name)
}

type sliceTarget string

func (t sliceTarget) Name() string { return string(t) }

func (t sliceTarget) Read(s *Snapshot) (any, error) {
	v, ok := s.Slice(string(t))
	if !ok {
		return nil, NewUnknownSliceError(string(t))
	}
	return v, nil
}

// subscription pairs a target with its callback and the last delivered
// value used for duplicate suppression.
//
// last is only touched by the dispatching goroutine (notify runs under the
// store's dispatch lock) and by add before the subscription is visible.
type subscription struct {
	id     uint64
	target Target
	fn     func(any)
	last   any
	done   atomic.Bool
}

// subscriberSet is the registry of active subscriptions.
//
// The set lock covers only membership; callbacks run without it so a
// callback may subscribe or cancel without deadlocking.
type subscriberSet struct {
	mu   sync.Mutex
	next uint64
	subs map[uint64]*subscription
}

func newSubscriberSet() *subscriberSet {
	return &subscriberSet{subs: make(map[uint64]*subscription)}
}

// add registers a subscription seeded with the current target value and
// returns its idempotent cancel func.
func (s *subscriberSet) add(t Target, fn func(any), initial any) func() {
	sub := &subscription{target: t, fn: fn, last: initial}

	s.mu.Lock()
	s.next++
	sub.id = s.next
	s.subs[sub.id] = sub
	s.mu.Unlock()

	return func() {
		sub.done.Store(true)
		s.mu.Lock()
		delete(s.subs, sub.id)
		s.mu.Unlock()
	}
}

// size returns the number of active subscriptions.
func (s *subscriberSet) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// active copies the current membership so notify can iterate without
// holding the set lock across callbacks. Sorted by subscription id so
// delivery order is deterministic (subscription order).
func (s *subscriberSet) active() []*subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*subscription, 0, len(s.subs))
	for _, sub := range s.subs {
		out = append(out, sub)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// notify delivers the new snapshot to every subscription whose target
// value changed since its last delivery.
//
// A target read failure (selector fault during notification) is logged and
// skipped: the fault belongs to that subscription, not to the dispatch,
// and the subscription's baseline stays at its last good value.
func (s *subscriberSet) notify(logger *slog.Logger, snap *Snapshot) {
	for _, sub := range s.active() {
		if sub.done.Load() {
			continue
		}
		v, err := sub.target.Read(snap)
		if err != nil {
			logger.Error("subscription read failed",
				"target", sub.target.Name(),
				"seq", snap.Seq(),
				"error", err,
			)
			continue
		}
		if Same(sub.last, v) {
			continue
		}
		sub.last = v
		if sub.done.Load() {
			continue
		}
		sub.fn(v)
	}
}
