package engine

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Observer receives every dispatched action together with the snapshot in
// effect after the dispatch committed (identical pointer when nothing
// changed). Observers run synchronously at the tail of Dispatch and must
// not block; the effect orchestrator registers itself here and hands work
// off to its own goroutines.
type Observer func(Action, *Snapshot)

// Store holds the current immutable state snapshot and is the only writer
// to it. All mutation flows through Dispatch; every other component reads
// the snapshot via State or selectors.
type Store struct {
	logger   *slog.Logger
	registry *Registry
	clock    *Clock
	now      func() time.Time
	sink     Sink

	snap atomic.Pointer[Snapshot]

	// mu serializes dispatches across goroutines; dispatcher records the
	// goroutine currently inside Dispatch so re-entrant calls fail fast
	// instead of deadlocking on mu.
	mu         sync.Mutex
	dispatcher atomic.Uint64

	subs      *subscriberSet
	observers []Observer
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithClock sets the logical clock. Used when rehydrating from a journal
// to resume seq numbering from the last known position.
func WithClock(c *Clock) Option {
	return func(s *Store) { s.clock = c }
}

// WithJournal sets the action log sink. Every successful dispatch is
// appended before the snapshot swap; a sink error aborts the dispatch.
func WithJournal(sink Sink) Option {
	return func(s *Store) { s.sink = sink }
}

// WithObserver registers a post-commit observer at configuration time.
func WithObserver(fn Observer) Option {
	return func(s *Store) { s.observers = append(s.observers, fn) }
}

// WithNow overrides the wall-clock source for journal entry timestamps.
// Timestamps are informational only; tests pin them for golden traces.
func WithNow(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates a Store over the registered slice reducers. The initial
// snapshot (seq 0) is built from the registry's initial slice values.
func New(reg *Registry, opts ...Option) *Store {
	s := &Store{
		logger:   slog.Default(),
		registry: reg,
		clock:    NewClock(),
		now:      time.Now,
		subs:     newSubscriberSet(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.snap.Store(&Snapshot{
		seq:    0,
		slices: reg.initialSlices(),
		order:  reg.Slices(),
	})
	return s
}

// Observe registers a post-commit observer. Like WithObserver but usable
// after construction, which breaks the store/orchestrator construction
// cycle. Must be called before dispatching begins.
func (s *Store) Observe(fn Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}

// State returns the current immutable snapshot by reference. Safe to
// retain; never mutated later.
func (s *Store) State() *Snapshot {
	return s.snap.Load()
}

// Clock returns the store's logical clock.
func (s *Store) Clock() *Clock {
	return s.clock
}

// Dispatch submits an action to the bus. Synchronous: by the time it
// returns, the resulting snapshot is committed, the journal entry is
// durable, and synchronous subscribers have been notified.
//
// Unrecognized kinds are a no-op, not an error: every reducer is total and
// returns its slice unchanged. Errors are structural:
//   - ErrCodeReentrantDispatch: called from a reducer or subscriber
//     callback of the in-progress dispatch
//   - ErrCodeReducerFault: a reducer failed; no state committed
//   - ErrCodeJournalFault: the sink rejected the entry; no state committed
//
// Dispatches from other goroutines (effect follow-ups) serialize on the
// dispatch lock and are applied in lock-acquisition order.
func (s *Store) Dispatch(act Action) error {
	gid := goroutineID()
	if gid != 0 && s.dispatcher.Load() == gid {
		err := NewReentrancyError(act.Kind)
		s.logger.Error("re-entrant dispatch rejected", "kind", act.Kind)
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.dispatcher.Store(gid)
	defer s.dispatcher.Store(0)

	cur := s.snap.Load()
	nextSlices, changed, err := s.registry.apply(cur.slices, act)
	if err != nil {
		s.logger.Error("dispatch aborted",
			"kind", act.Kind,
			"error", err,
		)
		return err
	}

	// Every dispatch consumes a seq, changed or not, so journal entries
	// stay unique and strictly increasing.
	seq := s.clock.Next()

	if s.sink != nil {
		entry := Entry{Seq: seq, Kind: act.Kind, Payload: act.Payload, Time: s.now()}
		if err := s.sink.Append(entry); err != nil {
			jf := NewJournalFault(act.Kind, err)
			s.logger.Error("journal append failed, dispatch aborted",
				"kind", act.Kind,
				"seq", seq,
				"error", err,
			)
			return jf
		}
	}

	next := cur
	if changed {
		next = cur.next(seq, nextSlices)
		s.snap.Store(next)
		s.logger.Debug("state committed", "kind", act.Kind, "seq", seq)
		s.subs.notify(s.logger, next)
	} else {
		s.logger.Debug("dispatch left state unchanged", "kind", act.Kind, "seq", seq)
	}

	for _, ob := range s.observers {
		ob(act, next)
	}
	return nil
}

// Subscribe registers a change observer for a slice or selector target.
// The callback fires on every committed dispatch whose target value
// differs from the last delivered value (distinct-until-changed). There is
// no initial delivery; the current value seeds the comparison baseline.
//
// The returned cancel func is idempotent. After cancel returns, no
// subsequent dispatch will invoke the callback; a notification already in
// progress may still complete.
func (s *Store) Subscribe(t Target, fn func(any)) (func(), error) {
	if t == nil {
		return nil, fmt.Errorf("subscribe: target must not be nil")
	}
	if fn == nil {
		return nil, fmt.Errorf("subscribe: callback must not be nil")
	}
	initial, err := t.Read(s.State())
	if err != nil {
		return nil, err
	}
	return s.subs.add(t, fn, initial), nil
}

// Subscribers returns the number of active subscriptions.
// Useful for diagnostics and tests.
func (s *Store) Subscribers() int {
	return s.subs.size()
}
