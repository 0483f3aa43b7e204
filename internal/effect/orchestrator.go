package effect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tanho/flume/internal/engine"
)

// Stats are the per-effect invocation counters. Dropped counts
// ignore-while-busy triggers that never became invocations.
type Stats struct {
	Completed int64
	Cancelled int64
	Errored   int64
	Dropped   int64
}

// Orchestrator runs registered effects against the committed action
// stream. Wire it to a store with:
//
//	orch := effect.New(store)
//	orch.Register(...)
//	store.Observe(orch.Notify)
//	orch.Start()
//
// Effects cannot be unregistered; Close cancels all outstanding
// invocations and awaits their settlement.
type Orchestrator struct {
	logger *slog.Logger
	disp   Dispatcher

	mu      sync.Mutex
	runners []*runner
	byName  map[string]*runner
	started bool
	closed  bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// New creates an orchestrator dispatching follow-ups through d.
func New(d Dispatcher, opts ...Option) *Orchestrator {
	ctx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		logger: slog.Default(),
		disp:   d,
		byName: make(map[string]*runner),
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Register adds an effect. Configuration time only: registration after
// Start is an error, as is a duplicate name, a nil work function, or a
// missing strategy.
func (o *Orchestrator) Register(e Effect) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.started {
		return fmt.Errorf("effect %s: registration after start", e.Name)
	}
	if e.Name == "" {
		return fmt.Errorf("effect name must not be empty")
	}
	if _, dup := o.byName[e.Name]; dup {
		return fmt.Errorf("duplicate effect: %s", e.Name)
	}
	if e.Work == nil {
		return fmt.Errorf("effect %s: work func must not be nil", e.Name)
	}
	if !e.Strategy.valid() {
		return fmt.Errorf("effect %s: invalid strategy %v", e.Name, e.Strategy)
	}

	r := &runner{o: o, eff: e}
	if e.Strategy == Serialize {
		r.queue = newActionQueue()
	}
	o.runners = append(o.runners, r)
	o.byName[e.Name] = r
	return nil
}

// Start launches the serialize-strategy runner loops. Idempotent misuse
// (double start, start after close) is an error.
func (o *Orchestrator) Start() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return fmt.Errorf("orchestrator already closed")
	}
	if o.started {
		return fmt.Errorf("orchestrator already started")
	}
	o.started = true

	for _, r := range o.runners {
		if r.queue == nil {
			continue
		}
		o.wg.Add(1)
		go r.serializeLoop(o.ctx)
	}
	o.logger.Info("orchestrator started", "effects", len(o.runners))
	return nil
}

// Notify feeds a committed action to every matching effect. It is an
// engine.Observer: it runs synchronously inside Dispatch and never
// blocks - triggers are queued or handed to invocation goroutines.
func (o *Orchestrator) Notify(act engine.Action, _ *engine.Snapshot) {
	o.mu.Lock()
	if !o.started || o.closed {
		o.mu.Unlock()
		return
	}
	runners := o.runners
	o.mu.Unlock()

	for _, r := range runners {
		if r.eff.Match != nil && !r.eff.Match(act) {
			continue
		}
		r.trigger(act)
	}
}

// Close cancels all outstanding invocations and awaits their settlement.
// Returns ctx.Err() if settlement does not finish in time; the
// orchestrator is closed either way.
func (o *Orchestrator) Close(ctx context.Context) error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	o.mu.Unlock()

	o.cancel()
	for _, r := range o.runners {
		if r.queue != nil {
			r.queue.close()
		}
	}

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		o.logger.Info("orchestrator stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("orchestrator shutdown: %w", ctx.Err())
	}
}

// Stats returns the invocation counters for a named effect.
func (o *Orchestrator) Stats(name string) (Stats, bool) {
	o.mu.Lock()
	r, ok := o.byName[name]
	o.mu.Unlock()
	if !ok {
		return Stats{}, false
	}
	return Stats{
		Completed: r.completed.Load(),
		Cancelled: r.cancelled.Load(),
		Errored:   r.errored.Load(),
		Dropped:   r.dropped.Load(),
	}, true
}

// Dropped returns the ignore-while-busy drop counter for a named effect.
func (o *Orchestrator) Dropped(name string) int64 {
	st, _ := o.Stats(name)
	return st.Dropped
}

// dispatch re-enters a follow-up action into the bus. A rejected
// follow-up is an orchestration-level event, logged with full context and
// otherwise dropped: effects never abort on downstream dispatch errors.
func (o *Orchestrator) dispatch(act engine.Action) {
	if err := o.disp.Dispatch(act); err != nil {
		o.logger.Error("follow-up dispatch failed",
			"kind", act.Kind,
			"error", err,
		)
	}
}

// runner is the per-effect execution state.
type runner struct {
	o   *Orchestrator
	eff Effect

	// serialize
	queue *actionQueue

	// ignore-while-busy
	busy atomic.Bool

	// supersede: gen identifies the latest invocation; stale generations
	// suppress their results on settlement.
	genMu     sync.Mutex
	gen       uint64
	cancelCur context.CancelFunc

	completed atomic.Int64
	cancelled atomic.Int64
	errored   atomic.Int64
	dropped   atomic.Int64
}

// trigger handles one matching action per the effect's strategy.
// Runs on the dispatching goroutine and never blocks.
func (r *runner) trigger(act engine.Action) {
	switch r.eff.Strategy {
	case Serialize:
		r.queue.enqueue(act)

	case Concurrent:
		r.o.wg.Add(1)
		go func() {
			defer r.o.wg.Done()
			r.invoke(r.o.ctx, act, 0)
		}()

	case Supersede:
		r.genMu.Lock()
		if r.cancelCur != nil {
			r.cancelCur()
		}
		r.gen++
		gen := r.gen
		ctx, cancel := context.WithCancel(r.o.ctx)
		r.cancelCur = cancel
		r.genMu.Unlock()

		r.o.wg.Add(1)
		go func() {
			defer r.o.wg.Done()
			defer cancel()
			r.invoke(ctx, act, gen)
		}()

	case IgnoreWhileBusy:
		if !r.busy.CompareAndSwap(false, true) {
			r.dropped.Add(1)
			r.o.logger.Debug("trigger dropped while busy",
				"effect", r.eff.Name,
				"kind", act.Kind,
				"dropped", r.dropped.Load(),
			)
			return
		}
		r.o.wg.Add(1)
		go func() {
			defer r.o.wg.Done()
			defer r.busy.Store(false)
			r.invoke(r.o.ctx, act, 0)
		}()
	}
}

// serializeLoop is the single worker for a serialize-strategy effect.
// Invocations run one at a time in trigger order, so completions (and
// their follow-up dispatches) preserve submission order.
func (r *runner) serializeLoop(ctx context.Context) {
	defer r.o.wg.Done()

	for {
		act, ok := r.queue.tryDequeue()
		if ok {
			r.invoke(ctx, act, 0)
			continue
		}

		select {
		case <-ctx.Done():
			// Shutdown: settle everything still queued. The canceled ctx
			// makes well-behaved work return promptly, so each leftover
			// trigger records a cancelled (or fast-completed) invocation
			// instead of vanishing.
			for {
				act, ok := r.queue.tryDequeue()
				if !ok {
					return
				}
				r.invoke(ctx, act, 0)
			}
		case <-r.queue.wait():
			// Wakeups coalesce: an empty queue here may just be a stale
			// signal for an item already taken. Exit only once the queue
			// is closed and drained.
			if r.queue.drained() {
				return
			}
		}
	}
}

// invoke runs one effect invocation: Active, then Completed, Cancelled,
// or Errored. gen is nonzero only under the supersede strategy.
func (r *runner) invoke(ctx context.Context, act engine.Action, gen uint64) {
	r.o.logger.Debug("invocation active",
		"effect", r.eff.Name,
		"kind", act.Kind,
		"strategy", r.eff.Strategy.String(),
	)

	outputs, err := r.runWork(ctx, act)

	if gen != 0 && r.stale(gen) {
		// A newer invocation superseded this one while it ran. Its
		// settlement is unobservable regardless of outcome.
		r.cancelled.Add(1)
		r.o.logger.Debug("invocation superseded",
			"effect", r.eff.Name,
			"kind", act.Kind,
		)
		return
	}

	if err != nil {
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			r.cancelled.Add(1)
			r.o.logger.Debug("invocation cancelled",
				"effect", r.eff.Name,
				"kind", act.Kind,
			)
			return
		}

		r.errored.Add(1)
		r.o.logger.Error("invocation errored",
			"effect", r.eff.Name,
			"kind", act.Kind,
			"error", err,
		)
		if !r.eff.DropErrors {
			r.o.dispatch(engine.Action{
				Kind: r.eff.failureKind(),
				Payload: Failure{
					Effect:      r.eff.Name,
					TriggerKind: act.Kind,
					Err:         err.Error(),
				},
			})
		}
		return
	}

	r.completed.Add(1)
	for _, out := range outputs {
		r.o.dispatch(out)
	}
}

// stale reports whether gen is no longer the latest supersede generation.
func (r *runner) stale(gen uint64) bool {
	r.genMu.Lock()
	defer r.genMu.Unlock()
	return gen != r.gen
}

// runWork executes the work function with the effect's retry policy.
// Panics are contained as errors; backoff sleeps honor cancellation.
func (r *runner) runWork(ctx context.Context, act engine.Action) ([]engine.Action, error) {
	policy := r.eff.Retry
	attempts := policy.attempts()

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		out, err := runSafely(ctx, r.eff.Work, act)
		if err == nil {
			return out, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, err
		}
		if attempt == attempts {
			break
		}

		delay := policy.backoff(attempt)
		r.o.logger.Debug("invocation retrying",
			"effect", r.eff.Name,
			"kind", act.Kind,
			"attempt", attempt,
			"backoff", delay,
			"error", err,
		)
		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}
	}
	return nil, lastErr
}

// runSafely invokes a work function, converting a panic into an error so
// one invocation cannot tear down the runner.
func runSafely(ctx context.Context, work WorkFunc, act engine.Action) (out []engine.Action, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("work panic: %v", rec)
		}
	}()
	return work(ctx, act)
}
