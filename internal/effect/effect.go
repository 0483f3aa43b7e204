package effect

import (
	"context"
	"fmt"

	"github.com/tanho/flume/internal/engine"
)

// Dispatcher re-enters follow-up actions into the bus.
// Implemented by engine.Store.
type Dispatcher interface {
	Dispatch(engine.Action) error
}

// Strategy governs how an effect handles a new matching action while a
// prior invocation is outstanding.
type Strategy int

const (
	// Serialize queues the new invocation behind the current one.
	// Submission order is preserved in both start and completion order.
	Serialize Strategy = iota + 1

	// Concurrent starts immediately; invocations run independently and
	// may complete out of submission order.
	Concurrent

	// Supersede cancels the in-flight invocation and starts the new one.
	// Only the latest invocation's result is observable.
	Supersede

	// IgnoreWhileBusy drops the triggering action entirely while an
	// invocation is outstanding.
	IgnoreWhileBusy
)

// String returns the strategy name for logging.
func (s Strategy) String() string {
	switch s {
	case Serialize:
		return "serialize"
	case Concurrent:
		return "concurrent"
	case Supersede:
		return "supersede"
	case IgnoreWhileBusy:
		return "ignore-while-busy"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

func (s Strategy) valid() bool {
	return s >= Serialize && s <= IgnoreWhileBusy
}

// WorkFunc performs the asynchronous work for one invocation. It may
// suspend on I/O and must honor ctx cancellation. It returns zero or more
// follow-up actions, each dispatched independently after the work function
// returns - never from within its own synchronous extent.
type WorkFunc func(ctx context.Context, act engine.Action) ([]engine.Action, error)

// Effect declares a persistent subscription over the action stream.
// Effects are registered once at configuration time and run until
// orchestrator shutdown.
type Effect struct {
	// Name identifies the effect in logs, stats, and the default failure
	// action kind. Unique per orchestrator.
	Name string

	// Match filters the action stream. Nil matches every action.
	Match func(engine.Action) bool

	// Work performs the invocation.
	Work WorkFunc

	// Strategy is required; the zero value is rejected at registration.
	Strategy Strategy

	// Retry is applied before the recovery policy: a failing invocation
	// is retried with backoff up to Retry.MaxAttempts.
	Retry RetryPolicy

	// FailureKind is the action kind emitted when an invocation errors
	// after retries. Empty means "<Name>/failed". Failure emission is the
	// default recovery policy so failures become observable state.
	FailureKind string

	// DropErrors silences the recovery action: errored invocations are
	// logged and dropped.
	DropErrors bool
}

// failureKind resolves the designated failure action kind.
func (e Effect) failureKind() string {
	if e.FailureKind != "" {
		return e.FailureKind
	}
	return e.Name + "/failed"
}

// Kinds returns a predicate matching any of the given action kinds.
func Kinds(kinds ...string) func(engine.Action) bool {
	set := make(map[string]struct{}, len(kinds))
	for _, k := range kinds {
		set[k] = struct{}{}
	}
	return func(act engine.Action) bool {
		_, ok := set[act.Kind]
		return ok
	}
}

// Failure is the payload of an emitted failure action. Fields are plain
// strings so failure actions journal cleanly.
type Failure struct {
	Effect      string `json:"effect"`
	TriggerKind string `json:"trigger_kind"`
	Err         string `json:"err"`
}
