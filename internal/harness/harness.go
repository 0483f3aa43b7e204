package harness

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/tanho/flume/internal/engine"
	"github.com/tanho/flume/internal/journal"
	"github.com/tanho/flume/internal/testutil"
)

// TraceEvent is one journal record of a scenario run.
type TraceEvent struct {
	Seq     int64  `json:"seq"`
	Kind    string `json:"kind"`
	Payload any    `json:"payload"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall success. True when all assertions hold.
	Pass bool `json:"pass"`

	// Trace contains every committed dispatch in seq order, read back
	// from the journal.
	Trace []TraceEvent `json:"trace"`

	// Errors contains assertion failure messages. Empty when Pass.
	Errors []string `json:"errors,omitempty"`

	// State holds the final slice values keyed by slice name.
	State map[string]any `json:"state"`
}

// AddError records an assertion failure and marks the result failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// SetKind returns the action kind that merges fields into the named
// slice.
func SetKind(slice string) string {
	return "set/" + slice
}

// MergeReducer returns a reducer for a map-valued slice that handles
// the slice's set action: payload keys overwrite slice keys, everything
// else is kept. Actions for other slices leave the value untouched, so
// the engine's no-change detection keeps the same map.
func MergeReducer(slice string) engine.Reducer {
	kind := SetKind(slice)
	return func(cur any, act engine.Action) (any, error) {
		if act.Kind != kind {
			return cur, nil
		}
		fields, ok := act.Payload.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%s: payload must be a map, got %T", kind, act.Payload)
		}
		prev, _ := cur.(map[string]any)
		next := make(map[string]any, len(prev)+len(fields))
		for k, v := range prev {
			next[k] = v
		}
		for k, v := range fields {
			next[k] = v
		}
		return next, nil
	}
}

// Registry builds an engine registry from the scenario's declared
// slices. Slices register in sorted name order so reduction order is
// stable regardless of YAML map iteration.
func (s *Scenario) Registry() (*engine.Registry, error) {
	names := make([]string, 0, len(s.Slices))
	for name := range s.Slices {
		names = append(names, name)
	}
	sort.Strings(names)

	reg := engine.NewRegistry()
	for _, name := range names {
		initial := make(map[string]any, len(s.Slices[name]))
		for k, v := range s.Slices[name] {
			initial[k] = v
		}
		if err := reg.Register(name, initial, MergeReducer(name)); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// Run executes a scenario against a real store and evaluates its
// assertions.
//
// Each run gets a fresh in-memory journal, a deterministic wall clock,
// and sequential correlation ids, so the resulting trace is
// byte-identical across runs.
func Run(scenario *Scenario) (*Result, error) {
	ctx := context.Background()

	reg, err := scenario.Registry()
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}

	j, err := journal.Open(":memory:",
		journal.WithCorrelation(testutil.SequentialCorrelation(scenario.Name)),
	)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}
	defer j.Close()

	store := engine.New(reg,
		engine.WithLogger(testutil.DiscardLogger()),
		engine.WithJournal(j),
		engine.WithNow(testutil.DeterministicNow(testutil.Epoch, time.Second)),
	)

	for i, step := range scenario.Steps {
		act := engine.Action{Kind: step.Dispatch, Payload: payloadValue(step.Payload)}
		if err := store.Dispatch(act); err != nil {
			return nil, fmt.Errorf("scenario %s: step %d (%s): %w",
				scenario.Name, i, step.Dispatch, err)
		}
	}

	result := &Result{Pass: true, Trace: []TraceEvent{}, State: map[string]any{}}

	err = j.ReplayFunc(ctx, func(r journal.Record) error {
		act, err := r.Action()
		if err != nil {
			return err
		}
		result.Trace = append(result.Trace, TraceEvent{
			Seq:     r.Seq,
			Kind:    r.Kind,
			Payload: act.Payload,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}

	snap := store.State()
	for _, name := range snap.Slices() {
		v, _ := snap.Slice(name)
		result.State[name] = v
	}

	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(errMsg)
	}
	return result, nil
}

// payloadValue normalizes an absent payload to nil so "dispatch: foo"
// with no payload journals as null.
func payloadValue(p map[string]any) any {
	if p == nil {
		return nil
	}
	return p
}
