package engine

import "fmt"

// Reducer computes the next value of a slice from its current value and a
// dispatched action. Reducers must be pure, deterministic, and total: an
// unrecognized action kind returns the input value unchanged. Reducers
// never perform I/O and never dispatch.
//
// Returning an error (or panicking) aborts the dispatch without committing
// any state; the error is surfaced to the Dispatch caller as a reducer
// fault.
type Reducer func(slice any, act Action) (any, error)

// Registry composes independent slice reducers into a single whole-state
// transformation. Reducers run in registration order on every dispatch.
//
// INVARIANT: registration order never changes after construction. The same
// registration order guarantees the same evaluation order, which replay
// depends on.
//
// Registration happens once at configuration time; Registry is not safe
// for concurrent mutation and must be fully populated before the store is
// built.
type Registry struct {
	order    []string
	reducers map[string]Reducer
	initial  map[string]any
}

// NewRegistry creates an empty reducer registry.
func NewRegistry() *Registry {
	return &Registry{
		reducers: make(map[string]Reducer),
		initial:  make(map[string]any),
	}
}

// Register adds a slice reducer with its initial value. Slice names are
// unique; registering the same name twice is a configuration bug and
// returns an error.
func (r *Registry) Register(slice string, initial any, fn Reducer) error {
	if slice == "" {
		return fmt.Errorf("slice name must not be empty")
	}
	if fn == nil {
		return fmt.Errorf("slice %q: reducer must not be nil", slice)
	}
	if _, dup := r.reducers[slice]; dup {
		return fmt.Errorf("duplicate slice: %s", slice)
	}
	r.order = append(r.order, slice)
	r.reducers[slice] = fn
	r.initial[slice] = initial
	return nil
}

// MustRegister is like Register but panics on error.
// Use only at configuration time when inputs are known to be valid.
func (r *Registry) MustRegister(slice string, initial any, fn Reducer) {
	if err := r.Register(slice, initial, fn); err != nil {
		panic(err)
	}
}

// Slices returns the registered slice names in registration order.
func (r *Registry) Slices() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// initialSlices builds the slice map for the initial snapshot.
func (r *Registry) initialSlices() map[string]any {
	slices := make(map[string]any, len(r.initial))
	for name, v := range r.initial {
		slices[name] = v
	}
	return slices
}

// apply runs every slice reducer against the action, in registration order.
//
// Returns (nil, false, nil) when no reducer changed its slice - the caller
// must then keep the previous snapshot pointer. When at least one slice
// changed, returns a fresh slice map sharing every unchanged value with cur.
//
// Any reducer error or panic aborts the whole application: no partial
// update is ever visible.
func (r *Registry) apply(cur map[string]any, act Action) (map[string]any, bool, error) {
	var next map[string]any

	for _, name := range r.order {
		prev := cur[name]
		out, err := runReducer(r.reducers[name], prev, act)
		if err != nil {
			return nil, false, NewReducerFault(name, act.Kind, err)
		}
		if Same(prev, out) {
			continue
		}
		if next == nil {
			next = make(map[string]any, len(cur))
			for k, v := range cur {
				next[k] = v
			}
		}
		next[name] = out
	}

	if next == nil {
		return nil, false, nil
	}
	return next, true, nil
}

// runReducer invokes a reducer, converting a panic into an error so a
// faulty reducer cannot tear down the dispatch caller.
func runReducer(fn Reducer, prev any, act Action) (out any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("reducer panic: %v", rec)
		}
	}()
	return fn(prev, act)
}
