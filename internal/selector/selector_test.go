package selector

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tanho/flume/internal/engine"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// cartStore registers an "items" slice of line entries and a "taxRate"
// slice. "cart/set" replaces the items, "tax/set" the rate.
func cartStore() *engine.Store {
	reg := engine.NewRegistry()
	reg.MustRegister("items", []any{}, func(cur any, act engine.Action) (any, error) {
		if act.Kind == "cart/set" {
			return act.Payload, nil
		}
		return cur, nil
	})
	reg.MustRegister("taxRate", 0.0, func(cur any, act engine.Action) (any, error) {
		if act.Kind == "tax/set" {
			return act.Payload, nil
		}
		return cur, nil
	})
	return engine.New(reg, engine.WithLogger(discard()))
}

func item(price float64, qty int) map[string]any {
	return map[string]any{"price": price, "qty": qty}
}

// subtotal sums price*qty over the items slice.
func subtotal() *Memo {
	return New("subtotal", func(inputs []any) (any, error) {
		total := 0.0
		for _, it := range inputs[0].([]any) {
			m := it.(map[string]any)
			total += m["price"].(float64) * float64(m["qty"].(int))
		}
		return total, nil
	}, Slice("items"))
}

func TestMemo_ComputesOnFirstRead(t *testing.T) {
	s := cartStore()
	require.NoError(t, s.Dispatch(engine.Action{
		Kind:    "cart/set",
		Payload: []any{item(10, 2), item(5, 1)},
	}))

	sel := subtotal()
	assert.Equal(t, int64(0), sel.Recomputes(), "lazy until first read")

	v, err := sel.Read(s.State())
	require.NoError(t, err)
	assert.Equal(t, 25.0, v)
	assert.Equal(t, int64(1), sel.Recomputes())
}

func TestMemo_CachedWhileInputsUnchanged(t *testing.T) {
	s := cartStore()
	require.NoError(t, s.Dispatch(engine.Action{
		Kind:    "cart/set",
		Payload: []any{item(10, 2)},
	}))

	sel := subtotal()
	_, err := sel.Read(s.State())
	require.NoError(t, err)

	// Unrelated slice changes: items keeps its identity, no recompute.
	require.NoError(t, s.Dispatch(engine.Action{Kind: "tax/set", Payload: 0.2}))
	v, err := sel.Read(s.State())
	require.NoError(t, err)
	assert.Equal(t, 20.0, v)
	assert.Equal(t, int64(1), sel.Recomputes())

	// Repeated reads of the same snapshot hit the cache too.
	_, err = sel.Read(s.State())
	require.NoError(t, err)
	assert.Equal(t, int64(1), sel.Recomputes())
}

func TestMemo_RecomputesWhenInputChanges(t *testing.T) {
	s := cartStore()
	require.NoError(t, s.Dispatch(engine.Action{
		Kind:    "cart/set",
		Payload: []any{item(10, 1)},
	}))

	sel := subtotal()
	_, err := sel.Read(s.State())
	require.NoError(t, err)

	require.NoError(t, s.Dispatch(engine.Action{
		Kind:    "cart/set",
		Payload: []any{item(10, 3)},
	}))
	v, err := sel.Read(s.State())
	require.NoError(t, err)
	assert.Equal(t, 30.0, v)
	assert.Equal(t, int64(2), sel.Recomputes())
}

func TestMemo_CompositeGraph(t *testing.T) {
	s := cartStore()
	require.NoError(t, s.Dispatch(engine.Action{
		Kind:    "cart/set",
		Payload: []any{item(100, 1)},
	}))
	require.NoError(t, s.Dispatch(engine.Action{Kind: "tax/set", Payload: 0.1}))

	sub := subtotal()
	total := New("total", func(inputs []any) (any, error) {
		return inputs[0].(float64) * (1 + inputs[1].(float64)), nil
	}, sub, Slice("taxRate"))

	v, err := total.Read(s.State())
	require.NoError(t, err)
	assert.InDelta(t, 110.0, v.(float64), 1e-9)
	assert.Equal(t, int64(1), sub.Recomputes())
	assert.Equal(t, int64(1), total.Recomputes())

	// Tax change recomputes total but the subtotal result is cached, so
	// the composite recomputes exactly once more at each affected level.
	require.NoError(t, s.Dispatch(engine.Action{Kind: "tax/set", Payload: 0.2}))
	v, err = total.Read(s.State())
	require.NoError(t, err)
	assert.InDelta(t, 120.0, v.(float64), 1e-9)
	assert.Equal(t, int64(1), sub.Recomputes())
	assert.Equal(t, int64(2), total.Recomputes())
}

func TestMemo_FaultPreservesCache(t *testing.T) {
	s := cartStore()
	require.NoError(t, s.Dispatch(engine.Action{
		Kind:    "cart/set",
		Payload: []any{item(10, 1)},
	}))

	boom := errors.New("bad item")
	sel := New("fragile", func(inputs []any) (any, error) {
		items := inputs[0].([]any)
		if len(items) > 1 {
			return nil, boom
		}
		return len(items), nil
	}, Slice("items"))

	v, err := sel.Read(s.State())
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	// New input faults; the error is coded and the cache survives.
	require.NoError(t, s.Dispatch(engine.Action{
		Kind:    "cart/set",
		Payload: []any{item(10, 1), item(20, 1)},
	}))
	_, err = sel.Read(s.State())
	require.Error(t, err)
	assert.True(t, engine.IsSelectorFault(err))
	assert.ErrorIs(t, err, boom)

	// Reverting to the cached input vector serves from cache without
	// recomputation: the fault did not poison the node.
	require.NoError(t, s.Dispatch(engine.Action{Kind: "tax/set", Payload: 0.5}))
	before := sel.Recomputes()
	_, err = sel.Read(s.State())
	require.Error(t, err, "items still has two entries")
	assert.Equal(t, before, sel.Recomputes())
}

func TestMemo_PanicBecomesFault(t *testing.T) {
	s := cartStore()

	sel := New("panicky", func(inputs []any) (any, error) {
		panic("kaboom")
	}, Slice("items"))

	_, err := sel.Read(s.State())
	require.Error(t, err)
	assert.True(t, engine.IsSelectorFault(err))
	assert.Contains(t, err.Error(), "kaboom")
}

func TestMemo_DependencyErrorPropagates(t *testing.T) {
	s := cartStore()

	sel := New("ghost-reader", func(inputs []any) (any, error) {
		return inputs[0], nil
	}, Slice("ghost"))

	_, err := sel.Read(s.State())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost")
}

func TestMemo_BacksSubscription(t *testing.T) {
	s := cartStore()
	sel := subtotal()

	var got []any
	cancel, err := s.Subscribe(sel, func(v any) { got = append(got, v) })
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, s.Dispatch(engine.Action{
		Kind:    "cart/set",
		Payload: []any{item(10, 2)},
	}))
	// Unrelated change: subtotal output is unchanged, no delivery.
	require.NoError(t, s.Dispatch(engine.Action{Kind: "tax/set", Payload: 0.2}))

	assert.Equal(t, []any{20.0}, got)
}

func TestNew_PanicsOnConfigBugs(t *testing.T) {
	compute := func(inputs []any) (any, error) { return nil, nil }

	assert.Panics(t, func() { New("", compute, Slice("a")) })
	assert.Panics(t, func() { New("x", nil, Slice("a")) })
	assert.Panics(t, func() { New("x", compute) })
}

func TestFactory_CachesPerArgument(t *testing.T) {
	s := cartStore()
	require.NoError(t, s.Dispatch(engine.Action{
		Kind:    "cart/set",
		Payload: []any{item(10, 2), item(5, 3)},
	}))

	builds := 0
	f, err := NewFactory("item-at", 0, func(idx int) *Memo {
		builds++
		name := fmt.Sprintf("item-at/%d", idx)
		return New(name, func(inputs []any) (any, error) {
			items := inputs[0].([]any)
			if idx < 0 || idx >= len(items) {
				return nil, fmt.Errorf("index %d out of range", idx)
			}
			return items[idx], nil
		}, Slice("items"))
	})
	require.NoError(t, err)

	first := f.For(1)
	again := f.For(1)
	assert.Same(t, first, again, "same argument returns the cached node")
	assert.Equal(t, 1, builds)

	v, err := first.Read(s.State())
	require.NoError(t, err)
	assert.Equal(t, 3, v.(map[string]any)["qty"])

	f.For(0)
	assert.Equal(t, 2, builds)
	assert.Equal(t, 2, f.Len())
}

func TestFactory_EvictsBeyondCapacity(t *testing.T) {
	f, err := NewFactory("probe", 2, func(n int) *Memo {
		return New(fmt.Sprintf("probe/%d", n), func(inputs []any) (any, error) {
			return n, nil
		}, Slice("items"))
	})
	require.NoError(t, err)

	a := f.For(1)
	f.For(2)
	f.For(3) // evicts 1
	assert.Equal(t, 2, f.Len())

	rebuilt := f.For(1)
	assert.NotSame(t, a, rebuilt, "evicted nodes are rebuilt on next use")
}

func TestNewFactory_Validation(t *testing.T) {
	_, err := NewFactory[int]("", 1, nil)
	assert.Error(t, err)

	_, err = NewFactory[int]("x", 1, nil)
	assert.Error(t, err)
}
