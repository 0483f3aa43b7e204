package harness

import (
	"fmt"
	"strings"
)

// AssertionError is returned when an assertion fails.
// It includes the full trace to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for _, event := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] %s %v\n", event.Seq, event.Kind, event.Payload)
	}

	return buf.String()
}

// EvaluateAssertions runs every assertion against the result and
// returns the failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for _, a := range assertions {
		var err error
		switch a.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, a)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, a)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, a)
		case AssertFinalState:
			err = assertFinalState(result.State, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}

// assertTraceContains checks that the trace contains a record matching
// the kind and payload (subset match).
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	for _, event := range trace {
		if event.Kind == assertion.Kind {
			if assertion.Payload == nil || matchSubset(event.Payload, assertion.Payload) {
				return nil
			}
		}
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("kind %s with payload %v", assertion.Kind, assertion.Payload),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that kinds appear in the given order.
// Kinds don't need to be consecutive; intervening records are allowed.
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	positions := make(map[string]int)
	for i, event := range trace {
		for _, kind := range assertion.Kinds {
			if event.Kind == kind && positions[kind] == 0 {
				positions[kind] = i + 1 // 1-indexed so 0 means absent
			}
		}
	}

	for _, kind := range assertion.Kinds {
		if positions[kind] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all kinds present: %v", assertion.Kinds),
				Actual:   fmt.Sprintf("missing kind: %s", kind),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(assertion.Kinds); i++ {
		prev := assertion.Kinds[i-1]
		curr := assertion.Kinds[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("kinds in order: %v", assertion.Kinds),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks that the kind appears exactly Count times.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Kind == assertion.Kind {
			count++
		}
	}
	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("kind %s appears %d times", assertion.Kind, assertion.Count),
			Actual:   fmt.Sprintf("appears %d times", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertFinalState checks that the named slice's fields match the
// expected values (subset match).
func assertFinalState(state map[string]any, assertion Assertion) error {
	slice, ok := state[assertion.Slice]
	if !ok {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("slice %s present", assertion.Slice),
			Actual:   "slice not found in final state",
		}
	}
	if !matchSubset(slice, assertion.Expect) {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("slice %s matches %v", assertion.Slice, assertion.Expect),
			Actual:   fmt.Sprintf("%v", slice),
		}
	}
	return nil
}

// matchSubset reports whether every key of want is present in got with
// an equal value. Nested maps match recursively with subset semantics.
func matchSubset(got any, want map[string]any) bool {
	gotMap, ok := got.(map[string]any)
	if !ok {
		return false
	}
	for k, wantV := range want {
		gotV, present := gotMap[k]
		if !present || !matchValue(gotV, wantV) {
			return false
		}
	}
	return true
}

// matchValue compares values with numeric tolerance: journal payloads
// decode numbers as float64 while YAML parses them as int, so all
// numbers compare through float64.
func matchValue(got, want any) bool {
	if wantMap, ok := want.(map[string]any); ok {
		return matchSubset(got, wantMap)
	}
	if wantArr, ok := want.([]any); ok {
		gotArr, ok := got.([]any)
		if !ok || len(gotArr) != len(wantArr) {
			return false
		}
		for i := range wantArr {
			if !matchValue(gotArr[i], wantArr[i]) {
				return false
			}
		}
		return true
	}

	if gf, gok := asFloat(got); gok {
		wf, wok := asFloat(want)
		return wok && gf == wf
	}
	return got == want
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}
