package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/tanho/flume/internal/journal"
)

// TraceSnapshot captures the full outcome of a scenario execution.
// Serialized with canonical JSON so golden comparison is byte-exact.
type TraceSnapshot struct {
	ScenarioName string
	Trace        []TraceEvent
	FinalState   map[string]any
}

// toCanonicalMap converts the snapshot to a plain map for
// journal.MarshalCanonical, which only handles maps, slices, and
// primitives.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	traceList := make([]any, len(s.Trace))
	for i, event := range s.Trace {
		traceList[i] = map[string]any{
			"seq":     event.Seq,
			"kind":    event.Kind,
			"payload": event.Payload,
		}
	}
	return map[string]any{
		"scenario_name": s.ScenarioName,
		"trace":         traceList,
		"final_state":   s.FinalState,
	}
}

// RunWithGolden executes a scenario and compares its trace snapshot
// against the golden file in testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Assertion failures inside the scenario fail the test before the
// golden comparison runs.
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}
	if !result.Pass {
		for _, msg := range result.Errors {
			t.Error(msg)
		}
		return nil
	}

	snapshot := TraceSnapshot{
		ScenarioName: scenario.Name,
		Trace:        result.Trace,
		FinalState:   result.State,
	}
	traceJSON, err := journal.MarshalCanonical(snapshot.toCanonicalMap())
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, traceJSON)
	return nil
}
