package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validScenarioYAML() string {
	return `
name: sample
description: sample scenario
slices:
  auth:
    user: null
steps:
  - dispatch: set/auth
    payload:
      user: ada
assertions:
  - type: final_state
    slice: auth
    expect:
      user: ada
`
}

func TestParseScenario_Valid(t *testing.T) {
	s, err := ParseScenario([]byte(validScenarioYAML()))
	require.NoError(t, err)

	assert.Equal(t, "sample", s.Name)
	require.Len(t, s.Steps, 1)
	assert.Equal(t, "set/auth", s.Steps[0].Dispatch)
	assert.Equal(t, "ada", s.Steps[0].Payload["user"])
}

func TestParseScenario_UnknownFieldRejected(t *testing.T) {
	yaml := `
name: sample
description: sample scenario
slices:
  auth: {}
steps:
  - dispatch: set/auth
assertion:
  - type: trace_count
`
	_, err := ParseScenario([]byte(yaml))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "assertion")
}

func TestParseScenario_MissingName(t *testing.T) {
	yaml := `
description: no name
slices:
  auth: {}
steps:
  - dispatch: set/auth
assertions:
  - type: trace_count
    kind: set/auth
`
	_, err := ParseScenario([]byte(yaml))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name is required")
}

func TestParseScenario_MissingDispatch(t *testing.T) {
	yaml := `
name: sample
description: sample scenario
slices:
  auth: {}
steps:
  - payload:
      user: ada
assertions:
  - type: trace_count
    kind: set/auth
`
	_, err := ParseScenario([]byte(yaml))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dispatch is required")
}

func TestParseScenario_AssertionValidation(t *testing.T) {
	cases := []struct {
		name      string
		assertion string
		wantErr   string
	}{
		{
			name:      "unknown type",
			assertion: "  - type: bogus",
			wantErr:   `unknown assertion type "bogus"`,
		},
		{
			name:      "trace_contains without kind",
			assertion: "  - type: trace_contains",
			wantErr:   "kind is required",
		},
		{
			name:      "trace_order without kinds",
			assertion: "  - type: trace_order",
			wantErr:   "kinds list is required",
		},
		{
			name: "final_state without expect",
			assertion: `  - type: final_state
    slice: auth`,
			wantErr: "expect is required",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			yaml := `
name: sample
description: sample scenario
slices:
  auth: {}
steps:
  - dispatch: set/auth
assertions:
` + tc.assertion + "\n"
			_, err := ParseScenario([]byte(yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}
