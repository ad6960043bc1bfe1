package harness

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadTestScenario(t *testing.T, name string) *Scenario {
	t.Helper()
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", name))
	require.NoError(t, err)
	return s
}

func TestLoadScenario(t *testing.T) {
	s := loadTestScenario(t, "quarterly_obligations.yaml")
	assert.Equal(t, "quarterly_obligations", s.Name)
	assert.Len(t, s.Events, 3)
	assert.Len(t, s.Balances, 2)
	assert.Equal(t, "../packs", s.Packs)
}

func TestLoadScenarioRejectsIncomplete(t *testing.T) {
	cases := map[string]string{
		"missing name": `packs: packs
events:
  - entity_id: e1
    kind: GST
    amount: "1"
    period: "2024-08-15"
`,
		"missing packs": `name: x
events:
  - entity_id: e1
    kind: GST
    amount: "1"
    period: "2024-08-15"
`,
		"no events": `name: x
packs: packs
`,
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "scenario.yaml")
			require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
			_, err := LoadScenario(path)
			assert.Error(t, err)
		})
	}
}

func TestRunQuarterlyObligations(t *testing.T) {
	s := loadTestScenario(t, "quarterly_obligations.yaml")

	result, err := Run(s)
	require.NoError(t, err)

	require.Len(t, result.Events, 3)
	for _, ev := range result.Events {
		assert.Equal(t, "ok", ev.Status)
	}
	assert.Equal(t, "10.00", result.Events[0].Amount)
	assert.Equal(t, "195.00", result.Events[2].Amount)

	require.Len(t, result.Totals, 2)
	assert.Equal(t, "15.00", result.Totals[0].Total)
	assert.Equal(t, "195.00", result.Totals[1].Total)

	// The statement under-reports GST by 5.00; PAYGW matches.
	require.Len(t, result.Discrepancies, 1)
	assert.Equal(t, "GST", result.Discrepancies[0].Kind)
	assert.Equal(t, "5.00", result.Discrepancies[0].Diff)

	require.Contains(t, result.Labels, "entity-1")
	assert.Equal(t, "15", result.Labels["entity-1"]["1A"])
	assert.Equal(t, "195", result.Labels["entity-1"]["W2"])
}

func TestRunFailedEvent(t *testing.T) {
	s := loadTestScenario(t, "failed_event.yaml")

	result, err := Run(s)
	require.NoError(t, err)

	require.Len(t, result.Events, 2)
	assert.Equal(t, "failed", result.Events[0].Status)
	assert.Contains(t, result.Events[0].Error, "unknown GST category")
	assert.Equal(t, "ok", result.Events[1].Status)

	// The failed event burned seq 1 but contributed nothing.
	require.Len(t, result.Totals, 1)
	assert.Equal(t, "10.00", result.Totals[0].Total)
	assert.Empty(t, result.Discrepancies)
}

func TestVerifyInlineExpectations(t *testing.T) {
	s := loadTestScenario(t, "quarterly_obligations.yaml")
	require.NotNil(t, s.Expect)

	result, err := Run(s)
	require.NoError(t, err)
	assert.NoError(t, s.Verify(result))

	// A wrong expectation must surface.
	s.Expect.Labels["entity-1"]["1A"] = "99"
	err = s.Verify(result)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "label 1A")
}

func TestRunIsDeterministic(t *testing.T) {
	s := loadTestScenario(t, "quarterly_obligations.yaml")

	first, err := Run(s)
	require.NoError(t, err)
	second, err := Run(s)
	require.NoError(t, err)

	a, err := Snapshot(first)
	require.NoError(t, err)
	b, err := Snapshot(second)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(a, b), "repeated runs must snapshot identically")
}

func TestGoldenQuarterlyObligations(t *testing.T) {
	s := loadTestScenario(t, "quarterly_obligations.yaml")
	require.NoError(t, RunWithGolden(t, s))
}

func TestGoldenFailedEvent(t *testing.T) {
	s := loadTestScenario(t, "failed_event.yaml")
	require.NoError(t, RunWithGolden(t, s))
}
