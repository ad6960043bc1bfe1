package bas

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func g1Mapping() *Mapping {
	return &Mapping{
		Version: "bas-labels-v1",
		Labels: map[string][]SourceRef{
			"G1": {
				{Source: "gst", Path: "supplies.taxable"},
				{Source: "gst", Path: "supplies.export"},
				{Source: "gst", Path: "supplies.other"},
			},
		},
	}
}

func TestCompile_G1Scenario(t *testing.T) {
	// 18750.45 + 1325.10 + 425.25 = 20500.80 -> rounds half-up to 20501.
	sources := map[string]any{
		"gst": map[string]any{
			"supplies": map[string]any{
				"taxable": "18750.45",
				"export":  "1325.10",
				"other":   "425.25",
			},
		},
	}

	filing, err := Compile(g1Mapping(), sources)
	require.NoError(t, err)
	assert.Equal(t, "bas-labels-v1", filing.MappingVersion)
	assert.True(t, dec(t, "20501").Equal(filing.Labels["G1"]), "got %s", filing.Labels["G1"])
}

func TestCompile_RoundsOnceAtTheEnd(t *testing.T) {
	// Each addend is x.4 - rounding per addend would drop them all;
	// summing first carries the cents into the total.
	m := &Mapping{
		Version: "v1",
		Labels: map[string][]SourceRef{
			"W2": {
				{Source: "paygw", Path: "a"},
				{Source: "paygw", Path: "b"},
			},
		},
	}
	sources := map[string]any{
		"paygw": map[string]any{"a": "10.40", "b": "10.40"},
	}

	filing, err := Compile(m, sources)
	require.NoError(t, err)
	// 20.80 -> 21, not 10 + 10 = 20.
	assert.True(t, dec(t, "21").Equal(filing.Labels["W2"]), "got %s", filing.Labels["W2"])
}

func TestCompile_MissingPathIsZero(t *testing.T) {
	m := &Mapping{
		Version: "v1",
		Labels: map[string][]SourceRef{
			"G1": {
				{Source: "gst", Path: "supplies.taxable"},
				{Source: "gst", Path: "adjustments.credit"}, // absent section
			},
		},
	}
	sources := map[string]any{
		"gst": map[string]any{
			"supplies": map[string]any{"taxable": "100"},
		},
	}

	filing, err := Compile(m, sources)
	require.NoError(t, err, "missing nested paths are optional sections, not errors")
	assert.True(t, dec(t, "100").Equal(filing.Labels["G1"]))
}

func TestCompile_UnknownSourceIsFatal(t *testing.T) {
	m := &Mapping{
		Version: "v1",
		Labels: map[string][]SourceRef{
			"G1": {{Source: "fuel", Path: "credits"}},
		},
	}
	sources := map[string]any{"gst": map[string]any{}}

	_, err := Compile(m, sources)
	require.Error(t, err)
	assert.True(t, IsUnknownSource(err))

	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "G1", ce.Label)
	assert.Equal(t, "fuel", ce.Source)
	assert.Contains(t, ce.Message, "gst", "error lists the declared sources")
}

func TestCompile_SequenceSumsElements(t *testing.T) {
	m := &Mapping{
		Version: "v1",
		Labels: map[string][]SourceRef{
			"G11": {{Source: "gst", Path: "purchases"}},
		},
	}
	sources := map[string]any{
		"gst": map[string]any{
			"purchases": []any{"10.10", "20.20", "30.30"},
		},
	}

	filing, err := Compile(m, sources)
	require.NoError(t, err)
	assert.True(t, dec(t, "61").Equal(filing.Labels["G11"]), "60.60 rounds to 61, got %s", filing.Labels["G11"])
}

func TestCompile_DecimalSources(t *testing.T) {
	// In-process calculation output arrives as decimals, not JSON.
	m := &Mapping{
		Version: "v1",
		Labels: map[string][]SourceRef{
			"W2": {{Source: "paygw", Path: "withheld"}},
		},
	}
	sources := map[string]any{
		"paygw": map[string]decimal.Decimal{"withheld": dec(t, "1234.49")},
	}

	filing, err := Compile(m, sources)
	require.NoError(t, err)
	assert.True(t, dec(t, "1234").Equal(filing.Labels["W2"]))
}

func TestCompile_BadScalar(t *testing.T) {
	m := &Mapping{
		Version: "v1",
		Labels: map[string][]SourceRef{
			"G1": {{Source: "gst", Path: "supplies"}},
		},
	}
	sources := map[string]any{
		"gst": map[string]any{"supplies": "not-a-number"},
	}

	_, err := Compile(m, sources)
	require.Error(t, err)
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ErrCodeBadValue, ce.Code)
}

func TestParseMapping(t *testing.T) {
	raw := []byte(`
version: bas-labels-v1
labels:
  G1:
    - source: gst
      path: supplies.taxable
  W2:
    - source: paygw
      path: withheld
`)
	m, err := ParseMapping(raw)
	require.NoError(t, err)
	assert.Equal(t, "bas-labels-v1", m.Version)
	assert.Len(t, m.Labels, 2)
	assert.Equal(t, "supplies.taxable", m.Labels["G1"][0].Path)
}

func TestParseMapping_Invalid(t *testing.T) {
	cases := map[string]string{
		"missing version": `
labels:
  G1:
    - source: gst
      path: p
`,
		"no labels": `
version: v1
`,
		"entry without path": `
version: v1
labels:
  G1:
    - source: gst
`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseMapping([]byte(raw))
			require.Error(t, err)
		})
	}
}
