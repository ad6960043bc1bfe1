package rules

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func decPtr(t *testing.T, s string) *decimal.Decimal {
	t.Helper()
	d := dec(t, s)
	return &d
}

func day(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", s)
	require.NoError(t, err)
	return d
}

// paygwPack builds a valid two-band cumulative pack for tests.
// Bands: [0, 1000) at 0%, [1000, inf) base 0 rate 20%.
func paygwPack(t *testing.T, version, from string) *Pack {
	t.Helper()
	return &Pack{
		ID:            "paygw-" + version,
		Version:       version,
		Product:       ProductPAYGW,
		Semantics:     SemanticsCumulative,
		EffectiveFrom: day(t, from),
		SourceURL:     "https://example.test/" + version,
		Brackets: []Bracket{
			{Lower: dec(t, "0"), Upper: decPtr(t, "1000"), BaseAmount: dec(t, "0"), MarginalRate: dec(t, "0")},
			{Lower: dec(t, "1000"), BaseAmount: dec(t, "0"), MarginalRate: dec(t, "0.20")},
		},
	}
}

func gstPack(t *testing.T, version, from string) *Pack {
	t.Helper()
	return &Pack{
		ID:            "gst-" + version,
		Version:       version,
		Product:       ProductGST,
		Semantics:     SemanticsFlat,
		EffectiveFrom: day(t, from),
		SourceURL:     "https://example.test/gst/" + version,
		Rates: map[string]decimal.Decimal{
			"standard": dec(t, "0.1"),
			"gst_free": dec(t, "0"),
		},
	}
}
