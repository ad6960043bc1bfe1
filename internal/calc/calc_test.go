package calc

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tindale/ruledger/internal/rules"
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

// singleBracketPack: one band [0, 1000) at 20%, then an open band at
// the same rate so the table still partitions [0, inf).
func singleBracketPack(t *testing.T) *rules.Pack {
	t.Helper()
	p := &rules.Pack{
		ID:            "paygw-single",
		Version:       "single.1",
		Product:       rules.ProductPAYGW,
		Semantics:     rules.SemanticsCumulative,
		EffectiveFrom: day(t, "2024-07-01"),
		SourceURL:     "https://example.test/single",
		Brackets: []rules.Bracket{
			{Lower: dec(t, "0"), Upper: decPtr(t, "1000"), BaseAmount: dec(t, "0"), MarginalRate: dec(t, "0.20")},
			{Lower: dec(t, "1000"), BaseAmount: dec(t, "200"), MarginalRate: dec(t, "0.20")},
		},
	}
	require.NoError(t, rules.Validate(p))
	return p
}

func progressivePack(t *testing.T, semantics rules.Semantics) *rules.Pack {
	t.Helper()
	p := &rules.Pack{
		ID:            "paygw-prog",
		Version:       "prog.1",
		Product:       rules.ProductPAYGW,
		Semantics:     semantics,
		EffectiveFrom: day(t, "2024-07-01"),
		SourceURL:     "https://example.test/prog",
		Brackets: []rules.Bracket{
			{Lower: dec(t, "0"), Upper: decPtr(t, "18200"), BaseAmount: dec(t, "0"), MarginalRate: dec(t, "0")},
			{Lower: dec(t, "18200"), Upper: decPtr(t, "45000"), BaseAmount: dec(t, "0"), MarginalRate: dec(t, "0.19")},
			{Lower: dec(t, "45000"), BaseAmount: dec(t, "5092"), MarginalRate: dec(t, "0.325")},
		},
	}
	if semantics == rules.SemanticsFlat {
		for i := range p.Brackets {
			p.Brackets[i].BaseAmount = decimal.Zero
		}
	}
	require.NoError(t, rules.Validate(p))
	return p
}

func TestComputeBracket_SingleBracketScenario(t *testing.T) {
	// base 750 in [0, 1000) at 20% -> 150.00.
	got, err := ComputeBracket(dec(t, "750"), singleBracketPack(t))
	require.NoError(t, err)
	assert.True(t, dec(t, "150.00").Equal(got.Amount), "got %s", got.Amount)
	assert.Equal(t, "paygw-single", got.PackID)
	assert.Equal(t, "single.1", got.Version)
	assert.Equal(t, "https://example.test/single", got.SourceURL)
}

func TestComputeBracket_CumulativeSemantics(t *testing.T) {
	p := progressivePack(t, rules.SemanticsCumulative)

	// 60000 -> 5092 + (60000-45000)*0.325 = 9967.
	got, err := ComputeBracket(dec(t, "60000"), p)
	require.NoError(t, err)
	assert.True(t, dec(t, "9967").Equal(got.Amount), "got %s", got.Amount)
}

func TestComputeBracket_FlatSemantics(t *testing.T) {
	p := progressivePack(t, rules.SemanticsFlat)

	// Flat: the covering bracket's rate applies to the whole base,
	// no carried base amount.
	// 60000 -> 60000*0.325 = 19500.
	got, err := ComputeBracket(dec(t, "60000"), p)
	require.NoError(t, err)
	assert.True(t, dec(t, "19500").Equal(got.Amount), "got %s", got.Amount)
}

func TestComputeBracket_FlatMonotone(t *testing.T) {
	p := progressivePack(t, rules.SemanticsFlat)

	// Crossing a bracket boundary must never shrink the amount:
	// 44999 at 19% -> 8549.81, 45000 at 32.5% -> 14625.
	bases := []string{"0", "18199", "18200", "44999", "45000", "45001", "90000"}
	var prev decimal.Decimal
	for i, s := range bases {
		got, err := ComputeBracket(dec(t, s), p)
		require.NoError(t, err)
		if i > 0 {
			assert.True(t, got.Amount.GreaterThanOrEqual(prev),
				"compute(%s)=%s must not be below compute(%s)=%s", s, got.Amount, bases[i-1], prev)
		}
		prev = got.Amount
	}

	got, err := ComputeBracket(dec(t, "45000"), p)
	require.NoError(t, err)
	assert.True(t, dec(t, "14625").Equal(got.Amount), "got %s", got.Amount)
}

func TestComputeBracket_BoundarySelection(t *testing.T) {
	p := progressivePack(t, rules.SemanticsCumulative)

	// Exactly on a bound the higher bracket wins (lower bound is
	// inclusive, upper bound exclusive).
	got, err := ComputeBracket(dec(t, "45000"), p)
	require.NoError(t, err)
	assert.True(t, dec(t, "5092").Equal(got.Amount), "got %s", got.Amount)

	// Just under stays in the lower bracket.
	got, err = ComputeBracket(dec(t, "44999"), p)
	require.NoError(t, err)
	assert.True(t, dec(t, "5091.81").Equal(got.Amount), "got %s", got.Amount)
}

func TestComputeBracket_NegativeBaseClampsToZero(t *testing.T) {
	got, err := ComputeBracket(dec(t, "-500"), singleBracketPack(t))
	require.NoError(t, err)
	assert.True(t, got.Amount.IsZero())
}

func TestComputeBracket_Monotone(t *testing.T) {
	p := progressivePack(t, rules.SemanticsCumulative)

	bases := []string{"0", "100", "18199", "18200", "30000", "44999", "45000", "45001", "90000", "250000"}
	var prev decimal.Decimal
	for i, s := range bases {
		got, err := ComputeBracket(dec(t, s), p)
		require.NoError(t, err)
		if i > 0 {
			assert.True(t, got.Amount.GreaterThanOrEqual(prev),
				"compute(%s)=%s must not be below compute(%s)=%s", s, got.Amount, bases[i-1], prev)
		}
		prev = got.Amount
	}
}

func TestComputeBracket_Deterministic(t *testing.T) {
	p := progressivePack(t, rules.SemanticsCumulative)
	base := dec(t, "87654.32")

	first, err := ComputeBracket(base, p)
	require.NoError(t, err)
	for i := 0; i < 50; i++ {
		got, err := ComputeBracket(base, p)
		require.NoError(t, err)
		assert.Equal(t, first, got, "repeated computation must be bit-identical")
	}
}

func TestComputeBracket_GapIsFatal(t *testing.T) {
	// An unvalidated pack with a hole: [0, 1000) then [2000, inf).
	p := singleBracketPack(t)
	p.Brackets[1].Lower = dec(t, "2000")

	_, err := ComputeBracket(dec(t, "1500"), p)
	require.Error(t, err)
	assert.True(t, rules.IsConfigError(err), "a gap is a broken pack, not a runtime edge case")
}
