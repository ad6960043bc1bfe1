package rules

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_AcceptsWellFormedPacks(t *testing.T) {
	assert.NoError(t, Validate(paygwPack(t, "2024.1", "2024-07-01")))
	assert.NoError(t, Validate(gstPack(t, "gst-2024.1", "2024-07-01")))
}

func TestValidate_BracketPartition(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(t *testing.T, p *Pack)
		wantMsg string
	}{
		{
			name: "gap between bands",
			mutate: func(t *testing.T, p *Pack) {
				p.Brackets[1].Lower = dec(t, "1200")
			},
			wantMsg: "gap or overlap",
		},
		{
			name: "overlapping bands",
			mutate: func(t *testing.T, p *Pack) {
				p.Brackets[1].Lower = dec(t, "800")
			},
			wantMsg: "gap or overlap",
		},
		{
			name: "first band does not start at zero",
			mutate: func(t *testing.T, p *Pack) {
				p.Brackets[0].Lower = dec(t, "100")
			},
			wantMsg: "not 0",
		},
		{
			name: "last band is bounded",
			mutate: func(t *testing.T, p *Pack) {
				p.Brackets[1].Upper = decPtr(t, "99999")
			},
			wantMsg: "open-ended",
		},
		{
			name: "upper bound not above lower bound",
			mutate: func(t *testing.T, p *Pack) {
				p.Brackets[0].Upper = decPtr(t, "0")
			},
			wantMsg: "does not exceed",
		},
		{
			name: "marginal rate above one",
			mutate: func(t *testing.T, p *Pack) {
				p.Brackets[1].MarginalRate = dec(t, "1.5")
			},
			wantMsg: "outside [0, 1]",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := paygwPack(t, "2024.1", "2024-07-01")
			tc.mutate(t, p)

			err := Validate(p)
			require.Error(t, err)
			assert.True(t, IsConfigError(err))
			assert.True(t, strings.Contains(err.Error(), tc.wantMsg),
				"error %q should mention %q", err, tc.wantMsg)

			var ce *ConfigError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, p.ID, ce.PackID, "error must name the pack")
		})
	}
}

func TestValidate_SemanticsDeclaredOnce(t *testing.T) {
	p := paygwPack(t, "2024.1", "2024-07-01")
	p.Semantics = "progressive-ish"

	err := Validate(p)
	require.Error(t, err)
	assert.True(t, IsConfigError(err))
}

func TestValidate_FlatPackRejectsBaseAmounts(t *testing.T) {
	p := paygwPack(t, "2024.1", "2024-07-01")
	p.Semantics = SemanticsFlat
	p.Brackets[1].BaseAmount = dec(t, "5092")

	err := Validate(p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "base amount")
}

func TestValidate_FlatPackRejectsDecreasingRates(t *testing.T) {
	p := paygwPack(t, "2024.1", "2024-07-01")
	p.Semantics = SemanticsFlat
	p.Brackets[0].MarginalRate = dec(t, "0.30")

	err := Validate(p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decreases")
}

func TestValidate_ProductShape(t *testing.T) {
	p := paygwPack(t, "2024.1", "2024-07-01")
	p.Brackets = nil
	require.Error(t, Validate(p), "PAYGW pack needs brackets")

	g := gstPack(t, "gst-2024.1", "2024-07-01")
	g.Rates = nil
	require.Error(t, Validate(g), "GST pack needs category rates")

	u := paygwPack(t, "2024.1", "2024-07-01")
	u.Product = "FBT"
	require.Error(t, Validate(u), "unknown product must be rejected")
}

func TestValidate_EffectiveWindow(t *testing.T) {
	p := paygwPack(t, "2024.1", "2024-07-01")
	to := day(t, "2024-01-01")
	p.EffectiveTo = &to

	err := Validate(p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "effective_to")
}
