// Package calc holds the pure calculators: progressive bracket
// withholding and GST category rates. No I/O, no clocks, no shared
// state - a calculator's output is a function of its inputs and the
// resolved rule pack, which is what makes results reproducible.
package calc

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tindale/ruledger/internal/money"
	"github.com/tindale/ruledger/internal/rules"
)

// Provenance records exactly which rules produced a result. Attached
// to every result and never mutated - a result is recomputed and
// reissued, never edited.
type Provenance struct {
	PackID        string     `json:"pack_id"`
	Version       string     `json:"version"`
	EffectiveFrom time.Time  `json:"effective_from"`
	EffectiveTo   *time.Time `json:"effective_to,omitempty"`
	SourceURL     string     `json:"source_url"`
	SourceDigest  string     `json:"source_digest,omitempty"`
}

func provenanceOf(p *rules.Pack) Provenance {
	return Provenance{
		PackID:        p.ID,
		Version:       p.Version,
		EffectiveFrom: p.EffectiveFrom,
		EffectiveTo:   p.EffectiveTo,
		SourceURL:     p.SourceURL,
		SourceDigest:  p.SourceDigest,
	}
}

// Result is a computed monetary amount plus its provenance.
type Result struct {
	// Amount is the computed liability, rounded to cents.
	Amount decimal.Decimal `json:"amount"`

	Provenance
}

// ComputeBracket applies a pack's bracket table to a taxable base.
//
// A negative base clamps to zero before lookup - there is no negative
// taxable base. The covering bracket is the unique band with
// lower <= base < upper (open-ended final band); since validated packs
// partition [0, inf) a failed lookup means the pack bypassed
// validation, which surfaces as a fatal *rules.ConfigError rather than
// being papered over.
//
// Application follows the pack's declared semantics:
//
//	cumulative: base_amount + (base - lower) * marginal_rate
//	flat:       base * marginal_rate
//
// Flat applies the covering bracket's rate to the whole base, not just
// the slice above the lower bound. Both shapes are non-decreasing in
// base for any validated pack, so a liability never shrinks when the
// base grows.
//
// The raw amount is rounded to cents by internal/money before being
// attached to the Result.
func ComputeBracket(base decimal.Decimal, pack *rules.Pack) (Result, error) {
	if base.Sign() < 0 {
		base = decimal.Zero
	}

	bracket, err := coveringBracket(base, pack)
	if err != nil {
		return Result{}, err
	}

	var raw decimal.Decimal
	if pack.Semantics == rules.SemanticsCumulative {
		raw = bracket.BaseAmount.Add(base.Sub(bracket.Lower).Mul(bracket.MarginalRate))
	} else {
		raw = base.Mul(bracket.MarginalRate)
	}

	return Result{
		Amount:     money.RoundCents(raw),
		Provenance: provenanceOf(pack),
	}, nil
}

// coveringBracket scans ascending and keeps the last bracket whose
// lower bound does not exceed base. Equivalent to the unique covering
// bracket for a partitioned table.
func coveringBracket(base decimal.Decimal, pack *rules.Pack) (rules.Bracket, error) {
	found := false
	var winner rules.Bracket
	for _, b := range pack.Brackets {
		if b.Lower.GreaterThan(base) {
			break
		}
		winner = b
		found = true
	}
	if !found || !winner.Contains(base) {
		return rules.Bracket{}, &rules.ConfigError{
			PackID: pack.ID,
			Field:  "brackets",
			Message: fmt.Sprintf("no bracket covers base %s - pack bypassed validation",
				base),
		}
	}
	return winner, nil
}

// ensureProduct guards against resolving a pack for the wrong product,
// e.g. feeding a GST rate pack to the withholding calculator.
func ensureProduct(pack *rules.Pack, product string) error {
	if pack.Product != product {
		return fmt.Errorf("pack %s is a %s pack, not %s", pack.ID, pack.Product, product)
	}
	return nil
}
