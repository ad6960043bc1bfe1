package rules

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Validate checks a pack's structural invariants. A violation means the
// definitions store itself is broken; the caller should abandon the
// whole pack set, not skip the pack.
//
// Checks, in order:
//   - product and semantics are known values
//   - effective_to (when set) is not before effective_from
//   - PAYGW packs carry brackets, GST packs carry category rates
//   - brackets partition [0, inf): first lower bound is zero, bands are
//     sorted ascending, each upper bound equals the next lower bound
//     (no gaps, no overlaps), only the last band is open-ended
//   - each upper bound strictly exceeds its lower bound
//   - marginal rates and category rates lie in [0, 1]
//   - flat-semantics brackets carry no base amount, and their rates do
//     not decrease across brackets (a decreasing rate would shrink the
//     computed amount at the boundary)
func Validate(p *Pack) error {
	if p.ID == "" {
		return &ConfigError{Field: "id", Message: "pack id is required"}
	}
	if p.Version == "" {
		return &ConfigError{PackID: p.ID, Field: "version", Message: "version is required"}
	}
	if p.Product != ProductGST && p.Product != ProductPAYGW {
		return &ConfigError{PackID: p.ID, Field: "product",
			Message: fmt.Sprintf("unknown product %q (want %s or %s)", p.Product, ProductGST, ProductPAYGW)}
	}
	if p.Semantics != SemanticsCumulative && p.Semantics != SemanticsFlat {
		return &ConfigError{PackID: p.ID, Field: "semantics",
			Message: fmt.Sprintf("unknown bracket semantics %q (want %q or %q)",
				p.Semantics, SemanticsCumulative, SemanticsFlat)}
	}
	if p.EffectiveFrom.IsZero() {
		return &ConfigError{PackID: p.ID, Field: "effective_from", Message: "effective_from is required"}
	}
	if p.EffectiveTo != nil && p.EffectiveTo.Before(p.EffectiveFrom) {
		return &ConfigError{PackID: p.ID, Field: "effective_to",
			Message: "effective_to precedes effective_from"}
	}

	switch p.Product {
	case ProductPAYGW:
		if len(p.Brackets) == 0 {
			return &ConfigError{PackID: p.ID, Field: "brackets", Message: "PAYGW pack has no brackets"}
		}
	case ProductGST:
		if len(p.Rates) == 0 {
			return &ConfigError{PackID: p.ID, Field: "rates", Message: "GST pack has no category rates"}
		}
	}

	if err := validateBrackets(p); err != nil {
		return err
	}
	return validateRates(p)
}

func validateBrackets(p *Pack) error {
	for i, b := range p.Brackets {
		field := fmt.Sprintf("brackets[%d]", i)

		if b.Lower.Sign() < 0 {
			return &ConfigError{PackID: p.ID, Field: field, Message: "negative lower bound"}
		}
		if b.Upper != nil && !b.Upper.GreaterThan(b.Lower) {
			return &ConfigError{PackID: p.ID, Field: field,
				Message: fmt.Sprintf("upper bound %s does not exceed lower bound %s", b.Upper, b.Lower)}
		}
		if b.MarginalRate.Sign() < 0 || b.MarginalRate.GreaterThan(decimal.New(1, 0)) {
			return &ConfigError{PackID: p.ID, Field: field,
				Message: fmt.Sprintf("marginal rate %s outside [0, 1]", b.MarginalRate)}
		}
		if p.Semantics == SemanticsFlat && b.BaseAmount.Sign() != 0 {
			return &ConfigError{PackID: p.ID, Field: field,
				Message: "flat-semantics bracket carries a base amount"}
		}

		if i == 0 {
			if b.Lower.Sign() != 0 {
				return &ConfigError{PackID: p.ID, Field: field,
					Message: fmt.Sprintf("first bracket starts at %s, not 0", b.Lower)}
			}
		} else {
			prev := p.Brackets[i-1]
			if prev.Upper == nil {
				return &ConfigError{PackID: p.ID, Field: field,
					Message: "bracket follows an open-ended bracket"}
			}
			if !prev.Upper.Equal(b.Lower) {
				return &ConfigError{PackID: p.ID, Field: field,
					Message: fmt.Sprintf("gap or overlap: previous upper bound %s, lower bound %s", prev.Upper, b.Lower)}
			}
			if p.Semantics == SemanticsFlat && b.MarginalRate.LessThan(prev.MarginalRate) {
				return &ConfigError{PackID: p.ID, Field: field,
					Message: fmt.Sprintf("flat-semantics rate %s decreases from %s", b.MarginalRate, prev.MarginalRate)}
			}
		}

		if i == len(p.Brackets)-1 && b.Upper != nil {
			return &ConfigError{PackID: p.ID, Field: field,
				Message: fmt.Sprintf("last bracket must be open-ended, has upper bound %s", b.Upper)}
		}
	}
	return nil
}

func validateRates(p *Pack) error {
	one := decimal.New(1, 0)
	for category, rate := range p.Rates {
		if rate.Sign() < 0 || rate.GreaterThan(one) {
			return &ConfigError{PackID: p.ID, Field: "rates." + category,
				Message: fmt.Sprintf("rate %s outside [0, 1]", rate)}
		}
	}
	if p.AllowanceRate.Sign() < 0 || p.AllowanceRate.GreaterThan(one) {
		return &ConfigError{PackID: p.ID, Field: "allowance_rate",
			Message: fmt.Sprintf("rate %s outside [0, 1]", p.AllowanceRate)}
	}
	return nil
}
