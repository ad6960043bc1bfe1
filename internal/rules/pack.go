package rules

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Product identifies the obligation product a pack serves.
const (
	ProductGST   = "GST"
	ProductPAYGW = "PAYGW"
)

// Semantics declares how a pack's brackets are applied. Declared once
// per pack and applied uniformly; there is no per-bracket override, so
// mixed conventions cannot occur inside a validated pack.
type Semantics string

const (
	// SemanticsCumulative brackets carry a precomputed base amount for
	// all lower bands; the marginal rate applies only to the remainder
	// above the bracket's own lower bound.
	SemanticsCumulative Semantics = "cumulative"

	// SemanticsFlat brackets apply the covering bracket's rate to the
	// whole base, with no carried base amount. Rates must not decrease
	// across brackets or the schedule would shrink at a boundary.
	SemanticsFlat Semantics = "flat"
)

// Bracket is a contiguous amount band. Within a pack, brackets
// partition [0, inf): the first lower bound is zero, each upper bound
// equals the next lower bound, and the last bracket is open-ended.
type Bracket struct {
	// Lower is the inclusive lower bound of the band.
	Lower decimal.Decimal

	// Upper is the exclusive upper bound, nil for the final open band.
	Upper *decimal.Decimal

	// BaseAmount is the precomputed liability for all lower bands.
	// Zero under flat semantics.
	BaseAmount decimal.Decimal

	// MarginalRate in [0, 1], applied above Lower.
	MarginalRate decimal.Decimal
}

// Contains reports whether base falls inside the band:
// Lower <= base and (open-ended or base < Upper).
func (b Bracket) Contains(base decimal.Decimal) bool {
	if base.LessThan(b.Lower) {
		return false
	}
	return b.Upper == nil || base.LessThan(*b.Upper)
}

// Pack is an immutable, versioned rule pack. Never mutated after
// loading; safe for unsynchronized concurrent reads.
type Pack struct {
	// ID uniquely identifies the pack (e.g. "paygw-2024-q1").
	ID string

	// Version is the selector callers pass to Repository.Resolve.
	Version string

	// Product is ProductGST or ProductPAYGW.
	Product string

	// Semantics declares the bracket application convention.
	Semantics Semantics

	// EffectiveFrom is the first day the pack applies (inclusive).
	EffectiveFrom time.Time

	// EffectiveTo is the last day the pack applies (inclusive),
	// nil for open-ended.
	EffectiveTo *time.Time

	// SourceURL points at the statutory publication the pack encodes.
	SourceURL string

	// SourceDigest is the domain-separated SHA-256 of the pack's
	// canonical content, for audit. Verified at load time.
	SourceDigest string

	// Brackets is the ordered progressive table (PAYGW packs).
	Brackets []Bracket

	// Rates maps GST category names to rates (GST packs).
	Rates map[string]decimal.Decimal

	// AllowanceRate scales declared allowances into a withholding
	// reduction (PAYGW packs). Zero when unused.
	AllowanceRate decimal.Decimal
}

// Categories returns the pack's GST categories in sorted order, for
// deterministic error messages and output.
func (p *Pack) Categories() []string {
	categories := make([]string, 0, len(p.Rates))
	for category := range p.Rates {
		categories = append(categories, category)
	}
	sort.Strings(categories)
	return categories
}

// Covers reports whether asOf falls inside the pack's effective window.
func (p *Pack) Covers(asOf time.Time) bool {
	if asOf.Before(p.EffectiveFrom) {
		return false
	}
	return p.EffectiveTo == nil || !asOf.After(*p.EffectiveTo)
}
