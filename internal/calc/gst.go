package calc

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/tindale/ruledger/internal/money"
	"github.com/tindale/ruledger/internal/rules"
)

// GSTInput describes one taxable supply.
type GSTInput struct {
	// Category selects the rate from the pack's category table
	// (e.g. "standard", "gst_free", "input_taxed").
	Category string

	// NetAmount is the GST-exclusive amount. Must be non-negative.
	NetAmount decimal.Decimal
}

// GSTResult carries the computed GST alongside the echoed inputs, all
// rounded to cents, plus provenance.
type GSTResult struct {
	Category    string          `json:"category"`
	Rate        decimal.Decimal `json:"rate"`
	NetAmount   decimal.Decimal `json:"net_amount"`
	GSTAmount   decimal.Decimal `json:"gst_amount"`
	GrossAmount decimal.Decimal `json:"gross_amount"`

	Provenance
}

// GST computes the GST liability for a supply under the given pack.
//
// An unknown category is an error naming the available categories -
// a miscategorized supply must surface, not default to some rate.
func GST(in GSTInput, pack *rules.Pack) (GSTResult, error) {
	if err := ensureProduct(pack, rules.ProductGST); err != nil {
		return GSTResult{}, err
	}
	if in.NetAmount.Sign() < 0 {
		return GSTResult{}, &money.ArgumentError{
			Field:   "net_amount",
			Message: fmt.Sprintf("must be non-negative, got %s", in.NetAmount),
		}
	}

	rate, ok := pack.Rates[in.Category]
	if !ok {
		return GSTResult{}, fmt.Errorf("unknown GST category %q (available: %s)",
			in.Category, strings.Join(pack.Categories(), ", "))
	}

	gst := money.RoundCents(in.NetAmount.Mul(rate))
	return GSTResult{
		Category:    in.Category,
		Rate:        rate,
		NetAmount:   money.RoundCents(in.NetAmount),
		GSTAmount:   gst,
		GrossAmount: money.RoundCents(in.NetAmount.Add(gst)),
		Provenance:  provenanceOf(pack),
	}, nil
}
