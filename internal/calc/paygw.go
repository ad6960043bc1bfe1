package calc

import (
	"github.com/shopspring/decimal"

	"github.com/tindale/ruledger/internal/money"
	"github.com/tindale/ruledger/internal/rules"
)

// PAYGWInput describes one withholding calculation.
type PAYGWInput struct {
	// TaxableIncome is the gross taxable base for the period.
	// Negative values clamp to zero.
	TaxableIncome decimal.Decimal

	// Allowances reduce withholding by allowances * pack allowance
	// rate. Zero when the payee declared none.
	Allowances decimal.Decimal
}

// PAYGWResult is the computed withholding with echoed inputs and
// provenance.
type PAYGWResult struct {
	TaxableIncome  decimal.Decimal `json:"taxable_income"`
	Allowances     decimal.Decimal `json:"allowances"`
	WithheldAmount decimal.Decimal `json:"withheld_amount"`

	Provenance
}

// PAYGW computes withholding: bracket liability on the taxable income,
// reduced by the allowance credit, floored at zero. A withholding
// obligation never goes negative - over-claimed allowances zero it
// out, they do not create a refund here.
func PAYGW(in PAYGWInput, pack *rules.Pack) (PAYGWResult, error) {
	if err := ensureProduct(pack, rules.ProductPAYGW); err != nil {
		return PAYGWResult{}, err
	}

	bracketed, err := ComputeBracket(in.TaxableIncome, pack)
	if err != nil {
		return PAYGWResult{}, err
	}

	withheld := bracketed.Amount
	if in.Allowances.Sign() > 0 && pack.AllowanceRate.Sign() > 0 {
		withheld = withheld.Sub(in.Allowances.Mul(pack.AllowanceRate))
	}
	if withheld.Sign() < 0 {
		withheld = decimal.Zero
	}

	income := in.TaxableIncome
	if income.Sign() < 0 {
		income = decimal.Zero
	}

	return PAYGWResult{
		TaxableIncome:  money.RoundCents(income),
		Allowances:     money.RoundCents(in.Allowances),
		WithheldAmount: money.RoundCents(withheld),
		Provenance:     bracketed.Provenance,
	}, nil
}
