// Package money is the single authority for monetary quantization.
//
// Every component that emits a monetary amount rounds it here. No other
// package re-implements rounding, so a change to statutory rounding rules
// is a change to exactly one function.
//
// All arithmetic is exact decimal (shopspring/decimal). Binary floating
// point never participates in a rounding decision.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Statutory quanta. Cents for liability amounts, whole dollars for
// BAS label totals.
var (
	QuantumCents = decimal.New(1, -2) // 0.01
	QuantumWhole = decimal.New(1, 0)  // 1
)

// ArgumentError reports an invalid argument to a rounding operation.
type ArgumentError struct {
	// Field names the offending argument.
	Field string

	// Message is a human-readable description.
	Message string
}

// Error implements the error interface.
func (e *ArgumentError) Error() string {
	return fmt.Sprintf("INVALID_ARGUMENT: %s: %s", e.Field, e.Message)
}

// Round quantizes v to the given quantum using half-up rounding:
// at the exact midpoint the result moves away from zero, for negative
// inputs as well (-99.50 at quantum 1 rounds to -100, mirroring the
// positive case).
//
// The quantum is arbitrary - 0.01 for cents, 0.05 for five-cent
// rounding, 1 for whole-dollar label totals. A non-positive quantum is
// rejected with *ArgumentError.
func Round(v decimal.Decimal, quantum decimal.Decimal) (decimal.Decimal, error) {
	if quantum.Sign() <= 0 {
		return decimal.Decimal{}, &ArgumentError{
			Field:   "quantum",
			Message: fmt.Sprintf("must be positive, got %s", quantum),
		}
	}

	// DivRound rounds half away from zero, which is exactly the
	// statutory midpoint rule. Multiplying back by the quantum is exact.
	steps := v.DivRound(quantum, 0)
	return steps.Mul(quantum), nil
}

// RoundCents quantizes v to cents, half-up.
func RoundCents(v decimal.Decimal) decimal.Decimal {
	r, err := Round(v, QuantumCents)
	if err != nil {
		// QuantumCents is a positive constant; Round cannot fail.
		panic(err)
	}
	return r
}

// RoundWhole quantizes v to whole currency units, half-up.
func RoundWhole(v decimal.Decimal) decimal.Decimal {
	r, err := Round(v, QuantumWhole)
	if err != nil {
		panic(err)
	}
	return r
}
