package ledger

import (
	"sort"

	"github.com/shopspring/decimal"
)

// ReportedBalance is one record from an external ledger system.
type ReportedBalance struct {
	EntityID  string          `json:"entity_id"`
	Kind      Kind            `json:"obligation_type"`
	Balance   decimal.Decimal `json:"balance"`
	Reference string          `json:"reference,omitempty"`
}

// Discrepancy is a detected mismatch between an accumulated obligation
// and a reported balance. Immutable once created; the ledger appends
// every one to its audit trail and never deletes it.
//
// Difference is expected - actual (ledger minus reported),
// sign-preserving: positive means the external system under-reports,
// negative means it over-reports.
type Discrepancy struct {
	EntityID string            `json:"entity_id"`
	Kind     Kind              `json:"obligation_type"`
	Expected decimal.Decimal   `json:"expected_amount"`
	Actual   decimal.Decimal   `json:"actual_amount"`
	Diff     decimal.Decimal   `json:"difference"`
	Context  map[string]string `json:"context,omitempty"`
}

// Reconcile compares the ledger's point-in-time snapshot against the
// reported balances.
//
// For every tracked obligation the reported balance (zero when
// unreported) must equal the accumulated total; any nonzero difference
// emits a discrepancy. A reported balance with no tracked obligation
// and a nonzero value emits an "unexplained balance" discrepancy.
// Matching totals emit nothing - differences are data, never errors.
//
// The snapshot may be stale by the time discrepancies are reported;
// callers must treat the result as "as of" the call, and concurrent
// accumulation is never blocked.
func (l *Ledger) Reconcile(balances []ReportedBalance) []Discrepancy {
	balanceMap := make(map[Key]decimal.Decimal, len(balances))
	references := make(map[Key]string, len(balances))
	for _, b := range balances {
		key := Key{EntityID: b.EntityID, Kind: b.Kind}
		balanceMap[key] = b.Balance
		if b.Reference != "" {
			references[key] = b.Reference
		}
	}

	snapshots := l.Snapshots()
	tracked := make(map[Key]bool, len(snapshots))

	var out []Discrepancy
	for _, s := range snapshots {
		key := Key{EntityID: s.EntityID, Kind: s.Kind}
		tracked[key] = true

		actual := decimal.Zero
		if b, ok := balanceMap[key]; ok {
			actual = b
		}
		if s.Total.Equal(actual) {
			continue
		}
		out = append(out, Discrepancy{
			EntityID: s.EntityID,
			Kind:     s.Kind,
			Expected: s.Total,
			Actual:   actual,
			Diff:     s.Total.Sub(actual),
			Context:  s.Context,
		})
	}

	// Nonzero balances nobody accumulated for: unexplained.
	unexplained := make([]Key, 0)
	for key, balance := range balanceMap {
		if !tracked[key] && !balance.IsZero() {
			unexplained = append(unexplained, key)
		}
	}
	sort.Slice(unexplained, func(i, j int) bool {
		if unexplained[i].EntityID != unexplained[j].EntityID {
			return unexplained[i].EntityID < unexplained[j].EntityID
		}
		return unexplained[i].Kind < unexplained[j].Kind
	})
	for _, key := range unexplained {
		balance := balanceMap[key]
		context := map[string]string{"note": "no obligation recorded"}
		if ref := references[key]; ref != "" {
			context["reference"] = ref
		}
		out = append(out, Discrepancy{
			EntityID: key.EntityID,
			Kind:     key.Kind,
			Expected: decimal.Zero,
			Actual:   balance,
			Diff:     decimal.Zero.Sub(balance),
			Context:  context,
		})
	}

	if len(out) > 0 {
		l.dmu.Lock()
		l.discrepancies = append(l.discrepancies, out...)
		l.dmu.Unlock()
	}
	return out
}

// Discrepancies returns a copy of the append-only discrepancy audit
// trail, in detection order.
func (l *Ledger) Discrepancies() []Discrepancy {
	l.dmu.Lock()
	defer l.dmu.Unlock()
	out := make([]Discrepancy, len(l.discrepancies))
	copy(out, l.discrepancies)
	return out
}
