package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tindale/ruledger/internal/calc"
	"github.com/tindale/ruledger/internal/ledger"
)

// ResultRecord is one audited calculation: the event that triggered
// it, the computed amount, and the full rule provenance needed to
// reproduce it.
type ResultRecord struct {
	// ID is the processed event's token. Appending the same token
	// twice is a no-op, so replaying an audit feed cannot duplicate
	// rows.
	ID string

	EntityID   string
	Obligation ledger.Kind
	Amount     decimal.Decimal
	Period     time.Time
	Provenance calc.Provenance

	// Seq is the processor's logical clock stamp.
	Seq int64
}

// AppendResult inserts a calculation result into the audit log.
// Duplicate IDs are silently ignored (ON CONFLICT DO NOTHING); other
// constraint violations still error. Monetary values are stored as
// exact decimal strings.
func (s *Store) AppendResult(ctx context.Context, rec ResultRecord) error {
	var effectiveTo any
	if rec.Provenance.EffectiveTo != nil {
		effectiveTo = rec.Provenance.EffectiveTo.Format("2006-01-02")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO calculation_results
		(id, entity_id, obligation, amount, period, pack_id, pack_version,
		 effective_from, effective_to, source_url, source_digest, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		rec.ID,
		rec.EntityID,
		string(rec.Obligation),
		rec.Amount.String(),
		rec.Period.Format("2006-01-02"),
		rec.Provenance.PackID,
		rec.Provenance.Version,
		rec.Provenance.EffectiveFrom.Format("2006-01-02"),
		effectiveTo,
		rec.Provenance.SourceURL,
		rec.Provenance.SourceDigest,
		rec.Seq,
	)
	if err != nil {
		return fmt.Errorf("append result: %w", err)
	}
	return nil
}

// AppendDiscrepancy inserts a reconciliation discrepancy into the
// audit log. Discrepancies are never deduplicated: the same mismatch
// detected by two reconciliation runs is two detections.
func (s *Store) AppendDiscrepancy(ctx context.Context, d ledger.Discrepancy) error {
	var contextJSON any
	if len(d.Context) > 0 {
		raw, err := json.Marshal(d.Context)
		if err != nil {
			return fmt.Errorf("append discrepancy: marshal context: %w", err)
		}
		contextJSON = string(raw)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO discrepancies
		(entity_id, obligation, expected, actual, difference, context)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		d.EntityID,
		string(d.Kind),
		d.Expected.String(),
		d.Actual.String(),
		d.Diff.String(),
		contextJSON,
	)
	if err != nil {
		return fmt.Errorf("append discrepancy: %w", err)
	}
	return nil
}
