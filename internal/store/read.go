package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tindale/ruledger/internal/ledger"
)

// ListResults returns the audited calculations for an entity, ordered
// deterministically by processor sequence then id.
func (s *Store) ListResults(ctx context.Context, entityID string) ([]ResultRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, entity_id, obligation, amount, period, pack_id, pack_version,
		       effective_from, effective_to, source_url, source_digest, seq
		FROM calculation_results
		WHERE entity_id = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, entityID)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	results := []ResultRecord{}
	for rows.Next() {
		rec, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate results: %w", err)
	}
	return results, nil
}

// ListDiscrepancies returns the whole discrepancy trail in detection
// order.
func (s *Store) ListDiscrepancies(ctx context.Context) ([]ledger.Discrepancy, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT entity_id, obligation, expected, actual, difference, context
		FROM discrepancies
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query discrepancies: %w", err)
	}
	defer rows.Close()

	out := []ledger.Discrepancy{}
	for rows.Next() {
		var (
			d           ledger.Discrepancy
			kind        string
			expected    string
			actual      string
			difference  string
			contextJSON sql.NullString
		)
		if err := rows.Scan(&d.EntityID, &kind, &expected, &actual, &difference, &contextJSON); err != nil {
			return nil, fmt.Errorf("scan discrepancy: %w", err)
		}
		d.Kind = ledger.Kind(kind)
		if d.Expected, err = decimal.NewFromString(expected); err != nil {
			return nil, fmt.Errorf("scan discrepancy expected: %w", err)
		}
		if d.Actual, err = decimal.NewFromString(actual); err != nil {
			return nil, fmt.Errorf("scan discrepancy actual: %w", err)
		}
		if d.Diff, err = decimal.NewFromString(difference); err != nil {
			return nil, fmt.Errorf("scan discrepancy difference: %w", err)
		}
		if contextJSON.Valid && contextJSON.String != "" {
			if err := json.Unmarshal([]byte(contextJSON.String), &d.Context); err != nil {
				return nil, fmt.Errorf("scan discrepancy context: %w", err)
			}
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate discrepancies: %w", err)
	}
	return out, nil
}

func scanResult(rows *sql.Rows) (ResultRecord, error) {
	var (
		rec           ResultRecord
		obligation    string
		amount        string
		period        string
		effectiveFrom string
		effectiveTo   sql.NullString
	)
	err := rows.Scan(
		&rec.ID,
		&rec.EntityID,
		&obligation,
		&amount,
		&period,
		&rec.Provenance.PackID,
		&rec.Provenance.Version,
		&effectiveFrom,
		&effectiveTo,
		&rec.Provenance.SourceURL,
		&rec.Provenance.SourceDigest,
		&rec.Seq,
	)
	if err != nil {
		return ResultRecord{}, fmt.Errorf("scan result: %w", err)
	}

	rec.Obligation = ledger.Kind(obligation)
	if rec.Amount, err = decimal.NewFromString(amount); err != nil {
		return ResultRecord{}, fmt.Errorf("scan result amount: %w", err)
	}
	if rec.Period, err = time.Parse("2006-01-02", period); err != nil {
		return ResultRecord{}, fmt.Errorf("scan result period: %w", err)
	}
	if rec.Provenance.EffectiveFrom, err = time.Parse("2006-01-02", effectiveFrom); err != nil {
		return ResultRecord{}, fmt.Errorf("scan result effective_from: %w", err)
	}
	if effectiveTo.Valid {
		to, err := time.Parse("2006-01-02", effectiveTo.String)
		if err != nil {
			return ResultRecord{}, fmt.Errorf("scan result effective_to: %w", err)
		}
		rec.Provenance.EffectiveTo = &to
	}
	return rec, nil
}
