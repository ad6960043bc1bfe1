package harness

import (
	"context"
	"fmt"
	"sort"

	"github.com/tindale/ruledger/internal/bas"
	"github.com/tindale/ruledger/internal/engine"
	"github.com/tindale/ruledger/internal/ledger"
	"github.com/tindale/ruledger/internal/rules"
)

// EventRecord is one event's outcome in the snapshot.
type EventRecord struct {
	Token       string `json:"token"`
	Seq         int64  `json:"seq"`
	Status      string `json:"status"` // "ok" | "failed"
	Amount      string `json:"amount,omitempty"`
	PackID      string `json:"pack_id,omitempty"`
	PackVersion string `json:"pack_version,omitempty"`
	Error       string `json:"error,omitempty"`
}

// TotalRecord is one accumulated obligation total.
type TotalRecord struct {
	EntityID string `json:"entity_id"`
	Kind     string `json:"kind"`
	Total    string `json:"total"`
}

// DiscrepancyRecord is one reconciliation finding.
type DiscrepancyRecord struct {
	EntityID string `json:"entity_id"`
	Kind     string `json:"kind"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
	Diff     string `json:"diff"`
	Note     string `json:"note,omitempty"`
}

// Result captures a scenario execution: per-event outcomes in
// processing order, final obligation totals, reconciliation findings
// and compiled labels. All monetary values are fixed two-place
// strings, labels whole dollars.
type Result struct {
	Scenario      string                       `json:"scenario"`
	Events        []EventRecord                `json:"events"`
	Totals        []TotalRecord                `json:"totals"`
	Discrepancies []DiscrepancyRecord          `json:"discrepancies,omitempty"`
	Labels        map[string]map[string]string `json:"labels,omitempty"`
}

// Run executes a scenario deterministically: declared (or generated)
// event tokens, a fresh logical clock and strict arrival-order
// processing make repeated runs produce identical results.
func Run(scenario *Scenario) (*Result, error) {
	repo, err := rules.LoadRepository(scenario.packsDir())
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}

	var mapping *bas.Mapping
	if path := scenario.mappingPath(); path != "" {
		mapping, err = bas.LoadMapping(path)
		if err != nil {
			return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
		}
	}

	events, err := scenario.engineEvents()
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}
	balances, err := scenario.reportedBalances()
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}

	result := &Result{Scenario: scenario.Name}

	ldg := ledger.New()
	proc := engine.New(repo, ldg,
		engine.WithOutcomeHook(func(o engine.Outcome) {
			rec := EventRecord{Token: o.Token, Seq: o.Seq}
			if o.Err != nil {
				rec.Status = "failed"
				rec.Error = o.Err.Error()
			} else {
				rec.Status = "ok"
				rec.Amount = o.Amount.StringFixed(2)
				rec.PackID = o.Prov.PackID
				rec.PackVersion = o.Prov.Version
			}
			result.Events = append(result.Events, rec)
		}),
	)

	for _, ev := range events {
		proc.Submit(ev)
	}
	done := make(chan error, 1)
	go func() { done <- proc.Run(context.Background()) }()
	proc.Stop()
	if err := <-done; err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}

	snapshots := ldg.Snapshots()
	for _, snap := range snapshots {
		result.Totals = append(result.Totals, TotalRecord{
			EntityID: snap.EntityID,
			Kind:     string(snap.Kind),
			Total:    snap.Total.StringFixed(2),
		})
	}

	if len(balances) > 0 {
		for _, d := range ldg.Reconcile(balances) {
			result.Discrepancies = append(result.Discrepancies, DiscrepancyRecord{
				EntityID: d.EntityID,
				Kind:     string(d.Kind),
				Expected: d.Expected.StringFixed(2),
				Actual:   d.Actual.StringFixed(2),
				Diff:     d.Diff.StringFixed(2),
				Note:     d.Context["note"],
			})
		}
	}

	if mapping != nil {
		result.Labels = make(map[string]map[string]string)
		for _, entityID := range entityIDs(snapshots) {
			filing, err := bas.Compile(mapping, obligationSources(snapshots, entityID))
			if err != nil {
				return nil, fmt.Errorf("scenario %s: compiling labels for %s: %w", scenario.Name, entityID, err)
			}
			labels := make(map[string]string, len(filing.Labels))
			for label, amount := range filing.Labels {
				labels[label] = amount.StringFixed(0)
			}
			result.Labels[entityID] = labels
		}
	}

	return result, nil
}

// Verify checks a result against the scenario's inline expectations.
// A nil expect block passes trivially.
func (s *Scenario) Verify(result *Result) error {
	if s.Expect == nil {
		return nil
	}

	if want := s.Expect.Discrepancies; want != nil && len(result.Discrepancies) != *want {
		return fmt.Errorf("scenario %s: expected %d discrepancy(ies), got %d", s.Name, *want, len(result.Discrepancies))
	}

	if want := s.Expect.Failed; want != nil {
		failed := 0
		for _, ev := range result.Events {
			if ev.Status == "failed" {
				failed++
			}
		}
		if failed != *want {
			return fmt.Errorf("scenario %s: expected %d failed event(s), got %d", s.Name, *want, failed)
		}
	}

	for _, want := range s.Expect.Totals {
		found := false
		for _, got := range result.Totals {
			if got.EntityID == want.EntityID && got.Kind == want.Kind {
				found = true
				if got.Total != want.Total {
					return fmt.Errorf("scenario %s: %s %s total %s, expected %s",
						s.Name, want.EntityID, want.Kind, got.Total, want.Total)
				}
			}
		}
		if !found {
			return fmt.Errorf("scenario %s: no accumulated total for %s %s", s.Name, want.EntityID, want.Kind)
		}
	}

	for entityID, wantLabels := range s.Expect.Labels {
		gotLabels, ok := result.Labels[entityID]
		if !ok {
			return fmt.Errorf("scenario %s: no compiled labels for %s", s.Name, entityID)
		}
		for label, want := range wantLabels {
			if got := gotLabels[label]; got != want {
				return fmt.Errorf("scenario %s: %s label %s = %s, expected %s",
					s.Name, entityID, label, got, want)
			}
		}
	}

	return nil
}

// entityIDs returns the distinct entity ids across snapshots, sorted.
func entityIDs(snapshots []ledger.Snapshot) []string {
	seen := make(map[string]bool)
	for _, snap := range snapshots {
		seen[snap.EntityID] = true
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// obligationSources builds the label compiler's source document for
// one entity: a single "obligations" source keyed by obligation kind.
func obligationSources(snapshots []ledger.Snapshot, entityID string) map[string]any {
	kinds := make(map[string]any)
	for _, snap := range snapshots {
		if snap.EntityID == entityID {
			kinds[string(snap.Kind)] = snap.Total
		}
	}
	return map[string]any{"obligations": kinds}
}
