// Package ledger accumulates per-entity tax obligations and reconciles
// them against externally reported balances.
//
// The accumulation map is the only mutable shared state in the system.
// Mutations for the same (entity, kind) key serialize on a per-key
// lock; different keys accumulate in parallel. Reconciliation works on
// a point-in-time snapshot and never blocks accumulation - its results
// are "as of" a moment, not a consistency guarantee.
package ledger

import (
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
)

// Kind is the closed set of obligation types. Adding a kind is a
// compile-time-visible change: every switch over Kind must grow a new
// case.
type Kind string

const (
	// KindGST is goods-and-services tax collected on supplies.
	KindGST Kind = "GST"

	// KindPAYGW is pay-as-you-go withholding on wages.
	KindPAYGW Kind = "PAYGW"
)

// ParseKind maps a wire string onto the closed Kind set.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindGST:
		return KindGST, nil
	case KindPAYGW:
		return KindPAYGW, nil
	default:
		return "", fmt.Errorf("unknown obligation kind %q (want %s or %s)", s, KindGST, KindPAYGW)
	}
}

// ContextKeyCorrection marks an obligation whose total has been reduced
// by a correcting entry. Stamped by Accumulate on any negative amount.
const ContextKeyCorrection = "correction"

// Key identifies one running total.
type Key struct {
	EntityID string
	Kind     Kind
}

// Snapshot is a copy of one obligation's state at a moment in time.
type Snapshot struct {
	EntityID string            `json:"entity_id"`
	Kind     Kind              `json:"obligation_type"`
	Total    decimal.Decimal   `json:"total"`
	Context  map[string]string `json:"context,omitempty"`
}

type entry struct {
	mu      sync.Mutex
	total   decimal.Decimal
	context map[string]string
}

// Ledger is the obligation store. The zero value is not usable; call
// New.
type Ledger struct {
	mu      sync.RWMutex
	entries map[Key]*entry

	dmu           sync.Mutex
	discrepancies []Discrepancy
}

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{entries: make(map[Key]*entry)}
}

// Accumulate adds amount to the running total for (entityID, kind),
// creating the obligation lazily on first use, and returns the updated
// snapshot.
//
// Accumulation is NOT idempotent: every call adds. Callers that may
// deliver an event twice must de-duplicate upstream - that contract
// belongs to them, not to the ledger. Negative amounts are accepted as
// explicit correcting entries; nothing else ever decreases a total. A
// correcting entry is stamped into the audit context under
// ContextKeyCorrection so the trail records that the decrease was
// intentional.
//
// Context entries merge into the obligation's audit context,
// last-write-wins per key.
func (l *Ledger) Accumulate(entityID string, kind Kind, amount decimal.Decimal, context map[string]string) Snapshot {
	e := l.entryFor(Key{EntityID: entityID, Kind: kind})

	e.mu.Lock()
	defer e.mu.Unlock()

	e.total = e.total.Add(amount)
	for k, v := range context {
		e.context[k] = v
	}
	if amount.Sign() < 0 {
		e.context[ContextKeyCorrection] = "true"
	}
	return Snapshot{
		EntityID: entityID,
		Kind:     kind,
		Total:    e.total,
		Context:  copyContext(e.context),
	}
}

// entryFor returns the entry for key, creating it if needed. Fast path
// is a read lock; creation takes the write lock and re-checks.
func (l *Ledger) entryFor(key Key) *entry {
	l.mu.RLock()
	e, ok := l.entries[key]
	l.mu.RUnlock()
	if ok {
		return e
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.entries[key]; ok {
		return e
	}
	e = &entry{total: decimal.Zero, context: make(map[string]string)}
	l.entries[key] = e
	return e
}

// Snapshots returns a point-in-time copy of every tracked obligation,
// sorted by entity then kind for deterministic output.
func (l *Ledger) Snapshots() []Snapshot {
	l.mu.RLock()
	keys := make([]Key, 0, len(l.entries))
	for k := range l.entries {
		keys = append(keys, k)
	}
	entries := make(map[Key]*entry, len(l.entries))
	for k, e := range l.entries {
		entries[k] = e
	}
	l.mu.RUnlock()

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].EntityID != keys[j].EntityID {
			return keys[i].EntityID < keys[j].EntityID
		}
		return keys[i].Kind < keys[j].Kind
	})

	out := make([]Snapshot, 0, len(keys))
	for _, k := range keys {
		e := entries[k]
		e.mu.Lock()
		out = append(out, Snapshot{
			EntityID: k.EntityID,
			Kind:     k.Kind,
			Total:    e.total,
			Context:  copyContext(e.context),
		})
		e.mu.Unlock()
	}
	return out
}

func copyContext(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
