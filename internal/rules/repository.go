package rules

import (
	"fmt"
	"sort"
	"time"
)

// SelectorLatest resolves to the pack with the maximal effective_from,
// subject to the backdating guard.
const SelectorLatest = "latest"

// Repository holds the immutable pack set. Construct once at process
// start and inject it; there is no global cache and no hot reload -
// picking up new definitions requires a restart, which keeps every
// in-flight calculation on the pack set it started with.
//
// All state is read-only after construction, so the repository is safe
// for unsynchronized concurrent use.
type Repository struct {
	byVersion map[string]*Pack
	ordered   []*Pack // ascending effective_from, version tie-break
}

// NewRepository validates every pack, verifies declared digests, and
// builds the resolution index. Any invalid pack fails the whole
// construction: broken definitions are fatal, not skippable.
func NewRepository(packs []*Pack) (*Repository, error) {
	byVersion := make(map[string]*Pack, len(packs))
	ordered := make([]*Pack, 0, len(packs))

	for _, p := range packs {
		if err := Validate(p); err != nil {
			return nil, err
		}
		if err := VerifyDigest(p); err != nil {
			return nil, err
		}
		if existing, ok := byVersion[p.Version]; ok {
			return nil, &ConfigError{PackID: p.ID, Field: "version",
				Message: fmt.Sprintf("duplicate version %q (already used by pack %s)", p.Version, existing.ID)}
		}
		byVersion[p.Version] = p
		ordered = append(ordered, p)
	}

	sort.Slice(ordered, func(i, j int) bool {
		if !ordered[i].EffectiveFrom.Equal(ordered[j].EffectiveFrom) {
			return ordered[i].EffectiveFrom.Before(ordered[j].EffectiveFrom)
		}
		return ordered[i].Version < ordered[j].Version
	})

	return &Repository{byVersion: byVersion, ordered: ordered}, nil
}

// Resolve returns the pack for a (selector, as-of date) pair.
//
// An explicit version selector fails with UNKNOWN_VERSION when no pack
// carries that version, and with PERIOD_NOT_COVERED when asOf falls
// outside the pack's effective window.
//
// SelectorLatest resolves to the newest pack but fails with
// BACKDATING_REJECTED when asOf precedes that pack's effective_from:
// "whatever is newest" must never silently apply to a historical
// period.
//
// Resolution is a pure function of the immutable pack set - identical
// arguments return the identical *Pack forever.
func (r *Repository) Resolve(selector string, asOf time.Time) (*Pack, error) {
	if selector == SelectorLatest {
		latest := r.Latest()
		if latest == nil {
			return nil, &ResolveError{Code: ErrCodeUnknownVersion, Selector: selector, AsOf: asOf,
				Message: "no packs loaded"}
		}
		if asOf.Before(latest.EffectiveFrom) {
			return nil, &ResolveError{Code: ErrCodeBackdatingRejected, Selector: selector, AsOf: asOf,
				Message: fmt.Sprintf("latest pack %s is not effective until %s",
					latest.ID, latest.EffectiveFrom.Format("2006-01-02"))}
		}
		if !latest.Covers(asOf) {
			return nil, &ResolveError{Code: ErrCodePeriodNotCovered, Selector: selector, AsOf: asOf,
				Message: fmt.Sprintf("latest pack %s ended on %s",
					latest.ID, latest.EffectiveTo.Format("2006-01-02"))}
		}
		return latest, nil
	}

	p, ok := r.byVersion[selector]
	if !ok {
		return nil, &ResolveError{Code: ErrCodeUnknownVersion, Selector: selector, AsOf: asOf,
			Message: fmt.Sprintf("no pack with version %q", selector)}
	}
	if !p.Covers(asOf) {
		window := "open-ended from " + p.EffectiveFrom.Format("2006-01-02")
		if p.EffectiveTo != nil {
			window = fmt.Sprintf("[%s, %s]",
				p.EffectiveFrom.Format("2006-01-02"), p.EffectiveTo.Format("2006-01-02"))
		}
		return nil, &ResolveError{Code: ErrCodePeriodNotCovered, Selector: selector, AsOf: asOf,
			Message: fmt.Sprintf("pack %s covers %s", p.ID, window)}
	}
	return p, nil
}

// Latest returns the pack with the maximal effective_from, or nil when
// the repository is empty.
func (r *Repository) Latest() *Pack {
	if len(r.ordered) == 0 {
		return nil
	}
	return r.ordered[len(r.ordered)-1]
}

// Packs returns the pack set in ascending effective order. The slice
// is a copy; the packs themselves are shared and must not be mutated.
func (r *Repository) Packs() []*Pack {
	out := make([]*Pack, len(r.ordered))
	copy(out, r.ordered)
	return out
}
