package bas

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/tindale/ruledger/internal/money"
)

// Filing is a compiled statutory form: whole-dollar totals per label
// plus the mapping version that produced them.
type Filing struct {
	// Labels holds the rounded total per statutory label.
	Labels map[string]decimal.Decimal `json:"labels"`

	// MappingVersion echoes the mapping schema for audit.
	MappingVersion string `json:"mapping_version"`
}

// Compile reduces the named sources onto the mapping's label schema.
//
// Per label each (source, path) entry resolves in exact decimals;
// missing intermediate keys resolve to zero so optional source
// sections need no special-casing. A source name the caller never
// declared is different: that is config drift, and it fails with
// UNKNOWN_SOURCE instead of silently contributing zero.
//
// Each label's sum rounds half-up to whole currency units once, at the
// end.
func Compile(m *Mapping, sources map[string]any) (*Filing, error) {
	// Sorted label order gives deterministic error selection when
	// multiple labels are broken.
	labels := make([]string, 0, len(m.Labels))
	for label := range m.Labels {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	out := make(map[string]decimal.Decimal, len(labels))
	for _, label := range labels {
		total := decimal.Zero
		for _, ref := range m.Labels[label] {
			src, ok := sources[ref.Source]
			if !ok {
				return nil, &CompileError{
					Code:    ErrCodeUnknownSource,
					Label:   label,
					Source:  ref.Source,
					Message: fmt.Sprintf("source not declared (have: %s)", strings.Join(sourceNames(sources), ", ")),
				}
			}
			v, err := resolvePath(src, ref.Path)
			if err != nil {
				return nil, &CompileError{
					Code:    ErrCodeBadValue,
					Label:   label,
					Source:  ref.Source,
					Message: fmt.Sprintf("path %q: %v", ref.Path, err),
				}
			}
			total = total.Add(v)
		}
		out[label] = money.RoundWhole(total)
	}

	return &Filing{Labels: out, MappingVersion: m.Version}, nil
}

func sourceNames(sources map[string]any) []string {
	names := make([]string, 0, len(sources))
	for name := range sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// resolvePath walks a dotted path through nested maps. A missing
// intermediate or terminal key resolves to zero. A terminal sequence
// sums its elements; a terminal scalar coerces to decimal.
func resolvePath(source any, path string) (decimal.Decimal, error) {
	current := source
	for _, part := range strings.Split(path, ".") {
		m, ok := asStringMap(current)
		if !ok {
			return decimal.Zero, nil
		}
		next, ok := m[part]
		if !ok {
			return decimal.Zero, nil
		}
		current = next
	}

	switch v := current.(type) {
	case []any:
		total := decimal.Zero
		for i, elem := range v {
			d, err := toDecimal(elem)
			if err != nil {
				return decimal.Decimal{}, fmt.Errorf("element %d: %w", i, err)
			}
			total = total.Add(d)
		}
		return total, nil
	default:
		return toDecimal(current)
	}
}

// asStringMap normalizes the two map shapes that reach the compiler:
// map[string]any from JSON sources and map[string]decimal.Decimal from
// in-process calculation output.
func asStringMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[string]decimal.Decimal:
		out := make(map[string]any, len(m))
		for k, d := range m {
			out[k] = d
		}
		return out, true
	default:
		return nil, false
	}
}

// toDecimal coerces a terminal value to the canonical decimal
// representation. Floats convert via their shortest decimal
// representation so a JSON-decoded 18750.45 stays 18750.45.
func toDecimal(v any) (decimal.Decimal, error) {
	switch val := v.(type) {
	case nil:
		return decimal.Zero, nil
	case decimal.Decimal:
		return val, nil
	case string:
		d, err := decimal.NewFromString(val)
		if err != nil {
			return decimal.Decimal{}, fmt.Errorf("cannot parse %q as decimal", val)
		}
		return d, nil
	case int:
		return decimal.NewFromInt(int64(val)), nil
	case int64:
		return decimal.NewFromInt(val), nil
	case float64:
		return decimal.NewFromFloat(val), nil
	default:
		return decimal.Decimal{}, fmt.Errorf("unsupported value type %T", v)
	}
}
