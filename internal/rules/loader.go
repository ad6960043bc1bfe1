package rules

import (
	"fmt"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"github.com/shopspring/decimal"
)

// LoadDir loads rule-pack definitions from a CUE package directory.
//
// The definitions document has the shape:
//
//	packs: [
//		{
//			id:             "paygw-2024"
//			version:        "2024.1"
//			product:        "PAYGW"
//			semantics:      "cumulative"
//			effective_from: "2024-07-01"
//			source_url:     "https://..."
//			source_digest:  "..."   // optional, verified when present
//			brackets: [
//				{lower_bound: "0", upper_bound: "18200", base_amount: "0", marginal_rate: "0"},
//				...
//			]
//		},
//	]
//
// Monetary fields cross the boundary as exact decimal strings, never
// floats. The returned packs are not yet validated; NewRepository runs
// validation and digest verification.
func LoadDir(dir string) ([]*Pack, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("definitions directory not found: %s", dir)
	}
	if err != nil {
		return nil, fmt.Errorf("accessing definitions directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", dir)
	}

	ctx := cuecontext.New()
	cfg := &load.Config{Dir: dir}
	instances := load.Instances([]string{"."}, cfg)
	if len(instances) == 0 {
		return nil, fmt.Errorf("no CUE instances in %s", dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, fmt.Errorf("loading CUE definitions: %w", inst.Err)
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("building CUE definitions: %w", err)
	}

	return decodePacks(value)
}

// LoadRepository is the common construction path: load a definitions
// directory and build a validated repository from it.
func LoadRepository(dir string) (*Repository, error) {
	packs, err := LoadDir(dir)
	if err != nil {
		return nil, err
	}
	return NewRepository(packs)
}

func decodePacks(value cue.Value) ([]*Pack, error) {
	packsVal := value.LookupPath(cue.ParsePath("packs"))
	if !packsVal.Exists() {
		return nil, fmt.Errorf("definitions document has no \"packs\" list")
	}

	iter, err := packsVal.List()
	if err != nil {
		return nil, fmt.Errorf("\"packs\" is not a list: %w", err)
	}

	var packs []*Pack
	for i := 0; iter.Next(); i++ {
		p, err := decodePack(iter.Value())
		if err != nil {
			return nil, fmt.Errorf("packs[%d]: %w", i, err)
		}
		packs = append(packs, p)
	}
	return packs, nil
}

func decodePack(v cue.Value) (*Pack, error) {
	p := &Pack{}
	var err error

	if p.ID, err = requireString(v, "id"); err != nil {
		return nil, err
	}
	if p.Version, err = requireString(v, "version"); err != nil {
		return nil, err
	}
	if p.Product, err = requireString(v, "product"); err != nil {
		return nil, err
	}

	semantics, err := requireString(v, "semantics")
	if err != nil {
		return nil, err
	}
	p.Semantics = Semantics(semantics)

	if p.EffectiveFrom, err = requireDate(v, "effective_from"); err != nil {
		return nil, err
	}
	if to, ok, err := optionalDate(v, "effective_to"); err != nil {
		return nil, err
	} else if ok {
		p.EffectiveTo = &to
	}

	if p.SourceURL, err = requireString(v, "source_url"); err != nil {
		return nil, err
	}
	if p.SourceDigest, _, err = optionalString(v, "source_digest"); err != nil {
		return nil, err
	}

	if err := decodeBrackets(v, p); err != nil {
		return nil, err
	}
	if err := decodeRates(v, p); err != nil {
		return nil, err
	}

	if rate, ok, err := optionalDecimal(v, "allowance_rate"); err != nil {
		return nil, err
	} else if ok {
		p.AllowanceRate = rate
	}

	return p, nil
}

func decodeBrackets(v cue.Value, p *Pack) error {
	bracketsVal := v.LookupPath(cue.ParsePath("brackets"))
	if !bracketsVal.Exists() {
		return nil
	}
	iter, err := bracketsVal.List()
	if err != nil {
		return fmt.Errorf("brackets: %w", err)
	}
	for i := 0; iter.Next(); i++ {
		bv := iter.Value()
		var b Bracket

		if b.Lower, err = requireDecimal(bv, "lower_bound"); err != nil {
			return fmt.Errorf("brackets[%d]: %w", i, err)
		}
		if upper, ok, uerr := optionalDecimal(bv, "upper_bound"); uerr != nil {
			return fmt.Errorf("brackets[%d]: %w", i, uerr)
		} else if ok {
			b.Upper = &upper
		}
		if b.BaseAmount, err = requireDecimal(bv, "base_amount"); err != nil {
			return fmt.Errorf("brackets[%d]: %w", i, err)
		}
		if b.MarginalRate, err = requireDecimal(bv, "marginal_rate"); err != nil {
			return fmt.Errorf("brackets[%d]: %w", i, err)
		}

		p.Brackets = append(p.Brackets, b)
	}
	return nil
}

func decodeRates(v cue.Value, p *Pack) error {
	ratesVal := v.LookupPath(cue.ParsePath("rates"))
	if !ratesVal.Exists() {
		return nil
	}
	iter, err := ratesVal.Fields()
	if err != nil {
		return fmt.Errorf("rates: %w", err)
	}
	p.Rates = make(map[string]decimal.Decimal)
	for iter.Next() {
		category := iter.Label()
		raw, err := iter.Value().String()
		if err != nil {
			return fmt.Errorf("rates.%s: %w", category, err)
		}
		rate, err := decimal.NewFromString(raw)
		if err != nil {
			return fmt.Errorf("rates.%s: %w", category, err)
		}
		p.Rates[category] = rate
	}
	return nil
}

func requireString(v cue.Value, path string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(path))
	if !fv.Exists() {
		return "", fmt.Errorf("%s is required", path)
	}
	s, err := fv.String()
	if err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

func optionalString(v cue.Value, path string) (string, bool, error) {
	fv := v.LookupPath(cue.ParsePath(path))
	if !fv.Exists() {
		return "", false, nil
	}
	s, err := fv.String()
	if err != nil {
		return "", false, fmt.Errorf("%s: %w", path, err)
	}
	return s, true, nil
}

func requireDate(v cue.Value, path string) (time.Time, error) {
	s, err := requireString(v, path)
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

func optionalDate(v cue.Value, path string) (time.Time, bool, error) {
	s, ok, err := optionalString(v, path)
	if err != nil || !ok {
		return time.Time{}, false, err
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%s: %w", path, err)
	}
	return t, true, nil
}

func requireDecimal(v cue.Value, path string) (decimal.Decimal, error) {
	s, err := requireString(v, path)
	if err != nil {
		return decimal.Decimal{}, err
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}

func optionalDecimal(v cue.Value, path string) (decimal.Decimal, bool, error) {
	s, ok, err := optionalString(v, path)
	if err != nil || !ok {
		return decimal.Decimal{}, false, err
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false, fmt.Errorf("%s: %w", path, err)
	}
	return d, true, nil
}
