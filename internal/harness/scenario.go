package harness

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/tindale/ruledger/internal/engine"
	"github.com/tindale/ruledger/internal/ledger"
	"github.com/tindale/ruledger/internal/rules"
)

// Scenario defines one conformance scenario.
type Scenario struct {
	// Name uniquely identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what the scenario exercises.
	Description string `yaml:"description"`

	// Packs is the rule pack definitions directory, relative to the
	// scenario file.
	Packs string `yaml:"packs"`

	// Mapping is an optional BAS label mapping path, relative to the
	// scenario file. When set, each entity's obligations are compiled
	// into labels for the snapshot.
	Mapping string `yaml:"mapping,omitempty"`

	// Events is the business event feed, processed in order.
	Events []ScenarioEvent `yaml:"events"`

	// Balances are externally reported balances to reconcile against.
	Balances []ScenarioBalance `yaml:"balances,omitempty"`

	// Expect holds inline expectations checked by Verify, alongside
	// the golden snapshot.
	Expect *Expectation `yaml:"expect,omitempty"`

	// dir is the scenario file's directory, for resolving Packs and
	// Mapping.
	dir string
}

// Expectation is an optional inline assertion block. Only declared
// fields are checked; the golden file remains the full record.
type Expectation struct {
	// Discrepancies is the expected reconciliation finding count.
	Discrepancies *int `yaml:"discrepancies,omitempty"`

	// Failed is the expected failed event count.
	Failed *int `yaml:"failed,omitempty"`

	// Totals are expected obligation totals, two-place strings.
	Totals []ExpectedTotal `yaml:"totals,omitempty"`

	// Labels are expected whole-dollar label values per entity.
	// Subset match: only listed labels are checked.
	Labels map[string]map[string]string `yaml:"labels,omitempty"`
}

// ExpectedTotal is one expected obligation total.
type ExpectedTotal struct {
	EntityID string `yaml:"entity_id"`
	Kind     string `yaml:"kind"`
	Total    string `yaml:"total"`
}

// ScenarioEvent is one event in scenario YAML. Monetary values are
// decimal strings.
type ScenarioEvent struct {
	Token      string            `yaml:"token,omitempty"`
	EntityID   string            `yaml:"entity_id"`
	Kind       string            `yaml:"kind"`
	Amount     string            `yaml:"amount"`
	Category   string            `yaml:"category,omitempty"`
	Allowances string            `yaml:"allowances,omitempty"`
	Period     string            `yaml:"period"`
	Pack       string            `yaml:"pack,omitempty"`
	Context    map[string]string `yaml:"context,omitempty"`
}

// ScenarioBalance is one reported balance in scenario YAML.
type ScenarioBalance struct {
	EntityID  string `yaml:"entity_id"`
	Kind      string `yaml:"kind"`
	Balance   string `yaml:"balance"`
	Reference string `yaml:"reference,omitempty"`
}

// LoadScenario reads and validates a scenario from a YAML file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}

	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing scenario %s: %w", path, err)
	}
	s.dir = filepath.Dir(path)

	if s.Name == "" {
		return nil, fmt.Errorf("scenario %s: missing name", path)
	}
	if s.Packs == "" {
		return nil, fmt.Errorf("scenario %s: missing packs directory", path)
	}
	if len(s.Events) == 0 {
		return nil, fmt.Errorf("scenario %s: no events", path)
	}
	return &s, nil
}

// packsDir resolves the pack directory against the scenario location.
func (s *Scenario) packsDir() string {
	return filepath.Join(s.dir, s.Packs)
}

// mappingPath resolves the mapping path, empty when unset.
func (s *Scenario) mappingPath() string {
	if s.Mapping == "" {
		return ""
	}
	return filepath.Join(s.dir, s.Mapping)
}

// engineEvents converts the scenario events, assigning deterministic
// tokens (ev-1, ev-2, ...) where none is declared.
func (s *Scenario) engineEvents() ([]engine.Event, error) {
	events := make([]engine.Event, 0, len(s.Events))
	for i, e := range s.Events {
		kind, err := ledger.ParseKind(e.Kind)
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
		amount, err := decimal.NewFromString(e.Amount)
		if err != nil {
			return nil, fmt.Errorf("event %d: bad amount %q: %w", i, e.Amount, err)
		}
		allowances := decimal.Zero
		if e.Allowances != "" {
			allowances, err = decimal.NewFromString(e.Allowances)
			if err != nil {
				return nil, fmt.Errorf("event %d: bad allowances %q: %w", i, e.Allowances, err)
			}
		}
		period, err := time.Parse("2006-01-02", e.Period)
		if err != nil {
			return nil, fmt.Errorf("event %d: bad period %q: %w", i, e.Period, err)
		}

		token := e.Token
		if token == "" {
			token = fmt.Sprintf("ev-%d", i+1)
		}
		selector := e.Pack
		if selector == "" {
			selector = rules.SelectorLatest
		}

		events = append(events, engine.Event{
			Token:        token,
			EntityID:     e.EntityID,
			Kind:         kind,
			Amount:       amount,
			Category:     e.Category,
			Allowances:   allowances,
			Period:       period,
			PackSelector: selector,
			Context:      e.Context,
		})
	}
	return events, nil
}

// reportedBalances converts the scenario balances.
func (s *Scenario) reportedBalances() ([]ledger.ReportedBalance, error) {
	balances := make([]ledger.ReportedBalance, 0, len(s.Balances))
	for i, b := range s.Balances {
		kind, err := ledger.ParseKind(b.Kind)
		if err != nil {
			return nil, fmt.Errorf("balance %d: %w", i, err)
		}
		amount, err := decimal.NewFromString(b.Balance)
		if err != nil {
			return nil, fmt.Errorf("balance %d: bad balance %q: %w", i, b.Balance, err)
		}
		balances = append(balances, ledger.ReportedBalance{
			EntityID:  b.EntityID,
			Kind:      kind,
			Balance:   amount,
			Reference: b.Reference,
		})
	}
	return balances, nil
}
