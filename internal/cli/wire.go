package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/tindale/ruledger/internal/engine"
	"github.com/tindale/ruledger/internal/ledger"
	"github.com/tindale/ruledger/internal/rules"
)

// eventDoc is the YAML shape of an event file. Monetary values are
// decimal strings.
type eventDoc struct {
	Events []eventEntry `yaml:"events"`
}

type eventEntry struct {
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

// balanceDoc is the YAML shape of a reported balances file.
type balanceDoc struct {
	Balances []balanceEntry `yaml:"balances"`
}

type balanceEntry struct {
	EntityID  string `yaml:"entity_id"`
	Kind      string `yaml:"kind"`
	Balance   string `yaml:"balance"`
	Reference string `yaml:"reference,omitempty"`
}

// loadEvents parses a YAML event file into processor events. The pack
// selector defaults to "latest" when omitted.
func loadEvents(path string) ([]engine.Event, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading event file: %w", err)
	}

	var doc eventDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing event file %s: %w", path, err)
	}
	if len(doc.Events) == 0 {
		return nil, fmt.Errorf("event file %s declares no events", path)
	}

	events := make([]engine.Event, 0, len(doc.Events))
	for i, e := range doc.Events {
		ev, err := e.toEvent()
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
		events = append(events, ev)
	}
	return events, nil
}

func (e eventEntry) toEvent() (engine.Event, error) {
	if e.EntityID == "" {
		return engine.Event{}, fmt.Errorf("missing entity_id")
	}

	kind, err := ledger.ParseKind(e.Kind)
	if err != nil {
		return engine.Event{}, err
	}

	amount, err := decimal.NewFromString(e.Amount)
	if err != nil {
		return engine.Event{}, fmt.Errorf("bad amount %q: %w", e.Amount, err)
	}

	allowances := decimal.Zero
	if e.Allowances != "" {
		allowances, err = decimal.NewFromString(e.Allowances)
		if err != nil {
			return engine.Event{}, fmt.Errorf("bad allowances %q: %w", e.Allowances, err)
		}
	}

	period, err := time.Parse("2006-01-02", e.Period)
	if err != nil {
		return engine.Event{}, fmt.Errorf("bad period %q (want YYYY-MM-DD): %w", e.Period, err)
	}

	selector := e.Pack
	if selector == "" {
		selector = rules.SelectorLatest
	}

	return engine.Event{
		Token:        e.Token,
		EntityID:     e.EntityID,
		Kind:         kind,
		Amount:       amount,
		Category:     e.Category,
		Allowances:   allowances,
		Period:       period,
		PackSelector: selector,
		Context:      e.Context,
	}, nil
}

// loadBalances parses a YAML reported balances file.
func loadBalances(path string) ([]ledger.ReportedBalance, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading balances file: %w", err)
	}

	var doc balanceDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing balances file %s: %w", path, err)
	}

	balances := make([]ledger.ReportedBalance, 0, len(doc.Balances))
	for i, b := range doc.Balances {
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
