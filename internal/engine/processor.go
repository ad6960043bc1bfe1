package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tindale/ruledger/internal/calc"
	"github.com/tindale/ruledger/internal/ledger"
	"github.com/tindale/ruledger/internal/rules"
	"github.com/tindale/ruledger/internal/store"
)

// Event is one incoming business event: a supply to charge GST on or a
// wage payment to withhold from.
type Event struct {
	// Token correlates the event through processing and audit.
	// Submit assigns one when empty.
	Token string

	EntityID string
	Kind     ledger.Kind

	// Amount is the GST-exclusive net amount for GST events and the
	// taxable income for PAYGW events.
	Amount decimal.Decimal

	// Category selects the GST rate. Ignored for PAYGW.
	Category string

	// Allowances reduce PAYGW withholding. Ignored for GST.
	Allowances decimal.Decimal

	// Period is the date the obligation belongs to, used for temporal
	// rule resolution.
	Period time.Time

	// PackSelector is an explicit rule-pack version, or
	// rules.SelectorLatest subject to the backdating guard.
	PackSelector string

	// Context is free-form audit context merged into the obligation.
	Context map[string]string
}

// Outcome reports one fully processed (or failed) event.
type Outcome struct {
	Token    string
	Seq      int64
	Amount   decimal.Decimal
	Snapshot ledger.Snapshot
	Prov     calc.Provenance
	Err      error
}

// ProcessError wraps a per-event failure with the stage it died in.
// Stages follow the event lifecycle: rule-resolved, computed,
// ledgered.
type ProcessError struct {
	Token    string
	EntityID string
	Stage    string
	Err      error
}

// Error implements the error interface.
func (e *ProcessError) Error() string {
	return fmt.Sprintf("event %s (entity %s) failed at %s: %v", e.Token, e.EntityID, e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *ProcessError) Unwrap() error {
	return e.Err
}

// Processor drains events and drives them through resolve -> compute
// -> accumulate. Construct with New; Run from exactly one goroutine.
type Processor struct {
	repo   *rules.Repository
	ldg    *ledger.Ledger
	queue  *eventQueue
	clock  *Clock
	tokens TokenGenerator
	audit  *store.Store
	onDone func(Outcome)
}

// Option configures a Processor.
type Option func(*Processor)

// WithTokenGenerator replaces the UUIDv7 token generator, e.g. with a
// FixedGenerator for deterministic tests.
func WithTokenGenerator(g TokenGenerator) Option {
	return func(p *Processor) { p.tokens = g }
}

// WithAuditStore makes the processor append every computed result to
// the audit store before it reaches the ledger.
func WithAuditStore(s *store.Store) Option {
	return func(p *Processor) { p.audit = s }
}

// WithClock replaces the logical clock, e.g. to resume sequence
// numbering from an existing audit trail.
func WithClock(c *Clock) Option {
	return func(p *Processor) { p.clock = c }
}

// WithOutcomeHook registers a callback invoked after each event, on
// the run-loop goroutine, with the event's outcome - processed or
// failed. Used by the CLI and the conformance harness to collect
// results without polling.
func WithOutcomeHook(fn func(Outcome)) Option {
	return func(p *Processor) { p.onDone = fn }
}

// New creates a Processor over an immutable rule repository and a
// ledger.
func New(repo *rules.Repository, ldg *ledger.Ledger, opts ...Option) *Processor {
	p := &Processor{
		repo:   repo,
		ldg:    ldg,
		queue:  newEventQueue(),
		clock:  NewClock(),
		tokens: UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Submit enqueues an event, assigning a token when the event carries
// none. Safe from any goroutine. Returns the token and false when the
// processor has stopped intake.
func (p *Processor) Submit(ev Event) (string, bool) {
	if ev.Token == "" {
		ev.Token = p.tokens.Generate()
	}
	ok := p.queue.Enqueue(ev)
	return ev.Token, ok
}

// Run starts the single-consumer loop. Blocks until the context is
// cancelled or Stop drains the queue.
//
// Cancellation is checked before every dequeue, so a cancelled context
// halts processing immediately even with a backlog; the in-flight event
// (if any) still completes. Stop is the graceful path: it closes intake
// and lets Run drain what was already accepted.
//
// Per-event failures are reported through the outcome hook and logged,
// then processing continues: an event that cannot resolve its rules
// must not wedge the feed behind it, and it has left no ledger
// mutation to undo.
func (p *Processor) Run(ctx context.Context) error {
	slog.Info("processor starting")

	for {
		if err := ctx.Err(); err != nil {
			slog.Info("processor stopping: context cancelled", "pending", p.queue.Len())
			p.queue.Close()
			return err
		}

		ev, ok := p.queue.TryDequeue()
		if ok {
			outcome := p.process(ctx, ev)
			if outcome.Err != nil {
				slog.Error("event failed",
					"token", ev.Token,
					"entity", ev.EntityID,
					"kind", ev.Kind,
					"err", outcome.Err,
				)
			}
			if p.onDone != nil {
				p.onDone(outcome)
			}
			continue
		}

		select {
		case <-ctx.Done():
			slog.Info("processor stopping: context cancelled")
			p.queue.Close()
			return ctx.Err()

		case <-p.queue.Wait():
			// Signal fires on enqueue and on close. Closed and empty
			// means the drain is complete.
			if p.queue.Closed() && p.queue.Len() == 0 {
				slog.Info("processor stopping: queue drained")
				return nil
			}
		}
	}
}

// Stop closes intake. Run drains the remaining events, then returns.
func (p *Processor) Stop() {
	p.queue.Close()
}

// process drives one event through the lifecycle. All-or-nothing: any
// failure before the final accumulate leaves the ledger untouched.
func (p *Processor) process(ctx context.Context, ev Event) Outcome {
	seq := p.clock.Next()
	out := Outcome{Token: ev.Token, Seq: seq}

	fail := func(stage string, err error) Outcome {
		out.Err = &ProcessError{Token: ev.Token, EntityID: ev.EntityID, Stage: stage, Err: err}
		return out
	}

	pack, err := p.repo.Resolve(ev.PackSelector, ev.Period)
	if err != nil {
		return fail("rule-resolved", err)
	}

	var (
		amount decimal.Decimal
		prov   calc.Provenance
	)
	switch ev.Kind {
	case ledger.KindGST:
		r, err := calc.GST(calc.GSTInput{Category: ev.Category, NetAmount: ev.Amount}, pack)
		if err != nil {
			return fail("computed", err)
		}
		amount, prov = r.GSTAmount, r.Provenance

	case ledger.KindPAYGW:
		r, err := calc.PAYGW(calc.PAYGWInput{TaxableIncome: ev.Amount, Allowances: ev.Allowances}, pack)
		if err != nil {
			return fail("computed", err)
		}
		amount, prov = r.WithheldAmount, r.Provenance

	default:
		return fail("computed", fmt.Errorf("unknown obligation kind %q", ev.Kind))
	}

	if p.audit != nil {
		err := p.audit.AppendResult(ctx, store.ResultRecord{
			ID:         ev.Token,
			EntityID:   ev.EntityID,
			Obligation: ev.Kind,
			Amount:     amount,
			Period:     ev.Period,
			Provenance: prov,
			Seq:        seq,
		})
		if err != nil {
			return fail("ledgered", err)
		}
	}

	meta := map[string]string{
		"rule_pack_version": prov.Version,
		"rule_pack_id":      prov.PackID,
	}
	for k, v := range ev.Context {
		meta[k] = v
	}

	out.Amount = amount
	out.Prov = prov
	out.Snapshot = p.ldg.Accumulate(ev.EntityID, ev.Kind, amount, meta)
	return out
}
