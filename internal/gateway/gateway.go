// Package gateway defines the boundary to the external submission
// service that receives compiled liabilities. Transport, auth and
// retry live on the other side of this interface; the core only
// builds a payload and hands it over.
package gateway

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tindale/ruledger/internal/ledger"
)

// Payload is one liability submission. All monetary values are decimal
// strings; the wire format never carries binary floating point.
type Payload struct {
	SubmissionID string            `json:"submissionId"`
	Product      string            `json:"product"`
	Liability    string            `json:"liability"`
	Breakdown    map[string]string `json:"breakdown,omitempty"`
}

// Ack acknowledges a received submission.
type Ack struct {
	SubmissionID string    `json:"submissionId"`
	Reference    string    `json:"reference"`
	ReceivedAt   time.Time `json:"receivedAt"`
}

// Gateway submits compiled liabilities to the external service.
type Gateway interface {
	SubmitLiability(ctx context.Context, p Payload) (Ack, error)
}

// BuildPayload assembles a submission from an obligation snapshot and
// an optional label breakdown. Amounts are rendered with two decimal
// places.
func BuildPayload(snap ledger.Snapshot, breakdown map[string]decimal.Decimal) Payload {
	p := Payload{
		SubmissionID: uuid.Must(uuid.NewV7()).String(),
		Product:      string(snap.Kind),
		Liability:    snap.Total.StringFixed(2),
	}
	if len(breakdown) > 0 {
		p.Breakdown = make(map[string]string, len(breakdown))
		for label, amount := range breakdown {
			p.Breakdown[label] = amount.StringFixed(2)
		}
	}
	return p
}

// Stub is an in-memory Gateway for tests and offline runs. It records
// every accepted submission and can be primed to fail.
type Stub struct {
	mu          sync.Mutex
	submissions []Payload
	failWith    error
	refs        int
}

// NewStub creates an empty stub gateway.
func NewStub() *Stub {
	return &Stub{}
}

// FailWith makes every subsequent SubmitLiability return err. Pass nil
// to restore acceptance.
func (s *Stub) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWith = err
}

// SubmitLiability records the payload and acknowledges it with a
// sequential reference. Honors context cancellation and any primed
// failure; rejected payloads are not recorded.
func (s *Stub) SubmitLiability(ctx context.Context, p Payload) (Ack, error) {
	if err := ctx.Err(); err != nil {
		return Ack{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failWith != nil {
		return Ack{}, s.failWith
	}
	if p.SubmissionID == "" {
		return Ack{}, fmt.Errorf("submission missing id")
	}

	s.submissions = append(s.submissions, p)
	s.refs++
	return Ack{
		SubmissionID: p.SubmissionID,
		Reference:    fmt.Sprintf("STUB-%06d", s.refs),
		ReceivedAt:   time.Now().UTC(),
	}, nil
}

// Submissions returns a copy of the accepted payloads in arrival
// order.
func (s *Stub) Submissions() []Payload {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Payload, len(s.submissions))
	copy(out, s.submissions)
	return out
}

// SubmissionsByProduct groups accepted payloads by product, each group
// in arrival order.
func (s *Stub) SubmissionsByProduct() map[string][]Payload {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string][]Payload)
	for _, p := range s.submissions {
		out[p.Product] = append(out[p.Product], p)
	}
	return out
}

// Products returns the distinct products seen, sorted.
func (s *Stub) Products() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]bool)
	for _, p := range s.submissions {
		seen[p.Product] = true
	}
	products := make([]string, 0, len(seen))
	for product := range seen {
		products = append(products, product)
	}
	sort.Strings(products)
	return products
}
