// Package payments provides a sandbox gateway for local runs.
package payments

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/floroz/bazaar/internal/domain/checkout"
)

var (
	ErrDeclined        = errors.New("payment declined")
	ErrUnknownPayment  = errors.New("unknown payment")
	ErrAlreadyRefunded = errors.New("payment already refunded")
)

// SandboxGateway approves every charge with a positive amount and keeps a
// ledger of charges and refunds in memory.
type SandboxGateway struct {
	mu      sync.Mutex
	charges map[string]checkout.Charge
	refunds map[string]bool
}

func NewSandboxGateway() *SandboxGateway {
	return &SandboxGateway{
		charges: make(map[string]checkout.Charge),
		refunds: make(map[string]bool),
	}
}

func (g *SandboxGateway) Charge(ctx context.Context, charge checkout.Charge) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if charge.Amount < 0 {
		return "", fmt.Errorf("%w: negative amount %d", ErrDeclined, charge.Amount)
	}
	id := "sbx_" + uuid.NewString()
	g.mu.Lock()
	defer g.mu.Unlock()
	g.charges[id] = charge
	return id, nil
}

func (g *SandboxGateway) Refund(_ context.Context, paymentID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.charges[paymentID]; !ok {
		return ErrUnknownPayment
	}
	if g.refunds[paymentID] {
		return ErrAlreadyRefunded
	}
	g.refunds[paymentID] = true
	return nil
}

// Captured returns the sum of charges that were not refunded
func (g *SandboxGateway) Captured() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	var total int64
	for id, c := range g.charges {
		if !g.refunds[id] {
			total += c.Amount
		}
	}
	return total
}
