// Package reservation deducts basket stock from one shop and restores it on rollback.
package reservation

import (
	"sync"

	"github.com/google/uuid"

	"github.com/floroz/bazaar/internal/domain/discount"
	"github.com/floroz/bazaar/internal/domain/goods"
)

// Status is the lifecycle state of a reservation
type Status string

const (
	StatusPending    Status = "pending"
	StatusCommitted  Status = "committed"
	StatusRolledBack Status = "rolled_back"
)

// Line is one deducted item
type Line struct {
	ItemID   uuid.UUID
	Quantity int
	// Before is the quantity observed under the item lock just before deduction
	Before int
}

// Reservation is the stock taken by one purchase attempt against one shop
type Reservation struct {
	ID     uuid.UUID
	ShopID uuid.UUID
	Quote  discount.Quote

	lines []Line

	mu     sync.Mutex
	status Status
}

// Status returns the current lifecycle state
func (r *Reservation) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Lines returns the deducted items in reservation order
func (r *Reservation) Lines() []Line {
	out := make([]Line, len(r.lines))
	copy(out, r.lines)
	return out
}

// Basket returns the reserved quantities
func (r *Reservation) Basket() goods.Basket {
	b := make(goods.Basket, len(r.lines))
	for _, l := range r.lines {
		b[l.ItemID] = l.Quantity
	}
	return b
}

// Total is the discounted price of the reserved basket
func (r *Reservation) Total() int64 {
	return r.Quote.Total
}
