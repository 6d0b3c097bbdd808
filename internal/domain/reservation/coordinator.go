package reservation

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/floroz/bazaar/internal/domain/discount"
	"github.com/floroz/bazaar/internal/domain/goods"
	"github.com/floroz/bazaar/pkg/errs"
)

var (
	ErrAlreadyCommitted   = fmt.Errorf("%w: reservation already committed", errs.ErrFailedPrecondition)
	ErrRolledBack         = fmt.Errorf("%w: reservation was rolled back", errs.ErrFailedPrecondition)
	ErrForeignReservation = fmt.Errorf("%w: reservation belongs to another shop", errs.ErrInvalidArgument)
)

// Inventory is the stock table a coordinator deducts from
type Inventory interface {
	TryReserveSnapshot(itemID uuid.UUID, qty int) (before int, ok bool, err error)
	Release(itemID uuid.UUID, qty int) error
	Prices(itemIDs []uuid.UUID) (goods.Prices, error)
}

// Pricer prices a reserved basket
type Pricer interface {
	Price(basket goods.Basket, prices goods.Prices, categories goods.Categories) (discount.Quote, error)
}

// CategorySource resolves item categories for pricing
type CategorySource interface {
	Categories(itemIDs []uuid.UUID) goods.Categories
}

// Coordinator reserves, commits and rolls back stock for a single shop
type Coordinator struct {
	shopID     uuid.UUID
	inventory  Inventory
	pricer     Pricer
	categories CategorySource
}

// NewCoordinator creates a coordinator for shopID
func NewCoordinator(shopID uuid.UUID, inventory Inventory, pricer Pricer, categories CategorySource) *Coordinator {
	return &Coordinator{
		shopID:     shopID,
		inventory:  inventory,
		pricer:     pricer,
		categories: categories,
	}
}

// Reserve deducts every basket line or nothing. Items are taken one lock at
// a time in item id order; on the first shortfall everything already taken
// is released and an InsufficientStockError naming the item is returned.
func (c *Coordinator) Reserve(basket goods.Basket) (*Reservation, error) {
	if err := basket.Validate(); err != nil {
		return nil, err
	}

	ids := basket.ItemIDs()
	lines := make([]Line, 0, len(ids))
	for _, id := range ids {
		qty := basket[id]
		before, ok, err := c.inventory.TryReserveSnapshot(id, qty)
		if err != nil {
			return nil, errs.Combine(err, c.release(lines))
		}
		if !ok {
			shortfall := &errs.InsufficientStockError{ShopID: c.shopID, ItemID: id}
			return nil, errs.Combine(shortfall, c.release(lines))
		}
		lines = append(lines, Line{ItemID: id, Quantity: qty, Before: before})
	}

	prices, err := c.inventory.Prices(ids)
	if err != nil {
		return nil, errs.Combine(err, c.release(lines))
	}
	quote, err := c.pricer.Price(basket, prices, c.categories.Categories(ids))
	if err != nil {
		return nil, errs.Combine(err, c.release(lines))
	}

	return &Reservation{
		ID:     uuid.New(),
		ShopID: c.shopID,
		Quote:  quote,
		lines:  lines,
		status: StatusPending,
	}, nil
}

// Rollback returns the reserved stock. Rolling back twice is a no-op.
func (c *Coordinator) Rollback(r *Reservation) error {
	if r.ShopID != c.shopID {
		return ErrForeignReservation
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.status {
	case StatusRolledBack:
		return nil
	case StatusCommitted:
		return ErrAlreadyCommitted
	}
	err := c.release(r.lines)
	r.status = StatusRolledBack
	return err
}

// Commit finalizes the reservation; stock was already deducted by Reserve
func (c *Coordinator) Commit(r *Reservation) error {
	if r.ShopID != c.shopID {
		return ErrForeignReservation
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.status {
	case StatusRolledBack:
		return ErrRolledBack
	case StatusPending:
		r.status = StatusCommitted
	}
	return nil
}

// release gives lines back in reverse order
func (c *Coordinator) release(lines []Line) error {
	var errList []error
	for i := len(lines) - 1; i >= 0; i-- {
		if err := c.inventory.Release(lines[i].ItemID, lines[i].Quantity); err != nil {
			errList = append(errList, err)
		}
	}
	return errors.Join(errList...)
}
