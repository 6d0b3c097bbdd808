// Package shops holds the shop aggregate: stock, discount rules, item
// categories, reviews and the open/closed flag.
package shops

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/floroz/bazaar/internal/domain/discount"
	"github.com/floroz/bazaar/internal/domain/goods"
	"github.com/floroz/bazaar/internal/domain/reservation"
	"github.com/floroz/bazaar/internal/domain/stock"
	"github.com/floroz/bazaar/pkg/errs"
)

// Shop errors
var (
	ErrShopNotFound  = fmt.Errorf("shop %w", errs.ErrNotFound)
	ErrShopClosed    = fmt.Errorf("%w: shop is closed", errs.ErrFailedPrecondition)
	ErrInvalidName   = fmt.Errorf("%w: shop name is required", errs.ErrInvalidArgument)
	ErrInvalidOwner  = fmt.Errorf("%w: shop owner is required", errs.ErrInvalidArgument)
	ErrInvalidRating = fmt.Errorf("%w: rating must be between 1 and 5", errs.ErrInvalidArgument)
)

// Shop owns one stock table and one discount rule set
type Shop struct {
	ID        uuid.UUID
	Name      string
	OwnerID   uuid.UUID
	CreatedAt time.Time

	closed      atomic.Bool
	stock       *stock.Stock
	discounts   *discount.Set
	coordinator *reservation.Coordinator

	catMu      sync.RWMutex
	categories goods.Categories

	reviewMu sync.Mutex
	reviews  []Review
}

// New creates an open shop with empty stock
func New(id uuid.UUID, name string, ownerID uuid.UUID, createdAt time.Time) (*Shop, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrInvalidName
	}
	if ownerID == uuid.Nil {
		return nil, ErrInvalidOwner
	}
	return assemble(id, name, ownerID, createdAt, stock.New(), discount.NewSet()), nil
}

func assemble(id uuid.UUID, name string, ownerID uuid.UUID, createdAt time.Time, st *stock.Stock, ds *discount.Set) *Shop {
	s := &Shop{
		ID:         id,
		Name:       name,
		OwnerID:    ownerID,
		CreatedAt:  createdAt,
		stock:      st,
		discounts:  ds,
		categories: make(goods.Categories),
	}
	s.coordinator = reservation.NewCoordinator(id, st, ds, s)
	return s
}

func (s *Shop) ensureOpen() error {
	if s.closed.Load() {
		return ErrShopClosed
	}
	return nil
}

// AddItem adds qty units of itemID at price, recording its category
func (s *Shop) AddItem(itemID uuid.UUID, qty int, price int64, category goods.Category) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	if qty <= 0 {
		return stock.ErrInvalidQuantity
	}
	if price < 0 {
		return stock.ErrInvalidPrice
	}
	// category first so the new units are never priced without it
	if category != "" {
		s.setCategory(itemID, category)
	}
	return s.stock.AddItem(itemID, qty, price)
}

// AddStock adds qty units of an item
func (s *Shop) AddStock(itemID uuid.UUID, qty int) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	return s.stock.AddStock(itemID, qty)
}

// SetPrice changes the unit price of an existing item
func (s *Shop) SetPrice(itemID uuid.UUID, price int64) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	return s.stock.SetPrice(itemID, price)
}

// SetCategory assigns itemID to category
func (s *Shop) SetCategory(itemID uuid.UUID, category goods.Category) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	if _, ok := s.stock.Quantity(itemID); !ok {
		return stock.ErrItemNotFound
	}
	s.setCategory(itemID, category)
	return nil
}

func (s *Shop) setCategory(itemID uuid.UUID, category goods.Category) {
	s.catMu.Lock()
	defer s.catMu.Unlock()
	s.categories[itemID] = category
}

// RemoveItem deletes an item with its price and category
func (s *Shop) RemoveItem(itemID uuid.UUID) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	if err := s.stock.RemoveItem(itemID); err != nil {
		return err
	}
	s.catMu.Lock()
	delete(s.categories, itemID)
	s.catMu.Unlock()
	return nil
}

func (s *Shop) Quantity(itemID uuid.UUID) (int, bool) { return s.stock.Quantity(itemID) }

func (s *Shop) Price(itemID uuid.UUID) (int64, bool) { return s.stock.Price(itemID) }

// Categories returns the category of each known item in itemIDs
func (s *Shop) Categories(itemIDs []uuid.UUID) goods.Categories {
	s.catMu.RLock()
	defer s.catMu.RUnlock()
	out := make(goods.Categories, len(itemIDs))
	for _, id := range itemIDs {
		if cat, ok := s.categories[id]; ok {
			out[id] = cat
		}
	}
	return out
}

// SetDiscount installs d, replacing any discount with the same scope
func (s *Shop) SetDiscount(d discount.Discount) (replaced bool, err error) {
	if err := s.ensureOpen(); err != nil {
		return false, err
	}
	return s.discounts.Put(d), nil
}

// RemoveDiscount deletes the discount occupying scope
func (s *Shop) RemoveDiscount(scope discount.Scope) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	return s.discounts.Remove(scope)
}

// Discounts lists the rules in application order
func (s *Shop) Discounts() []discount.Discount {
	return s.discounts.List()
}

// Quote prices basket at current stock prices without reserving anything
func (s *Shop) Quote(basket goods.Basket) (discount.Quote, error) {
	if err := basket.Validate(); err != nil {
		return discount.Quote{}, err
	}
	ids := basket.ItemIDs()
	prices, err := s.stock.Prices(ids)
	if err != nil {
		return discount.Quote{}, err
	}
	return s.discounts.Price(basket, prices, s.Categories(ids))
}

// Reserve deducts basket from stock and prices it. Closed shops refuse new reservations.
func (s *Shop) Reserve(basket goods.Basket) (*reservation.Reservation, error) {
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}
	return s.coordinator.Reserve(basket)
}

// Commit finalizes a reservation taken from this shop
func (s *Shop) Commit(r *reservation.Reservation) error {
	return s.coordinator.Commit(r)
}

// Rollback returns a reservation's stock; allowed after the shop closed
func (s *Shop) Rollback(r *reservation.Reservation) error {
	return s.coordinator.Rollback(r)
}

// ReturnStock puts items back whose reservation object no longer exists,
// such as goods held by an auction restored from storage. Like Rollback it
// is allowed after the shop closed.
func (s *Shop) ReturnStock(items goods.Basket) error {
	if err := items.Validate(); err != nil {
		return err
	}
	var errList []error
	for _, itemID := range items.ItemIDs() {
		if err := s.stock.Release(itemID, items[itemID]); err != nil {
			errList = append(errList, err)
		}
	}
	return errors.Join(errList...)
}

// Close makes the shop immutable. It reports false if it was already closed.
func (s *Shop) Close() bool {
	return s.closed.CompareAndSwap(false, true)
}

func (s *Shop) IsClosed() bool {
	return s.closed.Load()
}
