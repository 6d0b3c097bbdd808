// Package stock keeps per-item quantity and price for one shop.
//
// Every item has its own lock. The item table lock is only held while looking
// up or inserting an entry, so operations on different items never wait for
// each other.
package stock

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/floroz/bazaar/internal/domain/goods"
	"github.com/floroz/bazaar/pkg/errs"
)

var (
	ErrInvalidQuantity = fmt.Errorf("%w: quantity must be greater than 0", errs.ErrInvalidArgument)
	ErrInvalidPrice    = fmt.Errorf("%w: price must not be negative", errs.ErrInvalidArgument)
	ErrItemNotFound    = fmt.Errorf("item %w", errs.ErrNotFound)
)

// Entry is a point-in-time copy of one item's state
type Entry struct {
	ItemID   uuid.UUID
	Quantity int
	Price    int64
}

type entry struct {
	mu       sync.Mutex
	quantity int
	price    int64
	removed  bool
}

// Stock is the item table of a single shop
type Stock struct {
	mu    sync.RWMutex
	items map[uuid.UUID]*entry
}

// New creates an empty stock table
func New() *Stock {
	return &Stock{items: make(map[uuid.UUID]*entry)}
}

func (s *Stock) lookup(itemID uuid.UUID) *entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.items[itemID]
}

func (s *Stock) lookupOrCreate(itemID uuid.UUID) *entry {
	if e := s.lookup(itemID); e != nil {
		return e
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.items[itemID]; ok {
		return e
	}
	e := &entry{}
	s.items[itemID] = e
	return e
}

// AddStock increments the quantity of itemID, creating the entry if absent
func (s *Stock) AddStock(itemID uuid.UUID, qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	for {
		e := s.lookupOrCreate(itemID)
		e.mu.Lock()
		if e.removed {
			// lost a race with RemoveItem; the next lookup creates a fresh entry
			e.mu.Unlock()
			continue
		}
		e.quantity += qty
		e.mu.Unlock()
		return nil
	}
}

// AddItem adds qty units of itemID at price. A new entry is published with
// its quantity and price already set; an existing one is updated under its
// item lock.
func (s *Stock) AddItem(itemID uuid.UUID, qty int, price int64) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	if price < 0 {
		return ErrInvalidPrice
	}
	for {
		e := s.lookup(itemID)
		if e == nil {
			s.mu.Lock()
			if _, ok := s.items[itemID]; !ok {
				s.items[itemID] = &entry{quantity: qty, price: price}
				s.mu.Unlock()
				return nil
			}
			s.mu.Unlock()
			continue
		}
		e.mu.Lock()
		if e.removed {
			e.mu.Unlock()
			continue
		}
		e.price = price
		e.quantity += qty
		e.mu.Unlock()
		return nil
	}
}

// SetPrice sets the unit price of an existing item
func (s *Stock) SetPrice(itemID uuid.UUID, price int64) error {
	if price < 0 {
		return ErrInvalidPrice
	}
	e := s.lookup(itemID)
	if e == nil {
		return fmt.Errorf("%w: %w", errs.ErrInvalidArgument, ErrItemNotFound)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return fmt.Errorf("%w: %w", errs.ErrInvalidArgument, ErrItemNotFound)
	}
	e.price = price
	return nil
}

// TryReserve deducts qty when at least qty units are available.
// It returns false and leaves the item untouched otherwise.
func (s *Stock) TryReserve(itemID uuid.UUID, qty int) (bool, error) {
	_, ok, err := s.TryReserveSnapshot(itemID, qty)
	return ok, err
}

// TryReserveSnapshot behaves like TryReserve and also returns the quantity
// observed under the item lock before the deduction.
func (s *Stock) TryReserveSnapshot(itemID uuid.UUID, qty int) (before int, ok bool, err error) {
	if qty <= 0 {
		return 0, false, ErrInvalidQuantity
	}
	e := s.lookup(itemID)
	if e == nil {
		return 0, false, nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed || e.quantity < qty {
		return e.quantity, false, nil
	}
	before = e.quantity
	e.quantity -= qty
	return before, true, nil
}

// Release returns qty units to itemID. Units released for an item that was
// removed in the meantime are dropped together with the item.
func (s *Stock) Release(itemID uuid.UUID, qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	e := s.lookup(itemID)
	if e == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.removed {
		e.quantity += qty
	}
	return nil
}

// RemoveItem deletes the quantity and price of itemID
func (s *Stock) RemoveItem(itemID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.items[itemID]
	if !ok {
		return ErrItemNotFound
	}
	e.mu.Lock()
	e.removed = true
	e.mu.Unlock()
	delete(s.items, itemID)
	return nil
}

// Quantity returns the available units of itemID
func (s *Stock) Quantity(itemID uuid.UUID) (int, bool) {
	e := s.lookup(itemID)
	if e == nil {
		return 0, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return 0, false
	}
	return e.quantity, true
}

// Price returns the unit price of itemID
func (s *Stock) Price(itemID uuid.UUID) (int64, bool) {
	e := s.lookup(itemID)
	if e == nil {
		return 0, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return 0, false
	}
	return e.price, true
}

// Prices returns the unit prices of the given items, failing on the first unknown item
func (s *Stock) Prices(itemIDs []uuid.UUID) (goods.Prices, error) {
	prices := make(goods.Prices, len(itemIDs))
	for _, id := range itemIDs {
		price, ok := s.Price(id)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrItemNotFound, id)
		}
		prices[id] = price
	}
	return prices, nil
}

// Snapshot copies every entry, ordered by item id
func (s *Stock) Snapshot() []Entry {
	s.mu.RLock()
	ids := make([]uuid.UUID, 0, len(s.items))
	for id := range s.items {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	goods.SortIDs(ids)

	out := make([]Entry, 0, len(ids))
	for _, id := range ids {
		qty, ok := s.Quantity(id)
		if !ok {
			continue
		}
		price, _ := s.Price(id)
		out = append(out, Entry{ItemID: id, Quantity: qty, Price: price})
	}
	return out
}

// Load builds a stock table from persisted entries
func Load(entries []Entry) (*Stock, error) {
	s := New()
	for _, en := range entries {
		if en.Quantity < 0 {
			return nil, fmt.Errorf("%w: item %s", ErrInvalidQuantity, en.ItemID)
		}
		if en.Price < 0 {
			return nil, fmt.Errorf("%w: item %s", ErrInvalidPrice, en.ItemID)
		}
		s.items[en.ItemID] = &entry{quantity: en.Quantity, price: en.Price}
	}
	return s, nil
}
