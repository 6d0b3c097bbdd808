// Package goods holds the value types shared by stock, pricing and checkout.
package goods

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/floroz/bazaar/pkg/errs"
)

// Category groups items for category discounts and policies
type Category string

// Basket maps item id to requested quantity for a single shop
type Basket map[uuid.UUID]int

// Prices maps item id to a unit price in minor currency units
type Prices map[uuid.UUID]int64

// Categories maps item id to its category
type Categories map[uuid.UUID]Category

// ErrInvalidBasket is returned for empty baskets or non-positive quantities
var ErrInvalidBasket = fmt.Errorf("%w: basket must contain positive quantities", errs.ErrInvalidArgument)

// Validate checks that the basket is non-empty and every quantity is positive
func (b Basket) Validate() error {
	if len(b) == 0 {
		return ErrInvalidBasket
	}
	for id, qty := range b {
		if qty <= 0 {
			return fmt.Errorf("%w: item %s has quantity %d", ErrInvalidBasket, id, qty)
		}
	}
	return nil
}

// ItemIDs returns the basket item ids in ascending byte order
func (b Basket) ItemIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(b))
	for id := range b {
		ids = append(ids, id)
	}
	SortIDs(ids)
	return ids
}

// Clone returns an independent copy
func (b Basket) Clone() Basket {
	if b == nil {
		return nil
	}
	out := make(Basket, len(b))
	for id, qty := range b {
		out[id] = qty
	}
	return out
}

// Value returns the undiscounted monetary value of the basket
func (b Basket) Value(prices Prices) int64 {
	var total int64
	for id, qty := range b {
		total += prices[id] * int64(qty)
	}
	return total
}

// CategoryQuantity sums the quantities of every basket item in category
func (b Basket) CategoryQuantity(categories Categories, category Category) int {
	total := 0
	for id, qty := range b {
		if categories[id] == category {
			total += qty
		}
	}
	return total
}

func (p Prices) Clone() Prices {
	if p == nil {
		return nil
	}
	out := make(Prices, len(p))
	for id, price := range p {
		out[id] = price
	}
	return out
}

func (c Categories) Clone() Categories {
	if c == nil {
		return nil
	}
	out := make(Categories, len(c))
	for id, cat := range c {
		out[id] = cat
	}
	return out
}

// SortIDs orders ids in place so iteration over maps keyed by uuid is deterministic
func SortIDs(ids []uuid.UUID) {
	sort.Slice(ids, func(i, j int) bool {
		return bytes.Compare(ids[i][:], ids[j][:]) < 0
	})
}
