package discount

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/floroz/bazaar/internal/domain/goods"
	"github.com/floroz/bazaar/pkg/errs"
)

// ErrMissingPrice is returned when a basket item has no stock price
var ErrMissingPrice = fmt.Errorf("%w: basket item has no price", errs.ErrInvalidArgument)

// Quote is the discounted pricing of one basket
type Quote struct {
	UnitPrices goods.Prices
	Total      int64
}

// Price computes the discounted unit price of every basket item.
//
// Stacking discounts are applied first, in slice order, each on the current
// price. Best-of discounts are then evaluated on the post-stacking price and
// every item keeps the lowest result. Policies are always evaluated against
// the original basket and undiscounted prices.
func Price(basket goods.Basket, prices goods.Prices, categories goods.Categories, discounts []Discount) (Quote, error) {
	current := make(goods.Prices, len(basket))
	for id, qty := range basket {
		if qty <= 0 {
			return Quote{}, fmt.Errorf("%w: item %s has quantity %d", goods.ErrInvalidBasket, id, qty)
		}
		price, ok := prices[id]
		if !ok {
			return Quote{}, fmt.Errorf("%w: %s", ErrMissingPrice, id)
		}
		current[id] = price
	}

	for _, d := range discounts {
		if !d.Stacking() || !d.eligible(basket, prices, categories) {
			continue
		}
		for _, id := range d.targets(basket, categories) {
			current[id] = apply(current[id], d.Percentage())
		}
	}

	best := make(map[uuid.UUID]int64)
	for _, d := range discounts {
		if d.Stacking() || !d.eligible(basket, prices, categories) {
			continue
		}
		for _, id := range d.targets(basket, categories) {
			candidate := apply(current[id], d.Percentage())
			if seen, ok := best[id]; !ok || candidate < seen {
				best[id] = candidate
			}
		}
	}
	for id, price := range best {
		if price < current[id] {
			current[id] = price
		}
	}

	var total int64
	for id, qty := range basket {
		total += current[id] * int64(qty)
	}
	return Quote{UnitPrices: current, Total: total}, nil
}
