package discount

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/floroz/bazaar/internal/domain/goods"
	"github.com/floroz/bazaar/internal/domain/policy"
	"github.com/floroz/bazaar/pkg/errs"
)

func mustDiscount(t *testing.T, d Discount, err error) Discount {
	t.Helper()
	require.NoError(t, err)
	return d
}

func TestNew_Validation(t *testing.T) {
	itemID := uuid.New()

	tests := []struct {
		name    string
		spec    Spec
		wantErr error
	}{
		{name: "zero percent is allowed", spec: Spec{Kind: KindGlobal, Percentage: 0}},
		{name: "hundred percent is allowed", spec: Spec{Kind: KindGlobal, Percentage: 100}},
		{name: "negative percent", spec: Spec{Kind: KindGlobal, Percentage: -1}, wantErr: ErrInvalidPercentage},
		{name: "percent above hundred", spec: Spec{Kind: KindItem, ItemID: itemID, Percentage: 101}, wantErr: ErrInvalidPercentage},
		{name: "unknown kind", spec: Spec{Kind: "coupon", Percentage: 5}, wantErr: ErrInvalidKind},
		{name: "item discount without item", spec: Spec{Kind: KindItem, Percentage: 5}, wantErr: ErrMissingTarget},
		{name: "category discount without category", spec: Spec{Kind: KindCategory, Percentage: 5}, wantErr: ErrMissingTarget},
		{name: "empty bundle", spec: Spec{Kind: KindBundle, Percentage: 5}, wantErr: ErrEmptyBundle},
		{name: "bundle with zero quantity", spec: Spec{Kind: KindBundle, Percentage: 5, Bundle: goods.Basket{itemID: 0}}, wantErr: errs.ErrInvalidArgument},
		{name: "invalid policy", spec: Spec{Kind: KindGlobal, Percentage: 5, Policy: policy.MinBasketValue(-3)}, wantErr: policy.ErrInvalidThreshold},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.spec)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.ErrorIs(t, err, errs.ErrInvalidArgument)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestNew_CopiesMutableInputs(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	bundle := goods.Basket{a: 1, b: 1}
	p := policy.MinBasketValue(10)

	d, err := ForBundle(bundle, 10, false, p)
	require.NoError(t, err)

	bundle[a] = 50
	p.Threshold = 1000

	spec := d.Spec()
	assert.Equal(t, 1, spec.Bundle[a])
	assert.Equal(t, int64(10), spec.Policy.Threshold)
}

func TestPrice(t *testing.T) {
	item1, item2, item3 := uuid.New(), uuid.New(), uuid.New()
	prices := goods.Prices{item1: 100, item2: 50, item3: 33}
	categories := goods.Categories{item1: "electronics", item2: "electronics", item3: "books"}

	tests := []struct {
		name       string
		basket     goods.Basket
		discounts  func(t *testing.T) []Discount
		wantPrices goods.Prices
		wantTotal  int64
	}{
		{
			name:   "no discounts keeps stock prices",
			basket: goods.Basket{item1: 2, item3: 1},
			discounts: func(t *testing.T) []Discount {
				return nil
			},
			wantPrices: goods.Prices{item1: 100, item3: 33},
			wantTotal:  233,
		},
		{
			name:   "bundle inactive when a required item is missing",
			basket: goods.Basket{item1: 2},
			discounts: func(t *testing.T) []Discount {
				return []Discount{mustDiscount(t, ForBundle(goods.Basket{item1: 2, item2: 1}, 20, false, nil))}
			},
			wantPrices: goods.Prices{item1: 100},
			wantTotal:  200,
		},
		{
			name:   "bundle inactive when a required quantity is short",
			basket: goods.Basket{item1: 1, item2: 1},
			discounts: func(t *testing.T) []Discount {
				return []Discount{mustDiscount(t, ForBundle(goods.Basket{item1: 2, item2: 1}, 20, false, nil))}
			},
			wantPrices: goods.Prices{item1: 100, item2: 50},
			wantTotal:  150,
		},
		{
			name:   "bundle active discounts only the required items",
			basket: goods.Basket{item1: 2, item2: 1, item3: 1},
			discounts: func(t *testing.T) []Discount {
				return []Discount{mustDiscount(t, ForBundle(goods.Basket{item1: 2, item2: 1}, 20, false, nil))}
			},
			wantPrices: goods.Prices{item1: 80, item2: 40, item3: 33},
			wantTotal:  80*2 + 40 + 33,
		},
		{
			name:   "best-of keeps the minimum",
			basket: goods.Basket{item1: 1},
			discounts: func(t *testing.T) []Discount {
				return []Discount{
					mustDiscount(t, Global(10, false, nil)),
					mustDiscount(t, ForItem(item1, 30, false, nil)),
				}
			},
			wantPrices: goods.Prices{item1: 70},
			wantTotal:  70,
		},
		{
			name:   "stacking discounts compound",
			basket: goods.Basket{item1: 1},
			discounts: func(t *testing.T) []Discount {
				return []Discount{
					mustDiscount(t, Global(10, true, nil)),
					mustDiscount(t, ForItem(item1, 10, true, nil)),
				}
			},
			wantPrices: goods.Prices{item1: 81},
			wantTotal:  81,
		},
		{
			name:   "best-of applies on top of stacking",
			basket: goods.Basket{item1: 1, item2: 1},
			discounts: func(t *testing.T) []Discount {
				return []Discount{
					mustDiscount(t, ForCategory("electronics", 50, false, nil)),
					mustDiscount(t, ForItem(item1, 20, true, nil)),
				}
			},
			wantPrices: goods.Prices{item1: 40, item2: 25},
			wantTotal:  65,
		},
		{
			name:   "percentage truncates toward zero",
			basket: goods.Basket{item3: 3},
			discounts: func(t *testing.T) []Discount {
				return []Discount{mustDiscount(t, ForCategory("books", 15, false, nil))}
			},
			wantPrices: goods.Prices{item3: 28},
			wantTotal:  84,
		},
		{
			name:   "policy false disables the discount",
			basket: goods.Basket{item1: 1},
			discounts: func(t *testing.T) []Discount {
				return []Discount{mustDiscount(t, Global(50, false, policy.MinItemQuantity(item1, 2)))}
			},
			wantPrices: goods.Prices{item1: 100},
			wantTotal:  100,
		},
		{
			name:   "policy sees the undiscounted basket value",
			basket: goods.Basket{item1: 1, item2: 1},
			discounts: func(t *testing.T) []Discount {
				return []Discount{
					mustDiscount(t, Global(50, true, nil)),
					mustDiscount(t, ForItem(item2, 10, false, policy.MinBasketValue(150))),
				}
			},
			wantPrices: goods.Prices{item1: 50, item2: 22},
			wantTotal:  72,
		},
		{
			name:   "hundred percent makes the item free",
			basket: goods.Basket{item2: 4},
			discounts: func(t *testing.T) []Discount {
				return []Discount{mustDiscount(t, ForItem(item2, 100, false, nil))}
			},
			wantPrices: goods.Prices{item2: 0},
			wantTotal:  0,
		},
		{
			name:   "item discount for an item outside the basket does nothing",
			basket: goods.Basket{item3: 1},
			discounts: func(t *testing.T) []Discount {
				return []Discount{mustDiscount(t, ForItem(item1, 40, true, nil))}
			},
			wantPrices: goods.Prices{item3: 33},
			wantTotal:  33,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			quote, err := Price(tt.basket, prices, categories, tt.discounts(t))
			require.NoError(t, err)
			assert.Equal(t, tt.wantPrices, quote.UnitPrices)
			assert.Equal(t, tt.wantTotal, quote.Total)
		})
	}
}

func TestPrice_Errors(t *testing.T) {
	id := uuid.New()

	_, err := Price(goods.Basket{id: 1}, goods.Prices{}, nil, nil)
	assert.ErrorIs(t, err, ErrMissingPrice)

	_, err = Price(goods.Basket{id: -1}, goods.Prices{id: 10}, nil, nil)
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)
}

func TestSet_PutReplacesSameScope(t *testing.T) {
	itemID := uuid.New()
	s := NewSet()

	assert.False(t, s.Put(mustDiscount(t, Global(10, false, nil))))
	assert.False(t, s.Put(mustDiscount(t, ForItem(itemID, 20, false, nil))))
	assert.True(t, s.Put(mustDiscount(t, Global(30, true, nil))))

	rules := s.List()
	require.Len(t, rules, 2)
	assert.Equal(t, KindGlobal, rules[0].Kind())
	assert.Equal(t, 30, rules[0].Percentage())
	assert.True(t, rules[0].Stacking())
	assert.Equal(t, KindItem, rules[1].Kind())
}

func TestSet_BundleScopeIgnoresQuantities(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	s := NewSet()
	s.Put(mustDiscount(t, ForBundle(goods.Basket{a: 1, b: 1}, 10, false, nil)))
	assert.True(t, s.Put(mustDiscount(t, ForBundle(goods.Basket{b: 3, a: 2}, 25, false, nil))))
	assert.Equal(t, 1, s.Len())
}

func TestSet_Remove(t *testing.T) {
	s := NewSet(mustDiscount(t, ForCategory("books", 10, false, nil)))
	scope := Scope{Kind: KindCategory, Target: "books"}

	require.NoError(t, s.Remove(scope))
	assert.Equal(t, 0, s.Len())
	assert.ErrorIs(t, s.Remove(scope), errs.ErrNotFound)
}

func TestSet_ListIsACopy(t *testing.T) {
	s := NewSet(mustDiscount(t, Global(10, false, nil)))
	rules := s.List()
	rules[0] = mustDiscount(t, Global(90, false, nil))
	assert.Equal(t, 10, s.List()[0].Percentage())
}

func TestSet_ConcurrentReplaceIsAtomic(t *testing.T) {
	itemID := uuid.New()
	prices := goods.Prices{itemID: 1000}
	basket := goods.Basket{itemID: 1}

	low := mustDiscount(t, ForItem(itemID, 10, false, nil))
	high := mustDiscount(t, ForItem(itemID, 60, false, nil))
	s := NewSet(low)

	var g errgroup.Group
	for i := 0; i < 50; i++ {
		g.Go(func() error {
			if i%2 == 0 {
				s.Put(high)
			} else {
				s.Put(low)
			}
			return nil
		})
		g.Go(func() error {
			quote, err := s.Price(basket, prices, nil)
			if err != nil {
				return err
			}
			// either rule fully applied, never both or neither
			assert.Contains(t, []int64{900, 400}, quote.Total)
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, 1, s.Len())
}
