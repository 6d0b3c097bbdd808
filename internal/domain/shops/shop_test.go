package shops

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/floroz/bazaar/internal/domain/discount"
	"github.com/floroz/bazaar/internal/domain/goods"
	"github.com/floroz/bazaar/internal/domain/policy"
	"github.com/floroz/bazaar/pkg/clock"
	"github.com/floroz/bazaar/pkg/errs"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newShop(t *testing.T) *Shop {
	t.Helper()
	s, err := New(uuid.New(), "Corner Store", uuid.New(), now)
	require.NoError(t, err)
	return s
}

func TestNew_Validation(t *testing.T) {
	_, err := New(uuid.New(), "  ", uuid.New(), now)
	assert.ErrorIs(t, err, ErrInvalidName)

	_, err = New(uuid.New(), "Shop", uuid.Nil, now)
	assert.ErrorIs(t, err, ErrInvalidOwner)
}

func TestShop_AddItem(t *testing.T) {
	itemID := uuid.New()

	tests := []struct {
		name     string
		qty      int
		price    int64
		wantErr  error
		wantQty  int
		wantCat  goods.Category
		category goods.Category
	}{
		{name: "adds item with price and category", qty: 3, price: 120, category: "books", wantQty: 3, wantCat: "books"},
		{name: "rejects zero quantity", qty: 0, price: 120, wantErr: errs.ErrInvalidArgument},
		{name: "rejects negative price", qty: 1, price: -5, wantErr: errs.ErrInvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newShop(t)
			err := s.AddItem(itemID, tt.qty, tt.price, tt.category)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				_, ok := s.Quantity(itemID)
				assert.False(t, ok)
				return
			}
			require.NoError(t, err)
			qty, _ := s.Quantity(itemID)
			price, _ := s.Price(itemID)
			assert.Equal(t, tt.wantQty, qty)
			assert.Equal(t, tt.price, price)
			assert.Equal(t, tt.wantCat, s.Categories([]uuid.UUID{itemID})[itemID])
		})
	}
}

func TestShop_AddItemConcurrentQuoteSeesPrice(t *testing.T) {
	for round := 0; round < 200; round++ {
		s := newShop(t)
		itemID := uuid.New()

		var g errgroup.Group
		g.Go(func() error {
			return s.AddItem(itemID, 2, 400, "books")
		})
		g.Go(func() error {
			for {
				quote, err := s.Quote(goods.Basket{itemID: 1})
				if err != nil {
					continue
				}
				assert.Equal(t, int64(400), quote.Total)
				return nil
			}
		})
		require.NoError(t, g.Wait())
	}
}

func TestShop_RemoveItemDropsCategory(t *testing.T) {
	s := newShop(t)
	itemID := uuid.New()
	require.NoError(t, s.AddItem(itemID, 1, 10, "toys"))

	require.NoError(t, s.RemoveItem(itemID))
	assert.Empty(t, s.Categories([]uuid.UUID{itemID}))
	assert.ErrorIs(t, s.RemoveItem(itemID), errs.ErrNotFound)
	assert.ErrorIs(t, s.SetCategory(itemID, "toys"), errs.ErrNotFound)
}

func TestShop_QuoteAndReserve(t *testing.T) {
	s := newShop(t)
	phone, cover := uuid.New(), uuid.New()
	require.NoError(t, s.AddItem(phone, 4, 1000, "electronics"))
	require.NoError(t, s.AddItem(cover, 10, 100, "accessories"))

	bundle, err := discount.ForBundle(goods.Basket{phone: 1, cover: 1}, 10, false, nil)
	require.NoError(t, err)
	_, err = s.SetDiscount(bundle)
	require.NoError(t, err)

	basket := goods.Basket{phone: 1, cover: 2}
	quote, err := s.Quote(basket)
	require.NoError(t, err)
	assert.Equal(t, int64(900+90*2), quote.Total)

	// quoting reserves nothing
	qty, _ := s.Quantity(phone)
	assert.Equal(t, 4, qty)

	r, err := s.Reserve(basket)
	require.NoError(t, err)
	assert.Equal(t, quote.Total, r.Total())
	qty, _ = s.Quantity(phone)
	assert.Equal(t, 3, qty)

	require.NoError(t, s.Rollback(r))
	qty, _ = s.Quantity(phone)
	assert.Equal(t, 4, qty)
}

func TestShop_QuoteUnknownItem(t *testing.T) {
	s := newShop(t)
	_, err := s.Quote(goods.Basket{uuid.New(): 1})
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestShop_SetDiscountReplacesScope(t *testing.T) {
	s := newShop(t)
	first, err := discount.Global(10, false, nil)
	require.NoError(t, err)
	second, err := discount.Global(20, false, policy.MinBasketValue(100))
	require.NoError(t, err)

	replaced, err := s.SetDiscount(first)
	require.NoError(t, err)
	assert.False(t, replaced)
	replaced, err = s.SetDiscount(second)
	require.NoError(t, err)
	assert.True(t, replaced)

	rules := s.Discounts()
	require.Len(t, rules, 1)
	assert.Equal(t, 20, rules[0].Percentage())

	require.NoError(t, s.RemoveDiscount(rules[0].Scope()))
	assert.Empty(t, s.Discounts())
}

func TestShop_ClosedIsImmutable(t *testing.T) {
	s := newShop(t)
	itemID := uuid.New()
	require.NoError(t, s.AddItem(itemID, 5, 10, ""))
	r, err := s.Reserve(goods.Basket{itemID: 2})
	require.NoError(t, err)

	assert.True(t, s.Close())
	assert.False(t, s.Close())
	assert.True(t, s.IsClosed())

	d, err := discount.Global(5, false, nil)
	require.NoError(t, err)

	assert.ErrorIs(t, s.AddItem(uuid.New(), 1, 1, ""), ErrShopClosed)
	assert.ErrorIs(t, s.AddStock(itemID, 1), ErrShopClosed)
	assert.ErrorIs(t, s.SetPrice(itemID, 1), ErrShopClosed)
	assert.ErrorIs(t, s.RemoveItem(itemID), ErrShopClosed)
	_, err = s.SetDiscount(d)
	assert.ErrorIs(t, err, ErrShopClosed)
	assert.ErrorIs(t, s.AddReview(uuid.New(), 5, "", now), ErrShopClosed)
	_, err = s.Reserve(goods.Basket{itemID: 1})
	assert.ErrorIs(t, err, errs.ErrFailedPrecondition)

	// reservations taken before closing can still be returned
	require.NoError(t, s.Rollback(r))
	qty, _ := s.Quantity(itemID)
	assert.Equal(t, 5, qty)
}

func TestShop_Reviews(t *testing.T) {
	s := newShop(t)
	assert.Equal(t, float64(-1), s.AverageRating())

	assert.ErrorIs(t, s.AddReview(uuid.New(), 0, "meh", now), ErrInvalidRating)
	assert.ErrorIs(t, s.AddReview(uuid.New(), 6, "wow", now), ErrInvalidRating)

	require.NoError(t, s.AddReview(uuid.New(), 5, "great", now))
	require.NoError(t, s.AddReview(uuid.New(), 2, "slow shipping", now))
	assert.InDelta(t, 3.5, s.AverageRating(), 0.0001)
	assert.Len(t, s.Reviews(), 2)
}

func TestShop_SnapshotRestore(t *testing.T) {
	s := newShop(t)
	a, b := uuid.New(), uuid.New()
	require.NoError(t, s.AddItem(a, 3, 250, "garden"))
	require.NoError(t, s.AddItem(b, 1, 99, ""))
	d, err := discount.ForCategory("garden", 15, true, policy.MinItemQuantity(a, 2))
	require.NoError(t, err)
	_, err = s.SetDiscount(d)
	require.NoError(t, err)
	require.NoError(t, s.AddReview(uuid.New(), 4, "ok", now))
	s.Close()

	snap := s.Snapshot()
	restored, err := Restore(snap)
	require.NoError(t, err)

	assert.Equal(t, snap, restored.Snapshot())
	assert.True(t, restored.IsClosed())

	quote, err := restored.Quote(goods.Basket{a: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(212*2), quote.Total)
}

func TestShop_RestoreRejectsInvalidDiscount(t *testing.T) {
	snap := Snapshot{
		ID:        uuid.New(),
		Name:      "x",
		OwnerID:   uuid.New(),
		Discounts: []discount.Spec{{Kind: discount.KindGlobal, Percentage: 150}},
	}
	_, err := Restore(snap)
	assert.ErrorIs(t, err, discount.ErrInvalidPercentage)
}

func TestRegistry(t *testing.T) {
	c := clock.NewMockClock(now)
	r := NewRegistry(c)

	first, err := r.Create("First", uuid.New())
	require.NoError(t, err)
	c.Add(time.Minute)
	second, err := r.Create("Second", uuid.New())
	require.NoError(t, err)

	got, err := r.Get(first.ID)
	require.NoError(t, err)
	assert.Same(t, first, got)

	_, err = r.Get(uuid.New())
	assert.ErrorIs(t, err, errs.ErrNotFound)

	list := r.List()
	require.Len(t, list, 2)
	assert.Equal(t, first.ID, list[0].ID)
	assert.Equal(t, second.ID, list[1].ID)

	_, err = r.Create("", uuid.New())
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)

	snap := first.Snapshot()
	snap.Name = "Renamed"
	restored, err := r.Restore(snap)
	require.NoError(t, err)
	got, err = r.Get(first.ID)
	require.NoError(t, err)
	assert.Same(t, restored, got)
	assert.Equal(t, "Renamed", got.Name)
}

func TestShop_ReturnStock(t *testing.T) {
	s := newShop(t)
	item, gone := uuid.New(), uuid.New()
	require.NoError(t, s.AddItem(item, 5, 100, ""))
	require.True(t, s.Close())

	require.NoError(t, s.ReturnStock(goods.Basket{item: 2, gone: 1}))
	qty, ok := s.Quantity(item)
	require.True(t, ok)
	assert.Equal(t, 7, qty)
	_, ok = s.Quantity(gone)
	assert.False(t, ok)

	assert.ErrorIs(t, s.ReturnStock(goods.Basket{}), goods.ErrInvalidBasket)
}
