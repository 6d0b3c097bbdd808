package stock

import (
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/floroz/bazaar/pkg/errs"
)

func TestStock_AddStock(t *testing.T) {
	itemID := uuid.New()

	tests := []struct {
		name    string
		adds    []int
		wantQty int
		wantErr error
	}{
		{name: "creates entry on first add", adds: []int{5}, wantQty: 5},
		{name: "accumulates quantity", adds: []int{5, 3}, wantQty: 8},
		{name: "rejects zero quantity", adds: []int{0}, wantErr: errs.ErrInvalidArgument},
		{name: "rejects negative quantity", adds: []int{-1}, wantErr: ErrInvalidQuantity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New()
			var err error
			for _, qty := range tt.adds {
				err = s.AddStock(itemID, qty)
			}
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			qty, ok := s.Quantity(itemID)
			assert.True(t, ok)
			assert.Equal(t, tt.wantQty, qty)
		})
	}
}

func TestStock_SetPrice(t *testing.T) {
	s := New()
	itemID := uuid.New()
	require.NoError(t, s.AddStock(itemID, 1))

	require.NoError(t, s.SetPrice(itemID, 0))
	require.NoError(t, s.SetPrice(itemID, 250))
	price, ok := s.Price(itemID)
	assert.True(t, ok)
	assert.Equal(t, int64(250), price)

	err := s.SetPrice(itemID, -1)
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)

	err = s.SetPrice(uuid.New(), 10)
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)
	assert.ErrorIs(t, err, ErrItemNotFound)
}

func TestStock_TryReserve(t *testing.T) {
	itemID := uuid.New()

	tests := []struct {
		name    string
		stock   int
		reserve int
		wantOK  bool
		wantQty int
		wantErr error
	}{
		{name: "reserves when enough stock", stock: 5, reserve: 3, wantOK: true, wantQty: 2},
		{name: "reserves the exact remaining quantity", stock: 3, reserve: 3, wantOK: true, wantQty: 0},
		{name: "refuses when short and keeps quantity", stock: 2, reserve: 3, wantOK: false, wantQty: 2},
		{name: "rejects non-positive quantity", stock: 2, reserve: 0, wantErr: ErrInvalidQuantity, wantQty: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New()
			require.NoError(t, s.AddStock(itemID, tt.stock))

			ok, err := s.TryReserve(itemID, tt.reserve)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantOK, ok)
			}
			qty, _ := s.Quantity(itemID)
			assert.Equal(t, tt.wantQty, qty)
		})
	}
}

func TestStock_TryReserveUnknownItem(t *testing.T) {
	s := New()
	ok, err := s.TryReserve(uuid.New(), 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStock_TryReserveSnapshot(t *testing.T) {
	s := New()
	itemID := uuid.New()
	require.NoError(t, s.AddStock(itemID, 7))

	before, ok, err := s.TryReserveSnapshot(itemID, 4)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 7, before)

	before, ok, err = s.TryReserveSnapshot(itemID, 4)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 3, before)
}

func TestStock_ReleaseRoundTrip(t *testing.T) {
	s := New()
	itemID := uuid.New()
	otherID := uuid.New()
	require.NoError(t, s.AddStock(itemID, 10))
	require.NoError(t, s.AddStock(otherID, 10))

	ok, err := s.TryReserve(itemID, 4)
	require.NoError(t, err)
	require.True(t, ok)

	// unrelated activity on another item
	_, err = s.TryReserve(otherID, 6)
	require.NoError(t, err)

	require.NoError(t, s.Release(itemID, 4))
	qty, _ := s.Quantity(itemID)
	assert.Equal(t, 10, qty)

	assert.ErrorIs(t, s.Release(itemID, 0), ErrInvalidQuantity)
}

func TestStock_RemoveItem(t *testing.T) {
	s := New()
	itemID := uuid.New()
	require.NoError(t, s.AddStock(itemID, 3))
	require.NoError(t, s.SetPrice(itemID, 100))

	require.NoError(t, s.RemoveItem(itemID))

	_, ok := s.Quantity(itemID)
	assert.False(t, ok)
	_, ok = s.Price(itemID)
	assert.False(t, ok)

	err := s.RemoveItem(itemID)
	assert.ErrorIs(t, err, errs.ErrNotFound)

	// release after removal does not resurrect the item
	require.NoError(t, s.Release(itemID, 3))
	_, ok = s.Quantity(itemID)
	assert.False(t, ok)

	// adding again starts from zero
	require.NoError(t, s.AddStock(itemID, 2))
	qty, _ := s.Quantity(itemID)
	assert.Equal(t, 2, qty)
}

func TestStock_ConcurrentReserveNeverOversells(t *testing.T) {
	s := New()
	itemID := uuid.New()
	require.NoError(t, s.AddStock(itemID, 5))

	var succeeded atomic.Int32
	var g errgroup.Group
	for i := 0; i < 2; i++ {
		g.Go(func() error {
			ok, err := s.TryReserve(itemID, 3)
			if ok {
				succeeded.Add(1)
			}
			return err
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int32(1), succeeded.Load())
	qty, _ := s.Quantity(itemID)
	assert.Equal(t, 2, qty)
}

func TestStock_ConcurrentMixedOperations(t *testing.T) {
	s := New()
	itemID := uuid.New()
	require.NoError(t, s.AddStock(itemID, 50))

	var reserved atomic.Int64
	var added atomic.Int64
	var g errgroup.Group
	for i := 0; i < 100; i++ {
		g.Go(func() error {
			ok, err := s.TryReserve(itemID, 2)
			if err != nil {
				return err
			}
			if ok {
				reserved.Add(2)
				if i%3 == 0 {
					if err := s.Release(itemID, 2); err != nil {
						return err
					}
					reserved.Add(-2)
				}
			}
			return nil
		})
		if i%10 == 0 {
			g.Go(func() error {
				added.Add(1)
				return s.AddStock(itemID, 1)
			})
		}
	}
	require.NoError(t, g.Wait())

	qty, _ := s.Quantity(itemID)
	assert.GreaterOrEqual(t, qty, 0)
	assert.Equal(t, int64(50)+added.Load()-reserved.Load(), int64(qty))
}

func TestStock_AddItem(t *testing.T) {
	s := New()
	itemID := uuid.New()

	require.NoError(t, s.AddItem(itemID, 3, 250))
	require.NoError(t, s.AddItem(itemID, 2, 300))
	qty, _ := s.Quantity(itemID)
	price, _ := s.Price(itemID)
	assert.Equal(t, 5, qty)
	assert.Equal(t, int64(300), price)

	assert.ErrorIs(t, s.AddItem(uuid.New(), 0, 10), ErrInvalidQuantity)
	assert.ErrorIs(t, s.AddItem(uuid.New(), 1, -1), ErrInvalidPrice)
	assert.Len(t, s.Snapshot(), 1)
}

func TestStock_AddItemNeverExposesUnpricedUnits(t *testing.T) {
	for round := 0; round < 200; round++ {
		s := New()
		itemID := uuid.New()

		var g errgroup.Group
		g.Go(func() error {
			return s.AddItem(itemID, 1, 250)
		})
		g.Go(func() error {
			for {
				if price, ok := s.Price(itemID); ok {
					assert.Equal(t, int64(250), price)
				}
				ok, err := s.TryReserve(itemID, 1)
				if err != nil {
					return err
				}
				if ok {
					price, _ := s.Price(itemID)
					assert.Equal(t, int64(250), price)
					return nil
				}
			}
		})
		require.NoError(t, g.Wait())
	}
}

func TestStock_SnapshotAndLoad(t *testing.T) {
	s := New()
	a, b := uuid.New(), uuid.New()
	require.NoError(t, s.AddStock(a, 2))
	require.NoError(t, s.SetPrice(a, 10))
	require.NoError(t, s.AddStock(b, 4))
	require.NoError(t, s.SetPrice(b, 20))

	loaded, err := Load(s.Snapshot())
	require.NoError(t, err)
	assert.Equal(t, s.Snapshot(), loaded.Snapshot())

	_, err = Load([]Entry{{ItemID: a, Quantity: -1}})
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)
}
