//go:build integration

package database_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/floroz/bazaar/internal/adapters/database"
	"github.com/floroz/bazaar/internal/domain/auction"
	"github.com/floroz/bazaar/internal/domain/checkout"
	"github.com/floroz/bazaar/internal/domain/discount"
	"github.com/floroz/bazaar/internal/domain/goods"
	"github.com/floroz/bazaar/internal/domain/policy"
	"github.com/floroz/bazaar/internal/domain/shops"
	pkgdb "github.com/floroz/bazaar/pkg/database"
	pkgevents "github.com/floroz/bazaar/pkg/events"
	"github.com/floroz/bazaar/pkg/testhelpers"
)

func TestRepositoriesIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()
	testDB := testhelpers.NewTestDatabase(t)
	defer testDB.Close()

	tm := pkgdb.NewPostgresTransactionManager(testDB.Pool, time.Second)
	shopRepo := database.NewPostgresShopRepository(testDB.Pool)
	auctionRepo := database.NewPostgresAuctionRepository(testDB.Pool)
	purchaseRepo := database.NewPostgresPurchaseRepository(testDB.Pool)
	outboxRepo := database.NewPostgresOutboxRepository(testDB.Pool)

	now := time.Now().UTC().Truncate(time.Microsecond)
	shirt, socks := uuid.New(), uuid.New()

	t.Run("shop snapshot round trip", func(t *testing.T) {
		shop, err := shops.New(uuid.New(), "Corner Store", uuid.New(), now)
		require.NoError(t, err)
		require.NoError(t, shop.AddItem(shirt, 5, 2000, "clothes"))
		require.NoError(t, shop.AddItem(socks, 10, 500, "clothes"))
		global, err := discount.Global(10, true, policy.MinBasketValue(1000))
		require.NoError(t, err)
		_, err = shop.SetDiscount(global)
		require.NoError(t, err)
		bundle, err := discount.ForBundle(goods.Basket{shirt: 1, socks: 2}, 15, false, nil)
		require.NoError(t, err)
		_, err = shop.SetDiscount(bundle)
		require.NoError(t, err)
		require.NoError(t, shop.AddReview(uuid.New(), 4, "good", now))

		want := shop.Snapshot()
		err = pkgdb.WithTx(ctx, tm, func(tx pgx.Tx) error {
			return shopRepo.SaveShop(ctx, tx, want)
		})
		require.NoError(t, err)

		// saving twice replaces rather than duplicates
		require.True(t, shop.Close())
		want = shop.Snapshot()
		err = pkgdb.WithTx(ctx, tm, func(tx pgx.Tx) error {
			return shopRepo.SaveShop(ctx, tx, want)
		})
		require.NoError(t, err)

		loaded, err := shopRepo.LoadShops(ctx)
		require.NoError(t, err)
		require.Len(t, loaded, 1)
		got := loaded[0]
		got.CreatedAt = got.CreatedAt.UTC()
		for i := range got.Reviews {
			got.Reviews[i].CreatedAt = got.Reviews[i].CreatedAt.UTC()
		}

		assert.True(t, got.Closed)
		assert.ElementsMatch(t, want.Items, got.Items)
		if diff := cmp.Diff(want.Discounts, got.Discounts); diff != "" {
			t.Errorf("discounts mismatch (-want +got):\n%s", diff)
		}
		assert.Equal(t, want.Reviews, got.Reviews)

		restored, err := shops.Restore(got)
		require.NoError(t, err)
		qty, ok := restored.Quantity(shirt)
		require.True(t, ok)
		assert.Equal(t, 5, qty)
	})

	t.Run("auction snapshot round trip", func(t *testing.T) {
		bidder := uuid.New()
		finalized := now.Add(time.Hour)
		want := auction.Snapshot{
			ID:              uuid.New(),
			ShopID:          uuid.New(),
			SellerID:        uuid.New(),
			PurchaseID:      uuid.New(),
			Items:           goods.Basket{shirt: 1},
			InitialPrice:    1000,
			StartAt:         now,
			EndAt:           now.Add(time.Hour),
			CreatedAt:       now,
			HighestBid:      1500,
			HighestBidderID: bidder,
			Bidders:         []uuid.UUID{bidder},
			Completed:       true,
			FinalizedAt:     &finalized,
		}
		err := pkgdb.WithTx(ctx, tm, func(tx pgx.Tx) error {
			return auctionRepo.SaveAuction(ctx, tx, want)
		})
		require.NoError(t, err)

		loaded, err := auctionRepo.LoadAuctions(ctx)
		require.NoError(t, err)
		require.Len(t, loaded, 1)
		got := loaded[0]

		assert.Equal(t, want.ID, got.ID)
		assert.Equal(t, want.Items, got.Items)
		assert.Equal(t, want.HighestBidderID, got.HighestBidderID)
		assert.Equal(t, want.Bidders, got.Bidders)
		assert.True(t, got.Completed)
		require.NotNil(t, got.FinalizedAt)
		assert.True(t, finalized.Equal(*got.FinalizedAt))
	})

	t.Run("purchases by user and shop", func(t *testing.T) {
		user, shopID := uuid.New(), uuid.New()
		p := checkout.Purchase{
			ID:          uuid.New(),
			UserID:      user,
			ShopID:      shopID,
			Items:       goods.Basket{shirt: 2, socks: 1},
			UnitPrices:  goods.Prices{shirt: 1800, socks: 450},
			Total:       4050,
			PaymentID:   "pay-1",
			ShipmentID:  "ship-1",
			CompletedAt: now,
		}
		err := pkgdb.WithTx(ctx, tm, func(tx pgx.Tx) error {
			return purchaseRepo.SavePurchases(ctx, tx, []checkout.Purchase{p})
		})
		require.NoError(t, err)

		byUser, err := purchaseRepo.ListByUser(ctx, user)
		require.NoError(t, err)
		require.Len(t, byUser, 1)
		assert.Equal(t, p.Items, byUser[0].Items)
		assert.Equal(t, p.UnitPrices, byUser[0].UnitPrices)
		assert.Equal(t, p.Total, byUser[0].Total)

		byShop, err := purchaseRepo.ListByShop(ctx, shopID)
		require.NoError(t, err)
		assert.Len(t, byShop, 1)

		none, err := purchaseRepo.ListByUser(ctx, uuid.New())
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("outbox pending then published", func(t *testing.T) {
		event := &pkgevents.OutboxEvent{
			ID:        uuid.New(),
			EventType: "shop.closed",
			Payload:   []byte("payload"),
			Status:    pkgevents.OutboxStatusPending,
			CreatedAt: now,
		}
		unstamped := &pkgevents.OutboxEvent{
			ID:        uuid.New(),
			EventType: "bid.placed",
			Payload:   []byte("bid"),
			CreatedAt: now.Add(time.Second),
		}
		err := pkgdb.WithTx(ctx, tm, func(tx pgx.Tx) error {
			if err := outboxRepo.SaveEvent(ctx, tx, event); err != nil {
				return err
			}
			return outboxRepo.SaveEvent(ctx, tx, unstamped)
		})
		require.NoError(t, err)

		backlog, err := outboxRepo.PendingByType(ctx)
		require.NoError(t, err)
		assert.Equal(t, map[string]int{"shop.closed": 1, "bid.placed": 1}, backlog)

		err = pkgdb.WithTx(ctx, tm, func(tx pgx.Tx) error {
			pending, err := outboxRepo.GetPendingEvents(ctx, tx, 10)
			require.NoError(t, err)
			require.Len(t, pending, 2)
			assert.Equal(t, event.ID, pending[0].ID, "oldest first")
			assert.Equal(t, pkgevents.OutboxStatusPending, pending[1].Status)
			assert.Nil(t, pending[0].ProcessedAt)
			return outboxRepo.UpdateEventStatus(ctx, tx, event.ID, pkgevents.OutboxStatusPublished)
		})
		require.NoError(t, err)

		var (
			status      string
			processedAt *time.Time
		)
		err = testDB.Pool.QueryRow(ctx, "SELECT status::text, processed_at FROM outbox_events WHERE id = $1", event.ID).
			Scan(&status, &processedAt)
		require.NoError(t, err)
		assert.Equal(t, string(pkgevents.OutboxStatusPublished), status)
		assert.NotNil(t, processedAt)

		backlog, err = outboxRepo.PendingByType(ctx)
		require.NoError(t, err)
		assert.Equal(t, map[string]int{"bid.placed": 1}, backlog)

		err = pkgdb.WithTx(ctx, tm, func(tx pgx.Tx) error {
			return outboxRepo.UpdateEventStatus(ctx, tx, uuid.New(), pkgevents.OutboxStatusPublished)
		})
		assert.Error(t, err)
	})
}
