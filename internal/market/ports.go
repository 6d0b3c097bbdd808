package market

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/floroz/bazaar/internal/domain/auction"
	"github.com/floroz/bazaar/internal/domain/checkout"
	"github.com/floroz/bazaar/internal/domain/shops"
	"github.com/floroz/bazaar/pkg/events"
)

// ShopRepository persists shop snapshots
type ShopRepository interface {
	SaveShop(ctx context.Context, tx pgx.Tx, snap shops.Snapshot) error
	LoadShops(ctx context.Context) ([]shops.Snapshot, error)
}

// AuctionRepository persists auction snapshots
type AuctionRepository interface {
	SaveAuction(ctx context.Context, tx pgx.Tx, snap auction.Snapshot) error
	LoadAuctions(ctx context.Context) ([]auction.Snapshot, error)
}

// PurchaseRepository stores completed purchases
type PurchaseRepository interface {
	SavePurchases(ctx context.Context, tx pgx.Tx, purchases []checkout.Purchase) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]checkout.Purchase, error)
	ListByShop(ctx context.Context, shopID uuid.UUID) ([]checkout.Purchase, error)
}

// OutboxRepository writes events in the caller's transaction
type OutboxRepository interface {
	SaveEvent(ctx context.Context, tx pgx.Tx, event *events.OutboxEvent) error
}

// CartStore is the checkout cart port plus the write used to fill it
type CartStore interface {
	checkout.CartStore
	Add(ctx context.Context, userID, shopID, itemID uuid.UUID, qty int) error
}

// ReceiptCache keeps finalized receipts close to readers
type ReceiptCache interface {
	Put(ctx context.Context, receipt auction.Receipt) error
	Get(ctx context.Context, auctionID uuid.UUID) (auction.Receipt, error)
}

// Recorder receives business metrics
type Recorder interface {
	CheckoutCompleted(amount int64)
	CheckoutFailed(reason string)
	BidPlaced(accepted bool)
	AuctionFinalized(hasWinner bool)
}

type noopRecorder struct{}

func (noopRecorder) CheckoutCompleted(int64) {}
func (noopRecorder) CheckoutFailed(string)   {}
func (noopRecorder) BidPlaced(bool)          {}
func (noopRecorder) AuctionFinalized(bool)   {}
