package checkout

import (
	"context"

	"github.com/google/uuid"

	"github.com/floroz/bazaar/internal/domain/shops"
)

// CartStore gives access to a user's multi-shop cart
type CartStore interface {
	// Cart returns the user's baskets keyed by shop id
	Cart(ctx context.Context, userID uuid.UUID) (Cart, error)

	// Clear empties the baskets of the given shops
	Clear(ctx context.Context, userID uuid.UUID, shopIDs []uuid.UUID) error

	// Restore replaces the user's cart with cart
	Restore(ctx context.Context, userID uuid.UUID, cart Cart) error
}

// ShopDirectory resolves shops by id
type ShopDirectory interface {
	// Get returns the shop or an error matching errs.ErrNotFound
	Get(id uuid.UUID) (*shops.Shop, error)
}

// PaymentGateway charges and refunds buyers
type PaymentGateway interface {
	// Charge takes the amount and returns the gateway's payment id
	Charge(ctx context.Context, charge Charge) (string, error)

	// Refund reverses a successful charge
	Refund(ctx context.Context, paymentID string) error
}

// Shipper hands purchases to a delivery provider
type Shipper interface {
	// Ship books a delivery and returns the provider's shipment id
	Ship(ctx context.Context, shipment Shipment) (string, error)

	// Cancel withdraws a booked delivery
	Cancel(ctx context.Context, shipmentID string) error
}
