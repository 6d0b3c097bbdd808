// Package checkout drives a multi-shop purchase: reserve in every shop, pay
// per shop, ship, then clear the cart. Any failure undoes everything done so far.
package checkout

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/floroz/bazaar/internal/domain/reservation"
	"github.com/floroz/bazaar/internal/domain/shops"
	"github.com/floroz/bazaar/pkg/clock"
	"github.com/floroz/bazaar/pkg/errs"
)

// Checkout errors
var (
	ErrEmptyCart      = fmt.Errorf("%w: cart is empty", errs.ErrInvalidArgument)
	ErrShopNotInCart  = fmt.Errorf("shop basket %w in cart", errs.ErrNotFound)
	ErrInvalidUser    = fmt.Errorf("%w: user is required", errs.ErrInvalidArgument)
	ErrPaymentFailed  = errors.New("payment failed")
	ErrShippingFailed = errors.New("shipping failed")
)

// AbortError is returned when a checkout was undone after reserving stock.
// RolledBack lists the shops whose reservations were returned to stock, so
// callers persisting shop state know which shops changed again.
type AbortError struct {
	RolledBack []uuid.UUID
	Err        error
}

func (e *AbortError) Error() string { return e.Err.Error() }

func (e *AbortError) Unwrap() error { return e.Err }

// RolledBackShops returns the shops a failed checkout returned stock to
func RolledBackShops(err error) []uuid.UUID {
	var aborted *AbortError
	if errors.As(err, &aborted) {
		return aborted.RolledBack
	}
	return nil
}

// attempt is the in-flight state of one shop within a checkout
type attempt struct {
	shop        *shops.Shop
	reservation *reservation.Reservation
	purchaseID  uuid.UUID
	paymentID   string
	shipmentID  string
}

// Orchestrator runs checkouts across shops
type Orchestrator struct {
	shops    ShopDirectory
	carts    CartStore
	payments PaymentGateway
	shipper  Shipper
	clock    clock.Clock
}

// NewOrchestrator creates a checkout orchestrator. shipper may be nil when
// purchases are collected rather than delivered.
func NewOrchestrator(
	shopDir ShopDirectory,
	carts CartStore,
	payments PaymentGateway,
	shipper Shipper,
	c clock.Clock,
) *Orchestrator {
	return &Orchestrator{
		shops:    shopDir,
		carts:    carts,
		payments: payments,
		shipper:  shipper,
		clock:    c,
	}
}

// Checkout purchases the user's cart, or a single shop's basket when
// cmd.ShopID is set, and returns one purchase per shop.
func (o *Orchestrator) Checkout(ctx context.Context, cmd Command) ([]Purchase, error) {
	if cmd.UserID == uuid.Nil {
		return nil, ErrInvalidUser
	}

	cart, err := o.carts.Cart(ctx, cmd.UserID)
	if err != nil {
		return nil, errs.Wrap(err, "load cart")
	}
	original := cart.Clone()

	shopIDs := cart.ShopIDs()
	if cmd.ShopID != uuid.Nil {
		if len(cart[cmd.ShopID]) == 0 {
			return nil, ErrShopNotInCart
		}
		shopIDs = []uuid.UUID{cmd.ShopID}
	}
	if len(shopIDs) == 0 {
		return nil, ErrEmptyCart
	}

	// Step 1: reserve stock shop by shop; stop at the first failure.
	attempts := make([]*attempt, 0, len(shopIDs))
	for _, shopID := range shopIDs {
		if err := ctx.Err(); err != nil {
			return nil, o.abort(ctx, attempts, err)
		}
		shop, err := o.shops.Get(shopID)
		if err != nil {
			return nil, o.abort(ctx, attempts, err)
		}
		r, err := shop.Reserve(cart[shopID])
		if err != nil {
			return nil, o.abort(ctx, attempts, err)
		}
		attempts = append(attempts, &attempt{shop: shop, reservation: r, purchaseID: uuid.New()})
	}

	// Step 2: charge each shop total.
	for _, a := range attempts {
		paymentID, err := o.payments.Charge(ctx, Charge{
			UserID:  cmd.UserID,
			ShopID:  a.shop.ID,
			Amount:  a.reservation.Total(),
			Payment: cmd.Payment,
		})
		if err != nil {
			return nil, o.abort(ctx, attempts, fmt.Errorf("%w: shop %s: %w", ErrPaymentFailed, a.shop.ID, err))
		}
		a.paymentID = paymentID
	}

	// Step 3: book deliveries.
	if o.shipper != nil {
		for _, a := range attempts {
			shipmentID, err := o.shipper.Ship(ctx, Shipment{
				UserID:     cmd.UserID,
				ShopID:     a.shop.ID,
				PurchaseID: a.purchaseID,
				Items:      a.reservation.Basket(),
				Address:    cmd.Address,
			})
			if err != nil {
				return nil, o.abort(ctx, attempts, fmt.Errorf("%w: shop %s: %w", ErrShippingFailed, a.shop.ID, err))
			}
			a.shipmentID = shipmentID
		}
	}

	// Step 4: clear the cart, then make the reservations final.
	if err := o.carts.Clear(ctx, cmd.UserID, shopIDs); err != nil {
		failure := o.abort(ctx, attempts, errs.Wrap(err, "clear cart"))
		restoreErr := o.carts.Restore(context.WithoutCancel(ctx), cmd.UserID, original)
		return nil, errs.Combine(failure, restoreErr)
	}

	now := o.clock.Now()
	purchases := make([]Purchase, 0, len(attempts))
	for _, a := range attempts {
		if err := a.shop.Commit(a.reservation); err != nil {
			return nil, errs.Wrapf(err, "commit reservation for shop %s", a.shop.ID)
		}
		purchases = append(purchases, Purchase{
			ID:          a.purchaseID,
			UserID:      cmd.UserID,
			ShopID:      a.shop.ID,
			Items:       a.reservation.Basket(),
			UnitPrices:  a.reservation.Quote.UnitPrices.Clone(),
			Total:       a.reservation.Total(),
			PaymentID:   a.paymentID,
			ShipmentID:  a.shipmentID,
			CompletedAt: now,
		})
	}
	return purchases, nil
}

// abort undoes every attempt in reverse order and returns cause with any
// compensation failure attached. Compensation ignores cancellation of ctx.
func (o *Orchestrator) abort(ctx context.Context, attempts []*attempt, cause error) error {
	if len(attempts) == 0 {
		return cause
	}
	ctx = context.WithoutCancel(ctx)
	var errList []error
	rolledBack := make([]uuid.UUID, 0, len(attempts))
	for i := len(attempts) - 1; i >= 0; i-- {
		a := attempts[i]
		if a.shipmentID != "" {
			if err := o.shipper.Cancel(ctx, a.shipmentID); err != nil {
				errList = append(errList, fmt.Errorf("cancel shipment %s: %w", a.shipmentID, err))
			}
		}
		if a.paymentID != "" {
			if err := o.payments.Refund(ctx, a.paymentID); err != nil {
				errList = append(errList, fmt.Errorf("refund payment %s: %w", a.paymentID, err))
			}
		}
		if err := a.shop.Rollback(a.reservation); err != nil {
			errList = append(errList, fmt.Errorf("roll back shop %s: %w", a.shop.ID, err))
			continue
		}
		rolledBack = append(rolledBack, a.shop.ID)
	}
	return &AbortError{
		RolledBack: rolledBack,
		Err:        errs.Combine(cause, errors.Join(errList...)),
	}
}
