// Package market runs the marketplace engine behind load-before and
// save-after persistence with a transactional outbox.
package market

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/floroz/bazaar/internal/domain/auction"
	"github.com/floroz/bazaar/internal/domain/checkout"
	"github.com/floroz/bazaar/internal/domain/discount"
	"github.com/floroz/bazaar/internal/domain/goods"
	"github.com/floroz/bazaar/internal/domain/reservation"
	"github.com/floroz/bazaar/internal/domain/shops"
	"github.com/floroz/bazaar/pkg/clock"
	"github.com/floroz/bazaar/pkg/database"
	"github.com/floroz/bazaar/pkg/errs"
	"github.com/floroz/bazaar/pkg/events"
)

// Service errors
var (
	ErrNotSeller           = fmt.Errorf("%w: only the seller may do this", errs.ErrFailedPrecondition)
	ErrSellerCannotBid     = fmt.Errorf("%w: seller cannot bid on their own auction", errs.ErrFailedPrecondition)
	ErrUnknownItem         = fmt.Errorf("item %w in shop", errs.ErrNotFound)
	ErrInvalidCartQuantity = fmt.Errorf("%w: cart quantity must be positive", errs.ErrInvalidArgument)
)

// Dependencies groups what a Service needs. Cache, Metrics, Shipper and
// Logger are optional.
type Dependencies struct {
	TxManager database.TransactionManager
	Shops     ShopRepository
	Auctions  AuctionRepository
	Purchases PurchaseRepository
	Outbox    OutboxRepository
	Carts     CartStore
	Payments  checkout.PaymentGateway
	Shipper   checkout.Shipper
	Cache     ReceiptCache
	Metrics   Recorder
	Clock     clock.Clock
	Logger    *slog.Logger
}

// Service is the application layer over the in-memory engine
type Service struct {
	txManager   database.TransactionManager
	shopRepo    ShopRepository
	auctionRepo AuctionRepository
	purchases   PurchaseRepository
	outbox      OutboxRepository
	carts       CartStore
	cache       ReceiptCache
	metrics     Recorder
	clock       clock.Clock
	logger      *slog.Logger

	shops    *shops.Registry
	auctions *auction.Registry
	checkout *checkout.Orchestrator

	// locks serialises snapshot+save per aggregate id
	locks sync.Map

	heldMu sync.Mutex
	held   map[uuid.UUID]*reservation.Reservation
}

// NewService wires the engine registries to the given adapters
func NewService(deps Dependencies) *Service {
	c := deps.Clock
	if c == nil {
		c = clock.NewRealClock()
	}
	var metrics Recorder = noopRecorder{}
	if deps.Metrics != nil {
		metrics = deps.Metrics
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	shopRegistry := shops.NewRegistry(c)
	return &Service{
		txManager:   deps.TxManager,
		shopRepo:    deps.Shops,
		auctionRepo: deps.Auctions,
		purchases:   deps.Purchases,
		outbox:      deps.Outbox,
		carts:       deps.Carts,
		cache:       deps.Cache,
		metrics:     metrics,
		clock:       c,
		logger:      logger,
		shops:       shopRegistry,
		auctions:    auction.NewRegistry(c),
		checkout:    checkout.NewOrchestrator(shopRegistry, deps.Carts, deps.Payments, deps.Shipper, c),
		held:        make(map[uuid.UUID]*reservation.Reservation),
	}
}

// Shops exposes the shop registry for read access
func (s *Service) Shops() *shops.Registry { return s.shops }

// Auctions exposes the auction registry for read access
func (s *Service) Auctions() *auction.Registry { return s.auctions }

// LoadState restores every persisted shop and auction into memory
func (s *Service) LoadState(ctx context.Context) error {
	shopSnaps, err := s.shopRepo.LoadShops(ctx)
	if err != nil {
		return errs.Wrap(err, "load shops")
	}
	for _, snap := range shopSnaps {
		if _, err := s.shops.Restore(snap); err != nil {
			return errs.Wrapf(err, "restore shop %s", snap.ID)
		}
	}

	auctionSnaps, err := s.auctionRepo.LoadAuctions(ctx)
	if err != nil {
		return errs.Wrap(err, "load auctions")
	}
	for _, snap := range auctionSnaps {
		s.auctions.Restore(snap)
	}
	s.logger.Info("Market state restored", "shops", len(shopSnaps), "auctions", len(auctionSnaps))
	return nil
}

func (s *Service) lock(id uuid.UUID) func() {
	v, _ := s.locks.LoadOrStore(id, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// lockAll takes the aggregate locks in ascending id order
func (s *Service) lockAll(ids []uuid.UUID) func() {
	sorted := append([]uuid.UUID(nil), ids...)
	goods.SortIDs(sorted)
	unlocks := make([]func(), 0, len(sorted))
	for i, id := range sorted {
		if i > 0 && id == sorted[i-1] {
			continue
		}
		unlocks = append(unlocks, s.lock(id))
	}
	return func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}
}

// saveShop persists the shop and, when given, an outbox event in one transaction
func (s *Service) saveShop(ctx context.Context, shop *shops.Shop, build func() (*events.OutboxEvent, error)) error {
	unlock := s.lock(shop.ID)
	defer unlock()
	return s.persistShop(ctx, shop, build)
}

// persistShop is saveShop for callers already holding the shop lock
func (s *Service) persistShop(ctx context.Context, shop *shops.Shop, build func() (*events.OutboxEvent, error)) error {
	return database.WithTx(ctx, s.txManager, func(tx pgx.Tx) error {
		if err := s.shopRepo.SaveShop(ctx, tx, shop.Snapshot()); err != nil {
			return err
		}
		return s.saveEvent(ctx, tx, build)
	})
}

func (s *Service) saveEvent(ctx context.Context, tx pgx.Tx, build func() (*events.OutboxEvent, error)) error {
	if build == nil {
		return nil
	}
	event, err := build()
	if err != nil {
		return err
	}
	return s.outbox.SaveEvent(ctx, tx, event)
}

// CreateShop opens a shop owned by ownerID
func (s *Service) CreateShop(ctx context.Context, name string, ownerID uuid.UUID) (*shops.Shop, error) {
	shop, err := s.shops.Create(name, ownerID)
	if err != nil {
		return nil, err
	}
	if err := s.saveShop(ctx, shop, nil); err != nil {
		return nil, errs.Wrap(err, "persist shop")
	}
	return shop, nil
}

// AddItem stocks an item with its price and category
func (s *Service) AddItem(ctx context.Context, shopID, itemID uuid.UUID, qty int, price int64, category goods.Category) error {
	shop, err := s.shops.Get(shopID)
	if err != nil {
		return err
	}
	if err := shop.AddItem(itemID, qty, price, category); err != nil {
		return err
	}
	return s.saveShop(ctx, shop, nil)
}

// SetPrice changes the unit price of a stocked item
func (s *Service) SetPrice(ctx context.Context, shopID, itemID uuid.UUID, price int64) error {
	shop, err := s.shops.Get(shopID)
	if err != nil {
		return err
	}
	if err := shop.SetPrice(itemID, price); err != nil {
		return err
	}
	return s.saveShop(ctx, shop, nil)
}

// RemoveItem drops an item from the shop stock
func (s *Service) RemoveItem(ctx context.Context, shopID, itemID uuid.UUID) error {
	shop, err := s.shops.Get(shopID)
	if err != nil {
		return err
	}
	if err := shop.RemoveItem(itemID); err != nil {
		return err
	}
	return s.saveShop(ctx, shop, nil)
}

// SetDiscount validates spec and installs it, replacing a rule with the same scope
func (s *Service) SetDiscount(ctx context.Context, shopID uuid.UUID, spec discount.Spec) (bool, error) {
	shop, err := s.shops.Get(shopID)
	if err != nil {
		return false, err
	}
	d, err := discount.New(spec)
	if err != nil {
		return false, err
	}
	replaced, err := shop.SetDiscount(d)
	if err != nil {
		return false, err
	}
	return replaced, s.saveShop(ctx, shop, nil)
}

// RemoveDiscount deletes the rule occupying scope
func (s *Service) RemoveDiscount(ctx context.Context, shopID uuid.UUID, scope discount.Scope) error {
	shop, err := s.shops.Get(shopID)
	if err != nil {
		return err
	}
	if err := shop.RemoveDiscount(scope); err != nil {
		return err
	}
	return s.saveShop(ctx, shop, nil)
}

// AddReview records a rating for the shop
func (s *Service) AddReview(ctx context.Context, shopID, userID uuid.UUID, rating int, text string) error {
	shop, err := s.shops.Get(shopID)
	if err != nil {
		return err
	}
	if err := shop.AddReview(userID, rating, text, s.clock.Now()); err != nil {
		return err
	}
	return s.saveShop(ctx, shop, nil)
}

// CloseShop closes the shop on behalf of its owner. Closing twice is a no-op.
func (s *Service) CloseShop(ctx context.Context, shopID, ownerID uuid.UUID) error {
	shop, err := s.shops.Get(shopID)
	if err != nil {
		return err
	}
	if shop.OwnerID != ownerID {
		return ErrNotSeller
	}
	if !shop.Close() {
		return nil
	}
	return s.saveShop(ctx, shop, func() (*events.OutboxEvent, error) {
		return shopClosedEvent(shop.ID, shop.OwnerID, s.clock.Now())
	})
}

// Quote previews the discounted price of a basket without reserving
func (s *Service) Quote(shopID uuid.UUID, basket goods.Basket) (discount.Quote, error) {
	shop, err := s.shops.Get(shopID)
	if err != nil {
		return discount.Quote{}, err
	}
	return shop.Quote(basket)
}

// AddToCart puts qty of a stocked item in the user's basket for shopID
func (s *Service) AddToCart(ctx context.Context, userID, shopID, itemID uuid.UUID, qty int) error {
	if userID == uuid.Nil {
		return checkout.ErrInvalidUser
	}
	if qty <= 0 {
		return ErrInvalidCartQuantity
	}
	shop, err := s.shops.Get(shopID)
	if err != nil {
		return err
	}
	if shop.IsClosed() {
		return shops.ErrShopClosed
	}
	if _, ok := shop.Price(itemID); !ok {
		return ErrUnknownItem
	}
	return s.carts.Add(ctx, userID, shopID, itemID, qty)
}

// Checkout runs the multi-shop checkout and records the purchases. When the
// purchases cannot be persisted they are still returned with the error,
// since money and stock have already moved.
func (s *Service) Checkout(ctx context.Context, cmd checkout.Command) ([]checkout.Purchase, error) {
	purchases, err := s.checkout.Checkout(ctx, cmd)
	if err != nil {
		s.metrics.CheckoutFailed(failureReason(err))
		if !errs.IsBusiness(err) {
			s.logger.Error("Checkout failed", "user_id", cmd.UserID, "error", err, "stack", errs.ExtractStackLines(err, 12))
		}
		return nil, errs.Combine(err, s.resaveShops(ctx, checkout.RolledBackShops(err)))
	}

	var total int64
	shopIDs := make([]uuid.UUID, len(purchases))
	for i, p := range purchases {
		shopIDs[i] = p.ShopID
		total += p.Total
	}
	s.metrics.CheckoutCompleted(total)

	unlock := s.lockAll(shopIDs)
	defer unlock()
	err = database.WithTx(ctx, s.txManager, func(tx pgx.Tx) error {
		for _, p := range purchases {
			shop, err := s.shops.Get(p.ShopID)
			if err != nil {
				return err
			}
			if err := s.shopRepo.SaveShop(ctx, tx, shop.Snapshot()); err != nil {
				return err
			}
		}
		if err := s.purchases.SavePurchases(ctx, tx, purchases); err != nil {
			return err
		}
		for _, p := range purchases {
			event, err := purchaseCompletedEvent(p)
			if err != nil {
				return err
			}
			if err := s.outbox.SaveEvent(ctx, tx, event); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return purchases, errs.Wrap(err, "persist checkout")
	}
	return purchases, nil
}

// resaveShops persists shops whose stock changed again after a rollback.
// Snapshots saved while the reservation was pending still carry the deduction.
func (s *Service) resaveShops(ctx context.Context, shopIDs []uuid.UUID) error {
	ctx = context.WithoutCancel(ctx)
	var errList []error
	for _, id := range shopIDs {
		shop, err := s.shops.Get(id)
		if err != nil {
			errList = append(errList, err)
			continue
		}
		if err := s.saveShop(ctx, shop, nil); err != nil {
			s.logger.Error("Failed to persist rolled back shop", "shop_id", id, "error", err)
			errList = append(errList, errs.Wrapf(err, "persist shop %s after rollback", id))
		}
	}
	return errors.Join(errList...)
}

// Purchases lists a buyer's purchase history
func (s *Service) Purchases(ctx context.Context, userID uuid.UUID) ([]checkout.Purchase, error) {
	return s.purchases.ListByUser(ctx, userID)
}

// Sales lists the purchases made in a shop
func (s *Service) Sales(ctx context.Context, shopID uuid.UUID) ([]checkout.Purchase, error) {
	return s.purchases.ListByShop(ctx, shopID)
}

func failureReason(err error) string {
	var stockErr *errs.InsufficientStockError
	switch {
	case errors.As(err, &stockErr):
		return "insufficient_stock"
	case errors.Is(err, checkout.ErrPaymentFailed):
		return "payment"
	case errors.Is(err, checkout.ErrShippingFailed):
		return "shipping"
	case errors.Is(err, errs.ErrInvalidArgument):
		return "invalid_argument"
	case errors.Is(err, errs.ErrNotFound):
		return "not_found"
	case errors.Is(err, errs.ErrFailedPrecondition):
		return "failed_precondition"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "internal"
	}
}
