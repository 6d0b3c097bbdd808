// Package auction runs time-boxed auctions over items reserved from a shop.
package auction

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/floroz/bazaar/internal/domain/goods"
	"github.com/floroz/bazaar/pkg/clock"
	"github.com/floroz/bazaar/pkg/errs"
)

// Validation errors
var (
	ErrAuctionNotFound     = fmt.Errorf("auction %w", errs.ErrNotFound)
	ErrBidTooLow           = fmt.Errorf("bid amount must be higher than current highest bid")
	ErrInvalidBidAmount    = fmt.Errorf("%w: bid amount must be greater than 0", errs.ErrInvalidArgument)
	ErrInvalidInitialPrice = fmt.Errorf("%w: initial price must not be negative", errs.ErrInvalidArgument)
	ErrInvalidWindow       = fmt.Errorf("%w: auction must end after it starts", errs.ErrInvalidArgument)
	ErrInvalidBidder       = fmt.Errorf("%w: bidder is required", errs.ErrInvalidArgument)
	ErrNotFinalized        = fmt.Errorf("%w: auction has not been finalized", errs.ErrFailedPrecondition)
	ErrNotParticipant      = fmt.Errorf("%w: user did not bid in this auction", errs.ErrFailedPrecondition)
)

// validateBidAmount checks if the bid amount is higher than the current highest bid
func validateBidAmount(bidAmount, currentHighest int64) error {
	if bidAmount <= currentHighest {
		return ErrBidTooLow
	}
	return nil
}

// validateAuctionOpen checks the bid window and completion flag
func validateAuctionOpen(now, startAt, endAt time.Time, completed bool) error {
	if completed {
		return fmt.Errorf("%w: auction was finalized", errs.ErrEnded)
	}
	if now.Before(startAt) {
		return fmt.Errorf("%w: opens at %s", errs.ErrNotStarted, startAt.Format(time.RFC3339))
	}
	if now.After(endAt) {
		return fmt.Errorf("%w: closed at %s", errs.ErrEnded, endAt.Format(time.RFC3339))
	}
	return nil
}

// Auction tracks competing bids for one auction-style purchase
type Auction struct {
	ID           uuid.UUID
	ShopID       uuid.UUID
	SellerID     uuid.UUID
	PurchaseID   uuid.UUID
	InitialPrice int64
	StartAt      time.Time
	EndAt        time.Time
	CreatedAt    time.Time

	items goods.Basket
	clock clock.Clock

	mu              sync.Mutex
	highestBid      int64
	highestBidderID uuid.UUID
	bidders         map[uuid.UUID]struct{}
	completed       bool
	receipt         *Receipt
}

// New validates cmd and creates a scheduled or open auction
func New(cmd OpenCommand, c clock.Clock) (*Auction, error) {
	if cmd.InitialPrice < 0 {
		return nil, ErrInvalidInitialPrice
	}
	if !cmd.EndAt.After(cmd.StartAt) {
		return nil, ErrInvalidWindow
	}
	if err := cmd.Items.Validate(); err != nil {
		return nil, err
	}
	purchaseID := cmd.PurchaseID
	if purchaseID == uuid.Nil {
		purchaseID = uuid.New()
	}
	return &Auction{
		ID:           uuid.New(),
		ShopID:       cmd.ShopID,
		SellerID:     cmd.SellerID,
		PurchaseID:   purchaseID,
		InitialPrice: cmd.InitialPrice,
		StartAt:      cmd.StartAt,
		EndAt:        cmd.EndAt,
		CreatedAt:    c.Now(),
		items:        cmd.Items.Clone(),
		clock:        c,
		highestBid:   cmd.InitialPrice,
		bidders:      make(map[uuid.UUID]struct{}),
	}, nil
}

// Items returns the auctioned quantities
func (a *Auction) Items() goods.Basket {
	return a.items.Clone()
}

// State reports the phase at the current clock time
func (a *Auction) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	now := a.clock.Now()
	switch {
	case a.completed || now.After(a.EndAt):
		return StateClosed
	case now.Before(a.StartAt):
		return StateScheduled
	default:
		return StateOpen
	}
}

// PlaceBid records amount from bidderID when it beats the highest bid.
// Lower or equal bids are ignored and reported with Accepted false.
func (a *Auction) PlaceBid(bidderID uuid.UUID, amount int64) (Bid, error) {
	if bidderID == uuid.Nil {
		return Bid{}, ErrInvalidBidder
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.clock.Now()
	if err := validateAuctionOpen(now, a.StartAt, a.EndAt, a.completed); err != nil {
		return Bid{}, err
	}
	if amount <= 0 {
		return Bid{}, ErrInvalidBidAmount
	}

	bid := Bid{AuctionID: a.ID, BidderID: bidderID, Amount: amount, PlacedAt: now}
	if err := validateBidAmount(amount, a.highestBid); err != nil {
		return bid, nil
	}
	a.highestBid = amount
	a.highestBidderID = bidderID
	a.bidders[bidderID] = struct{}{}
	bid.Accepted = true
	return bid, nil
}

// HighestBid returns the current highest amount and bidder (uuid.Nil when none)
func (a *Auction) HighestBid() (int64, uuid.UUID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.highestBid, a.highestBidderID
}

// Bidders returns every bidder whose bid was accepted at least once
func (a *Auction) Bidders() []uuid.UUID {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]uuid.UUID, 0, len(a.bidders))
	for id := range a.bidders {
		out = append(out, id)
	}
	goods.SortIDs(out)
	return out
}

// Finalize closes the auction and produces its receipt. Only the first call
// succeeds; later calls fail with errs.ErrAlreadyCompleted.
func (a *Auction) Finalize() (Receipt, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.completed {
		return Receipt{}, errs.ErrAlreadyCompleted
	}
	a.completed = true
	a.receipt = &Receipt{
		AuctionID:       a.ID,
		PurchaseID:      a.PurchaseID,
		ShopID:          a.ShopID,
		SellerID:        a.SellerID,
		Items:           a.items.Clone(),
		InitialPrice:    a.InitialPrice,
		HighestBid:      a.highestBid,
		HighestBidderID: a.highestBidderID,
		EndAt:           a.EndAt,
		FinalizedAt:     a.clock.Now(),
	}
	return a.receipt.clone(), nil
}

// Receipt returns a copy of the final receipt
func (a *Auction) Receipt() (Receipt, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.receipt == nil {
		return Receipt{}, ErrNotFinalized
	}
	return a.receipt.clone(), nil
}

// ReceiptFor returns the shared receipt annotated for one bidder
func (a *Auction) ReceiptFor(bidderID uuid.UUID) (BidderReceipt, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.receipt == nil {
		return BidderReceipt{}, ErrNotFinalized
	}
	if _, ok := a.bidders[bidderID]; !ok {
		return BidderReceipt{}, ErrNotParticipant
	}
	return BidderReceipt{
		Receipt:  a.receipt.clone(),
		BidderID: bidderID,
		Won:      a.receipt.HighestBidderID == bidderID,
	}, nil
}

// Snapshot copies the auction for persistence
func (a *Auction) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	bidders := make([]uuid.UUID, 0, len(a.bidders))
	for id := range a.bidders {
		bidders = append(bidders, id)
	}
	goods.SortIDs(bidders)

	var finalizedAt *time.Time
	if a.receipt != nil {
		at := a.receipt.FinalizedAt
		finalizedAt = &at
	}
	return Snapshot{
		ID:              a.ID,
		ShopID:          a.ShopID,
		SellerID:        a.SellerID,
		PurchaseID:      a.PurchaseID,
		Items:           a.items.Clone(),
		InitialPrice:    a.InitialPrice,
		StartAt:         a.StartAt,
		EndAt:           a.EndAt,
		CreatedAt:       a.CreatedAt,
		HighestBid:      a.highestBid,
		HighestBidderID: a.highestBidderID,
		Bidders:         bidders,
		Completed:       a.completed,
		FinalizedAt:     finalizedAt,
	}
}

// Restore rebuilds an auction from a snapshot
func Restore(snap Snapshot, c clock.Clock) *Auction {
	a := &Auction{
		ID:              snap.ID,
		ShopID:          snap.ShopID,
		SellerID:        snap.SellerID,
		PurchaseID:      snap.PurchaseID,
		InitialPrice:    snap.InitialPrice,
		StartAt:         snap.StartAt,
		EndAt:           snap.EndAt,
		CreatedAt:       snap.CreatedAt,
		items:           snap.Items.Clone(),
		clock:           c,
		highestBid:      snap.HighestBid,
		highestBidderID: snap.HighestBidderID,
		bidders:         make(map[uuid.UUID]struct{}, len(snap.Bidders)),
		completed:       snap.Completed,
	}
	for _, id := range snap.Bidders {
		a.bidders[id] = struct{}{}
	}
	if snap.Completed {
		finalizedAt := snap.EndAt
		if snap.FinalizedAt != nil {
			finalizedAt = *snap.FinalizedAt
		}
		a.receipt = &Receipt{
			AuctionID:       a.ID,
			PurchaseID:      a.PurchaseID,
			ShopID:          a.ShopID,
			SellerID:        a.SellerID,
			Items:           a.items.Clone(),
			InitialPrice:    a.InitialPrice,
			HighestBid:      a.highestBid,
			HighestBidderID: a.highestBidderID,
			EndAt:           a.EndAt,
			FinalizedAt:     finalizedAt,
		}
	}
	return a
}
