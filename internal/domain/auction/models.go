package auction

import (
	"time"

	"github.com/google/uuid"

	"github.com/floroz/bazaar/internal/domain/goods"
)

// State is the phase of an auction relative to its window
type State string

const (
	StateScheduled State = "scheduled"
	StateOpen      State = "open"
	StateClosed    State = "closed"
)

// OpenCommand represents the command to open an auction over reserved items
type OpenCommand struct {
	ShopID       uuid.UUID
	SellerID     uuid.UUID
	PurchaseID   uuid.UUID
	Items        goods.Basket
	InitialPrice int64 // in cents
	StartAt      time.Time
	EndAt        time.Time
}

// PlaceBidCommand represents the command to place a bid
type PlaceBidCommand struct {
	AuctionID uuid.UUID
	BidderID  uuid.UUID
	Amount    int64
}

// Bid is the outcome of one PlaceBid call
type Bid struct {
	AuctionID uuid.UUID
	BidderID  uuid.UUID
	Amount    int64
	Accepted  bool
	PlacedAt  time.Time
}

// Receipt is the immutable result of a finalized auction
type Receipt struct {
	AuctionID       uuid.UUID
	PurchaseID      uuid.UUID
	ShopID          uuid.UUID
	SellerID        uuid.UUID
	Items           goods.Basket
	InitialPrice    int64
	HighestBid      int64
	HighestBidderID uuid.UUID // uuid.Nil when nobody bid
	EndAt           time.Time
	FinalizedAt     time.Time
}

// HasWinner reports whether any bid was accepted
func (r Receipt) HasWinner() bool {
	return r.HighestBidderID != uuid.Nil
}

func (r Receipt) clone() Receipt {
	r.Items = r.Items.Clone()
	return r
}

// BidderReceipt is the receipt as seen by one participant
type BidderReceipt struct {
	Receipt
	BidderID uuid.UUID
	Won      bool
}

// Snapshot is the persisted form of an auction
type Snapshot struct {
	ID              uuid.UUID
	ShopID          uuid.UUID
	SellerID        uuid.UUID
	PurchaseID      uuid.UUID
	Items           goods.Basket
	InitialPrice    int64
	StartAt         time.Time
	EndAt           time.Time
	CreatedAt       time.Time
	HighestBid      int64
	HighestBidderID uuid.UUID
	Bidders         []uuid.UUID
	Completed       bool
	FinalizedAt     *time.Time
}
