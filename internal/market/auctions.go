package market

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/floroz/bazaar/internal/domain/auction"
	"github.com/floroz/bazaar/pkg/database"
	"github.com/floroz/bazaar/pkg/errs"
	"github.com/floroz/bazaar/pkg/events"
)

// OpenAuction reserves the auctioned items in the seller's shop and opens
// the auction. The reservation is held until the auction is finalized. The
// auction becomes visible only once its stock is held and persisted.
func (s *Service) OpenAuction(ctx context.Context, cmd auction.OpenCommand) (*auction.Auction, error) {
	shop, err := s.shops.Get(cmd.ShopID)
	if err != nil {
		return nil, err
	}
	if shop.OwnerID != cmd.SellerID {
		return nil, ErrNotSeller
	}
	a, err := auction.New(cmd, s.clock)
	if err != nil {
		return nil, err
	}

	unlock := s.lockAll([]uuid.UUID{shop.ID, a.ID})
	defer unlock()

	r, err := shop.Reserve(cmd.Items)
	if err != nil {
		return nil, err
	}
	err = database.WithTx(ctx, s.txManager, func(tx pgx.Tx) error {
		if err := s.shopRepo.SaveShop(ctx, tx, shop.Snapshot()); err != nil {
			return err
		}
		return s.auctionRepo.SaveAuction(ctx, tx, a.Snapshot())
	})
	if err != nil {
		failure := errs.Wrap(err, "persist auction")
		if rbErr := shop.Rollback(r); rbErr != nil {
			return nil, errs.Combine(failure, rbErr)
		}
		// a snapshot taken while the hold was pending may already be stored
		return nil, errs.Combine(failure, s.persistShop(context.WithoutCancel(ctx), shop, nil))
	}

	s.heldMu.Lock()
	s.held[a.ID] = r
	s.heldMu.Unlock()
	s.auctions.Add(a)
	return a, nil
}

// PlaceBid forwards the bid to the auction. Accepted bids are persisted with
// a bid.placed event; ignored bids leave no trace.
func (s *Service) PlaceBid(ctx context.Context, cmd auction.PlaceBidCommand) (auction.Bid, error) {
	a, err := s.auctions.Get(cmd.AuctionID)
	if err != nil {
		return auction.Bid{}, err
	}
	if cmd.BidderID == a.SellerID {
		return auction.Bid{}, ErrSellerCannotBid
	}

	unlock := s.lock(a.ID)
	defer unlock()

	bid, err := a.PlaceBid(cmd.BidderID, cmd.Amount)
	if err != nil {
		return auction.Bid{}, err
	}
	s.metrics.BidPlaced(bid.Accepted)
	if !bid.Accepted {
		return bid, nil
	}

	err = database.WithTx(ctx, s.txManager, func(tx pgx.Tx) error {
		if err := s.auctionRepo.SaveAuction(ctx, tx, a.Snapshot()); err != nil {
			return err
		}
		return s.saveEvent(ctx, tx, func() (*events.OutboxEvent, error) {
			return bidPlacedEvent(bid)
		})
	})
	if err != nil {
		return bid, errs.Wrap(err, "persist bid")
	}
	return bid, nil
}

// FinalizeAuction closes the auction for its seller and settles the held
// stock: sold items leave the shop, unsold items go back on its shelves.
func (s *Service) FinalizeAuction(ctx context.Context, auctionID, sellerID uuid.UUID) (auction.Receipt, error) {
	a, err := s.auctions.Get(auctionID)
	if err != nil {
		return auction.Receipt{}, err
	}
	if a.SellerID != sellerID {
		return auction.Receipt{}, ErrNotSeller
	}
	shop, err := s.shops.Get(a.ShopID)
	if err != nil {
		return auction.Receipt{}, err
	}

	unlock := s.lockAll([]uuid.UUID{shop.ID, a.ID})
	defer unlock()

	receipt, err := a.Finalize()
	if err != nil {
		return auction.Receipt{}, err
	}
	s.metrics.AuctionFinalized(receipt.HasWinner())

	if err := s.settle(a.ID, receipt); err != nil {
		return receipt, errs.Wrap(err, "settle auction stock")
	}

	err = database.WithTx(ctx, s.txManager, func(tx pgx.Tx) error {
		if err := s.shopRepo.SaveShop(ctx, tx, shop.Snapshot()); err != nil {
			return err
		}
		if err := s.auctionRepo.SaveAuction(ctx, tx, a.Snapshot()); err != nil {
			return err
		}
		return s.saveEvent(ctx, tx, func() (*events.OutboxEvent, error) {
			return auctionFinalizedEvent(receipt)
		})
	})
	if err != nil {
		return receipt, errs.Wrap(err, "persist auction receipt")
	}

	if s.cache != nil {
		if err := s.cache.Put(ctx, receipt); err != nil {
			s.logger.Warn("Failed to cache receipt", "auction_id", receipt.AuctionID, "error", err)
		}
	}
	return receipt, nil
}

// settle commits or rolls back the reservation taken when the auction opened.
// Auctions restored from storage no longer hold a reservation object; their
// unsold items are returned with ReturnStock.
func (s *Service) settle(auctionID uuid.UUID, receipt auction.Receipt) error {
	s.heldMu.Lock()
	r, ok := s.held[auctionID]
	delete(s.held, auctionID)
	s.heldMu.Unlock()

	shop, err := s.shops.Get(receipt.ShopID)
	if err != nil {
		return err
	}
	switch {
	case ok && receipt.HasWinner():
		return shop.Commit(r)
	case ok:
		return shop.Rollback(r)
	case receipt.HasWinner():
		return nil
	default:
		return shop.ReturnStock(receipt.Items)
	}
}

// Receipt returns the final receipt, preferring the cache
func (s *Service) Receipt(ctx context.Context, auctionID uuid.UUID) (auction.Receipt, error) {
	if s.cache != nil {
		receipt, err := s.cache.Get(ctx, auctionID)
		if err == nil {
			return receipt, nil
		}
	}
	a, err := s.auctions.Get(auctionID)
	if err != nil {
		return auction.Receipt{}, err
	}
	return a.Receipt()
}

// BidderReceipt returns the receipt as seen by one participant
func (s *Service) BidderReceipt(auctionID, bidderID uuid.UUID) (auction.BidderReceipt, error) {
	a, err := s.auctions.Get(auctionID)
	if err != nil {
		return auction.BidderReceipt{}, err
	}
	return a.ReceiptFor(bidderID)
}
