package market

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/floroz/bazaar/internal/domain/auction"
	"github.com/floroz/bazaar/internal/domain/checkout"
	"github.com/floroz/bazaar/internal/domain/goods"
	"github.com/floroz/bazaar/pkg/events"
)

// Event types, also used as routing keys
const (
	EventTypePurchaseCompleted = "purchase.completed"
	EventTypeBidPlaced         = "bid.placed"
	EventTypeAuctionFinalized  = "auction.finalized"
	EventTypeShopClosed        = "shop.closed"
)

// newOutboxEvent encodes fields as a protobuf Struct
func newOutboxEvent(eventType string, fields map[string]any, at time.Time) (*events.OutboxEvent, error) {
	fields["occurred_at"] = at.UTC().Format(time.RFC3339Nano)
	payload, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s payload: %w", eventType, err)
	}
	body, err := proto.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}
	return &events.OutboxEvent{
		ID:        uuid.New(),
		EventType: eventType,
		Payload:   body,
		Status:    events.OutboxStatusPending,
		CreatedAt: at,
	}, nil
}

func basketFields(items goods.Basket, prices goods.Prices) []any {
	out := make([]any, 0, len(items))
	for _, id := range items.ItemIDs() {
		line := map[string]any{
			"item_id":  id.String(),
			"quantity": items[id],
		}
		if prices != nil {
			line["unit_price"] = prices[id]
		}
		out = append(out, line)
	}
	return out
}

func purchaseCompletedEvent(p checkout.Purchase) (*events.OutboxEvent, error) {
	return newOutboxEvent(EventTypePurchaseCompleted, map[string]any{
		"purchase_id": p.ID.String(),
		"user_id":     p.UserID.String(),
		"shop_id":     p.ShopID.String(),
		"total":       p.Total,
		"payment_id":  p.PaymentID,
		"shipment_id": p.ShipmentID,
		"items":       basketFields(p.Items, p.UnitPrices),
	}, p.CompletedAt)
}

func bidPlacedEvent(bid auction.Bid) (*events.OutboxEvent, error) {
	return newOutboxEvent(EventTypeBidPlaced, map[string]any{
		"auction_id": bid.AuctionID.String(),
		"bidder_id":  bid.BidderID.String(),
		"amount":     bid.Amount,
	}, bid.PlacedAt)
}

func auctionFinalizedEvent(r auction.Receipt) (*events.OutboxEvent, error) {
	fields := map[string]any{
		"auction_id":    r.AuctionID.String(),
		"purchase_id":   r.PurchaseID.String(),
		"shop_id":       r.ShopID.String(),
		"seller_id":     r.SellerID.String(),
		"initial_price": r.InitialPrice,
		"highest_bid":   r.HighestBid,
		"sold":          r.HasWinner(),
		"items":         basketFields(r.Items, nil),
	}
	if r.HasWinner() {
		fields["winner_id"] = r.HighestBidderID.String()
	}
	return newOutboxEvent(EventTypeAuctionFinalized, fields, r.FinalizedAt)
}

func shopClosedEvent(shopID, ownerID uuid.UUID, at time.Time) (*events.OutboxEvent, error) {
	return newOutboxEvent(EventTypeShopClosed, map[string]any{
		"shop_id":  shopID.String(),
		"owner_id": ownerID.String(),
	}, at)
}
