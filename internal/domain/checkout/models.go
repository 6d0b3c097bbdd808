package checkout

import (
	"time"

	"github.com/google/uuid"

	"github.com/floroz/bazaar/internal/domain/goods"
)

// Cart maps shop id to the basket the user intends to buy there
type Cart map[uuid.UUID]goods.Basket

// ShopIDs returns the shops in the cart in ascending id order
func (c Cart) ShopIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(c))
	for id, basket := range c {
		if len(basket) > 0 {
			ids = append(ids, id)
		}
	}
	goods.SortIDs(ids)
	return ids
}

// Clone returns a deep copy
func (c Cart) Clone() Cart {
	if c == nil {
		return nil
	}
	out := make(Cart, len(c))
	for id, basket := range c {
		out[id] = basket.Clone()
	}
	return out
}

// PaymentDetails is passed through to the payment gateway untouched
type PaymentDetails struct {
	Currency   string
	CardNumber string
	ExpMonth   string
	ExpYear    string
	Holder     string
	CVV        string
	HolderID   string
}

// Address is passed through to the shipper untouched
type Address struct {
	Name    string
	Country string
	City    string
	Street  string
	ZipCode string
}

// Command represents the command to check out a user's cart
type Command struct {
	UserID  uuid.UUID
	Payment PaymentDetails
	Address Address
	// ShopID restricts the checkout to one shop's basket when set
	ShopID uuid.UUID
}

// Charge is one per-shop payment request
type Charge struct {
	UserID  uuid.UUID
	ShopID  uuid.UUID
	Amount  int64
	Payment PaymentDetails
}

// Shipment is one per-shop delivery request
type Shipment struct {
	UserID     uuid.UUID
	ShopID     uuid.UUID
	PurchaseID uuid.UUID
	Items      goods.Basket
	Address    Address
}

// Purchase is the record of one completed shop checkout
type Purchase struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	ShopID      uuid.UUID
	Items       goods.Basket
	UnitPrices  goods.Prices
	Total       int64
	PaymentID   string
	ShipmentID  string
	CompletedAt time.Time
}
