package shops

import (
	"time"

	"github.com/google/uuid"

	"github.com/floroz/bazaar/internal/domain/discount"
	"github.com/floroz/bazaar/internal/domain/goods"
	"github.com/floroz/bazaar/internal/domain/stock"
)

// ItemSnapshot is the persisted state of one stock entry
type ItemSnapshot struct {
	ItemID   uuid.UUID
	Quantity int
	Price    int64
	Category goods.Category
}

// Snapshot is a detached copy of a shop used by the persistence layer
type Snapshot struct {
	ID        uuid.UUID
	Name      string
	OwnerID   uuid.UUID
	Closed    bool
	CreatedAt time.Time
	Items     []ItemSnapshot
	Discounts []discount.Spec
	Reviews   []Review
}

// Snapshot copies the current shop state
func (s *Shop) Snapshot() Snapshot {
	entries := s.stock.Snapshot()
	ids := make([]uuid.UUID, len(entries))
	for i, e := range entries {
		ids[i] = e.ItemID
	}
	cats := s.Categories(ids)

	items := make([]ItemSnapshot, len(entries))
	for i, e := range entries {
		items[i] = ItemSnapshot{ItemID: e.ItemID, Quantity: e.Quantity, Price: e.Price, Category: cats[e.ItemID]}
	}

	rules := s.discounts.List()
	specs := make([]discount.Spec, len(rules))
	for i, d := range rules {
		specs[i] = d.Spec()
	}

	return Snapshot{
		ID:        s.ID,
		Name:      s.Name,
		OwnerID:   s.OwnerID,
		Closed:    s.IsClosed(),
		CreatedAt: s.CreatedAt,
		Items:     items,
		Discounts: specs,
		Reviews:   s.Reviews(),
	}
}

// Restore rebuilds a shop from a snapshot, validating every discount again
func Restore(snap Snapshot) (*Shop, error) {
	entries := make([]stock.Entry, len(snap.Items))
	for i, it := range snap.Items {
		entries[i] = stock.Entry{ItemID: it.ItemID, Quantity: it.Quantity, Price: it.Price}
	}
	st, err := stock.Load(entries)
	if err != nil {
		return nil, err
	}

	rules := make([]discount.Discount, 0, len(snap.Discounts))
	for _, spec := range snap.Discounts {
		d, err := discount.New(spec)
		if err != nil {
			return nil, err
		}
		rules = append(rules, d)
	}

	s := assemble(snap.ID, snap.Name, snap.OwnerID, snap.CreatedAt, st, discount.NewSet(rules...))
	for _, it := range snap.Items {
		if it.Category != "" {
			s.categories[it.ItemID] = it.Category
		}
	}
	s.reviews = append(s.reviews, snap.Reviews...)
	s.closed.Store(snap.Closed)
	return s, nil
}
