package carts

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/floroz/bazaar/internal/domain/checkout"
	"github.com/floroz/bazaar/internal/domain/goods"
)

// MemoryCartStore keeps carts in process memory. It is used when no Redis
// address is configured.
type MemoryCartStore struct {
	mu    sync.Mutex
	carts map[uuid.UUID]checkout.Cart
}

func NewMemoryCartStore() *MemoryCartStore {
	return &MemoryCartStore{carts: make(map[uuid.UUID]checkout.Cart)}
}

func (s *MemoryCartStore) Add(_ context.Context, userID, shopID, itemID uuid.UUID, qty int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cart, ok := s.carts[userID]
	if !ok {
		cart = checkout.Cart{}
		s.carts[userID] = cart
	}
	if cart[shopID] == nil {
		cart[shopID] = goods.Basket{}
	}
	cart[shopID][itemID] += qty
	return nil
}

func (s *MemoryCartStore) Cart(_ context.Context, userID uuid.UUID) (checkout.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cart := s.carts[userID].Clone()
	if cart == nil {
		cart = checkout.Cart{}
	}
	return cart, nil
}

func (s *MemoryCartStore) Clear(_ context.Context, userID uuid.UUID, shopIDs []uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range shopIDs {
		delete(s.carts[userID], id)
	}
	return nil
}

func (s *MemoryCartStore) Restore(_ context.Context, userID uuid.UUID, cart checkout.Cart) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.carts[userID] = cart.Clone()
	return nil
}
