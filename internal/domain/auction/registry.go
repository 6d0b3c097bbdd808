package auction

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/floroz/bazaar/pkg/clock"
)

// Registry is the in-memory auction store owned by one engine instance
type Registry struct {
	mu       sync.RWMutex
	auctions map[uuid.UUID]*Auction
	clock    clock.Clock
}

// NewRegistry creates an empty registry
func NewRegistry(c clock.Clock) *Registry {
	return &Registry{
		auctions: make(map[uuid.UUID]*Auction),
		clock:    c,
	}
}

// Open validates cmd and registers a new auction
func (r *Registry) Open(cmd OpenCommand) (*Auction, error) {
	a, err := New(cmd, r.clock)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.auctions[a.ID] = a
	return a, nil
}

// Get returns the auction with id
func (r *Registry) Get(id uuid.UUID) (*Auction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.auctions[id]
	if !ok {
		return nil, ErrAuctionNotFound
	}
	return a, nil
}

// List returns auctions ordered by end time
func (r *Registry) List() []*Auction {
	r.mu.RLock()
	out := make([]*Auction, 0, len(r.auctions))
	for _, a := range r.auctions {
		out = append(out, a)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		return out[i].EndAt.Before(out[j].EndAt)
	})
	return out
}

// Restore loads a persisted auction, replacing any in-memory copy
func (r *Registry) Restore(snap Snapshot) *Auction {
	a := Restore(snap, r.clock)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.auctions[a.ID] = a
	return a
}

// Add registers an auction built with New
func (r *Registry) Add(a *Auction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.auctions[a.ID] = a
}
