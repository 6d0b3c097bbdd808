package shops

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/floroz/bazaar/pkg/clock"
)

// Registry is the in-memory shop store owned by one engine instance
type Registry struct {
	mu    sync.RWMutex
	shops map[uuid.UUID]*Shop
	clock clock.Clock
}

// NewRegistry creates an empty registry
func NewRegistry(c clock.Clock) *Registry {
	return &Registry{
		shops: make(map[uuid.UUID]*Shop),
		clock: c,
	}
}

// Create opens a new shop
func (r *Registry) Create(name string, ownerID uuid.UUID) (*Shop, error) {
	s, err := New(uuid.New(), name, ownerID, r.clock.Now())
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shops[s.ID] = s
	return s, nil
}

// Get returns the shop with id
func (r *Registry) Get(id uuid.UUID) (*Shop, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.shops[id]
	if !ok {
		return nil, ErrShopNotFound
	}
	return s, nil
}

// List returns every shop ordered by creation time
func (r *Registry) List() []*Shop {
	r.mu.RLock()
	out := make([]*Shop, 0, len(r.shops))
	for _, s := range r.shops {
		out = append(out, s)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Restore loads a persisted shop, replacing any in-memory copy
func (r *Registry) Restore(snap Snapshot) (*Shop, error) {
	s, err := Restore(snap)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shops[s.ID] = s
	return s, nil
}
