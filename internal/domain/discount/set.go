package discount

import (
	"slices"
	"sync"
	"sync/atomic"

	"github.com/floroz/bazaar/internal/domain/goods"
)

// Set holds the discount rules of one shop. Readers load an immutable slice;
// writers publish a new slice, so a concurrent Price sees either the old or
// the new rule set in full.
type Set struct {
	mu    sync.Mutex // serializes writers
	rules atomic.Pointer[[]Discount]
}

// NewSet creates a set; later discounts replace earlier ones with the same scope
func NewSet(discounts ...Discount) *Set {
	s := &Set{}
	empty := []Discount{}
	s.rules.Store(&empty)
	for _, d := range discounts {
		s.Put(d)
	}
	return s
}

func (s *Set) load() []Discount {
	return *s.rules.Load()
}

// Put adds d, replacing the discount with the same scope in place.
// It reports whether a previous discount was replaced.
func (s *Set) Put(d Discount) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.load()
	next := make([]Discount, 0, len(cur)+1)
	replaced := false
	for _, existing := range cur {
		if existing.Scope() == d.Scope() {
			next = append(next, d)
			replaced = true
			continue
		}
		next = append(next, existing)
	}
	if !replaced {
		next = append(next, d)
	}
	s.rules.Store(&next)
	return replaced
}

// Remove deletes the discount with scope
func (s *Set) Remove(scope Scope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.load()
	idx := slices.IndexFunc(cur, func(d Discount) bool { return d.Scope() == scope })
	if idx < 0 {
		return ErrDiscountNotFound
	}
	next := slices.Delete(slices.Clone(cur), idx, idx+1)
	s.rules.Store(&next)
	return nil
}

// List returns the current rules in application order
func (s *Set) List() []Discount {
	return slices.Clone(s.load())
}

// Len returns the number of rules
func (s *Set) Len() int {
	return len(s.load())
}

// Price prices basket against a single consistent view of the rules
func (s *Set) Price(basket goods.Basket, prices goods.Prices, categories goods.Categories) (Quote, error) {
	return Price(basket, prices, categories, s.load())
}
