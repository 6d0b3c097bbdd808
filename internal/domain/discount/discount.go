// Package discount prices a basket against a shop's discount rules.
package discount

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/floroz/bazaar/internal/domain/goods"
	"github.com/floroz/bazaar/internal/domain/policy"
	"github.com/floroz/bazaar/pkg/errs"
)

// Kind selects which basket items a discount targets
type Kind string

const (
	KindGlobal   Kind = "global"
	KindItem     Kind = "item"
	KindCategory Kind = "category"
	KindBundle   Kind = "bundle"
)

// IsValid checks if the kind is known
func (k Kind) IsValid() bool {
	switch k {
	case KindGlobal, KindItem, KindCategory, KindBundle:
		return true
	default:
		return false
	}
}

var (
	ErrInvalidPercentage = fmt.Errorf("%w: discount percentage must be between 0 and 100", errs.ErrInvalidArgument)
	ErrInvalidKind       = fmt.Errorf("%w: unknown discount kind", errs.ErrInvalidArgument)
	ErrMissingTarget     = fmt.Errorf("%w: discount target is required", errs.ErrInvalidArgument)
	ErrEmptyBundle       = fmt.Errorf("%w: bundle must require at least one item", errs.ErrInvalidArgument)
	ErrDiscountNotFound  = fmt.Errorf("discount %w", errs.ErrNotFound)
)

// Spec describes a discount before validation. It is also the persisted form.
type Spec struct {
	Kind       Kind           `json:"kind"`
	Percentage int            `json:"percentage"`
	Stacking   bool           `json:"stacking"`
	ItemID     uuid.UUID      `json:"item_id,omitempty"`
	Category   goods.Category `json:"category,omitempty"`
	Bundle     goods.Basket   `json:"bundle,omitempty"`
	Policy     *policy.Node   `json:"policy,omitempty"`
}

// Scope identifies the rule a discount occupies within a shop. Setting a
// discount with an existing scope replaces the previous one.
type Scope struct {
	Kind   Kind
	Target string
}

func (s Scope) String() string {
	if s.Target == "" {
		return string(s.Kind)
	}
	return string(s.Kind) + ":" + s.Target
}

// Discount is a validated, immutable discount rule
type Discount struct {
	spec  Spec
	scope Scope
}

// New validates spec and returns an immutable discount
func New(spec Spec) (Discount, error) {
	if !spec.Kind.IsValid() {
		return Discount{}, fmt.Errorf("%w: %q", ErrInvalidKind, spec.Kind)
	}
	if spec.Percentage < 0 || spec.Percentage > 100 {
		return Discount{}, fmt.Errorf("%w: got %d", ErrInvalidPercentage, spec.Percentage)
	}
	switch spec.Kind {
	case KindItem:
		if spec.ItemID == uuid.Nil {
			return Discount{}, ErrMissingTarget
		}
	case KindCategory:
		if spec.Category == "" {
			return Discount{}, ErrMissingTarget
		}
	case KindBundle:
		if len(spec.Bundle) == 0 {
			return Discount{}, ErrEmptyBundle
		}
		if err := spec.Bundle.Validate(); err != nil {
			return Discount{}, err
		}
	}
	if err := spec.Policy.Validate(); err != nil {
		return Discount{}, err
	}

	d := Discount{spec: cloneSpec(spec)}
	d.scope = scopeOf(d.spec)
	return d, nil
}

// Global targets every item in the basket
func Global(percentage int, stacking bool, p *policy.Node) (Discount, error) {
	return New(Spec{Kind: KindGlobal, Percentage: percentage, Stacking: stacking, Policy: p})
}

// ForItem targets a single item
func ForItem(itemID uuid.UUID, percentage int, stacking bool, p *policy.Node) (Discount, error) {
	return New(Spec{Kind: KindItem, ItemID: itemID, Percentage: percentage, Stacking: stacking, Policy: p})
}

// ForCategory targets every item of a category
func ForCategory(category goods.Category, percentage int, stacking bool, p *policy.Node) (Discount, error) {
	return New(Spec{Kind: KindCategory, Category: category, Percentage: percentage, Stacking: stacking, Policy: p})
}

// ForBundle targets the required items, only when all of them are present in
// at least the required quantities
func ForBundle(required goods.Basket, percentage int, stacking bool, p *policy.Node) (Discount, error) {
	return New(Spec{Kind: KindBundle, Bundle: required, Percentage: percentage, Stacking: stacking, Policy: p})
}

func (d Discount) Kind() Kind { return d.spec.Kind }

func (d Discount) Percentage() int { return d.spec.Percentage }

func (d Discount) Stacking() bool { return d.spec.Stacking }

func (d Discount) Scope() Scope { return d.scope }

// Spec returns a deep copy of the rule for persistence
func (d Discount) Spec() Spec { return cloneSpec(d.spec) }

// eligible reports whether the attached policy accepts the original basket
func (d Discount) eligible(basket goods.Basket, prices goods.Prices, categories goods.Categories) bool {
	return policy.Evaluate(d.spec.Policy, basket, prices, categories)
}

// targets returns the basket items this discount reduces
func (d Discount) targets(basket goods.Basket, categories goods.Categories) []uuid.UUID {
	switch d.spec.Kind {
	case KindGlobal:
		return basket.ItemIDs()
	case KindItem:
		if _, ok := basket[d.spec.ItemID]; ok {
			return []uuid.UUID{d.spec.ItemID}
		}
	case KindCategory:
		var ids []uuid.UUID
		for _, id := range basket.ItemIDs() {
			if categories[id] == d.spec.Category {
				ids = append(ids, id)
			}
		}
		return ids
	case KindBundle:
		for id, required := range d.spec.Bundle {
			if basket[id] < required {
				return nil
			}
		}
		return d.spec.Bundle.ItemIDs()
	}
	return nil
}

// apply truncates toward zero: price * (100 - pct) / 100
func apply(price int64, pct int) int64 {
	return price * int64(100-pct) / 100
}

func scopeOf(spec Spec) Scope {
	switch spec.Kind {
	case KindItem:
		return Scope{Kind: KindItem, Target: spec.ItemID.String()}
	case KindCategory:
		return Scope{Kind: KindCategory, Target: string(spec.Category)}
	case KindBundle:
		ids := spec.Bundle.ItemIDs()
		parts := make([]string, len(ids))
		for i, id := range ids {
			parts[i] = id.String()
		}
		return Scope{Kind: KindBundle, Target: strings.Join(parts, ",")}
	default:
		return Scope{Kind: KindGlobal}
	}
}

func cloneSpec(s Spec) Spec {
	s.Bundle = s.Bundle.Clone()
	s.Policy = s.Policy.Clone()
	return s
}
