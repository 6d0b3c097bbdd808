// Package policy evaluates purchase predicates over a proposed basket.
//
// A policy is a binary tree. Leaves test one condition (item quantity,
// category quantity or basket value); composites combine two children with
// AND, OR or XOR. Trees are plain data so they can be stored and compared.
package policy

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/floroz/bazaar/internal/domain/goods"
	"github.com/floroz/bazaar/pkg/errs"
)

// Kind selects which condition a node tests
type Kind string

const (
	KindEmpty            Kind = ""
	KindItemQuantity     Kind = "item_quantity"
	KindCategoryQuantity Kind = "category_quantity"
	KindBasketValue      Kind = "basket_value"
	KindComposite        Kind = "composite"
)

// Operator combines the two children of a composite node
type Operator string

const (
	OperatorAnd Operator = "and"
	OperatorOr  Operator = "or"
	OperatorXor Operator = "xor"
)

// IsValid checks if the operator is known
func (o Operator) IsValid() bool {
	switch o {
	case OperatorAnd, OperatorOr, OperatorXor:
		return true
	default:
		return false
	}
}

var (
	ErrInvalidThreshold = fmt.Errorf("%w: policy threshold must not be negative", errs.ErrInvalidArgument)
	ErrInvalidOperator  = fmt.Errorf("%w: unknown policy operator", errs.ErrInvalidArgument)
	ErrInvalidNode      = fmt.Errorf("%w: malformed policy node", errs.ErrInvalidArgument)
)

// Node is a leaf condition or a composite of two nodes
type Node struct {
	Kind      Kind           `json:"kind,omitempty"`
	ItemID    uuid.UUID      `json:"item_id,omitempty"`
	Category  goods.Category `json:"category,omitempty"`
	Threshold int64          `json:"threshold,omitempty"`
	Operator  Operator       `json:"operator,omitempty"`
	Left      *Node          `json:"left,omitempty"`
	Right     *Node          `json:"right,omitempty"`
}

// MinItemQuantity is true when the basket holds at least n units of itemID
func MinItemQuantity(itemID uuid.UUID, n int) *Node {
	return &Node{Kind: KindItemQuantity, ItemID: itemID, Threshold: int64(n)}
}

// MinCategoryQuantity is true when the basket holds at least n units across category
func MinCategoryQuantity(category goods.Category, n int) *Node {
	return &Node{Kind: KindCategoryQuantity, Category: category, Threshold: int64(n)}
}

// MinBasketValue is true when the undiscounted basket value is at least value
func MinBasketValue(value int64) *Node {
	return &Node{Kind: KindBasketValue, Threshold: value}
}

func And(left, right *Node) *Node { return Composite(OperatorAnd, left, right) }
func Or(left, right *Node) *Node { return Composite(OperatorOr, left, right) }
func Xor(left, right *Node) *Node { return Composite(OperatorXor, left, right) }

// Composite combines two nodes; either child may be nil
func Composite(op Operator, left, right *Node) *Node {
	return &Node{Kind: KindComposite, Operator: op, Left: left, Right: right}
}

// Validate checks the whole tree. A nil tree is valid and always true.
func (n *Node) Validate() error {
	if n == nil {
		return nil
	}
	switch n.Kind {
	case KindEmpty:
		return nil
	case KindItemQuantity:
		if n.ItemID == uuid.Nil {
			return fmt.Errorf("%w: item condition without item id", ErrInvalidNode)
		}
		return n.validateThreshold()
	case KindCategoryQuantity:
		if n.Category == "" {
			return fmt.Errorf("%w: category condition without category", ErrInvalidNode)
		}
		return n.validateThreshold()
	case KindBasketValue:
		return n.validateThreshold()
	case KindComposite:
		if !n.Operator.IsValid() {
			return fmt.Errorf("%w: %q", ErrInvalidOperator, n.Operator)
		}
		if err := n.Left.Validate(); err != nil {
			return err
		}
		return n.Right.Validate()
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidNode, n.Kind)
	}
}

func (n *Node) validateThreshold() error {
	if n.Threshold < 0 {
		return ErrInvalidThreshold
	}
	return nil
}

// Clone deep-copies the tree
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	c := *n
	c.Left = n.Left.Clone()
	c.Right = n.Right.Clone()
	return &c
}

// Evaluate reports whether the basket satisfies the tree. Prices are the
// undiscounted unit prices used for basket value conditions.
//
// A nil tree and an empty leaf are true. A composite whose child is missing
// evaluates as the present child, and as true when both are missing; the
// rule is the same for every operator.
func Evaluate(n *Node, basket goods.Basket, prices goods.Prices, categories goods.Categories) bool {
	if n == nil {
		return true
	}
	switch n.Kind {
	case KindItemQuantity:
		return int64(basket[n.ItemID]) >= n.Threshold
	case KindCategoryQuantity:
		return int64(basket.CategoryQuantity(categories, n.Category)) >= n.Threshold
	case KindBasketValue:
		return basket.Value(prices) >= n.Threshold
	case KindComposite:
		switch {
		case n.Left == nil && n.Right == nil:
			return true
		case n.Left == nil:
			return Evaluate(n.Right, basket, prices, categories)
		case n.Right == nil:
			return Evaluate(n.Left, basket, prices, categories)
		}
		left := Evaluate(n.Left, basket, prices, categories)
		right := Evaluate(n.Right, basket, prices, categories)
		switch n.Operator {
		case OperatorAnd:
			return left && right
		case OperatorOr:
			return left || right
		case OperatorXor:
			return left != right
		}
		return false
	default:
		return true
	}
}
