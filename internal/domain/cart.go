package domain

import (
	"errors"
	"fmt"
)

// ErrInvalidCartState is returned by CartState.Validate.
var ErrInvalidCartState = errors.New("invalid cart state")

// Limits applied to every cart.
const (
	// MaxQuantityPerItem caps the quantity of a single line.
	MaxQuantityPerItem = 99
	// MaxItems caps the number of distinct lines.
	MaxItems = 50
)

// Product is the snapshot of a catalog product taken when it is put in the
// cart. Later catalog changes never reach an existing line.
type Product struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Price  int64    `json:"price"`
	Images []string `json:"images"`
}

// LineItem is one (product, quantity) pair. Quantity is always >= 1.
type LineItem struct {
	Product  Product `json:"product"`
	Quantity int     `json:"quantity"`
}

// LineTotal returns price * quantity in minor units.
func (l LineItem) LineTotal() int64 {
	return l.Product.Price * int64(l.Quantity)
}

// CartState is the full content of a cart and the persisted record shape.
// Lines keep insertion order and there is at most one line per product ID.
type CartState struct {
	Items []LineItem `json:"items"`
}

// TotalPrice is the sum of price * quantity over all lines, in minor units.
func (s CartState) TotalPrice() int64 {
	var total int64
	for _, item := range s.Items {
		total += item.LineTotal()
	}
	return total
}

// TotalItems is the sum of all quantities.
func (s CartState) TotalItems() int {
	var count int
	for _, item := range s.Items {
		count += item.Quantity
	}
	return count
}

// IsEmpty reports whether the cart has no lines.
func (s CartState) IsEmpty() bool {
	return len(s.Items) == 0
}

// FindItemIndex returns the index of the line for productID, or -1.
func (s CartState) FindItemIndex(productID string) int {
	for i := range s.Items {
		if s.Items[i].Product.ID == productID {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy, including each product's image slice. Items is
// never nil in the copy so it always encodes as a JSON array.
func (s CartState) Clone() CartState {
	items := make([]LineItem, len(s.Items))
	for i, item := range s.Items {
		items[i] = item
		if item.Product.Images != nil {
			items[i].Product.Images = append([]string(nil), item.Product.Images...)
		}
	}
	return CartState{Items: items}
}

// Validate checks the invariants of a loaded record before it is trusted.
func (s CartState) Validate() error {
	if len(s.Items) > MaxItems {
		return fmt.Errorf("%w: %d lines", ErrInvalidCartState, len(s.Items))
	}
	seen := make(map[string]struct{}, len(s.Items))
	for _, item := range s.Items {
		if item.Product.ID == "" {
			return fmt.Errorf("%w: line without product id", ErrInvalidCartState)
		}
		if _, dup := seen[item.Product.ID]; dup {
			return fmt.Errorf("%w: duplicate line for product %s", ErrInvalidCartState, item.Product.ID)
		}
		seen[item.Product.ID] = struct{}{}
		if item.Quantity < 1 || item.Quantity > MaxQuantityPerItem {
			return fmt.Errorf("%w: quantity %d for product %s", ErrInvalidCartState, item.Quantity, item.Product.ID)
		}
		if item.Product.Price < 0 {
			return fmt.Errorf("%w: negative price for product %s", ErrInvalidCartState, item.Product.ID)
		}
	}
	return nil
}
