package domain

// OrderItem is one order line. PriceAtPurchase is the snapshot price from the
// cart, never a live catalog lookup.
type OrderItem struct {
	ID              string `json:"id"`
	OrderID         string `json:"order_id"`
	ProductID       string `json:"product_id"`
	ProductName     string `json:"product_name"`
	Quantity        int    `json:"quantity"`
	PriceAtPurchase int64  `json:"price_at_purchase"`
}

// LineTotal returns the total price for this line.
func (i *OrderItem) LineTotal() int64 {
	return i.PriceAtPurchase * int64(i.Quantity)
}
