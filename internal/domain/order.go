package domain

import (
	"slices"
	"time"
)

// Order status constants.
const (
	OrderStatusNew       = "new"
	OrderStatusProcessed = "processed"
)

// Order is a submitted cart. CustomerPhone is always in +7XXXXXXXXXX form.
type Order struct {
	ID            string      `json:"id"`
	CustomerName  string      `json:"customer_name"`
	CustomerPhone string      `json:"customer_phone"`
	TotalPrice    int64       `json:"total_price"`
	Status        string      `json:"status"`
	Items         []OrderItem `json:"items"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// ValidStatuses returns all order statuses.
func ValidStatuses() []string {
	return []string{OrderStatusNew, OrderStatusProcessed}
}

// IsValidStatus checks if a status string is valid.
func IsValidStatus(status string) bool {
	return slices.Contains(ValidStatuses(), status)
}

// AllowedTransitions lists the statuses each status may move to. Processed
// orders can be reopened.
func AllowedTransitions() map[string][]string {
	return map[string][]string{
		OrderStatusNew:       {OrderStatusProcessed},
		OrderStatusProcessed: {OrderStatusNew},
	}
}

// CanTransitionTo checks if the order can move to target.
func (o *Order) CanTransitionTo(target string) bool {
	return slices.Contains(AllowedTransitions()[o.Status], target)
}

// ItemsTotal recomputes the total from the lines.
func (o *Order) ItemsTotal() int64 {
	var total int64
	for i := range o.Items {
		total += o.Items[i].LineTotal()
	}
	return total
}
