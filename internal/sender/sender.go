// Package sender turns shop events into chat messages and delivers them.
package sender

import (
	"context"
	"fmt"
	"time"

	"github.com/utafrali/furnishop/internal/domain"
)

// Sender delivers one HTML-formatted message to the shop's chat.
type Sender interface {
	Name() string
	Send(ctx context.Context, text string) error
}

// Notifier formats orders and contact requests and hands them to a Sender.
type Notifier struct {
	sender Sender
	loc    *time.Location
	now    func() time.Time
}

// NewNotifier creates a notifier that renders times in loc. A nil loc uses
// Moscow time.
func NewNotifier(s Sender, loc *time.Location) *Notifier {
	if loc == nil {
		loc = MoscowLocation()
	}
	return &Notifier{sender: s, loc: loc, now: time.Now}
}

// NotifyOrder announces a new order.
func (n *Notifier) NotifyOrder(ctx context.Context, order *domain.Order) error {
	if err := n.sender.Send(ctx, OrderMessage(order, n.loc)); err != nil {
		return fmt.Errorf("send order %s via %s: %w", order.ID, n.sender.Name(), err)
	}
	return nil
}

// NotifyContact forwards a contact form submission.
func (n *Notifier) NotifyContact(ctx context.Context, req domain.ContactRequest) error {
	if err := n.sender.Send(ctx, ContactMessage(req, n.now(), n.loc)); err != nil {
		return fmt.Errorf("send contact request via %s: %w", n.sender.Name(), err)
	}
	return nil
}
