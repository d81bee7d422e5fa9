package sender

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/utafrali/furnishop/internal/domain"
	"github.com/utafrali/furnishop/pkg/money"
	"github.com/utafrali/furnishop/pkg/phone"
)

const timeLayout = "02.01.2006 15:04"

// MoscowLocation returns Europe/Moscow, or a fixed UTC+3 zone when the tz
// database is unavailable.
func MoscowLocation() *time.Location {
	loc, err := time.LoadLocation("Europe/Moscow")
	if err != nil {
		return time.FixedZone("MSK", 3*60*60)
	}
	return loc
}

// OrderMessage renders an order for the chat. User-supplied text is escaped
// for the HTML parse mode.
func OrderMessage(order *domain.Order, loc *time.Location) string {
	var b strings.Builder

	b.WriteString("🛒 <b>Новый заказ</b>\n\n")
	fmt.Fprintf(&b, "👤 <b>Имя:</b> %s\n", html.EscapeString(order.CustomerName))
	fmt.Fprintf(&b, "📞 <b>Телефон:</b> %s\n\n", html.EscapeString(phone.Display(order.CustomerPhone)))

	b.WriteString("📦 <b>Состав заказа:</b>\n")
	for i, it := range order.Items {
		fmt.Fprintf(&b, "%d. %s × %d = %s\n",
			i+1,
			html.EscapeString(it.ProductName),
			it.Quantity,
			money.Format(it.LineTotal()),
		)
	}

	fmt.Fprintf(&b, "\n💰 <b>Итого:</b> %s\n", money.Format(order.TotalPrice))
	fmt.Fprintf(&b, "⏰ <b>Время:</b> %s\n", order.CreatedAt.In(loc).Format(timeLayout))
	fmt.Fprintf(&b, "🆔 <code>%s</code>", html.EscapeString(order.ID))

	return b.String()
}

// ContactMessage renders a contact form submission received at.
func ContactMessage(req domain.ContactRequest, at time.Time, loc *time.Location) string {
	var b strings.Builder

	b.WriteString("🔔 <b>Новая заявка с сайта</b>\n\n")
	fmt.Fprintf(&b, "👤 <b>Имя:</b> %s\n", html.EscapeString(req.Name))
	fmt.Fprintf(&b, "📞 <b>Телефон:</b> %s\n", html.EscapeString(phone.Display(req.Phone)))
	fmt.Fprintf(&b, "💬 <b>Сообщение:</b>\n%s\n\n", html.EscapeString(req.Message))
	fmt.Fprintf(&b, "⏰ <b>Время:</b> %s", at.In(loc).Format(timeLayout))

	return b.String()
}
