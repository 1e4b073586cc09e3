package fulfillment

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultWhatsAppNumber is the store's order line.
const DefaultWhatsAppNumber = "60197661697"

// Opener receives the deep link for an order, e.g. to print or open it.
type Opener func(ctx context.Context, orderID, link string) error

// WhatsApp turns payloads into wa.me deep links carrying the order message.
type WhatsApp struct {
	Number   string
	Location *time.Location
	Open     Opener
}

// NewWhatsApp returns a channel that logs each link; set Open to do more.
func NewWhatsApp(number string, loc *time.Location, log logrus.FieldLogger) *WhatsApp {
	if number == "" {
		number = DefaultWhatsAppNumber
	}
	return &WhatsApp{
		Number:   number,
		Location: loc,
		Open: func(_ context.Context, orderID, link string) error {
			log.WithField("order_id", orderID).WithField("link", link).Info("whatsapp order link ready")
			return nil
		},
	}
}

// Link builds https://wa.me/<number>?text=<message>.
func (w *WhatsApp) Link(p Payload) string {
	return "https://wa.me/" + w.Number + "?text=" + encodeURIComponent(p.Message(w.Location))
}

func (w *WhatsApp) Deliver(ctx context.Context, p Payload) error {
	return w.Open(ctx, p.OrderID, w.Link(p))
}

// uriUnreserved undoes QueryEscape for the marks encodeURIComponent leaves
// alone, and writes spaces as %20 rather than +.
var uriUnreserved = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

// encodeURIComponent escapes like the browser function of the same name.
func encodeURIComponent(s string) string {
	return uriUnreserved.Replace(url.QueryEscape(s))
}
