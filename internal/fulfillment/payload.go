// Package fulfillment hands finished orders to the channel that completes
// the sale outside the store.
package fulfillment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/MdanzDev/nickstore/internal/store"
)

// Payload is what a channel receives for one order. Items keep cart order.
type Payload struct {
	OrderID   string           `json:"order_id"`
	Items     []store.CartItem `json:"items"`
	Total     store.Money      `json:"total"`
	CreatedAt time.Time        `json:"created_at"`
}

// NewPayload copies the handoff fields out of an order.
func NewPayload(o store.Order) Payload {
	items := make([]store.CartItem, len(o.Items))
	copy(items, o.Items)
	return Payload{
		OrderID:   o.ID,
		Items:     items,
		Total:     o.Total,
		CreatedAt: o.CreatedAt,
	}
}

const (
	messageRule     = "═══════════════════"
	TimestampLayout = "02/01/2006, 3:04:05 pm"
)

// Message renders the order as the text an operator reads in the chat.
func (p Payload) Message(loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	var b strings.Builder
	b.WriteString("*NICKSTORE ORDER*\n")
	b.WriteString(messageRule + "\n\n")

	for i, it := range p.Items {
		fmt.Fprintf(&b, "*%d. %s*\n", i+1, it.Game)
		fmt.Fprintf(&b, "   📦 %s\n", it.Denom)
		if it.HasZone() {
			fmt.Fprintf(&b, "   👤 ID: %s (%s)\n", it.UserID, it.ZoneID)
		} else {
			fmt.Fprintf(&b, "   👤 ID: %s\n", it.UserID)
		}
		fmt.Fprintf(&b, "   💰 RM %s\n\n", it.Price.StringFixed(2))
	}

	b.WriteString(messageRule + "\n")
	fmt.Fprintf(&b, "*TOTAL: RM %s*\n\n", p.Total.StringFixed(2))
	b.WriteString("Payment: Bank Transfer / E-Wallet\n")
	fmt.Fprintf(&b, "Date: %s", p.CreatedAt.In(loc).Format(TimestampLayout))
	return b.String()
}

// Channel delivers payloads to whoever completes the sale.
type Channel interface {
	Deliver(ctx context.Context, p Payload) error
}

// Handoff adapts a Channel to the store's Fulfiller.
type Handoff struct {
	Channel Channel
}

func (h Handoff) Fulfill(ctx context.Context, o store.Order) error {
	return h.Channel.Deliver(ctx, NewPayload(o))
}

// Discard drops every payload.
type Discard struct{}

func (Discard) Deliver(context.Context, Payload) error { return nil }
