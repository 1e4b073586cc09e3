package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Money is an exact amount in RM. It is stored and served as a JSON number,
// the shape older clients wrote into local storage, and reads either a
// number or a quoted string.
type Money struct {
	decimal.Decimal
}

func NewMoney(d decimal.Decimal) Money { return Money{Decimal: d} }

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.Decimal.String()), nil
}

// Order statuses
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Theme is the persisted display preference.
type Theme string

const (
	ThemeDark  Theme = "dark"
	ThemeLight Theme = "light"

	DefaultTheme = ThemeDark
)

// ParseTheme returns the Theme named by s.
func ParseTheme(s string) (Theme, bool) {
	switch Theme(s) {
	case ThemeDark, ThemeLight:
		return Theme(s), true
	}
	return "", false
}

// Toggle returns the other theme.
func (t Theme) Toggle() Theme {
	if t == ThemeLight {
		return ThemeDark
	}
	return ThemeLight
}

// zoneGames lists games whose accounts are partitioned by server/zone.
var zoneGames = map[string]bool{
	"mobile-legends": true,
}

// RequiresZoneID reports whether top-ups for gameSlug need a zone id next to
// the user id.
func RequiresZoneID(gameSlug string) bool {
	return zoneGames[gameSlug]
}

// NewCartItem is what a caller supplies to AddToCart. The manager assigns the id.
type NewCartItem struct {
	Game      string `json:"game"`
	GameSlug  string `json:"gameSlug"`
	Denom     string `json:"denom"`
	Price     Money  `json:"price"`
	UserID    string `json:"userId"`
	ZoneID    string `json:"zoneId,omitempty"` // only for RequiresZoneID games
	Icon      string `json:"icon"`
	ProductID string `json:"productId"`
}

// CartItem is an unconfirmed line item.
type CartItem struct {
	ID int64 `json:"id"`
	NewCartItem
}

// HasZone reports whether a zone id was given for the item.
func (c CartItem) HasZone() bool { return c.ZoneID != "" }

// Order is the immutable record of one checkout.
type Order struct {
	ID        string     `json:"id"`
	Date      string     `json:"date"`
	Items     []CartItem `json:"items"`
	Total     Money      `json:"total"`
	Status    Status     `json:"status"`
	CreatedAt time.Time  `json:"createdAt,omitzero"`
}

// UnmarshalJSON reads the id as a string or, for orders written by older
// clients that used a millisecond timestamp, as a number.
func (o *Order) UnmarshalJSON(b []byte) error {
	type plain Order
	aux := struct {
		*plain
		ID json.RawMessage `json:"id"`
	}{plain: (*plain)(o)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	id, err := parseOrderID(aux.ID)
	if err != nil {
		return err
	}
	o.ID = id
	return nil
}

func parseOrderID(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("order id: %w", err)
	}
	return n.String(), nil
}

// Snapshot is a read-only copy of the store state with derived values.
type Snapshot struct {
	Cart      []CartItem `json:"cart"`
	History   []Order    `json:"history"`
	Theme     Theme      `json:"theme"`
	CartCount int        `json:"cartCount"`
	CartTotal Money      `json:"cartTotal"`
	Loaded    bool       `json:"loaded"`
}

// sumPrices is the single definition of a cart or order total.
func sumPrices(items []CartItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Price.Decimal)
	}
	return total
}

func cloneItems(items []CartItem) []CartItem {
	out := make([]CartItem, len(items))
	copy(out, items)
	return out
}

func cloneOrder(o Order) Order {
	o.Items = cloneItems(o.Items)
	return o
}

func cloneHistory(history []Order) []Order {
	out := make([]Order, len(history))
	for i, o := range history {
		out[i] = cloneOrder(o)
	}
	return out
}
