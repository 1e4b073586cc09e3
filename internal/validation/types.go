package validation

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/MdanzDev/nickstore/internal/store"
)

// AddToCartRequest is the payload for POST /cart/items and `nickstore cart add`.
type AddToCartRequest struct {
	Game      string          `json:"game" validate:"required"`
	GameSlug  string          `json:"gameSlug" validate:"required"`
	Denom     string          `json:"denom" validate:"required"`     // package label
	Price     decimal.Decimal `json:"price"`                         // >= 0, checked at struct level
	UserID    string          `json:"userId" validate:"required"`    // player account id
	ZoneID    string          `json:"zoneId,omitempty"`              // required for zone games
	Icon      string          `json:"icon"`
	ProductID string          `json:"productId" validate:"required"`
}

// Normalize trims every field the way the product form does before adding.
func (r *AddToCartRequest) Normalize() {
	r.Game = strings.TrimSpace(r.Game)
	r.GameSlug = strings.TrimSpace(r.GameSlug)
	r.Denom = strings.TrimSpace(r.Denom)
	r.UserID = strings.TrimSpace(r.UserID)
	r.ZoneID = strings.TrimSpace(r.ZoneID)
	r.Icon = strings.TrimSpace(r.Icon)
	r.ProductID = strings.TrimSpace(r.ProductID)
}

// Item converts a validated request into the store input.
func (r AddToCartRequest) Item() store.NewCartItem {
	return store.NewCartItem{
		Game:      r.Game,
		GameSlug:  r.GameSlug,
		Denom:     r.Denom,
		Price:     store.NewMoney(r.Price),
		UserID:    r.UserID,
		ZoneID:    r.ZoneID,
		Icon:      r.Icon,
		ProductID: r.ProductID,
	}
}

// ThemeRequest is the payload for PUT /theme.
type ThemeRequest struct {
	Theme string `json:"theme" validate:"required,oneof=dark light"`
}
