package cart

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/shashiranjanraj/storefront/pkg/menu"
)

// Line is one item in the cart. Item fields are copied when the line is
// created and are not refreshed from later menu loads.
type Line struct {
	ItemID      string          `json:"itemId"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	ImageURL    string          `json:"imageUrl,omitempty"`
	Quantity    int             `json:"quantity"`
}

// Subtotal is price × quantity.
func (l Line) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// UnmarshalJSON accepts prices stored as numbers or numeric strings. Anything
// else is read as zero, matching how the cart total treats it.
func (l *Line) UnmarshalJSON(b []byte) error {
	type alias Line
	var raw struct {
		alias
		Price any `json:"price"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*l = Line(raw.alias)
	l.Price = menu.Price(raw.Price)
	return nil
}

func lineFromItem(it menu.Item, quantity int) Line {
	l := Line{
		ItemID:      it.ID,
		Name:        it.Name,
		Description: it.Description,
		Price:       it.Price,
		Quantity:    quantity,
	}
	if it.ResolvedImageURL != nil {
		l.ImageURL = *it.ResolvedImageURL
	}
	return l
}
