package menu

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/shashiranjanraj/storefront/pkg/backend"
	"github.com/shashiranjanraj/storefront/pkg/logger"
)

// Documents written by older admin tools use "order" and "image"; both
// spellings are read.
var (
	sortOrderFields = []string{"sortOrder", "order"}
	imageFields     = []string{"imageRef", "image", "imageUrl"}
)

func decodeBusiness(doc backend.Document) Business {
	f := doc.Fields
	b := Business{
		ID:           doc.ID,
		Name:         str(f["name"]),
		Description:  str(f["description"]),
		BusinessType: BusinessType(str(f["businessType"])),
	}
	if b.BusinessType != BusinessStore {
		b.BusinessType = BusinessRestaurant
	}

	if ci, ok := f["contactInfo"].(map[string]any); ok {
		for k, v := range ci {
			s := str(v)
			switch strings.ToLower(k) {
			case "whatsapp":
				b.ContactInfo.WhatsApp = s
			case "phone":
				b.ContactInfo.Phone = s
			case "email":
				b.ContactInfo.Email = s
			case "address":
				b.ContactInfo.Address = s
			default:
				if b.ContactInfo.Extra == nil {
					b.ContactInfo.Extra = map[string]string{}
				}
				b.ContactInfo.Extra[k] = s
			}
		}
	}
	return b
}

func decodeCategory(doc backend.Document) Category {
	f := doc.Fields
	c := Category{
		ID:          doc.ID,
		Name:        str(f["name"]),
		Description: str(f["description"]),
	}
	if v := first(f, sortOrderFields); v != nil {
		c.SortOrder = int(Price(v).IntPart())
	}
	return c
}

func decodeItem(doc backend.Document) Item {
	f := doc.Fields
	it := Item{
		ID:          doc.ID,
		Name:        str(f["name"]),
		Description: str(f["description"]),
		Price:       Price(f["price"]),
		ImageRef:    str(first(f, imageFields)),
		IsAvailable: true,
		IsFeatured:  boolean(f["isFeatured"], false),
	}
	if v, ok := f["isAvailable"]; ok {
		it.IsAvailable = boolean(v, true)
	}
	if it.Price.IsNegative() {
		logger.Warn("menu: negative price clamped to zero", "item_id", doc.ID, "price", it.Price.String())
		it.Price = decimal.Zero
	}
	return it
}

// Price coerces a stored price to a decimal. Non-numeric values become zero
// and are logged so bad data stays visible.
func Price(v any) decimal.Decimal {
	switch n := v.(type) {
	case nil:
		return decimal.Zero
	case decimal.Decimal:
		return n
	case float64:
		return decimal.NewFromFloat(n)
	case float32:
		return decimal.NewFromFloat32(n)
	case int:
		return decimal.NewFromInt(int64(n))
	case int32:
		return decimal.NewFromInt32(n)
	case int64:
		return decimal.NewFromInt(n)
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(n))
		if err == nil {
			return d
		}
	}
	logger.Warn("menu: non-numeric price treated as zero", "value", fmt.Sprint(v))
	return decimal.Zero
}

func first(f map[string]any, keys []string) any {
	for _, k := range keys {
		if v, ok := f[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func str(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		return fmt.Sprint(s)
	}
}

func boolean(v any, fallback bool) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		switch strings.ToLower(b) {
		case "true", "1", "yes":
			return true
		case "false", "0", "no":
			return false
		}
	}
	return fallback
}
