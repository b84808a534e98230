package menu

import (
	"github.com/shopspring/decimal"
)

type BusinessType string

const (
	BusinessRestaurant BusinessType = "restaurant"
	BusinessStore      BusinessType = "store"
)

type ContactInfo struct {
	WhatsApp string            `json:"whatsapp,omitempty"`
	Phone    string            `json:"phone,omitempty"`
	Email    string            `json:"email,omitempty"`
	Address  string            `json:"address,omitempty"`
	Extra    map[string]string `json:"extra,omitempty"`
}

// Business is the tenant that owns a menu.
type Business struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Description  string       `json:"description,omitempty"`
	BusinessType BusinessType `json:"businessType"`
	ContactInfo  ContactInfo  `json:"contactInfo"`
}

// Category groups items. Items are sorted by name.
type Category struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	SortOrder   int    `json:"sortOrder"`
	Items       []Item `json:"items"`
}

// Item is one purchasable entry. ResolvedImageURL is nil when the item has
// no image or its image could not be resolved; otherwise it is an http(s)
// URL.
type Item struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	Description      string          `json:"description,omitempty"`
	Price            decimal.Decimal `json:"price"`
	ImageRef         string          `json:"imageRef,omitempty"`
	ResolvedImageURL *string         `json:"resolvedImageUrl"`
	IsAvailable      bool            `json:"isAvailable"`
	IsFeatured       bool            `json:"isFeatured"`
}

// Menu is one loaded snapshot of a business and its categories.
type Menu struct {
	Business   Business   `json:"business"`
	Categories []Category `json:"categories"`
}

// FeaturedItem is a featured item annotated with its category.
type FeaturedItem struct {
	Item
	CategoryID   string `json:"categoryId"`
	CategoryName string `json:"categoryName"`
}

// FeaturedItems returns the items that are both featured and available, in
// menu order.
func FeaturedItems(categories []Category) []FeaturedItem {
	var out []FeaturedItem
	for _, c := range categories {
		for _, it := range c.Items {
			if it.IsFeatured && it.IsAvailable {
				out = append(out, FeaturedItem{Item: it, CategoryID: c.ID, CategoryName: c.Name})
			}
		}
	}
	return out
}

// Item finds an item by id across all categories.
func (m *Menu) Item(id string) (Item, bool) {
	for _, c := range m.Categories {
		for _, it := range c.Items {
			if it.ID == id {
				return it, true
			}
		}
	}
	return Item{}, false
}
