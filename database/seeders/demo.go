package seeders

import (
	"context"
	"fmt"
	"html"

	"github.com/shashiranjanraj/storefront/pkg/backend"
)

func init() {
	Register("business", seedBusiness)
	Register("menu", seedMenu)
	Register("images", seedImages)
}

type demoItem struct {
	id          string
	name        string
	description string
	price       any // stored as-is: numbers and numeric strings both occur in real data
	image       string
	featured    bool
	unavailable bool
}

type demoCategory struct {
	id        string
	name      string
	sortOrder int
	items     []demoItem
}

var demoMenu = []demoCategory{
	{id: "mains", name: "Mains", sortOrder: 1, items: []demoItem{
		{id: "burger", name: "Classic Burger", description: "Beef, cheddar, pickles", price: 12.5, image: "images/burger.svg", featured: true},
		{id: "pasta", name: "Fresh Pasta", description: "Tomato and basil", price: 11, image: "images/pasta.svg"},
		{id: "milanesa", name: "Milanesa", description: "With fries", price: "14.90", image: "https://placehold.co/400x300?text=Milanesa"},
	}},
	{id: "drinks", name: "Drinks", sortOrder: 2, items: []demoItem{
		{id: "lemonade", name: "Lemonade", price: 3.5, image: "images/lemonade.svg", featured: true},
		{id: "coffee", name: "Coffee", price: "2.80"},
	}},
	{id: "desserts", name: "Desserts", sortOrder: 3, items: []demoItem{
		{id: "flan", name: "Flan", description: "With dulce de leche", price: 4.25, image: "images/flan.svg", unavailable: true},
	}},
}

func seedBusiness(ctx context.Context, t Target) error {
	return t.DB.Set(ctx, backend.DocPath("businesses", t.BusinessID), map[string]any{
		"name":         "Demo Bistro",
		"description":  "Neighbourhood kitchen, open every day.",
		"businessType": "restaurant",
		"contactInfo": map[string]any{
			"whatsapp": "+54 9 11 5555 0100",
			"phone":    "+54 11 5555 0100",
			"email":    "hola@demobistro.example",
			"address":  "Av. Corrientes 1234, Buenos Aires",
		},
	})
}

func seedMenu(ctx context.Context, t Target) error {
	for _, c := range demoMenu {
		catPath := backend.DocPath("businesses", t.BusinessID, "menu", c.id)
		if err := t.DB.Set(ctx, catPath, map[string]any{
			"name":      c.name,
			"sortOrder": c.sortOrder,
		}); err != nil {
			return err
		}
		for _, it := range c.items {
			fields := map[string]any{
				"name":        it.name,
				"description": it.description,
				"price":       it.price,
				"isFeatured":  it.featured,
				"isAvailable": !it.unavailable,
			}
			if it.image != "" {
				fields["imageRef"] = it.image
			}
			if err := t.DB.Set(ctx, catPath+"/items/"+it.id, fields); err != nil {
				return err
			}
		}
	}
	return nil
}

// seedImages uploads an SVG placeholder for every item whose image lives on
// the storage disk.
func seedImages(ctx context.Context, t Target) error {
	if t.Disk == nil {
		return nil
	}
	for _, c := range demoMenu {
		for _, it := range c.items {
			if it.image == "" || isRemote(it.image) {
				continue
			}
			if err := t.Disk.Put(ctx, it.image, placeholder(it.name)); err != nil {
				return fmt.Errorf("upload %s: %w", it.image, err)
			}
		}
	}
	return nil
}

func isRemote(ref string) bool {
	return len(ref) > 8 && (ref[:7] == "http://" || ref[:8] == "https://")
}

func placeholder(label string) []byte {
	return []byte(fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="400" height="300">`+
		`<rect width="100%%" height="100%%" fill="#f4ede4"/>`+
		`<text x="50%%" y="50%%" font-family="sans-serif" font-size="28" fill="#6b4f3a" text-anchor="middle">%s</text>`+
		`</svg>`, html.EscapeString(label)))
}
