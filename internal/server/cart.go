package server

import (
	"errors"
	"net/http"

	"github.com/shashiranjanraj/storefront/pkg/cart"
	"github.com/shashiranjanraj/storefront/pkg/ctx"
	"github.com/shashiranjanraj/storefront/pkg/middleware"
)

type cartView struct {
	ID        string      `json:"id"`
	Lines     []cart.Line `json:"lines"`
	ItemCount int         `json:"itemCount"`
	Total     string      `json:"total"`
}

func viewCart(id string, s *cart.Store) cartView {
	lines := s.Lines()
	if lines == nil {
		lines = []cart.Line{}
	}
	return cartView{ID: id, Lines: lines, ItemCount: s.ItemCount(), Total: s.Total().StringFixed(2)}
}

func (s *Server) cart(c *ctx.Context) (string, *cart.Store) {
	id := middleware.CartID(c.Context())
	return id, s.carts.Get(c.Context(), id)
}

func (s *Server) showCart(c *ctx.Context) {
	id, store := s.cart(c)
	c.Success(viewCart(id, store))
}

type addItemRequest struct {
	ItemID   string `json:"itemId" validate:"required"`
	Quantity *int   `json:"quantity"`
}

// addItem adds a menu item by id. Line fields are copied from the menu being
// served, so clients cannot set prices.
func (s *Server) addItem(c *ctx.Context) {
	var req addItemRequest
	if !c.BindJSON(&req) {
		return
	}

	m, _ := s.catalog.Current()
	if m == nil {
		unavailable(c, s.catalog.view())
		return
	}
	item, ok := m.Item(req.ItemID)
	if !ok {
		c.NotFound("Item not found")
		return
	}
	if !item.IsAvailable {
		c.ValidationError(map[string]string{"itemId": "This item is currently unavailable."})
		return
	}

	qty := 1
	if req.Quantity != nil {
		qty = *req.Quantity
	}

	id, store := s.cart(c)
	if err := store.AddItem(item, qty); err != nil {
		if errors.Is(err, cart.ErrInvalidQuantity) {
			c.ValidationError(map[string]string{"quantity": "The quantity must be a positive whole number."})
			return
		}
		c.Error(http.StatusUnprocessableEntity, err.Error())
		return
	}
	c.Created(viewCart(id, store))
}

type setQuantityRequest struct {
	Quantity *int `json:"quantity" validate:"required"`
}

// setQuantity overwrites a line's quantity. Zero or less removes the line.
func (s *Server) setQuantity(c *ctx.Context) {
	var req setQuantityRequest
	if !c.BindJSON(&req) {
		return
	}

	id, store := s.cart(c)
	store.SetQuantity(c.Param("itemID"), *req.Quantity)
	c.Success(viewCart(id, store))
}

func (s *Server) removeItem(c *ctx.Context) {
	id, store := s.cart(c)
	store.RemoveItem(c.Param("itemID"))
	c.Success(viewCart(id, store))
}

func (s *Server) clearCart(c *ctx.Context) {
	id, store := s.cart(c)
	store.Clear()
	c.Success(viewCart(id, store))
}
