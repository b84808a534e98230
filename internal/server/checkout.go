package server

import (
	"errors"
	"net/http"

	"github.com/shashiranjanraj/storefront/pkg/ctx"
	"github.com/shashiranjanraj/storefront/pkg/logger"
	"github.com/shashiranjanraj/storefront/pkg/order"
)

type checkoutRequest struct {
	Customer      order.Customer `json:"customer"`
	PaymentMethod string         `json:"paymentMethod" validate:"required,in=cash,gateway"`
	Notes         string         `json:"notes" validate:"nullable,max=500"`
}

type checkoutResponse struct {
	Order       order.Order  `json:"order"`
	Status      order.Status `json:"status"`
	RedirectURL string       `json:"redirectUrl,omitempty"`
}

func (s *Server) checkout(c *ctx.Context) {
	var req checkoutRequest
	if !c.BindJSON(&req) {
		return
	}

	_, store := s.cart(c)
	o, receipt, err := s.orders.Checkout(c.Context(), store, req.Customer, order.Method(req.PaymentMethod), req.Notes)

	var verr *order.ValidationError
	switch {
	case err == nil:
		c.Created(checkoutResponse{Order: o, Status: receipt.Status, RedirectURL: receipt.RedirectURL})
	case errors.As(err, &verr):
		c.ValidationError(verr.Fields)
	case errors.Is(err, order.ErrEmptyCart):
		c.Error(http.StatusUnprocessableEntity, "Your cart is empty.")
	case errors.Is(err, order.ErrUnknownMethod):
		c.ValidationError(map[string]string{"paymentMethod": "This payment method is not available."})
	default:
		c.Error(http.StatusBadGateway, "We could not place your order. Please try again.")
	}
}

var returnMessages = map[order.Outcome]string{
	order.Success: "Payment approved. Your order is confirmed.",
	order.Pending: "Your payment is being processed. We will confirm your order shortly.",
	order.Failure: "Your payment could not be completed. Please try again or choose another method.",
}

type paymentReturn struct {
	Outcome string         `json:"outcome"`
	OrderID string         `json:"orderId,omitempty"`
	Message string         `json:"message"`
	Order   map[string]any `json:"order,omitempty"`
}

// paymentReturn classifies the gateway's redirect back to the storefront.
func (s *Server) paymentReturn(c *ctx.Context) {
	params := c.R.URL.Query()
	outcome := order.ClassifyPaymentReturn(params)
	res := paymentReturn{
		Outcome: outcome.String(),
		OrderID: order.ReturnOrderID(params),
		Message: returnMessages[outcome],
	}

	if s.lookup != nil && res.OrderID != "" {
		doc, err := s.lookup.Find(c.Context(), res.OrderID)
		switch {
		case err == nil:
			res.Order = doc
		case errors.Is(err, order.ErrNotFound):
		default:
			logger.WithCtx(c.Context()).Warn("server: payment return lookup", "order_id", res.OrderID, "error", err)
		}
	}
	c.Success(res)
}
