package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shashiranjanraj/storefront/pkg/cart"
	"github.com/shashiranjanraj/storefront/pkg/logger"
	"github.com/shashiranjanraj/storefront/pkg/metrics"
)

// ErrEmptyCart is returned by Checkout when there is nothing to order.
var ErrEmptyCart = errors.New("order: cart is empty")

// ErrUnknownMethod is returned for a payment method with no gateway.
var ErrUnknownMethod = errors.New("order: no gateway for payment method")

// Service builds orders from carts and routes them to a gateway.
type Service struct {
	businessID string
	backBase   string
	gateways   map[Method]Gateway
	events     Publisher
	now        func() time.Time
}

// NewService wires the gateways. events may be nil.
func NewService(businessID, backBase string, gateways map[Method]Gateway, events Publisher) *Service {
	return &Service{
		businessID: businessID,
		backBase:   backBase,
		gateways:   gateways,
		events:     events,
		now:        time.Now,
	}
}

// Build assembles an order from the cart's current lines without submitting
// it.
func (s *Service) Build(store *cart.Store, customer Customer, method Method, notes string) (Order, error) {
	if store.IsEmpty() {
		return Order{}, ErrEmptyCart
	}

	id := NewOrderID()
	o := Order{
		OrderID:       id,
		BusinessID:    s.businessID,
		Items:         store.Lines(),
		Customer:      trimCustomer(customer),
		Total:         store.Total(),
		PaymentMethod: Method(strings.ToLower(string(method))),
		PaymentStatus: PaymentPending,
		Status:        StatusPending,
		Notes:         strings.TrimSpace(notes),
		BackURLs:      BackURLs(s.backBase, id),
		CreatedAt:     s.now().UTC(),
	}
	return o, o.Validate()
}

// Checkout validates the cart as an order and submits it. The cart is
// cleared once the gateway accepts the order; on any error it is left as
// it was.
func (s *Service) Checkout(ctx context.Context, store *cart.Store, customer Customer, method Method, notes string) (Order, Receipt, error) {
	log := logger.WithCtx(ctx)

	o, err := s.Build(store, customer, method, notes)
	if err != nil {
		return o, Receipt{}, err
	}

	gw, ok := s.gateways[o.PaymentMethod]
	if !ok {
		return o, Receipt{}, fmt.Errorf("%w %q", ErrUnknownMethod, o.PaymentMethod)
	}

	receipt, err := gw.Submit(ctx, o)
	if err != nil {
		log.Error("order: submit failed", "order_id", o.OrderID, "method", o.PaymentMethod, "error", err)
		return o, Receipt{}, err
	}

	store.Clear()
	metrics.OrdersCreated.WithLabelValues(string(o.PaymentMethod)).Inc()
	log.Info("order: placed", "order_id", o.OrderID, "method", o.PaymentMethod,
		"total", o.Total.StringFixed(2), "redirect", receipt.RedirectURL != "")

	if s.events != nil {
		if err := publishCreated(ctx, s.events, o, receipt); err != nil {
			log.Warn("order: publish event", "order_id", o.OrderID, "error", err)
		}
	}
	return o, receipt, nil
}

func trimCustomer(c Customer) Customer {
	c.Name = strings.TrimSpace(c.Name)
	c.Phone = strings.TrimSpace(c.Phone)
	c.Email = strings.TrimSpace(c.Email)
	c.Notes = strings.TrimSpace(c.Notes)
	return c
}
