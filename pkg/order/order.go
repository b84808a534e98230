// Package order turns a cart into an order and hands it to a payment
// gateway.
//
//	svc := order.NewService(businessID, backBase, gateways, publisher)
//	placed, receipt, err := svc.Checkout(ctx, store, customer, order.MethodCash, "")
//
// A cash order is persisted directly at orders/{orderId}; a gateway order
// returns a redirect URL to the external payment page. The cart is cleared
// only after the gateway has accepted the order.
package order

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/shashiranjanraj/storefront/pkg/cart"
	"github.com/shashiranjanraj/storefront/pkg/validate"
)

// Method is how the customer pays.
type Method string

const (
	MethodCash    Method = "cash"
	MethodGateway Method = "gateway"
)

// Status is the kitchen-side lifecycle of an order.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusPreparing Status = "preparing"
	StatusReady     Status = "ready"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// PaymentStatus tracks the money side of an order.
type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "pending"
	PaymentProcessing PaymentStatus = "processing"
	PaymentPaid       PaymentStatus = "paid"
	PaymentFailed     PaymentStatus = "failed"
)

type Customer struct {
	Name  string `json:"name"  validate:"required,max=100"`
	Phone string `json:"phone" validate:"required,phone"`
	Email string `json:"email,omitempty" validate:"nullable,email"`
	Notes string `json:"notes,omitempty" validate:"nullable,max=500"`
}

// ReturnURLs are the pages the payment provider redirects to.
type ReturnURLs struct {
	Success string `json:"success"`
	Pending string `json:"pending"`
	Failure string `json:"failure"`
}

// Order is the payload sent to a gateway.
type Order struct {
	OrderID       string          `json:"orderId"       validate:"required"`
	BusinessID    string          `json:"businessId"    validate:"required"`
	Items         []cart.Line     `json:"items"         validate:"min=1"`
	Customer      Customer        `json:"customer"      validate:"required,nested"`
	Total         decimal.Decimal `json:"total"         validate:"gt=0"`
	PaymentMethod Method          `json:"paymentMethod" validate:"required,in=cash,gateway"`
	PaymentStatus PaymentStatus   `json:"paymentStatus"`
	Status        Status          `json:"status"`
	Notes         string          `json:"notes,omitempty" validate:"nullable,max=500"`
	BackURLs      ReturnURLs      `json:"backUrls"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// NewOrderID returns "order_<unix millis>_<9 lowercase hex chars>".
func NewOrderID() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return fmt.Sprintf("order_%d_%s", time.Now().UnixMilli(), suffix)
}

// ValidationError lists the fields that failed validation, keyed by their
// JSON name ("customer.phone").
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	msgs := make([]string, len(keys))
	for i, k := range keys {
		msgs[i] = e.Fields[k]
	}
	return "order: invalid: " + strings.Join(msgs, " ")
}

// Validate checks o against its struct tags.
func (o Order) Validate() error {
	if errs := validate.Struct(o); validate.HasErrors(errs) {
		return &ValidationError{Fields: errs}
	}
	return nil
}

// Document is the stored representation of o. Money is kept as a fixed
// two-decimal string.
func (o Order) Document() map[string]any {
	items := make([]map[string]any, len(o.Items))
	for i, l := range o.Items {
		items[i] = map[string]any{
			"itemId":   l.ItemID,
			"name":     l.Name,
			"price":    l.Price.StringFixed(2),
			"quantity": l.Quantity,
			"subtotal": l.Subtotal().StringFixed(2),
		}
	}
	customer := map[string]any{"name": o.Customer.Name, "phone": o.Customer.Phone}
	if o.Customer.Email != "" {
		customer["email"] = o.Customer.Email
	}
	if o.Customer.Notes != "" {
		customer["notes"] = o.Customer.Notes
	}
	return map[string]any{
		"orderId":       o.OrderID,
		"businessId":    o.BusinessID,
		"items":         items,
		"customer":      customer,
		"total":         o.Total.StringFixed(2),
		"paymentMethod": string(o.PaymentMethod),
		"paymentStatus": string(o.PaymentStatus),
		"status":        string(o.Status),
		"notes":         o.Notes,
		"createdAt":     o.CreatedAt,
		"updatedAt":     o.CreatedAt,
	}
}
