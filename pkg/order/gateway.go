package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shashiranjanraj/storefront/pkg/backend"
	"github.com/shashiranjanraj/storefront/pkg/http"
)

// ErrGatewayRejected is returned when the payments function answers without
// a checkout URL.
var ErrGatewayRejected = errors.New("order: payment preference was not created")

// ErrNotFound is returned by MongoOrders.Find for an unknown order id.
var ErrNotFound = errors.New("order: not found")

// Receipt is a gateway's answer. RedirectURL is set for gateway orders and
// empty for cash orders.
type Receipt struct {
	OrderID      string `json:"orderId"`
	Status       Status `json:"status"`
	RedirectURL  string `json:"redirectUrl,omitempty"`
	PreferenceID string `json:"preferenceId,omitempty"`
}

// Gateway accepts an order for payment.
type Gateway interface {
	Submit(ctx context.Context, o Order) (Receipt, error)
}

// Connector hands out the live backend handle.
type Connector interface {
	Initialize(ctx context.Context, cfg backend.Config) (*backend.Handle, error)
}

// ─── Cash ────────────────────────────────────────────────────────────────────

// MongoOrders persists cash orders at orders/{orderId} with status pending.
type MongoOrders struct {
	conns   Connector
	cfg     backend.Config
	timeout time.Duration
}

func NewMongoOrders(conns Connector, cfg backend.Config) *MongoOrders {
	return &MongoOrders{conns: conns, cfg: cfg, timeout: 10 * time.Second}
}

func (m *MongoOrders) store(ctx context.Context) (backend.DocumentStore, error) {
	h, err := m.conns.Initialize(ctx, m.cfg)
	if err != nil {
		return nil, err
	}
	return h.DB, nil
}

func (m *MongoOrders) Submit(ctx context.Context, o Order) (Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	db, err := m.store(ctx)
	if err != nil {
		return Receipt{}, fmt.Errorf("order: connect: %w", err)
	}

	o.Status = StatusPending
	o.PaymentStatus = PaymentPending
	if err := db.Set(ctx, backend.DocPath("orders", o.OrderID), o.Document()); err != nil {
		return Receipt{}, backend.E("order.save", err)
	}
	return Receipt{OrderID: o.OrderID, Status: StatusPending}, nil
}

// Find returns the stored fields of an order.
func (m *MongoOrders) Find(ctx context.Context, orderID string) (map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	db, err := m.store(ctx)
	if err != nil {
		return nil, fmt.Errorf("order: connect: %w", err)
	}
	doc, err := db.Get(ctx, backend.DocPath("orders", orderID))
	if errors.Is(err, backend.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, backend.E("order.find", err)
	}
	return doc.Fields, nil
}

// ─── Payment gateway ─────────────────────────────────────────────────────────

// CallableGateway calls the createMercadoPagoPreference HTTPS function. The
// body follows the callable convention: the payload travels under "data" and
// the answer comes back under "result".
//
// Every call carries the order id as its Idempotency-Key and the function
// creates at most one preference per orderId. Only transport failures are
// retried; a 5xx may follow a preference that was already created, so it is
// returned to the caller.
type CallableGateway struct {
	URL      string
	Timeout  time.Duration
	Attempts int
}

func NewCallableGateway(url string) *CallableGateway {
	return &CallableGateway{URL: url, Timeout: 15 * time.Second, Attempts: 2}
}

type callableItem struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	UnitPrice float64 `json:"unit_price"`
	Quantity  int     `json:"quantity"`
}

type preferenceRequest struct {
	BusinessID  string         `json:"businessId"`
	OrderID     string         `json:"orderId"`
	Items       []callableItem `json:"items"`
	Customer    Customer       `json:"customer"`
	TotalAmount float64        `json:"totalAmount"`
	BackURLs    ReturnURLs     `json:"backUrls"`
	Notes       string         `json:"notes"`
}

type preferenceResponse struct {
	Result struct {
		Success      bool   `json:"success"`
		InitPoint    string `json:"init_point"`
		PreferenceID string `json:"preference_id"`
		OrderID      string `json:"order_id"`
	} `json:"result"`
}

func (g *CallableGateway) Submit(ctx context.Context, o Order) (Receipt, error) {
	if g.URL == "" {
		return Receipt{}, fmt.Errorf("%w: PAYMENTS_URL is not set", ErrGatewayRejected)
	}

	req := preferenceRequest{
		BusinessID:  o.BusinessID,
		OrderID:     o.OrderID,
		Customer:    o.Customer,
		TotalAmount: o.Total.InexactFloat64(),
		BackURLs:    o.BackURLs,
		Notes:       o.Notes,
	}
	for _, l := range o.Items {
		req.Items = append(req.Items, callableItem{
			ID: l.ItemID, Title: l.Name, UnitPrice: l.Price.InexactFloat64(), Quantity: l.Quantity,
		})
	}

	resp, err := http.Post(g.URL).
		Body(map[string]any{"data": req}).
		Header("Idempotency-Key", o.OrderID).
		Timeout(g.Timeout).
		Retry(g.Attempts, 500*time.Millisecond).
		WithContext(ctx).
		Send()
	if err != nil {
		return Receipt{}, fmt.Errorf("order: payments call: %w", err)
	}
	if err := resp.Throw(); err != nil {
		return Receipt{}, fmt.Errorf("order: payments call: %w", err)
	}

	var out preferenceResponse
	if err := resp.JSON(&out); err != nil {
		return Receipt{}, fmt.Errorf("order: payments call: %w", err)
	}
	if !out.Result.Success || out.Result.InitPoint == "" {
		return Receipt{}, ErrGatewayRejected
	}

	id := out.Result.OrderID
	if id == "" {
		id = o.OrderID
	}
	return Receipt{
		OrderID:      id,
		Status:       StatusPending,
		RedirectURL:  out.Result.InitPoint,
		PreferenceID: out.Result.PreferenceID,
	}, nil
}
