package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/storefront/database/seeders"
	"github.com/shashiranjanraj/storefront/pkg/backend"
	"github.com/shashiranjanraj/storefront/pkg/cart"
	"github.com/shashiranjanraj/storefront/pkg/logger"
	"github.com/shashiranjanraj/storefront/pkg/menu"
	"github.com/shashiranjanraj/storefront/pkg/middleware"
	"github.com/shashiranjanraj/storefront/pkg/order"
)

func init() { logger.Discard() }

var testCfg = backend.Config{MongoURI: "mongodb://localhost:27017", Database: "shop"}

type recordingPublisher struct {
	mu       sync.Mutex
	subjects []string
}

func (p *recordingPublisher) Publish(_ context.Context, subject string, _ []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subjects = append(p.subjects, subject)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

type fixture struct {
	srv    *httptest.Server
	s      *Server
	db     *backend.MemoryStore
	events *recordingPublisher
}

// newFixture serves the demo menu from an in-memory store. dialErr makes
// every backend dial fail.
func newFixture(t *testing.T, dialErr error) *fixture {
	t.Helper()
	return newFixtureWith(t, dialErr, nil)
}

// newFixtureWith also registers extra payment gateways next to cash.
func newFixtureWith(t *testing.T, dialErr error, extra map[order.Method]order.Gateway) *fixture {
	t.Helper()
	ctx := context.Background()

	db := backend.NewMemoryStore()
	require.NoError(t, seeders.RunAll(ctx, seeders.Target{DB: db, BusinessID: "demo"}, io.Discard))

	conns := backend.NewManager(backend.DialFunc(func(context.Context, backend.Config) (*backend.Handle, error) {
		if dialErr != nil {
			return nil, dialErr
		}
		return &backend.Handle{DB: db}, nil
	}))
	policy := menu.DefaultPolicy()
	policy.MaxAttempts = 1
	loader := menu.NewLoader(menu.NewRepository(conns, testCfg, policy), "demo")

	cash := order.NewMongoOrders(conns, testCfg)
	gateways := map[order.Method]order.Gateway{order.MethodCash: cash}
	for m, g := range extra {
		gateways[m] = g
	}
	events := &recordingPublisher{}
	open, err := Persisters("memory", CartBackends{})
	require.NoError(t, err)

	s, err := New(Deps{
		Loader: loader,
		Carts:  NewCarts(open, time.Hour),
		Orders: order.NewService("demo", "http://shop.test", gateways, events),
		Lookup: cash,
		Health: func(ctx context.Context) error {
			h, err := conns.Handle()
			if err != nil {
				return err
			}
			return h.DB.Ping(ctx)
		},
	})
	require.NoError(t, err)
	t.Cleanup(s.Close)

	loader.Reload(ctx)

	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return &fixture{srv: srv, s: s, db: db, events: events}
}

type envelope struct {
	Status  int               `json:"status"`
	Message string            `json:"message"`
	Data    json.RawMessage   `json:"data"`
	Errors  map[string]string `json:"errors"`
}

// call sends a JSON request and returns the response, its envelope and the
// cart token the server answered with.
func (f *fixture) call(t *testing.T, method, path, token string, body any) (*http.Response, envelope) {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, f.srv.URL+path, rdr)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set(middleware.CartTokenHeader, token)
	}
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(res.Body).Decode(&env))
	return res, env
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func TestMenuEndpoints(t *testing.T) {
	f := newFixture(t, nil)

	res, env := f.call(t, http.MethodGet, "/api/menu", "", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	v := decode[menuView](t, env.Data)
	assert.Equal(t, menu.StateSuccess, v.State)
	assert.False(t, v.Stale)
	require.NotNil(t, v.Menu)
	assert.Len(t, v.Menu.Categories, 3)

	_, env = f.call(t, http.MethodGet, "/api/business", "", nil)
	assert.Equal(t, "Demo Bistro", decode[menu.Business](t, env.Data).Name)

	_, env = f.call(t, http.MethodGet, "/api/menu/featured", "", nil)
	featured := decode[[]menu.FeaturedItem](t, env.Data)
	require.Len(t, featured, 2)
	assert.Equal(t, "Mains", featured[0].CategoryName)
}

func TestMenuUnavailableBeforeFirstLoad(t *testing.T) {
	f := newFixture(t, errors.New("auth mechanism rejected"))

	res, env := f.call(t, http.MethodGet, "/api/menu", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode)
	assert.NotEmpty(t, env.Message)

	res, _ = f.call(t, http.MethodGet, "/api/business", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode)

	res, _ = f.call(t, http.MethodPost, "/api/cart/items", "", map[string]any{"itemId": "burger"})
	assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode)
}

func TestLastGoodMenuSurvivesFailedReload(t *testing.T) {
	f := newFixture(t, nil)
	_, snap := f.s.catalog.Current()
	require.Equal(t, menu.StateSuccess, snap.State)

	f.s.catalog.observe(menu.Snapshot{State: menu.StateSuccess, Menu: snap.Menu})
	v := f.s.catalog.viewOf(menu.Snapshot{State: menu.StateFailed, Err: backend.ErrConnection})
	assert.True(t, v.Stale)
	assert.NotNil(t, v.Menu)
	assert.Equal(t, menu.Message(backend.ErrConnection), v.Message)
}

func TestCartFlow(t *testing.T) {
	f := newFixture(t, nil)

	res, env := f.call(t, http.MethodPost, "/api/cart/items", "", map[string]any{"itemId": "burger", "quantity": 2})
	require.Equal(t, http.StatusCreated, res.StatusCode, env.Message)
	token := res.Header.Get(middleware.CartTokenHeader)
	require.NotEmpty(t, token)

	res, _ = f.call(t, http.MethodPost, "/api/cart/items", token, map[string]any{"itemId": "lemonade"})
	require.Equal(t, http.StatusCreated, res.StatusCode)
	assert.Empty(t, res.Header.Get(middleware.CartTokenHeader), "a valid token is not reissued")

	_, env = f.call(t, http.MethodGet, "/api/cart", token, nil)
	c := decode[cartView](t, env.Data)
	assert.Equal(t, "28.50", c.Total)
	assert.Equal(t, 3, c.ItemCount)
	require.Len(t, c.Lines, 2)
	assert.Equal(t, "burger", c.Lines[0].ItemID)

	_, env = f.call(t, http.MethodPut, "/api/cart/items/burger", token, map[string]any{"quantity": 1})
	assert.Equal(t, "16.00", decode[cartView](t, env.Data).Total)

	_, env = f.call(t, http.MethodPut, "/api/cart/items/lemonade", token, map[string]any{"quantity": 0})
	assert.Len(t, decode[cartView](t, env.Data).Lines, 1)

	_, env = f.call(t, http.MethodDelete, "/api/cart/items/burger", token, nil)
	assert.Empty(t, decode[cartView](t, env.Data).Lines)

	// Another visitor has their own cart.
	_, env = f.call(t, http.MethodGet, "/api/cart", "", nil)
	assert.Equal(t, "0.00", decode[cartView](t, env.Data).Total)
}

func TestCartRejections(t *testing.T) {
	f := newFixture(t, nil)

	res, _ := f.call(t, http.MethodPost, "/api/cart/items", "", map[string]any{"itemId": "nope"})
	assert.Equal(t, http.StatusNotFound, res.StatusCode)

	res, env := f.call(t, http.MethodPost, "/api/cart/items", "", map[string]any{"itemId": "flan"})
	assert.Equal(t, http.StatusUnprocessableEntity, res.StatusCode)
	assert.Contains(t, env.Errors, "itemId")

	res, env = f.call(t, http.MethodPost, "/api/cart/items", "", map[string]any{"itemId": "burger", "quantity": -1})
	assert.Equal(t, http.StatusUnprocessableEntity, res.StatusCode)
	assert.Contains(t, env.Errors, "quantity")

	res, env = f.call(t, http.MethodPost, "/api/cart/items", "", map[string]any{})
	assert.Equal(t, http.StatusUnprocessableEntity, res.StatusCode)
	assert.Contains(t, env.Errors, "itemId")

	res, env = f.call(t, http.MethodPut, "/api/cart/items/burger", "", map[string]any{})
	assert.Equal(t, http.StatusUnprocessableEntity, res.StatusCode)
	assert.Contains(t, env.Errors, "quantity")
}

var customer = map[string]any{"name": "Ana", "phone": "+54 11 5555 0000", "email": "ana@example.com"}

func TestCashCheckout(t *testing.T) {
	f := newFixture(t, nil)

	res, _ := f.call(t, http.MethodPost, "/api/cart/items", "", map[string]any{"itemId": "burger", "quantity": 2})
	token := res.Header.Get(middleware.CartTokenHeader)

	res, env := f.call(t, http.MethodPost, "/api/checkout", token, map[string]any{
		"customer": customer, "paymentMethod": "cash", "notes": "no onions",
	})
	require.Equal(t, http.StatusCreated, res.StatusCode, env.Message)
	out := decode[checkoutResponse](t, env.Data)
	assert.Equal(t, order.StatusPending, out.Status)
	assert.Equal(t, "25", out.Order.Total.String())
	assert.Equal(t, "http://shop.test/payment/success?order="+out.Order.OrderID, out.Order.BackURLs.Success)

	doc, err := f.db.Get(context.Background(), backend.DocPath("orders", out.Order.OrderID))
	require.NoError(t, err)
	assert.Equal(t, "25.00", doc.Fields["total"])
	assert.Equal(t, []string{order.SubjectCreated}, f.events.subjects)

	_, env = f.call(t, http.MethodGet, "/api/cart", token, nil)
	assert.Empty(t, decode[cartView](t, env.Data).Lines)

	_, env = f.call(t, http.MethodGet, "/api/payment/return?collection_status=approved&external_reference="+out.Order.OrderID, "", nil)
	ret := decode[paymentReturn](t, env.Data)
	assert.Equal(t, "success", ret.Outcome)
	assert.Equal(t, out.Order.OrderID, ret.OrderID)
	assert.Equal(t, "pending", ret.Order["status"])
}

func TestCheckoutRejections(t *testing.T) {
	f := newFixture(t, nil)

	res, env := f.call(t, http.MethodPost, "/api/checkout", "", map[string]any{"customer": customer, "paymentMethod": "cash"})
	assert.Equal(t, http.StatusUnprocessableEntity, res.StatusCode)
	assert.Equal(t, "Your cart is empty.", env.Message)

	res, _ = f.call(t, http.MethodPost, "/api/cart/items", "", map[string]any{"itemId": "coffee"})
	token := res.Header.Get(middleware.CartTokenHeader)

	res, env = f.call(t, http.MethodPost, "/api/checkout", token, map[string]any{
		"customer": map[string]any{"name": "Ana"}, "paymentMethod": "cash",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, res.StatusCode)
	assert.Contains(t, env.Errors, "customer.phone")

	res, env = f.call(t, http.MethodPost, "/api/checkout", token, map[string]any{"customer": customer, "paymentMethod": "gateway"})
	assert.Equal(t, http.StatusUnprocessableEntity, res.StatusCode)
	assert.Contains(t, env.Errors, "paymentMethod")

	res, env = f.call(t, http.MethodPost, "/api/checkout", token, map[string]any{"customer": customer, "paymentMethod": "card"})
	assert.Equal(t, http.StatusUnprocessableEntity, res.StatusCode)
	assert.Contains(t, env.Errors, "paymentMethod")

	_, env = f.call(t, http.MethodGet, "/api/cart", token, nil)
	assert.Len(t, decode[cartView](t, env.Data).Lines, 1, "a rejected checkout keeps the cart")
}

func TestPaymentReturnWithoutOrder(t *testing.T) {
	f := newFixture(t, nil)

	_, env := f.call(t, http.MethodGet, "/api/payment/return?status=rejected&order=order_1_missing", "", nil)
	ret := decode[paymentReturn](t, env.Data)
	assert.Equal(t, "failure", ret.Outcome)
	assert.Nil(t, ret.Order)

	_, env = f.call(t, http.MethodGet, "/api/payment/return", "", nil)
	assert.Equal(t, "pending", decode[paymentReturn](t, env.Data).Outcome)
}

func TestHealthz(t *testing.T) {
	f := newFixture(t, nil)
	res, err := http.Get(f.srv.URL + "/healthz")
	require.NoError(t, err)
	defer res.Body.Close()

	var body map[string]any
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "ok", body["backend"])
	assert.Equal(t, "success", body["menu"])

	f = newFixture(t, errors.New("auth mechanism rejected"))
	res, err = http.Get(f.srv.URL + "/healthz")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t, nil)
	f.call(t, http.MethodGet, "/api/menu", "", nil)

	res, err := http.Get(f.srv.URL + "/metrics")
	require.NoError(t, err)
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, string(body), "storefront_http_requests_total")
	assert.Contains(t, string(body), `path="/api/menu"`)
	assert.Contains(t, string(body), "storefront_menu_loads_total")
}

func TestGraphQLRoute(t *testing.T) {
	f := newFixture(t, nil)
	res, err := http.Post(f.srv.URL+"/graphql", "application/json",
		strings.NewReader(`{"query":"{ business { name } featured { id } }"}`))
	require.NoError(t, err)
	defer res.Body.Close()

	var body struct {
		Data struct {
			Business struct{ Name string }
			Featured []struct{ ID string }
		}
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	assert.Equal(t, "Demo Bistro", body.Data.Business.Name)
	assert.Len(t, body.Data.Featured, 2)
}

func TestReloadAndWait(t *testing.T) {
	f := newFixture(t, nil)

	res, env := f.call(t, http.MethodPost, "/api/menu/reload?wait=true", "", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, menu.StateSuccess, decode[menuView](t, env.Data).State)

	res, _ = f.call(t, http.MethodPost, "/api/menu/reload", "", nil)
	assert.Equal(t, http.StatusAccepted, res.StatusCode)
}

func TestMenuSocket(t *testing.T) {
	f := newFixture(t, nil)
	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/ws/menu"

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	var ev liveEvent
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, "snapshot", ev.Type)
	assert.Equal(t, menu.StateSuccess, ev.Menu.State)

	require.NoError(t, conn.WriteJSON(command{Type: "reload"}))

	states := map[menu.State]bool{}
	for !states[menu.StateSuccess] || !states[menu.StateLoading] {
		require.NoError(t, conn.ReadJSON(&ev))
		states[ev.Menu.State] = true
	}
}

func TestMenuEvents(t *testing.T) {
	f := newFixture(t, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.srv.URL+"/api/menu/events", nil)
	require.NoError(t, err)
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, "text/event-stream", res.Header.Get("Content-Type"))

	sc := bufio.NewScanner(res.Body)
	var lines []string
	for len(lines) < 2 && sc.Scan() {
		if sc.Text() != "" {
			lines = append(lines, sc.Text())
		}
	}
	require.Len(t, lines, 2)
	assert.Equal(t, "event: snapshot", lines[0])
	assert.Contains(t, lines[1], `"state":"success"`)
}

func TestRouteNames(t *testing.T) {
	f := newFixture(t, nil)
	path, ok := f.s.Router().Path("cart.items.update")
	require.True(t, ok)
	assert.Equal(t, "/api/cart/items/{itemID}", path)
}

func TestCartsSweep(t *testing.T) {
	open, err := Persisters("memory", CartBackends{})
	require.NoError(t, err)
	c := NewCarts(open, time.Minute)

	a := c.Get(context.Background(), "a")
	require.NoError(t, a.AddItem(menu.Item{ID: "x", Name: "X"}, 1))
	assert.Same(t, a, c.Get(context.Background(), "a"))
	c.Get(context.Background(), "b")
	assert.Equal(t, 2, c.Len())

	assert.Equal(t, 0, c.Sweep(time.Now()))
	assert.Equal(t, 2, c.Sweep(time.Now().Add(2*time.Minute)))
	assert.True(t, c.Get(context.Background(), "a").IsEmpty())
}

func TestPersisters(t *testing.T) {
	_, err := Persisters("redis", CartBackends{})
	assert.Error(t, err)
	_, err = Persisters("sql", CartBackends{})
	assert.Error(t, err)
	_, err = Persisters("floppy", CartBackends{})
	assert.Error(t, err)

	open, err := Persisters("file", CartBackends{File: t.TempDir() + "/carts.json"})
	require.NoError(t, err)
	p := open("abc")
	require.NoError(t, p.Save(context.Background(), []cart.Line{{ItemID: "x", Quantity: 2}}))
	lines, err := open("abc").Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, lines, 1)
	lines, err = open("other").Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, lines)
}
