package middleware_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/storefront/pkg/auth"
	"github.com/shashiranjanraj/storefront/pkg/logger"
	"github.com/shashiranjanraj/storefront/pkg/metrics"
	"github.com/shashiranjanraj/storefront/pkg/middleware"
	"github.com/shashiranjanraj/storefront/pkg/reqid"
	"github.com/shashiranjanraj/storefront/pkg/response"
)

func init() { logger.Discard() }

func cartEcho() (http.Handler, *string) {
	var seen string
	return middleware.CartToken(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = middleware.CartID(r.Context())
	})), &seen
}

func TestCartTokenIssuedWhenMissing(t *testing.T) {
	h, seen := cartEcho()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/cart", nil))

	require.NotEmpty(t, *seen)
	tok := rec.Header().Get(middleware.CartTokenHeader)
	claims, err := auth.ParseCartToken(tok)
	require.NoError(t, err)
	assert.Equal(t, *seen, claims.CartID)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, tok, cookies[0].Value)
}

func TestCartTokenReusedFromHeaderAndCookie(t *testing.T) {
	tok, err := auth.IssueCartToken("cart-1")
	require.NoError(t, err)
	h, seen := cartEcho()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(middleware.CartTokenHeader, tok)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "cart-1", *seen)
	assert.Empty(t, rec.Header().Get(middleware.CartTokenHeader))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: middleware.CartTokenCookie, Value: tok})
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "cart-1", *seen)
}

func TestForgedCartTokenStartsNewCart(t *testing.T) {
	h, seen := cartEcho()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(middleware.CartTokenHeader, "not.a.token")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.NotEmpty(t, *seen)
	assert.NotEmpty(t, rec.Header().Get(middleware.CartTokenHeader))
}

func TestLimiter(t *testing.T) {
	l := middleware.NewLimiter(2, time.Minute)
	assert.True(t, l.Allow("1.1.1.1"))
	assert.True(t, l.Allow("1.1.1.1"))
	assert.False(t, l.Allow("1.1.1.1"))
	assert.True(t, l.Allow("2.2.2.2"))
}

func TestRateLimitHandler(t *testing.T) {
	h := middleware.RateLimit(1, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	do := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/checkout", nil)
		req.Header.Set("X-Forwarded-For", "9.9.9.9, 10.0.0.1")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}
	assert.Equal(t, http.StatusNoContent, do().Code)
	rec := do()
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
}

func TestRecoveryReturns500(t *testing.T) {
	h := middleware.Recovery(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func panicsRecovered(t *testing.T, route string) float64 {
	t.Helper()
	families, err := metrics.DefaultRegistry.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() != "storefront_http_panics_recovered_total" {
			continue
		}
		for _, m := range f.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "path" && l.GetValue() == route {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestRecoveryReportsRequestAndRoute(t *testing.T) {
	r := chi.NewRouter()
	r.Use(reqid.Middleware())
	r.Use(middleware.Recovery)
	r.Get("/api/orders/{id}", func(http.ResponseWriter, *http.Request) { panic("boom") })

	before := panicsRecovered(t, "/api/orders/{id}")
	req := httptest.NewRequest(http.MethodGet, "/api/orders/o-1", nil)
	req.Header.Set(reqid.Header, "req-42")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var body response.Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, http.StatusInternalServerError, body.Status)
	assert.Equal(t, "Internal Server Error", body.Message)
	assert.Equal(t, map[string]any{"request_id": "req-42"}, body.Errors)
	assert.Equal(t, before+1, panicsRecovered(t, "/api/orders/{id}"))
}

func TestRecoveryRepanicsAbort(t *testing.T) {
	h := middleware.Recovery(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))
	assert.PanicsWithError(t, http.ErrAbortHandler.Error(), func() {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

func TestCORSPreflight(t *testing.T) {
	h := middleware.CORS(middleware.DefaultCORSOptions())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("preflight reached the handler")
	}))
	req := httptest.NewRequest(http.MethodOptions, "/api/cart", nil)
	req.Header.Set("Origin", "https://shop.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), middleware.CartTokenHeader)
	assert.Contains(t, rec.Header().Get("Access-Control-Expose-Headers"), middleware.CartTokenHeader)
}
