package ctx_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	appctx "github.com/shashiranjanraj/storefront/pkg/ctx"
)

func TestWrapAndJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	appctx.Wrap(func(c *appctx.Context) {
		c.JSON(http.StatusOK, map[string]any{"ok": true})
		assert.Equal(t, http.StatusOK, c.WrittenStatus())
	})(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok":true`)
	assert.NotContains(t, rec.Body.String(), `"status"`)
}

func TestSuccessUsesEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	appctx.Wrap(func(c *appctx.Context) {
		c.Success(map[string]any{"id": 1})
	})(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":200`)
}

func TestParamFromChi(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/items/{itemID}", appctx.Wrap(func(c *appctx.Context) {
		c.Success(c.Param("itemID"))
	}))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/items/pizza", nil))
	assert.Contains(t, rec.Body.String(), `"data":"pizza"`)
}

func TestSetAndGet(t *testing.T) {
	appctx.Wrap(func(c *appctx.Context) {
		c.Set("cart_id", "c-1")
		assert.Equal(t, "c-1", c.GetString("cart_id"))
		assert.Empty(t, c.GetString("missing"))
		c.Success(nil)
	})(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
}

func TestBindJSONValid(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"itemId":"pizza","quantity":2}`))

	appctx.Wrap(func(c *appctx.Context) {
		var input struct {
			ItemID   string `json:"itemId"   validate:"required"`
			Quantity int    `json:"quantity" validate:"required,gte=1"`
		}
		if !assert.True(t, c.BindJSON(&input)) {
			return
		}
		assert.Equal(t, "pizza", input.ItemID)
		c.Success(nil)
	})(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBindJSONInvalid(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"itemId":""}`))

	appctx.Wrap(func(c *appctx.Context) {
		var input struct {
			ItemID string `json:"itemId" validate:"required"`
		}
		assert.False(t, c.BindJSON(&input))
	})(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestBindJSONMalformed(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{`))
	appctx.Wrap(func(c *appctx.Context) {
		var input struct{}
		assert.False(t, c.BindJSON(&input))
	})(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "1.2.3.4, 10.0.0.1")

	appctx.Wrap(func(c *appctx.Context) {
		assert.Equal(t, "1.2.3.4", c.ClientIP())
	})(httptest.NewRecorder(), req)
}

func TestCookieRoundTrip(t *testing.T) {
	rec := httptest.NewRecorder()
	appctx.Wrap(func(c *appctx.Context) {
		c.SetCookie("cart_token", "tok", 3600, false)
		c.Status(http.StatusNoContent)
	})(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	cookies := rec.Result().Cookies()
	if assert.Len(t, cookies, 1) {
		assert.Equal(t, "tok", cookies[0].Value)
		assert.True(t, cookies[0].HttpOnly)
	}
}

func TestNotFound(t *testing.T) {
	rec := httptest.NewRecorder()
	appctx.Wrap(func(c *appctx.Context) {
		c.NotFound("Item missing")
	})(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Item missing")
}
