package response_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/storefront/pkg/response"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestSuccessEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	response.Success(rec, map[string]int{"count": 3})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	body := decode(t, rec)
	assert.Equal(t, float64(200), body["status"])
	assert.Equal(t, map[string]any{"count": float64(3)}, body["data"])
}

func TestValidationErrorEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	response.ValidationError(rec, map[string]string{"customer.phone": "bad"})

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "Validation failed", body["message"])
	assert.Equal(t, map[string]any{"customer.phone": "bad"}, body["errors"])
}

func TestUnavailable(t *testing.T) {
	rec := httptest.NewRecorder()
	response.Unavailable(rec, "try again")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "try again", decode(t, rec)["message"])
}
