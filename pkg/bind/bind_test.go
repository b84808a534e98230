package bind_test

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/storefront/pkg/bind"
)

type addItem struct {
	ItemID   string `json:"itemId"   validate:"required"`
	Quantity int    `json:"quantity" validate:"required,gte=1"`
}

func TestJSONValid(t *testing.T) {
	r := httptest.NewRequest("POST", "/", strings.NewReader(`{"itemId":"pizza","quantity":2}`))
	var in addItem
	errs, err := bind.JSON(httptest.NewRecorder(), r, &in)
	require.NoError(t, err)
	assert.Empty(t, errs)
	assert.Equal(t, addItem{ItemID: "pizza", Quantity: 2}, in)
}

func TestJSONValidationErrors(t *testing.T) {
	r := httptest.NewRequest("POST", "/", strings.NewReader(`{"quantity":0}`))
	var in addItem
	errs, err := bind.JSON(httptest.NewRecorder(), r, &in)
	require.NoError(t, err)
	assert.Contains(t, errs, "itemId")
	assert.Contains(t, errs, "quantity")
}

func TestJSONMalformedAndEmpty(t *testing.T) {
	var in addItem
	_, err := bind.JSON(httptest.NewRecorder(), httptest.NewRequest("POST", "/", strings.NewReader(`{`)), &in)
	assert.ErrorContains(t, err, "invalid JSON")

	_, err = bind.JSON(httptest.NewRecorder(), httptest.NewRequest("POST", "/", strings.NewReader(``)), &in)
	assert.ErrorIs(t, err, bind.ErrEmptyBody)
}
