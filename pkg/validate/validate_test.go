package validate_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/shashiranjanraj/storefront/pkg/validate"
)

type customer struct {
	Name  string `json:"name"  validate:"required,max=100"`
	Phone string `json:"phone" validate:"required,phone"`
	Email string `json:"email" validate:"nullable,email"`
}

type orderInput struct {
	Customer customer        `json:"customer"       validate:"required,nested"`
	Method   string          `json:"payment_method" validate:"required,in=cash,gateway"`
	Total    decimal.Decimal `json:"total"          validate:"gt=0"`
	Lines    []string        `json:"items"          validate:"min=1"`
	Notes    string          `json:"notes"          validate:"nullable,max=10"`
}

func validOrder() orderInput {
	return orderInput{
		Customer: customer{Name: "Ana", Phone: "+54 11 5555-1234"},
		Method:   "cash",
		Total:    decimal.RequireFromString("12.50"),
		Lines:    []string{"i1"},
	}
}

func TestValidInput(t *testing.T) {
	errs := validate.Struct(validOrder())
	assert.False(t, validate.HasErrors(errs), "%v", errs)
}

func TestRequiredFails(t *testing.T) {
	errs := validate.Struct(orderInput{})
	assert.True(t, validate.HasErrors(errs))
	assert.Contains(t, errs, "customer")
	assert.Contains(t, errs, "payment_method")
	assert.Contains(t, errs, "items")
}

func TestNestedFieldsArePrefixed(t *testing.T) {
	in := validOrder()
	in.Customer = customer{Name: "Ana", Phone: "abc", Email: "nope"}

	errs := validate.Struct(in)
	assert.Contains(t, errs, "customer.phone")
	assert.Contains(t, errs, "customer.email")
	assert.NotContains(t, errs, "customer.name")
}

func TestNestedPointer(t *testing.T) {
	type wrapper struct {
		C *customer `json:"c" validate:"nested"`
	}
	assert.Empty(t, validate.Struct(wrapper{}))
	errs := validate.Struct(&wrapper{C: &customer{}})
	assert.Contains(t, errs, "c.name")
	assert.Contains(t, errs, "c.phone")
}

func TestPhoneRule(t *testing.T) {
	type in struct {
		Phone string `json:"phone" validate:"required,phone"`
	}
	for _, ok := range []string{"5551234", "+1 (555) 123-4567", "011-4555-0000"} {
		assert.Empty(t, validate.Struct(in{Phone: ok}), ok)
	}
	for _, bad := range []string{"12345", "555-CALL-NOW", "+1 555 123 4567 890 1234"} {
		assert.Contains(t, validate.Struct(in{Phone: bad}), "phone", bad)
	}
}

func TestEmailRule(t *testing.T) {
	type in struct {
		Email string `json:"email" validate:"required,email"`
	}
	assert.Contains(t, validate.Struct(in{Email: "not-an-email"}), "email")
	assert.Empty(t, validate.Struct(in{Email: "valid@example.com"}))
}

func TestNumericBounds(t *testing.T) {
	type in struct {
		Qty int `json:"qty" validate:"required,gte=1,max=99"`
	}
	assert.NotEmpty(t, validate.Struct(in{Qty: 100}))
	assert.Empty(t, validate.Struct(in{Qty: 3}))
}

func TestDecimalGreaterThan(t *testing.T) {
	in := validOrder()
	in.Total = decimal.Zero
	assert.Contains(t, validate.Struct(in), "total")

	in.Total = decimal.RequireFromString("0.01")
	assert.NotContains(t, validate.Struct(in), "total")
}

func TestInRule(t *testing.T) {
	in := validOrder()
	in.Method = "crypto"
	assert.Equal(t, "The selected payment_method is invalid.", validate.Struct(in)["payment_method"])

	in.Method = "gateway"
	assert.Empty(t, validate.Struct(in))
}

func TestNullableSkipsRules(t *testing.T) {
	type in struct {
		Website string `json:"website" validate:"nullable,url"`
	}
	assert.Empty(t, validate.Struct(in{Website: ""}))
	assert.NotEmpty(t, validate.Struct(in{Website: "not-a-url"}))
}

func TestMaxLengthCountsRunes(t *testing.T) {
	in := validOrder()
	in.Notes = "ñandú ñandú"
	assert.Contains(t, validate.Struct(in), "notes")

	in.Notes = "sin cebolla"[:10]
	assert.Empty(t, validate.Struct(in))
}

func TestURLRule(t *testing.T) {
	type in struct {
		Site string `json:"site" validate:"required,url"`
	}
	assert.Empty(t, validate.Struct(in{Site: "https://example.com/menu"}))
	assert.NotEmpty(t, validate.Struct(in{Site: "ftp://example.com"}))
}

func TestRegexRule(t *testing.T) {
	type in struct {
		ID string `json:"id" validate:"required,regex=^order_[0-9]+_[a-z0-9]{9}$"`
	}
	assert.Empty(t, validate.Struct(in{ID: "order_1700000000000_abc123xyz"}))
	assert.NotEmpty(t, validate.Struct(in{ID: "ord-1"}))
}
