package validator

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type orderForm struct {
	Name   string `json:"customer_name" validate:"required,min=2,max=100"`
	Phone  string `json:"customer_phone" validate:"required,ruphone"`
	Status string `json:"status,omitempty" validate:"omitempty,oneof=new processed"`
}

func TestValidate_Success(t *testing.T) {
	err := Validate(orderForm{Name: "Анна", Phone: "+7 (999) 123-45-67"})
	assert.NoError(t, err)
}

func TestValidate_UsesJSONFieldNames(t *testing.T) {
	err := Validate(orderForm{})
	require.Error(t, err)

	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	fields := valErr.Fields()
	assert.Equal(t, "is required", fields["customer_name"])
	assert.Equal(t, "is required", fields["customer_phone"])
}

func TestValidate_NameLengthCountsRunes(t *testing.T) {
	// "Я" is two bytes but one character.
	err := Validate(orderForm{Name: "Я", Phone: "89991234567"})
	require.Error(t, err)

	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, "must be at least 2 characters", valErr.Fields()["customer_name"])
}

func TestValidate_Phone(t *testing.T) {
	err := Validate(orderForm{Name: "Иван", Phone: "12345"})
	require.Error(t, err)

	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Contains(t, valErr.Fields()["customer_phone"], "valid phone number")
}

func TestValidate_OneOf(t *testing.T) {
	err := Validate(orderForm{Name: "Иван", Phone: "89991234567", Status: "shipped"})
	require.Error(t, err)

	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, "must be one of: new processed", valErr.Fields()["status"])
}

func TestValidationError_ErrorString(t *testing.T) {
	err := Validate(orderForm{Phone: "89991234567"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "field 'customer_name' is required")
}

func TestDecodeAndValidate(t *testing.T) {
	t.Run("valid body", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/", strings.NewReader(`{"customer_name":"Иван","customer_phone":"89991234567"}`))
		var f orderForm
		require.NoError(t, DecodeAndValidate(r, &f))
		assert.Equal(t, "Иван", f.Name)
	})

	t.Run("malformed json", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/", strings.NewReader(`{"customer_name":`))
		var f orderForm
		err := DecodeAndValidate(r, &f)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "decode request body")
	})

	t.Run("invalid fields", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/", strings.NewReader(`{"customer_name":"Иван","customer_phone":"1"}`))
		var f orderForm
		var valErr *ValidationError
		require.ErrorAs(t, DecodeAndValidate(r, &f), &valErr)
	})
}
