package val_test

import (
	"testing"

	"github.com/code19m/errx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rise-and-shine/svcore/val"
)

type address struct {
	City string `json:"city" validate:"required"`
}

type order struct {
	Item     string   `json:"item"     validate:"required"`
	Quantity int      `json:"quantity" validate:"gte=1,lte=100"`
	Email    string   `json:"email"    validate:"omitempty,email"`
	Status   string   `json:"status"   validate:"omitempty,oneof=new paid"`
	Address  *address `json:"address"`
}

func TestStruct(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected []val.FieldError
	}{
		{
			name:  "valid",
			input: order{Item: "book", Quantity: 1},
		},
		{
			name:  "non struct passes",
			input: map[string]any{"item": ""},
		},
		{
			name:  "nil pointer passes",
			input: (*order)(nil),
		},
		{
			name:  "missing item and bad quantity",
			input: &order{Quantity: 0},
			expected: []val.FieldError{
				{Field: "item", Message: "This field is required"},
				{Field: "quantity", Message: "Must be greater than or equal to 1"},
			},
		},
		{
			name:  "nested and oneof",
			input: order{Item: "book", Quantity: 2, Status: "lost", Address: &address{}},
			expected: []val.FieldError{
				{Field: "status", Message: "Must be one of: new, paid"},
				{Field: "address.city", Message: "This field is required"},
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			// Act
			result := val.Struct(tc.input)

			// Assert
			assert.Equal(t, tc.expected, result)
		})
	}
}

func TestValidateSchema(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		require.NoError(t, val.ValidateSchema(order{Item: "pen", Quantity: 3}))
	})

	t.Run("invalid", func(t *testing.T) {
		// Act
		err := val.ValidateSchema(order{Quantity: 3, Email: "nope"})

		// Assert
		require.Error(t, err)
		e := errx.AsErrorX(err)
		assert.Equal(t, val.CodeValidationFailed, e.Code())
		assert.Equal(t, errx.T_Validation, e.Type())
		assert.Equal(t, "This field is required", e.Fields()["item"])
		assert.Equal(t, "Invalid email format", e.Fields()["email"])
	})
}
