package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/patric-chuzhbe/flatapi/internal/apperr"
)

type payload struct {
	Phone    string `json:"phone" validate:"phone"`
	Password string `json:"password,omitempty" validate:"required"`
}

func TestStruct(t *testing.T) {
	validate := New()

	assert.NoError(t, Struct(validate, payload{Phone: "5551234567", Password: "x"}))

	err := Struct(validate, payload{Phone: "555"})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Equal(t, DefaultMessage+": phone, password", apperr.Message(err))
}

func TestPhone(t *testing.T) {
	tests := []struct {
		phone string
		want  bool
	}{
		{"5551234567", true},
		{"0000000000", true},
		{"-123456789", false},
		{"+123456789", false},
		{"12345.6789", false},
		{"555123456", false},
		{"55512345678", false},
		{"555123456x", false},
		{"５５５1234567", false},
	}
	validate := New()
	for _, test := range tests {
		t.Run(test.phone, func(t *testing.T) {
			assert.Equal(t, test.want, IsPhone(test.phone))
			assert.Equal(t, test.want, validate.Var(test.phone, PhoneTag) == nil)
		})
	}
}
