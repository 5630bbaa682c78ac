// Package validation wraps go-playground/validator so that failures come
// back as client-facing validation errors naming the offending JSON fields.
package validation

import (
	"errors"
	"reflect"
	"strings"

	validator "github.com/go-playground/validator/v10"

	"github.com/patric-chuzhbe/flatapi/internal/apperr"
)

// DefaultMessage prefixes every validation failure.
const DefaultMessage = "Missing required fields or fields are invalid"

// PhoneTag validates a phone number: exactly ten ASCII digits, no sign,
// separator or decimal point.
const PhoneTag = "phone"

// IsPhone reports whether s satisfies PhoneTag.
func IsPhone(s string) bool {
	if len(s) != 10 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// New returns a validator reporting fields by their JSON names.
func New() *validator.Validate {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return field.Name
		}
		return name
	})
	_ = validate.RegisterValidation(PhoneTag, func(fieldLevel validator.FieldLevel) bool {
		return IsPhone(fieldLevel.Field().String())
	})

	return validate
}

// Struct validates s and converts failures into apperr validation errors.
func Struct(validate *validator.Validate, s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return apperr.Internal(apperr.UnknownErrorMessage, err)
	}

	fields := make([]string, 0, len(fieldErrors))
	for _, fieldError := range fieldErrors {
		fields = append(fields, fieldError.Field())
	}

	return apperr.Validation(DefaultMessage + ": " + strings.Join(fields, ", "))
}
