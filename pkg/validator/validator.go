// ==============================================================================
// VALIDATOR PACKAGE - pkg/validator/validator.go
// ==============================================================================
package validator

import (
	"fmt"
	"html"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var (
	// Moroccan IBAN: MA followed by 26 digits.
	ibanPattern = regexp.MustCompile(`^MA\d{26}$`)
	// ICE (Identifiant Commun de l'Entreprise): exactly 15 digits.
	icePattern = regexp.MustCompile(`^\d{15}$`)
	// E.164 phone (+ then up to 15 digits).
	phonePattern = regexp.MustCompile(`^\+[1-9]\d{1,14}$`)
)

type Validator struct {
	validate *validator.Validate
}

func New() *Validator {
	v := &Validator{
		validate: validator.New(),
	}
	v.registerCustomValidations()
	return v
}

func (v *Validator) Validate(i interface{}) error {
	if err := v.validate.Struct(i); err != nil {
		// Format validation errors
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			var errMessages []string
			for _, e := range validationErrors {
				errMessages = append(errMessages, fmt.Sprintf(
					"Field '%s' failed validation '%s'",
					e.Field(),
					e.Tag(),
				))
			}
			return fmt.Errorf("validation failed: %v", errMessages)
		}
		return err
	}
	return nil
}

// ValidateStructured returns a map of field -> error message for frontend usage
func (v *Validator) ValidateStructured(i interface{}) map[string]string {
	errs := make(map[string]string)
	if err := v.validate.Struct(i); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			for _, e := range validationErrors {
				msg := fmt.Sprintf("failed validation on '%s'", e.Tag())
				switch e.Tag() {
				case "required":
					msg = "This field is required"
				case "email":
					msg = "Invalid email address"
				case "min":
					msg = fmt.Sprintf("Must be at least %s characters", e.Param())
				case "max":
					msg = fmt.Sprintf("Must be at most %s characters", e.Param())
				case "intl_phone":
					msg = "Invalid phone number format (international format required)"
				case "ma_iban":
					msg = "Invalid IBAN (expected MA followed by 26 digits)"
				case "ice":
					msg = "Invalid ICE (expected exactly 15 digits)"
				}
				errs[e.Field()] = msg
			}
		} else {
			errs["_global"] = err.Error()
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

func (v *Validator) registerCustomValidations() {
	// Register decimal.Decimal to be validated as float64 for gt/lt checks
	v.validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if val, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := val.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})

	_ = v.validate.RegisterValidation("ma_iban", func(fl validator.FieldLevel) bool {
		return ibanPattern.MatchString(strings.ToUpper(strings.TrimSpace(fl.Field().String())))
	})

	_ = v.validate.RegisterValidation("ice", func(fl validator.FieldLevel) bool {
		return icePattern.MatchString(strings.TrimSpace(fl.Field().String()))
	})

	_ = v.validate.RegisterValidation("intl_phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(strings.TrimSpace(fl.Field().String()))
	})
}

// IsValidIBAN reports whether s is a well-formed Moroccan IBAN.
func IsValidIBAN(s string) bool {
	return ibanPattern.MatchString(strings.ToUpper(strings.TrimSpace(s)))
}

// IsValidICE reports whether s is a well-formed ICE number.
func IsValidICE(s string) bool {
	return icePattern.MatchString(strings.TrimSpace(s))
}

// IsValidPhone reports whether s is an international-format phone number.
func IsValidPhone(s string) bool {
	return phonePattern.MatchString(strings.TrimSpace(s))
}

// Sanitize cleans string input to prevent XSS attacks
func Sanitize(input string) string {
	return html.EscapeString(strings.TrimSpace(input))
}
