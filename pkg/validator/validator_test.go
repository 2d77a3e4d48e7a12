package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidIBAN(t *testing.T) {
	assert.True(t, IsValidIBAN("MA64011519000001205000534921"))
	assert.True(t, IsValidIBAN("  ma64011519000001205000534921  "))
	assert.False(t, IsValidIBAN("FR7630006000011234567890189"))
	assert.False(t, IsValidIBAN("MA640115190000012050005349"))
	assert.False(t, IsValidIBAN(""))
}

func TestIsValidICE(t *testing.T) {
	assert.True(t, IsValidICE("123456789012345"))
	assert.False(t, IsValidICE("12345"))
	assert.False(t, IsValidICE("1234567890123456"))
	assert.False(t, IsValidICE("12345678901234a"))
}

func TestIsValidPhone(t *testing.T) {
	assert.True(t, IsValidPhone("+212612345678"))
	assert.True(t, IsValidPhone("+33612345678"))
	assert.False(t, IsValidPhone("0612345678"))
	assert.False(t, IsValidPhone("+0612345678"))
}

func TestValidateStructured(t *testing.T) {
	type payload struct {
		Phone string `validate:"required,intl_phone"`
		IBAN  string `validate:"required,ma_iban"`
	}

	v := New()
	errs := v.ValidateStructured(payload{Phone: "bad", IBAN: "bad"})
	assert.Contains(t, errs, "Phone")
	assert.Contains(t, errs, "IBAN")

	errs = v.ValidateStructured(payload{
		Phone: "+212612345678",
		IBAN:  "MA64011519000001205000534921",
	})
	assert.Nil(t, errs)
}
