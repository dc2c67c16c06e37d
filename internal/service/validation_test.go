package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidZipCode(t *testing.T) {
	valid := []string{"560035", "110001", "012345", "90210", "12345-6789", " 411001 "}
	for _, zip := range valid {
		assert.True(t, ValidZipCode(zip), "expected %q to be valid", zip)
	}

	invalid := []string{"", "1234", "0123456", "560 035", "abcdef", "1234567", "12345-678"}
	for _, zip := range invalid {
		assert.False(t, ValidZipCode(zip), "expected %q to be invalid", zip)
	}
}

func TestNormalizePhone(t *testing.T) {
	assert.Equal(t, "919876543210", NormalizePhone("+91 98765 43210"))
	assert.Equal(t, "0801234567", NormalizePhone("(080) 123-4567"))
	assert.Equal(t, "", NormalizePhone("n/a"))
}

func TestValidPhone(t *testing.T) {
	assert.True(t, ValidPhone("9876543210"))
	assert.True(t, ValidPhone("+91 98765 43210"))
	assert.False(t, ValidPhone("12345"))
	assert.False(t, ValidPhone("1234567890123"))
	assert.False(t, ValidPhone(""))
}

func TestValidatorTags(t *testing.T) {
	v := NewValidator()

	type payload struct {
		Zip   string `validate:"zipcode"`
		Phone string `validate:"phone"`
	}

	assert.NoError(t, v.Struct(payload{Zip: "560035", Phone: "9876543210"}))
	assert.Error(t, v.Struct(payload{Zip: "56", Phone: "9876543210"}))
	assert.Error(t, v.Struct(payload{Zip: "560035", Phone: "12"}))
}
