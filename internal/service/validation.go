package service

import (
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	pinCodeRegex = regexp.MustCompile(`^[0-9]{6}$`)
	usZipRegex   = regexp.MustCompile(`^[0-9]{5}(-[0-9]{4})?$`)
	nonDigits    = regexp.MustCompile(`[^0-9]`)
)

// ValidZipCode accepts a 6-digit postal code or a 5-digit (optionally
// ZIP+4) code.
func ValidZipCode(zip string) bool {
	zip = strings.TrimSpace(zip)
	return pinCodeRegex.MatchString(zip) || usZipRegex.MatchString(zip)
}

// NormalizePhone strips everything but digits from a phone number.
func NormalizePhone(phone string) string {
	return nonDigits.ReplaceAllString(phone, "")
}

// ValidPhone accepts numbers that normalize to 10 to 12 digits, which
// covers bare national numbers and country-prefixed ones.
func ValidPhone(phone string) bool {
	digits := NormalizePhone(phone)
	return len(digits) >= 10 && len(digits) <= 12
}

// NewValidator builds the shared validator with the domain tags
// registered.
func NewValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("zipcode", func(fl validator.FieldLevel) bool {
		return ValidZipCode(fl.Field().String())
	})
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return ValidPhone(fl.Field().String())
	})
	return v
}
