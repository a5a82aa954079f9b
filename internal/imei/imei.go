package imei

import (
	"errors"
	"strings"
)

// Length is the number of digits in an IMEI.
const Length = 15

var (
	ErrEmptyInput     = errors.New("imei is required")
	ErrBadFormat      = errors.New("imei must be 15 digits")
	ErrChecksumFailed = errors.New("imei checksum failed")
)

// Digits drops every non-digit character from raw.
func Digits(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for i := 0; i < len(raw); i++ {
		if c := raw[i]; c >= '0' && c <= '9' {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// Validate normalizes raw input into a 15-digit IMEI and verifies its Luhn checksum.
func Validate(raw string) (string, error) {
	s := Digits(raw)
	if s == "" {
		return "", ErrEmptyInput
	}
	if len(s) != Length {
		return "", ErrBadFormat
	}
	if !luhn(s) {
		return "", ErrChecksumFailed
	}
	return s, nil
}

// luhn expects ASCII digits only.
func luhn(s string) bool {
	sum := 0
	for i := len(s) - 1; i >= 0; i-- {
		d := int(s[i] - '0')
		if (len(s)-i)%2 == 0 {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
	}
	return sum%10 == 0
}
