// Package normalize converts loosely formatted customer input into the exact
// field formats the external scheduler accepts.
package normalize

import (
	"strings"

	"github.com/ttacon/libphonenumber"
)

// PlaceholderPhone is substituted when no usable number was supplied. The
// scheduler rejects bookings without a phone, so a syntactically valid,
// non-working number keeps the booking moving.
const PlaceholderPhone = "+15555555555"

const defaultRegion = "US"

// PhoneQuality reports how much confidence NormalizePhone has in its output.
type PhoneQuality int

const (
	// PhoneFormatted is a recognised US/NANP or internationally valid number.
	PhoneFormatted PhoneQuality = iota
	// PhonePlaceholder means the input had no digits and PlaceholderPhone was used.
	PhonePlaceholder
	// PhoneBestEffort means the digits were passed through with a "+" but the
	// result is probably not dialable. Callers should log a warning.
	PhoneBestEffort
)

func (q PhoneQuality) String() string {
	switch q {
	case PhonePlaceholder:
		return "placeholder"
	case PhoneBestEffort:
		return "best_effort"
	default:
		return "formatted"
	}
}

// NormalizePhone returns an E.164-like string that always starts with "+".
// It never fails.
func NormalizePhone(raw string) (string, PhoneQuality) {
	trimmed := strings.TrimSpace(raw)
	digits := digitsOnly(trimmed)
	if digits == "" {
		return PlaceholderPhone, PhonePlaceholder
	}

	switch {
	case strings.HasPrefix(trimmed, "+"):
		out := "+" + digits
		return out, grade(out)
	case len(digits) == 11 && digits[0] == '1':
		return "+" + digits, PhoneFormatted
	case len(digits) == 10:
		return "+1" + digits, PhoneFormatted
	default:
		out := "+" + digits
		if grade(out) == PhoneFormatted {
			return out, PhoneFormatted
		}
		return out, PhoneBestEffort
	}
}

// grade asks libphonenumber whether an already "+"-prefixed number is valid.
func grade(e164 string) PhoneQuality {
	num, err := libphonenumber.Parse(e164, defaultRegion)
	if err != nil || !libphonenumber.IsValidNumber(num) {
		return PhoneBestEffort
	}
	return PhoneFormatted
}

func digitsOnly(value string) string {
	var b strings.Builder
	b.Grow(len(value))
	for _, r := range value {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
