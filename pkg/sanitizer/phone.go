package sanitizer

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// Booking contact numbers are overwhelmingly Indonesian, but customers
// booking from abroad show up with their home-country numbers in full
// international form, which the parser handles without a region hint.
var supportedRegions = []string{
	"ID",
}

// NormalizePhone parses a contact number and returns it in E.164 form, or
// the empty string when the number cannot be parsed for any supported
// region.
func NormalizePhone(phone string) string {
	phone = strings.TrimSpace(phone)

	if phone == "" {
		return ""
	}

	for _, region := range supportedRegions {
		parsed, err := phonenumbers.Parse(phone, region)
		if err == nil && phonenumbers.IsValidNumber(parsed) {
			return phonenumbers.Format(parsed, phonenumbers.E164)
		}
	}
	return ""
}

// DigitsOnly strips everything except digits. The store schema keeps the
// canonical contact number without the leading plus.
func DigitsOnly(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
