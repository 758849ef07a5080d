package mpesa

import "strings"

// phoneDigits is the length of a normalized Kenyan MSISDN (254 + 9 digits).
const phoneDigits = 12

// NormalizePhone converts a phone number to the canonical 254XXXXXXXXX
// digit string the gateway expects. Accepts "+2547...", "07...", "7..."
// and already-normalized forms; anything else fails with ErrInvalidPhone.
func NormalizePhone(phone string) (string, error) {
	var digits strings.Builder
	for _, r := range strings.TrimSpace(phone) {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		} else if r != '+' && r != ' ' && r != '-' {
			return "", ErrInvalidPhone
		}
	}

	normalized := digits.String()
	switch {
	case strings.HasPrefix(normalized, "254"):
		// Already canonical.
	case strings.HasPrefix(normalized, "0"):
		normalized = "254" + normalized[1:]
	case strings.HasPrefix(normalized, "7") || strings.HasPrefix(normalized, "1"):
		normalized = "254" + normalized
	}

	if len(normalized) != phoneDigits {
		return "", ErrInvalidPhone
	}

	return normalized, nil
}
