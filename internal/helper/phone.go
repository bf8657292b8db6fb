package helper

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	phoneChars = regexp.MustCompile(`^[\d\s\+\-\(\)]+$`)
	nonDigits  = regexp.MustCompile(`[^\d]`)
)

// NormalizePhoneNumber strips formatting from a phone number and validates
// it as a plausible international number in digits-only form. Recipients
// that already carry a protocol address ("...@server") pass through
// untouched; the adapter parses those itself.
func NormalizePhoneNumber(phone string) (string, error) {
	if strings.ContainsRune(phone, '@') {
		return phone, nil
	}

	if !phoneChars.MatchString(phone) {
		return "", fmt.Errorf("invalid phone number format: contains invalid characters")
	}

	cleaned := nonDigits.ReplaceAllString(phone, "")
	if len(cleaned) < 8 || len(cleaned) > 15 {
		return "", fmt.Errorf("invalid phone number length")
	}
	if cleaned[0] == '0' {
		return "", fmt.Errorf("phone number must include a country code")
	}

	return cleaned, nil
}

// ExtractPhoneFromJID pulls the bare number out of a protocol address,
// e.g. "6285148107612:43@s.whatsapp.net" -> "6285148107612".
func ExtractPhoneFromJID(jid string) string {
	beforeAt, _, _ := strings.Cut(jid, "@")
	user, _, _ := strings.Cut(beforeAt, ":")
	return user
}
