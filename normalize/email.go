package normalize

import (
	"fmt"
	"net/mail"
	"strings"
)

const placeholderDomain = "phone-only.invalid"

func Email(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

func ValidateEmail(raw string) error {
	email := Email(raw)
	if email == "" {
		return fmt.Errorf("normalize: email is empty")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return fmt.Errorf("normalize: email %q is invalid", raw)
	}
	return nil
}

// PlaceholderEmail derives the synthetic address stored for phone-only
// contacts. Embedding every digit keeps distinct numbers from colliding.
func PlaceholderEmail(canonicalDigits string) string {
	return "phone-" + Digits(canonicalDigits) + "@" + placeholderDomain
}

func IsPlaceholderEmail(email string) bool {
	return strings.HasSuffix(Email(email), "@"+placeholderDomain)
}
