package normalize

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-crmsync/core"
)

// domesticDigits is the length of a national significant number.
const domesticDigits = 10

type PhoneNormalizer struct {
	Format             string
	DefaultCountryCode string
	RequireCountryCode bool
}

func NewPhoneNormalizer(cfg core.PhoneConfig) PhoneNormalizer {
	return PhoneNormalizer{
		Format:             strings.TrimSpace(cfg.Format),
		DefaultCountryCode: strings.TrimSpace(cfg.DefaultCountryCode),
		RequireCountryCode: cfg.RequireCountryCode,
	}
}

func Digits(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Canonical returns the format independent digit string used as the phone
// lookup key. A bare domestic number gets the default country code.
func (n PhoneNormalizer) Canonical(raw string) string {
	digits := Digits(raw)
	if len(digits) == domesticDigits && n.DefaultCountryCode != "" {
		return n.DefaultCountryCode + digits
	}
	return digits
}

// Normalize renders raw in the configured format. It is total and
// idempotent: Normalize(Normalize(x)) == Normalize(x).
func (n PhoneNormalizer) Normalize(raw string) string {
	canonical := n.Canonical(raw)
	if len(canonical) < domesticDigits {
		return canonical
	}
	countryCode := canonical[:len(canonical)-domesticDigits]
	national := canonical[len(canonical)-domesticDigits:]
	grouped := national[:3] + "-" + national[3:6] + "-" + national[6:]

	switch n.format() {
	case core.PhoneFormatNational:
		return grouped
	case core.PhoneFormatRaw:
		if countryCode == "" || countryCode == n.DefaultCountryCode {
			return national
		}
		return canonical
	default:
		if countryCode == "" {
			return grouped
		}
		return "+" + countryCode + "-" + grouped
	}
}

// Validate rejects input that carries no digits. When a country code is
// required, the raw digits must either carry one (more than ten digits) or be
// a bare ten digit number that DefaultCountryCode completes. With a default
// country code set, a bare domestic number therefore always passes; only an
// empty DefaultCountryCode makes the caller supply the code.
func (n PhoneNormalizer) Validate(raw string) error {
	digits := Digits(raw)
	if digits == "" {
		return fmt.Errorf("normalize: phone %q has no digits", raw)
	}
	if !n.RequireCountryCode {
		return nil
	}
	switch {
	case len(digits) > domesticDigits:
		return nil
	case len(digits) == domesticDigits && n.DefaultCountryCode != "":
		return nil
	case len(digits) == domesticDigits:
		return fmt.Errorf("normalize: phone %q is missing a country code and no default is configured", raw)
	default:
		return fmt.Errorf("normalize: phone %q is too short to carry a country code", raw)
	}
}

func (n PhoneNormalizer) format() string {
	switch n.Format {
	case core.PhoneFormatNational, core.PhoneFormatRaw:
		return n.Format
	default:
		return core.PhoneFormatInternational
	}
}
