package normalize

import (
	"testing"

	"github.com/goliatone/go-crmsync/core"
)

func TestNormalize_FormatsPerMode(t *testing.T) {
	cases := []struct {
		format string
		input  string
		want   string
	}{
		{core.PhoneFormatInternational, "5551234567", "+1-555-123-4567"},
		{core.PhoneFormatInternational, "(555) 123-4567", "+1-555-123-4567"},
		{core.PhoneFormatInternational, "+1 555 123 4567", "+1-555-123-4567"},
		{core.PhoneFormatInternational, "+44 20 7946 0958", "+44-207-946-0958"},
		{core.PhoneFormatNational, "+1-555-123-4567", "555-123-4567"},
		{core.PhoneFormatRaw, "555.123.4567", "5551234567"},
		{core.PhoneFormatRaw, "+44 20 7946 0958", "442079460958"},
		{core.PhoneFormatInternational, "12345", "12345"},
		{core.PhoneFormatInternational, "no digits", ""},
	}
	for _, tc := range cases {
		n := PhoneNormalizer{Format: tc.format, DefaultCountryCode: "1", RequireCountryCode: true}
		if got := n.Normalize(tc.input); got != tc.want {
			t.Fatalf("%s %q: expected %q, got %q", tc.format, tc.input, tc.want, got)
		}
	}
}

func TestNormalize_IsIdempotent(t *testing.T) {
	inputs := []string{
		"5551234567",
		"(555) 123-4567",
		"+1-555-123-4567",
		"1 (555) 123 4567 ext",
		"+44 20 7946 0958",
		"0049 30 1234567890",
		"123",
		"",
	}
	for _, format := range []string{core.PhoneFormatInternational, core.PhoneFormatNational, core.PhoneFormatRaw} {
		for _, code := range []string{"1", "44", ""} {
			n := PhoneNormalizer{Format: format, DefaultCountryCode: code}
			for _, input := range inputs {
				once := n.Normalize(input)
				twice := n.Normalize(once)
				if once != twice {
					t.Fatalf("format=%s cc=%q input=%q: normalize not idempotent: %q then %q", format, code, input, once, twice)
				}
			}
		}
	}
}

func TestCanonical_IsFormatIndependent(t *testing.T) {
	n := PhoneNormalizer{Format: core.PhoneFormatInternational, DefaultCountryCode: "1"}
	want := "15551234567"
	for _, input := range []string{"5551234567", "+1-555-123-4567", "(555) 123-4567", "555-123-4567"} {
		if got := n.Canonical(input); got != want {
			t.Fatalf("canonical %q: expected %q, got %q", input, want, got)
		}
	}
}

func TestValidate_RequiresCountryCodeWhenConfigured(t *testing.T) {
	strict := PhoneNormalizer{DefaultCountryCode: "1", RequireCountryCode: true}
	if err := strict.Validate("555-123-4567"); err != nil {
		t.Fatalf("default country code should complete domestic number: %v", err)
	}
	if err := strict.Validate("123-4567"); err == nil {
		t.Fatalf("expected short number to be rejected")
	}
	if err := strict.Validate("call me"); err == nil {
		t.Fatalf("expected digitless input to be rejected")
	}

	if err := strict.Validate("+44 20 7946 0958"); err != nil {
		t.Fatalf("explicit country code should pass: %v", err)
	}

	noDefault := PhoneNormalizer{RequireCountryCode: true}
	if err := noDefault.Validate("555-123-4567"); err == nil {
		t.Fatalf("expected bare domestic number to be rejected without a default country code")
	}
	if err := noDefault.Validate("+1 555-123-4567"); err != nil {
		t.Fatalf("explicit country code should pass without a default: %v", err)
	}

	lenient := PhoneNormalizer{DefaultCountryCode: "1"}
	if err := lenient.Validate("123-4567"); err != nil {
		t.Fatalf("lenient validation should accept short numbers: %v", err)
	}
}

func TestEmailHelpers(t *testing.T) {
	if got := Email("  Jane.Doe@Example.COM "); got != "jane.doe@example.com" {
		t.Fatalf("unexpected normalized email %q", got)
	}
	if err := ValidateEmail("jane@example.com"); err != nil {
		t.Fatalf("expected valid email: %v", err)
	}
	if err := ValidateEmail("Jane <jane@example.com>"); err == nil {
		t.Fatalf("expected display-name form to be rejected")
	}
	if err := ValidateEmail("not-an-email"); err == nil {
		t.Fatalf("expected invalid email")
	}

	placeholder := PlaceholderEmail("15551234567")
	if placeholder != "phone-15551234567@phone-only.invalid" {
		t.Fatalf("unexpected placeholder %q", placeholder)
	}
	if !IsPlaceholderEmail(placeholder) {
		t.Fatalf("expected placeholder to be recognised")
	}
	if IsPlaceholderEmail("jane@example.com") {
		t.Fatalf("real email must not be a placeholder")
	}
	if PlaceholderEmail("15551234567") == PlaceholderEmail("15551234568") {
		t.Fatalf("placeholders must differ per number")
	}
}
