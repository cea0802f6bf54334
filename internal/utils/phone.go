package utils

import (
	"errors"
	"regexp"
	"strings"
)

// ErrInvalidPhoneFormat is returned for numbers no configured region accepts
var ErrInvalidPhoneFormat = errors.New("invalid phone number format")

var phoneNoise = regexp.MustCompile(`[^\d+]`)

// PhoneRegion describes the accepted spellings of one country's mobile numbers.
// Each pattern must capture the subscriber number in its first group; the
// normalized form is "+" + CountryCode + subscriber.
type PhoneRegion struct {
	Name        string
	CountryCode string
	Patterns    []*regexp.Regexp
}

// DefaultPhoneRegions returns Kuwait followed by Saudi Arabia
func DefaultPhoneRegions() []PhoneRegion {
	return []PhoneRegion{
		{
			Name:        "KW",
			CountryCode: "965",
			Patterns: []*regexp.Regexp{
				regexp.MustCompile(`^\+965([56789]\d{7})$`),
				regexp.MustCompile(`^965([56789]\d{7})$`),
				regexp.MustCompile(`^([56789]\d{7})$`),
			},
		},
		{
			Name:        "SA",
			CountryCode: "966",
			Patterns: []*regexp.Regexp{
				regexp.MustCompile(`^\+966(5\d{8})$`),
				regexp.MustCompile(`^966(5\d{8})$`),
				regexp.MustCompile(`^0(5\d{8})$`),
			},
		},
	}
}

// PhoneNormalizer maps user-entered phone numbers to one canonical form
type PhoneNormalizer struct {
	regions []PhoneRegion
}

// NewPhoneNormalizer returns a normalizer over regions, checked in order.
// With no regions it uses DefaultPhoneRegions.
func NewPhoneNormalizer(regions ...PhoneRegion) *PhoneNormalizer {
	if len(regions) == 0 {
		regions = DefaultPhoneRegions()
	}
	return &PhoneNormalizer{regions: regions}
}

// Normalize strips formatting and returns "+<country code><subscriber>"
func (n *PhoneNormalizer) Normalize(raw string) (string, error) {
	cleaned := phoneNoise.ReplaceAllString(strings.TrimSpace(raw), "")
	if cleaned == "" {
		return "", ErrInvalidPhoneFormat
	}
	for _, region := range n.regions {
		for _, pattern := range region.Patterns {
			if m := pattern.FindStringSubmatch(cleaned); len(m) == 2 {
				return "+" + region.CountryCode + m[1], nil
			}
		}
	}
	return "", ErrInvalidPhoneFormat
}

// Valid reports whether raw normalizes
func (n *PhoneNormalizer) Valid(raw string) bool {
	_, err := n.Normalize(raw)
	return err == nil
}
