package integration

import (
	"fmt"
	"strings"
)

// PartnerCode identifies a delivery partner
type PartnerCode string

const (
	// PartnerJahez represents the Jahez delivery platform
	PartnerJahez PartnerCode = "jahez"
	// PartnerHungerStation represents the HungerStation delivery platform
	PartnerHungerStation PartnerCode = "hungerstation"
	// PartnerKeeta represents the Keeta delivery platform
	PartnerKeeta PartnerCode = "keeta"
)

// AllPartners returns every supported partner
func AllPartners() []PartnerCode {
	return []PartnerCode{PartnerJahez, PartnerHungerStation, PartnerKeeta}
}

// IsValid returns true if the partner code is supported
func (c PartnerCode) IsValid() bool {
	switch c {
	case PartnerJahez, PartnerHungerStation, PartnerKeeta:
		return true
	default:
		return false
	}
}

// String returns the string representation of PartnerCode
func (c PartnerCode) String() string {
	return string(c)
}

// DisplayName returns a human-readable name for the partner
func (c PartnerCode) DisplayName() string {
	switch c {
	case PartnerJahez:
		return "Jahez"
	case PartnerHungerStation:
		return "HungerStation"
	case PartnerKeeta:
		return "Keeta"
	default:
		return string(c)
	}
}

// WebhookPath returns the inbound webhook route for the partner
func (c PartnerCode) WebhookPath() string {
	return "/webhooks/" + string(c)
}

// ParsePartnerCode parses a partner name case-insensitively
func ParsePartnerCode(s string) (PartnerCode, error) {
	code := PartnerCode(strings.ToLower(strings.TrimSpace(s)))
	if !code.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownPartner, s)
	}
	return code, nil
}
