package integration

import (
	"fmt"

	"github.com/uniorder/backend/internal/domain/shared"
)

// ---------------------------------------------------------------------------
// Integration Errors
// ---------------------------------------------------------------------------

var (
	ErrUnknownPartner        = shared.NewDomainError(shared.CodeNotFound, "integration: unknown partner")
	ErrPartnerNotConfigured  = shared.NewDomainError(shared.CodeNotFound, "integration: partner not configured")
	ErrPartnerInactive       = shared.NewDomainError(shared.CodeUnavailable, "integration: partner integration is inactive")
	ErrAuthentication        = shared.NewDomainError(shared.CodeUnauthorized, "integration: webhook authentication failed")
	ErrOutboundSync          = shared.NewDomainError(shared.CodeOutboundFailed, "integration: outbound sync failed")
	ErrUnsupportedAction     = shared.NewDomainError(shared.CodeInvalidInput, "integration: unsupported outbound action")
	ErrInvalidPartnerPayload = shared.NewDomainError(shared.CodeValidation, "integration: payload is not a JSON object")
)

// AuthenticationError is returned when a webhook cannot be authenticated.
// The webhook is not acknowledged, so the partner retries it.
type AuthenticationError struct {
	Partner PartnerCode
	Reason  string
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("integration: %s webhook rejected: %s", e.Partner, e.Reason)
}

// Unwrap exposes the domain error so callers can map it to a response code
func (e *AuthenticationError) Unwrap() error {
	return ErrAuthentication
}

// OutboundSyncError is returned when a partner call fails after all retries.
// It never fails the internal transition that triggered it.
type OutboundSyncError struct {
	Partner         PartnerCode
	PlatformOrderID string
	Action          OutboundAction
	Attempts        int
	Err             error
}

func (e *OutboundSyncError) Error() string {
	return fmt.Sprintf("integration: %s %s for order %s failed after %d attempt(s): %v",
		e.Partner, e.Action, e.PlatformOrderID, e.Attempts, e.Err)
}

// Unwrap returns the last attempt's error
func (e *OutboundSyncError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match ErrOutboundSync
func (e *OutboundSyncError) Is(target error) bool {
	return target == ErrOutboundSync
}

// ErrInvalidConfiguration is the sentinel behind ConfigurationError
var ErrInvalidConfiguration = shared.NewDomainError(shared.CodeValidation, "integration: invalid configuration")

// ConfigurationError reports a rejected configure request
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("integration: invalid %s: %s", e.Field, e.Reason)
}

// Unwrap exposes the domain error so callers can map it to a response code
func (e *ConfigurationError) Unwrap() error {
	return ErrInvalidConfiguration
}
