package integration

import (
	"time"

	"github.com/google/uuid"
)

// Defaults applied to new integration records
const (
	DefaultTimeout    = 30 * time.Second
	DefaultMaxRetries = 3
)

// SyncStatus is the connection health of a partner integration
type SyncStatus string

const (
	SyncStatusConnected    SyncStatus = "connected"
	SyncStatusDisconnected SyncStatus = "disconnected"
	SyncStatusError        SyncStatus = "error"
)

// IsValid returns true if the sync status is known
func (s SyncStatus) IsValid() bool {
	switch s {
	case SyncStatusConnected, SyncStatusDisconnected, SyncStatusError:
		return true
	default:
		return false
	}
}

// IntegrationRecord is the stored configuration of one partner integration.
// Secrets are kept sealed; see Credentials for the decrypted form.
type IntegrationRecord struct {
	ID               uuid.UUID
	PartnerID        PartnerCode
	CredentialsRef   string // sealed API key and secret
	WebhookSecretRef string // sealed webhook secret, empty if none
	BaseURL          string
	Timeout          time.Duration
	MaxRetries       int
	IsActive         bool
	SyncStatus       SyncStatus
	LastSyncAt       *time.Time
	LastError        string
	WebhookURL       string
	WebhookEvents    []string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NewIntegrationRecord creates an inactive, disconnected record for a partner
func NewIntegrationRecord(partner PartnerCode) (*IntegrationRecord, error) {
	if !partner.IsValid() {
		return nil, ErrUnknownPartner
	}
	now := time.Now()
	return &IntegrationRecord{
		ID:         uuid.New(),
		PartnerID:  partner,
		Timeout:    DefaultTimeout,
		MaxRetries: DefaultMaxRetries,
		SyncStatus: SyncStatusDisconnected,
		WebhookURL: partner.WebhookPath(),
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// HasWebhookSecret reports whether inbound webhooks can be verified
func (r *IntegrationRecord) HasWebhookSecret() bool {
	return r.WebhookSecretRef != ""
}

// SetActive toggles the integration. Deactivating forces disconnected.
func (r *IntegrationRecord) SetActive(active bool) {
	r.IsActive = active
	if !active {
		r.SyncStatus = SyncStatusDisconnected
	}
	r.UpdatedAt = time.Now()
}

// MarkConnected records a successful partner call
func (r *IntegrationRecord) MarkConnected(at time.Time) {
	r.SyncStatus = SyncStatusConnected
	r.LastSyncAt = &at
	r.LastError = ""
	r.UpdatedAt = at
}

// MarkError records a failed partner call
func (r *IntegrationRecord) MarkError(message string, at time.Time) {
	r.SyncStatus = SyncStatusError
	r.LastSyncAt = &at
	r.LastError = message
	r.UpdatedAt = at
}

// Credentials are the decrypted secrets and runtime settings for a partner
type Credentials struct {
	APIKey        string
	APISecret     string
	WebhookSecret string
	BaseURL       string
	Timeout       time.Duration
	MaxRetries    int
}

// Stats summarizes integration health across partners
type Stats struct {
	Total        int `json:"total"`
	Active       int `json:"active"`
	Connected    int `json:"connected"`
	Disconnected int `json:"disconnected"`
	Error        int `json:"error"`
}

// ComputeStats summarizes a set of records
func ComputeStats(records []IntegrationRecord) Stats {
	var s Stats
	for _, r := range records {
		s.Total++
		if r.IsActive {
			s.Active++
		}
		switch r.SyncStatus {
		case SyncStatusConnected:
			s.Connected++
		case SyncStatusError:
			s.Error++
		default:
			s.Disconnected++
		}
	}
	return s
}

// ConnectionResult is the outcome of a partner connection test
type ConnectionResult struct {
	Partner   PartnerCode `json:"partner"`
	Connected bool        `json:"connected"`
	TestedAt  time.Time   `json:"tested_at"`
	Error     string      `json:"error,omitempty"`
}
