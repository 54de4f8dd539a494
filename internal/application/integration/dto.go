package integration

import (
	"time"

	"github.com/uniorder/backend/internal/domain/integration"
)

// ---------------------------------------------------------------------------
// Request DTOs
// ---------------------------------------------------------------------------

// ConfigureInput is the operator request to create or update a partner
// integration. Empty secrets keep the stored values.
type ConfigureInput struct {
	APIKey         string   `json:"api_key" validate:"omitempty,max=512"`
	APISecret      string   `json:"api_secret" validate:"omitempty,max=512"`
	WebhookSecret  string   `json:"webhook_secret" validate:"omitempty,min=8,max=512"`
	BaseURL        string   `json:"base_url" validate:"omitempty,url"`
	TimeoutSeconds int      `json:"timeout_seconds" validate:"omitempty,min=1,max=300"`
	MaxRetries     int      `json:"max_retries" validate:"omitempty,min=1,max=10"`
	IsActive       *bool    `json:"is_active"`
	WebhookEvents  []string `json:"webhook_events" validate:"omitempty,dive,required,max=64"`
}

// ---------------------------------------------------------------------------
// Response DTOs
// ---------------------------------------------------------------------------

// StatusResponse is the operator view of one partner integration
type StatusResponse struct {
	Partner          integration.PartnerCode `json:"partner"`
	DisplayName      string                  `json:"display_name"`
	Configured       bool                    `json:"configured"`
	IsActive         bool                    `json:"is_active"`
	Connected        bool                    `json:"connected"`
	SyncStatus       integration.SyncStatus  `json:"sync_status,omitempty"`
	LastSyncAt       *time.Time              `json:"last_sync_at,omitempty"`
	LastError        string                  `json:"last_error,omitempty"`
	BaseURL          string                  `json:"base_url,omitempty"`
	TimeoutSeconds   int                     `json:"timeout_seconds,omitempty"`
	MaxRetries       int                     `json:"max_retries,omitempty"`
	HasWebhookSecret bool                    `json:"has_webhook_secret"`
	WebhookURL       string                  `json:"webhook_url"`
	WebhookEvents    []string                `json:"webhook_events,omitempty"`
	UpdatedAt        *time.Time              `json:"updated_at,omitempty"`
	Error            string                  `json:"error,omitempty"`
}

// ToStatusResponse converts a stored record to its operator view
func ToStatusResponse(r *integration.IntegrationRecord) StatusResponse {
	updated := r.UpdatedAt
	return StatusResponse{
		Partner:          r.PartnerID,
		DisplayName:      r.PartnerID.DisplayName(),
		Configured:       true,
		IsActive:         r.IsActive,
		Connected:        r.SyncStatus == integration.SyncStatusConnected,
		SyncStatus:       r.SyncStatus,
		LastSyncAt:       r.LastSyncAt,
		LastError:        r.LastError,
		BaseURL:          r.BaseURL,
		TimeoutSeconds:   int(r.Timeout / time.Second),
		MaxRetries:       r.MaxRetries,
		HasWebhookSecret: r.HasWebhookSecret(),
		WebhookURL:       r.WebhookURL,
		WebhookEvents:    r.WebhookEvents,
		UpdatedAt:        &updated,
	}
}

// notConfiguredResponse is reported for a known partner with no record
func notConfiguredResponse(partner integration.PartnerCode) StatusResponse {
	return StatusResponse{
		Partner:     partner,
		DisplayName: partner.DisplayName(),
		WebhookURL:  partner.WebhookPath(),
		Error:       "Integration not configured",
	}
}

// StatsResponse summarizes every configured integration
type StatsResponse struct {
	integration.Stats
	ByPartner map[integration.PartnerCode]integration.SyncStatus `json:"by_partner"`
}
