package integration

import (
	"context"
	"time"
)

// IntegrationRepository is the configuration store for partner integrations
type IntegrationRepository interface {
	// FindByPartner returns the record for a partner or ErrPartnerNotConfigured
	FindByPartner(ctx context.Context, partner PartnerCode) (*IntegrationRecord, error)

	// FindAll returns every configured partner
	FindAll(ctx context.Context) ([]IntegrationRecord, error)

	// Save inserts or updates a record keyed by partner
	Save(ctx context.Context, record *IntegrationRecord) error

	// UpdateSyncStatus records connection health without touching configuration
	UpdateSyncStatus(ctx context.Context, partner PartnerCode, status SyncStatus, lastSyncAt time.Time, lastError string) error

	// Delete removes a partner's configuration
	Delete(ctx context.Context, partner PartnerCode) error
}
