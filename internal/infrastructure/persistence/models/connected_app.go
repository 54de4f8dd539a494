package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/uniorder/backend/internal/domain/integration"
)

// ConnectedAppModel is the persistence model for a partner IntegrationRecord
type ConnectedAppModel struct {
	ID               uuid.UUID  `gorm:"type:uuid;primary_key"`
	AppName          string     `gorm:"type:varchar(32);not null;uniqueIndex:uq_connected_apps_app_name"`
	DisplayName      string     `gorm:"type:varchar(100);not null"`
	CredentialsRef   string     `gorm:"type:text"`
	WebhookSecretRef string     `gorm:"type:text"`
	BaseURL          string     `gorm:"type:varchar(255)"`
	TimeoutMs        int        `gorm:"not null;default:30000"`
	RetryAttempts    int        `gorm:"not null;default:3"`
	IsActive         bool       `gorm:"not null;default:false"`
	SyncStatus       string     `gorm:"type:varchar(20);not null;default:'disconnected'"`
	LastSyncAt       *time.Time `gorm:"index"`
	LastError        string     `gorm:"type:text"`
	WebhookURL       string     `gorm:"type:varchar(255)"`
	WebhookEvents    []string   `gorm:"type:jsonb;serializer:json"`
	CreatedAt        time.Time  `gorm:"not null"`
	UpdatedAt        time.Time  `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ConnectedAppModel) TableName() string {
	return "connected_apps"
}

// ToDomain converts the persistence model to a domain IntegrationRecord
func (m *ConnectedAppModel) ToDomain() *integration.IntegrationRecord {
	return &integration.IntegrationRecord{
		ID:               m.ID,
		PartnerID:        integration.PartnerCode(m.AppName),
		CredentialsRef:   m.CredentialsRef,
		WebhookSecretRef: m.WebhookSecretRef,
		BaseURL:          m.BaseURL,
		Timeout:          time.Duration(m.TimeoutMs) * time.Millisecond,
		MaxRetries:       m.RetryAttempts,
		IsActive:         m.IsActive,
		SyncStatus:       integration.SyncStatus(m.SyncStatus),
		LastSyncAt:       m.LastSyncAt,
		LastError:        m.LastError,
		WebhookURL:       m.WebhookURL,
		WebhookEvents:    m.WebhookEvents,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

// ConnectedAppModelFromDomain creates a persistence model from a domain IntegrationRecord
func ConnectedAppModelFromDomain(r *integration.IntegrationRecord) *ConnectedAppModel {
	return &ConnectedAppModel{
		ID:               r.ID,
		AppName:          string(r.PartnerID),
		DisplayName:      r.PartnerID.DisplayName(),
		CredentialsRef:   r.CredentialsRef,
		WebhookSecretRef: r.WebhookSecretRef,
		BaseURL:          r.BaseURL,
		TimeoutMs:        int(r.Timeout / time.Millisecond),
		RetryAttempts:    r.MaxRetries,
		IsActive:         r.IsActive,
		SyncStatus:       string(r.SyncStatus),
		LastSyncAt:       r.LastSyncAt,
		LastError:        r.LastError,
		WebhookURL:       r.WebhookURL,
		WebhookEvents:    r.WebhookEvents,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

// AllModels returns every model for AutoMigrate in development and tests
func AllModels() []any {
	return []any{&OrderModel{}, &OrderAuditLogModel{}, &ConnectedAppModel{}}
}
