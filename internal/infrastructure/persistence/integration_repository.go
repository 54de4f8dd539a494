package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/uniorder/backend/internal/domain/integration"
	"github.com/uniorder/backend/internal/infrastructure/persistence/models"
)

// GormIntegrationRepository implements integration.IntegrationRepository using GORM
type GormIntegrationRepository struct {
	db *gorm.DB
}

// NewGormIntegrationRepository creates a new GormIntegrationRepository
func NewGormIntegrationRepository(db *gorm.DB) *GormIntegrationRepository {
	return &GormIntegrationRepository{db: db}
}

// FindByPartner finds the connected app row for a partner
func (r *GormIntegrationRepository) FindByPartner(ctx context.Context, partner integration.PartnerCode) (*integration.IntegrationRecord, error) {
	var model models.ConnectedAppModel
	if err := r.db.WithContext(ctx).Where("app_name = ?", string(partner)).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrPartnerNotConfigured
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll returns every configured partner ordered by name
func (r *GormIntegrationRepository) FindAll(ctx context.Context) ([]integration.IntegrationRecord, error) {
	var rows []models.ConnectedAppModel
	if err := r.db.WithContext(ctx).Order("app_name ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	records := make([]integration.IntegrationRecord, len(rows))
	for i := range rows {
		records[i] = *rows[i].ToDomain()
	}
	return records, nil
}

// Save inserts or updates the record keyed by partner
func (r *GormIntegrationRepository) Save(ctx context.Context, record *integration.IntegrationRecord) error {
	now := time.Now()
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now

	model := models.ConnectedAppModelFromDomain(record)
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "app_name"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"display_name", "credentials_ref", "webhook_secret_ref", "base_url",
			"timeout_ms", "retry_attempts", "is_active", "sync_status",
			"last_sync_at", "last_error", "webhook_url", "webhook_events", "updated_at",
		}),
	}).Create(model).Error
}

// UpdateSyncStatus records connection health without touching configuration
func (r *GormIntegrationRepository) UpdateSyncStatus(ctx context.Context, partner integration.PartnerCode, status integration.SyncStatus, lastSyncAt time.Time, lastError string) error {
	result := r.db.WithContext(ctx).
		Model(&models.ConnectedAppModel{}).
		Where("app_name = ?", string(partner)).
		Updates(map[string]interface{}{
			"sync_status":  string(status),
			"last_sync_at": lastSyncAt,
			"last_error":   lastError,
			"updated_at":   time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return integration.ErrPartnerNotConfigured
	}
	return nil
}

// Delete removes a partner's configuration
func (r *GormIntegrationRepository) Delete(ctx context.Context, partner integration.PartnerCode) error {
	result := r.db.WithContext(ctx).Where("app_name = ?", string(partner)).Delete(&models.ConnectedAppModel{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return integration.ErrPartnerNotConfigured
	}
	return nil
}

var _ integration.IntegrationRepository = (*GormIntegrationRepository)(nil)
