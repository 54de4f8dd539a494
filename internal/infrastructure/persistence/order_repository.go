package persistence

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/uniorder/backend/internal/domain/ordering"
	"github.com/uniorder/backend/internal/infrastructure/persistence/models"
)

// MaxOrderPageSize caps the number of orders returned by one List call
const MaxOrderPageSize = 100

// GormOrderRepository implements ordering.OrderRepository using GORM
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository creates a new GormOrderRepository
func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// Create inserts the order and its first audit entry in one transaction
func (r *GormOrderRepository) Create(ctx context.Context, order *ordering.Order, initial *ordering.AuditEntry) error {
	model := models.OrderModelFromDomain(order)
	if initial != nil {
		model.AuditSeq = 1
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(model).Error; err != nil {
			return err
		}
		if initial == nil {
			return nil
		}
		initial.OrderID = order.ID
		initial.Sequence = 1
		return tx.Create(models.AuditLogModelFromDomain(initial)).Error
	})
	if err != nil {
		if isDuplicateKeyError(err) {
			return ordering.ErrDuplicateOrder
		}
		return err
	}
	return nil
}

// FindByID finds an order by its internal ID
func (r *GormOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*ordering.Order, error) {
	var model models.OrderModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ordering.ErrOrderNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByIdempotencyKey finds an order by partner and partner-assigned ID
func (r *GormOrderRepository) FindByIdempotencyKey(ctx context.Context, partnerID, platformOrderID string) (*ordering.Order, error) {
	var model models.OrderModel
	if err := r.db.WithContext(ctx).
		Where("partner_id = ? AND platform_order_id = ?", partnerID, platformOrderID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ordering.ErrOrderNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// ApplyTransition loads the order with SELECT ... FOR UPDATE, applies fn and
// writes the new state plus the audit entry before the lock is released.
// A nil entry from fn leaves the order untouched.
func (r *GormOrderRepository) ApplyTransition(ctx context.Context, id uuid.UUID, fn ordering.TransitionFunc) (*ordering.Order, *ordering.AuditEntry, error) {
	var (
		order *ordering.Order
		entry *ordering.AuditEntry
	)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model models.OrderModel
		query := tx
		if tx.Dialector.Name() == DriverPostgres {
			query = query.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		if err := query.First(&model, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ordering.ErrOrderNotFound
			}
			return err
		}

		order = model.ToDomain()
		previousVersion := order.Version

		var err error
		entry, err = fn(order)
		if err != nil {
			return err
		}
		if entry == nil {
			return nil
		}

		result := tx.Model(&models.OrderModel{}).
			Where("id = ? AND version = ?", id, previousVersion).
			Updates(map[string]interface{}{
				"status":              string(order.Status),
				"completed_at":        order.CompletedAt,
				"cancelled_at":        order.CancelledAt,
				"cancellation_reason": order.CancellationReason,
				"notes":               order.Notes,
				"version":             order.Version,
				"updated_at":          order.UpdatedAt,
				"audit_seq":           model.AuditSeq + 1,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			// lost a race with another writer; the caller sees the current state on retry
			return &ordering.StateConflictError{OrderID: id, From: ordering.OrderStatus(model.Status), To: order.Status}
		}

		entry.OrderID = id
		entry.Sequence = model.AuditSeq + 1
		return tx.Create(models.AuditLogModelFromDomain(entry)).Error
	})
	if err != nil {
		return nil, nil, err
	}
	return order, entry, nil
}

// AppendAudit appends an audit entry outside of a transition
func (r *GormOrderRepository) AppendAudit(ctx context.Context, entry *ordering.AuditEntry) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.OrderModel{}).
			Where("id = ?", entry.OrderID).
			UpdateColumn("audit_seq", gorm.Expr("audit_seq + 1"))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ordering.ErrOrderNotFound
		}

		var seq int
		if err := tx.Model(&models.OrderModel{}).
			Where("id = ?", entry.OrderID).
			Pluck("audit_seq", &seq).Error; err != nil {
			return err
		}
		entry.Sequence = seq
		return tx.Create(models.AuditLogModelFromDomain(entry)).Error
	})
}

// ListAudit returns an order's audit trail ordered by sequence
func (r *GormOrderRepository) ListAudit(ctx context.Context, orderID uuid.UUID) ([]ordering.AuditEntry, error) {
	var rows []models.OrderAuditLogModel
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("sequence ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	entries := make([]ordering.AuditEntry, len(rows))
	for i := range rows {
		entries[i] = rows[i].ToDomain()
	}
	return entries, nil
}

// List returns a page of orders matching the filter together with the total count
func (r *GormOrderRepository) List(ctx context.Context, filter ordering.OrderFilter) ([]ordering.Order, int64, error) {
	filter.Filter = filter.Filter.Normalize(MaxOrderPageSize)
	var total int64
	if err := r.applyFilter(r.db.WithContext(ctx).Model(&models.OrderModel{}), filter).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	sortField := ValidateSortField(filter.OrderBy, OrderSortFields, "created_at")
	sortOrder := ValidateSortOrder(filter.OrderDir)

	var rows []models.OrderModel
	if err := r.applyFilter(r.db.WithContext(ctx).Model(&models.OrderModel{}), filter).
		Order(sortField + " " + sortOrder).
		Offset(filter.Offset()).
		Limit(filter.PageSize).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	orders := make([]ordering.Order, len(rows))
	for i := range rows {
		orders[i] = *rows[i].ToDomain()
	}
	return orders, total, nil
}

// applyFilter applies the order filter without pagination
func (r *GormOrderRepository) applyFilter(query *gorm.DB, filter ordering.OrderFilter) *gorm.DB {
	if filter.Status != "" {
		query = query.Where("status = ?", string(filter.Status))
	}
	if filter.PartnerID != "" {
		query = query.Where("partner_id = ?", filter.PartnerID)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		query = query.Where(
			"LOWER(platform_order_id) LIKE ? OR LOWER(customer_name) LIKE ? OR customer_phone LIKE ?",
			pattern, pattern, pattern,
		)
	}
	if filter.From != nil {
		query = query.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("created_at <= ?", *filter.To)
	}
	return query
}

// UpdateNotes replaces the operator notes on an order
func (r *GormOrderRepository) UpdateNotes(ctx context.Context, id uuid.UUID, notes string) error {
	result := r.db.WithContext(ctx).
		Model(&models.OrderModel{}).
		Where("id = ?", id).
		Update("notes", notes)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ordering.ErrOrderNotFound
	}
	return nil
}

// CountByStatus returns order counts grouped by status
func (r *GormOrderRepository) CountByStatus(ctx context.Context) (map[ordering.OrderStatus]int64, error) {
	var rows []struct {
		Status string
		Count  int64
	}
	if err := r.db.WithContext(ctx).
		Model(&models.OrderModel{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := make(map[ordering.OrderStatus]int64, len(ordering.AllStatuses()))
	for _, s := range ordering.AllStatuses() {
		counts[s] = 0
	}
	for _, row := range rows {
		counts[ordering.OrderStatus(row.Status)] = row.Count
	}
	return counts, nil
}

// isDuplicateKeyError reports whether err is a unique constraint violation.
// Drivers opened without TranslateError still surface their native message.
func isDuplicateKeyError(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLSTATE 23505") ||
		strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}

var _ ordering.OrderRepository = (*GormOrderRepository)(nil)
