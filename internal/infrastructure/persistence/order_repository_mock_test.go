package persistence

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/uniorder/backend/internal/domain/ordering"
)

// newMockOrderRepository creates a GormOrderRepository over a mocked postgres connection
func newMockOrderRepository(t *testing.T) (*GormOrderRepository, sqlmock.Sqlmock, *sql.DB) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	return NewGormOrderRepository(gormDB), mock, mockDB
}

func orderRows(id uuid.UUID, status string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "created_at", "updated_at", "version", "partner_id", "platform_order_id",
		"customer_name", "customer_phone", "customer_address", "items", "total_amount",
		"status", "audit_seq",
	}).AddRow(
		id, now, now, 1, "jahez", "J-1",
		"Sara", "+966500000001", "Riyadh", []byte(`[{"name":"Tea","quantity":1,"unit_price":"5"}]`), "5",
		status, 1,
	)
}

func TestGormOrderRepository_ApplyTransition_LocksRowOnPostgres(t *testing.T) {
	t.Run("selects FOR UPDATE and rolls back on illegal transition", func(t *testing.T) {
		repo, mock, mockDB := newMockOrderRepository(t)
		defer mockDB.Close()

		id := uuid.New()
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT \* FROM "orders" WHERE id = \$1 .*FOR UPDATE`).
			WillReturnRows(orderRows(id, "completed"))
		mock.ExpectRollback()

		_, _, err := repo.ApplyTransition(context.Background(), id, func(o *ordering.Order) (*ordering.AuditEntry, error) {
			return o.TransitionTo(ordering.StatusCancelled, ordering.UserActor("op"), "")
		})

		var conflict *ordering.StateConflictError
		require.True(t, errors.As(err, &conflict))
		assert.Equal(t, ordering.StatusCompleted, conflict.From)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing row maps to not found", func(t *testing.T) {
		repo, mock, mockDB := newMockOrderRepository(t)
		defer mockDB.Close()

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT \* FROM "orders" WHERE id = \$1 .*FOR UPDATE`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))
		mock.ExpectRollback()

		_, _, err := repo.ApplyTransition(context.Background(), uuid.New(), func(o *ordering.Order) (*ordering.AuditEntry, error) {
			t.Fatal("transition func must not run for a missing order")
			return nil, nil
		})
		assert.ErrorIs(t, err, ordering.ErrOrderNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormOrderRepository_FindByIdempotencyKey_Mock(t *testing.T) {
	repo, mock, mockDB := newMockOrderRepository(t)
	defer mockDB.Close()

	id := uuid.New()
	mock.ExpectQuery(`SELECT \* FROM "orders" WHERE partner_id = \$1 AND platform_order_id = \$2`).
		WillReturnRows(orderRows(id, "preparing"))

	order, err := repo.FindByIdempotencyKey(context.Background(), "jahez", "J-1")
	require.NoError(t, err)
	assert.Equal(t, id, order.ID)
	assert.Equal(t, ordering.StatusPreparing, order.Status)
	require.Len(t, order.Items, 1)
	assert.Equal(t, "Tea", order.Items[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsDuplicateKeyError(t *testing.T) {
	assert.True(t, isDuplicateKeyError(gorm.ErrDuplicatedKey))
	assert.True(t, isDuplicateKeyError(errors.New(`ERROR: duplicate key value violates unique constraint "uq_orders_partner_platform_order" (SQLSTATE 23505)`)))
	assert.True(t, isDuplicateKeyError(errors.New("UNIQUE constraint failed: orders.partner_id, orders.platform_order_id")))
	assert.False(t, isDuplicateKeyError(errors.New("connection refused")))
}
