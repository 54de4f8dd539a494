package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/uniorder/backend/internal/domain/ordering"
	"github.com/uniorder/backend/internal/infrastructure/persistence/models"
)

func setupOrderTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	// every pooled connection to :memory: is a separate database
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(models.AllModels()...))
	return db
}

func newTestOrder(t *testing.T, partner, platformID string) *ordering.Order {
	t.Helper()
	n := &ordering.NormalizedOrder{
		PlatformOrderID: platformID,
		Customer:        ordering.Customer{Name: "Sara", Phone: "+966500000001", Address: "Olaya St, Riyadh"},
		Items: []ordering.OrderItem{
			{Name: "Shawarma", Quantity: 2, UnitPrice: decimal.NewFromFloat(12.5)},
			{Name: "Ayran", Quantity: 1, UnitPrice: decimal.NewFromInt(4)},
		},
		TotalAmount: decimal.NewFromInt(29),
		RawPayload:  json.RawMessage(`{"id":"` + platformID + `"}`),
	}
	order, err := ordering.NewOrder(partner, n)
	require.NoError(t, err)
	return order
}

func createTestOrder(t *testing.T, repo *GormOrderRepository, partner, platformID string) *ordering.Order {
	t.Helper()
	order := newTestOrder(t, partner, platformID)
	require.NoError(t, repo.Create(context.Background(), order, order.InitialAudit(ordering.SystemActor(ordering.ActorWebhook))))
	return order
}

func TestGormOrderRepository_Create(t *testing.T) {
	db := setupOrderTestDB(t)
	repo := NewGormOrderRepository(db)
	ctx := context.Background()

	t.Run("persists order and first audit entry", func(t *testing.T) {
		order := createTestOrder(t, repo, "jahez", "J-100")

		found, err := repo.FindByID(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, "J-100", found.PlatformOrderID)
		assert.Equal(t, "jahez", found.PartnerID)
		assert.Equal(t, ordering.StatusReceived, found.Status)
		assert.Equal(t, "Sara", found.Customer.Name)
		require.Len(t, found.Items, 2)
		assert.Equal(t, "Shawarma", found.Items[0].Name)
		assert.True(t, decimal.NewFromFloat(12.5).Equal(found.Items[0].UnitPrice))
		assert.True(t, decimal.NewFromInt(29).Equal(found.TotalAmount))
		assert.JSONEq(t, `{"id":"J-100"}`, string(found.RawPayload))

		audit, err := repo.ListAudit(ctx, order.ID)
		require.NoError(t, err)
		require.Len(t, audit, 1)
		assert.Equal(t, 1, audit[0].Sequence)
		assert.Equal(t, ordering.OrderStatus(""), audit[0].OldStatus)
		assert.Equal(t, ordering.StatusReceived, audit[0].NewStatus)
		assert.Equal(t, ordering.ActorWebhook, audit[0].Actor.System)
	})

	t.Run("rejects duplicate idempotency key", func(t *testing.T) {
		createTestOrder(t, repo, "keeta", "K-1")

		dup := newTestOrder(t, "keeta", "K-1")
		err := repo.Create(ctx, dup, dup.InitialAudit(ordering.SystemActor(ordering.ActorWebhook)))
		assert.ErrorIs(t, err, ordering.ErrDuplicateOrder)

		_, err = repo.FindByID(ctx, dup.ID)
		assert.ErrorIs(t, err, ordering.ErrOrderNotFound)
	})

	t.Run("same platform id under another partner is a different order", func(t *testing.T) {
		createTestOrder(t, repo, "jahez", "SHARED-1")
		other := newTestOrder(t, "hungerstation", "SHARED-1")
		assert.NoError(t, repo.Create(ctx, other, nil))
	})
}

func TestGormOrderRepository_FindByIdempotencyKey(t *testing.T) {
	db := setupOrderTestDB(t)
	repo := NewGormOrderRepository(db)
	ctx := context.Background()

	order := createTestOrder(t, repo, "hungerstation", "HS-7")

	found, err := repo.FindByIdempotencyKey(ctx, "hungerstation", "HS-7")
	require.NoError(t, err)
	assert.Equal(t, order.ID, found.ID)

	_, err = repo.FindByIdempotencyKey(ctx, "jahez", "HS-7")
	assert.ErrorIs(t, err, ordering.ErrOrderNotFound)
}

func TestGormOrderRepository_ApplyTransition(t *testing.T) {
	db := setupOrderTestDB(t)
	repo := NewGormOrderRepository(db)
	ctx := context.Background()

	transitionTo := func(target ordering.OrderStatus, reason string) ordering.TransitionFunc {
		return func(o *ordering.Order) (*ordering.AuditEntry, error) {
			return o.TransitionTo(target, ordering.UserActor("operator-1"), reason)
		}
	}

	t.Run("walks the happy path and records ordered audit", func(t *testing.T) {
		order := createTestOrder(t, repo, "jahez", "J-200")

		for _, target := range []ordering.OrderStatus{ordering.StatusPreparing, ordering.StatusReady, ordering.StatusCompleted} {
			updated, entry, err := repo.ApplyTransition(ctx, order.ID, transitionTo(target, ""))
			require.NoError(t, err)
			assert.Equal(t, target, updated.Status)
			assert.Equal(t, target, entry.NewStatus)
		}

		found, err := repo.FindByID(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, ordering.StatusCompleted, found.Status)
		assert.NotNil(t, found.CompletedAt)
		assert.Equal(t, 4, found.Version)

		audit, err := repo.ListAudit(ctx, order.ID)
		require.NoError(t, err)
		require.Len(t, audit, 4)
		for i, entry := range audit {
			assert.Equal(t, i+1, entry.Sequence)
		}
		assert.Equal(t, ordering.StatusReady, audit[3].OldStatus)
		assert.Equal(t, "operator-1", audit[3].Actor.UserID)
	})

	t.Run("cancel stores reason and timestamp", func(t *testing.T) {
		order := createTestOrder(t, repo, "keeta", "K-300")

		_, _, err := repo.ApplyTransition(ctx, order.ID, transitionTo(ordering.StatusCancelled, "customer unreachable"))
		require.NoError(t, err)

		found, err := repo.FindByID(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, ordering.StatusCancelled, found.Status)
		assert.Equal(t, "customer unreachable", found.CancellationReason)
		assert.NotNil(t, found.CancelledAt)
	})

	t.Run("illegal transition leaves order untouched", func(t *testing.T) {
		order := createTestOrder(t, repo, "jahez", "J-400")

		_, _, err := repo.ApplyTransition(ctx, order.ID, transitionTo(ordering.StatusCompleted, ""))
		var conflict *ordering.StateConflictError
		require.True(t, errors.As(err, &conflict))
		assert.Equal(t, ordering.StatusReceived, conflict.From)

		found, err := repo.FindByID(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, ordering.StatusReceived, found.Status)

		audit, err := repo.ListAudit(ctx, order.ID)
		require.NoError(t, err)
		assert.Len(t, audit, 1)
	})

	t.Run("nil entry is a no-op", func(t *testing.T) {
		order := createTestOrder(t, repo, "jahez", "J-500")

		updated, entry, err := repo.ApplyTransition(ctx, order.ID, func(o *ordering.Order) (*ordering.AuditEntry, error) {
			return nil, nil
		})
		require.NoError(t, err)
		assert.Nil(t, entry)
		assert.Equal(t, ordering.StatusReceived, updated.Status)
	})

	t.Run("unknown order", func(t *testing.T) {
		_, _, err := repo.ApplyTransition(ctx, uuid.New(), transitionTo(ordering.StatusPreparing, ""))
		assert.ErrorIs(t, err, ordering.ErrOrderNotFound)
	})
}

func TestGormOrderRepository_ConcurrentTransitions(t *testing.T) {
	db := setupOrderTestDB(t)
	repo := NewGormOrderRepository(db)
	ctx := context.Background()

	order := createTestOrder(t, repo, "jahez", "J-RACE")

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := repo.ApplyTransition(ctx, order.ID, func(o *ordering.Order) (*ordering.AuditEntry, error) {
				return o.TransitionTo(ordering.StatusPreparing, ordering.UserActor("op"), "")
			})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
			} else if errors.Is(err, ordering.ErrStateConflict) {
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, workers-1, conflicts)

	audit, err := repo.ListAudit(ctx, order.ID)
	require.NoError(t, err)
	assert.Len(t, audit, 2)
}

func TestGormOrderRepository_AppendAudit(t *testing.T) {
	db := setupOrderTestDB(t)
	repo := NewGormOrderRepository(db)
	ctx := context.Background()

	order := createTestOrder(t, repo, "keeta", "K-AUD")

	entry := ordering.NewAuditEntry(order.ID, ordering.StatusReceived, ordering.StatusReceived, ordering.SystemActor(ordering.ActorSystem), "outbound sync failed")
	entry.WithMetadata("attempts", 3)
	require.NoError(t, repo.AppendAudit(ctx, entry))
	assert.Equal(t, 2, entry.Sequence)

	audit, err := repo.ListAudit(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, audit, 2)
	assert.Equal(t, "outbound sync failed", audit[1].Reason)
	assert.EqualValues(t, 3, audit[1].Metadata["attempts"])

	missing := ordering.NewAuditEntry(uuid.New(), "", ordering.StatusReceived, ordering.SystemActor(ordering.ActorSystem), "")
	assert.ErrorIs(t, repo.AppendAudit(ctx, missing), ordering.ErrOrderNotFound)
}

func TestGormOrderRepository_List(t *testing.T) {
	db := setupOrderTestDB(t)
	repo := NewGormOrderRepository(db)
	ctx := context.Background()

	createTestOrder(t, repo, "jahez", "J-1")
	createTestOrder(t, repo, "jahez", "J-2")
	third := createTestOrder(t, repo, "keeta", "K-1")
	_, _, err := repo.ApplyTransition(ctx, third.ID, func(o *ordering.Order) (*ordering.AuditEntry, error) {
		return o.TransitionTo(ordering.StatusPreparing, ordering.UserActor("op"), "")
	})
	require.NoError(t, err)

	t.Run("all orders", func(t *testing.T) {
		orders, total, err := repo.List(ctx, ordering.DefaultOrderFilter())
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		assert.Len(t, orders, 3)
	})

	t.Run("by partner", func(t *testing.T) {
		filter := ordering.DefaultOrderFilter()
		filter.PartnerID = "jahez"
		orders, total, err := repo.List(ctx, filter)
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		for _, o := range orders {
			assert.Equal(t, "jahez", o.PartnerID)
		}
	})

	t.Run("by status", func(t *testing.T) {
		filter := ordering.DefaultOrderFilter()
		filter.Status = ordering.StatusPreparing
		orders, total, err := repo.List(ctx, filter)
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		assert.Equal(t, "K-1", orders[0].PlatformOrderID)
	})

	t.Run("search is case insensitive", func(t *testing.T) {
		filter := ordering.DefaultOrderFilter()
		filter.Search = "k-1"
		_, total, err := repo.List(ctx, filter)
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
	})

	t.Run("pagination keeps total", func(t *testing.T) {
		filter := ordering.DefaultOrderFilter()
		filter.PageSize = 2
		filter.Page = 2
		orders, total, err := repo.List(ctx, filter)
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		assert.Len(t, orders, 1)
	})

	t.Run("unknown sort field falls back", func(t *testing.T) {
		filter := ordering.DefaultOrderFilter()
		filter.OrderBy = "raw_payload; DROP TABLE orders"
		_, total, err := repo.List(ctx, filter)
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
	})

	t.Run("date window", func(t *testing.T) {
		future := time.Now().Add(time.Hour)
		filter := ordering.DefaultOrderFilter()
		filter.From = &future
		_, total, err := repo.List(ctx, filter)
		require.NoError(t, err)
		assert.Equal(t, int64(0), total)
	})
}

func TestGormOrderRepository_UpdateNotes(t *testing.T) {
	db := setupOrderTestDB(t)
	repo := NewGormOrderRepository(db)
	ctx := context.Background()

	order := createTestOrder(t, repo, "jahez", "J-NOTE")
	require.NoError(t, repo.UpdateNotes(ctx, order.ID, "no onions"))

	found, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "no onions", found.Notes)

	assert.ErrorIs(t, repo.UpdateNotes(ctx, uuid.New(), "x"), ordering.ErrOrderNotFound)
}

func TestGormOrderRepository_CountByStatus(t *testing.T) {
	db := setupOrderTestDB(t)
	repo := NewGormOrderRepository(db)
	ctx := context.Background()

	createTestOrder(t, repo, "jahez", "J-1")
	second := createTestOrder(t, repo, "jahez", "J-2")
	_, _, err := repo.ApplyTransition(ctx, second.ID, func(o *ordering.Order) (*ordering.AuditEntry, error) {
		return o.TransitionTo(ordering.StatusCancelled, ordering.UserActor("op"), "")
	})
	require.NoError(t, err)

	counts, err := repo.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[ordering.StatusReceived])
	assert.Equal(t, int64(1), counts[ordering.StatusCancelled])
	assert.Equal(t, int64(0), counts[ordering.StatusReady])
	assert.Len(t, counts, len(ordering.AllStatuses()))
}
