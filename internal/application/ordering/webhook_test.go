package ordering

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/uniorder/backend/internal/domain/integration"
	"github.com/uniorder/backend/internal/domain/ordering"
	"github.com/uniorder/backend/internal/domain/shared"
	"github.com/uniorder/backend/internal/infrastructure/cache"
	"github.com/uniorder/backend/internal/infrastructure/metrics"
	"github.com/uniorder/backend/internal/infrastructure/storage"
)

const jahezOrderBody = `{"order_id":"A-1","customer":{"name":"Jane","phone":"555"},"items":[{"name":"Pizza","quantity":2,"price":10}],"status":"pending"}`

type memoryArchiver struct {
	mu       sync.Mutex
	payloads []storage.ArchivedPayload
	err      error
}

func (a *memoryArchiver) Archive(_ context.Context, p storage.ArchivedPayload) (string, error) {
	if a.err != nil {
		return "", a.err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.payloads = append(a.payloads, p)
	return p.Partner + "/" + p.PlatformOrderID, nil
}

func TestHandleInboundWebhook_WorkedExample(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res := f.orch.HandleInboundWebhook(ctx, "jahez", []byte(jahezOrderBody), signedJahez(jahezOrderBody))
	require.NoError(t, res.Error)
	assert.True(t, res.Accepted)
	assert.Equal(t, metrics.WebhookAccepted, res.Outcome)
	assert.Equal(t, metrics.IngestCreated, res.Result)
	require.NotNil(t, res.OrderID)

	order, err := f.repo.FindByID(ctx, *res.OrderID)
	require.NoError(t, err)
	assert.Equal(t, "A-1", order.PlatformOrderID)
	assert.Equal(t, "jahez", order.PartnerID)
	assert.Equal(t, ordering.StatusReceived, order.Status)
	assert.Equal(t, "20", order.TotalAmount.String())

	again := f.orch.HandleInboundWebhook(ctx, "jahez", []byte(jahezOrderBody), signedJahez(jahezOrderBody))
	require.NoError(t, again.Error)
	assert.Equal(t, metrics.IngestNoop, again.Result)
	assert.Equal(t, *res.OrderID, *again.OrderID)

	_, total, err := f.repo.List(ctx, ordering.DefaultOrderFilter())
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)

	f.outbound.On("Execute", mock.Anything, mock.Anything, mock.Anything,
		integration.ActionConfirm, "A-1", ordering.StatusPreparing, "").Return(nil).Once()

	updated, err := f.orch.RequestTransition(ctx, order.ID, ordering.StatusPreparing, "user1", "")
	require.NoError(t, err)
	assert.Equal(t, ordering.StatusPreparing, updated.Status)

	trail, err := f.repo.ListAudit(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, trail, 2)
	assert.Equal(t, ordering.StatusReceived, trail[1].OldStatus)
	assert.Equal(t, ordering.StatusPreparing, trail[1].NewStatus)
	assert.Equal(t, "user1", trail[1].Actor.UserID)
	f.outbound.AssertExpectations(t)
}

func TestHandleInboundWebhook_Authentication(t *testing.T) {
	ctx := context.Background()

	t.Run("invalid signature", func(t *testing.T) {
		f := newFixture(t)
		h := http.Header{}
		h.Set("X-Jahez-Signature", "sha256=deadbeef")

		res := f.orch.HandleInboundWebhook(ctx, "jahez", []byte(jahezOrderBody), h)
		assert.False(t, res.Accepted)
		assert.Equal(t, metrics.WebhookUnauthorized, res.Outcome)

		var authErr *integration.AuthenticationError
		require.ErrorAs(t, res.Error, &authErr)
		assert.Equal(t, "invalid signature", authErr.Reason)
		assert.ErrorIs(t, res.Error, integration.ErrAuthentication)

		_, err := f.repo.FindByIdempotencyKey(ctx, "jahez", "A-1")
		assert.ErrorIs(t, err, ordering.ErrOrderNotFound)
	})

	t.Run("missing signature", func(t *testing.T) {
		f := newFixture(t)
		res := f.orch.HandleInboundWebhook(ctx, "jahez", []byte(jahezOrderBody), http.Header{})
		assert.ErrorIs(t, res.Error, integration.ErrAuthentication)
	})

	t.Run("no secret configured is rejected by default", func(t *testing.T) {
		f := newFixture(t)
		res := f.orch.HandleInboundWebhook(ctx, "hungerstation", []byte(`{"id":"HS-1","items":[{"name":"x","quantity":1,"price":5}]}`), http.Header{})

		var authErr *integration.AuthenticationError
		require.ErrorAs(t, res.Error, &authErr)
		assert.Equal(t, "no webhook secret configured", authErr.Reason)
	})

	t.Run("no secret configured with unsigned webhooks allowed", func(t *testing.T) {
		f := newFixture(t, WithAllowUnsigned(true))
		res := f.orch.HandleInboundWebhook(ctx, "hungerstation", []byte(`{"id":"HS-1","items":[{"name":"x","quantity":1,"price":5}]}`), http.Header{})
		require.NoError(t, res.Error)
		assert.Equal(t, metrics.IngestCreated, res.Result)
	})
}

func TestHandleInboundWebhook_PartnerResolution(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown partner", func(t *testing.T) {
		f := newFixture(t)
		res := f.orch.HandleInboundWebhook(ctx, "deliveroo", []byte(`{}`), http.Header{})
		assert.ErrorIs(t, res.Error, integration.ErrUnknownPartner)
		assert.Equal(t, metrics.WebhookInvalid, res.Outcome)
	})

	t.Run("inactive partner", func(t *testing.T) {
		f := newFixture(t)
		f.resolver.err = integration.ErrPartnerInactive
		res := f.orch.HandleInboundWebhook(ctx, "jahez", []byte(jahezOrderBody), signedJahez(jahezOrderBody))
		assert.ErrorIs(t, res.Error, integration.ErrPartnerInactive)
		assert.False(t, res.Accepted)
	})
}

func TestHandleInboundWebhook_Payloads(t *testing.T) {
	ctx := context.Background()

	t.Run("invalid order is acknowledged but not accepted", func(t *testing.T) {
		f := newFixture(t)
		body := `{"order_id":"A-2","items":[]}`
		res := f.orch.HandleInboundWebhook(ctx, "jahez", []byte(body), signedJahez(body))
		assert.False(t, res.Accepted)
		assert.Equal(t, metrics.WebhookInvalid, res.Outcome)
		assert.ErrorIs(t, res.Error, ordering.ErrValidation)
		assert.NotEmpty(t, res.Reason)
	})

	t.Run("malformed json", func(t *testing.T) {
		f := newFixture(t)
		body := `{"order_id":`
		res := f.orch.HandleInboundWebhook(ctx, "jahez", []byte(body), signedJahez(body))
		assert.False(t, res.Accepted)
		assert.Error(t, res.Error)
	})

	t.Run("unsupported event type", func(t *testing.T) {
		f := newFixture(t)
		h := signedJahez(jahezOrderBody)
		h.Set("X-Jahez-Event", "menu.updated")
		res := f.orch.HandleInboundWebhook(ctx, "jahez", []byte(jahezOrderBody), h)
		require.NoError(t, res.Error)
		assert.True(t, res.Accepted)
		assert.Equal(t, metrics.IngestIgnored, res.Result)
		assert.Contains(t, res.Reason, "menu.updated")
	})

	t.Run("status-only cancellation", func(t *testing.T) {
		f := newFixture(t)
		created := f.orch.HandleInboundWebhook(ctx, "jahez", []byte(jahezOrderBody), signedJahez(jahezOrderBody))
		require.NoError(t, created.Error)

		body := `{"order_id":"A-1","reason":"driver unavailable"}`
		h := signedJahez(body)
		h.Set("X-Jahez-Event", "order.cancelled")
		res := f.orch.HandleInboundWebhook(ctx, "jahez", []byte(body), h)
		require.NoError(t, res.Error)
		assert.Equal(t, metrics.IngestUpdated, res.Result)

		order, err := f.repo.FindByID(ctx, *created.OrderID)
		require.NoError(t, err)
		assert.Equal(t, ordering.StatusCancelled, order.Status)
		assert.Equal(t, "driver unavailable", order.CancellationReason)
		f.outbound.AssertNotCalled(t, "Execute")
	})
}

func TestHandleInboundWebhook_DuplicateDelivery(t *testing.T) {
	ctx := context.Background()
	store := cache.NewInMemoryDeliveryStore()
	f := newFixture(t, WithDeliveryStore(store, shared.DefaultIdempotencyConfig()))

	h := signedJahez(jahezOrderBody)
	h.Set("X-Jahez-Delivery", "dlv-1")

	first := f.orch.HandleInboundWebhook(ctx, "jahez", []byte(jahezOrderBody), h)
	require.NoError(t, first.Error)
	assert.Equal(t, metrics.WebhookAccepted, first.Outcome)

	seen, err := store.IsProcessed(ctx, "jahez:dlv-1")
	require.NoError(t, err)
	assert.True(t, seen)

	second := f.orch.HandleInboundWebhook(ctx, "jahez", []byte(jahezOrderBody), h)
	require.NoError(t, second.Error)
	assert.True(t, second.Accepted)
	assert.Equal(t, metrics.WebhookDuplicate, second.Outcome)
	assert.Nil(t, second.OrderID)
}

func TestHandleInboundWebhook_FailedDeliveryIsNotRemembered(t *testing.T) {
	ctx := context.Background()
	store := cache.NewInMemoryDeliveryStore()
	f := newFixture(t, WithDeliveryStore(store, shared.DefaultIdempotencyConfig()))

	body := `{"order_id":"A-3","items":[]}`
	h := signedJahez(body)
	h.Set("X-Jahez-Delivery", "dlv-bad")

	res := f.orch.HandleInboundWebhook(ctx, "jahez", []byte(body), h)
	assert.False(t, res.Accepted)

	seen, err := store.IsProcessed(ctx, "jahez:dlv-bad")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestHandleInboundWebhook_Archive(t *testing.T) {
	ctx := context.Background()

	t.Run("payload is archived", func(t *testing.T) {
		archiver := &memoryArchiver{}
		f := newFixture(t, WithArchiver(archiver))

		h := signedJahez(jahezOrderBody)
		h.Set("X-Jahez-Delivery", "dlv-9")
		res := f.orch.HandleInboundWebhook(ctx, "jahez", []byte(jahezOrderBody), h)
		require.NoError(t, res.Error)

		require.Len(t, archiver.payloads, 1)
		p := archiver.payloads[0]
		assert.Equal(t, "jahez", p.Partner)
		assert.Equal(t, "A-1", p.PlatformOrderID)
		assert.Equal(t, "dlv-9", p.DeliveryID)
		assert.JSONEq(t, jahezOrderBody, string(p.Body))
	})

	t.Run("archive failure does not fail ingestion", func(t *testing.T) {
		f := newFixture(t, WithArchiver(&memoryArchiver{err: errors.New("bucket unavailable")}))
		res := f.orch.HandleInboundWebhook(ctx, "jahez", []byte(jahezOrderBody), signedJahez(jahezOrderBody))
		require.NoError(t, res.Error)
		assert.Equal(t, metrics.IngestCreated, res.Result)
	})
}
