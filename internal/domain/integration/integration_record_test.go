package integration

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uniorder/backend/internal/domain/ordering"
)

func TestParsePartnerCode(t *testing.T) {
	code, err := ParsePartnerCode(" HungerStation ")
	require.NoError(t, err)
	assert.Equal(t, PartnerHungerStation, code)
	assert.Equal(t, "/webhooks/hungerstation", code.WebhookPath())

	_, err = ParsePartnerCode("talabat")
	assert.ErrorIs(t, err, ErrUnknownPartner)
}

func TestNewIntegrationRecord_Defaults(t *testing.T) {
	r, err := NewIntegrationRecord(PartnerKeeta)
	require.NoError(t, err)

	assert.False(t, r.IsActive)
	assert.Equal(t, SyncStatusDisconnected, r.SyncStatus)
	assert.Equal(t, DefaultTimeout, r.Timeout)
	assert.Equal(t, DefaultMaxRetries, r.MaxRetries)
	assert.Equal(t, "/webhooks/keeta", r.WebhookURL)

	_, err = NewIntegrationRecord("nope")
	assert.Error(t, err)
}

func TestIntegrationRecord_Lifecycle(t *testing.T) {
	r, err := NewIntegrationRecord(PartnerJahez)
	require.NoError(t, err)

	r.SetActive(true)
	now := time.Now()
	r.MarkConnected(now)
	assert.Equal(t, SyncStatusConnected, r.SyncStatus)
	require.NotNil(t, r.LastSyncAt)

	r.MarkError("boom", now)
	assert.Equal(t, SyncStatusError, r.SyncStatus)
	assert.Equal(t, "boom", r.LastError)

	r.SetActive(false)
	assert.Equal(t, SyncStatusDisconnected, r.SyncStatus)
}

func TestComputeStats(t *testing.T) {
	stats := ComputeStats([]IntegrationRecord{
		{IsActive: true, SyncStatus: SyncStatusConnected},
		{IsActive: true, SyncStatus: SyncStatusError},
		{SyncStatus: SyncStatusDisconnected},
	})
	assert.Equal(t, Stats{Total: 3, Active: 2, Connected: 1, Disconnected: 1, Error: 1}, stats)
}

func TestActionForTransition(t *testing.T) {
	cases := map[ordering.OrderStatus]OutboundAction{
		ordering.StatusPreparing: ActionConfirm,
		ordering.StatusCancelled: ActionReject,
		ordering.StatusReady:     ActionUpdateStatus,
		ordering.StatusCompleted: ActionUpdateStatus,
	}
	for status, want := range cases {
		got, ok := ActionForTransition(status)
		assert.True(t, ok)
		assert.Equal(t, want, got)
	}
	_, ok := ActionForTransition(ordering.StatusReceived)
	assert.False(t, ok)
}

func TestOutboundSyncError(t *testing.T) {
	cause := errors.New("503")
	err := error(&OutboundSyncError{Partner: PartnerJahez, PlatformOrderID: "A-1", Action: ActionConfirm, Attempts: 3, Err: cause})

	assert.ErrorIs(t, err, ErrOutboundSync)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "after 3 attempt(s)")

	auth := error(&AuthenticationError{Partner: PartnerKeeta, Reason: "bad signature"})
	assert.ErrorIs(t, auth, ErrAuthentication)
}
