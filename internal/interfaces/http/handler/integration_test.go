package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	appintegration "github.com/uniorder/backend/internal/application/integration"
	"github.com/uniorder/backend/internal/domain/integration"
	"github.com/uniorder/backend/internal/interfaces/http/dto"
)

type MockIntegrationManager struct {
	mock.Mock
}

func (m *MockIntegrationManager) Configure(ctx context.Context, partner integration.PartnerCode, in appintegration.ConfigureInput) (*integration.IntegrationRecord, error) {
	args := m.Called(ctx, partner, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.IntegrationRecord), args.Error(1)
}

func (m *MockIntegrationManager) Toggle(ctx context.Context, partner integration.PartnerCode, active bool) (*integration.IntegrationRecord, error) {
	args := m.Called(ctx, partner, active)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.IntegrationRecord), args.Error(1)
}

func (m *MockIntegrationManager) Delete(ctx context.Context, partner integration.PartnerCode) error {
	return m.Called(ctx, partner).Error(0)
}

func (m *MockIntegrationManager) GetStatus(ctx context.Context, partner integration.PartnerCode) (*appintegration.StatusResponse, error) {
	args := m.Called(ctx, partner)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appintegration.StatusResponse), args.Error(1)
}

func (m *MockIntegrationManager) List(ctx context.Context) ([]appintegration.StatusResponse, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]appintegration.StatusResponse), args.Error(1)
}

func (m *MockIntegrationManager) Stats(ctx context.Context) (*appintegration.StatsResponse, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appintegration.StatsResponse), args.Error(1)
}

func (m *MockIntegrationManager) TestConnection(ctx context.Context, partner integration.PartnerCode) integration.ConnectionResult {
	return m.Called(ctx, partner).Get(0).(integration.ConnectionResult)
}

func (m *MockIntegrationManager) TestAll(ctx context.Context) []integration.ConnectionResult {
	return m.Called(ctx).Get(0).([]integration.ConnectionResult)
}

func setupIntegrationRouter(m IntegrationManager) *gin.Engine {
	router := gin.New()
	h := NewIntegrationHandler(m)
	router.GET("/integrations", h.List)
	router.GET("/integrations/stats", h.Stats)
	router.POST("/integrations/test", h.TestAll)
	router.GET("/integrations/:partner", h.GetStatus)
	router.PUT("/integrations/:partner", h.Configure)
	router.PATCH("/integrations/:partner/toggle", h.Toggle)
	router.POST("/integrations/:partner/test", h.Test)
	router.DELETE("/integrations/:partner", h.Delete)
	return router
}

func newRecord(t *testing.T, partner integration.PartnerCode) *integration.IntegrationRecord {
	t.Helper()
	rec, err := integration.NewIntegrationRecord(partner)
	require.NoError(t, err)
	rec.IsActive = true
	return rec
}

func TestIntegrationHandler_Configure(t *testing.T) {
	m := new(MockIntegrationManager)
	rec := newRecord(t, integration.PartnerJahez)
	m.On("Configure", mock.Anything, integration.PartnerJahez, mock.MatchedBy(func(in appintegration.ConfigureInput) bool {
		return in.APIKey == "key-1" && in.WebhookSecret == "whsec-jahez"
	})).Return(rec, nil)

	w := doJSON(setupIntegrationRouter(m), http.MethodPut, "/integrations/jahez", map[string]any{
		"api_key":        "key-1",
		"webhook_secret": "whsec-jahez",
	})

	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "key-1")
	assert.NotContains(t, w.Body.String(), "whsec-jahez")
	var resp struct {
		Data appintegration.StatusResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, integration.PartnerJahez, resp.Data.Partner)
	assert.True(t, resp.Data.Configured)
	m.AssertExpectations(t)
}

func TestIntegrationHandler_ConfigureErrors(t *testing.T) {
	m := new(MockIntegrationManager)
	m.On("Configure", mock.Anything, integration.PartnerKeeta, mock.Anything).
		Return(nil, &integration.ConfigurationError{Field: "api_key", Reason: "is required"})
	router := setupIntegrationRouter(m)

	w := doJSON(router, http.MethodPut, "/integrations/keeta", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
	assert.Equal(t, "Invalid api_key: is required", resp.Error.Message)

	w = doJSON(router, http.MethodPut, "/integrations/talabat", map[string]any{"api_key": "x"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestIntegrationHandler_Toggle(t *testing.T) {
	m := new(MockIntegrationManager)
	rec := newRecord(t, integration.PartnerHungerStation)
	rec.SetActive(false)
	m.On("Toggle", mock.Anything, integration.PartnerHungerStation, false).Return(rec, nil)
	router := setupIntegrationRouter(m)

	w := doJSON(router, http.MethodPatch, "/integrations/hungerstation/toggle", map[string]any{"is_active": false})
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data appintegration.StatusResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Data.IsActive)

	w = doJSON(router, http.MethodPatch, "/integrations/hungerstation/toggle", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	m.AssertNumberOfCalls(t, "Toggle", 1)
}

func TestIntegrationHandler_StatusListStats(t *testing.T) {
	m := new(MockIntegrationManager)
	m.On("GetStatus", mock.Anything, integration.PartnerKeeta).Return(&appintegration.StatusResponse{
		Partner: integration.PartnerKeeta, Error: "Integration not configured",
	}, nil)
	m.On("List", mock.Anything).Return([]appintegration.StatusResponse{
		{Partner: integration.PartnerJahez}, {Partner: integration.PartnerHungerStation}, {Partner: integration.PartnerKeeta},
	}, nil)
	m.On("Stats", mock.Anything).Return(&appintegration.StatsResponse{
		Stats: integration.Stats{Total: 1, Active: 1, Connected: 1},
	}, nil)
	router := setupIntegrationRouter(m)

	w := doJSON(router, http.MethodGet, "/integrations/keeta", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Integration not configured")

	w = doJSON(router, http.MethodGet, "/integrations", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Data []appintegration.StatusResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list.Data, 3)

	w = doJSON(router, http.MethodGet, "/integrations/stats", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	m.AssertExpectations(t)
}

func TestIntegrationHandler_TestConnection(t *testing.T) {
	m := new(MockIntegrationManager)
	now := time.Now().UTC()
	m.On("TestConnection", mock.Anything, integration.PartnerJahez).Return(integration.ConnectionResult{
		Partner: integration.PartnerJahez, Connected: false, TestedAt: now, Error: "timeout",
	})
	m.On("TestAll", mock.Anything).Return([]integration.ConnectionResult{
		{Partner: integration.PartnerJahez, Connected: true, TestedAt: now},
	})
	router := setupIntegrationRouter(m)

	w := doJSON(router, http.MethodPost, "/integrations/jahez/test", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var single struct {
		Data integration.ConnectionResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &single))
	assert.False(t, single.Data.Connected)
	assert.Equal(t, "timeout", single.Data.Error)

	w = doJSON(router, http.MethodPost, "/integrations/test", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	m.AssertExpectations(t)
}

func TestIntegrationHandler_Delete(t *testing.T) {
	m := new(MockIntegrationManager)
	m.On("Delete", mock.Anything, integration.PartnerJahez).Return(nil)
	m.On("Delete", mock.Anything, integration.PartnerKeeta).Return(integration.ErrPartnerNotConfigured)
	router := setupIntegrationRouter(m)

	w := doJSON(router, http.MethodDelete, "/integrations/jahez", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(router, http.MethodDelete, "/integrations/keeta", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
