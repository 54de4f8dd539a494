package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/uniorder/backend/internal/application/ordering"
	"github.com/uniorder/backend/internal/domain/integration"
	domainordering "github.com/uniorder/backend/internal/domain/ordering"
	"github.com/uniorder/backend/internal/infrastructure/metrics"
	"github.com/uniorder/backend/internal/interfaces/http/dto"
)

type MockWebhookIngestor struct {
	mock.Mock
}

func (m *MockWebhookIngestor) HandleInboundWebhook(ctx context.Context, partnerName string, body []byte, headers http.Header) ordering.WebhookResult {
	args := m.Called(ctx, partnerName, body, headers)
	return args.Get(0).(ordering.WebhookResult)
}

func setupWebhookRouter(ingestor WebhookIngestor, max int64) *gin.Engine {
	router := gin.New()
	h := NewWebhookHandler(ingestor, max)
	router.POST("/webhooks/:partner", h.Receive)
	return router
}

func postWebhook(router *gin.Engine, partner, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/"+partner, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Jahez-Signature", "sha256=abc")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestWebhookHandler_Accepted(t *testing.T) {
	ingestor := new(MockWebhookIngestor)
	orderID := uuid.New()
	body := `{"orderId":"A-1"}`
	ingestor.On("HandleInboundWebhook", mock.Anything, "jahez", []byte(body), mock.MatchedBy(func(h http.Header) bool {
		return h.Get("X-Jahez-Signature") == "sha256=abc"
	})).Return(ordering.WebhookResult{
		Accepted: true,
		Outcome:  metrics.WebhookAccepted,
		Result:   metrics.IngestCreated,
		OrderID:  &orderID,
	})

	w := postWebhook(setupWebhookRouter(ingestor, 0), "jahez", body)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Success bool                   `json:"success"`
		Data    ordering.WebhookResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.True(t, resp.Data.Accepted)
	assert.Equal(t, metrics.IngestCreated, resp.Data.Result)
	require.NotNil(t, resp.Data.OrderID)
	assert.Equal(t, orderID, *resp.Data.OrderID)
	ingestor.AssertExpectations(t)
}

func TestWebhookHandler_RejectedPayloadIsAcknowledged(t *testing.T) {
	for _, err := range []error{
		domainordering.NewValidationError("items", "must not be empty"),
		integration.ErrInvalidPartnerPayload,
	} {
		ingestor := new(MockWebhookIngestor)
		ingestor.On("HandleInboundWebhook", mock.Anything, "keeta", mock.Anything, mock.Anything).
			Return(ordering.WebhookResult{Outcome: metrics.WebhookInvalid, Error: err, Reason: err.Error()})

		w := postWebhook(setupWebhookRouter(ingestor, 0), "keeta", `{}`)

		assert.Equal(t, http.StatusOK, w.Code)
		var resp struct {
			Data ordering.WebhookResult `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.False(t, resp.Data.Accepted)
		assert.NotEmpty(t, resp.Data.Reason)
	}
}

func TestWebhookHandler_NotAcknowledged(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		errCode string
	}{
		{"bad signature", &integration.AuthenticationError{Partner: integration.PartnerJahez, Reason: "invalid signature"}, http.StatusUnauthorized, dto.ErrCodeUnauthorized},
		{"unknown partner", integration.ErrUnknownPartner, http.StatusNotFound, dto.ErrCodeNotFound},
		{"not configured", integration.ErrPartnerNotConfigured, http.StatusNotFound, dto.ErrCodeNotFound},
		{"inactive", integration.ErrPartnerInactive, http.StatusServiceUnavailable, dto.ErrCodeUnavailable},
		{"store failure", assert.AnError, http.StatusInternalServerError, dto.ErrCodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ingestor := new(MockWebhookIngestor)
			ingestor.On("HandleInboundWebhook", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
				Return(ordering.WebhookResult{Outcome: metrics.WebhookFailed, Error: tt.err})

			w := postWebhook(setupWebhookRouter(ingestor, 0), "jahez", `{"orderId":"A-1"}`)

			assert.Equal(t, tt.status, w.Code)
			var resp dto.Response
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.False(t, resp.Success)
			assert.Equal(t, tt.errCode, resp.Error.Code)
		})
	}
}

func TestWebhookHandler_PayloadTooLarge(t *testing.T) {
	ingestor := new(MockWebhookIngestor)

	w := postWebhook(setupWebhookRouter(ingestor, 16), "jahez", `{"orderId":"A-1","padding":"xxxxxxxx"}`)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, dto.ErrCodePayloadTooLarge, resp.Error.Code)
	ingestor.AssertNotCalled(t, "HandleInboundWebhook", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestWebhookHandler_PayloadAtLimit(t *testing.T) {
	body := `{"orderId":"A"}`
	ingestor := new(MockWebhookIngestor)
	ingestor.On("HandleInboundWebhook", mock.Anything, "jahez", []byte(body), mock.Anything).
		Return(ordering.WebhookResult{Accepted: true, Outcome: metrics.WebhookDuplicate})

	w := postWebhook(setupWebhookRouter(ingestor, int64(len(body))), "jahez", body)

	assert.Equal(t, http.StatusOK, w.Code)
	ingestor.AssertExpectations(t)
}
