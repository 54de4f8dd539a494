package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/uniorder/backend/internal/application/ordering"
	"github.com/uniorder/backend/internal/domain/integration"
	domainordering "github.com/uniorder/backend/internal/domain/ordering"
	"github.com/uniorder/backend/internal/infrastructure/logger"
	"github.com/uniorder/backend/internal/interfaces/http/dto"
)

const defaultMaxWebhookBytes int64 = 1 << 20

// WebhookIngestor processes one authenticated partner webhook
type WebhookIngestor interface {
	HandleInboundWebhook(ctx context.Context, partnerName string, body []byte, headers http.Header) ordering.WebhookResult
}

// WebhookHandler receives partner webhooks on /webhooks/:partner
type WebhookHandler struct {
	BaseHandler
	ingestor        WebhookIngestor
	maxPayloadBytes int64
}

// NewWebhookHandler creates a new WebhookHandler. maxPayloadBytes <= 0 uses 1 MiB.
func NewWebhookHandler(ingestor WebhookIngestor, maxPayloadBytes int64) *WebhookHandler {
	if maxPayloadBytes <= 0 {
		maxPayloadBytes = defaultMaxWebhookBytes
	}
	return &WebhookHandler{ingestor: ingestor, maxPayloadBytes: maxPayloadBytes}
}

// Receive handles POST /webhooks/:partner.
//
// Accepted and duplicate deliveries, and payloads that can never become an
// order, are acknowledged with 200 so the partner stops retrying. Payloads
// that fail authentication or arrive for an unconfigured or inactive partner
// are not acknowledged.
// @Summary      Receive partner webhook
// @Description  Authenticate the HMAC-SHA256 signature of a partner delivery and ingest it. Invalid payloads are acknowledged with accepted=false so the partner stops retrying.
// @Tags         webhooks
// @Accept       json
// @Produce      json
// @Param        partner path string true "Delivery partner" Enums(jahez, hungerstation, keeta)
// @Param        X-Jahez-Signature header string false "Signature for Jahez deliveries (sha256=<hex>)"
// @Param        X-HungerStation-Signature header string false "Signature for HungerStation deliveries"
// @Param        X-Keeta-Signature header string false "Signature for Keeta deliveries"
// @Param        payload body object true "Partner order payload"
// @Success      200 {object} dto.Response{data=ordering.WebhookResult}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      413 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      503 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /webhooks/{partner} [post]
func (h *WebhookHandler) Receive(c *gin.Context) {
	partner := c.Param("partner")
	ctx := c.Request.Context()
	ctx, _ = logger.WithPartner(ctx, logger.FromContext(ctx), partner)

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, h.maxPayloadBytes+1))
	if err != nil {
		h.BadRequest(c, "Failed to read request body")
		return
	}
	if int64(len(body)) > h.maxPayloadBytes {
		h.Error(c, http.StatusRequestEntityTooLarge, dto.ErrCodePayloadTooLarge, "Webhook payload exceeds the size limit")
		return
	}

	result := h.ingestor.HandleInboundWebhook(ctx, partner, body, c.Request.Header)
	if result.Error != nil && !isRejectedPayload(result.Error) {
		logger.FromContext(ctx).Debug("Webhook not acknowledged",
			zap.String("outcome", result.Outcome),
			zap.Error(result.Error),
		)
		h.HandleError(c, result.Error)
		return
	}
	h.Success(c, result)
}

// isRejectedPayload reports whether err means the payload itself is unusable
func isRejectedPayload(err error) bool {
	return errors.Is(err, domainordering.ErrValidation) || errors.Is(err, integration.ErrInvalidPartnerPayload)
}
