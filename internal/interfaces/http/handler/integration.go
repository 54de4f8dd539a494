package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	appintegration "github.com/uniorder/backend/internal/application/integration"
	"github.com/uniorder/backend/internal/domain/integration"
)

// IntegrationManager manages partner integrations
type IntegrationManager interface {
	Configure(ctx context.Context, partner integration.PartnerCode, in appintegration.ConfigureInput) (*integration.IntegrationRecord, error)
	Toggle(ctx context.Context, partner integration.PartnerCode, active bool) (*integration.IntegrationRecord, error)
	Delete(ctx context.Context, partner integration.PartnerCode) error
	GetStatus(ctx context.Context, partner integration.PartnerCode) (*appintegration.StatusResponse, error)
	List(ctx context.Context) ([]appintegration.StatusResponse, error)
	Stats(ctx context.Context) (*appintegration.StatsResponse, error)
	TestConnection(ctx context.Context, partner integration.PartnerCode) integration.ConnectionResult
	TestAll(ctx context.Context) []integration.ConnectionResult
}

// ToggleRequest switches an integration on or off
type ToggleRequest struct {
	IsActive *bool `json:"is_active" binding:"required"`
}

// IntegrationHandler handles partner integration endpoints
type IntegrationHandler struct {
	BaseHandler
	manager IntegrationManager
}

// NewIntegrationHandler creates a new IntegrationHandler
func NewIntegrationHandler(manager IntegrationManager) *IntegrationHandler {
	return &IntegrationHandler{manager: manager}
}

// List handles GET /integrations
// @Summary      List partner integrations
// @Description  Retrieve the status of every supported partner, configured or not
// @Tags         integrations
// @Produce      json
// @Success      200 {object} dto.Response{data=[]appintegration.StatusResponse}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /api/v1/integrations [get]
func (h *IntegrationHandler) List(c *gin.Context) {
	statuses, err := h.manager.List(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, statuses)
}

// Stats handles GET /integrations/stats
// @Summary      Get integration statistics
// @Description  Count integrations by activity and sync status
// @Tags         integrations
// @Produce      json
// @Success      200 {object} dto.Response{data=appintegration.StatsResponse}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /api/v1/integrations/stats [get]
func (h *IntegrationHandler) Stats(c *gin.Context) {
	stats, err := h.manager.Stats(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, stats)
}

// TestAll handles POST /integrations/test
// @Summary      Test all partner connections
// @Description  Check every active partner API concurrently
// @Tags         integrations
// @Produce      json
// @Success      200 {object} dto.Response{data=[]integration.ConnectionResult}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /api/v1/integrations/test [post]
func (h *IntegrationHandler) TestAll(c *gin.Context) {
	h.Success(c, h.manager.TestAll(c.Request.Context()))
}

// GetStatus handles GET /integrations/:partner
// @Summary      Get partner integration
// @Description  Retrieve the configuration and sync status of one partner. Secrets are never returned.
// @Tags         integrations
// @Produce      json
// @Param        partner path string true "Delivery partner" Enums(jahez, hungerstation, keeta)
// @Success      200 {object} dto.Response{data=appintegration.StatusResponse}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /api/v1/integrations/{partner} [get]
func (h *IntegrationHandler) GetStatus(c *gin.Context) {
	partner, ok := h.parsePartnerParam(c)
	if !ok {
		return
	}

	status, err := h.manager.GetStatus(c.Request.Context(), partner)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, status)
}

// Configure handles PUT /integrations/:partner.
// Secrets are write-only; the response reports whether they are set.
// @Summary      Configure partner integration
// @Description  Create or update the credentials and settings of one partner. Empty secrets keep the stored value.
// @Tags         integrations
// @Accept       json
// @Produce      json
// @Param        partner path string true "Delivery partner" Enums(jahez, hungerstation, keeta)
// @Param        request body appintegration.ConfigureInput true "Integration settings"
// @Success      200 {object} dto.Response{data=appintegration.StatusResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /api/v1/integrations/{partner} [put]
func (h *IntegrationHandler) Configure(c *gin.Context) {
	partner, ok := h.parsePartnerParam(c)
	if !ok {
		return
	}
	var req appintegration.ConfigureInput
	if !h.bind(c, &req) {
		return
	}

	record, err := h.manager.Configure(c.Request.Context(), partner, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, appintegration.ToStatusResponse(record))
}

// Toggle handles PATCH /integrations/:partner/toggle
// @Summary      Enable or disable partner integration
// @Description  Switch a configured partner on or off. Webhooks for an inactive partner are refused.
// @Tags         integrations
// @Accept       json
// @Produce      json
// @Param        partner path string true "Delivery partner" Enums(jahez, hungerstation, keeta)
// @Param        request body ToggleRequest true "Activation flag"
// @Success      200 {object} dto.Response{data=appintegration.StatusResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /api/v1/integrations/{partner}/toggle [patch]
func (h *IntegrationHandler) Toggle(c *gin.Context) {
	partner, ok := h.parsePartnerParam(c)
	if !ok {
		return
	}
	var req ToggleRequest
	if !h.bind(c, &req) {
		return
	}

	record, err := h.manager.Toggle(c.Request.Context(), partner, *req.IsActive)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, appintegration.ToStatusResponse(record))
}

// Test handles POST /integrations/:partner/test.
// A failed connection is a 200 with connected=false.
// @Summary      Test partner connection
// @Description  Call the partner health endpoint. A failed connection is reported with connected=false.
// @Tags         integrations
// @Produce      json
// @Param        partner path string true "Delivery partner" Enums(jahez, hungerstation, keeta)
// @Success      200 {object} dto.Response{data=integration.ConnectionResult}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /api/v1/integrations/{partner}/test [post]
func (h *IntegrationHandler) Test(c *gin.Context) {
	partner, ok := h.parsePartnerParam(c)
	if !ok {
		return
	}
	h.Success(c, h.manager.TestConnection(c.Request.Context(), partner))
}

// Delete handles DELETE /integrations/:partner
// @Summary      Delete partner integration
// @Description  Remove the stored credentials of one partner
// @Tags         integrations
// @Produce      json
// @Param        partner path string true "Delivery partner" Enums(jahez, hungerstation, keeta)
// @Success      204
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /api/v1/integrations/{partner} [delete]
func (h *IntegrationHandler) Delete(c *gin.Context) {
	partner, ok := h.parsePartnerParam(c)
	if !ok {
		return
	}
	if err := h.manager.Delete(c.Request.Context(), partner); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}
