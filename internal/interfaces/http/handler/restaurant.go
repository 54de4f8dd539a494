package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/uniorder/backend/internal/domain/ordering"
)

// RestaurantGauge exports the open/closed switch
type RestaurantGauge interface {
	RestaurantOpen(open bool)
}

// RestaurantStatusRequest opens or closes the restaurant
type RestaurantStatusRequest struct {
	IsOpen *bool `json:"is_open" binding:"required"`
}

// AutoAcceptRequest toggles automatic acceptance of new orders
type AutoAcceptRequest struct {
	AutoAccept *bool `json:"auto_accept" binding:"required"`
}

// RestaurantHandler handles the restaurant switches
type RestaurantHandler struct {
	BaseHandler
	store ordering.SettingsStore
	gauge RestaurantGauge
}

// NewRestaurantHandler creates a new RestaurantHandler. gauge may be nil.
func NewRestaurantHandler(store ordering.SettingsStore, gauge RestaurantGauge) *RestaurantHandler {
	return &RestaurantHandler{store: store, gauge: gauge}
}

// GetStatus handles GET /restaurant/status
// @Summary      Get restaurant status
// @Description  Retrieve the open and auto-accept switches
// @Tags         restaurant
// @Produce      json
// @Success      200 {object} dto.Response{data=ordering.RestaurantSettings}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /api/v1/restaurant/status [get]
func (h *RestaurantHandler) GetStatus(c *gin.Context) {
	h.Success(c, h.store.Settings(c.Request.Context()))
}

// SetStatus handles PATCH /restaurant/status.
// A closed restaurant drops new partner orders.
// @Summary      Open or close the restaurant
// @Description  While closed, new partner orders are acknowledged and dropped
// @Tags         restaurant
// @Accept       json
// @Produce      json
// @Param        request body RestaurantStatusRequest true "Open flag"
// @Success      200 {object} dto.Response{data=ordering.RestaurantSettings}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /api/v1/restaurant/status [patch]
func (h *RestaurantHandler) SetStatus(c *gin.Context) {
	var req RestaurantStatusRequest
	if !h.bind(c, &req) {
		return
	}
	settings := h.store.SetOpen(c.Request.Context(), *req.IsOpen)
	if h.gauge != nil {
		h.gauge.RestaurantOpen(settings.IsOpen)
	}
	h.Success(c, settings)
}

// SetAutoAccept handles PATCH /restaurant/auto-accept
// @Summary      Toggle auto-accept
// @Description  When on, new orders move to preparing as soon as they arrive
// @Tags         restaurant
// @Accept       json
// @Produce      json
// @Param        request body AutoAcceptRequest true "Auto-accept flag"
// @Success      200 {object} dto.Response{data=ordering.RestaurantSettings}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /api/v1/restaurant/auto-accept [patch]
func (h *RestaurantHandler) SetAutoAccept(c *gin.Context) {
	var req AutoAcceptRequest
	if !h.bind(c, &req) {
		return
	}
	h.Success(c, h.store.SetAutoAccept(c.Request.Context(), *req.AutoAccept))
}
