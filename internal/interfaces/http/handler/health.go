package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/uniorder/backend/internal/domain/integration"
	"github.com/uniorder/backend/internal/infrastructure/logger"
)

// Pinger checks a dependency is reachable
type Pinger interface {
	Ping() error
}

// PartnerHealthSource reports the last periodic partner connection check
type PartnerHealthSource interface {
	LastResults() ([]integration.ConnectionResult, time.Time)
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status    string                         `json:"status"`
	Time      string                         `json:"time"`
	Database  string                         `json:"database"`
	CheckedAt *time.Time                     `json:"partners_checked_at,omitempty"`
	Partners  []integration.ConnectionResult `json:"partners,omitempty"`
}

// HealthHandler serves the unauthenticated health check. Partner
// connectivity is informational; only the database decides the status.
type HealthHandler struct {
	db       Pinger
	partners PartnerHealthSource
}

// NewHealthHandler creates a new HealthHandler. partners may be nil when the
// periodic check is disabled.
func NewHealthHandler(db Pinger, partners PartnerHealthSource) *HealthHandler {
	return &HealthHandler{db: db, partners: partners}
}

// Check handles GET /health
// @Summary      Health check
// @Description  Report service health. Only the database decides the status; partner results are informational.
// @Tags         system
// @Produce      json
// @Success      200 {object} HealthResponse
// @Failure      503 {object} HealthResponse
// @Router       /health [get]
func (h *HealthHandler) Check(c *gin.Context) {
	resp := HealthResponse{
		Status:   "ok",
		Time:     time.Now().Format(time.RFC3339),
		Database: "ok",
	}
	if h.partners != nil {
		if results, at := h.partners.LastResults(); !at.IsZero() {
			resp.Partners = results
			resp.CheckedAt = &at
		}
	}

	if err := h.db.Ping(); err != nil {
		logger.GetGinLogger(c).Warn("Health check failed", zap.Error(err))
		resp.Status = "unhealthy"
		resp.Database = "error"
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}
