package handler

import (
	"net/http"
	"runtime"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/uniorder/backend/internal/domain/integration"
	"github.com/uniorder/backend/internal/interfaces/http/dto"
)

// SystemHandler handles system-related API endpoints
type SystemHandler struct {
	BaseHandler
	name      string
	env       string
	version   string
	startTime time.Time
}

// NewSystemHandler creates a new SystemHandler. The version comes from the
// binary's build info when the main module carries one.
func NewSystemHandler(name, env string) *SystemHandler {
	if name == "" {
		name = "UniOrder"
	}
	return &SystemHandler{
		name:      name,
		env:       env,
		version:   buildVersion(),
		startTime: time.Now(),
	}
}

func buildVersion() string {
	info, ok := debug.ReadBuildInfo()
	if !ok || info.Main.Version == "" || info.Main.Version == "(devel)" {
		return "dev"
	}
	return info.Main.Version
}

// PartnerInfo describes one supported delivery partner
type PartnerInfo struct {
	Code        string `json:"code"`
	DisplayName string `json:"display_name"`
	WebhookPath string `json:"webhook_path"`
}

// SystemInfoResponse represents the system information response
type SystemInfoResponse struct {
	Name        string        `json:"name"`
	Version     string        `json:"version"`
	Environment string        `json:"environment,omitempty"`
	GoVersion   string        `json:"go_version"`
	Uptime      string        `json:"uptime"`
	Partners    []PartnerInfo `json:"partners"`
}

// GetSystemInfo returns the service identity, uptime and supported partners
// @Summary      Get system information
// @Description  Retrieve the service version, uptime and supported partners
// @Tags         system
// @Produce      json
// @Success      200 {object} dto.Response{data=SystemInfoResponse}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /api/v1/system/info [get]
func (h *SystemHandler) GetSystemInfo(c *gin.Context) {
	partners := integration.AllPartners()
	info := SystemInfoResponse{
		Name:        h.name,
		Version:     h.version,
		Environment: h.env,
		GoVersion:   runtime.Version(),
		Uptime:      time.Since(h.startTime).Round(time.Second).String(),
		Partners:    make([]PartnerInfo, len(partners)),
	}
	for i, p := range partners {
		info.Partners[i] = PartnerInfo{
			Code:        p.String(),
			DisplayName: p.DisplayName(),
			WebhookPath: p.WebhookPath(),
		}
	}

	c.JSON(http.StatusOK, dto.NewSuccessResponse(info))
}

// PingResponse represents the ping response
type PingResponse struct {
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// Ping is a liveness check that never touches dependencies
// @Summary      Ping
// @Description  Liveness check that touches no dependency
// @Tags         system
// @Produce      json
// @Success      200 {object} dto.Response{data=PingResponse}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /api/v1/system/ping [get]
func (h *SystemHandler) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(PingResponse{
		Message:   "pong",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}))
}
