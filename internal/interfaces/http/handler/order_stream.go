package handler

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/uniorder/backend/internal/infrastructure/event"
	"github.com/uniorder/backend/internal/interfaces/http/dto"
)

// OrderEventSource is the live feed of order events
type OrderEventSource interface {
	Subscribe() (<-chan event.Message, func())
	SubscriberCount() int
}

// OrderStreamHandler streams new_order and order_updated events to dashboards
// over Server-Sent Events
type OrderStreamHandler struct {
	BaseHandler
	source     OrderEventSource
	logger     *zap.Logger
	heartbeat  time.Duration
	maxClients int
}

// OrderStreamOption configures an OrderStreamHandler
type OrderStreamOption func(*OrderStreamHandler)

// WithStreamLogger sets the logger for the handler
func WithStreamLogger(logger *zap.Logger) OrderStreamOption {
	return func(h *OrderStreamHandler) {
		h.logger = logger
	}
}

// WithStreamHeartbeat sets the heartbeat interval
func WithStreamHeartbeat(interval time.Duration) OrderStreamOption {
	return func(h *OrderStreamHandler) {
		if interval > 0 {
			h.heartbeat = interval
		}
	}
}

// WithStreamMaxClients caps concurrent streams; 0 means unlimited
func WithStreamMaxClients(max int) OrderStreamOption {
	return func(h *OrderStreamHandler) {
		h.maxClients = max
	}
}

// NewOrderStreamHandler creates a new OrderStreamHandler
func NewOrderStreamHandler(source OrderEventSource, opts ...OrderStreamOption) *OrderStreamHandler {
	h := &OrderStreamHandler{
		source:     source,
		logger:     zap.NewNop(),
		heartbeat:  30 * time.Second,
		maxClients: 1000,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Stream handles GET /orders/stream
// @Summary      Stream order events
// @Description  Server-Sent Events feed of new_order and order_updated events, with a heartbeat every 30 seconds. Browsers pass the bearer token as the token query parameter.
// @Tags         orders
// @Produce      text/event-stream
// @Param        token query string false "Bearer token for clients that cannot set headers"
// @Success      200 {string} string "event stream"
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      503 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /api/v1/orders/stream [get]
func (h *OrderStreamHandler) Stream(c *gin.Context) {
	if h.maxClients > 0 && h.source.SubscriberCount() >= h.maxClients {
		h.Error(c, http.StatusServiceUnavailable, dto.ErrCodeUnavailable, "Maximum number of stream connections reached")
		return
	}

	messages, cancel := h.source.Subscribe()
	defer cancel()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	// the server write timeout would otherwise cut long-lived streams
	if err := http.NewResponseController(c.Writer).SetWriteDeadline(time.Time{}); err != nil {
		h.logger.Debug("Stream write deadline not cleared", zap.Error(err))
	}

	userID := getUserID(c)
	h.logger.Info("Order stream connected", zap.String("user_id", userID))

	writeEvent(c.Writer, "connected", "", fmt.Sprintf(`{"timestamp":%d}`, time.Now().Unix()))
	c.Writer.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			h.logger.Info("Order stream disconnected", zap.String("user_id", userID))
			return
		case <-ticker.C:
			writeEvent(c.Writer, "heartbeat", "", fmt.Sprintf(`{"timestamp":%d}`, time.Now().Unix()))
			c.Writer.Flush()
		case msg, ok := <-messages:
			if !ok {
				return
			}
			writeEvent(c.Writer, msg.Type, msg.ID, string(msg.Data))
			c.Writer.Flush()
		}
	}
}

// writeEvent writes one SSE frame
func writeEvent(w io.Writer, name, id, data string) {
	if name != "" {
		fmt.Fprintf(w, "event: %s\n", name)
	}
	if id != "" {
		fmt.Fprintf(w, "id: %s\n", id)
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
}
