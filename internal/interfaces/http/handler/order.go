package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/uniorder/backend/internal/application/ordering"
	domainordering "github.com/uniorder/backend/internal/domain/ordering"
	"github.com/uniorder/backend/internal/domain/shared"
)

// OrderQuerier reads orders for operators
type OrderQuerier interface {
	Get(ctx context.Context, id uuid.UUID) (*ordering.OrderResponse, error)
	List(ctx context.Context, req ordering.ListOrdersRequest) (shared.Paginated[ordering.OrderResponse], error)
	Audit(ctx context.Context, id uuid.UUID) ([]ordering.AuditEntryResponse, error)
	UpdateNotes(ctx context.Context, id uuid.UUID, notes string) (*ordering.OrderResponse, error)
	Counts(ctx context.Context) (*ordering.StatusCountsResponse, error)
}

// OrderTransitioner applies operator status changes
type OrderTransitioner interface {
	RequestTransition(ctx context.Context, orderID uuid.UUID, target domainordering.OrderStatus, actorUserID, reason string) (*domainordering.Order, error)
	Cancel(ctx context.Context, orderID uuid.UUID, actorUserID, reason string) (*domainordering.Order, error)
}

// OrderHandler handles operator order endpoints
type OrderHandler struct {
	BaseHandler
	queries      OrderQuerier
	transitioner OrderTransitioner
}

// NewOrderHandler creates a new OrderHandler
func NewOrderHandler(queries OrderQuerier, transitioner OrderTransitioner) *OrderHandler {
	return &OrderHandler{queries: queries, transitioner: transitioner}
}

// List handles GET /orders
// @Summary      List orders
// @Description  Retrieve a paginated list of orders with optional filtering
// @Tags         orders
// @Produce      json
// @Param        page query integer false "Page number" default(1) minimum(1)
// @Param        page_size query integer false "Page size" default(20) maximum(100)
// @Param        order_by query string false "Order by field" Enums(created_at, updated_at, total_amount, status) default(created_at)
// @Param        order_dir query string false "Order direction" Enums(asc, desc) default(desc)
// @Param        status query string false "Order status" Enums(received, preparing, ready, completed, cancelled)
// @Param        partner query string false "Delivery partner" Enums(jahez, hungerstation, keeta)
// @Param        search query string false "Search term (platform order ID, customer name or phone)" maxlength(100)
// @Param        start_date query string false "Created on or after (YYYY-MM-DD)" format(date)
// @Param        end_date query string false "Created on or before (YYYY-MM-DD)" format(date)
// @Success      200 {object} dto.Response{data=[]ordering.OrderResponse,meta=dto.Meta}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /api/v1/orders [get]
func (h *OrderHandler) List(c *gin.Context) {
	var req ordering.ListOrdersRequest
	if !h.bindQuery(c, &req) {
		return
	}

	page, err := h.queries.List(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// Counts handles GET /orders/counts
// @Summary      Count orders by status
// @Description  Count orders per status, with the total and the number still active
// @Tags         orders
// @Produce      json
// @Success      200 {object} dto.Response{data=ordering.StatusCountsResponse}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /api/v1/orders/counts [get]
func (h *OrderHandler) Counts(c *gin.Context) {
	counts, err := h.queries.Counts(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, counts)
}

// Get handles GET /orders/:id, including the audit trail and raw payload
// @Summary      Get order by ID
// @Description  Retrieve an order with its audit trail and raw partner payload
// @Tags         orders
// @Produce      json
// @Param        id path string true "Order ID" format(uuid)
// @Success      200 {object} dto.Response{data=ordering.OrderResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /api/v1/orders/{id} [get]
func (h *OrderHandler) Get(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	order, err := h.queries.Get(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, order)
}

// Audit handles GET /orders/:id/audit
// @Summary      Get order audit trail
// @Description  Retrieve every status change of an order in order
// @Tags         orders
// @Produce      json
// @Param        id path string true "Order ID" format(uuid)
// @Success      200 {object} dto.Response{data=[]ordering.AuditEntryResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /api/v1/orders/{id}/audit [get]
func (h *OrderHandler) Audit(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	entries, err := h.queries.Audit(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, entries)
}

// Transition handles POST /orders/:id/transition.
// The change is committed even when the partner cannot be reached.
// @Summary      Change order status
// @Description  Move an order along the status graph and notify the partner. The change is kept even when the partner call fails.
// @Tags         orders
// @Accept       json
// @Produce      json
// @Param        id path string true "Order ID" format(uuid)
// @Param        request body ordering.TransitionRequest true "Target status"
// @Success      200 {object} dto.Response{data=ordering.OrderResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /api/v1/orders/{id}/transition [post]
func (h *OrderHandler) Transition(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req ordering.TransitionRequest
	if !h.bind(c, &req) {
		return
	}

	order, err := h.transitioner.RequestTransition(c.Request.Context(), id,
		domainordering.OrderStatus(req.Status), getUserID(c), req.Reason)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, ordering.ToOrderResponse(order, false))
}

// Cancel handles POST /orders/:id/cancel
// @Summary      Cancel an order
// @Description  Cancel an order and send the rejection to the partner
// @Tags         orders
// @Accept       json
// @Produce      json
// @Param        id path string true "Order ID" format(uuid)
// @Param        request body ordering.CancelRequest true "Cancellation reason"
// @Success      200 {object} dto.Response{data=ordering.OrderResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /api/v1/orders/{id}/cancel [post]
func (h *OrderHandler) Cancel(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req ordering.CancelRequest
	if !h.bind(c, &req) {
		return
	}

	order, err := h.transitioner.Cancel(c.Request.Context(), id, getUserID(c), req.Reason)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, ordering.ToOrderResponse(order, false))
}

// UpdateNotes handles PATCH /orders/:id/notes
// @Summary      Update order notes
// @Description  Replace the operator notes of an order
// @Tags         orders
// @Accept       json
// @Produce      json
// @Param        id path string true "Order ID" format(uuid)
// @Param        request body ordering.UpdateNotesRequest true "Notes"
// @Success      200 {object} dto.Response{data=ordering.OrderResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /api/v1/orders/{id}/notes [patch]
func (h *OrderHandler) UpdateNotes(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req ordering.UpdateNotesRequest
	if !h.bind(c, &req) {
		return
	}

	order, err := h.queries.UpdateNotes(c.Request.Context(), id, req.Notes)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, order)
}
