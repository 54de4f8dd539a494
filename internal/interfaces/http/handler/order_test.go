package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/uniorder/backend/internal/application/ordering"
	domainordering "github.com/uniorder/backend/internal/domain/ordering"
	"github.com/uniorder/backend/internal/domain/shared"
	"github.com/uniorder/backend/internal/interfaces/http/dto"
)

type MockOrderQuerier struct {
	mock.Mock
}

func (m *MockOrderQuerier) Get(ctx context.Context, id uuid.UUID) (*ordering.OrderResponse, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ordering.OrderResponse), args.Error(1)
}

func (m *MockOrderQuerier) List(ctx context.Context, req ordering.ListOrdersRequest) (shared.Paginated[ordering.OrderResponse], error) {
	args := m.Called(ctx, req)
	return args.Get(0).(shared.Paginated[ordering.OrderResponse]), args.Error(1)
}

func (m *MockOrderQuerier) Audit(ctx context.Context, id uuid.UUID) ([]ordering.AuditEntryResponse, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ordering.AuditEntryResponse), args.Error(1)
}

func (m *MockOrderQuerier) UpdateNotes(ctx context.Context, id uuid.UUID, notes string) (*ordering.OrderResponse, error) {
	args := m.Called(ctx, id, notes)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ordering.OrderResponse), args.Error(1)
}

func (m *MockOrderQuerier) Counts(ctx context.Context) (*ordering.StatusCountsResponse, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ordering.StatusCountsResponse), args.Error(1)
}

type MockOrderTransitioner struct {
	mock.Mock
}

func (m *MockOrderTransitioner) RequestTransition(ctx context.Context, orderID uuid.UUID, target domainordering.OrderStatus, actorUserID, reason string) (*domainordering.Order, error) {
	args := m.Called(ctx, orderID, target, actorUserID, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domainordering.Order), args.Error(1)
}

func (m *MockOrderTransitioner) Cancel(ctx context.Context, orderID uuid.UUID, actorUserID, reason string) (*domainordering.Order, error) {
	args := m.Called(ctx, orderID, actorUserID, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domainordering.Order), args.Error(1)
}

func setupOrderRouter(q OrderQuerier, tr OrderTransitioner, userID string) *gin.Engine {
	router := gin.New()
	router.Use(func(c *gin.Context) {
		if userID != "" {
			setJWTContext(c, userID)
		}
		c.Next()
	})
	h := NewOrderHandler(q, tr)
	router.GET("/orders", h.List)
	router.GET("/orders/counts", h.Counts)
	router.GET("/orders/:id", h.Get)
	router.GET("/orders/:id/audit", h.Audit)
	router.POST("/orders/:id/transition", h.Transition)
	router.POST("/orders/:id/cancel", h.Cancel)
	router.PATCH("/orders/:id/notes", h.UpdateNotes)
	return router
}

func doJSON(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func sampleOrder(status domainordering.OrderStatus) *domainordering.Order {
	return &domainordering.Order{
		BaseAggregateRoot: shared.BaseAggregateRoot{ID: uuid.New(), Version: 2},
		PlatformOrderID:   "A-1",
		PartnerID:         "jahez",
		Status:            status,
		TotalAmount:       decimal.NewFromInt(20),
	}
}

func TestOrderHandler_List(t *testing.T) {
	q := new(MockOrderQuerier)
	page := shared.NewPaginated([]ordering.OrderResponse{{PlatformOrderID: "A-1", Partner: "jahez"}}, 41, 2, 20)
	q.On("List", mock.Anything, mock.MatchedBy(func(r ordering.ListOrdersRequest) bool {
		return r.Page == 2 && r.Status == "preparing" && r.Partner == "jahez"
	})).Return(page, nil)

	w := doJSON(setupOrderRouter(q, nil, "op-1"), http.MethodGet, "/orders?page=2&status=preparing&partner=jahez", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Meta)
	assert.Equal(t, int64(41), resp.Meta.Total)
	assert.Equal(t, 3, resp.Meta.TotalPages)
	q.AssertExpectations(t)
}

func TestOrderHandler_ListRejectsBadFilter(t *testing.T) {
	for _, query := range []string{"status=shipped", "partner=ubereats", "page_size=500"} {
		t.Run(query, func(t *testing.T) {
			q := new(MockOrderQuerier)

			w := doJSON(setupOrderRouter(q, nil, "op-1"), http.MethodGet, "/orders?"+query, nil)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			var resp dto.Response
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
			q.AssertNotCalled(t, "List", mock.Anything, mock.Anything)
		})
	}
}

func TestOrderHandler_Get(t *testing.T) {
	q := new(MockOrderQuerier)
	id := uuid.New()
	q.On("Get", mock.Anything, id).Return(&ordering.OrderResponse{ID: id, PlatformOrderID: "A-1"}, nil)
	missing := uuid.New()
	q.On("Get", mock.Anything, missing).Return(nil, domainordering.ErrOrderNotFound)
	router := setupOrderRouter(q, nil, "op-1")

	w := doJSON(router, http.MethodGet, "/orders/"+id.String(), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(router, http.MethodGet, "/orders/"+missing.String(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(router, http.MethodGet, "/orders/nope", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOrderHandler_Transition(t *testing.T) {
	q := new(MockOrderQuerier)
	tr := new(MockOrderTransitioner)
	order := sampleOrder(domainordering.StatusPreparing)
	tr.On("RequestTransition", mock.Anything, order.ID, domainordering.StatusPreparing, "user1", "").Return(order, nil)

	w := doJSON(setupOrderRouter(q, tr, "user1"), http.MethodPost,
		"/orders/"+order.ID.String()+"/transition", map[string]string{"status": "preparing"})

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data ordering.OrderResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, domainordering.StatusPreparing, resp.Data.Status)
	assert.True(t, decimal.NewFromInt(20).Equal(resp.Data.TotalAmount))
	tr.AssertExpectations(t)
}

func TestOrderHandler_TransitionConflict(t *testing.T) {
	tr := new(MockOrderTransitioner)
	id := uuid.New()
	tr.On("RequestTransition", mock.Anything, id, domainordering.StatusPreparing, "user1", "").
		Return(nil, &domainordering.StateConflictError{OrderID: id, From: domainordering.StatusCompleted, To: domainordering.StatusPreparing})

	w := doJSON(setupOrderRouter(nil, tr, "user1"), http.MethodPost,
		"/orders/"+id.String()+"/transition", map[string]string{"status": "preparing"})

	assert.Equal(t, http.StatusConflict, w.Code)
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, dto.ErrCodeInvalidState, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "completed")
}

func TestOrderHandler_TransitionValidation(t *testing.T) {
	tr := new(MockOrderTransitioner)
	router := setupOrderRouter(nil, tr, "user1")
	id := uuid.New().String()

	w := doJSON(router, http.MethodPost, "/orders/"+id+"/transition", map[string]string{"status": "shipped"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(router, http.MethodPost, "/orders/"+id+"/transition", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	tr.AssertNotCalled(t, "RequestTransition", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestOrderHandler_Cancel(t *testing.T) {
	tr := new(MockOrderTransitioner)
	order := sampleOrder(domainordering.StatusCancelled)
	tr.On("Cancel", mock.Anything, order.ID, "user1", "customer called").Return(order, nil)
	router := setupOrderRouter(nil, tr, "user1")

	w := doJSON(router, http.MethodPost, "/orders/"+order.ID.String()+"/cancel", map[string]string{"reason": "customer called"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(router, http.MethodPost, "/orders/"+order.ID.String()+"/cancel", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	tr.AssertNumberOfCalls(t, "Cancel", 1)
}

func TestOrderHandler_AuditNotesCounts(t *testing.T) {
	q := new(MockOrderQuerier)
	id := uuid.New()
	q.On("Audit", mock.Anything, id).Return([]ordering.AuditEntryResponse{
		{Sequence: 1, NewStatus: domainordering.StatusReceived},
		{Sequence: 2, OldStatus: domainordering.StatusReceived, NewStatus: domainordering.StatusPreparing},
	}, nil)
	q.On("UpdateNotes", mock.Anything, id, "no onions").Return(&ordering.OrderResponse{ID: id, Notes: "no onions"}, nil)
	q.On("Counts", mock.Anything).Return(&ordering.StatusCountsResponse{
		Counts: map[domainordering.OrderStatus]int64{domainordering.StatusReceived: 2},
		Total:  2,
		Active: 2,
	}, nil)
	router := setupOrderRouter(q, nil, "op-1")

	w := doJSON(router, http.MethodGet, "/orders/"+id.String()+"/audit", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var audit struct {
		Data []ordering.AuditEntryResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &audit))
	assert.Len(t, audit.Data, 2)

	w = doJSON(router, http.MethodPatch, "/orders/"+id.String()+"/notes", map[string]string{"notes": "no onions"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(router, http.MethodGet, "/orders/counts", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var counts struct {
		Data ordering.StatusCountsResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &counts))
	assert.Equal(t, int64(2), counts.Data.Active)
	q.AssertExpectations(t)
}
