package ordering

import (
	"context"

	"github.com/google/uuid"

	"github.com/uniorder/backend/internal/domain/ordering"
	"github.com/uniorder/backend/internal/domain/shared"
)

const maxPageSize = 100

// QueryService serves operator reads and the notes edit. It never changes
// order status; that goes through the Orchestrator.
type QueryService struct {
	repo ordering.OrderRepository
}

// NewQueryService creates a new QueryService
func NewQueryService(repo ordering.OrderRepository) *QueryService {
	return &QueryService{repo: repo}
}

// Get returns an order with its audit trail
func (s *QueryService) Get(ctx context.Context, id uuid.UUID) (*OrderResponse, error) {
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	trail, err := s.repo.ListAudit(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToOrderResponse(order, true)
	resp.AuditTrail = ToAuditEntryResponses(trail)
	return &resp, nil
}

// List returns a page of orders
func (s *QueryService) List(ctx context.Context, req ListOrdersRequest) (shared.Paginated[OrderResponse], error) {
	filter := req.ToFilter()
	filter.Filter = filter.Filter.Normalize(maxPageSize)

	orders, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return shared.Paginated[OrderResponse]{}, err
	}
	return shared.NewPaginated(ToOrderResponses(orders), total, filter.Page, filter.PageSize), nil
}

// Audit returns an order's audit trail in acceptance order
func (s *QueryService) Audit(ctx context.Context, id uuid.UUID) ([]AuditEntryResponse, error) {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return nil, err
	}
	trail, err := s.repo.ListAudit(ctx, id)
	if err != nil {
		return nil, err
	}
	return ToAuditEntryResponses(trail), nil
}

// UpdateNotes replaces an order's notes
func (s *QueryService) UpdateNotes(ctx context.Context, id uuid.UUID, notes string) (*OrderResponse, error) {
	if err := s.repo.UpdateNotes(ctx, id, notes); err != nil {
		return nil, err
	}
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToOrderResponse(order, false)
	return &resp, nil
}

// Counts returns order counts per status
func (s *QueryService) Counts(ctx context.Context) (*StatusCountsResponse, error) {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	resp := &StatusCountsResponse{Counts: make(map[ordering.OrderStatus]int64, len(counts))}
	for _, status := range ordering.AllStatuses() {
		n := counts[status]
		resp.Counts[status] = n
		resp.Total += n
		if !status.IsTerminal() {
			resp.Active += n
		}
	}
	return resp, nil
}
