package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/uniorder/backend/internal/domain/ordering"
)

// OrderModel is the persistence model for the canonical Order aggregate
type OrderModel struct {
	AggregateModel
	PartnerID             string               `gorm:"type:varchar(32);not null;uniqueIndex:uq_orders_partner_platform_order,priority:1"`
	PlatformOrderID       string               `gorm:"type:varchar(100);not null;uniqueIndex:uq_orders_partner_platform_order,priority:2"`
	CustomerName          string               `gorm:"type:varchar(255);not null"`
	CustomerPhone         string               `gorm:"type:varchar(50);not null;index:idx_orders_customer_phone"`
	CustomerAddress       string               `gorm:"type:text;not null"`
	Items                 []ordering.OrderItem `gorm:"type:jsonb;serializer:json;not null"`
	TotalAmount           decimal.Decimal      `gorm:"type:decimal(12,2);not null"`
	Status                string               `gorm:"type:varchar(20);not null;index:idx_orders_status"`
	RawPayload            []byte               `gorm:"type:jsonb"`
	EstimatedDeliveryTime *time.Time
	Notes                 string `gorm:"type:text"`
	CancellationReason    string `gorm:"type:text"`
	CompletedAt           *time.Time
	CancelledAt           *time.Time
	// AuditSeq is the sequence number of the latest audit entry for the order
	AuditSeq int `gorm:"not null;default:0"`
}

// TableName returns the table name for GORM
func (OrderModel) TableName() string {
	return "orders"
}

// ToDomain converts the persistence model to a domain Order
func (m *OrderModel) ToDomain() *ordering.Order {
	return &ordering.Order{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		PlatformOrderID:   m.PlatformOrderID,
		PartnerID:         m.PartnerID,
		Customer: ordering.Customer{
			Name:    m.CustomerName,
			Phone:   m.CustomerPhone,
			Address: m.CustomerAddress,
		},
		Items:                 m.Items,
		TotalAmount:           m.TotalAmount,
		Status:                ordering.OrderStatus(m.Status),
		RawPayload:            m.RawPayload,
		EstimatedDeliveryTime: m.EstimatedDeliveryTime,
		Notes:                 m.Notes,
		CancellationReason:    m.CancellationReason,
		CompletedAt:           m.CompletedAt,
		CancelledAt:           m.CancelledAt,
	}
}

// OrderModelFromDomain creates a persistence model from a domain Order
func OrderModelFromDomain(o *ordering.Order) *OrderModel {
	m := &OrderModel{
		PartnerID:             o.PartnerID,
		PlatformOrderID:       o.PlatformOrderID,
		CustomerName:          o.Customer.Name,
		CustomerPhone:         o.Customer.Phone,
		CustomerAddress:       o.Customer.Address,
		Items:                 o.Items,
		TotalAmount:           o.TotalAmount,
		Status:                string(o.Status),
		RawPayload:            o.RawPayload,
		EstimatedDeliveryTime: o.EstimatedDeliveryTime,
		Notes:                 o.Notes,
		CancellationReason:    o.CancellationReason,
		CompletedAt:           o.CompletedAt,
		CancelledAt:           o.CancelledAt,
	}
	m.FromDomainAggregateRoot(o.BaseAggregateRoot)
	return m
}

// OrderAuditLogModel is the persistence model for an audit entry
type OrderAuditLogModel struct {
	ID              uuid.UUID      `gorm:"type:uuid;primary_key"`
	OrderID         uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:uq_order_audit_sequence,priority:1"`
	Sequence        int            `gorm:"not null;uniqueIndex:uq_order_audit_sequence,priority:2"`
	OldStatus       string         `gorm:"type:varchar(20)"`
	NewStatus       string         `gorm:"type:varchar(20);not null"`
	ChangedByUserID string         `gorm:"type:varchar(64)"`
	ChangedBySystem string         `gorm:"type:varchar(64)"`
	ChangeReason    string         `gorm:"type:text"`
	Metadata        map[string]any `gorm:"type:jsonb;serializer:json"`
	Timestamp       time.Time      `gorm:"not null;index:idx_order_audit_logs_timestamp"`
}

// TableName returns the table name for GORM
func (OrderAuditLogModel) TableName() string {
	return "order_audit_logs"
}

// ToDomain converts the persistence model to a domain AuditEntry
func (m *OrderAuditLogModel) ToDomain() ordering.AuditEntry {
	return ordering.AuditEntry{
		ID:        m.ID,
		OrderID:   m.OrderID,
		Sequence:  m.Sequence,
		OldStatus: ordering.OrderStatus(m.OldStatus),
		NewStatus: ordering.OrderStatus(m.NewStatus),
		Actor:     ordering.Actor{UserID: m.ChangedByUserID, System: m.ChangedBySystem},
		Reason:    m.ChangeReason,
		Metadata:  m.Metadata,
		Timestamp: m.Timestamp,
	}
}

// AuditLogModelFromDomain creates a persistence model from a domain AuditEntry
func AuditLogModelFromDomain(e *ordering.AuditEntry) *OrderAuditLogModel {
	return &OrderAuditLogModel{
		ID:              e.ID,
		OrderID:         e.OrderID,
		Sequence:        e.Sequence,
		OldStatus:       string(e.OldStatus),
		NewStatus:       string(e.NewStatus),
		ChangedByUserID: e.Actor.UserID,
		ChangedBySystem: e.Actor.System,
		ChangeReason:    e.Reason,
		Metadata:        e.Metadata,
		Timestamp:       e.Timestamp,
	}
}
