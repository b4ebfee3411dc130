// Package events publishes order lifecycle events for downstream consumers
// (notifications, fulfilment, analytics).
package events

import (
	"context"
	"time"

	"grocery-checkout/internal/models"

	"github.com/shopspring/decimal"
)

type Type string

const (
	OrderCreated        Type = "order.created"
	OrderStatusChanged  Type = "order.status_changed"
	OrderPaymentUpdated Type = "order.payment_updated"
	OrderCancelled      Type = "order.cancelled"
)

// Event is the JSON payload written to the broker.
type Event struct {
	Type          Type                 `json:"type"`
	OrderID       string               `json:"order_id"`
	OrderNumber   string               `json:"order_number"`
	UserID        uint                 `json:"user_id"`
	Status        models.OrderStatus   `json:"status"`
	PaymentStatus models.PaymentStatus `json:"payment_status"`
	TotalAmount   decimal.Decimal      `json:"total_amount"`
	OccurredAt    time.Time            `json:"occurred_at"`
	Order         *models.Order        `json:"order,omitempty"`
}

// NewOrderEvent snapshots o. Only creation events carry the full order.
func NewOrderEvent(t Type, o *models.Order) Event {
	e := Event{
		Type:          t,
		OrderID:       o.ID,
		OrderNumber:   o.OrderNumber,
		UserID:        o.UserID,
		Status:        o.Status,
		PaymentStatus: o.PaymentStatus,
		TotalAmount:   o.TotalAmount,
		OccurredAt:    time.Now().UTC(),
	}
	if t == OrderCreated {
		e.Order = o
	}
	return e
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// NopPublisher drops events; used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close() error                         { return nil }
