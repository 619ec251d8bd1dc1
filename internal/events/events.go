package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/safar/marketplace-orders/internal/models"
)

const (
	TypeOrderCreated          = "order.created"
	TypeOrderCancelled        = "order.cancelled"
	TypeSubOrderStatusChanged = "suborder.status_changed"
)

type Event struct {
	ID          string    `json:"event_id"`
	Type        string    `json:"event_type"`
	OccurredAt  time.Time `json:"occurred_at"`
	OrderID     int64     `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	Payload     any       `json:"payload"`
}

// Publisher delivers events after the change they describe has committed.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

type SubOrderStatusChange struct {
	SubOrderID     int64         `json:"sub_order_id"`
	SellerID       string        `json:"seller_id"`
	From           models.Status `json:"from"`
	To             models.Status `json:"to"`
	TrackingNumber *string       `json:"tracking_number,omitempty"`
	OverallStatus  models.Status `json:"overall_status"`
}

type OrderCancellation struct {
	CustomerID         string        `json:"customer_id"`
	CancelledSubOrders []int64       `json:"cancelled_sub_orders"`
	OverallStatus      models.Status `json:"overall_status"`
}

func newEvent(eventType string, order *models.Order, payload any) Event {
	return Event{
		ID:          uuid.NewString(),
		Type:        eventType,
		OccurredAt:  time.Now().UTC(),
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Payload:     payload,
	}
}

func OrderCreated(order *models.Order) Event {
	return newEvent(TypeOrderCreated, order, order)
}

func OrderCancelled(order *models.Order, cancelled []int64) Event {
	return newEvent(TypeOrderCancelled, order, OrderCancellation{
		CustomerID:         order.CustomerID,
		CancelledSubOrders: cancelled,
		OverallStatus:      order.OverallStatus,
	})
}

func SubOrderStatusChanged(order *models.Order, subOrder *models.SubOrder, from models.Status) Event {
	return newEvent(TypeSubOrderStatusChanged, order, SubOrderStatusChange{
		SubOrderID:     subOrder.ID,
		SellerID:       subOrder.SellerID,
		From:           from,
		To:             subOrder.Status,
		TrackingNumber: subOrder.TrackingNumber,
		OverallStatus:  order.OverallStatus,
	})
}

// NopPublisher drops every event. It is used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

func (NopPublisher) Close() error { return nil }
