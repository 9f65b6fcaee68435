package model

import (
	"time"
)

const (
	OutboxStatusPending = "PENDING"
	OutboxStatusSent    = "SENT"
	OutboxStatusFailed  = "FAILED"
)

// 订单事件类型
const (
	EventOrderCreated   = "order.created"
	EventOrderTaken     = "order.taken"
	EventOrderDelivered = "order.delivered"
	EventOrderConfirmed = "order.confirmed"
	EventOrderCancelled = "order.cancelled"
)

type OutboxMessage struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	MessageKey string    `gorm:"type:varchar(64);not null" json:"message_key"`
	Topic      string    `gorm:"type:varchar(64);not null" json:"topic"`
	Event      string    `gorm:"type:varchar(32);not null;index" json:"event"`
	Payload    string    `gorm:"type:text;not null" json:"payload"`
	Status     string    `gorm:"type:varchar(20);index;not null;default:PENDING" json:"status"`
	RetryCount int       `gorm:"not null;default:0" json:"retry_count"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (OutboxMessage) TableName() string {
	return "outbox_message"
}

// OrderEvent 投递到 kafka 的订单事件
type OrderEvent struct {
	Event        string      `json:"event"`
	OrderID      int64       `json:"order_id"`
	OrderNo      string      `json:"order_no"`
	RequesterID  int64       `json:"requester_id"`
	RunnerID     *int64      `json:"runner_id"`
	Status       OrderStatus `json:"status"`
	RewardPoints int64       `json:"reward_points"`
	OccurredAt   time.Time   `json:"occurred_at"`
}

func NewOrderEvent(event string, order *Order, occurredAt time.Time) *OrderEvent {
	return &OrderEvent{
		Event:        event,
		OrderID:      order.ID,
		OrderNo:      order.OrderNo,
		RequesterID:  order.RequesterID,
		RunnerID:     order.RunnerID,
		Status:       order.Status,
		RewardPoints: order.RewardPoints,
		OccurredAt:   occurredAt,
	}
}
