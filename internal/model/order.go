package model

import (
	"strconv"
	"time"
)

// OrderStatus 订单状态
// 数值与前端约定一致，不能调整顺序
type OrderStatus int

const (
	OrderStatusOpen       OrderStatus = 0 // 待接单
	OrderStatusInProgress OrderStatus = 1 // 配送中
	OrderStatusDelivered  OrderStatus = 2 // 已送达，待确认
	OrderStatusCompleted  OrderStatus = 3 // 已完成
	OrderStatusCancelled  OrderStatus = 4 // 已取消
)

func (s OrderStatus) String() string {
	switch s {
	case OrderStatusOpen:
		return "open"
	case OrderStatusInProgress:
		return "in_progress"
	case OrderStatusDelivered:
		return "delivered"
	case OrderStatusCompleted:
		return "completed"
	case OrderStatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

func (s OrderStatus) Valid() bool {
	return s >= OrderStatusOpen && s <= OrderStatusCancelled
}

// Terminal 已完成和已取消是终态
func (s OrderStatus) Terminal() bool {
	_, exists := ValidStatusTransitions[s]
	return s.Valid() && !exists
}

// ParseOrderStatus 支持状态名（open）和数值（0）两种写法
func ParseOrderStatus(raw string) (OrderStatus, bool) {
	if n, err := strconv.Atoi(raw); err == nil {
		s := OrderStatus(n)
		return s, s.Valid()
	}
	for s := OrderStatusOpen; s <= OrderStatusCancelled; s++ {
		if s.String() == raw {
			return s, true
		}
	}
	return 0, false
}

var ValidStatusTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusOpen:       {OrderStatusInProgress, OrderStatusCancelled},
	OrderStatusInProgress: {OrderStatusDelivered},
	OrderStatusDelivered:  {OrderStatusCompleted},
}

func CanTransitionTo(currentStatus, targetStatus OrderStatus) bool {
	allowedStatuses, exists := ValidStatusTransitions[currentStatus]
	if !exists {
		return false
	}
	for _, s := range allowedStatuses {
		if s == targetStatus {
			return true
		}
	}
	return false
}

const (
	CategoryFood    = "food"
	CategoryPackage = "package"
	CategoryPrint   = "print"
)

func ValidCategory(category string) bool {
	switch category {
	case CategoryFood, CategoryPackage, CategoryPrint:
		return true
	}
	return false
}

const (
	PrintTypeSingle = "single"
	PrintTypeDouble = "double"
)

const (
	DefaultPickupLocation = "未知取件点"
	DefaultPrintFileName  = "用户上传文件.pdf"
)

// Order 跑腿订单
// RunnerID 只能被 take 设置一次；状态 >= 配送中时必然非空（已取消的订单从未被接过）
type Order struct {
	ID           int64       `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderNo      string      `gorm:"type:varchar(64);uniqueIndex;not null" json:"order_no"`
	RequestID    *string     `gorm:"type:varchar(64);uniqueIndex:ux_order_requester_request" json:"request_id,omitempty"`
	RequesterID  int64       `gorm:"not null;index;uniqueIndex:ux_order_requester_request" json:"requester_id"`
	RunnerID     *int64      `gorm:"index" json:"runner_id"`
	Status       OrderStatus `gorm:"not null;default:0;index" json:"status"`
	Category     string      `gorm:"type:varchar(16);not null;index" json:"category"`
	RewardPoints int64       `gorm:"not null" json:"reward_points"`

	// 分类相关字段
	PickupCode      string   `gorm:"type:varchar(64)" json:"pickup_code"`
	FileURL         string   `gorm:"type:varchar(255)" json:"file_url"`
	FileName        string   `gorm:"type:varchar(255)" json:"file_name"`
	FilePages       int      `gorm:"not null;default:0" json:"file_pages"`
	PrintType       string   `gorm:"type:varchar(16)" json:"print_type"`
	LocationPickup  string   `gorm:"type:varchar(128)" json:"location_pickup"`
	LocationDeliver string   `gorm:"type:varchar(128);not null" json:"location_deliver"`
	Description     string   `gorm:"type:text" json:"description"`
	Tags            []string `gorm:"serializer:json;type:text" json:"tags"`

	CreatedAt   time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	TakenAt     *time.Time `json:"taken_at"`
	DeliveredAt *time.Time `json:"delivered_at"`
	ConfirmedAt *time.Time `json:"confirmed_at"`
	CancelledAt *time.Time `json:"cancelled_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Order) TableName() string {
	return "orders"
}

func (o *Order) IsRequester(userID int64) bool {
	return o.RequesterID == userID
}

func (o *Order) IsRunner(userID int64) bool {
	return o.RunnerID != nil && *o.RunnerID == userID
}

func (o *Order) IsParty(userID int64) bool {
	return o.IsRequester(userID) || o.IsRunner(userID)
}

// Counterparty 返回订单另一方，没有接单人时 ok 为 false
func (o *Order) Counterparty(userID int64) (int64, bool) {
	switch {
	case o.RunnerID == nil:
		return 0, false
	case o.IsRequester(userID):
		return *o.RunnerID, true
	case o.IsRunner(userID):
		return o.RequesterID, true
	}
	return 0, false
}

// VisibleTo 发单人、接单人可见；待接单的订单所有人可见
func (o *Order) VisibleTo(userID int64) bool {
	return o.Status == OrderStatusOpen || o.IsParty(userID)
}
