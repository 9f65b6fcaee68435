package model

import (
	"time"
)

const (
	SenderTypeUser   = "user"
	SenderTypeSystem = "system"
)

const (
	MessageTypeText  = "text"
	MessageTypeImage = "image"
)

const SystemSenderName = "系统"

// Sender 消息发送方：用户或系统
type Sender struct {
	Type   string
	UserID *int64
}

func UserSender(userID int64) Sender {
	return Sender{Type: SenderTypeUser, UserID: &userID}
}

func SystemSender() Sender {
	return Sender{Type: SenderTypeSystem}
}

func (s Sender) IsSystem() bool {
	return s.Type == SenderTypeSystem
}

// Message 订单内的聊天记录和系统通知，只追加
type Message struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID    int64     `gorm:"index;not null" json:"order_id"`
	SenderType string    `gorm:"type:varchar(16);not null;default:user" json:"sender_type"`
	SenderID   *int64    `gorm:"index" json:"sender_id"` // 系统消息为空
	ReceiverID int64     `gorm:"index;not null" json:"receiver_id"`
	Type       string    `gorm:"type:varchar(16);not null;default:text" json:"type"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	IsRead     bool      `gorm:"not null;default:false" json:"is_read"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (Message) TableName() string {
	return "message"
}

func (m *Message) Sender() Sender {
	if m.SenderType == SenderTypeSystem {
		return SystemSender()
	}
	return Sender{Type: SenderTypeUser, UserID: m.SenderID}
}
