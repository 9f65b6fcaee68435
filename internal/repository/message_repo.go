package repository

import (
	"context"

	"unirun/internal/model"

	"gorm.io/gorm"
)

type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) Create(ctx context.Context, tx *gorm.DB, msg *model.Message) error {
	return orDefault(tx, r.db).WithContext(ctx).Create(msg).Error
}

// ListByOrderID 按时间正序，同一时刻按写入顺序
func (r *MessageRepository) ListByOrderID(ctx context.Context, orderID int64) ([]*model.Message, error) {
	var messages []*model.Message
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&messages).Error
	return messages, err
}

// ListByUser 用户发出或收到的全部消息，最新的在前
func (r *MessageRepository) ListByUser(ctx context.Context, userID int64) ([]*model.Message, error) {
	var messages []*model.Message
	err := r.db.WithContext(ctx).
		Where("receiver_id = ? OR (sender_type = ? AND sender_id = ?)", userID, model.SenderTypeUser, userID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&messages).Error
	return messages, err
}

func (r *MessageRepository) CountUnread(ctx context.Context, receiverID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Message{}).
		Where("receiver_id = ? AND is_read = ?", receiverID, false).
		Count(&count).Error
	return count, err
}

// MarkRead 把订单内发给 receiverID 的消息标记为已读
func (r *MessageRepository) MarkRead(ctx context.Context, orderID, receiverID int64) error {
	return r.db.WithContext(ctx).
		Model(&model.Message{}).
		Where("order_id = ? AND receiver_id = ? AND is_read = ?", orderID, receiverID, false).
		UpdateColumn("is_read", true).Error
}
