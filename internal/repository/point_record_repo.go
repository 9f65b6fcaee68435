package repository

import (
	"context"

	"unirun/internal/model"

	"gorm.io/gorm"
)

type PointRecordRepository struct {
	db *gorm.DB
}

func NewPointRecordRepository(db *gorm.DB) *PointRecordRepository {
	return &PointRecordRepository{db: db}
}

func (r *PointRecordRepository) Create(ctx context.Context, tx *gorm.DB, record *model.PointRecord) error {
	return orDefault(tx, r.db).WithContext(ctx).Create(record).Error
}

// ListByUserID 最新的 limit 条流水，limit <= 0 时返回全部
func (r *PointRecordRepository) ListByUserID(ctx context.Context, userID int64, limit int) ([]*model.PointRecord, error) {
	var records []*model.PointRecord
	query := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&records).Error
	return records, err
}

func (r *PointRecordRepository) ListByOrderID(ctx context.Context, orderID int64) ([]*model.PointRecord, error) {
	var records []*model.PointRecord
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("id ASC").
		Find(&records).Error
	return records, err
}

// SumByUserID 流水合计，用于对账
func (r *PointRecordRepository) SumByUserID(ctx context.Context, userID int64) (int64, error) {
	var sum int64
	err := r.db.WithContext(ctx).
		Model(&model.PointRecord{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(delta), 0)").
		Scan(&sum).Error
	return sum, err
}
