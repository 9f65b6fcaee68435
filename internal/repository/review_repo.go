package repository

import (
	"context"
	"errors"

	"unirun/internal/model"

	"gorm.io/gorm"
)

var ErrDuplicateReview = errors.New("已经评价过该订单")

type ReviewRepository struct {
	db *gorm.DB
}

func NewReviewRepository(db *gorm.DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

// Create 唯一索引 ux_review_order_reviewer 保证同一订单同一评价人只有一条
func (r *ReviewRepository) Create(ctx context.Context, tx *gorm.DB, review *model.Review) error {
	err := orDefault(tx, r.db).WithContext(ctx).Create(review).Error
	if isDuplicateKey(err) {
		return ErrDuplicateReview
	}
	return err
}

func (r *ReviewRepository) Exists(ctx context.Context, tx *gorm.DB, orderID, reviewerID int64) (bool, error) {
	var count int64
	err := orDefault(tx, r.db).WithContext(ctx).
		Model(&model.Review{}).
		Where("order_id = ? AND reviewer_id = ?", orderID, reviewerID).
		Count(&count).Error
	return count > 0, err
}

func (r *ReviewRepository) ListByOrderID(ctx context.Context, orderID int64) ([]*model.Review, error) {
	var reviews []*model.Review
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("id ASC").
		Find(&reviews).Error
	return reviews, err
}

func (r *ReviewRepository) ListByReviewee(ctx context.Context, revieweeID int64) ([]*model.Review, error) {
	var reviews []*model.Review
	err := r.db.WithContext(ctx).
		Where("reviewee_id = ?", revieweeID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&reviews).Error
	return reviews, err
}

type ReviewStats struct {
	Count    int64
	AvgScore *float64
}

// StatsByReviewee 收到的评价数和平均分，没有评价时 AvgScore 为 nil
func (r *ReviewRepository) StatsByReviewee(ctx context.Context, revieweeID int64) (*ReviewStats, error) {
	var row struct {
		Count    int64
		AvgScore *float64
	}
	err := r.db.WithContext(ctx).
		Model(&model.Review{}).
		Select("COUNT(*) AS count, AVG(score) AS avg_score").
		Where("reviewee_id = ?", revieweeID).
		Scan(&row).Error
	if err != nil {
		return nil, err
	}
	return &ReviewStats{Count: row.Count, AvgScore: row.AvgScore}, nil
}
