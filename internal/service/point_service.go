package service

import (
	"context"
	"errors"

	"unirun/internal/metrics"
	"unirun/internal/model"
	"unirun/internal/repository"
	"unirun/pkg/apperr"
	"unirun/pkg/idgen"

	"gorm.io/gorm"
)

// PointService 积分账本
// 余额变动和流水必须在调用方的同一个事务里完成，Apply 不会自己开事务
type PointService struct {
	db         *gorm.DB
	userRepo   *repository.UserRepository
	recordRepo *repository.PointRecordRepository
}

func NewPointService(db *gorm.DB) *PointService {
	return &PointService{
		db:         db,
		userRepo:   repository.NewUserRepository(db),
		recordRepo: repository.NewPointRecordRepository(db),
	}
}

type ApplyRequest struct {
	UserID  int64
	OrderID *int64
	Delta   int64
	Source  string
	Remark  string
}

// Apply 变更余额并写一条流水，BalanceAfter 取更新后的余额
func (s *PointService) Apply(ctx context.Context, tx *gorm.DB, req ApplyRequest) (*model.PointRecord, error) {
	if tx == nil {
		return nil, apperr.Internal(errors.New("point apply requires a transaction"))
	}
	if req.Delta == 0 {
		return nil, apperr.InvalidInput("积分变动不能为0")
	}

	if err := s.userRepo.ChangePoints(ctx, tx, req.UserID, req.Delta); err != nil {
		return nil, translate(err)
	}

	user, err := s.userRepo.GetByID(ctx, tx, req.UserID)
	if err != nil {
		return nil, translate(err)
	}

	record := &model.PointRecord{
		RecordNo:      idgen.GenerateRecordNo(),
		UserID:        req.UserID,
		OrderID:       req.OrderID,
		Delta:         req.Delta,
		Source:        req.Source,
		BalanceBefore: user.Points - req.Delta,
		BalanceAfter:  user.Points,
		Remark:        req.Remark,
	}
	if err := s.recordRepo.Create(ctx, tx, record); err != nil {
		return nil, translate(err)
	}

	metrics.PointsChangedTotal.WithLabelValues(req.Source).Inc()
	return record, nil
}

// ListByUser 最近的积分流水，limit <= 0 时返回全部
func (s *PointService) ListByUser(ctx context.Context, userID int64, limit int) ([]*model.PointRecord, error) {
	records, err := s.recordRepo.ListByUserID(ctx, userID, limit)
	if err != nil {
		return nil, fail("list_points", err)
	}
	return records, nil
}

func (s *PointService) Balance(ctx context.Context, userID int64) (int64, error) {
	user, err := s.userRepo.GetByID(ctx, nil, userID)
	if err != nil {
		return 0, fail("get_balance", err)
	}
	return user.Points, nil
}

// SumByUser 流水合计，正常情况下等于 Balance
func (s *PointService) SumByUser(ctx context.Context, userID int64) (int64, error) {
	sum, err := s.recordRepo.SumByUserID(ctx, userID)
	if err != nil {
		return 0, fail("sum_points", err)
	}
	return sum, nil
}
