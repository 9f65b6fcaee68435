package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"unirun/internal/model"
	"unirun/internal/repository"
	"unirun/pkg/apperr"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxCommentLength = 500

type ReviewService struct {
	db         *gorm.DB
	orderRepo  *repository.OrderRepository
	userRepo   *repository.UserRepository
	reviewRepo *repository.ReviewRepository
}

func NewReviewService(db *gorm.DB) *ReviewService {
	return &ReviewService{
		db:         db,
		orderRepo:  repository.NewOrderRepository(db),
		userRepo:   repository.NewUserRepository(db),
		reviewRepo: repository.NewReviewRepository(db),
	}
}

type RateRequest struct {
	Score   int
	Comment string
}

// Rate 评价订单另一方，信用分变化 score-3，结果限制在 [0,100]
func (s *ReviewService) Rate(ctx context.Context, orderID, callerID int64, req RateRequest) (*model.Review, error) {
	if req.Score < model.ScoreMin || req.Score > model.ScoreMax {
		return nil, fail("rate_order", apperr.InvalidInput(fmt.Sprintf("评分必须在%d-%d之间", model.ScoreMin, model.ScoreMax)))
	}
	comment := strings.TrimSpace(req.Comment)
	if utf8.RuneCountInString(comment) > maxCommentLength {
		return nil, fail("rate_order", apperr.InvalidInput(fmt.Sprintf("评价内容不能超过%d个字符", maxCommentLength)))
	}

	var review *model.Review
	var creditAfter int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := s.orderRepo.GetByID(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if order.Status != model.OrderStatusCompleted {
			return apperr.InvalidTransition("订单未完成，无法评价")
		}
		revieweeID, ok := order.Counterparty(callerID)
		if !ok {
			return apperr.Forbidden("无权评价此订单")
		}

		exists, err := s.reviewRepo.Exists(ctx, tx, orderID, callerID)
		if err != nil {
			return err
		}
		if exists {
			return repository.ErrDuplicateReview
		}

		review = &model.Review{
			OrderID:     orderID,
			ReviewerID:  callerID,
			RevieweeID:  revieweeID,
			Score:       req.Score,
			Comment:     comment,
			CreditDelta: model.CreditDelta(req.Score),
		}
		// 并发的重复评价由唯一索引拦截
		if err := s.reviewRepo.Create(ctx, tx, review); err != nil {
			return err
		}

		reviewee, err := s.userRepo.GetByIDForUpdate(ctx, tx, revieweeID)
		if err != nil {
			return err
		}
		creditAfter = model.ClampCreditScore(reviewee.CreditScore + review.CreditDelta)
		return s.userRepo.UpdateCreditScore(ctx, tx, revieweeID, creditAfter)
	})
	if err != nil {
		return nil, fail("rate_order", err)
	}

	zap.L().Info("订单评价成功",
		zap.Int64("order_id", orderID),
		zap.Int64("reviewer_id", callerID),
		zap.Int64("reviewee_id", review.RevieweeID),
		zap.Int("score", review.Score),
		zap.Int("credit_score", creditAfter),
	)
	return review, nil
}

// ListByOrder 订单下的评价，可见范围与订单详情一致
func (s *ReviewService) ListByOrder(ctx context.Context, orderID, callerID int64) ([]*model.Review, error) {
	order, err := s.orderRepo.GetByID(ctx, nil, orderID)
	if err != nil {
		return nil, fail("list_reviews", err)
	}
	if !order.VisibleTo(callerID) {
		return nil, fail("list_reviews", apperr.Forbidden("无权查看此订单"))
	}

	reviews, err := s.reviewRepo.ListByOrderID(ctx, orderID)
	if err != nil {
		return nil, fail("list_reviews", err)
	}
	return reviews, nil
}

// ListReceived 用户收到的评价
func (s *ReviewService) ListReceived(ctx context.Context, userID int64) ([]*model.Review, error) {
	reviews, err := s.reviewRepo.ListByReviewee(ctx, userID)
	if err != nil {
		return nil, fail("list_reviews", err)
	}
	if reviews == nil {
		reviews = []*model.Review{}
	}
	return reviews, nil
}
