package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode/utf8"

	"unirun/internal/config"
	"unirun/internal/model"
	"unirun/internal/repository"
	"unirun/pkg/apperr"
	"unirun/pkg/auth"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxNameLength = 30

var errBadCredentials = apperr.Unauthorized("账号或密码错误")

type UserService struct {
	db         *gorm.DB
	cfg        *config.BusinessConfig
	studentID  *regexp.Regexp
	userRepo   *repository.UserRepository
	orderRepo  *repository.OrderRepository
	reviewRepo *repository.ReviewRepository
	points     *PointService
}

func NewUserService(db *gorm.DB, cfg *config.Config, points *PointService) *UserService {
	return &UserService{
		db:         db,
		cfg:        &cfg.Business,
		studentID:  regexp.MustCompile(cfg.Business.StudentIDPattern),
		userRepo:   repository.NewUserRepository(db),
		orderRepo:  repository.NewOrderRepository(db),
		reviewRepo: repository.NewReviewRepository(db),
		points:     points,
	}
}

type RegisterRequest struct {
	StudentID string
	Name      string
	Password  string
}

// Register 注册并发放初始积分，用户和初始积分流水在同一个事务内写入
func (s *UserService) Register(ctx context.Context, req RegisterRequest) (*model.User, error) {
	studentID := strings.TrimSpace(req.StudentID)
	name := strings.TrimSpace(req.Name)

	if !s.studentID.MatchString(studentID) {
		return nil, fail("register", apperr.InvalidInput("学号格式不正确"))
	}
	if name == "" {
		return nil, fail("register", apperr.InvalidInput("缺少必填字段：name"))
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return nil, fail("register", apperr.InvalidInput(fmt.Sprintf("昵称不能超过%d个字符", maxNameLength)))
	}
	if utf8.RuneCountInString(req.Password) < s.cfg.PasswordMinLength {
		return nil, fail("register", apperr.InvalidInput(fmt.Sprintf("密码长度至少为%d位", s.cfg.PasswordMinLength)))
	}

	hashed, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, fail("register", err)
	}

	user := &model.User{
		StudentID:    studentID,
		Name:         name,
		PasswordHash: hashed,
		Points:       0,
		CreditScore:  s.cfg.CreditScoreInitial,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		exists, err := s.userRepo.ExistsByStudentID(ctx, tx, studentID)
		if err != nil {
			return err
		}
		if exists {
			return repository.ErrStudentIDExists
		}

		if err := s.userRepo.Create(ctx, tx, user); err != nil {
			return err
		}

		_, err = s.points.Apply(ctx, tx, ApplyRequest{
			UserID: user.ID,
			Delta:  s.cfg.InitialPoints,
			Source: model.PointSourceInitial,
			Remark: "初始积分",
		})
		return err
	})
	if err != nil {
		return nil, fail("register", err)
	}

	user.Points = s.cfg.InitialPoints
	zap.L().Info("用户注册成功", zap.Int64("user_id", user.ID), zap.String("student_id", studentID))
	return user, nil
}

// Authenticate 校验学号和密码，任何不匹配都返回同一个错误
func (s *UserService) Authenticate(ctx context.Context, studentID, password string) (*model.User, error) {
	user, err := s.userRepo.GetByStudentID(ctx, strings.TrimSpace(studentID))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			auth.CheckDummy(password)
			return nil, fail("authenticate", errBadCredentials)
		}
		return nil, fail("authenticate", err)
	}

	if !auth.CheckPassword(user.PasswordHash, password) {
		return nil, fail("authenticate", errBadCredentials)
	}
	return user, nil
}

func (s *UserService) Get(ctx context.Context, userID int64) (*model.User, error) {
	user, err := s.userRepo.GetByID(ctx, nil, userID)
	if err != nil {
		return nil, fail("get_user", err)
	}
	return user, nil
}

// Profile 个人主页信息
type Profile struct {
	*model.User
	CompletedOrders int64    `json:"completed_orders_count"`
	ReviewCount     int64    `json:"review_count"`
	AvgRating       *float64 `json:"avg_rating"`
}

func (s *UserService) Profile(ctx context.Context, userID int64) (*Profile, error) {
	user, err := s.userRepo.GetByID(ctx, nil, userID)
	if err != nil {
		return nil, fail("get_profile", err)
	}

	completed, err := s.orderRepo.CountCompletedByUser(ctx, userID)
	if err != nil {
		return nil, fail("get_profile", err)
	}

	stats, err := s.reviewRepo.StatsByReviewee(ctx, userID)
	if err != nil {
		return nil, fail("get_profile", err)
	}

	profile := &Profile{
		User:            user,
		CompletedOrders: completed,
		ReviewCount:     stats.Count,
	}
	if stats.AvgScore != nil {
		// 保留一位小数
		avg := math.Round(*stats.AvgScore*10) / 10
		profile.AvgRating = &avg
	}
	return profile, nil
}
