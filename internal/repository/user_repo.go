package repository

import (
	"context"
	"errors"

	"unirun/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrUserNotFound    = errors.New("用户不存在")
	ErrStudentIDExists = errors.New("该学号已注册")
	ErrPointsNotEnough = errors.New("积分不足")
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, tx *gorm.DB, user *model.User) error {
	err := orDefault(tx, r.db).WithContext(ctx).Create(user).Error
	if isDuplicateKey(err) {
		return ErrStudentIDExists
	}
	return err
}

func (r *UserRepository) GetByID(ctx context.Context, tx *gorm.DB, id int64) (*model.User, error) {
	var user model.User
	err := orDefault(tx, r.db).WithContext(ctx).Where("id = ?", id).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// GetByIDForUpdate 行锁读取，必须在事务内调用
func (r *UserRepository) GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id int64) (*model.User, error) {
	if tx == nil {
		return nil, ErrTxRequired
	}

	var user model.User
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) GetByStudentID(ctx context.Context, studentID string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).Where("student_id = ?", studentID).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) ExistsByStudentID(ctx context.Context, tx *gorm.DB, studentID string) (bool, error) {
	var count int64
	err := orDefault(tx, r.db).WithContext(ctx).
		Model(&model.User{}).
		Where("student_id = ?", studentID).
		Count(&count).Error
	return count > 0, err
}

// GetByIDs 批量查询，返回 id -> user
func (r *UserRepository) GetByIDs(ctx context.Context, ids []int64) (map[int64]*model.User, error) {
	result := make(map[int64]*model.User, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	var users []*model.User
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	for _, u := range users {
		result[u.ID] = u
	}
	return result, nil
}

// ChangePoints 变更积分余额
// delta < 0 时带条件扣减 points >= -delta，余额不足不会更新任何行
func (r *UserRepository) ChangePoints(ctx context.Context, tx *gorm.DB, userID int64, delta int64) error {
	if tx == nil {
		return ErrTxRequired
	}

	query := tx.WithContext(ctx).Model(&model.User{}).Where("id = ?", userID)
	if delta < 0 {
		query = query.Where("points >= ?", -delta)
	}

	result := query.UpdateColumn("points", gorm.Expr("points + ?", delta))
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		// 区分用户不存在和余额不足，同一事务内查询
		if _, err := r.GetByID(ctx, tx, userID); err != nil {
			return err
		}
		return ErrPointsNotEnough
	}

	return nil
}

// UpdateCreditScore 调用方需先用 GetByIDForUpdate 锁定该行
// 分数未变化时 MySQL 返回的影响行数为 0，这里不做判断
func (r *UserRepository) UpdateCreditScore(ctx context.Context, tx *gorm.DB, userID int64, score int) error {
	if tx == nil {
		return ErrTxRequired
	}

	return tx.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", userID).
		UpdateColumn("credit_score", score).Error
}
