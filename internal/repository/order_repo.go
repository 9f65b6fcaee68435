package repository

import (
	"context"
	"errors"
	"time"

	"unirun/internal/model"

	"gorm.io/gorm"
)

var (
	ErrOrderNotFound      = errors.New("订单不存在")
	ErrOrderStatusInvalid = errors.New("订单状态不合法")
	ErrDuplicateRequest   = errors.New("重复请求")
)

// 进入各状态时写入的时间字段
var statusTimestampColumn = map[model.OrderStatus]string{
	model.OrderStatusInProgress: "taken_at",
	model.OrderStatusDelivered:  "delivered_at",
	model.OrderStatusCompleted:  "confirmed_at",
	model.OrderStatusCancelled:  "cancelled_at",
}

const (
	RoleRequester = "requester"
	RoleRunner    = "runner"
)

// OrderFilter 列表筛选条件，PageSize 为 0 时不分页
type OrderFilter struct {
	Status   *model.OrderStatus
	Category string
	Page     int
	PageSize int
}

type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) Create(ctx context.Context, tx *gorm.DB, order *model.Order) error {
	err := orDefault(tx, r.db).WithContext(ctx).Create(order).Error
	if isDuplicateKey(err) {
		return ErrDuplicateRequest
	}
	return err
}

func (r *OrderRepository) GetByID(ctx context.Context, tx *gorm.DB, id int64) (*model.Order, error) {
	var order model.Order
	err := orDefault(tx, r.db).WithContext(ctx).Where("id = ?", id).First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

// GetByIDs 批量查询，返回 id -> order
func (r *OrderRepository) GetByIDs(ctx context.Context, ids []int64) (map[int64]*model.Order, error) {
	result := make(map[int64]*model.Order, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	var orders []*model.Order
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&orders).Error; err != nil {
		return nil, err
	}
	for _, o := range orders {
		result[o.ID] = o
	}
	return result, nil
}

// GetByRequestID 幂等查询，不存在时返回 nil, nil
func (r *OrderRepository) GetByRequestID(ctx context.Context, tx *gorm.DB, requesterID int64, requestID string) (*model.Order, error) {
	var order model.Order
	err := orDefault(tx, r.db).WithContext(ctx).
		Where("requester_id = ? AND request_id = ?", requesterID, requestID).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// UpdateStatus 条件更新订单状态：WHERE id = ? AND status = from
// 影响行数为 0 说明状态已被其他请求改变
func (r *OrderRepository) UpdateStatus(ctx context.Context, tx *gorm.DB, orderID int64, fromStatus, toStatus model.OrderStatus, at time.Time) error {
	return r.transition(ctx, tx, orderID, fromStatus, toStatus, at, nil)
}

// Take 接单，额外要求 runner_id 为空，并发接单只有一个请求能成功
func (r *OrderRepository) Take(ctx context.Context, tx *gorm.DB, orderID, runnerID int64, at time.Time) error {
	return r.transition(ctx, tx, orderID, model.OrderStatusOpen, model.OrderStatusInProgress, at, &runnerID)
}

func (r *OrderRepository) transition(ctx context.Context, tx *gorm.DB, orderID int64, fromStatus, toStatus model.OrderStatus, at time.Time, runnerID *int64) error {
	if !model.CanTransitionTo(fromStatus, toStatus) {
		return ErrOrderStatusInvalid
	}

	updates := map[string]interface{}{
		"status":     toStatus,
		"updated_at": at,
	}
	if column, ok := statusTimestampColumn[toStatus]; ok {
		updates[column] = at
	}

	query := orDefault(tx, r.db).WithContext(ctx).
		Model(&model.Order{}).
		Where("id = ? AND status = ?", orderID, fromStatus)
	if runnerID != nil {
		updates["runner_id"] = *runnerID
		query = query.Where("runner_id IS NULL")
	}

	result := query.UpdateColumns(updates)
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrOrderStatusInvalid
	}

	return nil
}

// List 按创建时间倒序
func (r *OrderRepository) List(ctx context.Context, filter OrderFilter) ([]*model.Order, int64, error) {
	var orders []*model.Order
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Order{})
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}

	err := query.Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	query = query.Order("created_at DESC").Order("id DESC")
	if filter.PageSize > 0 {
		page := filter.Page
		if page < 1 {
			page = 1
		}
		query = query.Offset((page - 1) * filter.PageSize).Limit(filter.PageSize)
	}

	err = query.Find(&orders).Error
	return orders, total, err
}

// ListByUser role 为 requester 时查我发布的，runner 时查我接的
func (r *OrderRepository) ListByUser(ctx context.Context, userID int64, role string, page, pageSize int) ([]*model.Order, int64, error) {
	var orders []*model.Order
	var total int64

	column := "requester_id"
	if role == RoleRunner {
		column = "runner_id"
	}

	query := r.db.WithContext(ctx).Model(&model.Order{}).Where(column+" = ?", userID)

	err := query.Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	query = query.Order("created_at DESC").Order("id DESC")
	if pageSize > 0 {
		if page < 1 {
			page = 1
		}
		query = query.Offset((page - 1) * pageSize).Limit(pageSize)
	}

	err = query.Find(&orders).Error
	return orders, total, err
}

// CountCompletedByUser 作为发单人或接单人完成的订单数
func (r *OrderRepository) CountCompletedByUser(ctx context.Context, userID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Order{}).
		Where("status = ? AND (requester_id = ? OR runner_id = ?)", model.OrderStatusCompleted, userID, userID).
		Count(&count).Error
	return count, err
}
