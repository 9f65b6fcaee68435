package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"unirun/internal/config"
	"unirun/internal/infrastructure/lock"
	"unirun/internal/metrics"
	"unirun/internal/model"
	"unirun/internal/repository"
	"unirun/pkg/apperr"
	"unirun/pkg/idgen"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	maxTags         = 10
	maxRequestIDLen = 64
	maxLocationLen  = 128
)

type OrderService struct {
	db          *gorm.DB
	redisClient *redis.Client // 为空时不加分布式锁
	cfg         *config.Config
	orderRepo   *repository.OrderRepository
	userRepo    *repository.UserRepository
	outboxRepo  *repository.OutboxRepository
	points      *PointService
	messages    *MessageService
	now         func() time.Time

	// 发单锁的重试间隔和次数
	lockRetryInterval time.Duration
	lockMaxRetries    int
}

func NewOrderService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config, points *PointService, messages *MessageService) *OrderService {
	return &OrderService{
		db:          db,
		redisClient: redisClient,
		cfg:         cfg,
		orderRepo:   repository.NewOrderRepository(db),
		userRepo:    repository.NewUserRepository(db),
		outboxRepo:  repository.NewOutboxRepository(db),
		points:      points,
		messages:    messages,
		now:         time.Now,

		lockRetryInterval: 50 * time.Millisecond,
		lockMaxRetries:    40,
	}
}

type CreateOrderRequest struct {
	RequestID       string // 可选，客户端生成的幂等ID
	Category        string
	PickupCode      string
	FileURL         string
	FileName        string
	FilePages       int
	PrintType       string
	LocationPickup  string
	LocationDeliver string
	Description     string
	Tags            []string
}

// newOrder 校验参数并补全默认值
func (s *OrderService) newOrder(requesterID int64, req *CreateOrderRequest) (*model.Order, error) {
	category := strings.TrimSpace(req.Category)
	if category == "" {
		return nil, apperr.InvalidInput("缺少必填字段：category")
	}
	if !model.ValidCategory(category) {
		return nil, apperr.InvalidInput("不支持的订单类型：" + category)
	}

	deliver := strings.TrimSpace(req.LocationDeliver)
	if deliver == "" {
		return nil, apperr.InvalidInput("缺少必填字段：location_deliver")
	}
	pickup := strings.TrimSpace(req.LocationPickup)
	if pickup == "" {
		pickup = model.DefaultPickupLocation
	}
	if utf8.RuneCountInString(deliver) > maxLocationLen || utf8.RuneCountInString(pickup) > maxLocationLen {
		return nil, apperr.InvalidInput(fmt.Sprintf("地点不能超过%d个字符", maxLocationLen))
	}

	if len(req.Tags) > maxTags {
		return nil, apperr.InvalidInput(fmt.Sprintf("标签不能超过%d个", maxTags))
	}
	tags := make([]string, 0, len(req.Tags))
	for _, tag := range req.Tags {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}

	if len(req.RequestID) > maxRequestIDLen {
		return nil, apperr.InvalidInput("request_id 过长")
	}

	order := &model.Order{
		OrderNo:         idgen.GenerateOrderNo(),
		RequesterID:     requesterID,
		Status:          model.OrderStatusOpen,
		Category:        category,
		RewardPoints:    s.cfg.Business.OrderReward,
		PickupCode:      strings.TrimSpace(req.PickupCode),
		LocationPickup:  pickup,
		LocationDeliver: deliver,
		Description:     strings.TrimSpace(req.Description),
		Tags:            tags,
	}
	if req.RequestID != "" {
		requestID := req.RequestID
		order.RequestID = &requestID
	}

	switch category {
	case model.CategoryPackage:
		if order.Description == "" {
			first := "小件"
			if len(tags) > 0 {
				first = tags[0]
			}
			order.Description = fmt.Sprintf("快递代拿（%s）", first)
		}
	case model.CategoryPrint:
		if req.FilePages < 0 {
			return nil, apperr.InvalidInput("打印页数不能为负数")
		}
		if req.PrintType != "" && req.PrintType != model.PrintTypeSingle && req.PrintType != model.PrintTypeDouble {
			return nil, apperr.InvalidInput("打印方式只支持 single 或 double")
		}
		order.FileURL = strings.TrimSpace(req.FileURL)
		order.FileName = strings.TrimSpace(req.FileName)
		if order.FileName == "" {
			order.FileName = model.DefaultPrintFileName
		}
		order.FilePages = req.FilePages
		order.PrintType = req.PrintType
	}

	return order, nil
}

// Create 发布订单并扣除赏金
// 相同 request_id 的重复请求直接返回已创建的订单，不会重复扣分
func (s *OrderService) Create(ctx context.Context, requesterID int64, req *CreateOrderRequest) (*model.Order, error) {
	order, err := s.newOrder(requesterID, req)
	if err != nil {
		return nil, fail("create_order", err)
	}

	// 幂等校验
	if req.RequestID != "" {
		existing, err := s.orderRepo.GetByRequestID(ctx, nil, requesterID, req.RequestID)
		if err != nil {
			return nil, fail("create_order", err)
		}
		if existing != nil {
			return existing, nil
		}
	}

	if s.redisClient != nil {
		createLock := lock.NewCreateOrderLock(s.redisClient, requesterID, uuid.NewString(), s.cfg.Business.CreateLockTTL)
		if err := createLock.Lock(ctx, s.lockRetryInterval, s.lockMaxRetries); err != nil {
			if errors.Is(err, lock.ErrLockFailed) {
				return nil, fail("create_order", apperr.Conflict("操作太频繁，请稍后重试"))
			}
			return nil, fail("create_order", err)
		}
		defer func() {
			if err := createLock.Unlock(context.Background()); err != nil {
				zap.L().Warn("释放发单锁失败", zap.Int64("user_id", requesterID), zap.Error(err))
			}
		}()
	}

	var existing *model.Order
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 获取锁后再次检查幂等
		if order.RequestID != nil {
			found, err := s.orderRepo.GetByRequestID(ctx, tx, requesterID, *order.RequestID)
			if err != nil {
				return err
			}
			if found != nil {
				existing = found
				return nil
			}
		}

		if err := s.orderRepo.Create(ctx, tx, order); err != nil {
			return err
		}

		_, err := s.points.Apply(ctx, tx, ApplyRequest{
			UserID:  requesterID,
			OrderID: &order.ID,
			Delta:   -order.RewardPoints,
			Source:  model.PointSourcePayment,
			Remark:  fmt.Sprintf("发布%s订单 #%d", order.Category, order.ID),
		})
		if err != nil {
			if errors.Is(err, errPointsNotEnough) {
				return apperr.InvalidTransition(fmt.Sprintf("积分不足（需%d积分）", order.RewardPoints))
			}
			return err
		}

		return s.publish(ctx, tx, model.EventOrderCreated, order)
	})
	if err != nil {
		// 未加锁时并发的重复请求由唯一索引拦截
		if errors.Is(err, repository.ErrDuplicateRequest) && order.RequestID != nil {
			found, findErr := s.orderRepo.GetByRequestID(ctx, nil, requesterID, *order.RequestID)
			if findErr == nil && found != nil {
				return found, nil
			}
		}
		return nil, fail("create_order", err)
	}
	if existing != nil {
		return existing, nil
	}

	metrics.OrderTransitionsTotal.WithLabelValues("create").Inc()
	zap.L().Info("订单发布成功",
		zap.Int64("order_id", order.ID),
		zap.String("order_no", order.OrderNo),
		zap.Int64("user_id", requesterID),
		zap.Int64("reward_points", order.RewardPoints),
	)
	return order, nil
}

// Take 接单
func (s *OrderService) Take(ctx context.Context, orderID, callerID int64) (*model.Order, error) {
	return s.transition(ctx, "take", orderID, func(tx *gorm.DB, order *model.Order, now time.Time) error {
		if order.Status != model.OrderStatusOpen {
			return apperr.InvalidTransition("手慢了，订单已被抢或状态异常")
		}
		if order.IsRequester(callerID) {
			return apperr.Forbidden("不能接自己发布的订单哦～请选择他人订单接单")
		}
		if order.RunnerID != nil {
			return apperr.InvalidTransition("订单已被其他用户接单，请勿重复操作")
		}

		runner, err := s.userRepo.GetByID(ctx, tx, callerID)
		if err != nil {
			return err
		}

		// runner_id IS NULL 条件保证并发接单只有一个成功
		if err := s.orderRepo.Take(ctx, tx, order.ID, callerID, now); err != nil {
			if errors.Is(err, repository.ErrOrderStatusInvalid) {
				return apperr.InvalidTransition("手慢了，订单已被抢或状态异常")
			}
			return err
		}
		order.RunnerID = &callerID

		return s.messages.notify(ctx, tx, order, order.RequesterID,
			fmt.Sprintf("您的订单已被用户【%s】接单，正在配送中～", runner.Name))
	})
}

// Deliver 接单人确认送达
func (s *OrderService) Deliver(ctx context.Context, orderID, callerID int64) (*model.Order, error) {
	return s.transition(ctx, "deliver", orderID, func(tx *gorm.DB, order *model.Order, now time.Time) error {
		if !order.IsRunner(callerID) {
			return apperr.Forbidden("只有接单人才能确认送达")
		}
		if order.Status != model.OrderStatusInProgress {
			return apperr.InvalidTransition("订单状态不正确")
		}

		if err := s.orderRepo.UpdateStatus(ctx, tx, order.ID, model.OrderStatusInProgress, model.OrderStatusDelivered, now); err != nil {
			return err
		}

		return s.messages.notify(ctx, tx, order, order.RequesterID, "您的订单已送达，请确认收货")
	})
}

// Confirm 发单人确认收货，赏金发放给接单人
func (s *OrderService) Confirm(ctx context.Context, orderID, callerID int64) (*model.Order, error) {
	return s.transition(ctx, "confirm", orderID, func(tx *gorm.DB, order *model.Order, now time.Time) error {
		if !order.IsRequester(callerID) {
			return apperr.Forbidden("只有发单人才能确认收货")
		}
		if order.Status != model.OrderStatusDelivered {
			return apperr.InvalidTransition("订单未处于待收货状态，无法确认")
		}

		// 先改状态再发积分，重复确认在这里就会失败
		if err := s.orderRepo.UpdateStatus(ctx, tx, order.ID, model.OrderStatusDelivered, model.OrderStatusCompleted, now); err != nil {
			return err
		}

		runnerID := *order.RunnerID
		_, err := s.points.Apply(ctx, tx, ApplyRequest{
			UserID:  runnerID,
			OrderID: &order.ID,
			Delta:   order.RewardPoints,
			Source:  model.PointSourceReward,
			Remark:  fmt.Sprintf("完成订单 #%d 获得赏金", order.ID),
		})
		if err != nil {
			return err
		}

		return s.messages.notify(ctx, tx, order, runnerID,
			fmt.Sprintf("您完成的订单 #%d 已被确认收货，%d 积分已到账！", order.ID, order.RewardPoints))
	})
}

// Cancel 发单人取消待接单的订单，退回赏金
func (s *OrderService) Cancel(ctx context.Context, orderID, callerID int64) (*model.Order, error) {
	return s.transition(ctx, "cancel", orderID, func(tx *gorm.DB, order *model.Order, now time.Time) error {
		if !order.IsRequester(callerID) {
			return apperr.Forbidden("无权操作")
		}
		if order.Status != model.OrderStatusOpen {
			return apperr.InvalidTransition("订单已被接单，无法取消")
		}

		if err := s.orderRepo.UpdateStatus(ctx, tx, order.ID, model.OrderStatusOpen, model.OrderStatusCancelled, now); err != nil {
			return err
		}

		_, err := s.points.Apply(ctx, tx, ApplyRequest{
			UserID:  order.RequesterID,
			OrderID: &order.ID,
			Delta:   order.RewardPoints,
			Source:  model.PointSourceRefund,
			Remark:  fmt.Sprintf("取消订单 #%d", order.ID),
		})
		return err
	})
}

var transitionEvents = map[string]string{
	"take":    model.EventOrderTaken,
	"deliver": model.EventOrderDelivered,
	"confirm": model.EventOrderConfirmed,
	"cancel":  model.EventOrderCancelled,
}

// transition 在一个事务内完成：读取订单、校验、条件更新、积分和消息副作用、写 outbox
// 任一步失败整体回滚
func (s *OrderService) transition(ctx context.Context, name string, orderID int64, apply func(tx *gorm.DB, order *model.Order, now time.Time) error) (*model.Order, error) {
	operation := name + "_order"

	var updated *model.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := s.orderRepo.GetByID(ctx, tx, orderID)
		if err != nil {
			return err
		}

		if err := apply(tx, order, s.now()); err != nil {
			return err
		}

		updated, err = s.orderRepo.GetByID(ctx, tx, orderID)
		if err != nil {
			return err
		}

		return s.publish(ctx, tx, transitionEvents[name], updated)
	})
	if err != nil {
		return nil, fail(operation, err)
	}

	metrics.OrderTransitionsTotal.WithLabelValues(name).Inc()
	zap.L().Info("订单状态变更",
		zap.String("transition", name),
		zap.Int64("order_id", updated.ID),
		zap.Stringer("status", updated.Status),
	)
	return updated, nil
}

func (s *OrderService) publish(ctx context.Context, tx *gorm.DB, event string, order *model.Order) error {
	return s.outboxRepo.CreateOrderEvent(ctx, tx, s.cfg.Kafka.Topic.OrderEvent, model.NewOrderEvent(event, order, s.now()))
}

type OrderView struct {
	*model.Order
	Requester *model.UserBrief `json:"requester"`
	Runner    *model.UserBrief `json:"runner,omitempty"`
}

type OrderDetail struct {
	OrderView
	Messages []*MessageView `json:"messages"`
}

// Get 订单详情
// 发单人、接单人可以查看；待接单的订单所有人可以查看
func (s *OrderService) Get(ctx context.Context, orderID, callerID int64) (*OrderDetail, error) {
	order, err := s.orderRepo.GetByID(ctx, nil, orderID)
	if err != nil {
		return nil, fail("get_order", err)
	}
	if !order.VisibleTo(callerID) {
		return nil, fail("get_order", apperr.Forbidden("无权查看此订单"))
	}

	views, err := s.withUsers(ctx, []*model.Order{order})
	if err != nil {
		return nil, fail("get_order", err)
	}

	messages, err := s.messages.views(ctx, order.ID)
	if err != nil {
		return nil, fail("get_order", err)
	}

	return &OrderDetail{OrderView: *views[0], Messages: messages}, nil
}

// List status 为空表示不限状态，category 为空表示不限类型
func (s *OrderService) List(ctx context.Context, filter repository.OrderFilter) ([]*OrderView, int64, error) {
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, 0, fail("list_orders", apperr.InvalidInput("订单状态不合法"))
	}
	if filter.Category != "" && !model.ValidCategory(filter.Category) {
		return nil, 0, fail("list_orders", apperr.InvalidInput("不支持的订单类型："+filter.Category))
	}
	if filter.PageSize < 0 || filter.Page < 0 {
		return nil, 0, fail("list_orders", apperr.InvalidInput("分页参数不合法"))
	}

	orders, total, err := s.orderRepo.List(ctx, filter)
	if err != nil {
		return nil, 0, fail("list_orders", err)
	}

	views, err := s.withUsers(ctx, orders)
	if err != nil {
		return nil, 0, fail("list_orders", err)
	}
	return views, total, nil
}

// ListMine 我发布的（requester）或我接的（runner）订单
func (s *OrderService) ListMine(ctx context.Context, userID int64, role string, page, pageSize int) ([]*OrderView, int64, error) {
	if role == "" {
		role = repository.RoleRequester
	}
	if role != repository.RoleRequester && role != repository.RoleRunner {
		return nil, 0, fail("list_my_orders", apperr.InvalidInput("role 只支持 requester 或 runner"))
	}
	if page < 0 || pageSize < 0 {
		return nil, 0, fail("list_my_orders", apperr.InvalidInput("分页参数不合法"))
	}

	orders, total, err := s.orderRepo.ListByUser(ctx, userID, role, page, pageSize)
	if err != nil {
		return nil, 0, fail("list_my_orders", err)
	}

	views, err := s.withUsers(ctx, orders)
	if err != nil {
		return nil, 0, fail("list_my_orders", err)
	}
	return views, total, nil
}

func (s *OrderService) withUsers(ctx context.Context, orders []*model.Order) ([]*OrderView, error) {
	ids := make([]int64, 0, len(orders)*2)
	for _, o := range orders {
		ids = append(ids, o.RequesterID)
		if o.RunnerID != nil {
			ids = append(ids, *o.RunnerID)
		}
	}

	users, err := s.userRepo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	views := make([]*OrderView, 0, len(orders))
	for _, o := range orders {
		view := &OrderView{Order: o, Requester: users[o.RequesterID].Brief()}
		if o.RunnerID != nil {
			view.Runner = users[*o.RunnerID].Brief()
		}
		views = append(views, view)
	}
	return views, nil
}
