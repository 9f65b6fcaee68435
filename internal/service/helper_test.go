package service

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"unirun/internal/config"
	"unirun/internal/infrastructure/database"
	"unirun/internal/model"
	"unirun/internal/repository"
	"unirun/pkg/apperr"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type testEnv struct {
	db       *gorm.DB
	cfg      *config.Config
	users    *UserService
	orders   *OrderService
	points   *PointService
	messages *MessageService
	reviews  *ReviewService
}

var studentSeq int64 = 2023000000

func newTestEnv(t *testing.T, rdb *redis.Client) *testEnv {
	t.Helper()

	cfg, err := config.Load("")
	require.NoError(t, err)

	db, err := database.OpenInMemory(strings.ReplaceAll(t.Name(), "/", "_"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	points := NewPointService(db)
	messages := NewMessageService(db)
	return &testEnv{
		db:       db,
		cfg:      cfg,
		users:    NewUserService(db, cfg, points),
		orders:   NewOrderService(db, rdb, cfg, points, messages),
		points:   points,
		messages: messages,
		reviews:  NewReviewService(db),
	}
}

func (e *testEnv) register(t *testing.T, name string) *model.User {
	t.Helper()
	studentID := fmt.Sprintf("%d", atomic.AddInt64(&studentSeq, 1))
	user, err := e.users.Register(context.Background(), RegisterRequest{
		StudentID: studentID,
		Name:      name,
		Password:  "123456",
	})
	require.NoError(t, err)
	return user
}

// grant 通过积分账本给用户加分，保持余额和流水一致
func (e *testEnv) grant(t *testing.T, userID, delta int64) {
	t.Helper()
	require.NoError(t, e.db.Transaction(func(tx *gorm.DB) error {
		_, err := e.points.Apply(context.Background(), tx, ApplyRequest{
			UserID: userID,
			Delta:  delta,
			Source: model.PointSourceInitial,
			Remark: "测试调整",
		})
		return err
	}))
}

// setCreditScore 直接改写信用分，用于构造边界场景
func (e *testEnv) setCreditScore(t *testing.T, userID int64, score int) {
	t.Helper()
	users := repository.NewUserRepository(e.db)
	require.NoError(t, e.db.Transaction(func(tx *gorm.DB) error {
		if _, err := users.GetByIDForUpdate(context.Background(), tx, userID); err != nil {
			return err
		}
		return users.UpdateCreditScore(context.Background(), tx, userID, score)
	}))
}

func (e *testEnv) balance(t *testing.T, userID int64) int64 {
	t.Helper()
	points, err := e.points.Balance(context.Background(), userID)
	require.NoError(t, err)
	return points
}

// assertLedger 余额必须等于流水合计
func (e *testEnv) assertLedger(t *testing.T, users ...*model.User) {
	t.Helper()
	for _, u := range users {
		sum, err := e.points.SumByUser(context.Background(), u.ID)
		require.NoError(t, err)
		assert.Equal(t, e.balance(t, u.ID), sum, "user %d", u.ID)
	}
}

func (e *testEnv) createOrder(t *testing.T, requester *model.User) *model.Order {
	t.Helper()
	order, err := e.orders.Create(context.Background(), requester.ID, &CreateOrderRequest{
		Category:        model.CategoryFood,
		LocationPickup:  "一食堂",
		LocationDeliver: "宿舍 3 号楼",
		Tags:            []string{"午饭"},
	})
	require.NoError(t, err)
	return order
}

// completedOrder 走完 发布 -> 接单 -> 送达 -> 确认
func (e *testEnv) completedOrder(t *testing.T, requester, runner *model.User) *model.Order {
	t.Helper()
	ctx := context.Background()

	order := e.createOrder(t, requester)
	_, err := e.orders.Take(ctx, order.ID, runner.ID)
	require.NoError(t, err)
	_, err = e.orders.Deliver(ctx, order.ID, runner.ID)
	require.NoError(t, err)
	order, err = e.orders.Confirm(ctx, order.ID, requester.ID)
	require.NoError(t, err)
	return order
}

func (e *testEnv) pointRecords(t *testing.T, userID int64) []*model.PointRecord {
	t.Helper()
	records, err := e.points.ListByUser(context.Background(), userID, 0)
	require.NoError(t, err)
	return records
}

func (e *testEnv) orderMessages(t *testing.T, orderID int64) []*model.Message {
	t.Helper()
	messages, err := repository.NewMessageRepository(e.db).ListByOrderID(context.Background(), orderID)
	require.NoError(t, err)
	return messages
}

func assertKind(t *testing.T, want apperr.Kind, err error) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, want.String(), apperr.KindOf(err).String(), err.Error())
}
