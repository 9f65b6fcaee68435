package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"unirun/internal/model"
	"unirun/internal/repository"
	"unirun/internal/service"
	"unirun/pkg/apperr"
	"unirun/pkg/auth"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type mockUserService struct {
	mock.Mock
}

func (m *mockUserService) Register(ctx context.Context, req service.RegisterRequest) (*model.User, error) {
	args := m.Called(ctx, req)
	user, _ := args.Get(0).(*model.User)
	return user, args.Error(1)
}

func (m *mockUserService) Authenticate(ctx context.Context, studentID, password string) (*model.User, error) {
	args := m.Called(ctx, studentID, password)
	user, _ := args.Get(0).(*model.User)
	return user, args.Error(1)
}

func (m *mockUserService) Get(ctx context.Context, userID int64) (*model.User, error) {
	args := m.Called(ctx, userID)
	user, _ := args.Get(0).(*model.User)
	return user, args.Error(1)
}

func (m *mockUserService) Profile(ctx context.Context, userID int64) (*service.Profile, error) {
	args := m.Called(ctx, userID)
	profile, _ := args.Get(0).(*service.Profile)
	return profile, args.Error(1)
}

type mockOrderService struct {
	mock.Mock
}

func (m *mockOrderService) order(args mock.Arguments) (*model.Order, error) {
	order, _ := args.Get(0).(*model.Order)
	return order, args.Error(1)
}

func (m *mockOrderService) Create(ctx context.Context, requesterID int64, req *service.CreateOrderRequest) (*model.Order, error) {
	return m.order(m.Called(ctx, requesterID, req))
}

func (m *mockOrderService) Take(ctx context.Context, orderID, callerID int64) (*model.Order, error) {
	return m.order(m.Called(ctx, orderID, callerID))
}

func (m *mockOrderService) Deliver(ctx context.Context, orderID, callerID int64) (*model.Order, error) {
	return m.order(m.Called(ctx, orderID, callerID))
}

func (m *mockOrderService) Confirm(ctx context.Context, orderID, callerID int64) (*model.Order, error) {
	return m.order(m.Called(ctx, orderID, callerID))
}

func (m *mockOrderService) Cancel(ctx context.Context, orderID, callerID int64) (*model.Order, error) {
	return m.order(m.Called(ctx, orderID, callerID))
}

func (m *mockOrderService) Get(ctx context.Context, orderID, callerID int64) (*service.OrderDetail, error) {
	args := m.Called(ctx, orderID, callerID)
	detail, _ := args.Get(0).(*service.OrderDetail)
	return detail, args.Error(1)
}

func (m *mockOrderService) List(ctx context.Context, filter repository.OrderFilter) ([]*service.OrderView, int64, error) {
	args := m.Called(ctx, filter)
	views, _ := args.Get(0).([]*service.OrderView)
	return views, args.Get(1).(int64), args.Error(2)
}

func (m *mockOrderService) ListMine(ctx context.Context, userID int64, role string, page, pageSize int) ([]*service.OrderView, int64, error) {
	args := m.Called(ctx, userID, role, page, pageSize)
	views, _ := args.Get(0).([]*service.OrderView)
	return views, args.Get(1).(int64), args.Error(2)
}

const testUserID = int64(42)

func newMockRouter(t *testing.T) (*gin.Engine, *mockUserService, *mockOrderService, string) {
	t.Helper()

	users := &mockUserService{}
	orders := &mockOrderService{}
	users.On("Get", mock.Anything, testUserID).Return(&model.User{ID: testUserID}, nil).Maybe()

	tokens := auth.NewTokenManager("test-secret", time.Hour)
	token, err := tokens.Generate(testUserID)
	require.NoError(t, err)

	h := NewHandler(Services{Users: users, Orders: orders}, tokens, 20)
	return NewRouter(h, nil), users, orders, token
}

func serve(router *gin.Engine, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestTransitionErrorsMapToStatus(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"invalid transition", apperr.InvalidTransition("手慢了，订单已被抢或状态异常"), http.StatusBadRequest},
		{"forbidden", apperr.Forbidden("不能接自己发布的订单哦～请选择他人订单接单"), http.StatusForbidden},
		{"not found", apperr.NotFound("订单不存在"), http.StatusNotFound},
		{"internal", errors.New("database is locked"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router, _, orders, token := newMockRouter(t)
			orders.On("Take", mock.Anything, int64(7), testUserID).Return(nil, tc.err).Once()

			w := serve(router, http.MethodPost, "/api/orders/7/take", token)
			assert.Equal(t, tc.status, w.Code)

			var resp struct {
				Code    int    `json:"code"`
				Message string `json:"message"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tc.status, resp.Code)
			assert.Equal(t, apperr.MessageOf(tc.err), resp.Message)
			orders.AssertExpectations(t)
		})
	}
}

func TestBadOrderIDIsRejectedBeforeService(t *testing.T) {
	router, _, orders, token := newMockRouter(t)

	for _, path := range []string{"/api/orders/abc/take", "/api/orders/0/cancel", "/api/orders/-3"} {
		method := http.MethodPost
		if path == "/api/orders/-3" {
			method = http.MethodGet
		}
		w := serve(router, method, path, token)
		assert.Equal(t, http.StatusBadRequest, w.Code, path)
	}
	orders.AssertNotCalled(t, "Take", mock.Anything, mock.Anything, mock.Anything)
	orders.AssertNotCalled(t, "Cancel", mock.Anything, mock.Anything, mock.Anything)
}

func TestListOrdersBuildsFilter(t *testing.T) {
	open := model.OrderStatusOpen
	delivered := model.OrderStatusDelivered

	cases := []struct {
		query string
		want  repository.OrderFilter
	}{
		{"", repository.OrderFilter{Status: &open}},
		{"?status=all", repository.OrderFilter{}},
		{"?status=delivered&category=print", repository.OrderFilter{Status: &delivered, Category: "print"}},
		{"?status=2&category=all&page=2&page_size=5", repository.OrderFilter{Status: &delivered, Page: 2, PageSize: 5}},
	}

	for _, tc := range cases {
		t.Run(tc.query, func(t *testing.T) {
			router, _, orders, token := newMockRouter(t)
			orders.On("List", mock.Anything, tc.want).Return([]*service.OrderView{}, int64(0), nil).Once()

			w := serve(router, http.MethodGet, "/api/orders/list"+tc.query, token)
			assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
			orders.AssertExpectations(t)
		})
	}
}

func TestDeletedUserIsUnauthorized(t *testing.T) {
	users := &mockUserService{}
	users.On("Get", mock.Anything, int64(9)).Return(nil, apperr.NotFound("用户不存在")).Once()

	tokens := auth.NewTokenManager("test-secret", time.Hour)
	token, err := tokens.Generate(9)
	require.NoError(t, err)

	router := NewRouter(NewHandler(Services{Users: users}, tokens, 20), nil)
	w := serve(router, http.MethodGet, "/api/user/profile", token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	users.AssertExpectations(t)
}

func TestRecoveryMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(RequestIDMiddleware(), RecoveryMiddleware())
	r.GET("/panic", func(c *gin.Context) { panic("boom") })

	w := serve(r, http.MethodGet, "/panic", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "服务器内部错误")
}

func TestCORSPreflight(t *testing.T) {
	router, _, _, _ := newMockRouter(t)

	w := serve(router, http.MethodOptions, "/api/orders/list", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
