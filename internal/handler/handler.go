package handler

import (
	"context"
	"strconv"

	"unirun/internal/model"
	"unirun/internal/repository"
	"unirun/internal/service"
	"unirun/pkg/response"

	"github.com/gin-gonic/gin"
)

type UserService interface {
	Register(ctx context.Context, req service.RegisterRequest) (*model.User, error)
	Authenticate(ctx context.Context, studentID, password string) (*model.User, error)
	Get(ctx context.Context, userID int64) (*model.User, error)
	Profile(ctx context.Context, userID int64) (*service.Profile, error)
}

type PointService interface {
	Balance(ctx context.Context, userID int64) (int64, error)
	ListByUser(ctx context.Context, userID int64, limit int) ([]*model.PointRecord, error)
}

type OrderService interface {
	Create(ctx context.Context, requesterID int64, req *service.CreateOrderRequest) (*model.Order, error)
	Take(ctx context.Context, orderID, callerID int64) (*model.Order, error)
	Deliver(ctx context.Context, orderID, callerID int64) (*model.Order, error)
	Confirm(ctx context.Context, orderID, callerID int64) (*model.Order, error)
	Cancel(ctx context.Context, orderID, callerID int64) (*model.Order, error)
	Get(ctx context.Context, orderID, callerID int64) (*service.OrderDetail, error)
	List(ctx context.Context, filter repository.OrderFilter) ([]*service.OrderView, int64, error)
	ListMine(ctx context.Context, userID int64, role string, page, pageSize int) ([]*service.OrderView, int64, error)
}

type MessageService interface {
	Post(ctx context.Context, orderID int64, sender model.Sender, req service.PostMessageRequest) (*model.Message, error)
	ListByOrder(ctx context.Context, orderID, callerID int64) ([]*service.MessageView, error)
	Inbox(ctx context.Context, userID int64) (*service.Inbox, error)
}

type ReviewService interface {
	Rate(ctx context.Context, orderID, callerID int64, req service.RateRequest) (*model.Review, error)
	ListByOrder(ctx context.Context, orderID, callerID int64) ([]*model.Review, error)
	ListReceived(ctx context.Context, userID int64) ([]*model.Review, error)
}

// TokenIssuer 登录令牌，*auth.TokenManager 实现
type TokenIssuer interface {
	Generate(userID int64) (string, error)
	Parse(token string) (int64, error)
}

type Services struct {
	Users    UserService
	Points   PointService
	Orders   OrderService
	Messages MessageService
	Reviews  ReviewService
}

// Handler 统一处理器，包含所有服务依赖
type Handler struct {
	users    UserService
	points   PointService
	orders   OrderService
	messages MessageService
	reviews  ReviewService
	tokens   TokenIssuer

	pointRecordsLimit int
}

func NewHandler(services Services, tokens TokenIssuer, pointRecordsLimit int) *Handler {
	return &Handler{
		users:             services.Users,
		points:            services.Points,
		orders:            services.Orders,
		messages:          services.Messages,
		reviews:           services.Reviews,
		tokens:            tokens,
		pointRecordsLimit: pointRecordsLimit,
	}
}

// ============================================================
// 账号相关接口
// ============================================================

type RegisterRequest struct {
	StudentID string `json:"student_id" binding:"required"`
	Name      string `json:"name" binding:"required"`
	Password  string `json:"password" binding:"required"`
}

// Register 注册
// POST /api/auth/register
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	user, err := h.users.Register(c.Request.Context(), service.RegisterRequest{
		StudentID: req.StudentID,
		Name:      req.Name,
		Password:  req.Password,
	})
	if err != nil {
		response.Fail(c, err)
		return
	}

	response.Created(c, "注册成功", gin.H{
		"user_id":    user.ID,
		"student_id": user.StudentID,
		"points":     user.Points,
	})
}

type LoginRequest struct {
	StudentID string `json:"student_id" binding:"required"`
	Password  string `json:"password" binding:"required"`
}

// Login 登录，返回令牌和用户信息
// POST /api/auth/login
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	user, err := h.users.Authenticate(c.Request.Context(), req.StudentID, req.Password)
	if err != nil {
		response.Fail(c, err)
		return
	}

	token, err := h.tokens.Generate(user.ID)
	if err != nil {
		response.Fail(c, err)
		return
	}

	response.SuccessWithMessage(c, "登录成功", gin.H{
		"token": token,
		"user":  user,
	})
}

// Profile 个人信息
// GET /api/user/profile
func (h *Handler) Profile(c *gin.Context) {
	profile, err := h.users.Profile(c.Request.Context(), currentUserID(c))
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, profile)
}

// Points 积分余额和最近的流水
// GET /api/user/points
func (h *Handler) Points(c *gin.Context) {
	ctx := c.Request.Context()
	userID := currentUserID(c)

	points, err := h.points.Balance(ctx, userID)
	if err != nil {
		response.Fail(c, err)
		return
	}

	records, err := h.points.ListByUser(ctx, userID, h.pointRecordsLimit)
	if err != nil {
		response.Fail(c, err)
		return
	}

	response.Success(c, gin.H{
		"points":  points,
		"records": records,
	})
}

// ReceivedReviews 我收到的评价
// GET /api/user/reviews
func (h *Handler) ReceivedReviews(c *gin.Context) {
	reviews, err := h.reviews.ListReceived(c.Request.Context(), currentUserID(c))
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, reviews)
}

// Inbox 消息中心
// GET /api/messages
func (h *Handler) Inbox(c *gin.Context) {
	inbox, err := h.messages.Inbox(c.Request.Context(), currentUserID(c))
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, inbox)
}

// ============================================================
// 辅助函数
// ============================================================

const ctxUserID = "user_id"

// currentUserID 由 AuthMiddleware 写入
func currentUserID(c *gin.Context) int64 {
	return c.GetInt64(ctxUserID)
}

func orderIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.ParamError(c, "订单ID参数错误")
		return 0, false
	}
	return id, true
}

// intQuery 读取非负整数参数，缺省为 0
func intQuery(c *gin.Context, key string) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		response.ParamError(c, key+" 参数错误")
		return 0, false
	}
	return v, true
}
