package handler

import (
	"fmt"

	"unirun/internal/model"
	"unirun/internal/repository"
	"unirun/internal/service"
	"unirun/pkg/response"

	"github.com/gin-gonic/gin"
)

// ============================================================
// 订单相关接口
// ============================================================

type CreateOrderRequest struct {
	RequestID       string   `json:"request_id"`
	Category        string   `json:"category"`
	PickupCode      string   `json:"pickup_code"`
	FileURL         string   `json:"file_url"`
	FileName        string   `json:"file_name"`
	FilePages       int      `json:"file_pages"`
	PrintType       string   `json:"print_type"`
	LocationPickup  string   `json:"location_pickup"`
	LocationDeliver string   `json:"location_deliver"`
	Description     string   `json:"description"`
	Tags            []string `json:"tags"`
}

// CreateOrder 发布订单
// POST /api/orders/create
// 请求头 Idempotency-Key 与 request_id 字段等价，用于防止重复提交
func (h *Handler) CreateOrder(c *gin.Context) {
	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	if req.RequestID == "" {
		req.RequestID = c.GetHeader("Idempotency-Key")
	}

	order, err := h.orders.Create(c.Request.Context(), currentUserID(c), &service.CreateOrderRequest{
		RequestID:       req.RequestID,
		Category:        req.Category,
		PickupCode:      req.PickupCode,
		FileURL:         req.FileURL,
		FileName:        req.FileName,
		FilePages:       req.FilePages,
		PrintType:       req.PrintType,
		LocationPickup:  req.LocationPickup,
		LocationDeliver: req.LocationDeliver,
		Description:     req.Description,
		Tags:            req.Tags,
	})
	if err != nil {
		response.Fail(c, err)
		return
	}

	response.Created(c, fmt.Sprintf("订单创建成功（扣除%d积分）", order.RewardPoints), order)
}

// ListOrders 订单大厅
// GET /api/orders/list?status=open&category=food&page=1&page_size=20
// 不传 status 时只看待接单的订单，status=all 不限状态
func (h *Handler) ListOrders(c *gin.Context) {
	filter := repository.OrderFilter{}

	raw, present := c.GetQuery("status")
	switch {
	case !present:
		open := model.OrderStatusOpen
		filter.Status = &open
	case raw == "" || raw == "all":
		// 不限状态
	default:
		status, ok := model.ParseOrderStatus(raw)
		if !ok {
			response.ParamError(c, "status 参数错误")
			return
		}
		filter.Status = &status
	}

	if category := c.Query("category"); category != "all" {
		filter.Category = category
	}

	var ok bool
	if filter.Page, ok = intQuery(c, "page"); !ok {
		return
	}
	if filter.PageSize, ok = intQuery(c, "page_size"); !ok {
		return
	}

	orders, total, err := h.orders.List(c.Request.Context(), filter)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, gin.H{
		"orders": orders,
		"total":  total,
	})
}

// ListMyOrders 我发布的或我接的订单
// GET /api/orders/mine?role=runner
func (h *Handler) ListMyOrders(c *gin.Context) {
	page, ok := intQuery(c, "page")
	if !ok {
		return
	}
	pageSize, ok := intQuery(c, "page_size")
	if !ok {
		return
	}

	orders, total, err := h.orders.ListMine(c.Request.Context(), currentUserID(c), c.Query("role"), page, pageSize)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, gin.H{
		"orders": orders,
		"total":  total,
	})
}

// GetOrder 订单详情，包含聊天记录
// GET /api/orders/:id
func (h *Handler) GetOrder(c *gin.Context) {
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}

	detail, err := h.orders.Get(c.Request.Context(), orderID, currentUserID(c))
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, detail)
}

// TakeOrder 接单
// POST /api/orders/:id/take
func (h *Handler) TakeOrder(c *gin.Context) {
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}

	order, err := h.orders.Take(c.Request.Context(), orderID, currentUserID(c))
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.SuccessWithMessage(c, "抢单成功！请尽快前往取件配送", order)
}

// DeliverOrder 接单人确认送达
// POST /api/orders/:id/deliver
func (h *Handler) DeliverOrder(c *gin.Context) {
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}

	order, err := h.orders.Deliver(c.Request.Context(), orderID, currentUserID(c))
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.SuccessWithMessage(c, "已确认送达，等待发单人确认收货", order)
}

// FinishOrder 发单人确认收货
// POST /api/orders/:id/finish
func (h *Handler) FinishOrder(c *gin.Context) {
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	order, err := h.orders.Confirm(ctx, orderID, currentUserID(c))
	if err != nil {
		response.Fail(c, err)
		return
	}

	// 积分已到账，余额查询失败不影响结果
	data := gin.H{"order": order}
	if order.RunnerID != nil {
		if points, err := h.points.Balance(ctx, *order.RunnerID); err == nil {
			data["runner_points"] = points
		}
	}
	response.SuccessWithMessage(c, fmt.Sprintf("确认收货成功，%d积分已发放给接单人", order.RewardPoints), data)
}

// CancelOrder 取消订单
// POST /api/orders/:id/cancel
func (h *Handler) CancelOrder(c *gin.Context) {
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}

	order, err := h.orders.Cancel(c.Request.Context(), orderID, currentUserID(c))
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.SuccessWithMessage(c, fmt.Sprintf("订单已取消，%d积分已退回", order.RewardPoints), order)
}

// ============================================================
// 订单消息与评价
// ============================================================

type ChatRequest struct {
	ReceiverID int64  `json:"receiver_id"`
	Type       string `json:"type"`
	Content    string `json:"content"`
}

// Chat 发送订单消息
// POST /api/orders/:id/chat
func (h *Handler) Chat(c *gin.Context) {
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}

	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	msg, err := h.messages.Post(c.Request.Context(), orderID, model.UserSender(currentUserID(c)), service.PostMessageRequest{
		ReceiverID: req.ReceiverID,
		Type:       req.Type,
		Content:    req.Content,
	})
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Created(c, "发送成功", msg)
}

// ListMessages 订单聊天记录
// GET /api/orders/:id/messages
func (h *Handler) ListMessages(c *gin.Context) {
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}

	messages, err := h.messages.ListByOrder(c.Request.Context(), orderID, currentUserID(c))
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, messages)
}

type RateRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

// RateOrder 评价订单另一方
// POST /api/orders/:id/rate
func (h *Handler) RateOrder(c *gin.Context) {
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}

	var req RateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	review, err := h.reviews.Rate(c.Request.Context(), orderID, currentUserID(c), service.RateRequest{
		Score:   req.Rating,
		Comment: req.Comment,
	})
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Created(c, "评价成功", review)
}

// ListReviews 订单评价
// GET /api/orders/:id/reviews
func (h *Handler) ListReviews(c *gin.Context) {
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}

	reviews, err := h.reviews.ListByOrder(c.Request.Context(), orderID, currentUserID(c))
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, reviews)
}
