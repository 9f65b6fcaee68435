package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"unirun/internal/model"
	"unirun/internal/repository"
	"unirun/pkg/apperr"

	"gorm.io/gorm"
)

const maxMessageLength = 1000

type MessageService struct {
	db          *gorm.DB
	orderRepo   *repository.OrderRepository
	userRepo    *repository.UserRepository
	messageRepo *repository.MessageRepository
}

func NewMessageService(db *gorm.DB) *MessageService {
	return &MessageService{
		db:          db,
		orderRepo:   repository.NewOrderRepository(db),
		userRepo:    repository.NewUserRepository(db),
		messageRepo: repository.NewMessageRepository(db),
	}
}

// PostMessageRequest ReceiverID 为 0 时发给订单另一方；系统消息必须指定
type PostMessageRequest struct {
	ReceiverID int64
	Type       string
	Content    string
}

type MessageView struct {
	*model.Message
	SenderName string `json:"sender_name"`
}

// Post 在订单内发送消息
// 用户只能和订单另一方聊天，订单还没有接单人时不能发送
func (s *MessageService) Post(ctx context.Context, orderID int64, sender model.Sender, req PostMessageRequest) (*model.Message, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, fail("post_message", apperr.InvalidInput("消息内容不能为空"))
	}
	if utf8.RuneCountInString(content) > maxMessageLength {
		return nil, fail("post_message", apperr.InvalidInput(fmt.Sprintf("消息不能超过%d个字符", maxMessageLength)))
	}

	msgType := req.Type
	if msgType == "" {
		msgType = model.MessageTypeText
	}
	if msgType != model.MessageTypeText && msgType != model.MessageTypeImage {
		return nil, fail("post_message", apperr.InvalidInput("消息类型只支持 text 或 image"))
	}

	var msg *model.Message
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := s.orderRepo.GetByID(ctx, tx, orderID)
		if err != nil {
			return err
		}

		receiverID, err := resolveReceiver(order, sender, req.ReceiverID)
		if err != nil {
			return err
		}

		msg = newMessage(order.ID, sender, receiverID, msgType, content)
		return s.messageRepo.Create(ctx, tx, msg)
	})
	if err != nil {
		return nil, fail("post_message", err)
	}
	return msg, nil
}

func resolveReceiver(order *model.Order, sender model.Sender, receiverID int64) (int64, error) {
	if sender.IsSystem() {
		if receiverID == 0 || !order.IsParty(receiverID) {
			return 0, apperr.InvalidInput("系统消息的接收人必须是订单参与方")
		}
		return receiverID, nil
	}

	if sender.UserID == nil || !order.IsParty(*sender.UserID) {
		return 0, apperr.Forbidden("无权发送消息")
	}
	other, ok := order.Counterparty(*sender.UserID)
	if !ok {
		return 0, apperr.InvalidTransition("订单被接单后才能发送消息")
	}
	if receiverID != 0 && receiverID != other {
		return 0, apperr.Forbidden("只能给订单另一方发送消息")
	}
	return other, nil
}

func newMessage(orderID int64, sender model.Sender, receiverID int64, msgType, content string) *model.Message {
	return &model.Message{
		OrderID:    orderID,
		SenderType: sender.Type,
		SenderID:   sender.UserID,
		ReceiverID: receiverID,
		Type:       msgType,
		Content:    content,
	}
}

// notify 订单状态变更时发送系统通知，与状态变更同一个事务
func (s *MessageService) notify(ctx context.Context, tx *gorm.DB, order *model.Order, receiverID int64, content string) error {
	if !order.IsParty(receiverID) {
		return apperr.Internal(fmt.Errorf("notify receiver %d is not a party of order %d", receiverID, order.ID))
	}
	return s.messageRepo.Create(ctx, tx, newMessage(order.ID, model.SystemSender(), receiverID, model.MessageTypeText, content))
}

// ListByOrder 订单聊天记录，可见范围与订单详情一致；读取后把发给自己的消息标记为已读
func (s *MessageService) ListByOrder(ctx context.Context, orderID, callerID int64) ([]*MessageView, error) {
	order, err := s.orderRepo.GetByID(ctx, nil, orderID)
	if err != nil {
		return nil, fail("list_messages", err)
	}
	if !order.VisibleTo(callerID) {
		return nil, fail("list_messages", apperr.Forbidden("无权查看此订单"))
	}

	views, err := s.views(ctx, orderID)
	if err != nil {
		return nil, fail("list_messages", err)
	}

	if err := s.messageRepo.MarkRead(ctx, orderID, callerID); err != nil {
		return nil, fail("list_messages", err)
	}
	return views, nil
}

// views 按时间正序并补充发送人昵称
func (s *MessageService) views(ctx context.Context, orderID int64) ([]*MessageView, error) {
	messages, err := s.messageRepo.ListByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return s.withSenderNames(ctx, messages)
}

func (s *MessageService) withSenderNames(ctx context.Context, messages []*model.Message) ([]*MessageView, error) {
	var ids []int64
	for _, m := range messages {
		if m.SenderID != nil {
			ids = append(ids, *m.SenderID)
		}
	}
	users, err := s.userRepo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	views := make([]*MessageView, 0, len(messages))
	for _, m := range messages {
		view := &MessageView{Message: m, SenderName: model.SystemSenderName}
		if !m.Sender().IsSystem() {
			view.SenderName = "未知用户"
			if m.SenderID != nil {
				if u, ok := users[*m.SenderID]; ok {
					view.SenderName = u.Name
				}
			}
		}
		views = append(views, view)
	}
	return views, nil
}

// Conversation 消息中心按订单分组
type Conversation struct {
	OrderID  int64             `json:"order_id"`
	OrderNo  string            `json:"order_no"`
	Category string            `json:"category"`
	Status   model.OrderStatus `json:"status"`
	Messages []*MessageView    `json:"messages"`
}

type Inbox struct {
	Conversations []*Conversation `json:"conversations"`
	UnreadCount   int64           `json:"unread_count"`
}

// Inbox 与用户相关的全部消息，按订单分组，最近有消息的订单在前
func (s *MessageService) Inbox(ctx context.Context, userID int64) (*Inbox, error) {
	messages, err := s.messageRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fail("inbox", err)
	}

	views, err := s.withSenderNames(ctx, messages)
	if err != nil {
		return nil, fail("inbox", err)
	}

	var orderIDs []int64
	grouped := make(map[int64]*Conversation)
	var conversations []*Conversation
	for _, v := range views {
		conv, ok := grouped[v.OrderID]
		if !ok {
			conv = &Conversation{OrderID: v.OrderID}
			grouped[v.OrderID] = conv
			conversations = append(conversations, conv)
			orderIDs = append(orderIDs, v.OrderID)
		}
		conv.Messages = append(conv.Messages, v)
	}

	orders, err := s.orderRepo.GetByIDs(ctx, orderIDs)
	if err != nil {
		return nil, fail("inbox", err)
	}
	for _, conv := range conversations {
		if o, ok := orders[conv.OrderID]; ok {
			conv.OrderNo = o.OrderNo
			conv.Category = o.Category
			conv.Status = o.Status
		}
	}

	unread, err := s.messageRepo.CountUnread(ctx, userID)
	if err != nil {
		return nil, fail("inbox", err)
	}

	if conversations == nil {
		conversations = []*Conversation{}
	}
	return &Inbox{Conversations: conversations, UnreadCount: unread}, nil
}
