package job

import (
	"context"
	"time"

	"unirun/internal/config"
	"unirun/internal/infrastructure/mq"
	"unirun/internal/metrics"
	"unirun/internal/model"
	"unirun/internal/repository"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// OutboxSender 轮询 outbox 表，把订单事件投递到 kafka
// 至少投递一次，消费方按 order_no + event 去重
type OutboxSender struct {
	outboxRepo *repository.OutboxRepository
	producer   mq.Producer
	stopCh     chan struct{}
	interval   time.Duration
	batchSize  int
	maxRetry   int
}

func NewOutboxSender(db *gorm.DB, producer mq.Producer, cfg *config.BusinessConfig) *OutboxSender {
	return &OutboxSender{
		outboxRepo: repository.NewOutboxRepository(db),
		producer:   producer,
		stopCh:     make(chan struct{}),
		interval:   cfg.OutboxInterval,
		batchSize:  cfg.OutboxBatchSize,
		maxRetry:   cfg.MaxRetryCount,
	}
}

func (s *OutboxSender) Start(ctx context.Context) {
	zap.L().Info("outbox 发送任务启动", zap.Duration("interval", s.interval), zap.Int("batch_size", s.batchSize))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			zap.L().Info("收到停止信号，outbox 发送任务退出")
			return
		case <-s.stopCh:
			zap.L().Info("outbox 发送任务停止")
			return
		case <-ticker.C:
			s.ProcessPending(ctx)
		}
	}
}

func (s *OutboxSender) Stop() {
	close(s.stopCh)
}

// ProcessPending 发送一批待投递的消息，返回成功条数
func (s *OutboxSender) ProcessPending(ctx context.Context) int {
	messages, err := s.outboxRepo.GetPendingMessages(ctx, s.batchSize)
	if err != nil {
		zap.L().Error("查询待发送消息失败", zap.Error(err))
		return 0
	}

	sent := 0
	for _, msg := range messages {
		if ctx.Err() != nil {
			break
		}
		if s.send(ctx, msg) {
			sent++
		}
	}
	return sent
}

func (s *OutboxSender) send(ctx context.Context, msg *model.OutboxMessage) bool {
	log := zap.L().With(
		zap.Int64("id", msg.ID),
		zap.String("topic", msg.Topic),
		zap.String("key", msg.MessageKey),
		zap.String("event", msg.Event),
	)

	err := s.producer.SendMessage(msg.Topic, msg.MessageKey, msg.Payload)
	if err == nil {
		metrics.OutboxSentTotal.WithLabelValues("sent").Inc()
		if err := s.outboxRepo.MarkAsSent(ctx, msg.ID); err != nil {
			// 下一轮会重复投递
			log.Error("更新消息状态失败", zap.Error(err))
			return false
		}
		log.Debug("消息发送成功")
		return true
	}

	log.Warn("消息发送失败", zap.Int("retry_count", msg.RetryCount), zap.Error(err))

	if msg.RetryCount+1 >= s.maxRetry {
		metrics.OutboxSentTotal.WithLabelValues("failed").Inc()
		if err := s.outboxRepo.MarkAsFailed(ctx, msg.ID); err != nil {
			log.Error("标记消息失败状态失败", zap.Error(err))
			return false
		}
		log.Error("消息超过最大重试次数，标记为失败", zap.Int("max_retry", s.maxRetry))
		return false
	}

	metrics.OutboxSentTotal.WithLabelValues("retry").Inc()
	if err := s.outboxRepo.IncrementRetryCount(ctx, msg.ID); err != nil {
		log.Error("增加重试次数失败", zap.Error(err))
	}
	return false
}
