package idgen

import (
	"fmt"
	"sync"
	"time"
)

// ============================================================================
// 雪花算法编号生成器
// ============================================================================
//
// 订单主键使用数据库自增 ID（前端路由 /orders/:id 依赖它），
// 对外展示的订单号、积分流水号由这里生成：
//
//   0 - 41位时间戳 - 10位机器ID - 12位序列号
//
// 多实例部署时每个实例配置不同的 worker_id，保证编号不重复。
// ============================================================================

const (
	epoch          = int64(1735689600000) // 2025-01-01 00:00:00 UTC
	workerIDBits   = 10
	sequenceBits   = 12
	maxWorkerID    = -1 ^ (-1 << workerIDBits)
	maxSequence    = -1 ^ (-1 << sequenceBits)
	workerIDShift  = sequenceBits
	timestampShift = sequenceBits + workerIDBits
)

const (
	PrefixOrder  = "RUN"
	PrefixRecord = "PTS"
)

// Snowflake 雪花算法ID生成器
type Snowflake struct {
	mu        sync.Mutex
	timestamp int64
	workerID  int64
	sequence  int64
	now       func() int64
}

var (
	defaultGenerator *Snowflake
	once             sync.Once
)

// New 创建生成器，workerID 取值 0-1023
func New(workerID int64) (*Snowflake, error) {
	if workerID < 0 || workerID > maxWorkerID {
		return nil, fmt.Errorf("workerID 必须在 0-%d 之间", maxWorkerID)
	}
	return &Snowflake{
		workerID: workerID,
		now:      func() int64 { return time.Now().UnixMilli() },
	}, nil
}

// Init 初始化默认生成器，只有第一次调用生效
func Init(workerID int64) error {
	var err error
	once.Do(func() {
		defaultGenerator, err = New(workerID)
	})
	return err
}

// NextID 生成下一个ID
func NextID() int64 {
	// 未显式初始化时使用 workerID = 1
	_ = Init(1)
	return defaultGenerator.Generate()
}

// Generate 生成ID
func (s *Snowflake) Generate() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()

	if now == s.timestamp {
		s.sequence = (s.sequence + 1) & maxSequence
		if s.sequence == 0 {
			// 序列号用完，自旋到下一毫秒
			for now <= s.timestamp {
				now = s.now()
			}
		}
	} else {
		s.sequence = 0
	}

	s.timestamp = now

	return ((now - epoch) << timestampShift) |
		(s.workerID << workerIDShift) |
		s.sequence
}

// GenerateOrderNo 生成订单号
// 格式：RUN + 年月日时分秒 + 雪花ID后8位，例如 RUN2025031514305212345678
func GenerateOrderNo() string {
	return generate(PrefixOrder)
}

// GenerateRecordNo 生成积分流水号
func GenerateRecordNo() string {
	return generate(PrefixRecord)
}

func generate(prefix string) string {
	id := NextID()
	timestamp := time.Now().Format("20060102150405")
	return fmt.Sprintf("%s%s%08d", prefix, timestamp, id%100000000)
}
