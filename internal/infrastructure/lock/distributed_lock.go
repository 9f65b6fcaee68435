package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// ============================================================================
// Redis 分布式锁
// ============================================================================
//
// 用途：同一用户短时间内重复点击"发布订单"时，多个请求可能落在不同实例上。
// 积分扣减本身在数据库里有条件更新兜底，不会扣成负数；
// 这把锁保证同一用户的发单请求串行执行，配合 request_id 做幂等。
//
// 加锁：SET key value NX EX timeout
//   - value 为持有者标识，释放时校验，避免删掉别人的锁
//
// 释放：Lua 脚本保证"比较+删除"原子执行
// ============================================================================

var (
	ErrLockFailed = errors.New("获取分布式锁失败")
)

const unlockScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end
`

// DistributedLock 分布式锁
type DistributedLock struct {
	client     *redis.Client
	key        string        // 锁的 key
	value      string        // 锁持有者标识
	expiration time.Duration // 过期时间，持有者崩溃时自动释放
}

// NewDistributedLock 创建分布式锁
func NewDistributedLock(client *redis.Client, key, value string, expiration time.Duration) *DistributedLock {
	return &DistributedLock{
		client:     client,
		key:        key,
		value:      value,
		expiration: expiration,
	}
}

func (l *DistributedLock) Key() string {
	return l.key
}

// TryLock 尝试获取锁（非阻塞）
func (l *DistributedLock) TryLock(ctx context.Context) (bool, error) {
	success, err := l.client.SetNX(ctx, l.key, l.value, l.expiration).Result()
	if err != nil {
		return false, err
	}
	return success, nil
}

// Lock 阻塞式获取锁（带重试）
func (l *DistributedLock) Lock(ctx context.Context, retryInterval time.Duration, maxRetries int) error {
	for i := 0; i < maxRetries; i++ {
		success, err := l.TryLock(ctx)
		if err != nil {
			return err
		}
		if success {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
		}
	}
	return ErrLockFailed
}

// Unlock 释放锁，锁已过期或已被他人持有时什么都不做
func (l *DistributedLock) Unlock(ctx context.Context) error {
	_, err := l.client.Eval(ctx, unlockScript, []string{l.key}, l.value).Result()
	return err
}

// NewCreateOrderLock 按发单人维度加锁，不同用户之间可以并发发单
// token 使用本次请求的标识，便于排查是哪个请求持有锁
func NewCreateOrderLock(client *redis.Client, userID int64, token string, expiration time.Duration) *DistributedLock {
	key := fmt.Sprintf("unirun:lock:order:create:%d", userID)
	return NewDistributedLock(client, key, token, expiration)
}
