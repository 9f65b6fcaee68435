package cache

import (
	"context"
	"time"

	"unirun/internal/config"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
)

// NewRedis 创建 Redis 客户端并检查连通性
func NewRedis(cfg *config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrapf(err, "连接 Redis 失败: %s", cfg.Addr())
	}
	return client, nil
}
