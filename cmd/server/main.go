package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"unirun/internal/config"
	"unirun/internal/handler"
	"unirun/internal/infrastructure/cache"
	"unirun/internal/infrastructure/database"
	"unirun/internal/infrastructure/mq"
	"unirun/internal/job"
	"unirun/pkg/idgen"
	"unirun/pkg/logger"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", envOr("UNIRUN_CONFIG", "config/config.yaml"), "配置文件路径")
	flag.Parse()

	// 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		return 1
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		return 1
	}
	defer func() { _ = log.Sync() }()

	// 初始化编号生成器
	if err := idgen.Init(cfg.Server.WorkerID); err != nil {
		log.Error("初始化编号生成器失败", zap.Error(err))
		return 1
	}

	// 初始化数据库
	db, err := database.Open(&cfg.Database)
	if err != nil {
		log.Error("连接数据库失败", zap.Error(err))
		return 1
	}
	defer func() { _ = database.Close(db) }()

	// 初始化 Redis，未启用时发单不加分布式锁
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedis(&cfg.Redis)
		if err != nil {
			log.Error("连接 Redis 失败", zap.Error(err))
			return 1
		}
		defer func() { _ = redisClient.Close() }()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eg, ctx := errgroup.WithContext(ctx)

	// 初始化 Kafka，未启用时事件只保留在 outbox 表
	if cfg.Kafka.Enabled {
		producer, err := mq.NewKafkaProducer(&cfg.Kafka)
		if err != nil {
			log.Error("连接 Kafka 失败", zap.Error(err))
			return 1
		}
		defer func() { _ = producer.Close() }()

		outboxSender := job.NewOutboxSender(db, producer, &cfg.Business)
		eg.Go(func() error {
			outboxSender.Start(ctx)
			return nil
		})
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      handler.SetupRouter(db, redisClient, cfg),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	eg.Go(func() error {
		log.Info("服务启动", zap.Int("port", cfg.Server.Port), zap.String("db_driver", cfg.Database.Driver))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	eg.Go(func() error {
		<-ctx.Done()
		log.Info("正在关闭服务...")

		// 等待进行中的请求最多5秒
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := eg.Wait(); err != nil {
		log.Error("服务异常退出", zap.Error(err))
		return 1
	}

	log.Info("服务已关闭")
	return 0
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
