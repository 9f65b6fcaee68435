package handler

import (
	"context"
	"net/http"
	"time"

	"unirun/internal/config"
	"unirun/internal/infrastructure/database"
	"unirun/internal/service"
	"unirun/pkg/auth"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

// HealthCheck 依赖探活
type HealthCheck func(ctx context.Context) error

// SetupRouter 组装服务并配置路由，rdb 为空时不启用分布式锁
func SetupRouter(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *gin.Engine {
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}

	points := service.NewPointService(db)
	messages := service.NewMessageService(db)
	services := Services{
		Users:    service.NewUserService(db, cfg, points),
		Points:   points,
		Orders:   service.NewOrderService(db, rdb, cfg, points, messages),
		Messages: messages,
		Reviews:  service.NewReviewService(db),
	}

	checks := map[string]HealthCheck{
		"database": func(ctx context.Context) error { return database.Ping(ctx, db) },
	}
	if rdb != nil {
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	return NewRouter(NewHandler(services, tokens, cfg.Business.PointRecordsLimit), checks)
}

func NewRouter(h *Handler, checks map[string]HealthCheck) *gin.Engine {
	r := gin.New()

	// 注册中间件
	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware())
	r.Use(LoggerMiddleware())
	r.Use(MetricsMiddleware())
	r.Use(CORSMiddleware())

	api := r.Group("/api")
	{
		// 注册登录
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/register", h.Register)
			authGroup.POST("/login", h.Login)
		}

		protected := api.Group("", AuthMiddleware(h.tokens, h.users))

		// 用户相关
		user := protected.Group("/user")
		{
			user.GET("/profile", h.Profile)
			user.GET("/points", h.Points)
			user.GET("/reviews", h.ReceivedReviews)
		}
		protected.GET("/messages", h.Inbox)

		// 订单相关
		orders := protected.Group("/orders")
		{
			orders.POST("/create", h.CreateOrder)
			orders.GET("/list", h.ListOrders)
			orders.GET("/mine", h.ListMyOrders)
			orders.GET("/:id", h.GetOrder)
			orders.POST("/:id/take", h.TakeOrder)
			orders.POST("/:id/deliver", h.DeliverOrder)
			orders.POST("/:id/finish", h.FinishOrder)
			orders.POST("/:id/cancel", h.CancelOrder)
			orders.POST("/:id/chat", h.Chat)
			orders.GET("/:id/messages", h.ListMessages)
			orders.POST("/:id/rate", h.RateOrder)
			orders.GET("/:id/reviews", h.ListReviews)
		}
	}

	// 健康检查
	r.GET("/health", healthHandler(checks))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func healthHandler(checks map[string]HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		result := gin.H{}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				result[name] = err.Error()
				continue
			}
			result[name] = "ok"
		}

		if status == http.StatusOK {
			result["status"] = "ok"
		} else {
			result["status"] = "unavailable"
		}
		c.JSON(status, result)
	}
}
