package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"unirun/internal/metrics"
	"unirun/pkg/apperr"
	"unirun/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const headerRequestID = "X-Request-ID"

// RequestIDMiddleware 透传或生成请求ID
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(headerRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set("request_id", requestID)
		c.Header(headerRequestID, requestID)
		c.Next()
	}
}

// LoggerMiddleware 日志中间件
func LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		// 处理请求
		c.Next()

		// 探活和指标采集不记日志
		if path == "/health" || path == "/metrics" {
			return
		}

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.Int("status", status),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.String("ip", c.ClientIP()),
			zap.Duration("latency", time.Since(start)),
			zap.String("request_id", c.GetString("request_id")),
		}
		if userID := c.GetInt64(ctxUserID); userID != 0 {
			fields = append(fields, zap.Int64("user_id", userID))
		}

		switch {
		case status >= http.StatusInternalServerError:
			zap.L().Error("HTTP", fields...)
		case status >= http.StatusBadRequest:
			zap.L().Warn("HTTP", fields...)
		default:
			zap.L().Info("HTTP", fields...)
		}
	}
}

// MetricsMiddleware 按路由模板统计请求数和耗时
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// RecoveryMiddleware 恢复中间件，防止 panic 导致服务崩溃
func RecoveryMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				zap.L().Error("PANIC",
					zap.Any("error", err),
					zap.String("path", c.Request.URL.Path),
					zap.String("request_id", c.GetString("request_id")),
					zap.Stack("stack"),
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, response.Response{
					Code:    response.CodeServerError,
					Message: "服务器内部错误",
				})
			}
		}()
		c.Next()
	}
}

// CORSMiddleware 跨域中间件
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization, X-Request-ID, Idempotency-Key")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// AuthMiddleware 校验 Bearer 令牌，并确认用户仍然存在
func AuthMiddleware(tokens TokenIssuer, users UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		if header == "" || token == "" || token == header {
			response.Unauthorized(c, "未登录或登录已过期")
			c.Abort()
			return
		}

		userID, err := tokens.Parse(token)
		if err != nil {
			response.Unauthorized(c, "未登录或登录已过期")
			c.Abort()
			return
		}

		if _, err := users.Get(c.Request.Context(), userID); err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				response.Unauthorized(c, "用户不存在，请重新登录")
			} else {
				response.Fail(c, err)
			}
			c.Abort()
			return
		}

		c.Set(ctxUserID, userID)
		c.Next()
	}
}
