package response

import (
	"net/http"

	"unirun/pkg/apperr"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	CodeSuccess      = 0
	CodeParamError   = http.StatusBadRequest
	CodeUnauthorized = http.StatusUnauthorized
	CodeForbidden    = http.StatusForbidden
	CodeNotFound     = http.StatusNotFound
	CodeConflict     = http.StatusConflict
	CodeServerError  = http.StatusInternalServerError
)

// Response 统一响应结构
// 出错时 code 与 HTTP 状态码一致，前端沿用状态码判断错误类型
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

func SuccessWithMessage(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: message,
		Data:    data,
	})
}

func Created(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Code:    CodeSuccess,
		Message: message,
		Data:    data,
	})
}

func Error(c *gin.Context, code int, message string) {
	c.JSON(code, Response{
		Code:    code,
		Message: message,
	})
}

func ParamError(c *gin.Context, message string) {
	Error(c, CodeParamError, message)
}

func Unauthorized(c *gin.Context, message string) {
	Error(c, CodeUnauthorized, message)
}

func ServerError(c *gin.Context, message string) {
	Error(c, CodeServerError, message)
}

// StatusOf 错误类别到 HTTP 状态码的映射
func StatusOf(kind apperr.Kind) int {
	switch kind {
	case apperr.KindInvalidInput, apperr.KindInvalidTransition:
		return http.StatusBadRequest
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Fail 根据业务错误输出响应，内部错误只记录日志不透出细节
func Fail(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.KindInternal {
		zap.L().Error("请求处理失败",
			zap.String("path", c.FullPath()),
			zap.String("request_id", c.GetString("request_id")),
			zap.Error(err),
		)
	}
	Error(c, StatusOf(kind), apperr.MessageOf(err))
}
