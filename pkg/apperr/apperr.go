package apperr

import (
	"errors"
	"fmt"
)

// Kind 错误类别，决定返回给调用方的 HTTP 状态码
type Kind int

const (
	KindInternal Kind = iota
	KindInvalidInput
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindInvalidTransition
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindInvalidTransition:
		return "invalid_transition"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Error 业务错误
// Message 面向用户，Err 保存内部原因（只写日志，不返回给前端）
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is 同类别的错误视为相等，便于 errors.Is(err, apperr.ErrForbidden)
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrInternal          = &Error{Kind: KindInternal, Message: "服务器内部错误"}
	ErrInvalidInput      = &Error{Kind: KindInvalidInput, Message: "参数错误"}
	ErrUnauthorized      = &Error{Kind: KindUnauthorized, Message: "未登录或登录已过期"}
	ErrForbidden         = &Error{Kind: KindForbidden, Message: "无权操作"}
	ErrNotFound          = &Error{Kind: KindNotFound, Message: "资源不存在"}
	ErrInvalidTransition = &Error{Kind: KindInvalidTransition, Message: "当前状态不允许该操作"}
	ErrConflict          = &Error{Kind: KindConflict, Message: "资源冲突"}
)

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func InvalidInput(message string) *Error      { return New(KindInvalidInput, message) }
func Unauthorized(message string) *Error      { return New(KindUnauthorized, message) }
func Forbidden(message string) *Error         { return New(KindForbidden, message) }
func NotFound(message string) *Error          { return New(KindNotFound, message) }
func InvalidTransition(message string) *Error { return New(KindInvalidTransition, message) }
func Conflict(message string) *Error          { return New(KindConflict, message) }

// Internal 包装未预期的错误，对外只暴露通用提示
func Internal(err error) *Error {
	return Wrap(KindInternal, ErrInternal.Message, err)
}

// KindOf 返回错误类别，非 *Error 一律视为内部错误
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// MessageOf 返回可以展示给用户的文案
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal {
		return e.Message
	}
	return ErrInternal.Message
}
