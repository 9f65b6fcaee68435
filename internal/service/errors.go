package service

import (
	"errors"

	"unirun/internal/metrics"
	"unirun/internal/repository"
	"unirun/pkg/apperr"
)

var (
	errOrderNotFound   = apperr.NotFound("订单不存在")
	errUserNotFound    = apperr.NotFound("用户不存在")
	errPointsNotEnough = apperr.InvalidTransition("积分不足")
	errStatusChanged   = apperr.InvalidTransition("订单状态已变化，请刷新后重试")
)

// translate 把仓储层错误转换为业务错误，未识别的错误一律视为内部错误
func translate(err error) error {
	if err == nil {
		return nil
	}

	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}

	switch {
	case errors.Is(err, repository.ErrOrderNotFound):
		return errOrderNotFound
	case errors.Is(err, repository.ErrUserNotFound):
		return errUserNotFound
	case errors.Is(err, repository.ErrPointsNotEnough):
		return errPointsNotEnough
	case errors.Is(err, repository.ErrOrderStatusInvalid):
		return errStatusChanged
	case errors.Is(err, repository.ErrStudentIDExists):
		return apperr.Conflict("该学号已注册")
	case errors.Is(err, repository.ErrDuplicateReview):
		return apperr.Conflict("您已评价过该订单")
	}
	return apperr.Internal(err)
}

// fail 转换错误并计数
func fail(operation string, err error) error {
	err = translate(err)
	metrics.OperationErrorsTotal.WithLabelValues(operation, apperr.KindOf(err).String()).Inc()
	return err
}
