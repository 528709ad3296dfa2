package usecase

import (
	"errors"
	"fmt"
	"net/http"

	"shop/internal/domain/model"
	repo "shop/internal/repository"
)

// handlerでステータスに変換するエラー
// Errに元のエラーを持つので errors.Is(err, model.ErrXxx) が通る
type HTTPError struct {
	Status  int
	Message string
	Err     error
}

func (e *HTTPError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%d: %s: %v", e.Status, e.Message, e.Err)
	}
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

func NewHTTPError(status int, message string) error {
	return &HTTPError{
		Status:  status,
		Message: message,
	}
}

func WrapHTTPError(status int, message string, err error) error {
	return &HTTPError{
		Status:  status,
		Message: message,
		Err:     err,
	}
}

func AsHTTPError(err error) (*HTTPError, bool) {
	var he *HTTPError
	ok := errors.As(err, &he)
	return he, ok
}

// 業務エラーをHTTPErrorへ（HTTPErrorはそのまま）
func toHTTPError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := AsHTTPError(err); ok {
		return err
	}

	switch {
	case errors.Is(err, model.ErrInsufficientStock):
		return WrapHTTPError(http.StatusConflict, "insufficient stock", err)
	case errors.Is(err, model.ErrInvalidStatusTransition):
		return WrapHTTPError(http.StatusConflict, "invalid status transition", err)
	case errors.Is(err, model.ErrProductNotFound):
		return WrapHTTPError(http.StatusNotFound, "product not found", err)
	case errors.Is(err, model.ErrOrderNotFound):
		return WrapHTTPError(http.StatusNotFound, "order not found", err)
	case errors.Is(err, model.ErrPaymentNotFound):
		return WrapHTTPError(http.StatusNotFound, "payment not found", err)
	case errors.Is(err, model.ErrCartLineNotFound):
		return WrapHTTPError(http.StatusNotFound, "cart line not found", err)
	case errors.Is(err, model.ErrCouponNotFound):
		return WrapHTTPError(http.StatusNotFound, "coupon not found", err)
	case errors.Is(err, model.ErrCouponExhausted):
		return WrapHTTPError(http.StatusConflict, "coupon exhausted", err)
	case errors.Is(err, model.ErrCouponInvalid):
		return WrapHTTPError(http.StatusUnprocessableEntity, "coupon invalid", err)
	case errors.Is(err, model.ErrEmptyOrder):
		return WrapHTTPError(http.StatusBadRequest, "empty order", err)
	case errors.Is(err, repo.ErrNotFound):
		return WrapHTTPError(http.StatusNotFound, "not found", err)
	}
	return WrapHTTPError(http.StatusInternalServerError, "db error", err)
}

// repoのnot foundを業務エラーに置き換える
func notFoundAs(err error, target error) error {
	if errors.Is(err, repo.ErrNotFound) {
		return target
	}
	return err
}
