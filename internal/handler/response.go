package handler

import (
	"net/http"
	"strconv"

	"shop/internal/logger"
	"shop/internal/middleware"
	"shop/internal/usecase"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type SuccessResponse struct {
	Message string `json:"message"`
}

func writeError(c echo.Context, err error) error {
	if err == nil {
		return nil
	}
	if he, ok := usecase.AsHTTPError(err); ok {
		if he.Status >= http.StatusInternalServerError {
			logger.FromContext(c.Request().Context()).Error("request failed", zap.Error(err))
		}
		return c.JSON(he.Status, ErrorResponse{Error: he.Message})
	}

	//500
	logger.FromContext(c.Request().Context()).Error("request failed", zap.Error(err))
	return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
}

// bind + validateタグの検証
func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return usecase.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if err := c.Validate(req); err != nil {
		return usecase.WrapHTTPError(http.StatusBadRequest, "validation error", err)
	}
	return nil
}

func getUserIDFromContext(c echo.Context) (int64, bool) {
	id, ok := c.Get(middleware.CtxUserIDKey).(int64)
	if !ok || id <= 0 {
		return 0, false
	}
	return id, true
}

func parseIDParam(c echo.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
