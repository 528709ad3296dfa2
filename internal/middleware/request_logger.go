package middleware

import (
	"time"

	"shop/internal/logger"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const RequestIDHeader = "X-Request-ID"

// request_id付きのloggerをctxに入れて、終わったらアクセスログを出す
func RequestLogger(base *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			reqID := c.Request().Header.Get(RequestIDHeader)
			if reqID == "" {
				reqID = uuid.NewString()
			}
			c.Response().Header().Set(RequestIDHeader, reqID)

			ctx := logger.WithRequestID(c.Request().Context(), base, reqID)
			c.SetRequest(c.Request().WithContext(ctx))

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			status := c.Response().Status
			fields := []zap.Field{
				zap.String("method", c.Request().Method),
				zap.String("path", c.Path()),
				zap.Int("status", status),
				zap.Duration("latency", time.Since(start)),
			}
			l := logger.FromContext(ctx)
			switch {
			case status >= 500:
				l.Error("request", fields...)
			case status >= 400:
				l.Warn("request", fields...)
			default:
				l.Info("request", fields...)
			}
			return nil
		}
	}
}
