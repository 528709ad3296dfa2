package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"shop/internal/handler"
	"shop/internal/infra/metrics"
	"shop/internal/middleware"
	"shop/internal/validator"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

type Options struct {
	JWTSecret      string
	CallbackSecret string
	Metrics        *metrics.Metrics
	Gatherer       prometheus.Gatherer
	Logger         *zap.Logger
}

type Handlers struct {
	Stock      *handler.StockHandler
	Cart       *handler.CartHandler
	Order      *handler.OrderHandler
	AdminOrder *handler.AdminOrderHandler
	Coupon     *handler.CouponHandler
	Payment    *handler.PaymentHandler
	Address    *handler.AddressHandler
}

// ミドルウェアとルートを載せたechoを作る
func New(opts Options, h Handlers) *echo.Echo {
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewNop()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = validator.New()

	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(opts.Logger))
	e.Use(opts.Metrics.EchoMiddleware())

	RegisterRoutes(e, opts, h)
	return e
}

// ctxが終わったらgraceful shutdown
func Start(ctx context.Context, e *echo.Echo, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
