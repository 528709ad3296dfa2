package server

import (
	"net/http"

	"shop/internal/infra/metrics"
	"shop/internal/middleware"

	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo, opts Options, h Handlers) {
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	if opts.Gatherer != nil {
		e.GET("/metrics", metrics.Handler(opts.Gatherer))
	}

	//認証なし
	public := e.Group("")

	//ログインユーザー
	user := e.Group("")
	user.Use(middleware.AuthJWT(opts.JWTSecret))

	//管理者
	admin := e.Group("/admin")
	admin.Use(middleware.AuthJWT(opts.JWTSecret))
	admin.Use(middleware.AdminRoleGuard())

	//決済代行
	callback := e.Group("")
	callback.Use(middleware.CallbackSecret(opts.CallbackSecret))

	if h.Stock != nil {
		h.Stock.RegisterRoutes(public, admin)
	}
	if h.Coupon != nil {
		h.Coupon.RegisterRoutes(public, admin)
	}
	if h.Cart != nil {
		h.Cart.RegisterRoutes(user, admin)
	}
	if h.Order != nil {
		h.Order.RegisterRoutes(user)
	}
	if h.AdminOrder != nil {
		h.AdminOrder.RegisterRoutes(admin)
	}
	if h.Payment != nil {
		h.Payment.RegisterRoutes(user, callback)
	}
	if h.Address != nil {
		h.Address.RegisterRoutes(user)
	}
}
