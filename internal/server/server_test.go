package server_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"shop/internal/domain/model"
	"shop/internal/handler"
	"shop/internal/infra/cache"
	"shop/internal/infra/event"
	"shop/internal/infra/metrics"
	infraRepo "shop/internal/infra/repository"
	"shop/internal/middleware"
	"shop/internal/server"
	"shop/internal/testutil"
	"shop/internal/usecase"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const (
	jwtSecret      = "server-test-secret"
	callbackSecret = "callback-secret"
	userID         = int64(7)
	adminID        = int64(1)
)

// =====================
// 組み立て
// =====================

type app struct {
	e  *echo.Echo
	db *gorm.DB
}

func newApp(t *testing.T) *app {
	t.Helper()

	gdb := testutil.NewDB(t)
	clock := testutil.NewFixedClock(time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC))
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	rec := event.NewRecorder()
	txm := infraRepo.NewTxManagerGorm(gdb)

	ledger := usecase.NewStockLedger(txm, clock, rec, m, nil)
	orders := usecase.NewOrderUsecase(txm, ledger, clock, model.DefaultShippingPolicy(), 30*time.Minute, rec, m, nil)
	carts := usecase.NewCartUsecase(txm, ledger, clock, 30*time.Minute, rec, nil)
	coupons := usecase.NewCouponUsecase(txm, clock, nil)
	payments := usecase.NewPaymentUsecase(txm, orders, cache.NewMemoryDedup(clock.Now), clock, rec, nil)
	addresses := usecase.NewAddressUsecase(infraRepo.NewAddressGormRepository(gdb))

	e := server.New(server.Options{
		JWTSecret:      jwtSecret,
		CallbackSecret: callbackSecret,
		Metrics:        m,
		Gatherer:       reg,
	}, server.Handlers{
		Stock:      handler.NewStockHandler(ledger),
		Cart:       handler.NewCartHandler(carts),
		Order:      handler.NewOrderHandler(orders),
		AdminOrder: handler.NewAdminOrderHandler(orders),
		Coupon:     handler.NewCouponHandler(coupons),
		Payment:    handler.NewPaymentHandler(payments),
		Address:    handler.NewAddressHandler(addresses),
	})
	return &app{e: e, db: gdb}
}

func token(t *testing.T, sub int64, role string) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  sub,
		"role": role,
		"exp":  9999999999,
	}).SignedString([]byte(jwtSecret))
	require.NoError(t, err)
	return s
}

func (a *app) do(t *testing.T, method, path string, body any, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func asUser(t *testing.T) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token(t, userID, middleware.RoleUser)}
}

func asAdmin(t *testing.T) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token(t, adminID, middleware.RoleAdmin)}
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func assertMoney(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.Equal(t, want, got.StringFixed(2))
}

// =====================
// 公開ルート
// =====================

func TestHealthzAndMetrics(t *testing.T) {
	a := newApp(t)

	rec := a.do(t, http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = a.do(t, http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "shop_http_requests_total")
}

func TestStock_PublicAndAdminAdjust(t *testing.T) {
	a := newApp(t)
	p := testutil.SeedProduct(t, a.db, "Mug", "12.50", 4)
	path := fmt.Sprintf("/products/%d/stock", p.ID)

	rec := a.do(t, http.MethodGet, path, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(4), decode[usecase.StockOutput](t, rec).Available)

	rec = a.do(t, http.MethodGet, "/products/999/stock", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	body := map[string]any{"stock": 9, "reason": "recount"}
	inv := fmt.Sprintf("/admin/inventory/%d", p.ID)

	//USERはadminに入れない
	rec = a.do(t, http.MethodPut, inv, body, asUser(t))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.do(t, http.MethodPut, inv, body, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = a.do(t, http.MethodPut, inv, body, asAdmin(t))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = a.do(t, http.MethodGet, path, nil, nil)
	assert.Equal(t, int64(9), decode[usecase.StockOutput](t, rec).Available)

	//reason無しはvalidation error
	rec = a.do(t, http.MethodPut, inv, map[string]any{"stock": 1}, asAdmin(t))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation error", decode[handler.ErrorResponse](t, rec).Error)
}

// =====================
// カート -> 注文 -> 決済
// =====================

func TestCartCheckoutPaymentFlow(t *testing.T) {
	a := newApp(t)
	p := testutil.SeedProduct(t, a.db, "Lamp", "100.00", 3)
	addr := testutil.SeedAddress(t, a.db, userID)

	// 認証なし
	rec := a.do(t, http.MethodGet, "/cart", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// 数量0はvalidation error
	rec = a.do(t, http.MethodPut, "/cart/items", map[string]any{"product_id": p.ID, "quantity": 0}, asUser(t))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// 在庫以上は409
	rec = a.do(t, http.MethodPut, "/cart/items", map[string]any{"product_id": p.ID, "quantity": 4}, asUser(t))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "insufficient stock", decode[handler.ErrorResponse](t, rec).Error)

	rec = a.do(t, http.MethodPut, "/cart/items", map[string]any{"product_id": p.ID, "quantity": 2}, asUser(t))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	cart := decode[usecase.CartOutput](t, rec)
	require.Len(t, cart.Lines, 1)
	assertMoney(t, "200.00", cart.Total)

	rec = a.do(t, http.MethodGet, fmt.Sprintf("/products/%d/stock", p.ID), nil, nil)
	assert.Equal(t, int64(1), decode[usecase.StockOutput](t, rec).Available)

	// 二重送信防止キーが無ければ400
	rec = a.do(t, http.MethodPost, "/orders/checkout", map[string]any{"address_id": addr.ID}, asUser(t))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	h := asUser(t)
	h[handler.IdempotencyKeyHeader] = "checkout-1"
	rec = a.do(t, http.MethodPost, "/orders/checkout", map[string]any{"address_id": addr.ID}, h)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	order := decode[usecase.OrderOutput](t, rec)
	assert.Equal(t, string(model.OrderStatusPending), order.Status)
	assertMoney(t, "200.00", order.Subtotal)
	assertMoney(t, "15.00", order.ShippingFee)
	assertMoney(t, "215.00", order.GrandTotal)

	// 同じキーなら同じ注文
	rec = a.do(t, http.MethodPost, "/orders/checkout", map[string]any{"address_id": addr.ID}, h)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, order.ID, decode[usecase.OrderOutput](t, rec).ID)

	// 決済
	rec = a.do(t, http.MethodPost, fmt.Sprintf("/orders/%d/payments", order.ID), map[string]any{"method": "PIX"}, asUser(t))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	pay := decode[usecase.PaymentOutput](t, rec)
	assertMoney(t, "215.00", pay.Amount)
	require.NotEmpty(t, pay.TransactionID)

	cb := map[string]any{"event_id": "evt-1", "transaction_id": pay.TransactionID, "status": "PAID"}

	rec = a.do(t, http.MethodPost, "/payments/callback", cb, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	secretHeader := map[string]string{middleware.CallbackSecretHeader: callbackSecret}
	rec = a.do(t, http.MethodPost, "/payments/callback", cb, secretHeader)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, string(model.PaymentStatusPaid), decode[usecase.PaymentOutput](t, rec).Status)

	// 再送は重複扱い
	rec = a.do(t, http.MethodPost, "/payments/callback", cb, secretHeader)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[usecase.PaymentOutput](t, rec).Duplicate)

	rec = a.do(t, http.MethodGet, fmt.Sprintf("/orders/%d", order.ID), nil, asUser(t))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, string(model.OrderStatusPaid), decode[usecase.OrderOutput](t, rec).Status)

	// 売上に変わったので在庫は1、引当なし
	rec = a.do(t, http.MethodGet, fmt.Sprintf("/products/%d/stock", p.ID), nil, nil)
	st := decode[usecase.StockOutput](t, rec)
	assert.Equal(t, int64(1), st.Stock)
	assert.Equal(t, int64(0), st.Reserved)

	// 管理者が出荷へ進める
	rec = a.do(t, http.MethodPut, fmt.Sprintf("/admin/orders/%d/status", order.ID), map[string]any{"status": "PROCESSING"}, asAdmin(t))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = a.do(t, http.MethodPut, fmt.Sprintf("/admin/orders/%d/status", order.ID), map[string]any{"status": "PENDING"}, asAdmin(t))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestPlaceDirectAndCancel(t *testing.T) {
	a := newApp(t)
	p := testutil.SeedProduct(t, a.db, "Desk", "250.01", 5)
	addr := testutil.SeedAddress(t, a.db, userID)

	body := map[string]any{
		"address_id": addr.ID,
		"items": []map[string]any{
			{"product_id": p.ID, "quantity": 1},
			{"product_id": p.ID, "quantity": 1},
		},
	}
	rec := a.do(t, http.MethodPost, "/orders", body, asUser(t))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	order := decode[usecase.OrderOutput](t, rec)
	require.Len(t, order.Items, 1)
	assertMoney(t, "500.02", order.Subtotal)
	assertMoney(t, "0.00", order.ShippingFee)

	rec = a.do(t, http.MethodPost, "/orders", map[string]any{"address_id": addr.ID, "items": []any{}}, asUser(t))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// 他人の注文は見えない
	other := map[string]string{"Authorization": "Bearer " + token(t, 99, middleware.RoleUser)}
	rec = a.do(t, http.MethodGet, fmt.Sprintf("/orders/%d", order.ID), nil, other)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.do(t, http.MethodPost, fmt.Sprintf("/orders/%d/cancel", order.ID), nil, asUser(t))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, string(model.OrderStatusCanceled), decode[usecase.OrderOutput](t, rec).Status)

	rec = a.do(t, http.MethodGet, fmt.Sprintf("/products/%d/stock", p.ID), nil, nil)
	assert.Equal(t, int64(5), decode[usecase.StockOutput](t, rec).Available)

	rec = a.do(t, http.MethodGet, "/orders", nil, asUser(t))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `"status":"CANCELED"`))
}

// =====================
// クーポン
// =====================

func TestCoupons(t *testing.T) {
	a := newApp(t)

	create := map[string]any{
		"code":                "SAVE10",
		"discount_percentage": 10,
		"max_uses":            5,
		"valid_until":         "2026-02-01T00:00:00Z",
	}
	rec := a.do(t, http.MethodPost, "/admin/coupons", create, asUser(t))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.do(t, http.MethodPost, "/admin/coupons", create, asAdmin(t))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = a.do(t, http.MethodPost, "/admin/coupons", create, asAdmin(t))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = a.do(t, http.MethodPost, "/admin/coupons", map[string]any{"code": "!!", "max_uses": 1, "valid_until": "2026-02-01T00:00:00Z"}, asAdmin(t))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, http.MethodPost, "/coupons/validate", map[string]any{"code": "save10", "amount": "135.00"}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	v := decode[usecase.ValidateCouponOutput](t, rec)
	assert.True(t, v.Usable)
	require.NotNil(t, v.FinalAmount)
	assertMoney(t, "121.50", *v.FinalAmount)

	rec = a.do(t, http.MethodGet, "/coupons/active", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]usecase.CouponOutput](t, rec), 1)
}
