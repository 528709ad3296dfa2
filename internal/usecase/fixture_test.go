package usecase_test

import (
	"context"
	"testing"
	"time"

	"shop/internal/domain/model"
	"shop/internal/infra/cache"
	"shop/internal/infra/event"
	"shop/internal/infra/metrics"
	infraRepo "shop/internal/infra/repository"
	"shop/internal/testutil"
	"shop/internal/usecase"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var baseTime = time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

// =====================
// 実DB（sqlite）で組み立てる
// =====================

type fixture struct {
	db       *gorm.DB
	clock    *testutil.FixedClock
	events   *event.Recorder
	dedup    *cache.MemoryDedup
	ledger   *usecase.StockLedger
	carts    *usecase.CartUsecase
	orders   *usecase.OrderUsecase
	coupons  *usecase.CouponUsecase
	payments *usecase.PaymentUsecase
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	gdb := testutil.NewDB(t)
	clock := testutil.NewFixedClock(baseTime)
	rec := event.NewRecorder()
	m := metrics.NewNop()
	txm := infraRepo.NewTxManagerGorm(gdb)
	dedup := cache.NewMemoryDedup(clock.Now)

	ledger := usecase.NewStockLedger(txm, clock, rec, m, nil)
	orders := usecase.NewOrderUsecase(txm, ledger, clock, model.DefaultShippingPolicy(), 30*time.Minute, rec, m, nil)

	return &fixture{
		db:       gdb,
		clock:    clock,
		events:   rec,
		dedup:    dedup,
		ledger:   ledger,
		carts:    usecase.NewCartUsecase(txm, ledger, clock, 30*time.Minute, rec, nil),
		orders:   orders,
		coupons:  usecase.NewCouponUsecase(txm, clock, nil),
		payments: usecase.NewPaymentUsecase(txm, orders, dedup, clock, rec, nil),
	}
}

func (f *fixture) available(t *testing.T, productID int64) int64 {
	t.Helper()
	out, err := f.ledger.AvailableStock(context.Background(), productID)
	require.NoError(t, err)
	return out.Available
}

func (f *fixture) stock(t *testing.T, productID int64) int64 {
	t.Helper()
	var p model.Product
	require.NoError(t, f.db.First(&p, productID).Error)
	return p.Stock
}

func (f *fixture) coupon(t *testing.T, id int64) model.Coupon {
	t.Helper()
	var c model.Coupon
	require.NoError(t, f.db.First(&c, id).Error)
	return c
}

func assertAmount(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.Equal(t, want, got.StringFixed(2))
}

func assertStatus(t *testing.T, want int, err error) {
	t.Helper()
	he, ok := usecase.AsHTTPError(err)
	require.True(t, ok, "expected HTTPError, got %v", err)
	assert.Equal(t, want, he.Status)
}

func percentCoupon(code string, pct int64, maxUses int64) model.Coupon {
	return model.Coupon{
		Code:               code,
		DiscountValue:      decimal.Zero,
		DiscountPercentage: pct,
		MaxUses:            maxUses,
		ValidUntil:         baseTime.Add(30 * 24 * time.Hour),
		Active:             true,
	}
}
