package testutil

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"shop/internal/domain/model"
	"shop/internal/domain/money"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var dbSeq atomic.Int64

// テストごとに独立したin-memory sqlite
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:testdb%d?mode=memory&cache=shared", dbSeq.Add(1))
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:  gormlogger.Default.LogMode(gormlogger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	//トランザクションが直列になる
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, gdb.AutoMigrate(model.All()...))
	return gdb
}

// 固定時刻（Advanceで進める）
type FixedClock struct {
	t atomic.Pointer[time.Time]
}

func NewFixedClock(t time.Time) *FixedClock {
	c := &FixedClock{}
	c.Set(t)
	return c
}

func (c *FixedClock) Now() time.Time {
	return *c.t.Load()
}

func (c *FixedClock) Set(t time.Time) {
	u := t.UTC()
	c.t.Store(&u)
}

func (c *FixedClock) Advance(d time.Duration) {
	c.Set(c.Now().Add(d))
}

func SeedProduct(t *testing.T, gdb *gorm.DB, name string, price string, stock int64) model.Product {
	t.Helper()

	p := model.Product{
		Name:     name,
		Price:    money.Round(decimal.RequireFromString(price)),
		Stock:    stock,
		IsActive: true,
	}
	require.NoError(t, gdb.WithContext(context.Background()).Create(&p).Error)
	return p
}

func SeedCoupon(t *testing.T, gdb *gorm.DB, c model.Coupon) model.Coupon {
	t.Helper()

	c.Code = model.NormalizeCouponCode(c.Code)
	require.NoError(t, gdb.WithContext(context.Background()).Create(&c).Error)
	return c
}

func SeedAddress(t *testing.T, gdb *gorm.DB, userID int64) model.Address {
	t.Helper()

	a := model.Address{
		UserID:     userID,
		Recipient:  "Test User",
		PostalCode: "100-0001",
		City:       "Tokyo",
		Line1:      "1-1",
	}
	require.NoError(t, gdb.WithContext(context.Background()).Create(&a).Error)
	return a
}
