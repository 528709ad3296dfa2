package usecase_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"shop/internal/domain/model"
	"shop/internal/testutil"
	"shop/internal/usecase"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoupon_Create(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	out, err := f.coupons.Create(ctx, 1, usecase.CreateCouponInput{
		Code:          " welcome ",
		DiscountValue: "20.00",
		MaxUses:       10,
		ValidUntil:    baseTime.Add(24 * time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, "WELCOME", out.Code)
	assert.Equal(t, "20.00", out.DiscountDisplay)
	assert.True(t, out.Active)

	var audits int64
	require.NoError(t, f.db.Model(&model.AuditLog{}).
		Where("action = ? AND resource_id = ?", model.AuditActionCreateCoupon, out.ID).Count(&audits).Error)
	assert.Equal(t, int64(1), audits)

	//コード重複
	_, err = f.coupons.Create(ctx, 1, usecase.CreateCouponInput{
		Code:               "WELCOME",
		DiscountPercentage: 5,
		MaxUses:            1,
		ValidUntil:         baseTime.Add(24 * time.Hour),
	})
	assertStatus(t, http.StatusConflict, err)
}

func TestCoupon_Create_Invalid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := map[string]usecase.CreateCouponInput{
		"both modes":   {Code: "BOTH", DiscountValue: "5.00", DiscountPercentage: 5, MaxUses: 1, ValidUntil: baseTime.Add(time.Hour)},
		"no mode":      {Code: "NONE", MaxUses: 1, ValidUntil: baseTime.Add(time.Hour)},
		"short code":   {Code: "AB", DiscountPercentage: 5, MaxUses: 1, ValidUntil: baseTime.Add(time.Hour)},
		"past":         {Code: "PAST", DiscountPercentage: 5, MaxUses: 1, ValidUntil: baseTime.Add(-time.Hour)},
		"zero max":     {Code: "ZERO", DiscountPercentage: 5, MaxUses: 0, ValidUntil: baseTime.Add(time.Hour)},
		"over percent": {Code: "OVER", DiscountPercentage: 101, MaxUses: 1, ValidUntil: baseTime.Add(time.Hour)},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.coupons.Create(ctx, 1, in)
			assert.True(t, errors.Is(err, model.ErrCouponInvalid))
			assertStatus(t, http.StatusBadRequest, err)
		})
	}
}

func TestCoupon_Validate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	testutil.SeedCoupon(t, f.db, percentCoupon("TEN", 10, 5))

	amount := decimal.RequireFromString("135.00")
	out, err := f.coupons.Validate(ctx, "ten", &amount)
	require.NoError(t, err)
	assert.True(t, out.Valid)
	assert.True(t, out.Usable)
	assert.Equal(t, "10%", out.DiscountDisplay)
	require.NotNil(t, out.FinalAmount)
	assertAmount(t, "13.50", *out.Discount)
	assertAmount(t, "121.50", *out.FinalAmount)

	_, err = f.coupons.Validate(ctx, "nope", nil)
	assert.True(t, errors.Is(err, model.ErrCouponNotFound))
}

// 期限切れは見つかるが使えない（割引0）
func TestCoupon_Validate_Expired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := percentCoupon("GONE", 10, 5)
	c.ValidUntil = baseTime.Add(-time.Minute)
	testutil.SeedCoupon(t, f.db, c)

	amount := decimal.RequireFromString("50.00")
	out, err := f.coupons.Validate(ctx, "gone", &amount)
	require.NoError(t, err)
	assert.False(t, out.Valid)
	assert.False(t, out.Usable)
	assertAmount(t, "0.00", *out.Discount)
	assertAmount(t, "50.00", *out.FinalAmount)
}

func TestCoupon_ListActive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	testutil.SeedCoupon(t, f.db, percentCoupon("LIVE", 10, 5))

	inactive := percentCoupon("OFF", 10, 5)
	inactive.Active = false
	testutil.SeedCoupon(t, f.db, inactive)

	used := percentCoupon("USED", 10, 1)
	used.CurrentUses = 1
	testutil.SeedCoupon(t, f.db, used)

	expired := percentCoupon("PAST", 10, 5)
	expired.ValidUntil = baseTime.Add(-time.Hour)
	testutil.SeedCoupon(t, f.db, expired)

	list, err := f.coupons.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "LIVE", list[0].Code)
}
