package repository_test

import (
	"context"
	"testing"
	"time"

	"shop/internal/domain/model"
	infraRepo "shop/internal/infra/repository"
	repoPkg "shop/internal/repository"
	"shop/internal/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var now = time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

func seedReservation(t *testing.T, gdb *gorm.DB, productID int64, h model.Holder, qty int64, expiresAt time.Time) model.StockReservation {
	t.Helper()

	r := model.StockReservation{
		ProductID: productID,
		Quantity:  qty,
		Status:    model.ReservationReserved,
		ExpiresAt: expiresAt,
	}
	r.SetHolder(h)
	require.NoError(t, infraRepo.NewReservationGormRepository(gdb).Create(context.Background(), &r))
	return r
}

func reservationStatus(t *testing.T, gdb *gorm.DB, id int64) model.ReservationStatus {
	t.Helper()
	var r model.StockReservation
	require.NoError(t, gdb.First(&r, id).Error)
	return r.Status
}

func TestReservation_Create_RejectsInvalid(t *testing.T) {
	gdb := testutil.NewDB(t)
	repo := infraRepo.NewReservationGormRepository(gdb)

	bad := model.StockReservation{ProductID: 1, Quantity: 0, Status: model.ReservationReserved, ExpiresAt: now}
	bad.SetHolder(model.OrderHolder(1))
	assert.Error(t, repo.Create(context.Background(), &bad))

	bad.Quantity = 1
	bad.SetHolder(model.Holder{Kind: "WISHLIST", ID: 1})
	assert.Error(t, repo.Create(context.Background(), &bad))
}

func TestReservation_SumActive(t *testing.T) {
	gdb := testutil.NewDB(t)
	repo := infraRepo.NewReservationGormRepository(gdb)
	ctx := context.Background()
	p := testutil.SeedProduct(t, gdb, "A", "1.00", 10)

	seedReservation(t, gdb, p.ID, model.CartLineHolder(1), 2, now.Add(time.Minute))
	seedReservation(t, gdb, p.ID, model.OrderHolder(1), 3, now.Add(time.Minute))
	// 期限ちょうどは数えない
	seedReservation(t, gdb, p.ID, model.OrderHolder(2), 4, now)
	released := seedReservation(t, gdb, p.ID, model.OrderHolder(3), 5, now.Add(time.Minute))
	_, err := repo.TransitionByHolder(ctx, released.Holder(), model.ReservationReleased)
	require.NoError(t, err)

	total, err := repo.SumActive(ctx, p.ID, now, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)

	exclude := model.CartLineHolder(1)
	total, err = repo.SumActive(ctx, p.ID, now, &exclude)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)

	total, err = repo.SumActive(ctx, 999, now, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
}

func TestReservation_TransitionByHolder_OnlyReserved(t *testing.T) {
	gdb := testutil.NewDB(t)
	repo := infraRepo.NewReservationGormRepository(gdb)
	ctx := context.Background()
	p := testutil.SeedProduct(t, gdb, "A", "1.00", 10)
	h := model.OrderHolder(7)

	r := seedReservation(t, gdb, p.ID, h, 1, now.Add(time.Minute))

	n, err := repo.TransitionByHolder(ctx, h, model.ReservationReleased)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	// 終端状態は変えない
	n, err = repo.TransitionByHolder(ctx, h, model.ReservationConverted)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
	assert.Equal(t, model.ReservationReleased, reservationStatus(t, gdb, r.ID))

	list, err := repo.ListByHolder(ctx, h, model.ReservationReleased)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestReservation_ExpireBefore(t *testing.T) {
	gdb := testutil.NewDB(t)
	repo := infraRepo.NewReservationGormRepository(gdb)
	p := testutil.SeedProduct(t, gdb, "A", "1.00", 10)

	old := seedReservation(t, gdb, p.ID, model.CartLineHolder(1), 1, now.Add(-time.Second))
	edge := seedReservation(t, gdb, p.ID, model.CartLineHolder(2), 1, now)
	live := seedReservation(t, gdb, p.ID, model.CartLineHolder(3), 1, now.Add(time.Second))

	n, err := repo.ExpireBefore(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	assert.Equal(t, model.ReservationExpired, reservationStatus(t, gdb, old.ID))
	assert.Equal(t, model.ReservationReserved, reservationStatus(t, gdb, edge.ID))
	assert.Equal(t, model.ReservationReserved, reservationStatus(t, gdb, live.ID))
}

func TestReservation_ReassignAndConvert(t *testing.T) {
	gdb := testutil.NewDB(t)
	repo := infraRepo.NewReservationGormRepository(gdb)
	ctx := context.Background()
	p := testutil.SeedProduct(t, gdb, "A", "1.00", 10)

	line := model.CartLineHolder(1)
	order := model.OrderHolder(9)
	active := seedReservation(t, gdb, p.ID, line, 2, now.Add(time.Minute))
	expired := seedReservation(t, gdb, p.ID, line, 3, now.Add(-time.Minute))

	n, err := repo.Reassign(ctx, line, order, now, now.Add(30*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	var moved model.StockReservation
	require.NoError(t, gdb.First(&moved, active.ID).Error)
	assert.Equal(t, order, moved.Holder())
	assert.True(t, moved.ExpiresAt.Equal(now.Add(30*time.Minute)))

	var stale model.StockReservation
	require.NoError(t, gdb.First(&stale, expired.ID).Error)
	assert.Equal(t, line, stale.Holder())

	converted, err := repo.ConvertForOrder(ctx, order.ID, p.ID, now)
	require.NoError(t, err)
	assert.Equal(t, int64(2), converted)

	// 二回目も同じ合計（追加の変換はない）
	converted, err = repo.ConvertForOrder(ctx, order.ID, p.ID, now)
	require.NoError(t, err)
	assert.Equal(t, int64(2), converted)
	assert.Equal(t, model.ReservationConverted, reservationStatus(t, gdb, active.ID))
}

// =====================
// クーポン / 注文の条件付きUPDATE
// =====================

func TestCoupon_UpdateUses_CompareAndSet(t *testing.T) {
	gdb := testutil.NewDB(t)
	repo := infraRepo.NewCouponGormRepository(gdb)
	ctx := context.Background()

	c := testutil.SeedCoupon(t, gdb, model.Coupon{
		Code:          "once",
		DiscountValue: decimal.RequireFromString("5.00"),
		MaxUses:       1,
		ValidUntil:    now.Add(time.Hour),
		Active:        true,
	})

	locked, err := repo.LockByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), locked.CurrentUses)

	ok, err := repo.UpdateUses(ctx, c.ID, 0, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	// 読んだ値が古い
	ok, err = repo.UpdateUses(ctx, c.ID, 0, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.UpdateUses(ctx, c.ID, 1, 0)
	require.NoError(t, err)
	assert.True(t, ok)

	found, err := repo.FindByCode(ctx, "ONCE")
	require.NoError(t, err)
	assert.Equal(t, c.ID, found.ID)
	assert.Equal(t, int64(0), found.CurrentUses)

	_, err = repo.LockByID(ctx, c.ID+100)
	assert.ErrorIs(t, err, repoPkg.ErrNotFound)
}

func TestOrder_UpdateStatus_CompareAndSet(t *testing.T) {
	gdb := testutil.NewDB(t)
	repo := infraRepo.NewOrderGormRepository(gdb)
	ctx := context.Background()

	o := model.Order{
		UserID:      1,
		AddressID:   1,
		Status:      model.OrderStatusPending,
		Subtotal:    decimal.RequireFromString("10.00"),
		ShippingFee: decimal.RequireFromString("15.00"),
		Total:       decimal.RequireFromString("10.00"),
	}
	require.NoError(t, repo.Create(ctx, &o))

	ok, err := repo.UpdateStatus(ctx, o.ID, model.OrderStatusPending, model.OrderStatusPaid)
	require.NoError(t, err)
	assert.True(t, ok)

	// 先に変わっていたら何もしない
	ok, err = repo.UpdateStatus(ctx, o.ID, model.OrderStatusPending, model.OrderStatusCanceled)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := repo.FindByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusPaid, got.Status)
}
