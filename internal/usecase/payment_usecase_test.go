package usecase_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"shop/internal/domain/model"
	"shop/internal/infra/event"
	"shop/internal/testutil"
	"shop/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 注文＋支払いを作る
func (f *fixture) pendingPayment(t *testing.T, qty int64) (usecase.OrderOutput, usecase.PaymentOutput, model.Product) {
	t.Helper()
	addr := testutil.SeedAddress(t, f.db, userID)
	p := testutil.SeedProduct(t, f.db, "A", "40.00", 5)
	order := f.placeDirect(t, addr.ID, usecase.OrderItemInput{ProductID: p.ID, Quantity: qty})

	pay, err := f.payments.Create(context.Background(), userID, order.ID, usecase.CreatePaymentInput{Method: "pix"})
	require.NoError(t, err)
	return order, pay, p
}

func TestPayment_Create(t *testing.T) {
	f := newFixture(t)
	order, pay, _ := f.pendingPayment(t, 2)

	assert.Equal(t, string(model.PaymentMethodPix), pay.Method)
	assert.Equal(t, string(model.PaymentStatusPending), pay.Status)
	assert.NotEmpty(t, pay.TransactionID)
	//80.00 + 送料15.00
	assertAmount(t, "95.00", pay.Amount)
	assertAmount(t, order.GrandTotal.StringFixed(2), pay.Amount)
}

func TestPayment_Create_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order, _, _ := f.pendingPayment(t, 1)

	_, err := f.payments.Create(ctx, userID, order.ID, usecase.CreatePaymentInput{Method: "CASH"})
	assertStatus(t, http.StatusBadRequest, err)

	_, err = f.payments.Create(ctx, userID+1, order.ID, usecase.CreatePaymentInput{Method: "PIX"})
	assert.True(t, errors.Is(err, model.ErrOrderNotFound))

	_, err = f.orders.MarkPaid(ctx, order.ID)
	require.NoError(t, err)
	_, err = f.payments.Create(ctx, userID, order.ID, usecase.CreatePaymentInput{Method: "PIX"})
	assertStatus(t, http.StatusConflict, err)
}

// PAIDの通知で注文もPAIDになり在庫が確定する。同じevent_idの再送は何もしない
func TestPayment_HandleCallback_PaidDeduplicated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order, pay, p := f.pendingPayment(t, 2)

	in := usecase.PaymentCallbackInput{EventID: "evt-1", TransactionID: pay.TransactionID, Status: "PAID"}
	out, err := f.payments.HandleCallback(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, string(model.PaymentStatusPaid), out.Status)
	assert.NotNil(t, out.PaidAt)
	assert.False(t, out.Duplicate)

	detail, err := f.orders.GetMyOrderDetail(ctx, userID, order.ID)
	require.NoError(t, err)
	assert.Equal(t, string(model.OrderStatusPaid), detail.Status)
	assert.Equal(t, int64(3), f.stock(t, p.ID))

	again, err := f.payments.HandleCallback(ctx, in)
	require.NoError(t, err)
	assert.True(t, again.Duplicate)
	assert.Equal(t, string(model.PaymentStatusPaid), again.Status)
	assert.Equal(t, int64(3), f.stock(t, p.ID))

	assert.Len(t, f.events.OfType(event.TypePaymentStatusChanged), 1)
}

// 別のevent_idで同じ状態が来ても変化なし
func TestPayment_HandleCallback_SameStatusNoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, pay, p := f.pendingPayment(t, 1)

	_, err := f.payments.HandleCallback(ctx, usecase.PaymentCallbackInput{EventID: "evt-1", TransactionID: pay.TransactionID, Status: "PAID"})
	require.NoError(t, err)
	_, err = f.payments.HandleCallback(ctx, usecase.PaymentCallbackInput{EventID: "evt-2", TransactionID: pay.TransactionID, Status: "PAID"})
	require.NoError(t, err)

	assert.Equal(t, int64(4), f.stock(t, p.ID))
}

// FAILEDは注文をPENDINGのままにする
func TestPayment_HandleCallback_FailedKeepsOrderPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order, pay, p := f.pendingPayment(t, 1)

	out, err := f.payments.HandleCallback(ctx, usecase.PaymentCallbackInput{EventID: "evt-f", TransactionID: pay.TransactionID, Status: "failed"})
	require.NoError(t, err)
	assert.Equal(t, string(model.PaymentStatusFailed), out.Status)

	detail, err := f.orders.GetMyOrderDetail(ctx, userID, order.ID)
	require.NoError(t, err)
	assert.Equal(t, string(model.OrderStatusPending), detail.Status)
	assert.Equal(t, int64(4), f.available(t, p.ID))
}

// PAID後のREFUNDEDで注文は取消（確定在庫は戻さない）
func TestPayment_HandleCallback_RefundCancelsOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order, pay, p := f.pendingPayment(t, 2)

	_, err := f.payments.HandleCallback(ctx, usecase.PaymentCallbackInput{EventID: "evt-1", TransactionID: pay.TransactionID, Status: "PAID"})
	require.NoError(t, err)
	out, err := f.payments.HandleCallback(ctx, usecase.PaymentCallbackInput{EventID: "evt-2", TransactionID: pay.TransactionID, Status: "REFUNDED"})
	require.NoError(t, err)
	assert.Equal(t, string(model.PaymentStatusRefunded), out.Status)

	detail, err := f.orders.GetMyOrderDetail(ctx, userID, order.ID)
	require.NoError(t, err)
	assert.Equal(t, string(model.OrderStatusCanceled), detail.Status)
	assert.Equal(t, int64(3), f.stock(t, p.ID))
}

// 失敗した通知は同じevent_idで再送できる
func TestPayment_HandleCallback_ErrorForgetsEvent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, pay, _ := f.pendingPayment(t, 1)

	_, err := f.payments.HandleCallback(ctx, usecase.PaymentCallbackInput{EventID: "evt-x", TransactionID: "missing", Status: "PAID"})
	assert.True(t, errors.Is(err, model.ErrPaymentNotFound))

	first, err := f.dedup.FirstSeen(ctx, "payment:callback:evt-x", 0)
	require.NoError(t, err)
	assert.True(t, first)

	_, err = f.payments.HandleCallback(ctx, usecase.PaymentCallbackInput{EventID: "", TransactionID: pay.TransactionID, Status: "PAID"})
	assertStatus(t, http.StatusBadRequest, err)

	_, err = f.payments.HandleCallback(ctx, usecase.PaymentCallbackInput{EventID: "evt-y", TransactionID: pay.TransactionID, Status: "PENDING"})
	assertStatus(t, http.StatusBadRequest, err)
}
