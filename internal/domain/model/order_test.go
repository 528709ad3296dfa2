package model_test

import (
	"errors"
	"testing"

	"shop/internal/domain/model"

	"github.com/stretchr/testify/assert"
)

func TestOrderTransitions_HappyPath(t *testing.T) {
	o := model.Order{Status: model.OrderStatusPending}
	for _, next := range []model.OrderStatus{
		model.OrderStatusPaid,
		model.OrderStatusProcessing,
		model.OrderStatusShipped,
		model.OrderStatusDelivered,
	} {
		assert.NoError(t, o.CanTransitionTo(next))
		o.Status = next
	}
	assert.True(t, model.OrderTransitions.IsTerminal(o.Status))
}

func TestOrderTransitions_SkipFails(t *testing.T) {
	o := model.Order{Status: model.OrderStatusPending}
	err := o.CanTransitionTo(model.OrderStatusDelivered)
	assert.True(t, errors.Is(err, model.ErrInvalidStatusTransition))
}

func TestOrderTransitions_Cancel(t *testing.T) {
	for _, from := range []model.OrderStatus{
		model.OrderStatusPending,
		model.OrderStatusPaid,
		model.OrderStatusProcessing,
	} {
		assert.NoError(t, model.Order{Status: from}.CanTransitionTo(model.OrderStatusCanceled), from)
	}
	for _, from := range []model.OrderStatus{
		model.OrderStatusShipped,
		model.OrderStatusDelivered,
		model.OrderStatusCanceled,
	} {
		assert.Error(t, model.Order{Status: from}.CanTransitionTo(model.OrderStatusCanceled), from)
	}
}

func TestPaymentTransitions(t *testing.T) {
	assert.NoError(t, model.Payment{Status: model.PaymentStatusPending}.CanTransitionTo(model.PaymentStatusPaid))
	assert.NoError(t, model.Payment{Status: model.PaymentStatusPending}.CanTransitionTo(model.PaymentStatusFailed))
	assert.NoError(t, model.Payment{Status: model.PaymentStatusPaid}.CanTransitionTo(model.PaymentStatusRefunded))

	err := model.Payment{Status: model.PaymentStatusFailed}.CanTransitionTo(model.PaymentStatusPaid)
	assert.True(t, errors.Is(err, model.ErrInvalidStatusTransition))
}

func TestOrder_GrandTotal(t *testing.T) {
	o := model.Order{Total: dec("135.00"), ShippingFee: dec("15.00")}
	assert.Equal(t, "150.00", o.GrandTotal().StringFixed(2))
}

func TestParseOrderStatus(t *testing.T) {
	st, ok := model.ParseOrderStatus("SHIPPED")
	assert.True(t, ok)
	assert.Equal(t, model.OrderStatusShipped, st)

	_, ok = model.ParseOrderStatus("LOST")
	assert.False(t, ok)
}
