package repository

import (
	"context"
	"time"

	"shop/internal/domain/model"
)

type PaymentRepository interface {
	Create(ctx context.Context, p *model.Payment) error
	FindByID(ctx context.Context, id int64) (model.Payment, error)
	FindByTransactionID(ctx context.Context, transactionID string) (model.Payment, error)

	// from のときだけ to に変える。PAID のときは paidAt も入れる
	UpdateStatus(ctx context.Context, id int64, from, to model.PaymentStatus, paidAt *time.Time) (bool, error)
}
