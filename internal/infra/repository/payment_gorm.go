package repository

import (
	"context"
	"errors"
	"time"

	"shop/internal/domain/model"
	repo "shop/internal/repository"

	"gorm.io/gorm"
)

type PaymentGormRepository struct {
	db *gorm.DB
}

func NewPaymentGormRepository(db *gorm.DB) *PaymentGormRepository {
	return &PaymentGormRepository{db: db}
}

func (r *PaymentGormRepository) Create(ctx context.Context, p *model.Payment) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *PaymentGormRepository) FindByID(ctx context.Context, id int64) (model.Payment, error) {
	var p model.Payment
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Payment{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Payment{}, err
	}
	return p, nil
}

func (r *PaymentGormRepository) FindByTransactionID(ctx context.Context, transactionID string) (model.Payment, error) {
	var p model.Payment
	err := r.db.WithContext(ctx).Where("transaction_id = ?", transactionID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Payment{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Payment{}, err
	}
	return p, nil
}

func (r *PaymentGormRepository) UpdateStatus(ctx context.Context, id int64, from, to model.PaymentStatus, paidAt *time.Time) (bool, error) {
	updates := map[string]any{"status": to}
	if paidAt != nil {
		updates["paid_at"] = paidAt.UTC()
	}

	res := r.db.WithContext(ctx).
		Model(&model.Payment{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)

	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

var _ repo.PaymentRepository = (*PaymentGormRepository)(nil)
