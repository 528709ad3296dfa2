package repository

import (
	"context"
	"errors"
	"time"

	"shop/internal/domain/model"
	repo "shop/internal/repository"

	"gorm.io/gorm"
)

type ReservationGormRepository struct {
	db *gorm.DB
}

func NewReservationGormRepository(db *gorm.DB) *ReservationGormRepository {
	return &ReservationGormRepository{db: db}
}

func (r *ReservationGormRepository) Create(ctx context.Context, res *model.StockReservation) error {
	if res.Quantity <= 0 {
		return errors.New("reservation quantity must be positive")
	}
	if !res.Holder().Valid() {
		return errors.New("reservation holder is invalid")
	}
	return r.db.WithContext(ctx).Create(res).Error
}

func (r *ReservationGormRepository) SumActive(ctx context.Context, productID int64, now time.Time, exclude *model.Holder) (int64, error) {
	q := r.db.WithContext(ctx).
		Model(&model.StockReservation{}).
		Where("product_id = ? AND status = ? AND expires_at > ?", productID, model.ReservationReserved, now.UTC())

	if exclude != nil {
		q = q.Where("NOT (holder_kind = ? AND holder_id = ?)", exclude.Kind, exclude.ID)
	}

	var total int64
	if err := q.Select("CAST(COALESCE(SUM(quantity), 0) AS BIGINT)").Scan(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func (r *ReservationGormRepository) ListByHolder(ctx context.Context, holder model.Holder, status model.ReservationStatus) ([]model.StockReservation, error) {
	var list []model.StockReservation
	err := r.db.WithContext(ctx).
		Where("holder_kind = ? AND holder_id = ? AND status = ?", holder.Kind, holder.ID, status).
		Order("id asc").
		Find(&list).Error
	if err != nil {
		return []model.StockReservation{}, err
	}
	return list, nil
}

// RESERVED のものだけ変える（CONVERTED / EXPIRED / RELEASED は触らない）
func (r *ReservationGormRepository) TransitionByHolder(ctx context.Context, holder model.Holder, to model.ReservationStatus) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&model.StockReservation{}).
		Where("holder_kind = ? AND holder_id = ? AND status = ?", holder.Kind, holder.ID, model.ReservationReserved).
		Update("status", to)

	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *ReservationGormRepository) Reassign(ctx context.Context, from model.Holder, to model.Holder, now time.Time, expiresAt time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&model.StockReservation{}).
		Where("holder_kind = ? AND holder_id = ? AND status = ? AND expires_at > ?",
			from.Kind, from.ID, model.ReservationReserved, now.UTC()).
		Updates(map[string]any{
			"holder_kind": to.Kind,
			"holder_id":   to.ID,
			"expires_at":  expiresAt.UTC(),
		})

	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

// 期限を過ぎたものは変換しない（スイープと取り合わない）
func (r *ReservationGormRepository) ConvertForOrder(ctx context.Context, orderID int64, productID int64, now time.Time) (int64, error) {
	holder := model.OrderHolder(orderID)

	res := r.db.WithContext(ctx).
		Model(&model.StockReservation{}).
		Where("holder_kind = ? AND holder_id = ? AND product_id = ? AND status = ? AND expires_at >= ?",
			holder.Kind, holder.ID, productID, model.ReservationReserved, now.UTC()).
		Update("status", model.ReservationConverted)
	if res.Error != nil {
		return 0, res.Error
	}

	var converted int64
	err := r.db.WithContext(ctx).
		Model(&model.StockReservation{}).
		Where("holder_kind = ? AND holder_id = ? AND product_id = ? AND status = ?",
			holder.Kind, holder.ID, productID, model.ReservationConverted).
		Select("CAST(COALESCE(SUM(quantity), 0) AS BIGINT)").
		Scan(&converted).Error
	if err != nil {
		return 0, err
	}
	return converted, nil
}

func (r *ReservationGormRepository) ExpireBefore(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&model.StockReservation{}).
		Where("status = ? AND expires_at < ?", model.ReservationReserved, now.UTC()).
		Update("status", model.ReservationExpired)

	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

var _ repo.ReservationRepository = (*ReservationGormRepository)(nil)
