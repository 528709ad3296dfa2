package repository

import (
	"context"
	"errors"
	"time"

	"shop/internal/domain/model"
	repo "shop/internal/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CouponGormRepository struct {
	db *gorm.DB
}

func NewCouponGormRepository(db *gorm.DB) *CouponGormRepository {
	return &CouponGormRepository{db: db}
}

func (r *CouponGormRepository) FindByID(ctx context.Context, id int64) (model.Coupon, error) {
	var c model.Coupon
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Coupon{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Coupon{}, err
	}
	return c, nil
}

// codeは大文字で保存している
func (r *CouponGormRepository) FindByCode(ctx context.Context, code string) (model.Coupon, error) {
	var c model.Coupon
	err := r.db.WithContext(ctx).Where("code = ?", model.NormalizeCouponCode(code)).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Coupon{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Coupon{}, err
	}
	return c, nil
}

func (r *CouponGormRepository) Create(ctx context.Context, c *model.Coupon) error {
	c.Code = model.NormalizeCouponCode(c.Code)
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *CouponGormRepository) ListActive(ctx context.Context, now time.Time) ([]model.Coupon, error) {
	var list []model.Coupon
	err := r.db.WithContext(ctx).
		Where("active = ? AND valid_until >= ? AND current_uses < max_uses", true, now.UTC()).
		Order("valid_until asc").
		Find(&list).Error
	if err != nil {
		return []model.Coupon{}, err
	}
	return list, nil
}

// SELECT ... FOR UPDATE（チェックアウトとキャンセルの回数更新を直列化する）
func (r *CouponGormRepository) LockByID(ctx context.Context, id int64) (model.Coupon, error) {
	var c model.Coupon
	err := r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Coupon{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Coupon{}, err
	}
	return c, nil
}

// 読んだ値から変わっていなければ更新（ロック無しでも上書きしない）
func (r *CouponGormRepository) UpdateUses(ctx context.Context, id int64, from, to int64) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.Coupon{}).
		Where("id = ? AND current_uses = ?", id, from).
		Update("current_uses", to)

	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

var _ repo.CouponRepository = (*CouponGormRepository)(nil)
