package repository

import (
	"context"
	"errors"

	"shop/internal/domain/model"
	"shop/internal/domain/money"
	repo "shop/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// carts と cart_items をまとめて扱う
type CartGormRepository struct {
	db *gorm.DB
}

// DI
func NewCartGormRepository(db *gorm.DB) *CartGormRepository {
	return &CartGormRepository{db: db}
}

// ユーザーのカートを行ロック付きで取得し、無ければ作成（Tx内で呼ぶこと）
func (r *CartGormRepository) GetOrCreateByUserID(ctx context.Context, userID int64) (model.Cart, error) {
	cart, err := r.LockByUserID(ctx, userID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return model.Cart{}, err
	}

	// 無ければ作る（Tx内ならSAVEPOINTになる）
	newCart := model.Cart{
		UserID:   userID,
		Subtotal: money.Zero(),
		Total:    money.Zero(),
	}
	createErr := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&newCart).Error
	})
	if createErr == nil {
		return newCart, nil
	}

	// 同時作成に負けたら読み直す（user_idはunique）
	if cart, err := r.LockByUserID(ctx, userID); err == nil {
		return cart, nil
	}
	return model.Cart{}, createErr
}

func (r *CartGormRepository) FindByID(ctx context.Context, cartID int64) (model.Cart, error) {
	var cart model.Cart
	err := r.db.WithContext(ctx).Where("id = ?", cartID).First(&cart).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Cart{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Cart{}, err
	}
	return cart, nil
}

// SELECT ... FOR UPDATE（同じカートへの変更とチェックアウトを直列化する）
func (r *CartGormRepository) LockByUserID(ctx context.Context, userID int64) (model.Cart, error) {
	return r.lockWhere(ctx, "user_id = ?", userID)
}

func (r *CartGormRepository) LockByID(ctx context.Context, cartID int64) (model.Cart, error) {
	return r.lockWhere(ctx, "id = ?", cartID)
}

func (r *CartGormRepository) lockWhere(ctx context.Context, query string, arg int64) (model.Cart, error) {
	var cart model.Cart
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where(query, arg).
		First(&cart).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Cart{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Cart{}, err
	}
	return cart, nil
}

func (r *CartGormRepository) UpdateTotals(ctx context.Context, cartID int64, subtotal, total decimal.Decimal) error {
	res := r.db.WithContext(ctx).
		Model(&model.Cart{}).
		Where("id = ?", cartID).
		Updates(map[string]any{
			"subtotal": subtotal,
			"total":    total,
		})

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (r *CartGormRepository) SetCoupon(ctx context.Context, cartID int64, couponID *int64) error {
	res := r.db.WithContext(ctx).
		Model(&model.Cart{}).
		Where("id = ?", cartID).
		Update("coupon_id", couponID)

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// カート明細を一覧取得
func (r *CartGormRepository) ListByCartID(ctx context.Context, cartID int64) ([]model.CartItem, error) {
	var items []model.CartItem

	if err := r.db.WithContext(ctx).
		Where("cart_id = ?", cartID).
		Order("id asc").
		Find(&items).Error; err != nil {
		return []model.CartItem{}, err
	}

	return items, nil
}

func (r *CartGormRepository) FindByCartAndProduct(ctx context.Context, cartID int64, productID int64) (model.CartItem, error) {
	var item model.CartItem

	err := r.db.WithContext(ctx).
		Where("cart_id = ? AND product_id = ?", cartID, productID).
		First(&item).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.CartItem{}, repo.ErrNotFound
	}
	if err != nil {
		return model.CartItem{}, err
	}
	return item, nil
}

func (r *CartGormRepository) Create(ctx context.Context, item *model.CartItem) error {
	if item.Quantity <= 0 {
		return errors.New("invalid quantity")
	}
	return r.db.WithContext(ctx).Create(item).Error
}

// 数量・価格・合計を更新
func (r *CartGormRepository) Save(ctx context.Context, item model.CartItem) error {
	res := r.db.WithContext(ctx).
		Model(&model.CartItem{}).
		Where("id = ?", item.ID).
		Updates(map[string]any{
			"quantity":      item.Quantity,
			"price_at_time": item.PriceAtTime,
			"total_price":   item.TotalPrice,
		})

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// 明細を削除
func (r *CartGormRepository) DeleteByID(ctx context.Context, cartItemID int64) error {
	res := r.db.WithContext(ctx).Delete(&model.CartItem{}, cartItemID)

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// 指定カートの明細を全削除
func (r *CartGormRepository) DeleteByCartID(ctx context.Context, cartID int64) error {
	return r.db.WithContext(ctx).Where("cart_id = ?", cartID).Delete(&model.CartItem{}).Error
}

var (
	_ repo.CartRepository     = (*CartGormRepository)(nil)
	_ repo.CartItemRepository = (*CartGormRepository)(nil)
)
