package repository

import (
	"context"

	"shop/internal/domain/model"
)

type CartItemRepository interface {
	ListByCartID(ctx context.Context, cartID int64) ([]model.CartItem, error)
	FindByCartAndProduct(ctx context.Context, cartID int64, productID int64) (model.CartItem, error)
	Create(ctx context.Context, item *model.CartItem) error
	// 数量・価格・合計を保存
	Save(ctx context.Context, item model.CartItem) error
	DeleteByID(ctx context.Context, cartItemID int64) error
	DeleteByCartID(ctx context.Context, cartID int64) error
}
