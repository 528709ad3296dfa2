package repository

import (
	"context"
	"errors"

	"shop/internal/domain/model"
)

var ErrNotFound = errors.New("not found")

// 商品の参照（カタログは読み取り専用）
type ProductRepository interface {
	FindByID(ctx context.Context, id int64) (model.Product, error)
	FindByIDs(ctx context.Context, ids []int64) (map[int64]model.Product, error)
	Create(ctx context.Context, p model.Product) (model.Product, error)
}
