package repository

import (
	"context"

	"shop/internal/domain/model"
)

// 配送先の参照（注文時の所有チェック用）
type AddressRepository interface {
	Create(ctx context.Context, address model.Address) (model.Address, error)
	FindByID(ctx context.Context, addressID int64) (model.Address, error)
}
