package repository

import (
	"context"

	repo "shop/internal/repository"

	"gorm.io/gorm"
)

type txReposGorm struct {
	products     repo.ProductRepository
	inventory    repo.InventoryRepository
	reservations repo.ReservationRepository
	carts        *CartGormRepository
	orders       repo.OrderRepository
	orderItems   repo.OrderItemRepository
	coupons      repo.CouponRepository
	payments     repo.PaymentRepository
	addresses    repo.AddressRepository
	auditLogs    repo.AuditLogRepository
}

func (r *txReposGorm) Products() repo.ProductRepository         { return r.products }
func (r *txReposGorm) Inventory() repo.InventoryRepository      { return r.inventory }
func (r *txReposGorm) Reservations() repo.ReservationRepository { return r.reservations }
func (r *txReposGorm) Carts() repo.CartRepository               { return r.carts }
func (r *txReposGorm) CartItems() repo.CartItemRepository       { return r.carts }
func (r *txReposGorm) Orders() repo.OrderRepository             { return r.orders }
func (r *txReposGorm) OrderItems() repo.OrderItemRepository     { return r.orderItems }
func (r *txReposGorm) Coupons() repo.CouponRepository           { return r.coupons }
func (r *txReposGorm) Payments() repo.PaymentRepository         { return r.payments }
func (r *txReposGorm) Addresses() repo.AddressRepository        { return r.addresses }
func (r *txReposGorm) AuditLogs() repo.AuditLogRepository       { return r.auditLogs }

// db（またはtx）に紐づいたrepo一式
func NewRepos(db *gorm.DB) repo.TxRepos {
	return &txReposGorm{
		products:     NewProductGormRepository(db),
		inventory:    NewInventoryGormRepository(db),
		reservations: NewReservationGormRepository(db),
		carts:        NewCartGormRepository(db),
		orders:       NewOrderGormRepository(db),
		orderItems:   NewOrderItemGormRepository(db),
		coupons:      NewCouponGormRepository(db),
		payments:     NewPaymentGormRepository(db),
		addresses:    NewAddressGormRepository(db),
		auditLogs:    NewAuditLogGormRepository(db),
	}
}

type TxManagerGorm struct {
	db *gorm.DB
}

func NewTxManagerGorm(db *gorm.DB) *TxManagerGorm {
	return &TxManagerGorm{db: db}
}

func (tm *TxManagerGorm) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	return tm.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		//repoはtxを持ったDBで作り直す
		return fn(NewRepos(tx))
	})
}

var _ repo.TransactionManager = (*TxManagerGorm)(nil)
