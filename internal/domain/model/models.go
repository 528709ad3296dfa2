package model

// AutoMigrate の対象
func All() []any {
	return []any{
		&Product{},
		&StockReservation{},
		&Cart{},
		&CartItem{},
		&Order{},
		&OrderItem{},
		&Coupon{},
		&Payment{},
		&Address{},
		&AuditLog{},
		&InventoryAdjustment{},
	}
}
