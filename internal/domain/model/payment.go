package model

import (
	"time"

	"shop/internal/domain/fsm"

	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentMethodPix        PaymentMethod = "PIX"
	PaymentMethodCreditCard PaymentMethod = "CREDIT_CARD"
	PaymentMethodDebitCard  PaymentMethod = "DEBIT_CARD"
	PaymentMethodBoleto     PaymentMethod = "BOLETO"
)

func ParsePaymentMethod(s string) (PaymentMethod, bool) {
	m := PaymentMethod(s)
	switch m {
	case PaymentMethodPix, PaymentMethodCreditCard, PaymentMethodDebitCard, PaymentMethodBoleto:
		return m, true
	}
	return "", false
}

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "PENDING"
	PaymentStatusPaid     PaymentStatus = "PAID"
	PaymentStatusFailed   PaymentStatus = "FAILED"
	PaymentStatusRefunded PaymentStatus = "REFUNDED"
)

// 注文と同じバリデータを使う
var PaymentTransitions = fsm.Table[PaymentStatus]{
	PaymentStatusPending: {PaymentStatusPaid, PaymentStatusFailed},
	PaymentStatusPaid:    {PaymentStatusRefunded},
}

func ParsePaymentStatus(s string) (PaymentStatus, bool) {
	st := PaymentStatus(s)
	switch st {
	case PaymentStatusPending, PaymentStatusPaid, PaymentStatusFailed, PaymentStatusRefunded:
		return st, true
	}
	return "", false
}

type Payment struct {
	ID      int64         `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID int64         `gorm:"not null;index" json:"order_id"`
	Method  PaymentMethod `gorm:"type:varchar(20);not null" json:"method"`
	Status  PaymentStatus `gorm:"type:varchar(20);not null;index" json:"status"`

	//決済代行側の取引ID
	TransactionID string          `gorm:"type:varchar(100);not null;uniqueIndex" json:"transaction_id"`
	Amount        decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	PaidAt        *time.Time      `json:"paid_at"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (p Payment) CanTransitionTo(next PaymentStatus) error {
	return PaymentTransitions.Validate(p.Status, next)
}
