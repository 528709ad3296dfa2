package event

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// イベント種別
const (
	TypeStockReserved            = "stock.reserved"
	TypeStockReservationRejected = "stock.reservation_rejected"
	TypeStockReservationsExpired = "stock.reservations_expired"
	TypeStockConverted           = "stock.converted"
	TypeOrderCreated             = "order.created"
	TypeOrderStatusChanged       = "order.status_changed"
	TypePaymentStatusChanged     = "payment.status_changed"
)

const (
	Version  = 1
	Producer = "shop-api"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// payloadをJSONにして封筒に入れる
func New(eventType string, correlationID string, occurredAt time.Time, payload any) (Envelope, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  Version,
		OccurredAt:    occurredAt.UTC(),
		Producer:      Producer,
		CorrelationID: correlationID,
		Payload:       b,
	}, nil
}

// 送信先（失敗しても業務処理は失敗させない）
type Publisher interface {
	Publish(ctx context.Context, events ...Envelope) error
}

// payload
type StockReserved struct {
	ReservationID int64     `json:"reservation_id"`
	ProductID     int64     `json:"product_id"`
	Holder        string    `json:"holder"`
	Quantity      int64     `json:"quantity"`
	ExpiresAt     time.Time `json:"expires_at"`
}

type StockReservationRejected struct {
	ProductID int64  `json:"product_id"`
	Holder    string `json:"holder"`
	Requested int64  `json:"requested"`
	Available int64  `json:"available"`
}

type StockReservationsExpired struct {
	Count int64     `json:"count"`
	At    time.Time `json:"at"`
}

type StockConverted struct {
	OrderID   int64 `json:"order_id"`
	ProductID int64 `json:"product_id"`
	Quantity  int64 `json:"quantity"`
}

type OrderCreated struct {
	OrderID  int64  `json:"order_id"`
	UserID   int64  `json:"user_id"`
	Total    string `json:"total"`
	Shipping string `json:"shipping_fee"`
}

type OrderStatusChanged struct {
	OrderID int64  `json:"order_id"`
	From    string `json:"from"`
	To      string `json:"to"`
	ActorID int64  `json:"actor_id"`
}

type PaymentStatusChanged struct {
	PaymentID     int64  `json:"payment_id"`
	OrderID       int64  `json:"order_id"`
	TransactionID string `json:"transaction_id"`
	From          string `json:"from"`
	To            string `json:"to"`
}
