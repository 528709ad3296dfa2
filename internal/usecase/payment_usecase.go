package usecase

import (
	"context"
	"net/http"
	"strings"
	"time"

	"shop/internal/domain/model"
	"shop/internal/infra/cache"
	"shop/internal/infra/event"
	repo "shop/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// 同じコールバックを覚えておく期間
const callbackDedupTTL = 24 * time.Hour

type PaymentUsecase struct {
	tx     repo.TransactionManager
	orders *OrderUsecase
	dedup  cache.DedupStore
	clock  Clock
	events event.Publisher
	log    *zap.Logger
}

func NewPaymentUsecase(
	tx repo.TransactionManager,
	orders *OrderUsecase,
	dedup cache.DedupStore,
	clock Clock,
	events event.Publisher,
	log *zap.Logger,
) *PaymentUsecase {
	if log == nil {
		log = zap.NewNop()
	}
	return &PaymentUsecase{
		tx:     tx,
		orders: orders,
		dedup:  dedup,
		clock:  clock,
		events: events,
		log:    log.Named("payment"),
	}
}

type CreatePaymentInput struct {
	Method string
}

type PaymentCallbackInput struct {
	EventID       string
	TransactionID string
	Status        string
}

type PaymentOutput struct {
	ID            int64           `json:"id"`
	OrderID       int64           `json:"order_id"`
	Method        string          `json:"method"`
	Status        string          `json:"status"`
	TransactionID string          `json:"transaction_id"`
	Amount        decimal.Decimal `json:"amount"`
	PaidAt        *time.Time      `json:"paid_at,omitempty"`
	Duplicate     bool            `json:"duplicate,omitempty"`
}

// 支払いを作る（注文はPENDINGで本人のもの）
func (u *PaymentUsecase) Create(ctx context.Context, userID int64, orderID int64, in CreatePaymentInput) (PaymentOutput, error) {
	if userID <= 0 {
		return PaymentOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if orderID <= 0 {
		return PaymentOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	method, ok := model.ParsePaymentMethod(strings.ToUpper(strings.TrimSpace(in.Method)))
	if !ok {
		return PaymentOutput{}, NewHTTPError(http.StatusBadRequest, "invalid method")
	}

	var p model.Payment
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if err != nil {
			return notFoundAs(err, model.ErrOrderNotFound)
		}
		if o.UserID != userID {
			return model.ErrOrderNotFound
		}
		if o.Status != model.OrderStatusPending {
			return WrapHTTPError(http.StatusConflict, "order is not pending", model.ErrInvalidStatusTransition)
		}

		p = model.Payment{
			OrderID:       o.ID,
			Method:        method,
			Status:        model.PaymentStatusPending,
			TransactionID: uuid.NewString(),
			Amount:        o.GrandTotal(),
		}
		if err := r.Payments().Create(ctx, &p); err != nil {
			return err
		}
		return r.Orders().SetPayment(ctx, o.ID, p.ID)
	})
	if err != nil {
		return PaymentOutput{}, toHTTPError(err)
	}
	return toPaymentOutput(p), nil
}

// 決済代行からの通知
// PAID → 注文を支払済みにして販売確定、FAILED → 支払いだけ失敗、REFUNDED → 注文を取消
func (u *PaymentUsecase) HandleCallback(ctx context.Context, in PaymentCallbackInput) (PaymentOutput, error) {
	eventID := strings.TrimSpace(in.EventID)
	txID := strings.TrimSpace(in.TransactionID)
	if eventID == "" || txID == "" {
		return PaymentOutput{}, NewHTTPError(http.StatusBadRequest, "invalid callback")
	}
	next, ok := model.ParsePaymentStatus(strings.ToUpper(strings.TrimSpace(in.Status)))
	if !ok || next == model.PaymentStatusPending {
		return PaymentOutput{}, NewHTTPError(http.StatusBadRequest, "invalid status")
	}

	key := "payment:callback:" + eventID
	first, err := u.dedup.FirstSeen(ctx, key, callbackDedupTTL)
	if err != nil {
		return PaymentOutput{}, WrapHTTPError(http.StatusServiceUnavailable, "dedup store unavailable", err)
	}
	if !first {
		out, err := u.findByTransaction(ctx, txID)
		if err != nil {
			return PaymentOutput{}, err
		}
		out.Duplicate = true
		return out, nil
	}

	var (
		p  model.Payment
		ob outbox
	)
	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		p, err = r.Payments().FindByTransactionID(ctx, txID)
		if err != nil {
			return notFoundAs(err, model.ErrPaymentNotFound)
		}

		//同じ状態への通知は何もしない
		if p.Status == next {
			return nil
		}
		if err := p.CanTransitionTo(next); err != nil {
			return err
		}

		from := p.Status
		now := u.clock.Now()
		var paidAt *time.Time
		if next == model.PaymentStatusPaid {
			paidAt = &now
		}
		changed, err := r.Payments().UpdateStatus(ctx, p.ID, from, next, paidAt)
		if err != nil {
			return err
		}
		if !changed {
			return WrapHTTPError(http.StatusConflict, "payment status changed concurrently", model.ErrInvalidStatusTransition)
		}
		p.Status = next
		if paidAt != nil {
			p.PaidAt = paidAt
		}

		if err := r.AuditLogs().Create(ctx, model.AuditLog{
			ActorUserID:  model.SystemActorID,
			Action:       model.AuditActionUpdatePaymentStatus,
			ResourceType: model.AuditResourcePayment,
			ResourceID:   p.ID,
			BeforeJSON:   auditJSON(map[string]any{"status": from}),
			AfterJSON:    auditJSON(map[string]any{"status": next, "event_id": eventID}),
			CreatedAt:    now,
		}); err != nil {
			return err
		}
		ob.add(event.TypePaymentStatusChanged, eventID, now, event.PaymentStatusChanged{
			PaymentID:     p.ID,
			OrderID:       p.OrderID,
			TransactionID: p.TransactionID,
			From:          string(from),
			To:            string(next),
		})

		return u.applyToOrder(ctx, r, &ob, p)
	})
	if err != nil {
		//再送で処理し直せるようにする
		if ferr := u.dedup.Forget(ctx, key); ferr != nil {
			u.log.Warn("dedup forget failed", zap.String("event_id", eventID), zap.Error(ferr))
		}
		return PaymentOutput{}, toHTTPError(err)
	}

	ob.flush(ctx, u.events, u.log)
	return toPaymentOutput(p), nil
}

func (u *PaymentUsecase) applyToOrder(ctx context.Context, r repo.TxRepos, ob *outbox, p model.Payment) error {
	o, err := r.Orders().FindByID(ctx, p.OrderID)
	if err != nil {
		return notFoundAs(err, model.ErrOrderNotFound)
	}

	switch p.Status {
	case model.PaymentStatusPaid:
		_, err := u.orders.transitionTx(ctx, r, ob, o, model.OrderStatusPaid, model.SystemActorID)
		return err
	case model.PaymentStatusRefunded:
		if !model.OrderTransitions.Can(o.Status, model.OrderStatusCanceled) {
			//発送後の返金は注文を動かさない
			orderID, status := o.ID, o.Status
			ob.onCommit(func() {
				u.log.Warn("refund received for order that cannot be canceled",
					zap.Int64("order_id", orderID),
					zap.String("status", string(status)),
				)
			})
			return nil
		}
		_, err := u.orders.transitionTx(ctx, r, ob, o, model.OrderStatusCanceled, model.SystemActorID)
		return err
	}
	return nil
}

func (u *PaymentUsecase) findByTransaction(ctx context.Context, txID string) (PaymentOutput, error) {
	var p model.Payment
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		p, err = r.Payments().FindByTransactionID(ctx, txID)
		return notFoundAs(err, model.ErrPaymentNotFound)
	})
	if err != nil {
		return PaymentOutput{}, toHTTPError(err)
	}
	return toPaymentOutput(p), nil
}

func toPaymentOutput(p model.Payment) PaymentOutput {
	return PaymentOutput{
		ID:            p.ID,
		OrderID:       p.OrderID,
		Method:        string(p.Method),
		Status:        string(p.Status),
		TransactionID: p.TransactionID,
		Amount:        p.Amount,
		PaidAt:        p.PaidAt,
	}
}
