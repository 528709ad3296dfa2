package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strings"
	"time"

	"shop/internal/domain/model"
	"shop/internal/infra/event"
	"shop/internal/infra/metrics"
	repo "shop/internal/repository"

	"go.uber.org/zap"
)

const DefaultCartReservationTTL = 30 * time.Minute

// 販売可能在庫（確定在庫 − 有効な引当）を管理する
// 確定在庫を減らすのは ConvertToSale だけ
type StockLedger struct {
	tx      repo.TransactionManager
	clock   Clock
	events  event.Publisher
	metrics *metrics.Metrics
	log     *zap.Logger
}

func NewStockLedger(
	tx repo.TransactionManager,
	clock Clock,
	events event.Publisher,
	m *metrics.Metrics,
	log *zap.Logger,
) *StockLedger {
	if m == nil {
		m = metrics.NewNop()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &StockLedger{tx: tx, clock: clock, events: events, metrics: m, log: log.Named("stock_ledger")}
}

type ReserveInput struct {
	ProductID int64
	Quantity  int64
	Holder    model.Holder
	TTL       time.Duration
}

type StockOutput struct {
	ProductID int64 `json:"product_id"`
	Stock     int64 `json:"stock"`
	Reserved  int64 `json:"reserved"`
	Available int64 `json:"available"`
}

type AdjustStockInput struct {
	NewStock int64
	Reason   string
}

// 確定在庫 − RESERVEDかつ期限内の合計（0未満にしない）
func (l *StockLedger) AvailableStock(ctx context.Context, productID int64) (StockOutput, error) {
	if productID <= 0 {
		return StockOutput{}, NewHTTPError(http.StatusBadRequest, "invalid product_id")
	}

	var out StockOutput
	err := l.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		p, err := r.Products().FindByID(ctx, productID)
		if err != nil {
			return notFoundAs(err, model.ErrProductNotFound)
		}
		reserved, err := r.Reservations().SumActive(ctx, productID, l.clock.Now(), nil)
		if err != nil {
			return err
		}
		out = StockOutput{
			ProductID: p.ID,
			Stock:     p.Stock,
			Reserved:  reserved,
			Available: available(p.Stock, reserved),
		}
		return nil
	})
	if err != nil {
		return StockOutput{}, toHTTPError(err)
	}
	return out, nil
}

// 在庫を引き当てる（足りなければ InsufficientStock）
func (l *StockLedger) Reserve(ctx context.Context, in ReserveInput) (model.StockReservation, error) {
	var (
		res model.StockReservation
		ob  outbox
	)
	err := l.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		res, err = l.reserveTx(ctx, r, &ob, in)
		return err
	})
	if err != nil {
		l.recordRejection(ctx, err, in.Holder)
		return model.StockReservation{}, toHTTPError(err)
	}

	ob.flush(ctx, l.events, l.log)
	return res, nil
}

// 商品行をロックしてから 残り確認→作成 をする（同じ商品の引当は直列になる）
// カート明細は1明細1引当なので、自分の古い引当は除いて数えてから RELEASED にする
func (l *StockLedger) reserveTx(ctx context.Context, r repo.TxRepos, ob *outbox, in ReserveInput) (model.StockReservation, error) {
	if in.Quantity <= 0 {
		return model.StockReservation{}, NewHTTPError(http.StatusBadRequest, "invalid quantity")
	}
	if !in.Holder.Valid() {
		return model.StockReservation{}, NewHTTPError(http.StatusBadRequest, "invalid holder")
	}
	ttl := in.TTL
	if ttl <= 0 {
		ttl = DefaultCartReservationTTL
	}
	now := l.clock.Now()

	p, err := r.Inventory().LockProduct(ctx, in.ProductID)
	if err != nil {
		return model.StockReservation{}, notFoundAs(err, model.ErrProductNotFound)
	}

	var exclude *model.Holder
	if in.Holder.Kind == model.HolderCartLine {
		exclude = &in.Holder
	}
	reserved, err := r.Reservations().SumActive(ctx, p.ID, now, exclude)
	if err != nil {
		return model.StockReservation{}, err
	}

	avail := available(p.Stock, reserved)
	if in.Quantity > avail {
		return model.StockReservation{}, &model.InsufficientStockError{
			ProductID: p.ID,
			Requested: in.Quantity,
			Available: avail,
		}
	}

	if exclude != nil {
		released, err := r.Reservations().TransitionByHolder(ctx, in.Holder, model.ReservationReleased)
		if err != nil {
			return model.StockReservation{}, err
		}
		ob.onCommit(func() { l.metrics.ReservationResult(metrics.ResultReleased, released) })
	}

	res := model.StockReservation{
		ProductID: p.ID,
		Quantity:  in.Quantity,
		Status:    model.ReservationReserved,
		ExpiresAt: now.Add(ttl),
	}
	res.SetHolder(in.Holder)
	if err := r.Reservations().Create(ctx, &res); err != nil {
		return model.StockReservation{}, err
	}

	ob.onCommit(func() { l.metrics.ReservationResult(metrics.ResultCreated, 1) })
	ob.add(event.TypeStockReserved, in.Holder.String(), now, event.StockReserved{
		ReservationID: res.ID,
		ProductID:     res.ProductID,
		Holder:        in.Holder.String(),
		Quantity:      res.Quantity,
		ExpiresAt:     res.ExpiresAt,
	})
	return res, nil
}

// 在庫不足で断ったことを記録（ロールバック後に呼ぶ）
func (l *StockLedger) recordRejection(ctx context.Context, err error, holder model.Holder) {
	var shortage *model.InsufficientStockError
	if !errors.As(err, &shortage) {
		return
	}
	l.metrics.ReservationResult(metrics.ResultRejected, 1)

	var ob outbox
	ob.add(event.TypeStockReservationRejected, holder.String(), l.clock.Now(), event.StockReservationRejected{
		ProductID: shortage.ProductID,
		Holder:    holder.String(),
		Requested: shortage.Requested,
		Available: shortage.Available,
	})
	ob.flush(ctx, l.events, l.log)
}

// holder の RESERVED を RELEASED にする。何も変わらなければ false
func (l *StockLedger) Release(ctx context.Context, holder model.Holder) (bool, error) {
	if !holder.Valid() {
		return false, NewHTTPError(http.StatusBadRequest, "invalid holder")
	}

	var (
		n  int64
		ob outbox
	)
	err := l.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		n, err = l.releaseTx(ctx, r, &ob, holder)
		return err
	})
	if err != nil {
		return false, toHTTPError(err)
	}

	ob.flush(ctx, l.events, l.log)
	return n > 0, nil
}

func (l *StockLedger) releaseTx(ctx context.Context, r repo.TxRepos, ob *outbox, holder model.Holder) (int64, error) {
	n, err := r.Reservations().TransitionByHolder(ctx, holder, model.ReservationReleased)
	if err != nil {
		return 0, err
	}
	ob.onCommit(func() { l.metrics.ReservationResult(metrics.ResultReleased, n) })
	return n, nil
}

// 注文の引当を販売確定にして確定在庫を減らす
// 注文が PENDING→PAID に変わったのと同じTxで呼ぶ（1注文1回）
func (l *StockLedger) convertToSaleTx(ctx context.Context, r repo.TxRepos, ob *outbox, orderID int64) error {
	items, err := r.OrderItems().ListByOrderID(ctx, orderID)
	if err != nil {
		return err
	}

	//ロック順を揃える
	sort.Slice(items, func(i, j int) bool { return items[i].ProductID < items[j].ProductID })

	now := l.clock.Now()
	for _, it := range items {
		p, err := r.Inventory().LockProduct(ctx, it.ProductID)
		if err != nil {
			return notFoundAs(err, model.ErrProductNotFound)
		}

		converted, err := r.Reservations().ConvertForOrder(ctx, orderID, it.ProductID, now)
		if err != nil {
			return err
		}

		//自分の分はCONVERTEDになったので、残りの引当を割らないか確認する
		others, err := r.Reservations().SumActive(ctx, it.ProductID, now, nil)
		if err != nil {
			return err
		}
		if avail := available(p.Stock, others); it.Quantity > avail {
			return &model.InsufficientStockError{
				ProductID: it.ProductID,
				Requested: it.Quantity,
				Available: avail,
			}
		}

		ok, err := r.Inventory().DecreaseStockIfEnough(ctx, it.ProductID, it.Quantity)
		if err != nil {
			return err
		}
		if !ok {
			return &model.InsufficientStockError{ProductID: it.ProductID, Requested: it.Quantity, Available: p.Stock}
		}

		qty := it.Quantity
		productID := it.ProductID
		ob.onCommit(func() {
			l.metrics.ReservationResult(metrics.ResultConverted, 1)
			l.log.Debug("stock converted",
				zap.Int64("order_id", orderID),
				zap.Int64("product_id", productID),
				zap.Int64("quantity", qty),
				zap.Int64("from_reservations", converted),
			)
		})
		ob.add(event.TypeStockConverted, model.OrderHolder(orderID).String(), now, event.StockConverted{
			OrderID:   orderID,
			ProductID: productID,
			Quantity:  qty,
		})
	}
	return nil
}

// 期限切れ（expires_at < now）の RESERVED を EXPIRED にする
// 何度呼んでもよい（RESERVEDのものしか変えない）
func (l *StockLedger) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	err := l.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		n, err = r.Reservations().ExpireBefore(ctx, now)
		return err
	})
	if err != nil {
		return 0, err
	}

	if n > 0 {
		l.metrics.ReservationResult(metrics.ResultExpired, n)

		var ob outbox
		ob.add(event.TypeStockReservationsExpired, "", now, event.StockReservationsExpired{Count: n, At: now.UTC()})
		ob.flush(ctx, l.events, l.log)
	}
	return n, nil
}

// 管理者の在庫調整（引当済みの数量を下回る値にはできない）
func (l *StockLedger) AdjustStock(ctx context.Context, actorAdminUserID int64, productID int64, in AdjustStockInput) (StockOutput, error) {
	if actorAdminUserID <= 0 {
		return StockOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if productID <= 0 {
		return StockOutput{}, NewHTTPError(http.StatusBadRequest, "invalid product_id")
	}
	if in.NewStock < 0 {
		return StockOutput{}, NewHTTPError(http.StatusBadRequest, "invalid stock")
	}
	reason := strings.TrimSpace(in.Reason)
	if reason == "" || len(reason) > 255 {
		return StockOutput{}, NewHTTPError(http.StatusBadRequest, "invalid reason")
	}

	var out StockOutput
	err := l.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		p, err := r.Inventory().LockProduct(ctx, productID)
		if err != nil {
			return notFoundAs(err, model.ErrProductNotFound)
		}

		now := l.clock.Now()
		reserved, err := r.Reservations().SumActive(ctx, productID, now, nil)
		if err != nil {
			return err
		}
		if in.NewStock < reserved {
			return &model.InsufficientStockError{ProductID: productID, Requested: reserved, Available: in.NewStock}
		}

		if err := r.Inventory().SetStock(ctx, productID, in.NewStock); err != nil {
			return err
		}

		if err := r.Inventory().CreateAdjustment(ctx, model.InventoryAdjustment{
			ProductID:   productID,
			AdminUserID: actorAdminUserID,
			StockBefore: p.Stock,
			StockAfter:  in.NewStock,
			Delta:       in.NewStock - p.Stock,
			Reason:      reason,
		}); err != nil {
			return err
		}

		if err := r.AuditLogs().Create(ctx, model.AuditLog{
			ActorUserID:  actorAdminUserID,
			Action:       model.AuditActionUpdateStock,
			ResourceType: model.AuditResourceProduct,
			ResourceID:   productID,
			BeforeJSON:   auditJSON(map[string]any{"stock": p.Stock}),
			AfterJSON:    auditJSON(map[string]any{"stock": in.NewStock, "reason": reason}),
			CreatedAt:    now,
		}); err != nil {
			return err
		}

		out = StockOutput{
			ProductID: productID,
			Stock:     in.NewStock,
			Reserved:  reserved,
			Available: available(in.NewStock, reserved),
		}
		return nil
	})
	if err != nil {
		return StockOutput{}, toHTTPError(err)
	}

	l.log.Info("stock adjusted",
		zap.Int64("product_id", productID),
		zap.Int64("admin_user_id", actorAdminUserID),
		zap.Int64("stock", out.Stock),
	)
	return out, nil
}

func available(stock, reserved int64) int64 {
	if a := stock - reserved; a > 0 {
		return a
	}
	return 0
}

func auditJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}
