package usecase

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strings"
	"time"

	"shop/internal/domain/model"
	"shop/internal/domain/money"
	"shop/internal/infra/event"
	"shop/internal/infra/metrics"
	repo "shop/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type OrderUsecase struct {
	tx          repo.TransactionManager
	ledger      *StockLedger
	clock       Clock
	shipping    model.ShippingPolicy
	checkoutTTL time.Duration
	events      event.Publisher
	metrics     *metrics.Metrics
	log         *zap.Logger
}

func NewOrderUsecase(
	tx repo.TransactionManager,
	ledger *StockLedger,
	clock Clock,
	shipping model.ShippingPolicy,
	checkoutTTL time.Duration,
	events event.Publisher,
	m *metrics.Metrics,
	log *zap.Logger,
) *OrderUsecase {
	if checkoutTTL <= 0 {
		checkoutTTL = DefaultCartReservationTTL
	}
	if m == nil {
		m = metrics.NewNop()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &OrderUsecase{
		tx:          tx,
		ledger:      ledger,
		clock:       clock,
		shipping:    shipping,
		checkoutTTL: checkoutTTL,
		events:      events,
		metrics:     m,
		log:         log.Named("order"),
	}
}

type OrderItemInput struct {
	ProductID int64
	Quantity  int64
}

type CheckoutInput struct {
	AddressID      int64
	IdempotencyKey string
}

type PlaceDirectInput struct {
	AddressID int64
	Items     []OrderItemInput
}

type OrderItemOutput struct {
	ProductID  int64           `json:"product_id"`
	Name       string          `json:"name"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	Quantity   int64           `json:"quantity"`
	TotalPrice decimal.Decimal `json:"total_price"`
}

type OrderOutput struct {
	ID          int64             `json:"id"`
	UserID      int64             `json:"user_id"`
	AddressID   int64             `json:"address_id"`
	Status      string            `json:"status"`
	Subtotal    decimal.Decimal   `json:"subtotal"`
	ShippingFee decimal.Decimal   `json:"shipping_fee"`
	Total       decimal.Decimal   `json:"total"`
	GrandTotal  decimal.Decimal   `json:"grand_total"`
	CouponID    *int64            `json:"coupon_id,omitempty"`
	PaymentID   *int64            `json:"payment_id,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	Items       []OrderItemOutput `json:"items"`
}

// カートから注文を作る（同じキーなら同じ注文を返す）
// カート明細の引当は注文へ付け替え、引当の無い明細はここで引き当てる
func (u *OrderUsecase) Checkout(ctx context.Context, userID int64, in CheckoutInput) (OrderOutput, error) {
	if userID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if in.AddressID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid address_id")
	}
	key := strings.TrimSpace(in.IdempotencyKey)
	if key == "" || len(key) > 255 {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid idempotency_key")
	}

	var (
		out    OrderOutput
		ob     outbox
		holder model.Holder
	)
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		// 先にカートをロック（同じカートのチェックアウトは直列）
		cart, cartErr := r.Carts().LockByUserID(ctx, userID)
		if cartErr != nil && !errors.Is(cartErr, repo.ErrNotFound) {
			return cartErr
		}

		// 同じキーなら同じ結果
		existing, found, err := r.Orders().FindByIdempotencyKey(ctx, userID, key)
		if err != nil {
			return err
		}
		if found {
			out, err = u.buildOutput(ctx, r, existing)
			return err
		}

		if err := u.checkAddress(ctx, r, userID, in.AddressID); err != nil {
			return err
		}

		if cartErr != nil {
			return model.ErrEmptyOrder
		}
		cartItems, err := r.CartItems().ListByCartID(ctx, cart.ID)
		if err != nil {
			return err
		}
		if len(cartItems) == 0 {
			return model.ErrEmptyOrder
		}

		inputs := make([]OrderItemInput, 0, len(cartItems))
		for _, ci := range cartItems {
			inputs = append(inputs, OrderItemInput{ProductID: ci.ProductID, Quantity: ci.Quantity})
		}
		order, _, err := u.createFromItemsTx(ctx, r, &ob, userID, in.AddressID, inputs, &key)
		if err != nil {
			return err
		}
		holder = model.OrderHolder(order.ID)

		//引当の付け替え（期限内のRESERVEDだけ）
		now := u.clock.Now()
		expiresAt := now.Add(u.checkoutTTL)
		for _, ci := range cartItems {
			moved, err := r.Reservations().Reassign(ctx, model.CartLineHolder(ci.ID), holder, now, expiresAt)
			if err != nil {
				return err
			}
			if moved > 0 {
				continue
			}
			if _, err := u.ledger.reserveTx(ctx, r, &ob, ReserveInput{
				ProductID: ci.ProductID,
				Quantity:  ci.Quantity,
				Holder:    holder,
				TTL:       u.checkoutTTL,
			}); err != nil {
				return err
			}
		}

		//クーポンはここで使用回数を消費する（使えなければ割引なし）
		if cart.CouponID != nil {
			ok, err := useCouponTx(ctx, r, *cart.CouponID, now)
			if err != nil {
				return err
			}
			if ok {
				if err := r.Orders().SetCoupon(ctx, order.ID, cart.CouponID); err != nil {
					return err
				}
				order.CouponID = cart.CouponID
			} else {
				couponID := *cart.CouponID
				ob.onCommit(func() {
					u.log.Warn("coupon not usable at checkout, order placed without discount",
						zap.Int64("order_id", order.ID),
						zap.Int64("coupon_id", couponID),
					)
				})
			}
		}

		order, err = u.recalculateTx(ctx, r, order)
		if err != nil {
			return err
		}

		//カートを空にする（引当は注文へ移したので解放しない）
		if err := r.CartItems().DeleteByCartID(ctx, cart.ID); err != nil {
			return err
		}
		if err := r.Carts().SetCoupon(ctx, cart.ID, nil); err != nil {
			return err
		}
		if err := r.Carts().UpdateTotals(ctx, cart.ID, money.Zero(), money.Zero()); err != nil {
			return err
		}

		u.addCreatedEvent(&ob, order)
		out, err = u.buildOutput(ctx, r, order)
		return err
	})
	if err != nil {
		u.ledger.recordRejection(ctx, err, holder)
		return OrderOutput{}, toHTTPError(err)
	}

	ob.flush(ctx, u.events, u.log)
	return out, nil
}

// 明細を指定して直接注文（各明細をその場で引き当てる）
func (u *OrderUsecase) PlaceDirect(ctx context.Context, userID int64, in PlaceDirectInput) (OrderOutput, error) {
	if userID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if in.AddressID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid address_id")
	}

	var (
		out    OrderOutput
		ob     outbox
		holder model.Holder
	)
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		if err := u.checkAddress(ctx, r, userID, in.AddressID); err != nil {
			return err
		}

		order, items, err := u.createFromItemsTx(ctx, r, &ob, userID, in.AddressID, in.Items, nil)
		if err != nil {
			return err
		}
		holder = model.OrderHolder(order.ID)

		for _, it := range items {
			if _, err := u.ledger.reserveTx(ctx, r, &ob, ReserveInput{
				ProductID: it.ProductID,
				Quantity:  it.Quantity,
				Holder:    holder,
				TTL:       u.checkoutTTL,
			}); err != nil {
				return err
			}
		}

		u.addCreatedEvent(&ob, order)
		out, err = u.buildOutput(ctx, r, order)
		return err
	})
	if err != nil {
		u.ledger.recordRejection(ctx, err, holder)
		return OrderOutput{}, toHTTPError(err)
	}

	ob.flush(ctx, u.events, u.log)
	return out, nil
}

// 明細から PENDING の注文を作る（単価は今の販売価格）
// 在庫の引当はしない（呼び出し側の責任）
func (u *OrderUsecase) CreateFromItems(ctx context.Context, userID int64, addressID int64, items []OrderItemInput) (OrderOutput, error) {
	if userID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	var (
		out OrderOutput
		ob  outbox
	)
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		if err := u.checkAddress(ctx, r, userID, addressID); err != nil {
			return err
		}
		order, _, err := u.createFromItemsTx(ctx, r, &ob, userID, addressID, items, nil)
		if err != nil {
			return err
		}
		u.addCreatedEvent(&ob, order)
		out, err = u.buildOutput(ctx, r, order)
		return err
	})
	if err != nil {
		return OrderOutput{}, toHTTPError(err)
	}

	ob.flush(ctx, u.events, u.log)
	return out, nil
}

func (u *OrderUsecase) createFromItemsTx(
	ctx context.Context,
	r repo.TxRepos,
	ob *outbox,
	userID int64,
	addressID int64,
	items []OrderItemInput,
	idempotencyKey *string,
) (model.Order, []model.OrderItem, error) {
	if len(items) == 0 {
		return model.Order{}, nil, model.ErrEmptyOrder
	}

	//同じ商品はまとめる（注文内で商品は一意）
	qtyByProduct := make(map[int64]int64, len(items))
	ids := make([]int64, 0, len(items))
	for _, it := range items {
		if it.ProductID <= 0 || it.Quantity < 1 {
			return model.Order{}, nil, NewHTTPError(http.StatusBadRequest, "invalid item")
		}
		if _, ok := qtyByProduct[it.ProductID]; !ok {
			ids = append(ids, it.ProductID)
		}
		qtyByProduct[it.ProductID] += it.Quantity
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	products, err := r.Products().FindByIDs(ctx, ids)
	if err != nil {
		return model.Order{}, nil, err
	}

	orderItems := make([]model.OrderItem, 0, len(ids))
	for _, id := range ids {
		p, ok := products[id]
		if !ok || !p.IsActive {
			return model.Order{}, nil, model.ErrProductNotFound
		}
		qty := qtyByProduct[id]
		unit := money.Round(p.CurrentPrice())
		orderItems = append(orderItems, model.OrderItem{
			ProductID:           p.ID,
			ProductNameSnapshot: p.Name,
			UnitPrice:           unit,
			Quantity:            qty,
			TotalPrice:          money.LineTotal(unit, qty),
		})
	}

	order := model.Order{
		UserID:         userID,
		AddressID:      addressID,
		Status:         model.OrderStatusPending,
		Subtotal:       money.Zero(),
		ShippingFee:    money.Zero(),
		Total:          money.Zero(),
		IdempotencyKey: idempotencyKey,
	}
	if err := r.Orders().Create(ctx, &order); err != nil {
		return model.Order{}, nil, err
	}
	if err := r.OrderItems().CreateBulk(ctx, order.ID, orderItems); err != nil {
		return model.Order{}, nil, err
	}

	order, err = u.recalculateTx(ctx, r, order)
	if err != nil {
		return model.Order{}, nil, err
	}
	return order, orderItems, nil
}

// 合計の再計算（PENDINGのときだけ）
func (u *OrderUsecase) RecalculateTotals(ctx context.Context, orderID int64) (OrderOutput, error) {
	if orderID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var out OrderOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if err != nil {
			return notFoundAs(err, model.ErrOrderNotFound)
		}
		if o.Status != model.OrderStatusPending {
			return NewHTTPError(http.StatusConflict, "order is not pending")
		}
		o, err = u.recalculateTx(ctx, r, o)
		if err != nil {
			return err
		}
		out, err = u.buildOutput(ctx, r, o)
		return err
	})
	if err != nil {
		return OrderOutput{}, toHTTPError(err)
	}
	return out, nil
}

// subtotal = 明細合計、total = クーポン適用後、送料は subtotal が閾値を超えたら 0
// 注文のクーポンはチェックアウトで使用済みなので、そのまま適用する
func (u *OrderUsecase) recalculateTx(ctx context.Context, r repo.TxRepos, o model.Order) (model.Order, error) {
	items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
	if err != nil {
		return model.Order{}, err
	}
	lineTotals := make([]decimal.Decimal, 0, len(items))
	for _, it := range items {
		lineTotals = append(lineTotals, it.TotalPrice)
	}

	var coupon *model.Coupon
	if o.CouponID != nil {
		c, err := r.Coupons().FindByID(ctx, *o.CouponID)
		if err != nil && !errors.Is(err, repo.ErrNotFound) {
			return model.Order{}, err
		}
		if err == nil {
			coupon = &c
		}
	}

	totals := model.CalculateTotals(lineTotals, coupon)
	fee := u.shipping.FeeFor(totals.Subtotal)
	if err := r.Orders().UpdateTotals(ctx, o.ID, totals.Subtotal, fee, totals.Total); err != nil {
		return model.Order{}, err
	}

	o.Subtotal = totals.Subtotal
	o.ShippingFee = fee
	o.Total = totals.Total
	return o, nil
}

// ステータス変更（管理者）
// PAIDへは販売確定、CANCELEDへは引当とクーポンの解放も行う
func (u *OrderUsecase) TransitionStatus(ctx context.Context, actorUserID int64, orderID int64, status string) (OrderOutput, error) {
	if actorUserID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if orderID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	next, ok := model.ParseOrderStatus(strings.TrimSpace(status))
	if !ok {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid status")
	}

	var (
		out OrderOutput
		ob  outbox
	)
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if err != nil {
			return notFoundAs(err, model.ErrOrderNotFound)
		}
		o, err = u.transitionTx(ctx, r, &ob, o, next, actorUserID)
		if err != nil {
			return err
		}
		out, err = u.buildOutput(ctx, r, o)
		return err
	})
	if err != nil {
		return OrderOutput{}, toHTTPError(err)
	}

	ob.flush(ctx, u.events, u.log)
	return out, nil
}

// 本人による取消（PENDING / PAID / PROCESSING のみ）
func (u *OrderUsecase) Cancel(ctx context.Context, userID int64, orderID int64) (OrderOutput, error) {
	if userID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if orderID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var (
		out OrderOutput
		ob  outbox
	)
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if err != nil {
			return notFoundAs(err, model.ErrOrderNotFound)
		}
		if o.UserID != userID {
			//他人の注文は「存在しない扱い」にする
			return model.ErrOrderNotFound
		}
		o, err = u.transitionTx(ctx, r, &ob, o, model.OrderStatusCanceled, userID)
		if err != nil {
			return err
		}
		out, err = u.buildOutput(ctx, r, o)
		return err
	})
	if err != nil {
		return OrderOutput{}, toHTTPError(err)
	}

	ob.flush(ctx, u.events, u.log)
	return out, nil
}

// 支払い完了（PENDING→PAID）。販売確定はここからだけ行う
func (u *OrderUsecase) MarkPaid(ctx context.Context, orderID int64) (OrderOutput, error) {
	if orderID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var (
		out OrderOutput
		ob  outbox
	)
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if err != nil {
			return notFoundAs(err, model.ErrOrderNotFound)
		}
		o, err = u.transitionTx(ctx, r, &ob, o, model.OrderStatusPaid, model.SystemActorID)
		if err != nil {
			return err
		}
		out, err = u.buildOutput(ctx, r, o)
		return err
	})
	if err != nil {
		return OrderOutput{}, toHTTPError(err)
	}

	ob.flush(ctx, u.events, u.log)
	return out, nil
}

// 遷移表で検査して from のときだけ更新する
func (u *OrderUsecase) transitionTx(ctx context.Context, r repo.TxRepos, ob *outbox, o model.Order, next model.OrderStatus, actorUserID int64) (model.Order, error) {
	from := o.Status
	if err := o.CanTransitionTo(next); err != nil {
		return model.Order{}, err
	}

	changed, err := r.Orders().UpdateStatus(ctx, o.ID, from, next)
	if err != nil {
		return model.Order{}, err
	}
	if !changed {
		//同時に別の変更が入った
		return model.Order{}, WrapHTTPError(http.StatusConflict, "order status changed concurrently", model.ErrInvalidStatusTransition)
	}
	o.Status = next

	switch next {
	case model.OrderStatusPaid:
		if err := u.ledger.convertToSaleTx(ctx, r, ob, o.ID); err != nil {
			return model.Order{}, err
		}
	case model.OrderStatusCanceled:
		//補償処理：引当とクーポン使用回数を戻す
		if _, err := u.ledger.releaseTx(ctx, r, ob, model.OrderHolder(o.ID)); err != nil {
			return model.Order{}, err
		}
		if o.CouponID != nil {
			if err := releaseCouponTx(ctx, r, *o.CouponID); err != nil {
				return model.Order{}, err
			}
		}
	}

	now := u.clock.Now()
	if err := r.AuditLogs().Create(ctx, model.AuditLog{
		ActorUserID:  actorUserID,
		Action:       model.AuditActionUpdateOrderStatus,
		ResourceType: model.AuditResourceOrder,
		ResourceID:   o.ID,
		BeforeJSON:   auditJSON(map[string]any{"status": from}),
		AfterJSON:    auditJSON(map[string]any{"status": next}),
		CreatedAt:    now,
	}); err != nil {
		return model.Order{}, err
	}

	ob.onCommit(func() {
		u.metrics.OrderTransitions.WithLabelValues(string(from), string(next)).Inc()
	})
	ob.add(event.TypeOrderStatusChanged, model.OrderHolder(o.ID).String(), now, event.OrderStatusChanged{
		OrderID: o.ID,
		From:    string(from),
		To:      string(next),
		ActorID: actorUserID,
	})
	return o, nil
}

func (u *OrderUsecase) ListMyOrders(ctx context.Context, userID int64) ([]OrderOutput, error) {
	if userID <= 0 {
		return []OrderOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	var outs []OrderOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, _, err := r.Orders().ListByUserID(ctx, userID, 1, 50)
		if err != nil {
			return err
		}
		outs, err = u.buildOutputs(ctx, r, orders)
		return err
	})
	if err != nil {
		return []OrderOutput{}, toHTTPError(err)
	}
	return outs, nil
}

func (u *OrderUsecase) GetMyOrderDetail(ctx context.Context, userID int64, orderID int64) (OrderOutput, error) {
	if userID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if orderID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var out OrderOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if err != nil {
			return notFoundAs(err, model.ErrOrderNotFound)
		}
		if o.UserID != userID {
			return model.ErrOrderNotFound
		}
		out, err = u.buildOutput(ctx, r, o)
		return err
	})
	if err != nil {
		return OrderOutput{}, toHTTPError(err)
	}
	return out, nil
}

// 管理者用の一覧
func (u *OrderUsecase) List(ctx context.Context, f repo.AdminOrderListFilter) ([]OrderOutput, error) {
	if f.Page < 1 {
		return []OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid page")
	}
	if f.Limit < 1 || f.Limit > 100 {
		return []OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid limit")
	}
	if f.Status != "" {
		if _, ok := model.ParseOrderStatus(f.Status); !ok {
			return []OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid status")
		}
	}

	var outs []OrderOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, _, err := r.Orders().ListAdmin(ctx, f)
		if err != nil {
			return err
		}
		outs, err = u.buildOutputs(ctx, r, orders)
		return err
	})
	if err != nil {
		return []OrderOutput{}, toHTTPError(err)
	}
	return outs, nil
}

// 住所の存在確認＋所有チェック
func (u *OrderUsecase) checkAddress(ctx context.Context, r repo.TxRepos, userID, addressID int64) error {
	if addressID <= 0 {
		return NewHTTPError(http.StatusBadRequest, "invalid address_id")
	}
	addr, err := r.Addresses().FindByID(ctx, addressID)
	if errors.Is(err, repo.ErrNotFound) {
		return NewHTTPError(http.StatusNotFound, "address not found")
	}
	if err != nil {
		return err
	}
	if addr.UserID != userID {
		return NewHTTPError(http.StatusForbidden, "forbidden")
	}
	return nil
}

func (u *OrderUsecase) addCreatedEvent(ob *outbox, o model.Order) {
	ob.add(event.TypeOrderCreated, model.OrderHolder(o.ID).String(), u.clock.Now(), event.OrderCreated{
		OrderID:  o.ID,
		UserID:   o.UserID,
		Total:    o.Total.StringFixed(money.Places),
		Shipping: o.ShippingFee.StringFixed(money.Places),
	})
}

func (u *OrderUsecase) buildOutputs(ctx context.Context, r repo.TxRepos, orders []model.Order) ([]OrderOutput, error) {
	outs := make([]OrderOutput, 0, len(orders))
	for _, o := range orders {
		out, err := u.buildOutput(ctx, r, o)
		if err != nil {
			return nil, err
		}
		outs = append(outs, out)
	}
	return outs, nil
}

func (u *OrderUsecase) buildOutput(ctx context.Context, r repo.TxRepos, o model.Order) (OrderOutput, error) {
	items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
	if err != nil {
		return OrderOutput{}, err
	}
	return toOrderOutput(o, items), nil
}

func toOrderOutput(o model.Order, items []model.OrderItem) OrderOutput {
	outItems := make([]OrderItemOutput, 0, len(items))
	for _, it := range items {
		outItems = append(outItems, OrderItemOutput{
			ProductID:  it.ProductID,
			Name:       it.ProductNameSnapshot,
			UnitPrice:  money.Round(it.UnitPrice),
			Quantity:   it.Quantity,
			TotalPrice: money.Round(it.TotalPrice),
		})
	}

	return OrderOutput{
		ID:          o.ID,
		UserID:      o.UserID,
		AddressID:   o.AddressID,
		Status:      string(o.Status),
		Subtotal:    money.Round(o.Subtotal),
		ShippingFee: money.Round(o.ShippingFee),
		Total:       money.Round(o.Total),
		GrandTotal:  o.GrandTotal(),
		CouponID:    o.CouponID,
		PaymentID:   o.PaymentID,
		CreatedAt:   o.CreatedAt,
		Items:       outItems,
	}
}
