package usecase

import (
	"context"
	"errors"
	"net/http"
	"time"

	"shop/internal/domain/model"
	"shop/internal/domain/money"
	"shop/internal/infra/event"
	repo "shop/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// 明細が変わったあとに呼ぶ（親カートの合計を計算し直す）
type LineChangedHook func(ctx context.Context, r repo.TxRepos, cartID int64) error

// /cart の業務ロジック
// 明細の追加・変更・削除は在庫引当と同じTxで行う
type CartUsecase struct {
	tx      repo.TransactionManager
	ledger  *StockLedger
	clock   Clock
	cartTTL time.Duration
	events  event.Publisher
	log     *zap.Logger

	onLineChanged LineChangedHook
}

func NewCartUsecase(
	tx repo.TransactionManager,
	ledger *StockLedger,
	clock Clock,
	cartTTL time.Duration,
	events event.Publisher,
	log *zap.Logger,
) *CartUsecase {
	if cartTTL <= 0 {
		cartTTL = DefaultCartReservationTTL
	}
	if log == nil {
		log = zap.NewNop()
	}
	u := &CartUsecase{
		tx:      tx,
		ledger:  ledger,
		clock:   clock,
		cartTTL: cartTTL,
		events:  events,
		log:     log.Named("cart"),
	}
	u.onLineChanged = func(ctx context.Context, r repo.TxRepos, cartID int64) error {
		_, err := u.recalculateTx(ctx, r, cartID)
		return err
	}
	return u
}

type CartLineOutput struct {
	ID          int64           `json:"id"`
	ProductID   int64           `json:"product_id"`
	Quantity    int64           `json:"quantity"`
	PriceAtTime decimal.Decimal `json:"price_at_time"`
	TotalPrice  decimal.Decimal `json:"total_price"`
}

type CartOutput struct {
	ID         int64            `json:"id"`
	UserID     int64            `json:"user_id"`
	Lines      []CartLineOutput `json:"lines"`
	Subtotal   decimal.Decimal  `json:"subtotal"`
	Discount   decimal.Decimal  `json:"discount"`
	Total      decimal.Decimal  `json:"total"`
	CouponCode string           `json:"coupon_code,omitempty"`
}

type AddOrUpdateLineInput struct {
	ProductID int64
	Quantity  int64
}

// カート取得（無ければ空で作る）
func (u *CartUsecase) GetCart(ctx context.Context, userID int64) (CartOutput, error) {
	if userID <= 0 {
		return CartOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	var out CartOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		cart, err := r.Carts().GetOrCreateByUserID(ctx, userID)
		if err != nil {
			return err
		}
		out, err = u.buildOutput(ctx, r, cart.ID)
		return err
	})
	if err != nil {
		return CartOutput{}, toHTTPError(err)
	}
	return out, nil
}

// 明細の数量を quantity にする（無ければ追加）
// 自分の既存引当は除いて販売可能在庫と比べる
func (u *CartUsecase) AddOrUpdateLine(ctx context.Context, userID int64, in AddOrUpdateLineInput) (CartOutput, error) {
	if userID <= 0 {
		return CartOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if in.ProductID <= 0 {
		return CartOutput{}, NewHTTPError(http.StatusBadRequest, "invalid product_id")
	}
	if in.Quantity < 1 {
		return CartOutput{}, NewHTTPError(http.StatusBadRequest, "invalid quantity")
	}

	var (
		out    CartOutput
		ob     outbox
		holder model.Holder
	)
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		cart, err := r.Carts().GetOrCreateByUserID(ctx, userID)
		if err != nil {
			return err
		}

		p, err := r.Products().FindByID(ctx, in.ProductID)
		if err != nil {
			return notFoundAs(err, model.ErrProductNotFound)
		}
		if !p.IsActive {
			return model.ErrProductNotFound
		}

		item, err := r.CartItems().FindByCartAndProduct(ctx, cart.ID, in.ProductID)
		isNew := errors.Is(err, repo.ErrNotFound)
		if err != nil && !isNew {
			return err
		}

		if isNew {
			item = model.CartItem{CartID: cart.ID, ProductID: p.ID}
			item.Reprice(in.Quantity, p.CurrentPrice())
			if err := r.CartItems().Create(ctx, &item); err != nil {
				return err
			}
		}
		holder = model.CartLineHolder(item.ID)

		needReserve := isNew || item.Quantity != in.Quantity
		if !needReserve {
			//数量が同じでも引当が切れていれば取り直す
			live, err := u.hasLiveReservation(ctx, r, holder)
			if err != nil {
				return err
			}
			needReserve = !live
		}
		if needReserve {
			if _, err := u.ledger.reserveTx(ctx, r, &ob, ReserveInput{
				ProductID: p.ID,
				Quantity:  in.Quantity,
				Holder:    holder,
				TTL:       u.cartTTL,
			}); err != nil {
				return err
			}
		}

		if !isNew {
			item.Reprice(in.Quantity, p.CurrentPrice())
			if err := r.CartItems().Save(ctx, item); err != nil {
				return err
			}
		}

		if err := u.onLineChanged(ctx, r, cart.ID); err != nil {
			return err
		}
		out, err = u.buildOutput(ctx, r, cart.ID)
		return err
	})
	if err != nil {
		u.ledger.recordRejection(ctx, err, holder)
		return CartOutput{}, toHTTPError(err)
	}

	ob.flush(ctx, u.events, u.log)
	return out, nil
}

// 明細を削除（引当も解放）
func (u *CartUsecase) RemoveLine(ctx context.Context, userID int64, productID int64) (CartOutput, error) {
	if userID <= 0 {
		return CartOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if productID <= 0 {
		return CartOutput{}, NewHTTPError(http.StatusBadRequest, "invalid product_id")
	}

	var (
		out CartOutput
		ob  outbox
	)
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		cart, err := r.Carts().LockByUserID(ctx, userID)
		if err != nil {
			return notFoundAs(err, model.ErrCartLineNotFound)
		}
		item, err := r.CartItems().FindByCartAndProduct(ctx, cart.ID, productID)
		if err != nil {
			return notFoundAs(err, model.ErrCartLineNotFound)
		}

		if _, err := u.ledger.releaseTx(ctx, r, &ob, model.CartLineHolder(item.ID)); err != nil {
			return err
		}
		if err := r.CartItems().DeleteByID(ctx, item.ID); err != nil {
			return err
		}

		if err := u.onLineChanged(ctx, r, cart.ID); err != nil {
			return err
		}
		out, err = u.buildOutput(ctx, r, cart.ID)
		return err
	})
	if err != nil {
		return CartOutput{}, toHTTPError(err)
	}

	ob.flush(ctx, u.events, u.log)
	return out, nil
}

// 全明細を削除（引当も全部解放）
func (u *CartUsecase) Clear(ctx context.Context, userID int64) (CartOutput, error) {
	if userID <= 0 {
		return CartOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	var (
		out CartOutput
		ob  outbox
	)
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		cart, err := r.Carts().GetOrCreateByUserID(ctx, userID)
		if err != nil {
			return err
		}

		items, err := r.CartItems().ListByCartID(ctx, cart.ID)
		if err != nil {
			return err
		}
		for _, it := range items {
			if _, err := u.ledger.releaseTx(ctx, r, &ob, model.CartLineHolder(it.ID)); err != nil {
				return err
			}
		}
		if err := r.CartItems().DeleteByCartID(ctx, cart.ID); err != nil {
			return err
		}

		if err := u.onLineChanged(ctx, r, cart.ID); err != nil {
			return err
		}
		out, err = u.buildOutput(ctx, r, cart.ID)
		return err
	})
	if err != nil {
		return CartOutput{}, toHTTPError(err)
	}

	ob.flush(ctx, u.events, u.log)
	return out, nil
}

// クーポンを付ける（空文字なら外す）
func (u *CartUsecase) ApplyCoupon(ctx context.Context, userID int64, code string) (CartOutput, error) {
	if userID <= 0 {
		return CartOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	code = model.NormalizeCouponCode(code)

	var out CartOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		cart, err := r.Carts().GetOrCreateByUserID(ctx, userID)
		if err != nil {
			return err
		}

		var couponID *int64
		if code != "" {
			c, err := r.Coupons().FindByCode(ctx, code)
			if err != nil {
				return notFoundAs(err, model.ErrCouponNotFound)
			}
			if c.IsExhausted() {
				return model.ErrCouponExhausted
			}
			if !c.CanBeUsed(u.clock.Now()) {
				return model.ErrCouponInvalid
			}
			couponID = &c.ID
		}

		if err := r.Carts().SetCoupon(ctx, cart.ID, couponID); err != nil {
			return err
		}
		if _, err := u.recalculateTx(ctx, r, cart.ID); err != nil {
			return err
		}
		out, err = u.buildOutput(ctx, r, cart.ID)
		return err
	})
	if err != nil {
		return CartOutput{}, toHTTPError(err)
	}
	return out, nil
}

// 合計の再計算（管理用）
func (u *CartUsecase) RecalculateTotals(ctx context.Context, cartID int64) (CartOutput, error) {
	if cartID <= 0 {
		return CartOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var out CartOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		if _, err := r.Carts().LockByID(ctx, cartID); err != nil {
			return err
		}
		if _, err := u.recalculateTx(ctx, r, cartID); err != nil {
			return err
		}
		var err error
		out, err = u.buildOutput(ctx, r, cartID)
		return err
	})
	if err != nil {
		return CartOutput{}, toHTTPError(err)
	}
	return out, nil
}

// subtotal = 明細合計、total = 使えるクーポンがあれば割引後、無ければ subtotal
func (u *CartUsecase) recalculateTx(ctx context.Context, r repo.TxRepos, cartID int64) (model.Totals, error) {
	cart, err := r.Carts().FindByID(ctx, cartID)
	if err != nil {
		return model.Totals{}, err
	}
	items, err := r.CartItems().ListByCartID(ctx, cartID)
	if err != nil {
		return model.Totals{}, err
	}

	coupon, err := u.usableCoupon(ctx, r, cart)
	if err != nil {
		return model.Totals{}, err
	}

	totals := model.CalculateTotals(cartLineTotals(items), coupon)
	if err := r.Carts().UpdateTotals(ctx, cartID, totals.Subtotal, totals.Total); err != nil {
		return model.Totals{}, err
	}
	return totals, nil
}

// 付いているクーポンが今使えなければ nil（割引なしに戻す）
func (u *CartUsecase) usableCoupon(ctx context.Context, r repo.TxRepos, cart model.Cart) (*model.Coupon, error) {
	if cart.CouponID == nil {
		return nil, nil
	}
	c, err := r.Coupons().FindByID(ctx, *cart.CouponID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !c.CanBeUsed(u.clock.Now()) {
		u.log.Debug("cart coupon no longer usable", zap.Int64("cart_id", cart.ID), zap.String("code", c.Code))
		return nil, nil
	}
	return &c, nil
}

func (u *CartUsecase) hasLiveReservation(ctx context.Context, r repo.TxRepos, holder model.Holder) (bool, error) {
	list, err := r.Reservations().ListByHolder(ctx, holder, model.ReservationReserved)
	if err != nil {
		return false, err
	}
	now := u.clock.Now()
	for _, res := range list {
		if res.IsActive(now) {
			return true, nil
		}
	}
	return false, nil
}

func (u *CartUsecase) buildOutput(ctx context.Context, r repo.TxRepos, cartID int64) (CartOutput, error) {
	cart, err := r.Carts().FindByID(ctx, cartID)
	if err != nil {
		return CartOutput{}, err
	}
	items, err := r.CartItems().ListByCartID(ctx, cartID)
	if err != nil {
		return CartOutput{}, err
	}

	out := CartOutput{
		ID:       cart.ID,
		UserID:   cart.UserID,
		Lines:    make([]CartLineOutput, 0, len(items)),
		Subtotal: money.Round(cart.Subtotal),
		Total:    money.Round(cart.Total),
		Discount: money.Round(cart.Subtotal.Sub(cart.Total)),
	}
	for _, it := range items {
		out.Lines = append(out.Lines, CartLineOutput{
			ID:          it.ID,
			ProductID:   it.ProductID,
			Quantity:    it.Quantity,
			PriceAtTime: money.Round(it.PriceAtTime),
			TotalPrice:  money.Round(it.TotalPrice),
		})
	}

	if cart.CouponID != nil {
		c, err := r.Coupons().FindByID(ctx, *cart.CouponID)
		if err == nil {
			out.CouponCode = c.Code
		} else if !errors.Is(err, repo.ErrNotFound) {
			return CartOutput{}, err
		}
	}
	return out, nil
}

func cartLineTotals(items []model.CartItem) []decimal.Decimal {
	out := make([]decimal.Decimal, 0, len(items))
	for _, it := range items {
		out = append(out, it.TotalPrice)
	}
	return out
}
