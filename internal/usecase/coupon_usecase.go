package usecase

import (
	"context"
	"errors"
	"net/http"
	"time"

	"shop/internal/domain/model"
	"shop/internal/domain/money"
	repo "shop/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type CouponUsecase struct {
	tx    repo.TransactionManager
	clock Clock
	log   *zap.Logger
}

func NewCouponUsecase(tx repo.TransactionManager, clock Clock, log *zap.Logger) *CouponUsecase {
	if log == nil {
		log = zap.NewNop()
	}
	return &CouponUsecase{tx: tx, clock: clock, log: log.Named("coupon")}
}

type CreateCouponInput struct {
	Code               string
	DiscountValue      string
	DiscountPercentage int64
	MaxUses            int64
	ValidUntil         time.Time
	Active             *bool
}

type CouponOutput struct {
	ID                 int64           `json:"id"`
	Code               string          `json:"code"`
	DiscountValue      decimal.Decimal `json:"discount_value"`
	DiscountPercentage int64           `json:"discount_percentage"`
	DiscountDisplay    string          `json:"discount_display"`
	MaxUses            int64           `json:"max_uses"`
	CurrentUses        int64           `json:"current_uses"`
	ValidUntil         time.Time       `json:"valid_until"`
	Active             bool            `json:"active"`
}

type ValidateCouponOutput struct {
	Code            string           `json:"code"`
	DiscountDisplay string           `json:"discount_display"`
	Valid           bool             `json:"valid"`
	Usable          bool             `json:"usable"`
	OriginalAmount  *decimal.Decimal `json:"original_amount,omitempty"`
	Discount        *decimal.Decimal `json:"discount,omitempty"`
	FinalAmount     *decimal.Decimal `json:"final_amount,omitempty"`
}

// クーポン作成（管理者）
func (u *CouponUsecase) Create(ctx context.Context, actorAdminUserID int64, in CreateCouponInput) (CouponOutput, error) {
	if actorAdminUserID <= 0 {
		return CouponOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	value := money.Zero()
	if in.DiscountValue != "" {
		v, err := money.Parse(in.DiscountValue)
		if err != nil {
			return CouponOutput{}, NewHTTPError(http.StatusBadRequest, "invalid discount_value")
		}
		value = v
	}

	active := true
	if in.Active != nil {
		active = *in.Active
	}

	c := model.Coupon{
		Code:               model.NormalizeCouponCode(in.Code),
		DiscountValue:      value,
		DiscountPercentage: in.DiscountPercentage,
		MaxUses:            in.MaxUses,
		ValidUntil:         in.ValidUntil.UTC(),
		Active:             active,
	}
	now := u.clock.Now()
	if err := c.Validate(now); err != nil {
		return CouponOutput{}, WrapHTTPError(http.StatusBadRequest, err.Error(), model.ErrCouponInvalid)
	}

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		_, err := r.Coupons().FindByCode(ctx, c.Code)
		if err == nil {
			return NewHTTPError(http.StatusConflict, "coupon code already exists")
		}
		if !errors.Is(err, repo.ErrNotFound) {
			return err
		}

		if err := r.Coupons().Create(ctx, &c); err != nil {
			return err
		}

		return r.AuditLogs().Create(ctx, model.AuditLog{
			ActorUserID:  actorAdminUserID,
			Action:       model.AuditActionCreateCoupon,
			ResourceType: model.AuditResourceCoupon,
			ResourceID:   c.ID,
			BeforeJSON:   "{}",
			AfterJSON:    auditJSON(toCouponOutput(c)),
			CreatedAt:    now,
		})
	})
	if err != nil {
		return CouponOutput{}, toHTTPError(err)
	}

	u.log.Info("coupon created", zap.String("code", c.Code), zap.Int64("admin_user_id", actorAdminUserID))
	return toCouponOutput(c), nil
}

// コードの確認（amountがあれば割引後の金額も返す）
func (u *CouponUsecase) Validate(ctx context.Context, code string, amount *decimal.Decimal) (ValidateCouponOutput, error) {
	code = model.NormalizeCouponCode(code)
	if code == "" {
		return ValidateCouponOutput{}, NewHTTPError(http.StatusBadRequest, "invalid code")
	}
	if amount != nil && amount.IsNegative() {
		return ValidateCouponOutput{}, NewHTTPError(http.StatusBadRequest, "invalid amount")
	}

	var c model.Coupon
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		c, err = r.Coupons().FindByCode(ctx, code)
		return notFoundAs(err, model.ErrCouponNotFound)
	})
	if err != nil {
		return ValidateCouponOutput{}, toHTTPError(err)
	}

	now := u.clock.Now()
	out := ValidateCouponOutput{
		Code:            c.Code,
		DiscountDisplay: c.DiscountDisplay(),
		Valid:           c.IsValid(now),
		Usable:          c.CanBeUsed(now),
	}
	if amount != nil {
		original := money.Round(*amount)
		discount := money.Zero()
		final := original
		if out.Usable {
			discount = c.Discount(original)
			final = c.ApplyDiscount(original)
		}
		out.OriginalAmount = &original
		out.Discount = &discount
		out.FinalAmount = &final
	}
	return out, nil
}

// 今使えるクーポン
func (u *CouponUsecase) ListActive(ctx context.Context) ([]CouponOutput, error) {
	var list []model.Coupon
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		list, err = r.Coupons().ListActive(ctx, u.clock.Now())
		return err
	})
	if err != nil {
		return []CouponOutput{}, toHTTPError(err)
	}

	outs := make([]CouponOutput, 0, len(list))
	for _, c := range list {
		outs = append(outs, toCouponOutput(c))
	}
	return outs, nil
}

func toCouponOutput(c model.Coupon) CouponOutput {
	return CouponOutput{
		ID:                 c.ID,
		Code:               c.Code,
		DiscountValue:      money.Round(c.DiscountValue),
		DiscountPercentage: c.DiscountPercentage,
		DiscountDisplay:    c.DiscountDisplay(),
		MaxUses:            c.MaxUses,
		CurrentUses:        c.CurrentUses,
		ValidUntil:         c.ValidUntil,
		Active:             c.Active,
	}
}

// クーポンを1回使う（ロックして model.Coupon.Use で判定、回数は比較付きで保存）
// 使えなかったら false（割引なしで続ける）
func useCouponTx(ctx context.Context, r repo.TxRepos, couponID int64, now time.Time) (bool, error) {
	c, err := r.Coupons().LockByID(ctx, couponID)
	if errors.Is(err, repo.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	from := c.CurrentUses
	if !c.Use(now) {
		return false, nil
	}
	return r.Coupons().UpdateUses(ctx, c.ID, from, c.CurrentUses)
}

// 使用回数を1戻す（キャンセル時、model.Coupon.Release で0未満にしない）
func releaseCouponTx(ctx context.Context, r repo.TxRepos, couponID int64) error {
	c, err := r.Coupons().LockByID(ctx, couponID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	from := c.CurrentUses
	c.Release()
	if c.CurrentUses == from {
		return nil
	}
	_, err = r.Coupons().UpdateUses(ctx, c.ID, from, c.CurrentUses)
	return err
}
