package validator

import (
	"regexp"

	"github.com/go-playground/validator/v10"
)

var couponCodePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{3,64}$`)

// echo.Validator の実装（リクエストDTOの validate タグを見る）
type RequestValidator struct {
	v *validator.Validate
}

func New() *RequestValidator {
	v := validator.New(validator.WithRequiredStructEnabled())

	//クーポンコード: 英数字と_-で3文字以上
	_ = v.RegisterValidation("coupon_code", func(fl validator.FieldLevel) bool {
		return couponCodePattern.MatchString(fl.Field().String())
	})

	return &RequestValidator{v: v}
}

func (rv *RequestValidator) Validate(i interface{}) error {
	return rv.v.Struct(i)
}
