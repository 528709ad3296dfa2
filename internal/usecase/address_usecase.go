package usecase

import (
	"context"
	"net/http"
	"strings"
	"time"

	"shop/internal/domain/model"
	repo "shop/internal/repository"
)

// 注文で使う配送先（ユーザーのもの）
type AddressDTO struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	Recipient  string    `json:"recipient"`
	PostalCode string    `json:"postal_code"`
	City       string    `json:"city"`
	Line1      string    `json:"line1"`
	CreatedAt  time.Time `json:"created_at"`
}

type AddressCreateInput struct {
	Recipient  string
	PostalCode string
	City       string
	Line1      string
}

type AddressUsecase struct {
	addresses repo.AddressRepository
}

func NewAddressUsecase(addresses repo.AddressRepository) *AddressUsecase {
	return &AddressUsecase{addresses: addresses}
}

func (u *AddressUsecase) Create(ctx context.Context, userID int64, in AddressCreateInput) (AddressDTO, error) {
	if userID <= 0 {
		return AddressDTO{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	a := model.Address{
		UserID:     userID,
		Recipient:  strings.TrimSpace(in.Recipient),
		PostalCode: strings.TrimSpace(in.PostalCode),
		City:       strings.TrimSpace(in.City),
		Line1:      strings.TrimSpace(in.Line1),
	}
	if a.Recipient == "" || a.PostalCode == "" || a.City == "" || a.Line1 == "" {
		return AddressDTO{}, NewHTTPError(http.StatusBadRequest, "invalid address")
	}

	created, err := u.addresses.Create(ctx, a)
	if err != nil {
		return AddressDTO{}, toHTTPError(err)
	}
	return toAddressDTO(created), nil
}

// 他人の住所は「存在しない扱い」
func (u *AddressUsecase) Get(ctx context.Context, userID int64, addressID int64) (AddressDTO, error) {
	if userID <= 0 {
		return AddressDTO{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if addressID <= 0 {
		return AddressDTO{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	a, err := u.addresses.FindByID(ctx, addressID)
	if err != nil {
		return AddressDTO{}, toHTTPError(err)
	}
	if a.UserID != userID {
		return AddressDTO{}, NewHTTPError(http.StatusNotFound, "not found")
	}
	return toAddressDTO(a), nil
}

func toAddressDTO(a model.Address) AddressDTO {
	return AddressDTO{
		ID:         a.ID,
		UserID:     a.UserID,
		Recipient:  a.Recipient,
		PostalCode: a.PostalCode,
		City:       a.City,
		Line1:      a.Line1,
		CreatedAt:  a.CreatedAt,
	}
}
