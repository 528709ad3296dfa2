package usecase_test

import (
	"context"
	"net/http"
	"testing"

	infraRepo "shop/internal/infra/repository"
	"shop/internal/testutil"
	"shop/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddress_CreateAndGet(t *testing.T) {
	gdb := testutil.NewDB(t)
	uc := usecase.NewAddressUsecase(infraRepo.NewAddressGormRepository(gdb))
	ctx := context.Background()

	created, err := uc.Create(ctx, userID, usecase.AddressCreateInput{
		Recipient:  " Taro ",
		PostalCode: "150-0001",
		City:       "Shibuya",
		Line1:      "1-2-3",
	})
	require.NoError(t, err)
	assert.Equal(t, "Taro", created.Recipient)
	assert.Equal(t, userID, created.UserID)

	got, err := uc.Get(ctx, userID, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	_, err = uc.Get(ctx, userID+1, created.ID)
	assertStatus(t, http.StatusNotFound, err)

	_, err = uc.Get(ctx, userID, 9999)
	assertStatus(t, http.StatusNotFound, err)

	_, err = uc.Create(ctx, userID, usecase.AddressCreateInput{Recipient: "x"})
	assertStatus(t, http.StatusBadRequest, err)
}
