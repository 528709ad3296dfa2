package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	repo "shop/internal/repository"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockCartRepository(t *testing.T) (*CartGormRepository, sqlmock.Sqlmock, *sql.DB) {
	gormDB, mock, mockDB := newMockGormDB(t)
	return NewCartGormRepository(gormDB), mock, mockDB
}

func cartRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "user_id", "subtotal", "total"}).
		AddRow(3, 42, "20.00", "18.00")
}

// カートを触る処理は必ず行ロックから入る
func TestCart_LockByUserID_ForUpdate(t *testing.T) {
	t.Run("locks the row", func(t *testing.T) {
		r, mock, mockDB := newMockCartRepository(t)
		defer mockDB.Close()

		mock.ExpectQuery(`SELECT \* FROM "carts" WHERE user_id = \$1 .*FOR UPDATE`).
			WithArgs(int64(42), sqlmock.AnyArg()).
			WillReturnRows(cartRows())

		cart, err := r.LockByUserID(context.Background(), 42)
		require.NoError(t, err)
		assert.Equal(t, int64(3), cart.ID)
		assert.Equal(t, "18.00", cart.Total.StringFixed(2))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		r, mock, mockDB := newMockCartRepository(t)
		defer mockDB.Close()

		mock.ExpectQuery(`SELECT \* FROM "carts" WHERE user_id = \$1 .*FOR UPDATE`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		_, err := r.LockByUserID(context.Background(), 42)
		assert.True(t, errors.Is(err, repo.ErrNotFound))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestCart_LockByID_ForUpdate(t *testing.T) {
	r, mock, mockDB := newMockCartRepository(t)
	defer mockDB.Close()

	mock.ExpectQuery(`SELECT \* FROM "carts" WHERE id = \$1 .*FOR UPDATE`).
		WithArgs(int64(3), sqlmock.AnyArg()).
		WillReturnRows(cartRows())

	cart, err := r.LockByID(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, int64(42), cart.UserID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// 既存カートは作らずにロックして返す
func TestCart_GetOrCreateByUserID_LocksExisting(t *testing.T) {
	r, mock, mockDB := newMockCartRepository(t)
	defer mockDB.Close()

	mock.ExpectQuery(`SELECT \* FROM "carts" WHERE user_id = \$1 .*FOR UPDATE`).
		WithArgs(int64(42), sqlmock.AnyArg()).
		WillReturnRows(cartRows())

	cart, err := r.GetOrCreateByUserID(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, int64(3), cart.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
