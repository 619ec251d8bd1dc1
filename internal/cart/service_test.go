package cart

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/safar/marketplace-orders/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	priceSQL   = `SELECT price FROM products WHERE id = \$1`
	ensureSQL  = `INSERT INTO carts`
	addItemSQL = `INSERT INTO cart_items`
	setItemSQL = `UPDATE cart_items`
	removeSQL  = `DELETE FROM cart_items WHERE owner_id = \$1 AND product_id = \$2`
)

func cartItemRows(productID int64, price string, quantity int) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "product_id", "unit_price", "quantity", "created_at"}).
		AddRow(int64(1), productID, price, quantity, time.Now())
}

func TestAddItemSnapshotsPrice(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(priceSQL).WithArgs(int64(4)).WillReturnRows(sqlmock.NewRows([]string{"price"}).AddRow("12.50"))
	mock.ExpectExec(ensureSQL).WithArgs("c1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(addItemSQL).WithArgs("c1", int64(4), "12.5", 3).WillReturnRows(cartItemRows(4, "12.50", 5))
	mock.ExpectCommit()

	item, err := NewService(db).AddItem(context.Background(), "c1", 4, 3)
	require.NoError(t, err)

	assert.Equal(t, 5, item.Quantity)
	assert.Equal(t, "12.5", item.UnitPrice.String())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAddItemUnknownProduct(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(priceSQL).WithArgs(int64(4)).WillReturnRows(sqlmock.NewRows([]string{"price"}))
	mock.ExpectRollback()

	_, err = NewService(db).AddItem(context.Background(), "c1", 4, 1)
	assert.ErrorIs(t, err, models.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAddItemRejectsBadQuantity(t *testing.T) {
	svc := NewService(nil)

	for _, qty := range []int{0, -2, MaxQuantity + 1} {
		_, err := svc.AddItem(context.Background(), "c1", 4, qty)
		assert.ErrorIs(t, err, models.ErrValidation, "quantity %d", qty)
	}

	_, err := svc.AddItem(context.Background(), "", 4, 1)
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestAddItemRejectsLineOverLimit(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(priceSQL).WithArgs(int64(4)).WillReturnRows(sqlmock.NewRows([]string{"price"}).AddRow("12.50"))
	mock.ExpectExec(ensureSQL).WithArgs("c1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(addItemSQL).WithArgs("c1", int64(4), "12.5", MaxQuantity).
		WillReturnError(&pq.Error{Code: "23514", Constraint: "cart_items_quantity_max"})
	mock.ExpectRollback()

	_, err = NewService(db).AddItem(context.Background(), "c1", 4, MaxQuantity)

	var vErr *models.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "quantity", vErr.Field)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSetQuantityZeroRemoves(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(removeSQL).WithArgs("c1", int64(4)).WillReturnResult(sqlmock.NewResult(0, 1))

	item, err := NewService(db).SetQuantity(context.Background(), "c1", 4, 0)
	require.NoError(t, err)
	assert.Nil(t, item)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSetQuantityReplaces(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(priceSQL).WithArgs(int64(4)).WillReturnRows(sqlmock.NewRows([]string{"price"}).AddRow("9.99"))
	mock.ExpectQuery(setItemSQL).WithArgs(7, "9.99", "c1", int64(4)).WillReturnRows(cartItemRows(4, "9.99", 7))
	mock.ExpectCommit()

	item, err := NewService(db).SetQuantity(context.Background(), "c1", 4, 7)
	require.NoError(t, err)
	assert.Equal(t, 7, item.Quantity)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRemoveMissingItem(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(removeSQL).WithArgs("c1", int64(4)).WillReturnResult(sqlmock.NewResult(0, 0))

	err = NewService(db).RemoveItem(context.Background(), "c1", 4)
	assert.ErrorIs(t, err, models.ErrNotFound)
}
