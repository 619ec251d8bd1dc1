package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/safar/marketplace-orders/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateOrderStatusStaleVersion(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`UPDATE orders\s+SET overall_status = \$1`).
		WithArgs(models.StatusProcessing, int64(5), 2).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = UpdateOrderStatus(context.Background(), db, 5, models.StatusProcessing, 2)
	assert.ErrorIs(t, err, models.ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrderNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT .* FROM orders o WHERE o.id = \$1`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err = GetOrder(context.Background(), db, 1)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestCursorRoundTrip(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	encoded := EncodeCursor(OrderCursor{CreatedAt: at, ID: 17})

	decoded, err := DecodeCursor(encoded)
	require.NoError(t, err)
	assert.True(t, decoded.CreatedAt.Equal(at))
	assert.Equal(t, int64(17), decoded.ID)

	_, err = DecodeCursor("%%%")
	assert.Error(t, err)
}

func TestListOrdersRejectsBadCursor(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	_, err = ListOrdersByCustomer(context.Background(), db, "u1", "not-base64!", 10)
	assert.ErrorIs(t, err, models.ErrValidation)
}
