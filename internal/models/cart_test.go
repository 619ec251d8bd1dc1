package models

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCartTotals(t *testing.T) {
	cart := Cart{
		OwnerID: "u1",
		Items: []CartItem{
			{ProductID: 1, UnitPrice: decimal.RequireFromString("10.00"), Quantity: 2},
			{ProductID: 2, UnitPrice: decimal.RequireFromString("49.99"), Quantity: 1},
		},
	}

	assert.True(t, cart.Total().Equal(decimal.RequireFromString("69.99")))
	assert.Equal(t, 3, cart.ItemCount())
	assert.False(t, cart.IsEmpty())
}

func TestEmptyCart(t *testing.T) {
	var cart Cart

	assert.True(t, cart.Total().IsZero())
	assert.Equal(t, 0, cart.ItemCount())
	assert.True(t, cart.IsEmpty())

	data, err := json.Marshal(cart)
	require.NoError(t, err)
	assert.JSONEq(t, `{"owner_id":"","items":[],"total":"0","item_count":0}`, string(data))
}

func TestOrderSellerView(t *testing.T) {
	order := Order{
		ID: 1,
		SubOrders: []SubOrder{
			{ID: 10, SellerID: "s1", Status: StatusPending},
			{ID: 11, SellerID: "s2", Status: StatusShipped},
		},
	}

	assert.True(t, order.HasSeller("s2"))
	assert.False(t, order.HasSeller("s3"))
	assert.Equal(t, []Status{StatusPending, StatusShipped}, order.SubOrderStatuses())

	view := order.ForSeller("s2")
	require.Len(t, view.SubOrders, 1)
	assert.Equal(t, int64(11), view.SubOrders[0].ID)
	assert.Len(t, order.SubOrders, 2)

	assert.Nil(t, order.SubOrder(99))
	assert.Equal(t, "s1", order.SubOrder(10).SellerID)
}
