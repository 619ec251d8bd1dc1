package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// CartItem carries the unit price captured when the item was last added or
// updated, not the current catalog price.
type CartItem struct {
	ID        int64           `json:"id"`
	ProductID int64           `json:"product_id"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	AddedAt   time.Time       `json:"added_at"`
}

func (i CartItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Cart items are kept in insertion order and are unique by ProductID.
type Cart struct {
	OwnerID string     `json:"owner_id"`
	Items   []CartItem `json:"items"`
}

func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.LineTotal())
	}
	return total
}

func (c *Cart) ItemCount() int {
	count := 0
	for _, item := range c.Items {
		count += item.Quantity
	}
	return count
}

func (c Cart) MarshalJSON() ([]byte, error) {
	items := c.Items
	if items == nil {
		items = []CartItem{}
	}
	return json.Marshal(struct {
		OwnerID   string          `json:"owner_id"`
		Items     []CartItem      `json:"items"`
		Total     decimal.Decimal `json:"total"`
		ItemCount int             `json:"item_count"`
	}{
		OwnerID:   c.OwnerID,
		Items:     items,
		Total:     c.Total(),
		ItemCount: c.ItemCount(),
	})
}
