package orders

import (
	"github.com/safar/marketplace-orders/internal/models"
	"github.com/shopspring/decimal"
)

type SellerGroup struct {
	SellerID string
	Items    []models.OrderLineItem
	Subtotal decimal.Decimal
}

// Partition groups line items by seller. Groups appear in the order their
// seller is first seen and items keep their input order within a group.
func Partition(items []models.OrderLineItem) []SellerGroup {
	index := make(map[string]int)
	var groups []SellerGroup

	for _, item := range items {
		i, ok := index[item.SellerID]
		if !ok {
			i = len(groups)
			index[item.SellerID] = i
			groups = append(groups, SellerGroup{SellerID: item.SellerID, Subtotal: decimal.Zero})
		}
		groups[i].Items = append(groups[i].Items, item)
		groups[i].Subtotal = groups[i].Subtotal.Add(item.LineTotal)
	}

	return groups
}
