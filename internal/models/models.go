package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID            int64           `json:"id"`
	SKU           string          `json:"sku"`
	Name          string          `json:"name"`
	Description   string          `json:"description,omitempty"`
	SellerID      string          `json:"seller_id"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int             `json:"stock_quantity"`
	AverageRating decimal.Decimal `json:"average_rating"`
	TotalReviews  int             `json:"total_reviews"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	Version       int             `json:"version"`
}

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// Terminal statuses accept no further transitions.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

type OrderLineItem struct {
	ID        int64           `json:"id,omitempty"`
	ProductID int64           `json:"product_id"`
	SellerID  string          `json:"seller_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

func NewOrderLineItem(productID int64, sellerID string, quantity int, unitPrice decimal.Decimal) OrderLineItem {
	return OrderLineItem{
		ProductID: productID,
		SellerID:  sellerID,
		Quantity:  quantity,
		UnitPrice: unitPrice,
		LineTotal: unitPrice.Mul(decimal.NewFromInt(int64(quantity))),
	}
}

type SubOrder struct {
	ID             int64           `json:"id"`
	OrderID        int64           `json:"order_id"`
	SellerID       string          `json:"seller_id"`
	Items          []OrderLineItem `json:"items"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	Status         Status          `json:"status"`
	TrackingNumber *string         `json:"tracking_number,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

type Order struct {
	ID              int64           `json:"id"`
	OrderNumber     string          `json:"order_number"`
	CustomerID      string          `json:"customer_id"`
	SubOrders       []SubOrder      `json:"sub_orders"`
	ShippingAddress string          `json:"shipping_address"`
	PaymentMethod   string          `json:"payment_method"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	Shipping        decimal.Decimal `json:"shipping"`
	Tax             decimal.Decimal `json:"tax"`
	Discount        decimal.Decimal `json:"discount"`
	Total           decimal.Decimal `json:"total"`
	OverallStatus   Status          `json:"overall_status"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	Version         int             `json:"version"`
}

// SubOrder returns the sub-order with the given id, or nil.
func (o *Order) SubOrder(id int64) *SubOrder {
	for i := range o.SubOrders {
		if o.SubOrders[i].ID == id {
			return &o.SubOrders[i]
		}
	}
	return nil
}

// SubOrderStatuses lists sub-order statuses in sub-order order.
func (o *Order) SubOrderStatuses() []Status {
	statuses := make([]Status, len(o.SubOrders))
	for i, so := range o.SubOrders {
		statuses[i] = so.Status
	}
	return statuses
}

// HasSeller reports whether sellerID owns one of the order's sub-orders.
func (o *Order) HasSeller(sellerID string) bool {
	for _, so := range o.SubOrders {
		if so.SellerID == sellerID {
			return true
		}
	}
	return false
}

// ForSeller returns a copy of the order restricted to sellerID's sub-orders.
func (o *Order) ForSeller(sellerID string) Order {
	view := *o
	view.SubOrders = nil
	for _, so := range o.SubOrders {
		if so.SellerID == sellerID {
			view.SubOrders = append(view.SubOrders, so)
		}
	}
	return view
}

type Rating struct {
	ID         int64     `json:"id"`
	ProductID  int64     `json:"product_id"`
	UserID     string    `json:"user_id"`
	Score      int       `json:"score"`
	ReviewText *string   `json:"review_text,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type RatingSummary struct {
	ProductID     int64           `json:"product_id"`
	AverageRating decimal.Decimal `json:"average_rating"`
	TotalReviews  int             `json:"total_reviews"`
}
