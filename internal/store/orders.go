package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/lib/pq"
	"github.com/safar/marketplace-orders/internal/database"
	"github.com/safar/marketplace-orders/internal/models"
)

const orderColumns = `o.id, o.order_number, o.customer_id, o.shipping_address, o.payment_method,
	o.subtotal, o.shipping, o.tax, o.discount, o.total, o.overall_status,
	o.created_at, o.updated_at, o.version`

func scanOrder(row interface{ Scan(...any) error }, order *models.Order) error {
	return row.Scan(
		&order.ID,
		&order.OrderNumber,
		&order.CustomerID,
		&order.ShippingAddress,
		&order.PaymentMethod,
		&order.Subtotal,
		&order.Shipping,
		&order.Tax,
		&order.Discount,
		&order.Total,
		&order.OverallStatus,
		&order.CreatedAt,
		&order.UpdatedAt,
		&order.Version,
	)
}

// InsertOrder writes the order with all of its sub-orders and line items and
// fills in the generated ids and timestamps. Run it inside a transaction.
func InsertOrder(ctx context.Context, tx database.DBTX, order *models.Order) error {
	err := tx.QueryRowContext(ctx,
		`INSERT INTO orders (order_number, customer_id, shipping_address, payment_method,
		                     subtotal, shipping, tax, discount, total, overall_status,
		                     created_at, updated_at, version)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW(), 1)
		 RETURNING id, created_at, updated_at, version`,
		order.OrderNumber, order.CustomerID, order.ShippingAddress, order.PaymentMethod,
		order.Subtotal, order.Shipping, order.Tax, order.Discount, order.Total, order.OverallStatus,
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt, &order.Version)
	if err != nil {
		return fmt.Errorf("create order: %w", err)
	}

	position := 0
	for i := range order.SubOrders {
		so := &order.SubOrders[i]
		so.OrderID = order.ID

		err := tx.QueryRowContext(ctx,
			`INSERT INTO sub_orders (order_id, seller_id, position, subtotal, status, tracking_number, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
			 RETURNING id, created_at, updated_at`,
			order.ID, so.SellerID, i, so.Subtotal, so.Status, so.TrackingNumber,
		).Scan(&so.ID, &so.CreatedAt, &so.UpdatedAt)
		if err != nil {
			return fmt.Errorf("create sub-order: %w", err)
		}

		for j := range so.Items {
			item := &so.Items[j]
			err := tx.QueryRowContext(ctx,
				`INSERT INTO order_items (order_id, sub_order_id, product_id, seller_id, position,
				                          quantity, unit_price, line_total, created_at)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
				 RETURNING id`,
				order.ID, so.ID, item.ProductID, item.SellerID, position,
				item.Quantity, item.UnitPrice, item.LineTotal,
			).Scan(&item.ID)
			if err != nil {
				return fmt.Errorf("create order item: %w", err)
			}
			position++
		}
	}

	return nil
}

func GetOrder(ctx context.Context, db database.DBTX, id int64) (*models.Order, error) {
	return getOrder(ctx, db, id, false)
}

// LockOrder loads the order while holding its row lock, which serializes
// every status change on the same order until tx ends.
func LockOrder(ctx context.Context, tx database.DBTX, id int64) (*models.Order, error) {
	return getOrder(ctx, tx, id, true)
}

func getOrder(ctx context.Context, db database.DBTX, id int64, forUpdate bool) (*models.Order, error) {
	order := &models.Order{}

	query := `SELECT ` + orderColumns + ` FROM orders o WHERE o.id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	if err := scanOrder(db.QueryRowContext(ctx, query, id), order); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.NewNotFoundError("order", id)
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	subOrders, err := loadSubOrders(ctx, db, []int64{id})
	if err != nil {
		return nil, err
	}
	order.SubOrders = subOrders[id]

	return order, nil
}

func loadSubOrders(ctx context.Context, db database.DBTX, orderIDs []int64) (map[int64][]models.SubOrder, error) {
	result := make(map[int64][]models.SubOrder, len(orderIDs))
	if len(orderIDs) == 0 {
		return result, nil
	}

	rows, err := db.QueryContext(ctx,
		`SELECT id, order_id, seller_id, subtotal, status, tracking_number, created_at, updated_at
		 FROM sub_orders
		 WHERE order_id = ANY($1)
		 ORDER BY order_id, position`,
		pq.Array(orderIDs))
	if err != nil {
		return nil, fmt.Errorf("get sub-orders: %w", err)
	}
	defer rows.Close()

	index := make(map[int64]*models.SubOrder)
	var subOrderIDs []int64
	var ordered []models.SubOrder
	for rows.Next() {
		var so models.SubOrder
		var tracking sql.NullString
		err := rows.Scan(&so.ID, &so.OrderID, &so.SellerID, &so.Subtotal, &so.Status,
			&tracking, &so.CreatedAt, &so.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan sub-order: %w", err)
		}
		if tracking.Valid {
			so.TrackingNumber = &tracking.String
		}
		ordered = append(ordered, so)
		subOrderIDs = append(subOrderIDs, so.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	rows.Close()

	for i := range ordered {
		index[ordered[i].ID] = &ordered[i]
	}

	if len(subOrderIDs) > 0 {
		itemRows, err := db.QueryContext(ctx,
			`SELECT id, sub_order_id, product_id, seller_id, quantity, unit_price, line_total
			 FROM order_items
			 WHERE sub_order_id = ANY($1)
			 ORDER BY position`,
			pq.Array(subOrderIDs))
		if err != nil {
			return nil, fmt.Errorf("get order items: %w", err)
		}
		defer itemRows.Close()

		for itemRows.Next() {
			var item models.OrderLineItem
			var subOrderID int64
			err := itemRows.Scan(&item.ID, &subOrderID, &item.ProductID, &item.SellerID,
				&item.Quantity, &item.UnitPrice, &item.LineTotal)
			if err != nil {
				return nil, fmt.Errorf("scan order item: %w", err)
			}
			if so, ok := index[subOrderID]; ok {
				so.Items = append(so.Items, item)
			}
		}
		if err := itemRows.Err(); err != nil {
			return nil, fmt.Errorf("rows error: %w", err)
		}
	}

	for _, so := range ordered {
		result[so.OrderID] = append(result[so.OrderID], so)
	}

	return result, nil
}

// UpdateSubOrderStatus stores the new status; a nil tracking number keeps
// the current one.
func UpdateSubOrderStatus(ctx context.Context, db database.DBTX, subOrderID int64, status models.Status, trackingNumber *string) error {
	result, err := db.ExecContext(ctx,
		`UPDATE sub_orders
		 SET status = $1,
		     tracking_number = COALESCE($2, tracking_number),
		     updated_at = NOW()
		 WHERE id = $3`,
		status, trackingNumber, subOrderID)
	if err != nil {
		return fmt.Errorf("update sub-order status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return models.NewNotFoundError("sub-order", subOrderID)
	}

	return nil
}

// UpdateOrderStatus writes the recomputed overall status, guarded by the
// version the caller read.
func UpdateOrderStatus(ctx context.Context, db database.DBTX, orderID int64, status models.Status, version int) error {
	result, err := db.ExecContext(ctx,
		`UPDATE orders
		 SET overall_status = $1, version = version + 1, updated_at = NOW()
		 WHERE id = $2 AND version = $3`,
		status, orderID, version)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return &models.ConflictError{
			Resource: "order",
			ID:       strconv.FormatInt(orderID, 10),
			Err:      fmt.Errorf("version %d is stale", version),
		}
	}

	return nil
}

func ListOrdersByCustomer(ctx context.Context, db database.DBTX, customerID string, cursor string, limit int) (*CursorPage, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders o
		WHERE o.customer_id = $1
		  AND (o.created_at, o.id) < ($2, $3)
		ORDER BY o.created_at DESC, o.id DESC
		LIMIT $4`

	return listOrders(ctx, db, query, customerID, cursor, limit, "")
}

// ListOrdersBySeller returns orders containing one of the seller's
// sub-orders, restricted to those sub-orders.
func ListOrdersBySeller(ctx context.Context, db database.DBTX, sellerID string, cursor string, limit int) (*CursorPage, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders o
		JOIN sub_orders so ON so.order_id = o.id
		WHERE so.seller_id = $1
		  AND (o.created_at, o.id) < ($2, $3)
		ORDER BY o.created_at DESC, o.id DESC
		LIMIT $4`

	return listOrders(ctx, db, query, sellerID, cursor, limit, sellerID)
}

func listOrders(ctx context.Context, db database.DBTX, query, ownerID, cursor string, limit int, sellerID string) (*CursorPage, error) {
	cursorData, err := DecodeCursor(cursor)
	if err != nil {
		return nil, models.NewValidationError("cursor", err.Error())
	}

	rows, err := db.QueryContext(ctx, query, ownerID, cursorData.CreatedAt, cursorData.ID, limit+1)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := []models.Order{}
	for rows.Next() {
		var order models.Order
		if err := scanOrder(rows, &order); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	rows.Close()

	hasMore := len(orders) > limit
	if hasMore {
		orders = orders[:limit]
	}

	ids := make([]int64, len(orders))
	for i, order := range orders {
		ids[i] = order.ID
	}
	subOrders, err := loadSubOrders(ctx, db, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].SubOrders = subOrders[orders[i].ID]
		if sellerID != "" {
			orders[i] = orders[i].ForSeller(sellerID)
		}
	}

	var nextCursor string
	if hasMore && len(orders) > 0 {
		lastOrder := orders[len(orders)-1]
		nextCursor = EncodeCursor(OrderCursor{
			CreatedAt: lastOrder.CreatedAt,
			ID:        lastOrder.ID,
		})
	}

	return &CursorPage{
		Items:      orders,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}
