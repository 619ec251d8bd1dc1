package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/safar/marketplace-orders/internal/database"
	"github.com/safar/marketplace-orders/internal/models"
	"github.com/shopspring/decimal"
)

// EnsureCart creates the owner's cart on first mutation.
func EnsureCart(ctx context.Context, db database.DBTX, ownerID string) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO carts (owner_id, created_at, updated_at)
		 VALUES ($1, NOW(), NOW())
		 ON CONFLICT (owner_id) DO UPDATE SET updated_at = NOW()`,
		ownerID)
	if err != nil {
		return fmt.Errorf("ensure cart: %w", err)
	}
	return nil
}

// AddCartItem inserts the item or accumulates its quantity, refreshing the
// price snapshot either way.
func AddCartItem(ctx context.Context, db database.DBTX, ownerID string, productID int64, quantity int, unitPrice decimal.Decimal) (*models.CartItem, error) {
	item := &models.CartItem{}

	err := db.QueryRowContext(ctx,
		`INSERT INTO cart_items (owner_id, product_id, unit_price, quantity, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, NOW(), NOW())
		 ON CONFLICT (owner_id, product_id) DO UPDATE
		 SET quantity = cart_items.quantity + EXCLUDED.quantity,
		     unit_price = EXCLUDED.unit_price,
		     updated_at = NOW()
		 RETURNING id, product_id, unit_price, quantity, created_at`,
		ownerID, productID, unitPrice, quantity).Scan(
		&item.ID,
		&item.ProductID,
		&item.UnitPrice,
		&item.Quantity,
		&item.AddedAt,
	)
	if err != nil {
		if database.IsCheckViolation(err) {
			return nil, models.NewValidationError("quantity", "exceeds the per-line limit")
		}
		return nil, fmt.Errorf("add cart item: %w", err)
	}

	return item, nil
}

func SetCartItemQuantity(ctx context.Context, db database.DBTX, ownerID string, productID int64, quantity int, unitPrice decimal.Decimal) (*models.CartItem, error) {
	item := &models.CartItem{}

	err := db.QueryRowContext(ctx,
		`UPDATE cart_items
		 SET quantity = $1, unit_price = $2, updated_at = NOW()
		 WHERE owner_id = $3 AND product_id = $4
		 RETURNING id, product_id, unit_price, quantity, created_at`,
		quantity, unitPrice, ownerID, productID).Scan(
		&item.ID,
		&item.ProductID,
		&item.UnitPrice,
		&item.Quantity,
		&item.AddedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.NewNotFoundError("cart item", productID)
		}
		if database.IsCheckViolation(err) {
			return nil, models.NewValidationError("quantity", "exceeds the per-line limit")
		}
		return nil, fmt.Errorf("set cart item quantity: %w", err)
	}

	return item, nil
}

func RemoveCartItem(ctx context.Context, db database.DBTX, ownerID string, productID int64) error {
	result, err := db.ExecContext(ctx,
		`DELETE FROM cart_items WHERE owner_id = $1 AND product_id = $2`,
		ownerID, productID)
	if err != nil {
		return fmt.Errorf("remove cart item: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return models.NewNotFoundError("cart item", productID)
	}

	return nil
}

// GetCart returns the owner's items in insertion order. A missing cart is
// returned as an empty one.
func GetCart(ctx context.Context, db database.DBTX, ownerID string) (*models.Cart, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, product_id, unit_price, quantity, created_at
		 FROM cart_items
		 WHERE owner_id = $1
		 ORDER BY id`,
		ownerID)
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}
	defer rows.Close()

	cart := &models.Cart{OwnerID: ownerID}
	for rows.Next() {
		var item models.CartItem
		if err := rows.Scan(&item.ID, &item.ProductID, &item.UnitPrice, &item.Quantity, &item.AddedAt); err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		cart.Items = append(cart.Items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return cart, nil
}

// ClearCart empties the cart but keeps the cart itself.
func ClearCart(ctx context.Context, db database.DBTX, ownerID string) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM cart_items WHERE owner_id = $1`, ownerID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

// LockCart holds the owner's cart row until tx ends. Cart mutations that
// upsert the cart row wait behind it. A missing cart locks nothing.
func LockCart(ctx context.Context, tx database.DBTX, ownerID string) error {
	if _, err := tx.ExecContext(ctx,
		`SELECT owner_id FROM carts WHERE owner_id = $1 FOR UPDATE`, ownerID); err != nil {
		return fmt.Errorf("lock cart: %w", err)
	}
	return nil
}

// DeleteCartItems removes exactly the given items, matched on id and
// quantity, and reports how many rows went. Items changed or removed since
// they were read are left alone, so callers compare the count with
// len(items).
func DeleteCartItems(ctx context.Context, db database.DBTX, ownerID string, items []models.CartItem) (int64, error) {
	ids := make([]int64, len(items))
	quantities := make([]int64, len(items))
	for i, item := range items {
		ids[i] = item.ID
		quantities[i] = int64(item.Quantity)
	}

	result, err := db.ExecContext(ctx,
		`DELETE FROM cart_items
		 WHERE owner_id = $1
		   AND (id, quantity) IN (
		       SELECT id, quantity FROM unnest($2::bigint[], $3::integer[]) AS snapshot(id, quantity))`,
		ownerID, pq.Array(ids), pq.Array(quantities))
	if err != nil {
		return 0, fmt.Errorf("delete cart items: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}
	return rowsAffected, nil
}
