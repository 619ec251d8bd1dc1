package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/safar/marketplace-orders/internal/database"
	"github.com/safar/marketplace-orders/internal/models"
	"github.com/shopspring/decimal"
)

type CreateProductParams struct {
	SKU         string
	Name        string
	Description string
	SellerID    string
	Price       decimal.Decimal
	Stock       int
}

const productColumns = `id, sku, name, description, seller_id, price, stock_quantity,
	average_rating, total_reviews, created_at, updated_at, version`

func scanProduct(row interface{ Scan(...any) error }, product *models.Product) error {
	return row.Scan(
		&product.ID,
		&product.SKU,
		&product.Name,
		&product.Description,
		&product.SellerID,
		&product.Price,
		&product.StockQuantity,
		&product.AverageRating,
		&product.TotalReviews,
		&product.CreatedAt,
		&product.UpdatedAt,
		&product.Version,
	)
}

func CreateProduct(ctx context.Context, db database.DBTX, params CreateProductParams) (*models.Product, error) {
	product := &models.Product{}

	query := `
		INSERT INTO products (sku, name, description, seller_id, price, stock_quantity, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW(), 1)
		RETURNING ` + productColumns

	err := scanProduct(db.QueryRowContext(ctx, query,
		params.SKU, params.Name, params.Description, params.SellerID, params.Price, params.Stock), product)
	if err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}

	return product, nil
}

func GetProduct(ctx context.Context, db database.DBTX, id int64) (*models.Product, error) {
	product := &models.Product{}

	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	err := scanProduct(db.QueryRowContext(ctx, query, id), product)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.NewNotFoundError("product", id)
		}
		return nil, fmt.Errorf("get product: %w", err)
	}

	return product, nil
}

func GetPrice(ctx context.Context, db database.DBTX, id int64) (decimal.Decimal, error) {
	var price decimal.Decimal
	err := db.QueryRowContext(ctx, `SELECT price FROM products WHERE id = $1`, id).Scan(&price)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, models.NewNotFoundError("product", id)
		}
		return decimal.Zero, fmt.Errorf("get price: %w", err)
	}
	return price, nil
}

func GetAvailableStock(ctx context.Context, db database.DBTX, id int64) (int, error) {
	var stock int
	err := db.QueryRowContext(ctx, `SELECT stock_quantity FROM products WHERE id = $1`, id).Scan(&stock)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, models.NewNotFoundError("product", id)
		}
		return 0, fmt.Errorf("get available stock: %w", err)
	}
	return stock, nil
}

// DecrementStock is the atomic compare-and-decrement primitive: the row is
// only updated when enough stock remains, in one statement. It reports
// false when the guard rejected the update or the product does not exist.
func DecrementStock(ctx context.Context, db database.DBTX, productID int64, quantity int) (string, bool, error) {
	var sellerID string
	err := db.QueryRowContext(ctx,
		`UPDATE products
		 SET stock_quantity = stock_quantity - $1,
		     updated_at = NOW(),
		     version = version + 1
		 WHERE id = $2
		   AND stock_quantity >= $1
		 RETURNING seller_id`,
		quantity, productID).Scan(&sellerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("decrement stock: %w", err)
	}

	return sellerID, true, nil
}

func IncrementStock(ctx context.Context, db database.DBTX, productID int64, quantity int) error {
	result, err := db.ExecContext(ctx,
		`UPDATE products
		 SET stock_quantity = stock_quantity + $1,
		     updated_at = NOW(),
		     version = version + 1
		 WHERE id = $2`,
		quantity, productID)
	if err != nil {
		return fmt.Errorf("increment stock: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return models.NewNotFoundError("product", productID)
	}

	return nil
}

// LockProduct takes a row lock on the product for the rest of tx.
func LockProduct(ctx context.Context, tx database.DBTX, productID int64) error {
	var id int64
	err := tx.QueryRowContext(ctx, `SELECT id FROM products WHERE id = $1 FOR UPDATE`, productID).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.NewNotFoundError("product", productID)
		}
		return fmt.Errorf("lock product: %w", err)
	}
	return nil
}

func UpdateRatingSummary(ctx context.Context, db database.DBTX, summary models.RatingSummary) error {
	result, err := db.ExecContext(ctx,
		`UPDATE products
		 SET average_rating = $1,
		     total_reviews = $2,
		     updated_at = NOW()
		 WHERE id = $3`,
		summary.AverageRating, summary.TotalReviews, summary.ProductID)
	if err != nil {
		return fmt.Errorf("update rating summary: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return models.NewNotFoundError("product", summary.ProductID)
	}

	return nil
}

func ListProducts(ctx context.Context, db database.DBTX, page, pageSize int) (*OffsetPage, error) {
	var total int64
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("count products: %w", err)
	}

	offset := (page - 1) * pageSize
	query := `SELECT ` + productColumns + `
		FROM products
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2`

	rows, err := db.QueryContext(ctx, query, pageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := []models.Product{}
	for rows.Next() {
		var product models.Product
		if err := scanProduct(rows, &product); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, product)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return &OffsetPage{
		Items:      products,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages(total, pageSize),
	}, nil
}
