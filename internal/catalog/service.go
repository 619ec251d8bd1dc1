// Package catalog is the read side of the product repository plus a seeding
// entry point. Stock is only ever changed through the inventory package.
package catalog

import (
	"context"
	"database/sql"
	"strings"

	"github.com/safar/marketplace-orders/internal/database"
	"github.com/safar/marketplace-orders/internal/models"
	"github.com/safar/marketplace-orders/internal/store"
)

type Service struct {
	db          *sql.DB
	maxPageSize int
}

func NewService(db *sql.DB, maxPageSize int) *Service {
	return &Service{db: db, maxPageSize: maxPageSize}
}

func (s *Service) Create(ctx context.Context, params store.CreateProductParams) (*models.Product, error) {
	switch {
	case strings.TrimSpace(params.SKU) == "":
		return nil, models.NewValidationError("sku", "is required")
	case strings.TrimSpace(params.Name) == "":
		return nil, models.NewValidationError("name", "is required")
	case strings.TrimSpace(params.SellerID) == "":
		return nil, models.NewValidationError("seller_id", "is required")
	case !params.Price.IsPositive():
		return nil, models.NewValidationError("price", "must be positive")
	case params.Stock < 0:
		return nil, models.NewValidationError("stock", "must not be negative")
	}

	product, err := store.CreateProduct(ctx, s.db, params)
	if database.IsUniqueViolation(err) {
		return nil, models.NewValidationError("sku", "already exists")
	}
	return product, err
}

func (s *Service) Get(ctx context.Context, id int64) (*models.Product, error) {
	return store.GetProduct(ctx, s.db, id)
}

func (s *Service) List(ctx context.Context, page, pageSize int) (*store.OffsetPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > s.maxPageSize {
		pageSize = 20
	}
	return store.ListProducts(ctx, s.db, page, pageSize)
}
