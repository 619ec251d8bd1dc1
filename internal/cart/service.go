// Package cart manages per-customer carts ahead of checkout.
package cart

import (
	"context"
	"database/sql"
	"strings"

	"github.com/safar/marketplace-orders/internal/database"
	"github.com/safar/marketplace-orders/internal/logging"
	"github.com/safar/marketplace-orders/internal/models"
	"github.com/safar/marketplace-orders/internal/store"
	"go.uber.org/zap"
)

// MaxQuantity bounds a single cart line, including quantity accumulated by
// repeated adds. The cart_items_quantity_max constraint enforces the total.
const MaxQuantity = 10000

type Service struct {
	db *sql.DB
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// AddItem adds quantity of the product to the owner's cart, accumulating
// onto an existing line. The unit price is snapshotted from the product at
// this moment. Stock is not checked until checkout.
func (s *Service) AddItem(ctx context.Context, ownerID string, productID int64, quantity int) (*models.CartItem, error) {
	if err := validateOwner(ownerID); err != nil {
		return nil, err
	}
	if quantity <= 0 {
		return nil, models.NewValidationError("quantity", "must be positive")
	}
	if quantity > MaxQuantity {
		return nil, models.NewValidationError("quantity", "is too large")
	}

	var item *models.CartItem
	err := database.WithTransaction(ctx, s.db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		price, err := store.GetPrice(ctx, tx, productID)
		if err != nil {
			return err
		}
		if err := store.EnsureCart(ctx, tx, ownerID); err != nil {
			return err
		}
		item, err = store.AddCartItem(ctx, tx, ownerID, productID, quantity, price)
		return err
	})
	if err != nil {
		return nil, err
	}

	logging.FromContext(ctx).Debug("cart item added",
		zap.String("owner_id", ownerID),
		zap.Int64("product_id", productID),
		zap.Int("quantity", item.Quantity))
	return item, nil
}

// SetQuantity replaces the line's quantity and refreshes its price
// snapshot. A quantity of zero or less removes the line and returns nil.
func (s *Service) SetQuantity(ctx context.Context, ownerID string, productID int64, quantity int) (*models.CartItem, error) {
	if err := validateOwner(ownerID); err != nil {
		return nil, err
	}
	if quantity <= 0 {
		return nil, s.RemoveItem(ctx, ownerID, productID)
	}
	if quantity > MaxQuantity {
		return nil, models.NewValidationError("quantity", "is too large")
	}

	var item *models.CartItem
	err := database.WithTransaction(ctx, s.db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		price, err := store.GetPrice(ctx, tx, productID)
		if err != nil {
			return err
		}
		item, err = store.SetCartItemQuantity(ctx, tx, ownerID, productID, quantity, price)
		return err
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (s *Service) RemoveItem(ctx context.Context, ownerID string, productID int64) error {
	if err := validateOwner(ownerID); err != nil {
		return err
	}
	return store.RemoveCartItem(ctx, s.db, ownerID, productID)
}

func (s *Service) Clear(ctx context.Context, ownerID string) error {
	if err := validateOwner(ownerID); err != nil {
		return err
	}
	return store.ClearCart(ctx, s.db, ownerID)
}

// Get returns the cart; an owner without a cart gets an empty one.
func (s *Service) Get(ctx context.Context, ownerID string) (*models.Cart, error) {
	if err := validateOwner(ownerID); err != nil {
		return nil, err
	}
	return store.GetCart(ctx, s.db, ownerID)
}

func validateOwner(ownerID string) error {
	if strings.TrimSpace(ownerID) == "" {
		return models.NewValidationError("owner_id", "is required")
	}
	return nil
}
