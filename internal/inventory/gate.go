// Package inventory is the only code path that changes product stock.
package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/safar/marketplace-orders/internal/database"
	"github.com/safar/marketplace-orders/internal/logging"
	"github.com/safar/marketplace-orders/internal/models"
	"github.com/safar/marketplace-orders/internal/store"
	"go.uber.org/zap"
)

type Line struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// Reserved is a line whose stock has been decremented, tagged with the
// product's seller.
type Reserved struct {
	ProductID int64  `json:"product_id"`
	SellerID  string `json:"seller_id"`
	Quantity  int    `json:"quantity"`
}

type Options struct {
	MaxRetries                  int
	CompensationInitialInterval time.Duration
	CompensationMaxElapsed      time.Duration
}

func DefaultOptions() Options {
	return Options{
		MaxRetries:                  3,
		CompensationInitialInterval: 100 * time.Millisecond,
		CompensationMaxElapsed:      30 * time.Second,
	}
}

type Gate struct {
	db   *sql.DB
	opts Options
}

func NewGate(db *sql.DB, opts Options) *Gate {
	return &Gate{db: db, opts: opts}
}

// ReserveAndDecrement decrements stock for every line or for none. Each
// product is decremented with a guarded single-statement update inside one
// transaction, so concurrent checkouts on the same product serialize on its
// row lock and disjoint checkouts never block each other. Products are
// touched in id order to keep lock acquisition deadlock free.
func (g *Gate) ReserveAndDecrement(ctx context.Context, lines []Line) ([]Reserved, error) {
	merged, err := mergeLines(lines)
	if err != nil {
		return nil, err
	}

	var reserved []Reserved
	err = database.WithRetry(ctx, g.db, database.TxOptions{
		IsolationLevel: sql.LevelReadCommitted,
		MaxRetries:     g.opts.MaxRetries,
	}, func(tx *sql.Tx) error {
		sellers := make(map[int64]string, len(merged))

		for _, line := range sortedByProduct(merged) {
			sellerID, ok, err := store.DecrementStock(ctx, tx, line.ProductID, line.Quantity)
			if err != nil {
				return err
			}
			if !ok {
				available, err := store.GetAvailableStock(ctx, tx, line.ProductID)
				if err != nil {
					return err
				}
				return &models.InsufficientStockError{
					ProductID: line.ProductID,
					Available: available,
					Requested: line.Quantity,
				}
			}
			sellers[line.ProductID] = sellerID
		}

		reserved = make([]Reserved, len(merged))
		for i, line := range merged {
			reserved[i] = Reserved{
				ProductID: line.ProductID,
				SellerID:  sellers[line.ProductID],
				Quantity:  line.Quantity,
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, database.ErrRetriesExhausted) {
			return nil, &models.ConflictError{Resource: "inventory", ID: "checkout", Err: err}
		}
		return nil, err
	}

	return reserved, nil
}

// ReleaseTx returns stock inside the caller's transaction.
func (g *Gate) ReleaseTx(ctx context.Context, tx database.DBTX, lines []Line) error {
	merged, err := mergeLines(lines)
	if err != nil {
		return err
	}
	for _, line := range sortedByProduct(merged) {
		if err := store.IncrementStock(ctx, tx, line.ProductID, line.Quantity); err != nil {
			return fmt.Errorf("release product %d: %w", line.ProductID, err)
		}
	}
	return nil
}

// Release is the compensating action for a reservation whose order could
// not be persisted. It keeps retrying with exponential backoff until the
// stock is back or the budget runs out, and is not cut short when the
// caller's context is cancelled.
func (g *Gate) Release(ctx context.Context, lines []Line) error {
	if len(lines) == 0 {
		return nil
	}

	ctx = context.WithoutCancel(ctx)
	l := logging.FromContext(ctx)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = g.opts.CompensationInitialInterval
	b.MaxElapsedTime = g.opts.CompensationMaxElapsed

	attempt := 0
	operation := func() error {
		attempt++
		err := database.WithTransaction(ctx, g.db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
			return g.ReleaseTx(ctx, tx, lines)
		})
		if err == nil {
			return nil
		}
		if errors.Is(err, models.ErrNotFound) || errors.Is(err, models.ErrValidation) {
			return backoff.Permanent(err)
		}
		l.Warn("stock release attempt failed", zap.Int("attempt", attempt), zap.Error(err))
		return err
	}

	if err := backoff.Retry(operation, b); err != nil {
		l.Error("stock release abandoned", zap.Int("attempts", attempt), zap.Any("lines", lines), zap.Error(err))
		return fmt.Errorf("release stock: %w", err)
	}

	if attempt > 1 {
		l.Info("stock released after retries", zap.Int("attempts", attempt))
	}
	return nil
}

// mergeLines validates the lines and folds repeated products together,
// keeping first-seen order.
func mergeLines(lines []Line) ([]Line, error) {
	if len(lines) == 0 {
		return nil, models.NewValidationError("lines", "at least one line is required")
	}

	index := make(map[int64]int, len(lines))
	merged := make([]Line, 0, len(lines))
	for _, line := range lines {
		if line.Quantity <= 0 {
			return nil, models.NewValidationError("quantity",
				fmt.Sprintf("must be positive for product %d", line.ProductID))
		}
		if i, ok := index[line.ProductID]; ok {
			merged[i].Quantity += line.Quantity
			continue
		}
		index[line.ProductID] = len(merged)
		merged = append(merged, line)
	}
	return merged, nil
}

func sortedByProduct(lines []Line) []Line {
	sorted := make([]Line, len(lines))
	copy(sorted, lines)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ProductID < sorted[j].ProductID })
	return sorted
}
