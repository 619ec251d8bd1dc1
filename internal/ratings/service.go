// Package ratings keeps product rating aggregates in step with the ratings
// they are derived from.
package ratings

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"

	"github.com/safar/marketplace-orders/internal/database"
	"github.com/safar/marketplace-orders/internal/logging"
	"github.com/safar/marketplace-orders/internal/models"
	"github.com/safar/marketplace-orders/internal/store"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	MinScore        = 1
	MaxScore        = 5
	maxReviewLength = 4000
)

type Options struct {
	MaxRetries      int
	DefaultPageSize int
	MaxPageSize     int
}

func DefaultOptions() Options {
	return Options{
		MaxRetries:      3,
		DefaultPageSize: 20,
		MaxPageSize:     100,
	}
}

type Service struct {
	db   *sql.DB
	opts Options
}

func NewService(db *sql.DB, opts Options) *Service {
	return &Service{db: db, opts: opts}
}

type SubmitRequest struct {
	ProductID  int64
	UserID     string
	Score      int
	ReviewText *string
}

func (r SubmitRequest) validate() error {
	switch {
	case r.ProductID <= 0:
		return models.NewValidationError("product_id", "must be positive")
	case strings.TrimSpace(r.UserID) == "":
		return models.NewValidationError("user_id", "is required")
	case r.Score < MinScore || r.Score > MaxScore:
		return models.NewValidationError("score", "must be between 1 and 5")
	case r.ReviewText != nil && len(*r.ReviewText) > maxReviewLength:
		return models.NewValidationError("review_text", "is too long")
	}
	return nil
}

// Summarize computes the aggregate for a full set of scores. The average is
// rounded half away from zero to one decimal place.
func Summarize(productID int64, scores []int) models.RatingSummary {
	summary := models.RatingSummary{
		ProductID:     productID,
		AverageRating: decimal.Zero,
		TotalReviews:  len(scores),
	}
	if len(scores) == 0 {
		return summary
	}

	var sum int64
	for _, s := range scores {
		sum += int64(s)
	}
	summary.AverageRating = decimal.NewFromInt(sum).DivRound(decimal.NewFromInt(int64(len(scores))), 1)
	return summary
}

// Submit upserts the user's rating and rewrites the product aggregate from
// every stored rating in the same transaction. The product row lock
// serializes concurrent submissions for one product so the last aggregate
// written always reflects every committed rating.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*models.Rating, *models.RatingSummary, error) {
	if err := req.validate(); err != nil {
		return nil, nil, err
	}
	if req.ReviewText != nil && strings.TrimSpace(*req.ReviewText) == "" {
		req.ReviewText = nil
	}

	var rating *models.Rating
	var summary models.RatingSummary

	err := s.withRetry(ctx, req.ProductID, func(tx *sql.Tx) error {
		if err := store.LockProduct(ctx, tx, req.ProductID); err != nil {
			return err
		}

		r := &models.Rating{
			ProductID:  req.ProductID,
			UserID:     req.UserID,
			Score:      req.Score,
			ReviewText: req.ReviewText,
		}
		if err := store.UpsertRating(ctx, tx, r); err != nil {
			return err
		}

		var err error
		summary, err = recompute(ctx, tx, req.ProductID)
		if err != nil {
			return err
		}
		rating = r
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	logging.FromContext(ctx).Info("rating submitted",
		zap.Int64("product_id", req.ProductID),
		zap.String("user_id", req.UserID),
		zap.Int("score", req.Score),
		zap.String("average_rating", summary.AverageRating.String()),
		zap.Int("total_reviews", summary.TotalReviews))

	return rating, &summary, nil
}

// Recompute rebuilds the product aggregate from its ratings. It is safe to
// run at any time.
func (s *Service) Recompute(ctx context.Context, productID int64) (*models.RatingSummary, error) {
	var summary models.RatingSummary
	err := s.withRetry(ctx, productID, func(tx *sql.Tx) error {
		if err := store.LockProduct(ctx, tx, productID); err != nil {
			return err
		}
		var err error
		summary, err = recompute(ctx, tx, productID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &summary, nil
}

func (s *Service) List(ctx context.Context, productID int64, page, pageSize int) (*store.OffsetPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = s.opts.DefaultPageSize
	}
	if pageSize > s.opts.MaxPageSize {
		pageSize = s.opts.MaxPageSize
	}
	return store.ListRatings(ctx, s.db, productID, page, pageSize)
}

func recompute(ctx context.Context, tx database.DBTX, productID int64) (models.RatingSummary, error) {
	scores, err := store.ListRatingScores(ctx, tx, productID)
	if err != nil {
		return models.RatingSummary{}, err
	}
	summary := Summarize(productID, scores)
	if err := store.UpdateRatingSummary(ctx, tx, summary); err != nil {
		return models.RatingSummary{}, err
	}
	return summary, nil
}

func (s *Service) withRetry(ctx context.Context, productID int64, fn func(tx *sql.Tx) error) error {
	err := database.WithRetry(ctx, s.db, database.TxOptions{
		IsolationLevel: sql.LevelReadCommitted,
		MaxRetries:     s.opts.MaxRetries,
	}, fn)
	if errors.Is(err, database.ErrRetriesExhausted) {
		return &models.ConflictError{Resource: "product", ID: strconv.FormatInt(productID, 10), Err: err}
	}
	return err
}
