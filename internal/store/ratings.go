package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/safar/marketplace-orders/internal/database"
	"github.com/safar/marketplace-orders/internal/models"
)

// UpsertRating stores one rating per (product, user); a repeat submission
// overwrites the score and review but keeps the original creation time.
func UpsertRating(ctx context.Context, db database.DBTX, rating *models.Rating) error {
	err := db.QueryRowContext(ctx,
		`INSERT INTO ratings (product_id, user_id, score, review_text, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, NOW(), NOW())
		 ON CONFLICT (product_id, user_id) DO UPDATE
		 SET score = EXCLUDED.score,
		     review_text = EXCLUDED.review_text,
		     updated_at = NOW()
		 RETURNING id, created_at, updated_at`,
		rating.ProductID, rating.UserID, rating.Score, rating.ReviewText,
	).Scan(&rating.ID, &rating.CreatedAt, &rating.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert rating: %w", err)
	}
	return nil
}

// ListRatingScores returns every score recorded for the product.
func ListRatingScores(ctx context.Context, db database.DBTX, productID int64) ([]int, error) {
	rows, err := db.QueryContext(ctx, `SELECT score FROM ratings WHERE product_id = $1`, productID)
	if err != nil {
		return nil, fmt.Errorf("list rating scores: %w", err)
	}
	defer rows.Close()

	var scores []int
	for rows.Next() {
		var score int
		if err := rows.Scan(&score); err != nil {
			return nil, fmt.Errorf("scan rating score: %w", err)
		}
		scores = append(scores, score)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return scores, nil
}

func ListRatings(ctx context.Context, db database.DBTX, productID int64, page, pageSize int) (*OffsetPage, error) {
	var total int64
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ratings WHERE product_id = $1`, productID).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("count ratings: %w", err)
	}

	offset := (page - 1) * pageSize
	rows, err := db.QueryContext(ctx,
		`SELECT id, product_id, user_id, score, review_text, created_at, updated_at
		 FROM ratings
		 WHERE product_id = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2 OFFSET $3`,
		productID, pageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("list ratings: %w", err)
	}
	defer rows.Close()

	ratings := []models.Rating{}
	for rows.Next() {
		var rating models.Rating
		var review sql.NullString
		err := rows.Scan(&rating.ID, &rating.ProductID, &rating.UserID, &rating.Score,
			&review, &rating.CreatedAt, &rating.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan rating: %w", err)
		}
		if review.Valid {
			rating.ReviewText = &review.String
		}
		ratings = append(ratings, rating)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return &OffsetPage{
		Items:      ratings,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages(total, pageSize),
	}, nil
}
