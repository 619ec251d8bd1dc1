package ratings_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/safar/marketplace-orders/internal/models"
	"github.com/safar/marketplace-orders/internal/ratings"
	"github.com/safar/marketplace-orders/internal/store"
	"github.com/safar/marketplace-orders/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResubmittingUpdatesWithoutDoubleCounting(t *testing.T) {
	db := testutil.NewPostgres(t)
	ctx := context.Background()
	svc := ratings.NewService(db, ratings.DefaultOptions())

	p := testutil.SeedProduct(t, db, "RATED", "S1", "10.00", 1)

	_, summary, err := svc.Submit(ctx, ratings.SubmitRequest{ProductID: p.ID, UserID: "u1", Score: 4})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.TotalReviews)

	_, summary, err = svc.Submit(ctx, ratings.SubmitRequest{ProductID: p.ID, UserID: "u1", Score: 4})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.TotalReviews)

	_, _, err = svc.Submit(ctx, ratings.SubmitRequest{ProductID: p.ID, UserID: "u2", Score: 5})
	require.NoError(t, err)

	_, summary, err = svc.Submit(ctx, ratings.SubmitRequest{ProductID: p.ID, UserID: "u1", Score: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.TotalReviews)
	assert.Equal(t, "3.5", summary.AverageRating.String())

	product, err := store.GetProduct(ctx, db, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, product.TotalReviews)
	assert.Equal(t, "3.5", product.AverageRating.String())

	page, err := svc.List(ctx, p.ID, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)
	items := page.Items.([]models.Rating)
	require.Len(t, items, 2)
	assert.Equal(t, "u2", items[0].UserID)
}

func TestConcurrentSubmissionsKeepAggregateExact(t *testing.T) {
	db := testutil.NewPostgres(t)
	ctx := context.Background()
	svc := ratings.NewService(db, ratings.DefaultOptions())

	p := testutil.SeedProduct(t, db, "BUSY", "S1", "10.00", 1)

	const raters = 20
	var wg sync.WaitGroup
	for i := 0; i < raters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			score := i%5 + 1
			if _, _, err := svc.Submit(ctx, ratings.SubmitRequest{ProductID: p.ID, UserID: fmt.Sprintf("u%d", i), Score: score}); err != nil {
				t.Errorf("submit rating: %v", err)
			}
		}(i)
	}
	wg.Wait()

	product, err := store.GetProduct(ctx, db, p.ID)
	require.NoError(t, err)
	assert.Equal(t, raters, product.TotalReviews)
	assert.Equal(t, "3", product.AverageRating.String())
}

func TestSubmitUnknownProduct(t *testing.T) {
	db := testutil.NewPostgres(t)
	svc := ratings.NewService(db, ratings.DefaultOptions())

	_, _, err := svc.Submit(context.Background(), ratings.SubmitRequest{ProductID: 999, UserID: "u1", Score: 3})
	assert.ErrorIs(t, err, models.ErrNotFound)
}
