package models

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorsMatchSentinels(t *testing.T) {
	stock := &InsufficientStockError{ProductID: 7, Available: 0, Requested: 1}
	wrapped := fmt.Errorf("reserve: %w", stock)

	assert.ErrorIs(t, wrapped, ErrInsufficientStock)
	var target *InsufficientStockError
	assert.ErrorAs(t, wrapped, &target)
	assert.Equal(t, int64(7), target.ProductID)

	assert.ErrorIs(t, NewValidationError("quantity", "must be positive"), ErrValidation)
	assert.ErrorIs(t, NewNotFoundError("order", 3), ErrNotFound)
	assert.ErrorIs(t, NewAuthorizationError("order", 3, "u2"), ErrForbidden)
	assert.ErrorIs(t, &InvalidTransitionError{From: StatusDelivered, To: StatusPending}, ErrInvalidTransition)

	cause := errors.New("retries exhausted")
	conflict := &ConflictError{Resource: "order", ID: "3", Err: cause}
	assert.ErrorIs(t, conflict, ErrConflict)
	assert.ErrorIs(t, conflict, cause)
}

func TestStatusPredicates(t *testing.T) {
	assert.True(t, StatusDelivered.Terminal())
	assert.True(t, StatusCancelled.Terminal())
	assert.False(t, StatusShipped.Terminal())
	assert.True(t, StatusProcessing.Valid())
	assert.False(t, Status("lost").Valid())
}
