package orders

import "github.com/safar/marketplace-orders/internal/models"

// transitions lists the single-step moves a sub-order may make. Forward
// skips such as pending -> delivered are rejected so every stage is
// recorded.
var transitions = map[models.Status][]models.Status{
	models.StatusPending:    {models.StatusProcessing, models.StatusCancelled},
	models.StatusProcessing: {models.StatusShipped, models.StatusCancelled},
	models.StatusShipped:    {models.StatusDelivered},
}

func CanTransition(from, to models.Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func ValidateTransition(from, to models.Status) error {
	if !to.Valid() {
		return models.NewValidationError("status", "unknown status "+string(to))
	}
	if !CanTransition(from, to) {
		return &models.InvalidTransitionError{From: from, To: to}
	}
	return nil
}

// Cancellable reports whether a customer cancellation affects a sub-order
// in this status.
func Cancellable(s models.Status) bool {
	return s == models.StatusPending || s == models.StatusProcessing
}

// Rollup derives the overall order status from its sub-order statuses.
// Rules are applied in order:
//  1. every sub-order cancelled: cancelled
//  2. every non-cancelled sub-order delivered: delivered
//  3. any sub-order shipped or delivered: processing
//  4. every non-cancelled sub-order pending: pending
//  5. otherwise: processing
func Rollup(statuses []models.Status) models.Status {
	if len(statuses) == 0 {
		return models.StatusPending
	}

	var cancelled, delivered, shipped, pending int
	for _, s := range statuses {
		switch s {
		case models.StatusCancelled:
			cancelled++
		case models.StatusDelivered:
			delivered++
		case models.StatusShipped:
			shipped++
		case models.StatusPending:
			pending++
		}
	}
	active := len(statuses) - cancelled

	switch {
	case active == 0:
		return models.StatusCancelled
	case delivered == active:
		return models.StatusDelivered
	case shipped+delivered > 0:
		return models.StatusProcessing
	case pending == active:
		return models.StatusPending
	default:
		return models.StatusProcessing
	}
}
