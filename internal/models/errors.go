package models

import (
	"errors"
	"fmt"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrConflict          = errors.New("concurrent modification")
)

type ValidationError struct {
	Field  string
	Reason string
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

type NotFoundError struct {
	Resource string
	ID       string
}

func NewNotFoundError(resource string, id any) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: fmt.Sprint(id)}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

type AuthorizationError struct {
	Resource    string
	ID          string
	RequesterID string
}

func NewAuthorizationError(resource string, id any, requesterID string) *AuthorizationError {
	return &AuthorizationError{Resource: resource, ID: fmt.Sprint(id), RequesterID: requesterID}
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("%s is not allowed to modify %s %s", e.RequesterID, e.Resource, e.ID)
}

func (e *AuthorizationError) Unwrap() error { return ErrForbidden }

type InsufficientStockError struct {
	ProductID int64 `json:"product_id"`
	Available int   `json:"available"`
	Requested int   `json:"requested"`
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: available %d, requested %d",
		e.ProductID, e.Available, e.Requested)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot move from %s to %s", e.From, e.To)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }

type ConflictError struct {
	Resource string
	ID       string
	Err      error
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %s: concurrent modification: %v", e.Resource, e.ID, e.Err)
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

func (e *ConflictError) Unwrap() error { return e.Err }
