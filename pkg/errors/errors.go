package errors

import (
	"errors"
	"fmt"
)

// Domain errors
var (
	ErrProfileNotFound    = errors.New("credit profile not found")
	ErrCollectionNotFound = errors.New("collection not found")
	ErrInsufficientCredit = errors.New("insufficient credit balance")
	ErrProfileFrozen      = errors.New("credit profile is frozen")
	ErrValidation         = errors.New("validation failed")
	ErrStore              = errors.New("store operation failed")
)

// BusinessError represents a business logic error
type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

// NewBusinessError creates a new business error
func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Error codes
const (
	ErrCodeProfileNotFound    = "PROFILE_NOT_FOUND"
	ErrCodeCollectionNotFound = "COLLECTION_NOT_FOUND"
	ErrCodeInsufficientCredit = "INSUFFICIENT_CREDIT"
	ErrCodeProfileFrozen      = "PROFILE_FROZEN"
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeStoreError         = "STORE_ERROR"
)

// Wrap common errors with business context
func WrapProfileNotFound(farmerID string) *BusinessError {
	return NewBusinessError(
		ErrCodeProfileNotFound,
		fmt.Sprintf("Credit profile for farmer %s not found", farmerID),
		ErrProfileNotFound,
	)
}

func WrapCollectionNotFound(collectionID string) *BusinessError {
	return NewBusinessError(
		ErrCodeCollectionNotFound,
		fmt.Sprintf("Collection %s not found", collectionID),
		ErrCollectionNotFound,
	)
}

func WrapInsufficientCredit(farmerID, requested, available string) *BusinessError {
	return NewBusinessError(
		ErrCodeInsufficientCredit,
		fmt.Sprintf("Debit of %s exceeds available balance %s for farmer %s", requested, available, farmerID),
		ErrInsufficientCredit,
	)
}

func WrapProfileFrozen(farmerID string) *BusinessError {
	return NewBusinessError(
		ErrCodeProfileFrozen,
		fmt.Sprintf("Credit profile for farmer %s is frozen", farmerID),
		ErrProfileFrozen,
	)
}

func WrapValidation(message string) *BusinessError {
	return NewBusinessError(ErrCodeValidation, message, ErrValidation)
}

func WrapStoreError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeStoreError,
		"store operation failed",
		err,
	)
}

// IsValidation reports whether err is a rejected-input error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsNotFound reports whether err is a missing-entity error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrProfileNotFound) || errors.Is(err, ErrCollectionNotFound)
}
