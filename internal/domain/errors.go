package domain

import (
	"errors"
	"fmt"
)

var ErrBookNotFound = errors.New("book not found")
var ErrBookAlreadyExists = errors.New("book with this title and author already exists")
var ErrBorrowingNotFound = errors.New("borrowing not found")
var ErrPaymentNotFound = errors.New("payment not found")
var ErrPaymentNotExpired = errors.New("checkout session is not expired")
var ErrPaymentAlreadyOpen = errors.New("payment of this type is already open for the borrowing")
var ErrProviderUnavailable = errors.New("payment provider unavailable")

// ErrAlreadyReturned is returned when a borrowing is returned twice.
var ErrAlreadyReturned = NewValidationError("is_active", "This book has already been returned.")

// ErrNoAvailableCopies is returned when a book has no copies left to lend.
var ErrNoAvailableCopies = NewValidationError("book", "Sorry, there are no available copies of this book left.")

// ErrReturnDateNotAfterBorrowDate is returned when the expected return date is not after the borrow date.
var ErrReturnDateNotAfterBorrowDate = NewValidationError("expected_return_date", "Expected return date must be later than the borrow date.")

// ValidationError is a caller-correctable error bound to a single request field.
type ValidationError struct {
	Field   string
	Message string
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ProviderError wraps a failure of the external payment provider.
type ProviderError struct {
	Op  string
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("payment provider %s: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

func (e *ProviderError) Is(target error) bool {
	return target == ErrProviderUnavailable
}
