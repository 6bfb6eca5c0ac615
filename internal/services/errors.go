package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lexserve/api/internal/repositories"
)

var (
	// ErrOrderInvalidInput signals the caller provided invalid data.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrOrderNotFound indicates the order could not be located.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderInvalidState indicates an invalid status transition was attempted.
	ErrOrderInvalidState = errors.New("order: invalid status transition")
	// ErrOrderConflict indicates duplicate payment bindings or concurrent update conflicts.
	ErrOrderConflict = errors.New("order: conflict")
	// ErrOrderNotDownloadable indicates a download was requested before completion.
	ErrOrderNotDownloadable = errors.New("order: not downloadable")
	// ErrPaymentSignature indicates the gateway signature did not match.
	ErrPaymentSignature = errors.New("payment: signature verification failed")
	// ErrTemplateNotFound indicates no template object is mapped for the document type.
	ErrTemplateNotFound = errors.New("template: not found")
)

// ValidationError lists the request fields that were missing or invalid.
type ValidationError struct {
	fields []string
}

// NewValidationError constructs a ValidationError for the named fields.
func NewValidationError(fields ...string) *ValidationError {
	return &ValidationError{fields: fields}
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("order: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the offending field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// Unwrap lets callers match ValidationError against ErrOrderInvalidInput.
func (e *ValidationError) Unwrap() error {
	return ErrOrderInvalidInput
}

func mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrOrderNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrOrderConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("order: repository unavailable: %w", err)
		}
	}

	return err
}
