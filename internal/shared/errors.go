package shared

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrValidation is matched by every input validation error.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidTransition indicates a status change the lifecycle does not allow.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrConflict indicates a uniqueness violation at the persistence boundary.
	ErrConflict = errors.New("conflict")
)

// InvalidLineItemError reports a line item with a negative quantity or rate.
type InvalidLineItemError struct {
	Index int
	Field string
	Value string
}

func (e *InvalidLineItemError) Error() string {
	return fmt.Sprintf("line item %d: %s must not be negative (got %s)", e.Index+1, e.Field, e.Value)
}

// Is lets callers match every line item error with ErrValidation.
func (e *InvalidLineItemError) Is(target error) bool {
	return target == ErrValidation
}

// MissingRecipientError is returned when an invoice is sent without a client email.
type MissingRecipientError struct {
	InvoiceNumber string
}

func (e *MissingRecipientError) Error() string {
	if e.InvoiceNumber == "" {
		return "invoice has no client email to send to"
	}
	return fmt.Sprintf("invoice %s has no client email to send to", e.InvoiceNumber)
}

func (e *MissingRecipientError) Is(target error) bool {
	return target == ErrValidation
}

// InvalidPercentageError reports a markup or tax rate outside [0,100].
type InvalidPercentageError struct {
	Name  string
	Value string
}

func (e *InvalidPercentageError) Error() string {
	return fmt.Sprintf("%s must be between 0 and 100 (got %s)", e.Name, e.Value)
}

func (e *InvalidPercentageError) Is(target error) bool {
	return target == ErrValidation
}

// UserSafeMessage converts an error into text that can be shown to end users.
func UserSafeMessage(err error) string {
	if err == nil {
		return ""
	}
	var lineErr *InvalidLineItemError
	var recipientErr *MissingRecipientError
	var pctErr *InvalidPercentageError
	switch {
	case errors.As(err, &lineErr):
		return lineErr.Error()
	case errors.As(err, &recipientErr):
		return "Add an email address to the client before sending the invoice."
	case errors.As(err, &pctErr):
		return pctErr.Error()
	case errors.Is(err, ErrNotFound):
		return "The requested record could not be found."
	case errors.Is(err, ErrInvalidTransition):
		return "This action is not allowed in the record's current status."
	case errors.Is(err, ErrIdempotencyConflict):
		return "This request has already been processed."
	case errors.Is(err, ErrConflict):
		return "The record was changed by someone else, please retry."
	case errors.Is(err, ErrValidation):
		return err.Error()
	default:
		return "Something went wrong. Please try again."
	}
}
