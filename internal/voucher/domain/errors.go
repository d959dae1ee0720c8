package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrValidation        = errors.New("validation_failed")
	ErrUnbalanced        = errors.New("unbalanced_voucher")
	ErrNumberingConflict = errors.New("numbering_conflict")
	ErrTimeout           = errors.New("posting_timeout")
	ErrStorage           = errors.New("storage_failure")

	ErrNotFound            = errors.New("voucher_not_found")
	ErrNotDraft            = errors.New("voucher_not_draft")
	ErrNotBooked           = errors.New("voucher_not_booked")
	ErrInvalidStatus       = errors.New("invalid_payment_status")
	ErrAlreadyReversed     = errors.New("voucher_already_reversed")
	ErrReverseCreditNote   = errors.New("credit_note_not_reversible")
	ErrInvalidOrganization = errors.New("invalid_organization")
)

// ValidationError reports the first invalid field of a voucher request.
type ValidationError struct {
	Field   string
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalid(field, code, message string) error {
	return &ValidationError{Field: field, Code: code, Message: message}
}

// Invalid builds a *ValidationError.
func Invalid(field, code, message string) error {
	return invalid(field, code, message)
}

type UnbalancedVoucherError struct {
	Difference  decimal.Decimal
	TotalDebit  decimal.Decimal
	TotalCredit decimal.Decimal
}

func (e *UnbalancedVoucherError) Error() string {
	return fmt.Sprintf("voucher is unbalanced: debit %s, credit %s, difference %s",
		e.TotalDebit.String(), e.TotalCredit.String(), e.Difference.String())
}

func (e *UnbalancedVoucherError) Is(target error) bool { return target == ErrUnbalanced }

// NumberingConflictError is returned once every attempt to take the next
// number lost to a concurrent writer. It is safe to retry.
type NumberingConflictError struct {
	Attempts int
	Err      error
}

func (e *NumberingConflictError) Error() string {
	return fmt.Sprintf("voucher numbering conflict after %d attempts: %v", e.Attempts, e.Err)
}

func (e *NumberingConflictError) Is(target error) bool { return target == ErrNumberingConflict }

func (e *NumberingConflictError) Unwrap() error { return e.Err }

// TimeoutError is returned when posting exceeds its deadline or waits too
// long for a lock. It is safe to retry.
type TimeoutError struct {
	Op  string
	Err error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out: %v", e.Op, e.Err)
}

func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

func (e *TimeoutError) Unwrap() error { return e.Err }

type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: storage failure: %v", e.Op, e.Err)
}

func (e *StorageError) Is(target error) bool { return target == ErrStorage }

func (e *StorageError) Unwrap() error { return e.Err }
