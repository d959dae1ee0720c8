package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidYear         = errors.New("invalid_accounting_year")
	ErrYearNotFound        = errors.New("accounting_year_not_found")
	ErrYearExists          = errors.New("accounting_year_exists")
	ErrLockOutsideYear     = errors.New("lock_date_outside_year")
	ErrInvalidPolicy       = errors.New("invalid_missing_period_policy")

	// ErrPeriodLocked is matched by every *PeriodLockedError.
	ErrPeriodLocked = errors.New("period_locked")
)

// PeriodLockedError rejects a document dated inside a locked period. Missing
// is set when no accounting year covers the date and the policy is closed.
type PeriodLockedError struct {
	LockedUntil *time.Time
	Year        int
	Missing     bool
}

func (e *PeriodLockedError) Error() string {
	if e.Missing {
		return "period locked: no accounting year covers the document date"
	}
	if e.LockedUntil != nil {
		return fmt.Sprintf("period locked: accounting year %d is locked until %s", e.Year, e.LockedUntil.Format(time.DateOnly))
	}
	return fmt.Sprintf("period locked: accounting year %d", e.Year)
}

func (e *PeriodLockedError) Is(target error) bool {
	return target == ErrPeriodLocked
}
