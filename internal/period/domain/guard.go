package domain

import (
	"strings"
	"time"
)

// MissingPeriodPolicy decides what happens to a document whose date no
// accounting year covers.
type MissingPeriodPolicy string

const (
	MissingPeriodOpen   MissingPeriodPolicy = "open"
	MissingPeriodClosed MissingPeriodPolicy = "closed"
)

func ParsePolicy(raw string) (MissingPeriodPolicy, error) {
	switch MissingPeriodPolicy(strings.ToLower(strings.TrimSpace(raw))) {
	case "", MissingPeriodOpen:
		return MissingPeriodOpen, nil
	case MissingPeriodClosed:
		return MissingPeriodClosed, nil
	default:
		return "", ErrInvalidPolicy
	}
}

// EnsureOpen fails with *PeriodLockedError when the lock boundary of year is
// on or after documentDate. Dates compare at day precision in UTC.
func EnsureOpen(documentDate time.Time, year *AccountingYear, policy MissingPeriodPolicy) error {
	if year == nil {
		if policy == MissingPeriodClosed {
			return &PeriodLockedError{Missing: true}
		}
		return nil
	}

	boundary := year.LockBoundary()
	if boundary == nil {
		return nil
	}
	if !boundary.Before(dateOnly(documentDate)) {
		return &PeriodLockedError{LockedUntil: boundary, Year: year.Year}
	}
	return nil
}
