package domain

import "errors"

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrVoucherNotBooked    = errors.New("voucher_not_booked")
	ErrUnbalancedEntries   = errors.New("unbalanced_ledger_entries")
	ErrInvalidRange        = errors.New("invalid_date_range")
)
