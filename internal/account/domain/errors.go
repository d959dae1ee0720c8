package domain

import "errors"

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidNumber       = errors.New("invalid_account_number")
	ErrInvalidName         = errors.New("invalid_account_name")
	ErrNotFound            = errors.New("account_not_found")
	ErrInactive            = errors.New("account_inactive")
	ErrDuplicateNumber     = errors.New("duplicate_account_number")
	ErrUnknownVatCode      = errors.New("unknown_vat_code")
)
