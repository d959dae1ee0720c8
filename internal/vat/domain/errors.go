package domain

import "errors"

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidName         = errors.New("invalid_name")
	ErrNotFound            = errors.New("vat_type_not_found")
	ErrDisabled            = errors.New("vat_type_disabled")
	ErrInvalidVatCode      = errors.New("invalid_vat_code")
	ErrInvalidVatRate      = errors.New("invalid_vat_rate")
	ErrDuplicateVatCode    = errors.New("duplicate_vat_code")
)
