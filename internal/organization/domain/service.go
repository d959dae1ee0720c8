package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	// Provision creates a tenant ready to post vouchers: VAT types, chart of
	// accounts, the current accounting year and zeroed number series.
	Provision(ctx context.Context, req ProvisionRequest) (*ProvisionResult, error)
	GetByID(ctx context.Context, id snowflake.ID) (*Organization, error)
}

type ProvisionRequest struct {
	Name         string `json:"name"`
	BaseCurrency string `json:"base_currency"`
	CountryCode  string `json:"country_code"`
}

type ProvisionResult struct {
	Organization *Organization `json:"organization"`
	VatTypes     int           `json:"vat_types"`
	Accounts     int           `json:"accounts"`
	Year         int           `json:"year"`
}

var (
	ErrInvalidName         = errors.New("invalid_name")
	ErrInvalidCurrency     = errors.New("invalid_currency")
	ErrInvalidCountry      = errors.New("invalid_country")
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrNotFound            = errors.New("organization_not_found")
)
