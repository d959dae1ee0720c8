package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Resolver looks up VAT types by code for posting. Resolve rejects disabled
// types; Lookup does not, for documents that mirror an already booked one.
type Resolver interface {
	Resolve(ctx context.Context, orgID snowflake.ID, code string) (*VatType, error)
	Lookup(ctx context.Context, orgID snowflake.ID, code string) (*VatType, error)
}

type Service interface {
	Resolver
	Create(ctx context.Context, orgID snowflake.ID, req CreateRequest) (*VatType, error)
	CreateTx(ctx context.Context, tx *gorm.DB, orgID snowflake.ID, req CreateRequest) (*VatType, error)
	Update(ctx context.Context, orgID snowflake.ID, code string, req UpdateRequest) (*VatType, error)
	List(ctx context.Context, orgID snowflake.ID, req ListRequest) ([]*VatType, error)
}

type ListRequest struct {
	IsEnabled *bool
}

type CreateRequest struct {
	Code          string          `json:"code"`
	Name          string          `json:"name"`
	Rate          decimal.Decimal `json:"rate"`
	AccountNumber *int64          `json:"account_number"`
}

type UpdateRequest struct {
	Name          *string          `json:"name,omitempty"`
	Rate          *decimal.Decimal `json:"rate,omitempty"`
	AccountNumber *int64           `json:"account_number,omitempty"`
	IsEnabled     *bool            `json:"is_enabled,omitempty"`
}
