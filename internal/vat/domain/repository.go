package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByCode(ctx context.Context, orgID snowflake.ID, code string) (*VatType, error)
	List(ctx context.Context, orgID snowflake.ID, filter ListRequest) ([]*VatType, error)
	Create(ctx context.Context, vat *VatType) error
	Update(ctx context.Context, vat *VatType) error
}
