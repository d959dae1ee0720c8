package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Directory answers account lookups for posting.
type Directory interface {
	Lookup(ctx context.Context, orgID snowflake.ID, number int64) (*Account, error)
	LookupMany(ctx context.Context, orgID snowflake.ID, numbers []int64) (map[int64]Account, error)
}

type Service interface {
	Directory
	Create(ctx context.Context, orgID snowflake.ID, req CreateRequest) (*Account, error)
	CreateTx(ctx context.Context, tx *gorm.DB, orgID snowflake.ID, req CreateRequest) (*Account, error)
	List(ctx context.Context, orgID snowflake.ID, req ListRequest) ([]Account, error)
	Deactivate(ctx context.Context, orgID snowflake.ID, number int64) error
}

type ListRequest struct {
	IsActive *bool
}

type CreateRequest struct {
	Number  int64   `json:"number"`
	Name    string  `json:"name"`
	VatCode *string `json:"vat_code"`
}
