package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByNumber(ctx context.Context, orgID snowflake.ID, number int64) (*Account, error)
	FindByNumbers(ctx context.Context, orgID snowflake.ID, numbers []int64) ([]Account, error)
	List(ctx context.Context, orgID snowflake.ID, filter ListRequest) ([]Account, error)
	Insert(ctx context.Context, account *Account) error
	SetActive(ctx context.Context, orgID snowflake.ID, number int64, active bool, at time.Time) (int64, error)
}
