package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	FindByYear(ctx context.Context, db *gorm.DB, orgID snowflake.ID, year int) (*AccountingYear, error)
	FindCovering(ctx context.Context, db *gorm.DB, orgID snowflake.ID, date time.Time) (*AccountingYear, error)
	List(ctx context.Context, db *gorm.DB, orgID snowflake.ID) ([]AccountingYear, error)
	Insert(ctx context.Context, db *gorm.DB, year *AccountingYear) error
	UpdateLock(ctx context.Context, db *gorm.DB, year *AccountingYear) error
}
