package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Guard checks document dates against period locks.
type Guard interface {
	// Check resolves the covering year through db, which may be an open
	// transaction, and applies EnsureOpen with the configured policy.
	Check(ctx context.Context, db *gorm.DB, orgID snowflake.ID, documentDate time.Time) error
}

type Service interface {
	Guard
	LockPeriod(ctx context.Context, orgID snowflake.ID, year int, lockedUntil time.Time) (*AccountingYear, error)
	UnlockPeriod(ctx context.Context, orgID snowflake.ID, year int) (*AccountingYear, error)
	CloseYear(ctx context.Context, orgID snowflake.ID, year int) (*AccountingYear, error)
	CreateYear(ctx context.Context, orgID snowflake.ID, req CreateYearRequest) (*AccountingYear, error)
	CreateYearTx(ctx context.Context, tx *gorm.DB, orgID snowflake.ID, req CreateYearRequest) (*AccountingYear, error)
	ListYears(ctx context.Context, orgID snowflake.ID) ([]AccountingYear, error)
	FindCovering(ctx context.Context, orgID snowflake.ID, date time.Time) (*AccountingYear, error)
}

type CreateYearRequest struct {
	Year      int        `json:"year"`
	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`
}
