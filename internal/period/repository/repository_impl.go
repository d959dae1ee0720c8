package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	perioddomain "github.com/smallbiznis/bookkeeping/internal/period/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() perioddomain.Repository {
	return &repo{}
}

func (r *repo) FindByYear(ctx context.Context, db *gorm.DB, orgID snowflake.ID, year int) (*perioddomain.AccountingYear, error) {
	var item perioddomain.AccountingYear
	err := db.WithContext(ctx).Raw(
		`SELECT id, org_id, year, start_date, end_date, locked_until, locked, created_at, updated_at
		 FROM accounting_years
		 WHERE org_id = ? AND year = ?`,
		orgID,
		year,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) FindCovering(ctx context.Context, db *gorm.DB, orgID snowflake.ID, date time.Time) (*perioddomain.AccountingYear, error) {
	var item perioddomain.AccountingYear
	err := db.WithContext(ctx).Raw(
		`SELECT id, org_id, year, start_date, end_date, locked_until, locked, created_at, updated_at
		 FROM accounting_years
		 WHERE org_id = ? AND start_date <= ? AND end_date >= ?
		 ORDER BY start_date DESC
		 LIMIT 1`,
		orgID,
		date,
		date,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, orgID snowflake.ID) ([]perioddomain.AccountingYear, error) {
	var items []perioddomain.AccountingYear
	err := db.WithContext(ctx).
		Model(&perioddomain.AccountingYear{}).
		Where("org_id = ?", orgID).
		Order("year DESC").
		Find(&items).Error
	return items, err
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, year *perioddomain.AccountingYear) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO accounting_years (
			id, org_id, year, start_date, end_date, locked_until, locked, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		year.ID,
		year.OrgID,
		year.Year,
		year.StartDate,
		year.EndDate,
		year.LockedUntil,
		year.Locked,
		year.CreatedAt,
		year.UpdatedAt,
	).Error
}

func (r *repo) UpdateLock(ctx context.Context, db *gorm.DB, year *perioddomain.AccountingYear) error {
	return db.WithContext(ctx).Exec(
		`UPDATE accounting_years
		 SET locked_until = ?, locked = ?, updated_at = ?
		 WHERE org_id = ? AND id = ?`,
		year.LockedUntil,
		year.Locked,
		year.UpdatedAt,
		year.OrgID,
		year.ID,
	).Error
}
