package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/smallbiznis/bookkeeping/internal/account/domain"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) accountdomain.Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) accountdomain.Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByNumber(ctx context.Context, orgID snowflake.ID, number int64) (*accountdomain.Account, error) {
	var account accountdomain.Account
	err := r.db.WithContext(ctx).Raw(
		`SELECT id, org_id, number, name, vat_code, is_active, created_at, updated_at
		 FROM accounts
		 WHERE org_id = ? AND number = ?`,
		orgID,
		number,
	).Scan(&account).Error
	if err != nil {
		return nil, err
	}
	if account.ID == 0 {
		return nil, nil
	}
	return &account, nil
}

func (r *repository) FindByNumbers(ctx context.Context, orgID snowflake.ID, numbers []int64) ([]accountdomain.Account, error) {
	var items []accountdomain.Account
	if len(numbers) == 0 {
		return items, nil
	}
	err := r.db.WithContext(ctx).Raw(
		`SELECT id, org_id, number, name, vat_code, is_active, created_at, updated_at
		 FROM accounts
		 WHERE org_id = ? AND number IN ?`,
		orgID,
		numbers,
	).Scan(&items).Error
	return items, err
}

func (r *repository) List(ctx context.Context, orgID snowflake.ID, filter accountdomain.ListRequest) ([]accountdomain.Account, error) {
	var items []accountdomain.Account
	stmt := r.db.WithContext(ctx).
		Model(&accountdomain.Account{}).
		Where("org_id = ?", orgID)
	if filter.IsActive != nil {
		stmt = stmt.Where("is_active = ?", *filter.IsActive)
	}
	if err := stmt.Order("number ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) Insert(ctx context.Context, account *accountdomain.Account) error {
	return r.db.WithContext(ctx).Exec(
		`INSERT INTO accounts (id, org_id, number, name, vat_code, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		account.ID,
		account.OrgID,
		account.Number,
		account.Name,
		account.VatCode,
		account.IsActive,
		account.CreatedAt,
		account.UpdatedAt,
	).Error
}

func (r *repository) SetActive(ctx context.Context, orgID snowflake.ID, number int64, active bool, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Exec(
		`UPDATE accounts SET is_active = ?, updated_at = ?
		 WHERE org_id = ? AND number = ?`,
		active,
		at,
		orgID,
		number,
	)
	return res.RowsAffected, res.Error
}
