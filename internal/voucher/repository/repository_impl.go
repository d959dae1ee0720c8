package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/smallbiznis/bookkeeping/internal/voucher/domain"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

// Insert writes the header and its lines. Lines are written explicitly so
// a failure on either surfaces the driver error unchanged.
func (r *repo) Insert(ctx context.Context, tx *gorm.DB, v *domain.Voucher) error {
	if err := tx.WithContext(ctx).Omit(clause.Associations).Create(v).Error; err != nil {
		return err
	}
	return r.insertLines(ctx, tx, v)
}

func (r *repo) insertLines(ctx context.Context, tx *gorm.DB, v *domain.Voucher) error {
	if len(v.Lines) == 0 {
		return nil
	}
	for i := range v.Lines {
		v.Lines[i].VoucherID = v.ID
		v.Lines[i].OrgID = v.OrgID
	}
	return tx.WithContext(ctx).Create(&v.Lines).Error
}

// UpdateHeader rewrites the mutable header columns of v while its stored
// status is one of expected. It returns the affected row count.
func (r *repo) UpdateHeader(ctx context.Context, tx *gorm.DB, v *domain.Voucher, expected []domain.Status) (int64, error) {
	result := tx.WithContext(ctx).Model(&domain.Voucher{}).
		Where("org_id = ? AND id = ? AND status IN ?", v.OrgID, v.ID, expected).
		Updates(map[string]any{
			"number":             v.Number,
			"status":             v.Status,
			"document_date":      v.DocumentDate,
			"currency":           v.Currency,
			"description":        v.Description,
			"external_reference": v.ExternalReference,
			"contact_guid":       v.ContactGUID,
			"due_date":           v.DueDate,
			"total_debit":        v.TotalDebit,
			"total_credit":       v.TotalCredit,
			"booked_at":          v.BookedAt,
			"updated_at":         v.UpdatedAt,
		})
	return result.RowsAffected, result.Error
}

func (r *repo) ReplaceLines(ctx context.Context, tx *gorm.DB, v *domain.Voucher) error {
	if err := tx.WithContext(ctx).Exec(
		`DELETE FROM voucher_lines WHERE org_id = ? AND voucher_id = ?`,
		v.OrgID, v.ID,
	).Error; err != nil {
		return err
	}
	return r.insertLines(ctx, tx, v)
}

func (r *repo) UpdateStatus(ctx context.Context, tx *gorm.DB, orgID, id snowflake.ID, from []domain.Status, to domain.Status, at time.Time) (int64, error) {
	result := tx.WithContext(ctx).Exec(
		`UPDATE vouchers SET status = ?, updated_at = ?
		WHERE org_id = ? AND id = ? AND status IN ?`,
		string(to), at, orgID, id, from,
	)
	return result.RowsAffected, result.Error
}

func (r *repo) Delete(ctx context.Context, tx *gorm.DB, orgID, id snowflake.ID) (int64, error) {
	if err := tx.WithContext(ctx).Exec(
		`DELETE FROM voucher_lines WHERE org_id = ? AND voucher_id = ?`,
		orgID, id,
	).Error; err != nil {
		return 0, err
	}
	result := tx.WithContext(ctx).Exec(
		`DELETE FROM vouchers WHERE org_id = ? AND id = ? AND status = ?`,
		orgID, id, string(domain.StatusDraft),
	)
	return result.RowsAffected, result.Error
}

func (r *repo) FindByGUID(ctx context.Context, db *gorm.DB, orgID snowflake.ID, guid string) (*domain.Voucher, error) {
	var v domain.Voucher
	err := db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("org_id = ? AND guid = ?", orgID, guid).
		Limit(1).
		Find(&v).Error
	if err != nil {
		return nil, err
	}
	if v.ID == 0 {
		return nil, nil
	}
	return &v, nil
}

func (r *repo) FindCreditNoteFor(ctx context.Context, db *gorm.DB, orgID snowflake.ID, creditedGUID string) (*domain.Voucher, error) {
	var v domain.Voucher
	err := db.WithContext(ctx).
		Where("org_id = ? AND credited_voucher_guid = ?", orgID, creditedGUID).
		Limit(1).
		Find(&v).Error
	if err != nil {
		return nil, err
	}
	if v.ID == 0 {
		return nil, nil
	}
	return &v, nil
}

// List returns vouchers newest first in (document_date, id) keyset order,
// fetching one row past the limit to detect a further page.
func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]*domain.Voucher, error) {
	stmt := db.WithContext(ctx).Model(&domain.Voucher{}).Where("org_id = ?", filter.OrgID)
	if filter.DocumentClass != "" {
		stmt = stmt.Where("document_class = ?", string(filter.DocumentClass))
	}
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", string(filter.Status))
	}
	if filter.From != nil {
		stmt = stmt.Where("document_date >= ?", *filter.From)
	}
	if filter.To != nil {
		stmt = stmt.Where("document_date <= ?", *filter.To)
	}
	if filter.After != nil {
		afterDate, err := time.Parse(time.RFC3339Nano, filter.After.Date)
		if err != nil {
			return nil, err
		}
		afterID, err := snowflake.ParseString(filter.After.ID)
		if err != nil {
			return nil, err
		}
		stmt = stmt.Where("(document_date < ? OR (document_date = ? AND id < ?))", afterDate.UTC(), afterDate.UTC(), afterID)
	}

	stmt = stmt.Order("document_date DESC").Order("id DESC")
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit + 1)
	}

	var items []*domain.Voucher
	if err := stmt.Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
