package repository

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/bookkeeping/internal/audit/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, record *domain.AuditRecord) error {
	if record == nil {
		return nil
	}
	return db.WithContext(ctx).Exec(
		`INSERT INTO audit_records (
			id, org_id, user_id, table_name, record_id, operation, changed_data, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.OrgID,
		record.UserID,
		record.Table,
		record.RecordID,
		record.Operation,
		record.ChangedData,
		record.CreatedAt,
	).Error
}

func (r *repo) Trail(ctx context.Context, db *gorm.DB, orgID snowflake.ID, tableName, recordID string) ([]domain.AuditRecord, error) {
	var records []domain.AuditRecord
	err := db.WithContext(ctx).
		Model(&domain.AuditRecord{}).
		Where("org_id = ? AND table_name = ? AND record_id = ?", orgID, tableName, recordID).
		Order("id ASC").
		Find(&records).Error
	return records, err
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]*domain.AuditRecord, error) {
	var records []*domain.AuditRecord
	stmt := db.WithContext(ctx).Model(&domain.AuditRecord{}).
		Where("org_id = ?", filter.OrgID)

	if tableName := strings.TrimSpace(filter.TableName); tableName != "" {
		stmt = stmt.Where("table_name = ?", tableName)
	}
	if operation := strings.TrimSpace(filter.Operation); operation != "" {
		stmt = stmt.Where("operation = ?", operation)
	}
	if filter.AfterID != "" {
		stmt = stmt.Where("id < ?", filter.AfterID)
	}

	stmt = stmt.Order("id DESC")
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit + 1)
	}

	if err := stmt.Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}
