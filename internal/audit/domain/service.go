package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/bookkeeping/pkg/db/pagination"
	"gorm.io/gorm"
)

// Recorder appends audit records inside the caller's transaction. A
// returned error must abort that transaction.
type Recorder interface {
	Record(ctx context.Context, tx *gorm.DB, entry Entry) error
}

type Service interface {
	Recorder
	Trail(ctx context.Context, orgID snowflake.ID, tableName, recordID string) ([]AuditRecord, error)
	List(ctx context.Context, orgID snowflake.ID, req ListRequest) (ListResponse, error)
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, record *AuditRecord) error
	Trail(ctx context.Context, db *gorm.DB, orgID snowflake.ID, tableName, recordID string) ([]AuditRecord, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*AuditRecord, error)
}

type ListRequest struct {
	pagination.Pagination
	TableName string
	Operation string
}

type ListResponse struct {
	pagination.PageInfo
	Records []AuditRecord `json:"records"`
}

type ListFilter struct {
	OrgID     snowflake.ID
	TableName string
	Operation string
	// AfterID resumes newest-first listing below this ULID.
	AfterID string
	Limit   int
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidTarget       = errors.New("invalid_audit_target")
	ErrInvalidOperation    = errors.New("invalid_audit_operation")
	ErrInvalidChangedData  = errors.New("invalid_changed_data")
)
