package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Operation string

const (
	OperationInsert    Operation = "INSERT"
	OperationUpdate    Operation = "UPDATE"
	OperationDelete    Operation = "DELETE"
	OperationBook      Operation = "BOOK"
	OperationLock      Operation = "LOCK"
	OperationUnlock    Operation = "UNLOCK"
	OperationProvision Operation = "PROVISION"
)

// AuditRecord is an append-only change record. ID is a ULID so records
// sort by creation time.
type AuditRecord struct {
	ID          string            `gorm:"primaryKey;type:varchar(26)" json:"id"`
	OrgID       snowflake.ID      `gorm:"column:org_id;not null;index:ix_audit_records_target,priority:1" json:"org_id"`
	UserID      *string           `gorm:"column:user_id;type:varchar(255)" json:"user_id,omitempty"`
	Table       string            `gorm:"column:table_name;type:varchar(64);not null;index:ix_audit_records_target,priority:2" json:"table_name"`
	RecordID    string            `gorm:"column:record_id;type:varchar(64);not null;index:ix_audit_records_target,priority:3" json:"record_id"`
	Operation   Operation         `gorm:"type:varchar(16);not null" json:"operation"`
	ChangedData datatypes.JSONMap `gorm:"column:changed_data" json:"changed_data"`
	CreatedAt   time.Time         `gorm:"not null" json:"created_at"`
}

func (AuditRecord) TableName() string { return "audit_records" }

// Entry is what callers hand to the recorder. ChangedData is any value
// that marshals to a JSON object.
type Entry struct {
	OrgID       snowflake.ID
	UserID      *string
	TableName   string
	RecordID    string
	Operation   Operation
	ChangedData any
}
