package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"

	voucherdomain "github.com/smallbiznis/bookkeeping/internal/voucher/domain"
)

// LedgerEntry is one write-once posting derived from a booked voucher line.
type LedgerEntry struct {
	ID            snowflake.ID                `gorm:"primaryKey" json:"id"`
	OrgID         snowflake.ID                `gorm:"column:org_id;not null;index:ix_ledger_entries_org_account_date,priority:1" json:"org_id"`
	VoucherID     snowflake.ID                `gorm:"column:voucher_id;not null;index" json:"voucher_id"`
	VoucherGUID   string                      `gorm:"column:voucher_guid;type:varchar(36);not null" json:"voucher_guid"`
	DocumentClass voucherdomain.DocumentClass `gorm:"column:document_class;type:varchar(32);not null" json:"document_class"`
	VoucherNumber int64                       `gorm:"column:voucher_number;not null" json:"voucher_number"`
	AccountNumber int64                       `gorm:"column:account_number;not null;index:ix_ledger_entries_org_account_date,priority:2" json:"account_number"`
	Direction     voucherdomain.Direction     `gorm:"type:varchar(8);not null" json:"direction"`
	Amount        decimal.Decimal             `gorm:"type:numeric(18,2);not null" json:"amount"`
	Currency      string                      `gorm:"type:varchar(3);not null" json:"currency"`
	VatCode       *string                     `gorm:"column:vat_code;type:varchar(32)" json:"vat_code,omitempty"`
	EntryDate     time.Time                   `gorm:"column:entry_date;not null;index:ix_ledger_entries_org_account_date,priority:3" json:"entry_date"`
	CreatedAt     time.Time                   `gorm:"not null" json:"created_at"`
}

// TableName sets the database table name.
func (LedgerEntry) TableName() string { return "ledger_entries" }

// AccountBalance is one row of a trial balance.
type AccountBalance struct {
	AccountNumber int64           `json:"account_number"`
	Currency      string          `json:"currency"`
	Debit         decimal.Decimal `json:"debit"`
	Credit        decimal.Decimal `json:"credit"`
	Balance       decimal.Decimal `json:"balance"`
}
