package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// DocumentClass selects the numbering series and the document's meaning.
type DocumentClass string

const (
	ClassInvoice         DocumentClass = "invoice"
	ClassCreditNote      DocumentClass = "credit_note"
	ClassManualVoucher   DocumentClass = "manual_voucher"
	ClassPurchaseVoucher DocumentClass = "purchase_voucher"
)

func DocumentClasses() []DocumentClass {
	return []DocumentClass{ClassInvoice, ClassCreditNote, ClassManualVoucher, ClassPurchaseVoucher}
}

func ParseDocumentClass(raw string) (DocumentClass, bool) {
	class := DocumentClass(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range DocumentClasses() {
		if class == known {
			return class, true
		}
	}
	return "", false
}

type Status string

const (
	StatusDraft    Status = "draft"
	StatusBooked   Status = "booked"
	StatusPaid     Status = "paid"
	StatusOverdue  Status = "overdue"
	StatusOverPaid Status = "over_paid"
)

// IsBooked reports whether s belongs to the booked family. Booked vouchers
// are immutable apart from moving between these payment states.
func (s Status) IsBooked() bool {
	switch s {
	case StatusBooked, StatusPaid, StatusOverdue, StatusOverPaid:
		return true
	default:
		return false
	}
}

func BookedStatuses() []Status {
	return []Status{StatusBooked, StatusPaid, StatusOverdue, StatusOverPaid}
}

type Direction string

const (
	Debit  Direction = "debit"
	Credit Direction = "credit"
)

func (d Direction) Valid() bool {
	return d == Debit || d == Credit
}

func (d Direction) Opposite() Direction {
	if d == Debit {
		return Credit
	}
	return Debit
}

// Voucher is the header of a financial document. Number stays nil while the
// voucher is a draft and is assigned exactly once when it is booked.
type Voucher struct {
	ID                  snowflake.ID    `gorm:"primaryKey" json:"id"`
	GUID                string          `gorm:"column:guid;type:varchar(36);not null;uniqueIndex" json:"guid"`
	OrgID               snowflake.ID    `gorm:"column:org_id;not null;uniqueIndex:ux_vouchers_org_class_number,priority:1;index:ix_vouchers_org_date,priority:1" json:"org_id"`
	DocumentClass       DocumentClass   `gorm:"column:document_class;type:varchar(32);not null;uniqueIndex:ux_vouchers_org_class_number,priority:2" json:"document_class"`
	Number              *int64          `gorm:"uniqueIndex:ux_vouchers_org_class_number,priority:3" json:"number,omitempty"`
	Status              Status          `gorm:"type:varchar(16);not null" json:"status"`
	DocumentDate        time.Time       `gorm:"column:document_date;not null;index:ix_vouchers_org_date,priority:2" json:"document_date"`
	Currency            string          `gorm:"type:varchar(3);not null" json:"currency"`
	Description         *string         `gorm:"type:text" json:"description,omitempty"`
	ExternalReference   *string         `gorm:"column:external_reference;type:varchar(255)" json:"external_reference,omitempty"`
	ContactGUID         *string         `gorm:"column:contact_guid;type:varchar(36)" json:"contact_guid,omitempty"`
	DueDate             *time.Time      `gorm:"column:due_date" json:"due_date,omitempty"`
	CreditedVoucherGUID *string         `gorm:"column:credited_voucher_guid;type:varchar(36);uniqueIndex" json:"credited_voucher_guid,omitempty"`
	TotalDebit          decimal.Decimal `gorm:"column:total_debit;type:numeric(18,2);not null" json:"total_debit"`
	TotalCredit         decimal.Decimal `gorm:"column:total_credit;type:numeric(18,2);not null" json:"total_credit"`
	BookedAt            *time.Time      `gorm:"column:booked_at" json:"booked_at,omitempty"`
	CreatedAt           time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt           time.Time       `gorm:"not null" json:"updated_at"`

	Lines []VoucherLine `gorm:"foreignKey:VoucherID;constraint:OnDelete:CASCADE" json:"lines"`
}

func (Voucher) TableName() string { return "vouchers" }

// VoucherLine is one posting row. Totals are derived from the unit amount,
// quantity, discount and VAT rate by ComputeLine.
type VoucherLine struct {
	ID                 snowflake.ID    `gorm:"primaryKey" json:"id"`
	VoucherID          snowflake.ID    `gorm:"column:voucher_id;not null;index" json:"voucher_id"`
	OrgID              snowflake.ID    `gorm:"column:org_id;not null" json:"org_id"`
	Position           int             `gorm:"not null" json:"position"`
	AccountNumber      int64           `gorm:"column:account_number;not null" json:"account_number"`
	Direction          Direction       `gorm:"type:varchar(8);not null" json:"direction"`
	Description        *string         `gorm:"type:text" json:"description,omitempty"`
	Quantity           decimal.Decimal `gorm:"type:numeric(18,4);not null" json:"quantity"`
	UnitAmountExclVat  decimal.Decimal `gorm:"column:unit_amount_excl_vat;type:numeric(18,4);not null" json:"unit_amount_excl_vat"`
	UnitAmountInclVat  decimal.Decimal `gorm:"column:unit_amount_incl_vat;type:numeric(18,4);not null" json:"unit_amount_incl_vat"`
	Discount           decimal.Decimal `gorm:"type:numeric(6,4);not null" json:"discount"`
	VatCode            *string         `gorm:"column:vat_code;type:varchar(32)" json:"vat_code,omitempty"`
	VatRate            decimal.Decimal `gorm:"column:vat_rate;type:numeric(6,4);not null" json:"vat_rate"`
	TotalAmountExclVat decimal.Decimal `gorm:"column:total_amount_excl_vat;type:numeric(18,2);not null" json:"total_amount_excl_vat"`
	TotalAmountInclVat decimal.Decimal `gorm:"column:total_amount_incl_vat;type:numeric(18,2);not null" json:"total_amount_incl_vat"`
}

func (VoucherLine) TableName() string { return "voucher_lines" }

// VoucherSequence is the per-tenant, per-class counter row.
type VoucherSequence struct {
	OrgID         snowflake.ID  `gorm:"column:org_id;primaryKey;autoIncrement:false"`
	DocumentClass DocumentClass `gorm:"column:document_class;type:varchar(32);primaryKey"`
	LastNumber    int64         `gorm:"column:last_number;not null;default:0"`
	UpdatedAt     time.Time     `gorm:"not null"`
}

func (VoucherSequence) TableName() string { return "voucher_sequences" }
