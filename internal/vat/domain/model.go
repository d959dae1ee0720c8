package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Codes provisioned for every new organization.
const (
	CodeSales25    = "U25"
	CodePurchase25 = "I25"
	CodeNone       = "none"
)

// VatType is an org-scoped VAT rate. Code is referenced by accounts and
// voucher lines and must not be repurposed once used.
type VatType struct {
	ID    snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID snowflake.ID `gorm:"column:org_id;not null;uniqueIndex:ux_vat_types_org_code,priority:1" json:"org_id"`

	Code string          `gorm:"type:varchar(32);not null;uniqueIndex:ux_vat_types_org_code,priority:2" json:"code"`
	Name string          `gorm:"type:varchar(255);not null" json:"name"`
	Rate decimal.Decimal `gorm:"type:numeric(6,4);not null" json:"rate"`
	// AccountNumber receives the VAT portion of posted lines.
	AccountNumber *int64 `gorm:"column:account_number" json:"account_number,omitempty"`

	IsEnabled bool `gorm:"column:is_enabled;not null;default:true" json:"is_enabled"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (VatType) TableName() string { return "vat_types" }

func (v *VatType) Validate() error {
	if strings.TrimSpace(v.Code) == "" {
		return ErrInvalidVatCode
	}
	if strings.TrimSpace(v.Name) == "" {
		return ErrInvalidName
	}
	if v.Rate.IsNegative() || v.Rate.GreaterThan(decimal.NewFromInt(1)) {
		return ErrInvalidVatRate
	}
	return nil
}

// NoVat is what an empty code resolves to.
func NoVat() *VatType {
	return &VatType{Rate: decimal.Zero, IsEnabled: true}
}
