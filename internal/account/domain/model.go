package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Account is a chart-of-accounts entry. Accounts are deactivated, never
// deleted, so booked vouchers always resolve their account numbers.
type Account struct {
	ID     snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID  snowflake.ID `gorm:"column:org_id;not null;uniqueIndex:ux_accounts_org_number,priority:1" json:"org_id"`
	Number int64        `gorm:"not null;uniqueIndex:ux_accounts_org_number,priority:2" json:"number"`
	Name   string       `gorm:"type:varchar(255);not null" json:"name"`
	// VatCode is the default VAT type for lines booked to this account.
	VatCode  *string `gorm:"column:vat_code;type:varchar(32)" json:"vat_code,omitempty"`
	IsActive bool    `gorm:"column:is_active;not null;default:true" json:"is_active"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Account) TableName() string { return "accounts" }

type ChartEntry struct {
	Number  int64
	Name    string
	VatCode string
}

// Account numbers the default chart reserves for VAT postings.
const (
	AccountSalesVat    int64 = 7700
	AccountPurchaseVat int64 = 7710
)

// DefaultChart is provisioned for every new organization.
func DefaultChart() []ChartEntry {
	return []ChartEntry{
		{Number: 1000, Name: "Sales of goods", VatCode: "U25"},
		{Number: 1010, Name: "Sales of services", VatCode: "U25"},
		{Number: 1050, Name: "Sales, VAT exempt", VatCode: "none"},
		{Number: 2000, Name: "Cost of goods sold", VatCode: "I25"},
		{Number: 2800, Name: "Office expenses", VatCode: "I25"},
		{Number: 3000, Name: "Salaries"},
		{Number: 3600, Name: "Rent"},
		{Number: 5500, Name: "Bank"},
		{Number: 5600, Name: "Cash"},
		{Number: 5800, Name: "Accounts receivable"},
		{Number: 6900, Name: "Accounts payable"},
		{Number: AccountSalesVat, Name: "Output VAT"},
		{Number: AccountPurchaseVat, Name: "Input VAT"},
		{Number: 8000, Name: "Equity"},
	}
}
