package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/smallbiznis/bookkeeping/pkg/db/pagination"
)

// Numbering hands out gap-free, strictly increasing numbers per tenant and
// document class. Numbers are only durable when tx commits.
type Numbering interface {
	NextNumber(ctx context.Context, tx *gorm.DB, orgID snowflake.ID, class DocumentClass) (int64, error)
	Ensure(ctx context.Context, tx *gorm.DB, orgID snowflake.ID, class DocumentClass) error
}

type Repository interface {
	Insert(ctx context.Context, tx *gorm.DB, v *Voucher) error
	UpdateHeader(ctx context.Context, tx *gorm.DB, v *Voucher, expected []Status) (int64, error)
	ReplaceLines(ctx context.Context, tx *gorm.DB, v *Voucher) error
	UpdateStatus(ctx context.Context, tx *gorm.DB, orgID, id snowflake.ID, from []Status, to Status, at time.Time) (int64, error)
	Delete(ctx context.Context, tx *gorm.DB, orgID, id snowflake.ID) (int64, error)
	FindByGUID(ctx context.Context, db *gorm.DB, orgID snowflake.ID, guid string) (*Voucher, error)
	FindCreditNoteFor(ctx context.Context, db *gorm.DB, orgID snowflake.ID, creditedGUID string) (*Voucher, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*Voucher, error)
}

type Service interface {
	// Post validates, numbers and books a voucher in one transaction.
	Post(ctx context.Context, orgID snowflake.ID, class DocumentClass, req DraftRequest) (*PostResult, error)
	SaveDraft(ctx context.Context, orgID snowflake.ID, class DocumentClass, req DraftRequest) (*Voucher, error)
	UpdateDraft(ctx context.Context, orgID snowflake.ID, guid string, req DraftRequest) (*Voucher, error)
	DeleteDraft(ctx context.Context, orgID snowflake.ID, guid string) error
	BookDraft(ctx context.Context, orgID snowflake.ID, guid string) (*PostResult, error)
	UpdatePaymentStatus(ctx context.Context, orgID snowflake.ID, guid string, status Status) (*Voucher, error)
	Reverse(ctx context.Context, orgID snowflake.ID, guid string, req ReverseRequest) (*PostResult, error)
	Get(ctx context.Context, orgID snowflake.ID, guid string) (*Voucher, error)
	List(ctx context.Context, orgID snowflake.ID, req ListRequest) (ListResponse, error)
}

type DraftRequest struct {
	DocumentDate      time.Time     `json:"document_date"`
	Currency          string        `json:"currency"`
	Description       *string       `json:"description,omitempty"`
	ExternalReference *string       `json:"external_reference,omitempty"`
	ContactGUID       *string       `json:"contact_guid,omitempty"`
	DueDate           *time.Time    `json:"due_date,omitempty"`
	Lines             []LineRequest `json:"lines"`
}

type LineRequest struct {
	AccountNumber     int64            `json:"account_number"`
	Direction         Direction        `json:"direction"`
	Description       *string          `json:"description,omitempty"`
	Quantity          *decimal.Decimal `json:"quantity,omitempty"`
	UnitAmountExclVat decimal.Decimal  `json:"unit_amount_excl_vat"`
	Discount          decimal.Decimal  `json:"discount"`
	// VatCode overrides the account's default VAT type when set.
	VatCode *string `json:"vat_code,omitempty"`
}

type ReverseRequest struct {
	DocumentDate *time.Time `json:"document_date,omitempty"`
	Description  *string    `json:"description,omitempty"`
}

type PostResult struct {
	GUID    string   `json:"guid"`
	Number  int64    `json:"number"`
	Voucher *Voucher `json:"voucher"`
}

type ListRequest struct {
	pagination.Pagination
	DocumentClass DocumentClass
	Status        Status
	From          *time.Time
	To            *time.Time
}

type ListResponse struct {
	PageInfo pagination.PageInfo `json:"page_info"`
	Vouchers []*Voucher          `json:"vouchers"`
}

type ListFilter struct {
	OrgID         snowflake.ID
	DocumentClass DocumentClass
	Status        Status
	From          *time.Time
	To            *time.Time
	After         *pagination.Cursor
	Limit         int
}
