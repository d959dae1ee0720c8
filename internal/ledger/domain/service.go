package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	vatdomain "github.com/smallbiznis/bookkeeping/internal/vat/domain"
	voucherdomain "github.com/smallbiznis/bookkeeping/internal/voucher/domain"
	"github.com/smallbiznis/bookkeeping/pkg/db/pagination"
)

// Writer projects a booked voucher inside the posting transaction.
type Writer interface {
	WriteTx(ctx context.Context, tx *gorm.DB, v *voucherdomain.Voucher, vat map[string]*vatdomain.VatType) (int, error)
}

type Service interface {
	Writer
	ListEntries(ctx context.Context, orgID snowflake.ID, req ListEntriesRequest) (ListEntriesResponse, error)
	TrialBalance(ctx context.Context, orgID snowflake.ID, from, to time.Time) ([]AccountBalance, error)
}

type ListEntriesRequest struct {
	pagination.Pagination
	AccountNumber *int64
	VoucherGUID   string
	From          *time.Time
	To            *time.Time
}

type ListEntriesResponse struct {
	PageInfo pagination.PageInfo `json:"page_info"`
	Entries  []*LedgerEntry      `json:"entries"`
}
