package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/smallbiznis/bookkeeping/internal/clock"
	ledgerdomain "github.com/smallbiznis/bookkeeping/internal/ledger/domain"
	vatdomain "github.com/smallbiznis/bookkeeping/internal/vat/domain"
	voucherdomain "github.com/smallbiznis/bookkeeping/internal/voucher/domain"
	"github.com/smallbiznis/bookkeeping/pkg/db/pagination"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
}

func NewService(p Params) ledgerdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("ledger.service"),
		genID: p.GenID,
		clock: p.Clock,
	}
}

// WriteTx projects v into ledger_entries using tx. It must run inside the
// transaction that books v.
func (s *Service) WriteTx(ctx context.Context, tx *gorm.DB, v *voucherdomain.Voucher, vat map[string]*vatdomain.VatType) (int, error) {
	if v == nil || v.OrgID == 0 {
		return 0, ledgerdomain.ErrInvalidOrganization
	}

	entries, err := ledgerdomain.Project(v, vat)
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return 0, nil
	}

	now := s.clock.Now().UTC()
	for i := range entries {
		entries[i].ID = s.genID.Generate()
		entries[i].CreatedAt = now
	}
	if err := tx.WithContext(ctx).CreateInBatches(&entries, 100).Error; err != nil {
		return 0, err
	}
	return len(entries), nil
}

func (s *Service) ListEntries(ctx context.Context, orgID snowflake.ID, req ledgerdomain.ListEntriesRequest) (ledgerdomain.ListEntriesResponse, error) {
	if orgID == 0 {
		return ledgerdomain.ListEntriesResponse{}, ledgerdomain.ErrInvalidOrganization
	}

	cursor, err := pagination.DecodeCursor(req.PageToken)
	if err != nil {
		return ledgerdomain.ListEntriesResponse{}, err
	}

	stmt := s.db.WithContext(ctx).Model(&ledgerdomain.LedgerEntry{}).Where("org_id = ?", orgID)
	if cursor != nil {
		afterID, err := snowflake.ParseString(cursor.ID)
		if err != nil {
			return ledgerdomain.ListEntriesResponse{}, pagination.ErrInvalidPageToken
		}
		stmt = stmt.Where("id > ?", afterID)
	}
	if req.AccountNumber != nil {
		stmt = stmt.Where("account_number = ?", *req.AccountNumber)
	}
	if req.VoucherGUID != "" {
		stmt = stmt.Where("voucher_guid = ?", req.VoucherGUID)
	}
	if req.From != nil {
		stmt = stmt.Where("entry_date >= ?", clock.Date(*req.From))
	}
	if req.To != nil {
		stmt = stmt.Where("entry_date <= ?", clock.Date(*req.To))
	}

	limit := req.Limit()
	var items []*ledgerdomain.LedgerEntry
	if err := stmt.Order("id ASC").Limit(limit + 1).Find(&items).Error; err != nil {
		return ledgerdomain.ListEntriesResponse{}, err
	}

	page, info, err := pagination.BuildCursorPageInfo(items, limit, func(item *ledgerdomain.LedgerEntry) pagination.Cursor {
		return pagination.Cursor{ID: item.ID.String()}
	})
	if err != nil {
		return ledgerdomain.ListEntriesResponse{}, err
	}
	return ledgerdomain.ListEntriesResponse{PageInfo: info, Entries: page}, nil
}

type balanceRow struct {
	AccountNumber int64
	Currency      string
	Debit         decimal.Decimal
	Credit        decimal.Decimal
}

// TrialBalance sums ledger entries per account and currency for the
// inclusive date range.
func (s *Service) TrialBalance(ctx context.Context, orgID snowflake.ID, from, to time.Time) ([]ledgerdomain.AccountBalance, error) {
	if orgID == 0 {
		return nil, ledgerdomain.ErrInvalidOrganization
	}
	from, to = clock.Date(from), clock.Date(to)
	if to.Before(from) {
		return nil, ledgerdomain.ErrInvalidRange
	}

	var rows []balanceRow
	err := s.db.WithContext(ctx).Raw(
		`SELECT account_number, currency,
			COALESCE(SUM(CASE WHEN direction = ? THEN amount ELSE 0 END), 0) AS debit,
			COALESCE(SUM(CASE WHEN direction = ? THEN amount ELSE 0 END), 0) AS credit
		FROM ledger_entries
		WHERE org_id = ? AND entry_date >= ? AND entry_date <= ?
		GROUP BY account_number, currency
		ORDER BY currency ASC, account_number ASC`,
		string(voucherdomain.Debit),
		string(voucherdomain.Credit),
		orgID,
		from,
		to,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]ledgerdomain.AccountBalance, 0, len(rows))
	for _, row := range rows {
		debit := voucherdomain.RoundMoney(row.Currency, row.Debit)
		credit := voucherdomain.RoundMoney(row.Currency, row.Credit)
		out = append(out, ledgerdomain.AccountBalance{
			AccountNumber: row.AccountNumber,
			Currency:      row.Currency,
			Debit:         debit,
			Credit:        credit,
			Balance:       debit.Sub(credit),
		})
	}

	s.log.Debug("trial balance computed",
		zap.String("org_id", orgID.String()),
		zap.String("from", from.Format(time.DateOnly)),
		zap.String("to", to.Format(time.DateOnly)),
		zap.Int("rows", len(out)),
	)
	return out, nil
}
