package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	accountdomain "github.com/smallbiznis/bookkeeping/internal/account/domain"
	accountrepository "github.com/smallbiznis/bookkeeping/internal/account/repository"
	accountservice "github.com/smallbiznis/bookkeeping/internal/account/service"
	auditdomain "github.com/smallbiznis/bookkeeping/internal/audit/domain"
	auditrepository "github.com/smallbiznis/bookkeeping/internal/audit/repository"
	auditservice "github.com/smallbiznis/bookkeeping/internal/audit/service"
	"github.com/smallbiznis/bookkeeping/internal/cache"
	"github.com/smallbiznis/bookkeeping/internal/clock"
	"github.com/smallbiznis/bookkeeping/internal/config"
	ledgerdomain "github.com/smallbiznis/bookkeeping/internal/ledger/domain"
	ledgerservice "github.com/smallbiznis/bookkeeping/internal/ledger/service"
	perioddomain "github.com/smallbiznis/bookkeeping/internal/period/domain"
	periodrepository "github.com/smallbiznis/bookkeeping/internal/period/repository"
	periodservice "github.com/smallbiznis/bookkeeping/internal/period/service"
	"github.com/smallbiznis/bookkeeping/internal/testutil"
	vatdomain "github.com/smallbiznis/bookkeeping/internal/vat/domain"
	vatrepository "github.com/smallbiznis/bookkeeping/internal/vat/repository"
	vatservice "github.com/smallbiznis/bookkeeping/internal/vat/service"
	"github.com/smallbiznis/bookkeeping/internal/voucher/domain"
	"github.com/smallbiznis/bookkeeping/internal/voucher/numbering"
	"github.com/smallbiznis/bookkeeping/internal/voucher/repository"
	"github.com/smallbiznis/bookkeeping/pkg/db/pagination"
)

const org = snowflake.ID(1)

type harness struct {
	svc      domain.Service
	db       *gorm.DB
	clock    *clock.FakeClock
	accounts accountdomain.Service
	period   perioddomain.Service
	audit    auditdomain.Service
	ledger   ledgerdomain.Service
	vat      vatdomain.Service
}

func newHarness(t *testing.T, configure func(*config.Config)) *harness {
	t.Helper()

	conn := testutil.OpenSQLite(t,
		&domain.Voucher{}, &domain.VoucherLine{}, &domain.VoucherSequence{},
		&ledgerdomain.LedgerEntry{}, &auditdomain.AuditRecord{},
		&perioddomain.AccountingYear{}, &accountdomain.Account{}, &vatdomain.VatType{},
	)
	node := testutil.Node(t)
	clk := clock.NewFakeClock(time.Date(2026, 4, 15, 10, 0, 0, 0, time.UTC))
	log := zap.NewNop()

	cfg := config.Config{VatCacheTTL: time.Minute}
	cfg.Posting.Timeout = 5 * time.Second
	cfg.Posting.MaxAttempts = 5
	cfg.Posting.BackoffBase = time.Millisecond
	cfg.Posting.MissingPeriodPolicy = "open"
	if configure != nil {
		configure(&cfg)
	}

	audit := auditservice.NewService(auditservice.Params{DB: conn, Log: log, Repo: auditrepository.Provide(), Clock: clk})
	vatRepo := vatrepository.NewRepository(conn)
	vat := vatservice.NewService(vatservice.Params{Log: log, GenID: node, Repo: vatRepo, Cache: cache.NewMemory(), Clock: clk, Config: cfg})
	accounts := accountservice.NewService(accountservice.Params{Log: log, GenID: node, Repo: accountrepository.NewRepository(conn), VatRepo: vatRepo, Clock: clk})
	period, err := periodservice.NewService(periodservice.Params{
		DB: conn, Log: log, GenID: node, Repo: periodrepository.Provide(), Audit: audit, Clock: clk, Config: cfg,
	})
	require.NoError(t, err)
	ledger := ledgerservice.NewService(ledgerservice.Params{DB: conn, Log: log, GenID: node, Clock: clk})

	ctx := context.Background()
	outputVat := int64(7700)
	_, err = vat.Create(ctx, org, vatdomain.CreateRequest{
		Code: vatdomain.CodeSales25, Name: "Sales VAT 25%", Rate: decimal.RequireFromString("0.25"), AccountNumber: &outputVat,
	})
	require.NoError(t, err)

	sales := vatdomain.CodeSales25
	for _, req := range []accountdomain.CreateRequest{
		{Number: 1500, Name: "Accounts receivable"},
		{Number: 1920, Name: "Bank"},
		{Number: 3000, Name: "Sales", VatCode: &sales},
		{Number: 6900, Name: "Other expenses"},
		{Number: 7700, Name: "Output VAT"},
	} {
		_, err := accounts.Create(ctx, org, req)
		require.NoError(t, err)
	}

	svc := NewService(Params{
		DB:        conn,
		Log:       log,
		GenID:     node,
		Repo:      repository.Provide(),
		Numbering: numbering.NewAuthority(log, clk),
		Accounts:  accounts,
		Vat:       vat,
		Guard:     period,
		Ledger:    ledger,
		Audit:     audit,
		Clock:     clk,
		Config:    cfg,
	})

	return &harness{svc: svc, db: conn, clock: clk, accounts: accounts, period: period, audit: audit, ledger: ledger, vat: vat}
}

func none() *string {
	empty := ""
	return &empty
}

// invoice books 125 on receivables against 100 sales plus 25 output VAT.
func invoice(date time.Time) domain.DraftRequest {
	return domain.DraftRequest{
		DocumentDate: date,
		Currency:     "nok",
		Lines: []domain.LineRequest{
			{AccountNumber: 1500, Direction: domain.Debit, UnitAmountExclVat: decimal.NewFromInt(125), VatCode: none()},
			{AccountNumber: 3000, Direction: domain.Credit, UnitAmountExclVat: decimal.NewFromInt(100)},
		},
	}
}

func unbalanced(date time.Time) domain.DraftRequest {
	return domain.DraftRequest{
		DocumentDate: date,
		Currency:     "NOK",
		Lines: []domain.LineRequest{
			{AccountNumber: 6900, Direction: domain.Debit, UnitAmountExclVat: decimal.NewFromInt(100)},
			{AccountNumber: 1920, Direction: domain.Credit, UnitAmountExclVat: decimal.NewFromInt(90)},
		},
	}
}

func day(month time.Month, d int) time.Time {
	return time.Date(2026, month, d, 0, 0, 0, 0, time.UTC)
}

func (h *harness) count(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, h.db.Model(model).Count(&n).Error)
	return n
}

func TestPostAssignsSequentialNumbers(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	first, err := h.svc.Post(ctx, org, domain.ClassInvoice, invoice(day(4, 1)))
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.Number)

	second, err := h.svc.Post(ctx, org, domain.ClassInvoice, invoice(day(4, 2)))
	require.NoError(t, err)
	assert.Equal(t, int64(2), second.Number)

	manual, err := h.svc.Post(ctx, org, domain.ClassManualVoucher, invoice(day(4, 2)))
	require.NoError(t, err)
	assert.Equal(t, int64(1), manual.Number)

	stored, err := h.svc.Get(ctx, org, first.GUID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusBooked, stored.Status)
	assert.Equal(t, "NOK", stored.Currency)
	require.NotNil(t, stored.BookedAt)
	require.Len(t, stored.Lines, 2)
	assert.True(t, stored.TotalDebit.Equal(decimal.NewFromInt(125)))
	assert.True(t, stored.TotalCredit.Equal(decimal.NewFromInt(125)))
	require.NotNil(t, stored.Lines[1].VatCode)
	assert.Equal(t, vatdomain.CodeSales25, *stored.Lines[1].VatCode)

	entries, err := h.ledger.ListEntries(ctx, org, ledgerdomain.ListEntriesRequest{VoucherGUID: first.GUID})
	require.NoError(t, err)
	assert.Len(t, entries.Entries, 3)
}

func TestPostUnbalancedPersistsNothing(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	_, err := h.svc.Post(ctx, org, domain.ClassManualVoucher, unbalanced(day(4, 1)))
	var first *domain.UnbalancedVoucherError
	require.ErrorAs(t, err, &first)
	assert.True(t, first.Difference.Equal(decimal.NewFromInt(10)))

	_, again := h.svc.Post(ctx, org, domain.ClassManualVoucher, unbalanced(day(4, 1)))
	require.Error(t, again)
	assert.Equal(t, err.Error(), again.Error())

	assert.Zero(t, h.count(t, &domain.Voucher{}))
	assert.Zero(t, h.count(t, &domain.VoucherLine{}))
	assert.Zero(t, h.count(t, &domain.VoucherSequence{}))
	assert.Zero(t, h.count(t, &ledgerdomain.LedgerEntry{}))
	assert.Zero(t, h.count(t, &auditdomain.AuditRecord{}))
}

func TestPostRejectsLockedPeriod(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	_, err := h.period.CreateYear(ctx, org, perioddomain.CreateYearRequest{Year: 2026})
	require.NoError(t, err)
	_, err = h.period.LockPeriod(ctx, org, 2026, day(3, 31))
	require.NoError(t, err)

	_, err = h.svc.Post(ctx, org, domain.ClassInvoice, invoice(day(3, 31)))
	var locked *perioddomain.PeriodLockedError
	require.ErrorAs(t, err, &locked)
	assert.Zero(t, h.count(t, &domain.Voucher{}))

	result, err := h.svc.Post(ctx, org, domain.ClassInvoice, invoice(day(4, 1)))
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.Number)
}

func TestPostWritesOneBookAuditRecord(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	result, err := h.svc.Post(ctx, org, domain.ClassInvoice, invoice(day(4, 1)))
	require.NoError(t, err)

	trail, err := h.audit.Trail(ctx, org, "vouchers", result.GUID)
	require.NoError(t, err)
	require.Len(t, trail, 1)
	assert.Equal(t, auditdomain.OperationBook, trail[0].Operation)

	state := trail[0].ChangedData
	assert.Equal(t, "booked", state["status"])
	assert.Equal(t, result.GUID, state["guid"])
	assert.Equal(t, "1", fmt.Sprint(state["number"]))
	assert.Equal(t, "invoice", state["document_class"])
	assert.Equal(t, "125", fmt.Sprint(state["total_debit"]))
	assert.Equal(t, "125", fmt.Sprint(state["total_credit"]))
	lines, ok := state["lines"].([]any)
	require.True(t, ok)
	require.Len(t, lines, 2)
	for i, raw := range lines {
		line, ok := raw.(map[string]any)
		require.True(t, ok)
		assert.Equal(t, fmt.Sprint(result.Voucher.Lines[i].AccountNumber), fmt.Sprint(line["account_number"]))
		assert.Equal(t, result.Voucher.Lines[i].TotalAmountInclVat.String(), fmt.Sprint(line["total_amount_incl_vat"]))
	}
}

func TestPostValidation(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	require.NoError(t, h.accounts.Deactivate(ctx, org, 6900))

	unknownVat := "X99"
	cases := []struct {
		name   string
		mutate func(*domain.DraftRequest)
		field  string
	}{
		{"missing date", func(r *domain.DraftRequest) { r.DocumentDate = time.Time{} }, "document_date"},
		{"bad currency", func(r *domain.DraftRequest) { r.Currency = "kroner" }, "currency"},
		{"no lines", func(r *domain.DraftRequest) { r.Lines = nil }, "lines"},
		{"unknown account", func(r *domain.DraftRequest) { r.Lines[0].AccountNumber = 4242 }, "lines[0].account_number"},
		{"inactive account", func(r *domain.DraftRequest) { r.Lines[0].AccountNumber = 6900 }, "lines[0].account_number"},
		{"bad direction", func(r *domain.DraftRequest) { r.Lines[1].Direction = "sideways" }, "lines[1].direction"},
		{"zero quantity", func(r *domain.DraftRequest) { q := decimal.Zero; r.Lines[0].Quantity = &q }, "lines[0].quantity"},
		{"negative amount", func(r *domain.DraftRequest) { r.Lines[0].UnitAmountExclVat = decimal.NewFromInt(-1) }, "lines[0].unit_amount_excl_vat"},
		{"full discount", func(r *domain.DraftRequest) { r.Lines[1].Discount = decimal.NewFromInt(1) }, "lines[1].discount"},
		{"unknown vat", func(r *domain.DraftRequest) { r.Lines[1].VatCode = &unknownVat }, "lines[1].vat_code"},
		{"bad contact", func(r *domain.DraftRequest) { c := "not-a-uuid"; r.ContactGUID = &c }, "contact_guid"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := invoice(day(4, 1))
			tc.mutate(&req)

			_, err := h.svc.Post(ctx, org, domain.ClassInvoice, req)
			var verr *domain.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.field, verr.Field)
		})
	}

	_, err := h.svc.Post(ctx, org, domain.DocumentClass("receipt"), invoice(day(4, 1)))
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Zero(t, h.count(t, &domain.Voucher{}))
}

func TestConcurrentPostsAreContiguous(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	sqlDB, err := h.db.DB()
	require.NoError(t, err)
	require.Greater(t, sqlDB.Stats().MaxOpenConnections, 1)

	const n = 48
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		numbers []int64
		errs    []error
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := h.svc.Post(ctx, org, domain.ClassInvoice, invoice(day(4, 1)))
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			numbers = append(numbers, result.Number)
		}()
	}
	wg.Wait()

	require.Empty(t, errs)
	require.Len(t, numbers, n)
	sort.Slice(numbers, func(i, j int) bool { return numbers[i] < numbers[j] })
	for i, number := range numbers {
		assert.Equal(t, int64(i+1), number)
	}
	assert.Equal(t, int64(n), h.count(t, &domain.Voucher{}))
	assert.Equal(t, int64(n), h.count(t, &auditdomain.AuditRecord{}))
}

func failVoucherInserts(t *testing.T, db *gorm.DB, failures int) *int {
	t.Helper()
	calls := 0
	err := db.Callback().Create().Before("gorm:create").Register("test:fail_voucher_insert", func(tx *gorm.DB) {
		if tx.Statement.Schema == nil || tx.Statement.Schema.Table != "vouchers" {
			return
		}
		calls++
		if failures < 0 || calls <= failures {
			_ = tx.AddError(errors.New("UNIQUE constraint failed: vouchers.org_id, vouchers.document_class, vouchers.number"))
		}
	})
	require.NoError(t, err)
	return &calls
}

func TestPostRetriesNumberingConflict(t *testing.T) {
	h := newHarness(t, nil)
	calls := failVoucherInserts(t, h.db, 2)

	result, err := h.svc.Post(context.Background(), org, domain.ClassInvoice, invoice(day(4, 1)))
	require.NoError(t, err)
	assert.Equal(t, 3, *calls)
	assert.Equal(t, int64(1), result.Number)
	assert.Equal(t, int64(1), h.count(t, &domain.Voucher{}))
}

func TestPostNumberingConflictExhausted(t *testing.T) {
	h := newHarness(t, func(cfg *config.Config) { cfg.Posting.MaxAttempts = 3 })
	calls := failVoucherInserts(t, h.db, -1)

	_, err := h.svc.Post(context.Background(), org, domain.ClassInvoice, invoice(day(4, 1)))
	var conflict *domain.NumberingConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, 3, conflict.Attempts)
	assert.Equal(t, 3, *calls)
	assert.Zero(t, h.count(t, &domain.Voucher{}))
	assert.Zero(t, h.count(t, &auditdomain.AuditRecord{}))
}

func TestPostTimeout(t *testing.T) {
	h := newHarness(t, func(cfg *config.Config) { cfg.Posting.Timeout = 50 * time.Millisecond })
	err := h.db.Callback().Create().Before("gorm:create").Register("test:stall_voucher_insert", func(tx *gorm.DB) {
		if tx.Statement.Schema == nil || tx.Statement.Schema.Table != "vouchers" {
			return
		}
		<-tx.Statement.Context.Done()
		_ = tx.AddError(tx.Statement.Context.Err())
	})
	require.NoError(t, err)

	_, err = h.svc.Post(context.Background(), org, domain.ClassInvoice, invoice(day(4, 1)))
	var timeout *domain.TimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.ErrorIs(t, err, domain.ErrTimeout)
	assert.Zero(t, h.count(t, &domain.Voucher{}))
}

func TestDraftLifecycle(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	draft, err := h.svc.SaveDraft(ctx, org, domain.ClassManualVoucher, unbalanced(day(4, 1)))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDraft, draft.Status)
	assert.Nil(t, draft.Number)

	_, err = h.svc.BookDraft(ctx, org, draft.GUID)
	assert.ErrorIs(t, err, domain.ErrUnbalanced)

	updated, err := h.svc.UpdateDraft(ctx, org, draft.GUID, invoice(day(4, 2)))
	require.NoError(t, err)
	assert.Equal(t, draft.GUID, updated.GUID)
	assert.Equal(t, day(4, 2), updated.DocumentDate)

	booked, err := h.svc.BookDraft(ctx, org, draft.GUID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), booked.Number)

	stored, err := h.svc.Get(ctx, org, draft.GUID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusBooked, stored.Status)
	require.NotNil(t, stored.Number)
	assert.Len(t, stored.Lines, 2)

	_, err = h.svc.UpdateDraft(ctx, org, draft.GUID, invoice(day(4, 3)))
	assert.ErrorIs(t, err, domain.ErrNotDraft)
	assert.ErrorIs(t, h.svc.DeleteDraft(ctx, org, draft.GUID), domain.ErrNotDraft)
	_, err = h.svc.BookDraft(ctx, org, draft.GUID)
	assert.ErrorIs(t, err, domain.ErrNotDraft)

	trail, err := h.audit.Trail(ctx, org, "vouchers", draft.GUID)
	require.NoError(t, err)
	require.Len(t, trail, 3)
	assert.Equal(t, auditdomain.OperationInsert, trail[0].Operation)
	assert.Equal(t, auditdomain.OperationUpdate, trail[1].Operation)
	assert.Equal(t, auditdomain.OperationBook, trail[2].Operation)
}

func TestDeleteDraft(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	draft, err := h.svc.SaveDraft(ctx, org, domain.ClassInvoice, invoice(day(4, 1)))
	require.NoError(t, err)
	require.NoError(t, h.svc.DeleteDraft(ctx, org, draft.GUID))

	_, err = h.svc.Get(ctx, org, draft.GUID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Zero(t, h.count(t, &domain.VoucherLine{}))

	trail, err := h.audit.Trail(ctx, org, "vouchers", draft.GUID)
	require.NoError(t, err)
	require.Len(t, trail, 2)
	assert.Equal(t, auditdomain.OperationDelete, trail[1].Operation)

	assert.ErrorIs(t, h.svc.DeleteDraft(ctx, org, draft.GUID), domain.ErrNotFound)
}

func TestUpdatePaymentStatus(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	result, err := h.svc.Post(ctx, org, domain.ClassInvoice, invoice(day(4, 1)))
	require.NoError(t, err)

	paid, err := h.svc.UpdatePaymentStatus(ctx, org, result.GUID, domain.StatusPaid)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaid, paid.Status)

	overdue, err := h.svc.UpdatePaymentStatus(ctx, org, result.GUID, domain.StatusOverdue)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOverdue, overdue.Status)
	assert.True(t, overdue.TotalDebit.Equal(decimal.NewFromInt(125)))

	_, err = h.svc.UpdatePaymentStatus(ctx, org, result.GUID, domain.StatusDraft)
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)

	draft, err := h.svc.SaveDraft(ctx, org, domain.ClassInvoice, invoice(day(4, 1)))
	require.NoError(t, err)
	_, err = h.svc.UpdatePaymentStatus(ctx, org, draft.GUID, domain.StatusPaid)
	assert.ErrorIs(t, err, domain.ErrNotBooked)
}

func TestReverseCancelsVoucher(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	original, err := h.svc.Post(ctx, org, domain.ClassInvoice, invoice(day(4, 1)))
	require.NoError(t, err)

	reversal, err := h.svc.Reverse(ctx, org, original.GUID, domain.ReverseRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), reversal.Number)
	assert.Equal(t, domain.ClassCreditNote, reversal.Voucher.DocumentClass)
	require.NotNil(t, reversal.Voucher.CreditedVoucherGUID)
	assert.Equal(t, original.GUID, *reversal.Voucher.CreditedVoucherGUID)
	assert.Equal(t, day(4, 15), reversal.Voucher.DocumentDate)
	for i, line := range reversal.Voucher.Lines {
		assert.Equal(t, original.Voucher.Lines[i].Direction.Opposite(), line.Direction)
	}

	balances, err := h.ledger.TrialBalance(ctx, org, day(1, 1), day(12, 31))
	require.NoError(t, err)
	require.NotEmpty(t, balances)
	for _, b := range balances {
		assert.True(t, b.Balance.IsZero(), "account %d", b.AccountNumber)
	}

	_, err = h.svc.Reverse(ctx, org, original.GUID, domain.ReverseRequest{})
	assert.ErrorIs(t, err, domain.ErrAlreadyReversed)

	_, err = h.svc.Reverse(ctx, org, reversal.GUID, domain.ReverseRequest{})
	assert.ErrorIs(t, err, domain.ErrReverseCreditNote)

	stored, err := h.svc.Get(ctx, org, original.GUID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusBooked, stored.Status)
}

func TestReverseIgnoresLaterDirectoryChanges(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	original, err := h.svc.Post(ctx, org, domain.ClassInvoice, invoice(day(4, 1)))
	require.NoError(t, err)

	require.NoError(t, h.accounts.Deactivate(ctx, org, 3000))
	disabled := false
	_, err = h.vat.Update(ctx, org, vatdomain.CodeSales25, vatdomain.UpdateRequest{IsEnabled: &disabled})
	require.NoError(t, err)

	_, err = h.svc.Post(ctx, org, domain.ClassInvoice, invoice(day(4, 2)))
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)

	reversal, err := h.svc.Reverse(ctx, org, original.GUID, domain.ReverseRequest{})
	require.NoError(t, err)
	require.Len(t, reversal.Voucher.Lines, len(original.Voucher.Lines))
	for i, line := range reversal.Voucher.Lines {
		booked := original.Voucher.Lines[i]
		assert.Equal(t, booked.AccountNumber, line.AccountNumber)
		assert.Equal(t, booked.Direction.Opposite(), line.Direction)
		assert.Equal(t, booked.VatCode, line.VatCode)
		assert.True(t, booked.VatRate.Equal(line.VatRate))
		assert.True(t, booked.TotalAmountInclVat.Equal(line.TotalAmountInclVat))
	}
	assert.True(t, original.Voucher.TotalDebit.Equal(reversal.Voucher.TotalCredit))

	balances, err := h.ledger.TrialBalance(ctx, org, day(1, 1), day(12, 31))
	require.NoError(t, err)
	require.NotEmpty(t, balances)
	for _, b := range balances {
		assert.True(t, b.Balance.IsZero(), "account %d", b.AccountNumber)
	}
}

func TestListPagesNewestFirst(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	for d := 1; d <= 3; d++ {
		_, err := h.svc.Post(ctx, org, domain.ClassInvoice, invoice(day(4, d)))
		require.NoError(t, err)
	}

	first, err := h.svc.List(ctx, org, domain.ListRequest{Pagination: pagination.Pagination{PageSize: 2}})
	require.NoError(t, err)
	require.Len(t, first.Vouchers, 2)
	assert.True(t, first.PageInfo.HasMore)
	assert.True(t, day(4, 3).Equal(first.Vouchers[0].DocumentDate))

	second, err := h.svc.List(ctx, org, domain.ListRequest{Pagination: pagination.Pagination{PageSize: 2, PageToken: first.PageInfo.NextPageToken}})
	require.NoError(t, err)
	require.Len(t, second.Vouchers, 1)
	assert.True(t, day(4, 1).Equal(second.Vouchers[0].DocumentDate))
	assert.False(t, second.PageInfo.HasMore)

	_, err = h.svc.List(ctx, org, domain.ListRequest{Pagination: pagination.Pagination{PageToken: "!!"}})
	assert.ErrorIs(t, err, pagination.ErrInvalidPageToken)
}
