package service

import (
	"context"
	"testing"
	"time"

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
	"github.com/smallbiznis/bookkeeping/internal/organization/domain"
	"github.com/smallbiznis/bookkeeping/internal/organization/repository"
	perioddomain "github.com/smallbiznis/bookkeeping/internal/period/domain"
	periodrepository "github.com/smallbiznis/bookkeeping/internal/period/repository"
	periodservice "github.com/smallbiznis/bookkeeping/internal/period/service"
	"github.com/smallbiznis/bookkeeping/internal/testutil"
	vatdomain "github.com/smallbiznis/bookkeeping/internal/vat/domain"
	vatrepository "github.com/smallbiznis/bookkeeping/internal/vat/repository"
	vatservice "github.com/smallbiznis/bookkeeping/internal/vat/service"
	voucherdomain "github.com/smallbiznis/bookkeeping/internal/voucher/domain"
	"github.com/smallbiznis/bookkeeping/internal/voucher/numbering"
)

type fixture struct {
	svc      domain.Service
	db       *gorm.DB
	accounts accountdomain.Service
	vat      vatdomain.Service
	period   perioddomain.Service
	audit    auditdomain.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	conn := testutil.OpenSQLite(t,
		&domain.Organization{}, &vatdomain.VatType{}, &accountdomain.Account{},
		&perioddomain.AccountingYear{}, &voucherdomain.Voucher{}, &voucherdomain.VoucherSequence{},
		&auditdomain.AuditRecord{},
	)
	node := testutil.Node(t)
	clk := clock.NewFakeClock(time.Date(2026, 2, 10, 8, 0, 0, 0, time.UTC))
	log := zap.NewNop()
	cfg := config.Config{VatCacheTTL: time.Minute}
	cfg.Posting.MissingPeriodPolicy = "open"

	audit := auditservice.NewService(auditservice.Params{DB: conn, Log: log, Repo: auditrepository.Provide(), Clock: clk})
	vatRepo := vatrepository.NewRepository(conn)
	vat := vatservice.NewService(vatservice.Params{Log: log, GenID: node, Repo: vatRepo, Cache: cache.NewMemory(), Clock: clk, Config: cfg})
	accounts := accountservice.NewService(accountservice.Params{Log: log, GenID: node, Repo: accountrepository.NewRepository(conn), VatRepo: vatRepo, Clock: clk})
	period, err := periodservice.NewService(periodservice.Params{
		DB: conn, Log: log, GenID: node, Repo: periodrepository.Provide(), Audit: audit, Clock: clk, Config: cfg,
	})
	require.NoError(t, err)

	svc := NewService(Params{
		DB:        conn,
		Log:       log,
		GenID:     node,
		Repo:      repository.NewRepository(conn),
		Vat:       vat,
		Accounts:  accounts,
		Period:    period,
		Numbering: numbering.NewAuthority(log, clk),
		Audit:     audit,
		Clock:     clk,
	})
	return &fixture{svc: svc, db: conn, accounts: accounts, vat: vat, period: period, audit: audit}
}

func TestProvisionCreatesLedgerReadyTenant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.svc.Provision(ctx, domain.ProvisionRequest{Name: "Nørre Bageri ApS", BaseCurrency: "dkk", CountryCode: "dk"})
	require.NoError(t, err)
	org := result.Organization
	assert.Equal(t, "norre-bageri-aps", org.Slug)
	assert.Equal(t, "DKK", org.BaseCurrency)
	assert.Equal(t, 3, result.VatTypes)
	assert.Equal(t, len(accountdomain.DefaultChart()), result.Accounts)
	assert.Equal(t, 2026, result.Year)

	sales, err := f.vat.Resolve(ctx, org.ID, vatdomain.CodeSales25)
	require.NoError(t, err)
	require.NotNil(t, sales.AccountNumber)
	assert.Equal(t, accountdomain.AccountSalesVat, *sales.AccountNumber)

	account, err := f.accounts.Lookup(ctx, org.ID, 1000)
	require.NoError(t, err)
	require.NotNil(t, account.VatCode)
	assert.Equal(t, vatdomain.CodeSales25, *account.VatCode)

	year, err := f.period.FindCovering(ctx, org.ID, time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 2026, year.Year)

	var sequences []voucherdomain.VoucherSequence
	require.NoError(t, f.db.Where("org_id = ?", org.ID).Find(&sequences).Error)
	assert.Len(t, sequences, len(voucherdomain.DocumentClasses()))
	for _, seq := range sequences {
		assert.Zero(t, seq.LastNumber)
	}

	trail, err := f.audit.Trail(ctx, org.ID, "organizations", org.ID.String())
	require.NoError(t, err)
	require.Len(t, trail, 1)
	assert.Equal(t, auditdomain.OperationProvision, trail[0].Operation)

	loaded, err := f.svc.GetByID(ctx, org.ID)
	require.NoError(t, err)
	assert.Equal(t, org.Name, loaded.Name)
}

func TestProvisionMakesSlugsUnique(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.Provision(ctx, domain.ProvisionRequest{Name: "Acme"})
	require.NoError(t, err)
	second, err := f.svc.Provision(ctx, domain.ProvisionRequest{Name: "ACME"})
	require.NoError(t, err)

	assert.Equal(t, "acme", first.Organization.Slug)
	assert.Equal(t, "acme-2", second.Organization.Slug)
	assert.NotEqual(t, first.Organization.ID, second.Organization.ID)
}

func TestProvisionValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Provision(ctx, domain.ProvisionRequest{Name: "  "})
	assert.ErrorIs(t, err, domain.ErrInvalidName)
	_, err = f.svc.Provision(ctx, domain.ProvisionRequest{Name: "Acme", BaseCurrency: "EURO"})
	assert.ErrorIs(t, err, domain.ErrInvalidCurrency)
	_, err = f.svc.Provision(ctx, domain.ProvisionRequest{Name: "Acme", CountryCode: "DNK"})
	assert.ErrorIs(t, err, domain.ErrInvalidCountry)

	_, err = f.svc.GetByID(ctx, 12345)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	var count int64
	require.NoError(t, f.db.Model(&domain.Organization{}).Count(&count).Error)
	assert.Zero(t, count)
}
