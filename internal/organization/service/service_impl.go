package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	accountdomain "github.com/smallbiznis/bookkeeping/internal/account/domain"
	auditdomain "github.com/smallbiznis/bookkeeping/internal/audit/domain"
	"github.com/smallbiznis/bookkeeping/internal/clock"
	"github.com/smallbiznis/bookkeeping/internal/organization/domain"
	perioddomain "github.com/smallbiznis/bookkeeping/internal/period/domain"
	vatdomain "github.com/smallbiznis/bookkeeping/internal/vat/domain"
	voucherdomain "github.com/smallbiznis/bookkeeping/internal/voucher/domain"
)

const maxSlugAttempts = 50

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Repo      domain.Repository
	Vat       vatdomain.Service
	Accounts  accountdomain.Service
	Period    perioddomain.Service
	Numbering voucherdomain.Numbering
	Audit     auditdomain.Recorder
	Clock     clock.Clock
}

type service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	repo      domain.Repository
	vat       vatdomain.Service
	accounts  accountdomain.Service
	period    perioddomain.Service
	numbering voucherdomain.Numbering
	audit     auditdomain.Recorder
	clock     clock.Clock
}

func NewService(p Params) domain.Service {
	return &service{
		db:        p.DB,
		log:       p.Log.Named("organization.service"),
		genID:     p.GenID,
		repo:      p.Repo,
		vat:       p.Vat,
		accounts:  p.Accounts,
		period:    p.Period,
		numbering: p.Numbering,
		audit:     p.Audit,
		clock:     p.Clock,
	}
}

func defaultVatTypes() []vatdomain.CreateRequest {
	salesAccount := int64(accountdomain.AccountSalesVat)
	purchaseAccount := int64(accountdomain.AccountPurchaseVat)
	return []vatdomain.CreateRequest{
		{Code: vatdomain.CodeSales25, Name: "Sales VAT 25%", Rate: decimal.RequireFromString("0.25"), AccountNumber: &salesAccount},
		{Code: vatdomain.CodePurchase25, Name: "Purchase VAT 25%", Rate: decimal.RequireFromString("0.25"), AccountNumber: &purchaseAccount},
		{Code: vatdomain.CodeNone, Name: "No VAT", Rate: decimal.Zero},
	}
}

func (s *service) Provision(ctx context.Context, req domain.ProvisionRequest) (*domain.ProvisionResult, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}
	base := slug.Make(name)
	if base == "" {
		return nil, domain.ErrInvalidName
	}

	currency := strings.ToUpper(strings.TrimSpace(req.BaseCurrency))
	if currency == "" {
		currency = "DKK"
	}
	if len(currency) != 3 {
		return nil, domain.ErrInvalidCurrency
	}
	country := strings.ToUpper(strings.TrimSpace(req.CountryCode))
	if country != "" && len(country) != 2 {
		return nil, domain.ErrInvalidCountry
	}

	now := s.clock.Now().UTC()
	org := domain.Organization{
		ID:           s.genID.Generate(),
		Name:         name,
		BaseCurrency: currency,
		CountryCode:  country,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	result := &domain.ProvisionResult{Organization: &org, Year: now.Year()}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		orgSlug, err := s.uniqueSlug(ctx, repo, base)
		if err != nil {
			return err
		}
		org.Slug = orgSlug
		if err := repo.CreateOrganization(ctx, org); err != nil {
			return err
		}

		for _, vt := range defaultVatTypes() {
			if _, err := s.vat.CreateTx(ctx, tx, org.ID, vt); err != nil {
				return fmt.Errorf("vat type %s: %w", vt.Code, err)
			}
			result.VatTypes++
		}

		for _, entry := range accountdomain.DefaultChart() {
			var vatCode *string
			if entry.VatCode != "" {
				code := entry.VatCode
				vatCode = &code
			}
			if _, err := s.accounts.CreateTx(ctx, tx, org.ID, accountdomain.CreateRequest{
				Number:  entry.Number,
				Name:    entry.Name,
				VatCode: vatCode,
			}); err != nil {
				return fmt.Errorf("account %d: %w", entry.Number, err)
			}
			result.Accounts++
		}

		if _, err := s.period.CreateYearTx(ctx, tx, org.ID, perioddomain.CreateYearRequest{Year: result.Year}); err != nil {
			return err
		}

		for _, class := range voucherdomain.DocumentClasses() {
			if err := s.numbering.Ensure(ctx, tx, org.ID, class); err != nil {
				return err
			}
		}

		return s.audit.Record(ctx, tx, auditdomain.Entry{
			OrgID:     org.ID,
			TableName: "organizations",
			RecordID:  org.ID.String(),
			Operation: auditdomain.OperationProvision,
			ChangedData: map[string]any{
				"organization": org,
				"vat_types":    result.VatTypes,
				"accounts":     result.Accounts,
				"year":         result.Year,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("organization provisioned",
		zap.String("org_id", org.ID.String()),
		zap.String("slug", org.Slug),
		zap.Int("accounts", result.Accounts),
		zap.Int("year", result.Year),
	)
	return result, nil
}

func (s *service) uniqueSlug(ctx context.Context, repo domain.Repository, base string) (string, error) {
	candidate := base
	for i := 2; i <= maxSlugAttempts; i++ {
		exists, err := repo.SlugExists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
	return fmt.Sprintf("%s-%s", base, s.genID.Generate().String()), nil
}

func (s *service) GetByID(ctx context.Context, id snowflake.ID) (*domain.Organization, error) {
	if id == 0 {
		return nil, domain.ErrInvalidOrganization
	}
	org, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if org == nil {
		return nil, domain.ErrNotFound
	}
	return org, nil
}
