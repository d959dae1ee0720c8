package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/smallbiznis/bookkeeping/internal/account/domain"
	"github.com/smallbiznis/bookkeeping/internal/clock"
	vatdomain "github.com/smallbiznis/bookkeeping/internal/vat/domain"
	"github.com/smallbiznis/bookkeeping/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	Log     *zap.Logger
	GenID   *snowflake.Node
	Repo    accountdomain.Repository
	VatRepo vatdomain.Repository
	Clock   clock.Clock
}

type Service struct {
	log     *zap.Logger
	genID   *snowflake.Node
	repo    accountdomain.Repository
	vatRepo vatdomain.Repository
	clock   clock.Clock
}

func NewService(p Params) accountdomain.Service {
	return &Service{
		log:     p.Log.Named("account.service"),
		genID:   p.GenID,
		repo:    p.Repo,
		vatRepo: p.VatRepo,
		clock:   p.Clock,
	}
}

// Lookup returns ErrNotFound for unknown numbers; inactive accounts are
// returned as-is and the caller decides.
func (s *Service) Lookup(ctx context.Context, orgID snowflake.ID, number int64) (*accountdomain.Account, error) {
	if orgID == 0 {
		return nil, accountdomain.ErrInvalidOrganization
	}
	account, err := s.repo.FindByNumber(ctx, orgID, number)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, accountdomain.ErrNotFound
	}
	return account, nil
}

// LookupMany returns the accounts found; missing numbers are absent from the map.
func (s *Service) LookupMany(ctx context.Context, orgID snowflake.ID, numbers []int64) (map[int64]accountdomain.Account, error) {
	if orgID == 0 {
		return nil, accountdomain.ErrInvalidOrganization
	}

	seen := make(map[int64]struct{}, len(numbers))
	unique := make([]int64, 0, len(numbers))
	for _, n := range numbers {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		unique = append(unique, n)
	}

	items, err := s.repo.FindByNumbers(ctx, orgID, unique)
	if err != nil {
		return nil, err
	}
	out := make(map[int64]accountdomain.Account, len(items))
	for _, item := range items {
		out[item.Number] = item
	}
	return out, nil
}

func (s *Service) Create(ctx context.Context, orgID snowflake.ID, req accountdomain.CreateRequest) (*accountdomain.Account, error) {
	return s.CreateTx(ctx, nil, orgID, req)
}

func (s *Service) CreateTx(ctx context.Context, tx *gorm.DB, orgID snowflake.ID, req accountdomain.CreateRequest) (*accountdomain.Account, error) {
	if orgID == 0 {
		return nil, accountdomain.ErrInvalidOrganization
	}
	if req.Number <= 0 {
		return nil, accountdomain.ErrInvalidNumber
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, accountdomain.ErrInvalidName
	}

	var vatCode *string
	if req.VatCode != nil {
		if code := strings.TrimSpace(*req.VatCode); code != "" {
			vat, err := s.vatRepo.WithTx(tx).FindByCode(ctx, orgID, code)
			if err != nil {
				return nil, err
			}
			if vat == nil {
				return nil, accountdomain.ErrUnknownVatCode
			}
			vatCode = &code
		}
	}

	now := s.clock.Now()
	account := &accountdomain.Account{
		ID:        s.genID.Generate(),
		OrgID:     orgID,
		Number:    req.Number,
		Name:      name,
		VatCode:   vatCode,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.WithTx(tx).Insert(ctx, account); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, accountdomain.ErrDuplicateNumber
		}
		return nil, err
	}
	return account, nil
}

func (s *Service) List(ctx context.Context, orgID snowflake.ID, req accountdomain.ListRequest) ([]accountdomain.Account, error) {
	if orgID == 0 {
		return nil, accountdomain.ErrInvalidOrganization
	}
	return s.repo.List(ctx, orgID, req)
}

func (s *Service) Deactivate(ctx context.Context, orgID snowflake.ID, number int64) error {
	if orgID == 0 {
		return accountdomain.ErrInvalidOrganization
	}
	affected, err := s.repo.SetActive(ctx, orgID, number, false, s.clock.Now())
	if err != nil {
		return err
	}
	if affected == 0 {
		return accountdomain.ErrNotFound
	}
	s.log.Info("account deactivated", zap.String("org_id", orgID.String()), zap.Int64("number", number))
	return nil
}
