package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/bookkeeping/internal/cache"
	"github.com/smallbiznis/bookkeeping/internal/clock"
	"github.com/smallbiznis/bookkeeping/internal/config"
	vatdomain "github.com/smallbiznis/bookkeeping/internal/vat/domain"
	"github.com/smallbiznis/bookkeeping/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	Log    *zap.Logger
	GenID  *snowflake.Node
	Repo   vatdomain.Repository
	Cache  cache.Cache
	Clock  clock.Clock
	Config config.Config
}

type Service struct {
	log   *zap.Logger
	genID *snowflake.Node
	repo  vatdomain.Repository
	cache cache.Cache
	clock clock.Clock
	ttl   time.Duration
}

func NewService(p Params) vatdomain.Service {
	return &Service{
		log:   p.Log.Named("vat.service"),
		genID: p.GenID,
		repo:  p.Repo,
		cache: p.Cache,
		clock: p.Clock,
		ttl:   p.Config.VatCacheTTL,
	}
}

// Resolve returns the enabled VAT type for code. Reads go through the cache;
// cache failures fall back to the database.
func (s *Service) Resolve(ctx context.Context, orgID snowflake.ID, code string) (*vatdomain.VatType, error) {
	vat, err := s.Lookup(ctx, orgID, code)
	if err != nil {
		return nil, err
	}
	return enabled(vat)
}

// Lookup returns the VAT type for code whether or not it is still enabled.
func (s *Service) Lookup(ctx context.Context, orgID snowflake.ID, code string) (*vatdomain.VatType, error) {
	if orgID == 0 {
		return nil, vatdomain.ErrInvalidOrganization
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return vatdomain.NoVat(), nil
	}

	key := cacheKey(orgID, code)
	if s.cache != nil {
		var cached vatdomain.VatType
		found, err := s.cache.Get(ctx, key, &cached)
		if err != nil {
			s.log.Warn("vat cache read failed", zap.String("code", code), zap.Error(err))
		} else if found {
			return &cached, nil
		}
	}

	vat, err := s.repo.FindByCode(ctx, orgID, code)
	if err != nil {
		return nil, err
	}
	if vat == nil {
		return nil, vatdomain.ErrNotFound
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, vat, s.ttl); err != nil {
			s.log.Warn("vat cache write failed", zap.String("code", code), zap.Error(err))
		}
	}
	return vat, nil
}

func (s *Service) Create(ctx context.Context, orgID snowflake.ID, req vatdomain.CreateRequest) (*vatdomain.VatType, error) {
	return s.CreateTx(ctx, nil, orgID, req)
}

func (s *Service) CreateTx(ctx context.Context, tx *gorm.DB, orgID snowflake.ID, req vatdomain.CreateRequest) (*vatdomain.VatType, error) {
	if orgID == 0 {
		return nil, vatdomain.ErrInvalidOrganization
	}

	now := s.clock.Now()
	vat := &vatdomain.VatType{
		ID:            s.genID.Generate(),
		OrgID:         orgID,
		Code:          strings.TrimSpace(req.Code),
		Name:          strings.TrimSpace(req.Name),
		Rate:          req.Rate,
		AccountNumber: req.AccountNumber,
		IsEnabled:     true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := vat.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.WithTx(tx).Create(ctx, vat); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, vatdomain.ErrDuplicateVatCode
		}
		return nil, err
	}

	s.invalidate(ctx, orgID, vat.Code)
	return vat, nil
}

func (s *Service) Update(ctx context.Context, orgID snowflake.ID, code string, req vatdomain.UpdateRequest) (*vatdomain.VatType, error) {
	if orgID == 0 {
		return nil, vatdomain.ErrInvalidOrganization
	}

	vat, err := s.repo.FindByCode(ctx, orgID, strings.TrimSpace(code))
	if err != nil {
		return nil, err
	}
	if vat == nil {
		return nil, vatdomain.ErrNotFound
	}

	if req.Name != nil {
		vat.Name = strings.TrimSpace(*req.Name)
	}
	if req.Rate != nil {
		vat.Rate = *req.Rate
	}
	if req.AccountNumber != nil {
		vat.AccountNumber = req.AccountNumber
	}
	if req.IsEnabled != nil {
		vat.IsEnabled = *req.IsEnabled
	}
	vat.UpdatedAt = s.clock.Now()
	if err := vat.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, vat); err != nil {
		return nil, err
	}

	s.invalidate(ctx, orgID, vat.Code)
	return vat, nil
}

func (s *Service) List(ctx context.Context, orgID snowflake.ID, req vatdomain.ListRequest) ([]*vatdomain.VatType, error) {
	if orgID == 0 {
		return nil, vatdomain.ErrInvalidOrganization
	}
	return s.repo.List(ctx, orgID, req)
}

func (s *Service) invalidate(ctx context.Context, orgID snowflake.ID, code string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, cacheKey(orgID, code)); err != nil {
		s.log.Warn("vat cache invalidation failed", zap.String("code", code), zap.Error(err))
	}
}

func enabled(vat *vatdomain.VatType) (*vatdomain.VatType, error) {
	if !vat.IsEnabled {
		return nil, vatdomain.ErrDisabled
	}
	return vat, nil
}

func cacheKey(orgID snowflake.ID, code string) string {
	return cache.Key("vat", orgID.String(), code)
}

// IsNotResolvable reports errors meaning the code cannot be used on a voucher line.
func IsNotResolvable(err error) bool {
	return errors.Is(err, vatdomain.ErrNotFound) || errors.Is(err, vatdomain.ErrDisabled)
}
