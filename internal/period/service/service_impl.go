package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/bookkeeping/internal/audit/domain"
	"github.com/smallbiznis/bookkeeping/internal/clock"
	"github.com/smallbiznis/bookkeeping/internal/config"
	"github.com/smallbiznis/bookkeeping/internal/observability/metrics"
	perioddomain "github.com/smallbiznis/bookkeeping/internal/period/domain"
	"github.com/smallbiznis/bookkeeping/pkg/db"
	"github.com/smallbiznis/bookkeeping/pkg/rls"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const auditTable = "accounting_years"

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Repo    perioddomain.Repository
	Audit   auditdomain.Recorder
	Clock   clock.Clock
	Config  config.Config
	Metrics *metrics.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	repo    perioddomain.Repository
	audit   auditdomain.Recorder
	clock   clock.Clock
	policy  perioddomain.MissingPeriodPolicy
	metrics *metrics.Metrics
}

func NewService(p Params) (perioddomain.Service, error) {
	policy, err := perioddomain.ParsePolicy(p.Config.Posting.MissingPeriodPolicy)
	if err != nil {
		return nil, err
	}
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("period.service"),
		genID:   p.GenID,
		repo:    p.Repo,
		audit:   p.Audit,
		clock:   p.Clock,
		policy:  policy,
		metrics: p.Metrics,
	}, nil
}

func (s *Service) Check(ctx context.Context, tx *gorm.DB, orgID snowflake.ID, documentDate time.Time) error {
	if tx == nil {
		tx = s.db
	}
	year, err := s.repo.FindCovering(ctx, tx, orgID, clock.Date(documentDate))
	if err != nil {
		return err
	}
	return perioddomain.EnsureOpen(documentDate, year, s.policy)
}

// LockPeriod locks every date up to and including lockedUntil. Vouchers
// dated on or before it can no longer be booked.
func (s *Service) LockPeriod(ctx context.Context, orgID snowflake.ID, year int, lockedUntil time.Time) (*perioddomain.AccountingYear, error) {
	until := clock.Date(lockedUntil)
	return s.changeLock(ctx, orgID, year, auditdomain.OperationLock, func(y *perioddomain.AccountingYear) error {
		if !y.Covers(until) {
			return perioddomain.ErrLockOutsideYear
		}
		y.LockedUntil = &until
		return nil
	})
}

func (s *Service) UnlockPeriod(ctx context.Context, orgID snowflake.ID, year int) (*perioddomain.AccountingYear, error) {
	return s.changeLock(ctx, orgID, year, auditdomain.OperationUnlock, func(y *perioddomain.AccountingYear) error {
		y.LockedUntil = nil
		y.Locked = false
		return nil
	})
}

// CloseYear locks the whole accounting year.
func (s *Service) CloseYear(ctx context.Context, orgID snowflake.ID, year int) (*perioddomain.AccountingYear, error) {
	return s.changeLock(ctx, orgID, year, auditdomain.OperationLock, func(y *perioddomain.AccountingYear) error {
		y.Locked = true
		return nil
	})
}

func (s *Service) changeLock(ctx context.Context, orgID snowflake.ID, year int, op auditdomain.Operation, mutate func(*perioddomain.AccountingYear) error) (*perioddomain.AccountingYear, error) {
	if orgID == 0 {
		return nil, perioddomain.ErrInvalidOrganization
	}

	var updated *perioddomain.AccountingYear
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := rls.WithTenant(tx, orgID); err != nil {
			return err
		}

		current, err := s.repo.FindByYear(ctx, tx, orgID, year)
		if err != nil {
			return err
		}
		if current == nil {
			return perioddomain.ErrYearNotFound
		}

		before := *current
		if err := mutate(current); err != nil {
			return err
		}
		current.UpdatedAt = s.clock.Now()

		if err := s.repo.UpdateLock(ctx, tx, current); err != nil {
			return err
		}
		if err := s.audit.Record(ctx, tx, auditdomain.Entry{
			OrgID:     orgID,
			TableName: auditTable,
			RecordID:  strconv.Itoa(year),
			Operation: op,
			ChangedData: map[string]any{
				"before": lockState(&before),
				"after":  lockState(current),
			},
		}); err != nil {
			return err
		}

		updated = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordPeriodLock(ctx, string(op))
	s.log.Info("accounting year lock changed",
		zap.String("org_id", orgID.String()),
		zap.Int("year", year),
		zap.String("operation", string(op)),
	)
	return updated, nil
}

func (s *Service) CreateYear(ctx context.Context, orgID snowflake.ID, req perioddomain.CreateYearRequest) (*perioddomain.AccountingYear, error) {
	var created *perioddomain.AccountingYear
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		created, err = s.CreateYearTx(ctx, tx, orgID, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *Service) CreateYearTx(ctx context.Context, tx *gorm.DB, orgID snowflake.ID, req perioddomain.CreateYearRequest) (*perioddomain.AccountingYear, error) {
	if orgID == 0 {
		return nil, perioddomain.ErrInvalidOrganization
	}
	if req.Year < 1900 || req.Year > 9999 {
		return nil, perioddomain.ErrInvalidYear
	}

	start, end := perioddomain.CalendarYear(req.Year)
	if req.StartDate != nil {
		start = clock.Date(*req.StartDate)
	}
	if req.EndDate != nil {
		end = clock.Date(*req.EndDate)
	}
	if end.Before(start) {
		return nil, perioddomain.ErrInvalidYear
	}

	now := s.clock.Now()
	year := &perioddomain.AccountingYear{
		ID:        s.genID.Generate(),
		OrgID:     orgID,
		Year:      req.Year,
		StartDate: start,
		EndDate:   end,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Insert(ctx, tx, year); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, perioddomain.ErrYearExists
		}
		return nil, err
	}

	if err := s.audit.Record(ctx, tx, auditdomain.Entry{
		OrgID:       orgID,
		TableName:   auditTable,
		RecordID:    strconv.Itoa(req.Year),
		Operation:   auditdomain.OperationInsert,
		ChangedData: year,
	}); err != nil {
		return nil, err
	}
	return year, nil
}

func (s *Service) ListYears(ctx context.Context, orgID snowflake.ID) ([]perioddomain.AccountingYear, error) {
	if orgID == 0 {
		return nil, perioddomain.ErrInvalidOrganization
	}
	return s.repo.List(ctx, s.db, orgID)
}

func (s *Service) FindCovering(ctx context.Context, orgID snowflake.ID, date time.Time) (*perioddomain.AccountingYear, error) {
	if orgID == 0 {
		return nil, perioddomain.ErrInvalidOrganization
	}
	year, err := s.repo.FindCovering(ctx, s.db, orgID, clock.Date(date))
	if err != nil {
		return nil, err
	}
	if year == nil {
		return nil, perioddomain.ErrYearNotFound
	}
	return year, nil
}

func lockState(y *perioddomain.AccountingYear) map[string]any {
	state := map[string]any{"locked": y.Locked, "locked_until": nil}
	if y.LockedUntil != nil {
		state["locked_until"] = y.LockedUntil.Format(time.DateOnly)
	}
	return state
}

// IsPeriodLocked reports whether err rejected a date in a locked period.
func IsPeriodLocked(err error) bool {
	return errors.Is(err, perioddomain.ErrPeriodLocked)
}
