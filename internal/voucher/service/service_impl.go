package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	accountdomain "github.com/smallbiznis/bookkeeping/internal/account/domain"
	auditdomain "github.com/smallbiznis/bookkeeping/internal/audit/domain"
	"github.com/smallbiznis/bookkeeping/internal/clock"
	"github.com/smallbiznis/bookkeeping/internal/config"
	ledgerdomain "github.com/smallbiznis/bookkeeping/internal/ledger/domain"
	"github.com/smallbiznis/bookkeeping/internal/observability/logger"
	"github.com/smallbiznis/bookkeeping/internal/observability/metrics"
	"github.com/smallbiznis/bookkeeping/internal/observability/tracing"
	"github.com/smallbiznis/bookkeeping/internal/orgcontext"
	perioddomain "github.com/smallbiznis/bookkeeping/internal/period/domain"
	vatdomain "github.com/smallbiznis/bookkeeping/internal/vat/domain"
	"github.com/smallbiznis/bookkeeping/internal/voucher/domain"
	"github.com/smallbiznis/bookkeeping/pkg/db"
	"github.com/smallbiznis/bookkeeping/pkg/db/pagination"
	"github.com/smallbiznis/bookkeeping/pkg/rls"
)

const auditTable = "vouchers"

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Repo      domain.Repository
	Numbering domain.Numbering
	Accounts  accountdomain.Directory
	Vat       vatdomain.Resolver
	Guard     perioddomain.Guard
	Ledger    ledgerdomain.Writer
	Audit     auditdomain.Recorder
	Clock     clock.Clock
	Config    config.Config
	Metrics   *metrics.Metrics `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	repo      domain.Repository
	numbering domain.Numbering
	accounts  accountdomain.Directory
	vat       vatdomain.Resolver
	guard     perioddomain.Guard
	ledger    ledgerdomain.Writer
	audit     auditdomain.Recorder
	clock     clock.Clock
	metrics   *metrics.Metrics

	timeout     time.Duration
	maxAttempts int
	backoffBase time.Duration
}

func NewService(p Params) domain.Service {
	maxAttempts := p.Config.Posting.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	timeout := p.Config.Posting.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	backoffBase := p.Config.Posting.BackoffBase
	if backoffBase <= 0 {
		backoffBase = 20 * time.Millisecond
	}

	return &Service{
		db:          p.DB,
		log:         p.Log.Named("voucher.service"),
		genID:       p.GenID,
		repo:        p.Repo,
		numbering:   p.Numbering,
		accounts:    p.Accounts,
		vat:         p.Vat,
		guard:       p.Guard,
		ledger:      p.Ledger,
		audit:       p.Audit,
		clock:       p.Clock,
		metrics:     p.Metrics,
		timeout:     timeout,
		maxAttempts: maxAttempts,
		backoffBase: backoffBase,
	}
}

// prepared is a validated voucher ready to be persisted, together with the
// VAT types its lines resolved to.
type prepared struct {
	voucher *domain.Voucher
	vat     map[string]*vatdomain.VatType
}

// postRun collects what a posting did for metrics and logs.
type postRun struct {
	class    domain.DocumentClass
	attempts int
	entries  int
}

type persistFunc func(ctx context.Context, tx *gorm.DB, v *domain.Voucher) error

func (s *Service) Post(ctx context.Context, orgID snowflake.ID, class domain.DocumentClass, req domain.DraftRequest) (*domain.PostResult, error) {
	return s.instrument(ctx, "voucher.post", orgID, func(ctx context.Context, run *postRun) (*domain.PostResult, error) {
		run.class = class
		p, err := s.prepare(ctx, orgID, class, req)
		if err != nil {
			return nil, err
		}
		return s.book(ctx, run, p, s.insertVoucher)
	})
}

func (s *Service) BookDraft(ctx context.Context, orgID snowflake.ID, guid string) (*domain.PostResult, error) {
	return s.instrument(ctx, "voucher.book_draft", orgID, func(ctx context.Context, run *postRun) (*domain.PostResult, error) {
		current, err := s.load(ctx, s.db, orgID, guid)
		if err != nil {
			return nil, err
		}
		run.class = current.DocumentClass
		if current.Status != domain.StatusDraft {
			return nil, domain.ErrNotDraft
		}

		p, err := s.prepare(ctx, orgID, current.DocumentClass, requestFrom(current))
		if err != nil {
			return nil, err
		}
		p.voucher.ID = current.ID
		p.voucher.GUID = current.GUID
		p.voucher.CreatedAt = current.CreatedAt
		return s.book(ctx, run, p, s.bookStoredDraft)
	})
}

// Reverse cancels a booked voucher by posting a credit note with mirrored
// lines. The original stays untouched.
func (s *Service) Reverse(ctx context.Context, orgID snowflake.ID, guid string, req domain.ReverseRequest) (*domain.PostResult, error) {
	return s.instrument(ctx, "voucher.reverse", orgID, func(ctx context.Context, run *postRun) (*domain.PostResult, error) {
		run.class = domain.ClassCreditNote
		original, err := s.load(ctx, s.db, orgID, guid)
		if err != nil {
			return nil, err
		}
		if !original.Status.IsBooked() {
			return nil, domain.ErrNotBooked
		}
		if original.DocumentClass == domain.ClassCreditNote {
			return nil, domain.ErrReverseCreditNote
		}
		existing, err := s.repo.FindCreditNoteFor(ctx, s.db, orgID, original.GUID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return nil, domain.ErrAlreadyReversed
		}

		p, err := s.prepareReversal(ctx, original, req)
		if err != nil {
			return nil, err
		}

		originalGUID := original.GUID
		return s.book(ctx, run, p, func(ctx context.Context, tx *gorm.DB, v *domain.Voucher) error {
			existing, err := s.repo.FindCreditNoteFor(ctx, tx, v.OrgID, originalGUID)
			if err != nil {
				return err
			}
			if existing != nil {
				return domain.ErrAlreadyReversed
			}
			return s.repo.Insert(ctx, tx, v)
		})
	})
}

// instrument bounds fn by the posting timeout, classifies its error and
// records the outcome.
func (s *Service) instrument(ctx context.Context, op string, orgID snowflake.ID, fn func(context.Context, *postRun) (*domain.PostResult, error)) (*domain.PostResult, error) {
	ctx, span := tracing.StartSpan(ctx, op, attribute.String("org_id", orgID.String()))
	defer span.End()

	started := time.Now()
	postCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	run := &postRun{}
	result, err := fn(postCtx, run)
	if err != nil {
		err = s.classify(postCtx, op, err, run.attempts)
	}

	outcome := outcomeOf(err)
	s.metrics.RecordPosting(ctx, string(run.class), outcome, run.attempts, time.Since(started))
	span.SetAttributes(
		attribute.String("document_class", string(run.class)),
		attribute.Int("attempts", run.attempts),
		attribute.String("outcome", outcome),
	)

	log := logger.WithContext(ctx, s.log)
	if _, ok := orgcontext.OrgIDFromContext(ctx); !ok {
		log = log.With(zap.String("org_id", orgID.String()))
	}
	log = log.With(
		zap.String("operation", op),
		zap.String("document_class", string(run.class)),
		zap.Int("attempts", run.attempts),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		if outcome == metrics.OutcomeStorage {
			log.Error("voucher posting failed", zap.Error(err))
		} else {
			log.Warn("voucher posting rejected", zap.String("outcome", outcome), zap.Error(err))
		}
		return nil, err
	}

	s.metrics.AddLedgerEntries(ctx, string(run.class), run.entries)
	log.Info("voucher booked",
		zap.String("guid", result.GUID),
		zap.Int64("number", result.Number),
		zap.Int("ledger_entries", run.entries),
	)
	return result, nil
}

// book runs the checks that need no lock and then the booking transaction,
// retrying the whole transaction when a concurrent writer wins.
func (s *Service) book(ctx context.Context, run *postRun, p *prepared, persist persistFunc) (*domain.PostResult, error) {
	v := p.voucher
	if _, err := domain.ValidateBalance(v.Currency, v.Lines); err != nil {
		return nil, err
	}
	if err := s.guard.Check(ctx, s.db, v.OrgID, v.DocumentDate); err != nil {
		return nil, err
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.backoffBase
	policy.MaxInterval = s.backoffBase * 16

	entries, err := backoff.Retry(ctx, func() (int, error) {
		run.attempts++
		n, err := s.bookOnce(ctx, v, p.vat, persist)
		if err == nil {
			return n, nil
		}
		if !isRetryable(err) || ctx.Err() != nil {
			return 0, backoff.Permanent(err)
		}
		if run.attempts < s.maxAttempts {
			s.metrics.RecordRetry(ctx, string(v.DocumentClass), err)
			s.log.Debug("voucher booking conflict, retrying",
				zap.String("document_class", string(v.DocumentClass)),
				zap.Int("attempt", run.attempts),
				zap.Error(err),
			)
		}
		return 0, err
	}, backoff.WithBackOff(policy), backoff.WithMaxTries(uint(s.maxAttempts)))
	if err != nil {
		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			err = permanent.Err
		}
		return nil, err
	}

	run.entries = entries
	return &domain.PostResult{GUID: v.GUID, Number: *v.Number, Voucher: v}, nil
}

// bookOnce is one attempt: number, persist, project and audit in a single
// transaction. The period guard is evaluated again under the transaction.
func (s *Service) bookOnce(ctx context.Context, v *domain.Voucher, vat map[string]*vatdomain.VatType, persist persistFunc) (int, error) {
	var entries int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := rls.WithTenant(tx, v.OrgID); err != nil {
			return err
		}
		if err := s.guard.Check(ctx, tx, v.OrgID, v.DocumentDate); err != nil {
			return err
		}

		number, err := s.numbering.NextNumber(ctx, tx, v.OrgID, v.DocumentClass)
		if err != nil {
			return err
		}
		now := s.clock.Now().UTC()
		v.Number = &number
		v.Status = domain.StatusBooked
		v.BookedAt = &now
		v.UpdatedAt = now

		if err := persist(ctx, tx, v); err != nil {
			return err
		}
		entries, err = s.ledger.WriteTx(ctx, tx, v, vat)
		if err != nil {
			return err
		}
		return s.audit.Record(ctx, tx, auditdomain.Entry{
			OrgID:       v.OrgID,
			TableName:   auditTable,
			RecordID:    v.GUID,
			Operation:   auditdomain.OperationBook,
			ChangedData: v,
		})
	}, db.SerializableTx(s.db)...)
	if err != nil {
		v.Number = nil
		v.Status = domain.StatusDraft
		v.BookedAt = nil
		return 0, err
	}
	return entries, nil
}

func (s *Service) insertVoucher(ctx context.Context, tx *gorm.DB, v *domain.Voucher) error {
	return s.repo.Insert(ctx, tx, v)
}

func (s *Service) bookStoredDraft(ctx context.Context, tx *gorm.DB, v *domain.Voucher) error {
	n, err := s.repo.UpdateHeader(ctx, tx, v, []domain.Status{domain.StatusDraft})
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotDraft
	}
	return s.repo.ReplaceLines(ctx, tx, v)
}

func (s *Service) SaveDraft(ctx context.Context, orgID snowflake.ID, class domain.DocumentClass, req domain.DraftRequest) (*domain.Voucher, error) {
	p, err := s.prepare(ctx, orgID, class, req)
	if err != nil {
		return nil, s.classify(ctx, "voucher.save_draft", err, 0)
	}
	v := p.voucher

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := rls.WithTenant(tx, orgID); err != nil {
			return err
		}
		if err := s.repo.Insert(ctx, tx, v); err != nil {
			return err
		}
		return s.audit.Record(ctx, tx, auditdomain.Entry{
			OrgID:       orgID,
			TableName:   auditTable,
			RecordID:    v.GUID,
			Operation:   auditdomain.OperationInsert,
			ChangedData: v,
		})
	})
	if err != nil {
		return nil, s.classify(ctx, "voucher.save_draft", err, 0)
	}

	s.log.Info("voucher draft saved",
		zap.String("org_id", orgID.String()),
		zap.String("guid", v.GUID),
		zap.String("document_class", string(class)),
	)
	return v, nil
}

func (s *Service) UpdateDraft(ctx context.Context, orgID snowflake.ID, guid string, req domain.DraftRequest) (*domain.Voucher, error) {
	current, err := s.load(ctx, s.db, orgID, guid)
	if err != nil {
		return nil, err
	}
	if current.Status != domain.StatusDraft {
		return nil, domain.ErrNotDraft
	}

	p, err := s.prepare(ctx, orgID, current.DocumentClass, req)
	if err != nil {
		return nil, s.classify(ctx, "voucher.update_draft", err, 0)
	}
	v := p.voucher
	v.ID = current.ID
	v.GUID = current.GUID
	v.CreatedAt = current.CreatedAt

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := rls.WithTenant(tx, orgID); err != nil {
			return err
		}
		n, err := s.repo.UpdateHeader(ctx, tx, v, []domain.Status{domain.StatusDraft})
		if err != nil {
			return err
		}
		if n == 0 {
			return domain.ErrNotDraft
		}
		if err := s.repo.ReplaceLines(ctx, tx, v); err != nil {
			return err
		}
		return s.audit.Record(ctx, tx, auditdomain.Entry{
			OrgID:       orgID,
			TableName:   auditTable,
			RecordID:    v.GUID,
			Operation:   auditdomain.OperationUpdate,
			ChangedData: map[string]any{"before": current, "after": v},
		})
	})
	if err != nil {
		return nil, s.classify(ctx, "voucher.update_draft", err, 0)
	}
	return v, nil
}

func (s *Service) DeleteDraft(ctx context.Context, orgID snowflake.ID, guid string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := rls.WithTenant(tx, orgID); err != nil {
			return err
		}
		current, err := s.load(ctx, tx, orgID, guid)
		if err != nil {
			return err
		}
		if current.Status != domain.StatusDraft {
			return domain.ErrNotDraft
		}
		n, err := s.repo.Delete(ctx, tx, orgID, current.ID)
		if err != nil {
			return err
		}
		if n == 0 {
			return domain.ErrNotDraft
		}
		return s.audit.Record(ctx, tx, auditdomain.Entry{
			OrgID:       orgID,
			TableName:   auditTable,
			RecordID:    current.GUID,
			Operation:   auditdomain.OperationDelete,
			ChangedData: current,
		})
	})
	if err != nil {
		return s.classify(ctx, "voucher.delete_draft", err, 0)
	}
	return nil
}

// UpdatePaymentStatus moves a booked voucher between payment states.
// Amounts and lines are never touched.
func (s *Service) UpdatePaymentStatus(ctx context.Context, orgID snowflake.ID, guid string, status domain.Status) (*domain.Voucher, error) {
	if !status.IsBooked() {
		return nil, domain.ErrInvalidStatus
	}
	current, err := s.load(ctx, s.db, orgID, guid)
	if err != nil {
		return nil, err
	}
	if !current.Status.IsBooked() {
		return nil, domain.ErrNotBooked
	}
	if current.Status == status {
		return current, nil
	}

	previous := current.Status
	now := s.clock.Now().UTC()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := rls.WithTenant(tx, orgID); err != nil {
			return err
		}
		n, err := s.repo.UpdateStatus(ctx, tx, orgID, current.ID, domain.BookedStatuses(), status, now)
		if err != nil {
			return err
		}
		if n == 0 {
			return domain.ErrNotBooked
		}
		return s.audit.Record(ctx, tx, auditdomain.Entry{
			OrgID:     orgID,
			TableName: auditTable,
			RecordID:  current.GUID,
			Operation: auditdomain.OperationUpdate,
			ChangedData: map[string]any{
				"before": map[string]any{"status": previous},
				"after":  map[string]any{"status": status},
			},
		})
	})
	if err != nil {
		return nil, s.classify(ctx, "voucher.update_payment_status", err, 0)
	}

	current.Status = status
	current.UpdatedAt = now
	return current, nil
}

func (s *Service) Get(ctx context.Context, orgID snowflake.ID, guid string) (*domain.Voucher, error) {
	return s.load(ctx, s.db, orgID, guid)
}

func (s *Service) List(ctx context.Context, orgID snowflake.ID, req domain.ListRequest) (domain.ListResponse, error) {
	if orgID == 0 {
		return domain.ListResponse{}, domain.ErrInvalidOrganization
	}

	cursor, err := pagination.DecodeCursor(req.PageToken)
	if err != nil {
		return domain.ListResponse{}, err
	}
	if cursor != nil {
		if _, err := snowflake.ParseString(cursor.ID); err != nil {
			return domain.ListResponse{}, pagination.ErrInvalidPageToken
		}
		if _, err := time.Parse(time.RFC3339Nano, cursor.Date); err != nil {
			return domain.ListResponse{}, pagination.ErrInvalidPageToken
		}
	}

	limit := req.Limit()
	items, err := s.repo.List(ctx, s.db, domain.ListFilter{
		OrgID:         orgID,
		DocumentClass: req.DocumentClass,
		Status:        req.Status,
		From:          datePtr(req.From),
		To:            datePtr(req.To),
		After:         cursor,
		Limit:         limit,
	})
	if err != nil {
		return domain.ListResponse{}, err
	}

	page, info, err := pagination.BuildCursorPageInfo(items, limit, func(v *domain.Voucher) pagination.Cursor {
		return pagination.Cursor{ID: v.ID.String(), Date: v.DocumentDate.UTC().Format(time.RFC3339Nano)}
	})
	if err != nil {
		return domain.ListResponse{}, err
	}
	return domain.ListResponse{PageInfo: info, Vouchers: page}, nil
}

func (s *Service) load(ctx context.Context, conn *gorm.DB, orgID snowflake.ID, guid string) (*domain.Voucher, error) {
	if orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}
	guid = strings.TrimSpace(guid)
	if guid == "" {
		return nil, domain.ErrNotFound
	}
	v, err := s.repo.FindByGUID(ctx, conn, orgID, guid)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, domain.ErrNotFound
	}
	return v, nil
}

// prepare validates req and builds the voucher with computed line and
// header totals. It reads accounts and VAT types but writes nothing.
func (s *Service) prepare(ctx context.Context, orgID snowflake.ID, class domain.DocumentClass, req domain.DraftRequest) (*prepared, error) {
	if orgID == 0 {
		return nil, domain.Invalid("org_id", "required", "organization is required")
	}
	if _, ok := domain.ParseDocumentClass(string(class)); !ok {
		return nil, domain.Invalid("document_class", "invalid", fmt.Sprintf("unknown document class %q", class))
	}
	if req.DocumentDate.IsZero() {
		return nil, domain.Invalid("document_date", "required", "document date is required")
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if !validCurrency(currency) {
		return nil, domain.Invalid("currency", "invalid", "currency must be a three letter ISO code")
	}
	documentDate := clock.Date(req.DocumentDate)
	var dueDate *time.Time
	if req.DueDate != nil {
		d := clock.Date(*req.DueDate)
		if d.Before(documentDate) {
			return nil, domain.Invalid("due_date", "before_document_date", "due date is before the document date")
		}
		dueDate = &d
	}
	contact := trimmed(req.ContactGUID)
	if contact != nil {
		if _, err := uuid.Parse(*contact); err != nil {
			return nil, domain.Invalid("contact_guid", "invalid", "contact guid is not a valid uuid")
		}
	}
	if len(req.Lines) == 0 {
		return nil, domain.Invalid("lines", "required", "at least one line is required")
	}

	numbers := make([]int64, 0, len(req.Lines))
	for _, line := range req.Lines {
		numbers = append(numbers, line.AccountNumber)
	}
	accounts, err := s.accounts.LookupMany(ctx, orgID, numbers)
	if err != nil {
		return nil, err
	}

	one := decimal.NewFromInt(1)
	vat := make(map[string]*vatdomain.VatType)
	lines := make([]domain.VoucherLine, 0, len(req.Lines))
	for i, lr := range req.Lines {
		field := fmt.Sprintf("lines[%d]", i)
		if lr.AccountNumber <= 0 {
			return nil, domain.Invalid(field+".account_number", "required", "account number is required")
		}
		if !lr.Direction.Valid() {
			return nil, domain.Invalid(field+".direction", "invalid", "direction must be debit or credit")
		}
		quantity := one
		if lr.Quantity != nil {
			quantity = *lr.Quantity
		}
		if !quantity.IsPositive() {
			return nil, domain.Invalid(field+".quantity", "out_of_range", "quantity must be greater than zero")
		}
		if lr.UnitAmountExclVat.IsNegative() {
			return nil, domain.Invalid(field+".unit_amount_excl_vat", "out_of_range", "unit amount must not be negative")
		}
		if lr.Discount.IsNegative() || lr.Discount.GreaterThanOrEqual(one) {
			return nil, domain.Invalid(field+".discount", "out_of_range", "discount must be at least 0 and below 1")
		}

		account, ok := accounts[lr.AccountNumber]
		if !ok {
			return nil, domain.Invalid(field+".account_number", "unknown_account", fmt.Sprintf("account %d does not exist", lr.AccountNumber))
		}
		if !account.IsActive {
			return nil, domain.Invalid(field+".account_number", "inactive_account", fmt.Sprintf("account %d is inactive", lr.AccountNumber))
		}

		code := account.VatCode
		if lr.VatCode != nil {
			code = lr.VatCode
		}
		var vatCode *string
		rate := decimal.Zero
		if c := trimmed(code); c != nil {
			vt, ok := vat[*c]
			if !ok {
				vt, err = s.vat.Resolve(ctx, orgID, *c)
				if err != nil {
					if errors.Is(err, vatdomain.ErrNotFound) || errors.Is(err, vatdomain.ErrDisabled) {
						return nil, domain.Invalid(field+".vat_code", "unknown_vat_code", fmt.Sprintf("vat code %q cannot be used", *c))
					}
					return nil, err
				}
				vat[*c] = vt
			}
			vatCode = c
			rate = vt.Rate
		}

		line := domain.VoucherLine{
			ID:                s.genID.Generate(),
			OrgID:             orgID,
			Position:          i + 1,
			AccountNumber:     lr.AccountNumber,
			Direction:         lr.Direction,
			Description:       trimmed(lr.Description),
			Quantity:          quantity,
			UnitAmountExclVat: lr.UnitAmountExclVat,
			Discount:          lr.Discount,
			VatCode:           vatCode,
			VatRate:           rate,
		}
		domain.ComputeLine(currency, &line)
		lines = append(lines, line)
	}

	now := s.clock.Now().UTC()
	v := &domain.Voucher{
		ID:                s.genID.Generate(),
		GUID:              uuid.NewString(),
		OrgID:             orgID,
		DocumentClass:     class,
		Status:            domain.StatusDraft,
		DocumentDate:      documentDate,
		Currency:          currency,
		Description:       trimmed(req.Description),
		ExternalReference: trimmed(req.ExternalReference),
		ContactGUID:       contact,
		DueDate:           dueDate,
		CreatedAt:         now,
		UpdatedAt:         now,
		Lines:             lines,
	}
	applyTotals(v)
	return &prepared{voucher: v, vat: vat}, nil
}

// classify maps an error leaving the service onto the posting taxonomy.
// Domain rejections pass through unchanged.
func (s *Service) classify(ctx context.Context, op string, err error, attempts int) error {
	switch {
	case err == nil:
		return nil
	case isDomainErr(err):
		return err
	case errors.Is(ctx.Err(), context.DeadlineExceeded), db.IsLockTimeoutErr(err):
		return &domain.TimeoutError{Op: op, Err: err}
	case errors.Is(err, context.Canceled):
		return err
	case isRetryable(err):
		return &domain.NumberingConflictError{Attempts: attempts, Err: err}
	default:
		return &domain.StorageError{Op: op, Err: err}
	}
}

func isDomainErr(err error) bool {
	for _, target := range []error{
		domain.ErrValidation,
		domain.ErrUnbalanced,
		perioddomain.ErrPeriodLocked,
		domain.ErrNotFound,
		domain.ErrNotDraft,
		domain.ErrNotBooked,
		domain.ErrInvalidStatus,
		domain.ErrAlreadyReversed,
		domain.ErrReverseCreditNote,
		domain.ErrInvalidOrganization,
		domain.ErrTimeout,
		domain.ErrNumberingConflict,
		domain.ErrStorage,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func isRetryable(err error) bool {
	return db.IsDuplicateKeyErr(err) || db.IsSerializationErr(err)
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.Is(err, domain.ErrUnbalanced):
		return metrics.OutcomeUnbalanced
	case errors.Is(err, perioddomain.ErrPeriodLocked):
		return metrics.OutcomePeriodLocked
	case errors.Is(err, domain.ErrNumberingConflict):
		return metrics.OutcomeNumberingConflict
	case errors.Is(err, domain.ErrTimeout):
		return metrics.OutcomeTimeout
	case errors.Is(err, domain.ErrStorage):
		return metrics.OutcomeStorage
	default:
		return metrics.OutcomeValidation
	}
}

func applyTotals(v *domain.Voucher) {
	// Drafts may be unbalanced; the error is raised again when booking.
	totals, _ := domain.ValidateBalance(v.Currency, v.Lines)
	v.TotalDebit = totals.Debit
	v.TotalCredit = totals.Credit
}

// requestFrom rebuilds the request a stored draft was saved from. A line
// without VAT keeps an explicit empty code so the account default is not
// applied again.
func requestFrom(v *domain.Voucher) domain.DraftRequest {
	req := domain.DraftRequest{
		DocumentDate:      v.DocumentDate,
		Currency:          v.Currency,
		Description:       v.Description,
		ExternalReference: v.ExternalReference,
		ContactGUID:       v.ContactGUID,
		DueDate:           v.DueDate,
		Lines:             make([]domain.LineRequest, 0, len(v.Lines)),
	}
	for _, line := range v.Lines {
		req.Lines = append(req.Lines, lineRequest(line, line.Direction))
	}
	return req
}

// prepareReversal mirrors the stored lines of original into a credit note.
// The lines keep their booked account, VAT code and rate, so accounts
// deactivated or VAT types disabled since booking do not block it. Only
// the VAT accounts the ledger projection needs are looked up.
func (s *Service) prepareReversal(ctx context.Context, original *domain.Voucher, req domain.ReverseRequest) (*prepared, error) {
	documentDate := clock.Date(s.clock.Now())
	if req.DocumentDate != nil {
		if req.DocumentDate.IsZero() {
			return nil, domain.Invalid("document_date", "required", "document date is required")
		}
		documentDate = clock.Date(*req.DocumentDate)
	}
	description := trimmed(req.Description)
	if description == nil {
		text := fmt.Sprintf("Credit note for %s %d", original.DocumentClass, *original.Number)
		description = &text
	}

	vat := make(map[string]*vatdomain.VatType)
	lines := make([]domain.VoucherLine, 0, len(original.Lines))
	for i, booked := range original.Lines {
		if code := trimmed(booked.VatCode); code != nil {
			if _, ok := vat[*code]; !ok {
				vt, err := s.vat.Lookup(ctx, original.OrgID, *code)
				if err != nil {
					return nil, err
				}
				vat[*code] = vt
			}
		}
		line := domain.VoucherLine{
			ID:                s.genID.Generate(),
			OrgID:             original.OrgID,
			Position:          i + 1,
			AccountNumber:     booked.AccountNumber,
			Direction:         booked.Direction.Opposite(),
			Description:       booked.Description,
			Quantity:          booked.Quantity,
			UnitAmountExclVat: booked.UnitAmountExclVat,
			Discount:          booked.Discount,
			VatCode:           booked.VatCode,
			VatRate:           booked.VatRate,
		}
		domain.ComputeLine(original.Currency, &line)
		lines = append(lines, line)
	}

	originalGUID := original.GUID
	now := s.clock.Now().UTC()
	v := &domain.Voucher{
		ID:                  s.genID.Generate(),
		GUID:                uuid.NewString(),
		OrgID:               original.OrgID,
		DocumentClass:       domain.ClassCreditNote,
		Status:              domain.StatusDraft,
		DocumentDate:        documentDate,
		Currency:            original.Currency,
		Description:         description,
		ExternalReference:   original.ExternalReference,
		ContactGUID:         original.ContactGUID,
		CreditedVoucherGUID: &originalGUID,
		CreatedAt:           now,
		UpdatedAt:           now,
		Lines:               lines,
	}
	applyTotals(v)
	return &prepared{voucher: v, vat: vat}, nil
}

func lineRequest(line domain.VoucherLine, direction domain.Direction) domain.LineRequest {
	quantity := line.Quantity
	code := ""
	if line.VatCode != nil {
		code = *line.VatCode
	}
	return domain.LineRequest{
		AccountNumber:     line.AccountNumber,
		Direction:         direction,
		Description:       line.Description,
		Quantity:          &quantity,
		UnitAmountExclVat: line.UnitAmountExclVat,
		Discount:          line.Discount,
		VatCode:           &code,
	}
}

func validCurrency(code string) bool {
	if len(code) != 3 {
		return false
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

func trimmed(value *string) *string {
	if value == nil {
		return nil
	}
	v := strings.TrimSpace(*value)
	if v == "" {
		return nil
	}
	return &v
}

func datePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := clock.Date(*t)
	return &d
}
