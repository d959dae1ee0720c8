package service

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	auditdomain "github.com/smallbiznis/bookkeeping/internal/audit/domain"
	"github.com/smallbiznis/bookkeeping/internal/audit/masking"
	"github.com/smallbiznis/bookkeeping/internal/clock"
	"github.com/smallbiznis/bookkeeping/internal/orgcontext"
	"github.com/smallbiznis/bookkeeping/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Repo  auditdomain.Repository
	Clock clock.Clock
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	repo  auditdomain.Repository
	clock clock.Clock

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

func NewService(p Params) auditdomain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("audit.service"),
		repo:    p.Repo,
		clock:   p.Clock,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

func (s *Service) Record(ctx context.Context, tx *gorm.DB, entry auditdomain.Entry) error {
	if entry.OrgID == 0 {
		return auditdomain.ErrInvalidOrganization
	}
	tableName := strings.TrimSpace(entry.TableName)
	recordID := strings.TrimSpace(entry.RecordID)
	if tableName == "" || recordID == "" {
		return auditdomain.ErrInvalidTarget
	}
	if strings.TrimSpace(string(entry.Operation)) == "" {
		return auditdomain.ErrInvalidOperation
	}

	changed, err := toJSONMap(entry.ChangedData)
	if err != nil {
		return err
	}

	id, err := s.nextID()
	if err != nil {
		return err
	}

	record := auditdomain.AuditRecord{
		ID:          id,
		OrgID:       entry.OrgID,
		UserID:      s.resolveUser(ctx, entry.UserID),
		Table:       tableName,
		RecordID:    recordID,
		Operation:   entry.Operation,
		ChangedData: changed,
		CreatedAt:   s.clock.Now(),
	}

	if tx == nil {
		tx = s.db
	}
	if err := s.repo.Insert(ctx, tx, &record); err != nil {
		s.log.Warn("failed to write audit record",
			zap.String("table", tableName),
			zap.String("operation", string(entry.Operation)),
			zap.Error(err),
		)
		return err
	}
	return nil
}

// Trail returns the history of one record, oldest first.
func (s *Service) Trail(ctx context.Context, orgID snowflake.ID, tableName, recordID string) ([]auditdomain.AuditRecord, error) {
	if orgID == 0 {
		return nil, auditdomain.ErrInvalidOrganization
	}
	tableName = strings.TrimSpace(tableName)
	recordID = strings.TrimSpace(recordID)
	if tableName == "" || recordID == "" {
		return nil, auditdomain.ErrInvalidTarget
	}
	return s.repo.Trail(ctx, s.db, orgID, tableName, recordID)
}

func (s *Service) List(ctx context.Context, orgID snowflake.ID, req auditdomain.ListRequest) (auditdomain.ListResponse, error) {
	if orgID == 0 {
		return auditdomain.ListResponse{}, auditdomain.ErrInvalidOrganization
	}

	cursor, err := pagination.DecodeCursor(req.PageToken)
	if err != nil {
		return auditdomain.ListResponse{}, err
	}
	afterID := ""
	if cursor != nil {
		if _, err := ulid.ParseStrict(cursor.ID); err != nil {
			return auditdomain.ListResponse{}, pagination.ErrInvalidPageToken
		}
		afterID = cursor.ID
	}

	limit := req.Limit()
	items, err := s.repo.List(ctx, s.db, auditdomain.ListFilter{
		OrgID:     orgID,
		TableName: req.TableName,
		Operation: req.Operation,
		AfterID:   afterID,
		Limit:     limit,
	})
	if err != nil {
		return auditdomain.ListResponse{}, err
	}

	page, info, err := pagination.BuildCursorPageInfo(items, limit, func(item *auditdomain.AuditRecord) pagination.Cursor {
		return pagination.Cursor{ID: item.ID}
	})
	if err != nil {
		return auditdomain.ListResponse{}, err
	}

	records := make([]auditdomain.AuditRecord, 0, len(page))
	for _, item := range page {
		records = append(records, *item)
	}
	return auditdomain.ListResponse{PageInfo: info, Records: records}, nil
}

func (s *Service) nextID() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, err := ulid.New(ulid.Timestamp(s.clock.Now()), s.entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func (s *Service) resolveUser(ctx context.Context, userID *string) *string {
	if userID != nil {
		if trimmed := strings.TrimSpace(*userID); trimmed != "" {
			return &trimmed
		}
	}
	if actor, ok := orgcontext.ActorFromContext(ctx); ok {
		return &actor
	}
	return nil
}

func toJSONMap(data any) (datatypes.JSONMap, error) {
	if data == nil {
		return datatypes.JSONMap{}, nil
	}
	if m, ok := data.(map[string]any); ok {
		return datatypes.JSONMap(masking.RedactSensitive(m)), nil
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", auditdomain.ErrInvalidChangedData, err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", auditdomain.ErrInvalidChangedData, err)
	}
	return datatypes.JSONMap(masking.RedactSensitive(out)), nil
}
