package authorization

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/smallbiznis/bookkeeping/internal/observability/logger"
)

//go:embed model.conf
var modelText string

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
}

type ServiceImpl struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
}

// NewEnforcer persists policies through the gorm adapter and seeds the
// built-in role permissions.
func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	return seeded(enforcer)
}

// NewMemoryEnforcer keeps policies in memory only.
func NewMemoryEnforcer() (*casbin.SyncedEnforcer, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, err
	}
	return seeded(enforcer)
}

func seeded(enforcer *casbin.SyncedEnforcer) (*casbin.SyncedEnforcer, error) {
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	if err := enforcer.BuildRoleLinks(); err != nil {
		return nil, err
	}
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, actor, role, orgID, object, action string) error {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return ErrInvalidActor
	}
	orgID = strings.TrimSpace(orgID)
	if parsed, err := snowflake.ParseString(orgID); err != nil || parsed == 0 {
		return ErrInvalidOrganization
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	subject, roleName, err := resolveActor(actor, role)
	if err != nil {
		return err
	}

	domain := fmt.Sprintf("org:%s", orgID)
	if err := s.ensureGrouping(subject, roleName, domain); err != nil {
		return err
	}

	allowed, err := s.enforcer.Enforce(subject, domain, object, action)
	if err != nil {
		return err
	}
	if !allowed {
		logger.WithContext(ctx, s.log).Warn("authorization denied",
			zap.String("subject", subject),
			zap.String("role", roleName),
			zap.String("object", object),
			zap.String("action", action),
		)
		return ErrForbidden
	}
	return nil
}

func resolveActor(actor, role string) (string, string, error) {
	if actor == RoleSystem {
		return actor, "role:" + RoleSystem, nil
	}
	if !strings.HasPrefix(actor, "user:") || strings.TrimPrefix(actor, "user:") == "" {
		return "", "", ErrInvalidActor
	}

	role = strings.ToLower(strings.TrimSpace(role))
	switch role {
	case RoleOwner, RoleAdmin, RoleAccountant, RoleViewer:
		return actor, "role:" + role, nil
	default:
		return "", "", ErrInvalidRole
	}
}

// ensureGrouping keeps exactly one role link for subject in domain.
func (s *ServiceImpl) ensureGrouping(subject, roleName, domain string) error {
	existing, err := s.enforcer.GetFilteredGroupingPolicy(0, subject, "", domain)
	if err != nil {
		return err
	}
	for _, rule := range existing {
		if len(rule) < 2 || rule[1] == roleName {
			continue
		}
		params := make([]interface{}, 0, len(rule))
		for _, value := range rule {
			params = append(params, value)
		}
		if _, err := s.enforcer.RemoveGroupingPolicy(params...); err != nil {
			return err
		}
	}

	has, err := s.enforcer.HasGroupingPolicy(subject, roleName, domain)
	if err != nil {
		return err
	}
	if has {
		return nil
	}
	_, err = s.enforcer.AddGroupingPolicy(subject, roleName, domain)
	return err
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	view := [][]string{
		{ObjectVoucher, ActionVoucherView},
		{ObjectAccountingYear, ActionPeriodView},
		{ObjectAccount, ActionAccountView},
		{ObjectVatType, ActionVatView},
		{ObjectLedger, ActionLedgerView},
	}
	book := [][]string{
		{ObjectVoucher, ActionVoucherPost},
		{ObjectVoucher, ActionVoucherDraft},
		{ObjectVoucher, ActionVoucherReverse},
		{ObjectVoucher, ActionVoucherPaymentStatus},
		{ObjectAuditRecord, ActionAuditView},
	}
	manage := [][]string{
		{ObjectAccountingYear, ActionPeriodLock},
		{ObjectAccountingYear, ActionPeriodUnlock},
		{ObjectAccount, ActionAccountManage},
		{ObjectVatType, ActionVatManage},
	}

	grants := map[string][][][]string{
		RoleViewer:     {view},
		RoleAccountant: {view, book},
		RoleAdmin:      {view, book, manage},
		RoleOwner:      {view, book, manage},
		RoleSystem:     {view, book, manage},
	}

	for role, groups := range grants {
		for _, group := range groups {
			for _, rule := range group {
				if _, err := enforcer.AddPolicy("role:"+role, rule[0], rule[1]); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
