package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	accountdomain "github.com/smallbiznis/bookkeeping/internal/account/domain"
	auditdomain "github.com/smallbiznis/bookkeeping/internal/audit/domain"
	"github.com/smallbiznis/bookkeeping/internal/authorization"
	"github.com/smallbiznis/bookkeeping/internal/clock"
	"github.com/smallbiznis/bookkeeping/internal/config"
	ledgerdomain "github.com/smallbiznis/bookkeeping/internal/ledger/domain"
	"github.com/smallbiznis/bookkeeping/internal/observability"
	obsmiddleware "github.com/smallbiznis/bookkeeping/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/bookkeeping/internal/observability/metrics"
	obstracing "github.com/smallbiznis/bookkeeping/internal/observability/tracing"
	organizationdomain "github.com/smallbiznis/bookkeeping/internal/organization/domain"
	perioddomain "github.com/smallbiznis/bookkeeping/internal/period/domain"
	"github.com/smallbiznis/bookkeeping/internal/ratelimit"
	vatdomain "github.com/smallbiznis/bookkeeping/internal/vat/domain"
	voucherdomain "github.com/smallbiznis/bookkeeping/internal/voucher/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.Metrics) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

type engineParams struct {
	fx.In

	ObsCfg  observability.Config
	Metrics *obsmetrics.Metrics `optional:"true"`
}

func registerGin(p engineParams) *gin.Engine {
	return NewEngine(p.ObsCfg, p.Metrics)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
	addr := strings.TrimSpace(cfg.HTTPAddr)
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", addr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine          *gin.Engine
	cfg             config.Config
	clock           clock.Clock
	authzSvc        authorization.Service
	voucherSvc      voucherdomain.Service
	periodSvc       perioddomain.Service
	accountSvc      accountdomain.Service
	vatSvc          vatdomain.Service
	ledgerSvc       ledgerdomain.Service
	auditSvc        auditdomain.Service
	organizationSvc organizationdomain.Service
	postingLimiter  *ratelimit.PostingLimiter
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	Clock           clock.Clock
	AuthzSvc        authorization.Service
	VoucherSvc      voucherdomain.Service
	PeriodSvc       perioddomain.Service
	AccountSvc      accountdomain.Service
	VatSvc          vatdomain.Service
	LedgerSvc       ledgerdomain.Service
	AuditSvc        auditdomain.Service
	OrganizationSvc organizationdomain.Service
	PostingLimiter  *ratelimit.PostingLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		clock:           p.Clock,
		authzSvc:        p.AuthzSvc,
		voucherSvc:      p.VoucherSvc,
		periodSvc:       p.PeriodSvc,
		accountSvc:      p.AccountSvc,
		vatSvc:          p.VatSvc,
		ledgerSvc:       p.LedgerSvc,
		auditSvc:        p.AuditSvc,
		organizationSvc: p.OrganizationSvc,
		postingLimiter:  p.PostingLimiter,
	}
	if svc.clock == nil {
		svc.clock = clock.SystemClock{}
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/v1")
	api.Use(s.AuthRequired())

	api.GET("/organization", s.GetOrganization)

	// -------- Vouchers --------
	// The second segment is a document class on create routes and a voucher
	// GUID elsewhere; gin needs one wildcard name per position.
	api.GET("/vouchers", s.authorizeOrgAction(authorization.ObjectVoucher, authorization.ActionVoucherView), s.ListVouchers)
	api.GET("/vouchers/:id", s.authorizeOrgAction(authorization.ObjectVoucher, authorization.ActionVoucherView), s.GetVoucher)
	api.POST("/vouchers/:id", s.authorizeOrgAction(authorization.ObjectVoucher, authorization.ActionVoucherPost), s.limitPosting(), s.PostVoucher)
	api.POST("/vouchers/:id/drafts", s.authorizeOrgAction(authorization.ObjectVoucher, authorization.ActionVoucherDraft), s.limitPosting(), s.SaveDraft)
	api.POST("/vouchers/:id/payment-status", s.authorizeOrgAction(authorization.ObjectVoucher, authorization.ActionVoucherPaymentStatus), s.UpdatePaymentStatus)
	api.POST("/vouchers/:id/reverse", s.authorizeOrgAction(authorization.ObjectVoucher, authorization.ActionVoucherReverse), s.limitPosting(), s.ReverseVoucher)
	api.PUT("/vouchers/drafts/:id", s.authorizeOrgAction(authorization.ObjectVoucher, authorization.ActionVoucherDraft), s.limitPosting(), s.UpdateDraft)
	api.DELETE("/vouchers/drafts/:id", s.authorizeOrgAction(authorization.ObjectVoucher, authorization.ActionVoucherDraft), s.DeleteDraft)
	api.POST("/vouchers/drafts/:id/book", s.authorizeOrgAction(authorization.ObjectVoucher, authorization.ActionVoucherPost), s.limitPosting(), s.BookDraft)

	// -------- Accounting years --------
	api.GET("/accounting-years", s.authorizeOrgAction(authorization.ObjectAccountingYear, authorization.ActionPeriodView), s.ListYears)
	api.POST("/accounting-years", s.authorizeOrgAction(authorization.ObjectAccountingYear, authorization.ActionPeriodLock), s.CreateYear)
	api.PUT("/accounting-years/:year/lock", s.authorizeOrgAction(authorization.ObjectAccountingYear, authorization.ActionPeriodLock), s.LockPeriod)
	api.DELETE("/accounting-years/:year/lock", s.authorizeOrgAction(authorization.ObjectAccountingYear, authorization.ActionPeriodUnlock), s.UnlockPeriod)
	api.POST("/accounting-years/:year/close", s.authorizeOrgAction(authorization.ObjectAccountingYear, authorization.ActionPeriodLock), s.CloseYear)

	// -------- Audit --------
	api.GET("/audit", s.authorizeOrgAction(authorization.ObjectAuditRecord, authorization.ActionAuditView), s.ListAuditLogs)
	api.GET("/audit/:table/:id", s.authorizeOrgAction(authorization.ObjectAuditRecord, authorization.ActionAuditView), s.AuditTrail)

	// -------- Chart of accounts --------
	api.GET("/accounts", s.authorizeOrgAction(authorization.ObjectAccount, authorization.ActionAccountView), s.ListAccounts)
	api.POST("/accounts", s.authorizeOrgAction(authorization.ObjectAccount, authorization.ActionAccountManage), s.CreateAccount)
	api.POST("/accounts/:number/deactivate", s.authorizeOrgAction(authorization.ObjectAccount, authorization.ActionAccountManage), s.DeactivateAccount)

	// -------- VAT types --------
	api.GET("/vat-types", s.authorizeOrgAction(authorization.ObjectVatType, authorization.ActionVatView), s.ListVatTypes)
	api.POST("/vat-types", s.authorizeOrgAction(authorization.ObjectVatType, authorization.ActionVatManage), s.CreateVatType)
	api.PATCH("/vat-types/:code", s.authorizeOrgAction(authorization.ObjectVatType, authorization.ActionVatManage), s.UpdateVatType)

	// -------- Ledger --------
	api.GET("/ledger/entries", s.authorizeOrgAction(authorization.ObjectLedger, authorization.ActionLedgerView), s.ListLedgerEntries)
	api.GET("/ledger/trial-balance", s.authorizeOrgAction(authorization.ObjectLedger, authorization.ActionLedgerView), s.TrialBalance)
}

func (s *Server) GetOrganization(c *gin.Context) {
	org, err := orgID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	result, err := s.organizationSvc.GetByID(c.Request.Context(), org)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": result})
}
