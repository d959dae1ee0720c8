package audit

import (
	"github.com/smallbiznis/bookkeeping/internal/audit/domain"
	"github.com/smallbiznis/bookkeeping/internal/audit/repository"
	"github.com/smallbiznis/bookkeeping/internal/audit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("audit.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
	fx.Provide(func(s domain.Service) domain.Recorder { return s }),
)
