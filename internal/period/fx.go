package period

import (
	"github.com/smallbiznis/bookkeeping/internal/period/domain"
	"github.com/smallbiznis/bookkeeping/internal/period/repository"
	"github.com/smallbiznis/bookkeeping/internal/period/service"
	"go.uber.org/fx"
)

var Module = fx.Module("period.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
	fx.Provide(func(s domain.Service) domain.Guard { return s }),
)
