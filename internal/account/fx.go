package account

import (
	"github.com/smallbiznis/bookkeeping/internal/account/domain"
	"github.com/smallbiznis/bookkeeping/internal/account/repository"
	"github.com/smallbiznis/bookkeeping/internal/account/service"
	"go.uber.org/fx"
)

var Module = fx.Module("account.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
	fx.Provide(func(s domain.Service) domain.Directory { return s }),
)
