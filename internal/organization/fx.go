package organization

import (
	"go.uber.org/fx"

	"github.com/smallbiznis/bookkeeping/internal/organization/repository"
	"github.com/smallbiznis/bookkeeping/internal/organization/service"
)

var Module = fx.Module("organization.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
)
