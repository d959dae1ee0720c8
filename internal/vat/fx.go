package vat

import (
	"github.com/smallbiznis/bookkeeping/internal/vat/domain"
	"github.com/smallbiznis/bookkeeping/internal/vat/repository"
	"github.com/smallbiznis/bookkeeping/internal/vat/service"
	"go.uber.org/fx"
)

var Module = fx.Module("vat.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
	fx.Provide(func(s domain.Service) domain.Resolver { return s }),
)
