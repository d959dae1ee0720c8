package voucher

import (
	"go.uber.org/fx"

	"github.com/smallbiznis/bookkeeping/internal/voucher/numbering"
	"github.com/smallbiznis/bookkeeping/internal/voucher/repository"
	"github.com/smallbiznis/bookkeeping/internal/voucher/service"
)

var Module = fx.Module("voucher.service",
	fx.Provide(repository.Provide),
	fx.Provide(numbering.NewAuthority),
	fx.Provide(service.NewService),
)
