package ledger

import (
	"go.uber.org/fx"

	ledgerdomain "github.com/smallbiznis/bookkeeping/internal/ledger/domain"
	"github.com/smallbiznis/bookkeeping/internal/ledger/service"
)

var Module = fx.Module("ledger.service",
	fx.Provide(service.NewService),
	fx.Provide(func(s ledgerdomain.Service) ledgerdomain.Writer { return s }),
)
