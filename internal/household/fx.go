package household

import (
	"github.com/rentstack/rentflow/internal/household/service"
	"go.uber.org/fx"
)

var Module = fx.Module("household.service",
	fx.Provide(service.NewService),
)
