package audit

import (
	"github.com/rentstack/rentflow/internal/audit/repository"
	"github.com/rentstack/rentflow/internal/audit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("audit.service",
	fx.Provide(repository.New),
	fx.Provide(service.NewService),
)
