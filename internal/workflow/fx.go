package workflow

import (
	"github.com/rentstack/rentflow/internal/events"
	"github.com/rentstack/rentflow/internal/workflow/service"
	"go.uber.org/fx"
)

var Module = fx.Module("workflow.service",
	fx.Provide(events.NewOutbox),
	fx.Provide(service.NewService),
)
