package observability

import (
	"context"

	"github.com/rentstack/rentflow/internal/config"
	"github.com/rentstack/rentflow/internal/observability/tracing"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module wires the logger and tracer provider for the whole process.
var Module = fx.Module("observability",
	fx.Provide(NewLogger),
	fx.Invoke(SetupTracing),
)

// NewLogger builds the process logger: JSON in production, console
// elsewhere. It is installed as the zap global so request-scoped helpers
// can pick it up.
func NewLogger(lc fx.Lifecycle, cfg config.Config) (*zap.Logger, error) {
	var (
		log *zap.Logger
		err error
	)
	if cfg.IsProduction() {
		log, err = zap.NewProduction()
	} else {
		log, err = zap.NewDevelopment()
	}
	if err != nil {
		return nil, err
	}
	log = log.With(
		zap.String("service", cfg.ServiceName),
		zap.String("environment", cfg.Environment),
	)
	zap.ReplaceGlobals(log)

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			_ = log.Sync()
			return nil
		},
	})
	return log, nil
}

// SetupTracing installs the global tracer provider from process config.
func SetupTracing(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) error {
	_, err := tracing.NewProvider(lc, tracing.Config{
		Enabled:          cfg.TracingEnabled,
		ServiceName:      cfg.ServiceName,
		Environment:      cfg.Environment,
		ExporterEndpoint: cfg.OTLPEndpoint,
	}, log)
	return err
}
