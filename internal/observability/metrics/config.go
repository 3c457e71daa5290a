package metrics

import "go.uber.org/zap"

// Config labels metric streams with the service identity.
type Config struct {
	ServiceName string
	Environment string
	Log         *zap.Logger
}
