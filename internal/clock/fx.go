package clock

import "go.uber.org/fx"

var Module = fx.Module("clock",
	fx.Provide(NewSystemClock),
)

// NewSystemClock provides the real clock for production wiring.
func NewSystemClock() Clock {
	return SystemClock{}
}
