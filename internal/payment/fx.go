package payment

import (
	"github.com/rentstack/rentflow/internal/payment/adapters"
	"github.com/rentstack/rentflow/internal/payment/adapters/sandbox"
	paymentdomain "github.com/rentstack/rentflow/internal/payment/domain"
	"github.com/rentstack/rentflow/internal/payment/repository"
	"github.com/rentstack/rentflow/internal/payment/service"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.service",
	fx.Provide(repository.New),
	fx.Provide(NewRegistry),
	fx.Provide(NewProcessor),
	fx.Provide(service.NewService),
)

// NewRegistry wires every supported provider adapter. Real providers slot in
// here alongside the sandbox.
func NewRegistry() *adapters.Registry {
	return adapters.NewRegistry(sandbox.Factory{})
}

// NewProcessor provides the outbound processor client.
func NewProcessor() paymentdomain.ProcessorClient {
	return &sandbox.Processor{}
}
