package domain

import (
	"context"
	"net/http"

	"github.com/bwmarrin/snowflake"
	ledgerdomain "github.com/rentstack/rentflow/internal/ledger/domain"
)

// PaymentAdapter normalizes one provider's webhook traffic.
type PaymentAdapter interface {
	Verify(ctx context.Context, payload []byte, headers http.Header) error
	Parse(ctx context.Context, payload []byte) (*PaymentEvent, error)
}

// AdapterConfig carries per-provider settings (shared secrets and the like).
type AdapterConfig struct {
	Provider string
	Secret   string
}

// AdapterFactory builds adapters for a single provider.
type AdapterFactory interface {
	Provider() string
	NewAdapter(config AdapterConfig) (PaymentAdapter, error)
}

// IntentRequest asks the processor to set up a payment.
type IntentRequest struct {
	OrgID           snowflake.ID
	ApplicationID   snowflake.ID
	Bucket          ledgerdomain.Bucket
	AmountCents     int64
	ClientReference string
}

// IntentResponse is what the presentation layer needs to send the payer to
// the processor.
type IntentResponse struct {
	IntentID    string `json:"intent_id"`
	RedirectURL string `json:"redirect_url"`
}

// ProcessorClient is the outbound contract to the hosted payment processor.
// The engine never talks to a provider SDK directly; the composition root
// injects an implementation.
type ProcessorClient interface {
	CreatePaymentIntent(ctx context.Context, req IntentRequest) (IntentResponse, error)
}
