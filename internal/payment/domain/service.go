package domain

import (
	"context"
	"errors"
	"net/http"

	"github.com/bwmarrin/snowflake"
	ledgerdomain "github.com/rentstack/rentflow/internal/ledger/domain"
)

// Service owns payment attempts and webhook ingestion for one process.
type Service interface {
	// CreateIntent validates the amount against the workflow quote, records
	// a created payment, and asks the processor for an intent.
	CreateIntent(ctx context.Context, orgID, applicationID snowflake.ID, bucket ledgerdomain.Bucket, amountCents int64) (*Payment, *IntentResponse, error)

	// IngestWebhook verifies, parses, and dispatches one provider
	// notification. Replayed provider event ids are no-ops.
	IngestWebhook(ctx context.Context, provider string, payload []byte, headers http.Header) error

	// GetPendingPayments lists payments still in flight for an application.
	// Callers poll this instead of the engine pushing updates.
	GetPendingPayments(ctx context.Context, applicationID snowflake.ID) ([]Payment, error)
}

var (
	ErrInvalidProvider       = errors.New("invalid_provider")
	ErrProviderNotFound      = errors.New("provider_not_found")
	ErrInvalidSignature      = errors.New("invalid_signature")
	ErrInvalidPayload        = errors.New("invalid_payload")
	ErrInvalidEvent          = errors.New("invalid_event")
	ErrInvalidAmount         = errors.New("invalid_amount")
	ErrInvalidStatusChange   = errors.New("invalid_status_change")
	ErrPaymentNotFound       = errors.New("payment_not_found")
	ErrEventAlreadyProcessed = errors.New("event_already_processed")
)
