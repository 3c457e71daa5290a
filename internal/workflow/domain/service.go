package domain

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/rentstack/rentflow/internal/allocation"
	applicationdomain "github.com/rentstack/rentflow/internal/application/domain"
	ledgerdomain "github.com/rentstack/rentflow/internal/ledger/domain"
	"github.com/rentstack/rentflow/internal/policy"
)

// Quote is what a caller may pay right now for one bucket. Payments are
// accepted only at the exact listed amounts.
type Quote struct {
	Bucket              ledgerdomain.Bucket `json:"bucket"`
	AmountCents         int64               `json:"amount_cents"`
	AllowedExactAmounts []int64             `json:"allowed_exact_amounts"`
}

// Status is the orchestrator's snapshot of one application.
type Status struct {
	Application applicationdomain.Application `json:"application"`
	Stage1      policy.StageResult            `json:"stage1"`
	Stage2      policy.StageResult            `json:"stage2"`
	DueNowCents int64                         `json:"due_now_cents"`
}

// Service is the façade API routes call into. Every mutation serializes
// per application: two webhook deliveries for the same household can never
// interleave ledger writes.
type Service interface {
	CreateApplication(ctx context.Context, orgID snowflake.ID) (*applicationdomain.Application, error)
	GetStatus(ctx context.Context, applicationID snowflake.ID) (*Status, error)

	// SetTerms validates and persists the stage policy, materializes the
	// charge ledger from it, and moves the application to terms_set.
	SetTerms(ctx context.Context, applicationID snowflake.ID, p policy.StagePolicy) error

	QuotePayment(ctx context.Context, applicationID snowflake.ID, bucket ledgerdomain.Bucket) (Quote, error)

	// RecordPaymentSucceeded allocates a settled payment across the ledger
	// and advances the state machine when a gate becomes satisfied. Replays
	// with the same paymentID return the original allocation unchanged.
	RecordPaymentSucceeded(ctx context.Context, applicationID, paymentID snowflake.ID, bucket ledgerdomain.Bucket, amountCents int64) (allocation.Result, error)

	RecordPaymentFailed(ctx context.Context, applicationID, paymentID snowflake.ID) error

	// RecordPaymentReturned flags a reversal on an already-settled payment.
	// The state enum never rolls back; the application is marked as needing
	// reconciliation instead.
	RecordPaymentReturned(ctx context.Context, applicationID, paymentID snowflake.ID, reason string) error

	Transition(ctx context.Context, applicationID snowflake.ID, event applicationdomain.Event, reason string) (applicationdomain.State, error)
}

var (
	ErrApplicationNotFound = errors.New("application_not_found")
	ErrPolicyNotFound      = errors.New("policy_not_found")
	ErrPaymentNotFound     = errors.New("payment_not_found")
	ErrAmountNotAllowed    = errors.New("amount_not_allowed")
	ErrNothingDue          = errors.New("nothing_due")
)

// AmountNotAllowedError carries the allowed set so the caller can re-prompt.
type AmountNotAllowedError struct {
	RequestedCents int64
	Allowed        []int64
}

func (e *AmountNotAllowedError) Error() string {
	return fmt.Sprintf("amount_not_allowed: %d not in %v", e.RequestedCents, e.Allowed)
}

func (e *AmountNotAllowedError) Is(target error) bool {
	return target == ErrAmountNotAllowed
}
