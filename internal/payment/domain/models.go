package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	ledgerdomain "github.com/rentstack/rentflow/internal/ledger/domain"
	"gorm.io/datatypes"
)

// Status is a payment attempt's lifecycle position.
type Status string

const (
	StatusCreated    Status = "created"
	StatusProcessing Status = "processing"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
	StatusCanceled   Status = "canceled"
	StatusReturned   Status = "returned"
)

// ValidStatusChange enforces the payment lifecycle: created → processing →
// {succeeded, failed, canceled}, and succeeded → returned for reversals.
func ValidStatusChange(from, to Status) bool {
	switch from {
	case StatusCreated:
		return to == StatusProcessing || to == StatusSucceeded ||
			to == StatusFailed || to == StatusCanceled
	case StatusProcessing:
		return to == StatusSucceeded || to == StatusFailed || to == StatusCanceled
	case StatusSucceeded:
		return to == StatusReturned
	}
	return false
}

// Terminal reports whether no further status change is valid.
func (s Status) Terminal() bool {
	return s == StatusFailed || s == StatusCanceled || s == StatusReturned
}

// Payment is one attempt to move money for an application. Kind mirrors the
// ledger bucket the money targets.
type Payment struct {
	ID              snowflake.ID        `gorm:"primaryKey"`
	OrgID           snowflake.ID        `gorm:"not null;index"`
	ApplicationID   snowflake.ID        `gorm:"not null;index"`
	Kind            ledgerdomain.Bucket `gorm:"type:text;not null"`
	AmountCents     int64               `gorm:"not null"`
	Status          Status              `gorm:"type:text;not null;default:'created';index"`
	Provider        string              `gorm:"type:text;not null"`
	ProviderIntentID *string            `gorm:"type:text"`
	ClientReference string              `gorm:"type:text;not null"`
	CreatedAt       time.Time           `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt       time.Time           `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Payment) TableName() string { return "payments" }

// Webhook event types every provider adapter normalizes to.
const (
	EventTypePaymentSucceeded = "payment.succeeded"
	EventTypePaymentFailed    = "payment.failed"
	EventTypePaymentReturned  = "payment.returned"
)

// PaymentEvent is the canonical event parsed from a provider webhook.
type PaymentEvent struct {
	Provider        string
	ProviderEventID string
	Type            string
	OrgID           snowflake.ID
	ApplicationID   snowflake.ID
	PaymentID       snowflake.ID
	Bucket          ledgerdomain.Bucket
	AmountCents     int64
	Currency        string
	Reason          string
	OccurredAt      time.Time
}

// EventRecord stores a received webhook event for idempotency: one
// provider event id is processed at most once.
type EventRecord struct {
	ID              snowflake.ID   `gorm:"primaryKey"`
	OrgID           snowflake.ID   `gorm:"not null;index"`
	Provider        string         `gorm:"type:text;not null;uniqueIndex:ux_payment_events_provider_event,priority:1"`
	ProviderEventID string         `gorm:"type:text;not null;uniqueIndex:ux_payment_events_provider_event,priority:2"`
	EventType       string         `gorm:"type:text;not null"`
	ApplicationID   snowflake.ID   `gorm:"not null;index"`
	PaymentID       snowflake.ID   `gorm:"not null;index"`
	Payload         datatypes.JSON `gorm:"type:jsonb"`
	ReceivedAt      time.Time      `gorm:"not null"`
	ProcessedAt     *time.Time
}

// TableName sets the database table name.
func (EventRecord) TableName() string { return "payment_events" }
