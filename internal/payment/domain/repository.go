package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	FindEvent(ctx context.Context, db *gorm.DB, provider string, providerEventID string) (*EventRecord, error)
	// InsertEvent stores a received event; it returns false when the
	// provider event id was already recorded.
	InsertEvent(ctx context.Context, db *gorm.DB, event *EventRecord) (bool, error)
	MarkProcessed(ctx context.Context, db *gorm.DB, id snowflake.ID, processedAt time.Time) error

	InsertPayment(ctx context.Context, db *gorm.DB, payment *Payment) error
	FindPayment(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Payment, error)
	UpdatePaymentStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, from, to Status, now time.Time) (bool, error)
	ListPending(ctx context.Context, db *gorm.DB, applicationID snowflake.ID) ([]Payment, error)
}
