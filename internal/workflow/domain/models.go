package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	ledgerdomain "github.com/rentstack/rentflow/internal/ledger/domain"
	"gorm.io/datatypes"
)

// ProcessedPayment pins the allocation result of one settled payment. It is
// the idempotency record: a replayed payment id returns the stored result
// instead of crediting the ledger again.
type ProcessedPayment struct {
	ID            snowflake.ID        `gorm:"primaryKey"`
	OrgID         snowflake.ID        `gorm:"not null;index"`
	ApplicationID snowflake.ID        `gorm:"not null;index"`
	PaymentID     snowflake.ID        `gorm:"not null;uniqueIndex"`
	Bucket        ledgerdomain.Bucket `gorm:"type:text;not null"`
	AmountCents   int64               `gorm:"not null"`
	Result        datatypes.JSON      `gorm:"type:jsonb;not null"`
	CreatedAt     time.Time           `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (ProcessedPayment) TableName() string { return "processed_payments" }
