package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Bucket routes money to a downstream account type.
type Bucket string

const (
	BucketUpfront Bucket = "upfront"
	BucketDeposit Bucket = "deposit"
	BucketRent    Bucket = "rent"
	BucketFee     Bucket = "fee"
)

// Code is the semantic subtype of a charge and drives allocation priority.
type Code string

const (
	CodeFirstMonth      Code = "first_month"
	CodeLastMonth       Code = "last_month"
	CodeKeyFee          Code = "key_fee"
	CodeSecurityDeposit Code = "security_deposit"
	CodeRent            Code = "rent_ym"
)

// ValidBucket reports whether a bucket value belongs to the closed set.
func ValidBucket(b Bucket) bool {
	switch b {
	case BucketUpfront, BucketDeposit, BucketRent, BucketFee:
		return true
	}
	return false
}

// ValidCode reports whether a code value belongs to the closed set.
func ValidCode(c Code) bool {
	switch c {
	case CodeFirstMonth, CodeLastMonth, CodeKeyFee, CodeSecurityDeposit, CodeRent:
		return true
	}
	return false
}

// Charge is a single money obligation on an application's ledger.
// AmountCents is immutable once the charge exists; credits only move
// PostedCents and PendingCents.
type Charge struct {
	ID            snowflake.ID `gorm:"primaryKey"`
	OrgID         snowflake.ID `gorm:"not null;index"`
	ApplicationID snowflake.ID `gorm:"not null;index;uniqueIndex:ux_charges_app_key,priority:1"`
	ChargeKey     string       `gorm:"type:text;not null;uniqueIndex:ux_charges_app_key,priority:2"`
	Bucket        Bucket       `gorm:"type:text;not null;index"`
	Code          Code         `gorm:"type:text;not null"`
	AmountCents   int64        `gorm:"not null"`
	PostedCents   int64        `gorm:"not null;default:0"`
	PendingCents  int64        `gorm:"not null;default:0"`
	DueDate       *time.Time   `gorm:"column:due_date"`
	CreatedAt     time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt     time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Charge) TableName() string { return "charges" }

// RemainingCents is the uncredited part of the obligation.
func (c Charge) RemainingCents() int64 {
	remaining := c.AmountCents - c.PostedCents - c.PendingCents
	if remaining < 0 {
		return 0
	}
	return remaining
}

// CreditedCents is the part of the obligation already covered, settled or not.
func (c Charge) CreditedCents() int64 {
	return c.PostedCents + c.PendingCents
}
