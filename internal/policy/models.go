package policy

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

// StagePolicy is per-application configuration: what each payment gate
// requires and how the plan splits across operating and deposit accounts.
// It is written once when terms are set and never mutated by the workflow.
type StagePolicy struct {
	ID            snowflake.ID `gorm:"primaryKey"`
	OrgID         snowflake.ID `gorm:"not null;index"`
	ApplicationID snowflake.ID `gorm:"not null;uniqueIndex"`

	SigningUpfrontThresholdCents int64 `gorm:"not null"`
	SigningDepositThresholdCents int64 `gorm:"not null"`

	FirstMonthCents         int64 `gorm:"not null"`
	LastMonthCents          int64 `gorm:"not null"`
	KeyFeeCents             int64 `gorm:"not null"`
	SecurityDepositCents    int64 `gorm:"not null"`
	TotalUpfrontCents       int64 `gorm:"not null"`
	RequireFirstBeforeMove  bool  `gorm:"not null;default:false"`
	RequireLastBeforeMove   bool  `gorm:"not null;default:false"`

	MonthlyRentCents int64     `gorm:"not null"`
	TermMonths       int       `gorm:"not null"`
	MoveInDate       time.Time `gorm:"not null"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (StagePolicy) TableName() string { return "stage_policies" }

var (
	ErrInvalidPolicy      = errors.New("invalid_policy")
	ErrSigningExceedsPlan = errors.New("signing_threshold_exceeds_plan")
)

// Validate checks the structural invariants of a policy before it is saved.
func (p StagePolicy) Validate() error {
	if p.ApplicationID == 0 || p.OrgID == 0 {
		return ErrInvalidPolicy
	}
	if p.SigningUpfrontThresholdCents < 0 || p.SigningDepositThresholdCents < 0 {
		return ErrInvalidPolicy
	}
	if p.FirstMonthCents < 0 || p.LastMonthCents < 0 || p.KeyFeeCents < 0 ||
		p.SecurityDepositCents < 0 || p.TotalUpfrontCents < 0 || p.MonthlyRentCents < 0 {
		return ErrInvalidPolicy
	}
	if p.TermMonths < 0 {
		return ErrInvalidPolicy
	}
	if p.SigningUpfrontThresholdCents > p.TotalUpfrontCents {
		return ErrSigningExceedsPlan
	}
	return nil
}
