package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// LedgerService creates and reads the charge ledger for applications.
type LedgerService interface {
	// CreateCharges materializes the full charge set for an application from
	// its finalized payment terms.
	CreateCharges(ctx context.Context, orgID, applicationID snowflake.ID, terms ChargeTerms) error
	// CreateChargesTx is CreateCharges inside an existing transaction, so
	// charges commit together with the state change that finalized them.
	CreateChargesTx(ctx context.Context, tx *gorm.DB, orgID, applicationID snowflake.ID, terms ChargeTerms) error
	// GetLedger loads every charge for an application.
	GetLedger(ctx context.Context, applicationID snowflake.ID) (*Ledger, error)
}

// Service is the package alias for LedgerService.
type Service = LedgerService

// ChargeTerms is the finalized money plan a ledger is derived from.
type ChargeTerms struct {
	FirstMonthCents      int64
	LastMonthCents       int64
	KeyFeeCents          int64
	SecurityDepositCents int64
	MonthlyRentCents     int64
	TermMonths           int
	MoveInDate           time.Time
}

var (
	ErrInvalidBucket      = errors.New("invalid_bucket")
	ErrInvalidCode        = errors.New("invalid_code")
	ErrInvalidAmount      = errors.New("invalid_amount")
	ErrInvalidTerms       = errors.New("invalid_terms")
	ErrChargeNotFound     = errors.New("charge_not_found")
	ErrOverpayment        = errors.New("overpayment")
	ErrLedgerCorrupt      = errors.New("ledger_corrupt")
	ErrChargesExist       = errors.New("charges_already_exist")
	ErrInvalidApplication = errors.New("invalid_application")
)
