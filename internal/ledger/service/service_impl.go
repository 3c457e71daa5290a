package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	ledgerdomain "github.com/rentstack/rentflow/internal/ledger/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
}

func NewService(p Params) ledgerdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("ledger.service"),
		genID: p.GenID,
	}
}

func (s *Service) CreateCharges(ctx context.Context, orgID, applicationID snowflake.ID, terms ledgerdomain.ChargeTerms) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.CreateChargesTx(ctx, tx, orgID, applicationID, terms)
	})
}

func (s *Service) CreateChargesTx(ctx context.Context, tx *gorm.DB, orgID, applicationID snowflake.ID, terms ledgerdomain.ChargeTerms) error {
	if orgID == 0 || applicationID == 0 {
		return ledgerdomain.ErrInvalidApplication
	}
	if err := validateTerms(terms); err != nil {
		return err
	}

	now := time.Now().UTC()
	charges := buildCharges(orgID, applicationID, terms, now)
	for i := range charges {
		charges[i].ID = s.genID.Generate()
	}

	var count int64
	if err := tx.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM charges WHERE application_id = ?`,
		applicationID,
	).Scan(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ledgerdomain.ErrChargesExist
	}
	if len(charges) == 0 {
		return nil
	}
	if err := tx.WithContext(ctx).Create(&charges).Error; err != nil {
		return err
	}
	s.log.Info("charges created",
		zap.String("application_id", applicationID.String()),
		zap.Int("count", len(charges)),
	)
	return nil
}

func (s *Service) GetLedger(ctx context.Context, applicationID snowflake.ID) (*ledgerdomain.Ledger, error) {
	if applicationID == 0 {
		return nil, ledgerdomain.ErrInvalidApplication
	}

	var charges []ledgerdomain.Charge
	if err := s.db.WithContext(ctx).
		Where("application_id = ?", applicationID).
		Order("charge_key ASC").
		Find(&charges).Error; err != nil {
		return nil, err
	}

	ledger := &ledgerdomain.Ledger{Charges: charges}
	if err := ledger.Validate(); err != nil {
		s.log.Error("ledger invariant violated on load",
			zap.String("application_id", applicationID.String()),
			zap.Error(err),
		)
		return nil, err
	}
	return ledger, nil
}

func validateTerms(terms ledgerdomain.ChargeTerms) error {
	if terms.FirstMonthCents < 0 || terms.LastMonthCents < 0 ||
		terms.KeyFeeCents < 0 || terms.SecurityDepositCents < 0 ||
		terms.MonthlyRentCents < 0 {
		return ledgerdomain.ErrInvalidTerms
	}
	if terms.TermMonths < 0 {
		return ledgerdomain.ErrInvalidTerms
	}
	if terms.TermMonths > 0 && terms.MoveInDate.IsZero() {
		return ledgerdomain.ErrInvalidTerms
	}
	return nil
}

func buildCharges(orgID, applicationID snowflake.ID, terms ledgerdomain.ChargeTerms, now time.Time) []ledgerdomain.Charge {
	base := ledgerdomain.Charge{
		OrgID:         orgID,
		ApplicationID: applicationID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	var charges []ledgerdomain.Charge
	addCharge := func(key string, bucket ledgerdomain.Bucket, code ledgerdomain.Code, amount int64, due *time.Time) {
		if amount <= 0 {
			return
		}
		c := base
		c.ChargeKey = key
		c.Bucket = bucket
		c.Code = code
		c.AmountCents = amount
		c.DueDate = due
		charges = append(charges, c)
	}

	addCharge("last_month", ledgerdomain.BucketUpfront, ledgerdomain.CodeLastMonth, terms.LastMonthCents, nil)
	addCharge("first_month", ledgerdomain.BucketUpfront, ledgerdomain.CodeFirstMonth, terms.FirstMonthCents, nil)
	addCharge("key_fee", ledgerdomain.BucketUpfront, ledgerdomain.CodeKeyFee, terms.KeyFeeCents, nil)
	addCharge("security_deposit", ledgerdomain.BucketDeposit, ledgerdomain.CodeSecurityDeposit, terms.SecurityDepositCents, nil)

	// Monthly rent installments start the month after move-in: the first
	// month is already covered by the first_month upfront charge.
	for i := 1; i < terms.TermMonths; i++ {
		due := terms.MoveInDate.AddDate(0, i, 0)
		key := fmt.Sprintf("rent_%s", due.Format("2006-01"))
		addCharge(key, ledgerdomain.BucketRent, ledgerdomain.CodeRent, terms.MonthlyRentCents, &due)
	}

	return charges
}
