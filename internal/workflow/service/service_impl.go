package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/rentstack/rentflow/internal/allocation"
	applicationdomain "github.com/rentstack/rentflow/internal/application/domain"
	auditdomain "github.com/rentstack/rentflow/internal/audit/domain"
	"github.com/rentstack/rentflow/internal/cache"
	"github.com/rentstack/rentflow/internal/clock"
	"github.com/rentstack/rentflow/internal/config"
	"github.com/rentstack/rentflow/internal/events"
	ledgerdomain "github.com/rentstack/rentflow/internal/ledger/domain"
	"github.com/rentstack/rentflow/internal/observability/metrics"
	paymentdomain "github.com/rentstack/rentflow/internal/payment/domain"
	"github.com/rentstack/rentflow/internal/policy"
	workflowdomain "github.com/rentstack/rentflow/internal/workflow/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	GenID  *snowflake.Node
	Clock  clock.Clock
	Cfg    config.Config
	Ledger ledgerdomain.Service
	Audit  auditdomain.Service
	Outbox *events.Outbox
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clk       clock.Clock
	cfg       config.Config
	ledgerSvc ledgerdomain.Service
	auditSvc  auditdomain.Service
	outbox    *events.Outbox

	locks       *appLocks
	policyCache cache.Cache[snowflake.ID, policy.StagePolicy]
	metrics     *metrics.WorkflowMetrics
}

func NewService(p Params) workflowdomain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("workflow.service"),
		genID:     p.GenID,
		clk:       p.Clock,
		cfg:       p.Cfg,
		ledgerSvc: p.Ledger,
		auditSvc:  p.Audit,
		outbox:    p.Outbox,

		locks:       newAppLocks(),
		policyCache: cache.NewTTLCache[snowflake.ID, policy.StagePolicy](),
		metrics: metrics.WorkflowWithConfig(metrics.Config{
			ServiceName: p.Cfg.ServiceName,
			Environment: p.Cfg.Environment,
			Log:         p.Log,
		}),
	}
}

func (s *Service) CreateApplication(ctx context.Context, orgID snowflake.ID) (*applicationdomain.Application, error) {
	if orgID == 0 {
		return nil, workflowdomain.ErrApplicationNotFound
	}
	now := time.Now().UTC()
	app := &applicationdomain.Application{
		ID:             s.genID.Generate(),
		OrgID:          orgID,
		State:          applicationdomain.StateDraft,
		StateUpdatedAt: now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.db.WithContext(ctx).Create(app).Error; err != nil {
		return nil, err
	}
	return app, nil
}

func (s *Service) GetStatus(ctx context.Context, applicationID snowflake.ID) (*workflowdomain.Status, error) {
	app, err := s.findApplication(ctx, s.db, applicationID, false)
	if err != nil {
		return nil, err
	}

	status := &workflowdomain.Status{Application: *app}

	pol, err := s.loadPolicy(ctx, s.db, applicationID)
	if err != nil && err != workflowdomain.ErrPolicyNotFound {
		return nil, err
	}
	if pol == nil {
		return status, nil
	}

	ledger, err := s.loadLedger(ctx, s.db, applicationID)
	if err != nil {
		return nil, err
	}
	status.Stage1 = policy.EvaluateStage1(*pol, ledger)
	status.Stage2 = policy.EvaluateStage2(*pol, ledger)
	status.DueNowCents = ledger.DueNow(s.clk.Now())
	return status, nil
}

func (s *Service) SetTerms(ctx context.Context, applicationID snowflake.ID, p policy.StagePolicy) error {
	p.ApplicationID = applicationID
	if err := p.Validate(); err != nil {
		return err
	}

	release := s.locks.Acquire(applicationID)
	defer release()

	var changes []*stateChange
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		app, err := s.findApplication(ctx, tx, applicationID, true)
		if err != nil {
			return err
		}
		if app.OrgID != p.OrgID {
			return workflowdomain.ErrApplicationNotFound
		}

		next, err := applicationdomain.Next(app.State, applicationdomain.EventSetTerms, applicationdomain.Guards{})
		if err != nil {
			return err
		}

		p.ID = s.genID.Generate()
		p.CreatedAt = time.Now().UTC()
		if err := tx.WithContext(ctx).Create(&p).Error; err != nil {
			return err
		}

		if err := s.ledgerSvc.CreateChargesTx(ctx, tx, app.OrgID, applicationID, ledgerdomain.ChargeTerms{
			FirstMonthCents:      p.FirstMonthCents,
			LastMonthCents:       p.LastMonthCents,
			KeyFeeCents:          p.KeyFeeCents,
			SecurityDepositCents: p.SecurityDepositCents,
			MonthlyRentCents:     p.MonthlyRentCents,
			TermMonths:           p.TermMonths,
			MoveInDate:           p.MoveInDate,
		}); err != nil {
			return err
		}

		if err := s.outbox.PublishTx(ctx, tx, events.Event{
			OrgID: app.OrgID,
			Type:  events.EventChargesCreated,
			Payload: map[string]any{
				"application_id":      applicationID.String(),
				"total_upfront_cents": p.TotalUpfrontCents,
				"monthly_rent_cents":  p.MonthlyRentCents,
				"term_months":         p.TermMonths,
			},
			DedupeKey: "charges_created:" + applicationID.String(),
		}); err != nil {
			return err
		}

		moveIn := p.MoveInDate
		if err := tx.WithContext(ctx).Exec(
			`UPDATE applications SET move_in_date = ?, updated_at = ? WHERE id = ?`,
			moveIn,
			time.Now().UTC(),
			applicationID,
		).Error; err != nil {
			return err
		}

		applied, err := s.applyState(ctx, tx, app, next, applicationdomain.EventSetTerms, "")
		if err != nil {
			return err
		}
		changes = append(changes, applied)
		app.State = next

		// Zero thresholds satisfy stage 1 with an empty ledger; advance
		// immediately so such applications do not stall in terms_set.
		ledger, err := s.loadLedgerTx(ctx, tx, applicationID)
		if err != nil {
			return err
		}
		advanced, err := s.advanceWhileMet(ctx, tx, app, &p, ledger)
		if err != nil {
			return err
		}
		changes = append(changes, advanced...)

		return s.auditSvc.AuditLog(ctx, &app.OrgID, "", nil,
			auditdomain.ActionTermsSet, "application", stringPtr(applicationID.String()),
			map[string]any{
				"total_upfront_cents":   p.TotalUpfrontCents,
				"security_deposit_cents": p.SecurityDepositCents,
				"monthly_rent_cents":    p.MonthlyRentCents,
				"term_months":           p.TermMonths,
				"move_in_date":          p.MoveInDate.Format("2006-01-02"),
			})
	})
	if err != nil {
		return err
	}

	s.policyCache.Set(applicationID, p, s.cfg.QuoteCacheTTL)
	for _, change := range changes {
		s.recordChange(change)
	}
	return nil
}

func (s *Service) QuotePayment(ctx context.Context, applicationID snowflake.ID, bucket ledgerdomain.Bucket) (workflowdomain.Quote, error) {
	if bucket != ledgerdomain.BucketUpfront && bucket != ledgerdomain.BucketDeposit {
		return workflowdomain.Quote{}, ledgerdomain.ErrInvalidBucket
	}

	pol, err := s.loadPolicy(ctx, s.db, applicationID)
	if err != nil {
		return workflowdomain.Quote{}, err
	}
	ledger, err := s.loadLedger(ctx, s.db, applicationID)
	if err != nil {
		return workflowdomain.Quote{}, err
	}

	stage1 := policy.EvaluateStage1(*pol, ledger)
	stage2 := policy.EvaluateStage2(*pol, ledger)

	var stage1Remaining, stage2Remaining int64
	if bucket == ledgerdomain.BucketUpfront {
		stage1Remaining = stage1.OperatingRemainingCents
		stage2Remaining = stage2.OperatingRemainingCents
	} else {
		stage1Remaining = stage1.DepositRemainingCents
		stage2Remaining = stage2.DepositRemainingCents
	}

	quote := workflowdomain.Quote{Bucket: bucket}
	switch {
	case stage1Remaining > 0:
		quote.AmountCents = stage1Remaining
		quote.AllowedExactAmounts = dedupeAmounts(stage1Remaining, stage1Remaining+stage2Remaining)
	case stage2Remaining > 0:
		quote.AmountCents = stage2Remaining
		quote.AllowedExactAmounts = []int64{stage2Remaining}
	}
	return quote, nil
}

func (s *Service) RecordPaymentSucceeded(ctx context.Context, applicationID, paymentID snowflake.ID, bucket ledgerdomain.Bucket, amountCents int64) (allocation.Result, error) {
	if bucket != ledgerdomain.BucketUpfront && bucket != ledgerdomain.BucketDeposit {
		return allocation.Result{}, ledgerdomain.ErrInvalidBucket
	}
	if amountCents <= 0 {
		return allocation.Result{}, allocation.ErrInvalidAmount
	}
	if paymentID == 0 {
		return allocation.Result{}, workflowdomain.ErrPaymentNotFound
	}

	release := s.locks.Acquire(applicationID)
	defer release()

	var (
		result    allocation.Result
		duplicate bool
		changes   []*stateChange
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		app, err := s.findApplication(ctx, tx, applicationID, true)
		if err != nil {
			return err
		}

		prior, err := s.findProcessed(ctx, tx, paymentID)
		if err != nil {
			return err
		}
		if prior != nil {
			if err := json.Unmarshal(prior.Result, &result); err != nil {
				return fmt.Errorf("stored allocation unreadable: %w", err)
			}
			duplicate = true
			return nil
		}

		pol, err := s.loadPolicy(ctx, tx, applicationID)
		if err != nil {
			return err
		}
		ledger, err := s.loadLedgerTx(ctx, tx, applicationID)
		if err != nil {
			return err
		}

		result, err = allocation.Allocate(ledger, amountCents, bucket)
		if err != nil {
			return err
		}
		for _, piece := range result.Pieces {
			if err := s.creditCharge(ctx, tx, ledger, applicationID, piece.ChargeKey, piece.AmountCents); err != nil {
				return err
			}
		}
		if s.cfg.RolloverToRent && bucket == ledgerdomain.BucketUpfront && result.LeftoverCents > 0 {
			if err := s.rolloverToRent(ctx, tx, ledger, applicationID, result.LeftoverCents); err != nil {
				return err
			}
		}

		if err := s.markPaymentSettled(ctx, tx, paymentID); err != nil {
			return err
		}

		resultJSON, err := json.Marshal(result)
		if err != nil {
			return err
		}
		processed := workflowdomain.ProcessedPayment{
			ID:            s.genID.Generate(),
			OrgID:         app.OrgID,
			ApplicationID: applicationID,
			PaymentID:     paymentID,
			Bucket:        bucket,
			AmountCents:   amountCents,
			Result:        resultJSON,
			CreatedAt:     time.Now().UTC(),
		}
		if err := tx.WithContext(ctx).Create(&processed).Error; err != nil {
			return err
		}

		changes, err = s.advanceWhileMet(ctx, tx, app, pol, ledger)
		if err != nil {
			return err
		}

		if err := s.outbox.PublishTx(ctx, tx, events.Event{
			OrgID: app.OrgID,
			Type:  events.EventPaymentSettled,
			Payload: events.PaymentSettledPayload{
				ApplicationID: applicationID.String(),
				PaymentID:     paymentID.String(),
				Bucket:        string(bucket),
				AmountCents:   amountCents,
				LeftoverCents: result.LeftoverCents,
			}.ToMap(),
			DedupeKey: "payment_settled:" + paymentID.String(),
		}); err != nil {
			return err
		}

		return s.auditSvc.AuditLog(ctx, &app.OrgID, "", nil,
			auditdomain.ActionPaymentReceived, "payment", stringPtr(paymentID.String()),
			map[string]any{
				"application_id": applicationID.String(),
				"bucket":         string(bucket),
				"amount_cents":   amountCents,
				"leftover_cents": result.LeftoverCents,
				"pieces":         len(result.Pieces),
			})
	})
	if err != nil {
		return allocation.Result{}, err
	}

	if duplicate {
		s.metrics.ObserveDuplicate()
		s.log.Info("duplicate payment replayed",
			zap.String("application_id", applicationID.String()),
			zap.String("payment_id", paymentID.String()),
		)
		return result, nil
	}

	s.metrics.ObservePayment(string(bucket), result.LeftoverCents)
	for _, change := range changes {
		s.recordChange(change)
	}
	return result, nil
}

func (s *Service) RecordPaymentFailed(ctx context.Context, applicationID, paymentID snowflake.ID) error {
	if paymentID == 0 {
		return workflowdomain.ErrPaymentNotFound
	}

	release := s.locks.Acquire(applicationID)
	defer release()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		app, err := s.findApplication(ctx, tx, applicationID, true)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		if err := tx.WithContext(ctx).Exec(
			`UPDATE payments SET status = ?, updated_at = ?
			 WHERE id = ? AND status IN (?, ?)`,
			paymentdomain.StatusFailed,
			now,
			paymentID,
			paymentdomain.StatusCreated,
			paymentdomain.StatusProcessing,
		).Error; err != nil {
			return err
		}

		if err := s.outbox.PublishTx(ctx, tx, events.Event{
			OrgID: app.OrgID,
			Type:  events.EventPaymentFailed,
			Payload: map[string]any{
				"application_id": applicationID.String(),
				"payment_id":     paymentID.String(),
			},
			DedupeKey: "payment_failed:" + paymentID.String(),
		}); err != nil {
			return err
		}

		return s.auditSvc.AuditLog(ctx, &app.OrgID, "", nil,
			auditdomain.ActionPaymentFailed, "payment", stringPtr(paymentID.String()),
			map[string]any{"application_id": applicationID.String()})
	})
}

func (s *Service) RecordPaymentReturned(ctx context.Context, applicationID, paymentID snowflake.ID, reason string) error {
	if paymentID == 0 {
		return workflowdomain.ErrPaymentNotFound
	}

	release := s.locks.Acquire(applicationID)
	defer release()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		app, err := s.findApplication(ctx, tx, applicationID, true)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		if err := tx.WithContext(ctx).Exec(
			`UPDATE payments SET status = ?, updated_at = ?
			 WHERE id = ? AND status = ?`,
			paymentdomain.StatusReturned,
			now,
			paymentID,
			paymentdomain.StatusSucceeded,
		).Error; err != nil {
			return err
		}

		// The enum never rolls back on a reversal; an operator works the
		// reconciliation queue instead.
		note := strings.TrimSpace(reason)
		if note == "" {
			note = "payment returned"
		}
		note = fmt.Sprintf("payment %s returned: %s", paymentID.String(), note)
		if err := tx.WithContext(ctx).Exec(
			`UPDATE applications
			 SET needs_reconciliation = ?, reconciliation_note = ?, updated_at = ?
			 WHERE id = ?`,
			true,
			note,
			now,
			applicationID,
		).Error; err != nil {
			return err
		}

		if err := s.outbox.PublishTx(ctx, tx, events.Event{
			OrgID: app.OrgID,
			Type:  events.EventReconciliationNeeded,
			Payload: map[string]any{
				"application_id": applicationID.String(),
				"payment_id":     paymentID.String(),
				"state":          string(app.State),
				"reason":         note,
			},
			DedupeKey: "reconciliation:" + paymentID.String(),
		}); err != nil {
			return err
		}

		return s.auditSvc.AuditLog(ctx, &app.OrgID, "", nil,
			auditdomain.ActionPaymentReturned, "payment", stringPtr(paymentID.String()),
			map[string]any{
				"application_id": applicationID.String(),
				"state":          string(app.State),
				"reason":         note,
			})
	})
	if err != nil {
		return err
	}

	s.metrics.ObserveReconciliationFlag()
	return nil
}

func (s *Service) Transition(ctx context.Context, applicationID snowflake.ID, event applicationdomain.Event, reason string) (applicationdomain.State, error) {
	release := s.locks.Acquire(applicationID)
	defer release()

	var (
		newState applicationdomain.State
		applied  *stateChange
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		app, err := s.findApplication(ctx, tx, applicationID, true)
		if err != nil {
			return err
		}

		guards, err := s.computeGuards(ctx, tx, app, reason)
		if err != nil {
			return err
		}

		next, err := applicationdomain.Next(app.State, event, guards)
		if err != nil {
			return err
		}

		applied, err = s.applyState(ctx, tx, app, next, event, reason)
		if err != nil {
			return err
		}
		newState = next

		targetID := applicationID.String()
		return s.auditSvc.AuditLog(ctx, &app.OrgID, "", nil,
			auditdomain.ActionStateChanged, "application", &targetID,
			map[string]any{
				"event":      string(event),
				"from_state": string(app.State),
				"to_state":   string(next),
				"reason":     strings.TrimSpace(reason),
			})
	})
	if err != nil {
		return "", err
	}

	s.recordChange(applied)
	return newState, nil
}

// stateChange is a committed transition pending metric/log emission.
type stateChange struct {
	applicationID snowflake.ID
	from, to      applicationdomain.State
	event         applicationdomain.Event
}

func (s *Service) recordChange(change *stateChange) {
	if change == nil {
		return
	}
	s.metrics.ObserveTransition(string(change.to))
	s.log.Info("application transitioned",
		zap.String("application_id", change.applicationID.String()),
		zap.String("from", string(change.from)),
		zap.String("to", string(change.to)),
		zap.String("event", string(change.event)),
	)
}

// advanceWhileMet walks the guard-driven edges (terms_set → min_due →
// min_paid) as far as the stage-1 gate allows, persisting each hop.
func (s *Service) advanceWhileMet(ctx context.Context, tx *gorm.DB, app *applicationdomain.Application, pol *policy.StagePolicy, ledger *ledgerdomain.Ledger) ([]*stateChange, error) {
	if pol == nil {
		return nil, nil
	}

	var changes []*stateChange
	for {
		stage1 := policy.EvaluateStage1(*pol, ledger)
		next, err := applicationdomain.Next(app.State, applicationdomain.EventAdvance, applicationdomain.Guards{Stage1Met: stage1.Met})
		if err != nil {
			break
		}
		change, err := s.applyState(ctx, tx, app, next, applicationdomain.EventAdvance, "")
		if err != nil {
			return nil, err
		}
		changes = append(changes, change)
		app.State = next
	}
	return changes, nil
}

func (s *Service) applyState(ctx context.Context, tx *gorm.DB, app *applicationdomain.Application, next applicationdomain.State, event applicationdomain.Event, reason string) (*stateChange, error) {
	now := time.Now().UTC()
	var reasonValue any
	if trimmed := strings.TrimSpace(reason); trimmed != "" {
		reasonValue = trimmed
	}

	result := tx.WithContext(ctx).Exec(
		`UPDATE applications
		 SET state = ?, status_reason = COALESCE(?, status_reason),
		     state_updated_at = ?, updated_at = ?
		 WHERE id = ? AND state = ?`,
		next,
		reasonValue,
		now,
		now,
		app.ID,
		app.State,
	)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		// The row moved under us despite the lock; treat as a conflict.
		return nil, &applicationdomain.TransitionError{From: app.State, Event: event}
	}

	change := &stateChange{applicationID: app.ID, from: app.State, to: next, event: event}
	if err := s.outbox.PublishTx(ctx, tx, events.Event{
		OrgID: app.OrgID,
		Type:  events.EventApplicationStateChanged,
		Payload: events.StateChangedPayload{
			ApplicationID: app.ID.String(),
			FromState:     string(change.from),
			ToState:       string(next),
			Event:         string(event),
		}.ToMap(),
		DedupeKey: fmt.Sprintf("state:%s:%s:%s", app.ID.String(), change.from, next),
	}); err != nil {
		return nil, err
	}
	return change, nil
}

func (s *Service) computeGuards(ctx context.Context, tx *gorm.DB, app *applicationdomain.Application, reason string) (applicationdomain.Guards, error) {
	guards := applicationdomain.Guards{Reason: reason}

	pol, err := s.loadPolicy(ctx, tx, app.ID)
	if err != nil {
		if err == workflowdomain.ErrPolicyNotFound {
			return guards, nil
		}
		return guards, err
	}

	ledger, err := s.loadLedgerTx(ctx, tx, app.ID)
	if err != nil {
		return guards, err
	}
	guards.Stage1Met = policy.EvaluateStage1(*pol, ledger).Met
	guards.MoveInReached = !s.clk.Now().Before(pol.MoveInDate)
	return guards, nil
}

func (s *Service) creditCharge(ctx context.Context, tx *gorm.DB, ledger *ledgerdomain.Ledger, applicationID snowflake.ID, chargeKey string, amountCents int64) error {
	if err := ledger.ApplyCredit(chargeKey, amountCents, 0); err != nil {
		return err
	}
	charge := ledger.Find(chargeKey)
	return tx.WithContext(ctx).Exec(
		`UPDATE charges
		 SET posted_cents = ?, updated_at = ?
		 WHERE application_id = ? AND charge_key = ?`,
		charge.PostedCents,
		time.Now().UTC(),
		applicationID,
		chargeKey,
	).Error
}

// rolloverToRent pre-credits leftover upfront cents to the earliest unpaid
// rent charges. Enabled by configuration only; the allocation result still
// reports the leftover it was given.
func (s *Service) rolloverToRent(ctx context.Context, tx *gorm.DB, ledger *ledgerdomain.Ledger, applicationID snowflake.ID, leftoverCents int64) error {
	rent := ledgerdomain.BucketRent
	remaining := leftoverCents
	for _, charge := range ledger.Charges {
		if remaining == 0 {
			break
		}
		if charge.Bucket != rent {
			continue
		}
		need := charge.RemainingCents()
		if need == 0 {
			continue
		}
		credit := need
		if credit > remaining {
			credit = remaining
		}
		if err := s.creditCharge(ctx, tx, ledger, applicationID, charge.ChargeKey, credit); err != nil {
			return err
		}
		remaining -= credit
	}
	return nil
}

func (s *Service) markPaymentSettled(ctx context.Context, tx *gorm.DB, paymentID snowflake.ID) error {
	// The payment row is optional: webhook-only flows may settle payments
	// the engine never saw as intents.
	return tx.WithContext(ctx).Exec(
		`UPDATE payments SET status = ?, updated_at = ?
		 WHERE id = ? AND status IN (?, ?)`,
		paymentdomain.StatusSucceeded,
		time.Now().UTC(),
		paymentID,
		paymentdomain.StatusCreated,
		paymentdomain.StatusProcessing,
	).Error
}

func (s *Service) findApplication(ctx context.Context, db *gorm.DB, applicationID snowflake.ID, lock bool) (*applicationdomain.Application, error) {
	if applicationID == 0 {
		return nil, workflowdomain.ErrApplicationNotFound
	}
	query := db.WithContext(ctx)
	if lock && db.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var app applicationdomain.Application
	if err := query.Where("id = ?", applicationID).Limit(1).Find(&app).Error; err != nil {
		return nil, err
	}
	if app.ID == 0 {
		return nil, workflowdomain.ErrApplicationNotFound
	}
	return &app, nil
}

func (s *Service) findProcessed(ctx context.Context, tx *gorm.DB, paymentID snowflake.ID) (*workflowdomain.ProcessedPayment, error) {
	var processed workflowdomain.ProcessedPayment
	err := tx.WithContext(ctx).
		Where("payment_id = ?", paymentID).
		Limit(1).
		Find(&processed).Error
	if err != nil {
		return nil, err
	}
	if processed.ID == 0 {
		return nil, nil
	}
	return &processed, nil
}

func (s *Service) loadPolicy(ctx context.Context, db *gorm.DB, applicationID snowflake.ID) (*policy.StagePolicy, error) {
	if cached, ok := s.policyCache.Get(applicationID); ok {
		return &cached, nil
	}

	var pol policy.StagePolicy
	err := db.WithContext(ctx).
		Where("application_id = ?", applicationID).
		Limit(1).
		Find(&pol).Error
	if err != nil {
		return nil, err
	}
	if pol.ID == 0 {
		return nil, workflowdomain.ErrPolicyNotFound
	}

	// Policies are write-once, so a TTL is caution rather than correctness.
	s.policyCache.Set(applicationID, pol, s.cfg.QuoteCacheTTL)
	return &pol, nil
}

func (s *Service) loadLedger(ctx context.Context, db *gorm.DB, applicationID snowflake.ID) (*ledgerdomain.Ledger, error) {
	return s.loadLedgerTx(ctx, db, applicationID)
}

func (s *Service) loadLedgerTx(ctx context.Context, tx *gorm.DB, applicationID snowflake.ID) (*ledgerdomain.Ledger, error) {
	var charges []ledgerdomain.Charge
	if err := tx.WithContext(ctx).
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

func dedupeAmounts(values ...int64) []int64 {
	seen := make(map[int64]struct{}, len(values))
	var out []int64
	for _, value := range values {
		if value <= 0 {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}

func stringPtr(value string) *string { return &value }
