package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/rentstack/rentflow/internal/config"
	ledgerdomain "github.com/rentstack/rentflow/internal/ledger/domain"
	"github.com/rentstack/rentflow/internal/payment/adapters"
	paymentdomain "github.com/rentstack/rentflow/internal/payment/domain"
	workflowdomain "github.com/rentstack/rentflow/internal/workflow/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Cfg       config.Config
	Repo      paymentdomain.Repository
	Adapters  *adapters.Registry
	Processor paymentdomain.ProcessorClient
	Workflow  workflowdomain.Service
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	cfg       config.Config
	repo      paymentdomain.Repository
	adapters  *adapters.Registry
	processor paymentdomain.ProcessorClient
	workflow  workflowdomain.Service
}

func NewService(p Params) paymentdomain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("payment.service"),
		genID:     p.GenID,
		cfg:       p.Cfg,
		repo:      p.Repo,
		adapters:  p.Adapters,
		processor: p.Processor,
		workflow:  p.Workflow,
	}
}

func (s *Service) CreateIntent(ctx context.Context, orgID, applicationID snowflake.ID, bucket ledgerdomain.Bucket, amountCents int64) (*paymentdomain.Payment, *paymentdomain.IntentResponse, error) {
	if amountCents <= 0 {
		return nil, nil, paymentdomain.ErrInvalidAmount
	}

	// The quote is the contract: the processor is only ever asked for
	// amounts the workflow already approved.
	quote, err := s.workflow.QuotePayment(ctx, applicationID, bucket)
	if err != nil {
		return nil, nil, err
	}
	if len(quote.AllowedExactAmounts) == 0 {
		return nil, nil, workflowdomain.ErrNothingDue
	}
	if !amountAllowed(quote.AllowedExactAmounts, amountCents) {
		return nil, nil, &workflowdomain.AmountNotAllowedError{
			RequestedCents: amountCents,
			Allowed:        quote.AllowedExactAmounts,
		}
	}

	now := time.Now().UTC()
	payment := &paymentdomain.Payment{
		ID:              s.genID.Generate(),
		OrgID:           orgID,
		ApplicationID:   applicationID,
		Kind:            bucket,
		AmountCents:     amountCents,
		Status:          paymentdomain.StatusCreated,
		Provider:        "sandbox",
		ClientReference: uuid.NewString(),
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	intent, err := s.processor.CreatePaymentIntent(ctx, paymentdomain.IntentRequest{
		OrgID:           orgID,
		ApplicationID:   applicationID,
		Bucket:          bucket,
		AmountCents:     amountCents,
		ClientReference: payment.ClientReference,
	})
	if err != nil {
		return nil, nil, err
	}
	payment.ProviderIntentID = &intent.IntentID

	if err := s.repo.InsertPayment(ctx, s.db, payment); err != nil {
		return nil, nil, err
	}

	s.log.Info("payment intent created",
		zap.String("application_id", applicationID.String()),
		zap.String("payment_id", payment.ID.String()),
		zap.String("bucket", string(bucket)),
		zap.Int64("amount_cents", amountCents),
	)
	return payment, &intent, nil
}

func (s *Service) IngestWebhook(ctx context.Context, provider string, payload []byte, headers http.Header) error {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" {
		return paymentdomain.ErrInvalidProvider
	}
	if s.adapters == nil || !s.adapters.ProviderExists(provider) {
		return paymentdomain.ErrProviderNotFound
	}
	if !json.Valid(payload) {
		return paymentdomain.ErrInvalidPayload
	}

	adapter, err := s.adapters.NewAdapter(provider, paymentdomain.AdapterConfig{
		Provider: provider,
		Secret:   s.cfg.WebhookSecret,
	})
	if err != nil {
		return err
	}
	if err := adapter.Verify(ctx, payload, headers); err != nil {
		return err
	}
	event, err := adapter.Parse(ctx, payload)
	if err != nil {
		return err
	}
	event.Provider = provider
	if err := validateEvent(event); err != nil {
		return err
	}

	now := time.Now().UTC()
	received := paymentdomain.EventRecord{
		ID:              s.genID.Generate(),
		OrgID:           event.OrgID,
		Provider:        provider,
		ProviderEventID: event.ProviderEventID,
		EventType:       event.Type,
		ApplicationID:   event.ApplicationID,
		PaymentID:       event.PaymentID,
		Payload:         datatypes.JSON(payload),
		ReceivedAt:      now,
	}

	inserted, err := s.repo.InsertEvent(ctx, s.db, &received)
	if err != nil {
		return err
	}
	stored := &received
	if !inserted {
		stored, err = s.repo.FindEvent(ctx, s.db, provider, event.ProviderEventID)
		if err != nil {
			return err
		}
		if stored == nil {
			return paymentdomain.ErrInvalidEvent
		}
		if stored.ProcessedAt != nil {
			// Redelivery of a finished event; acknowledge silently.
			s.log.Info("webhook replay ignored",
				zap.String("provider", provider),
				zap.String("provider_event_id", event.ProviderEventID),
			)
			return nil
		}
	}

	if err := s.dispatch(ctx, event); err != nil {
		return err
	}

	return s.repo.MarkProcessed(ctx, s.db, stored.ID, now)
}

func (s *Service) GetPendingPayments(ctx context.Context, applicationID snowflake.ID) ([]paymentdomain.Payment, error) {
	if applicationID == 0 {
		return nil, paymentdomain.ErrPaymentNotFound
	}
	return s.repo.ListPending(ctx, s.db, applicationID)
}

func (s *Service) dispatch(ctx context.Context, event *paymentdomain.PaymentEvent) error {
	switch event.Type {
	case paymentdomain.EventTypePaymentSucceeded:
		_, err := s.workflow.RecordPaymentSucceeded(ctx, event.ApplicationID, event.PaymentID, event.Bucket, event.AmountCents)
		return err
	case paymentdomain.EventTypePaymentFailed:
		return s.workflow.RecordPaymentFailed(ctx, event.ApplicationID, event.PaymentID)
	case paymentdomain.EventTypePaymentReturned:
		return s.workflow.RecordPaymentReturned(ctx, event.ApplicationID, event.PaymentID, event.Reason)
	}
	return paymentdomain.ErrInvalidEvent
}

func validateEvent(event *paymentdomain.PaymentEvent) error {
	if event == nil {
		return paymentdomain.ErrInvalidEvent
	}
	event.ProviderEventID = strings.TrimSpace(event.ProviderEventID)
	if event.ProviderEventID == "" {
		return paymentdomain.ErrInvalidEvent
	}
	if event.OrgID == 0 || event.ApplicationID == 0 || event.PaymentID == 0 {
		return paymentdomain.ErrInvalidEvent
	}
	if event.OccurredAt.IsZero() {
		return paymentdomain.ErrInvalidEvent
	}
	switch event.Type {
	case paymentdomain.EventTypePaymentSucceeded, paymentdomain.EventTypePaymentReturned:
		if event.AmountCents <= 0 {
			return paymentdomain.ErrInvalidAmount
		}
		if !ledgerdomain.ValidBucket(event.Bucket) {
			return errors.Join(paymentdomain.ErrInvalidEvent, ledgerdomain.ErrInvalidBucket)
		}
	case paymentdomain.EventTypePaymentFailed:
	default:
		return paymentdomain.ErrInvalidEvent
	}
	return nil
}

func amountAllowed(allowed []int64, amount int64) bool {
	for _, value := range allowed {
		if value == amount {
			return true
		}
	}
	return false
}
