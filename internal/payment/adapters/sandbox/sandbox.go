// Package sandbox implements the in-tree payment provider used in
// development and tests. It speaks a minimal JSON webhook format signed with
// HMAC-SHA256 and fulfills intents with a local redirect URL.
package sandbox

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	ledgerdomain "github.com/rentstack/rentflow/internal/ledger/domain"
	paymentdomain "github.com/rentstack/rentflow/internal/payment/domain"
)

const (
	ProviderName    = "sandbox"
	SignatureHeader = "X-Rentflow-Signature"
)

type Factory struct{}

func (Factory) Provider() string { return ProviderName }

func (Factory) NewAdapter(config paymentdomain.AdapterConfig) (paymentdomain.PaymentAdapter, error) {
	secret := strings.TrimSpace(config.Secret)
	if secret == "" {
		return nil, paymentdomain.ErrInvalidProvider
	}
	return &Adapter{secret: []byte(secret)}, nil
}

type Adapter struct {
	secret []byte
}

func (a *Adapter) Verify(ctx context.Context, payload []byte, headers http.Header) error {
	signature := strings.TrimSpace(headers.Get(SignatureHeader))
	if signature == "" {
		return paymentdomain.ErrInvalidSignature
	}
	mac := hmac.New(sha256.New, a.secret)
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(signature))) {
		return paymentdomain.ErrInvalidSignature
	}
	return nil
}

type webhookBody struct {
	EventID       string `json:"event_id"`
	Type          string `json:"type"`
	OrgID         int64  `json:"org_id"`
	ApplicationID int64  `json:"application_id"`
	PaymentID     int64  `json:"payment_id"`
	Bucket        string `json:"bucket"`
	AmountCents   int64  `json:"amount_cents"`
	Currency      string `json:"currency"`
	Reason        string `json:"reason"`
	OccurredAt    string `json:"occurred_at"`
}

func (a *Adapter) Parse(ctx context.Context, payload []byte) (*paymentdomain.PaymentEvent, error) {
	var body webhookBody
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}

	occurredAt, err := time.Parse(time.RFC3339, strings.TrimSpace(body.OccurredAt))
	if err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}

	event := &paymentdomain.PaymentEvent{
		Provider:        ProviderName,
		ProviderEventID: strings.TrimSpace(body.EventID),
		Type:            strings.TrimSpace(body.Type),
		OrgID:           snowflake.ID(body.OrgID),
		ApplicationID:   snowflake.ID(body.ApplicationID),
		PaymentID:       snowflake.ID(body.PaymentID),
		Bucket:          ledgerdomain.Bucket(strings.TrimSpace(body.Bucket)),
		AmountCents:     body.AmountCents,
		Currency:        strings.ToUpper(strings.TrimSpace(body.Currency)),
		Reason:          strings.TrimSpace(body.Reason),
		OccurredAt:      occurredAt.UTC(),
	}
	return event, nil
}

// Sign computes the webhook signature for a payload. Tests and the local
// provider simulator use it; production providers sign on their side.
func Sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Processor is the sandbox implementation of the outbound processor
// contract. It fabricates intent ids locally.
type Processor struct {
	BaseURL string
}

func (p *Processor) CreatePaymentIntent(ctx context.Context, req paymentdomain.IntentRequest) (paymentdomain.IntentResponse, error) {
	if req.AmountCents <= 0 {
		return paymentdomain.IntentResponse{}, paymentdomain.ErrInvalidAmount
	}
	intentID := "sbx_" + uuid.NewString()
	base := strings.TrimRight(strings.TrimSpace(p.BaseURL), "/")
	if base == "" {
		base = "https://pay.sandbox.local"
	}
	return paymentdomain.IntentResponse{
		IntentID:    intentID,
		RedirectURL: fmt.Sprintf("%s/intents/%s?ref=%s", base, intentID, req.ClientReference),
	}, nil
}
