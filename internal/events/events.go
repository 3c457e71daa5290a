package events

// Workflow event types published through the outbox.
const (
	EventApplicationStateChanged = "application.state_changed"
	EventPaymentSettled          = "payment.settled"
	EventPaymentFailed           = "payment.failed"
	EventReconciliationNeeded    = "reconciliation.needed"
	EventChargesCreated          = "charges.created"
)

// StateChangedPayload captures the minimal data consumers need to react to
// a workflow transition.
type StateChangedPayload struct {
	ApplicationID string `json:"application_id"`
	FromState     string `json:"from_state"`
	ToState       string `json:"to_state"`
	Event         string `json:"event"`
}

// ToMap converts the payload into an outbox-friendly map.
func (p StateChangedPayload) ToMap() map[string]any {
	return map[string]any{
		"application_id": p.ApplicationID,
		"from_state":     p.FromState,
		"to_state":       p.ToState,
		"event":          p.Event,
	}
}

// PaymentSettledPayload captures the minimal data for a settled payment.
type PaymentSettledPayload struct {
	ApplicationID string `json:"application_id"`
	PaymentID     string `json:"payment_id"`
	Bucket        string `json:"bucket"`
	AmountCents   int64  `json:"amount_cents"`
	LeftoverCents int64  `json:"leftover_cents"`
}

// ToMap converts the payload into an outbox-friendly map.
func (p PaymentSettledPayload) ToMap() map[string]any {
	return map[string]any{
		"application_id": p.ApplicationID,
		"payment_id":     p.PaymentID,
		"bucket":         p.Bucket,
		"amount_cents":   p.AmountCents,
		"leftover_cents": p.LeftoverCents,
	}
}
