package server

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	ledgerdomain "github.com/rentstack/rentflow/internal/ledger/domain"
	"go.uber.org/zap"
)

type createIntentRequest struct {
	Bucket      string `json:"bucket"`
	AmountCents int64  `json:"amount_cents"`
}

func (s *Server) CreatePaymentIntent(c *gin.Context) {
	status, ok := s.loadOrgStatus(c)
	if !ok {
		return
	}

	var req createIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if req.AmountCents <= 0 {
		AbortWithError(c, newValidationError("amount_cents", "invalid_amount", "amount_cents must be positive"))
		return
	}

	payment, intent, err := s.payments.CreateIntent(
		c.Request.Context(),
		status.Application.OrgID,
		status.Application.ID,
		ledgerdomain.Bucket(strings.TrimSpace(req.Bucket)),
		req.AmountCents,
	)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"payment_id":   payment.ID.String(),
		"status":       payment.Status,
		"amount_cents": payment.AmountCents,
		"bucket":       payment.Kind,
		"intent":       intent,
	})
}

func (s *Server) GetPendingPayments(c *gin.Context) {
	status, ok := s.loadOrgStatus(c)
	if !ok {
		return
	}

	payments, err := s.payments.GetPendingPayments(c.Request.Context(), status.Application.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	out := make([]gin.H, 0, len(payments))
	for _, p := range payments {
		out = append(out, gin.H{
			"payment_id":   p.ID.String(),
			"status":       p.Status,
			"bucket":       p.Kind,
			"amount_cents": p.AmountCents,
			"provider":     p.Provider,
			"created_at":   p.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"payments": out})
}

// PaymentWebhook ingests one provider notification. The route is
// unauthenticated: the provider adapter verifies the payload signature.
func (s *Server) PaymentWebhook(c *gin.Context) {
	provider := strings.TrimSpace(c.Param("provider"))

	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBodyBytes))
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	if err := s.payments.IngestWebhook(c.Request.Context(), provider, payload, c.Request.Header); err != nil {
		s.log.Warn("webhook rejected",
			zap.String("provider", provider),
			zap.Error(err),
		)
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

const maxWebhookBodyBytes = 1 << 20
