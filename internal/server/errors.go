package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	applicationdomain "github.com/rentstack/rentflow/internal/application/domain"
	householddomain "github.com/rentstack/rentflow/internal/household/domain"
	ledgerdomain "github.com/rentstack/rentflow/internal/ledger/domain"
	paymentdomain "github.com/rentstack/rentflow/internal/payment/domain"
	"github.com/rentstack/rentflow/internal/policy"
	workflowdomain "github.com/rentstack/rentflow/internal/workflow/domain"
)

// Transport-level sentinels.
var (
	ErrUnauthorized    = errors.New("unauthorized")
	ErrForbidden       = errors.New("forbidden")
	ErrNotFound        = errors.New("not_found")
	ErrTooManyRequests = errors.New("too_many_requests")
)

type apiError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func (e *apiError) Error() string { return e.Code + ": " + e.Message }

func newValidationError(field, code, message string) *apiError {
	return &apiError{Status: http.StatusBadRequest, Code: code, Field: field, Message: message}
}

func invalidRequestError() *apiError {
	return &apiError{Status: http.StatusBadRequest, Code: "invalid_request", Message: "request body could not be parsed"}
}

// AbortWithError maps domain errors onto HTTP responses. Internal details
// never reach the client: unknown errors collapse to a generic 500.
func AbortWithError(c *gin.Context, err error) {
	var apiErr *apiError
	if errors.As(err, &apiErr) {
		c.AbortWithStatusJSON(apiErr.Status, gin.H{"error": apiErr})
		return
	}

	// A rejected amount carries the exact allowed set so the caller can
	// re-prompt without a second quote round trip.
	var notAllowed *workflowdomain.AmountNotAllowedError
	if errors.As(err, &notAllowed) {
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"error": gin.H{
			"code":    "amount_not_allowed",
			"message": publicMessage("amount_not_allowed"),
			"details": gin.H{
				"requested_cents":       notAllowed.RequestedCents,
				"allowed_exact_amounts": notAllowed.Allowed,
			},
		}})
		return
	}

	status, code := statusFor(err)
	message := publicMessage(code)
	c.AbortWithStatusJSON(status, gin.H{"error": gin.H{"code": code, "message": message}})
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, ErrTooManyRequests):
		return http.StatusTooManyRequests, "too_many_requests"
	case errors.Is(err, ErrNotFound),
		errors.Is(err, workflowdomain.ErrApplicationNotFound),
		errors.Is(err, workflowdomain.ErrPolicyNotFound),
		errors.Is(err, workflowdomain.ErrPaymentNotFound),
		errors.Is(err, paymentdomain.ErrPaymentNotFound),
		errors.Is(err, householddomain.ErrMemberNotFound),
		errors.Is(err, ledgerdomain.ErrChargeNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, applicationdomain.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, workflowdomain.ErrNothingDue):
		return http.StatusConflict, "nothing_due"
	case errors.Is(err, ledgerdomain.ErrChargesExist),
		errors.Is(err, householddomain.ErrDuplicateMember):
		return http.StatusConflict, "conflict"
	case errors.Is(err, workflowdomain.ErrAmountNotAllowed):
		return http.StatusUnprocessableEntity, "amount_not_allowed"
	case errors.Is(err, ledgerdomain.ErrOverpayment):
		return http.StatusUnprocessableEntity, "overpayment"
	case errors.Is(err, paymentdomain.ErrInvalidSignature):
		return http.StatusUnauthorized, "invalid_signature"
	case errors.Is(err, paymentdomain.ErrProviderNotFound),
		errors.Is(err, paymentdomain.ErrInvalidProvider):
		return http.StatusNotFound, "unknown_provider"
	case errors.Is(err, applicationdomain.ErrReasonRequired),
		errors.Is(err, policy.ErrInvalidPolicy),
		errors.Is(err, policy.ErrSigningExceedsPlan),
		errors.Is(err, ledgerdomain.ErrInvalidTerms),
		errors.Is(err, ledgerdomain.ErrInvalidAmount),
		errors.Is(err, ledgerdomain.ErrInvalidBucket),
		errors.Is(err, paymentdomain.ErrInvalidPayload),
		errors.Is(err, paymentdomain.ErrInvalidEvent),
		errors.Is(err, paymentdomain.ErrInvalidAmount),
		errors.Is(err, householddomain.ErrInvalidMember),
		errors.Is(err, householddomain.ErrInvalidRole),
		errors.Is(err, householddomain.ErrMemberNotActive):
		return http.StatusBadRequest, errorCode(err)
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func errorCode(err error) string {
	// Domain sentinels already use snake_case messages safe for clients.
	return err.Error()
}

func publicMessage(code string) string {
	switch code {
	case "internal_error":
		return "something went wrong"
	case "unauthorized":
		return "authentication required"
	case "invalid_transition":
		return "the application cannot take that step right now"
	case "amount_not_allowed":
		return "the amount is not one of the allowed payment amounts"
	default:
		return code
	}
}
