package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	applicationdomain "github.com/rentstack/rentflow/internal/application/domain"
	ledgerdomain "github.com/rentstack/rentflow/internal/ledger/domain"
	"github.com/rentstack/rentflow/internal/policy"
	workflowdomain "github.com/rentstack/rentflow/internal/workflow/domain"
)

// stateLabel maps canonical states to reader-facing labels. Labels are
// presentation only and may change freely; the state enum may not.
func stateLabel(state applicationdomain.State) string {
	switch state {
	case applicationdomain.StateDraft:
		return "Draft"
	case applicationdomain.StateSubmitted:
		return "Submitted"
	case applicationdomain.StateAdminScreened:
		return "Under review"
	case applicationdomain.StateApprovedHigh:
		return "Approved"
	case applicationdomain.StateTermsSet:
		return "Terms set"
	case applicationdomain.StateMinDue:
		return "Signing payment due"
	case applicationdomain.StateMinPaid:
		return "Signing payment received"
	case applicationdomain.StateCountersigned:
		return "Lease signed"
	case applicationdomain.StateOccupied:
		return "Moved in"
	case applicationdomain.StateRejected:
		return "Rejected"
	case applicationdomain.StateWithdrawn:
		return "Withdrawn"
	}
	return string(state)
}

func (s *Server) CreateApplication(c *gin.Context) {
	orgID, ok := orgIDFrom(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	app, err := s.workflow.CreateApplication(c.Request.Context(), orgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":          app.ID.String(),
		"state":       app.State,
		"state_label": stateLabel(app.State),
		"created_at":  app.CreatedAt,
	})
}

func (s *Server) GetApplication(c *gin.Context) {
	status, ok := s.loadOrgStatus(c)
	if !ok {
		return
	}

	app := status.Application
	c.JSON(http.StatusOK, gin.H{
		"id":                   app.ID.String(),
		"state":                app.State,
		"state_label":          stateLabel(app.State),
		"move_in_date":         app.MoveInDate,
		"needs_reconciliation": app.NeedsReconciliation,
		"reconciliation_note":  app.ReconciliationNote,
		"status_reason":        app.StatusReason,
		"stage1":               status.Stage1,
		"stage2":               status.Stage2,
		"due_now_cents":        status.DueNowCents,
		"state_updated_at":     app.StateUpdatedAt,
	})
}

type setTermsRequest struct {
	SigningUpfrontThresholdCents int64  `json:"signing_upfront_threshold_cents"`
	SigningDepositThresholdCents int64  `json:"signing_deposit_threshold_cents"`
	FirstMonthCents              int64  `json:"first_month_cents"`
	LastMonthCents               int64  `json:"last_month_cents"`
	KeyFeeCents                  int64  `json:"key_fee_cents"`
	SecurityDepositCents         int64  `json:"security_deposit_cents"`
	RequireFirstBeforeMove       bool   `json:"require_first_before_move"`
	RequireLastBeforeMove        bool   `json:"require_last_before_move"`
	MonthlyRentCents             int64  `json:"monthly_rent_cents"`
	TermMonths                   int    `json:"term_months"`
	MoveInDate                   string `json:"move_in_date"`
}

func (s *Server) SetTerms(c *gin.Context) {
	orgID, ok := orgIDFrom(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	applicationID, ok := applicationIDParam(c)
	if !ok {
		return
	}

	var req setTermsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	moveIn, err := time.Parse("2006-01-02", strings.TrimSpace(req.MoveInDate))
	if err != nil {
		AbortWithError(c, newValidationError("move_in_date", "invalid_date", "move_in_date must be YYYY-MM-DD"))
		return
	}

	p := policy.StagePolicy{
		OrgID:                        orgID,
		ApplicationID:                applicationID,
		SigningUpfrontThresholdCents: req.SigningUpfrontThresholdCents,
		SigningDepositThresholdCents: req.SigningDepositThresholdCents,
		FirstMonthCents:              req.FirstMonthCents,
		LastMonthCents:               req.LastMonthCents,
		KeyFeeCents:                  req.KeyFeeCents,
		SecurityDepositCents:         req.SecurityDepositCents,
		TotalUpfrontCents:            req.FirstMonthCents + req.LastMonthCents + req.KeyFeeCents,
		RequireFirstBeforeMove:       req.RequireFirstBeforeMove,
		RequireLastBeforeMove:        req.RequireLastBeforeMove,
		MonthlyRentCents:             req.MonthlyRentCents,
		TermMonths:                   req.TermMonths,
		MoveInDate:                   moveIn,
	}

	if err := s.workflow.SetTerms(c.Request.Context(), applicationID, p); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type transitionRequest struct {
	Event  string `json:"event"`
	Reason string `json:"reason"`
}

func (s *Server) Transition(c *gin.Context) {
	status, ok := s.loadOrgStatus(c)
	if !ok {
		return
	}

	var req transitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	event := applicationdomain.Event(strings.TrimSpace(req.Event))
	if event == "" {
		AbortWithError(c, newValidationError("event", "required", "event is required"))
		return
	}

	state, err := s.workflow.Transition(c.Request.Context(), status.Application.ID, event, req.Reason)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"state":       state,
		"state_label": stateLabel(state),
	})
}

func (s *Server) GetLedger(c *gin.Context) {
	status, ok := s.loadOrgStatus(c)
	if !ok {
		return
	}

	ledger, err := s.ledger.GetLedger(c.Request.Context(), status.Application.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	charges := make([]gin.H, 0, len(ledger.Charges))
	for _, charge := range ledger.Charges {
		charges = append(charges, gin.H{
			"charge_key":      charge.ChargeKey,
			"bucket":          charge.Bucket,
			"code":            charge.Code,
			"amount_cents":    charge.AmountCents,
			"posted_cents":    charge.PostedCents,
			"pending_cents":   charge.PendingCents,
			"remaining_cents": charge.RemainingCents(),
			"due_date":        charge.DueDate,
		})
	}
	c.JSON(http.StatusOK, gin.H{"charges": charges})
}

func (s *Server) QuotePayment(c *gin.Context) {
	status, ok := s.loadOrgStatus(c)
	if !ok {
		return
	}

	bucket := ledgerdomain.Bucket(strings.TrimSpace(c.Query("bucket")))
	if bucket == "" {
		bucket = ledgerdomain.BucketUpfront
	}

	quote, err := s.workflow.QuotePayment(c.Request.Context(), status.Application.ID, bucket)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, quote)
}

// loadOrgStatus resolves the :id parameter and enforces that the
// application belongs to the caller's org. Cross-org ids read as not found.
func (s *Server) loadOrgStatus(c *gin.Context) (*workflowdomain.Status, bool) {
	orgID, ok := orgIDFrom(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return nil, false
	}
	applicationID, ok := applicationIDParam(c)
	if !ok {
		return nil, false
	}

	status, err := s.workflow.GetStatus(c.Request.Context(), applicationID)
	if err != nil {
		AbortWithError(c, err)
		return nil, false
	}
	if status.Application.OrgID != orgID {
		AbortWithError(c, ErrNotFound)
		return nil, false
	}
	return status, true
}

func applicationIDParam(c *gin.Context) (snowflake.ID, bool) {
	raw := strings.TrimSpace(c.Param("id"))
	id, err := snowflake.ParseString(raw)
	if err != nil || id == 0 {
		AbortWithError(c, newValidationError("id", "invalid_id", "application id is invalid"))
		return 0, false
	}
	return id, true
}
