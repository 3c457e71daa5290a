package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// State is the canonical workflow position of an application. Any
// presentation-facing label is an alias derived from these values, never a
// persisted state of its own.
type State string

const (
	StateDraft         State = "draft"
	StateSubmitted     State = "submitted"
	StateAdminScreened State = "admin_screened"
	StateApprovedHigh  State = "approved_high"
	StateTermsSet      State = "terms_set"
	StateMinDue        State = "min_due"
	StateMinPaid       State = "min_paid"
	StateCountersigned State = "countersigned"
	StateOccupied      State = "occupied"
	StateRejected      State = "rejected"
	StateWithdrawn     State = "withdrawn"
)

// Event is a requested state-machine edge.
type Event string

const (
	EventSubmit      Event = "submit"
	EventScreen      Event = "screen"
	EventApprove     Event = "approve"
	EventSetTerms    Event = "set_terms"
	EventAdvance     Event = "advance"
	EventCountersign Event = "countersign"
	EventOccupy      Event = "occupy"
	EventReject      Event = "reject"
	EventWithdraw    Event = "withdraw"
)

// Terminal reports whether a state accepts no further transitions.
func (s State) Terminal() bool {
	return s == StateRejected || s == StateWithdrawn
}

// ValidState reports whether a state value belongs to the closed set.
func ValidState(s State) bool {
	switch s {
	case StateDraft, StateSubmitted, StateAdminScreened, StateApprovedHigh,
		StateTermsSet, StateMinDue, StateMinPaid, StateCountersigned,
		StateOccupied, StateRejected, StateWithdrawn:
		return true
	}
	return false
}

// Application is one household's journey through the rental workflow.
type Application struct {
	ID    snowflake.ID `gorm:"primaryKey"`
	OrgID snowflake.ID `gorm:"not null;index"`
	State State        `gorm:"type:text;not null;default:'draft';index"`

	// MoveInDate is denormalized from the stage policy so the occupancy
	// sweep can query on it directly.
	MoveInDate *time.Time `gorm:"column:move_in_date;index"`

	// NeedsReconciliation flags a chargeback received after the application
	// advanced past its payment gate. The state enum never rolls back on its
	// own; an operator resolves the flag.
	NeedsReconciliation bool    `gorm:"not null;default:false"`
	ReconciliationNote  *string `gorm:"type:text"`

	StatusReason   *string           `gorm:"type:text"`
	Metadata       datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'"`
	StateUpdatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
	CreatedAt      time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt      time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Application) TableName() string { return "applications" }
