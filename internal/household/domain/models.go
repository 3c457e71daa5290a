package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// MemberRole is a member's position in the household.
type MemberRole string

const (
	RolePrimary     MemberRole = "primary"
	RoleCoApplicant MemberRole = "co_applicant"
	RoleCosigner    MemberRole = "cosigner"
)

// MemberState is a member's participation status.
type MemberState string

const (
	MemberStateInvited MemberState = "invited"
	MemberStateActive  MemberState = "active"
	MemberStateLeft    MemberState = "left"
)

// ValidRole reports whether a role belongs to the closed set.
func ValidRole(r MemberRole) bool {
	switch r {
	case RolePrimary, RoleCoApplicant, RoleCosigner:
		return true
	}
	return false
}

// Member is one person attached to an application's household. Among active
// members at most one may hold the primary role; MakePrimary enforces that.
type Member struct {
	ID            snowflake.ID `gorm:"primaryKey"`
	OrgID         snowflake.ID `gorm:"not null;index"`
	ApplicationID snowflake.ID `gorm:"not null;index"`
	Email         string       `gorm:"type:text;not null"`
	DisplayName   string       `gorm:"type:text"`
	Role          MemberRole   `gorm:"type:text;not null"`
	State         MemberState  `gorm:"type:text;not null;default:'invited'"`
	InvitedAt     time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	JoinedAt      *time.Time
	LeftAt        *time.Time
	CreatedAt     time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt     time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Member) TableName() string { return "household_members" }
