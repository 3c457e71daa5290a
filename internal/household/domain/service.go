package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

// Service manages the household roster for an application.
type Service interface {
	Invite(ctx context.Context, orgID, applicationID snowflake.ID, email, displayName string, role MemberRole) (*Member, error)
	Activate(ctx context.Context, applicationID, memberID snowflake.ID) error
	Leave(ctx context.Context, applicationID, memberID snowflake.ID) error
	// MakePrimary promotes one active member to primary and demotes any
	// current primary to co-applicant, atomically.
	MakePrimary(ctx context.Context, applicationID, memberID snowflake.ID) error
	List(ctx context.Context, applicationID snowflake.ID) ([]Member, error)
}

var (
	ErrInvalidMember      = errors.New("invalid_member")
	ErrInvalidRole        = errors.New("invalid_role")
	ErrMemberNotFound     = errors.New("member_not_found")
	ErrMemberNotActive    = errors.New("member_not_active")
	ErrDuplicateMember    = errors.New("duplicate_member")
	ErrInvalidApplication = errors.New("invalid_application")
)
