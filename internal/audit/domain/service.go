package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Service writes audit records. Failures should surface to the caller: a
// financial action without its audit row is an incident, not a warning.
type Service interface {
	AuditLog(
		ctx context.Context,
		orgID *snowflake.ID,
		actorID string,
		actorRef *string,
		action string,
		targetType string,
		targetID *string,
		metadata map[string]any,
	) error
}

// ListFilter narrows audit queries.
type ListFilter struct {
	OrgID      snowflake.ID
	Action     string
	TargetType string
	TargetID   string
	StartAt    *time.Time
	EndAt      *time.Time
	Limit      int
	Offset     int
}

// Repository persists audit rows.
type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *AuditLog) error
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*AuditLog, error)
}

var (
	ErrInvalidAction = errors.New("invalid_action")
	ErrInvalidTarget = errors.New("invalid_target")
)
