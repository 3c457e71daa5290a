package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/rentstack/rentflow/internal/audit/domain"
	"github.com/rentstack/rentflow/internal/auditcontext"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  auditdomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  auditdomain.Repository
}

func NewService(p Params) auditdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("audit.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

func (s *Service) AuditLog(
	ctx context.Context,
	orgID *snowflake.ID,
	actorID string,
	actorRef *string,
	action string,
	targetType string,
	targetID *string,
	metadata map[string]any,
) error {
	action = strings.TrimSpace(action)
	if action == "" {
		return auditdomain.ErrInvalidAction
	}
	targetType = strings.TrimSpace(targetType)
	if targetType == "" {
		return auditdomain.ErrInvalidTarget
	}

	actorType := string(auditdomain.ActorTypeSystem)
	if strings.TrimSpace(actorID) != "" {
		actorType = string(auditdomain.ActorTypeUser)
	} else if actorRef != nil && strings.TrimSpace(*actorRef) != "" {
		actorType = string(auditdomain.ActorTypeAPIKey)
	} else if ctxType, ctxID := auditcontext.ActorFromContext(ctx); ctxID != "" {
		actorType = ctxType
		actorID = ctxID
	}

	payload := datatypes.JSONMap{}
	for key, value := range metadata {
		if strings.TrimSpace(key) == "" {
			continue
		}
		payload[key] = value
	}
	if requestID := auditcontext.RequestIDFromContext(ctx); requestID != "" {
		payload["request_id"] = requestID
	}
	if ip := auditcontext.IPAddressFromContext(ctx); ip != "" {
		payload["ip_address"] = ip
	}
	if ua := auditcontext.UserAgentFromContext(ctx); ua != "" {
		payload["user_agent"] = ua
	}

	entry := &auditdomain.AuditLog{
		ID:         s.genID.Generate(),
		OrgID:      orgID,
		ActorType:  actorType,
		ActorID:    actorRef,
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		Metadata:   payload,
		CreatedAt:  time.Now().UTC(),
	}
	if strings.TrimSpace(actorID) != "" {
		id := strings.TrimSpace(actorID)
		entry.ActorID = &id
	}

	return s.repo.Insert(ctx, s.db, entry)
}
