package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/rentstack/rentflow/internal/audit/domain"
	"github.com/rentstack/rentflow/pkg/db/pagination"
)

// ListAuditLogs returns the caller org's audit trail, newest first.
func (s *Server) ListAuditLogs(c *gin.Context) {
	orgID, ok := orgIDFrom(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	page := pagination.Parse(c.Query("page"), c.Query("page_size"))
	filter := auditdomain.ListFilter{
		OrgID:      orgID,
		Action:     strings.TrimSpace(c.Query("action")),
		TargetType: strings.TrimSpace(c.Query("target_type")),
		TargetID:   strings.TrimSpace(c.Query("target_id")),
		Limit:      page.PageSize,
		Offset:     page.Offset(),
	}
	if start, ok := timeQuery(c, "start_at"); !ok {
		return
	} else if start != nil {
		filter.StartAt = start
	}
	if end, ok := timeQuery(c, "end_at"); !ok {
		return
	} else if end != nil {
		filter.EndAt = end
	}

	entries, err := s.auditRepo.List(c.Request.Context(), s.db, filter)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	out := make([]gin.H, 0, len(entries))
	for _, e := range entries {
		out = append(out, gin.H{
			"id":          e.ID.String(),
			"actor_type":  e.ActorType,
			"actor_id":    e.ActorID,
			"action":      e.Action,
			"target_type": e.TargetType,
			"target_id":   e.TargetID,
			"metadata":    e.Metadata,
			"created_at":  e.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"entries":   out,
		"page":      page.Page,
		"page_size": page.PageSize,
	})
}

func timeQuery(c *gin.Context, name string) (*time.Time, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, true
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		AbortWithError(c, newValidationError(name, "invalid_time", name+" must be RFC3339"))
		return nil, false
	}
	return &t, true
}
