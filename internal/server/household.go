package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	householddomain "github.com/rentstack/rentflow/internal/household/domain"
)

type inviteMemberRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
}

func (s *Server) InviteMember(c *gin.Context) {
	status, ok := s.loadOrgStatus(c)
	if !ok {
		return
	}

	var req inviteMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	email := strings.TrimSpace(strings.ToLower(req.Email))
	if email == "" {
		AbortWithError(c, newValidationError("email", "required", "email is required"))
		return
	}

	member, err := s.household.Invite(
		c.Request.Context(),
		status.Application.OrgID,
		status.Application.ID,
		email,
		strings.TrimSpace(req.DisplayName),
		householddomain.MemberRole(strings.TrimSpace(req.Role)),
	)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, memberResponse(*member))
}

func (s *Server) ListMembers(c *gin.Context) {
	status, ok := s.loadOrgStatus(c)
	if !ok {
		return
	}

	members, err := s.household.List(c.Request.Context(), status.Application.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	out := make([]gin.H, 0, len(members))
	for _, m := range members {
		out = append(out, memberResponse(m))
	}
	c.JSON(http.StatusOK, gin.H{"members": out})
}

func (s *Server) ActivateMember(c *gin.Context) {
	s.memberAction(c, s.household.Activate)
}

func (s *Server) LeaveMember(c *gin.Context) {
	s.memberAction(c, s.household.Leave)
}

func (s *Server) MakePrimaryMember(c *gin.Context) {
	s.memberAction(c, s.household.MakePrimary)
}

type memberActionFunc func(ctx context.Context, applicationID, memberID snowflake.ID) error

func (s *Server) memberAction(c *gin.Context, fn memberActionFunc) {
	status, ok := s.loadOrgStatus(c)
	if !ok {
		return
	}
	memberID, err := snowflake.ParseString(strings.TrimSpace(c.Param("member_id")))
	if err != nil || memberID == 0 {
		AbortWithError(c, newValidationError("member_id", "invalid_id", "member id is invalid"))
		return
	}

	if err := fn(c.Request.Context(), status.Application.ID, memberID); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func memberResponse(m householddomain.Member) gin.H {
	return gin.H{
		"member_id":    m.ID.String(),
		"email":        m.Email,
		"display_name": m.DisplayName,
		"role":         m.Role,
		"state":        m.State,
		"invited_at":   m.InvitedAt,
		"joined_at":    m.JoinedAt,
		"left_at":      m.LeftAt,
	}
}
