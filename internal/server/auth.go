package server

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	apikeydomain "github.com/rentstack/rentflow/internal/apikey/domain"
	authdomain "github.com/rentstack/rentflow/internal/auth/domain"
	"github.com/rentstack/rentflow/internal/auth/password"
	organizationdomain "github.com/rentstack/rentflow/internal/organization/domain"
	"go.uber.org/zap"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login verifies an operator's credentials and mints a fresh API key for
// their organization. The plaintext key is returned exactly once.
func (s *Server) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	email := strings.TrimSpace(strings.ToLower(req.Email))
	if email == "" || req.Password == "" {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var user authdomain.User
	if err := s.db.WithContext(c.Request.Context()).
		Where("email = ?", email).
		Limit(1).
		Find(&user).Error; err != nil {
		AbortWithError(c, err)
		return
	}
	if user.ID == 0 || user.PasswordHash == nil {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	if !password.Verify(req.Password, *user.PasswordHash) {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var org organizationdomain.Organization
	if err := s.db.WithContext(c.Request.Context()).
		Where("is_default = ?", true).
		Limit(1).
		Find(&org).Error; err != nil {
		AbortWithError(c, err)
		return
	}
	if org.ID == 0 {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	rawKey, err := generateAPIKey()
	if err != nil {
		AbortWithError(c, err)
		return
	}
	expires := time.Now().UTC().Add(s.cfg.APIKeyTTL)
	record := apikeydomain.APIKey{
		ID:        s.genID.Generate(),
		OrgID:     org.ID,
		Name:      "login:" + email,
		KeyHash:   apikeydomain.HashAPIKey(rawKey),
		Last4:     rawKey[len(rawKey)-4:],
		IsActive:  true,
		ExpiresAt: &expires,
	}
	if err := s.apiKeys.Insert(c.Request.Context(), s.db, &record); err != nil {
		AbortWithError(c, err)
		return
	}

	s.log.Info("operator login",
		zap.String("email", email),
		zap.String("org_id", org.ID.String()),
	)
	c.JSON(http.StatusOK, gin.H{
		"api_key":    rawKey,
		"expires_at": expires,
		"org_id":     org.ID.String(),
		"user": gin.H{
			"id":           user.ID.String(),
			"email":        user.Email,
			"display_name": user.DisplayName,
		},
	})
}

func generateAPIKey() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate api key: %w", err)
	}
	return "rk_" + hex.EncodeToString(buf), nil
}
