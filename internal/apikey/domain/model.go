package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/bwmarrin/snowflake"
)

// APIKey authenticates server-to-server callers. Only the hash is stored;
// the plaintext key is shown once at creation.
type APIKey struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	OrgID     snowflake.ID `gorm:"not null;index"`
	Name      string       `gorm:"type:text;not null"`
	KeyHash   string       `gorm:"type:text;not null;uniqueIndex"`
	Last4     string       `gorm:"type:text;not null"`
	IsActive  bool         `gorm:"not null;default:true"`
	ExpiresAt *time.Time
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (APIKey) TableName() string { return "api_keys" }

// HashAPIKey returns the hex SHA-256 digest stored in place of the key.
func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}
