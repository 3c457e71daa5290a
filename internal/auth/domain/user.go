package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// User is an operator login. Applicants authenticate through household
// invites, not user rows.
type User struct {
	ID           snowflake.ID `gorm:"primaryKey"`
	Email        string       `gorm:"type:text;not null;uniqueIndex"`
	DisplayName  string       `gorm:"type:text"`
	PasswordHash *string      `gorm:"type:text"`
	IsDefault    bool         `gorm:"not null;default:false"`
	CreatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (User) TableName() string { return "users" }
