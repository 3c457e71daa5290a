package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Organization is one property-management tenant. Every workflow row hangs
// off an org id.
type Organization struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	Name      string       `gorm:"type:text;not null"`
	Slug      string       `gorm:"type:text;not null;uniqueIndex"`
	IsDefault bool         `gorm:"not null;default:false"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Organization) TableName() string { return "organizations" }
