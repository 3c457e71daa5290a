package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, key *APIKey) error
	FindActiveByHash(ctx context.Context, db *gorm.DB, hash string) (*APIKey, error)
	List(ctx context.Context, db *gorm.DB, orgID snowflake.ID) ([]APIKey, error)
	Deactivate(ctx context.Context, db *gorm.DB, orgID, keyID snowflake.ID) error
}
