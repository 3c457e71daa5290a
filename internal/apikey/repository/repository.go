package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/rentstack/rentflow/internal/apikey/domain"
	"gorm.io/gorm"
)

type repository struct{}

func Provide() domain.Repository { return repository{} }

func (repository) Insert(ctx context.Context, db *gorm.DB, key *domain.APIKey) error {
	return db.WithContext(ctx).Create(key).Error
}

func (repository) FindActiveByHash(ctx context.Context, db *gorm.DB, hash string) (*domain.APIKey, error) {
	var key domain.APIKey
	err := db.WithContext(ctx).
		Where("key_hash = ? AND is_active = ?", hash, true).
		Where("expires_at IS NULL OR expires_at > ?", time.Now().UTC()).
		Limit(1).
		Find(&key).Error
	if err != nil {
		return nil, err
	}
	if key.ID == 0 {
		return nil, nil
	}
	return &key, nil
}

func (repository) List(ctx context.Context, db *gorm.DB, orgID snowflake.ID) ([]domain.APIKey, error) {
	var keys []domain.APIKey
	err := db.WithContext(ctx).
		Where("org_id = ?", orgID).
		Order("created_at DESC").
		Find(&keys).Error
	return keys, err
}

func (repository) Deactivate(ctx context.Context, db *gorm.DB, orgID, keyID snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`UPDATE api_keys SET is_active = ?, updated_at = ? WHERE org_id = ? AND id = ?`,
		false,
		time.Now().UTC(),
		orgID,
		keyID,
	).Error
}
