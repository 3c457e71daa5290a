// Package seed bootstraps the default organization and admin login for
// single-tenant installs.
package seed

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	authdomain "github.com/rentstack/rentflow/internal/auth/domain"
	"github.com/rentstack/rentflow/internal/auth/password"
	"github.com/rentstack/rentflow/internal/config"
	organizationdomain "github.com/rentstack/rentflow/internal/organization/domain"
	"gorm.io/gorm"
)

const (
	defaultOrgName = "Main"
	defaultOrgSlug = "main"
)

// EnsureDefaultOrg seeds the default organization when none exists.
func EnsureDefaultOrg(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		_, err := ensureDefaultOrgTx(ctx, tx, node)
		return err
	})
}

// EnsureDefaultOrgAndAdmin seeds the default organization plus an admin
// user with the configured bootstrap credentials. It is idempotent.
func EnsureDefaultOrgAndAdmin(db *gorm.DB, cfg config.Config) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	email := strings.ToLower(strings.TrimSpace(cfg.DefaultAdminEmail))
	if email == "" {
		return errors.New("bootstrap admin email is required")
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := ensureDefaultOrgTx(ctx, tx, node); err != nil {
			return err
		}

		var user authdomain.User
		err := tx.WithContext(ctx).Where("email = ?", email).Limit(1).Find(&user).Error
		if err != nil {
			return err
		}
		if user.ID != 0 {
			return nil
		}

		hashed, err := password.Hash(cfg.DefaultAdminPassword)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		user = authdomain.User{
			ID:           node.Generate(),
			Email:        email,
			DisplayName:  "Rentflow Admin",
			PasswordHash: &hashed,
			IsDefault:    true,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		return tx.WithContext(ctx).Create(&user).Error
	})
}

func ensureDefaultOrgTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node) (organizationdomain.Organization, error) {
	var org organizationdomain.Organization
	err := tx.WithContext(ctx).Where("slug = ?", defaultOrgSlug).Limit(1).Find(&org).Error
	if err != nil {
		return org, err
	}
	if org.ID != 0 {
		return org, nil
	}

	now := time.Now().UTC()
	org = organizationdomain.Organization{
		ID:        node.Generate(),
		Name:      defaultOrgName,
		Slug:      defaultOrgSlug,
		IsDefault: true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := tx.WithContext(ctx).Create(&org).Error; err != nil {
		return org, err
	}
	return org, nil
}
