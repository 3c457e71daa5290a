package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	householddomain "github.com/rentstack/rentflow/internal/household/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
}

func NewService(p Params) householddomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("household.service"),
		genID: p.GenID,
	}
}

func (s *Service) Invite(ctx context.Context, orgID, applicationID snowflake.ID, email, displayName string, role householddomain.MemberRole) (*householddomain.Member, error) {
	if orgID == 0 || applicationID == 0 {
		return nil, householddomain.ErrInvalidApplication
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, householddomain.ErrInvalidMember
	}
	if !householddomain.ValidRole(role) {
		return nil, householddomain.ErrInvalidRole
	}

	now := time.Now().UTC()
	member := &householddomain.Member{
		ID:            s.genID.Generate(),
		OrgID:         orgID,
		ApplicationID: applicationID,
		Email:         email,
		DisplayName:   strings.TrimSpace(displayName),
		Role:          role,
		State:         householddomain.MemberStateInvited,
		InvitedAt:     now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.WithContext(ctx).Raw(
			`SELECT COUNT(1) FROM household_members
			 WHERE application_id = ? AND email = ? AND state != ?`,
			applicationID,
			email,
			householddomain.MemberStateLeft,
		).Scan(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return householddomain.ErrDuplicateMember
		}

		// An invited primary is only allowed when no other live member
		// already holds the role.
		if role == householddomain.RolePrimary {
			if err := tx.WithContext(ctx).Raw(
				`SELECT COUNT(1) FROM household_members
				 WHERE application_id = ? AND role = ? AND state != ?`,
				applicationID,
				householddomain.RolePrimary,
				householddomain.MemberStateLeft,
			).Scan(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				return householddomain.ErrDuplicateMember
			}
		}

		return tx.WithContext(ctx).Create(member).Error
	})
	if err != nil {
		return nil, err
	}
	return member, nil
}

func (s *Service) Activate(ctx context.Context, applicationID, memberID snowflake.ID) error {
	now := time.Now().UTC()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		member, err := s.lockMember(ctx, tx, applicationID, memberID)
		if err != nil {
			return err
		}
		if member.State == householddomain.MemberStateLeft {
			return householddomain.ErrMemberNotActive
		}
		return tx.WithContext(ctx).Exec(
			`UPDATE household_members
			 SET state = ?, joined_at = COALESCE(joined_at, ?), updated_at = ?
			 WHERE id = ?`,
			householddomain.MemberStateActive,
			now,
			now,
			memberID,
		).Error
	})
}

func (s *Service) Leave(ctx context.Context, applicationID, memberID snowflake.ID) error {
	now := time.Now().UTC()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.lockMember(ctx, tx, applicationID, memberID); err != nil {
			return err
		}
		return tx.WithContext(ctx).Exec(
			`UPDATE household_members
			 SET state = ?, left_at = ?, updated_at = ?
			 WHERE id = ?`,
			householddomain.MemberStateLeft,
			now,
			now,
			memberID,
		).Error
	})
}

func (s *Service) MakePrimary(ctx context.Context, applicationID, memberID snowflake.ID) error {
	now := time.Now().UTC()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		member, err := s.lockMember(ctx, tx, applicationID, memberID)
		if err != nil {
			return err
		}
		if member.State != householddomain.MemberStateActive {
			return householddomain.ErrMemberNotActive
		}

		// Demote the current primary first so the roster never holds two.
		if err := tx.WithContext(ctx).Exec(
			`UPDATE household_members
			 SET role = ?, updated_at = ?
			 WHERE application_id = ? AND role = ? AND id != ?`,
			householddomain.RoleCoApplicant,
			now,
			applicationID,
			householddomain.RolePrimary,
			memberID,
		).Error; err != nil {
			return err
		}

		return tx.WithContext(ctx).Exec(
			`UPDATE household_members
			 SET role = ?, updated_at = ?
			 WHERE id = ?`,
			householddomain.RolePrimary,
			now,
			memberID,
		).Error
	})
}

func (s *Service) List(ctx context.Context, applicationID snowflake.ID) ([]householddomain.Member, error) {
	if applicationID == 0 {
		return nil, householddomain.ErrInvalidApplication
	}
	var members []householddomain.Member
	if err := s.db.WithContext(ctx).
		Where("application_id = ?", applicationID).
		Order("created_at ASC").
		Find(&members).Error; err != nil {
		return nil, err
	}
	return members, nil
}

func (s *Service) lockMember(ctx context.Context, tx *gorm.DB, applicationID, memberID snowflake.ID) (*householddomain.Member, error) {
	if applicationID == 0 || memberID == 0 {
		return nil, householddomain.ErrInvalidMember
	}
	var member householddomain.Member
	err := tx.WithContext(ctx).Raw(
		`SELECT * FROM household_members WHERE id = ? AND application_id = ?`,
		memberID,
		applicationID,
	).Scan(&member).Error
	if err != nil {
		return nil, err
	}
	if member.ID == 0 {
		return nil, householddomain.ErrMemberNotFound
	}
	return &member, nil
}
