package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	paymentdomain "github.com/rentstack/rentflow/internal/payment/domain"
	"gorm.io/gorm"
)

type Repository struct{}

func New() paymentdomain.Repository {
	return &Repository{}
}

func (Repository) FindEvent(ctx context.Context, db *gorm.DB, provider string, providerEventID string) (*paymentdomain.EventRecord, error) {
	var record paymentdomain.EventRecord
	err := db.WithContext(ctx).
		Where("provider = ? AND provider_event_id = ?", provider, providerEventID).
		Limit(1).
		Find(&record).Error
	if err != nil {
		return nil, err
	}
	if record.ID == 0 {
		return nil, nil
	}
	return &record, nil
}

func (Repository) InsertEvent(ctx context.Context, db *gorm.DB, event *paymentdomain.EventRecord) (bool, error) {
	err := db.WithContext(ctx).Create(event).Error
	if err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (Repository) MarkProcessed(ctx context.Context, db *gorm.DB, id snowflake.ID, processedAt time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE payment_events
		 SET processed_at = COALESCE(processed_at, ?)
		 WHERE id = ?`,
		processedAt,
		id,
	).Error
}

func (Repository) InsertPayment(ctx context.Context, db *gorm.DB, payment *paymentdomain.Payment) error {
	return db.WithContext(ctx).Create(payment).Error
}

func (Repository) FindPayment(ctx context.Context, db *gorm.DB, id snowflake.ID) (*paymentdomain.Payment, error) {
	var payment paymentdomain.Payment
	err := db.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&payment).Error
	if err != nil {
		return nil, err
	}
	if payment.ID == 0 {
		return nil, nil
	}
	return &payment, nil
}

func (Repository) UpdatePaymentStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, from, to paymentdomain.Status, now time.Time) (bool, error) {
	if !paymentdomain.ValidStatusChange(from, to) {
		return false, paymentdomain.ErrInvalidStatusChange
	}
	result := db.WithContext(ctx).Exec(
		`UPDATE payments
		 SET status = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		to,
		now,
		id,
		from,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (Repository) ListPending(ctx context.Context, db *gorm.DB, applicationID snowflake.ID) ([]paymentdomain.Payment, error) {
	var payments []paymentdomain.Payment
	err := db.WithContext(ctx).
		Where("application_id = ? AND status IN ?", applicationID, []paymentdomain.Status{
			paymentdomain.StatusCreated,
			paymentdomain.StatusProcessing,
		}).
		Order("created_at ASC").
		Find(&payments).Error
	if err != nil {
		return nil, err
	}
	return payments, nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}
