package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	domainErrors "github.com/companionly/payments-service/internal/domain/errors"
	"github.com/companionly/payments-service/internal/domain/model"
	domainRepo "github.com/companionly/payments-service/internal/domain/repository"
)

type bookingRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewBookingRepository creates a new booking repository
func NewBookingRepository(db *gorm.DB, logger *zap.Logger) domainRepo.BookingRepository {
	return &bookingRepository{db: db, logger: logger}
}

func (r *bookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	if err := r.db.WithContext(ctx).Create(booking).Error; err != nil {
		r.logger.Error("Failed to create booking",
			zap.String("booking_id", booking.ID.String()),
			zap.Error(err))
		return fmt.Errorf("failed to create booking: %w", err)
	}
	return nil
}

func (r *bookingRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	var booking model.Booking

	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&booking).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logger.Error("Failed to get booking",
			zap.String("booking_id", id.String()),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}

	return &booking, nil
}

func (r *bookingRepository) GetByProviderOrderRef(ctx context.Context, orderRef string) (*model.Booking, error) {
	var booking model.Booking

	err := r.db.WithContext(ctx).
		Where("provider_order_ref = ?", orderRef).
		First(&booking).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logger.Error("Failed to get booking by order ref",
			zap.String("order_ref", orderRef),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get booking by order ref: %w", err)
	}

	return &booking, nil
}

// UpdateIf issues one conditional UPDATE keyed on the expected prior state.
// Two events racing for the same booking cannot both succeed: the loser sees
// zero rows affected and resolves the conflict from the fresh row instead of
// overwriting it.
func (r *bookingRepository) UpdateIf(ctx context.Context, id uuid.UUID, pre domainRepo.BookingPrecondition, changes map[string]interface{}) (bool, error) {
	query := r.db.WithContext(ctx).
		Model(&model.Booking{}).
		Where("id = ?", id)

	if len(pre.Statuses) > 0 {
		query = query.Where("status IN ?", statusStrings(pre.Statuses))
	}
	if pre.PaymentStatus != nil {
		query = query.Where("payment_status = ?", string(*pre.PaymentStatus))
	}
	if pre.PaymentStatusNot != nil {
		query = query.Where("payment_status <> ?", string(*pre.PaymentStatusNot))
	}

	result := query.Updates(changes)
	if result.Error != nil {
		r.logger.Error("Failed to apply conditional booking update",
			zap.String("booking_id", id.String()),
			zap.Error(result.Error))
		return false, fmt.Errorf("failed to update booking: %w", result.Error)
	}

	return result.RowsAffected > 0, nil
}

func (r *bookingRepository) OverrideStatus(ctx context.Context, id uuid.UUID, changes map[string]interface{}) error {
	result := r.db.WithContext(ctx).
		Model(&model.Booking{}).
		Where("id = ?", id).
		Updates(changes)

	if result.Error != nil {
		r.logger.Error("Failed to override booking status",
			zap.String("booking_id", id.String()),
			zap.Error(result.Error))
		return fmt.Errorf("failed to override booking status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domainErrors.ErrBookingNotFound
	}
	return nil
}

func statusStrings(statuses []model.BookingStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
