package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	domainErrors "github.com/companionly/payments-service/internal/domain/errors"
	"github.com/companionly/payments-service/internal/domain/model"
	"github.com/companionly/payments-service/internal/domain/repository"
)

// BookingService covers the non-payment lifecycle: creation, companion
// assignment, completion, lookup.
type BookingService struct {
	bookings repository.BookingRepository
	notifier Notifier
	logger   *zap.Logger
}

// NewBookingService creates a new BookingService.
func NewBookingService(bookings repository.BookingRepository, notifier Notifier, logger *zap.Logger) *BookingService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &BookingService{bookings: bookings, notifier: notifier, logger: logger}
}

// CreateBookingInput is validated at the handler boundary.
type CreateBookingInput struct {
	TravelerID  uuid.UUID
	TotalAmount int64
	Currency    string
}

// Create opens a new booking in pending/pending.
func (s *BookingService) Create(ctx context.Context, in CreateBookingInput) (*model.Booking, error) {
	booking := &model.Booking{
		ID:            uuid.New(),
		TravelerID:    in.TravelerID,
		Status:        model.BookingStatusPending,
		PaymentStatus: model.PaymentStatusPending,
		TotalAmount:   in.TotalAmount,
		Currency:      in.Currency,
	}
	if err := s.bookings.Create(ctx, booking); err != nil {
		return nil, err
	}

	s.logger.Info("booking created",
		zap.String("booking_id", booking.ID.String()),
		zap.String("traveler_id", in.TravelerID.String()),
		zap.Int64("amount", in.TotalAmount),
		zap.String("currency", in.Currency))
	return booking, nil
}

// Get returns a booking by ID.
func (s *BookingService) Get(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	booking, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, domainErrors.ErrBookingNotFound
	}
	return booking, nil
}

// AssignCompanion moves a pending booking to assigned.
func (s *BookingService) AssignCompanion(ctx context.Context, id, companionID uuid.UUID) (*model.Booking, error) {
	booking, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	pre := repository.BookingPrecondition{
		Statuses: []model.BookingStatus{model.BookingStatusPending},
	}
	changes := map[string]interface{}{
		"status":       model.BookingStatusAssigned,
		"companion_id": companionID,
		"updated_at":   time.Now().UTC(),
	}

	updated, err := s.bookings.UpdateIf(ctx, id, pre, changes)
	if err != nil {
		return nil, err
	}
	if !updated {
		return nil, domainErrors.ErrInvalidBookingState
	}

	assigned := *booking
	assigned.Status = model.BookingStatusAssigned
	assigned.CompanionID = &companionID
	s.notifier.CompanionAssigned(ctx, &assigned)

	s.logger.Info("companion assigned",
		zap.String("booking_id", id.String()),
		zap.String("companion_id", companionID.String()))
	return &assigned, nil
}

// Complete moves a confirmed (and paid) booking to completed once the trip
// is over.
func (s *BookingService) Complete(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	pre := repository.BookingPrecondition{
		Statuses:      []model.BookingStatus{model.BookingStatusConfirmed},
		PaymentStatus: paymentStatusPtr(model.PaymentStatusPaid),
	}
	changes := map[string]interface{}{
		"status":     model.BookingStatusCompleted,
		"updated_at": time.Now().UTC(),
	}

	updated, err := s.bookings.UpdateIf(ctx, id, pre, changes)
	if err != nil {
		return nil, err
	}
	if !updated {
		return nil, domainErrors.ErrInvalidBookingState
	}
	return s.Get(ctx, id)
}
