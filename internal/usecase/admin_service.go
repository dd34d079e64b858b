package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	domainErrors "github.com/companionly/payments-service/internal/domain/errors"
	"github.com/companionly/payments-service/internal/domain/model"
	"github.com/companionly/payments-service/internal/domain/provider"
	"github.com/companionly/payments-service/internal/domain/repository"
)

// AdminService implements the non-webhook transitions: cancellation, refund,
// and the manual status-correction path. Refunds call the provider first and
// mutate local state only after the provider accepted, so local state never
// claims a refund the provider rejected.
type AdminService struct {
	bookings  repository.BookingRepository
	audits    repository.AuditLogRepository
	providers map[provider.ProviderType]provider.PaymentProvider
	notifier  Notifier
	logger    *zap.Logger
}

// NewAdminService creates a new AdminService.
func NewAdminService(
	bookings repository.BookingRepository,
	audits repository.AuditLogRepository,
	providers map[provider.ProviderType]provider.PaymentProvider,
	notifier Notifier,
	logger *zap.Logger,
) *AdminService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &AdminService{
		bookings:  bookings,
		audits:    audits,
		providers: providers,
		notifier:  notifier,
		logger:    logger,
	}
}

// CancelBooking cancels a booking from pending, assigned or confirmed.
// Cancellation is terminal; only an explicit admin refund may follow.
func (s *AdminService) CancelBooking(ctx context.Context, id uuid.UUID, reason string) (*model.Booking, error) {
	booking, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, domainErrors.ErrBookingNotFound
	}

	now := time.Now().UTC()
	pre := repository.BookingPrecondition{
		Statuses: []model.BookingStatus{
			model.BookingStatusPending,
			model.BookingStatusAssigned,
			model.BookingStatusConfirmed,
		},
	}
	changes := map[string]interface{}{
		"status":              model.BookingStatusCancelled,
		"cancelled_at":        now,
		"cancellation_reason": reason,
		"updated_at":          now,
	}

	updated, err := s.bookings.UpdateIf(ctx, id, pre, changes)
	if err != nil {
		return nil, err
	}
	if !updated {
		return nil, domainErrors.ErrBookingNotCancellable
	}

	s.logger.Info("booking cancelled by admin",
		zap.String("booking_id", id.String()),
		zap.String("reason", reason))

	cancelled := *booking
	cancelled.Status = model.BookingStatusCancelled
	cancelled.CancelledAt = &now
	s.notifier.BookingCancelled(ctx, &cancelled)

	return &cancelled, nil
}

// RefundBooking refunds a confirmed or completed booking. The provider
// refund call is keyed off whichever reference the capture recorded; callers
// retry on ProviderError since no local state has changed at that point.
func (s *AdminService) RefundBooking(ctx context.Context, id uuid.UUID, reason string) (*model.Booking, error) {
	booking, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, domainErrors.ErrBookingNotFound
	}
	if booking.Status == model.BookingStatusRefunded {
		return booking, nil
	}
	if booking.Status != model.BookingStatusConfirmed && booking.Status != model.BookingStatusCompleted {
		return nil, domainErrors.ErrBookingNotRefundable
	}

	client, req, err := s.refundCall(booking, reason)
	if err != nil {
		return nil, err
	}

	resp, err := client.CreateRefund(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("provider refund for booking %s: %w", id, err)
	}

	now := time.Now().UTC()
	pre := repository.BookingPrecondition{
		Statuses: []model.BookingStatus{model.BookingStatusConfirmed, model.BookingStatusCompleted},
	}
	changes := map[string]interface{}{
		"status":         model.BookingStatusRefunded,
		"payment_status": model.PaymentStatusRefunded,
		"refund_reason":  reason,
		"refunded_at":    now,
		"updated_at":     now,
	}

	updated, err := s.bookings.UpdateIf(ctx, id, pre, changes)
	if err != nil {
		return nil, err
	}
	if !updated {
		// The provider's own capture_refunded webhook got here first.
		current, err := s.bookings.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if current != nil && current.Status == model.BookingStatusRefunded {
			return current, nil
		}
		return nil, domainErrors.ErrBookingNotRefundable
	}

	s.logger.Info("booking refunded by admin",
		zap.String("booking_id", id.String()),
		zap.String("refund_ref", resp.RefundRef),
		zap.String("reason", reason))

	refunded := *booking
	refunded.Status = model.BookingStatusRefunded
	refunded.PaymentStatus = model.PaymentStatusRefunded
	refunded.RefundedAt = &now
	return &refunded, nil
}

// refundCall resolves which provider and which payment reference to refund
// against. A booking with no recorded reference cannot be refunded through
// the API and resolves to the explicit manual-required outcome.
func (s *AdminService) refundCall(booking *model.Booking, reason string) (provider.PaymentProvider, *provider.RefundRequest, error) {
	if booking.PaymentProvider == nil {
		return nil, nil, domainErrors.ErrManualRefundRequired
	}
	client, ok := s.providers[provider.ProviderType(*booking.PaymentProvider)]
	if !ok {
		return nil, nil, fmt.Errorf("no client registered for provider %s", *booking.PaymentProvider)
	}

	req := &provider.RefundRequest{
		Amount:   booking.TotalAmount,
		Currency: booking.Currency,
		Reason:   reason,
	}
	switch {
	case booking.ProviderCaptureRef != nil && *booking.ProviderCaptureRef != "":
		req.CaptureRef = *booking.ProviderCaptureRef
	case booking.ProviderOrderRef != nil && *booking.ProviderOrderRef != "":
		req.OrderRef = *booking.ProviderOrderRef
	default:
		return nil, nil, domainErrors.ErrManualRefundRequired
	}
	return client, req, nil
}

// OverrideStatus writes booking status fields unconditionally and records
// the intervention in the audit log. This is the resolution path for
// invalid-transition log entries; it deliberately bypasses the transition
// table and is only reachable through authenticated admin routes.
func (s *AdminService) OverrideStatus(ctx context.Context, actorID uuid.UUID, id uuid.UUID, status model.BookingStatus, paymentStatus model.PaymentStatus, reason string) (*model.Booking, error) {
	booking, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, domainErrors.ErrBookingNotFound
	}

	now := time.Now().UTC()
	changes := map[string]interface{}{
		"status":         status,
		"payment_status": paymentStatus,
		"updated_at":     now,
	}
	if status == model.BookingStatusRefunded && booking.RefundedAt == nil {
		changes["refunded_at"] = now
	}
	if status == model.BookingStatusCancelled && booking.CancelledAt == nil {
		changes["cancelled_at"] = now
	}

	if err := s.bookings.OverrideStatus(ctx, id, changes); err != nil {
		return nil, err
	}

	entry := &model.AuditLog{
		ActorID:   &actorID,
		Action:    "booking_status_override",
		BookingID: &id,
		OldValues: model.JSONB{
			"status":         string(booking.Status),
			"payment_status": string(booking.PaymentStatus),
		},
		NewValues: model.JSONB{
			"status":         string(status),
			"payment_status": string(paymentStatus),
		},
		Reason: &reason,
	}
	if err := s.audits.Create(ctx, entry); err != nil {
		s.logger.Error("failed to write audit log for status override",
			zap.String("booking_id", id.String()),
			zap.Error(err))
	}

	s.logger.Warn("booking status overridden",
		zap.String("booking_id", id.String()),
		zap.String("actor_id", actorID.String()),
		zap.String("from", string(booking.Status)),
		zap.String("to", string(status)))

	return s.bookings.GetByID(ctx, id)
}
