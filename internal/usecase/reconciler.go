package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	domainErrors "github.com/companionly/payments-service/internal/domain/errors"
	"github.com/companionly/payments-service/internal/domain/model"
	"github.com/companionly/payments-service/internal/domain/provider"
	"github.com/companionly/payments-service/internal/domain/repository"
)

// Outcome is the typed result of applying a normalized event. Precondition
// failures resolve to an outcome, never to an error, so the webhook endpoint
// can acknowledge them without triggering provider retries.
type Outcome string

const (
	// OutcomeApplied means the transition was applied by this delivery.
	OutcomeApplied Outcome = "applied"
	// OutcomeAlreadyApplied means the effect was applied earlier (duplicate
	// or raced delivery); acknowledged as success.
	OutcomeAlreadyApplied Outcome = "already_applied"
	// OutcomeInvalidTransition means the precondition does not hold and the
	// event must not overwrite current state; logged for manual review.
	OutcomeInvalidTransition Outcome = "invalid_transition"
	// OutcomeIgnored means the event cannot be acted on (unknown booking or
	// account) and is acknowledged as a no-op.
	OutcomeIgnored Outcome = "ignored"
)

// Reconciler is the sole writer of Booking.Status and Booking.PaymentStatus.
// Every transition goes through a single conditional update keyed on the
// expected prior state, so racing deliveries for one booking cannot both
// apply conflicting effects.
type Reconciler struct {
	bookings   repository.BookingRepository
	accounts   repository.PayoutAccountRepository
	notifier   Notifier
	feePercent decimal.Decimal
	logger     *zap.Logger
}

// NewReconciler creates a new Reconciler.
func NewReconciler(
	bookings repository.BookingRepository,
	accounts repository.PayoutAccountRepository,
	notifier Notifier,
	feePercent decimal.Decimal,
	logger *zap.Logger,
) *Reconciler {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Reconciler{
		bookings:   bookings,
		accounts:   accounts,
		notifier:   notifier,
		feePercent: feePercent,
		logger:     logger,
	}
}

// Apply routes a normalized event to its transition. Returned errors are
// transient (storage or settlement failures) and mean the delivery should be
// retried; every policy decision comes back as an Outcome.
func (r *Reconciler) Apply(ctx context.Context, ev *provider.PaymentEvent) (Outcome, error) {
	if ev.Kind == provider.EventAccountUpdated {
		return r.applyAccountUpdated(ctx, ev)
	}

	booking, err := r.resolveBooking(ctx, ev)
	if err != nil {
		return OutcomeIgnored, err
	}
	if booking == nil {
		r.logger.Warn("event references unknown booking",
			zap.String("provider", string(ev.Provider)),
			zap.String("kind", string(ev.Kind)),
			zap.String("booking_ref", ev.BookingRef))
		return OutcomeIgnored, nil
	}

	switch ev.Kind {
	case provider.EventOrderApproved:
		return r.applyOrderApproved(ctx, booking, ev)
	case provider.EventCaptureComplete:
		return r.applyCaptureCompleted(ctx, booking, ev)
	case provider.EventCaptureDenied:
		return r.applyCaptureDenied(ctx, booking, ev)
	case provider.EventCaptureRefunded:
		return r.applyCaptureRefunded(ctx, booking, ev)
	default:
		r.logger.Warn("unhandled event kind", zap.String("kind", string(ev.Kind)))
		return OutcomeIgnored, nil
	}
}

// resolveBooking maps the event's correlation reference to a booking. The
// reference is the booking ID stamped into provider metadata at order
// creation; the provider order ref is the fallback for events that carry
// only provider identifiers.
func (r *Reconciler) resolveBooking(ctx context.Context, ev *provider.PaymentEvent) (*model.Booking, error) {
	if ev.BookingRef != "" {
		id, err := uuid.Parse(ev.BookingRef)
		if err == nil {
			b, err := r.bookings.GetByID(ctx, id)
			if err != nil && !errors.Is(err, domainErrors.ErrBookingNotFound) {
				return nil, err
			}
			if b != nil {
				return b, nil
			}
		}
	}
	if ev.OrderRef != "" {
		b, err := r.bookings.GetByProviderOrderRef(ctx, ev.OrderRef)
		if err != nil && !errors.Is(err, domainErrors.ErrBookingNotFound) {
			return nil, err
		}
		return b, nil
	}
	return nil, nil
}

// applyOrderApproved records the provider order reference. Informational
// only: no status change, so order_approved and capture_completed commute.
func (r *Reconciler) applyOrderApproved(ctx context.Context, booking *model.Booking, ev *provider.PaymentEvent) (Outcome, error) {
	pre := repository.BookingPrecondition{
		Statuses: []model.BookingStatus{model.BookingStatusPending, model.BookingStatusAssigned},
	}
	changes := map[string]interface{}{
		"payment_provider": string(ev.Provider),
	}
	if ev.OrderRef != "" {
		changes["provider_order_ref"] = ev.OrderRef
	}

	updated, err := r.bookings.UpdateIf(ctx, booking.ID, pre, changes)
	if err != nil {
		return OutcomeIgnored, err
	}
	if !updated {
		// Late arrival after the capture already confirmed (or a terminal
		// state). Either way there is nothing left to record.
		return OutcomeAlreadyApplied, nil
	}

	r.logger.Info("order approved",
		zap.String("booking_id", booking.ID.String()),
		zap.String("provider", string(ev.Provider)),
		zap.String("order_ref", ev.OrderRef))
	return OutcomeApplied, nil
}

// applyCaptureCompleted confirms the booking and records the settlement the
// Settlement Calculator computed for this capture.
func (r *Reconciler) applyCaptureCompleted(ctx context.Context, booking *model.Booking, ev *provider.PaymentEvent) (Outcome, error) {
	if booking.PaymentStatus == model.PaymentStatusPaid {
		r.logger.Info("duplicate capture_completed delivery",
			zap.String("booking_id", booking.ID.String()),
			zap.String("event_id", ev.ProviderEventID))
		return OutcomeAlreadyApplied, nil
	}

	settlement, err := r.settleFor(ctx, booking)
	if err != nil {
		// A missing fee configuration must block confirmation, never
		// default to a guessed fee.
		return OutcomeIgnored, fmt.Errorf("settlement for booking %s: %w", booking.ID, err)
	}

	now := time.Now().UTC()
	pre := repository.BookingPrecondition{
		Statuses:         []model.BookingStatus{model.BookingStatusPending, model.BookingStatusAssigned},
		PaymentStatusNot: paymentStatusPtr(model.PaymentStatusPaid),
	}
	changes := map[string]interface{}{
		"status":              model.BookingStatusConfirmed,
		"payment_status":      model.PaymentStatusPaid,
		"payment_provider":    string(ev.Provider),
		"platform_fee_amount": settlement.PlatformFeeAmount,
		"updated_at":          now,
	}
	if ev.CaptureRef != "" {
		changes["provider_capture_ref"] = ev.CaptureRef
	}
	if ev.OrderRef != "" && booking.ProviderOrderRef == nil {
		changes["provider_order_ref"] = ev.OrderRef
	}
	if settlement.PayoutDestinationRef != "" {
		changes["payout_destination_ref"] = settlement.PayoutDestinationRef
	}

	updated, err := r.bookings.UpdateIf(ctx, booking.ID, pre, changes)
	if err != nil {
		return OutcomeIgnored, err
	}
	if !updated {
		return r.resolveLostRace(ctx, booking.ID, ev)
	}

	r.logger.Info("booking confirmed",
		zap.String("booking_id", booking.ID.String()),
		zap.String("provider", string(ev.Provider)),
		zap.Int64("amount", booking.TotalAmount),
		zap.Int64("platform_fee", settlement.PlatformFeeAmount),
		zap.String("payout_destination", settlement.PayoutDestinationRef))

	confirmed := *booking
	confirmed.Status = model.BookingStatusConfirmed
	confirmed.PaymentStatus = model.PaymentStatusPaid
	r.notifier.BookingConfirmed(ctx, &confirmed)

	return OutcomeApplied, nil
}

func (r *Reconciler) applyCaptureDenied(ctx context.Context, booking *model.Booking, ev *provider.PaymentEvent) (Outcome, error) {
	pre := repository.BookingPrecondition{
		Statuses:         []model.BookingStatus{model.BookingStatusPending, model.BookingStatusAssigned},
		PaymentStatusNot: paymentStatusPtr(model.PaymentStatusPaid),
	}
	changes := map[string]interface{}{
		"payment_status": model.PaymentStatusFailed,
		"updated_at":     time.Now().UTC(),
	}

	updated, err := r.bookings.UpdateIf(ctx, booking.ID, pre, changes)
	if err != nil {
		return OutcomeIgnored, err
	}
	if !updated {
		return r.rejectTransition(ctx, booking.ID, ev)
	}

	r.logger.Warn("capture denied",
		zap.String("booking_id", booking.ID.String()),
		zap.String("provider", string(ev.Provider)),
		zap.String("failure_code", ev.FailureCode))
	return OutcomeApplied, nil
}

func (r *Reconciler) applyCaptureRefunded(ctx context.Context, booking *model.Booking, ev *provider.PaymentEvent) (Outcome, error) {
	now := time.Now().UTC()
	pre := repository.BookingPrecondition{
		Statuses: []model.BookingStatus{model.BookingStatusConfirmed, model.BookingStatusCompleted},
	}
	changes := map[string]interface{}{
		"status":         model.BookingStatusRefunded,
		"payment_status": model.PaymentStatusRefunded,
		"refunded_at":    now,
		"updated_at":     now,
	}

	updated, err := r.bookings.UpdateIf(ctx, booking.ID, pre, changes)
	if err != nil {
		return OutcomeIgnored, err
	}
	if !updated {
		current, err := r.bookings.GetByID(ctx, booking.ID)
		if err != nil {
			return OutcomeIgnored, err
		}
		if current != nil && current.Status == model.BookingStatusRefunded {
			return OutcomeAlreadyApplied, nil
		}
		return r.rejectTransition(ctx, booking.ID, ev)
	}

	r.logger.Info("booking refunded",
		zap.String("booking_id", booking.ID.String()),
		zap.String("provider", string(ev.Provider)))
	return OutcomeApplied, nil
}

// applyAccountUpdated writes the provider's capability flags to the payout
// account, last-write-wins. Bookings are never touched.
func (r *Reconciler) applyAccountUpdated(ctx context.Context, ev *provider.PaymentEvent) (Outcome, error) {
	if ev.Account == nil || ev.Account.AccountRef == "" {
		r.logger.Warn("account_updated without account reference",
			zap.String("provider", string(ev.Provider)),
			zap.String("event_id", ev.ProviderEventID))
		return OutcomeIgnored, nil
	}

	changes := map[string]interface{}{
		"charges_enabled": ev.Account.ChargesEnabled,
		"payouts_enabled": ev.Account.PayoutsEnabled,
		"updated_at":      time.Now().UTC(),
	}
	if ev.Account.OnboardingStatus != "" {
		changes["onboarding_status"] = ev.Account.OnboardingStatus
	}

	if err := r.accounts.ApplyAccountUpdate(ctx, ev.Account.AccountRef, changes); err != nil {
		if errors.Is(err, domainErrors.ErrPayoutAccountNotFound) {
			r.logger.Warn("account_updated for unknown payout account",
				zap.String("account_ref", ev.Account.AccountRef))
			return OutcomeIgnored, nil
		}
		return OutcomeIgnored, err
	}

	r.logger.Info("payout account updated",
		zap.String("account_ref", ev.Account.AccountRef),
		zap.Bool("charges_enabled", ev.Account.ChargesEnabled),
		zap.Bool("payouts_enabled", ev.Account.PayoutsEnabled))
	return OutcomeApplied, nil
}

// settleFor consults the Settlement Calculator for the booking's assigned
// companion, if any.
func (r *Reconciler) settleFor(ctx context.Context, booking *model.Booking) (Settlement, error) {
	var account *model.CompanionPayoutAccount
	if booking.CompanionID != nil {
		var err error
		account, err = r.accounts.GetActiveByCompanionID(ctx, *booking.CompanionID)
		if err != nil && !errors.Is(err, domainErrors.ErrPayoutAccountNotFound) {
			return Settlement{}, err
		}
	}
	return ComputeSettlement(booking.TotalAmount, r.feePercent, account)
}

// resolveLostRace distinguishes "another delivery won" from "the booking
// moved somewhere this event is not valid for".
func (r *Reconciler) resolveLostRace(ctx context.Context, id uuid.UUID, ev *provider.PaymentEvent) (Outcome, error) {
	current, err := r.bookings.GetByID(ctx, id)
	if err != nil {
		return OutcomeIgnored, err
	}
	if current != nil && current.PaymentStatus == model.PaymentStatusPaid {
		return OutcomeAlreadyApplied, nil
	}
	return r.rejectTransition(ctx, id, ev)
}

// rejectTransition logs the precondition failure for manual review and
// resolves it to an outcome the endpoint acknowledges.
func (r *Reconciler) rejectTransition(_ context.Context, id uuid.UUID, ev *provider.PaymentEvent) (Outcome, error) {
	r.logger.Error("invalid transition rejected",
		zap.String("booking_id", id.String()),
		zap.String("provider", string(ev.Provider)),
		zap.String("kind", string(ev.Kind)),
		zap.String("event_id", ev.ProviderEventID))
	return OutcomeInvalidTransition, nil
}

func paymentStatusPtr(s model.PaymentStatus) *model.PaymentStatus {
	return &s
}
