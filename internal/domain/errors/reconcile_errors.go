package errors

import "errors"

var (
	// ErrInvalidSignature indicates the webhook payload failed signature or
	// verification checks. Never retryable; the delivery is discarded.
	ErrInvalidSignature = errors.New("webhook signature verification failed")

	// ErrMissingCorrelation indicates the event carries no booking reference
	// and can never be acted on. Logged and acknowledged as a no-op.
	ErrMissingCorrelation = errors.New("event has no booking correlation")

	// ErrBookingNotFound indicates the referenced booking does not exist.
	ErrBookingNotFound = errors.New("booking not found")

	// ErrPayoutAccountNotFound indicates no payout account matches the
	// provider account reference.
	ErrPayoutAccountNotFound = errors.New("payout account not found")

	// ErrFeeNotConfigured indicates the platform fee percent is missing or
	// out of range. Fatal to the capture path; never defaulted.
	ErrFeeNotConfigured = errors.New("platform fee percent not configured")

	// ErrManualRefundRequired indicates no provider payment reference is
	// recorded, so the refund must be handled out of band.
	ErrManualRefundRequired = errors.New("no provider payment reference; manual refund required")

	// ErrBookingNotRefundable indicates the booking is not in a state that
	// permits a refund.
	ErrBookingNotRefundable = errors.New("booking is not in a refundable state")

	// ErrBookingNotCancellable indicates the booking is not in a state that
	// permits cancellation.
	ErrBookingNotCancellable = errors.New("booking is not in a cancellable state")

	// ErrInvalidBookingState indicates the requested operation is not valid
	// for the booking's current status.
	ErrInvalidBookingState = errors.New("operation not valid for current booking state")
)
