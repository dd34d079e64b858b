package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/companionly/payments-service/internal/domain/model"
)

// BookingPrecondition is the optimistic guard for a conditional booking
// update. The update applies only while the persisted row still satisfies
// every populated field; a raced update makes the write a no-op instead of a
// lost update.
type BookingPrecondition struct {
	Statuses         []model.BookingStatus
	PaymentStatus    *model.PaymentStatus
	PaymentStatusNot *model.PaymentStatus
}

// BookingRepository persists bookings. UpdateIf must be implemented as a
// single conditional write, not read-modify-write.
type BookingRepository interface {
	Create(ctx context.Context, booking *model.Booking) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Booking, error)
	GetByProviderOrderRef(ctx context.Context, orderRef string) (*model.Booking, error)

	// UpdateIf applies changes to the booking iff the precondition still
	// holds, and reports whether the row was updated.
	UpdateIf(ctx context.Context, id uuid.UUID, pre BookingPrecondition, changes map[string]interface{}) (bool, error)

	// OverrideStatus writes status fields unconditionally. Reserved for the
	// admin manual-correction path; every call is audit-logged by the caller.
	OverrideStatus(ctx context.Context, id uuid.UUID, changes map[string]interface{}) error
}
