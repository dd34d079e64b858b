package usecase

import (
	"context"

	"github.com/companionly/payments-service/internal/domain/model"
)

// Notifier dispatches booking lifecycle messages. Implementations are
// fire-and-forget: failures are logged by the implementation and never
// surface into a transition.
type Notifier interface {
	BookingConfirmed(ctx context.Context, booking *model.Booking)
	BookingCancelled(ctx context.Context, booking *model.Booking)
	CompanionAssigned(ctx context.Context, booking *model.Booking)
}

// NopNotifier discards all notifications.
type NopNotifier struct{}

func (NopNotifier) BookingConfirmed(context.Context, *model.Booking)  {}
func (NopNotifier) BookingCancelled(context.Context, *model.Booking)  {}
func (NopNotifier) CompanionAssigned(context.Context, *model.Booking) {}
