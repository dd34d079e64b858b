package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/companionly/payments-service/internal/domain/model"
)

const (
	channelBookingConfirmed  = "bookings.confirmed"
	channelBookingCancelled  = "bookings.cancelled"
	channelCompanionAssigned = "bookings.companion_assigned"
)

// RedisNotifier publishes booking lifecycle messages on Redis pub/sub
// channels consumed by the notification service. Publishing is
// fire-and-forget: a failed publish is logged and dropped.
type RedisNotifier struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisNotifier creates a new RedisNotifier.
func NewRedisNotifier(client *redis.Client, logger *zap.Logger) *RedisNotifier {
	return &RedisNotifier{client: client, logger: logger}
}

func (n *RedisNotifier) BookingConfirmed(ctx context.Context, booking *model.Booking) {
	n.publish(ctx, channelBookingConfirmed, booking)
}

func (n *RedisNotifier) BookingCancelled(ctx context.Context, booking *model.Booking) {
	n.publish(ctx, channelBookingCancelled, booking)
}

func (n *RedisNotifier) CompanionAssigned(ctx context.Context, booking *model.Booking) {
	n.publish(ctx, channelCompanionAssigned, booking)
}

func (n *RedisNotifier) publish(ctx context.Context, channel string, booking *model.Booking) {
	msg := map[string]interface{}{
		"booking_id":  booking.ID.String(),
		"traveler_id": booking.TravelerID.String(),
		"status":      string(booking.Status),
		"occurred_at": time.Now().UTC().Format(time.RFC3339),
	}
	if booking.CompanionID != nil {
		msg["companion_id"] = booking.CompanionID.String()
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		n.logger.Error("Failed to encode notification", zap.Error(err))
		return
	}

	if err := n.client.Publish(ctx, channel, payload).Err(); err != nil {
		n.logger.Warn("Failed to publish notification",
			zap.String("channel", channel),
			zap.String("booking_id", booking.ID.String()),
			zap.Error(err))
	}
}
