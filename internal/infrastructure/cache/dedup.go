package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// dedupTTL bounds how long an event id is remembered. Providers stop
// redelivering well inside this window; the database unique index covers
// anything older.
const dedupTTL = 24 * time.Hour

// EventDedup is a best-effort first-seen register for provider event ids,
// backed by Redis SETNX.
type EventDedup struct {
	client *redis.Client
}

// NewEventDedup creates a new EventDedup.
func NewEventDedup(client *redis.Client) *EventDedup {
	return &EventDedup{client: client}
}

// Register records the event id and reports whether it was fresh.
func (d *EventDedup) Register(ctx context.Context, providerName, eventID string) (bool, error) {
	key := fmt.Sprintf("webhook:dedup:%s:%s", providerName, eventID)
	fresh, err := d.client.SetNX(ctx, key, 1, dedupTTL).Result()
	if err != nil {
		return false, fmt.Errorf("dedup register: %w", err)
	}
	return fresh, nil
}

// Unregister drops the event id so a redelivery is processed again. Called
// when the delivery could not be durably recorded.
func (d *EventDedup) Unregister(ctx context.Context, providerName, eventID string) error {
	key := fmt.Sprintf("webhook:dedup:%s:%s", providerName, eventID)
	if err := d.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("dedup unregister: %w", err)
	}
	return nil
}
