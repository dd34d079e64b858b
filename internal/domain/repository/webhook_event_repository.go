package repository

import (
	"context"

	"github.com/companionly/payments-service/internal/domain/model"
)

// WebhookEventRepository is the durable dedup and retry record for webhook
// deliveries.
type WebhookEventRepository interface {
	// SaveEvent inserts the delivery record and reports whether it is new.
	// An exact redelivery (same provider + event id) returns false.
	SaveEvent(ctx context.Context, event *model.WebhookEvent) (bool, error)

	MarkProcessed(ctx context.Context, provider, eventID string) error
	MarkFailed(ctx context.Context, provider, eventID string, cause error) error

	// GetRetryableEvents returns pending or failed events whose retry time
	// has passed, oldest first.
	GetRetryableEvents(ctx context.Context, limit int) ([]*model.WebhookEvent, error)
}

// AuditLogRepository records manual admin interventions.
type AuditLogRepository interface {
	Create(ctx context.Context, entry *model.AuditLog) error
}
