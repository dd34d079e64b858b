package usecase

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	domainErrors "github.com/companionly/payments-service/internal/domain/errors"
	"github.com/companionly/payments-service/internal/domain/model"
	"github.com/companionly/payments-service/internal/domain/provider"
	"github.com/companionly/payments-service/internal/domain/repository"
)

// DedupCache is the short-lived provider-event-id cache that bounds
// redundant work from exact redeliveries. It is best-effort: the optimistic
// precondition in the state machine is the correctness backstop, so a cache
// outage degrades to extra work, not to corruption.
type DedupCache interface {
	// Register records the event id and reports whether it was fresh.
	Register(ctx context.Context, providerName, eventID string) (bool, error)
	// Unregister releases an id whose delivery could not be persisted, so
	// the provider's redelivery is not absorbed for the rest of the TTL.
	Unregister(ctx context.Context, providerName, eventID string) error
}

// WebhookProcessor drives a raw webhook delivery through normalization,
// dedup, the audit record, and the state machine.
type WebhookProcessor struct {
	providers map[provider.ProviderType]provider.PaymentProvider
	dedup     DedupCache
	events    repository.WebhookEventRepository
	reconcile *Reconciler
	logger    *zap.Logger
}

// NewWebhookProcessor creates a new WebhookProcessor.
func NewWebhookProcessor(
	providers map[provider.ProviderType]provider.PaymentProvider,
	dedup DedupCache,
	events repository.WebhookEventRepository,
	reconcile *Reconciler,
	logger *zap.Logger,
) *WebhookProcessor {
	return &WebhookProcessor{
		providers: providers,
		dedup:     dedup,
		events:    events,
		reconcile: reconcile,
		logger:    logger,
	}
}

// Process handles one delivery for the named provider.
//
// Error contract for the endpoint: ErrInvalidSignature means respond 400 and
// discard permanently; any other error is transient and the endpoint should
// respond non-2xx so the provider redelivers. A nil error always means the
// delivery is acknowledged, whatever the outcome.
func (p *WebhookProcessor) Process(ctx context.Context, providerType provider.ProviderType, payload []byte, signature string) (Outcome, error) {
	client, ok := p.providers[providerType]
	if !ok {
		return OutcomeIgnored, fmt.Errorf("no client registered for provider %s", providerType)
	}

	ev, err := client.ParseWebhook(ctx, payload, signature)
	if err != nil {
		if errors.Is(err, domainErrors.ErrInvalidSignature) {
			p.logger.Warn("webhook discarded: signature verification failed",
				zap.String("provider", string(providerType)))
			return OutcomeIgnored, err
		}
		if errors.Is(err, domainErrors.ErrMissingCorrelation) {
			// The event can never be acted on; failing loudly would only
			// cause endless provider retries.
			p.logger.Warn("webhook acknowledged without correlation",
				zap.String("provider", string(providerType)))
			return OutcomeIgnored, nil
		}
		return OutcomeIgnored, err
	}
	if ev == nil {
		// Unrecognized event type. Providers add types over time; unknown
		// ones must not break the endpoint.
		return OutcomeIgnored, nil
	}

	registered := false
	if fresh, err := p.dedup.Register(ctx, string(providerType), ev.ProviderEventID); err != nil {
		p.logger.Warn("dedup cache unavailable, falling through to state machine",
			zap.Error(err))
	} else if !fresh {
		p.logger.Info("exact redelivery short-circuited",
			zap.String("provider", string(providerType)),
			zap.String("event_id", ev.ProviderEventID))
		return OutcomeAlreadyApplied, nil
	} else {
		registered = true
	}

	record := newEventRecord(ev)
	inserted, err := p.events.SaveEvent(ctx, record)
	if err != nil {
		// Without a durable record the cache entry would swallow the
		// redelivery for the full TTL with nothing left for the sweep to
		// replay. Release it; the unique index absorbs any tight re-race.
		if registered {
			if delErr := p.dedup.Unregister(ctx, string(providerType), ev.ProviderEventID); delErr != nil {
				p.logger.Error("failed to release dedup entry after save failure",
					zap.String("event_id", ev.ProviderEventID),
					zap.Error(delErr))
			}
		}
		return OutcomeIgnored, err
	}
	if !inserted {
		return OutcomeAlreadyApplied, nil
	}

	outcome, err := p.reconcile.Apply(ctx, ev)
	if err != nil {
		if markErr := p.events.MarkFailed(ctx, string(providerType), ev.ProviderEventID, err); markErr != nil {
			p.logger.Error("failed to record webhook failure", zap.Error(markErr))
		}
		return outcome, err
	}

	if err := p.events.MarkProcessed(ctx, string(providerType), ev.ProviderEventID); err != nil {
		p.logger.Error("failed to mark webhook processed",
			zap.String("event_id", ev.ProviderEventID),
			zap.Error(err))
	}

	return outcome, nil
}

// Replay re-drives a persisted webhook event through the state machine. Used
// by the reconciliation sweep; idempotence in the state machine makes this
// safe to run against events that partially applied.
func (p *WebhookProcessor) Replay(ctx context.Context, record *model.WebhookEvent) (Outcome, error) {
	var ev provider.PaymentEvent
	if err := decodeEventRecord(record, &ev); err != nil {
		return OutcomeIgnored, err
	}

	outcome, err := p.reconcile.Apply(ctx, &ev)
	if err != nil {
		if markErr := p.events.MarkFailed(ctx, record.Provider, record.ProviderEventID, err); markErr != nil {
			p.logger.Error("failed to record sweep failure", zap.Error(markErr))
		}
		return outcome, err
	}

	if err := p.events.MarkProcessed(ctx, record.Provider, record.ProviderEventID); err != nil {
		return outcome, err
	}
	return outcome, nil
}

func newEventRecord(ev *provider.PaymentEvent) *model.WebhookEvent {
	record := &model.WebhookEvent{
		Provider:        string(ev.Provider),
		ProviderEventID: ev.ProviderEventID,
		EventType:       string(ev.Kind),
		Status:          model.WebhookStatusPending,
		Data:            eventData(ev),
	}
	if ev.BookingRef != "" {
		ref := ev.BookingRef
		record.BookingRef = &ref
	}
	if !ev.CreatedAt.IsZero() {
		t := ev.CreatedAt
		record.ProviderCreatedAt = &t
	}
	return record
}

// eventData persists the normalized event, not the provider payload, so the
// sweep never re-parses provider-specific shapes.
func eventData(ev *provider.PaymentEvent) model.JSONB {
	data := model.JSONB{
		"kind":        string(ev.Kind),
		"provider":    string(ev.Provider),
		"booking_ref": ev.BookingRef,
		"order_ref":   ev.OrderRef,
		"capture_ref": ev.CaptureRef,
		"amount":      ev.Amount,
		"currency":    ev.Currency,
	}
	if ev.FailureCode != "" {
		data["failure_code"] = ev.FailureCode
	}
	if ev.Account != nil {
		data["account"] = map[string]interface{}{
			"account_ref":       ev.Account.AccountRef,
			"charges_enabled":   ev.Account.ChargesEnabled,
			"payouts_enabled":   ev.Account.PayoutsEnabled,
			"onboarding_status": ev.Account.OnboardingStatus,
		}
	}
	return data
}

func decodeEventRecord(record *model.WebhookEvent, ev *provider.PaymentEvent) error {
	ev.Provider = provider.ProviderType(record.Provider)
	ev.Kind = provider.EventKind(record.EventType)
	ev.ProviderEventID = record.ProviderEventID
	if record.ProviderCreatedAt != nil {
		ev.CreatedAt = *record.ProviderCreatedAt
	} else {
		ev.CreatedAt = record.CreatedAt
	}

	data := record.Data
	if data == nil {
		return fmt.Errorf("webhook event %d has no data", record.ID)
	}
	ev.BookingRef, _ = data["booking_ref"].(string)
	ev.OrderRef, _ = data["order_ref"].(string)
	ev.CaptureRef, _ = data["capture_ref"].(string)
	ev.Currency, _ = data["currency"].(string)
	ev.FailureCode, _ = data["failure_code"].(string)
	if amount, ok := data["amount"].(float64); ok {
		ev.Amount = int64(amount)
	}
	if acct, ok := data["account"].(map[string]interface{}); ok {
		update := &provider.AccountUpdate{}
		update.AccountRef, _ = acct["account_ref"].(string)
		update.ChargesEnabled, _ = acct["charges_enabled"].(bool)
		update.PayoutsEnabled, _ = acct["payouts_enabled"].(bool)
		update.OnboardingStatus, _ = acct["onboarding_status"].(string)
		ev.Account = update
	}
	return nil
}
