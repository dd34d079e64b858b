package main

import (
	"context"
	"flag"
	"log"

	"go.uber.org/zap"

	"github.com/companionly/payments-service/internal/config"
	"github.com/companionly/payments-service/internal/infrastructure/cache"
	"github.com/companionly/payments-service/internal/infrastructure/database"
	"github.com/companionly/payments-service/internal/infrastructure/notify"
	"github.com/companionly/payments-service/internal/usecase"
)

// alwaysFresh stands in for the Redis dedup cache: a sweep replays events
// that already have their durable record, so the cache has nothing to add.
type alwaysFresh struct{}

func (alwaysFresh) Register(ctx context.Context, providerName, eventID string) (bool, error) {
	return true, nil
}

func (alwaysFresh) Unregister(ctx context.Context, providerName, eventID string) error {
	return nil
}

func main() {
	batchSize := flag.Int("batch", 100, "maximum events to replay per run")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	feePercent, err := cfg.Service.FeePercent()
	if err != nil {
		logger.Fatal("Invalid platform fee configuration", zap.Error(err))
	}

	// Initialize database connection
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := database.Close(db, logger); err != nil {
			logger.Error("Failed to close database connection", zap.Error(err))
		}
	}()

	repos := database.NewRepositories(db, logger)

	redisClient, err := cache.NewRedisClient(&cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()

	// The state machine only notifies on the transition it wins, so an
	// event that first applies during a sweep still dispatches its
	// lifecycle notification while replays of applied events stay silent.
	notifier := notify.NewRedisNotifier(redisClient, logger)
	reconciler := usecase.NewReconciler(repos.Booking, repos.PayoutAccount, notifier, feePercent, logger)
	processor := usecase.NewWebhookProcessor(nil, alwaysFresh{}, repos.WebhookEvent, reconciler, logger)

	ctx := context.Background()

	events, err := repos.WebhookEvent.GetRetryableEvents(ctx, *batchSize)
	if err != nil {
		logger.Fatal("Failed to load retryable events", zap.Error(err))
	}

	if len(events) == 0 {
		logger.Info("No retryable webhook events")
		return
	}

	var applied, failed int
	for _, event := range events {
		outcome, err := processor.Replay(ctx, event)
		if err != nil {
			failed++
			logger.Warn("Replay failed",
				zap.String("provider", event.Provider),
				zap.String("event_id", event.ProviderEventID),
				zap.Error(err))
			continue
		}
		applied++
		logger.Info("Replay finished",
			zap.String("provider", event.Provider),
			zap.String("event_id", event.ProviderEventID),
			zap.String("outcome", string(outcome)))
	}

	logger.Info("Sweep complete",
		zap.Int("total", len(events)),
		zap.Int("replayed", applied),
		zap.Int("failed", failed))
}
