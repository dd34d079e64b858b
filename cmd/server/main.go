package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/companionly/payments-service/internal/config"
	domainProvider "github.com/companionly/payments-service/internal/domain/provider"
	"github.com/companionly/payments-service/internal/infrastructure/cache"
	"github.com/companionly/payments-service/internal/infrastructure/database"
	httpServer "github.com/companionly/payments-service/internal/infrastructure/http"
	"github.com/companionly/payments-service/internal/infrastructure/provider"
	stripeProvider "github.com/companionly/payments-service/internal/infrastructure/provider/stripe"
)

func main() {
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

	// The fee must be valid before any capture path runs
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

	// Run database migrations
	if err := database.Migrate(db, logger); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	// Initialize repositories
	repos := database.NewRepositories(db, logger)

	// Initialize Redis
	redisClient, err := cache.NewRedisClient(&cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()

	// Initialize payment providers
	factory := provider.NewFactory(cfg, logger)
	providers, err := factory.Providers()
	if err != nil {
		logger.Fatal("Failed to initialize payment providers", zap.Error(err))
	}
	onboarder, ok := providers[domainProvider.ProviderTypeStripe].(*stripeProvider.StripeProvider)
	if !ok {
		logger.Fatal("Stripe provider missing for payout onboarding")
	}

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize server
	httpSrv := httpServer.NewServer(cfg, logger, repos, providers, onboarder, redisClient, feePercent)

	go func() {
		if err := httpSrv.Start(); err != nil {
			logger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down server...")

	if err := httpSrv.Shutdown(ctx); err != nil {
		logger.Error("Failed to shutdown HTTP server", zap.Error(err))
	}

	logger.Info("Server shut down successfully")
}
