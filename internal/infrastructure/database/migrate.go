package database

import (
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/companionly/payments-service/internal/domain/model"
)

// Migrate runs database migrations
func Migrate(db *gorm.DB, logger *zap.Logger) error {
	logger.Info("Running database migrations...")

	if err := createExtensions(db); err != nil {
		logger.Error("Failed to create extensions", zap.Error(err))
		return err
	}

	// Custom types must exist before auto-migrate references them
	if err := createCustomTypes(db); err != nil {
		logger.Error("Failed to create custom types", zap.Error(err))
		return err
	}

	err := db.AutoMigrate(
		&model.Booking{},
		&model.CompanionPayoutAccount{},
		&model.WebhookEvent{},
		&model.AuditLog{},
	)
	if err != nil {
		logger.Error("Failed to run migrations", zap.Error(err))
		return err
	}

	if err := createCustomIndexes(db); err != nil {
		logger.Error("Failed to create custom indexes", zap.Error(err))
		return err
	}

	logger.Info("Database migrations completed successfully")
	return nil
}

// createExtensions creates required PostgreSQL extensions
func createExtensions(db *gorm.DB) error {
	return db.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp"`).Error
}

// createCustomTypes creates the enum types backing status columns
func createCustomTypes(db *gorm.DB) error {
	types := map[string]string{
		"booking_status":         `CREATE TYPE booking_status AS ENUM ('pending', 'assigned', 'confirmed', 'completed', 'cancelled', 'refunded')`,
		"booking_payment_status": `CREATE TYPE booking_payment_status AS ENUM ('pending', 'paid', 'failed', 'refunded')`,
		"onboarding_status":      `CREATE TYPE onboarding_status AS ENUM ('not_started', 'in_progress', 'action_required', 'complete')`,
		"webhook_status":         `CREATE TYPE webhook_status AS ENUM ('pending', 'processing', 'completed', 'failed')`,
	}

	for name, createSQL := range types {
		var exists bool
		db.Raw(`SELECT EXISTS (SELECT 1 FROM pg_type WHERE typname = ?)`, name).Scan(&exists)
		if !exists {
			if err := db.Exec(createSQL).Error; err != nil {
				return err
			}
		}
	}
	return nil
}

// createCustomIndexes creates partial indexes that GORM tags cannot express
func createCustomIndexes(db *gorm.DB) error {
	// Retry sweep scans only unfinished events
	if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_webhook_events_retryable ON webhook_events (created_at) WHERE status IN ('pending', 'failed')`).Error; err != nil {
		return err
	}

	// One live payout account per companion
	if err := db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS unique_active_payout_account_per_companion ON companion_payout_accounts (companion_id) WHERE superseded = false`).Error; err != nil {
		return err
	}

	// Webhook correlation by provider order reference
	if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_bookings_provider_order_ref ON bookings (provider_order_ref) WHERE provider_order_ref IS NOT NULL`).Error; err != nil {
		return err
	}

	return nil
}
