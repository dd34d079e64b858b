package database

import (
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/companionly/payments-service/internal/adapter/repository"
	domainRepo "github.com/companionly/payments-service/internal/domain/repository"
)

// Repositories holds all repository instances
type Repositories struct {
	Booking       domainRepo.BookingRepository
	PayoutAccount domainRepo.PayoutAccountRepository
	WebhookEvent  domainRepo.WebhookEventRepository
	AuditLog      domainRepo.AuditLogRepository
}

// NewRepositories creates new repository instances with database connection
func NewRepositories(db *gorm.DB, logger *zap.Logger) *Repositories {
	return &Repositories{
		Booking:       repository.NewBookingRepository(db, logger),
		PayoutAccount: repository.NewPayoutAccountRepository(db, logger),
		WebhookEvent:  repository.NewWebhookEventRepository(db, logger),
		AuditLog:      repository.NewAuditLogRepository(db, logger),
	}
}
