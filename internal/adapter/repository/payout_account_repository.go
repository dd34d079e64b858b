package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	domainErrors "github.com/companionly/payments-service/internal/domain/errors"
	"github.com/companionly/payments-service/internal/domain/model"
	domainRepo "github.com/companionly/payments-service/internal/domain/repository"
)

type payoutAccountRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewPayoutAccountRepository creates a new payout account repository
func NewPayoutAccountRepository(db *gorm.DB, logger *zap.Logger) domainRepo.PayoutAccountRepository {
	return &payoutAccountRepository{db: db, logger: logger}
}

func (r *payoutAccountRepository) Create(ctx context.Context, account *model.CompanionPayoutAccount) error {
	if err := r.db.WithContext(ctx).Create(account).Error; err != nil {
		r.logger.Error("Failed to create payout account",
			zap.String("companion_id", account.CompanionID.String()),
			zap.Error(err))
		return fmt.Errorf("failed to create payout account: %w", err)
	}
	return nil
}

func (r *payoutAccountRepository) GetActiveByCompanionID(ctx context.Context, companionID uuid.UUID) (*model.CompanionPayoutAccount, error) {
	var account model.CompanionPayoutAccount

	err := r.db.WithContext(ctx).
		Where("companion_id = ? AND superseded = false", companionID).
		Order("created_at DESC").
		First(&account).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainErrors.ErrPayoutAccountNotFound
		}
		r.logger.Error("Failed to get payout account",
			zap.String("companion_id", companionID.String()),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get payout account: %w", err)
	}

	return &account, nil
}

func (r *payoutAccountRepository) GetByProviderAccountRef(ctx context.Context, accountRef string) (*model.CompanionPayoutAccount, error) {
	var account model.CompanionPayoutAccount

	err := r.db.WithContext(ctx).
		Where("provider_account_ref = ?", accountRef).
		First(&account).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainErrors.ErrPayoutAccountNotFound
		}
		r.logger.Error("Failed to get payout account by provider ref",
			zap.String("account_ref", accountRef),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get payout account by provider ref: %w", err)
	}

	return &account, nil
}

// ApplyAccountUpdate is last-write-wins; the provider is the sole source of
// truth for the capability flags.
func (r *payoutAccountRepository) ApplyAccountUpdate(ctx context.Context, accountRef string, changes map[string]interface{}) error {
	result := r.db.WithContext(ctx).
		Model(&model.CompanionPayoutAccount{}).
		Where("provider_account_ref = ?", accountRef).
		Updates(changes)

	if result.Error != nil {
		r.logger.Error("Failed to apply account update",
			zap.String("account_ref", accountRef),
			zap.Error(result.Error))
		return fmt.Errorf("failed to apply account update: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domainErrors.ErrPayoutAccountNotFound
	}
	return nil
}

func (r *payoutAccountRepository) SupersedeByCompanionID(ctx context.Context, companionID uuid.UUID) error {
	err := r.db.WithContext(ctx).
		Model(&model.CompanionPayoutAccount{}).
		Where("companion_id = ? AND superseded = false", companionID).
		Update("superseded", true).Error

	if err != nil {
		r.logger.Error("Failed to supersede payout accounts",
			zap.String("companion_id", companionID.String()),
			zap.Error(err))
		return fmt.Errorf("failed to supersede payout accounts: %w", err)
	}
	return nil
}
