package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	domainErrors "github.com/companionly/payments-service/internal/domain/errors"
	"github.com/companionly/payments-service/internal/domain/model"
	"github.com/companionly/payments-service/internal/domain/provider"
	"github.com/companionly/payments-service/internal/domain/repository"
)

// PayoutOnboarder is the Connect-style onboarding surface only the card
// provider offers: creating an express payout account and issuing a hosted
// onboarding link.
type PayoutOnboarder interface {
	CreatePayoutAccount(ctx context.Context, companionID uuid.UUID, email string) (string, error)
	CreateOnboardingLink(ctx context.Context, accountRef, refreshURL, returnURL string) (string, error)
}

// PayoutAccountService manages companion payout enrollment and the explicit
// sync path. Capability flags are only ever written from provider data.
type PayoutAccountService struct {
	accounts  repository.PayoutAccountRepository
	onboarder PayoutOnboarder
	retriever provider.PaymentProvider
	logger    *zap.Logger
}

// NewPayoutAccountService creates a new PayoutAccountService. retriever is
// the provider client used for explicit account syncs.
func NewPayoutAccountService(
	accounts repository.PayoutAccountRepository,
	onboarder PayoutOnboarder,
	retriever provider.PaymentProvider,
	logger *zap.Logger,
) *PayoutAccountService {
	return &PayoutAccountService{
		accounts:  accounts,
		onboarder: onboarder,
		retriever: retriever,
		logger:    logger,
	}
}

// EnrollmentResult carries the new account and its hosted onboarding URL.
type EnrollmentResult struct {
	Account       *model.CompanionPayoutAccount `json:"account"`
	OnboardingURL string                        `json:"onboarding_url"`
}

// Enroll creates a payout account for a companion and returns the hosted
// onboarding link. Any previous enrollment is superseded, not deleted.
func (s *PayoutAccountService) Enroll(ctx context.Context, companionID uuid.UUID, email, refreshURL, returnURL string) (*EnrollmentResult, error) {
	accountRef, err := s.onboarder.CreatePayoutAccount(ctx, companionID, email)
	if err != nil {
		return nil, err
	}

	if err := s.accounts.SupersedeByCompanionID(ctx, companionID); err != nil {
		return nil, err
	}

	account := &model.CompanionPayoutAccount{
		CompanionID:        companionID,
		ProviderAccountRef: accountRef,
		OnboardingStatus:   model.OnboardingStatusInProgress,
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		return nil, err
	}

	url, err := s.onboarder.CreateOnboardingLink(ctx, accountRef, refreshURL, returnURL)
	if err != nil {
		return nil, err
	}

	s.logger.Info("companion payout enrollment started",
		zap.String("companion_id", companionID.String()),
		zap.String("account_ref", accountRef))

	return &EnrollmentResult{Account: account, OnboardingURL: url}, nil
}

// Sync re-fetches the provider account and applies the same last-write-wins
// update the account_updated webhook would.
func (s *PayoutAccountService) Sync(ctx context.Context, companionID uuid.UUID) (*model.CompanionPayoutAccount, error) {
	account, err := s.accounts.GetActiveByCompanionID(ctx, companionID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, domainErrors.ErrPayoutAccountNotFound
	}

	remote, err := s.retriever.RetrieveAccount(ctx, account.ProviderAccountRef)
	if err != nil {
		return nil, err
	}

	changes := map[string]interface{}{
		"charges_enabled": remote.ChargesEnabled,
		"payouts_enabled": remote.PayoutsEnabled,
		"updated_at":      time.Now().UTC(),
	}
	if remote.OnboardingStatus != "" {
		changes["onboarding_status"] = remote.OnboardingStatus
	}
	if err := s.accounts.ApplyAccountUpdate(ctx, account.ProviderAccountRef, changes); err != nil {
		return nil, err
	}

	s.logger.Info("payout account synced",
		zap.String("companion_id", companionID.String()),
		zap.String("account_ref", account.ProviderAccountRef),
		zap.Bool("charges_enabled", remote.ChargesEnabled))

	return s.accounts.GetActiveByCompanionID(ctx, companionID)
}
