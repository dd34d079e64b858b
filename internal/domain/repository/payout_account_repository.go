package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/companionly/payments-service/internal/domain/model"
)

// PayoutAccountRepository persists companion payout accounts. Accounts are
// superseded on re-enrollment, never deleted.
type PayoutAccountRepository interface {
	Create(ctx context.Context, account *model.CompanionPayoutAccount) error
	GetActiveByCompanionID(ctx context.Context, companionID uuid.UUID) (*model.CompanionPayoutAccount, error)
	GetByProviderAccountRef(ctx context.Context, accountRef string) (*model.CompanionPayoutAccount, error)

	// ApplyAccountUpdate writes capability flags last-write-wins; the
	// provider is the sole source of truth for these fields.
	ApplyAccountUpdate(ctx context.Context, accountRef string, changes map[string]interface{}) error

	// SupersedeByCompanionID marks any live account rows for the companion
	// as superseded before a new enrollment is created.
	SupersedeByCompanionID(ctx context.Context, companionID uuid.UUID) error
}
