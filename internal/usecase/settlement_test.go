package usecase_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	domainErrors "github.com/companionly/payments-service/internal/domain/errors"
	"github.com/companionly/payments-service/internal/domain/model"
	"github.com/companionly/payments-service/internal/usecase"
)

func TestComputeSettlement(t *testing.T) {
	eligible := &model.CompanionPayoutAccount{
		ProviderAccountRef: "acct_eligible",
		ChargesEnabled:     true,
		PayoutsEnabled:     true,
		OnboardingStatus:   model.OnboardingStatusComplete,
	}

	t.Run("computes fee on minor units", func(t *testing.T) {
		s, err := usecase.ComputeSettlement(10000, decimal.NewFromInt(10), eligible)

		assert.NoError(t, err)
		assert.Equal(t, int64(1000), s.PlatformFeeAmount)
		assert.Equal(t, "acct_eligible", s.PayoutDestinationRef)
	})

	t.Run("rounds half up", func(t *testing.T) {
		// 125 * 10% = 12.5 -> 13
		s, err := usecase.ComputeSettlement(125, decimal.NewFromInt(10), eligible)

		assert.NoError(t, err)
		assert.Equal(t, int64(13), s.PlatformFeeAmount)
	})

	t.Run("rounds down below the midpoint", func(t *testing.T) {
		// 124 * 10% = 12.4 -> 12
		s, err := usecase.ComputeSettlement(124, decimal.NewFromInt(10), eligible)

		assert.NoError(t, err)
		assert.Equal(t, int64(12), s.PlatformFeeAmount)
	})

	t.Run("fractional fee percent", func(t *testing.T) {
		// 9999 * 12.5% = 1249.875 -> 1250
		pct, _ := decimal.NewFromString("12.5")
		s, err := usecase.ComputeSettlement(9999, pct, eligible)

		assert.NoError(t, err)
		assert.Equal(t, int64(1250), s.PlatformFeeAmount)
	})

	t.Run("ineligible account defers payout", func(t *testing.T) {
		ineligible := &model.CompanionPayoutAccount{
			ProviderAccountRef: "acct_pending",
			ChargesEnabled:     false,
			OnboardingStatus:   model.OnboardingStatusInProgress,
		}

		s, err := usecase.ComputeSettlement(10000, decimal.NewFromInt(10), ineligible)

		assert.NoError(t, err)
		assert.Equal(t, int64(1000), s.PlatformFeeAmount)
		assert.Empty(t, s.PayoutDestinationRef)
	})

	t.Run("nil account defers payout", func(t *testing.T) {
		s, err := usecase.ComputeSettlement(10000, decimal.NewFromInt(10), nil)

		assert.NoError(t, err)
		assert.Equal(t, int64(1000), s.PlatformFeeAmount)
		assert.Empty(t, s.PayoutDestinationRef)
	})

	t.Run("rejects zero fee percent", func(t *testing.T) {
		_, err := usecase.ComputeSettlement(10000, decimal.Zero, eligible)

		assert.ErrorIs(t, err, domainErrors.ErrFeeNotConfigured)
	})

	t.Run("rejects fee percent of one hundred", func(t *testing.T) {
		_, err := usecase.ComputeSettlement(10000, decimal.NewFromInt(100), eligible)

		assert.ErrorIs(t, err, domainErrors.ErrFeeNotConfigured)
	})

	t.Run("rejects negative fee percent", func(t *testing.T) {
		_, err := usecase.ComputeSettlement(10000, decimal.NewFromInt(-5), eligible)

		assert.ErrorIs(t, err, domainErrors.ErrFeeNotConfigured)
	})
}
