package usecase

import (
	"github.com/shopspring/decimal"

	domainErrors "github.com/companionly/payments-service/internal/domain/errors"
	"github.com/companionly/payments-service/internal/domain/model"
)

// Settlement is the computed split for one booking's captured payment. An
// empty PayoutDestinationRef means the full amount stays on the platform and
// payout is deferred to a manual batch; it is an outcome, not an error.
type Settlement struct {
	PlatformFeeAmount    int64  `json:"platform_fee_amount"`
	PayoutDestinationRef string `json:"payout_destination_ref,omitempty"`
}

// ComputeSettlement computes the platform fee and payout destination for a
// booking. Pure function of its inputs; no I/O. Rounding is half-up on minor
// units, matching the provider's own arithmetic, so the two sides agree on
// the fee before money moves.
func ComputeSettlement(totalAmount int64, feePercent decimal.Decimal, account *model.CompanionPayoutAccount) (Settlement, error) {
	if feePercent.LessThanOrEqual(decimal.Zero) || feePercent.GreaterThanOrEqual(decimal.NewFromInt(100)) {
		return Settlement{}, domainErrors.ErrFeeNotConfigured
	}

	fee := decimal.NewFromInt(totalAmount).
		Mul(feePercent).
		Div(decimal.NewFromInt(100)).
		Round(0)

	s := Settlement{PlatformFeeAmount: fee.IntPart()}

	if account != nil && account.ChargesEnabled {
		s.PayoutDestinationRef = account.ProviderAccountRef
	}

	return s, nil
}
