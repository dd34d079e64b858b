package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	domainErrors "github.com/companionly/payments-service/internal/domain/errors"
	"github.com/companionly/payments-service/internal/domain/model"
	"github.com/companionly/payments-service/internal/domain/provider"
	"github.com/companionly/payments-service/internal/domain/repository"
)

// CheckoutService initiates a payment capture for a booking. The settlement
// split is established at capture time, on the provider's order object, not
// retrofitted after the money moved.
type CheckoutService struct {
	bookings   repository.BookingRepository
	accounts   repository.PayoutAccountRepository
	providers  map[provider.ProviderType]provider.PaymentProvider
	feePercent decimal.Decimal
	logger     *zap.Logger
}

// NewCheckoutService creates a new CheckoutService.
func NewCheckoutService(
	bookings repository.BookingRepository,
	accounts repository.PayoutAccountRepository,
	providers map[provider.ProviderType]provider.PaymentProvider,
	feePercent decimal.Decimal,
	logger *zap.Logger,
) *CheckoutService {
	return &CheckoutService{
		bookings:   bookings,
		accounts:   accounts,
		providers:  providers,
		feePercent: feePercent,
		logger:     logger,
	}
}

// CheckoutResult carries what the client needs to complete payment.
type CheckoutResult struct {
	OrderRef          string `json:"order_ref"`
	ClientSecret      string `json:"client_secret,omitempty"`
	ApprovalURL       string `json:"approval_url,omitempty"`
	PlatformFeeAmount int64  `json:"platform_fee_amount"`
}

// Checkout creates the provider capture order for a pending or assigned
// booking and records the order reference plus the computed split.
func (s *CheckoutService) Checkout(ctx context.Context, bookingID uuid.UUID, providerType provider.ProviderType) (*CheckoutResult, error) {
	client, ok := s.providers[providerType]
	if !ok {
		return nil, fmt.Errorf("no client registered for provider %s", providerType)
	}

	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, domainErrors.ErrBookingNotFound
	}
	if booking.Status != model.BookingStatusPending && booking.Status != model.BookingStatusAssigned {
		return nil, domainErrors.ErrInvalidBookingState
	}
	if booking.PaymentStatus != model.PaymentStatusPending {
		return nil, domainErrors.ErrInvalidBookingState
	}

	var account *model.CompanionPayoutAccount
	if booking.CompanionID != nil {
		account, err = s.accounts.GetActiveByCompanionID(ctx, *booking.CompanionID)
		if err != nil && !errors.Is(err, domainErrors.ErrPayoutAccountNotFound) {
			return nil, err
		}
	}
	settlement, err := ComputeSettlement(booking.TotalAmount, s.feePercent, account)
	if err != nil {
		return nil, err
	}

	resp, err := client.CreateCapture(ctx, &provider.CreateCaptureRequest{
		BookingID:         booking.ID.String(),
		Amount:            booking.TotalAmount,
		Currency:          booking.Currency,
		PlatformFeeAmount: settlement.PlatformFeeAmount,
		PayoutDestination: settlement.PayoutDestinationRef,
		Description:       fmt.Sprintf("Travel companion booking %s", booking.ID),
	})
	if err != nil {
		return nil, err
	}

	pre := repository.BookingPrecondition{
		Statuses:      []model.BookingStatus{model.BookingStatusPending, model.BookingStatusAssigned},
		PaymentStatus: paymentStatusPtr(model.PaymentStatusPending),
	}
	changes := map[string]interface{}{
		"payment_provider":    string(providerType),
		"provider_order_ref":  resp.OrderRef,
		"platform_fee_amount": settlement.PlatformFeeAmount,
		"updated_at":          time.Now().UTC(),
	}
	if settlement.PayoutDestinationRef != "" {
		changes["payout_destination_ref"] = settlement.PayoutDestinationRef
	}
	updated, err := s.bookings.UpdateIf(ctx, bookingID, pre, changes)
	if err != nil {
		return nil, err
	}
	if !updated {
		// The booking moved while the provider order was being created;
		// the stale order is abandoned and expires provider-side.
		return nil, domainErrors.ErrInvalidBookingState
	}

	s.logger.Info("checkout created",
		zap.String("booking_id", bookingID.String()),
		zap.String("provider", string(providerType)),
		zap.String("order_ref", resp.OrderRef),
		zap.Int64("platform_fee", settlement.PlatformFeeAmount))

	return &CheckoutResult{
		OrderRef:          resp.OrderRef,
		ClientSecret:      resp.ClientSecret,
		ApprovalURL:       resp.ApprovalURL,
		PlatformFeeAmount: settlement.PlatformFeeAmount,
	}, nil
}
