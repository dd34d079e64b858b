package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/account"
	"github.com/stripe/stripe-go/v79/accountlink"
	"github.com/stripe/stripe-go/v79/paymentintent"
	"github.com/stripe/stripe-go/v79/refund"
	"github.com/stripe/stripe-go/v79/webhook"
	"go.uber.org/zap"

	domainErrors "github.com/companionly/payments-service/internal/domain/errors"
	"github.com/companionly/payments-service/internal/domain/provider"
)

// bookingMetadataKey is the metadata key carrying the booking correlation on
// every Stripe object this service creates.
const bookingMetadataKey = "booking_id"

// StripeProvider implements the PaymentProvider interface for Stripe.
// The global stripe.Key is set at bootstrap; this type only holds what
// differs per deployment.
type StripeProvider struct {
	webhookSecret string
	logger        *zap.Logger
}

// NewStripeProvider creates a new Stripe provider
func NewStripeProvider(webhookSecret string, logger *zap.Logger) *StripeProvider {
	return &StripeProvider{
		webhookSecret: webhookSecret,
		logger:        logger,
	}
}

// Name returns the provider type
func (s *StripeProvider) Name() provider.ProviderType {
	return provider.ProviderTypeStripe
}

// ParseWebhook verifies the Stripe-Signature header against the raw payload
// and normalizes the event. Unrecognized event types return (nil, nil).
func (s *StripeProvider) ParseWebhook(ctx context.Context, payload []byte, signature string) (*provider.PaymentEvent, error) {
	event, err := webhook.ConstructEventWithOptions(
		payload,
		signature,
		s.webhookSecret,
		webhook.ConstructEventOptions{
			IgnoreAPIVersionMismatch: true,
		},
	)
	if err != nil {
		s.logger.Warn("Stripe webhook signature verification failed", zap.Error(err))
		return nil, domainErrors.ErrInvalidSignature
	}

	normalized := &provider.PaymentEvent{
		Provider:        provider.ProviderTypeStripe,
		ProviderEventID: event.ID,
		CreatedAt:       time.Unix(event.Created, 0),
	}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return nil, &provider.ProviderError{
				Code:    "PARSE_ERROR",
				Message: "Failed to parse checkout session",
				Details: err.Error(),
			}
		}
		normalized.Kind = provider.EventOrderApproved
		normalized.BookingRef = session.Metadata[bookingMetadataKey]
		if session.PaymentIntent != nil {
			normalized.OrderRef = session.PaymentIntent.ID
		}
		normalized.Amount = session.AmountTotal
		normalized.Currency = string(session.Currency)

	case stripe.EventTypePaymentIntentSucceeded:
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return nil, &provider.ProviderError{
				Code:    "PARSE_ERROR",
				Message: "Failed to parse payment intent",
				Details: err.Error(),
			}
		}
		normalized.Kind = provider.EventCaptureComplete
		normalized.BookingRef = intent.Metadata[bookingMetadataKey]
		normalized.OrderRef = intent.ID
		normalized.Amount = intent.Amount
		normalized.Currency = string(intent.Currency)
		if intent.LatestCharge != nil {
			normalized.CaptureRef = intent.LatestCharge.ID
		}

	case stripe.EventTypePaymentIntentPaymentFailed:
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return nil, &provider.ProviderError{
				Code:    "PARSE_ERROR",
				Message: "Failed to parse payment intent",
				Details: err.Error(),
			}
		}
		normalized.Kind = provider.EventCaptureDenied
		normalized.BookingRef = intent.Metadata[bookingMetadataKey]
		normalized.OrderRef = intent.ID
		normalized.Amount = intent.Amount
		normalized.Currency = string(intent.Currency)
		if intent.LastPaymentError != nil {
			normalized.FailureCode = string(intent.LastPaymentError.Code)
		}

	case stripe.EventTypeChargeRefunded:
		var charge stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &charge); err != nil {
			return nil, &provider.ProviderError{
				Code:    "PARSE_ERROR",
				Message: "Failed to parse charge",
				Details: err.Error(),
			}
		}
		normalized.Kind = provider.EventCaptureRefunded
		normalized.BookingRef = charge.Metadata[bookingMetadataKey]
		normalized.CaptureRef = charge.ID
		if charge.PaymentIntent != nil {
			normalized.OrderRef = charge.PaymentIntent.ID
		}
		normalized.Amount = charge.AmountRefunded
		normalized.Currency = string(charge.Currency)

	case stripe.EventTypeAccountUpdated:
		var acct stripe.Account
		if err := json.Unmarshal(event.Data.Raw, &acct); err != nil {
			return nil, &provider.ProviderError{
				Code:    "PARSE_ERROR",
				Message: "Failed to parse account",
				Details: err.Error(),
			}
		}
		normalized.Kind = provider.EventAccountUpdated
		normalized.Account = &provider.AccountUpdate{
			AccountRef:       acct.ID,
			ChargesEnabled:   acct.ChargesEnabled,
			PayoutsEnabled:   acct.PayoutsEnabled,
			OnboardingStatus: onboardingStatusOf(&acct),
		}

	default:
		s.logger.Debug("Unhandled Stripe event type",
			zap.String("type", string(event.Type)),
			zap.String("event_id", event.ID))
		return nil, nil
	}

	// Account events correlate by account ref, everything else needs a
	// booking to act on.
	if normalized.Kind != provider.EventAccountUpdated &&
		normalized.BookingRef == "" && normalized.OrderRef == "" {
		return nil, domainErrors.ErrMissingCorrelation
	}

	return normalized, nil
}

// onboardingStatusOf derives the coarse onboarding state from the account's
// requirements block.
func onboardingStatusOf(acct *stripe.Account) string {
	if acct.Requirements != nil && len(acct.Requirements.CurrentlyDue) > 0 {
		if acct.DetailsSubmitted {
			return "action_required"
		}
		return "in_progress"
	}
	if acct.DetailsSubmitted {
		return "complete"
	}
	return "in_progress"
}

// CreateCapture creates a PaymentIntent carrying the settlement split. The
// application fee and transfer destination are fixed here so the provider and
// the platform agree on the split before any money moves.
func (s *StripeProvider) CreateCapture(ctx context.Context, req *provider.CreateCaptureRequest) (*provider.CreateCaptureResponse, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.Amount),
		Currency: stripe.String(req.Currency),
	}
	params.Context = ctx
	params.AddMetadata(bookingMetadataKey, req.BookingID)
	if req.Description != "" {
		params.Description = stripe.String(req.Description)
	}
	if req.PayoutDestination != "" {
		params.ApplicationFeeAmount = stripe.Int64(req.PlatformFeeAmount)
		params.TransferData = &stripe.PaymentIntentTransferDataParams{
			Destination: stripe.String(req.PayoutDestination),
		}
	}

	intent, err := paymentintent.New(params)
	if err != nil {
		s.logger.Error("Stripe payment intent creation failed",
			zap.String("booking_id", req.BookingID),
			zap.Error(err))
		return nil, wrapStripeError(err)
	}

	s.logger.Info("Stripe payment intent created",
		zap.String("booking_id", req.BookingID),
		zap.String("payment_intent_id", intent.ID),
		zap.Int64("amount", req.Amount))

	return &provider.CreateCaptureResponse{
		OrderRef:     intent.ID,
		ClientSecret: intent.ClientSecret,
		Status:       string(intent.Status),
	}, nil
}

// RetrieveOrder fetches a PaymentIntent and reports its latest charge, used
// to resolve refunds when the booking only recorded the order reference.
func (s *StripeProvider) RetrieveOrder(ctx context.Context, orderRef string) (*provider.Order, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	intent, err := paymentintent.Get(orderRef, params)
	if err != nil {
		return nil, wrapStripeError(err)
	}

	order := &provider.Order{
		OrderRef: intent.ID,
		Status:   string(intent.Status),
	}
	if intent.LatestCharge != nil {
		order.CaptureRef = intent.LatestCharge.ID
	}
	return order, nil
}

// CreateRefund refunds a captured payment by charge or by payment intent.
func (s *StripeProvider) CreateRefund(ctx context.Context, req *provider.RefundRequest) (*provider.RefundResponse, error) {
	params := &stripe.RefundParams{}
	params.Context = ctx
	if req.CaptureRef != "" {
		params.Charge = stripe.String(req.CaptureRef)
	} else {
		params.PaymentIntent = stripe.String(req.OrderRef)
	}
	if req.Reason != "" {
		params.AddMetadata("reason", req.Reason)
	}

	ref, err := refund.New(params)
	if err != nil {
		s.logger.Error("Stripe refund failed",
			zap.String("capture_ref", req.CaptureRef),
			zap.String("order_ref", req.OrderRef),
			zap.Error(err))
		return nil, wrapStripeError(err)
	}

	s.logger.Info("Stripe refund created",
		zap.String("refund_id", ref.ID),
		zap.Int64("amount", ref.Amount))

	return &provider.RefundResponse{
		RefundRef: ref.ID,
		Status:    string(ref.Status),
	}, nil
}

// RetrieveAccount fetches a connected account snapshot.
func (s *StripeProvider) RetrieveAccount(ctx context.Context, accountRef string) (*provider.PayoutAccount, error) {
	params := &stripe.AccountParams{}
	params.Context = ctx

	acct, err := account.GetByID(accountRef, params)
	if err != nil {
		return nil, wrapStripeError(err)
	}

	return &provider.PayoutAccount{
		AccountRef:       acct.ID,
		ChargesEnabled:   acct.ChargesEnabled,
		PayoutsEnabled:   acct.PayoutsEnabled,
		OnboardingStatus: onboardingStatusOf(acct),
	}, nil
}

// CreatePayoutAccount creates an Express connected account for a companion.
func (s *StripeProvider) CreatePayoutAccount(ctx context.Context, companionID uuid.UUID, email string) (string, error) {
	params := &stripe.AccountParams{
		Type:  stripe.String(string(stripe.AccountTypeExpress)),
		Email: stripe.String(email),
		Capabilities: &stripe.AccountCapabilitiesParams{
			Transfers: &stripe.AccountCapabilitiesTransfersParams{
				Requested: stripe.Bool(true),
			},
		},
	}
	params.Context = ctx
	params.AddMetadata("companion_id", companionID.String())

	acct, err := account.New(params)
	if err != nil {
		s.logger.Error("Stripe connected account creation failed",
			zap.String("companion_id", companionID.String()),
			zap.Error(err))
		return "", wrapStripeError(err)
	}

	s.logger.Info("Stripe connected account created",
		zap.String("companion_id", companionID.String()),
		zap.String("account_id", acct.ID))

	return acct.ID, nil
}

// CreateOnboardingLink creates a hosted onboarding link for a connected
// account.
func (s *StripeProvider) CreateOnboardingLink(ctx context.Context, accountRef, refreshURL, returnURL string) (string, error) {
	params := &stripe.AccountLinkParams{
		Account:    stripe.String(accountRef),
		RefreshURL: stripe.String(refreshURL),
		ReturnURL:  stripe.String(returnURL),
		Type:       stripe.String("account_onboarding"),
	}
	params.Context = ctx

	link, err := accountlink.New(params)
	if err != nil {
		return "", wrapStripeError(err)
	}
	return link.URL, nil
}

func wrapStripeError(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		return &provider.ProviderError{
			Code:    string(stripeErr.Code),
			Message: stripeErr.Msg,
			Details: string(stripeErr.Type),
		}
	}
	return &provider.ProviderError{
		Code:    "API_ERROR",
		Message: "Stripe API request failed",
		Details: err.Error(),
	}
}
