package provider

import (
	"context"
	"time"
)

// ProviderType identifies which payment provider processed a payment.
type ProviderType string

const (
	ProviderTypeStripe ProviderType = "stripe"
	ProviderTypePayPal ProviderType = "paypal"
)

// EventKind is the normalized webhook event type. Nothing downstream of a
// parser may branch on provider-specific event-type strings.
type EventKind string

const (
	EventOrderApproved   EventKind = "order_approved"
	EventCaptureComplete EventKind = "capture_completed"
	EventCaptureDenied   EventKind = "capture_denied"
	EventCaptureRefunded EventKind = "capture_refunded"
	EventAccountUpdated  EventKind = "account_updated"
)

// PaymentEvent is the provider-agnostic form of a webhook delivery.
type PaymentEvent struct {
	Provider        ProviderType           `json:"provider"`
	Kind            EventKind              `json:"kind"`
	ProviderEventID string                 `json:"provider_event_id"`
	BookingRef      string                 `json:"booking_ref,omitempty"`
	OrderRef        string                 `json:"order_ref,omitempty"`
	CaptureRef      string                 `json:"capture_ref,omitempty"`
	Amount          int64                  `json:"amount,omitempty"`
	Currency        string                 `json:"currency,omitempty"`
	FailureCode     string                 `json:"failure_code,omitempty"`
	Account         *AccountUpdate         `json:"account,omitempty"`
	Raw             map[string]interface{} `json:"raw,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
}

// AccountUpdate carries payout-account capability flags from an
// account_updated event. OnboardingStatus is empty when the payload does not
// determine it.
type AccountUpdate struct {
	AccountRef       string `json:"account_ref"`
	ChargesEnabled   bool   `json:"charges_enabled"`
	PayoutsEnabled   bool   `json:"payouts_enabled"`
	OnboardingStatus string `json:"onboarding_status,omitempty"`
}

// CreateCaptureRequest initializes a capture with the settlement split
// already established, so provider and platform agree before money moves.
type CreateCaptureRequest struct {
	BookingID         string `json:"booking_id"`
	Amount            int64  `json:"amount"`
	Currency          string `json:"currency"`
	PlatformFeeAmount int64  `json:"platform_fee_amount"`
	PayoutDestination string `json:"payout_destination,omitempty"`
	Description       string `json:"description,omitempty"`
}

// CreateCaptureResponse identifies the provider-side order created for a
// capture.
type CreateCaptureResponse struct {
	OrderRef     string `json:"order_ref"`
	ClientSecret string `json:"client_secret,omitempty"`
	ApprovalURL  string `json:"approval_url,omitempty"`
	Status       string `json:"status"`
}

// RefundRequest refunds a captured payment. Exactly one of CaptureRef or
// OrderRef must be set depending on what the booking recorded.
type RefundRequest struct {
	CaptureRef string `json:"capture_ref,omitempty"`
	OrderRef   string `json:"order_ref,omitempty"`
	Amount     int64  `json:"amount"`
	Currency   string `json:"currency"`
	Reason     string `json:"reason,omitempty"`
}

// RefundResponse identifies the provider-side refund object.
type RefundResponse struct {
	RefundRef string `json:"refund_ref"`
	Status    string `json:"status"`
}

// PayoutAccount is a provider payout account snapshot.
type PayoutAccount struct {
	AccountRef       string `json:"account_ref"`
	ChargesEnabled   bool   `json:"charges_enabled"`
	PayoutsEnabled   bool   `json:"payouts_enabled"`
	OnboardingStatus string `json:"onboarding_status"`
}

// Order is a provider order snapshot used to resolve refunds when only the
// order reference is known.
type Order struct {
	OrderRef   string `json:"order_ref"`
	CaptureRef string `json:"capture_ref,omitempty"`
	Status     string `json:"status"`
}

// PaymentProvider is the contract both provider clients satisfy. Webhook
// parsing is part of the contract because signature verification needs the
// provider's secret and must run on the raw payload bytes.
type PaymentProvider interface {
	Name() ProviderType

	// ParseWebhook authenticates and normalizes a webhook delivery.
	// A (nil, nil) return means the event type is unrecognized and the
	// delivery should be acknowledged without processing.
	ParseWebhook(ctx context.Context, payload []byte, signature string) (*PaymentEvent, error)

	CreateCapture(ctx context.Context, req *CreateCaptureRequest) (*CreateCaptureResponse, error)
	RetrieveOrder(ctx context.Context, orderRef string) (*Order, error)
	CreateRefund(ctx context.Context, req *RefundRequest) (*RefundResponse, error)
	RetrieveAccount(ctx context.Context, accountRef string) (*PayoutAccount, error)
}

// ProviderError carries a provider API failure with its upstream code.
type ProviderError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func (e *ProviderError) Error() string {
	if e.Details != "" {
		return e.Message + ": " + e.Details
	}
	return e.Message
}
