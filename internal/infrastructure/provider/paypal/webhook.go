package paypal

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	domainErrors "github.com/companionly/payments-service/internal/domain/errors"
	"github.com/companionly/payments-service/internal/domain/provider"
)

// SignatureHeaders carries the transmission headers PayPal sends with each
// webhook delivery. Verification needs all of them, so the HTTP handler
// packs them into the single signature argument with EncodeSignature.
type SignatureHeaders struct {
	TransmissionID   string `json:"transmission_id"`
	TransmissionTime string `json:"transmission_time"`
	TransmissionSig  string `json:"transmission_sig"`
	CertURL          string `json:"cert_url"`
	AuthAlgo         string `json:"auth_algo"`
}

// SignatureFromRequest collects the PayPal transmission headers.
func SignatureFromRequest(header http.Header) SignatureHeaders {
	return SignatureHeaders{
		TransmissionID:   header.Get("Paypal-Transmission-Id"),
		TransmissionTime: header.Get("Paypal-Transmission-Time"),
		TransmissionSig:  header.Get("Paypal-Transmission-Sig"),
		CertURL:          header.Get("Paypal-Cert-Url"),
		AuthAlgo:         header.Get("Paypal-Auth-Algo"),
	}
}

// Encode renders the header set for the ParseWebhook signature argument.
func (s SignatureHeaders) Encode() string {
	b, _ := json.Marshal(s)
	return string(b)
}

type webhookEvent struct {
	ID         string          `json:"id"`
	EventType  string          `json:"event_type"`
	CreateTime time.Time       `json:"create_time"`
	Resource   json.RawMessage `json:"resource"`
}

type captureResource struct {
	ID       string       `json:"id"`
	Status   string       `json:"status"`
	CustomID string       `json:"custom_id"`
	Amount   amountObject `json:"amount"`
	Links    []struct {
		Href string `json:"href"`
		Rel  string `json:"rel"`
	} `json:"links"`
	StatusDetails struct {
		Reason string `json:"reason"`
	} `json:"status_details"`
	SupplementaryData struct {
		RelatedIDs struct {
			OrderID string `json:"order_id"`
		} `json:"related_ids"`
	} `json:"supplementary_data"`
}

// ParseWebhook verifies a delivery through PayPal's verify-webhook-signature
// API and normalizes the event. Unrecognized event types return (nil, nil).
func (p *PayPalProvider) ParseWebhook(ctx context.Context, payload []byte, signature string) (*provider.PaymentEvent, error) {
	var sig SignatureHeaders
	if err := json.Unmarshal([]byte(signature), &sig); err != nil || sig.TransmissionSig == "" {
		p.logger.Warn("PayPal webhook missing transmission headers")
		return nil, domainErrors.ErrInvalidSignature
	}

	if err := p.verifySignature(ctx, payload, sig); err != nil {
		return nil, err
	}

	var event webhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, &provider.ProviderError{
			Code:    "PARSE_ERROR",
			Message: "Failed to parse webhook event",
			Details: err.Error(),
		}
	}

	normalized := &provider.PaymentEvent{
		Provider:        provider.ProviderTypePayPal,
		ProviderEventID: event.ID,
		CreatedAt:       event.CreateTime,
	}

	switch event.EventType {
	case "CHECKOUT.ORDER.APPROVED":
		var order orderResponse
		if err := json.Unmarshal(event.Resource, &order); err != nil {
			return nil, &provider.ProviderError{
				Code:    "PARSE_ERROR",
				Message: "Failed to parse order resource",
				Details: err.Error(),
			}
		}
		normalized.Kind = provider.EventOrderApproved
		normalized.OrderRef = order.ID
		if len(order.PurchaseUnits) > 0 {
			unit := order.PurchaseUnits[0]
			normalized.BookingRef = unit.CustomID
			normalized.Amount = minorUnits(unit.Amount.Value)
			normalized.Currency = unit.Amount.CurrencyCode
		}

	case "PAYMENT.CAPTURE.COMPLETED":
		capture, err := parseCapture(event.Resource)
		if err != nil {
			return nil, err
		}
		normalized.Kind = provider.EventCaptureComplete
		fillFromCapture(normalized, capture)

	case "PAYMENT.CAPTURE.DENIED":
		capture, err := parseCapture(event.Resource)
		if err != nil {
			return nil, err
		}
		normalized.Kind = provider.EventCaptureDenied
		fillFromCapture(normalized, capture)
		normalized.FailureCode = capture.StatusDetails.Reason

	case "PAYMENT.CAPTURE.REFUNDED":
		// Resource is the refund object; the capture it belongs to hangs off
		// the "up" link.
		capture, err := parseCapture(event.Resource)
		if err != nil {
			return nil, err
		}
		normalized.Kind = provider.EventCaptureRefunded
		normalized.BookingRef = capture.CustomID
		normalized.Amount = minorUnits(capture.Amount.Value)
		normalized.Currency = capture.Amount.CurrencyCode
		normalized.CaptureRef = captureRefFromLinks(capture)

	default:
		p.logger.Debug("Unhandled PayPal event type",
			zap.String("type", event.EventType),
			zap.String("event_id", event.ID))
		return nil, nil
	}

	if normalized.BookingRef == "" && normalized.OrderRef == "" {
		return nil, domainErrors.ErrMissingCorrelation
	}

	return normalized, nil
}

// verifySignature re-checks the delivery with PayPal. The raw payload is
// embedded unparsed so verification sees exactly the bytes PayPal signed.
func (p *PayPalProvider) verifySignature(ctx context.Context, payload []byte, sig SignatureHeaders) error {
	body := map[string]interface{}{
		"transmission_id":   sig.TransmissionID,
		"transmission_time": sig.TransmissionTime,
		"transmission_sig":  sig.TransmissionSig,
		"cert_url":          sig.CertURL,
		"auth_algo":         sig.AuthAlgo,
		"webhook_id":        p.webhookID,
		"webhook_event":     json.RawMessage(payload),
	}

	var result struct {
		VerificationStatus string `json:"verification_status"`
	}
	if err := p.doRequest(ctx, http.MethodPost, "/v1/notifications/verify-webhook-signature", body, &result); err != nil {
		return err
	}

	if result.VerificationStatus != "SUCCESS" {
		p.logger.Warn("PayPal webhook signature verification failed",
			zap.String("status", result.VerificationStatus))
		return domainErrors.ErrInvalidSignature
	}
	return nil
}

func parseCapture(raw json.RawMessage) (*captureResource, error) {
	var capture captureResource
	if err := json.Unmarshal(raw, &capture); err != nil {
		return nil, &provider.ProviderError{
			Code:    "PARSE_ERROR",
			Message: "Failed to parse capture resource",
			Details: err.Error(),
		}
	}
	return &capture, nil
}

func fillFromCapture(ev *provider.PaymentEvent, capture *captureResource) {
	ev.BookingRef = capture.CustomID
	ev.CaptureRef = capture.ID
	ev.OrderRef = capture.SupplementaryData.RelatedIDs.OrderID
	ev.Amount = minorUnits(capture.Amount.Value)
	ev.Currency = capture.Amount.CurrencyCode
}

func captureRefFromLinks(refund *captureResource) string {
	for _, link := range refund.Links {
		if link.Rel == "up" {
			if idx := strings.LastIndex(link.Href, "/"); idx >= 0 {
				return link.Href[idx+1:]
			}
		}
	}
	return ""
}
