package paypal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/companionly/payments-service/internal/domain/provider"
)

const (
	sandboxBaseURL = "https://api-m.sandbox.paypal.com"
	liveBaseURL    = "https://api-m.paypal.com"
)

// PayPalProvider implements the PaymentProvider interface against PayPal's
// REST API. There is no official Go SDK, so this is a direct HTTP client
// with a cached OAuth2 token.
type PayPalProvider struct {
	baseURL   string
	webhookID string
	client    *http.Client
	tokens    *tokenSource
	logger    *zap.Logger
}

// NewPayPalProvider creates a new PayPal provider. Sandbox mode switches the
// API host, nothing else.
func NewPayPalProvider(clientID, clientSecret, webhookID string, sandbox bool, logger *zap.Logger) *PayPalProvider {
	baseURL := liveBaseURL
	if sandbox {
		baseURL = sandboxBaseURL
	}
	client := &http.Client{Timeout: 30 * time.Second}
	return &PayPalProvider{
		baseURL:   baseURL,
		webhookID: webhookID,
		client:    client,
		tokens:    newTokenSource(clientID, clientSecret, baseURL, client),
		logger:    logger,
	}
}

// Name returns the provider type
func (p *PayPalProvider) Name() provider.ProviderType {
	return provider.ProviderTypePayPal
}

// doRequest performs an authenticated JSON request and decodes the response
// into out. Non-2xx responses become ProviderError with PayPal's own error
// name as the code.
func (p *PayPalProvider) doRequest(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return &provider.ProviderError{
				Code:    "MARSHAL_ERROR",
				Message: "Failed to prepare request",
				Details: err.Error(),
			}
		}
		reqBody = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reqBody)
	if err != nil {
		return &provider.ProviderError{
			Code:    "REQUEST_ERROR",
			Message: "Failed to create request",
			Details: err.Error(),
		}
	}

	token, err := p.tokens.Token(ctx)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Error("PayPal API request failed",
			zap.String("path", path),
			zap.Error(err))
		return &provider.ProviderError{
			Code:    "API_ERROR",
			Message: "PayPal API request failed",
			Details: err.Error(),
		}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &provider.ProviderError{
			Code:    "RESPONSE_ERROR",
			Message: "Failed to read response",
			Details: err.Error(),
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp struct {
			Name    string `json:"name"`
			Message string `json:"message"`
		}
		json.Unmarshal(respBody, &errResp)

		p.logger.Error("PayPal API returned an error",
			zap.String("path", path),
			zap.Int("status_code", resp.StatusCode),
			zap.String("response", string(respBody)))

		code := errResp.Name
		if code == "" {
			code = fmt.Sprintf("HTTP_%d", resp.StatusCode)
		}
		return &provider.ProviderError{
			Code:    code,
			Message: errResp.Message,
			Details: string(respBody),
		}
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return &provider.ProviderError{
				Code:    "PARSE_ERROR",
				Message: "Failed to parse response",
				Details: err.Error(),
			}
		}
	}
	return nil
}

type amountObject struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type orderResponse struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	PurchaseUnits []struct {
		CustomID string       `json:"custom_id"`
		Amount   amountObject `json:"amount"`
		Payments struct {
			Captures []struct {
				ID     string `json:"id"`
				Status string `json:"status"`
			} `json:"captures"`
		} `json:"payments"`
	} `json:"purchase_units"`
	Links []struct {
		Href string `json:"href"`
		Rel  string `json:"rel"`
	} `json:"links"`
}

// CreateCapture creates a PayPal order carrying the booking correlation in
// custom_id and the settlement split as a platform fee.
func (p *PayPalProvider) CreateCapture(ctx context.Context, req *provider.CreateCaptureRequest) (*provider.CreateCaptureResponse, error) {
	unit := map[string]interface{}{
		"custom_id": req.BookingID,
		"amount": amountObject{
			CurrencyCode: req.Currency,
			Value:        majorUnits(req.Amount),
		},
	}
	if req.Description != "" {
		unit["description"] = req.Description
	}
	if req.PayoutDestination != "" {
		unit["payment_instruction"] = map[string]interface{}{
			"disbursement_mode": "INSTANT",
			"platform_fees": []map[string]interface{}{
				{
					"amount": amountObject{
						CurrencyCode: req.Currency,
						Value:        majorUnits(req.PlatformFeeAmount),
					},
				},
			},
		}
	}

	body := map[string]interface{}{
		"intent":         "CAPTURE",
		"purchase_units": []interface{}{unit},
	}

	var order orderResponse
	if err := p.doRequest(ctx, http.MethodPost, "/v2/checkout/orders", body, &order); err != nil {
		return nil, err
	}

	resp := &provider.CreateCaptureResponse{
		OrderRef: order.ID,
		Status:   order.Status,
	}
	for _, link := range order.Links {
		if link.Rel == "approve" {
			resp.ApprovalURL = link.Href
			break
		}
	}

	p.logger.Info("PayPal order created",
		zap.String("booking_id", req.BookingID),
		zap.String("order_id", order.ID),
		zap.Int64("amount", req.Amount))

	return resp, nil
}

// RetrieveOrder fetches an order and reports its capture, if any.
func (p *PayPalProvider) RetrieveOrder(ctx context.Context, orderRef string) (*provider.Order, error) {
	var order orderResponse
	if err := p.doRequest(ctx, http.MethodGet, "/v2/checkout/orders/"+orderRef, nil, &order); err != nil {
		return nil, err
	}

	result := &provider.Order{
		OrderRef: order.ID,
		Status:   order.Status,
	}
	if len(order.PurchaseUnits) > 0 {
		captures := order.PurchaseUnits[0].Payments.Captures
		if len(captures) > 0 {
			result.CaptureRef = captures[0].ID
		}
	}
	return result, nil
}

// CreateRefund refunds a capture. PayPal refunds address the capture object,
// so a request that only carries the order reference is resolved to its
// capture first.
func (p *PayPalProvider) CreateRefund(ctx context.Context, req *provider.RefundRequest) (*provider.RefundResponse, error) {
	captureRef := req.CaptureRef
	if captureRef == "" {
		order, err := p.RetrieveOrder(ctx, req.OrderRef)
		if err != nil {
			return nil, err
		}
		if order.CaptureRef == "" {
			return nil, &provider.ProviderError{
				Code:    "NO_CAPTURE",
				Message: "PayPal order has no capture to refund",
				Details: req.OrderRef,
			}
		}
		captureRef = order.CaptureRef
	}

	body := map[string]interface{}{
		"amount": amountObject{
			CurrencyCode: req.Currency,
			Value:        majorUnits(req.Amount),
		},
	}
	if req.Reason != "" {
		body["note_to_payer"] = req.Reason
	}

	var result struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := p.doRequest(ctx, http.MethodPost, "/v2/payments/captures/"+captureRef+"/refund", body, &result); err != nil {
		return nil, err
	}

	p.logger.Info("PayPal refund created",
		zap.String("capture_id", captureRef),
		zap.String("refund_id", result.ID))

	return &provider.RefundResponse{
		RefundRef: result.ID,
		Status:    result.Status,
	}, nil
}

// RetrieveAccount is not part of the PayPal integration; companion payout
// onboarding runs through the card processor only.
func (p *PayPalProvider) RetrieveAccount(ctx context.Context, accountRef string) (*provider.PayoutAccount, error) {
	return nil, &provider.ProviderError{
		Code:    "NOT_SUPPORTED",
		Message: "PayPal payout accounts are not supported",
	}
}

// majorUnits renders integer minor units as PayPal's decimal string form.
func majorUnits(minor int64) string {
	return decimal.NewFromInt(minor).Div(decimal.NewFromInt(100)).StringFixed(2)
}

// minorUnits parses PayPal's decimal string amount into integer minor units.
func minorUnits(value string) int64 {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return 0
	}
	return d.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
