package paypal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	domainErrors "github.com/companionly/payments-service/internal/domain/errors"
	"github.com/companionly/payments-service/internal/domain/provider"
)

func TestAmountConversion(t *testing.T) {
	t.Run("minor to major", func(t *testing.T) {
		assert.Equal(t, "150.00", majorUnits(15000))
		assert.Equal(t, "0.05", majorUnits(5))
		assert.Equal(t, "0.00", majorUnits(0))
	})

	t.Run("major to minor", func(t *testing.T) {
		assert.Equal(t, int64(15000), minorUnits("150.00"))
		assert.Equal(t, int64(5), minorUnits("0.05"))
		assert.Equal(t, int64(150), minorUnits("1.5"))
		assert.Equal(t, int64(0), minorUnits("not-a-number"))
	})

	t.Run("round trips", func(t *testing.T) {
		for _, minor := range []int64{1, 99, 100, 12345, 15000} {
			assert.Equal(t, minor, minorUnits(majorUnits(minor)))
		}
	})
}

func TestTokenSource(t *testing.T) {
	ctx := context.Background()

	t.Run("caches the token until it nears expiry", func(t *testing.T) {
		requests := 0
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requests++
			assert.Equal(t, "/v1/oauth2/token", r.URL.Path)
			assert.NotEmpty(t, r.Header.Get("Authorization"))
			json.NewEncoder(w).Encode(map[string]interface{}{
				"access_token": "token-1",
				"expires_in":   3600,
			})
		}))
		defer srv.Close()

		current := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		ts := newTokenSource("client", "secret", srv.URL, srv.Client())
		ts.now = func() time.Time { return current }

		token, err := ts.Token(ctx)
		assert.NoError(t, err)
		assert.Equal(t, "token-1", token)

		_, err = ts.Token(ctx)
		assert.NoError(t, err)
		assert.Equal(t, 1, requests)

		// past the slack boundary, the token must be refreshed
		current = current.Add(3600*time.Second - 30*time.Second)
		_, err = ts.Token(ctx)
		assert.NoError(t, err)
		assert.Equal(t, 2, requests)
	})

	t.Run("non-200 token response is an auth error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"invalid_client"}`))
		}))
		defer srv.Close()

		ts := newTokenSource("client", "wrong", srv.URL, srv.Client())

		_, err := ts.Token(ctx)

		var providerErr *provider.ProviderError
		assert.ErrorAs(t, err, &providerErr)
		assert.Equal(t, "AUTH_ERROR", providerErr.Code)
	})
}

// testProvider wires a PayPalProvider against a local test server standing in
// for the PayPal API.
func testProvider(srv *httptest.Server) *PayPalProvider {
	return &PayPalProvider{
		baseURL:   srv.URL,
		webhookID: "wh_test_1",
		client:    srv.Client(),
		tokens:    newTokenSource("client", "secret", srv.URL, srv.Client()),
		logger:    zap.NewNop(),
	}
}

func paypalAPIServer(t *testing.T, verificationStatus string, extra http.HandlerFunc) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/oauth2/token":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"access_token": "token-1",
				"expires_in":   3600,
			})
		case "/v1/notifications/verify-webhook-signature":
			var body map[string]interface{}
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "wh_test_1", body["webhook_id"])
			json.NewEncoder(w).Encode(map[string]string{
				"verification_status": verificationStatus,
			})
		default:
			if extra != nil {
				extra(w, r)
				return
			}
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func testSignature() string {
	return SignatureHeaders{
		TransmissionID:   "trans-1",
		TransmissionTime: "2026-01-01T00:00:00Z",
		TransmissionSig:  "sig-1",
		CertURL:          "https://api.paypal.com/cert.pem",
		AuthAlgo:         "SHA256withRSA",
	}.Encode()
}

func TestPayPalParseWebhook(t *testing.T) {
	ctx := context.Background()

	t.Run("capture completed normalizes with order correlation", func(t *testing.T) {
		srv := paypalAPIServer(t, "SUCCESS", nil)
		defer srv.Close()
		p := testProvider(srv)

		payload := []byte(`{
			"id": "WH-1",
			"event_type": "PAYMENT.CAPTURE.COMPLETED",
			"create_time": "2026-01-01T00:00:00Z",
			"resource": {
				"id": "CAP-1",
				"status": "COMPLETED",
				"custom_id": "9b8f6c1a-82e1-4a3e-9f0e-1f7a2b3c4d5e",
				"amount": {"currency_code": "USD", "value": "150.00"},
				"supplementary_data": {"related_ids": {"order_id": "ORD-1"}}
			}
		}`)

		ev, err := p.ParseWebhook(ctx, payload, testSignature())

		assert.NoError(t, err)
		assert.Equal(t, provider.ProviderTypePayPal, ev.Provider)
		assert.Equal(t, provider.EventCaptureComplete, ev.Kind)
		assert.Equal(t, "WH-1", ev.ProviderEventID)
		assert.Equal(t, "9b8f6c1a-82e1-4a3e-9f0e-1f7a2b3c4d5e", ev.BookingRef)
		assert.Equal(t, "ORD-1", ev.OrderRef)
		assert.Equal(t, "CAP-1", ev.CaptureRef)
		assert.Equal(t, int64(15000), ev.Amount)
		assert.Equal(t, "USD", ev.Currency)
	})

	t.Run("order approved normalizes from the purchase unit", func(t *testing.T) {
		srv := paypalAPIServer(t, "SUCCESS", nil)
		defer srv.Close()
		p := testProvider(srv)

		payload := []byte(`{
			"id": "WH-2",
			"event_type": "CHECKOUT.ORDER.APPROVED",
			"create_time": "2026-01-01T00:00:00Z",
			"resource": {
				"id": "ORD-1",
				"status": "APPROVED",
				"purchase_units": [{
					"custom_id": "9b8f6c1a-82e1-4a3e-9f0e-1f7a2b3c4d5e",
					"amount": {"currency_code": "USD", "value": "150.00"}
				}]
			}
		}`)

		ev, err := p.ParseWebhook(ctx, payload, testSignature())

		assert.NoError(t, err)
		assert.Equal(t, provider.EventOrderApproved, ev.Kind)
		assert.Equal(t, "ORD-1", ev.OrderRef)
		assert.Equal(t, int64(15000), ev.Amount)
	})

	t.Run("capture denied carries the reason", func(t *testing.T) {
		srv := paypalAPIServer(t, "SUCCESS", nil)
		defer srv.Close()
		p := testProvider(srv)

		payload := []byte(`{
			"id": "WH-3",
			"event_type": "PAYMENT.CAPTURE.DENIED",
			"create_time": "2026-01-01T00:00:00Z",
			"resource": {
				"id": "CAP-1",
				"status": "DECLINED",
				"custom_id": "9b8f6c1a-82e1-4a3e-9f0e-1f7a2b3c4d5e",
				"amount": {"currency_code": "USD", "value": "150.00"},
				"status_details": {"reason": "TRANSACTION_REFUSED"}
			}
		}`)

		ev, err := p.ParseWebhook(ctx, payload, testSignature())

		assert.NoError(t, err)
		assert.Equal(t, provider.EventCaptureDenied, ev.Kind)
		assert.Equal(t, "TRANSACTION_REFUSED", ev.FailureCode)
	})

	t.Run("capture refunded resolves the capture from the up link", func(t *testing.T) {
		srv := paypalAPIServer(t, "SUCCESS", nil)
		defer srv.Close()
		p := testProvider(srv)

		payload := []byte(`{
			"id": "WH-4",
			"event_type": "PAYMENT.CAPTURE.REFUNDED",
			"create_time": "2026-01-01T00:00:00Z",
			"resource": {
				"id": "REF-1",
				"status": "COMPLETED",
				"custom_id": "9b8f6c1a-82e1-4a3e-9f0e-1f7a2b3c4d5e",
				"amount": {"currency_code": "USD", "value": "150.00"},
				"links": [
					{"rel": "self", "href": "https://api.paypal.com/v2/payments/refunds/REF-1"},
					{"rel": "up", "href": "https://api.paypal.com/v2/payments/captures/CAP-1"}
				]
			}
		}`)

		ev, err := p.ParseWebhook(ctx, payload, testSignature())

		assert.NoError(t, err)
		assert.Equal(t, provider.EventCaptureRefunded, ev.Kind)
		assert.Equal(t, "CAP-1", ev.CaptureRef)
	})

	t.Run("failed verification is rejected", func(t *testing.T) {
		srv := paypalAPIServer(t, "FAILURE", nil)
		defer srv.Close()
		p := testProvider(srv)

		payload := []byte(`{"id": "WH-5", "event_type": "PAYMENT.CAPTURE.COMPLETED", "resource": {}}`)

		_, err := p.ParseWebhook(ctx, payload, testSignature())

		assert.ErrorIs(t, err, domainErrors.ErrInvalidSignature)
	})

	t.Run("missing transmission headers are rejected without an API call", func(t *testing.T) {
		p := testProvider(httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Error("no request expected")
		})))

		_, err := p.ParseWebhook(ctx, []byte(`{}`), "")

		assert.ErrorIs(t, err, domainErrors.ErrInvalidSignature)
	})

	t.Run("unrecognized event type is skipped", func(t *testing.T) {
		srv := paypalAPIServer(t, "SUCCESS", nil)
		defer srv.Close()
		p := testProvider(srv)

		payload := []byte(`{"id": "WH-6", "event_type": "BILLING.PLAN.CREATED", "resource": {}}`)

		ev, err := p.ParseWebhook(ctx, payload, testSignature())

		assert.NoError(t, err)
		assert.Nil(t, ev)
	})

	t.Run("event without correlation is rejected", func(t *testing.T) {
		srv := paypalAPIServer(t, "SUCCESS", nil)
		defer srv.Close()
		p := testProvider(srv)

		payload := []byte(`{
			"id": "WH-7",
			"event_type": "PAYMENT.CAPTURE.COMPLETED",
			"resource": {"status": "COMPLETED", "amount": {"currency_code": "USD", "value": "150.00"}}
		}`)

		_, err := p.ParseWebhook(ctx, payload, testSignature())

		assert.ErrorIs(t, err, domainErrors.ErrMissingCorrelation)
	})
}

func TestPayPalCreateRefund(t *testing.T) {
	ctx := context.Background()

	t.Run("resolves the capture when only the order is known", func(t *testing.T) {
		srv := paypalAPIServer(t, "SUCCESS", func(w http.ResponseWriter, r *http.Request) {
			switch {
			case r.Method == http.MethodGet && r.URL.Path == "/v2/checkout/orders/ORD-1":
				json.NewEncoder(w).Encode(map[string]interface{}{
					"id":     "ORD-1",
					"status": "COMPLETED",
					"purchase_units": []map[string]interface{}{{
						"payments": map[string]interface{}{
							"captures": []map[string]string{{"id": "CAP-1", "status": "COMPLETED"}},
						},
					}},
				})
			case r.Method == http.MethodPost && r.URL.Path == "/v2/payments/captures/CAP-1/refund":
				json.NewEncoder(w).Encode(map[string]string{"id": "REF-1", "status": "COMPLETED"})
			default:
				t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
				w.WriteHeader(http.StatusNotFound)
			}
		})
		defer srv.Close()
		p := testProvider(srv)

		resp, err := p.CreateRefund(ctx, &provider.RefundRequest{
			OrderRef: "ORD-1",
			Amount:   15000,
			Currency: "USD",
			Reason:   "admin refund",
		})

		assert.NoError(t, err)
		assert.Equal(t, "REF-1", resp.RefundRef)
		assert.Equal(t, "COMPLETED", resp.Status)
	})

	t.Run("order without a capture cannot be refunded", func(t *testing.T) {
		srv := paypalAPIServer(t, "SUCCESS", func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]interface{}{"id": "ORD-1", "status": "APPROVED"})
		})
		defer srv.Close()
		p := testProvider(srv)

		_, err := p.CreateRefund(ctx, &provider.RefundRequest{OrderRef: "ORD-1", Amount: 15000, Currency: "USD"})

		var providerErr *provider.ProviderError
		assert.ErrorAs(t, err, &providerErr)
		assert.Equal(t, "NO_CAPTURE", providerErr.Code)
	})
}
