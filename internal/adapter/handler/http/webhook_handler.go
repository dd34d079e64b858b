package http

import (
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	domainErrors "github.com/companionly/payments-service/internal/domain/errors"
	"github.com/companionly/payments-service/internal/domain/provider"
	paypalProvider "github.com/companionly/payments-service/internal/infrastructure/provider/paypal"
	"github.com/companionly/payments-service/internal/usecase"
)

// WebhookHandler receives provider webhook deliveries. Response contract:
// 200 {"received": true} for anything that should stop provider retries
// (applied, duplicate, invalid transition, unknown event type), 400 for a
// bad signature, 500 only for transient local failures the provider should
// redeliver.
type WebhookHandler struct {
	processor *usecase.WebhookProcessor
	logger    *zap.Logger
}

func NewWebhookHandler(processor *usecase.WebhookProcessor, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		processor: processor,
		logger:    logger,
	}
}

// HandleStripe processes a Stripe webhook delivery.
func (h *WebhookHandler) HandleStripe(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		h.logger.Error("Error reading request body", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Error reading request body"})
	}

	sig := c.Request().Header.Get("Stripe-Signature")
	return h.process(c, provider.ProviderTypeStripe, body, sig)
}

// HandlePayPal processes a PayPal webhook delivery.
func (h *WebhookHandler) HandlePayPal(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		h.logger.Error("Error reading request body", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Error reading request body"})
	}

	sig := paypalProvider.SignatureFromRequest(c.Request().Header).Encode()
	return h.process(c, provider.ProviderTypePayPal, body, sig)
}

func (h *WebhookHandler) process(c echo.Context, providerType provider.ProviderType, body []byte, signature string) error {
	outcome, err := h.processor.Process(c.Request().Context(), providerType, body, signature)
	if err != nil {
		if errors.Is(err, domainErrors.ErrInvalidSignature) {
			// Never transient, so never retried.
			return c.JSON(http.StatusBadRequest, echo.Map{
				"error": "Webhook signature verification failed",
			})
		}
		h.logger.Error("Webhook processing failed",
			zap.String("provider", string(providerType)),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error": "Webhook processing failed",
		})
	}

	h.logger.Info("Webhook acknowledged",
		zap.String("provider", string(providerType)),
		zap.String("outcome", string(outcome)))

	return c.JSON(http.StatusOK, echo.Map{"received": true})
}
