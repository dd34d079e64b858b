package provider

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/companionly/payments-service/internal/config"
	"github.com/companionly/payments-service/internal/domain/provider"
	paypalProvider "github.com/companionly/payments-service/internal/infrastructure/provider/paypal"
	stripeProvider "github.com/companionly/payments-service/internal/infrastructure/provider/stripe"
)

// Factory creates payment providers based on the provider type
type Factory struct {
	config *config.Config
	logger *zap.Logger
}

// NewFactory creates a new provider factory
func NewFactory(config *config.Config, logger *zap.Logger) *Factory {
	return &Factory{
		config: config,
		logger: logger,
	}
}

// GetProvider returns a payment provider based on the provider type
func (f *Factory) GetProvider(providerType provider.ProviderType) (provider.PaymentProvider, error) {
	switch providerType {
	case provider.ProviderTypeStripe:
		return f.createStripeProvider()
	case provider.ProviderTypePayPal:
		return f.createPayPalProvider()
	default:
		return nil, fmt.Errorf("unsupported provider type: %s", providerType)
	}
}

// Providers returns every configured provider keyed by type. Both providers
// must be configured; webhooks from an unconfigured provider would otherwise
// be silently dropped.
func (f *Factory) Providers() (map[provider.ProviderType]provider.PaymentProvider, error) {
	providers := make(map[provider.ProviderType]provider.PaymentProvider)
	for _, pt := range []provider.ProviderType{provider.ProviderTypeStripe, provider.ProviderTypePayPal} {
		client, err := f.GetProvider(pt)
		if err != nil {
			return nil, err
		}
		providers[pt] = client
	}
	return providers, nil
}

// createStripeProvider creates a new Stripe provider instance
func (f *Factory) createStripeProvider() (provider.PaymentProvider, error) {
	if f.config.Service.StripeSecretKey == "" {
		return nil, fmt.Errorf("Stripe secret key not configured")
	}
	if f.config.Service.StripeWebhookSecret == "" {
		return nil, fmt.Errorf("Stripe webhook secret not configured")
	}

	return stripeProvider.NewStripeProvider(
		f.config.Service.StripeWebhookSecret,
		f.logger,
	), nil
}

// createPayPalProvider creates a new PayPal provider instance
func (f *Factory) createPayPalProvider() (provider.PaymentProvider, error) {
	pp := f.config.Service.PayPal
	if pp.ClientID == "" || pp.ClientSecret == "" {
		return nil, fmt.Errorf("PayPal credentials not configured")
	}

	return paypalProvider.NewPayPalProvider(
		pp.ClientID,
		pp.ClientSecret,
		pp.WebhookID,
		pp.Sandbox,
		f.logger,
	), nil
}
