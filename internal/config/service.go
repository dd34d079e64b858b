package config

import (
	"fmt"

	"github.com/shopspring/decimal"
)

type ServiceConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
	ClientURL   string `yaml:"client_url"`

	StripeSecretKey     string `yaml:"stripe_secret_key"`
	StripeWebhookSecret string `yaml:"stripe_webhook_secret"`

	PayPal PayPalConfig `yaml:"paypal"`

	// PlatformFeePercent is the marketplace commission as a decimal string,
	// e.g. "10" or "12.5". Parsed once at bootstrap; a missing or
	// out-of-range value must fail startup, not individual captures.
	PlatformFeePercent string `yaml:"platform_fee_percent"`

	OnboardingRefreshURL string `yaml:"onboarding_refresh_url"`
	OnboardingReturnURL  string `yaml:"onboarding_return_url"`
}

type PayPalConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	WebhookID    string `yaml:"webhook_id"`
	Sandbox      bool   `yaml:"sandbox"`
}

// FeePercent parses the configured platform fee.
func (c *ServiceConfig) FeePercent() (decimal.Decimal, error) {
	if c.PlatformFeePercent == "" {
		return decimal.Zero, fmt.Errorf("platform_fee_percent is not configured")
	}
	fee, err := decimal.NewFromString(c.PlatformFeePercent)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid platform_fee_percent %q: %w", c.PlatformFeePercent, err)
	}
	return fee, nil
}
