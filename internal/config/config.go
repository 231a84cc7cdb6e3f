// Package config loads process configuration from the environment.
// Gateway credentials have no defaults; a missing secret disables the
// corresponding integration rather than running with a guessable one.
package config

import (
	"os"
	"strconv"
	"time"
)

// HostedWebhookConfig configures the card provider integration.
type HostedWebhookConfig struct {
	BaseURL       string
	APIKey        string
	IntegrationID int64
	IframeID      string
	HMACSecret    string
}

// HostedRedirectConfig configures the redirect provider integration.
type HostedRedirectConfig struct {
	CheckoutBaseURL string
	MerchantID      string
	Secret          string
	ReturnURL       string
	CancelURL       string
}

// WalletConfig configures the wallet handshake integration. The
// environment (sandbox vs. production) is derived from the key prefix
// by the adapter, not configured here.
type WalletConfig struct {
	APIKey            string
	ProductionBaseURL string
	SandboxBaseURL    string
}

// ReconcilerConfig bounds the polling loop.
type ReconcilerConfig struct {
	Interval    time.Duration
	MaxAttempts int
}

// Config is the process configuration.
type Config struct {
	ListenAddr     string
	LogLevel       string
	CacheRetention time.Duration
	Reconciler     ReconcilerConfig
	HostedWebhook  HostedWebhookConfig
	HostedRedirect HostedRedirectConfig
	Wallet         WalletConfig
	// ReviewCeilingMinor is the amount at or above which a paid order is
	// held for manual review instead of auto-confirming.
	ReviewCeilingMinor int64
}

// Load reads the environment, applying defaults for everything except
// credentials.
func Load() Config {
	return Config{
		ListenAddr:     getenv("CHECKOUT_LISTEN_ADDR", ":8080"),
		LogLevel:       getenv("CHECKOUT_LOG_LEVEL", "info"),
		CacheRetention: getenvDuration("CHECKOUT_CACHE_RETENTION", time.Hour),
		Reconciler: ReconcilerConfig{
			Interval:    getenvDuration("CHECKOUT_RECONCILE_INTERVAL", 3*time.Second),
			MaxAttempts: int(getenvInt("CHECKOUT_RECONCILE_MAX_ATTEMPTS", 10)),
		},
		HostedWebhook: HostedWebhookConfig{
			BaseURL:       getenv("CARD_GATEWAY_BASE_URL", "https://accept.paymobsolutions.com/api"),
			APIKey:        os.Getenv("CARD_GATEWAY_API_KEY"),
			IntegrationID: getenvInt("CARD_GATEWAY_INTEGRATION_ID", 0),
			IframeID:      os.Getenv("CARD_GATEWAY_IFRAME_ID"),
			HMACSecret:    os.Getenv("CARD_GATEWAY_HMAC_SECRET"),
		},
		HostedRedirect: HostedRedirectConfig{
			CheckoutBaseURL: getenv("REDIRECT_GATEWAY_BASE_URL", "https://checkout.kashier.io"),
			MerchantID:      os.Getenv("REDIRECT_GATEWAY_MERCHANT_ID"),
			Secret:          os.Getenv("REDIRECT_GATEWAY_SECRET"),
			ReturnURL:       getenv("REDIRECT_GATEWAY_RETURN_URL", "https://shop.example.com/payment/return"),
			CancelURL:       getenv("REDIRECT_GATEWAY_CANCEL_URL", "https://shop.example.com/payment/cancel"),
		},
		Wallet: WalletConfig{
			APIKey:            os.Getenv("WALLET_GATEWAY_API_KEY"),
			ProductionBaseURL: getenv("WALLET_GATEWAY_BASE_URL", "https://api.minepi.com/v2"),
			SandboxBaseURL:    getenv("WALLET_GATEWAY_SANDBOX_BASE_URL", "https://api.sandbox.minepi.com/v2"),
		},
		ReviewCeilingMinor: getenvInt("CHECKOUT_REVIEW_CEILING_MINOR", 50_000_00),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
