package config

import (
	"errors"
	"time"

	"github.com/rs/zerolog/log"
)

// Application configuration loaded from environment variables. These are
// populated at startup by LoadConfig.
var (
	// WebPort is the port the HTTP API listens on.
	WebPort string

	// AggregatorURL is the base URL of the external swap-quote aggregator.
	// Empty disables the external-quote provider; inputs without an explicit
	// swap model are then rejected.
	AggregatorURL string
	// AggregatorTimeout bounds a single quote request.
	AggregatorTimeout time.Duration
	// QuoteCacheTTL bounds how long an aggregator quote may be reused.
	QuoteCacheTTL time.Duration

	// MarketDataURL is an optional live market-snapshot endpoint. Empty means
	// fixture-only resolution.
	MarketDataURL string
	// SnapshotCacheTTL bounds how long a live snapshot may be reused.
	SnapshotCacheTTL time.Duration

	// PaymentPriceUSD is the price of one simulation. Zero disables the
	// payment gate.
	PaymentPriceUSD float64
	// PaymentPayTo is the address payment terms advertise.
	PaymentPayTo string
	// PaymentNetwork names the settlement network in the payment terms.
	PaymentNetwork string

	// RateLimitRPS and RateLimitBurst configure the per-client token bucket.
	RateLimitRPS   float64
	RateLimitBurst int

	// IdempotencyTTL bounds how long a stored response can be replayed.
	IdempotencyTTL time.Duration
)

// LoadConfig loads configuration from environment variables and sets the
// global config vars. Variables with sensible defaults are optional.
func LoadConfig() error {
	log.Info().Msg("Loading application configuration from environment variables...")

	WebPort = getEnvOr("WEB_PORT", "8080")

	AggregatorURL = getEnvOr("AGGREGATOR_URL", "")
	var err error
	AggregatorTimeout, err = getEnvAsDuration("AGGREGATOR_TIMEOUT", 10*time.Second)
	if err != nil {
		return err
	}
	QuoteCacheTTL, err = getEnvAsDuration("QUOTE_CACHE_TTL", 15*time.Second)
	if err != nil {
		return err
	}

	MarketDataURL = getEnvOr("MARKET_DATA_URL", "")
	SnapshotCacheTTL, err = getEnvAsDuration("SNAPSHOT_CACHE_TTL", 60*time.Second)
	if err != nil {
		return err
	}

	PaymentPriceUSD, err = getEnvAsFloat64("PAYMENT_PRICE_USD", 0)
	if err != nil {
		return err
	}
	PaymentPayTo = getEnvOr("PAYMENT_PAY_TO", "")
	PaymentNetwork = getEnvOr("PAYMENT_NETWORK", "base")
	if PaymentPriceUSD > 0 && PaymentPayTo == "" {
		return errors.New("PAYMENT_PAY_TO is required when PAYMENT_PRICE_USD is set")
	}

	RateLimitRPS, err = getEnvAsFloat64("RATE_LIMIT_RPS", 5)
	if err != nil {
		return err
	}
	RateLimitBurst, err = getEnvAsInt("RATE_LIMIT_BURST", 10)
	if err != nil {
		return err
	}

	IdempotencyTTL, err = getEnvAsDuration("IDEMPOTENCY_TTL", 10*time.Minute)
	if err != nil {
		return err
	}

	log.Debug().
		Str("WebPort", WebPort).
		Str("AggregatorURL", AggregatorURL).
		Float64("PaymentPriceUSD", PaymentPriceUSD).
		Msg("Configuration loaded successfully.")

	return nil
}
