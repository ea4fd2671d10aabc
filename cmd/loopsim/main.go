package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/loopscope/loopsim/internal/aggregator"
	"github.com/loopscope/loopsim/internal/config"
	"github.com/loopscope/loopsim/internal/logger"
	"github.com/loopscope/loopsim/internal/marketdata"
	"github.com/loopscope/loopsim/internal/state"
	"github.com/loopscope/loopsim/internal/web"
)

// main is the entry point for the looping simulation service.
func main() {
	// --- 1. Initialization Phase ---
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
	}

	if err := config.LoadConfig(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Initialize(os.Getenv("LOG_LEVEL"))
	log.Info().Msg("Loopsim Service Starting...")

	policy, err := config.LoadPolicy()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load risk policy")
	}

	// Persistence is optional: without a configured database the service
	// runs stateless (no stored results, no idempotent replay).
	persistence := false
	if os.Getenv("DB_HOST") != "" {
		dbCfg := state.DBConfig{
			Host: os.Getenv("DB_HOST"), Port: mustAtoi(os.Getenv("DB_PORT"), 5432),
			User: os.Getenv("DB_USER"), Password: os.Getenv("DB_PASSWORD"),
			DBName: os.Getenv("DB_NAME"), SSLMode: os.Getenv("DB_SSLMODE"),
		}
		if err := state.InitDB(dbCfg); err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize database")
		}
		defer state.CloseDB()
		if err := state.EnsureSchema(); err != nil {
			log.Fatal().Err(err).Msg("Failed to ensure database schema")
		}
		persistence = true
	} else {
		log.Warn().Msg("DB_HOST not set: running stateless, simulations will not be persisted")
	}

	// --- 2. Collaborator Wiring ---
	var resolver marketdata.Resolver = marketdata.NewFixtureResolver()
	if config.MarketDataURL != "" {
		resolver = marketdata.NewHTTPResolver(config.MarketDataURL, 10*time.Second, config.SnapshotCacheTTL, marketdata.NewFixtureResolver())
		log.Info().Str("endpoint", config.MarketDataURL).Msg("Live market-data resolver enabled")
	}

	var aggClient *aggregator.Client
	if config.AggregatorURL != "" {
		aggClient = aggregator.NewClient(config.AggregatorURL, config.AggregatorTimeout, config.QuoteCacheTTL)
		log.Info().Str("endpoint", config.AggregatorURL).Msg("External quote aggregator enabled")
	}

	// --- 3. Serve ---
	server := web.NewServer(web.Config{
		Port:             config.WebPort,
		Resolver:         resolver,
		AggregatorClient: aggClient,
		Policy:           policy,
		PaymentPriceUSD:  config.PaymentPriceUSD,
		PaymentPayTo:     config.PaymentPayTo,
		PaymentNetwork:   config.PaymentNetwork,
		IdempotencyTTL:   config.IdempotencyTTL,
		Persistence:      persistence,
		RateLimitRPS:     config.RateLimitRPS,
		RateLimitBurst:   config.RateLimitBurst,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		log.Fatal().Err(err).Msg("Web server failed")
	case sig := <-stop:
		log.Info().Str("signal", sig.String()).Msg("Shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Stop(ctx); err != nil {
			log.Error().Err(err).Msg("Graceful shutdown failed")
		}
	}

	log.Info().Msg("Loopsim Service stopped.")
}

func mustAtoi(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
