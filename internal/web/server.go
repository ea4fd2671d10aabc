package web

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"runtime"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/loopscope/loopsim/internal/aggregator"
	"github.com/loopscope/loopsim/internal/engine"
	"github.com/loopscope/loopsim/internal/logger"
	"github.com/loopscope/loopsim/internal/marketdata"
	"github.com/loopscope/loopsim/internal/state"
	"github.com/loopscope/loopsim/internal/types"
)

var webLogger = logger.GetForComponent("web_server")

const idempotencyHeader = "Idempotency-Key"

// Server handles HTTP requests for the simulation API
type Server struct {
	router          *mux.Router
	httpServer      *http.Server
	port            string
	resolver        marketdata.Resolver
	aggClient       *aggregator.Client
	policy          types.RiskPolicy
	paymentPriceUSD float64
	paymentPayTo    string
	paymentNetwork  string
	idempotencyTTL  time.Duration
	persistence     bool
	limiter         *clientLimiter
}

// Config holds everything the server needs; the engine itself is stateless
// and is invoked per request.
type Config struct {
	Port             string
	Resolver         marketdata.Resolver
	AggregatorClient *aggregator.Client // nil disables the external-quote provider
	Policy           types.RiskPolicy
	PaymentPriceUSD  float64
	PaymentPayTo     string
	PaymentNetwork   string
	IdempotencyTTL   time.Duration
	Persistence      bool // whether the postgres state store is available
	RateLimitRPS     float64
	RateLimitBurst   int
}

// NewServer creates a new web server instance
func NewServer(cfg Config) *Server {
	port := cfg.Port
	if port == "" {
		port = "8080"
	}

	server := &Server{
		router:          mux.NewRouter(),
		port:            port,
		resolver:        cfg.Resolver,
		aggClient:       cfg.AggregatorClient,
		policy:          cfg.Policy,
		paymentPriceUSD: cfg.PaymentPriceUSD,
		paymentPayTo:    cfg.PaymentPayTo,
		paymentNetwork:  cfg.PaymentNetwork,
		idempotencyTTL:  cfg.IdempotencyTTL,
		persistence:     cfg.Persistence,
	}
	if cfg.RateLimitRPS > 0 {
		server.limiter = newClientLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	}

	server.setupRoutes()
	return server
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/markets", s.handleMarkets).Methods("GET")
	api.HandleFunc("/simulations/{id}", s.handleGetSimulation).Methods("GET")
	// OPTIONS is routed so the CORS middleware can answer preflights.
	api.Handle("/simulate", s.paymentMiddleware(http.HandlerFunc(s.handleSimulate))).Methods("POST", "OPTIONS")

	s.router.Use(s.corsMiddleware)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.metricsMiddleware)
	s.router.Use(s.rateLimitMiddleware)
}

// Start starts the web server
func (s *Server) Start() error {
	webLogger.Info().Str("port", s.port).Msg("Starting web server")

	s.httpServer = &http.Server{
		Addr:         ":" + s.port,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s.httpServer.ListenAndServe()
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// handleSimulate runs one payment-gated, idempotent simulation.
func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "Failed to read request body")
		return
	}
	digest := sha256.Sum256(body)
	requestHash := hex.EncodeToString(digest[:])

	var req SimulateRequest
	if err := json.Unmarshal(body, &req); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "Request body is not valid JSON")
		return
	}

	if fieldErrors := validateSimulateRequest(req); len(fieldErrors) > 0 {
		s.writeJSONResponse(w, http.StatusBadRequest, map[string]interface{}{
			"error":   true,
			"message": "Request validation failed",
			"fields":  fieldErrors,
		})
		return
	}

	idempotencyKey := r.Header.Get(idempotencyHeader)
	if idempotencyKey != "" && s.persistence {
		if cached, err := state.GetByIdempotencyKey(idempotencyKey, requestHash); err == nil {
			w.Header().Set("Idempotent-Replay", "true")
			s.writeJSONResponse(w, http.StatusOK, cached)
			return
		}
	}

	snapshot, err := s.resolver.Resolve(r.Context(), req.Market)
	if err != nil {
		webLogger.Warn().Err(err).Msg("Market resolution failed")
		s.writeErrorResponse(w, http.StatusNotFound, "Market not found")
		return
	}

	input := req.Simulation
	if input.CollateralToken.Symbol == "" {
		input.CollateralToken = snapshot.CollateralToken
	}
	if input.DebtToken.Symbol == "" {
		input.DebtToken = snapshot.DebtToken
	}

	prices, err := engine.MergePrices(snapshot, input.PriceOverrides)
	if err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	provider, err := s.buildProvider(input, prices)
	if err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := engine.Simulate(r.Context(), input, engine.SimulateDeps{
		Market:   snapshot,
		Prices:   prices,
		Provider: provider,
		Policy:   s.policy,
	})
	if err != nil {
		s.writeSimulationError(w, err)
		return
	}

	if payment := paymentFromContext(r.Context()); payment != nil {
		result.Receipt.Payment = payment
	}

	if s.persistence {
		if err := state.SaveSimulation(result, idempotencyKey, requestHash, time.Now().Add(s.idempotencyTTL)); err != nil {
			webLogger.Warn().Err(err).Str("runId", result.RunID).Msg("Failed to persist simulation")
		}
	}

	s.writeJSONResponse(w, http.StatusOK, result)
}

// buildProvider selects the swap provider per request: an explicit pool spec
// forces deterministic AMM math, otherwise the aggregator is used.
func (s *Server) buildProvider(input types.SimulationInput, prices map[string]sdkmath.LegacyDec) (engine.SwapProvider, error) {
	debtPrice, err := engine.PriceFor(prices, input.DebtToken.Symbol)
	if err != nil {
		return nil, err
	}

	if input.SwapModel != nil {
		return engine.NewPoolSwapProvider(*input.SwapModel, debtPrice)
	}
	if s.aggClient == nil {
		return nil, errors.New("no swap_model supplied and no aggregator is configured")
	}
	collateralPrice, err := engine.PriceFor(prices, input.CollateralToken.Symbol)
	if err != nil {
		return nil, err
	}
	return aggregator.NewSwapProvider(s.aggClient, input.CollateralToken, input.DebtToken, collateralPrice)
}

// writeSimulationError maps engine failures onto the HTTP error taxonomy.
func (s *Server) writeSimulationError(w http.ResponseWriter, err error) {
	var policyErr *engine.PolicyError
	switch {
	case errors.As(err, &policyErr):
		s.writeJSONResponse(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"error":   true,
			"code":    "policy_violation",
			"reasons": policyErr.Reasons,
		})
	case errors.Is(err, engine.ErrInvalidInput), errors.Is(err, engine.ErrMissingPrice):
		s.writeErrorResponse(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, engine.ErrProviderFailure), errors.Is(err, engine.ErrInvalidPoolState):
		s.writeErrorResponse(w, http.StatusBadGateway, err.Error())
	default:
		webLogger.Error().Err(err).Msg("Simulation failed")
		s.writeErrorResponse(w, http.StatusInternalServerError, "Simulation failed")
	}
}

// handleGetSimulation returns a persisted simulation by run ID.
func (s *Server) handleGetSimulation(w http.ResponseWriter, r *http.Request) {
	if !s.persistence {
		s.writeErrorResponse(w, http.StatusServiceUnavailable, "Persistence is not configured")
		return
	}

	runID := mux.Vars(r)["id"]
	result, err := state.GetSimulationByID(runID)
	if errors.Is(err, state.ErrNotFound) {
		s.writeErrorResponse(w, http.StatusNotFound, "Simulation not found")
		return
	}
	if err != nil {
		webLogger.Error().Err(err).Str("runId", runID).Msg("Failed to load simulation")
		s.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve simulation")
		return
	}

	s.writeJSONResponse(w, http.StatusOK, result)
}

// handleMarkets returns the advertised markets.
func (s *Server) handleMarkets(w http.ResponseWriter, r *http.Request) {
	markets := marketdata.Fixtures()
	s.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"markets": markets,
		"count":   len(markets),
	})
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	dbHealthy := true
	if s.persistence {
		if err := state.TestDBConnection(); err != nil {
			dbHealthy = false
		}
	}

	overallStatus := "OK"
	statusCode := http.StatusOK
	if !dbHealthy {
		overallStatus = "DEGRADED"
		statusCode = http.StatusServiceUnavailable
	}

	s.writeJSONResponse(w, statusCode, map[string]interface{}{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"system": map[string]interface{}{
			"version":          runtime.Version(),
			"goroutines_count": runtime.NumGoroutine(),
			"alloc_bytes":      memStats.Alloc,
			"gc_cycles":        memStats.NumGC,
		},
		"component": map[string]interface{}{
			"name":           "loopsim-simulation-service",
			"engine_version": engine.EngineVersion,
		},
		"service_status": map[string]interface{}{
			"database_configured": s.persistence,
			"database_healthy":    dbHealthy,
			"payment_gated":       s.paymentPriceUSD > 0,
			"aggregator_enabled":  s.aggClient != nil,
		},
	})
}

// writeJSONResponse writes a JSON response
func (s *Server) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		webLogger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeErrorResponse writes an error response
func (s *Server) writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	s.writeJSONResponse(w, statusCode, map[string]interface{}{
		"error":     true,
		"message":   message,
		"timestamp": time.Now().UTC(),
	})
}
