/*

Market snapshot resolution. A Resolver turns a MarketQuery into the
read-only parameter snapshot a simulation runs against. The fixture
resolver serves a static table; the HTTP resolver hits a live endpoint with
a TTL cache and falls back to fixtures when the source is unavailable.

*/

package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/loopscope/loopsim/internal/logger"
	"github.com/loopscope/loopsim/internal/types"
)

var (
	ErrMarketNotFound  = errors.New("market cannot be resolved")
	ErrInvalidSnapshot = errors.New("market snapshot failed validation")
)

var resolverLogger = logger.GetForComponent("market_resolver")

// Resolver resolves a lending market to its parameter snapshot.
type Resolver interface {
	Resolve(ctx context.Context, query types.MarketQuery) (types.MarketSnapshot, error)
}

// ValidateSnapshot enforces the snapshot invariants before a simulation may
// consume it.
func ValidateSnapshot(snapshot types.MarketSnapshot) error {
	if snapshot.LLTV.IsNil() || !snapshot.LLTV.IsPositive() || snapshot.LLTV.GTE(sdkmath.LegacyOneDec()) {
		return fmt.Errorf("%w: lltv must be in (0, 1)", ErrInvalidSnapshot)
	}
	if len(snapshot.PricesUSD) == 0 {
		return fmt.Errorf("%w: default price map is empty", ErrInvalidSnapshot)
	}
	for symbol, price := range snapshot.PricesUSD {
		if price.IsNil() || !price.IsPositive() {
			return fmt.Errorf("%w: price for %s must be positive", ErrInvalidSnapshot, symbol)
		}
	}
	if snapshot.CollateralToken.Symbol == "" || snapshot.DebtToken.Symbol == "" {
		return fmt.Errorf("%w: token metadata is incomplete", ErrInvalidSnapshot)
	}
	return nil
}

func queryKey(query types.MarketQuery) string {
	return strings.ToLower(query.Protocol) + "|" + strings.ToLower(query.Chain) + "|" +
		strings.ToUpper(query.CollateralSymbol) + "|" + strings.ToUpper(query.DebtSymbol)
}

// FixtureResolver resolves markets from the static fixture table.
type FixtureResolver struct{}

// NewFixtureResolver returns a resolver backed by the built-in fixtures.
func NewFixtureResolver() *FixtureResolver {
	return &FixtureResolver{}
}

// Resolve implements Resolver.
func (r *FixtureResolver) Resolve(_ context.Context, query types.MarketQuery) (types.MarketSnapshot, error) {
	snapshot, ok := fixtureTable[queryKey(query)]
	if !ok {
		return types.MarketSnapshot{}, fmt.Errorf("%w: %s/%s %s-%s", ErrMarketNotFound,
			query.Protocol, query.Chain, query.CollateralSymbol, query.DebtSymbol)
	}
	return snapshot, nil
}

type cachedSnapshot struct {
	snapshot  types.MarketSnapshot
	fetchedAt time.Time
}

// HTTPResolver fetches snapshots from a live endpoint, caching each market
// for a TTL and falling back to the fixture table when the source fails.
type HTTPResolver struct {
	endpoint   string
	httpClient *http.Client
	cacheTTL   time.Duration
	fallback   Resolver

	mu    sync.Mutex
	cache map[string]cachedSnapshot
	now   func() time.Time
}

// NewHTTPResolver creates a live resolver for the given endpoint.
func NewHTTPResolver(endpoint string, timeout, cacheTTL time.Duration, fallback Resolver) *HTTPResolver {
	return &HTTPResolver{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
		cacheTTL:   cacheTTL,
		fallback:   fallback,
		cache:      make(map[string]cachedSnapshot),
		now:        time.Now,
	}
}

// Resolve implements Resolver.
func (r *HTTPResolver) Resolve(ctx context.Context, query types.MarketQuery) (types.MarketSnapshot, error) {
	key := queryKey(query)

	r.mu.Lock()
	if entry, ok := r.cache[key]; ok && r.now().Sub(entry.fetchedAt) < r.cacheTTL {
		r.mu.Unlock()
		return entry.snapshot, nil
	}
	r.mu.Unlock()

	snapshot, err := r.fetch(ctx, query)
	if err != nil {
		resolverLogger.Warn().Err(err).Str("market", key).Msg("Live snapshot fetch failed, falling back to fixtures")
		if r.fallback != nil {
			return r.fallback.Resolve(ctx, query)
		}
		return types.MarketSnapshot{}, err
	}

	r.mu.Lock()
	r.cache[key] = cachedSnapshot{snapshot: snapshot, fetchedAt: r.now()}
	r.mu.Unlock()
	return snapshot, nil
}

func (r *HTTPResolver) fetch(ctx context.Context, query types.MarketQuery) (types.MarketSnapshot, error) {
	endpoint := fmt.Sprintf("%s/markets/%s/%s?collateral=%s&debt=%s",
		r.endpoint, query.Protocol, query.Chain, query.CollateralSymbol, query.DebtSymbol)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return types.MarketSnapshot{}, fmt.Errorf("%w: %w", ErrMarketNotFound, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return types.MarketSnapshot{}, fmt.Errorf("%w: %w", ErrMarketNotFound, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.MarketSnapshot{}, fmt.Errorf("%w: %w", ErrMarketNotFound, err)
	}
	if resp.StatusCode != http.StatusOK {
		return types.MarketSnapshot{}, fmt.Errorf("%w: status %d", ErrMarketNotFound, resp.StatusCode)
	}

	var snapshot types.MarketSnapshot
	if err := json.Unmarshal(body, &snapshot); err != nil {
		return types.MarketSnapshot{}, fmt.Errorf("%w: %w", ErrMarketNotFound, err)
	}
	if err := ValidateSnapshot(snapshot); err != nil {
		return types.MarketSnapshot{}, err
	}

	resolverLogger.Info().
		Str("protocol", snapshot.Protocol).
		Str("chain", snapshot.Chain).
		Str("lltv", snapshot.LLTV.String()).
		Msg("Live market snapshot resolved")
	return snapshot, nil
}
