/*

HTTP client for an external swap-quote aggregator, with a short-lived quote
cache. The aggregator quotes in smallest integer units of each token; the
provider adapter in provider.go does the human-unit scaling.

*/

package aggregator

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"context"

	sdkmath "cosmossdk.io/math"

	"github.com/loopscope/loopsim/internal/logger"
)

var (
	ErrQuoteFailed = errors.New("aggregator quote failed")
	ErrBadResponse = errors.New("aggregator returned a malformed response")
)

var aggLogger = logger.GetForComponent("aggregator_client")

// QuoteResponse is the aggregator's reply. Amounts are smallest-unit
// integer strings.
type QuoteResponse struct {
	InToken   string          `json:"in_token"`
	OutToken  string          `json:"out_token"`
	InAmount  string          `json:"in_amount"`
	OutAmount string          `json:"out_amount"`
	Route     json.RawMessage `json:"route,omitempty"`
}

type cachedQuote struct {
	response  QuoteResponse
	raw       []byte
	fetchedAt time.Time
}

// Client queries the aggregator's /quote endpoint and caches replies for a
// short TTL. Safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	cacheTTL   time.Duration

	mu    sync.Mutex
	cache map[string]cachedQuote
	now   func() time.Time
}

// NewClient creates a quote client for the given aggregator base URL.
func NewClient(baseURL string, timeout, cacheTTL time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		cacheTTL:   cacheTTL,
		cache:      make(map[string]cachedQuote),
		now:        time.Now,
	}
}

// Quote fetches (or replays from cache) a quote for swapping amount base
// units of inToken into outToken. It returns the parsed response and the
// raw body for provenance.
func (c *Client) Quote(ctx context.Context, inToken, outToken string, amount sdkmath.Int) (QuoteResponse, []byte, error) {
	if !amount.IsPositive() {
		return QuoteResponse{}, nil, fmt.Errorf("%w: amount must be positive, got %s", ErrQuoteFailed, amount)
	}

	cacheKey := inToken + "|" + outToken + "|" + amount.String()
	c.mu.Lock()
	if entry, ok := c.cache[cacheKey]; ok && c.now().Sub(entry.fetchedAt) < c.cacheTTL {
		c.mu.Unlock()
		aggLogger.Debug().Str("key", cacheKey).Msg("Quote served from cache")
		return entry.response, entry.raw, nil
	}
	c.mu.Unlock()

	query := url.Values{}
	query.Set("inToken", inToken)
	query.Set("outToken", outToken)
	query.Set("amount", amount.String())
	endpoint := c.baseURL + "/quote?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return QuoteResponse{}, nil, fmt.Errorf("%w: %w", ErrQuoteFailed, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		aggLogger.Error().Err(err).Str("endpoint", endpoint).Msg("Quote request failed")
		return QuoteResponse{}, nil, fmt.Errorf("%w: %w", ErrQuoteFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return QuoteResponse{}, nil, fmt.Errorf("%w: %w", ErrQuoteFailed, err)
	}
	if resp.StatusCode != http.StatusOK {
		aggLogger.Error().Int("status", resp.StatusCode).Str("body", string(body)).Msg("Aggregator returned an error")
		return QuoteResponse{}, nil, fmt.Errorf("%w: status %d", ErrQuoteFailed, resp.StatusCode)
	}

	var parsed QuoteResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return QuoteResponse{}, nil, fmt.Errorf("%w: %w", ErrBadResponse, err)
	}
	if parsed.OutAmount == "" {
		return QuoteResponse{}, nil, fmt.Errorf("%w: missing out_amount", ErrBadResponse)
	}

	c.mu.Lock()
	c.cache[cacheKey] = cachedQuote{response: parsed, raw: body, fetchedAt: c.now()}
	c.mu.Unlock()

	aggLogger.Info().
		Str("inToken", inToken).
		Str("outToken", outToken).
		Str("amountIn", amount.String()).
		Str("amountOut", parsed.OutAmount).
		Msg("Quote fetched")

	return parsed, body, nil
}
