package aggregator

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quoteServer(t *testing.T, calls *int, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++
		assert.Equal(t, "/quote", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
}

func TestClient_Quote(t *testing.T) {
	calls := 0
	server := quoteServer(t, &calls, `{
		"in_token": "USDC",
		"out_token": "WETH",
		"in_amount": "1395348837",
		"out_amount": "695533015300000000",
		"route": [{"pool": "uni-v3-weth-usdc-005"}]
	}`)
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second, time.Minute)
	response, raw, err := client.Quote(context.Background(), "USDC", "WETH", sdkmath.NewInt(1395348837))
	require.NoError(t, err)
	assert.Equal(t, "695533015300000000", response.OutAmount)
	assert.NotEmpty(t, response.Route)
	assert.NotEmpty(t, raw)
	assert.Equal(t, 1, calls)
}

func TestClient_QuoteCached(t *testing.T) {
	calls := 0
	server := quoteServer(t, &calls, `{"out_amount": "100"}`)
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second, time.Minute)
	for i := 0; i < 3; i++ {
		_, _, err := client.Quote(context.Background(), "USDC", "WETH", sdkmath.NewInt(42))
		require.NoError(t, err)
	}
	assert.Equal(t, 1, calls, "repeat quotes within the TTL must not refetch")

	// A different amount is a different cache key.
	_, _, err := client.Quote(context.Background(), "USDC", "WETH", sdkmath.NewInt(43))
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestClient_QuoteErrors(t *testing.T) {
	client := NewClient("http://localhost:0", time.Second, time.Minute)
	_, _, err := client.Quote(context.Background(), "USDC", "WETH", sdkmath.NewInt(0))
	require.ErrorIs(t, err, ErrQuoteFailed)

	calls := 0
	badStatus := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer badStatus.Close()
	client = NewClient(badStatus.URL, time.Second, time.Minute)
	_, _, err = client.Quote(context.Background(), "USDC", "WETH", sdkmath.NewInt(1))
	require.ErrorIs(t, err, ErrQuoteFailed)

	missingOut := quoteServer(t, &calls, `{"in_amount": "1"}`)
	defer missingOut.Close()
	client = NewClient(missingOut.URL, time.Second, time.Minute)
	_, _, err = client.Quote(context.Background(), "USDC", "WETH", sdkmath.NewInt(1))
	require.ErrorIs(t, err, ErrBadResponse)
}
