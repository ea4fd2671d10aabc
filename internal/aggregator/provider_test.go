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

	"github.com/loopscope/loopsim/internal/engine"
	"github.com/loopscope/loopsim/internal/types"
)

var (
	wethToken = types.Token{Symbol: "WETH", Decimals: 18}
	usdcToken = types.Token{Symbol: "USDC", Decimals: 6}
)

func TestSwapProvider_Quote(t *testing.T) {
	var gotInToken, gotAmount string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotInToken = r.URL.Query().Get("inToken")
		gotAmount = r.URL.Query().Get("amount")
		w.Header().Set("Content-Type", "application/json")
		// 0.6955 WETH out in base units.
		_, _ = w.Write([]byte(`{"out_amount": "695500000000000000", "route": [{"pool": "test"}]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second, time.Minute)
	collateralPrice := sdkmath.LegacyNewDec(2000)
	provider, err := NewSwapProvider(client, wethToken, usdcToken, collateralPrice)
	require.NoError(t, err)

	amountIn := sdkmath.LegacyMustNewDecFromStr("1395.348837")
	borrowValueUSD := sdkmath.LegacyMustNewDecFromStr("1395.348837")
	quote, err := provider.Quote(context.Background(), amountIn, sdkmath.LegacyDec{}, borrowValueUSD)
	require.NoError(t, err)

	assert.Equal(t, "USDC", gotInToken)
	assert.Equal(t, "1395348837", gotAmount, "input scales into USDC base units, floored")
	assert.True(t, quote.AmountOut.Equal(sdkmath.LegacyMustNewDecFromStr("0.6955")))

	// Fee = borrow USD minus realized USD out: 1395.348837 - 0.6955*2000.
	wantFees := borrowValueUSD.Sub(sdkmath.LegacyMustNewDecFromStr("0.6955").Mul(collateralPrice))
	assert.True(t, quote.FeesUSD.Equal(wantFees), "got %s want %s", quote.FeesUSD, wantFees)
	assert.NotEmpty(t, quote.Route)
	assert.NotEmpty(t, quote.Provenance)
}

func TestSwapProvider_FeesNeverNegative(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		// Pays out more USD than went in.
		_, _ = w.Write([]byte(`{"out_amount": "1000000000000000000"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second, time.Minute)
	provider, err := NewSwapProvider(client, wethToken, usdcToken, sdkmath.LegacyNewDec(2000))
	require.NoError(t, err)

	quote, err := provider.Quote(context.Background(),
		sdkmath.LegacyNewDec(100), sdkmath.LegacyDec{}, sdkmath.LegacyNewDec(100))
	require.NoError(t, err)
	assert.True(t, quote.FeesUSD.IsZero())
}

func TestSwapProvider_DustInputRejected(t *testing.T) {
	client := NewClient("http://localhost:0", time.Second, time.Minute)
	provider, err := NewSwapProvider(client, wethToken, usdcToken, sdkmath.LegacyNewDec(2000))
	require.NoError(t, err)

	// 1e-7 USDC is below one base unit at 6 decimals.
	dust := sdkmath.LegacyMustNewDecFromStr("0.0000001")
	_, err = provider.Quote(context.Background(), dust, sdkmath.LegacyDec{}, dust)
	require.ErrorIs(t, err, engine.ErrProviderFailure)
}

func TestSwapProvider_ZeroOutAmountRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"out_amount": "0"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second, time.Minute)
	provider, err := NewSwapProvider(client, wethToken, usdcToken, sdkmath.LegacyNewDec(2000))
	require.NoError(t, err)

	_, err = provider.Quote(context.Background(),
		sdkmath.LegacyNewDec(100), sdkmath.LegacyDec{}, sdkmath.LegacyNewDec(100))
	require.ErrorIs(t, err, engine.ErrProviderFailure,
		"a zero payout must surface as an error, never as a zero-valued quote")
}

func TestSwapProvider_BadOutAmount(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"out_amount": "not-a-number"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second, time.Minute)
	provider, err := NewSwapProvider(client, wethToken, usdcToken, sdkmath.LegacyNewDec(2000))
	require.NoError(t, err)

	_, err = provider.Quote(context.Background(),
		sdkmath.LegacyNewDec(100), sdkmath.LegacyDec{}, sdkmath.LegacyNewDec(100))
	require.ErrorIs(t, err, engine.ErrProviderFailure)
}

func TestNewSwapProvider_Validation(t *testing.T) {
	_, err := NewSwapProvider(nil, wethToken, usdcToken, sdkmath.LegacyNewDec(2000))
	require.ErrorIs(t, err, engine.ErrProviderFailure)

	client := NewClient("http://localhost:0", time.Second, time.Minute)
	_, err = NewSwapProvider(client, wethToken, usdcToken, sdkmath.LegacyZeroDec())
	require.ErrorIs(t, err, engine.ErrProviderFailure)
}
