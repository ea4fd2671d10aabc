package engine

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"
)

func dec(t *testing.T, s string) sdkmath.LegacyDec {
	t.Helper()
	d, err := sdkmath.LegacyNewDecFromStr(s)
	require.NoError(t, err)
	return d
}

func TestQuoteConstantProduct_ClosedForm(t *testing.T) {
	amountIn := dec(t, "100")
	reserveIn := dec(t, "10000")
	reserveOut := dec(t, "20000")

	quote, err := QuoteConstantProduct(amountIn, reserveIn, reserveOut, 30)
	require.NoError(t, err)

	// amountInAfterFee = 100 * 0.997 = 99.7
	// amountOut = 99.7 * 20000 / (10000 + 99.7)
	afterFee := dec(t, "99.7")
	expected := afterFee.Mul(reserveOut).Quo(reserveIn.Add(afterFee))
	require.True(t, quote.AmountOut.Equal(expected), "got %s want %s", quote.AmountOut, expected)
	require.True(t, quote.FeePaid.Equal(dec(t, "0.3")))
	require.True(t, quote.PriceImpactPct.IsPositive())
}

func TestQuoteConstantProduct_ZeroTradeIdempotence(t *testing.T) {
	quote, err := QuoteConstantProduct(dec(t, "0"), dec(t, "5000"), dec(t, "7000"), 30)
	require.NoError(t, err)
	require.True(t, quote.AmountOut.IsZero())
	require.True(t, quote.FeePaid.IsZero())
	require.True(t, quote.PriceImpactPct.IsZero())
}

func TestQuoteConstantProduct_Monotonicity(t *testing.T) {
	reserveIn := dec(t, "10000")
	reserveOut := dec(t, "20000000")

	prev := sdkmath.LegacyZeroDec()
	for _, amount := range []string{"1", "10", "100", "1000", "5000", "25000"} {
		quote, err := QuoteConstantProduct(dec(t, amount), reserveIn, reserveOut, 30)
		require.NoError(t, err)
		require.True(t, quote.AmountOut.GT(prev), "output must strictly increase with input (amountIn=%s)", amount)
		prev = quote.AmountOut
	}
}

func TestQuoteConstantProduct_Determinism(t *testing.T) {
	first, err := QuoteConstantProduct(dec(t, "123.456"), dec(t, "9999"), dec(t, "8888"), 25)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := QuoteConstantProduct(dec(t, "123.456"), dec(t, "9999"), dec(t, "8888"), 25)
		require.NoError(t, err)
		require.True(t, first.AmountOut.Equal(again.AmountOut))
		require.True(t, first.FeePaid.Equal(again.FeePaid))
		require.True(t, first.PriceImpactPct.Equal(again.PriceImpactPct))
	}
}

func TestQuoteConstantProduct_InvalidInputs(t *testing.T) {
	_, err := QuoteConstantProduct(dec(t, "100"), dec(t, "0"), dec(t, "1000"), 30)
	require.ErrorIs(t, err, ErrInvalidPoolState)

	_, err = QuoteConstantProduct(dec(t, "100"), dec(t, "1000"), dec(t, "0"), 30)
	require.ErrorIs(t, err, ErrInvalidPoolState)

	negIn := dec(t, "1").Neg()
	_, err = QuoteConstantProduct(negIn, dec(t, "1000"), dec(t, "1000"), 30)
	require.ErrorIs(t, err, ErrNegativeAmount)

	_, err = QuoteConstantProduct(dec(t, "100"), dec(t, "1000"), dec(t, "1000"), 10_000)
	require.ErrorIs(t, err, ErrInvalidFee)

	_, err = QuoteConstantProduct(dec(t, "100"), dec(t, "1000"), dec(t, "1000"), -1)
	require.ErrorIs(t, err, ErrInvalidFee)
}

func TestQuoteConstantProduct_FullFeeEatsTrade(t *testing.T) {
	// 9999 bps leaves a sliver; a tiny trade with a huge fee still quotes.
	quote, err := QuoteConstantProduct(dec(t, "0.0001"), dec(t, "1000"), dec(t, "1000"), 9999)
	require.NoError(t, err)
	require.True(t, quote.AmountOut.IsPositive())
	require.True(t, quote.FeePaid.LT(dec(t, "0.0001")))
}
