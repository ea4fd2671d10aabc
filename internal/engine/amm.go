/*

Constant-product swap math. Pure functions: identical arguments always
produce identical quotes.

*/

package engine

import (
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"
)

// Error definitions for zero-tolerance error handling
var (
	ErrInvalidPoolState = errors.New("pool state is invalid")
	ErrInvalidFee       = errors.New("fee basis points out of range")
	ErrNegativeAmount   = errors.New("amount in cannot be negative")
)

const bpsDenominator = 10_000

// PoolQuote is the result of quoting one trade against a two-sided reserve pool.
type PoolQuote struct {
	AmountOut      sdkmath.LegacyDec
	FeePaid        sdkmath.LegacyDec // in units of the input asset
	PriceImpactPct sdkmath.LegacyDec // percent, positive when the trade moves the price against the trader
}

// QuoteConstantProduct computes the output amount, fee, and price impact of
// swapping amountIn against a constant-product pool holding reserveIn of the
// input asset and reserveOut of the output asset.
func QuoteConstantProduct(amountIn, reserveIn, reserveOut sdkmath.LegacyDec, feeBps int64) (PoolQuote, error) {
	if amountIn.IsNegative() {
		return PoolQuote{}, fmt.Errorf("%w: %s", ErrNegativeAmount, amountIn)
	}
	if !reserveIn.IsPositive() || !reserveOut.IsPositive() {
		return PoolQuote{}, fmt.Errorf("%w: reserves (%s, %s) must be positive", ErrInvalidPoolState, reserveIn, reserveOut)
	}
	if feeBps < 0 || feeBps >= bpsDenominator {
		return PoolQuote{}, fmt.Errorf("%w: %d", ErrInvalidFee, feeBps)
	}

	feeFraction := sdkmath.LegacyNewDec(feeBps).Quo(sdkmath.LegacyNewDec(bpsDenominator))
	amountInAfterFee := amountIn.Mul(sdkmath.LegacyOneDec().Sub(feeFraction))

	// Degenerate no-op trade: the entire input is eaten by the fee.
	if amountInAfterFee.IsZero() {
		return PoolQuote{
			AmountOut:      sdkmath.LegacyZeroDec(),
			FeePaid:        amountIn,
			PriceImpactPct: sdkmath.LegacyZeroDec(),
		}, nil
	}

	// x*y = k invariant.
	amountOut := amountInAfterFee.Mul(reserveOut).Quo(reserveIn.Add(amountInAfterFee))
	feePaid := amountIn.Sub(amountInAfterFee)

	spotBefore := reserveOut.Quo(reserveIn)
	priceImpactPct := sdkmath.LegacyZeroDec()
	if spotBefore.IsPositive() {
		spotAfter := reserveOut.Sub(amountOut).Quo(reserveIn.Add(amountInAfterFee))
		priceImpactPct = sdkmath.LegacyNewDec(100).Mul(spotBefore.Sub(spotAfter)).Quo(spotBefore)
	}

	return PoolQuote{
		AmountOut:      amountOut,
		FeePaid:        feePaid,
		PriceImpactPct: priceImpactPct,
	}, nil
}
