/*

Swap-provider abstraction. The engine calls its provider exactly once per
loop iteration, strictly sequentially: the constant-product variant mutates
its reserves between calls, so iteration k+1 depends on iteration k's
realized state.

*/

package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/loopscope/loopsim/internal/types"
	"github.com/loopscope/loopsim/internal/utils"
)

// ErrProviderFailure wraps any swap-provider error. A failed quote aborts
// the run; it is never defaulted to zero.
var ErrProviderFailure = errors.New("swap provider failure")

// SwapQuote is one realized debt-to-collateral conversion.
type SwapQuote struct {
	AmountOut  sdkmath.LegacyDec // collateral units, never negative
	FeesUSD    sdkmath.LegacyDec
	Route      json.RawMessage // optional route detail for the action plan
	Provenance json.RawMessage // optional raw payload for the provenance hash
}

// SwapProvider converts a borrowed debt-asset amount into collateral units.
// Implementations may perform network I/O; the engine awaits each call
// before issuing the next.
type SwapProvider interface {
	Quote(ctx context.Context, amountInDebt, idealOutCollateral, borrowValueUSD sdkmath.LegacyDec) (SwapQuote, error)
}

// PoolSwapProvider simulates swaps against a constant-product pool whose
// reserves are consumed across iterations within one run. Construct a fresh
// instance per simulation; it is not safe for concurrent use and is never
// shared across runs.
type PoolSwapProvider struct {
	feeBps            int64
	reserveDebt       sdkmath.LegacyDec
	reserveCollateral sdkmath.LegacyDec
	debtPriceUSD      sdkmath.LegacyDec
}

// NewPoolSwapProvider seeds a provider from the caller-supplied pool spec.
func NewPoolSwapProvider(spec types.SwapModelSpec, debtPriceUSD sdkmath.LegacyDec) (*PoolSwapProvider, error) {
	reserveDebt, err := utils.ParseAmount(spec.ReserveDebt)
	if err != nil {
		return nil, fmt.Errorf("%w: debt reserve: %w", ErrInvalidPoolState, err)
	}
	reserveCollateral, err := utils.ParseAmount(spec.ReserveCollateral)
	if err != nil {
		return nil, fmt.Errorf("%w: collateral reserve: %w", ErrInvalidPoolState, err)
	}
	if !reserveDebt.IsPositive() || !reserveCollateral.IsPositive() {
		return nil, fmt.Errorf("%w: reserves (%s, %s) must be positive", ErrInvalidPoolState, spec.ReserveDebt, spec.ReserveCollateral)
	}
	if spec.FeeBps < 0 || spec.FeeBps >= bpsDenominator {
		return nil, fmt.Errorf("%w: %d", ErrInvalidFee, spec.FeeBps)
	}
	if !debtPriceUSD.IsPositive() {
		return nil, fmt.Errorf("%w: debt price must be positive", ErrInvalidPoolState)
	}
	return &PoolSwapProvider{
		feeBps:            spec.FeeBps,
		reserveDebt:       reserveDebt,
		reserveCollateral: reserveCollateral,
		debtPriceUSD:      debtPriceUSD,
	}, nil
}

// Quote prices the trade against the current reserves, then consumes them.
func (p *PoolSwapProvider) Quote(_ context.Context, amountInDebt, _, _ sdkmath.LegacyDec) (SwapQuote, error) {
	quote, err := QuoteConstantProduct(amountInDebt, p.reserveDebt, p.reserveCollateral, p.feeBps)
	if err != nil {
		return SwapQuote{}, fmt.Errorf("%w: %w", ErrProviderFailure, err)
	}

	p.reserveDebt = p.reserveDebt.Add(amountInDebt)
	p.reserveCollateral = p.reserveCollateral.Sub(quote.AmountOut)

	return SwapQuote{
		AmountOut: quote.AmountOut,
		FeesUSD:   quote.FeePaid.Mul(p.debtPriceUSD),
	}, nil
}
