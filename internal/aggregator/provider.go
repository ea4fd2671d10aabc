/*

Adapter implementing the engine's swap-provider contract on top of the
aggregator client. Amounts are scaled into smallest integer units on the way
out (floor-rounded) and back to human units on the way in; fees are
estimated as the USD shortfall between value in and value out, floored at
zero.

*/

package aggregator

import (
	"context"
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/loopscope/loopsim/internal/engine"
	"github.com/loopscope/loopsim/internal/types"
	"github.com/loopscope/loopsim/internal/utils"
)

// SwapProvider converts debt into collateral using aggregator quotes.
// Construct one per simulation invocation.
type SwapProvider struct {
	client             *Client
	collateralToken    types.Token
	debtToken          types.Token
	collateralPriceUSD sdkmath.LegacyDec
}

// NewSwapProvider builds a provider for one run's token pair.
func NewSwapProvider(client *Client, collateralToken, debtToken types.Token, collateralPriceUSD sdkmath.LegacyDec) (*SwapProvider, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: aggregator client is required", engine.ErrProviderFailure)
	}
	if !collateralPriceUSD.IsPositive() {
		return nil, fmt.Errorf("%w: collateral price must be positive", engine.ErrProviderFailure)
	}
	return &SwapProvider{
		client:             client,
		collateralToken:    collateralToken,
		debtToken:          debtToken,
		collateralPriceUSD: collateralPriceUSD,
	}, nil
}

// Quote satisfies engine.SwapProvider.
func (p *SwapProvider) Quote(ctx context.Context, amountInDebt, _, borrowValueUSD sdkmath.LegacyDec) (engine.SwapQuote, error) {
	rawIn, err := utils.ToBaseUnits(amountInDebt, p.debtToken.Decimals)
	if err != nil {
		return engine.SwapQuote{}, fmt.Errorf("%w: scaling input amount: %w", engine.ErrProviderFailure, err)
	}
	if !rawIn.IsPositive() {
		return engine.SwapQuote{}, fmt.Errorf("%w: amount %s rounds to zero base units", engine.ErrProviderFailure, amountInDebt)
	}

	response, rawBody, err := p.client.Quote(ctx, tokenIdentifier(p.debtToken), tokenIdentifier(p.collateralToken), rawIn)
	if err != nil {
		return engine.SwapQuote{}, fmt.Errorf("%w: %w", engine.ErrProviderFailure, err)
	}

	// A zero payout is a failed quote, not a price; it must never reach the
	// engine as a silent zero.
	rawOut, ok := sdkmath.NewIntFromString(response.OutAmount)
	if !ok || !rawOut.IsPositive() {
		return engine.SwapQuote{}, fmt.Errorf("%w: out_amount %q is not a positive amount", engine.ErrProviderFailure, response.OutAmount)
	}
	amountOut, err := utils.FromBaseUnits(rawOut, p.collateralToken.Decimals)
	if err != nil {
		return engine.SwapQuote{}, fmt.Errorf("%w: scaling output amount: %w", engine.ErrProviderFailure, err)
	}

	// Fee estimate: USD in minus USD out, never negative.
	feesUSD := borrowValueUSD.Sub(amountOut.Mul(p.collateralPriceUSD))
	if feesUSD.IsNegative() {
		feesUSD = sdkmath.LegacyZeroDec()
	}

	return engine.SwapQuote{
		AmountOut:  amountOut,
		FeesUSD:    feesUSD,
		Route:      response.Route,
		Provenance: rawBody,
	}, nil
}

func tokenIdentifier(token types.Token) string {
	if token.Address != "" {
		return token.Address
	}
	return token.Symbol
}
