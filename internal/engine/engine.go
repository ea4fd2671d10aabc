/*

This file contains the looping engine: the per-iteration borrow/swap/supply
loop, the post-loop summary metrics, and the day-indexed projection of the
position under interest accrual.

The loop is strictly sequential. Later iterations depend on the realized
state of earlier ones, so the provider call is awaited before the next
iteration starts. All mutable state is scoped to one invocation.

*/

package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	sdkmath "cosmossdk.io/math"

	"github.com/loopscope/loopsim/internal/logger"
	"github.com/loopscope/loopsim/internal/types"
	"github.com/loopscope/loopsim/internal/utils"
)

// Error definitions for zero-tolerance error handling
var (
	ErrInvalidInput = errors.New("invalid simulation input")
	ErrComputation  = errors.New("computation error")
	ErrMissingPrice = errors.New("no USD price available")
)

var engineLogger = logger.GetForComponent("looping_engine")

const (
	secondsPerDay  = 86_400
	secondsPerYear = 31_536_000 // 365-day year
)

// RunParams carries everything one simulation run consumes: the validated
// input, the resolved market snapshot, the merged price map, the effective
// rates, and the injected swap provider.
type RunParams struct {
	Input     types.SimulationInput
	Market    types.MarketSnapshot
	Prices    map[string]sdkmath.LegacyDec
	SupplyAPR float64
	BorrowAPR float64
	Provider  SwapProvider
}

// MergePrices merges caller price overrides over the snapshot's default USD
// price map. Override keys may be a bare symbol or SYMBOLUSD; override wins.
func MergePrices(market types.MarketSnapshot, overrides map[string]float64) (map[string]sdkmath.LegacyDec, error) {
	merged := make(map[string]sdkmath.LegacyDec, len(market.PricesUSD)+len(overrides))
	for symbol, price := range market.PricesUSD {
		merged[strings.ToUpper(symbol)] = price
	}
	for key, price := range overrides {
		symbol := strings.ToUpper(key)
		if len(symbol) > 3 && strings.HasSuffix(symbol, "USD") {
			symbol = strings.TrimSuffix(symbol, "USD")
		}
		dec, err := utils.DecFromFloat(price)
		if err != nil {
			return nil, fmt.Errorf("%w: price override %q: %w", ErrInvalidInput, key, err)
		}
		if !dec.IsPositive() {
			return nil, fmt.Errorf("%w: price override %q must be positive", ErrInvalidInput, key)
		}
		merged[symbol] = dec
	}
	return merged, nil
}

// PriceFor looks up the USD unit price of a symbol in a merged price map.
func PriceFor(prices map[string]sdkmath.LegacyDec, symbol string) (sdkmath.LegacyDec, error) {
	price, ok := prices[strings.ToUpper(symbol)]
	if !ok {
		return sdkmath.LegacyZeroDec(), fmt.Errorf("%w for %s", ErrMissingPrice, symbol)
	}
	if !price.IsPositive() {
		return sdkmath.LegacyZeroDec(), fmt.Errorf("%w: price for %s must be positive", ErrComputation, symbol)
	}
	return price, nil
}

// loopState is the engine-internal running position, mutated once per
// iteration. Both quantities are non-decreasing: the loop only adds.
type loopState struct {
	collateral sdkmath.LegacyDec
	debt       sdkmath.LegacyDec
}

// Run executes the looping simulation and returns the result plus the raw
// provenance payloads collected from the swap provider, in iteration order.
// The run fails atomically: on any error no partial result is returned.
func Run(ctx context.Context, p RunParams) (*types.SimulationResult, []json.RawMessage, error) {
	if p.Provider == nil {
		return nil, nil, fmt.Errorf("%w: swap provider is required", ErrInvalidInput)
	}
	if p.Market.LLTV.IsNil() || !p.Market.LLTV.IsPositive() || p.Market.LLTV.GTE(sdkmath.LegacyOneDec()) {
		return nil, nil, fmt.Errorf("%w: market lltv must be in (0, 1)", ErrInvalidInput)
	}

	startCapital, err := utils.ParseAmount(p.Input.StartCapital)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: start capital %q: %w", ErrInvalidInput, p.Input.StartCapital, err)
	}
	if !startCapital.IsPositive() {
		return nil, nil, fmt.Errorf("%w: start capital must be positive, got %q", ErrInvalidInput, p.Input.StartCapital)
	}

	targetLtv, err := utils.DecFromFloat(p.Input.TargetLTV)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: target ltv: %w", ErrInvalidInput, err)
	}
	if !targetLtv.IsPositive() {
		return nil, nil, fmt.Errorf("%w: target ltv must be positive", ErrInvalidInput)
	}
	// borrowFraction >= 1 would put the first iteration at or past the
	// liquidation threshold.
	if targetLtv.GTE(p.Market.LLTV) {
		return nil, nil, fmt.Errorf("%w: target ltv %s must be below market lltv %s", ErrInvalidInput, targetLtv, p.Market.LLTV)
	}
	if p.Input.LoopCount < 1 {
		return nil, nil, fmt.Errorf("%w: loop count must be positive", ErrInvalidInput)
	}
	if p.Input.HorizonDays < 1 {
		return nil, nil, fmt.Errorf("%w: horizon days must be at least 1", ErrInvalidInput)
	}

	collateralPrice, err := PriceFor(p.Prices, p.Input.CollateralToken.Symbol)
	if err != nil {
		return nil, nil, err
	}
	debtPrice, err := PriceFor(p.Prices, p.Input.DebtToken.Symbol)
	if err != nil {
		return nil, nil, err
	}

	// Fixed for the whole run, computed once from the input.
	borrowFraction := targetLtv.Quo(p.Market.LLTV)

	state := loopState{
		collateral: startCapital,
		debt:       sdkmath.LegacyZeroDec(),
	}
	slippageFeesUSD := sdkmath.LegacyZeroDec()
	actionPlan := make([]types.ActionStep, 0, p.Input.LoopCount)
	provenance := make([]json.RawMessage, 0, p.Input.LoopCount)

	loopsDone := 0
	for i := 0; i < p.Input.LoopCount; i++ {
		if err := ctx.Err(); err != nil {
			return nil, nil, fmt.Errorf("simulation aborted at iteration %d: %w", i+1, err)
		}

		collateralValueUSD := state.collateral.Mul(collateralPrice)
		borrowValueUSD := collateralValueUSD.Mul(borrowFraction)
		if borrowValueUSD.IsZero() {
			// The only early-exit condition.
			break
		}

		borrowAmountDebt := borrowValueUSD.Quo(debtPrice)
		idealOutCollateral := borrowValueUSD.Quo(collateralPrice)

		quote, err := p.Provider.Quote(ctx, borrowAmountDebt, idealOutCollateral, borrowValueUSD)
		if err != nil {
			loopProviderErrors.Inc()
			return nil, nil, fmt.Errorf("iteration %d: %w", i+1, err)
		}
		if quote.AmountOut.IsNil() || quote.AmountOut.IsNegative() {
			loopProviderErrors.Inc()
			return nil, nil, fmt.Errorf("iteration %d: %w: provider returned negative output", i+1, ErrProviderFailure)
		}

		// Debt is never discounted by slippage; slippage only erodes the
		// collateral gained.
		state.collateral = state.collateral.Add(quote.AmountOut)
		state.debt = state.debt.Add(borrowAmountDebt)

		slip := idealOutCollateral.Sub(quote.AmountOut)
		if slip.IsNegative() {
			slip = sdkmath.LegacyZeroDec()
		}
		slippageFeesUSD = slippageFeesUSD.Add(slip.Mul(collateralPrice))
		if !quote.FeesUSD.IsNil() {
			slippageFeesUSD = slippageFeesUSD.Add(quote.FeesUSD)
		}

		actionPlan = append(actionPlan, types.ActionStep{
			Step: i + 1,
			Borrow: types.ActionLeg{
				Asset:  p.Input.DebtToken.Symbol,
				Amount: borrowAmountDebt,
			},
			Swap: types.SwapLeg{
				FromAsset: p.Input.DebtToken.Symbol,
				ToAsset:   p.Input.CollateralToken.Symbol,
				AmountIn:  borrowAmountDebt,
				AmountOut: quote.AmountOut,
				Route:     quote.Route,
			},
			Supply: types.ActionLeg{
				Asset:  p.Input.CollateralToken.Symbol,
				Amount: quote.AmountOut,
			},
		})
		if len(quote.Provenance) > 0 {
			provenance = append(provenance, quote.Provenance)
		}
		loopsDone++
		loopIterationsTotal.Inc()
	}

	collateralValueUSD := state.collateral.Mul(collateralPrice)
	debtValueUSD := state.debt.Mul(debtPrice)

	hfNow := healthFactor(collateralValueUSD, debtValueUSD, p.Market.LLTV)
	leverage := grossLeverage(collateralValueUSD, debtValueUSD)
	liqPrice := liquidationPrice(debtValueUSD, state.collateral, p.Market.LLTV)

	series, seriesPrices, err := buildSeries(seriesParams{
		collateral:      state.collateral,
		debt:            state.debt,
		supplyAPR:       p.SupplyAPR,
		borrowAPR:       p.BorrowAPR,
		horizonDays:     p.Input.HorizonDays,
		collateralPrice: collateralPrice,
		debtPrice:       debtPrice,
		lltv:            p.Market.LLTV,
		lagCfg:          p.Input.OracleConfig,
	})
	if err != nil {
		return nil, nil, err
	}

	netAPR, err := netAnnualizedReturn(series, p.Input.HorizonDays, p.SupplyAPR, p.BorrowAPR)
	if err != nil {
		return nil, nil, err
	}

	stress, err := evaluateScenarios(p.Input.Scenarios, series, seriesPrices, seriesParams{
		collateral:      state.collateral,
		debt:            state.debt,
		supplyAPR:       p.SupplyAPR,
		borrowAPR:       p.BorrowAPR,
		horizonDays:     p.Input.HorizonDays,
		collateralPrice: collateralPrice,
		debtPrice:       debtPrice,
		lltv:            p.Market.LLTV,
		lagCfg:          p.Input.OracleConfig,
	})
	if err != nil {
		return nil, nil, err
	}

	engineLogger.Debug().
		Int("loopsDone", loopsDone).
		Str("collateral", state.collateral.String()).
		Str("debt", state.debt.String()).
		Float64("hfNow", hfNow.Float64()).
		Msg("Looping simulation completed")

	result := &types.SimulationResult{
		Summary: types.Summary{
			LoopsDone:           loopsDone,
			GrossLeverage:       leverage,
			NetAPR:              netAPR,
			HealthFactorNow:     hfNow,
			LiquidationPriceUSD: liqPrice,
			SlippageFeesUSD:     slippageFeesUSD,
		},
		TimeSeries: series,
		Stress:     stress,
		ActionPlan: actionPlan,
		MarketParams: types.MarketParamsUsed{
			Protocol:             p.Market.Protocol,
			Chain:                p.Market.Chain,
			LLTV:                 p.Market.LLTV,
			LiquidationIncentive: p.Market.LiquidationIncentive,
			CloseFactor:          p.Market.CloseFactor,
			IRM:                  p.Market.IRM,
			OracleType:           p.Market.OracleType,
			SupplyAPR:            p.SupplyAPR,
			BorrowAPR:            p.BorrowAPR,
			PricesUSD:            p.Prices,
		},
	}
	return result, provenance, nil
}

// healthFactor computes (collateralValueUSD * lltv) / debtValueUSD, with
// +Inf for a debt-free position.
func healthFactor(collateralValueUSD, debtValueUSD, lltv sdkmath.LegacyDec) types.Ratio {
	if debtValueUSD.IsZero() {
		return types.Inf()
	}
	hf, err := collateralValueUSD.Mul(lltv).Quo(debtValueUSD).Float64()
	if err != nil {
		return types.Inf()
	}
	return types.Ratio(hf)
}

// grossLeverage computes collateral value over equity, +Inf when equity is
// zero or negative.
func grossLeverage(collateralValueUSD, debtValueUSD sdkmath.LegacyDec) types.Ratio {
	equity := collateralValueUSD.Sub(debtValueUSD)
	if !equity.IsPositive() {
		return types.Inf()
	}
	lev, err := collateralValueUSD.Quo(equity).Float64()
	if err != nil {
		return types.Inf()
	}
	return types.Ratio(lev)
}

// liquidationPrice is the collateral USD price at which HF would equal 1.
func liquidationPrice(debtValueUSD, collateral, lltv sdkmath.LegacyDec) types.Ratio {
	denom := collateral.Mul(lltv)
	if denom.IsZero() {
		return types.Inf()
	}
	price, err := debtValueUSD.Quo(denom).Float64()
	if err != nil {
		return types.Inf()
	}
	return types.Ratio(price)
}

// seriesParams is everything needed to project a post-loop position forward
// under interest accrual.
type seriesParams struct {
	collateral      sdkmath.LegacyDec // day-0 totals
	debt            sdkmath.LegacyDec
	supplyAPR       float64
	borrowAPR       float64
	horizonDays     int
	collateralPrice sdkmath.LegacyDec // spot
	debtPrice       sdkmath.LegacyDec // constant over the horizon
	lltv            sdkmath.LegacyDec
	lagCfg          *types.OracleConfig
}

// buildSeries projects the position over t = 0..horizonDays inclusive,
// compounding collateral and debt independently and resolving the collateral
// price through the oracle-lag model at each day. It returns the points and
// the collateral price actually used at each point.
func buildSeries(p seriesParams) ([]types.TimeSeriesPoint, []sdkmath.LegacyDec, error) {
	points := make([]types.TimeSeriesPoint, 0, p.horizonDays+1)
	pricesUsed := make([]sdkmath.LegacyDec, 0, p.horizonDays+1)

	oracleState := NewOracleState(p.collateralPrice, 0)
	for t := 0; t <= p.horizonDays; t++ {
		supplyGrowth, err := growthFactor(p.supplyAPR, t)
		if err != nil {
			return nil, nil, err
		}
		borrowGrowth, err := growthFactor(p.borrowAPR, t)
		if err != nil {
			return nil, nil, err
		}
		collateralT := p.collateral.Mul(supplyGrowth)
		debtT := p.debt.Mul(borrowGrowth)

		var priceT sdkmath.LegacyDec
		priceT, oracleState = ResolvePrice(p.collateralPrice, int64(t)*secondsPerDay, oracleState, p.lagCfg)

		collateralValueUSD := collateralT.Mul(priceT)
		debtValueUSD := debtT.Mul(p.debtPrice)

		points = append(points, types.TimeSeriesPoint{
			Day:          t,
			Collateral:   collateralT,
			Debt:         debtT,
			EquityUSD:    collateralValueUSD.Sub(debtValueUSD),
			HealthFactor: healthFactor(collateralValueUSD, debtValueUSD, p.lltv),
		})
		pricesUsed = append(pricesUsed, priceT)
	}
	return points, pricesUsed, nil
}

// growthFactor is the continuous-compounding multiplier exp(rate * t_days *
// 86400 / 31536000). The transcendental is evaluated in float64: real
// interest curves are continuous and the precision loss is negligible
// relative to the annualized-rate approximation.
func growthFactor(rate float64, day int) (sdkmath.LegacyDec, error) {
	if rate == 0 || day == 0 {
		return sdkmath.LegacyOneDec(), nil
	}
	factor := math.Exp(rate * float64(day) * secondsPerDay / secondsPerYear)
	dec, err := utils.DecFromFloat(factor)
	if err != nil {
		return sdkmath.LegacyZeroDec(), fmt.Errorf("%w: growth factor: %w", ErrComputation, err)
	}
	return dec, nil
}

// netAnnualizedReturn computes the horizon equity change annualized over a
// 365-day year, falling back to the naive carry estimate when day-0 equity
// is not positive.
func netAnnualizedReturn(series []types.TimeSeriesPoint, horizonDays int, supplyAPR, borrowAPR float64) (float64, error) {
	if len(series) == 0 || horizonDays <= 0 {
		return supplyAPR - borrowAPR, nil
	}
	equity0, err := series[0].EquityUSD.Float64()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrComputation, err)
	}
	if equity0 <= 0 {
		return supplyAPR - borrowAPR, nil
	}
	equityH, err := series[len(series)-1].EquityUSD.Float64()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrComputation, err)
	}
	return (equityH - equity0) / equity0 / (float64(horizonDays) / 365.0), nil
}
