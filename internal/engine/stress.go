/*

Stress-scenario evaluation. Every scenario is evaluated independently
against the same post-loop running totals; scenarios never compose.

price_jump re-walks the already-computed base series with a shocked price;
rates_shift and oracle_lag rebuild a fresh accrual series from the post-loop
totals under the altered parameter. The asymmetry is deliberate: stress is
post-hoc on the accrual phase, never on the leverage-acquisition phase.

*/

package engine

import (
	"fmt"
	"math"

	sdkmath "cosmossdk.io/math"

	"github.com/loopscope/loopsim/internal/types"
	"github.com/loopscope/loopsim/internal/utils"
)

func evaluateScenarios(
	scenarios []types.Scenario,
	base []types.TimeSeriesPoint,
	basePrices []sdkmath.LegacyDec,
	p seriesParams,
) ([]types.StressOutcome, error) {
	outcomes := make([]types.StressOutcome, 0, len(scenarios))
	for _, sc := range scenarios {
		var (
			outcome types.StressOutcome
			err     error
		)
		switch sc.Type {
		case types.ScenarioPriceJump:
			outcome, err = evalPriceJump(sc, base, basePrices, p)
		case types.ScenarioRatesShift:
			shifted := p
			shifted.borrowAPR = p.borrowAPR + sc.BorrowAprDeltaBps/float64(bpsDenominator)
			outcome, err = evalRebuiltSeries(sc, shifted)
		case types.ScenarioOracleLag:
			// The override replaces, not extends, any run-level lag config.
			lagged := p
			lagged.lagCfg = &types.OracleConfig{LagSeconds: sc.LagSeconds}
			outcome, err = evalRebuiltSeries(sc, lagged)
		default:
			return nil, fmt.Errorf("%w: unknown scenario type %q", ErrInvalidInput, sc.Type)
		}
		if err != nil {
			return nil, err
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes, nil
}

// evalPriceJump re-walks the base series, shocking the collateral price for
// every point at or past the shock day. Interest is not recomputed; only the
// price input changes.
func evalPriceJump(sc types.Scenario, base []types.TimeSeriesPoint, basePrices []sdkmath.LegacyDec, p seriesParams) (types.StressOutcome, error) {
	shockFactor, err := utils.DecFromFloat(1 + sc.ShockPct)
	if err != nil {
		return types.StressOutcome{}, fmt.Errorf("%w: shock pct: %w", ErrInvalidInput, err)
	}
	if shockFactor.IsNegative() {
		return types.StressOutcome{}, fmt.Errorf("%w: shock pct %v drives the price negative", ErrInvalidInput, sc.ShockPct)
	}

	minHF := math.Inf(1)
	worstShortfall := sdkmath.LegacyZeroDec()
	for i, pt := range base {
		price := basePrices[i]
		if pt.Day >= sc.AtDay {
			price = price.Mul(shockFactor)
		}
		collateralValueUSD := pt.Collateral.Mul(price)
		debtValueUSD := pt.Debt.Mul(p.debtPrice)
		hf := healthFactor(collateralValueUSD, debtValueUSD, p.lltv).Float64()
		if hf < minHF {
			minHF = hf
			worstShortfall = debtValueUSD.Sub(collateralValueUSD.Mul(p.lltv))
		}
	}
	return buildOutcome(sc, minHF, worstShortfall), nil
}

// evalRebuiltSeries rebuilds a full alternate accrual series from the
// post-loop totals and reports its minimum health factor.
func evalRebuiltSeries(sc types.Scenario, p seriesParams) (types.StressOutcome, error) {
	series, pricesUsed, err := buildSeries(p)
	if err != nil {
		return types.StressOutcome{}, err
	}

	minHF := math.Inf(1)
	worstShortfall := sdkmath.LegacyZeroDec()
	for i, pt := range series {
		hf := pt.HealthFactor.Float64()
		if hf < minHF {
			minHF = hf
			collateralValueUSD := pt.Collateral.Mul(pricesUsed[i])
			debtValueUSD := pt.Debt.Mul(p.debtPrice)
			worstShortfall = debtValueUSD.Sub(collateralValueUSD.Mul(p.lltv))
		}
	}
	return buildOutcome(sc, minHF, worstShortfall), nil
}

// buildOutcome assembles the outcome. The loss estimate is populated only
// when the position liquidates and the shortfall at the worst point is
// positive.
func buildOutcome(sc types.Scenario, minHF float64, worstShortfall sdkmath.LegacyDec) types.StressOutcome {
	liquidated := minHF < 1
	outcome := types.StressOutcome{
		Scenario:   sc.Label(),
		MinHF:      types.Ratio(minHF),
		Liquidated: liquidated,
	}
	if liquidated && worstShortfall.IsPositive() {
		loss := worstShortfall
		outcome.LiquidationLossUSD = &loss
	}
	return outcome
}
