package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loopscope/loopsim/internal/types"
)

func runWithScenarios(t *testing.T, scenarios []types.Scenario, borrowAPR float64) *types.SimulationResult {
	t.Helper()
	input := baseInput(4, 30)
	input.Scenarios = scenarios
	result, _, err := Run(context.Background(), RunParams{
		Input:     input,
		Market:    testMarket(t),
		Prices:    testPrices(t),
		SupplyAPR: 0.02,
		BorrowAPR: borrowAPR,
		Provider:  testPoolProvider(t, 30),
	})
	require.NoError(t, err)
	return result
}

func minSeriesHF(series []types.TimeSeriesPoint) float64 {
	min := series[0].HealthFactor.Float64()
	for _, pt := range series[1:] {
		if hf := pt.HealthFactor.Float64(); hf < min {
			min = hf
		}
	}
	return min
}

func TestRatesShift_MonotonicRisk(t *testing.T) {
	result := runWithScenarios(t, []types.Scenario{
		{Type: types.ScenarioRatesShift, BorrowAprDeltaBps: 0},
		{Type: types.ScenarioRatesShift, BorrowAprDeltaBps: 200},
		{Type: types.ScenarioRatesShift, BorrowAprDeltaBps: 500},
	}, 0.04)
	require.Len(t, result.Stress, 3)

	baseMin := minSeriesHF(result.TimeSeries)
	assert.InDelta(t, baseMin, result.Stress[0].MinHF.Float64(), 1e-9,
		"a zero-delta shift must reproduce the base series")

	prev := result.Stress[0].MinHF.Float64()
	for _, outcome := range result.Stress[1:] {
		hf := outcome.MinHF.Float64()
		assert.LessOrEqual(t, hf, prev, "a larger borrow-rate shock cannot reduce risk")
		prev = hf
	}
}

func TestPriceJump_Liquidates(t *testing.T) {
	result := runWithScenarios(t, []types.Scenario{
		{Type: types.ScenarioPriceJump, Asset: "WETH", ShockPct: -0.5, AtDay: 0},
	}, 0.04)
	require.Len(t, result.Stress, 1)

	outcome := result.Stress[0]
	assert.Equal(t, "price_jump:WETH:-0.5:0", outcome.Scenario)
	assert.True(t, outcome.Liquidated)
	assert.Less(t, outcome.MinHF.Float64(), 1.0)
	require.NotNil(t, outcome.LiquidationLossUSD)
	assert.True(t, outcome.LiquidationLossUSD.IsPositive())
}

func TestPriceJump_MildShockSurvives(t *testing.T) {
	result := runWithScenarios(t, []types.Scenario{
		{Type: types.ScenarioPriceJump, Asset: "WETH", ShockPct: -0.1, AtDay: 5},
	}, 0.04)
	require.Len(t, result.Stress, 1)

	outcome := result.Stress[0]
	assert.False(t, outcome.Liquidated)
	assert.GreaterOrEqual(t, outcome.MinHF.Float64(), 1.0)
	assert.Nil(t, outcome.LiquidationLossUSD)
}

func TestPriceJump_ShockPastHorizonIsBase(t *testing.T) {
	result := runWithScenarios(t, []types.Scenario{
		{Type: types.ScenarioPriceJump, Asset: "WETH", ShockPct: -0.5, AtDay: 100},
	}, 0.04)
	require.Len(t, result.Stress, 1)
	assert.InDelta(t, minSeriesHF(result.TimeSeries), result.Stress[0].MinHF.Float64(), 1e-9)
}

func TestPriceJump_TotalWipeoutRejected(t *testing.T) {
	input := baseInput(2, 7)
	input.Scenarios = []types.Scenario{
		{Type: types.ScenarioPriceJump, Asset: "WETH", ShockPct: -1.5, AtDay: 0},
	}
	_, _, err := Run(context.Background(), RunParams{
		Input:    input,
		Market:   testMarket(t),
		Prices:   testPrices(t),
		Provider: testPoolProvider(t, 30),
	})
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestOracleLagScenario_ConstantSpotMatchesBase(t *testing.T) {
	// With a flat price path, lagging the oracle changes nothing.
	result := runWithScenarios(t, []types.Scenario{
		{Type: types.ScenarioOracleLag, LagSeconds: 10 * 86400},
	}, 0.04)
	require.Len(t, result.Stress, 1)
	assert.Equal(t, "oracle_lag:864000", result.Stress[0].Scenario)
	assert.InDelta(t, minSeriesHF(result.TimeSeries), result.Stress[0].MinHF.Float64(), 1e-9)
}

func TestUnknownScenarioTypeRejected(t *testing.T) {
	input := baseInput(2, 7)
	input.Scenarios = []types.Scenario{{Type: "flash_crash"}}
	_, _, err := Run(context.Background(), RunParams{
		Input:    input,
		Market:   testMarket(t),
		Prices:   testPrices(t),
		Provider: testPoolProvider(t, 30),
	})
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestScenariosAreIndependent(t *testing.T) {
	// The same scenario listed twice must produce identical outcomes; earlier
	// scenarios never leak state into later ones.
	result := runWithScenarios(t, []types.Scenario{
		{Type: types.ScenarioPriceJump, Asset: "WETH", ShockPct: -0.2, AtDay: 3},
		{Type: types.ScenarioRatesShift, BorrowAprDeltaBps: 300},
		{Type: types.ScenarioPriceJump, Asset: "WETH", ShockPct: -0.2, AtDay: 3},
	}, 0.04)
	require.Len(t, result.Stress, 3)
	assert.Equal(t, result.Stress[0], result.Stress[2])
}
