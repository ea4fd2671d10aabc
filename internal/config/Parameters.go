/*

This file contains the default risk policy for the simulation service.

Each value bounds what a single request may ask of the engine. They can be
overridden per deployment through environment variables in LoadPolicy.

*/

package config

import (
	"github.com/loopscope/loopsim/internal/types"
)

// DefaultRiskPolicy provides the baseline request limits.
var DefaultRiskPolicy = types.RiskPolicy{
	MaxLoopCount: 10,
	// Rationale: each loop multiplies exposure by roughly targetLtv/lltv;
	// beyond ten iterations the added exposure is marginal while the
	// accumulated slippage keeps growing.

	MaxHorizonDays: 365,
	// Rationale: the accrual model assumes fixed annualized rates; projecting
	// fixed rates past a year produces numbers nobody should act on.

	DefaultHorizonDays: 30,

	MaxScenarios: 20,
	// Rationale: scenarios are evaluated independently, so cost scales
	// linearly; twenty covers any realistic stress matrix.
}

// LoadPolicy returns the risk policy with any environment overrides applied.
func LoadPolicy() (types.RiskPolicy, error) {
	policy := DefaultRiskPolicy

	maxLoops, err := getEnvAsInt("POLICY_MAX_LOOP_COUNT", policy.MaxLoopCount)
	if err != nil {
		return types.RiskPolicy{}, err
	}
	policy.MaxLoopCount = maxLoops

	maxHorizon, err := getEnvAsInt("POLICY_MAX_HORIZON_DAYS", policy.MaxHorizonDays)
	if err != nil {
		return types.RiskPolicy{}, err
	}
	policy.MaxHorizonDays = maxHorizon

	defaultHorizon, err := getEnvAsInt("POLICY_DEFAULT_HORIZON_DAYS", policy.DefaultHorizonDays)
	if err != nil {
		return types.RiskPolicy{}, err
	}
	policy.DefaultHorizonDays = defaultHorizon

	maxScenarios, err := getEnvAsInt("POLICY_MAX_SCENARIOS", policy.MaxScenarios)
	if err != nil {
		return types.RiskPolicy{}, err
	}
	policy.MaxScenarios = maxScenarios

	return policy, nil
}
