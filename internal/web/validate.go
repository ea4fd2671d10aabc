/*

Structural request validation: shape, types, and coarse value ranges. The
engine performs its own finer semantic checks; this layer catches malformed
requests before any market resolution happens.

*/

package web

import (
	"fmt"

	"github.com/loopscope/loopsim/internal/types"
	"github.com/loopscope/loopsim/internal/utils"
)

// SimulateRequest is the body of POST /api/v1/simulate.
type SimulateRequest struct {
	Market     types.MarketQuery     `json:"market"`
	Simulation types.SimulationInput `json:"simulation"`
}

// FieldError names the offending field with a human-readable message.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) String() string {
	return e.Field + ": " + e.Message
}

// validateSimulateRequest returns every structural problem with the request.
func validateSimulateRequest(req SimulateRequest) []FieldError {
	var errs []FieldError

	if req.Market.Protocol == "" {
		errs = append(errs, FieldError{"market.protocol", "is required"})
	}
	if req.Market.Chain == "" {
		errs = append(errs, FieldError{"market.chain", "is required"})
	}
	if req.Market.CollateralSymbol == "" && req.Market.CollateralAddress == "" {
		errs = append(errs, FieldError{"market.collateral_symbol", "symbol or address is required"})
	}
	if req.Market.DebtSymbol == "" && req.Market.DebtAddress == "" {
		errs = append(errs, FieldError{"market.debt_symbol", "symbol or address is required"})
	}

	sim := req.Simulation
	if sim.StartCapital == "" {
		errs = append(errs, FieldError{"simulation.start_capital", "is required"})
	} else if _, err := utils.ParseAmount(sim.StartCapital); err != nil {
		errs = append(errs, FieldError{"simulation.start_capital", "must be a finite non-negative decimal string"})
	}
	if sim.TargetLTV <= 0 || sim.TargetLTV >= 1 {
		errs = append(errs, FieldError{"simulation.target_ltv", "must be a fraction in (0, 1)"})
	}
	if sim.LoopCount < 1 {
		errs = append(errs, FieldError{"simulation.loop_count", "must be a positive integer"})
	}
	if sim.HorizonDays < 0 || sim.HorizonDays > 365 {
		errs = append(errs, FieldError{"simulation.horizon_days", "must be between 1 and 365"})
	}

	for key, price := range sim.PriceOverrides {
		if price <= 0 {
			errs = append(errs, FieldError{"simulation.price_overrides." + key, "must be positive"})
		}
	}

	if sim.SwapModel != nil {
		if sim.SwapModel.FeeBps < 0 || sim.SwapModel.FeeBps >= 10_000 {
			errs = append(errs, FieldError{"simulation.swap_model.fee_bps", "must be in [0, 10000)"})
		}
		if amt, err := utils.ParseAmount(sim.SwapModel.ReserveDebt); err != nil || !amt.IsPositive() {
			errs = append(errs, FieldError{"simulation.swap_model.reserve_debt", "must be a positive decimal string"})
		}
		if amt, err := utils.ParseAmount(sim.SwapModel.ReserveCollateral); err != nil || !amt.IsPositive() {
			errs = append(errs, FieldError{"simulation.swap_model.reserve_collateral", "must be a positive decimal string"})
		}
	}

	if sim.OracleConfig != nil && sim.OracleConfig.LagSeconds < 0 {
		errs = append(errs, FieldError{"simulation.oracle_config.lag_seconds", "must be non-negative"})
	}

	for i, sc := range sim.Scenarios {
		field := fmt.Sprintf("simulation.scenarios[%d]", i)
		switch sc.Type {
		case types.ScenarioPriceJump:
			if sc.ShockPct <= -1 {
				errs = append(errs, FieldError{field + ".shock_pct", "must be greater than -1"})
			}
			if sc.AtDay < 0 {
				errs = append(errs, FieldError{field + ".at_day", "must be non-negative"})
			}
		case types.ScenarioRatesShift:
			// any finite delta is acceptable
		case types.ScenarioOracleLag:
			if sc.LagSeconds < 0 {
				errs = append(errs, FieldError{field + ".lag_seconds", "must be non-negative"})
			}
		default:
			errs = append(errs, FieldError{field + ".type", fmt.Sprintf("unknown scenario type %q", sc.Type)})
		}
	}

	if sim.RiskLimits != nil {
		if sim.RiskLimits.MinHealthFactor != nil && *sim.RiskLimits.MinHealthFactor <= 0 {
			errs = append(errs, FieldError{"simulation.risk_limits.min_health_factor", "must be positive"})
		}
		if sim.RiskLimits.MaxGrossLeverage != nil && *sim.RiskLimits.MaxGrossLeverage <= 0 {
			errs = append(errs, FieldError{"simulation.risk_limits.max_gross_leverage", "must be positive"})
		}
	}

	return errs
}
