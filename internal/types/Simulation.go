/*

This file contains the caller-facing simulation input and the result object
the engine produces. The input is immutable for the duration of one run; the
result is constructed once per invocation and never mutated after return.

*/

package types

import (
	"encoding/json"
	"time"

	sdkmath "cosmossdk.io/math"
)

// SwapModelSpec is an explicit constant-product pool. When present on an
// input, the engine must use deterministic AMM math instead of any external
// quote source.
type SwapModelSpec struct {
	FeeBps            int64  `json:"fee_bps"`
	ReserveDebt       string `json:"reserve_debt"`       // decimal string, debt units
	ReserveCollateral string `json:"reserve_collateral"` // decimal string, collateral units
}

// OracleConfig models a price feed that only refreshes on a heartbeat.
type OracleConfig struct {
	LagSeconds int64 `json:"lag_seconds"`
}

// RateOverrides replaces the snapshot's annualized rates when set.
type RateOverrides struct {
	SupplyAPR *float64 `json:"supply_apr,omitempty"` // fraction, e.g. 0.05
	BorrowAPR *float64 `json:"borrow_apr,omitempty"`
}

// RiskLimits are caller-supplied post-run policy thresholds.
type RiskLimits struct {
	MinHealthFactor  *float64 `json:"min_health_factor,omitempty"`
	MaxGrossLeverage *float64 `json:"max_gross_leverage,omitempty"`
}

// SimulationInput is the validated request a single run consumes.
type SimulationInput struct {
	CollateralToken Token              `json:"collateral_token"`
	DebtToken       Token              `json:"debt_token"`
	StartCapital    string             `json:"start_capital"` // decimal string, collateral units
	TargetLTV       float64            `json:"target_ltv"`    // per-loop borrow target, fraction in (0, lltv)
	LoopCount       int                `json:"loop_count"`
	PriceOverrides  map[string]float64 `json:"price_overrides,omitempty"` // symbol or SYMBOLUSD -> USD unit price
	SwapModel       *SwapModelSpec     `json:"swap_model,omitempty"`
	OracleConfig    *OracleConfig      `json:"oracle_config,omitempty"`
	RateOverrides   *RateOverrides     `json:"rate_overrides,omitempty"`
	HorizonDays     int                `json:"horizon_days,omitempty"` // default 30, max 365
	Scenarios       []Scenario         `json:"scenarios,omitempty"`
	RiskLimits      *RiskLimits        `json:"risk_limits,omitempty"`
}

// TimeSeriesPoint is one day of the projected position under interest
// accrual. Day indices are contiguous, strictly increasing, starting at 0.
type TimeSeriesPoint struct {
	Day          int               `json:"t"`
	Collateral   sdkmath.LegacyDec `json:"collateral"`
	Debt         sdkmath.LegacyDec `json:"debt"`
	EquityUSD    sdkmath.LegacyDec `json:"equity_usd"`
	HealthFactor Ratio             `json:"hf"`
}

// StressOutcome is the result of evaluating one scenario against the
// post-loop position.
type StressOutcome struct {
	Scenario           string             `json:"scenario"` // stable label, see Scenario.Label
	MinHF              Ratio              `json:"min_hf"`
	Liquidated         bool               `json:"liquidated"`
	LiquidationLossUSD *sdkmath.LegacyDec `json:"liquidation_loss_usd,omitempty"`
}

// ActionLeg is a borrow or supply step of the action plan.
type ActionLeg struct {
	Asset  string            `json:"asset"`
	Amount sdkmath.LegacyDec `json:"amount"`
}

// SwapLeg describes the swap of one loop iteration, with optional route
// detail when the quote came from an external aggregator.
type SwapLeg struct {
	FromAsset string            `json:"from_asset"`
	ToAsset   string            `json:"to_asset"`
	AmountIn  sdkmath.LegacyDec `json:"amount_in"`
	AmountOut sdkmath.LegacyDec `json:"amount_out"`
	Route     json.RawMessage   `json:"route,omitempty"`
}

// ActionStep is one executed loop iteration of the action plan.
type ActionStep struct {
	Step   int       `json:"step"` // 1-based
	Borrow ActionLeg `json:"borrow"`
	Swap   SwapLeg   `json:"swap"`
	Supply ActionLeg `json:"supply"`
}

// Summary holds the headline post-loop metrics.
type Summary struct {
	LoopsDone           int               `json:"loops_done"`
	GrossLeverage       Ratio             `json:"gross_leverage"`
	NetAPR              float64           `json:"net_apr"`
	HealthFactorNow     Ratio             `json:"hf_now"`
	LiquidationPriceUSD Ratio             `json:"liquidation_price_usd"` // collateral price at which HF = 1
	SlippageFeesUSD     sdkmath.LegacyDec `json:"slippage_fees_usd"`
}

// Receipt carries audit metadata. Payment is a placeholder the transport
// layer fills from payment-protocol metadata after the run.
type Receipt struct {
	Payment        json.RawMessage `json:"payment"`
	ProvenanceHash string          `json:"provenance_hash"`
}

// SimulationResult is the complete output of one simulation run.
type SimulationResult struct {
	RunID                string            `json:"run_id"`
	EngineVersion        string            `json:"engine_version"`
	Timestamp            time.Time         `json:"timestamp"`
	Summary              Summary           `json:"summary"`
	TimeSeries           []TimeSeriesPoint `json:"time_series"`
	Stress               []StressOutcome   `json:"stress"`
	ActionPlan           []ActionStep      `json:"action_plan"`
	MarketParams         MarketParamsUsed  `json:"market_params"`
	ExecutionInadvisable bool              `json:"execution_inadvisable"`
	InadvisableReasons   []string          `json:"inadvisable_reasons,omitempty"`
	Receipt              Receipt           `json:"receipt"`
}
