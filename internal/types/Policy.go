package types

// RiskPolicy holds the service-level limits a deployment enforces on every
// simulation request, regardless of what the caller asks for.
type RiskPolicy struct {
	MaxLoopCount       int `json:"max_loop_count"`       // upper bound on requested loop iterations
	MaxHorizonDays     int `json:"max_horizon_days"`     // upper bound on the projection horizon
	DefaultHorizonDays int `json:"default_horizon_days"` // applied when the request omits a horizon
	MaxScenarios       int `json:"max_scenarios"`        // upper bound on stress scenarios per request
}
