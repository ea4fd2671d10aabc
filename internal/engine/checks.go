/*

Pre- and post-run risk checks. Both are advisory predicates: the pre-check
gates whether a request is allowed by policy before any iteration runs, the
post-check flags a completed result as execution-inadvisable. Neither aborts
a computation that is already underway.

*/

package engine

import (
	"fmt"
)

// CheckResult is the outcome of a risk check. Reasons is empty iff OK.
type CheckResult struct {
	OK      bool     `json:"ok"`
	Reasons []string `json:"reasons"`
}

// PreCheckParams carries the policy inputs of a pre-run check.
type PreCheckParams struct {
	TargetLTV    float64
	MarketLLTV   float64
	LoopCount    int
	MaxLoopCount int
}

// PreCheck validates the request against policy before the engine runs.
// Violations do not short-circuit; every reason is collected.
func PreCheck(p PreCheckParams) CheckResult {
	var reasons []string
	if p.TargetLTV <= 0 {
		reasons = append(reasons, fmt.Sprintf("target_ltv must be positive, got %v", p.TargetLTV))
	}
	if p.TargetLTV >= p.MarketLLTV {
		reasons = append(reasons, fmt.Sprintf("target_ltv %v must be strictly below market lltv %v", p.TargetLTV, p.MarketLLTV))
	}
	if p.LoopCount < 1 {
		reasons = append(reasons, fmt.Sprintf("loop_count must be a positive integer, got %d", p.LoopCount))
	}
	if p.MaxLoopCount > 0 && p.LoopCount > p.MaxLoopCount {
		reasons = append(reasons, fmt.Sprintf("loop_count %d exceeds policy maximum %d", p.LoopCount, p.MaxLoopCount))
	}
	return CheckResult{OK: len(reasons) == 0, Reasons: reasons}
}

// PostCheckParams carries the realized metrics and the caller's limits.
type PostCheckParams struct {
	MinHealthFactor  *float64
	MaxGrossLeverage *float64
	HealthFactorNow  float64
	GrossLeverage    float64
}

// PostCheck evaluates a completed run against the caller's risk limits.
// Multiple violations all appear in the reasons list.
func PostCheck(p PostCheckParams) CheckResult {
	var reasons []string
	if p.MinHealthFactor != nil && p.HealthFactorNow < *p.MinHealthFactor {
		reasons = append(reasons, fmt.Sprintf("health factor %.4f is below required minimum %.4f", p.HealthFactorNow, *p.MinHealthFactor))
	}
	if p.MaxGrossLeverage != nil && p.GrossLeverage > *p.MaxGrossLeverage {
		reasons = append(reasons, fmt.Sprintf("gross leverage %.4f exceeds allowed maximum %.4f", p.GrossLeverage, *p.MaxGrossLeverage))
	}
	return CheckResult{OK: len(reasons) == 0, Reasons: reasons}
}
