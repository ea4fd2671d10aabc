/*

Stress-scenario specs and their stable string labels. Labels are
reproducible from the spec alone so callers can correlate outcomes
with the scenarios they submitted.

*/

package types

import (
	"strconv"
)

// Scenario discriminants.
const (
	ScenarioPriceJump  = "price_jump"
	ScenarioRatesShift = "rates_shift"
	ScenarioOracleLag  = "oracle_lag"
)

// Scenario is a single stress-scenario spec. Type selects the discriminant;
// the remaining fields are read according to it.
type Scenario struct {
	Type string `json:"type"`

	// price_jump
	Asset    string  `json:"asset,omitempty"`     // symbol the shock applies to
	ShockPct float64 `json:"shock_pct,omitempty"` // e.g., -0.3 for a 30% drop
	AtDay    int     `json:"at_day,omitempty"`    // first day the shock applies

	// rates_shift
	BorrowAprDeltaBps float64 `json:"borrow_apr_delta_bps,omitempty"`

	// oracle_lag
	LagSeconds int64 `json:"lag_seconds,omitempty"`
}

// Label returns the stable "<type>:<param1>:<param2>..." encoding of the
// scenario. Two identical specs always produce identical labels.
func (s Scenario) Label() string {
	switch s.Type {
	case ScenarioPriceJump:
		return s.Type + ":" + s.Asset + ":" + fmtScenarioFloat(s.ShockPct) + ":" + strconv.Itoa(s.AtDay)
	case ScenarioRatesShift:
		return s.Type + ":" + fmtScenarioFloat(s.BorrowAprDeltaBps)
	case ScenarioOracleLag:
		return s.Type + ":" + strconv.FormatInt(s.LagSeconds, 10)
	default:
		return s.Type
	}
}

func fmtScenarioFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
