/*

Oracle-lag model. A heartbeat oracle holds its last published price until the
staleness window elapses, then refreshes to the current spot price. This is a
pure state-transition function; callers thread the returned state into the
next call.

*/

package engine

import (
	sdkmath "cosmossdk.io/math"

	"github.com/loopscope/loopsim/internal/types"
)

// OracleState is the held price and the timestamp it was last refreshed at.
type OracleState struct {
	Price      sdkmath.LegacyDec
	LastUpdate int64 // unix seconds
}

// NewOracleState seeds the state with an initial published price.
func NewOracleState(price sdkmath.LegacyDec, timestamp int64) OracleState {
	return OracleState{Price: price, LastUpdate: timestamp}
}

// ResolvePrice returns the price visible at timestamp given the lagged state.
// With no config the live spot price is always visible and the state resets
// to it. With a lag window, the held price stays visible until the window
// elapses.
func ResolvePrice(spot sdkmath.LegacyDec, timestamp int64, state OracleState, cfg *types.OracleConfig) (sdkmath.LegacyDec, OracleState) {
	if cfg == nil {
		return spot, OracleState{Price: spot, LastUpdate: timestamp}
	}
	if timestamp-state.LastUpdate < cfg.LagSeconds {
		return state.Price, state
	}
	return spot, OracleState{Price: spot, LastUpdate: timestamp}
}
