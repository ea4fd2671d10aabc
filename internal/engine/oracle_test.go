package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loopscope/loopsim/internal/types"
)

func TestResolvePrice_NoConfigTracksSpot(t *testing.T) {
	state := NewOracleState(dec(t, "100"), 0)

	price, next := ResolvePrice(dec(t, "250"), 86400, state, nil)
	assert.True(t, price.Equal(dec(t, "250")))
	assert.True(t, next.Price.Equal(dec(t, "250")))
	assert.Equal(t, int64(86400), next.LastUpdate)
}

func TestResolvePrice_HoldsThenRefreshes(t *testing.T) {
	cfg := &types.OracleConfig{LagSeconds: 5 * 86400}
	state := NewOracleState(dec(t, "100"), 0)
	spot := dec(t, "200")

	// Inside the staleness window the held price stays visible.
	for day := int64(0); day < 5; day++ {
		price, next := ResolvePrice(spot, day*86400, state, cfg)
		require.True(t, price.Equal(dec(t, "100")), "day %d must still see the held price", day)
		state = next
	}

	// Exactly at the window boundary the oracle refreshes.
	price, next := ResolvePrice(spot, 5*86400, state, cfg)
	assert.True(t, price.Equal(spot))
	assert.Equal(t, int64(5*86400), next.LastUpdate)

	// The refreshed price is then held for the next window.
	price, _ = ResolvePrice(dec(t, "300"), 6*86400, next, cfg)
	assert.True(t, price.Equal(spot))
}

func TestResolvePrice_ZeroLagAlwaysRefreshes(t *testing.T) {
	cfg := &types.OracleConfig{LagSeconds: 0}
	state := NewOracleState(dec(t, "100"), 0)

	price, _ := ResolvePrice(dec(t, "175"), 0, state, cfg)
	assert.True(t, price.Equal(dec(t, "175")))
}
