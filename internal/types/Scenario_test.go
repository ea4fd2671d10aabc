package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScenarioLabel(t *testing.T) {
	cases := []struct {
		name     string
		scenario Scenario
		want     string
	}{
		{
			"price jump",
			Scenario{Type: ScenarioPriceJump, Asset: "WETH", ShockPct: -0.3, AtDay: 5},
			"price_jump:WETH:-0.3:5",
		},
		{
			"price jump whole number shock",
			Scenario{Type: ScenarioPriceJump, Asset: "CBETH", ShockPct: -1, AtDay: 0},
			"price_jump:CBETH:-1:0",
		},
		{
			"rates shift",
			Scenario{Type: ScenarioRatesShift, BorrowAprDeltaBps: 200},
			"rates_shift:200",
		},
		{
			"rates shift fractional bps",
			Scenario{Type: ScenarioRatesShift, BorrowAprDeltaBps: 12.5},
			"rates_shift:12.5",
		},
		{
			"oracle lag",
			Scenario{Type: ScenarioOracleLag, LagSeconds: 864000},
			"oracle_lag:864000",
		},
		{
			"unknown type passes through",
			Scenario{Type: "flash_crash"},
			"flash_crash",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.scenario.Label())
		})
	}
}

func TestScenarioLabel_Stable(t *testing.T) {
	sc := Scenario{Type: ScenarioPriceJump, Asset: "WETH", ShockPct: -0.25, AtDay: 3}
	assert.Equal(t, sc.Label(), sc.Label())
}
