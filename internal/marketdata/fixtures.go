/*

Static market fixtures. These are the markets the service advertises when no
live market-data source is configured; values are representative snapshots,
not live parameters.

*/

package marketdata

import (
	sdkmath "cosmossdk.io/math"

	"github.com/loopscope/loopsim/internal/types"
)

func dec(s string) sdkmath.LegacyDec {
	return sdkmath.LegacyMustNewDecFromStr(s)
}

var fixtureList = []types.MarketSnapshot{
	{
		Protocol:             "morpho",
		Chain:                "base",
		LLTV:                 dec("0.86"),
		LiquidationIncentive: dec("0.05"),
		CloseFactor:          dec("1.0"),
		IRM:                  "adaptive-curve",
		OracleType:           "chainlink",
		PricesUSD: map[string]sdkmath.LegacyDec{
			"WETH": dec("2000"),
			"USDC": dec("1"),
		},
		SupplyAPR:       0.031,
		BorrowAPR:       0.046,
		CollateralToken: types.Token{Symbol: "WETH", Decimals: 18, Address: "0x4200000000000000000000000000000000000006"},
		DebtToken:       types.Token{Symbol: "USDC", Decimals: 6, Address: "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"},
	},
	{
		Protocol:             "morpho",
		Chain:                "base",
		LLTV:                 dec("0.945"),
		LiquidationIncentive: dec("0.03"),
		CloseFactor:          dec("1.0"),
		IRM:                  "adaptive-curve",
		OracleType:           "exchange-rate",
		PricesUSD: map[string]sdkmath.LegacyDec{
			"CBETH": dec("2140"),
			"WETH":  dec("2000"),
		},
		SupplyAPR:       0.012,
		BorrowAPR:       0.024,
		CollateralToken: types.Token{Symbol: "CBETH", Decimals: 18, Address: "0x2Ae3F1Ec7F1F5012CFEab0185bfc7aa3cf0DEc22"},
		DebtToken:       types.Token{Symbol: "WETH", Decimals: 18, Address: "0x4200000000000000000000000000000000000006"},
	},
	{
		Protocol:             "aave",
		Chain:                "ethereum",
		LLTV:                 dec("0.825"),
		LiquidationIncentive: dec("0.05"),
		CloseFactor:          dec("0.5"),
		IRM:                  "default-reserve",
		OracleType:           "chainlink",
		PricesUSD: map[string]sdkmath.LegacyDec{
			"WSTETH": dec("2350"),
			"USDC":   dec("1"),
		},
		SupplyAPR:       0.028,
		BorrowAPR:       0.052,
		CollateralToken: types.Token{Symbol: "WSTETH", Decimals: 18, Address: "0x7f39C581F595B53c5cb19bD0b3f8dA6c935E2Ca0"},
		DebtToken:       types.Token{Symbol: "USDC", Decimals: 6, Address: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"},
	},
}

var fixtureTable = buildFixtureTable()

func buildFixtureTable() map[string]types.MarketSnapshot {
	table := make(map[string]types.MarketSnapshot, len(fixtureList))
	for _, snapshot := range fixtureList {
		query := types.MarketQuery{
			Protocol:         snapshot.Protocol,
			Chain:            snapshot.Chain,
			CollateralSymbol: snapshot.CollateralToken.Symbol,
			DebtSymbol:       snapshot.DebtToken.Symbol,
		}
		table[queryKey(query)] = snapshot
	}
	return table
}

// Fixtures returns the advertised fixture markets.
func Fixtures() []types.MarketSnapshot {
	out := make([]types.MarketSnapshot, len(fixtureList))
	copy(out, fixtureList)
	return out
}
