/*

This file contains the resolved market-parameter snapshot consumed by the
looping engine, and the query used to resolve one. Snapshots come from the
marketdata resolver (static fixtures or a live source); the engine treats
them as read-only.

*/

package types

import (
	sdkmath "cosmossdk.io/math"
)

// MarketQuery identifies a lending market to resolve. Either symbols or
// explicit token addresses may be used; addresses win when both are present.
type MarketQuery struct {
	Protocol          string `json:"protocol"` // e.g., "morpho"
	Chain             string `json:"chain"`    // e.g., "base"
	CollateralSymbol  string `json:"collateral_symbol"`
	DebtSymbol        string `json:"debt_symbol"`
	CollateralAddress string `json:"collateral_address,omitempty"`
	DebtAddress       string `json:"debt_address,omitempty"`
}

// MarketSnapshot holds the protocol parameters a simulation runs against.
// Invariant: 0 < LLTV < 1.
type MarketSnapshot struct {
	Protocol             string                       `json:"protocol"`
	Chain                string                       `json:"chain"`
	LLTV                 sdkmath.LegacyDec            `json:"lltv"`                  // liquidation loan-to-value, fraction
	LiquidationIncentive sdkmath.LegacyDec            `json:"liquidation_incentive"` // bonus paid to liquidators, fraction
	CloseFactor          sdkmath.LegacyDec            `json:"close_factor"`          // max share of debt repayable per liquidation
	IRM                  string                       `json:"irm"`                   // interest-rate-model identifier
	OracleType           string                       `json:"oracle_type"`           // e.g., "chainlink"
	PricesUSD            map[string]sdkmath.LegacyDec `json:"prices_usd"`            // default USD unit prices by symbol
	SupplyAPR            float64                      `json:"supply_apr"`            // annualized, fraction
	BorrowAPR            float64                      `json:"borrow_apr"`            // annualized, fraction
	CollateralToken      Token                        `json:"collateral_token"`
	DebtToken            Token                        `json:"debt_token"`
}

// MarketParamsUsed echoes the parameters a run actually used, after
// overrides were applied. Embedded in every SimulationResult.
type MarketParamsUsed struct {
	Protocol             string                       `json:"protocol"`
	Chain                string                       `json:"chain"`
	LLTV                 sdkmath.LegacyDec            `json:"lltv"`
	LiquidationIncentive sdkmath.LegacyDec            `json:"liquidation_incentive"`
	CloseFactor          sdkmath.LegacyDec            `json:"close_factor"`
	IRM                  string                       `json:"irm"`
	OracleType           string                       `json:"oracle_type"`
	SupplyAPR            float64                      `json:"supply_apr"`
	BorrowAPR            float64                      `json:"borrow_apr"`
	PricesUSD            map[string]sdkmath.LegacyDec `json:"prices_usd"`
}
