/*

Token metadata for the two legs of a simulated position. The address is
carried for disambiguation only; none of the engine math reads it.

*/

package types

type Token struct {
	Symbol   string `json:"symbol"`            // e.g., "WETH"
	Decimals int    `json:"decimals"`          // e.g., 18
	Address  string `json:"address,omitempty"` // optional on-chain address
}
