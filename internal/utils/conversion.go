/*
This file contains common utility functions for converting between decimal
amounts, floats, and smallest-integer token units, with strict precision
handling.
*/

package utils

import (
	"errors"
	"fmt"
	"math"

	sdkmath "cosmossdk.io/math"
)

// Error definitions for zero-tolerance error handling
var (
	ErrInvalidPrecision = errors.New("precision is invalid")
	ErrAmountNegative   = errors.New("amount is negative")
	ErrNotFinite        = errors.New("value is not finite")
	ErrConversionFailed = errors.New("conversion failed")
)

// ParseAmount parses a decimal string into a non-negative LegacyDec.
func ParseAmount(s string) (sdkmath.LegacyDec, error) {
	dec, err := sdkmath.LegacyNewDecFromStr(s)
	if err != nil {
		return sdkmath.LegacyZeroDec(), fmt.Errorf("%w: %w", ErrConversionFailed, err)
	}
	if dec.IsNegative() {
		return sdkmath.LegacyZeroDec(), ErrAmountNegative
	}
	return dec, nil
}

// DecFromFloat converts a float64 to LegacyDec via string formatting to
// avoid binary floating point artifacts.
func DecFromFloat(amount float64) (sdkmath.LegacyDec, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return sdkmath.LegacyZeroDec(), fmt.Errorf("%w: amount is %f", ErrNotFinite, amount)
	}
	dec, err := sdkmath.LegacyNewDecFromStr(fmt.Sprintf("%.18f", amount))
	if err != nil {
		return sdkmath.LegacyZeroDec(), fmt.Errorf("%w: %w", ErrConversionFailed, err)
	}
	return dec, nil
}

// DecToFloat converts a LegacyDec to a finite float64.
func DecToFloat(amount sdkmath.LegacyDec) (float64, error) {
	f, err := amount.Float64()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrConversionFailed, err)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: result is %f", ErrNotFinite, f)
	}
	return f, nil
}

// ToBaseUnits scales a human-unit amount into the token's smallest integer
// unit, floor-rounded.
func ToBaseUnits(amount sdkmath.LegacyDec, decimals int) (sdkmath.Int, error) {
	if decimals < 0 || decimals > 18 {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %d (must be between 0 and 18)", ErrInvalidPrecision, decimals)
	}
	if amount.IsNegative() {
		return sdkmath.ZeroInt(), ErrAmountNegative
	}
	return amount.Mul(pow10(decimals)).TruncateInt(), nil
}

// FromBaseUnits rescales a smallest-unit integer amount back to human units.
func FromBaseUnits(raw sdkmath.Int, decimals int) (sdkmath.LegacyDec, error) {
	if decimals < 0 || decimals > 18 {
		return sdkmath.LegacyZeroDec(), fmt.Errorf("%w: %d (must be between 0 and 18)", ErrInvalidPrecision, decimals)
	}
	if raw.IsNegative() {
		return sdkmath.LegacyZeroDec(), ErrAmountNegative
	}
	return sdkmath.LegacyNewDecFromInt(raw).Quo(pow10(decimals)), nil
}

func pow10(decimals int) sdkmath.LegacyDec {
	factor := sdkmath.LegacyNewDec(1)
	ten := sdkmath.LegacyNewDec(10)
	for i := 0; i < decimals; i++ {
		factor = factor.Mul(ten)
	}
	return factor
}
