package types

import (
	"encoding/json"
	"math"
)

// Ratio is a float64 that may legitimately be +Inf (a debt-free position
// cannot be liquidated, so its health factor is infinite). encoding/json
// refuses non-finite floats, so non-finite values marshal as null.
type Ratio float64

// Inf returns the positive-infinity ratio.
func Inf() Ratio {
	return Ratio(math.Inf(1))
}

// IsInf reports whether the ratio is positive or negative infinity.
func (r Ratio) IsInf() bool {
	return math.IsInf(float64(r), 0)
}

// Float64 returns the underlying float64 value.
func (r Ratio) Float64() float64 {
	return float64(r)
}

func (r Ratio) MarshalJSON() ([]byte, error) {
	f := float64(r)
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return []byte("null"), nil
	}
	return json.Marshal(f)
}

func (r *Ratio) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*r = Inf()
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*r = Ratio(f)
	return nil
}
