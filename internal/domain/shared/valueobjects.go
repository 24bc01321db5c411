package shared

import "math"

// ═══════════════════════════════════════════════════════════════════════════
// Numeric Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// Ratio is a fraction in [0, 1].
type Ratio float64

// IsValid checks that the ratio lies in [0, 1].
func (r Ratio) IsValid() bool {
	return r >= 0 && r <= 1
}

// Float64 returns the underlying value.
func (r Ratio) Float64() float64 {
	return float64(r)
}

// RatioOf returns part/total, or 0 when total is zero.
func RatioOf(part, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(part) / float64(total)
}

// Ordinal is a survey answer mapped onto the 0..3 scale.
type Ordinal int

const (
	OrdinalMin Ordinal = 0
	OrdinalMax Ordinal = 3
)

// IsValid checks that the ordinal lies in 0..3.
func (o Ordinal) IsValid() bool {
	return o >= OrdinalMin && o <= OrdinalMax
}

// Unit maps the ordinal onto [0, 1].
func (o Ordinal) Unit() float64 {
	return float64(o) / float64(OrdinalMax)
}

// Round2 rounds to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Mean returns the arithmetic mean, or 0 for an empty input.
func Mean(values ...float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
