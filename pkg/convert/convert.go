package convert

import (
	"errors"
	"math"
)

// ErrInvalidReading marks a raw count that cannot be converted to a finite
// capacitance (a zero count, or one that pushes the LC relation out of range).
var ErrInvalidReading = errors.New("invalid sensor reading")

// fullScale is the range of the FDC2214's 28-bit frequency counter.
const fullScale = float64(1 << 28)

// Constants holds the resonant-circuit parameters used to map a raw
// frequency count onto a capacitance. All values are SI units.
type Constants struct {
	ReferenceClock float64 // sensor reference clock, Hz
	Inductance     float64 // sensing-network inductance, H
	BoardCap       float64 // fixed board capacitance, F
	ParasiticCap   float64 // wiring parasitics, F
}

// Default returns the constants for the reference sensing board:
// 40 MHz external oscillator, 18 uH inductor, 33 pF board capacitor
// and 3 pF of parasitics.
func Default() Constants {
	return Constants{
		ReferenceClock: 40e6,
		Inductance:     18e-6,
		BoardCap:       33e-12,
		ParasiticCap:   3e-12,
	}
}

// Convert maps a raw 28-bit frequency count onto the sensed capacitance in
// picofarads. The count is first scaled to the oscillation frequency, the LC
// resonance relation gives the total tank capacitance, and the fixed board
// and parasitic contributions are subtracted out.
//
// Higher counts mean higher frequency and therefore lower capacitance, so
// the result is strictly decreasing in raw. A count of zero (sensor not
// oscillating, or conversion never completed) has no finite capacitance and
// is reported as ErrInvalidReading instead of propagating Inf downstream.
func (c Constants) Convert(raw uint32) (float64, error) {
	if raw == 0 {
		return 0, ErrInvalidReading
	}
	f := float64(raw) * c.ReferenceClock / fullScale
	w := 2 * math.Pi * f
	total := 1 / (w * w * c.Inductance)
	sensed := total - (c.BoardCap + c.ParasiticCap)
	pf := sensed * 1e12
	if math.IsNaN(pf) || math.IsInf(pf, 0) {
		return 0, ErrInvalidReading
	}
	return pf, nil
}

// Frequency returns the oscillation frequency in Hz represented by a raw
// count.
func (c Constants) Frequency(raw uint32) float64 {
	return float64(raw) * c.ReferenceClock / fullScale
}

// RawForCapacitance is the inverse of Convert: the raw count the sensor
// would report for a node of the given capacitance in picofarads. Used by
// the simulated sensor to fabricate realistic counts. The result is clamped
// to the counter's 28-bit range.
func (c Constants) RawForCapacitance(pf float64) uint32 {
	total := pf*1e-12 + c.BoardCap + c.ParasiticCap
	if total <= 0 {
		return 1<<28 - 1
	}
	f := 1 / (2 * math.Pi * math.Sqrt(c.Inductance*total))
	raw := f * fullScale / c.ReferenceClock
	if raw < 1 {
		return 1
	}
	if raw > 1<<28-1 {
		return 1<<28 - 1
	}
	return uint32(raw)
}
