package hal

import (
	"fmt"
	"math"
)

// MaxCode returns 2^bits - 1.
func MaxCode(bits int) uint32 {
	return uint32(1)<<uint(bits) - 1
}

// DutyFromFraction converts a fraction of full scale to a duty count,
// rounding to the nearest count. The result saturates to [0, 2^bits-1],
// NaN maps to 0.
func DutyFromFraction(fraction float32, bits int) uint32 {
	max := MaxCode(bits)
	v := math.Round(float64(fraction) * float64(max))
	switch {
	case math.IsNaN(v) || v <= 0:
		return 0
	case v >= float64(max):
		return max
	}
	return uint32(v)
}

// VoltageFromCode converts an ADC code to volts.
func VoltageFromCode(code uint32, fullScale float64, bits int) float32 {
	return float32(float64(code) * fullScale / float64(MaxCode(bits)))
}

// ClampMode selects how out-of-range commanded fractions are handled.
type ClampMode int

const (
	// ClampDuty keeps the commanded fraction as received and only
	// saturates the duty count.
	ClampDuty ClampMode = iota
	// ClampFraction clamps the fraction to [0, 1] before it is applied
	// and recorded.
	ClampFraction
)

// String implements fmt.Stringer.
func (m ClampMode) String() string {
	switch m {
	case ClampDuty:
		return "duty"
	case ClampFraction:
		return "fraction"
	}
	return fmt.Sprintf("ClampMode(%d)", int(m))
}

// Apply returns the fraction to be applied and recorded.
func (m ClampMode) Apply(fraction float32) float32 {
	if m != ClampFraction {
		return fraction
	}
	switch {
	case math.IsNaN(float64(fraction)) || fraction < 0:
		return 0
	case fraction > 1:
		return 1
	}
	return fraction
}

func checkChannel(channel, count int) error {
	if channel < 0 || channel >= count {
		return fmt.Errorf("%w: %d", ErrChannel, channel)
	}
	return nil
}
