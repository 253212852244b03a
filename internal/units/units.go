// Package units provides shared signal unit constants and conversions
// between raw ADC counts and physical microvolt values.
package units

import "time"

// ADC characteristics of the headset front-end.
const (
	// ADCBaseline is the 24-bit mid-scale count representing 0 V.
	ADCBaseline = 8388608

	// ADCMax is the largest representable 24-bit count.
	ADCMax = 16777215

	// ReferenceVolts is the front-end reference voltage span.
	ReferenceVolts = 1.6

	// Gain is the fixed analog gain divisor applied during conversion.
	Gain = 2.0

	// DefaultSampleRate is the per-channel sampling rate in Hz.
	DefaultSampleRate = 244.0
)

// CountsToMicrovolts converts one raw ADC count to microvolts using the
// fixed linear transform of the front-end:
//
//	uV = 1e6 * (raw - baseline) * 1.6 / baseline / 2
func CountsToMicrovolts(raw int64) float64 {
	return 1e6 * float64(raw-ADCBaseline) * ReferenceVolts / ADCBaseline / Gain
}

// MicrovoltsToCounts inverts CountsToMicrovolts, clamping to the valid
// 24-bit range. Used by the mock generator to produce wire-format values.
func MicrovoltsToCounts(uv float64) int64 {
	raw := int64(uv*ADCBaseline*Gain/ReferenceVolts/1e6) + ADCBaseline
	if raw < 0 {
		return 0
	}
	if raw > ADCMax {
		return ADCMax
	}
	return raw
}

// ConvertToMicrovolts converts a window of raw counts in one pass.
func ConvertToMicrovolts(raw []int64) []float64 {
	out := make([]float64, len(raw))
	for i, v := range raw {
		out[i] = CountsToMicrovolts(v)
	}
	return out
}

// SamplesFor returns the number of samples covering duration d at the
// given sample rate, rounded down with a floor of zero.
func SamplesFor(d time.Duration, sampleRate float64) int {
	n := int(d.Seconds() * sampleRate)
	if n < 0 {
		return 0
	}
	return n
}
