// Package l3filter converts raw ADC windows to calibrated microvolt
// signals and applies the band filtering that separates eye-movement (EOG)
// activity from brain-rhythm (EEG) activity.
//
// Every fallible step returns an explicit error instead of swallowing it;
// the Preprocessor chooses the documented fallback (usually the unfiltered
// input) so the pipeline degrades rather than halts.
package l3filter

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrBandEdge reports a filter band that does not fit inside the
	// valid normalized frequency range for the sample rate.
	ErrBandEdge = errors.New("band edge outside (0, nyquist)")

	// ErrUnstable reports a numerically unstable filter run (NaN or Inf
	// in the output).
	ErrUnstable = errors.New("filter output unstable")
)

// biquad is one second-order IIR section in direct form II transposed.
// Coefficients are normalized so a0 == 1.
type biquad struct {
	b0, b1, b2 float64
	a1, a2     float64
}

// apply runs the section over x into a fresh slice.
func (s biquad) apply(x []float64) []float64 {
	out := make([]float64, len(x))
	var z1, z2 float64
	for i, v := range x {
		y := s.b0*v + z1
		z1 = s.b1*v - s.a1*y + z2
		z2 = s.b2*v - s.a2*y
		out[i] = y
	}
	return out
}

// butterworthQ returns the per-section Q values for a Butterworth filter
// of the given even order, one Q per cascaded biquad.
func butterworthQ(order int) []float64 {
	n := order / 2
	qs := make([]float64, n)
	for k := 0; k < n; k++ {
		// Pole angle for the k-th conjugate pair.
		theta := math.Pi * float64(2*k+1) / float64(2*order)
		qs[k] = 1 / (2 * math.Sin(theta))
	}
	return qs
}

// normalize validates a corner frequency against the sample rate and
// returns the pre-warped digital angular frequency.
func normalize(cutoffHz, sampleRate float64) (float64, error) {
	nyquist := sampleRate / 2
	if cutoffHz <= 0 || cutoffHz >= nyquist {
		return 0, fmt.Errorf("%w: %.2f Hz at fs=%.0f", ErrBandEdge, cutoffHz, sampleRate)
	}
	return 2 * math.Pi * cutoffHz / sampleRate, nil
}

// lowpassSection builds one RBJ low-pass biquad.
func lowpassSection(w0, q float64) biquad {
	cw, sw := math.Cos(w0), math.Sin(w0)
	alpha := sw / (2 * q)
	a0 := 1 + alpha
	return biquad{
		b0: (1 - cw) / 2 / a0,
		b1: (1 - cw) / a0,
		b2: (1 - cw) / 2 / a0,
		a1: -2 * cw / a0,
		a2: (1 - alpha) / a0,
	}
}

// highpassSection builds one RBJ high-pass biquad.
func highpassSection(w0, q float64) biquad {
	cw, sw := math.Cos(w0), math.Sin(w0)
	alpha := sw / (2 * q)
	a0 := 1 + alpha
	return biquad{
		b0: (1 + cw) / 2 / a0,
		b1: -(1 + cw) / a0,
		b2: (1 + cw) / 2 / a0,
		a1: -2 * cw / a0,
		a2: (1 - alpha) / a0,
	}
}

// notchSection builds one RBJ notch biquad centred on w0 with the given Q.
func notchSection(w0, q float64) biquad {
	cw, sw := math.Cos(w0), math.Sin(w0)
	alpha := sw / (2 * q)
	a0 := 1 + alpha
	return biquad{
		b0: 1 / a0,
		b1: -2 * cw / a0,
		b2: 1 / a0,
		a1: -2 * cw / a0,
		a2: (1 - alpha) / a0,
	}
}

// runSections cascades the sections over x and validates the result.
func runSections(x []float64, sections []biquad) ([]float64, error) {
	out := x
	for _, s := range sections {
		out = s.apply(out)
	}
	for _, v := range out {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, ErrUnstable
		}
	}
	return out, nil
}

// LowPass filters x with a Butterworth low-pass of the given even order.
func LowPass(x []float64, cutoffHz, sampleRate float64, order int) ([]float64, error) {
	w0, err := normalize(cutoffHz, sampleRate)
	if err != nil {
		return nil, err
	}
	sections := make([]biquad, 0, order/2)
	for _, q := range butterworthQ(order) {
		sections = append(sections, lowpassSection(w0, q))
	}
	return runSections(x, sections)
}

// HighPass filters x with a Butterworth high-pass of the given even order.
func HighPass(x []float64, cutoffHz, sampleRate float64, order int) ([]float64, error) {
	w0, err := normalize(cutoffHz, sampleRate)
	if err != nil {
		return nil, err
	}
	sections := make([]biquad, 0, order/2)
	for _, q := range butterworthQ(order) {
		sections = append(sections, highpassSection(w0, q))
	}
	return runSections(x, sections)
}

// BandPass filters x by cascading a high-pass at lowHz with a low-pass at
// highHz, each of the given even order. The upper edge is clamped below
// the Nyquist frequency so wide analysis bands degrade instead of failing.
func BandPass(x []float64, lowHz, highHz, sampleRate float64, order int) ([]float64, error) {
	nyquist := sampleRate / 2
	if highHz >= nyquist {
		highHz = nyquist * 0.99
	}
	if lowHz >= highHz {
		return nil, fmt.Errorf("%w: band %.2f-%.2f Hz", ErrBandEdge, lowHz, highHz)
	}
	out, err := HighPass(x, lowHz, sampleRate, order)
	if err != nil {
		return nil, err
	}
	return LowPass(out, highHz, sampleRate, order)
}

// Notch suppresses a narrow band centred between lowHz and highHz (the
// power-line band). It returns ErrBandEdge when the band does not fit
// below Nyquist, which callers treat as "skip, keep the input".
func Notch(x []float64, lowHz, highHz, sampleRate float64) ([]float64, error) {
	nyquist := sampleRate / 2
	if lowHz <= 0 || highHz >= nyquist || lowHz >= highHz {
		return nil, fmt.Errorf("%w: notch %.2f-%.2f Hz at fs=%.0f", ErrBandEdge, lowHz, highHz, sampleRate)
	}
	centre := (lowHz + highHz) / 2
	q := centre / (highHz - lowHz)
	w0, err := normalize(centre, sampleRate)
	if err != nil {
		return nil, err
	}
	return runSections(x, []biquad{notchSection(w0, q)})
}
