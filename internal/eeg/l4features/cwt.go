// Package l4features reduces a conditioned signal window to the scalar
// wavelet descriptors the classifier decides on: peak coefficient, area
// under the curve, peak-to-peak amplitude, velocity and total scalogram
// energy.
package l4features

import (
	"errors"
	"math"

	"github.com/mjibson/go-dsp/fft"
)

const (
	// Scales of the continuous wavelet transform. Scale 1 resolves the
	// sharpest transients (blinks); scale 31 reaches the slow saccade
	// band at 244 Hz.
	MinScale = 1
	MaxScale = 31

	// morletOmega is the centre frequency of the real Morlet wavelet
	// psi(t) = exp(-t^2/2) * cos(omega*t).
	morletOmega = 5.0

	// kernelHalfSupport bounds the sampled wavelet support in units of
	// the scale; the envelope is negligible beyond four scale widths.
	kernelHalfSupport = 4
)

// ErrEmptySignal reports a transform request over no samples.
var ErrEmptySignal = errors.New("empty signal")

// morletKernel samples the scaled Morlet wavelet, normalized by 1/sqrt(a)
// so coefficient magnitudes are comparable across scales.
func morletKernel(scale float64) []float64 {
	half := int(kernelHalfSupport * scale)
	if half < 1 {
		half = 1
	}
	kernel := make([]float64, 2*half+1)
	norm := 1 / math.Sqrt(scale)
	for k := range kernel {
		t := float64(k-half) / scale
		kernel[k] = norm * math.Exp(-t*t/2) * math.Cos(morletOmega*t)
	}
	return kernel
}

// CWT computes the continuous wavelet transform of signal over the fixed
// scale bank, returning one coefficient row per scale with the same length
// as the input ("same" convolution alignment).
func CWT(signal []float64) ([][]float64, error) {
	n := len(signal)
	if n == 0 {
		return nil, ErrEmptySignal
	}

	rows := make([][]float64, 0, MaxScale-MinScale+1)
	for scale := MinScale; scale <= MaxScale; scale++ {
		kernel := morletKernel(float64(scale))
		full := convolve(signal, kernel)
		// Centre-align: take the middle n samples of the full
		// convolution so row index t corresponds to signal index t.
		offset := (len(kernel) - 1) / 2
		row := make([]float64, n)
		copy(row, full[offset:offset+n])
		rows = append(rows, row)
	}
	return rows, nil
}

// convolve computes the full linear convolution of x and kernel via FFT,
// returning len(x)+len(kernel)-1 samples.
func convolve(x, kernel []float64) []float64 {
	full := len(x) + len(kernel) - 1
	xs := make([]complex128, full)
	ks := make([]complex128, full)
	for i, v := range x {
		xs[i] = complex(v, 0)
	}
	for i, v := range kernel {
		ks[i] = complex(v, 0)
	}

	fx := fft.FFT(xs)
	fk := fft.FFT(ks)
	for i := range fx {
		fx[i] *= fk[i]
	}
	inv := fft.IFFT(fx)

	out := make([]float64, full)
	for i, v := range inv {
		out[i] = real(v)
	}
	return out
}

// Scalogram squares the coefficient surface into an energy map.
func Scalogram(coeffs [][]float64) [][]float64 {
	out := make([][]float64, len(coeffs))
	for i, row := range coeffs {
		sq := make([]float64, len(row))
		for j, v := range row {
			sq[j] = v * v
		}
		out[i] = sq
	}
	return out
}
