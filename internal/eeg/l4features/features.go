package l4features

import (
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/synapse-data/gaze.report/internal/eeg"
	"github.com/synapse-data/gaze.report/internal/units"
)

const (
	// MinWindow is the shortest signal span worth transforming. Shorter
	// input yields a zero feature vector, which the classifier reads as
	// "no event".
	MinWindow = 200 * time.Millisecond

	// PeakHalfWindow bounds the signal excerpt analyzed around the peak
	// wavelet response.
	PeakHalfWindow = 100 * time.Millisecond
)

// DeriveComponents folds the two frontal channels into the horizontal and
// vertical analysis streams. AF3 and AF4 move in antiphase on horizontal
// saccades and in phase on vertical movement and blinks, so the difference
// isolates horizontal activity and the mean isolates vertical activity.
// The horizontal component is AF3-AF4, the left-minus-right discriminant.
// Output length is the shorter of the two inputs.
func DeriveComponents(af3, af4 []float64) (horizontal, vertical []float64) {
	n := len(af3)
	if len(af4) < n {
		n = len(af4)
	}
	horizontal = make([]float64, n)
	vertical = make([]float64, n)
	for i := 0; i < n; i++ {
		horizontal[i] = af3[i] - af4[i]
		vertical[i] = (af3[i] + af4[i]) / 2
	}
	return horizontal, vertical
}

// Extractor turns a conditioned signal window into the scalar descriptors
// the classifier thresholds against.
type Extractor struct {
	SampleRate float64
}

// NewExtractor creates an extractor for the given sample rate. A zero rate
// falls back to the headset default.
func NewExtractor(sampleRate float64) *Extractor {
	if sampleRate <= 0 {
		sampleRate = units.DefaultSampleRate
	}
	return &Extractor{SampleRate: sampleRate}
}

// Extract computes the feature vector for one signal window. Windows
// shorter than MinWindow, and any transform failure, yield the zero vector
// so downstream stages see "nothing detected" rather than an error.
func (e *Extractor) Extract(signal []float64) eeg.FeatureVector {
	if len(signal) < units.SamplesFor(MinWindow, e.SampleRate) {
		return eeg.FeatureVector{}
	}

	coeffs, err := CWT(signal)
	if err != nil {
		return eeg.FeatureVector{}
	}

	var fv eeg.FeatureVector
	peakIdx := 0
	for _, row := range coeffs {
		for t, v := range row {
			fv.Energy += v * v
			if a := abs(v); a > fv.MaxCoeff {
				fv.MaxCoeff = a
				peakIdx = t
			}
		}
	}

	// Analyze the raw signal in a window around the peak response.
	half := units.SamplesFor(PeakHalfWindow, e.SampleRate)
	lo := peakIdx - half
	if lo < 0 {
		lo = 0
	}
	hi := peakIdx + half + 1
	if hi > len(signal) {
		hi = len(signal)
	}
	window := signal[lo:hi]
	if len(window) < 2 {
		return eeg.FeatureVector{}
	}

	fv.AUC = lobeArea(window, e.SampleRate)
	fv.Amplitude = signedAmplitude(window)
	fv.Velocity = maxSlope(window) * e.SampleRate
	return fv
}

// signedAmplitude is the peak-to-peak swing, negated when the dominant
// deflection points downward. The sign carries the movement direction.
func signedAmplitude(x []float64) float64 {
	pk, tr := floats.Max(x), floats.Min(x)
	amp := pk - tr
	if -tr > pk {
		return -amp
	}
	return amp
}

// lobeArea integrates |x| by trapezoids so positive and negative lobes of
// a biphasic deflection add instead of cancelling.
func lobeArea(x []float64, sampleRate float64) float64 {
	dt := 1 / sampleRate
	var area float64
	for i := 0; i+1 < len(x); i++ {
		area += abs((x[i] + x[i+1]) / 2 * dt)
	}
	return area
}

// maxSlope returns the largest absolute sample-to-sample difference.
func maxSlope(x []float64) float64 {
	var peak float64
	for i := 0; i+1 < len(x); i++ {
		if d := abs(x[i+1] - x[i]); d > peak {
			peak = d
		}
	}
	return peak
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
