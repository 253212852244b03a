package l3filter

import (
	"gonum.org/v1/gonum/stat"

	"github.com/synapse-data/gaze.report/internal/monitoring"
	"github.com/synapse-data/gaze.report/internal/units"
)

const (
	// Analysis pass-band for the raw signal. The upper edge is clamped
	// below Nyquist by BandPass for low sample rates.
	bandLowHz  = 0.5
	bandHighHz = 100.0
	bandOrder  = 4

	// Power-line interference band.
	notchLowHz  = 48.0
	notchHighHz = 52.0

	// Sub-band split: eye movement (EOG) lives below splitHz, brain
	// rhythms above it.
	splitHz    = 10.0
	splitOrder = 4

	// minFilterLen is the shortest window worth filtering; shorter input
	// is returned unchanged (warm-up, not an error).
	minFilterLen = 10

	// minBaselineLen is the shortest window worth baseline-correcting.
	minBaselineLen = 5

	// maxBaselineWindow caps the moving-average smoothing window.
	maxBaselineWindow = 21
)

// Preprocessor converts raw ADC windows to filtered microvolt signals. A
// zero SampleRate falls back to the headset default.
type Preprocessor struct {
	SampleRate float64
}

// NewPreprocessor creates a preprocessor for the given sample rate.
func NewPreprocessor(sampleRate float64) *Preprocessor {
	if sampleRate <= 0 {
		sampleRate = units.DefaultSampleRate
	}
	return &Preprocessor{SampleRate: sampleRate}
}

// Preprocess runs the full conditioning chain: µV conversion, band-pass,
// notch, baseline correction. Filter failures fall back to the unfiltered
// signal so the pipeline never halts; detection accuracy degrades instead.
func (p *Preprocessor) Preprocess(raw []int64) []float64 {
	uv := units.ConvertToMicrovolts(raw)
	if len(uv) < minFilterLen {
		return uv
	}

	filtered, err := BandPass(uv, bandLowHz, bandHighHz, p.SampleRate, bandOrder)
	if err != nil {
		monitoring.Logf("[l3filter] band-pass failed (%v), using unfiltered signal", err)
		filtered = uv
	}

	if notched, err := Notch(filtered, notchLowHz, notchHighHz, p.SampleRate); err == nil {
		filtered = notched
	}
	// Notch errors are expected at low sample rates; skip silently.

	return p.BaselineCorrect(filtered)
}

// SplitBands separates a conditioned signal into the low-frequency EOG
// component and the high-frequency EEG rhythm component. Either half falls
// back to the input on filter failure.
func (p *Preprocessor) SplitBands(x []float64) (eog, rhythm []float64) {
	if len(x) < minFilterLen {
		return x, x
	}

	eog, err := LowPass(x, splitHz, p.SampleRate, splitOrder)
	if err != nil {
		monitoring.Logf("[l3filter] EOG low-pass failed (%v), using input", err)
		eog = x
	}
	rhythm, err = HighPass(x, splitHz, p.SampleRate, splitOrder)
	if err != nil {
		monitoring.Logf("[l3filter] rhythm high-pass failed (%v), using input", err)
		rhythm = x
	}
	return eog, rhythm
}

// BaselineCorrect removes slow drift by subtracting a moving-average
// smoothed copy of the signal, re-centred on the smoothed mean so the DC
// level is preserved. Inputs under five samples are returned unchanged.
func (p *Preprocessor) BaselineCorrect(x []float64) []float64 {
	if len(x) < minBaselineLen {
		return x
	}

	window := len(x) / 3
	if window > maxBaselineWindow {
		window = maxBaselineWindow
	}
	if window < 1 {
		window = 1
	}

	smooth := movingAverage(x, window)
	centre := stat.Mean(smooth, nil)
	out := make([]float64, len(x))
	for i := range x {
		out[i] = x[i] - smooth[i] + centre
	}
	return out
}

// movingAverage smooths x with a centred window, shrinking the window at
// the edges.
func movingAverage(x []float64, window int) []float64 {
	out := make([]float64, len(x))
	half := window / 2
	for i := range x {
		lo := i - half
		if lo < 0 {
			lo = 0
		}
		hi := i + half + 1
		if hi > len(x) {
			hi = len(x)
		}
		out[i] = stat.Mean(x[lo:hi], nil)
	}
	return out
}
