package l5classify

import (
	"math"
	"sync"

	"gonum.org/v1/gonum/stat"

	"github.com/synapse-data/gaze.report/internal/eeg"
	"github.com/synapse-data/gaze.report/internal/eeg/l3filter"
	"github.com/synapse-data/gaze.report/internal/units"
)

// Band-power rhythm bands in Hz.
const (
	alphaLowHz  = 8
	alphaHighHz = 13
	betaLowHz   = 13
	betaHighHz  = 30

	bandOrder = 2

	// betaDiffHistoryCap bounds the hemispheric beta-difference history
	// used for the adaptive threshold.
	betaDiffHistoryCap = 50

	// minBetaDiffSamples is the history size below which the adaptive
	// threshold falls back to a fixed spread estimate.
	minBetaDiffSamples = 10

	fallbackBetaSpread = 0.1
	floorThreshold     = 0.02

	// Quiet-signal gates of the legacy tree.
	restAlphaCeiling   = 0.1
	restBetaCeiling    = 0.3
	activeBetaFloor    = 0.05
	relaxedAlphaFloor  = 1.0
	balancedAlphaLimit = 0.2
)

// BandFeatures holds per-channel rhythm amplitudes and their ratios.
type BandFeatures struct {
	Alpha      float64
	Beta       float64
	AlphaRatio float64
	BetaRatio  float64
}

// BandClassifier is the hemispheric alpha/beta rhythm classifier kept for
// mental-imagery sessions. Unlike the wavelet tree it adapts its decision
// threshold to the running spread of the beta asymmetry.
type BandClassifier struct {
	mu         sync.Mutex
	sampleRate float64
	betaDiffs  []float64
}

// NewBandClassifier creates a band classifier for the given sample rate.
// A zero rate falls back to the headset default.
func NewBandClassifier(sampleRate float64) *BandClassifier {
	if sampleRate <= 0 {
		sampleRate = units.DefaultSampleRate
	}
	return &BandClassifier{sampleRate: sampleRate}
}

// ExtractBands computes alpha and beta RMS amplitudes for one channel
// window in microvolts. Fewer than two samples yields zero features.
func (b *BandClassifier) ExtractBands(signal []float64) BandFeatures {
	if len(signal) < 2 {
		return BandFeatures{}
	}

	alpha := b.bandRMS(signal, alphaLowHz, alphaHighHz)
	beta := b.bandRMS(signal, betaLowHz, betaHighHz)

	total := alpha + beta
	f := BandFeatures{Alpha: alpha, Beta: beta}
	if total > 0 {
		f.AlphaRatio = alpha / total
		f.BetaRatio = beta / total
	}
	return f
}

func (b *BandClassifier) bandRMS(signal []float64, lowHz, highHz float64) float64 {
	filtered, err := l3filter.BandPass(signal, lowHz, highHz, b.sampleRate, bandOrder)
	if err != nil {
		return 0
	}
	var sum float64
	for _, v := range filtered {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(filtered)))
}

// Classify maps the hemispheric rhythm balance of the two channels to a
// movement class. The beta asymmetry threshold tracks the running standard
// deviation of recent asymmetry so a noisy session needs a larger swing.
func (b *BandClassifier) Classify(af3, af4 BandFeatures) eeg.Movement {
	b.mu.Lock()
	defer b.mu.Unlock()

	betaDiff := af4.BetaRatio - af3.BetaRatio
	alphaDiff := af4.AlphaRatio - af3.AlphaRatio

	b.betaDiffs = append(b.betaDiffs, betaDiff)
	if len(b.betaDiffs) > betaDiffHistoryCap {
		b.betaDiffs = b.betaDiffs[len(b.betaDiffs)-betaDiffHistoryCap:]
	}

	spread := fallbackBetaSpread
	if len(b.betaDiffs) > minBetaDiffSamples {
		spread = stat.PopStdDev(b.betaDiffs, nil)
	}
	threshold := math.Max(floorThreshold, spread)

	switch {
	case af3.AlphaRatio < restAlphaCeiling && af4.AlphaRatio < restAlphaCeiling && af4.BetaRatio < restBetaCeiling:
		return eeg.MovementCenter
	case betaDiff > threshold && af4.BetaRatio > activeBetaFloor:
		return eeg.MovementRight
	case betaDiff < -threshold && af3.BetaRatio > activeBetaFloor:
		return eeg.MovementLeft
	case af3.AlphaRatio+af4.AlphaRatio > relaxedAlphaFloor && math.Abs(alphaDiff) < balancedAlphaLimit:
		return eeg.MovementUp
	default:
		return eeg.MovementDown
	}
}

// Reset clears the asymmetry history.
func (b *BandClassifier) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.betaDiffs = b.betaDiffs[:0]
}

// StressLevel estimates arousal from PPG variability. Values above 0.1
// read as stressed.
func StressLevel(ppg []int64) float64 {
	if len(ppg) == 0 {
		return 0.5
	}
	vals := make([]float64, len(ppg))
	for i, v := range ppg {
		vals[i] = float64(v)
	}
	return stat.PopStdDev(vals, nil) / 10000
}

// SpeedFactor maps PPG stress onto a movement speed multiplier in
// [0.05, 0.5]: the calmer the operator, the faster the cursor.
func SpeedFactor(ppg []int64) float64 {
	if len(ppg) == 0 {
		return 0.05
	}
	speed := 1 - StressLevel(ppg)*0.2
	return math.Min(math.Max(speed, 0.05), 0.5)
}
