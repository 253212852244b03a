// Package eeg contains the shared domain types for the two-channel frontal
// EEG control pipeline: raw samples, channel identifiers, wavelet feature
// vectors, movement classes and the command vocabulary consumed by
// downstream clients.
//
// The processing layers build on these types in order:
//
//	l1frames   — wire frame decode into per-channel sample buffers
//	l2sync     — cross-channel alignment of buffered windows
//	l3filter   — calibration, band filtering and baseline correction
//	l4features — wavelet feature extraction (scalogram descriptors)
//	l5classify — hierarchical movement classification and command mapping
//
// None of the layer packages import each other; pipeline/ is the composition
// root that wires them together.
package eeg

import "time"

// Channel identifies the source stream of a decoded sample.
type Channel int

const (
	// ChannelUnknown marks a frame whose header byte is not one of the
	// known channel headers. The value is still parsed and surfaced.
	ChannelUnknown Channel = iota

	// ChannelAF3 is the left frontal EEG electrode.
	ChannelAF3

	// ChannelAF4 is the right frontal EEG electrode.
	ChannelAF4

	// ChannelPPG is the auxiliary photoplethysmography stream used for
	// stress estimation, not movement detection.
	ChannelPPG
)

// String returns the conventional electrode label for the channel.
func (c Channel) String() string {
	switch c {
	case ChannelAF3:
		return "AF3"
	case ChannelAF4:
		return "AF4"
	case ChannelPPG:
		return "PPG"
	default:
		return "Unknown"
	}
}

// Sample is one decoded measurement from the headset. Values are raw 24-bit
// ADC counts; conversion to microvolts happens in l3filter.
type Sample struct {
	Channel Channel
	Value   int64
	Arrival time.Time
}

// Movement is the output class of the hierarchical classifier.
type Movement int

const (
	MovementCenter Movement = iota
	MovementLeft
	MovementRight
	MovementUp
	MovementDown
	MovementBlink
)

var movementNames = [...]string{"center", "left", "right", "up", "down", "blink"}

// String returns the lowercase wire name of the movement class.
func (m Movement) String() string {
	if m < 0 || int(m) >= len(movementNames) {
		return "center"
	}
	return movementNames[m]
}

// ParseMovement maps a wire name back to its movement class.
func ParseMovement(s string) (Movement, bool) {
	for i, name := range movementNames {
		if name == s {
			return Movement(i), true
		}
	}
	return MovementCenter, false
}

// Command is the vocabulary consumed by the game / UI clients.
type Command string

const (
	CommandLeft  Command = "left"
	CommandRight Command = "right"
	CommandUp    Command = "up"
	CommandDown  Command = "down"
	CommandIdle  Command = "idle"
	CommandBlink Command = "blink"
)

// FeatureVector holds the scalar descriptors reduced from one wavelet
// decomposition window. It is recomputed in full for every window; there is
// no incremental mutation.
type FeatureVector struct {
	// MaxCoeff is the wavelet coefficient of maximum absolute magnitude
	// across all scales and time offsets.
	MaxCoeff float64

	// AUC is the non-cancelling trapezoidal area under the signal in the
	// ±100ms window around the peak coefficient: positive and negative
	// lobes contribute their absolute areas.
	AUC float64

	// Amplitude is the peak-to-peak value within the peak window, negated
	// when the dominant deflection points downward. The sign selects the
	// movement direction.
	Amplitude float64

	// Velocity is the maximum absolute first difference within the peak
	// window scaled by the sample rate (per-second units).
	Velocity float64

	// Energy is the total scalogram energy: the sum of squared
	// coefficient magnitudes over the full surface.
	Energy float64
}

// IsZero reports whether every descriptor is zero, the default feature
// policy for windows with insufficient data.
func (f FeatureVector) IsZero() bool {
	return f == FeatureVector{}
}

// ThresholdSet is the fixed decision-tree threshold configuration. It is
// mutated only by an explicit calibration step and otherwise constant for
// the session.
type ThresholdSet struct {
	MaxCoeff  float64 `json:"max_coeff"`
	AUC       float64 `json:"auc"`
	Amplitude float64 `json:"amplitude"`
	Velocity  float64 `json:"velocity"`
}

// DefaultThresholds returns the heuristic session defaults, tuned for
// microvolt-scale EOG deflections at 244 Hz.
func DefaultThresholds() ThresholdSet {
	return ThresholdSet{
		MaxCoeff:  50,
		AUC:       4,
		Amplitude: 40,
		Velocity:  300,
	}
}
