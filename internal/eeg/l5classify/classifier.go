// Package l5classify holds the fixed-order decision tree that turns
// per-component feature vectors into discrete movement classes, plus the
// command mappers downstream consumers attach.
package l5classify

import (
	"math"
	"sync"
	"time"

	"github.com/synapse-data/gaze.report/internal/eeg"
)

const (
	// DefaultMinInterval is the debounce between accepted detections.
	// Calls inside the interval return the held movement unchanged.
	DefaultMinInterval = 500 * time.Millisecond

	// historyCap bounds the recent-movement history.
	historyCap = 5

	// Rule multipliers of the decision tree. The tree shape is fixed;
	// only the ThresholdSet it compares against is recalibrated.
	blinkCoeffFactor     = 3.0
	blinkAmplitudeFactor = 2.0
	restEnergyFactor     = 0.5
)

// Classifier is the fixed-order decision tree. It is safe for concurrent
// use; the held movement and detection timestamp are guarded by a mutex.
type Classifier struct {
	mu          sync.Mutex
	thresholds  eeg.ThresholdSet
	minInterval time.Duration

	current  eeg.Movement
	lastTime time.Time
	history  []eeg.Movement

	calls      uint64
	detections uint64
}

// NewClassifier creates a classifier with the given thresholds. A zero
// minInterval falls back to DefaultMinInterval.
func NewClassifier(thresholds eeg.ThresholdSet, minInterval time.Duration) *Classifier {
	if minInterval <= 0 {
		minInterval = DefaultMinInterval
	}
	return &Classifier{
		thresholds:  thresholds,
		minInterval: minInterval,
		current:     eeg.MovementCenter,
	}
}

// SetThresholds swaps the threshold set, typically after recalibration.
func (c *Classifier) SetThresholds(t eeg.ThresholdSet) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.thresholds = t
}

// Thresholds returns the active threshold set.
func (c *Classifier) Thresholds() eeg.ThresholdSet {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.thresholds
}

// Classify evaluates the decision tree over the horizontal (Y1) and
// vertical (Y2) feature vectors at the given instant. Inside the debounce
// interval the held movement is returned unchanged regardless of the new
// features.
func (c *Classifier) Classify(y1, y2 eeg.FeatureVector, now time.Time) eeg.Movement {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.calls++
	if !c.lastTime.IsZero() && now.Sub(c.lastTime) < c.minInterval {
		return c.current
	}

	movement := c.decide(y1, y2)
	c.current = movement
	c.lastTime = now
	c.detections++
	c.history = append(c.history, movement)
	if len(c.history) > historyCap {
		c.history = c.history[len(c.history)-historyCap:]
	}
	return movement
}

// decide walks the rules in fixed order; the first match wins.
func (c *Classifier) decide(y1, y2 eeg.FeatureVector) eeg.Movement {
	t := c.thresholds

	// Blink: strong synchronous response on both components. Amplitude
	// sign is direction, so the gate compares magnitude.
	if y1.MaxCoeff > blinkCoeffFactor*t.MaxCoeff &&
		y2.MaxCoeff > blinkCoeffFactor*t.MaxCoeff &&
		math.Abs(y1.Amplitude) > blinkAmplitudeFactor*t.Amplitude {
		return eeg.MovementBlink
	}

	// Rest: combined scalogram energy below the quiet floor.
	if y1.Energy+y2.Energy < restEnergyFactor*t.MaxCoeff {
		return eeg.MovementCenter
	}

	// Horizontal saccade. Amplitude sign picks the direction.
	if y1.MaxCoeff > t.MaxCoeff && y1.AUC > t.AUC {
		if y1.Amplitude > 0 {
			return eeg.MovementRight
		}
		return eeg.MovementLeft
	}

	// Vertical movement needs the velocity gate as well.
	if y2.MaxCoeff > t.MaxCoeff && y2.AUC > t.AUC && y2.Velocity > t.Velocity {
		if y2.Amplitude > 0 {
			return eeg.MovementUp
		}
		return eeg.MovementDown
	}

	return eeg.MovementCenter
}

// Current returns the held movement without evaluating the tree.
func (c *Classifier) Current() eeg.Movement {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// History returns a copy of the recent movements, oldest first.
func (c *Classifier) History() []eeg.Movement {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]eeg.Movement, len(c.history))
	copy(out, c.history)
	return out
}

// Stats reports total Classify calls and accepted detections.
func (c *Classifier) Stats() (calls, detections uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls, c.detections
}

// Reset clears the held state so the next Classify call is accepted.
func (c *Classifier) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = eeg.MovementCenter
	c.lastTime = time.Time{}
	c.history = c.history[:0]
}
