// Package calib derives per-user threshold sets from guided calibration
// runs. The operator prompts the user through labeled movement segments
// (look left, look right, blink, hold still); the calibrator collects the
// preprocessed channel data for each, measures the wavelet response, and
// scales the per-feature statistics into a ThresholdSet.
package calib

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/synapse-data/gaze.report/internal/eeg"
	"github.com/synapse-data/gaze.report/internal/eeg/l4features"
)

var (
	ErrSegmentActive      = errors.New("calib: segment already active")
	ErrNoActiveSegment    = errors.New("calib: no active segment")
	ErrNoMovementSegments = errors.New("calib: no movement segments recorded")
)

const (
	// safetyFactor scales the measured movement response down so that
	// slightly weaker deflections than the calibration set still trigger.
	safetyFactor = 0.6

	// noiseMargin keeps thresholds above the resting-state response.
	noiseMargin = 1.5
)

// Segment is one labeled stretch of calibration data in microvolts.
type Segment struct {
	Label eeg.Movement
	AF3   []float64
	AF4   []float64
	PPG   []float64
}

// Store is the persistence surface the calibrator needs. *db.DB
// satisfies it.
type Store interface {
	CreateSession(notes string) (string, error)
	InsertSegment(sessionID string, segment int, label string, af3, af4, ppg []float64) error
	SaveThresholds(sessionID string, ts eeg.ThresholdSet) error
}

// Calibrator accumulates labeled segments and derives thresholds. Safe
// for concurrent use.
type Calibrator struct {
	mu        sync.Mutex
	extractor *l4features.Extractor
	segments  []Segment
	active    *Segment
}

// NewCalibrator creates a calibrator extracting features at the given
// sample rate (zero takes the headset default).
func NewCalibrator(sampleRate float64) *Calibrator {
	return &Calibrator{extractor: l4features.NewExtractor(sampleRate)}
}

// Begin opens a new labeled segment.
func (c *Calibrator) Begin(label eeg.Movement) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active != nil {
		return ErrSegmentActive
	}
	c.active = &Segment{Label: label}
	return nil
}

// Observe appends channel data to the active segment. Any slice may be
// empty.
func (c *Calibrator) Observe(af3, af4, ppg []float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return ErrNoActiveSegment
	}
	c.active.AF3 = append(c.active.AF3, af3...)
	c.active.AF4 = append(c.active.AF4, af4...)
	c.active.PPG = append(c.active.PPG, ppg...)
	return nil
}

// End closes the active segment and adds it to the collected set.
func (c *Calibrator) End() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return ErrNoActiveSegment
	}
	c.segments = append(c.segments, *c.active)
	c.active = nil
	return nil
}

// Active returns the label of the open segment, if any.
func (c *Calibrator) Active() (eeg.Movement, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return eeg.MovementCenter, false
	}
	return c.active.Label, true
}

// Segments returns a copy of the collected segments.
func (c *Calibrator) Segments() []Segment {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Segment, len(c.segments))
	copy(out, c.segments)
	return out
}

// Reset discards all collected segments and any active one.
func (c *Calibrator) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.segments = nil
	c.active = nil
}

// DeriveThresholds computes a ThresholdSet from the collected segments:
// the mean movement response scaled by the safety factor, floored above
// the resting-state response where center segments were recorded.
func (c *Calibrator) DeriveThresholds() (eeg.ThresholdSet, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var moveSum, restSum eeg.ThresholdSet
	var moves, rests int

	for _, seg := range c.segments {
		fv := c.segmentFeatures(seg)
		if seg.Label == eeg.MovementCenter {
			accumulate(&restSum, fv)
			rests++
		} else {
			accumulate(&moveSum, fv)
			moves++
		}
	}
	if moves == 0 {
		return eeg.ThresholdSet{}, ErrNoMovementSegments
	}

	ts := eeg.ThresholdSet{
		MaxCoeff:  safetyFactor * moveSum.MaxCoeff / float64(moves),
		AUC:       safetyFactor * moveSum.AUC / float64(moves),
		Amplitude: safetyFactor * moveSum.Amplitude / float64(moves),
		Velocity:  safetyFactor * moveSum.Velocity / float64(moves),
	}
	if rests > 0 {
		ts.MaxCoeff = math.Max(ts.MaxCoeff, noiseMargin*restSum.MaxCoeff/float64(rests))
		ts.AUC = math.Max(ts.AUC, noiseMargin*restSum.AUC/float64(rests))
		ts.Amplitude = math.Max(ts.Amplitude, noiseMargin*restSum.Amplitude/float64(rests))
		ts.Velocity = math.Max(ts.Velocity, noiseMargin*restSum.Velocity/float64(rests))
	}
	return ts, nil
}

// segmentFeatures extracts the feature vector from the component the
// segment's movement class rides on: the channel difference for
// horizontal movements, the channel mean otherwise.
func (c *Calibrator) segmentFeatures(seg Segment) eeg.FeatureVector {
	horizontal, vertical := l4features.DeriveComponents(seg.AF3, seg.AF4)
	switch seg.Label {
	case eeg.MovementLeft, eeg.MovementRight:
		return c.extractor.Extract(horizontal)
	default:
		return c.extractor.Extract(vertical)
	}
}

func accumulate(sum *eeg.ThresholdSet, fv eeg.FeatureVector) {
	sum.MaxCoeff += fv.MaxCoeff
	sum.AUC += fv.AUC
	sum.Amplitude += math.Abs(fv.Amplitude)
	sum.Velocity += fv.Velocity
}

// Persist stores the collected segments and the derived thresholds as a
// new session, returning the session ID.
func (c *Calibrator) Persist(store Store, notes string) (string, error) {
	ts, err := c.DeriveThresholds()
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	segments := make([]Segment, len(c.segments))
	copy(segments, c.segments)
	c.mu.Unlock()

	session, err := store.CreateSession(notes)
	if err != nil {
		return "", fmt.Errorf("persist calibration: %w", err)
	}
	for i, seg := range segments {
		if err := store.InsertSegment(session, i, seg.Label.String(), seg.AF3, seg.AF4, seg.PPG); err != nil {
			return "", fmt.Errorf("persist segment %d: %w", i, err)
		}
	}
	if err := store.SaveThresholds(session, ts); err != nil {
		return "", fmt.Errorf("persist thresholds: %w", err)
	}
	return session, nil
}
