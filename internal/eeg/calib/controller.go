package calib

import (
	"fmt"

	"github.com/synapse-data/gaze.report/internal/eeg"
	"github.com/synapse-data/gaze.report/internal/monitoring"
	"github.com/synapse-data/gaze.report/internal/units"
)

// SampleSource supplies the live channel buffers a capture reads from.
// *l1frames.Decoder satisfies it.
type SampleSource interface {
	Snapshot() (af3, af4 []int64)
	PPGValues() []int64
}

// Controller drives a guided calibration run against a live pipeline: the
// operator surface opens labeled segments, captures buffer snapshots while
// the user performs the prompted movement, and finally derives, persists
// and applies the new thresholds.
type Controller struct {
	cal    *Calibrator
	source SampleSource
	store  Store
	apply  func(eeg.ThresholdSet)
}

// NewController binds a calibrator to a live sample source and a store.
// The apply hook receives the derived thresholds on Save; nil is allowed.
func NewController(cal *Calibrator, source SampleSource, store Store, apply func(eeg.ThresholdSet)) *Controller {
	return &Controller{cal: cal, source: source, store: store, apply: apply}
}

// Begin opens a segment for the named movement class.
func (c *Controller) Begin(label string) error {
	movement, ok := eeg.ParseMovement(label)
	if !ok {
		return fmt.Errorf("unknown movement label %q", label)
	}
	return c.cal.Begin(movement)
}

// Capture snapshots the live buffers into the active segment, converting
// the EEG channels to microvolts. It returns the number of sample pairs
// captured.
func (c *Controller) Capture() (int, error) {
	af3Raw, af4Raw := c.source.Snapshot()
	ppgRaw := c.source.PPGValues()

	af3 := units.ConvertToMicrovolts(af3Raw)
	af4 := units.ConvertToMicrovolts(af4Raw)
	ppg := make([]float64, len(ppgRaw))
	for i, v := range ppgRaw {
		ppg[i] = float64(v)
	}

	if err := c.cal.Observe(af3, af4, ppg); err != nil {
		return 0, err
	}
	n := len(af3)
	if len(af4) < n {
		n = len(af4)
	}
	return n, nil
}

// End closes the active segment.
func (c *Controller) End() error {
	return c.cal.End()
}

// Abort discards the run, active segment included.
func (c *Controller) Abort() {
	c.cal.Reset()
}

// Save derives the thresholds from the collected segments, persists the
// session and hands the new set to the apply hook.
func (c *Controller) Save(notes string) (eeg.ThresholdSet, string, error) {
	ts, err := c.cal.DeriveThresholds()
	if err != nil {
		return eeg.ThresholdSet{}, "", err
	}
	session, err := c.cal.Persist(c.store, notes)
	if err != nil {
		return eeg.ThresholdSet{}, "", err
	}
	if c.apply != nil {
		c.apply(ts)
	}
	monitoring.Logf("[calib] session %s saved, thresholds applied: %+v", session, ts)
	return ts, session, nil
}

// Status reports the open segment label ("" when none) and the number of
// collected segments.
func (c *Controller) Status() (active string, segments int) {
	segments = len(c.cal.Segments())
	if label, ok := c.cal.Active(); ok {
		active = label.String()
	}
	return active, segments
}
