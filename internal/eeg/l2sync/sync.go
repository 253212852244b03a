// Package l2sync reconciles the two independently-arriving channel streams
// before downstream consumers see them. Eye-movement features compare AF3
// and AF4 directly, so a feature window must never mix channel data
// captured more than one sync window apart.
package l2sync

import (
	"sync"
	"time"

	"github.com/synapse-data/gaze.report/internal/eeg"
)

const (
	// DefaultWindow is the maximum timestamp skew for two channel
	// snapshots to count as simultaneous. The comparison is inclusive:
	// a skew of exactly the window still pairs.
	DefaultWindow = 100 * time.Millisecond

	// DefaultRefreshInterval caps the emission rate at roughly 30 Hz so
	// chart and feature consumers are not saturated faster than they can
	// usefully process.
	DefaultRefreshInterval = 33 * time.Millisecond
)

// Pair is one synchronized snapshot of both EEG channels.
type Pair struct {
	AF3     []int64
	AF4     []int64
	AF3Time time.Time
	AF4Time time.Time
}

// Skew returns the absolute timestamp difference between the two slots.
func (p Pair) Skew() time.Duration {
	d := p.AF3Time.Sub(p.AF4Time)
	if d < 0 {
		d = -d
	}
	return d
}

type slot struct {
	data []int64
	ts   time.Time
	full bool
}

// Synchronizer holds one pending slot per channel. Slot content is fully
// replaced on every update; stale slots that never pair are silently
// overwritten — accepted data loss, not a fault.
type Synchronizer struct {
	window  time.Duration
	refresh time.Duration

	mu       sync.Mutex
	af3      slot
	af4      slot
	lastEmit time.Time

	updates uint64
	emits   uint64
}

// New creates a synchronizer. Non-positive arguments fall back to the
// defaults.
func New(window, refresh time.Duration) *Synchronizer {
	if window <= 0 {
		window = DefaultWindow
	}
	if refresh <= 0 {
		refresh = DefaultRefreshInterval
	}
	return &Synchronizer{window: window, refresh: refresh}
}

// Update overwrites the slot for ch with a fresh snapshot. When both slots
// hold data within the sync window and the refresh interval has elapsed
// since the last emission, the pair is returned with ok=true and both
// slots are cleared. PPG and unknown channels are ignored.
func (s *Synchronizer) Update(ch eeg.Channel, data []int64, ts time.Time) (Pair, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch ch {
	case eeg.ChannelAF3:
		s.af3 = slot{data: data, ts: ts, full: true}
	case eeg.ChannelAF4:
		s.af4 = slot{data: data, ts: ts, full: true}
	default:
		return Pair{}, false
	}
	s.updates++

	if !s.af3.full || !s.af4.full {
		return Pair{}, false
	}

	skew := s.af3.ts.Sub(s.af4.ts)
	if skew < 0 {
		skew = -skew
	}
	if skew > s.window {
		// Slots persist; the laggard will be overwritten by its next
		// update.
		return Pair{}, false
	}

	if !s.lastEmit.IsZero() && ts.Sub(s.lastEmit) < s.refresh {
		return Pair{}, false
	}

	pair := Pair{
		AF3:     s.af3.data,
		AF4:     s.af4.data,
		AF3Time: s.af3.ts,
		AF4Time: s.af4.ts,
	}
	s.af3 = slot{}
	s.af4 = slot{}
	s.lastEmit = ts
	s.emits++
	return pair, true
}

// Reset clears both slots and the emission timer.
func (s *Synchronizer) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.af3 = slot{}
	s.af4 = slot{}
	s.lastEmit = time.Time{}
}

// Stats returns the total update and emission counts. The gap between the
// two is the measurable cost of sync timeouts and rate capping.
func (s *Synchronizer) Stats() (updates, emits uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updates, s.emits
}
