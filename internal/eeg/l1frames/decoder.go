// Package l1frames decodes raw transport frames into typed samples and
// maintains the bounded per-channel sample buffers that the rest of the
// pipeline reads from.
//
// Wire format, one frame per transport notification:
//
//	[header:1][ASCII decimal digits:variable][terminator:1 = 0x0A]
//
// The transport layer hex-encodes whole frames; DecodeHex handles that
// envelope. Frames failing integrity checks are dropped without touching
// any buffer.
package l1frames

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/synapse-data/gaze.report/internal/eeg"
	"github.com/synapse-data/gaze.report/internal/monitoring"
)

const (
	// HeaderAF4, HeaderPPG and HeaderAF3 are the known frame header bytes.
	// Any other header decodes to eeg.ChannelUnknown.
	HeaderAF4 = 0x24
	HeaderPPG = 0x25
	HeaderAF3 = 0x26

	// Terminator is the mandatory final byte of every frame.
	Terminator = 0x0A

	// MinFrameLen is header + at least one payload digit + terminator.
	MinFrameLen = 3

	// EEGBufferCap and PPGBufferCap bound the per-channel sample FIFOs.
	// At 244 Hz the EEG buffers hold a little over 8 seconds of signal.
	EEGBufferCap = 2000
	PPGBufferCap = 200

	// PPGCeiling marks PPG readings at or above this value as transport
	// glitches; they are dropped without buffering.
	PPGCeiling = 1_000_000

	// Flatline detection parameters for ClearNoise: with at least
	// noiseMinSamples AF3 samples buffered, a mean absolute deviation
	// from the resting baseline below noiseDeviationLimit indicates a
	// disconnected or railed channel.
	noiseMinSamples     = 100
	noiseBaseline       = 8_809_000
	noiseDeviationLimit = 2000
)

var (
	// ErrFrameTooShort reports a frame below the minimum length.
	ErrFrameTooShort = errors.New("frame too short")

	// ErrBadTerminator reports a frame not ending in the 0x0A terminator.
	ErrBadTerminator = errors.New("missing frame terminator")

	// ErrPayload reports a payload that is not ASCII decimal digits.
	ErrPayload = errors.New("non-numeric frame payload")
)

// Decoder parses frames and owns the bounded per-channel buffers. It is
// safe for concurrent use: the transport producer calls Decode while the
// consumer loop snapshots buffer contents.
type Decoder struct {
	mu  sync.Mutex
	af3 *eeg.Ring
	af4 *eeg.Ring
	ppg *eeg.Ring

	frames  uint64
	dropped uint64
}

// NewDecoder creates a decoder with empty buffers at the standard
// capacities.
func NewDecoder() *Decoder {
	return &Decoder{
		af3: eeg.NewRing(EEGBufferCap),
		af4: eeg.NewRing(EEGBufferCap),
		ppg: eeg.NewRing(PPGBufferCap),
	}
}

// Decode parses one raw frame. On success the sample is appended to its
// channel buffer (unknown channels are surfaced but not buffered) and
// returned with ok=true. Dropped-by-policy frames (PPG ceiling) return
// ok=false with a nil error. Malformed frames return ok=false and a
// non-nil error; no state is mutated in either drop case.
func (d *Decoder) Decode(frame []byte) (eeg.Sample, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.frames++

	if len(frame) < MinFrameLen {
		d.dropped++
		return eeg.Sample{}, false, fmt.Errorf("%w: %d bytes", ErrFrameTooShort, len(frame))
	}
	if frame[len(frame)-1] != Terminator {
		d.dropped++
		return eeg.Sample{}, false, fmt.Errorf("%w: last byte 0x%02x", ErrBadTerminator, frame[len(frame)-1])
	}

	payload := strings.TrimSpace(string(frame[1 : len(frame)-1]))
	value, err := strconv.ParseInt(payload, 10, 64)
	if err != nil {
		d.dropped++
		return eeg.Sample{}, false, fmt.Errorf("%w: %q", ErrPayload, payload)
	}

	sample := eeg.Sample{Value: value, Arrival: time.Now()}
	switch frame[0] {
	case HeaderAF3:
		sample.Channel = eeg.ChannelAF3
		d.af3.Append(value)
	case HeaderAF4:
		sample.Channel = eeg.ChannelAF4
		d.af4.Append(value)
	case HeaderPPG:
		if value >= PPGCeiling {
			// Transport glitch, not an error.
			d.dropped++
			return eeg.Sample{}, false, nil
		}
		sample.Channel = eeg.ChannelPPG
		d.ppg.Append(value)
	default:
		sample.Channel = eeg.ChannelUnknown
	}
	return sample, true, nil
}

// DecodeHex strips the transport hex envelope and decodes the contained
// frame.
func (d *Decoder) DecodeHex(line string) (eeg.Sample, bool, error) {
	raw, err := hex.DecodeString(strings.TrimSpace(line))
	if err != nil {
		return eeg.Sample{}, false, fmt.Errorf("bad hex frame: %w", err)
	}
	return d.Decode(raw)
}

// ClearNoise inspects the most recent AF3 window and clears every channel
// buffer when the channel appears flatlined (disconnected electrode resting
// at the hardware baseline). This is an explicit maintenance action invoked
// by the pipeline, not run per-sample.
//
// It reports whether the buffers were cleared.
func (d *Decoder) ClearNoise() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.af3.Len() < noiseMinSamples {
		return false
	}
	var dev float64
	values := d.af3.Values()
	for _, v := range values {
		delta := float64(v - noiseBaseline)
		if delta < 0 {
			delta = -delta
		}
		dev += delta
	}
	if dev/float64(len(values)) >= noiseDeviationLimit {
		return false
	}

	monitoring.Logf("[l1frames] flatlined AF3 window (mean deviation < %d), clearing buffers", noiseDeviationLimit)
	d.af3.Clear()
	d.af4.Clear()
	d.ppg.Clear()
	return true
}

// Reset clears all channel buffers, used on session reset.
func (d *Decoder) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.af3.Clear()
	d.af4.Clear()
	d.ppg.Clear()
}

// Snapshot returns copies of the buffered values for both EEG channels,
// oldest-first, taken under one lock so the pair is mutually consistent.
func (d *Decoder) Snapshot() (af3, af4 []int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.af3.Values(), d.af4.Values()
}

// PPGValues returns a copy of the buffered PPG values oldest-first.
func (d *Decoder) PPGValues() []int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ppg.Values()
}

// Len returns the buffered sample count for the given channel.
func (d *Decoder) Len(ch eeg.Channel) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch ch {
	case eeg.ChannelAF3:
		return d.af3.Len()
	case eeg.ChannelAF4:
		return d.af4.Len()
	case eeg.ChannelPPG:
		return d.ppg.Len()
	default:
		return 0
	}
}

// Stats returns the total decoded and dropped frame counts.
func (d *Decoder) Stats() (frames, dropped uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.frames, d.dropped
}
