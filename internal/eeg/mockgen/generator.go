// Package mockgen synthesizes AF3/AF4 sample streams for development and
// tests when no headset is attached. The signal model layers the classic
// rhythm bands with amplitudes driven by a mental-state parameter set,
// plus noise and the artifact types real recordings show.
package mockgen

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/synapse-data/gaze.report/internal/eeg"
	"github.com/synapse-data/gaze.report/internal/eeg/l1frames"
	"github.com/synapse-data/gaze.report/internal/units"
)

const (
	// SamplesPerPacket is the headset notification payload size.
	SamplesPerPacket = 16

	// PacketInterval is the headset notification cadence
	// (16 samples at 244 Hz).
	PacketInterval = 65600 * time.Microsecond

	// artifactProbability is the per-sample chance of injecting an
	// artifact.
	artifactProbability = 0.01

	noiseSigma = 100.0 // ADC counts
)

// band is one rhythm band of the signal model.
type band struct {
	name string
	low  float64
	high float64
}

var bands = []band{
	{"delta", 0.5, 4},
	{"theta", 4, 8},
	{"alpha", 8, 13},
	{"beta", 13, 30},
	{"gamma", 30, 100},
}

// State holds the mental-state parameters driving band amplitudes. All
// fields are in [0, 1].
type State struct {
	Alertness float64
	Focus     float64
	Stress    float64
	Left      float64
	Right     float64
}

// Presets of commonly simulated mental states.
var Presets = map[string]State{
	"resting":    {Alertness: 0.3, Focus: 0.2, Stress: 0.1, Left: 0.4, Right: 0.4},
	"focused":    {Alertness: 0.8, Focus: 0.9, Stress: 0.4, Left: 0.7, Right: 0.6},
	"stressed":   {Alertness: 0.9, Focus: 0.3, Stress: 0.8, Left: 0.8, Right: 0.8},
	"meditation": {Alertness: 0.6, Focus: 0.8, Stress: 0.1, Left: 0.5, Right: 0.5},
	"left":       {Alertness: 0.7, Focus: 0.8, Stress: 0.3, Left: 0.9, Right: 0.4},
	"right":      {Alertness: 0.7, Focus: 0.8, Stress: 0.3, Left: 0.4, Right: 0.9},
}

// Generator produces synthetic two-channel sample windows. Safe for
// concurrent use.
type Generator struct {
	mu         sync.Mutex
	sampleRate float64
	state      State
	t          float64
	rng        *rand.Rand
	packets    uint64
}

// New creates a generator at the given sample rate, seeded for
// reproducible streams. A zero rate takes the headset default.
func New(sampleRate float64, seed int64) *Generator {
	if sampleRate <= 0 {
		sampleRate = units.DefaultSampleRate
	}
	return &Generator{
		sampleRate: sampleRate,
		state:      State{Alertness: 0.5, Focus: 0.5, Stress: 0.3, Left: 0.5, Right: 0.5},
		rng:        rand.New(rand.NewSource(seed)),
	}
}

// SetState replaces the mental-state parameters, clamped to [0, 1].
func (g *Generator) SetState(s State) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state = State{
		Alertness: clamp01(s.Alertness),
		Focus:     clamp01(s.Focus),
		Stress:    clamp01(s.Stress),
		Left:      clamp01(s.Left),
		Right:     clamp01(s.Right),
	}
}

// SetPreset selects a named preset; unknown names are ignored and false
// is returned.
func (g *Generator) SetPreset(name string) bool {
	s, ok := Presets[name]
	if !ok {
		return false
	}
	g.SetState(s)
	return true
}

// State returns the current mental-state parameters.
func (g *Generator) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Packets returns the number of generated packets.
func (g *Generator) Packets() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.packets
}

// Packet generates one notification worth of samples for both channels.
func (g *Generator) Packet() (af3, af4 []int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	af3 = g.channelLocked(eeg.ChannelAF3, SamplesPerPacket)
	af4 = g.channelLocked(eeg.ChannelAF4, SamplesPerPacket)
	g.t += SamplesPerPacket / g.sampleRate
	g.packets++
	return af3, af4
}

// Window generates n samples for one channel, advancing the generator
// clock.
func (g *Generator) Window(ch eeg.Channel, n int) []int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := g.channelLocked(ch, n)
	g.t += float64(n) / g.sampleRate
	return out
}

func (g *Generator) channelLocked(ch eeg.Channel, n int) []int64 {
	activity := g.state.Left
	if ch == eeg.ChannelAF4 {
		activity = g.state.Right
	}

	signal := make([]float64, n)
	for _, b := range bands {
		g.addBand(signal, b, activity)
	}
	for i := range signal {
		signal[i] += g.rng.NormFloat64() * noiseSigma
	}
	g.addArtifacts(signal)

	out := make([]int64, n)
	for i, v := range signal {
		raw := int64(v) + units.ADCBaseline
		if raw < 0 {
			raw = 0
		}
		if raw > units.ADCMax {
			raw = units.ADCMax
		}
		out[i] = raw
	}
	return out
}

// amplitude maps the mental state onto a band amplitude in ADC counts.
func (g *Generator) amplitude(name string, activity float64) float64 {
	s := g.state
	switch name {
	case "alpha":
		return (1 - s.Focus) * (1 - s.Stress) * 2000
	case "beta":
		return (s.Focus + s.Stress) * activity * 1500
	case "theta":
		return (1 - s.Alertness) * 800
	case "delta":
		return (1 - s.Alertness) * 400
	default: // gamma
		return s.Focus * s.Alertness * 300
	}
}

// addBand sums three modulated sinusoid components spread across the
// band into signal.
func (g *Generator) addBand(signal []float64, b band, activity float64) {
	amp := g.amplitude(b.name, activity)
	if amp == 0 {
		return
	}
	const components = 3
	for c := 0; c < components; c++ {
		freq := b.low + (b.high-b.low)*float64(c)/(components-1)
		phase := g.rng.Float64() * 2 * math.Pi
		for i := range signal {
			t := g.t + float64(i)/g.sampleRate
			// Slow frequency and amplitude modulation keep the
			// tone from sounding synthetic.
			fm := freq + 0.5*math.Sin(2*math.Pi*0.1*t)
			am := 1 + 0.3*math.Sin(2*math.Pi*0.05*t)
			signal[i] += amp * am * math.Sin(2*math.Pi*fm*t+phase) / components
		}
	}
}

// addArtifacts injects blink, muscle and electrode-shift artifacts at
// random positions.
func (g *Generator) addArtifacts(signal []float64) {
	for i := range signal {
		if g.rng.Float64() >= artifactProbability {
			continue
		}
		switch g.rng.Intn(3) {
		case 0: // blink: large decaying positive deflection, ~300ms
			span := int(0.3 * g.sampleRate)
			for j := 0; j < span && i+j < len(signal); j++ {
				decay := math.Exp(-5 * float64(j) / float64(span))
				signal[i+j] += 5000 * decay
			}
		case 1: // muscle tension: 100ms of wideband noise
			span := int(0.1 * g.sampleRate)
			for j := 0; j < span && i+j < len(signal); j++ {
				signal[i+j] += g.rng.NormFloat64() * 2000
			}
		default: // electrode shift: persistent step
			step := (g.rng.Float64()*2 - 1) * 1000
			for j := i; j < len(signal); j++ {
				signal[j] += step
			}
		}
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// FrameFeed returns a frame source for blemux.NewFeedMux: each call
// yields one wire-format hex frame, alternating channels through packet
// batches the way the dongle interleaves notifications.
func (g *Generator) FrameFeed() func() ([]byte, bool) {
	var queue [][]byte
	return func() ([]byte, bool) {
		if len(queue) == 0 {
			af3, af4 := g.Packet()
			for i := 0; i < SamplesPerPacket; i++ {
				queue = append(queue,
					[]byte(l1frames.EncodeFrameHex(l1frames.HeaderAF3, af3[i])),
					[]byte(l1frames.EncodeFrameHex(l1frames.HeaderAF4, af4[i])),
				)
			}
		}
		frame := queue[0]
		queue = queue[1:]
		return frame, true
	}
}
