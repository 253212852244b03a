package mockgen

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synapse-data/gaze.report/internal/eeg"
	"github.com/synapse-data/gaze.report/internal/eeg/l1frames"
	"github.com/synapse-data/gaze.report/internal/units"
)

func TestPacketShape(t *testing.T) {
	t.Parallel()

	g := New(0, 1)
	af3, af4 := g.Packet()
	require.Len(t, af3, SamplesPerPacket)
	require.Len(t, af4, SamplesPerPacket)

	for _, v := range append(af3, af4...) {
		assert.GreaterOrEqual(t, v, int64(0))
		assert.LessOrEqual(t, v, int64(units.ADCMax))
	}
	assert.Equal(t, uint64(1), g.Packets())
}

func TestSamplesHoverAroundBaseline(t *testing.T) {
	t.Parallel()

	g := New(244, 7)
	g.SetPreset("resting")

	window := g.Window(eeg.ChannelAF3, 1000)
	var sum float64
	for _, v := range window {
		sum += float64(v)
	}
	mean := sum / float64(len(window))
	// Band amplitudes are a few thousand counts; the mean stays near
	// the ADC baseline.
	assert.InDelta(t, float64(units.ADCBaseline), mean, 20000)
}

func TestSetPreset(t *testing.T) {
	t.Parallel()

	g := New(244, 1)
	require.True(t, g.SetPreset("left"))
	s := g.State()
	assert.InDelta(t, 0.9, s.Left, 1e-9)
	assert.InDelta(t, 0.4, s.Right, 1e-9)

	assert.False(t, g.SetPreset("no-such-state"))
}

func TestSetStateClamps(t *testing.T) {
	t.Parallel()

	g := New(244, 1)
	g.SetState(State{Alertness: 2, Focus: -1, Stress: 0.5, Left: 0.5, Right: 0.5})
	s := g.State()
	assert.Equal(t, 1.0, s.Alertness)
	assert.Equal(t, 0.0, s.Focus)
}

func TestReproducibleWithSameSeed(t *testing.T) {
	t.Parallel()

	a := New(244, 42)
	b := New(244, 42)
	af3a, af4a := a.Packet()
	af3b, af4b := b.Packet()
	if diff := cmp.Diff(af3a, af3b); diff != "" {
		t.Errorf("AF3 streams diverged (-a +b):\n%s", diff)
	}
	if diff := cmp.Diff(af4a, af4b); diff != "" {
		t.Errorf("AF4 streams diverged (-a +b):\n%s", diff)
	}
}

func TestFrameFeedDecodesCleanly(t *testing.T) {
	t.Parallel()

	g := New(244, 3)
	next := g.FrameFeed()
	dec := l1frames.NewDecoder()

	seen := map[eeg.Channel]int{}
	for i := 0; i < 2*SamplesPerPacket; i++ {
		frame, ok := next()
		require.True(t, ok)
		sample, ok, err := dec.DecodeHex(string(frame))
		require.NoError(t, err)
		require.True(t, ok)
		seen[sample.Channel]++
	}
	assert.Equal(t, SamplesPerPacket, seen[eeg.ChannelAF3])
	assert.Equal(t, SamplesPerPacket, seen[eeg.ChannelAF4])
}
