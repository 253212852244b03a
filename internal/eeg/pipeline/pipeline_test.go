package pipeline

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synapse-data/gaze.report/internal/blemux"
	"github.com/synapse-data/gaze.report/internal/eeg"
	"github.com/synapse-data/gaze.report/internal/eeg/l1frames"
	"github.com/synapse-data/gaze.report/internal/units"
)

var t0 = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

// recorder collects emitted commands.
type recorder struct {
	commands []eeg.Command
	stamps   []time.Time
}

func (r *recorder) OnCommand(cmd eeg.Command, ts time.Time) {
	r.commands = append(r.commands, cmd)
	r.stamps = append(r.stamps, ts)
}

// statusMap keeps the latest value per reported field.
type statusMap map[string]string

func (m statusMap) Report(field, value string) { m[field] = value }

func newTestPipeline() (*Pipeline, *recorder) {
	p := New(Config{
		AnalysisWindow: time.Second,
		// Pairing rate is driven by the test feed, not wall time.
		RefreshInterval: time.Nanosecond,
		Debounce:        500 * time.Millisecond,
	})
	rec := &recorder{}
	p.AddCommandSink(rec)
	return p, rec
}

// feedPair pushes one AF3/AF4 sample pair through the wire decode path.
func feedPair(p *Pipeline, af3, af4 int64) {
	p.HandleFrame(l1frames.EncodeFrameHex(l1frames.HeaderAF3, af3))
	p.HandleFrame(l1frames.EncodeFrameHex(l1frames.HeaderAF4, af4))
}

// TestStepScenario feeds 300 synthetic sample pairs with a step increase
// on AF3 only during samples 100-150, expecting a left detection, then a
// quiet stretch, expecting a return to center.
func TestStepScenario(t *testing.T) {
	t.Parallel()

	p, rec := newTestPipeline()

	for i := 0; i < 300; i++ {
		af3 := int64(units.ADCBaseline)
		if i >= 100 && i <= 150 {
			af3 += 3000
		}
		feedPair(p, af3, units.ADCBaseline)
	}

	p.Step(t0)
	require.Equal(t, []eeg.Command{eeg.CommandLeft}, rec.commands)
	assert.Equal(t, eeg.MovementLeft, p.Classifier().Current())

	// Activity subsides; once the analysis window has rolled past the
	// step the classifier returns to center.
	for i := 0; i < 300; i++ {
		feedPair(p, units.ADCBaseline, units.ADCBaseline)
	}

	p.Step(t0.Add(600 * time.Millisecond))
	require.Len(t, rec.commands, 2)
	assert.Equal(t, eeg.CommandIdle, rec.commands[1])
	assert.Equal(t, eeg.MovementCenter, p.Classifier().Current())
}

func TestDebounceSuppressesSecondEmission(t *testing.T) {
	t.Parallel()

	p, rec := newTestPipeline()

	step := func() {
		for i := 0; i < 300; i++ {
			af3 := int64(units.ADCBaseline)
			if i >= 100 && i <= 150 {
				af3 += 3000
			}
			feedPair(p, af3, units.ADCBaseline)
		}
	}

	step()
	p.Step(t0)
	step()
	p.Step(t0.Add(100 * time.Millisecond))

	// The second tick falls inside the debounce interval: the held
	// movement is returned but no new command is emitted.
	assert.Equal(t, []eeg.Command{eeg.CommandLeft}, rec.commands)
}

func TestStepWithoutPairIsQuiet(t *testing.T) {
	t.Parallel()

	p, rec := newTestPipeline()
	status := statusMap{}
	p.AddStatusSink(status)

	p.Step(t0)
	assert.Empty(t, rec.commands)
	assert.Equal(t, "center", status["movement"])
	assert.Equal(t, "0", status["frames"])
}

func TestStatusReportsBufferDepths(t *testing.T) {
	t.Parallel()

	p, _ := newTestPipeline()
	status := statusMap{}
	p.AddStatusSink(status)

	for i := 0; i < 10; i++ {
		feedPair(p, units.ADCBaseline, units.ADCBaseline)
	}
	p.Step(t0)

	assert.Equal(t, "10", status["af3_depth"])
	assert.Equal(t, "10", status["af4_depth"])
	assert.Equal(t, "20", status["frames"])
	assert.Equal(t, "0", status["dropped"])
}

// TestRhythmOscillationStaysQuiet feeds a strong 30 Hz oscillation on AF3.
// It lives above the EOG band, so the detection path never sees it and no
// movement command is emitted.
func TestRhythmOscillationStaysQuiet(t *testing.T) {
	t.Parallel()

	p, rec := newTestPipeline()

	for i := 0; i < 300; i++ {
		af3 := units.ADCBaseline + int64(1500*math.Sin(2*math.Pi*30*float64(i)/units.DefaultSampleRate))
		feedPair(p, af3, units.ADCBaseline)
	}
	p.Step(t0)

	assert.Equal(t, eeg.MovementCenter, p.Classifier().Current())
	for _, cmd := range rec.commands {
		assert.Equal(t, eeg.CommandIdle, cmd)
	}
}

func TestStatusReportsSignalQuality(t *testing.T) {
	t.Parallel()

	p, _ := newTestPipeline()
	status := statusMap{}
	p.AddStatusSink(status)

	p.Step(t0)
	assert.Equal(t, "insufficient", status["signal"])

	// A buffer resting flat at the baseline reads as weak.
	for i := 0; i < 100; i++ {
		feedPair(p, units.ADCBaseline, units.ADCBaseline)
	}
	p.Step(t0.Add(time.Second))
	assert.Equal(t, "weak", status["signal"])

	// Live variation reads as ok.
	for i := 0; i < 300; i++ {
		af3 := int64(units.ADCBaseline)
		if i%2 == 0 {
			af3 += 8000
		}
		feedPair(p, af3, af3)
	}
	p.Step(t0.Add(2 * time.Second))
	assert.Equal(t, "ok", status["signal"])
}

func TestStatusReportsMentalState(t *testing.T) {
	t.Parallel()

	p, _ := newTestPipeline()
	status := statusMap{}
	p.AddStatusSink(status)

	p.Step(t0)
	assert.Equal(t, "unknown", status["mental_state"])

	// A steady pulse reads calm at full speed.
	for i := 0; i < 20; i++ {
		p.HandleFrame(l1frames.EncodeFrameHex(l1frames.HeaderPPG, 50000))
	}
	p.Step(t0.Add(time.Second))
	assert.Equal(t, "calm", status["mental_state"])
	assert.Equal(t, "0.50", status["speed_factor"])

	// An erratic pulse reads stressed at minimum speed.
	for i := 0; i < 20; i++ {
		v := int64(10000)
		if i%2 == 0 {
			v = 900000
		}
		p.HandleFrame(l1frames.EncodeFrameHex(l1frames.HeaderPPG, v))
	}
	p.Step(t0.Add(2 * time.Second))
	assert.Equal(t, "stressed", status["mental_state"])
	assert.Equal(t, "0.05", status["speed_factor"])
}

func TestMalformedFrameIsCountedNotFatal(t *testing.T) {
	t.Parallel()

	p, _ := newTestPipeline()
	p.HandleFrame("zz-not-hex")
	p.HandleFrame(l1frames.EncodeFrameHex(l1frames.HeaderAF3, units.ADCBaseline))

	frames, dropped := p.Decoder().Stats()
	assert.Equal(t, uint64(2), frames)
	assert.Equal(t, uint64(1), dropped)
}

type featureLog struct {
	y1, y2 []eeg.FeatureVector
}

func (f *featureLog) OnFeatures(y1, y2 eeg.FeatureVector, _ time.Time) {
	f.y1 = append(f.y1, y1)
	f.y2 = append(f.y2, y2)
}

func TestFeatureSinkSeesEveryAnalysedPair(t *testing.T) {
	t.Parallel()

	p, _ := newTestPipeline()
	features := &featureLog{}
	p.AddFeatureSink(features)

	for i := 0; i < 300; i++ {
		af3 := int64(units.ADCBaseline)
		if i >= 100 && i <= 150 {
			af3 += 3000
		}
		feedPair(p, af3, units.ADCBaseline)
	}
	p.Step(t0)

	require.Len(t, features.y1, 1)
	assert.Greater(t, features.y1[0].MaxCoeff, 0.0)
	assert.Less(t, features.y2[0].MaxCoeff, features.y1[0].MaxCoeff)

	// No pair pending: the tick reports status only.
	p.Step(t0.Add(time.Second))
	assert.Len(t, features.y1, 1)
}

func TestRunStopsOnCancel(t *testing.T) {
	t.Parallel()

	port := blemux.NewTestablePort()
	port.BlockReads = true
	mux := blemux.NewMux[blemux.Porter](port)

	p, _ := newTestPipeline()

	ctx, cancel := context.WithCancel(context.Background())
	monDone := make(chan struct{})
	go func() {
		defer close(monDone)
		mux.Monitor(ctx)
	}()

	runDone := make(chan error, 1)
	go func() { runDone <- p.Run(ctx, mux) }()

	// Give the producer time to subscribe, then stream a frame in.
	time.Sleep(100 * time.Millisecond)
	port.AddReadData([]byte(l1frames.EncodeFrameHex(l1frames.HeaderAF3, units.ADCBaseline) + "\n"))
	time.Sleep(100 * time.Millisecond)

	cancel()
	select {
	case err := <-runDone:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("pipeline did not stop on cancel")
	}
	<-monDone

	frames, _ := p.Decoder().Stats()
	assert.Equal(t, uint64(1), frames)
}
