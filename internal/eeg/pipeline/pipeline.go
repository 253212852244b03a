// Package pipeline is the composition root of the gaze detection flow. It
// wires the processing layers (frame decode, channel sync, filtering,
// feature extraction, classification) to a transport subscription on the
// producer side and to command/status sinks on the consumer side.
//
// The pipeline does not own domain logic; it delegates to the layer
// packages and keeps the shared-buffer discipline: the producer mutates
// the decoder buffers and synchronizer slots, the consumer reads emitted
// pairs on a fixed tick.
package pipeline

import (
	"context"
	"math"
	"strconv"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/synapse-data/gaze.report/internal/blemux"
	"github.com/synapse-data/gaze.report/internal/eeg"
	"github.com/synapse-data/gaze.report/internal/eeg/l1frames"
	"github.com/synapse-data/gaze.report/internal/eeg/l2sync"
	"github.com/synapse-data/gaze.report/internal/eeg/l3filter"
	"github.com/synapse-data/gaze.report/internal/eeg/l4features"
	"github.com/synapse-data/gaze.report/internal/eeg/l5classify"
	"github.com/synapse-data/gaze.report/internal/timeutil"
	"github.com/synapse-data/gaze.report/internal/units"
)

const (
	// DefaultTick is the consumer loop interval.
	DefaultTick = 250 * time.Millisecond

	// DefaultAnalysisWindow is the span of recent samples handed to the
	// feature extractor on each tick.
	DefaultAnalysisWindow = time.Second

	// qualityMinSamples is the per-channel buffer depth below which the
	// signal quality reads as insufficient.
	qualityMinSamples = 50

	// weakSpreadUV is the mean absolute deviation, in microvolts, below
	// which a channel reads as flat. It corresponds to the frame decoder's
	// flatline deviation limit of 2000 counts.
	weakSpreadUV = 190.0

	// stressedFloor is the PPG stress level above which the mental state
	// reads as stressed.
	stressedFloor = 0.1
)

// CommandSink receives accepted commands, at most one per debounce
// interval. Implementations own all side effects.
type CommandSink interface {
	OnCommand(cmd eeg.Command, ts time.Time)
}

// CommandSinkFunc adapts a function to the CommandSink interface.
type CommandSinkFunc func(cmd eeg.Command, ts time.Time)

func (f CommandSinkFunc) OnCommand(cmd eeg.Command, ts time.Time) { f(cmd, ts) }

// StatusSink receives UI-agnostic status fields on each consumer tick.
type StatusSink interface {
	Report(field, value string)
}

// FeatureSink receives the horizontal and vertical feature vectors of
// every analysed pair, before classification. Chart and diagnostic
// consumers attach here.
type FeatureSink interface {
	OnFeatures(y1, y2 eeg.FeatureVector, ts time.Time)
}

// Config carries the pipeline tuning knobs. Zero values take defaults.
type Config struct {
	SampleRate      float64
	SyncWindow      time.Duration
	RefreshInterval time.Duration
	Tick            time.Duration
	Debounce        time.Duration
	AnalysisWindow  time.Duration
	Thresholds      eeg.ThresholdSet
	Mapper          l5classify.Mapper
	Clock           timeutil.Clock
}

func (c Config) withDefaults() Config {
	if c.SampleRate <= 0 {
		c.SampleRate = units.DefaultSampleRate
	}
	if c.Tick <= 0 {
		c.Tick = DefaultTick
	}
	if c.AnalysisWindow <= 0 {
		c.AnalysisWindow = DefaultAnalysisWindow
	}
	if c.Thresholds == (eeg.ThresholdSet{}) {
		c.Thresholds = eeg.DefaultThresholds()
	}
	if c.Mapper == nil {
		c.Mapper = l5classify.MapFull
	}
	if c.Clock == nil {
		c.Clock = timeutil.RealClock{}
	}
	return c
}

// Pipeline connects a frame source to command and status sinks.
type Pipeline struct {
	cfg Config

	decoder    *l1frames.Decoder
	sync       *l2sync.Synchronizer
	pre        *l3filter.Preprocessor
	extractor  *l4features.Extractor
	classifier *l5classify.Classifier

	mu       sync.Mutex
	pending  l2sync.Pair
	hasPair  bool
	sequence uint64

	sinkMu   sync.Mutex
	commands []CommandSink
	statuses []StatusSink
	features []FeatureSink
}

// New creates a pipeline from the config.
func New(cfg Config) *Pipeline {
	cfg = cfg.withDefaults()
	return &Pipeline{
		cfg:        cfg,
		decoder:    l1frames.NewDecoder(),
		sync:       l2sync.New(cfg.SyncWindow, cfg.RefreshInterval),
		pre:        l3filter.NewPreprocessor(cfg.SampleRate),
		extractor:  l4features.NewExtractor(cfg.SampleRate),
		classifier: l5classify.NewClassifier(cfg.Thresholds, cfg.Debounce),
	}
}

// Decoder exposes the frame decoder for calibration snapshots.
func (p *Pipeline) Decoder() *l1frames.Decoder { return p.decoder }

// Classifier exposes the classifier for threshold updates.
func (p *Pipeline) Classifier() *l5classify.Classifier { return p.classifier }

// AddCommandSink registers a command sink.
func (p *Pipeline) AddCommandSink(s CommandSink) {
	p.sinkMu.Lock()
	defer p.sinkMu.Unlock()
	p.commands = append(p.commands, s)
}

// AddStatusSink registers a status sink.
func (p *Pipeline) AddStatusSink(s StatusSink) {
	p.sinkMu.Lock()
	defer p.sinkMu.Unlock()
	p.statuses = append(p.statuses, s)
}

// AddFeatureSink registers a feature sink.
func (p *Pipeline) AddFeatureSink(s FeatureSink) {
	p.sinkMu.Lock()
	defer p.sinkMu.Unlock()
	p.features = append(p.features, s)
}

// HandleFrame decodes one hex-encoded frame line and advances the channel
// synchronizer. Malformed frames are counted and skipped; the producer
// never stops on bad input.
func (p *Pipeline) HandleFrame(line string) {
	sample, ok, err := p.decoder.DecodeHex(line)
	if err != nil {
		tracef("frame dropped: %v", err)
		return
	}
	if !ok {
		return
	}
	if sample.Channel != eeg.ChannelAF3 && sample.Channel != eeg.ChannelAF4 {
		return
	}

	window := p.channelWindow(sample.Channel)
	if pair, emitted := p.sync.Update(sample.Channel, window, sample.Arrival); emitted {
		p.mu.Lock()
		p.pending = pair
		p.hasPair = true
		p.mu.Unlock()
		tracef("pair emitted: af3=%d af4=%d skew=%v", len(pair.AF3), len(pair.AF4), pair.Skew())
	}
}

// channelWindow returns the analysis tail of the channel buffer.
func (p *Pipeline) channelWindow(ch eeg.Channel) []int64 {
	af3, af4 := p.decoder.Snapshot()
	data := af3
	if ch == eeg.ChannelAF4 {
		data = af4
	}
	n := units.SamplesFor(p.cfg.AnalysisWindow, p.cfg.SampleRate)
	if len(data) > n {
		data = data[len(data)-n:]
	}
	return data
}

// takePair removes and returns the most recent emitted pair, if any.
func (p *Pipeline) takePair() (l2sync.Pair, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.hasPair {
		return l2sync.Pair{}, false
	}
	p.hasPair = false
	return p.pending, true
}

// Step runs one consumer iteration at the given instant: preprocess the
// latest pair, isolate the EOG band, derive the horizontal and vertical
// components, extract features, classify and fan accepted commands out to
// the sinks.
func (p *Pipeline) Step(now time.Time) {
	if cleared := p.decoder.ClearNoise(); cleared {
		opsf("noise plateau cleared from channel buffers")
	}

	pair, ok := p.takePair()
	if !ok {
		p.reportStatus()
		return
	}

	af3 := p.pre.Preprocess(pair.AF3)
	af4 := p.pre.Preprocess(pair.AF4)
	// Eye movement rides the low band; brain rhythms above the split are
	// left to the band classifier.
	eog3, _ := p.pre.SplitBands(af3)
	eog4, _ := p.pre.SplitBands(af4)
	y1, y2 := l4features.DeriveComponents(eog3, eog4)

	f1 := p.extractor.Extract(y1)
	f2 := p.extractor.Extract(y2)
	p.emitFeatures(f1, f2, now)

	_, before := p.classifier.Stats()
	movement := p.classifier.Classify(f1, f2, now)
	_, after := p.classifier.Stats()

	if after > before {
		cmd := p.cfg.Mapper(movement)
		p.mu.Lock()
		p.sequence++
		seq := p.sequence
		p.mu.Unlock()
		diagf("detection %d: movement=%s command=%s coeff=%.1f", seq, movement, cmd, f1.MaxCoeff)
		p.emit(cmd, now)
	}

	p.reportStatus()
}

func (p *Pipeline) emit(cmd eeg.Command, ts time.Time) {
	p.sinkMu.Lock()
	sinks := append([]CommandSink(nil), p.commands...)
	p.sinkMu.Unlock()
	for _, s := range sinks {
		s.OnCommand(cmd, ts)
	}
}

func (p *Pipeline) emitFeatures(f1, f2 eeg.FeatureVector, ts time.Time) {
	p.sinkMu.Lock()
	sinks := append([]FeatureSink(nil), p.features...)
	p.sinkMu.Unlock()
	for _, s := range sinks {
		s.OnFeatures(f1, f2, ts)
	}
}

func (p *Pipeline) reportStatus() {
	p.sinkMu.Lock()
	sinks := append([]StatusSink(nil), p.statuses...)
	p.sinkMu.Unlock()
	if len(sinks) == 0 {
		return
	}

	movement := p.classifier.Current().String()
	frames, dropped := p.decoder.Stats()
	quality, level := p.signalQuality()

	ppg := p.decoder.PPGValues()
	mental := "unknown"
	var stress, speed float64
	if len(ppg) > 0 {
		stress = l5classify.StressLevel(ppg)
		speed = l5classify.SpeedFactor(ppg)
		if stress > stressedFloor {
			mental = "stressed"
		} else {
			mental = "calm"
		}
	}

	for _, s := range sinks {
		s.Report("movement", movement)
		s.Report("frames", strconv.FormatUint(frames, 10))
		s.Report("dropped", strconv.FormatUint(dropped, 10))
		s.Report("af3_depth", strconv.Itoa(p.decoder.Len(eeg.ChannelAF3)))
		s.Report("af4_depth", strconv.Itoa(p.decoder.Len(eeg.ChannelAF4)))
		s.Report("signal", quality)
		s.Report("signal_quality", strconv.FormatFloat(level, 'f', 1, 64))
		s.Report("mental_state", mental)
		if len(ppg) > 0 {
			s.Report("stress", strconv.FormatFloat(stress, 'f', 3, 64))
			s.Report("speed_factor", strconv.FormatFloat(speed, 'f', 2, 64))
		}
	}
}

// signalQuality grades the live channel buffers: "insufficient" until both
// channels hold enough samples, "weak" while the signal sits flat, "ok"
// otherwise. The level is the mean absolute deviation around the window
// mean, in microvolts, averaged over both channels.
func (p *Pipeline) signalQuality() (label string, level float64) {
	af3, af4 := p.decoder.Snapshot()
	if len(af3) < qualityMinSamples || len(af4) < qualityMinSamples {
		return "insufficient", 0
	}
	level = (channelSpread(af3) + channelSpread(af4)) / 2
	if level < weakSpreadUV {
		return "weak", level
	}
	return "ok", level
}

func channelSpread(raw []int64) float64 {
	uv := units.ConvertToMicrovolts(raw)
	mean := stat.Mean(uv, nil)
	var dev float64
	for _, v := range uv {
		dev += math.Abs(v - mean)
	}
	return dev / float64(len(uv))
}

// Run consumes the transport subscription until the context is cancelled.
// The producer feeds every received frame into the decoder; the consumer
// ticks at the configured interval. Both stop cleanly on cancellation and
// no partial result is ever published.
func (p *Pipeline) Run(ctx context.Context, mux blemux.Muxer) error {
	id, frames := mux.Subscribe()
	defer mux.Unsubscribe(id)

	opsf("pipeline started: tick=%v window=%v", p.cfg.Tick, p.cfg.AnalysisWindow)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case line, ok := <-frames:
				if !ok {
					return
				}
				p.HandleFrame(line)
			}
		}
	}()

	ticker := p.cfg.Clock.NewTicker(p.cfg.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			opsf("pipeline stopped: %v", ctx.Err())
			return ctx.Err()
		case now := <-ticker.C():
			p.Step(now)
		}
	}
}
