// Command plot-session renders analysis PNGs from a recorded frame file
// (as written by gen-frames or a session capture): scalogram heat maps of
// the horizontal and vertical components and one line plot per feature
// metric.
package main

import (
	"bufio"
	"flag"
	"log"
	"os"
	"time"

	"github.com/synapse-data/gaze.report/internal/eeg"
	"github.com/synapse-data/gaze.report/internal/eeg/l1frames"
	"github.com/synapse-data/gaze.report/internal/eeg/l3filter"
	"github.com/synapse-data/gaze.report/internal/eeg/l4features"
	"github.com/synapse-data/gaze.report/internal/eeg/monitor"
	"github.com/synapse-data/gaze.report/internal/units"
)

func main() {
	input := flag.String("i", "fixtures.txt", "input file, one hex frame per line")
	outDir := flag.String("o", "plots", "output directory")
	rate := flag.Float64("rate", 0, "sample rate in Hz (0 = headset default)")
	window := flag.Int("window", 244, "feature window in samples")
	stride := flag.Int("stride", 61, "feature window stride in samples")
	flag.Parse()

	fs := *rate
	if fs <= 0 {
		fs = units.DefaultSampleRate
	}
	if *window <= 0 || *stride <= 0 {
		log.Fatal("window and stride must be positive")
	}

	f, err := os.Open(*input)
	if err != nil {
		log.Fatalf("failed to open input: %v", err)
	}
	defer f.Close()

	dec := l1frames.NewDecoder()
	var af3Raw, af4Raw []int64
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		sample, ok, err := dec.DecodeHex(line)
		if err != nil || !ok {
			continue
		}
		switch sample.Channel {
		case eeg.ChannelAF3:
			af3Raw = append(af3Raw, sample.Value)
		case eeg.ChannelAF4:
			af4Raw = append(af4Raw, sample.Value)
		}
	}
	if err := scanner.Err(); err != nil {
		log.Fatalf("failed to read input: %v", err)
	}
	frames, dropped := dec.Stats()
	log.Printf("decoded %d frames (%d dropped): af3=%d af4=%d", frames, dropped, len(af3Raw), len(af4Raw))

	n := len(af3Raw)
	if len(af4Raw) < n {
		n = len(af4Raw)
	}
	if n == 0 {
		log.Fatal("no EEG samples decoded")
	}

	pre := l3filter.NewPreprocessor(fs)
	eog3, _ := pre.SplitBands(pre.Preprocess(af3Raw[:n]))
	eog4, _ := pre.SplitBands(pre.Preprocess(af4Raw[:n]))
	y1, y2 := l4features.DeriveComponents(eog3, eog4)

	sp := monitor.NewScaloPlotter(*outDir, fs)
	for name, signal := range map[string][]float64{"y1": y1, "y2": y2} {
		coeffs, err := l4features.CWT(signal)
		if err != nil {
			log.Fatalf("failed to transform %s: %v", name, err)
		}
		file, err := sp.PlotScalogram(name, l4features.Scalogram(coeffs))
		if err != nil {
			log.Fatalf("failed to plot %s: %v", name, err)
		}
		log.Printf("✓ Created: %s", file)
	}

	ex := l4features.NewExtractor(fs)
	tick := time.Duration(float64(*stride) / fs * float64(time.Second))
	var history []monitor.FeaturePoint
	for start := 0; start+*window <= len(y1); start += *stride {
		history = append(history, monitor.FeaturePoint{
			TS: time.Unix(0, 0).Add(time.Duration(len(history)) * tick),
			Y1: ex.Extract(y1[start : start+*window]),
			Y2: ex.Extract(y2[start : start+*window]),
		})
	}
	count, err := sp.PlotFeatureSeries("session", history)
	if err != nil {
		log.Fatalf("failed to plot feature series: %v", err)
	}
	log.Printf("✓ Created: %d feature plots in %s", count, *outDir)
}
