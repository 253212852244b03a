// Command gen-frames writes synthetic wire-format frame fixtures from the
// mock generator, one hex frame per line, for replay and tests.
package main

import (
	"bufio"
	"flag"
	"log"
	"os"

	"github.com/synapse-data/gaze.report/internal/eeg/mockgen"
)

func main() {
	output := flag.String("o", "fixtures.txt", "output path")
	packets := flag.Int("n", 100, "number of packets")
	preset := flag.String("preset", "resting", "mental-state preset")
	seed := flag.Int64("seed", 1, "random seed")
	rate := flag.Float64("rate", 0, "sample rate in Hz (0 = headset default)")
	flag.Parse()

	gen := mockgen.New(*rate, *seed)
	if !gen.SetPreset(*preset) {
		log.Fatalf("unknown preset %q", *preset)
	}

	f, err := os.Create(*output)
	if err != nil {
		log.Fatalf("failed to create output: %v", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	defer w.Flush()

	next := gen.FrameFeed()
	framesPerPacket := 2 * mockgen.SamplesPerPacket
	for i := 0; i < *packets*framesPerPacket; i++ {
		frame, ok := next()
		if !ok {
			break
		}
		w.Write(frame)
		w.WriteByte('\n')
	}
	log.Printf("✓ Created: %s (%d packets, preset=%s)", *output, *packets, *preset)
}
