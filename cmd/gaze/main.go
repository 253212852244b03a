// Command gaze runs the gaze-control daemon: it reads the headset byte
// stream from the BLE dongle (or a synthetic generator in dev mode),
// classifies eye movements, and serves the resulting commands over the
// TCP relay and the HTTP monitoring interface.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/synapse-data/gaze.report/internal/blemux"
	"github.com/synapse-data/gaze.report/internal/config"
	"github.com/synapse-data/gaze.report/internal/db"
	"github.com/synapse-data/gaze.report/internal/eeg/calib"
	"github.com/synapse-data/gaze.report/internal/eeg/mockgen"
	"github.com/synapse-data/gaze.report/internal/eeg/monitor"
	"github.com/synapse-data/gaze.report/internal/eeg/pipeline"
	"github.com/synapse-data/gaze.report/internal/relay"
	"github.com/synapse-data/gaze.report/internal/version"
)

var (
	devMode     = flag.Bool("dev", false, "Use the synthetic signal generator instead of a serial port")
	configPath  = flag.String("config", "", "Path to a JSON tuning config")
	dbPath      = flag.String("db", "gaze_data.db", "Path to the calibration database")
	listenAddr  = flag.String("listen", "", "Monitor HTTP listen address (overrides config)")
	relayAddr   = flag.String("relay", "", "Command relay TCP listen address (overrides config)")
	portPath    = flag.String("port", "", "Serial port path of the BLE dongle (overrides config)")
	baudRate    = flag.Int("baud", 0, "Serial baud rate (overrides config)")
	preset      = flag.String("preset", "resting", "Mental-state preset for dev mode")
	seed        = flag.Int64("seed", 1, "Random seed for dev mode")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("gaze %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		os.Exit(0)
	}

	cfg := config.EmptyTuningConfig()
	cfgPath := *configPath
	if cfgPath == "" {
		// Fall back to the shipped defaults file when present.
		if _, err := os.Stat(config.DefaultConfigPath); err == nil {
			cfgPath = config.DefaultConfigPath
		}
	}
	if cfgPath != "" {
		var err error
		cfg, err = config.LoadTuningConfig(cfgPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}
	monitorAddr := cfg.GetMonitorAddr()
	if *listenAddr != "" {
		monitorAddr = *listenAddr
	}
	relayListen := cfg.GetRelayAddr()
	if *relayAddr != "" {
		relayListen = *relayAddr
	}

	var mux blemux.Muxer
	if *devMode {
		gen := mockgen.New(cfg.GetSampleRate(), *seed)
		if !gen.SetPreset(*preset) {
			log.Fatalf("unknown preset %q", *preset)
		}
		frameInterval := mockgen.PacketInterval / (2 * mockgen.SamplesPerPacket)
		mux = blemux.NewFeedMux(frameInterval, gen.FrameFeed())
		log.Printf("dev mode: synthetic generator, preset=%s seed=%d", *preset, *seed)
	} else {
		path := cfg.GetPortPath()
		if *portPath != "" {
			path = *portPath
		}
		baud := cfg.GetBaudRate()
		if *baudRate > 0 {
			baud = *baudRate
		}
		var err error
		mux, err = blemux.NewSerialMux(path, blemux.PortOptions{BaudRate: baud})
		if err != nil {
			log.Fatalf("failed to open dongle port %s: %v", path, err)
		}
	}
	defer mux.Close()

	store, err := db.NewDB(*dbPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer store.Close()

	// Calibrated thresholds win over the config defaults when present.
	thresholds := cfg.GetThresholds()
	if stored, err := store.LatestThresholds(); err == nil {
		thresholds = stored
		log.Printf("using calibrated thresholds: %+v", thresholds)
	} else if !errors.Is(err, db.ErrNoThresholds) {
		log.Fatalf("failed to load thresholds: %v", err)
	}

	p := pipeline.New(pipeline.Config{
		SampleRate:      cfg.GetSampleRate(),
		SyncWindow:      cfg.GetSyncWindow(),
		RefreshInterval: cfg.GetRefreshInterval(),
		Tick:            cfg.GetTickInterval(),
		Debounce:        cfg.GetDebounceInterval(),
		Thresholds:      thresholds,
	})

	relaySrv := relay.NewServer()
	defer relaySrv.Close()
	p.AddCommandSink(relaySrv)

	web := monitor.NewWebServer(monitorAddr)
	p.AddCommandSink(web)
	p.AddStatusSink(web)
	p.AddFeatureSink(web)

	// Guided calibration runs are driven over the monitor's HTTP routes;
	// saved runs retune the live classifier.
	cal := calib.NewCalibrator(cfg.GetSampleRate())
	web.SetCalibration(calib.NewController(cal, p.Decoder(), store, p.Classifier().SetThresholds))

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := mux.Monitor(ctx); err != nil && err != context.Canceled {
			log.Printf("failed to monitor dongle port: %v", err)
		}
		log.Print("monitor routine terminated")
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := relaySrv.Listen(ctx, relayListen); err != nil && err != context.Canceled {
			log.Printf("relay server failed: %v", err)
		}
		log.Print("relay routine terminated")
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := web.Start(ctx); err != nil {
			log.Printf("monitor server failed: %v", err)
		}
		log.Print("web routine terminated")
	}()

	if err := mux.StartStream(); err != nil {
		log.Printf("failed to start headset stream: %v", err)
	}

	if err := p.Run(ctx, mux); err != nil && err != context.Canceled {
		log.Printf("pipeline failed: %v", err)
	}

	if err := mux.StopStream(); err != nil {
		log.Printf("failed to stop headset stream: %v", err)
	}

	stop()
	wg.Wait()
	log.Print("shutdown complete")
}
