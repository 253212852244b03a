// Package monitor provides the HTTP debugging surface for a running
// pipeline: a JSON status endpoint, a server-sent event stream of
// classified commands, HTML feature charts, and offline PNG rendering of
// scalogram surfaces for analysis runs.
package monitor

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/synapse-data/gaze.report/internal/eeg"
	"github.com/synapse-data/gaze.report/internal/httputil"
	"github.com/synapse-data/gaze.report/internal/monitoring"
)

// historyCap bounds the retained feature points (a few minutes at the
// default tick).
const historyCap = 600

// FeaturePoint is one retained chart sample: both component feature
// vectors at a consumer tick.
type FeaturePoint struct {
	TS time.Time
	Y1 eeg.FeatureVector
	Y2 eeg.FeatureVector
}

// Calibration is the guided-calibration surface the HTTP routes drive.
// *calib.Controller satisfies it.
type Calibration interface {
	Begin(label string) error
	Capture() (int, error)
	End() error
	Abort()
	Save(notes string) (eeg.ThresholdSet, string, error)
	Status() (active string, segments int)
}

// WebServer handles the HTTP monitoring interface. It attaches to a
// pipeline as a command, status and feature sink.
type WebServer struct {
	address     string
	server      *http.Server
	calibration Calibration

	mu           sync.Mutex
	status       map[string]string
	history      []FeaturePoint
	lastCommand  string
	commandCount uint64
	subscribers  map[string]chan string
}

// NewWebServer creates a web server bound to the given address.
func NewWebServer(address string) *WebServer {
	ws := &WebServer{
		address:     address,
		status:      make(map[string]string),
		subscribers: make(map[string]chan string),
	}
	ws.server = &http.Server{
		Addr:    address,
		Handler: ws.setupRoutes(),
	}
	return ws
}

func (ws *WebServer) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", ws.handleHealth)
	mux.HandleFunc("/api/status", ws.handleStatus)
	mux.HandleFunc("/api/commands/tail", ws.handleCommandTail)
	mux.HandleFunc("/api/calibration", ws.handleCalibrationStatus)
	mux.HandleFunc("/api/calibration/begin", ws.handleCalibrationBegin)
	mux.HandleFunc("/api/calibration/capture", ws.handleCalibrationCapture)
	mux.HandleFunc("/api/calibration/end", ws.handleCalibrationEnd)
	mux.HandleFunc("/api/calibration/abort", ws.handleCalibrationAbort)
	mux.HandleFunc("/api/calibration/save", ws.handleCalibrationSave)
	mux.HandleFunc("/charts/features", ws.handleFeatureChart)
	return mux
}

// SetCalibration attaches the calibration surface. Call before Start; the
// routes report 404 until one is attached.
func (ws *WebServer) SetCalibration(c Calibration) {
	ws.calibration = c
}

// Start begins serving in a goroutine and blocks until the context is
// cancelled, then shuts the server down.
func (ws *WebServer) Start(ctx context.Context) error {
	go func() {
		monitoring.Logf("[monitor] starting HTTP server on %s", ws.address)
		if err := ws.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			monitoring.Logf("[monitor] server failed: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := ws.server.Shutdown(shutdownCtx); err != nil {
		monitoring.Logf("[monitor] shutdown error: %v", err)
		ws.server.Close()
	}
	return nil
}

// Handler exposes the route mux for tests.
func (ws *WebServer) Handler() http.Handler { return ws.server.Handler }

// Report implements pipeline.StatusSink.
func (ws *WebServer) Report(field, value string) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	ws.status[field] = value
}

// OnCommand implements pipeline.CommandSink: the command is recorded and
// fanned out to SSE subscribers. Slow subscribers are skipped.
func (ws *WebServer) OnCommand(cmd eeg.Command, _ time.Time) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	ws.lastCommand = string(cmd)
	ws.commandCount++
	for _, c := range ws.subscribers {
		select {
		case c <- string(cmd):
		default:
		}
	}
}

// OnFeatures implements pipeline.FeatureSink, retaining a bounded history
// for the charts.
func (ws *WebServer) OnFeatures(y1, y2 eeg.FeatureVector, ts time.Time) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	ws.history = append(ws.history, FeaturePoint{TS: ts, Y1: y1, Y2: y2})
	if len(ws.history) > historyCap {
		ws.history = ws.history[len(ws.history)-historyCap:]
	}
}

// History returns a copy of the retained feature points.
func (ws *WebServer) History() []FeaturePoint {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	out := make([]FeaturePoint, len(ws.history))
	copy(out, ws.history)
	return out
}

func (ws *WebServer) subscribe() (string, chan string) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	id := uuid.NewString()
	c := make(chan string, 16)
	ws.subscribers[id] = c
	return id, c
}

func (ws *WebServer) unsubscribe(id string) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if c, ok := ws.subscribers[id]; ok {
		delete(ws.subscribers, id)
		close(c)
	}
}

func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}

// handleStatus returns the latest pipeline status fields plus command
// counters as JSON.
func (ws *WebServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	ws.mu.Lock()
	payload := map[string]interface{}{
		"last_command":  ws.lastCommand,
		"command_count": ws.commandCount,
		"subscribers":   len(ws.subscribers),
		"history_depth": len(ws.history),
	}
	for k, v := range ws.status {
		payload[k] = v
	}
	ws.mu.Unlock()

	httputil.WriteJSONOK(w, payload)
}

// handleCommandTail streams classified commands as server-sent events.
func (ws *WebServer) handleCommandTail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	id, c := ws.subscribe()
	defer ws.unsubscribe(id)

	w.Write([]byte(": ping\n\n"))
	w.(http.Flusher).Flush()

	for {
		select {
		case cmd, ok := <-c:
			if !ok {
				return
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", cmd); err != nil {
				return
			}
			w.(http.Flusher).Flush()
		case <-r.Context().Done():
			return
		}
	}
}
