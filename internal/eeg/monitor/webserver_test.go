package monitor

import (
	"bufio"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synapse-data/gaze.report/internal/eeg"
)

func TestHealth(t *testing.T) {
	t.Parallel()

	ws := NewWebServer(":0")
	rec := httptest.NewRecorder()
	ws.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK\n", rec.Body.String())
}

func TestStatusReflectsSinks(t *testing.T) {
	t.Parallel()

	ws := NewWebServer(":0")
	ws.Report("movement", "left")
	ws.Report("frames", "120")
	ws.OnCommand(eeg.CommandLeft, time.Now())
	ws.OnCommand(eeg.CommandIdle, time.Now())

	rec := httptest.NewRecorder()
	ws.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, "left", payload["movement"])
	assert.Equal(t, "120", payload["frames"])
	assert.Equal(t, "idle", payload["last_command"])
	assert.Equal(t, float64(2), payload["command_count"])
}

func TestStatusRejectsPost(t *testing.T) {
	t.Parallel()

	ws := NewWebServer(":0")
	rec := httptest.NewRecorder()
	ws.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/status", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestCommandTailStreamsEvents(t *testing.T) {
	t.Parallel()

	ws := NewWebServer(":0")
	srv := httptest.NewServer(ws.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/commands/tail")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, ": ping\n", line)

	// Wait for the subscription to register before broadcasting.
	deadline := time.Now().Add(2 * time.Second)
	for {
		ws.mu.Lock()
		n := len(ws.subscribers)
		ws.mu.Unlock()
		if n == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("subscriber never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	ws.OnCommand(eeg.CommandBlink, time.Now())

	for {
		line, err = reader.ReadString('\n')
		require.NoError(t, err)
		if line == "data: blink\n" {
			return
		}
	}
}

func TestFeatureHistoryBounded(t *testing.T) {
	t.Parallel()

	ws := NewWebServer(":0")
	for i := 0; i < historyCap+50; i++ {
		ws.OnFeatures(eeg.FeatureVector{MaxCoeff: float64(i)}, eeg.FeatureVector{}, time.Now())
	}
	history := ws.History()
	require.Len(t, history, historyCap)
	assert.Equal(t, float64(historyCap+49), history[len(history)-1].Y1.MaxCoeff)
}

func TestFeatureChart(t *testing.T) {
	t.Parallel()

	ws := NewWebServer(":0")
	now := time.Now()
	for i := 0; i < 10; i++ {
		ws.OnFeatures(
			eeg.FeatureVector{MaxCoeff: float64(i), Amplitude: -float64(i)},
			eeg.FeatureVector{MaxCoeff: float64(i) / 2},
			now.Add(time.Duration(i)*250*time.Millisecond),
		)
	}

	rec := httptest.NewRecorder()
	ws.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/charts/features?metric=amplitude&points=5", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "Y1 (horizontal)")
}

func TestFeatureChartUnknownMetric(t *testing.T) {
	t.Parallel()

	ws := NewWebServer(":0")
	rec := httptest.NewRecorder()
	ws.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/charts/features?metric=bogus", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFeatureChartEmptyHistory(t *testing.T) {
	t.Parallel()

	ws := NewWebServer(":0")
	rec := httptest.NewRecorder()
	ws.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/charts/features", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
