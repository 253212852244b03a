package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultsViaGetters(t *testing.T) {
	cfg := EmptyTuningConfig()

	if got := cfg.GetSampleRate(); got != 244.0 {
		t.Errorf("GetSampleRate() = %f, want 244", got)
	}
	if got := cfg.GetSyncWindow(); got != 100*time.Millisecond {
		t.Errorf("GetSyncWindow() = %v, want 100ms", got)
	}
	if got := cfg.GetRefreshInterval(); got != 33*time.Millisecond {
		t.Errorf("GetRefreshInterval() = %v, want 33ms", got)
	}
	if got := cfg.GetEEGBuffer(); got != 2000 {
		t.Errorf("GetEEGBuffer() = %d, want 2000", got)
	}
	if got := cfg.GetTickInterval(); got != 250*time.Millisecond {
		t.Errorf("GetTickInterval() = %v, want 250ms", got)
	}
	if got := cfg.GetDebounceInterval(); got != 500*time.Millisecond {
		t.Errorf("GetDebounceInterval() = %v, want 500ms", got)
	}
	if got := cfg.GetThresholds(); got.MaxCoeff != 50 || got.AUC != 4 || got.Amplitude != 40 || got.Velocity != 300 {
		t.Errorf("GetThresholds() = %+v, want session defaults", got)
	}
	if got := cfg.GetRelayAddr(); got != ":5555" {
		t.Errorf("GetRelayAddr() = %q, want :5555", got)
	}
	if got := cfg.GetBaudRate(); got != 115200 {
		t.Errorf("GetBaudRate() = %d, want 115200", got)
	}
}

func TestLoadTuningConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test_config.json")

	testJSON := `{
  "sample_rate": 128,
  "sync_window": "50ms",
  "debounce_interval": "1s",
  "threshold_max_coeff": 75,
  "port_path": "/dev/ttyACM1"
}`
	if err := os.WriteFile(configPath, []byte(testJSON), 0o644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadTuningConfig(configPath)
	if err != nil {
		t.Fatalf("LoadTuningConfig() error = %v", err)
	}

	if got := cfg.GetSampleRate(); got != 128 {
		t.Errorf("GetSampleRate() = %f, want 128", got)
	}
	if got := cfg.GetSyncWindow(); got != 50*time.Millisecond {
		t.Errorf("GetSyncWindow() = %v, want 50ms", got)
	}
	if got := cfg.GetDebounceInterval(); got != time.Second {
		t.Errorf("GetDebounceInterval() = %v, want 1s", got)
	}
	if got := cfg.GetThresholds(); got.MaxCoeff != 75 || got.AUC != 4 {
		t.Errorf("GetThresholds() = %+v, want overridden MaxCoeff with default AUC", got)
	}
	if got := cfg.GetPortPath(); got != "/dev/ttyACM1" {
		t.Errorf("GetPortPath() = %q, want /dev/ttyACM1", got)
	}

	// Unset fields keep defaults.
	if got := cfg.GetTickInterval(); got != 250*time.Millisecond {
		t.Errorf("GetTickInterval() = %v, want default 250ms", got)
	}
}

func TestShippedDefaultsMatchAccessors(t *testing.T) {
	cfg, err := LoadTuningConfig(filepath.Join("..", "..", DefaultConfigPath))
	if err != nil {
		t.Fatalf("LoadTuningConfig() error = %v", err)
	}

	fallback := EmptyTuningConfig()
	if got, want := cfg.GetSampleRate(), fallback.GetSampleRate(); got != want {
		t.Errorf("GetSampleRate() = %f, want %f", got, want)
	}
	if got, want := cfg.GetSyncWindow(), fallback.GetSyncWindow(); got != want {
		t.Errorf("GetSyncWindow() = %v, want %v", got, want)
	}
	if got, want := cfg.GetTickInterval(), fallback.GetTickInterval(); got != want {
		t.Errorf("GetTickInterval() = %v, want %v", got, want)
	}
	if got, want := cfg.GetDebounceInterval(), fallback.GetDebounceInterval(); got != want {
		t.Errorf("GetDebounceInterval() = %v, want %v", got, want)
	}
	if got, want := cfg.GetThresholds(), fallback.GetThresholds(); got != want {
		t.Errorf("GetThresholds() = %+v, want %+v", got, want)
	}
	if got, want := cfg.GetRelayAddr(), fallback.GetRelayAddr(); got != want {
		t.Errorf("GetRelayAddr() = %q, want %q", got, want)
	}
	if got, want := cfg.GetPortPath(), fallback.GetPortPath(); got != want {
		t.Errorf("GetPortPath() = %q, want %q", got, want)
	}
}

func TestLoadTuningConfigRejectsNonJSON(t *testing.T) {
	if _, err := LoadTuningConfig("tuning.yaml"); err == nil {
		t.Error("expected error for non-JSON extension")
	}
}

func TestLoadTuningConfigMissingFile(t *testing.T) {
	if _, err := LoadTuningConfig(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name string
		cfg  TuningConfig
	}{
		{"negative sample rate", TuningConfig{SampleRate: ptrFloat64(-1)}},
		{"bad sync window", TuningConfig{SyncWindow: ptrString("soon")}},
		{"zero buffer", TuningConfig{EEGBuffer: ptrInt(0)}},
		{"negative threshold", TuningConfig{ThresholdAUC: ptrFloat64(-4)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.cfg.Validate(); err == nil {
				t.Errorf("Validate() accepted %s", tc.name)
			}
		})
	}
}

func TestValidateAcceptsPartialConfig(t *testing.T) {
	cfg := TuningConfig{
		DebounceInterval: ptrString("750ms"),
		ThresholdCoeff:   ptrFloat64(60),
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }
