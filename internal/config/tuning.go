// Package config loads the pipeline tuning parameters from JSON. All
// fields are optional pointers; the Get* accessors supply defaults so a
// partial config file is always safe.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/synapse-data/gaze.report/internal/eeg"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig is the root tuning configuration. The schema matches the
// monitor's /api/params payload so the same JSON serves startup
// configuration and runtime updates.
type TuningConfig struct {
	// Acquisition params
	SampleRate *float64 `json:"sample_rate,omitempty"`
	SyncWindow *string  `json:"sync_window,omitempty"`       // duration string like "100ms"
	RefreshMin *string  `json:"refresh_interval,omitempty"`  // duration string like "33ms"
	EEGBuffer  *int     `json:"eeg_buffer_size,omitempty"`

	// Classification params
	TickInterval     *string  `json:"tick_interval,omitempty"`     // duration string like "250ms"
	DebounceInterval *string  `json:"debounce_interval,omitempty"` // duration string like "500ms"
	ThresholdCoeff   *float64 `json:"threshold_max_coeff,omitempty"`
	ThresholdAUC     *float64 `json:"threshold_auc,omitempty"`
	ThresholdAmp     *float64 `json:"threshold_amplitude,omitempty"`
	ThresholdVel     *float64 `json:"threshold_velocity,omitempty"`

	// Relay / monitor params
	RelayAddr   *string `json:"relay_addr,omitempty"`
	MonitorAddr *string `json:"monitor_addr,omitempty"`

	// Transport params
	PortPath *string `json:"port_path,omitempty"`
	BaudRate *int    `json:"baud_rate,omitempty"`
}

// EmptyTuningConfig returns a TuningConfig with all fields unset.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file. Fields omitted
// from the JSON keep their defaults, so partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Refuse oversized files before reading.
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration values.
func (c *TuningConfig) Validate() error {
	if c.SampleRate != nil && *c.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %f", *c.SampleRate)
	}

	for name, field := range map[string]*string{
		"sync_window":       c.SyncWindow,
		"refresh_interval":  c.RefreshMin,
		"tick_interval":     c.TickInterval,
		"debounce_interval": c.DebounceInterval,
	} {
		if field != nil && *field != "" {
			if _, err := time.ParseDuration(*field); err != nil {
				return fmt.Errorf("invalid %s '%s': %w", name, *field, err)
			}
		}
	}

	if c.EEGBuffer != nil && *c.EEGBuffer <= 0 {
		return fmt.Errorf("eeg_buffer_size must be positive, got %d", *c.EEGBuffer)
	}

	for name, field := range map[string]*float64{
		"threshold_max_coeff": c.ThresholdCoeff,
		"threshold_auc":       c.ThresholdAUC,
		"threshold_amplitude": c.ThresholdAmp,
		"threshold_velocity":  c.ThresholdVel,
	} {
		if field != nil && *field <= 0 {
			return fmt.Errorf("%s must be positive, got %f", name, *field)
		}
	}

	return nil
}

func (c *TuningConfig) duration(field *string, fallback time.Duration) time.Duration {
	if field == nil || *field == "" {
		return fallback
	}
	d, err := time.ParseDuration(*field)
	if err != nil {
		return fallback
	}
	return d
}

// GetSampleRate returns the sample_rate value or the headset default.
func (c *TuningConfig) GetSampleRate() float64 {
	if c.SampleRate == nil {
		return 244.0
	}
	return *c.SampleRate
}

// GetSyncWindow returns the cross-channel pairing window.
func (c *TuningConfig) GetSyncWindow() time.Duration {
	return c.duration(c.SyncWindow, 100*time.Millisecond)
}

// GetRefreshInterval returns the minimum interval between emitted pairs.
func (c *TuningConfig) GetRefreshInterval() time.Duration {
	return c.duration(c.RefreshMin, 33*time.Millisecond)
}

// GetEEGBuffer returns the per-channel ring buffer capacity.
func (c *TuningConfig) GetEEGBuffer() int {
	if c.EEGBuffer == nil {
		return 2000
	}
	return *c.EEGBuffer
}

// GetTickInterval returns the consumer loop tick.
func (c *TuningConfig) GetTickInterval() time.Duration {
	return c.duration(c.TickInterval, 250*time.Millisecond)
}

// GetDebounceInterval returns the classifier rate-limit interval.
func (c *TuningConfig) GetDebounceInterval() time.Duration {
	return c.duration(c.DebounceInterval, 500*time.Millisecond)
}

// GetThresholds assembles the classifier threshold set, falling back to
// the session defaults for unset fields.
func (c *TuningConfig) GetThresholds() eeg.ThresholdSet {
	t := eeg.DefaultThresholds()
	if c.ThresholdCoeff != nil {
		t.MaxCoeff = *c.ThresholdCoeff
	}
	if c.ThresholdAUC != nil {
		t.AUC = *c.ThresholdAUC
	}
	if c.ThresholdAmp != nil {
		t.Amplitude = *c.ThresholdAmp
	}
	if c.ThresholdVel != nil {
		t.Velocity = *c.ThresholdVel
	}
	return t
}

// GetRelayAddr returns the TCP command relay listen address.
func (c *TuningConfig) GetRelayAddr() string {
	if c.RelayAddr == nil {
		return ":5555"
	}
	return *c.RelayAddr
}

// GetMonitorAddr returns the HTTP monitor listen address.
func (c *TuningConfig) GetMonitorAddr() string {
	if c.MonitorAddr == nil {
		return ":8080"
	}
	return *c.MonitorAddr
}

// GetPortPath returns the dongle serial port path.
func (c *TuningConfig) GetPortPath() string {
	if c.PortPath == nil {
		return "/dev/ttyUSB0"
	}
	return *c.PortPath
}

// GetBaudRate returns the dongle baud rate.
func (c *TuningConfig) GetBaudRate() int {
	if c.BaudRate == nil {
		return 115200
	}
	return *c.BaudRate
}
