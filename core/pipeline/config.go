package pipeline

import (
	"fmt"
	"path/filepath"
	"time"
)

const (
	DefaultPollInterval  = 2 * time.Second
	DefaultAdvisoryEvery = 6

	TelemetryFileName = "telemetry_stream.jsonl"
	WeatherFileName   = "weather_stream.jsonl"
)

// Config locates the input streams and paces the orchestrator.
type Config struct {
	DataDir       string        `json:"data_dir"`
	TelemetryFile string        `json:"telemetry_file"`
	WeatherFile   string        `json:"weather_file"`
	PollInterval  time.Duration `json:"poll_interval"`
	// AdvisoryEvery generates an advisory when the trained sample count
	// modulo AdvisoryEvery equals one.
	AdvisoryEvery int `json:"advisory_every"`
}

// SetDefaults fills zero values. Input files default to DataDir.
func (c *Config) SetDefaults() {
	if c.DataDir == "" {
		c.DataDir = "data"
	}
	if c.TelemetryFile == "" {
		c.TelemetryFile = filepath.Join(c.DataDir, TelemetryFileName)
	}
	if c.WeatherFile == "" {
		c.WeatherFile = filepath.Join(c.DataDir, WeatherFileName)
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.AdvisoryEvery <= 0 {
		c.AdvisoryEvery = DefaultAdvisoryEvery
	}
}

// Validate checks the configuration after SetDefaults.
func (c Config) Validate() error {
	if c.TelemetryFile == "" {
		return fmt.Errorf("pipeline: telemetry file required")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("pipeline: poll interval must be positive")
	}
	if c.AdvisoryEvery <= 0 {
		return fmt.Errorf("pipeline: advisory_every must be positive")
	}
	return nil
}
