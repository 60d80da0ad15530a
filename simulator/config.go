package simulator

import (
	"fmt"
	"path/filepath"
	"time"
)

const (
	DefaultTelemetryInterval = 10 * time.Second
	DefaultWeatherInterval   = 30 * time.Second
	DefaultStartHour         = 10.0
	DefaultHourSpeed         = 0.01
	DefaultOpenWeatherURL    = "https://api.openweathermap.org/data/2.5/weather"

	EventsFileName = "injected_events.json"
)

// Config holds parameters for the producers.
type Config struct {
	DataDir           string        `json:"data_dir"`
	TelemetryFile     string        `json:"telemetry_file"`
	WeatherFile       string        `json:"weather_file"`
	EventsFile        string        `json:"events_file"`
	TelemetryInterval time.Duration `json:"telemetry_interval"`
	WeatherInterval   time.Duration `json:"weather_interval"`
	// StartHour and HourSpeed drive the simulated solar clock: the hour
	// advances HourSpeed hours per wall-clock minute and wraps inside a five
	// hour window so generation stays visible.
	StartHour      float64 `json:"start_hour"`
	HourSpeed      float64 `json:"hour_speed"`
	OpenWeatherKey string  `json:"openweather_key"`
	OpenWeatherURL string  `json:"openweather_url"`
	// Fresh truncates both streams before producing.
	Fresh bool  `json:"fresh"`
	Seed  int64 `json:"seed"`
}

// SetDefaults fills zero values.
func (c *Config) SetDefaults() {
	if c.DataDir == "" {
		c.DataDir = "data"
	}
	if c.TelemetryFile == "" {
		c.TelemetryFile = filepath.Join(c.DataDir, "telemetry_stream.jsonl")
	}
	if c.WeatherFile == "" {
		c.WeatherFile = filepath.Join(c.DataDir, "weather_stream.jsonl")
	}
	if c.EventsFile == "" {
		c.EventsFile = filepath.Join(c.DataDir, EventsFileName)
	}
	if c.TelemetryInterval <= 0 {
		c.TelemetryInterval = DefaultTelemetryInterval
	}
	if c.WeatherInterval <= 0 {
		c.WeatherInterval = DefaultWeatherInterval
	}
	if c.StartHour == 0 {
		c.StartHour = DefaultStartHour
	}
	if c.HourSpeed <= 0 {
		c.HourSpeed = DefaultHourSpeed
	}
	if c.OpenWeatherURL == "" {
		c.OpenWeatherURL = DefaultOpenWeatherURL
	}
	if c.Seed == 0 {
		c.Seed = time.Now().UnixNano()
	}
}

// Validate checks the clock parameters.
func (c Config) Validate() error {
	if c.StartHour < 0 || c.StartHour >= 24 {
		return fmt.Errorf("start_hour must be in [0,24)")
	}
	if c.TelemetryInterval <= 0 || c.WeatherInterval <= 0 {
		return fmt.Errorf("intervals must be positive")
	}
	return nil
}
