package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/immansha/renewcast/core/compliance"
	"github.com/immansha/renewcast/core/forecast"
	"github.com/immansha/renewcast/core/metrics"
	"github.com/immansha/renewcast/core/pipeline"
	"github.com/immansha/renewcast/core/records"
	"github.com/immansha/renewcast/core/retrieval"
	"github.com/immansha/renewcast/infra/mqtt"
	"github.com/immansha/renewcast/simulator"
)

type Config struct {
	// Catalog is the path of the entity catalog. Empty means the built-in
	// plants.
	Catalog    string            `json:"catalog"`
	Pipeline   pipeline.Config   `json:"pipeline"`
	Forecast   forecast.Config   `json:"forecast"`
	Compliance compliance.Config `json:"compliance"`
	Retrieval  retrieval.Config  `json:"retrieval"`
	Generation GenerationConfig  `json:"generation"`
	Records    records.Config    `json:"records"`
	Metrics    metrics.Config    `json:"metrics"`
	MQTT       mqtt.Config       `json:"mqtt"`
	API        APIConfig         `json:"api"`
	Sentry     SentryConfig      `json:"sentry"`
	Simulator  simulator.Config  `json:"simulator"`
}

// Load reads a YAML or JSON file, applies K_ environment overrides and fills
// defaults. A .env file next to the working directory is loaded first so
// that provider keys can live there. An empty path loads defaults only.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if path != "" {
		ext := strings.ToLower(filepath.Ext(path))
		var parser koanf.Parser
		switch ext {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		case ".json":
			parser = json.Parser()
		default:
			return nil, fmt.Errorf("unsupported config format: %s", ext)
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, err
		}
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("K_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	cfg.Generation.applyEnv(os.Getenv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults fills every section. The data directory of the pipeline is
// shared by the records and the simulator unless they set their own.
func (c *Config) SetDefaults() {
	c.Pipeline.SetDefaults()
	if c.Records.Dir == "" {
		c.Records.Dir = c.Pipeline.DataDir
	}
	if c.Simulator.DataDir == "" {
		c.Simulator.DataDir = c.Pipeline.DataDir
	}
	if c.Simulator.TelemetryFile == "" {
		c.Simulator.TelemetryFile = c.Pipeline.TelemetryFile
	}
	if c.Simulator.WeatherFile == "" {
		c.Simulator.WeatherFile = c.Pipeline.WeatherFile
	}
	if c.Forecast.SnapshotPath == "" {
		c.Forecast.SnapshotPath = filepath.Join(c.Pipeline.DataDir, "model_state.json")
	}
	c.Forecast.SetDefaults()
	c.Compliance.SetDefaults()
	c.Retrieval.SetDefaults()
	c.Records.SetDefaults()
	c.Simulator.SetDefaults()
	c.Generation.SetDefaults()
}

// Validate checks every section.
func (c Config) Validate() error {
	for _, v := range []interface{ Validate() error }{
		c.Pipeline, c.Retrieval, c.Records, c.Simulator, c.Generation,
	} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}
