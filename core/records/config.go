package records

import (
	"fmt"
	"os"
	"path/filepath"
)

// Backend names.
const (
	BackendJSONL    = "jsonl"
	BackendRotating = "rotating"
	BackendSQLite   = "sqlite"
)

// Config selects the storage backend of the output streams.
type Config struct {
	Dir        string `json:"dir"`
	Backend    string `json:"backend"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.Dir == "" {
		c.Dir = "data"
	}
	if c.Backend == "" {
		c.Backend = BackendJSONL
	}
	if c.MaxSizeMB <= 0 {
		c.MaxSizeMB = 50
	}
	if c.MaxBackups <= 0 {
		c.MaxBackups = 5
	}
	if c.MaxAgeDays <= 0 {
		c.MaxAgeDays = 30
	}
}

// Validate checks the backend name.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendJSONL, BackendRotating, BackendSQLite:
		return nil
	}
	return fmt.Errorf("unknown records backend %q", c.Backend)
}

// Path returns the file backing stream under the configured backend.
func (c Config) Path(stream string) string {
	if c.Backend == BackendSQLite {
		return filepath.Join(c.Dir, stream+".db")
	}
	return filepath.Join(c.Dir, stream+".jsonl")
}

// Open returns the store of one stream.
func Open[T Record](cfg Config, stream string) (Store[T], error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	path := cfg.Path(stream)
	var (
		s   Store[T]
		err error
	)
	switch cfg.Backend {
	case BackendRotating:
		s, err = NewRotatingJSONLStore[T](path, cfg.MaxSizeMB, cfg.MaxBackups, cfg.MaxAgeDays)
	case BackendSQLite:
		if err = ensureDir(cfg.Dir); err == nil {
			s, err = NewSQLiteStore[T](path, stream)
		}
	default:
		s, err = NewJSONLStore[T](path)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", stream, err)
	}
	return s, nil
}

func ensureDir(dir string) error {
	return os.MkdirAll(dir, 0o755)
}
