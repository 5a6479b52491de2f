// Package config provides the configuration system for the ultralogi
// pipeline. A single Config structure covers the embedded engine, the
// render transform defaults, the chunk grid, and observability.
package config

import (
	"fmt"
	"time"
)

// Config is the top-level configuration for the pipeline.
type Config struct {
	// Engine configures the embedded analytical engine
	Engine EngineConfig `yaml:"engine" json:"engine"`

	// Render holds the default transform parameters used by cache-aware
	// query paths that take no explicit parameters
	Render RenderConfig `yaml:"render" json:"render"`

	// Grid describes the tile grid and its chunk partitioning
	Grid GridConfig `yaml:"grid" json:"grid"`

	// Logging configures structured logging
	Logging LoggingConfig `yaml:"logging" json:"logging"`

	// Metrics configures the Prometheus endpoint
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`
}

// EngineConfig configures the embedded engine connection.
type EngineConfig struct {
	// Path is the database location; ":memory:" keeps everything
	// process-local, any other value is a durable file
	Path string `yaml:"path" json:"path"`
	// BusyTimeout bounds how long a statement waits on engine-internal
	// locking before failing
	BusyTimeout time.Duration `yaml:"busy_timeout" json:"busy_timeout"`
	// BatchRows is the row count per materialized columnar batch
	BatchRows int `yaml:"batch_rows" json:"batch_rows"`
}

// RenderConfig holds default transform parameters.
type RenderConfig struct {
	// TileSpacing scales integer tile coordinates into world units
	TileSpacing float64 `yaml:"tile_spacing" json:"tile_spacing"`
	// ColorScale multiplies every RGB component of the tile palette
	ColorScale float64 `yaml:"color_scale" json:"color_scale"`
}

// GridConfig describes the tile grid partitioning.
type GridConfig struct {
	// GridSize is the side length of the square tile grid
	GridSize int `yaml:"grid_size" json:"grid_size"`
	// ChunkSize is the side length of one chunk; must divide GridSize
	ChunkSize int `yaml:"chunk_size" json:"chunk_size"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level       string `yaml:"level" json:"level"`
	Development bool   `yaml:"development" json:"development"`
	Encoding    string `yaml:"encoding" json:"encoding"`
}

// MetricsConfig configures the Prometheus scrape endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Address string `yaml:"address" json:"address"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		Engine: EngineConfig{
			Path:        ":memory:",
			BusyTimeout: 5 * time.Second,
			BatchRows:   8192,
		},
		Render: RenderConfig{
			TileSpacing: 1.0,
			ColorScale:  1.0,
		},
		Grid: GridConfig{
			GridSize:  1024,
			ChunkSize: 128,
		},
		Logging: LoggingConfig{
			Level:    "info",
			Encoding: "json",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Address: ":9090",
		},
	}
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	if c.Engine.Path == "" {
		return fmt.Errorf("engine.path must not be empty")
	}
	if c.Engine.BatchRows <= 0 {
		return fmt.Errorf("engine.batch_rows must be positive, got %d", c.Engine.BatchRows)
	}
	if c.Grid.GridSize <= 0 || c.Grid.ChunkSize <= 0 {
		return fmt.Errorf("grid sizes must be positive, got grid_size=%d chunk_size=%d",
			c.Grid.GridSize, c.Grid.ChunkSize)
	}
	if c.Grid.GridSize%c.Grid.ChunkSize != 0 {
		return fmt.Errorf("grid_size %d is not divisible by chunk_size %d",
			c.Grid.GridSize, c.Grid.ChunkSize)
	}
	if c.Render.TileSpacing <= 0 {
		return fmt.Errorf("render.tile_spacing must be positive, got %v", c.Render.TileSpacing)
	}
	return nil
}
