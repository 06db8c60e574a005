// Package config loads the settings of a partitioning pass. Values come from
// defaults, then an optional YAML file, then WELLPART_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "WELLPART_"

// Config describes one partitioning pass
type Config struct {
	Grid      GridConfig      `yaml:"grid"`
	Wells     [][]int         `yaml:"wells" validate:"dive,min=1,dive,min=0"`
	Ranks     int             `yaml:"ranks" validate:"min=1,max=4096"`
	Root      int             `yaml:"root" validate:"min=0,ltfield=Ranks"`
	Partition PartitionConfig `yaml:"partition"`
	Store     StoreConfig     `yaml:"store"`
	Log       LogConfig       `yaml:"log"`
	Metrics   MetricsConfig   `yaml:"metrics"`

	// LoadedFrom lists the sources applied, lowest priority first
	LoadedFrom []string `yaml:"-"`
}

// GridConfig selects either a Cartesian grid or a mesh file
type GridConfig struct {
	Dims []int  `yaml:"dims" validate:"required_without=Mesh,omitempty,len=3,dive,min=1"`
	Mesh string `yaml:"mesh"`
}

type PartitionConfig struct {
	Strategy         string  `yaml:"strategy" validate:"oneof=block roundrobin graph metis"`
	MaxSpectralNodes int     `yaml:"max_spectral_nodes" validate:"min=0"`
	Imbalance        float64 `yaml:"imbalance" validate:"min=0,max=1"`
	Objective        string  `yaml:"objective" validate:"omitempty,oneof=cut vol"`

	// Overlap adds a one-cell halo of Overlap entries around every rank
	Overlap bool `yaml:"overlap"`
}

// StoreConfig enables SQLite persistence when Path is set
type StoreConfig struct {
	Path  string `yaml:"path"`
	RunID string `yaml:"run_id" validate:"omitempty,max=128"`
}

type LogConfig struct {
	Level       string `yaml:"level" validate:"oneof=debug info warn error"`
	Development bool   `yaml:"development"`
}

type MetricsConfig struct {
	Namespace string `yaml:"namespace" validate:"required,alphanum"`
}

// Default returns the configuration used when nothing overrides it
func Default() *Config {
	return &Config{
		Ranks: 1,
		Partition: PartitionConfig{
			Strategy:  "block",
			Imbalance: 0.05,
			Objective: "vol",
		},
		Log:        LogConfig{Level: "info"},
		Metrics:    MetricsConfig{Namespace: "wellpart"},
		LoadedFrom: []string{"defaults"},
	}
}

// Load reads path (skipped when empty), applies environment overrides and
// validates the result
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open config: %w", err)
		}
		defer file.Close()
		if err := cfg.decode(file); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		cfg.LoadedFrom = append(cfg.LoadedFrom, path)
	}

	applied, err := cfg.loadEnvironmentVariables(os.LookupEnv)
	if err != nil {
		return nil, err
	}
	if applied {
		cfg.LoadedFrom = append(cfg.LoadedFrom, "environment")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) decode(r io.Reader) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// loadEnvironmentVariables overlays WELLPART_* variables on c
func (c *Config) loadEnvironmentVariables(lookup func(string) (string, bool)) (bool, error) {
	applied := false
	str := func(name string, dst *string) {
		if val, ok := lookup(EnvPrefix + name); ok && val != "" {
			*dst = val
			applied = true
		}
	}
	num := func(name string, dst *int) error {
		val, ok := lookup(EnvPrefix + name)
		if !ok || val == "" {
			return nil
		}
		n, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
		}
		*dst = n
		applied = true
		return nil
	}

	if err := num("RANKS", &c.Ranks); err != nil {
		return false, err
	}
	if err := num("ROOT", &c.Root); err != nil {
		return false, err
	}
	str("MESH", &c.Grid.Mesh)
	str("STRATEGY", &c.Partition.Strategy)
	str("DB", &c.Store.Path)
	str("RUN_ID", &c.Store.RunID)
	str("LOG_LEVEL", &c.Log.Level)
	if val, ok := lookup(EnvPrefix + "DIMS"); ok && val != "" {
		dims, err := ParseDims(val)
		if err != nil {
			return false, fmt.Errorf("%sDIMS: %w", EnvPrefix, err)
		}
		c.Grid.Dims = dims
		applied = true
	}
	c.Partition.Strategy = strings.ToLower(c.Partition.Strategy)
	c.Log.Level = strings.ToLower(c.Log.Level)
	return applied, nil
}

// ParseDims parses "nx,ny,nz" or "nx x ny x nz"
func ParseDims(s string) ([]int, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == 'x' || r == ' '
	})
	if len(fields) != 3 {
		return nil, fmt.Errorf("want 3 dimensions, got %q", s)
	}
	dims := make([]int, 3)
	for i, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("dimension %q: %w", f, err)
		}
		dims[i] = n
	}
	return dims, nil
}

// NumCells returns the cell count of a Cartesian grid, 0 for a mesh
func (c *Config) NumCells() int {
	if c.Grid.Mesh != "" || len(c.Grid.Dims) != 3 {
		return 0
	}
	return c.Grid.Dims[0] * c.Grid.Dims[1] * c.Grid.Dims[2]
}

// Validate checks struct constraints and that wells lie inside the grid
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	if n := c.NumCells(); n > 0 {
		for i, w := range c.Wells {
			for _, cell := range w {
				if cell >= n {
					return fmt.Errorf("well %d: cell %d outside grid of %d cells", i, cell, n)
				}
			}
		}
	}
	if c.Partition.Strategy == "metis" && c.Grid.Mesh == "" {
		return errors.New("metis partitioning requires a mesh file")
	}
	return nil
}
