package config

import (
	"time"
)

const DefaultFile = "ftree.toml"

type Config struct {
	Version int      `toml:"version"`
	Roots   []string `toml:"roots"`
	Scan    Scan     `toml:"scan"`
	Store   Store    `toml:"store"`
	Output  Output   `toml:"output"`
	Watch   Watch    `toml:"watch"`
	Log     Log      `toml:"log"`
	Metrics Metrics  `toml:"metrics"`
}

type Scan struct {
	// Extensions is the allow-list of source suffixes; empty accepts any
	// extension not ignored.
	Extensions          []string `toml:"extensions"`
	IgnoreExtensions    []string `toml:"ignore_extensions"`
	FixedFormExtensions []string `toml:"fixed_form_extensions"`
	ExcludeDirs         []string `toml:"exclude_dirs"`
	ExcludeFiles        []string `toml:"exclude_files"`
}

type Store struct {
	Path     string `toml:"path"`
	Autosave *bool  `toml:"autosave"`
}

type Output struct {
	DotCommand string `toml:"dot_command"`
	MaxUpper   *int   `toml:"max_upper"`
	MaxLower   *int   `toml:"max_lower"`
}

type Watch struct {
	Debounce time.Duration `toml:"debounce"`
}

type Log struct {
	Level string `toml:"level"`
}

type Metrics struct {
	Address string `toml:"address"`
}

// DefaultConfig is used when no configuration file exists.
func DefaultConfig() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	normalize(cfg)
	return cfg
}

func (s Store) AutosaveEnabled() bool {
	return s.Autosave == nil || *s.Autosave
}

func (o Output) Upper() int {
	if o.MaxUpper == nil {
		return defaultPlotDepth
	}
	return *o.MaxUpper
}

func (o Output) Lower() int {
	if o.MaxLower == nil {
		return defaultPlotDepth
	}
	return *o.MaxLower
}
