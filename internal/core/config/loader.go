package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"ftree/internal/core/errors"
)

const defaultPlotDepth = 2

// Load reads a TOML file, fills defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeValidationError, "read config"), errors.CtxPath, path)
	}

	var cfg Config
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeValidationError, "decode config"), errors.CtxPath, path)
	}

	applyDefaults(&cfg)
	ApplyEnvOverrides(&cfg)
	normalize(&cfg)

	if errs := Validate(&cfg); len(errs) > 0 {
		return nil, errors.AddContext(errors.Wrap(errs[0], errors.CodeValidationError, "invalid config"), errors.CtxPath, path)
	}
	return &cfg, nil
}

// LoadOrDefault loads path when it exists and falls back to DefaultConfig
// otherwise.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := &Config{}
		applyDefaults(cfg)
		ApplyEnvOverrides(cfg)
		normalize(cfg)
		if errs := Validate(cfg); len(errs) > 0 {
			return nil, errors.Wrap(errs[0], errors.CodeValidationError, "invalid config")
		}
		return cfg, nil
	}
	return Load(path)
}

func applyDefaults(cfg *Config) {
	if cfg.Version == 0 {
		cfg.Version = 1
	}
	if len(cfg.Roots) == 0 {
		cfg.Roots = []string{"."}
	}
	if cfg.Scan.IgnoreExtensions == nil {
		cfg.Scan.IgnoreExtensions = []string{".json", ".fypp", ".txt"}
	}
	if cfg.Scan.FixedFormExtensions == nil {
		cfg.Scan.FixedFormExtensions = []string{".f", ".for", ".f77", ".ftn"}
	}
	if cfg.Scan.ExcludeDirs == nil {
		cfg.Scan.ExcludeDirs = []string{".git", "build"}
	}
	if strings.TrimSpace(cfg.Store.Path) == "" {
		cfg.Store.Path = "ftree.json"
	}
	if strings.TrimSpace(cfg.Output.DotCommand) == "" {
		cfg.Output.DotCommand = "dot"
	}
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 500 * time.Millisecond
	}
	if strings.TrimSpace(cfg.Log.Level) == "" {
		cfg.Log.Level = "info"
	}
}

func normalize(cfg *Config) {
	for i, root := range cfg.Roots {
		cfg.Roots[i] = filepath.Clean(strings.TrimSpace(root))
	}
	cfg.Scan.Extensions = normalizeExtensions(cfg.Scan.Extensions)
	cfg.Scan.IgnoreExtensions = normalizeExtensions(cfg.Scan.IgnoreExtensions)
	cfg.Scan.FixedFormExtensions = normalizeExtensions(cfg.Scan.FixedFormExtensions)
	cfg.Scan.ExcludeDirs = trimAll(cfg.Scan.ExcludeDirs)
	cfg.Scan.ExcludeFiles = trimAll(cfg.Scan.ExcludeFiles)
	cfg.Store.Path = strings.TrimSpace(cfg.Store.Path)
	cfg.Output.DotCommand = strings.TrimSpace(cfg.Output.DotCommand)
	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))
	cfg.Metrics.Address = strings.TrimSpace(cfg.Metrics.Address)
}

// normalizeExtensions lower-cases suffixes and adds the leading dot.
func normalizeExtensions(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, ext := range in {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		out = append(out, ext)
	}
	return out
}

func trimAll(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
