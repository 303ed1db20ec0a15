package config

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"

	"github.com/gobwas/glob"
)

func validateVersion(cfg *Config) error {
	if cfg.Version != 1 {
		return fmt.Errorf("unsupported config version %d; supported version is 1", cfg.Version)
	}
	return nil
}

func validateRoots(cfg *Config) []error {
	var errs []error
	for i, root := range cfg.Roots {
		if root == "" {
			errs = append(errs, fmt.Errorf("roots[%d] must not be empty", i))
			continue
		}
		info, err := os.Stat(root)
		if err != nil {
			errs = append(errs, fmt.Errorf("roots[%d] %q does not exist", i, root))
			continue
		}
		if !info.IsDir() {
			errs = append(errs, fmt.Errorf("roots[%d] %q is not a directory", i, root))
		}
	}
	return errs
}

func validateScan(cfg *Config) error {
	for _, ext := range cfg.Scan.Extensions {
		for _, ignored := range cfg.Scan.IgnoreExtensions {
			if ext == ignored {
				return fmt.Errorf("scan: extension %q is both allowed and ignored", ext)
			}
		}
	}
	for _, pattern := range append(append([]string(nil), cfg.Scan.ExcludeDirs...), cfg.Scan.ExcludeFiles...) {
		if _, err := glob.Compile(pattern); err != nil {
			return fmt.Errorf("scan: invalid exclude pattern %q: %w", pattern, err)
		}
	}
	return nil
}

func validateStore(cfg *Config) error {
	if cfg.Store.Path == "" {
		return fmt.Errorf("store.path must not be empty")
	}
	if info, err := os.Stat(cfg.Store.Path); err == nil && info.IsDir() {
		return fmt.Errorf("store.path %q is a directory", cfg.Store.Path)
	}
	return nil
}

func validateOutput(cfg *Config) error {
	if cfg.Output.DotCommand == "" {
		return fmt.Errorf("output.dot_command must not be empty")
	}
	if v := cfg.Output.Upper(); v < -1 {
		return fmt.Errorf("output.max_upper must be >= -1, got %d", v)
	}
	if v := cfg.Output.Lower(); v < -1 {
		return fmt.Errorf("output.max_lower must be >= -1, got %d", v)
	}
	return nil
}

func validateWatch(cfg *Config) error {
	if cfg.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must not be negative, got %s", cfg.Watch.Debounce)
	}
	return nil
}

func validateLog(cfg *Config) error {
	if _, ok := ParseLevel(cfg.Log.Level); !ok {
		return fmt.Errorf("log.level must be one of: debug, info, warn, error; got %q", cfg.Log.Level)
	}
	return nil
}

func validateMetrics(cfg *Config) error {
	if cfg.Metrics.Address == "" {
		return nil
	}
	if _, _, err := net.SplitHostPort(cfg.Metrics.Address); err != nil {
		return fmt.Errorf("metrics.address %q: %w", cfg.Metrics.Address, err)
	}
	return nil
}

// ParseLevel maps a log.level value to a slog level.
func ParseLevel(raw string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug, true
	case "", "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

// Validate returns every problem found in cfg.
func Validate(cfg *Config) []error {
	var errs []error

	if err := validateVersion(cfg); err != nil {
		errs = append(errs, err)
	}
	if err := validateScan(cfg); err != nil {
		errs = append(errs, err)
	}
	if err := validateStore(cfg); err != nil {
		errs = append(errs, err)
	}
	if err := validateOutput(cfg); err != nil {
		errs = append(errs, err)
	}
	if err := validateWatch(cfg); err != nil {
		errs = append(errs, err)
	}
	if err := validateLog(cfg); err != nil {
		errs = append(errs, err)
	}
	if err := validateMetrics(cfg); err != nil {
		errs = append(errs, err)
	}

	errs = append(errs, validateRoots(cfg)...)
	return errs
}
