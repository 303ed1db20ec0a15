package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Pattern: FTREE_[SECTION]_[KEY] (e.g., FTREE_STORE_PATH).
func ApplyEnvOverrides(cfg *Config) {
	setEnvList(&cfg.Roots, "FTREE_ROOTS")

	setEnvString(&cfg.Store.Path, "FTREE_STORE_PATH")
	if val, ok := os.LookupEnv("FTREE_STORE_AUTOSAVE"); ok {
		if b, err := strconv.ParseBool(strings.ToLower(val)); err == nil {
			slog.Debug("applying env override", "key", "FTREE_STORE_AUTOSAVE", "value", val)
			cfg.Store.Autosave = &b
		}
	}

	setEnvString(&cfg.Output.DotCommand, "FTREE_OUTPUT_DOT_COMMAND")
	setEnvDuration(&cfg.Watch.Debounce, "FTREE_WATCH_DEBOUNCE")
	setEnvString(&cfg.Log.Level, "FTREE_LOG_LEVEL")
	setEnvString(&cfg.Metrics.Address, "FTREE_METRICS_ADDRESS")
}

func setEnvString(target *string, key string) {
	if val, ok := os.LookupEnv(key); ok {
		slog.Debug("applying env override", "key", key, "value", val)
		*target = val
	}
}

// setEnvList reads a list separated by the OS path list separator.
func setEnvList(target *[]string, key string) {
	if val, ok := os.LookupEnv(key); ok && strings.TrimSpace(val) != "" {
		slog.Debug("applying env override", "key", key, "value", val)
		*target = strings.Split(val, string(os.PathListSeparator))
	}
}

func setEnvDuration(target *time.Duration, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = d
		}
	}
}
