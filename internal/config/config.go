// Package config loads memoria's typed, range-validated configuration.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"dario.cat/mergo"

	. "github.com/memoria-dev/memoria/internal/logging"
)

// Config is the merged memoria configuration. All fields are optional in
// the JSON file; missing values take the defaults in Defaults().
type Config struct {
	Injection InjectionConfig `json:"injection"`
	Capture   CaptureConfig   `json:"capture"`
	Metrics   MetricsConfig   `json:"metrics"`
	Decay     DecayConfig     `json:"decay"`
	Logging   LoggingConfig   `json:"logging"`
	Pruner    PrunerConfig    `json:"pruner"`
}

// InjectionConfig controls the context-brief composer.
type InjectionConfig struct {
	Enabled          bool `json:"enabled"`
	MaxTokens        int  `json:"maxTokens"`
	IncludeSessions  int  `json:"includeSessions"`
	IncludeDecisions bool `json:"includeDecisions"`
	IncludeLearnings bool `json:"includeLearnings"`
	IncludeSnapshot  bool `json:"includeSnapshot"`
}

// CaptureConfig controls which tool invocations are recorded as actions.
type CaptureConfig struct {
	Enabled      bool     `json:"enabled"`
	AsyncActions bool     `json:"asyncActions"`
	CaptureTools []string `json:"captureTools"`
}

// MetricsConfig controls utilization advisory thresholds.
type MetricsConfig struct {
	Enabled             bool    `json:"enabled"`
	WarnUtilization     float64 `json:"warnUtilization"`
	CriticalUtilization float64 `json:"criticalUtilization"`
}

// DecayConfig controls the relevance lifecycle.
type DecayConfig struct {
	DailyRate      float64 `json:"dailyRate"`
	ReferenceBoost float64 `json:"referenceBoost"`
	GCThreshold    float64 `json:"gcThreshold"`
}

// LoggingConfig controls the logger.
type LoggingConfig struct {
	Level string `json:"level"`
	File  string `json:"file"`
}

// PrunerConfig controls the optional remote neural-pruning collaborator.
type PrunerConfig struct {
	Enabled           bool    `json:"enabled"`
	URL               string  `json:"url"`
	Threshold         float64 `json:"threshold"`
	TimeoutMs         int     `json:"timeout"`
	AdaptiveThreshold bool    `json:"adaptiveThreshold"`
}

// Defaults returns the built-in configuration defaults.
func Defaults() *Config {
	return &Config{
		Injection: InjectionConfig{
			Enabled:          true,
			MaxTokens:        2000,
			IncludeSessions:  3,
			IncludeDecisions: true,
			IncludeLearnings: true,
			IncludeSnapshot:  true,
		},
		Capture: CaptureConfig{
			Enabled:      true,
			AsyncActions: false,
			CaptureTools: nil, // empty = capture every tool
		},
		Metrics: MetricsConfig{
			Enabled:             true,
			WarnUtilization:     0.75,
			CriticalUtilization: 0.9,
		},
		Decay: DecayConfig{
			DailyRate:      0.05,
			ReferenceBoost: 0.0,
			GCThreshold:    0.1,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Pruner: PrunerConfig{
			Enabled:           false,
			Threshold:         0.5,
			TimeoutMs:         5000,
			AdaptiveThreshold: false,
		},
	}
}

var (
	loaded     *Config
	loadedPath string
	loadOnce   sync.Once
)

// DefaultPath returns the platform-conventional user-scoped config path,
// honoring the MEMORIA_CONFIG override.
func DefaultPath() string {
	if p := os.Getenv("MEMORIA_CONFIG"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".memoria", "config.json")
}

// Load reads the config file (creating none if absent — defaults apply),
// validates it, and memoizes the result for the lifetime of the process.
// Hooks are short-lived single-shot processes, so this memoization only
// ever saves a second parse within the same invocation (e.g. router and
// a handler both calling Load).
func Load() *Config {
	loadOnce.Do(func() {
		path := DefaultPath()
		loadedPath = path
		loaded = loadFrom(path)
	})
	return loaded
}

// loadFrom loads and validates a config file at an explicit path. Used
// directly by tests to avoid the process-wide memoization in Load.
func loadFrom(path string) *Config {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			L_warn("config: failed to read config file", "path", path, "error", err)
		}
		return cfg
	}

	var fileCfg Config
	if err := json.Unmarshal(data, &fileCfg); err != nil {
		L_warn("config: malformed config JSON, using defaults", "path", path, "error", err)
		return cfg
	}

	if err := mergo.Merge(cfg, fileCfg, mergo.WithOverride); err != nil {
		L_warn("config: failed to merge config, using defaults", "error", err)
		return Defaults()
	}

	validate(cfg)

	if wd, err := os.Getwd(); err == nil {
		applyProjectOverlay(cfg, wd)
	}

	return cfg
}

// validate clamps out-of-range values to their declared bounds, logging
// a warning for each substitution. Nothing here ever returns an error:
// a malformed config value degrades to a safe default instead of
// blocking the hook (see spec ValidationError policy).
func validate(cfg *Config) {
	clampInt(&cfg.Injection.MaxTokens, 100, 10000, "injection.maxTokens")
	clampInt(&cfg.Injection.IncludeSessions, 0, 20, "injection.includeSessions")
	clampFloat(&cfg.Metrics.WarnUtilization, 0, 1, "metrics.warnUtilization")
	clampFloat(&cfg.Metrics.CriticalUtilization, 0, 1, "metrics.criticalUtilization")
	if cfg.Metrics.CriticalUtilization <= cfg.Metrics.WarnUtilization {
		L_warn("config: metrics.criticalUtilization must exceed warnUtilization, resetting to defaults",
			"warn", cfg.Metrics.WarnUtilization, "critical", cfg.Metrics.CriticalUtilization)
		cfg.Metrics.WarnUtilization = 0.75
		cfg.Metrics.CriticalUtilization = 0.9
	}
	clampFloat(&cfg.Decay.DailyRate, 0, 1, "decay.dailyRate")
	clampFloat(&cfg.Decay.ReferenceBoost, 0, 1, "decay.referenceBoost")
	clampFloat(&cfg.Decay.GCThreshold, 0, 1, "decay.gcThreshold")
	clampFloat(&cfg.Pruner.Threshold, 0, 1, "pruner.threshold")
	clampInt(&cfg.Pruner.TimeoutMs, 1000, 30000, "pruner.timeout")

	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		L_warn("config: invalid logging.level, defaulting to info", "value", cfg.Logging.Level)
		cfg.Logging.Level = "info"
	}
}

func clampInt(v *int, lo, hi int, field string) {
	if *v < lo {
		L_warn("config: value below range, clamping", "field", field, "value", *v, "min", lo)
		*v = lo
	} else if *v > hi {
		L_warn("config: value above range, clamping", "field", field, "value", *v, "max", hi)
		*v = hi
	}
}

func clampFloat(v *float64, lo, hi float64, field string) {
	if *v < lo {
		L_warn("config: value below range, clamping", "field", field, "value", *v, "min", lo)
		*v = lo
	} else if *v > hi {
		L_warn("config: value above range, clamping", "field", field, "value", *v, "max", hi)
		*v = hi
	}
}

// DBPath returns the embedded database path, honoring the MEMORIA_DB_PATH
// environment override named in spec.md §6.
func DBPath() string {
	if p := os.Getenv("MEMORIA_DB_PATH"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".memoria", "memoria.db")
}

// IsNestedAgent reports whether this process is running inside a nested
// sub-agent context, in which case the router must do nothing and exit
// silently (spec.md §4.7 step 3).
func IsNestedAgent() bool {
	return os.Getenv("MEMORIA_NESTED_AGENT") == "1"
}

// ProjectPathEnv and SessionIDEnv back the tool server's ambient
// project/session identifiers (spec.md §6).
func ProjectPathEnv() string {
	if p := os.Getenv("MEMORIA_PROJECT_PATH"); p != "" {
		return p
	}
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return "unknown"
}

func SessionIDEnv() string {
	if id := os.Getenv("MEMORIA_SESSION_ID"); id != "" {
		return id
	}
	return "unknown"
}

// PrunerURLOverride returns the MEMORIA_PRUNER_URL override, if set.
func PrunerURLOverride() string {
	return os.Getenv("MEMORIA_PRUNER_URL")
}
