package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	appName    = "surveyreview"
	envPrefix  = "SURVEYREVIEW"
	configName = "config.yaml"
)

// Loader handles configuration loading with Viper.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a new Loader with defaults and environment bindings set.
func NewLoader() *Loader {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Short aliases for the settings operators change most.
	_ = v.BindEnv("target.browser", envPrefix+"_BROWSER", envPrefix+"_TARGET_BROWSER")
	_ = v.BindEnv("target.url", envPrefix+"_URL", envPrefix+"_TARGET_URL")

	setDefaults(v, DefaultConfig())
	return &Loader{v: v}
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("target.url", cfg.Target.URL)
	v.SetDefault("target.browser", cfg.Target.Browser)
	v.SetDefault("target.poll_interval", cfg.Target.PollInterval)

	v.SetDefault("timing.backoff", cfg.Timing.Backoff)
	v.SetDefault("timing.inter_iteration", cfg.Timing.InterIteration)
	v.SetDefault("timing.flaky_probability", cfg.Timing.FlakyProbability)
	v.SetDefault("timing.flaky_penalty", cfg.Timing.FlakyPenalty)
	v.SetDefault("timing.return_focus_wait", cfg.Timing.ReturnFocusWait)
	v.SetDefault("timing.apply_click", cfg.Timing.ApplyClick)

	v.SetDefault("toast.duration", cfg.Toast.Duration)
	v.SetDefault("toast.blocked_duration", cfg.Toast.BlockedDuration)

	v.SetDefault("output.timestamps", cfg.Output.Timestamps)
	v.SetDefault("output.color", cfg.Output.Color)
	v.SetDefault("output.progress_width", cfg.Output.ProgressWidth)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
	v.SetDefault("logging.output", cfg.Logging.Output)

	v.SetDefault("metrics.listen_addr", cfg.Metrics.ListenAddr)
	v.SetDefault("metrics.namespace", cfg.Metrics.Namespace)

	v.SetDefault("report.path", cfg.Report.Path)
}

// Load reads configuration following the documented priority order.
//
// A missing config file is not an error; defaults and environment variables
// still apply. A config file that exists but cannot be parsed is an error.
func (l *Loader) Load() (*Config, error) {
	if path := os.Getenv(envPrefix + "_CONFIG_PATH"); path != "" {
		return l.LoadFromFile(path)
	}

	if path, err := DefaultConfigPath(); err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			return l.LoadFromFile(path)
		}
	}

	if _, err := os.Stat(configName); err == nil {
		return l.LoadFromFile(configName)
	}

	return l.unmarshal()
}

// LoadFromFile reads configuration from a specific file. The format is taken
// from the file extension (yaml, yml, json, toml).
func (l *Loader) LoadFromFile(path string) (*Config, error) {
	l.v.SetConfigFile(path)
	if ext := strings.TrimPrefix(filepath.Ext(path), "."); ext != "" {
		l.v.SetConfigType(ext)
	}
	if err := l.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return l.unmarshal()
}

func (l *Loader) unmarshal() (*Config, error) {
	cfg := DefaultConfig()
	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ConfigFileUsed returns the file the last successful load read, if any.
func (l *Loader) ConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// ConfigDir returns the platform-standard configuration directory for surveyreview.
func ConfigDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate user config directory: %w", err)
	}
	return filepath.Join(dir, appName), nil
}

// DefaultConfigPath returns the path of the user-level config file.
func DefaultConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configName), nil
}
