// Package config provides configuration loading and management for surveyreview.
//
// Configuration is loaded using Viper, supporting YAML config files and environment
// variable overrides. The defaults reproduce the timings of the review workflow and
// work without any configuration file.
//
// Key types:
//   - [Config] is the root configuration container with all settings
//   - [Loader] handles Viper-based configuration loading
//   - [TargetConfig] describes the review page and the browser that shows it
//   - [TimingConfig] holds the fixed delays of a run
//
// Configuration priority (highest to lowest):
//  1. Environment variables (SURVEYREVIEW_ prefix, e.g. SURVEYREVIEW_TIMING_BACKOFF)
//  2. Config file specified by SURVEYREVIEW_CONFIG_PATH
//  3. User config directory (platform-standard):
//     - Linux: ~/.config/surveyreview/config.yaml
//     - macOS: ~/Library/Application Support/surveyreview/config.yaml
//     - Windows: %APPDATA%\surveyreview\config.yaml
//  4. ./config.yaml
//  5. [DefaultConfig] defaults
package config

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"
)

// DefaultTargetURL is the crop-survey review page the workflow runs against.
const DefaultTargetURL = "https://updcs.agristack.gov.in/crop-survey-up/#/pages/surveyTaskManagement/reviewSurveyDetails"

// ErrInvalidConfig is wrapped by every [Config.Validate] failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config represents the root configuration structure.
//
// This is the main configuration container loaded by [Loader] and used throughout
// the application. Use [DefaultConfig] to get sensible defaults.
type Config struct {
	// Target describes the review page and how it is opened.
	Target TargetConfig `mapstructure:"target"`

	// Timing contains the fixed delays of a run.
	Timing TimingConfig `mapstructure:"timing"`

	// Toast controls how long notifications stay visible.
	Toast ToastConfig `mapstructure:"toast"`

	// Output contains terminal output formatting configuration.
	Output OutputConfig `mapstructure:"output"`

	// Logging configures diagnostic logging.
	Logging LoggingConfig `mapstructure:"logging"`

	// Metrics configures the Prometheus endpoint.
	Metrics MetricsConfig `mapstructure:"metrics"`

	// Report configures the run report file.
	Report ReportConfig `mapstructure:"report"`
}

// TargetConfig describes the secondary browser surface.
type TargetConfig struct {
	// URL is the page opened in the secondary surface.
	URL string `mapstructure:"url"`

	// Browser is the command that opens URL. It receives BrowserArgs followed by URL.
	// Liveness follows the launched process, so it must stay in the foreground;
	// launchers that hand off and exit (xdg-open) read as closed at once.
	// Default: "firefox". Can be overridden with SURVEYREVIEW_BROWSER.
	Browser string `mapstructure:"browser"`

	// BrowserArgs are extra arguments placed before the URL,
	// e.g. ["--new-window"] for a Chromium binary.
	BrowserArgs []string `mapstructure:"browser_args"`

	// PollInterval is how often liveness is checked while watching.
	// Default: 1s
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// TimingConfig holds the fixed delays of a run. Step delays come from the
// step catalog and are not configurable.
type TimingConfig struct {
	// Backoff is the pause after a failed iteration. Default: 1s
	Backoff time.Duration `mapstructure:"backoff"`

	// InterIteration is the pause between iterations. Default: 2s
	InterIteration time.Duration `mapstructure:"inter_iteration"`

	// FlakyProbability is the chance the flaky approve step needs another attempt.
	// Default: 0.1
	FlakyProbability float64 `mapstructure:"flaky_probability"`

	// FlakyPenalty is the extra pause for that attempt. Default: 500ms
	FlakyPenalty time.Duration `mapstructure:"flaky_penalty"`

	// ReturnFocusWait is the pause after focusing the original surface. Default: 1s
	ReturnFocusWait time.Duration `mapstructure:"return_focus_wait"`

	// ApplyClick is the simulated duration of clicking Apply. Default: 800ms
	ApplyClick time.Duration `mapstructure:"apply_click"`
}

// ToastConfig controls toast durations.
type ToastConfig struct {
	// Duration is the default toast lifetime. Default: 3s
	Duration time.Duration `mapstructure:"duration"`

	// BlockedDuration is used for the browser-launch failure toast. Default: 5s
	BlockedDuration time.Duration `mapstructure:"blocked_duration"`
}

// OutputConfig contains terminal output formatting configuration.
type OutputConfig struct {
	// Timestamps prefixes log lines with the local time. Default: true
	Timestamps bool `mapstructure:"timestamps"`

	// Color enables lipgloss styling. Default: true
	Color bool `mapstructure:"color"`

	// ProgressWidth is the width of the progress bar in cells. Default: 30
	ProgressWidth int `mapstructure:"progress_width"`
}

// LoggingConfig configures diagnostic logging, separate from the progress log.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error. Default: "warn"
	Level string `mapstructure:"level"`

	// Format is "text" or "json". Default: "text"
	Format string `mapstructure:"format"`

	// Output is stdout, stderr or a file path. Default: "stderr"
	Output string `mapstructure:"output"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// ListenAddr enables /metrics when non-empty, e.g. ":9464".
	ListenAddr string `mapstructure:"listen_addr"`

	// Namespace prefixes every metric name. Default: "surveyreview"
	Namespace string `mapstructure:"namespace"`
}

// ReportConfig configures the YAML run report.
type ReportConfig struct {
	// Path is where the report is written after a run. Empty disables it.
	Path string `mapstructure:"path"`
}

// DefaultConfig returns a new [Config] with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Target: TargetConfig{
			URL:          DefaultTargetURL,
			Browser:      "firefox",
			PollInterval: time.Second,
		},
		Timing: TimingConfig{
			Backoff:          time.Second,
			InterIteration:   2 * time.Second,
			FlakyProbability: 0.1,
			FlakyPenalty:     500 * time.Millisecond,
			ReturnFocusWait:  time.Second,
			ApplyClick:       800 * time.Millisecond,
		},
		Toast: ToastConfig{
			Duration:        3 * time.Second,
			BlockedDuration: 5 * time.Second,
		},
		Output: OutputConfig{
			Timestamps:    true,
			Color:         true,
			ProgressWidth: 30,
		},
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "text",
			Output: "stderr",
		},
		Metrics: MetricsConfig{
			Namespace: "surveyreview",
		},
	}
}

// Validate checks values that would make a run misbehave.
func (c *Config) Validate() error {
	var errs []error

	if c.Target.URL == "" {
		errs = append(errs, errors.New("target.url must not be empty"))
	} else if u, err := url.Parse(c.Target.URL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("target.url %q is not an absolute URL", c.Target.URL))
	}
	if c.Target.Browser == "" {
		errs = append(errs, errors.New("target.browser must not be empty"))
	}
	if c.Target.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("target.poll_interval must be positive, got %s", c.Target.PollInterval))
	}

	durations := map[string]time.Duration{
		"timing.backoff":           c.Timing.Backoff,
		"timing.inter_iteration":   c.Timing.InterIteration,
		"timing.flaky_penalty":     c.Timing.FlakyPenalty,
		"timing.return_focus_wait": c.Timing.ReturnFocusWait,
		"timing.apply_click":       c.Timing.ApplyClick,
		"toast.duration":           c.Toast.Duration,
		"toast.blocked_duration":   c.Toast.BlockedDuration,
	}
	keys := make([]string, 0, len(durations))
	for k := range durations {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		if durations[k] < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative, got %s", k, durations[k]))
		}
	}

	if c.Timing.FlakyProbability < 0 || c.Timing.FlakyProbability > 1 {
		errs = append(errs, fmt.Errorf("timing.flaky_probability must be within [0,1], got %v", c.Timing.FlakyProbability))
	}
	if c.Output.ProgressWidth < 0 {
		errs = append(errs, fmt.Errorf("output.progress_width must not be negative, got %d", c.Output.ProgressWidth))
	}

	levels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(levels, strings.ToLower(c.Logging.Level)) {
		errs = append(errs, fmt.Errorf("logging.level must be one of: %s", strings.Join(levels, ", ")))
	}
	if f := c.Logging.Format; f != "text" && f != "json" {
		errs = append(errs, fmt.Errorf("logging.format must be text or json, got %q", f))
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}
