package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/capctl/internal/prefs"
)

// AppName is used for the config directory and the environment prefix.
const AppName = "capctl"

// EnvPrefix prefixes environment overrides, e.g. CAPCTL_SAMPLING_RUN_MODE.
const EnvPrefix = "CAPCTL"

// Config represents the complete capctl configuration
type Config struct {
	Device   DeviceConfig   `mapstructure:"device"`
	Sampling SamplingConfig `mapstructure:"sampling"`
	TUI      TUIConfig      `mapstructure:"tui"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Paths    PathsConfig    `mapstructure:"paths"`
}

// DeviceConfig selects the instrument opened at startup
type DeviceConfig struct {
	// Default is the name of the device to select after enumeration.
	// Empty selects whatever the enumerator reports as current.
	Default string `mapstructure:"default"`
	// Demo adds the built-in virtual instrument to the device list
	Demo bool `mapstructure:"demo"`
	// WorkMode switches the device into this mode after attaching
	// Options: "", "logic", "analog", "dso"
	WorkMode string `mapstructure:"work_mode"`
}

// SamplingConfig controls capture behavior
type SamplingConfig struct {
	// RunMode is "single" or "repetitive"
	RunMode string `mapstructure:"run_mode"`
	// RepeatIntervalMs is the pause between repetitive captures in milliseconds
	RepeatIntervalMs int `mapstructure:"repeat_interval_ms"`
	// AutoCalibrate accepts the zero-calibration prompt without asking
	AutoCalibrate bool `mapstructure:"auto_calibrate"`
	// CalibrationTimeoutSeconds bounds the zero-calibration wait (0 = no limit)
	CalibrationTimeoutSeconds int `mapstructure:"calibration_timeout_seconds"`
	// SpeedFactor scales acquisition time of the simulated session.
	// Values above 1 finish faster than real time.
	SpeedFactor float64 `mapstructure:"speed_factor"`
	// ProgressSteps is how many progress events a simulated capture posts
	ProgressSteps int `mapstructure:"progress_steps"`
}

// TUIConfig controls the terminal UI behavior
type TUIConfig struct {
	// ShowHelp renders the full key help below the sampling bar
	ShowHelp bool `mapstructure:"show_help"`
	// TickMs is how often the sampling bar drains pending session messages
	TickMs int `mapstructure:"tick_ms"`
}

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	// Enabled writes logs to a file instead of discarding them
	Enabled bool `mapstructure:"enabled"`
	// Level is the minimum log level: "debug", "info", "warn", "error"
	Level string `mapstructure:"level"`
	// MaxSizeMB is the size at which the log file rotates
	MaxSizeMB int `mapstructure:"max_size_mb"`
	// MaxBackups is the number of rotated files to keep
	MaxBackups int `mapstructure:"max_backups"`
}

// PathsConfig controls file locations. Empty values resolve below ConfigDir.
type PathsConfig struct {
	// PrefsFile is the user preferences file
	PrefsFile string `mapstructure:"prefs_file"`
	// ResourceDir holds the default session files shipped per driver
	ResourceDir string `mapstructure:"resource_dir"`
	// LockDir holds per-device lock files
	LockDir string `mapstructure:"lock_dir"`
	// LogDir is where capctl.log is written when logging is enabled
	LogDir string `mapstructure:"log_dir"`
}

// ResolvePrefsFile returns the preferences file path.
func (p *PathsConfig) ResolvePrefsFile() string {
	return resolvePath(p.PrefsFile, filepath.Join(ConfigDir(), prefs.FileName))
}

// ResolveResourceDir returns the resource directory.
func (p *PathsConfig) ResolveResourceDir() string {
	return resolvePath(p.ResourceDir, filepath.Join(ConfigDir(), "res"))
}

// ResolveLockDir returns the lock directory.
func (p *PathsConfig) ResolveLockDir() string {
	return resolvePath(p.LockDir, filepath.Join(ConfigDir(), "locks"))
}

// ResolveLogDir returns the log directory.
func (p *PathsConfig) ResolveLogDir() string {
	return resolvePath(p.LogDir, filepath.Join(ConfigDir(), "logs"))
}

// resolvePath expands a leading ~ and falls back to def when path is empty.
func resolvePath(path, def string) string {
	if path == "" {
		return def
	}

	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	} else if path == "~" {
		if home, err := os.UserHomeDir(); err == nil {
			path = home
		}
	}
	return filepath.Clean(path)
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Device: DeviceConfig{
			Default:  "",
			Demo:     true,
			WorkMode: "",
		},
		Sampling: SamplingConfig{
			RunMode:                   "single",
			RepeatIntervalMs:          1000,
			AutoCalibrate:             false,
			CalibrationTimeoutSeconds: 30,
			SpeedFactor:               1.0,
			ProgressSteps:             10,
		},
		TUI: TUIConfig{
			ShowHelp: true,
			TickMs:   50,
		},
		Logging: LoggingConfig{
			Enabled:    false,
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		Paths: PathsConfig{},
	}
}

// RepeatInterval returns the repetitive capture interval as a time.Duration
func (c *SamplingConfig) RepeatInterval() time.Duration {
	return time.Duration(c.RepeatIntervalMs) * time.Millisecond
}

// CalibrationTimeout returns the zero-calibration wait bound as a time.Duration
func (c *SamplingConfig) CalibrationTimeout() time.Duration {
	return time.Duration(c.CalibrationTimeoutSeconds) * time.Second
}

// Tick returns the TUI drain interval as a time.Duration
func (c *TUIConfig) Tick() time.Duration {
	return time.Duration(c.TickMs) * time.Millisecond
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Device defaults
	viper.SetDefault("device.default", defaults.Device.Default)
	viper.SetDefault("device.demo", defaults.Device.Demo)
	viper.SetDefault("device.work_mode", defaults.Device.WorkMode)

	// Sampling defaults
	viper.SetDefault("sampling.run_mode", defaults.Sampling.RunMode)
	viper.SetDefault("sampling.repeat_interval_ms", defaults.Sampling.RepeatIntervalMs)
	viper.SetDefault("sampling.auto_calibrate", defaults.Sampling.AutoCalibrate)
	viper.SetDefault("sampling.calibration_timeout_seconds", defaults.Sampling.CalibrationTimeoutSeconds)
	viper.SetDefault("sampling.speed_factor", defaults.Sampling.SpeedFactor)
	viper.SetDefault("sampling.progress_steps", defaults.Sampling.ProgressSteps)

	// TUI defaults
	viper.SetDefault("tui.show_help", defaults.TUI.ShowHelp)
	viper.SetDefault("tui.tick_ms", defaults.TUI.TickMs)

	// Logging defaults
	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)

	// Paths defaults
	viper.SetDefault("paths.prefs_file", defaults.Paths.PrefsFile)
	viper.SetDefault("paths.resource_dir", defaults.Paths.ResourceDir)
	viper.SetDefault("paths.lock_dir", defaults.Paths.LockDir)
	viper.SetDefault("paths.log_dir", defaults.Paths.LogDir)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Watch re-reads the config file whenever it is written and passes the
// result to fn. An invalid file is reported through err; callers keep
// their previous configuration in that case.
func Watch(fn func(cfg *Config, err error)) {
	viper.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		fn(Load())
	})
	viper.WatchConfig()
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, AppName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "." + AppName
	}
	return filepath.Join(home, ".config", AppName)
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
