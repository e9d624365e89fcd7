package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/Iron-Ham/capctl/internal/capture"
	"github.com/Iron-Ham/capctl/internal/device"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "sampling.run_mode")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// ValidRunModes returns the list of valid run modes
func ValidRunModes() []string {
	return []string{"single", "repetitive"}
}

// ValidWorkModes returns the list of valid work modes. Empty keeps the
// device's current mode.
func ValidWorkModes() []string {
	return []string{"", "logic", "analog", "dso"}
}

const (
	maxRepeatIntervalMs  = 3_600_000
	maxCalibrationSecs   = 600
	maxSpeedFactor       = 1000.0
	maxProgressSteps     = 1000
	maxLogSizeMB         = 1000
	maxPathLength        = 4096
	minTickMs, maxTickMs = 10, 5000
)

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateDevice()...)
	errors = append(errors, c.validateSampling()...)
	errors = append(errors, c.validateTUI()...)
	errors = append(errors, c.validateLogging()...)
	errors = append(errors, c.validatePaths()...)

	return errors
}

func (c *Config) validateDevice() []ValidationError {
	var errors []ValidationError

	if c.Device.WorkMode != "" {
		if _, ok := device.ParseWorkMode(c.Device.WorkMode); !ok {
			errors = append(errors, ValidationError{
				Field:   "device.work_mode",
				Value:   c.Device.WorkMode,
				Message: "must be one of: logic, analog, dso",
			})
		}
	}

	if !c.Device.Demo && c.Device.Default == "" {
		errors = append(errors, ValidationError{
			Field:   "device.default",
			Value:   c.Device.Default,
			Message: "must name a device when the demo device is disabled",
		})
	}

	return errors
}

func (c *Config) validateSampling() []ValidationError {
	var errors []ValidationError

	if _, ok := capture.ParseRunMode(c.Sampling.RunMode); !ok {
		errors = append(errors, ValidationError{
			Field:   "sampling.run_mode",
			Value:   c.Sampling.RunMode,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidRunModes(), ", ")),
		})
	}

	if c.Sampling.RepeatIntervalMs <= 0 {
		errors = append(errors, ValidationError{
			Field:   "sampling.repeat_interval_ms",
			Value:   c.Sampling.RepeatIntervalMs,
			Message: "must be positive",
		})
	} else if c.Sampling.RepeatIntervalMs > maxRepeatIntervalMs {
		errors = append(errors, ValidationError{
			Field:   "sampling.repeat_interval_ms",
			Value:   c.Sampling.RepeatIntervalMs,
			Message: fmt.Sprintf("exceeds maximum of %d", maxRepeatIntervalMs),
		})
	}

	if c.Sampling.CalibrationTimeoutSeconds < 0 || c.Sampling.CalibrationTimeoutSeconds > maxCalibrationSecs {
		errors = append(errors, ValidationError{
			Field:   "sampling.calibration_timeout_seconds",
			Value:   c.Sampling.CalibrationTimeoutSeconds,
			Message: fmt.Sprintf("must be between 0 and %d", maxCalibrationSecs),
		})
	}

	if c.Sampling.SpeedFactor <= 0 || c.Sampling.SpeedFactor > maxSpeedFactor {
		errors = append(errors, ValidationError{
			Field:   "sampling.speed_factor",
			Value:   c.Sampling.SpeedFactor,
			Message: fmt.Sprintf("must be greater than 0 and at most %g", maxSpeedFactor),
		})
	}

	if c.Sampling.ProgressSteps < 1 || c.Sampling.ProgressSteps > maxProgressSteps {
		errors = append(errors, ValidationError{
			Field:   "sampling.progress_steps",
			Value:   c.Sampling.ProgressSteps,
			Message: fmt.Sprintf("must be between 1 and %d", maxProgressSteps),
		})
	}

	return errors
}

func (c *Config) validateTUI() []ValidationError {
	var errors []ValidationError

	if c.TUI.TickMs < minTickMs || c.TUI.TickMs > maxTickMs {
		errors = append(errors, ValidationError{
			Field:   "tui.tick_ms",
			Value:   c.TUI.TickMs,
			Message: fmt.Sprintf("must be between %d and %d", minTickMs, maxTickMs),
		})
	}

	return errors
}

func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	if c.Logging.MaxSizeMB <= 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be positive",
		})
	}

	if c.Logging.MaxSizeMB > maxLogSizeMB {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: fmt.Sprintf("exceeds maximum of %dMB", maxLogSizeMB),
		})
	}

	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be non-negative",
		})
	}

	return errors
}

func (c *Config) validatePaths() []ValidationError {
	var errors []ValidationError

	paths := []struct {
		field string
		value string
	}{
		{"paths.prefs_file", c.Paths.PrefsFile},
		{"paths.resource_dir", c.Paths.ResourceDir},
		{"paths.lock_dir", c.Paths.LockDir},
		{"paths.log_dir", c.Paths.LogDir},
	}

	for _, p := range paths {
		if p.value == "" {
			continue
		}
		if strings.ContainsRune(p.value, '\x00') {
			errors = append(errors, ValidationError{
				Field:   p.field,
				Value:   p.value,
				Message: "path contains invalid null character",
			})
		}
		if len(p.value) > maxPathLength {
			errors = append(errors, ValidationError{
				Field:   p.field,
				Value:   p.value,
				Message: fmt.Sprintf("path exceeds maximum length of %d characters", maxPathLength),
			})
		}
	}

	return errors
}
