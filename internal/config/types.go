// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
)

const (
	// LogLevelDebug logs every pipeline stage.
	LogLevelDebug LogLevel = "debug"
	// LogLevelInfo logs the verdict and artifact path.
	LogLevelInfo LogLevel = "info"
	// LogLevelWarn logs warnings and errors only.
	LogLevelWarn LogLevel = "warn"
	// LogLevelError logs errors only.
	LogLevelError LogLevel = "error"

	// ReportFormatText prints violations as styled text.
	ReportFormatText ReportFormat = "text"
	// ReportFormatJSON prints the validation report as JSON.
	ReportFormatJSON ReportFormat = "json"
)

var (
	// ErrInvalidLogLevel is returned when a LogLevel value is not recognized.
	ErrInvalidLogLevel = errors.New("invalid log level")
	// ErrInvalidReportFormat is returned when a ReportFormat value is not recognized.
	ErrInvalidReportFormat = errors.New("invalid report format")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// LogLevel is the minimum level written by the CLI logger.
	LogLevel string

	// InvalidLogLevelError is returned when a LogLevel value is not recognized.
	// It wraps ErrInvalidLogLevel for errors.Is() compatibility.
	InvalidLogLevelError struct {
		Value LogLevel
	}

	// ReportFormat selects how validation reports are printed.
	ReportFormat string

	// InvalidReportFormatError is returned when a ReportFormat value is not recognized.
	// It wraps ErrInvalidReportFormat for errors.Is() compatibility.
	InvalidReportFormatError struct {
		Value ReportFormat
	}

	// InvalidConfigError collects every field that failed struct validation.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// OutputConfig controls where compiled databases are written.
	OutputConfig struct {
		// Path is the database file written by compile.
		Path string `json:"path" mapstructure:"path" validate:"required"`
		// Checksum writes the "<path>.sha256" companion file.
		Checksum bool `json:"checksum" mapstructure:"checksum"`
	}

	// Config is the resolved pkgdb configuration.
	Config struct {
		// Root is the record tree directory.
		Root string `json:"root" mapstructure:"root" validate:"required"`
		// Output controls the compiled artifact.
		Output OutputConfig `json:"output" mapstructure:"output"`
		// Workers bounds concurrent record file reads.
		Workers int `json:"workers" mapstructure:"workers" validate:"min=1,max=64"`
		// LogLevel is the minimum level logged.
		LogLevel LogLevel `json:"log_level" mapstructure:"log_level" validate:"loglevel"`
		// ReportFormat selects the validation report renderer.
		ReportFormat ReportFormat `json:"report_format" mapstructure:"report_format" validate:"reportformat"`

		// Source is the config file that was loaded, empty when only defaults
		// and environment variables apply.
		Source string `json:"-" mapstructure:"-"`
	}
)

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		Root: ".",
		Output: OutputConfig{
			Path:     "target/packages.db",
			Checksum: true,
		},
		Workers:      8,
		LogLevel:     LogLevelInfo,
		ReportFormat: ReportFormatText,
	}
}

func (e *InvalidLogLevelError) Error() string {
	return fmt.Sprintf("invalid log level %q (valid: debug, info, warn, error)", e.Value)
}

func (e *InvalidLogLevelError) Unwrap() error {
	return ErrInvalidLogLevel
}

// IsValid returns whether the LogLevel is one of the defined levels,
// and a list of validation errors if it is not.
func (l LogLevel) IsValid() (bool, []error) {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return true, nil
	default:
		return false, []error{&InvalidLogLevelError{Value: l}}
	}
}

// Level converts l to a charmbracelet/log level. Unknown values map to info.
func (l LogLevel) Level() log.Level {
	lvl, err := log.ParseLevel(string(l))
	if err != nil {
		return log.InfoLevel
	}
	return lvl
}

func (e *InvalidReportFormatError) Error() string {
	return fmt.Sprintf("invalid report format %q (valid: text, json)", e.Value)
}

func (e *InvalidReportFormatError) Unwrap() error {
	return ErrInvalidReportFormat
}

// IsValid returns whether the ReportFormat is one of the defined formats,
// and a list of validation errors if it is not.
func (f ReportFormat) IsValid() (bool, []error) {
	switch f {
	case ReportFormatText, ReportFormatJSON:
		return true, nil
	default:
		return false, []error{&InvalidReportFormatError{Value: f}}
	}
}

func (e *InvalidConfigError) Error() string {
	if len(e.FieldErrors) == 1 {
		return fmt.Sprintf("invalid config: %v", e.FieldErrors[0])
	}
	return fmt.Sprintf("invalid config: %d field errors: %v", len(e.FieldErrors), errors.Join(e.FieldErrors...))
}

// Unwrap exposes ErrInvalidConfig and every field error to errors.Is/As.
func (e *InvalidConfigError) Unwrap() []error {
	return append([]error{ErrInvalidConfig}, e.FieldErrors...)
}
