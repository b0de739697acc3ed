// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/heimdal-dev/pkgdb/internal/issue"
	"github.com/heimdal-dev/pkgdb/pkg/cueutil"
)

const (
	// AppName is the application name.
	AppName = "pkgdb"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "pkgdb"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
	// EnvPrefix prefixes environment overrides, e.g. PKGDB_OUTPUT_PATH.
	EnvPrefix = "PKGDB"
)

//go:embed config_schema.cue
var configSchema []byte

var validate = newValidator()

// ConfigDir returns the pkgdb configuration directory: $XDG_CONFIG_HOME/pkgdb
// on Linux, ~/Library/Application Support/pkgdb on macOS and
// %AppData%\pkgdb on Windows.
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate config directory: %w", err)
	}
	return filepath.Join(dir, AppName), nil
}

// FileName returns the config file name, "pkgdb.cue".
func FileName() string {
	return ConfigFileName + "." + ConfigFileExt
}

// loadWithOptions resolves the configuration: built-in defaults, then the
// first config file found, then PKGDB_* environment variables.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("root", defaults.Root)
	v.SetDefault("output.path", defaults.Output.Path)
	v.SetDefault("output.checksum", defaults.Output.Checksum)
	v.SetDefault("workers", defaults.Workers)
	v.SetDefault("log_level", defaults.LogLevel)
	v.SetDefault("report_format", defaults.ReportFormat)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path, err := resolveConfigFile(opts)
	if err != nil {
		return nil, err
	}
	if path != "" {
		if err := loadCUEIntoViper(v, path); err != nil {
			return nil, issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(path).
				WithSuggestion("Check that the file contains valid CUE syntax").
				WithSuggestion("Verify the configuration values match the expected schema").
				WithSuggestion("Use 'pkgdb config show' to see the effective configuration").
				WithIssue(issue.ConfigLoadFailedId).
				Wrap(err).
				BuildError()
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.Source = path

	// Environment overrides never pass through the CUE schema.
	if err := cfg.Validate(); err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("validate configuration").
			WithResource(path).
			WithSuggestion("Check PKGDB_* environment variables").
			WithIssue(issue.ConfigLoadFailedId).
			Wrap(err).
			BuildError()
	}

	return &cfg, nil
}

// resolveConfigFile returns the config file to load, or "" when none exists.
// Lookup order: the explicit path, the working directory, the config directory.
func resolveConfigFile(opts LoadOptions) (string, error) {
	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(opts.ConfigFilePath).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Check that the file exists and is readable").
				WithIssue(issue.ConfigLoadFailedId).
				Wrap(fmt.Errorf("config file not found: %s", opts.ConfigFilePath)).
				BuildError()
		}
		return opts.ConfigFilePath, nil
	}

	local := filepath.Join(opts.WorkDir, FileName())
	if fileExists(local) {
		return local, nil
	}

	cfgDir := opts.ConfigDirPath
	if cfgDir == "" {
		dir, err := ConfigDir()
		if err != nil {
			// No usable home directory: defaults and environment still apply.
			return "", nil
		}
		cfgDir = dir
	}
	if p := filepath.Join(cfgDir, FileName()); fileExists(p) {
		return p, nil
	}
	return "", nil
}

// loadCUEIntoViper validates the CUE file at path against #Config and merges
// the values it sets into v.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	// Every field is optional; defaults live in viper.
	values, err := cueutil.ParseAndDecode[map[string]any](configSchema, data, "#Config",
		cueutil.WithFilename(path), cueutil.AllowIncomplete())
	if err != nil {
		return err
	}

	if err := v.MergeConfigMap(*values); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}
	return nil
}

// Validate checks the resolved values, including those that came from the
// environment. It returns an *InvalidConfigError listing every bad field.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	out := &InvalidConfigError{}
	for _, fe := range fieldErrs {
		out.FieldErrors = append(out.FieldErrors, fieldError(c, fe))
	}
	return out
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("mapstructure"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("loglevel", func(fl validator.FieldLevel) bool {
		ok, _ := LogLevel(fl.Field().String()).IsValid()
		return ok
	})
	_ = v.RegisterValidation("reportformat", func(fl validator.FieldLevel) bool {
		ok, _ := ReportFormat(fl.Field().String()).IsValid()
		return ok
	})
	return v
}

// fieldError turns a validator failure into a message naming the config key.
func fieldError(c *Config, fe validator.FieldError) error {
	// Namespace is "Config.output.path"; drop the struct name.
	_, key, _ := strings.Cut(fe.Namespace(), ".")

	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%s: is required", key)
	case "min", "max":
		return fmt.Errorf("%s: %v is out of range (1-64)", key, fe.Value())
	case "loglevel":
		_, errs := c.LogLevel.IsValid()
		return fmt.Errorf("%s: %w", key, errs[0])
	case "reportformat":
		_, errs := c.ReportFormat.IsValid()
		return fmt.Errorf("%s: %w", key, errs[0])
	default:
		return fmt.Errorf("%s: failed %q check", key, fe.Tag())
	}
}

// fileExists reports whether path exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// GenerateCUE renders cfg as a pkgdb.cue document that loads back to the same values.
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// pkgdb configuration\n")
	if cfg.Source != "" {
		fmt.Fprintf(&sb, "// loaded from %s\n", cfg.Source)
	}
	sb.WriteString("\n")

	fmt.Fprintf(&sb, "root: %q\n", cfg.Root)

	sb.WriteString("\noutput: {\n")
	fmt.Fprintf(&sb, "\tpath:     %q\n", cfg.Output.Path)
	fmt.Fprintf(&sb, "\tchecksum: %v\n", cfg.Output.Checksum)
	sb.WriteString("}\n\n")

	fmt.Fprintf(&sb, "workers:       %d\n", cfg.Workers)
	fmt.Fprintf(&sb, "log_level:     %q\n", cfg.LogLevel)
	fmt.Fprintf(&sb, "report_format: %q\n", cfg.ReportFormat)

	return sb.String()
}
