// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/heimdal-dev/pkgdb/internal/config"
	"github.com/heimdal-dev/pkgdb/internal/issue"
	"github.com/heimdal-dev/pkgdb/internal/loader"
	"github.com/heimdal-dev/pkgdb/internal/pipeline"
)

type (
	// App wires CLI services and shared dependencies. All Cobra command
	// handlers receive an App and resolve their configuration through it.
	App struct {
		Config ConfigProvider
		stdout io.Writer
		stderr io.Writer
	}

	// Dependencies defines the injection points for building an App. Nil fields
	// are replaced with production defaults by NewApp.
	Dependencies struct {
		Config ConfigProvider
		Stdout io.Writer
		Stderr io.Writer
	}

	// ConfigProvider loads configuration using explicit options.
	ConfigProvider interface {
		Load(ctx context.Context, opts config.LoadOptions) (*config.Config, error)
	}

	// globalFlags holds the persistent flags shared by every command.
	globalFlags struct {
		configPath string
		root       string
		verbose    bool
	}

	// session is the resolved configuration and logger one command runs with.
	session struct {
		cfg     *config.Config
		logger  *log.Logger
		verbose bool
	}
)

// NewApp creates an App with defaults for omitted dependencies.
func NewApp(deps Dependencies) (*App, error) {
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	if deps.Config == nil {
		deps.Config = config.NewProvider()
	}

	return &App{
		Config: deps.Config,
		stdout: deps.Stdout,
		stderr: deps.Stderr,
	}, nil
}

// newSession loads the configuration and applies the global flag overrides.
// Log output goes to the command's stderr.
func (a *App) newSession(cmd *cobra.Command, flags *globalFlags) (*session, error) {
	cfg, err := a.Config.Load(cmd.Context(), config.LoadOptions{ConfigFilePath: flags.configPath})
	if err != nil {
		return nil, err
	}
	if flags.root != "" {
		cfg.Root = flags.root
	}

	level := cfg.LogLevel.Level()
	if flags.verbose {
		level = log.DebugLevel
	}
	logger := log.NewWithOptions(cmd.ErrOrStderr(), log.Options{
		Prefix: config.AppName,
		Level:  level,
	})

	return &session{cfg: cfg, logger: logger, verbose: flags.verbose}, nil
}

func (s *session) pipeline() (*pipeline.Pipeline, error) {
	return pipeline.New(pipeline.Options{
		Root:    s.cfg.Root,
		Workers: s.cfg.Workers,
		Logger:  s.logger,
	})
}

// explain turns the errors a pipeline run can end with into actionable errors.
func explain(err error, root string) error {
	var ae *issue.ActionableError
	switch {
	case errors.As(err, &ae):
		return err
	case errors.Is(err, loader.ErrRootNotFound):
		return issue.NewErrorContext().
			WithOperation("read record tree").
			WithResource(root).
			WithSuggestion("Pass --root <dir> or set root in " + config.FileName()).
			WithSuggestion("The root must contain packages/, groups/ and the other record directories").
			WithIssue(issue.RootNotFoundId).
			Wrap(err).
			BuildError()
	case errors.Is(err, fs.ErrPermission):
		return issue.NewErrorContext().
			WithOperation("access file").
			WithIssue(issue.PermissionDeniedId).
			Wrap(err).
			BuildError()
	default:
		return err
	}
}

// fail reports err on stderr and returns a silent ExitError carrying code.
// In verbose mode the guidance page of an actionable error is appended.
func fail(cmd *cobra.Command, err error, code int, verbose bool) error {
	stderr := cmd.ErrOrStderr()
	fmt.Fprintf(stderr, "%s %s\n", ErrorStyle.Render(errorIcon), formatErrorForDisplay(err, verbose))

	var ae *issue.ActionableError
	if verbose && errors.As(err, &ae) {
		if page := ae.Guidance(); page != nil {
			if rendered, renderErr := page.Render("dark"); renderErr == nil {
				fmt.Fprint(stderr, rendered)
			}
		}
	}

	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	return &ExitError{Code: code}
}

// formatErrorForDisplay renders actionable errors with their suggestions and
// everything else as its plain message.
func formatErrorForDisplay(err error, verbose bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verbose)
	}
	return err.Error()
}
