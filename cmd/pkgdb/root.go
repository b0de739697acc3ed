// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// NewRootCommand builds the pkgdb command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "pkgdb",
		Short: "Validate and compile the package database",
		Long: TitleStyle.Render("pkgdb") + SubtitleStyle.Render(" - Validate and compile the package database") + `

pkgdb reads a tree of YAML records (packages, mappings, dependencies,
groups, profiles and suggestions), checks every record against its
schema and every cross-record reference, and compiles an accepted
batch into a single indexed binary database.

` + SubtitleStyle.Render("Exit codes:") + `
  0  accepted (or the command succeeded)
  1  rejected by validation, or a usage error
  2  the compiler produced a database that failed its self check

` + SubtitleStyle.Render("Examples:") + `
  pkgdb validate                   Validate the records under the current directory
  pkgdb compile --out packages.db  Compile an accepted batch
  pkgdb stats --format markdown    Summarize the database for a README
  pkgdb inspect packages.db        Describe a compiled database`,
		SilenceUsage: true,
	}
	rootCmd.SetOut(app.stdout)
	rootCmd.SetErr(app.stderr)

	rootCmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "enable verbose output and debug logging")
	rootCmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "config file (default is ./pkgdb.cue, then the user config directory)")
	rootCmd.PersistentFlags().StringVar(&flags.root, "root", "", "record tree directory (overrides the configured root)")

	rootCmd.AddCommand(newValidateCommand(app, flags))
	rootCmd.AddCommand(newCompileCommand(app, flags))
	rootCmd.AddCommand(newStatsCommand(app, flags))
	rootCmd.AddCommand(newInspectCommand(app, flags))
	rootCmd.AddCommand(newWatchCommand(app, flags))
	rootCmd.AddCommand(newConfigCommand(app, flags))
	rootCmd.AddCommand(newSchemaCommand(app))

	return rootCmd
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute builds the command tree and runs it. This is called by main.main().
func Execute() {
	app, err := NewApp(Dependencies{})
	if err != nil {
		fmt.Fprintln(os.Stderr, ErrorStyle.Render("Error: ")+err.Error())
		os.Exit(ExitRejected)
	}

	if err := fang.Execute(
		context.Background(),
		NewRootCommand(app),
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
		fang.WithErrorHandler(handleError),
	); err != nil {
		os.Exit(exitCode(err))
	}
}

// handleError prints errors through fang unless the command already reported them.
func handleError(w io.Writer, styles fang.Styles, err error) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.Err == nil {
		return
	}
	fang.DefaultErrorHandler(w, styles, err)
}
