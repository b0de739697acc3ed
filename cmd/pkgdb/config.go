// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/heimdal-dev/pkgdb/internal/config"
	"github.com/heimdal-dev/pkgdb/internal/issue"
)

// newConfigCommand creates the `pkgdb config` command tree.
// Subcommands that read configuration use the App's ConfigProvider.
func newConfigCommand(app *App, flags *globalFlags) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage pkgdb configuration",
		Long: `Manage pkgdb configuration.

The first of these files is loaded:
  - the file passed with --config
  - ./pkgdb.cue
  - pkgdb.cue in the user config directory
    (Linux: ~/.config/pkgdb, macOS: ~/Library/Application Support/pkgdb,
    Windows: %AppData%\pkgdb)

PKGDB_* environment variables override file values, e.g.
PKGDB_OUTPUT_PATH or PKGDB_WORKERS.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the resolved configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return showConfig(cmd, app, flags)
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "dump",
		Short: "Output the resolved configuration as CUE",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := app.newSession(cmd, flags)
			if err != nil {
				return fail(cmd, err, ExitRejected, flags.verbose)
			}
			fmt.Fprint(cmd.OutOrStdout(), config.GenerateCUE(s.cfg))
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show the configuration file in use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return showConfigPath(cmd, app, flags)
		},
	})

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default pkgdb.cue to the current directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return initConfig(cmd, force, flags.verbose)
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	cfgCmd.AddCommand(initCmd)

	return cfgCmd
}

func showConfig(cmd *cobra.Command, app *App, flags *globalFlags) error {
	s, err := app.newSession(cmd, flags)
	if err != nil {
		return fail(cmd, err, ExitRejected, flags.verbose)
	}
	cfg := s.cfg
	w := cmd.OutOrStdout()

	fmt.Fprintln(w, TitleStyle.Render("Current Configuration"))
	fmt.Fprintln(w)
	if cfg.Source != "" {
		fmt.Fprintf(w, "%s: %s\n", CmdStyle.Render("Config file"), cfg.Source)
	} else {
		fmt.Fprintf(w, "%s: %s\n", CmdStyle.Render("Config file"), SubtitleStyle.Render("(using defaults)"))
	}
	fmt.Fprintln(w)

	for _, kv := range []struct{ key, value string }{
		{"root", cfg.Root},
		{"output.path", cfg.Output.Path},
		{"output.checksum", strconv.FormatBool(cfg.Output.Checksum)},
		{"workers", strconv.Itoa(cfg.Workers)},
		{"log_level", string(cfg.LogLevel)},
		{"report_format", string(cfg.ReportFormat)},
	} {
		fmt.Fprintf(w, "%s: %s\n", CmdStyle.Render(kv.key), SuccessStyle.Render(kv.value))
	}
	return nil
}

func showConfigPath(cmd *cobra.Command, app *App, flags *globalFlags) error {
	s, err := app.newSession(cmd, flags)
	if err != nil {
		return fail(cmd, err, ExitRejected, flags.verbose)
	}
	if s.cfg.Source != "" {
		fmt.Fprintln(cmd.OutOrStdout(), s.cfg.Source)
		return nil
	}

	dir, err := config.ConfigDir()
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", filepath.Join(dir, config.FileName()), SubtitleStyle.Render("(not found, using defaults)"))
	return nil
}

func initConfig(cmd *cobra.Command, force, verbose bool) error {
	path := config.FileName()
	flag := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if force {
		flag = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}

	f, err := os.OpenFile(path, flag, 0o644)
	if err != nil {
		ctx := issue.NewErrorContext().WithOperation("create configuration").WithResource(path).Wrap(err)
		switch {
		case errors.Is(err, fs.ErrExist):
			ctx = ctx.WithSuggestion("Pass --force to overwrite it")
		case errors.Is(err, fs.ErrPermission):
			ctx = ctx.WithIssue(issue.PermissionDeniedId)
		}
		return fail(cmd, ctx.BuildError(), ExitRejected, verbose)
	}
	_, err = f.WriteString(config.GenerateCUE(config.DefaultConfig()))
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s Created %s\n", SuccessStyle.Render(successIcon), CmdStyle.Render(path))
	return nil
}
