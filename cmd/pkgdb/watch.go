// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/heimdal-dev/pkgdb/internal/pipeline"
	"github.com/heimdal-dev/pkgdb/internal/watch"
)

// newWatchCommand creates the `pkgdb watch` command.
func newWatchCommand(app *App, flags *globalFlags) *cobra.Command {
	var (
		debounce time.Duration
		ignore   []string
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Recompile the database whenever records change",
		Long: `Compile once, then watch the record directories and compile again after
every burst of changes. A rejected batch is reported and the previous
database is left in place; the watcher keeps running until interrupted.

Examples:
  pkgdb watch
  pkgdb watch --debounce 1s --ignore 'packages/wip-*.yaml'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWatch(cmd, app, flags, debounce, ignore)
		},
	}
	cmd.Flags().DurationVar(&debounce, "debounce", watch.DefaultDebounce, "quiet period after the last change before recompiling")
	cmd.Flags().StringSliceVar(&ignore, "ignore", nil, "doublestar patterns, relative to the root, of record files to ignore")
	return cmd
}

func runWatch(cmd *cobra.Command, app *App, flags *globalFlags, debounce time.Duration, ignore []string) error {
	s, err := app.newSession(cmd, flags)
	if err != nil {
		return fail(cmd, err, ExitRejected, flags.verbose)
	}
	p, err := s.pipeline()
	if err != nil {
		return err
	}
	// A bad SOURCE_DATE_EPOCH would fail every rebuild.
	if _, err := buildTime("", os.Getenv, time.Now); err != nil {
		return fail(cmd, err, ExitRejected, flags.verbose)
	}

	stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()
	rebuild := func(ctx context.Context) error {
		builtAt, err := buildTime("", os.Getenv, time.Now)
		if err != nil {
			return fail(cmd, err, ExitRejected, flags.verbose)
		}
		return compileOnce(ctx, cmd, p, s, pipeline.CompileOptions{
			Output:   s.cfg.Output.Path,
			Checksum: s.cfg.Output.Checksum,
			BuiltAt:  builtAt,
		})
	}

	fmt.Fprintf(stdout, "%s Initial compile of %s\n", FieldStyle.Render(arrowIcon), CmdStyle.Render(s.cfg.Root))
	if err := rebuild(cmd.Context()); err != nil {
		var exitErr *ExitError
		if !errors.As(err, &exitErr) {
			return err
		}
		// Keep watching so the user can fix the records and save again.
		fmt.Fprintf(stderr, "%s Initial compile failed\n", WarningStyle.Render(warningIcon))
	}

	w, err := watch.New(watch.Config{
		Root:     s.cfg.Root,
		Ignore:   ignore,
		Debounce: debounce,
		Logger:   s.logger,
		OnChange: func(ctx context.Context, changed []string) error {
			fmt.Fprintf(stdout, "\n%s %d record file(s) changed, recompiling\n", FieldStyle.Render(arrowIcon), len(changed))
			for _, c := range changed {
				s.logger.Debug("changed", "file", c)
			}
			err := rebuild(ctx)
			fmt.Fprintf(stdout, "\n%s Watching for changes (Ctrl+C to stop)...\n", FieldStyle.Render(arrowIcon))
			var exitErr *ExitError
			if errors.As(err, &exitErr) {
				// Already reported.
				return nil
			}
			return err
		},
	})
	if err != nil {
		return fail(cmd, fmt.Errorf("failed to start watcher: %w", err), ExitRejected, s.verbose)
	}

	fmt.Fprintf(stdout, "\n%s Watching for changes (Ctrl+C to stop)...\n", FieldStyle.Render(arrowIcon))
	return w.Run(cmd.Context())
}
