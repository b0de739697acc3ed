// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/heimdal-dev/pkgdb/internal/pipeline"
	"github.com/heimdal-dev/pkgdb/internal/stats"
)

// newStatsCommand creates the `pkgdb stats` command.
func newStatsCommand(app *App, flags *globalFlags) *cobra.Command {
	var (
		format string
		style  string
	)

	formats := make([]string, 0, len(stats.Formats()))
	for _, f := range stats.Formats() {
		formats = append(formats, string(f))
	}

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize the record tree",
		Long: `Summarize the records that pass schema validation: counts per kind,
packages per category, platform coverage, average popularity and the
size of the compiled database.

Statistics never gate a build. For a rejected batch the artifact size
is reported as not compiled.

Examples:
  pkgdb stats
  pkgdb stats --format json
  pkgdb stats --format markdown > STATS.md
  pkgdb stats --format markdown --style auto`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStats(cmd, app, flags, stats.Format(format), style)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", string(stats.FormatText), "output format: "+strings.Join(formats, ", "))
	cmd.Flags().StringVar(&style, "style", "", `glamour style for markdown ("auto", "dark", "light", "notty"); empty prints raw markdown`)
	_ = cmd.RegisterFlagCompletionFunc("format", cobra.FixedCompletions(formats, cobra.ShellCompDirectiveNoFileComp))
	return cmd
}

func runStats(cmd *cobra.Command, app *App, flags *globalFlags, format stats.Format, style string) error {
	if ok, errs := format.IsValid(); !ok {
		return errs[0]
	}
	s, err := app.newSession(cmd, flags)
	if err != nil {
		return fail(cmd, err, ExitRejected, flags.verbose)
	}
	builtAt, err := buildTime("", os.Getenv, time.Now)
	if err != nil {
		return err
	}

	p, err := s.pipeline()
	if err != nil {
		return err
	}
	// Compiling in memory measures the artifact without writing it.
	out, err := p.Compile(cmd.Context(), pipeline.CompileOptions{BuiltAt: builtAt})
	switch {
	case errors.Is(err, pipeline.ErrRejected):
		s.logger.Warn("batch rejected, artifact size not available", "errors", out.Report.Violations.ErrorCount())
	case err != nil:
		return fail(cmd, explain(err, s.cfg.Root), ExitRejected, s.verbose)
	}

	summary := stats.Compute(out.Batch, out.ArtifactSize())
	return stats.Render(cmd.OutOrStdout(), summary, format, style)
}
