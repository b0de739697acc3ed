// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/heimdal-dev/pkgdb/internal/config"
	"github.com/heimdal-dev/pkgdb/internal/dbformat"
	"github.com/heimdal-dev/pkgdb/internal/issue"
	"github.com/heimdal-dev/pkgdb/internal/pipeline"
	"github.com/heimdal-dev/pkgdb/pkg/record"
)

// sourceDateEpochEnv is the reproducible-builds variable honored when
// --timestamp is not given.
const sourceDateEpochEnv = "SOURCE_DATE_EPOCH"

type compileFlags struct {
	out        string
	timestamp  string
	noChecksum bool
}

// newCompileCommand creates the `pkgdb compile` command.
func newCompileCommand(app *App, flags *globalFlags) *cobra.Command {
	cf := &compileFlags{}

	cmd := &cobra.Command{
		Use:   "compile",
		Short: "Validate the record tree and compile the database",
		Long: `Validate the record tree and, when the batch is accepted, compile it
into the binary database together with a sha256 companion file.

A rejected batch prints the validation report, writes nothing and exits
with status 1. A database that fails the compiler's own read-back check
is a defect and exits with status 2.

The build time stored in the header comes from --timestamp, then from
SOURCE_DATE_EPOCH, then from the clock. Identical records and build time
always produce identical bytes.

Examples:
  pkgdb compile                                Write target/packages.db
  pkgdb compile --out dist/packages.db         Write elsewhere
  pkgdb compile --timestamp 2024-01-01T00:00:00Z`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCompile(cmd, app, flags, cf)
		},
	}
	cmd.Flags().StringVarP(&cf.out, "out", "o", "", "database path (default from config output.path)")
	cmd.Flags().StringVar(&cf.timestamp, "timestamp", "", "build time as RFC 3339 or Unix seconds")
	cmd.Flags().BoolVar(&cf.noChecksum, "no-checksum", false, "do not write the .sha256 companion file")
	return cmd
}

func runCompile(cmd *cobra.Command, app *App, flags *globalFlags, cf *compileFlags) error {
	s, err := app.newSession(cmd, flags)
	if err != nil {
		return fail(cmd, err, ExitRejected, flags.verbose)
	}
	builtAt, err := buildTime(cf.timestamp, os.Getenv, time.Now)
	if err != nil {
		return fail(cmd, err, ExitRejected, flags.verbose)
	}

	opts := pipeline.CompileOptions{
		Output:   s.cfg.Output.Path,
		Checksum: s.cfg.Output.Checksum && !cf.noChecksum,
		BuiltAt:  builtAt,
	}
	if cf.out != "" {
		opts.Output = cf.out
	}

	p, err := s.pipeline()
	if err != nil {
		return err
	}
	return compileOnce(cmd.Context(), cmd, p, s, opts)
}

// compileOnce runs one compile and reports it. It is shared by compile and watch.
func compileOnce(ctx context.Context, cmd *cobra.Command, p *pipeline.Pipeline, s *session, opts pipeline.CompileOptions) error {
	stdout := cmd.OutOrStdout()

	out, err := p.Compile(ctx, opts)
	switch {
	case errors.Is(err, pipeline.ErrRejected):
		if renderErr := renderReport(stdout, out, s.cfg.Root, config.ReportFormatText); renderErr != nil {
			return renderErr
		}
		if s.verbose {
			renderGuidance(cmd.ErrOrStderr(), out.Report)
		}
		cmd.SilenceErrors = true
		return &ExitError{Code: ExitRejected}

	case errors.Is(err, dbformat.ErrCompile):
		return fail(cmd, compileDefect(err, opts.Output), ExitDefect, s.verbose)

	case err != nil:
		return fail(cmd, explain(err, s.cfg.Root), ExitRejected, s.verbose)
	}

	if len(out.Report.Violations) > 0 {
		if err := renderReport(stdout, out, s.cfg.Root, config.ReportFormatText); err != nil {
			return err
		}
	}
	printArtifact(stdout, out, opts)
	return nil
}

func printArtifact(w io.Writer, out *pipeline.Outcome, opts pipeline.CompileOptions) {
	packages := out.Artifact.Database.Counts()[record.KindPackage]
	if out.Output == "" {
		fmt.Fprintf(w, "%s Compiled %d packages in memory (%d bytes)\n",
			SuccessStyle.Render(successIcon), packages, len(out.Artifact.Blob))
	} else {
		fmt.Fprintf(w, "%s Compiled %d packages to %s (%d bytes)\n",
			SuccessStyle.Render(successIcon), packages, CmdStyle.Render(out.Output), len(out.Artifact.Blob))
	}
	fmt.Fprintf(w, "  %s sha256 %s\n", infoIcon, out.Artifact.Checksum)
	if out.Output != "" && opts.Checksum {
		fmt.Fprintf(w, "  %s checksum %s\n", infoIcon, CmdStyle.Render(out.Output+dbformat.ChecksumSuffix))
	}
}

// compileDefect describes a failed self check. The cause carries the record
// counts of the batch that triggered it.
func compileDefect(err error, output string) error {
	ctx := issue.NewErrorContext().
		WithOperation("compile database").
		WithSuggestion("This is a bug in pkgdb, not in the records; please report it with the output of 'pkgdb stats'").
		WithIssue(issue.CompileDefectId).
		Wrap(err)
	if output != "" {
		ctx = ctx.WithResource(output)
	}
	return ctx.BuildError()
}

// buildTime resolves the header timestamp from the flag value, then the
// SOURCE_DATE_EPOCH environment variable, then now.
func buildTime(flag string, getenv func(string) string, now func() time.Time) (time.Time, error) {
	if flag != "" {
		t, err := parseTimestamp(flag)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid --timestamp: %w", err)
		}
		return t, nil
	}
	if env := getenv(sourceDateEpochEnv); env != "" {
		secs, err := strconv.ParseInt(env, 10, 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid %s %q: must be Unix seconds", sourceDateEpochEnv, env)
		}
		return time.Unix(secs, 0).UTC(), nil
	}
	return now().UTC(), nil
}

// parseTimestamp accepts RFC 3339 or Unix seconds.
func parseTimestamp(value string) (time.Time, error) {
	if secs, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%q is neither RFC 3339 nor Unix seconds", value)
	}
	return t.UTC(), nil
}
