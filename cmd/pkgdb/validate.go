// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"github.com/spf13/cobra"

	"github.com/heimdal-dev/pkgdb/internal/config"
)

// newValidateCommand creates the `pkgdb validate` command.
func newValidateCommand(app *App, flags *globalFlags) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the record tree",
		Long: `Load every record, check it against its schema and check every
cross-record reference. The whole tree is always checked, so one run
reports every problem.

The batch is rejected when at least one error-level violation is found;
warnings are reported but do not reject.

Examples:
  pkgdb validate                   Validate the tree under the configured root
  pkgdb validate --root ./database Validate another tree
  pkgdb validate --format json     Print the report as JSON`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runValidate(cmd, app, flags, config.ReportFormat(format))
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "", "report format: text or json (default from config)")
	return cmd
}

func runValidate(cmd *cobra.Command, app *App, flags *globalFlags, format config.ReportFormat) error {
	s, err := app.newSession(cmd, flags)
	if err != nil {
		return fail(cmd, err, ExitRejected, flags.verbose)
	}
	if format == "" {
		format = s.cfg.ReportFormat
	}
	if ok, errs := format.IsValid(); !ok {
		return errs[0]
	}

	p, err := s.pipeline()
	if err != nil {
		return err
	}
	out, err := p.Validate(cmd.Context())
	if err != nil {
		return fail(cmd, explain(err, s.cfg.Root), ExitRejected, s.verbose)
	}

	if err := renderReport(cmd.OutOrStdout(), out, s.cfg.Root, format); err != nil {
		return err
	}
	if s.verbose && format == config.ReportFormatText {
		renderGuidance(cmd.ErrOrStderr(), out.Report)
	}
	if !out.Report.Accepted() {
		cmd.SilenceErrors = true
		return &ExitError{Code: ExitRejected}
	}
	return nil
}
