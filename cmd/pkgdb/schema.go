// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/heimdal-dev/pkgdb/internal/schema"
	"github.com/heimdal-dev/pkgdb/pkg/record"
)

// newSchemaCommand creates the `pkgdb schema` command.
func newSchemaCommand(_ *App) *cobra.Command {
	kinds := make([]string, 0, len(record.Kinds()))
	for _, k := range record.Kinds() {
		kinds = append(kinds, string(k))
	}

	return &cobra.Command{
		Use:   "schema [kind]",
		Short: "Print the CUE schema records are validated against",
		Long: `Print the CUE schema records are validated against.

Without arguments the whole schema is printed. With a record kind
(package, mapping, dependency, group, profile or suggestion) only the
definition for that kind is printed, with referenced definitions
expanded.`,
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: kinds,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				fmt.Fprint(cmd.OutOrStdout(), schema.Source())
				return nil
			}

			v, err := schema.New()
			if err != nil {
				return err
			}
			out, err := v.Describe(record.Kind(args[0]))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", schema.Definition(record.Kind(args[0])), out)
			return nil
		},
	}
}
