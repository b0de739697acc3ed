// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/heimdal-dev/pkgdb/internal/dbformat"
	"github.com/heimdal-dev/pkgdb/internal/issue"
	"github.com/heimdal-dev/pkgdb/pkg/record"
)

type inspectFlags struct {
	pkg      string
	category string
	tag      string
	verify   bool
}

// newInspectCommand creates the `pkgdb inspect` command.
func newInspectCommand(_ *App, flags *globalFlags) *cobra.Command {
	inf := &inspectFlags{}

	cmd := &cobra.Command{
		Use:   "inspect <database>",
		Short: "Describe a compiled database",
		Long: `Read a compiled database the way a consumer does and describe it.

The header and payload checksum are always checked; files from an
unsupported major version are refused. With --verify the file is also
checked against its .sha256 companion. Lookups go through the
identifier, category and tag indexes stored in the file.

Examples:
  pkgdb inspect target/packages.db
  pkgdb inspect target/packages.db --verify
  pkgdb inspect target/packages.db --package neovim
  pkgdb inspect target/packages.db --category editor
  pkgdb inspect target/packages.db --tag vcs`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd, args[0], inf, flags.verbose)
		},
	}
	cmd.Flags().StringVarP(&inf.pkg, "package", "p", "", "show the package with this identifier")
	cmd.Flags().StringVarP(&inf.category, "category", "c", "", "list the packages in this category")
	cmd.Flags().StringVarP(&inf.tag, "tag", "t", "", "list the packages carrying this tag")
	cmd.Flags().BoolVar(&inf.verify, "verify", false, "check the file against its .sha256 companion")
	cmd.MarkFlagsMutuallyExclusive("package", "category", "tag")
	return cmd
}

func runInspect(cmd *cobra.Command, path string, inf *inspectFlags, verbose bool) error {
	stdout := cmd.OutOrStdout()

	if inf.verify {
		if err := dbformat.VerifyFile(path); err != nil {
			return fail(cmd, artifactError(err, path), ExitRejected, verbose)
		}
	}

	db, err := dbformat.ReadFile(path)
	if err != nil {
		return fail(cmd, artifactError(err, path), ExitRejected, verbose)
	}
	if inf.verify {
		fmt.Fprintf(stdout, "%s %s matches %s\n", SuccessStyle.Render(successIcon), path, CmdStyle.Render(path+dbformat.ChecksumSuffix))
	}

	switch {
	case inf.pkg != "":
		p, ok := db.Index.Lookup(inf.pkg)
		if !ok {
			return fail(cmd, fmt.Errorf("package %q not found in %s", inf.pkg, path), ExitRejected, verbose)
		}
		printPackage(stdout, p)
	case inf.category != "":
		c := record.Category(inf.category)
		if ok, errs := c.IsValid(); !ok {
			return fail(cmd, errs[0], ExitRejected, verbose)
		}
		printPackageList(stdout, "category "+inf.category, db.Index.Category(c))
	case inf.tag != "":
		printPackageList(stdout, "tag "+inf.tag, db.Index.Tag(inf.tag))
	default:
		printDatabase(stdout, path, db)
	}
	return nil
}

// artifactError maps read and verification failures of a database file to
// their guidance pages.
func artifactError(err error, path string) error {
	ctx := issue.NewErrorContext().WithOperation("read database").WithResource(path).Wrap(err)

	switch {
	case errors.Is(err, dbformat.ErrIncompatibleVersion):
		ctx = ctx.WithIssue(issue.IncompatibleArtifactId).
			WithSuggestion(fmt.Sprintf("This pkgdb reads major version %d; rebuild the database with it", dbformat.MajorVersion))
	case errors.Is(err, dbformat.ErrBadMagic), errors.Is(err, dbformat.ErrCorrupt):
		ctx = ctx.WithIssue(issue.ArtifactCorruptId).
			WithSuggestion("Re-download the database or rebuild it with 'pkgdb compile'")
	case errors.Is(err, dbformat.ErrChecksumMismatch), errors.Is(err, dbformat.ErrChecksumNotFound):
		ctx = ctx.WithIssue(issue.ChecksumMismatchId).
			WithSuggestion("Download the database and its " + dbformat.ChecksumSuffix + " file again")
	case errors.Is(err, fs.ErrNotExist):
		ctx = ctx.WithSuggestion("Check the path, or run 'pkgdb compile' first")
	case errors.Is(err, fs.ErrPermission):
		ctx = ctx.WithIssue(issue.PermissionDeniedId)
	}
	return ctx.BuildError()
}

func printDatabase(w io.Writer, path string, db *dbformat.Database) {
	h := db.Header
	fmt.Fprintln(w, TitleStyle.Render("Package database"))
	fmt.Fprintf(w, "  %-9s %s\n", "file", CmdStyle.Render(path))
	if info, err := os.Stat(path); err == nil {
		fmt.Fprintf(w, "  %-9s %d bytes\n", "size", info.Size())
	}
	fmt.Fprintf(w, "  %-9s %d.%d\n", "version", h.Major, h.Minor)
	fmt.Fprintf(w, "  %-9s %s\n", "built", h.BuiltAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(w, "  %-9s %s\n", "payload", hex.EncodeToString(h.Checksum[:]))
	fmt.Fprintln(w)

	fmt.Fprintln(w, TitleStyle.Render("Records"))
	counts := db.Counts()
	for _, k := range record.Kinds() {
		fmt.Fprintf(w, "  %-12s %d\n", k, counts[k])
	}
	fmt.Fprintf(w, "  %-12s %d\n", "tags", len(db.Index.Tags()))
}

func printPackage(w io.Writer, p *record.Package) {
	fmt.Fprintln(w, TitleStyle.Render(p.Name)+" "+SubtitleStyle.Render(string(p.Category)))
	fmt.Fprintf(w, "  %s\n", p.Description)
	fmt.Fprintf(w, "  %-12s %d\n", "popularity", p.Popularity)

	for _, platform := range record.AllPlatforms() {
		name, ok := p.Platforms.Name(platform)
		if !ok {
			name = SubtitleStyle.Render("(unavailable)")
		}
		fmt.Fprintf(w, "  %-12s %s\n", platform, name)
	}
	if p.Platforms.MAS != nil {
		fmt.Fprintf(w, "  %-12s %d\n", "mas", *p.Platforms.MAS)
	}

	optional := func(label, value string) {
		if value != "" {
			fmt.Fprintf(w, "  %-12s %s\n", label, value)
		}
	}
	optional("tags", strings.Join(p.Tags, ", "))
	optional("requires", joinDeps(p.Dependencies.Required))
	optional("optional", joinDeps(p.Dependencies.Optional))
	optional("alternatives", strings.Join(p.Alternatives, ", "))
	optional("related", strings.Join(p.Related, ", "))
	optional("website", p.Website)
	optional("license", p.License)
	optional("source", p.SourceURL)
}

func joinDeps(deps []record.Dependency) string {
	ids := make([]string, 0, len(deps))
	for _, d := range deps {
		ids = append(ids, d.Package)
	}
	return strings.Join(ids, ", ")
}

func printPackageList(w io.Writer, label string, pkgs []*record.Package) {
	fmt.Fprintf(w, "%s %s\n", TitleStyle.Render(label), SubtitleStyle.Render(fmt.Sprintf("(%d packages)", len(pkgs))))
	for _, p := range pkgs {
		fmt.Fprintf(w, "  %s %s\n", CmdStyle.Render(p.Name), SubtitleStyle.Render(p.Description))
	}
}
