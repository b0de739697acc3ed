// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"cmp"
	"maps"
	"slices"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/heimdal-dev/pkgdb/pkg/violation"
)

type Id int

const (
	RootNotFoundId Id = iota + 1
	RecordParseErrorId
	SchemaViolationId
	IntegrityViolationId
	DependencyCycleId
	CompileDefectId
	ArtifactCorruptId
	IncompatibleArtifactId
	ChecksumMismatchId
	ConfigLoadFailedId
	PermissionDeniedId
)

type MarkdownMsg string

type HttpLink string

type Issue struct {
	id       Id          // ID used to lookup the issue
	mdMsg    MarkdownMsg // Markdown text that will be rendered
	docLinks []HttpLink
	extLinks []HttpLink // external links that might be useful for the user
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

// Render renders the guidance page through glamour with the given style
// ("dark", "light", "notty" or a style file path).
func (i *Issue) Render(stylePath string) (string, error) {
	var md strings.Builder
	md.WriteString(string(i.mdMsg))
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		md.WriteString("\n\n## See also\n")
		for _, link := range slices.Concat(i.docLinks, i.extLinks) {
			md.WriteString("\n- <" + string(link) + ">")
		}
	}
	return render(md.String(), stylePath)
}

var (
	render = glamour.Render

	rootNotFoundIssue = &Issue{
		id: RootNotFoundId,
		mdMsg: `
# Record tree not found!

The database root must be a directory holding the record kinds:

~~~
packages/  mappings/  dependencies/  groups/  profiles/  suggestions/
~~~

## Things you can try
- Point the tool at your tree:
~~~
$ pkgdb validate --root ./database
~~~
- Or set ` + "`root`" + ` in your pkgdb.cue, or export PKGDB_ROOT.`,
	}

	recordParseErrorIssue = &Issue{
		id: RecordParseErrorId,
		mdMsg: `
# Failed to parse a record file!

Every record is a single YAML document. Parsing stops at the first
problem in a file, and that file is left out of the rest of validation.

## Common mistakes
- Tabs used for indentation (YAML only allows spaces)
- The same key written twice in one mapping
- An unclosed ` + "`[`" + ` or ` + "`{`" + ` in a flow collection
- Several documents separated by ` + "`---`" + ` in one file

## Things you can try
- Open the file at the reported line and column.
- Run a YAML linter over the file.`,
		extLinks: []HttpLink{"https://yaml.org/spec/1.2.2/"},
	}

	schemaViolationIssue = &Issue{
		id: SchemaViolationId,
		mdMsg: `
# Record does not match its schema!

A record was read but one of its fields has a missing, extra or
out-of-range value. The report names the field path, for example
` + "`platforms.apt`" + ` or ` + "`dependencies.required[0].package`" + `.

## Rules that are checked
- Identifiers and tags are lowercase kebab-case.
- ` + "`popularity`" + ` is between 0 and 100.
- A package declares a native name on at least two platforms.
- A package file is named after the package (` + "`git.yaml`" + ` holds ` + "`name: git`" + `).

## Things you can try
- Print the schema for the record kind:
~~~
$ pkgdb schema package
~~~`,
	}

	integrityViolationIssue = &Issue{
		id: IntegrityViolationId,
		mdMsg: `
# Records reference something that does not exist!

Each record is valid on its own, but an identifier it points at is
missing from the batch or is defined more than once.

## Things you can try
- Add the missing package, group or profile.
- Fix the spelling of the referenced identifier.
- Rename one of the duplicated records so identifiers stay unique.
- Records that failed schema validation are not counted as missing; fix
  those first and validate again.`,
	}

	dependencyCycleIssue = &Issue{
		id: DependencyCycleId,
		mdMsg: `
# Dependency cycle detected!

Group includes form a loop, so the members of the groups involved cannot
be resolved. This rejects the batch.

Loops among required dependencies (inline or from the dependencies/
directory) are reported the same way as warnings. They do not reject the
batch, since package managers resolve them.

## Things you can try
- Remove one include of the loop, or merge the groups.
- For dependency loops, move one edge to ` + "`optional`" + ` or use ` + "`related`" + `.`,
	}

	compileDefectIssue = &Issue{
		id: CompileDefectId,
		mdMsg: `
# The compiler produced a bad database!

The batch was accepted, but the compiled artifact did not decode back to
the same records. This is a bug in pkgdb, not in your records.

## Things you can try
- Re-run with ` + "`--verbose`" + ` and keep the record counts from the error.
- Report the problem together with the record tree if possible.`,
	}

	artifactCorruptIssue = &Issue{
		id: ArtifactCorruptId,
		mdMsg: `
# Database file is corrupt!

The header length or payload checksum does not match the file contents.
The file was truncated or modified after it was written.

## Things you can try
~~~
$ pkgdb compile
~~~`,
	}

	incompatibleArtifactIssue = &Issue{
		id: IncompatibleArtifactId,
		mdMsg: `
# Database version not supported!

The file was written by a pkgdb release with a different major format
version. Minor versions are read by every release of the same major.

## Things you can try
- Recompile the database with this release.
- Or use the release that wrote it.`,
	}

	checksumMismatchIssue = &Issue{
		id: ChecksumMismatchId,
		mdMsg: `
# Checksum mismatch!

The database does not match the hash in its ` + "`.sha256`" + ` companion file.

## Things you can try
- Download or compile the database again.
- Check the companion by hand:
~~~
$ sha256sum -c packages.db.sha256
~~~`,
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration!

pkgdb looks for pkgdb.cue in the path given with ` + "`--config`" + `, then the
working directory, then the user config directory.

## Example pkgdb.cue
~~~cue
root: "./database"
output: {
	path:     "target/packages.db"
	checksum: true
}
workers:       8
log_level:     "info"
report_format: "text"
~~~

## Things you can try
- Show the effective configuration:
~~~
$ pkgdb config show
~~~`,
		extLinks: []HttpLink{"https://cuelang.org/docs/"},
	}

	permissionDeniedIssue = &Issue{
		id: PermissionDeniedId,
		mdMsg: `
# Permission denied!

A record file could not be read, or the output directory is not writable.

## Things you can try
- Check the permissions of the root and output directories.
- Write the database somewhere else:
~~~
$ pkgdb compile --out /tmp/packages.db
~~~`,
	}

	issues = map[Id]*Issue{
		rootNotFoundIssue.Id():         rootNotFoundIssue,
		recordParseErrorIssue.Id():     recordParseErrorIssue,
		schemaViolationIssue.Id():      schemaViolationIssue,
		integrityViolationIssue.Id():   integrityViolationIssue,
		dependencyCycleIssue.Id():      dependencyCycleIssue,
		compileDefectIssue.Id():        compileDefectIssue,
		artifactCorruptIssue.Id():      artifactCorruptIssue,
		incompatibleArtifactIssue.Id(): incompatibleArtifactIssue,
		checksumMismatchIssue.Id():     checksumMismatchIssue,
		configLoadFailedIssue.Id():     configLoadFailedIssue,
		permissionDeniedIssue.Id():     permissionDeniedIssue,
	}
)

// Values returns every issue ordered by Id.
func Values() []*Issue {
	return slices.SortedFunc(maps.Values(issues), func(a, b *Issue) int {
		return cmp.Compare(a.id, b.id)
	})
}

func Get(id Id) *Issue {
	return issues[id]
}

// ForKind returns the guidance page for a violation kind.
func ForKind(k violation.Kind) *Issue {
	switch k {
	case violation.KindParse:
		return recordParseErrorIssue
	case violation.KindSchema:
		return schemaViolationIssue
	default:
		return integrityViolationIssue
	}
}

// ForViolation returns the guidance page for v. Cycles get their own page.
func ForViolation(v violation.Violation) *Issue {
	if v.Kind == violation.KindIntegrity && strings.Contains(v.Message, "cycle detected") {
		return dependencyCycleIssue
	}
	return ForKind(v.Kind)
}
