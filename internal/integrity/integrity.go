// SPDX-License-Identifier: MPL-2.0

// Package integrity checks cross-record invariants of a schema-valid batch:
// unique identifiers, filename agreement, reference resolution, alias
// disjointness and group include cycles. Self-references and required
// dependency cycles are reported as warnings.
//
// Identifiers that the schema validator excluded are treated as known, so a
// single broken record does not cascade into unresolved-reference noise.
package integrity

import (
	"fmt"
	"path/filepath"

	"github.com/heimdal-dev/pkgdb/pkg/record"
	"github.com/heimdal-dev/pkgdb/pkg/violation"
)

// checker holds the identifier indexes built in one pass over the batch.
type checker struct {
	batch *record.Batch

	packages map[string]*record.Package
	groups   map[string]*record.Group
	profiles map[string]*record.Profile
	// aliases maps each alias to the canonical identifier that declared it first.
	aliases map[string]string

	out violation.Violations
}

// Check returns every integrity violation of batch. The batch is not modified.
func Check(batch *record.Batch) violation.Violations {
	c := &checker{
		batch:    batch,
		packages: make(map[string]*record.Package, len(batch.Packages)),
		groups:   make(map[string]*record.Group, len(batch.Groups)),
		profiles: make(map[string]*record.Profile, len(batch.Profiles)),
		aliases:  make(map[string]string),
	}

	c.indexPackages()
	c.indexGroups()
	c.indexProfiles()

	c.checkPackageRefs()
	c.checkEdges()
	c.checkGroupRefs()
	c.checkProfileRefs()
	c.checkSuggestionRefs()
	c.checkMappings()

	c.checkGroupCycles()
	c.checkDependencyCycles()

	return c.out
}

func (c *checker) indexPackages() {
	for i := range c.batch.Packages {
		p := &c.batch.Packages[i]
		if stem := record.Stem(p.Path); stem != p.Name {
			c.errorf(p.Path, p.Name, "name", "", "filename '%s' does not match package name '%s' (expected '%s.yaml')",
				filepath.Base(p.Path), p.Name, p.Name)
		}
		if first, dup := c.packages[p.Name]; dup {
			c.duplicate(p.Path, p.Name, "name", first.Path)
			continue
		}
		c.packages[p.Name] = p
	}
}

func (c *checker) indexGroups() {
	for i := range c.batch.Groups {
		g := &c.batch.Groups[i]
		if first, dup := c.groups[g.ID]; dup {
			c.duplicate(g.Path, g.ID, "id", first.Path)
			continue
		}
		c.groups[g.ID] = g
	}
}

func (c *checker) indexProfiles() {
	for i := range c.batch.Profiles {
		p := &c.batch.Profiles[i]
		if first, dup := c.profiles[p.ID]; dup {
			c.duplicate(p.Path, p.ID, "id", first.Path)
			continue
		}
		c.profiles[p.ID] = p
	}
}

// packageKnown reports whether id names a package in the batch or one excluded by schema validation.
func (c *checker) packageKnown(id string) bool {
	_, ok := c.packages[id]
	return ok || c.batch.IsExcluded(record.KindPackage, id)
}

func (c *checker) groupKnown(id string) bool {
	_, ok := c.groups[id]
	return ok || c.batch.IsExcluded(record.KindGroup, id)
}

// requirePackages reports every id in ids that does not resolve to a package.
func (c *checker) requirePackages(path, rec, field string, ids []string) {
	for _, id := range ids {
		if !c.packageKnown(id) {
			c.errorf(path, rec, field, id, "references unknown package '%s'", id)
		}
	}
}

func (c *checker) duplicate(path, id, field, firstPath string) {
	c.errorf(path, id, field, id, "duplicate identifier: %s (first defined in %s)", id, firstPath)
}

func (c *checker) errorf(path, rec, field, target, format string, args ...any) {
	c.add(violation.SeverityError, path, rec, field, target, fmt.Sprintf(format, args...))
}

func (c *checker) warnf(path, rec, field, target, format string, args ...any) {
	c.add(violation.SeverityWarning, path, rec, field, target, fmt.Sprintf(format, args...))
}

func (c *checker) add(sev violation.Severity, path, rec, field, target, msg string) {
	c.out = append(c.out, violation.Violation{
		Kind:     violation.KindIntegrity,
		Severity: sev,
		Path:     path,
		Record:   rec,
		Field:    field,
		Target:   target,
		Message:  msg,
	})
}
