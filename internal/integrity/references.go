// SPDX-License-Identifier: MPL-2.0

package integrity

import (
	"fmt"
	"maps"
	"slices"

	"github.com/heimdal-dev/pkgdb/pkg/record"
)

func (c *checker) checkPackageRefs() {
	for i := range c.batch.Packages {
		p := &c.batch.Packages[i]
		for _, dep := range []struct {
			field string
			deps  []record.Dependency
		}{
			{"dependencies.required", p.Dependencies.Required},
			{"dependencies.optional", p.Dependencies.Optional},
		} {
			for _, d := range dep.deps {
				if d.Package == p.Name {
					// Required self-dependencies surface as cycle warnings.
					if dep.field == "dependencies.optional" {
						c.selfReference(p.Path, p.Name, dep.field)
					}
					continue
				}
				c.requirePackages(p.Path, p.Name, dep.field, []string{d.Package})
			}
		}

		for _, list := range []struct {
			field string
			ids   []string
		}{
			{"alternatives", p.Alternatives},
			{"related", p.Related},
		} {
			for _, id := range list.ids {
				if id == p.Name {
					c.selfReference(p.Path, p.Name, list.field)
					continue
				}
				c.requirePackages(p.Path, p.Name, list.field, []string{id})
			}
		}
	}
}

func (c *checker) checkEdges() {
	for _, e := range c.batch.Dependencies {
		rec := e.Identifier()
		if e.Source == e.Target && e.Type != record.DependencyRequired {
			c.selfReference(e.Path, rec, "source")
			continue
		}
		c.requirePackages(e.Path, rec, "source", []string{e.Source})
		c.requirePackages(e.Path, rec, "target", []string{e.Target})
	}
}

func (c *checker) checkGroupRefs() {
	for i := range c.batch.Groups {
		g := &c.batch.Groups[i]
		c.requirePackages(g.Path, g.ID, "packages.required", g.Packages.Required)
		c.requirePackages(g.Path, g.ID, "packages.optional", g.Packages.Optional)
		for _, id := range g.Groups {
			if id == g.ID {
				continue
			}
			if !c.groupKnown(id) {
				c.errorf(g.Path, g.ID, "groups", id, "references unknown group '%s'", id)
			}
		}
	}
}

func (c *checker) checkProfileRefs() {
	for i := range c.batch.Profiles {
		p := &c.batch.Profiles[i]
		for _, bucket := range slices.Sorted(maps.Keys(p.Packages)) {
			c.requirePackages(p.Path, p.ID, "packages."+bucket, p.Packages[bucket])
		}
	}
}

func (c *checker) checkSuggestionRefs() {
	for _, s := range c.batch.Suggestions {
		for _, r := range s.Packages {
			c.requirePackages(s.Path, s.Name, "packages", []string{r.Package})
		}
	}
}

// checkMappings resolves canonical identifiers, keeps aliases disjoint from
// package identifiers and from each other, and warns when a mapping disagrees
// with the package about a native name.
func (c *checker) checkMappings() {
	for _, m := range c.batch.Mappings {
		pkg, ok := c.packages[m.Canonical]
		if !ok && !c.batch.IsExcluded(record.KindPackage, m.Canonical) {
			c.errorf(m.Path, m.Canonical, "canonical", m.Canonical, "references unknown package '%s'", m.Canonical)
		}

		for _, alias := range m.Aliases {
			if _, clash := c.packages[alias]; clash {
				c.errorf(m.Path, m.Canonical, "aliases", alias, "alias '%s' collides with a package identifier", alias)
				continue
			}
			if owner, taken := c.aliases[alias]; taken {
				c.errorf(m.Path, m.Canonical, "aliases", alias, "alias '%s' is already an alias of '%s'", alias, owner)
				continue
			}
			c.aliases[alias] = m.Canonical
		}

		if pkg == nil {
			continue
		}
		for _, platform := range record.AllPlatforms() {
			mapped, hasMapped := m.Platforms.Name(platform)
			own, hasOwn := pkg.Platforms.Name(platform)
			if hasMapped && hasOwn && mapped != own {
				c.warnf(m.Path, m.Canonical, fmt.Sprintf("platforms.%s", platform), own,
					"mapping names '%s' on %s but the package declares '%s'", mapped, platform, own)
			}
		}
	}
}

// selfReference warns about a record that names itself where another record
// is expected. The reference resolves, so the batch is still accepted.
func (c *checker) selfReference(path, rec, field string) {
	c.warnf(path, rec, field, rec, "'%s' refers to itself", rec)
}
