// SPDX-License-Identifier: MPL-2.0

package integrity

import (
	"strings"

	"github.com/heimdal-dev/pkgdb/internal/dag"
	"github.com/heimdal-dev/pkgdb/pkg/record"
)

// checkGroupCycles reports loops among group includes. Unknown groups are
// already reported as unresolved and are left out of the graph.
func (c *checker) checkGroupCycles() {
	g := dag.New()
	for id, group := range c.groups {
		g.AddNode(id)
		for _, inc := range group.Groups {
			if _, ok := c.groups[inc]; ok {
				g.AddEdge(id, inc)
			}
		}
	}

	for _, cycle := range g.Cycles() {
		first := c.groups[cycle.Cycle[0]]
		c.errorf(first.Path, first.ID, "groups", "", "group include cycle detected: %s", strings.Join(cycle.Cycle, " -> "))
	}
}

// checkDependencyCycles warns about loops among required dependencies,
// combining inline dependencies.required entries with required dependency
// edges. Package managers resolve such loops, so they do not reject a batch.
func (c *checker) checkDependencyCycles() {
	g := dag.New()
	for name, p := range c.packages {
		g.AddNode(name)
		for _, d := range p.Dependencies.Required {
			if _, ok := c.packages[d.Package]; ok {
				g.AddEdge(name, d.Package)
			}
		}
	}
	for _, e := range c.batch.Dependencies {
		if e.Type != record.DependencyRequired {
			continue
		}
		_, srcOK := c.packages[e.Source]
		_, dstOK := c.packages[e.Target]
		if srcOK && dstOK {
			g.AddEdge(e.Source, e.Target)
		}
	}

	for _, cycle := range g.Cycles() {
		first := c.packages[cycle.Cycle[0]]
		c.warnf(first.Path, first.Name, "dependencies.required", "", "%s", cycle.Error())
	}
}
