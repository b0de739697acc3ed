// SPDX-License-Identifier: MPL-2.0

// Package index builds the lookup tables stored in the compiled database.
package index

import (
	"slices"
	"strings"

	"github.com/heimdal-dev/pkgdb/pkg/record"
)

// Index holds the packages of a batch sorted by identifier together with
// position lookups. Positions index into Packages; every bucket is ascending.
type Index struct {
	Packages   []record.Package
	ByID       map[string]int
	ByCategory map[record.Category][]int
	ByTag      map[string][]int
}

// Build indexes pkgs in a single pass after sorting a copy by identifier.
// The input slice is not modified. Identifiers are expected to be unique;
// when they are not, ByID keeps the first position.
func Build(pkgs []record.Package) *Index {
	sorted := slices.Clone(pkgs)
	slices.SortStableFunc(sorted, func(a, b record.Package) int {
		return strings.Compare(a.Name, b.Name)
	})

	idx := &Index{
		Packages:   sorted,
		ByID:       make(map[string]int, len(sorted)),
		ByCategory: make(map[record.Category][]int),
		ByTag:      make(map[string][]int),
	}
	for i := range sorted {
		p := &sorted[i]
		if _, dup := idx.ByID[p.Name]; !dup {
			idx.ByID[p.Name] = i
		}
		idx.ByCategory[p.Category] = append(idx.ByCategory[p.Category], i)
		for _, tag := range p.Tags {
			bucket := idx.ByTag[tag]
			if len(bucket) > 0 && bucket[len(bucket)-1] == i {
				continue
			}
			idx.ByTag[tag] = append(bucket, i)
		}
	}
	return idx
}

// Lookup returns the package with identifier id.
func (idx *Index) Lookup(id string) (*record.Package, bool) {
	i, ok := idx.ByID[id]
	if !ok {
		return nil, false
	}
	return &idx.Packages[i], true
}

// Category returns the packages of category c in identifier order.
func (idx *Index) Category(c record.Category) []*record.Package {
	return idx.resolve(idx.ByCategory[c])
}

// Tag returns the packages carrying tag in identifier order.
func (idx *Index) Tag(tag string) []*record.Package {
	return idx.resolve(idx.ByTag[tag])
}

// Tags returns every tag in lexical order.
func (idx *Index) Tags() []string {
	tags := make([]string, 0, len(idx.ByTag))
	for t := range idx.ByTag {
		tags = append(tags, t)
	}
	slices.Sort(tags)
	return tags
}

func (idx *Index) resolve(positions []int) []*record.Package {
	out := make([]*record.Package, len(positions))
	for i, pos := range positions {
		out[i] = &idx.Packages[pos]
	}
	return out
}
