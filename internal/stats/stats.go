// SPDX-License-Identifier: MPL-2.0

// Package stats summarizes a validated batch for humans and for badges.
// Statistics never gate a build; they describe whatever batch they are given.
package stats

import (
	"cmp"
	"math"
	"slices"

	"github.com/heimdal-dev/pkgdb/pkg/record"
)

// NotCompiled is the ArtifactSize reported when no artifact exists.
const NotCompiled int64 = -1

type (
	// Summary is a point-in-time description of a batch.
	Summary struct {
		Packages          int                `json:"packages" toml:"packages"`
		Mappings          int                `json:"mappings" toml:"mappings"`
		Dependencies      int                `json:"dependencies" toml:"dependencies"`
		Groups            int                `json:"groups" toml:"groups"`
		Profiles          int                `json:"profiles" toml:"profiles"`
		Suggestions       int                `json:"suggestions" toml:"suggestions"`
		Tags              int                `json:"tags" toml:"tags"`
		AveragePopularity float64            `json:"average_popularity" toml:"average_popularity"`
		ArtifactSize      int64              `json:"artifact_size" toml:"artifact_size"`
		Categories        []CategoryCount    `json:"categories" toml:"categories"`
		Platforms         []PlatformCoverage `json:"platforms" toml:"platforms"`
	}

	// CategoryCount is the number of packages in one category.
	CategoryCount struct {
		Category record.Category `json:"category" toml:"category"`
		Packages int             `json:"packages" toml:"packages"`
	}

	// PlatformCoverage is how many packages declare a native name on one platform.
	PlatformCoverage struct {
		Platform record.Platform `json:"platform" toml:"platform"`
		Packages int             `json:"packages" toml:"packages"`
		// Percent of all packages, rounded to the nearest integer.
		Percent int `json:"percent" toml:"percent"`
	}
)

// Compute summarizes batch. artifactSize is the compiled artifact size in
// bytes, or NotCompiled.
func Compute(batch *record.Batch, artifactSize int64) Summary {
	s := Summary{
		Packages:     len(batch.Packages),
		Mappings:     len(batch.Mappings),
		Dependencies: len(batch.Dependencies),
		Groups:       len(batch.Groups),
		Profiles:     len(batch.Profiles),
		Suggestions:  len(batch.Suggestions),
		ArtifactSize: artifactSize,
	}

	categories := make(map[record.Category]int)
	platforms := make(map[record.Platform]int)
	tags := make(map[string]struct{})
	popularity := 0
	for i := range batch.Packages {
		p := &batch.Packages[i]
		categories[p.Category]++
		for _, pl := range p.Platforms.Covered() {
			platforms[pl]++
		}
		for _, t := range p.Tags {
			tags[t] = struct{}{}
		}
		popularity += p.Popularity
	}
	s.Tags = len(tags)

	for c, n := range categories {
		s.Categories = append(s.Categories, CategoryCount{Category: c, Packages: n})
	}
	// Largest first; ties by name so output is stable.
	slices.SortFunc(s.Categories, func(a, b CategoryCount) int {
		return cmp.Or(cmp.Compare(b.Packages, a.Packages), cmp.Compare(a.Category, b.Category))
	})

	for _, pl := range record.AllPlatforms() {
		s.Platforms = append(s.Platforms, PlatformCoverage{
			Platform: pl,
			Packages: platforms[pl],
			Percent:  percent(platforms[pl], s.Packages),
		})
	}

	if s.Packages > 0 {
		s.AveragePopularity = math.Round(float64(popularity)/float64(s.Packages)*10) / 10
	}
	return s
}

// Compiled reports whether the summary describes a compiled artifact.
func (s Summary) Compiled() bool {
	return s.ArtifactSize >= 0
}

// ArtifactKB returns the artifact size in kilobytes, rounded.
func (s Summary) ArtifactKB() int64 {
	if !s.Compiled() {
		return 0
	}
	return int64(math.Round(float64(s.ArtifactSize) / 1024))
}

func percent(n, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(n) * 100 / float64(total)))
}
