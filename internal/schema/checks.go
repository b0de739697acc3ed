// SPDX-License-Identifier: MPL-2.0

package schema

import (
	"fmt"
	"maps"
	"path"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"mvdan.cc/sh/v3/syntax"

	"github.com/heimdal-dev/pkgdb/pkg/record"
)

func checkPackage(p *record.Package) []problem {
	var problems []problem

	if covered := p.Platforms.Covered(); len(covered) < record.MinPlatformCoverage {
		problems = append(problems, problem{
			field: "platforms",
			message: fmt.Sprintf("platform coverage below minimum (%d): %d of apt, brew, dnf, pacman declared",
				record.MinPlatformCoverage, len(covered)),
		})
	}

	problems = append(problems, duplicates("tags", "", p.Tags)...)
	problems = append(problems, duplicates("alternatives", "", p.Alternatives)...)
	problems = append(problems, duplicates("related", "", p.Related)...)
	problems = append(problems, duplicates("dependencies.required", "package", dependencyTargets(p.Dependencies.Required))...)
	problems = append(problems, duplicates("dependencies.optional", "package", dependencyTargets(p.Dependencies.Optional))...)

	required := dependencyTargets(p.Dependencies.Required)
	for i, target := range dependencyTargets(p.Dependencies.Optional) {
		if slices.Contains(required, target) {
			problems = append(problems, problem{
				field:   fmt.Sprintf("dependencies.optional[%d].package", i),
				message: fmt.Sprintf("'%s' is already a required dependency", target),
			})
		}
	}

	return problems
}

func checkMapping(m *record.Mapping, prefix string) []problem {
	return duplicates(prefix+".aliases", "", m.Aliases)
}

func checkGroup(g *record.Group) []problem {
	var problems []problem

	seen := make(map[string]bool, len(g.Packages.Required)+len(g.Packages.Optional))
	check := func(list string, ids []string) {
		for i, id := range ids {
			if seen[id] {
				problems = append(problems, problem{
					field:   fmt.Sprintf("packages.%s[%d]", list, i),
					message: fmt.Sprintf("package '%s' listed more than once", id),
				})
			}
			seen[id] = true
		}
	}
	check("required", g.Packages.Required)
	check("optional", g.Packages.Optional)

	problems = append(problems, duplicates("groups", "", g.Groups)...)
	for _, platform := range slices.Sorted(maps.Keys(g.PlatformOverrides)) {
		override := g.PlatformOverrides[platform]
		prefix := "platform_overrides." + platform
		problems = append(problems, duplicates(prefix+".packages", "", override.Packages)...)
		problems = append(problems, duplicates(prefix+".casks", "", override.Casks)...)
	}

	return problems
}

func checkProfile(p *record.Profile) []problem {
	var problems []problem

	for _, bucket := range slices.Sorted(maps.Keys(p.Packages)) {
		problems = append(problems, duplicates("packages."+bucket, "", p.Packages[bucket])...)
	}

	for i, df := range p.Dotfiles {
		if msg := checkDotfileSource(df.Source); msg != "" {
			problems = append(problems, problem{field: fmt.Sprintf("dotfiles[%d].source", i), message: msg})
		}
		if msg := checkDotfileTarget(df.Target); msg != "" {
			problems = append(problems, problem{field: fmt.Sprintf("dotfiles[%d].target", i), message: msg})
		}
	}

	problems = append(problems, checkHooks("hooks.pre_install", p.Hooks.PreInstall)...)
	problems = append(problems, checkHooks("hooks.post_install", p.Hooks.PostInstall)...)

	return problems
}

func checkSuggestion(s *record.Suggestion, prefix string) []problem {
	var problems []problem

	for i, pattern := range s.Files {
		if !doublestar.ValidatePattern(pattern) {
			problems = append(problems, problem{
				field:   fmt.Sprintf("%s.files[%d]", prefix, i),
				message: fmt.Sprintf("invalid glob pattern %q", pattern),
			})
		}
	}
	problems = append(problems, duplicates(prefix+".files", "", s.Files)...)

	targets := make([]string, len(s.Packages))
	for i, rec := range s.Packages {
		targets[i] = rec.Package
	}
	problems = append(problems, duplicates(prefix+".packages", "package", targets)...)

	return problems
}

// checkDotfileSource requires a relative path that stays inside the profile directory.
func checkDotfileSource(src string) string {
	if path.IsAbs(src) || strings.HasPrefix(src, "~") {
		return fmt.Sprintf("source %q must be a relative path", src)
	}
	if slices.Contains(strings.Split(src, "/"), "..") {
		return fmt.Sprintf("source %q must not contain '..'", src)
	}
	return ""
}

// checkDotfileTarget requires an absolute path or one relative to the home directory.
func checkDotfileTarget(target string) string {
	if path.IsAbs(target) || strings.HasPrefix(target, "~/") {
		return ""
	}
	return fmt.Sprintf("target %q must be absolute or start with ~/", target)
}

func checkHooks(field string, cmds []string) []problem {
	var problems []problem
	parser := syntax.NewParser()
	for i, cmd := range cmds {
		if _, err := parser.Parse(strings.NewReader(cmd), "hook"); err != nil {
			problems = append(problems, problem{
				field:   fmt.Sprintf("%s[%d]", field, i),
				message: fmt.Sprintf("invalid shell command: %v", err),
			})
		}
	}
	return problems
}

// duplicates reports every entry of values equal to an earlier one.
// When sub is set, the field path points at that sub-field of the entry.
func duplicates(field, sub string, values []string) []problem {
	var problems []problem
	seen := make(map[string]bool, len(values))
	for i, v := range values {
		if seen[v] {
			f := fmt.Sprintf("%s[%d]", field, i)
			if sub != "" {
				f += "." + sub
			}
			problems = append(problems, problem{field: f, message: fmt.Sprintf("duplicate entry '%s'", v)})
		}
		seen[v] = true
	}
	return problems
}

func dependencyTargets(deps []record.Dependency) []string {
	out := make([]string, len(deps))
	for i, d := range deps {
		out[i] = d.Package
	}
	return out
}
