// SPDX-License-Identifier: MPL-2.0

package schema

import (
	"context"
	"strings"
	"testing"

	"github.com/heimdal-dev/pkgdb/internal/loader"
	"github.com/heimdal-dev/pkgdb/internal/testutil"
	"github.com/heimdal-dev/pkgdb/pkg/record"
	"github.com/heimdal-dev/pkgdb/pkg/violation"
)

func newValidator(t *testing.T) *Validator {
	t.Helper()
	v, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return v
}

func basePackage() map[string]any {
	return map[string]any{
		"name":        "git",
		"description": "Distributed version control system",
		"category":    "git",
		"popularity":  int64(95),
		"platforms": map[string]any{
			"apt":    "git",
			"brew":   "git",
			"dnf":    nil,
			"pacman": "git",
		},
		"tags": []any{"vcs"},
	}
}

func packageRaw(data map[string]any) record.Raw {
	return record.Raw{Kind: record.KindPackage, Path: "packages/git.yaml", Data: data}
}

func findViolation(vs violation.Violations, field string) (violation.Violation, bool) {
	for _, v := range vs {
		if v.Field == field {
			return v, true
		}
	}
	return violation.Violation{}, false
}

func TestValidate_ValidTree(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	testutil.WriteTree(t, root, testutil.ValidTree())
	res, err := loader.Load(context.Background(), root, loader.Options{})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	batch, vs := newValidator(t).Validate(res.All())
	if len(vs) != 0 {
		t.Fatalf("unexpected violations:\n%v", vs)
	}

	counts := batch.Counts()
	want := map[record.Kind]int{
		record.KindPackage: 4, record.KindMapping: 1, record.KindDependency: 1,
		record.KindGroup: 2, record.KindProfile: 1, record.KindSuggestion: 1,
	}
	for k, n := range want {
		if counts[k] != n {
			t.Errorf("count[%s] = %d, want %d", k, counts[k], n)
		}
	}

	var git *record.Package
	for i := range batch.Packages {
		if batch.Packages[i].Name == "git" {
			git = &batch.Packages[i]
		}
	}
	if git == nil {
		t.Fatal("git not in batch")
	}
	if git.Path == "" || record.Stem(git.Path) != "git" {
		t.Errorf("git.Path = %q", git.Path)
	}
	if git.Category != record.CategoryGit || git.Popularity != 95 || git.Website != "https://git-scm.com" {
		t.Errorf("decoded git = %+v", git)
	}
	if len(git.Dependencies.Required) != 1 || git.Dependencies.Required[0].Package != "curl" {
		t.Errorf("git dependencies = %+v", git.Dependencies)
	}

	neovim := batch.Packages[2]
	if neovim.Name != "neovim" || neovim.Platforms.Pacman != nil || neovim.Platforms.Apt == nil {
		t.Errorf("neovim platforms = %+v", neovim.Platforms)
	}

	profile := batch.Profiles[0]
	if len(profile.Packages["editors"]) != 1 || len(profile.Hooks.PostInstall) != 1 {
		t.Errorf("decoded profile = %+v", profile)
	}
	if batch.Mappings[0].Path == "" || batch.Suggestions[0].Path == "" || batch.Dependencies[0].Path == "" {
		t.Error("set entries must carry their source path")
	}
	if batch.Dependencies[0].Type != record.DependencyOptional {
		t.Errorf("edge type = %q", batch.Dependencies[0].Type)
	}
}

func TestValidate_RequiredFieldRemovalNamesField(t *testing.T) {
	t.Parallel()

	v := newValidator(t)
	for _, field := range []string{"name", "description", "category", "popularity", "platforms", "tags"} {
		t.Run(field, func(t *testing.T) {
			data := basePackage()
			delete(data, field)

			batch, vs := v.Validate([]record.Raw{packageRaw(data)})
			if len(batch.Packages) != 0 {
				t.Error("invalid package must be excluded from the batch")
			}
			got, ok := findViolation(vs, field)
			if !ok {
				t.Fatalf("no violation names %q: %v", field, vs)
			}
			if got.Kind != violation.KindSchema || !got.IsError() {
				t.Errorf("violation = %+v, want schema error", got)
			}
		})
	}
}

func TestValidate_PackageConstraints(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(map[string]any)
		field  string
	}{
		{name: "identifier pattern", mutate: func(d map[string]any) { d["name"] = "Git_SCM" }, field: "name"},
		{name: "unknown category", mutate: func(d map[string]any) { d["category"] = "games" }, field: "category"},
		{name: "popularity above range", mutate: func(d map[string]any) { d["popularity"] = int64(101) }, field: "popularity"},
		{name: "popularity below range", mutate: func(d map[string]any) { d["popularity"] = int64(-1) }, field: "popularity"},
		{name: "popularity not an int", mutate: func(d map[string]any) { d["popularity"] = "high" }, field: "popularity"},
		{name: "tag pattern", mutate: func(d map[string]any) { d["tags"] = []any{"vcs", "Bad Tag"} }, field: "tags[1]"},
		{name: "duplicate tag", mutate: func(d map[string]any) { d["tags"] = []any{"vcs", "vcs"} }, field: "tags[1]"},
		{name: "unknown field", mutate: func(d map[string]any) { d["homepage"] = "https://x" }, field: "homepage"},
		{name: "unknown platform", mutate: func(d map[string]any) {
			d["platforms"].(map[string]any)["zypper"] = "git"
		}, field: "platforms.zypper"},
		{name: "blank platform name", mutate: func(d map[string]any) {
			d["platforms"].(map[string]any)["apt"] = "two words"
		}, field: "platforms.apt"},
		{name: "coverage below minimum", mutate: func(d map[string]any) {
			d["platforms"] = map[string]any{"apt": "git", "brew": nil, "mas": int64(12)}
		}, field: "platforms"},
		{name: "website not a URL", mutate: func(d map[string]any) { d["website"] = "git-scm.com" }, field: "website"},
		{name: "dependency target pattern", mutate: func(d map[string]any) {
			d["dependencies"] = map[string]any{"required": []any{map[string]any{"package": "Curl", "reason": "x"}}}
		}, field: "dependencies.required[0].package"},
		{name: "dependency missing reason", mutate: func(d map[string]any) {
			d["dependencies"] = map[string]any{"optional": []any{map[string]any{"package": "curl"}}}
		}, field: "dependencies.optional[0].reason"},
		{name: "duplicate dependency", mutate: func(d map[string]any) {
			dep := map[string]any{"package": "curl", "reason": "x"}
			d["dependencies"] = map[string]any{"required": []any{dep, dep}}
		}, field: "dependencies.required[1].package"},
		{name: "required and optional dependency", mutate: func(d map[string]any) {
			dep := map[string]any{"package": "curl", "reason": "x"}
			d["dependencies"] = map[string]any{"required": []any{dep}, "optional": []any{dep}}
		}, field: "dependencies.optional[0].package"},
	}

	v := newValidator(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := basePackage()
			tt.mutate(data)

			batch, vs := v.Validate([]record.Raw{packageRaw(data)})
			if _, ok := findViolation(vs, tt.field); !ok {
				t.Fatalf("no violation at %q: %v", tt.field, vs)
			}
			if len(batch.Packages) != 0 {
				t.Error("invalid package must be excluded from the batch")
			}
		})
	}
}

func TestValidate_AllProblemsReported(t *testing.T) {
	t.Parallel()

	data := basePackage()
	data["category"] = "games"
	data["popularity"] = int64(500)
	data["tags"] = []any{"UPPER"}

	_, vs := newValidator(t).Validate([]record.Raw{packageRaw(data)})
	for _, field := range []string{"category", "popularity", "tags[0]"} {
		if _, ok := findViolation(vs, field); !ok {
			t.Errorf("no violation at %q: %v", field, vs)
		}
	}
}

func TestValidate_StructuralChecksRunDespiteSchemaErrors(t *testing.T) {
	t.Parallel()

	data := basePackage()
	data["category"] = "games"
	data["platforms"] = map[string]any{"brew": "helix"}

	_, vs := newValidator(t).Validate([]record.Raw{packageRaw(data)})

	var category []violation.Violation
	for _, v := range vs {
		if v.Field == "category" {
			category = append(category, v)
		}
	}
	if len(category) != 1 {
		t.Fatalf("category violations = %d, want 1: %v", len(category), category)
	}
	if msg := category[0].Message; !strings.HasPrefix(msg, "expected one of ") || !strings.Contains(msg, `got "games"`) {
		t.Errorf("category message = %q", msg)
	}
	got, ok := findViolation(vs, "platforms")
	if !ok {
		t.Fatalf("no coverage violation: %v", vs)
	}
	if !strings.Contains(got.Message, "1 of apt, brew, dnf, pacman") {
		t.Errorf("coverage message = %q", got.Message)
	}
}

func TestValidate_MissingFieldBesideUnknownField(t *testing.T) {
	t.Parallel()

	data := basePackage()
	delete(data, "description")
	data["homepage"] = "https://git-scm.com"

	_, vs := newValidator(t).Validate([]record.Raw{packageRaw(data)})
	for field, want := range map[string]string{
		"homepage":    "field not allowed",
		"description": "required field missing",
	} {
		got, ok := findViolation(vs, field)
		if !ok {
			t.Errorf("no violation at %q: %v", field, vs)
			continue
		}
		if got.Message != want {
			t.Errorf("%s message = %q, want %q", field, got.Message, want)
		}
	}
}

func TestValidate_MistypedValueReportedOnce(t *testing.T) {
	t.Parallel()

	data := basePackage()
	data["platforms"] = map[string]any{"apt": int64(7), "brew": "git"}

	_, vs := newValidator(t).Validate([]record.Raw{packageRaw(data)})
	if _, ok := findViolation(vs, "platforms.apt"); !ok {
		t.Fatalf("no violation at platforms.apt: %v", vs)
	}
	if got, ok := findViolation(vs, "platforms"); ok {
		t.Errorf("coverage reported for a mistyped name: %v", got)
	}
}

func TestValidate_ExcludedIdentifiers(t *testing.T) {
	t.Parallel()

	data := basePackage()
	delete(data, "description")
	noName := basePackage()
	delete(noName, "name")
	noNameRaw := record.Raw{Kind: record.KindPackage, Path: "packages/curl.yaml", Data: noName}

	batch, _ := newValidator(t).Validate([]record.Raw{packageRaw(data), noNameRaw})
	if !batch.IsExcluded(record.KindPackage, "git") {
		t.Error("git should be recorded as excluded")
	}
	if !batch.IsExcluded(record.KindPackage, "curl") {
		t.Error("a nameless package should be excluded under its filename stem")
	}
}

func TestValidate_Positions(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	testutil.WriteTree(t, root, testutil.Tree{
		"packages/git.yaml": `name: git
description: Distributed version control system
category: git
popularity: 95
platforms:
  apt: git
  brew: git
tags:
  - vcs
  - Not-Valid
`,
	})
	res, err := loader.Load(context.Background(), root, loader.Options{})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	_, vs := newValidator(t).Validate(res.All())
	got, ok := findViolation(vs, "tags[1]")
	if !ok {
		t.Fatalf("no violation at tags[1]: %v", vs)
	}
	if got.Line != 10 || got.Column != 5 {
		t.Errorf("position = %d:%d, want 10:5", got.Line, got.Column)
	}
	if got.Record != "git" {
		t.Errorf("Record = %q, want git", got.Record)
	}
}

func TestValidate_OtherKinds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		raw   record.Raw
		field string
	}{
		{
			name: "mapping canonical pattern",
			raw: record.Raw{Kind: record.KindMapping, Path: "mappings/core.yaml", Data: map[string]any{
				"mappings": []any{map[string]any{"canonical": "Rip Grep"}},
			}},
			field: "mappings[0].canonical",
		},
		{
			name: "mapping duplicate alias",
			raw: record.Raw{Kind: record.KindMapping, Path: "mappings/core.yaml", Data: map[string]any{
				"mappings": []any{map[string]any{"canonical": "ripgrep", "aliases": []any{"rg", "rg"}}},
			}},
			field: "mappings[0].aliases[1]",
		},
		{
			name: "edge type",
			raw: record.Raw{Kind: record.KindDependency, Path: "dependencies/core.yaml", Data: map[string]any{
				"edges": []any{map[string]any{"source": "a", "target": "b", "type": "recommended", "reason": "x"}},
			}},
			field: "edges[0].type",
		},
		{
			name: "edge set missing list",
			raw: record.Raw{Kind: record.KindDependency, Path: "dependencies/core.yaml", Data: map[string]any{
				"edge": []any{},
			}},
			field: "edges",
		},
		{
			name: "group required list missing",
			raw: record.Raw{Kind: record.KindGroup, Path: "groups/base.yaml", Data: map[string]any{
				"id": "base", "name": "Base", "description": "d", "category": "essential",
				"packages": map[string]any{"optional": []any{"git"}},
			}},
			field: "packages.required",
		},
		{
			name: "group member listed twice",
			raw: record.Raw{Kind: record.KindGroup, Path: "groups/base.yaml", Data: map[string]any{
				"id": "base", "name": "Base", "description": "d", "category": "essential",
				"packages": map[string]any{"required": []any{"git"}, "optional": []any{"git"}},
			}},
			field: "packages.optional[0]",
		},
		{
			name: "group override platform",
			raw: record.Raw{Kind: record.KindGroup, Path: "groups/base.yaml", Data: map[string]any{
				"id": "base", "name": "Base", "description": "d", "category": "essential",
				"packages":           map[string]any{"required": []any{"git"}},
				"platform_overrides": map[string]any{"winget": map[string]any{"packages": []any{"Git.Git"}}},
			}},
			field: "platform_overrides.winget",
		},
		{
			name: "profile type",
			raw: record.Raw{Kind: record.KindProfile, Path: "profiles/dev.yaml", Data: map[string]any{
				"id": "dev", "name": "Dev", "description": "d", "type": "gamer",
				"packages": map[string]any{"core": []any{"git"}},
			}},
			field: "type",
		},
		{
			name: "profile hook syntax",
			raw: record.Raw{Kind: record.KindProfile, Path: "profiles/dev.yaml", Data: map[string]any{
				"id": "dev", "name": "Dev", "description": "d", "type": "developer",
				"packages": map[string]any{"core": []any{"git"}},
				"hooks":    map[string]any{"pre_install": []any{"echo ok", "if then fi ("}},
			}},
			field: "hooks.pre_install[1]",
		},
		{
			name: "profile dotfile traversal",
			raw: record.Raw{Kind: record.KindProfile, Path: "profiles/dev.yaml", Data: map[string]any{
				"id": "dev", "name": "Dev", "description": "d", "type": "developer",
				"packages": map[string]any{"core": []any{"git"}},
				"dotfiles": []any{map[string]any{"source": "../secrets", "target": "~/.secrets"}},
			}},
			field: "dotfiles[0].source",
		},
		{
			name: "profile dotfile relative target",
			raw: record.Raw{Kind: record.KindProfile, Path: "profiles/dev.yaml", Data: map[string]any{
				"id": "dev", "name": "Dev", "description": "d", "type": "developer",
				"packages": map[string]any{"core": []any{"git"}},
				"dotfiles": []any{map[string]any{"source": "gitconfig", "target": ".gitconfig"}},
			}},
			field: "dotfiles[0].target",
		},
		{
			name: "profile bucket name",
			raw: record.Raw{Kind: record.KindProfile, Path: "profiles/dev.yaml", Data: map[string]any{
				"id": "dev", "name": "Dev", "description": "d", "type": "developer",
				"packages": map[string]any{"core_tools": []any{"git"}},
			}},
			field: "packages.core_tools",
		},
		{
			name: "suggestion priority",
			raw: record.Raw{Kind: record.KindSuggestion, Path: "suggestions/rust.yaml", Data: map[string]any{
				"patterns": []any{map[string]any{
					"name": "rust", "files": []any{"Cargo.toml"},
					"packages": []any{map[string]any{"package": "ripgrep", "priority": int64(11), "reason": "x"}},
				}},
			}},
			field: "patterns[0].packages[0].priority",
		},
		{
			name: "suggestion glob",
			raw: record.Raw{Kind: record.KindSuggestion, Path: "suggestions/rust.yaml", Data: map[string]any{
				"patterns": []any{map[string]any{
					"name": "rust", "files": []any{"src/[a-"},
					"packages": []any{map[string]any{"package": "ripgrep", "priority": int64(3), "reason": "x"}},
				}},
			}},
			field: "patterns[0].files[0]",
		},
	}

	v := newValidator(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			batch, vs := v.Validate([]record.Raw{tt.raw})
			if _, ok := findViolation(vs, tt.field); !ok {
				t.Fatalf("no violation at %q: %v", tt.field, vs)
			}
			if batch.Len() != 0 {
				t.Errorf("invalid document must not contribute records, got %d", batch.Len())
			}
		})
	}
}

func TestValidate_SuggestionFilesNonEmpty(t *testing.T) {
	t.Parallel()

	raw := record.Raw{Kind: record.KindSuggestion, Path: "suggestions/go.yaml", Data: map[string]any{
		"patterns": []any{map[string]any{
			"name": "go", "files": []any{},
			"packages": []any{map[string]any{"package": "gopls", "priority": int64(3), "reason": "x"}},
		}},
	}}

	_, vs := newValidator(t).Validate([]record.Raw{raw})
	if len(vs) == 0 {
		t.Fatal("an empty files list must be rejected")
	}
	for _, v := range vs {
		if !strings.HasPrefix(v.Field, "patterns[0]") {
			t.Errorf("violation field %q should point into patterns[0]", v.Field)
		}
	}
}

func TestDefinition(t *testing.T) {
	t.Parallel()

	for _, k := range record.Kinds() {
		if Definition(k) == "" {
			t.Errorf("no definition for %s", k)
		}
	}
	if Definition("bundle") != "" {
		t.Error("unknown kind should have no definition")
	}
}
