// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"maps"
	"path/filepath"
	"slices"
	"testing"
)

// Tree maps slash-separated paths relative to a record root to file contents.
type Tree map[string]string

// WriteTree writes every file of tree below root.
func WriteTree(t testing.TB, root string, tree Tree) {
	t.Helper()
	for _, rel := range slices.Sorted(maps.Keys(tree)) {
		MustWriteFile(t, filepath.Join(root, filepath.FromSlash(rel)), tree[rel])
	}
}

// With returns a copy of the tree with the given files added or replaced.
// An empty content removes the file.
func (tree Tree) With(files Tree) Tree {
	out := maps.Clone(tree)
	for rel, content := range files {
		if content == "" {
			delete(out, rel)
			continue
		}
		out[rel] = content
	}
	return out
}

// ValidTree returns a small record tree that passes validation:
// four packages (curl, git, neovim, ripgrep), one mapping, one dependency
// edge, two groups (editing includes base), one profile and one suggestion.
func ValidTree() Tree {
	return Tree{
		"packages/git.yaml": `name: git
description: Distributed version control system
category: git
popularity: 95
platforms:
  apt: git
  brew: git
  dnf: git
  pacman: git
dependencies:
  required:
    - package: curl
      reason: HTTP transport
related:
  - ripgrep
tags:
  - vcs
  - essential
website: https://git-scm.com
license: GPL-2.0
`,
		"packages/curl.yaml": `name: curl
description: Command line tool for transferring data with URLs
category: network
popularity: 90
platforms:
  apt: curl
  brew: curl
  dnf: curl
  pacman: curl
tags:
  - http
  - cli
`,
		"packages/ripgrep.yaml": `name: ripgrep
description: Recursive line-oriented search tool
category: terminal
popularity: 80
platforms:
  apt: ripgrep
  brew: ripgrep
  dnf: ripgrep
  pacman: ripgrep
tags:
  - search
  - cli
source: https://github.com/BurntSushi/ripgrep
`,
		"packages/neovim.yaml": `name: neovim
description: Hyperextensible Vim-based text editor
category: editor
popularity: 85
platforms:
  apt: neovim
  brew: neovim
  dnf: neovim
  pacman: ~
dependencies:
  optional:
    - package: ripgrep
      reason: Telescope live grep
tags:
  - editor
  - cli
`,
		"mappings/core.yaml": `mappings:
  - canonical: ripgrep
    platforms:
      apt: ripgrep
    aliases:
      - rg
`,
		"dependencies/core.yaml": `edges:
  - source: neovim
    target: git
    type: optional
    reason: Plugin management
`,
		"groups/base.yaml": `id: base
name: Base tools
description: Tools every machine needs
category: essential
packages:
  required:
    - git
    - curl
  optional:
    - ripgrep
`,
		"groups/editing.yaml": `id: editing
name: Editing
description: Editor setup on top of the base tools
category: editor
packages:
  required:
    - neovim
groups:
  - base
`,
		"profiles/developer.yaml": `id: developer
name: Developer
description: General purpose development workstation
type: developer
packages:
  core:
    - git
    - curl
  editors:
    - neovim
dotfiles:
  - source: dotfiles/gitconfig
    target: ~/.gitconfig
hooks:
  post_install:
    - git config --global init.defaultBranch main
`,
		"suggestions/rust.yaml": `patterns:
  - name: rust
    files:
      - Cargo.toml
      - "**/*.rs"
    packages:
      - package: ripgrep
        priority: 5
        reason: Fast code search
`,
	}
}
