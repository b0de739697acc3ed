// SPDX-License-Identifier: MPL-2.0

package record

type (
	// Record is implemented by every typed entity of the database.
	// The interface is sealed: only types in this package satisfy it.
	Record interface {
		// Kind returns the record kind.
		Kind() Kind
		// Identifier returns the value other records use to reference this one.
		Identifier() string
		// Origin returns the source file the record was loaded from.
		Origin() string

		sealed()
	}

	// Platforms holds the native package name per package manager.
	// A nil name means the package is not available on that platform.
	Platforms struct {
		Apt    *string `json:"apt,omitempty"`
		Brew   *string `json:"brew,omitempty"`
		Dnf    *string `json:"dnf,omitempty"`
		Pacman *string `json:"pacman,omitempty"`
		// MAS is the Mac App Store application id. It does not count toward coverage.
		MAS *int64 `json:"mas,omitempty"`
	}

	// Dependency is an inline reference from a package to another package.
	Dependency struct {
		Package string `json:"package"`
		Reason  string `json:"reason"`
	}

	// Dependencies groups a package's inline dependencies by strength.
	Dependencies struct {
		Required []Dependency `json:"required,omitempty"`
		Optional []Dependency `json:"optional,omitempty"`
	}

	// Package is the central entity: one installable piece of software.
	Package struct {
		Name         string       `json:"name"`
		Description  string       `json:"description"`
		Category     Category     `json:"category"`
		Popularity   int          `json:"popularity"`
		Platforms    Platforms    `json:"platforms"`
		Dependencies Dependencies `json:"dependencies"`
		Alternatives []string     `json:"alternatives,omitempty"`
		Related      []string     `json:"related,omitempty"`
		Tags         []string     `json:"tags"`
		Website      string       `json:"website,omitempty"`
		License      string       `json:"license,omitempty"`
		// SourceURL points at the upstream source repository.
		SourceURL string `json:"source,omitempty"`

		Path string `json:"-"`
	}

	// Mapping ties alternative platform-specific names to a canonical package.
	Mapping struct {
		Canonical string    `json:"canonical"`
		Platforms Platforms `json:"platforms"`
		Aliases   []string  `json:"aliases,omitempty"`

		Path string `json:"-"`
	}

	// DependencyEdge is a standalone typed relation between two packages.
	DependencyEdge struct {
		Source string         `json:"source"`
		Target string         `json:"target"`
		Type   DependencyType `json:"type"`
		Reason string         `json:"reason"`

		Path string `json:"-"`
	}

	// GroupPackages lists the members of a group.
	GroupPackages struct {
		Required []string `json:"required"`
		Optional []string `json:"optional,omitempty"`
	}

	// PlatformOverride adds platform-native package and cask names to a group.
	PlatformOverride struct {
		Packages []string `json:"packages,omitempty"`
		Casks    []string `json:"casks,omitempty"`
	}

	// Group is a curated, named bundle of packages.
	Group struct {
		ID          string        `json:"id"`
		Name        string        `json:"name"`
		Description string        `json:"description"`
		Category    Category      `json:"category"`
		Packages    GroupPackages `json:"packages"`
		// Groups lists identifiers of groups whose members are included in this one.
		Groups            []string                    `json:"groups,omitempty"`
		PlatformOverrides map[string]PlatformOverride `json:"platform_overrides,omitempty"`

		Path string `json:"-"`
	}

	// Dotfile is a configuration file a profile installs.
	Dotfile struct {
		Source string `json:"source"`
		Target string `json:"target"`
	}

	// Hooks are shell commands run around a profile installation.
	Hooks struct {
		PreInstall  []string `json:"pre_install,omitempty"`
		PostInstall []string `json:"post_install,omitempty"`
	}

	// Profile is a named environment preset.
	Profile struct {
		ID          string      `json:"id"`
		Name        string      `json:"name"`
		Description string      `json:"description"`
		Type        ProfileType `json:"type"`
		// Packages maps a bucket name (e.g. "core", "editors") to package identifiers.
		Packages map[string][]string `json:"packages"`
		Dotfiles []Dotfile           `json:"dotfiles,omitempty"`
		Hooks    Hooks               `json:"hooks"`

		Path string `json:"-"`
	}

	// Recommendation is a prioritized package suggestion.
	Recommendation struct {
		Package  string `json:"package"`
		Priority int    `json:"priority"`
		Reason   string `json:"reason"`
	}

	// Suggestion recommends packages when any of its file patterns matches a project.
	Suggestion struct {
		Name     string           `json:"name"`
		Files    []string         `json:"files"`
		Packages []Recommendation `json:"packages"`

		Path string `json:"-"`
	}
)

func (p *Package) Kind() Kind         { return KindPackage }
func (p *Package) Identifier() string { return p.Name }
func (p *Package) Origin() string     { return p.Path }
func (*Package) sealed()              {}

func (m *Mapping) Kind() Kind         { return KindMapping }
func (m *Mapping) Identifier() string { return m.Canonical }
func (m *Mapping) Origin() string     { return m.Path }
func (*Mapping) sealed()              {}

func (e *DependencyEdge) Kind() Kind         { return KindDependency }
func (e *DependencyEdge) Identifier() string { return e.Source + " -> " + e.Target }
func (e *DependencyEdge) Origin() string     { return e.Path }
func (*DependencyEdge) sealed()              {}

func (g *Group) Kind() Kind         { return KindGroup }
func (g *Group) Identifier() string { return g.ID }
func (g *Group) Origin() string     { return g.Path }
func (*Group) sealed()              {}

func (p *Profile) Kind() Kind         { return KindProfile }
func (p *Profile) Identifier() string { return p.ID }
func (p *Profile) Origin() string     { return p.Path }
func (*Profile) sealed()              {}

func (s *Suggestion) Kind() Kind         { return KindSuggestion }
func (s *Suggestion) Identifier() string { return s.Name }
func (s *Suggestion) Origin() string     { return s.Path }
func (*Suggestion) sealed()              {}

// Name returns the native package name for platform, if declared.
func (p Platforms) Name(platform Platform) (string, bool) {
	var name *string
	switch platform {
	case PlatformApt:
		name = p.Apt
	case PlatformBrew:
		name = p.Brew
	case PlatformDnf:
		name = p.Dnf
	case PlatformPacman:
		name = p.Pacman
	}
	if name == nil {
		return "", false
	}
	return *name, true
}

// Covered returns the platforms with a declared native name, in AllPlatforms order.
func (p Platforms) Covered() []Platform {
	var covered []Platform
	for _, platform := range AllPlatforms() {
		if _, ok := p.Name(platform); ok {
			covered = append(covered, platform)
		}
	}
	return covered
}

// HasTag reports whether the package carries tag.
func (p *Package) HasTag(tag string) bool {
	for _, t := range p.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Members returns the group's required packages followed by its optional packages.
func (g *Group) Members() []string {
	members := make([]string, 0, len(g.Packages.Required)+len(g.Packages.Optional))
	members = append(members, g.Packages.Required...)
	return append(members, g.Packages.Optional...)
}

// Commands returns all hook commands, pre-install first.
func (h Hooks) Commands() []string {
	cmds := make([]string, 0, len(h.PreInstall)+len(h.PostInstall))
	cmds = append(cmds, h.PreInstall...)
	return append(cmds, h.PostInstall...)
}
