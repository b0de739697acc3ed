// SPDX-License-Identifier: MPL-2.0

package config

import "context"

type (
	// LoadOptions selects where configuration is read from. The zero value
	// searches the process working directory and the user config directory.
	LoadOptions struct {
		// ConfigFilePath loads exactly this file; it must exist.
		ConfigFilePath string
		// ConfigDirPath replaces the user config directory.
		ConfigDirPath string
		// WorkDir is searched for pkgdb.cue first. Empty means ".".
		WorkDir string
	}

	// Provider resolves the configuration of one command invocation.
	Provider interface {
		Load(ctx context.Context, opts LoadOptions) (*Config, error)
	}

	cueProvider struct{}
)

// NewProvider returns the Provider reading pkgdb.cue files, PKGDB_*
// environment variables and built-in defaults.
func NewProvider() Provider {
	return cueProvider{}
}

func (cueProvider) Load(ctx context.Context, opts LoadOptions) (*Config, error) {
	return loadWithOptions(ctx, opts)
}
