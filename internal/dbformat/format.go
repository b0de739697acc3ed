// SPDX-License-Identifier: MPL-2.0

package dbformat

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/heimdal-dev/pkgdb/internal/index"
	"github.com/heimdal-dev/pkgdb/pkg/record"
)

const (
	// MajorVersion is bumped for layout changes older readers cannot handle.
	MajorVersion uint16 = 1
	// MinorVersion is bumped when sections are added.
	MinorVersion uint16 = 0

	// HeaderSize is the fixed size of the file header in bytes.
	HeaderSize = 64
)

const (
	sectionPackages section = iota + 1
	sectionMappings
	sectionDependencies
	sectionGroups
	sectionProfiles
	sectionSuggestions
	sectionIndexByID
	sectionIndexByCategory
	sectionIndexByTag
)

var (
	// Magic identifies a package database file.
	Magic = [8]byte{'P', 'K', 'G', 'D', 'B', 0x00, '\r', '\n'}

	// ErrBadMagic is returned when the input does not start with Magic.
	ErrBadMagic = errors.New("not a package database (bad magic)")

	// ErrIncompatibleVersion is returned for a major version this reader does not support.
	ErrIncompatibleVersion = errors.New("incompatible database version")

	// ErrCorrupt is returned when the header and payload disagree or a section cannot be read.
	ErrCorrupt = errors.New("corrupt database")

	// ErrCompile marks failures of the compiler itself rather than of its input.
	ErrCompile = errors.New("compile defect")
)

type (
	section uint8

	// Header is the fixed-size prefix of a database file.
	Header struct {
		Major    uint16
		Minor    uint16
		Flags    uint32
		BuiltAt  time.Time
		Length   uint64
		Checksum [32]byte
	}

	// Database is the decoded content of a database file.
	// Packages are sorted by identifier and Index refers into them.
	Database struct {
		Header       Header
		Mappings     []record.Mapping
		Dependencies []record.DependencyEdge
		Groups       []record.Group
		Profiles     []record.Profile
		Suggestions  []record.Suggestion
		Index        *index.Index
	}

	// IncompatibleVersionError reports the version found in an unreadable file.
	// It wraps ErrIncompatibleVersion for errors.Is() compatibility.
	IncompatibleVersionError struct {
		Major uint16
		Minor uint16
	}

	// CompileError is a defect detected while compiling an accepted batch,
	// such as a self-check that could not read back what was just written.
	// Counts holds the per-kind record counts of the batch.
	CompileError struct {
		Counts map[record.Kind]int
		Err    error
	}
)

// Error implements the error interface.
func (e *IncompatibleVersionError) Error() string {
	return fmt.Sprintf("database version %d.%d is not supported (this reader supports %d.x)", e.Major, e.Minor, MajorVersion)
}

// Unwrap returns ErrIncompatibleVersion so callers can use errors.Is.
func (e *IncompatibleVersionError) Unwrap() error { return ErrIncompatibleVersion }

// Error implements the error interface.
func (e *CompileError) Error() string {
	counts := make([]string, 0, len(e.Counts))
	for _, k := range record.Kinds() {
		counts = append(counts, fmt.Sprintf("%s=%d", k, e.Counts[k]))
	}
	return fmt.Sprintf("compile failed (%s): %v", strings.Join(counts, " "), e.Err)
}

// Unwrap returns ErrCompile and the underlying cause.
func (e *CompileError) Unwrap() []error { return []error{ErrCompile, e.Err} }

// Packages returns the packages of the database in identifier order.
func (db *Database) Packages() []record.Package {
	if db.Index == nil {
		return nil
	}
	return db.Index.Packages
}

// Counts returns the number of records of each kind.
func (db *Database) Counts() map[record.Kind]int {
	return map[record.Kind]int{
		record.KindPackage:    len(db.Packages()),
		record.KindMapping:    len(db.Mappings),
		record.KindDependency: len(db.Dependencies),
		record.KindGroup:      len(db.Groups),
		record.KindProfile:    len(db.Profiles),
		record.KindSuggestion: len(db.Suggestions),
	}
}

// FromBatch assembles the database for an accepted batch.
func FromBatch(batch *record.Batch, builtAt time.Time) *Database {
	return &Database{
		Header: Header{
			Major:   MajorVersion,
			Minor:   MinorVersion,
			BuiltAt: builtAt.UTC(),
		},
		Mappings:     batch.Mappings,
		Dependencies: batch.Dependencies,
		Groups:       batch.Groups,
		Profiles:     batch.Profiles,
		Suggestions:  batch.Suggestions,
		Index:        index.Build(batch.Packages),
	}
}

func sortedKeys[K ~string, V any](m map[K]V) []K {
	return slices.Sorted(maps.Keys(m))
}
