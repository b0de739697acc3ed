// SPDX-License-Identifier: MPL-2.0

package dbformat

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/heimdal-dev/pkgdb/internal/index"
	"github.com/heimdal-dev/pkgdb/pkg/record"
)

// decoder reads values from buf. The first failure is kept in err and
// turns every later read into a no-op returning zero values.
type decoder struct {
	buf []byte
	off int
	err error
}

// DecodeHeader parses and checks the fixed header at the start of data.
func DecodeHeader(data []byte) (Header, error) {
	if len(data) < len(Magic) || !bytes.Equal(data[:len(Magic)], Magic[:]) {
		return Header{}, ErrBadMagic
	}
	if len(data) < HeaderSize {
		return Header{}, fmt.Errorf("%w: truncated header (%d bytes)", ErrCorrupt, len(data))
	}

	le := binary.LittleEndian
	h := Header{
		Major:   le.Uint16(data[8:10]),
		Minor:   le.Uint16(data[10:12]),
		Flags:   le.Uint32(data[12:16]),
		BuiltAt: time.Unix(int64(le.Uint64(data[16:24])), 0).UTC(),
		Length:  le.Uint64(data[24:32]),
	}
	copy(h.Checksum[:], data[32:64])

	if h.Major != MajorVersion {
		return h, &IncompatibleVersionError{Major: h.Major, Minor: h.Minor}
	}
	return h, nil
}

// Decode parses a complete database file. It verifies the payload length and
// checksum before reading any section and skips sections with unknown tags.
func Decode(data []byte) (*Database, error) {
	h, err := DecodeHeader(data)
	if err != nil {
		return nil, err
	}

	payload := data[HeaderSize:]
	if h.Length != uint64(len(payload)) {
		return nil, fmt.Errorf("%w: header declares %d payload bytes, found %d", ErrCorrupt, h.Length, len(payload))
	}
	if sha256.Sum256(payload) != h.Checksum {
		return nil, fmt.Errorf("%w: payload checksum mismatch", ErrCorrupt)
	}

	db := &Database{Header: h}
	var (
		pkgs       []record.Package
		byID       map[string]int
		byCategory map[record.Category][]int
		byTag      map[string][]int
		seen       = make(map[section]bool)
	)

	d := &decoder{buf: payload}
	for d.err == nil && d.off < len(d.buf) {
		tag := section(d.byte())
		body := d.bytes()
		if d.err != nil {
			break
		}
		if seen[tag] {
			return nil, fmt.Errorf("%w: section %d appears twice", ErrCorrupt, tag)
		}
		seen[tag] = true

		s := &decoder{buf: body}
		switch tag {
		case sectionPackages:
			pkgs = listOf(s, s.pkg)
		case sectionMappings:
			db.Mappings = listOf(s, s.mapping)
		case sectionDependencies:
			db.Dependencies = listOf(s, s.edge)
		case sectionGroups:
			db.Groups = listOf(s, s.group)
		case sectionProfiles:
			db.Profiles = listOf(s, s.profile)
		case sectionSuggestions:
			db.Suggestions = listOf(s, s.suggestion)
		case sectionIndexByID:
			byID = make(map[string]int)
			s.entries(func() { byID[s.str()] = s.position() })
		case sectionIndexByCategory:
			byCategory = make(map[record.Category][]int)
			s.entries(func() {
				c := record.Category(s.str())
				byCategory[c] = s.positions()
			})
		case sectionIndexByTag:
			byTag = make(map[string][]int)
			s.entries(func() {
				t := s.str()
				byTag[t] = s.positions()
			})
		default:
			continue
		}
		s.finish(tag)
		if s.err != nil {
			return nil, s.err
		}
	}
	if d.err != nil {
		return nil, d.err
	}

	for _, required := range []section{sectionPackages, sectionIndexByID, sectionIndexByCategory, sectionIndexByTag} {
		if !seen[required] {
			return nil, fmt.Errorf("%w: missing section %d", ErrCorrupt, required)
		}
	}
	if err := checkPositions(len(pkgs), byID, byCategory, byTag); err != nil {
		return nil, err
	}

	db.Index = &index.Index{Packages: pkgs, ByID: byID, ByCategory: byCategory, ByTag: byTag}
	return db, nil
}

// checkPositions rejects index entries that point outside the package list.
func checkPositions(n int, byID map[string]int, byCategory map[record.Category][]int, byTag map[string][]int) error {
	bad := func(p int) bool { return p < 0 || p >= n }
	for id, p := range byID {
		if bad(p) {
			return fmt.Errorf("%w: index entry %q points to position %d of %d", ErrCorrupt, id, p, n)
		}
	}
	for c, ps := range byCategory {
		for _, p := range ps {
			if bad(p) {
				return fmt.Errorf("%w: category %q points to position %d of %d", ErrCorrupt, c, p, n)
			}
		}
	}
	for t, ps := range byTag {
		for _, p := range ps {
			if bad(p) {
				return fmt.Errorf("%w: tag %q points to position %d of %d", ErrCorrupt, t, p, n)
			}
		}
	}
	return nil
}

func listOf[T any](d *decoder, item func() T) []T {
	n := d.count()
	out := make([]T, 0, n)
	for range n {
		if d.err != nil {
			return nil
		}
		out = append(out, item())
	}
	return out
}

func (d *decoder) fail(format string, args ...any) {
	if d.err == nil {
		d.err = fmt.Errorf("%w: %s at offset %d", ErrCorrupt, fmt.Sprintf(format, args...), d.off)
	}
}

// finish requires a section body to be fully consumed.
func (d *decoder) finish(tag section) {
	if d.err == nil && d.off != len(d.buf) {
		d.fail("%d trailing bytes in section %d", len(d.buf)-d.off, tag)
	}
}

func (d *decoder) byte() byte {
	if d.err != nil {
		return 0
	}
	if d.off >= len(d.buf) {
		d.fail("unexpected end of data")
		return 0
	}
	b := d.buf[d.off]
	d.off++
	return b
}

func (d *decoder) uvarint() uint64 {
	if d.err != nil {
		return 0
	}
	v, n := binary.Uvarint(d.buf[d.off:])
	if n <= 0 {
		d.fail("invalid varint")
		return 0
	}
	d.off += n
	return v
}

func (d *decoder) varint() int64 {
	if d.err != nil {
		return 0
	}
	v, n := binary.Varint(d.buf[d.off:])
	if n <= 0 {
		d.fail("invalid varint")
		return 0
	}
	d.off += n
	return v
}

// count reads a list length. Every item takes at least one byte, which
// bounds allocations by the remaining input.
func (d *decoder) count() int {
	n := d.uvarint()
	if remaining := uint64(len(d.buf) - d.off); n > remaining {
		d.fail("list of %d items exceeds remaining %d bytes", n, remaining)
		return 0
	}
	return int(n)
}

func (d *decoder) bytes() []byte {
	n := d.uvarint()
	if d.err != nil {
		return nil
	}
	if n > uint64(len(d.buf)-d.off) {
		d.fail("length %d exceeds remaining %d bytes", n, len(d.buf)-d.off)
		return nil
	}
	b := d.buf[d.off : d.off+int(n)]
	d.off += int(n)
	return b
}

func (d *decoder) str() string {
	return string(d.bytes())
}

func (d *decoder) flag() bool {
	switch b := d.byte(); b {
	case 0:
		return false
	case 1:
		return true
	default:
		d.fail("invalid flag byte %d", b)
		return false
	}
}

func (d *decoder) optStr() *string {
	if !d.flag() {
		return nil
	}
	s := d.str()
	return &s
}

func (d *decoder) strs() []string {
	n := d.count()
	if n == 0 {
		return nil
	}
	out := make([]string, 0, n)
	for range n {
		out = append(out, d.str())
	}
	return out
}

func (d *decoder) position() int {
	return int(d.uvarint())
}

func (d *decoder) positions() []int {
	n := d.count()
	out := make([]int, 0, n)
	for range n {
		out = append(out, d.position())
	}
	return out
}

func (d *decoder) entries(entry func()) {
	n := d.count()
	for range n {
		if d.err != nil {
			return
		}
		entry()
	}
}

func (d *decoder) platforms() record.Platforms {
	p := record.Platforms{
		Apt:    d.optStr(),
		Brew:   d.optStr(),
		Dnf:    d.optStr(),
		Pacman: d.optStr(),
	}
	if d.flag() {
		mas := d.varint()
		p.MAS = &mas
	}
	return p
}

func (d *decoder) deps() []record.Dependency {
	n := d.count()
	if n == 0 {
		return nil
	}
	out := make([]record.Dependency, 0, n)
	for range n {
		out = append(out, record.Dependency{Package: d.str(), Reason: d.str()})
	}
	return out
}

func (d *decoder) pkg() record.Package {
	return record.Package{
		Name:        d.str(),
		Description: d.str(),
		Category:    record.Category(d.str()),
		Popularity:  int(d.uvarint()),
		Platforms:   d.platforms(),
		Dependencies: record.Dependencies{
			Required: d.deps(),
			Optional: d.deps(),
		},
		Alternatives: d.strs(),
		Related:      d.strs(),
		Tags:         d.strs(),
		Website:      d.str(),
		License:      d.str(),
		SourceURL:    d.str(),
	}
}

func (d *decoder) mapping() record.Mapping {
	return record.Mapping{
		Canonical: d.str(),
		Platforms: d.platforms(),
		Aliases:   d.strs(),
	}
}

func (d *decoder) edge() record.DependencyEdge {
	return record.DependencyEdge{
		Source: d.str(),
		Target: d.str(),
		Type:   record.DependencyType(d.str()),
		Reason: d.str(),
	}
}

func (d *decoder) group() record.Group {
	g := record.Group{
		ID:          d.str(),
		Name:        d.str(),
		Description: d.str(),
		Category:    record.Category(d.str()),
		Packages: record.GroupPackages{
			Required: d.strs(),
			Optional: d.strs(),
		},
		Groups: d.strs(),
	}
	if n := d.count(); n > 0 {
		g.PlatformOverrides = make(map[string]record.PlatformOverride, n)
		for range n {
			platform := d.str()
			g.PlatformOverrides[platform] = record.PlatformOverride{Packages: d.strs(), Casks: d.strs()}
		}
	}
	return g
}

func (d *decoder) profile() record.Profile {
	p := record.Profile{
		ID:          d.str(),
		Name:        d.str(),
		Description: d.str(),
		Type:        record.ProfileType(d.str()),
	}
	if n := d.count(); n > 0 {
		p.Packages = make(map[string][]string, n)
		for range n {
			bucket := d.str()
			p.Packages[bucket] = d.strs()
		}
	}
	if n := d.count(); n > 0 {
		p.Dotfiles = make([]record.Dotfile, 0, n)
		for range n {
			p.Dotfiles = append(p.Dotfiles, record.Dotfile{Source: d.str(), Target: d.str()})
		}
	}
	p.Hooks = record.Hooks{PreInstall: d.strs(), PostInstall: d.strs()}
	return p
}

func (d *decoder) suggestion() record.Suggestion {
	s := record.Suggestion{
		Name:  d.str(),
		Files: d.strs(),
	}
	if n := d.count(); n > 0 {
		s.Packages = make([]record.Recommendation, 0, n)
		for range n {
			s.Packages = append(s.Packages, record.Recommendation{
				Package:  d.str(),
				Priority: int(d.uvarint()),
				Reason:   d.str(),
			})
		}
	}
	return s
}
