// SPDX-License-Identifier: MPL-2.0

package dbformat

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"

	"github.com/heimdal-dev/pkgdb/pkg/record"
)

var errNoIndex = errors.New("database has no index")

// encoder appends the wire representation of values to buf.
type encoder struct {
	buf []byte
}

// Encode serializes db. The header version, length and checksum are
// computed; only Header.BuiltAt and Header.Flags are taken from db.
// Encoding the same database twice yields identical bytes.
func Encode(db *Database) ([]byte, error) {
	if db.Index == nil {
		return nil, errNoIndex
	}

	var payload encoder
	payload.section(sectionPackages, func(e *encoder) {
		e.list(len(db.Index.Packages), func(i int) { e.pkg(&db.Index.Packages[i]) })
	})
	payload.section(sectionMappings, func(e *encoder) {
		e.list(len(db.Mappings), func(i int) { e.mapping(&db.Mappings[i]) })
	})
	payload.section(sectionDependencies, func(e *encoder) {
		e.list(len(db.Dependencies), func(i int) { e.edge(&db.Dependencies[i]) })
	})
	payload.section(sectionGroups, func(e *encoder) {
		e.list(len(db.Groups), func(i int) { e.group(&db.Groups[i]) })
	})
	payload.section(sectionProfiles, func(e *encoder) {
		e.list(len(db.Profiles), func(i int) { e.profile(&db.Profiles[i]) })
	})
	payload.section(sectionSuggestions, func(e *encoder) {
		e.list(len(db.Suggestions), func(i int) { e.suggestion(&db.Suggestions[i]) })
	})
	payload.section(sectionIndexByID, func(e *encoder) {
		ids := sortedKeys(db.Index.ByID)
		e.list(len(ids), func(i int) {
			e.str(ids[i])
			e.uvarint(uint64(db.Index.ByID[ids[i]]))
		})
	})
	payload.section(sectionIndexByCategory, func(e *encoder) {
		cats := sortedKeys(db.Index.ByCategory)
		e.list(len(cats), func(i int) {
			e.str(string(cats[i]))
			e.positions(db.Index.ByCategory[cats[i]])
		})
	})
	payload.section(sectionIndexByTag, func(e *encoder) {
		tags := sortedKeys(db.Index.ByTag)
		e.list(len(tags), func(i int) {
			e.str(tags[i])
			e.positions(db.Index.ByTag[tags[i]])
		})
	})

	sum := sha256.Sum256(payload.buf)
	var builtAt int64
	if !db.Header.BuiltAt.IsZero() {
		builtAt = db.Header.BuiltAt.Unix()
	}

	out := make([]byte, 0, HeaderSize+len(payload.buf))
	out = append(out, Magic[:]...)
	out = binary.LittleEndian.AppendUint16(out, MajorVersion)
	out = binary.LittleEndian.AppendUint16(out, MinorVersion)
	out = binary.LittleEndian.AppendUint32(out, db.Header.Flags)
	out = binary.LittleEndian.AppendUint64(out, uint64(builtAt))
	out = binary.LittleEndian.AppendUint64(out, uint64(len(payload.buf)))
	out = append(out, sum[:]...)
	return append(out, payload.buf...), nil
}

func (e *encoder) section(tag section, body func(*encoder)) {
	var inner encoder
	body(&inner)
	e.buf = append(e.buf, byte(tag))
	e.uvarint(uint64(len(inner.buf)))
	e.buf = append(e.buf, inner.buf...)
}

func (e *encoder) uvarint(v uint64) {
	e.buf = binary.AppendUvarint(e.buf, v)
}

func (e *encoder) varint(v int64) {
	e.buf = binary.AppendVarint(e.buf, v)
}

func (e *encoder) flag(set bool) {
	if set {
		e.buf = append(e.buf, 1)
		return
	}
	e.buf = append(e.buf, 0)
}

func (e *encoder) str(s string) {
	e.uvarint(uint64(len(s)))
	e.buf = append(e.buf, s...)
}

func (e *encoder) optStr(s *string) {
	e.flag(s != nil)
	if s != nil {
		e.str(*s)
	}
}

func (e *encoder) strs(ss []string) {
	e.list(len(ss), func(i int) { e.str(ss[i]) })
}

func (e *encoder) positions(ps []int) {
	e.list(len(ps), func(i int) { e.uvarint(uint64(ps[i])) })
}

func (e *encoder) list(n int, item func(i int)) {
	e.uvarint(uint64(n))
	for i := range n {
		item(i)
	}
}

func (e *encoder) platforms(p *record.Platforms) {
	e.optStr(p.Apt)
	e.optStr(p.Brew)
	e.optStr(p.Dnf)
	e.optStr(p.Pacman)
	e.flag(p.MAS != nil)
	if p.MAS != nil {
		e.varint(*p.MAS)
	}
}

func (e *encoder) deps(ds []record.Dependency) {
	e.list(len(ds), func(i int) {
		e.str(ds[i].Package)
		e.str(ds[i].Reason)
	})
}

func (e *encoder) pkg(p *record.Package) {
	e.str(p.Name)
	e.str(p.Description)
	e.str(string(p.Category))
	e.uvarint(uint64(p.Popularity))
	e.platforms(&p.Platforms)
	e.deps(p.Dependencies.Required)
	e.deps(p.Dependencies.Optional)
	e.strs(p.Alternatives)
	e.strs(p.Related)
	e.strs(p.Tags)
	e.str(p.Website)
	e.str(p.License)
	e.str(p.SourceURL)
}

func (e *encoder) mapping(m *record.Mapping) {
	e.str(m.Canonical)
	e.platforms(&m.Platforms)
	e.strs(m.Aliases)
}

func (e *encoder) edge(d *record.DependencyEdge) {
	e.str(d.Source)
	e.str(d.Target)
	e.str(string(d.Type))
	e.str(d.Reason)
}

func (e *encoder) group(g *record.Group) {
	e.str(g.ID)
	e.str(g.Name)
	e.str(g.Description)
	e.str(string(g.Category))
	e.strs(g.Packages.Required)
	e.strs(g.Packages.Optional)
	e.strs(g.Groups)
	platforms := sortedKeys(g.PlatformOverrides)
	e.list(len(platforms), func(i int) {
		o := g.PlatformOverrides[platforms[i]]
		e.str(platforms[i])
		e.strs(o.Packages)
		e.strs(o.Casks)
	})
}

func (e *encoder) profile(p *record.Profile) {
	e.str(p.ID)
	e.str(p.Name)
	e.str(p.Description)
	e.str(string(p.Type))
	buckets := sortedKeys(p.Packages)
	e.list(len(buckets), func(i int) {
		e.str(buckets[i])
		e.strs(p.Packages[buckets[i]])
	})
	e.list(len(p.Dotfiles), func(i int) {
		e.str(p.Dotfiles[i].Source)
		e.str(p.Dotfiles[i].Target)
	})
	e.strs(p.Hooks.PreInstall)
	e.strs(p.Hooks.PostInstall)
}

func (e *encoder) suggestion(s *record.Suggestion) {
	e.str(s.Name)
	e.strs(s.Files)
	e.list(len(s.Packages), func(i int) {
		r := &s.Packages[i]
		e.str(r.Package)
		e.uvarint(uint64(r.Priority))
		e.str(r.Reason)
	})
}
