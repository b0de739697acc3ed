// SPDX-License-Identifier: MPL-2.0

package dbformat

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/heimdal-dev/pkgdb/internal/testutil"
	"github.com/heimdal-dev/pkgdb/pkg/record"
)

var testBuiltAt = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

func sampleBatch() *record.Batch {
	return &record.Batch{
		Packages: []record.Package{
			{
				Name:        "neovim",
				Description: "Vim-fork focused on extensibility",
				Category:    record.CategoryEditor,
				Popularity:  85,
				Platforms:   record.Platforms{Apt: ptr("neovim"), Brew: ptr("neovim"), Dnf: ptr("neovim")},
				Dependencies: record.Dependencies{
					Required: []record.Dependency{{Package: "git", Reason: "plugin managers"}},
				},
				Tags: []string{"editor", "cli"},
			},
			{
				Name:         "git",
				Description:  "Distributed version control system",
				Category:     record.CategoryGit,
				Popularity:   95,
				Platforms:    record.Platforms{Apt: ptr("git"), Brew: ptr("git"), MAS: ptr(int64(1234))},
				Alternatives: []string{"mercurial"},
				Tags:         []string{"vcs", "cli"},
				Website:      "https://git-scm.com",
				License:      "GPL-2.0",
				SourceURL:    "https://github.com/git/git",
			},
		},
		Mappings: []record.Mapping{{Canonical: "neovim", Aliases: []string{"nvim"}, Platforms: record.Platforms{Pacman: ptr("neovim")}}},
		Dependencies: []record.DependencyEdge{
			{Source: "neovim", Target: "git", Type: record.DependencyOptional, Reason: "fugitive"},
		},
		Groups: []record.Group{{
			ID: "base", Name: "Base", Description: "Base tools", Category: record.CategoryEssential,
			Packages: record.GroupPackages{Required: []string{"git"}, Optional: []string{"neovim"}},
			PlatformOverrides: map[string]record.PlatformOverride{
				"brew": {Casks: []string{"iterm2"}},
				"apt":  {Packages: []string{"build-essential"}},
			},
		}},
		Profiles: []record.Profile{{
			ID: "dev", Name: "Developer", Description: "Everyday development", Type: record.ProfileDeveloper,
			Packages: map[string][]string{"core": {"git"}, "editors": {"neovim"}},
			Dotfiles: []record.Dotfile{{Source: "gitconfig", Target: "~/.gitconfig"}},
			Hooks:    record.Hooks{PostInstall: []string{"git config --global init.defaultBranch main"}},
		}},
		Suggestions: []record.Suggestion{{
			Name:     "vim users",
			Files:    []string{".vimrc", "**/*.vim"},
			Packages: []record.Recommendation{{Package: "neovim", Priority: 9, Reason: "modern vim"}},
		}},
	}
}

func mustCompile(t *testing.T, batch *record.Batch) *Artifact {
	t.Helper()
	art, err := Compile(batch, testBuiltAt)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	return art
}

func TestCompile_RoundTrip(t *testing.T) {
	t.Parallel()

	batch := sampleBatch()
	art := mustCompile(t, batch)

	db, err := Decode(art.Blob)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if !db.Header.BuiltAt.Equal(testBuiltAt) {
		t.Errorf("BuiltAt = %v, want %v", db.Header.BuiltAt, testBuiltAt)
	}
	if db.Header.Major != MajorVersion || db.Header.Minor != MinorVersion {
		t.Errorf("version = %d.%d", db.Header.Major, db.Header.Minor)
	}

	pkgs := db.Packages()
	if len(pkgs) != 2 || pkgs[0].Name != "git" || pkgs[1].Name != "neovim" {
		t.Fatalf("packages not sorted by identifier: %+v", pkgs)
	}
	if !reflect.DeepEqual(pkgs[0], batch.Packages[1]) {
		t.Errorf("git changed in transit:\n got %+v\nwant %+v", pkgs[0], batch.Packages[1])
	}
	if !reflect.DeepEqual(pkgs[1], batch.Packages[0]) {
		t.Errorf("neovim changed in transit:\n got %+v\nwant %+v", pkgs[1], batch.Packages[0])
	}
	if !reflect.DeepEqual(db.Groups, batch.Groups) || !reflect.DeepEqual(db.Profiles, batch.Profiles) {
		t.Errorf("groups/profiles changed in transit:\n%+v\n%+v", db.Groups, db.Profiles)
	}
	if !reflect.DeepEqual(db.Mappings, batch.Mappings) || !reflect.DeepEqual(db.Dependencies, batch.Dependencies) {
		t.Error("mappings/dependencies changed in transit")
	}
	if !reflect.DeepEqual(db.Suggestions, batch.Suggestions) {
		t.Error("suggestions changed in transit")
	}

	p, ok := db.Index.Lookup("neovim")
	if !ok || p.Name != "neovim" {
		t.Errorf("Lookup(neovim) = %v, %v", p, ok)
	}
	if got := db.Index.ByTag["cli"]; !reflect.DeepEqual(got, []int{0, 1}) {
		t.Errorf("ByTag[cli] = %v", got)
	}
	if art.Checksum != Checksum(art.Blob) || len(art.Checksum) != 64 {
		t.Errorf("Checksum = %q", art.Checksum)
	}
}

func TestCompile_Deterministic(t *testing.T) {
	t.Parallel()

	first := mustCompile(t, sampleBatch())
	second := mustCompile(t, sampleBatch())
	if !bytes.Equal(first.Blob, second.Blob) {
		t.Error("two compilations with the same timestamp differ")
	}

	later, err := Compile(sampleBatch(), testBuiltAt.Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(first.Blob, later.Blob) {
		t.Error("build timestamp should be part of the artifact")
	}
}

func TestCompile_EmptyBatch(t *testing.T) {
	t.Parallel()

	art := mustCompile(t, &record.Batch{})
	db, err := Decode(art.Blob)
	if err != nil {
		t.Fatal(err)
	}
	for k, n := range db.Counts() {
		if n != 0 {
			t.Errorf("count[%s] = %d, want 0", k, n)
		}
	}
}

func TestHeaderLayout(t *testing.T) {
	t.Parallel()

	art := mustCompile(t, sampleBatch())
	blob := art.Blob
	if !bytes.Equal(blob[:8], Magic[:]) {
		t.Errorf("magic = %q", blob[:8])
	}
	if got := binary.LittleEndian.Uint16(blob[8:10]); got != MajorVersion {
		t.Errorf("major = %d", got)
	}
	if got := int64(binary.LittleEndian.Uint64(blob[16:24])); got != testBuiltAt.Unix() {
		t.Errorf("built_at = %d", got)
	}
	if got := binary.LittleEndian.Uint64(blob[24:32]); got != uint64(len(blob)-HeaderSize) {
		t.Errorf("length = %d, payload is %d", got, len(blob)-HeaderSize)
	}
}

func TestDecode_Errors(t *testing.T) {
	t.Parallel()

	good := mustCompile(t, sampleBatch()).Blob
	mutate := func(f func(b []byte) []byte) []byte {
		return f(bytes.Clone(good))
	}

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{name: "empty", data: nil, want: ErrBadMagic},
		{name: "wrong magic", data: mutate(func(b []byte) []byte { b[0] = 'X'; return b }), want: ErrBadMagic},
		{name: "truncated header", data: good[:20], want: ErrCorrupt},
		{name: "major version", data: mutate(func(b []byte) []byte {
			binary.LittleEndian.PutUint16(b[8:10], MajorVersion+1)
			return b
		}), want: ErrIncompatibleVersion},
		{name: "truncated payload", data: good[:len(good)-1], want: ErrCorrupt},
		{name: "flipped payload byte", data: mutate(func(b []byte) []byte { b[len(b)-1] ^= 0xff; return b }), want: ErrCorrupt},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Decode(tt.data)
			if !errors.Is(err, tt.want) {
				t.Errorf("Decode() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestDecode_IncompatibleVersionError(t *testing.T) {
	t.Parallel()

	blob := bytes.Clone(mustCompile(t, sampleBatch()).Blob)
	binary.LittleEndian.PutUint16(blob[8:10], 7)
	binary.LittleEndian.PutUint16(blob[10:12], 3)

	_, err := Decode(blob)
	var verr *IncompatibleVersionError
	if !errors.As(err, &verr) {
		t.Fatalf("error = %T %v, want *IncompatibleVersionError", err, err)
	}
	if verr.Major != 7 || verr.Minor != 3 || !strings.Contains(err.Error(), "7.3") {
		t.Errorf("error = %+v (%v)", verr, err)
	}
}

// withExtraSection appends a section to the payload and fixes up the header.
func withExtraSection(blob []byte, tag byte, body []byte) []byte {
	payload := bytes.Clone(blob[HeaderSize:])
	payload = append(payload, tag)
	payload = binary.AppendUvarint(payload, uint64(len(body)))
	payload = append(payload, body...)

	out := bytes.Clone(blob[:HeaderSize])
	binary.LittleEndian.PutUint16(out[10:12], MinorVersion+1)
	binary.LittleEndian.PutUint64(out[24:32], uint64(len(payload)))
	sum := sha256.Sum256(payload)
	copy(out[32:64], sum[:])
	return append(out, payload...)
}

func TestDecode_SkipsUnknownSections(t *testing.T) {
	t.Parallel()

	blob := withExtraSection(mustCompile(t, sampleBatch()).Blob, 200, []byte("future data"))
	db, err := Decode(blob)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if db.Header.Minor != MinorVersion+1 || len(db.Packages()) != 2 {
		t.Errorf("decoded %+v", db.Header)
	}
}

func TestDecode_DuplicateSection(t *testing.T) {
	t.Parallel()

	blob := withExtraSection(mustCompile(t, sampleBatch()).Blob, byte(sectionMappings), []byte{0})
	if _, err := Decode(blob); !errors.Is(err, ErrCorrupt) {
		t.Errorf("error = %v, want ErrCorrupt", err)
	}
}

func TestWriteAndVerifyFile(t *testing.T) {
	t.Parallel()

	art := mustCompile(t, sampleBatch())
	path := filepath.Join(t.TempDir(), "out", "packages.db")

	if err := WriteFile(path, art.Blob); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if err := WriteChecksumFile(path, art.Blob); err != nil {
		t.Fatalf("WriteChecksumFile() error = %v", err)
	}

	companion := string(testutil.MustReadFile(t, path+ChecksumSuffix))
	if want := art.Checksum + "  packages.db\n"; companion != want {
		t.Errorf("companion = %q, want %q", companion, want)
	}
	if err := VerifyFile(path); err != nil {
		t.Errorf("VerifyFile() error = %v", err)
	}

	db, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if len(db.Packages()) != 2 {
		t.Errorf("read %d packages", len(db.Packages()))
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Errorf("temp files left behind: %v", entries)
	}

	testutil.MustWriteFile(t, path, "tampered")
	err = VerifyFile(path)
	var cerr *ChecksumError
	if !errors.As(err, &cerr) || !errors.Is(err, ErrChecksumMismatch) {
		t.Errorf("VerifyFile() after tampering = %v", err)
	}
}

func TestWriteFile_ReplacesExisting(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "packages.db")
	testutil.MustWriteFile(t, path, "old content")

	if err := WriteFile(path, []byte("new")); err != nil {
		t.Fatal(err)
	}
	if got := string(testutil.MustReadFile(t, path)); got != "new" {
		t.Errorf("content = %q", got)
	}
}

func TestWriteArtifact_CompanionNeverStale(t *testing.T) {
	t.Parallel()

	oldArt := mustCompile(t, sampleBatch())
	newArt, err := Compile(sampleBatch(), testBuiltAt.Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}

	t.Run("replaces both files", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "packages.db")
		if err := WriteArtifact(path, oldArt.Blob, true); err != nil {
			t.Fatal(err)
		}
		if err := WriteArtifact(path, newArt.Blob, true); err != nil {
			t.Fatalf("WriteArtifact() error = %v", err)
		}
		if err := VerifyFile(path); err != nil {
			t.Errorf("VerifyFile() error = %v", err)
		}
		entries, err := os.ReadDir(filepath.Dir(path))
		if err != nil {
			t.Fatal(err)
		}
		if len(entries) != 2 {
			t.Errorf("temp files left behind: %v", entries)
		}
	})

	t.Run("without checksum removes the old companion", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "packages.db")
		if err := WriteArtifact(path, oldArt.Blob, true); err != nil {
			t.Fatal(err)
		}
		if err := WriteArtifact(path, newArt.Blob, false); err != nil {
			t.Fatalf("WriteArtifact() error = %v", err)
		}
		if _, err := os.Stat(path + ChecksumSuffix); !errors.Is(err, fs.ErrNotExist) {
			t.Errorf("companion still present: %v", err)
		}
	})

	t.Run("old companion that cannot be removed keeps the old database", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		path := filepath.Join(dir, "packages.db")
		testutil.MustWriteFile(t, path, "old database")
		// A non-empty directory in place of the companion cannot be removed.
		testutil.MustWriteFile(t, filepath.Join(path+ChecksumSuffix, "keep"), "x")

		if err := WriteArtifact(path, newArt.Blob, true); err == nil {
			t.Fatal("WriteArtifact() error = nil")
		}
		if got := string(testutil.MustReadFile(t, path)); got != "old database" {
			t.Errorf("database replaced despite the failure: %q", got)
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			t.Fatal(err)
		}
		if len(entries) != 2 {
			t.Errorf("temp files left behind: %v", entries)
		}
	})
}

func TestVerifyFile_MissingEntry(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "packages.db")
	testutil.MustWriteFile(t, path, "x")
	testutil.MustWriteFile(t, path+ChecksumSuffix, strings.Repeat("a", 64)+"  other.db\n")

	if err := VerifyFile(path); !errors.Is(err, ErrChecksumNotFound) {
		t.Errorf("error = %v, want ErrChecksumNotFound", err)
	}
}

func TestParseChecksums(t *testing.T) {
	t.Parallel()

	upper := strings.Repeat("AB", 32)
	listing := "\n" + upper + "  packages.db\n" +
		"garbage line\n" +
		upper + " *binary.db\n" +
		"abc  short.db\n" +
		strings.Repeat("zz", 32) + "  nothex.db\n"

	got := parseChecksums([]byte(listing))
	want := map[string]string{
		"packages.db": strings.ToLower(upper),
		"binary.db":   strings.ToLower(upper),
	}
	if !maps.Equal(got, want) {
		t.Errorf("parseChecksums() = %v, want %v", got, want)
	}
	if got := parseChecksums([]byte("nothing useful\n")); len(got) != 0 {
		t.Errorf("parseChecksums() = %v, want empty", got)
	}
}

func TestCompileError(t *testing.T) {
	t.Parallel()

	cause := errors.New("boom")
	err := error(&CompileError{Counts: map[record.Kind]int{record.KindPackage: 3}, Err: cause})
	if !errors.Is(err, ErrCompile) || !errors.Is(err, cause) {
		t.Error("CompileError should match ErrCompile and its cause")
	}
	if !strings.Contains(err.Error(), "package=3") || !strings.Contains(err.Error(), "boom") {
		t.Errorf("Error() = %q", err.Error())
	}
}
