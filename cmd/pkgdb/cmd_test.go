// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"github.com/heimdal-dev/pkgdb/internal/config"
	"github.com/heimdal-dev/pkgdb/internal/dbformat"
	"github.com/heimdal-dev/pkgdb/internal/testutil"
)

// staticConfig is a ConfigProvider returning a copy of a fixed configuration.
type staticConfig struct {
	cfg *config.Config
	err error
}

func (s staticConfig) Load(context.Context, config.LoadOptions) (*config.Config, error) {
	if s.err != nil {
		return nil, s.err
	}
	c := *s.cfg
	return &c, nil
}

// fixture writes tree to a temp root and returns a provider pointing at it
// together with the configured output path.
func fixture(t *testing.T, tree testutil.Tree) (staticConfig, string) {
	t.Helper()
	dir := t.TempDir()
	root := filepath.Join(dir, "database")
	testutil.MustMkdirAll(t, root, 0o755)
	testutil.WriteTree(t, root, tree)

	cfg := config.DefaultConfig()
	cfg.Root = root
	cfg.Output.Path = filepath.Join(dir, "target", "packages.db")
	cfg.LogLevel = config.LogLevelError
	return staticConfig{cfg: cfg}, cfg.Output.Path
}

func run(t *testing.T, provider ConfigProvider, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	app, err := NewApp(Dependencies{Config: provider, Stdout: &stdout, Stderr: &stderr})
	if err != nil {
		t.Fatalf("NewApp() error: %v", err)
	}
	root := NewRootCommand(app)
	root.SetArgs(args)
	err = root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

// exitStatus is the code of the ExitError fail returns, or -1 when the
// command returned any other error.
func exitStatus(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return -1
}

func rejectedTree() testutil.Tree {
	// git requires curl.
	return testutil.ValidTree().With(testutil.Tree{"packages/curl.yaml": ""})
}

func TestValidate_Accept(t *testing.T) {
	t.Parallel()

	provider, _ := fixture(t, testutil.ValidTree())
	stdout, _, err := run(t, provider, "validate")
	if err != nil {
		t.Fatalf("validate error: %v", err)
	}
	if !strings.Contains(stdout, "ACCEPT") || !strings.Contains(stdout, "no problems") {
		t.Errorf("stdout = %q", stdout)
	}
}

func TestValidate_Reject(t *testing.T) {
	t.Parallel()

	provider, _ := fixture(t, rejectedTree())
	stdout, _, err := run(t, provider, "validate")
	if code := exitStatus(err); code != ExitRejected {
		t.Fatalf("exit code = %d (%v), want %d", code, err, ExitRejected)
	}
	for _, want := range []string{"REJECT", "[integrity]", "packages/git.yaml", "curl"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("stdout missing %q:\n%s", want, stdout)
		}
	}
}

func TestValidate_VerboseAppendsGuidance(t *testing.T) {
	t.Parallel()

	provider, _ := fixture(t, rejectedTree())
	_, stderr, err := run(t, provider, "validate", "--verbose")
	if exitStatus(err) != ExitRejected {
		t.Fatalf("err = %v", err)
	}
	if !strings.Contains(stderr, "exist") {
		t.Errorf("stderr should carry the integrity guidance page:\n%s", stderr)
	}
}

func TestValidate_JSON(t *testing.T) {
	t.Parallel()

	provider, _ := fixture(t, rejectedTree())
	stdout, _, err := run(t, provider, "validate", "--format", "json")
	if exitStatus(err) != ExitRejected {
		t.Fatalf("err = %v", err)
	}

	var got struct {
		Verdict    string `json:"verdict"`
		Files      int    `json:"files"`
		Errors     int    `json:"errors"`
		Violations []struct {
			Kind     string `json:"kind"`
			Severity string `json:"severity"`
			Target   string `json:"target"`
		} `json:"violations"`
	}
	if err := json.Unmarshal([]byte(stdout), &got); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, stdout)
	}
	if got.Verdict != "REJECT" || got.Errors == 0 || got.Files != len(rejectedTree()) {
		t.Errorf("report = %+v", got)
	}
	found := false
	for _, v := range got.Violations {
		if v.Kind == "integrity" && v.Target == "curl" {
			found = true
		}
	}
	if !found {
		t.Errorf("no integrity violation about curl: %+v", got.Violations)
	}
}

func TestValidate_InvalidFormat(t *testing.T) {
	t.Parallel()

	provider, _ := fixture(t, testutil.ValidTree())
	_, _, err := run(t, provider, "validate", "--format", "yaml")
	if !errors.Is(err, config.ErrInvalidReportFormat) {
		t.Errorf("err = %v, want ErrInvalidReportFormat", err)
	}
}

func TestValidate_RootNotFound(t *testing.T) {
	t.Parallel()

	provider, _ := fixture(t, testutil.ValidTree())
	missing := filepath.Join(t.TempDir(), "absent")
	_, stderr, err := run(t, provider, "validate", "--root", missing)
	if exitStatus(err) != ExitRejected {
		t.Fatalf("err = %v", err)
	}
	if !strings.Contains(stderr, "read record tree") || !strings.Contains(stderr, "--root") {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestConfigLoadFailure(t *testing.T) {
	t.Parallel()

	provider := staticConfig{err: errors.New("pkgdb.cue: workers: conflicting values")}
	_, stderr, err := run(t, provider, "validate")
	if exitStatus(err) != ExitRejected {
		t.Fatalf("err = %v", err)
	}
	if !strings.Contains(stderr, "conflicting values") {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestCompile_WritesReproducibleArtifact(t *testing.T) {
	t.Parallel()

	provider, out := fixture(t, testutil.ValidTree())
	stdout, _, err := run(t, provider, "compile", "--timestamp", "2024-01-01T00:00:00Z")
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	if !strings.Contains(stdout, "Compiled 4 packages") {
		t.Errorf("stdout = %q", stdout)
	}
	first := testutil.MustReadFile(t, out)
	if err := dbformat.VerifyFile(out); err != nil {
		t.Errorf("VerifyFile() = %v", err)
	}

	if _, _, err := run(t, provider, "compile", "--timestamp", "1704067200"); err != nil {
		t.Fatal(err)
	}
	if second := testutil.MustReadFile(t, out); !bytes.Equal(first, second) {
		t.Error("equal records and timestamps must give identical bytes")
	}
}

func TestCompile_OutAndNoChecksum(t *testing.T) {
	t.Parallel()

	provider, defaultOut := fixture(t, testutil.ValidTree())
	out := filepath.Join(t.TempDir(), "custom.db")
	if _, _, err := run(t, provider, "compile", "--out", out, "--no-checksum", "--timestamp", "0"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(out); err != nil {
		t.Errorf("artifact not written: %v", err)
	}
	if _, err := os.Stat(out + dbformat.ChecksumSuffix); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("checksum written despite --no-checksum: %v", err)
	}
	if _, err := os.Stat(defaultOut); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("configured output written despite --out: %v", err)
	}
}

func TestCompile_RejectedWritesNothing(t *testing.T) {
	t.Parallel()

	provider, out := fixture(t, rejectedTree())
	stdout, _, err := run(t, provider, "compile", "--timestamp", "0")
	if exitStatus(err) != ExitRejected {
		t.Fatalf("err = %v", err)
	}
	if !strings.Contains(stdout, "REJECT") {
		t.Errorf("stdout = %q", stdout)
	}
	if _, err := os.Stat(out); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("rejected batch produced an artifact: %v", err)
	}
}

func TestCompile_InvalidTimestamp(t *testing.T) {
	t.Parallel()

	provider, out := fixture(t, testutil.ValidTree())
	_, stderr, err := run(t, provider, "compile", "--timestamp", "yesterday")
	if code := exitStatus(err); code != ExitRejected {
		t.Fatalf("exit code = %d (%v), want %d", code, err, ExitRejected)
	}
	if !strings.Contains(stderr, "invalid --timestamp") {
		t.Errorf("stderr = %q", stderr)
	}
	if _, statErr := os.Stat(out); statErr == nil {
		t.Error("a bad timestamp must not write a database")
	}
}

func TestCompile_InvalidSourceDateEpoch(t *testing.T) {
	t.Setenv(sourceDateEpochEnv, "last-tuesday")

	for _, command := range []string{"compile", "watch"} {
		t.Run(command, func(t *testing.T) {
			provider, _ := fixture(t, testutil.ValidTree())
			_, stderr, err := run(t, provider, command)
			if code := exitStatus(err); code != ExitRejected {
				t.Fatalf("exit code = %d (%v), want %d", code, err, ExitRejected)
			}
			if !strings.Contains(stderr, sourceDateEpochEnv) {
				t.Errorf("stderr = %q", stderr)
			}
		})
	}
}

func TestStats_JSON(t *testing.T) {
	t.Parallel()

	provider, _ := fixture(t, testutil.ValidTree())
	stdout, _, err := run(t, provider, "stats", "--format", "json")
	if err != nil {
		t.Fatal(err)
	}
	var got struct {
		Packages     int   `json:"packages"`
		Groups       int   `json:"groups"`
		ArtifactSize int64 `json:"artifact_size"`
	}
	if err := json.Unmarshal([]byte(stdout), &got); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, stdout)
	}
	if got.Packages != 4 || got.Groups != 2 || got.ArtifactSize <= 0 {
		t.Errorf("stats = %+v", got)
	}
}

func TestStats_RejectedBatchNotCompiled(t *testing.T) {
	t.Parallel()

	provider, _ := fixture(t, rejectedTree())
	stdout, _, err := run(t, provider, "stats", "--format", "markdown")
	if err != nil {
		t.Fatalf("stats must not gate on the verdict: %v", err)
	}
	if !strings.Contains(stdout, "packages-3-green") || strings.Contains(stdout, "Database Size") {
		t.Errorf("stdout = %q", stdout)
	}
}

func TestStats_InvalidFormat(t *testing.T) {
	t.Parallel()

	provider, _ := fixture(t, testutil.ValidTree())
	if _, _, err := run(t, provider, "stats", "--format", "xml"); err == nil {
		t.Error("expected an error for an unknown format")
	}
}

func TestInspect(t *testing.T) {
	t.Parallel()

	provider, out := fixture(t, testutil.ValidTree())
	if _, _, err := run(t, provider, "compile", "--timestamp", "0"); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		args     []string
		contains []string
		absent   []string
	}{
		{"overview", nil, []string{"version", "1.0", "1970-01-01T00:00:00Z", "package", "4"}, nil},
		{"verify", []string{"--verify"}, []string{"matches"}, nil},
		{"package", []string{"--package", "neovim"}, []string{"Hyperextensible", "(unavailable)", "ripgrep"}, nil},
		{"category", []string{"--category", "editor"}, []string{"(1 packages)", "neovim"}, []string{"curl"}},
		{"tag", []string{"--tag", "cli"}, []string{"(3 packages)", "curl", "neovim", "ripgrep"}, []string{"git "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			stdout, _, err := run(t, provider, append([]string{"inspect", out}, tt.args...)...)
			if err != nil {
				t.Fatal(err)
			}
			for _, want := range tt.contains {
				if !strings.Contains(stdout, want) {
					t.Errorf("stdout missing %q:\n%s", want, stdout)
				}
			}
			for _, unwanted := range tt.absent {
				if strings.Contains(stdout, unwanted) {
					t.Errorf("stdout contains %q:\n%s", unwanted, stdout)
				}
			}
		})
	}
}

func TestInspect_Failures(t *testing.T) {
	t.Parallel()

	provider, out := fixture(t, testutil.ValidTree())
	if _, _, err := run(t, provider, "compile", "--timestamp", "0"); err != nil {
		t.Fatal(err)
	}

	tampered := filepath.Join(t.TempDir(), "packages.db")
	blob := testutil.MustReadFile(t, out)
	blob[len(blob)-1] ^= 0xff
	testutil.MustWriteFile(t, tampered, string(blob))
	testutil.MustWriteFile(t, tampered+dbformat.ChecksumSuffix, string(testutil.MustReadFile(t, out+dbformat.ChecksumSuffix)))

	notADatabase := filepath.Join(t.TempDir(), "notes.txt")
	testutil.MustWriteFile(t, notADatabase, "hello")

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"unknown package", []string{out, "--package", "emacs"}, `package "emacs" not found`},
		{"checksum mismatch", []string{tampered, "--verify"}, "checksum verification failed"},
		{"payload corrupt", []string{tampered}, "corrupt"},
		{"bad magic", []string{notADatabase}, "bad magic"},
		{"missing file", []string{filepath.Join(t.TempDir(), "absent.db")}, "pkgdb compile"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, stderr, err := run(t, provider, append([]string{"inspect"}, tt.args...)...)
			if exitStatus(err) != ExitRejected {
				t.Fatalf("err = %v", err)
			}
			if !strings.Contains(stderr, tt.want) {
				t.Errorf("stderr missing %q:\n%s", tt.want, stderr)
			}
		})
	}
}

func TestInspect_InvalidCategory(t *testing.T) {
	t.Parallel()

	provider, out := fixture(t, testutil.ValidTree())
	if _, _, err := run(t, provider, "compile", "--timestamp", "0"); err != nil {
		t.Fatal(err)
	}
	_, stderr, err := run(t, provider, "inspect", out, "--category", "games")
	if code := exitStatus(err); code != ExitRejected {
		t.Fatalf("exit code = %d (%v), want %d", code, err, ExitRejected)
	}
	if !strings.Contains(stderr, "games") {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestConfigShowAndDump(t *testing.T) {
	t.Parallel()

	provider, _ := fixture(t, testutil.ValidTree())

	stdout, _, err := run(t, provider, "config", "show")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"Current Configuration", "(using defaults)", "workers", "8", provider.cfg.Root} {
		if !strings.Contains(stdout, want) {
			t.Errorf("show missing %q:\n%s", want, stdout)
		}
	}

	stdout, _, err = run(t, provider, "config", "dump", "--root", "elsewhere")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stdout, `root: "elsewhere"`) {
		t.Errorf("dump should reflect --root:\n%s", stdout)
	}
}

func TestSchemaCommand(t *testing.T) {
	t.Parallel()

	stdout, _, err := run(t, staticConfig{cfg: config.DefaultConfig()}, "schema", "group")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(stdout, "#Group:") {
		t.Errorf("stdout = %q", stdout)
	}

	stdout, _, err = run(t, staticConfig{cfg: config.DefaultConfig()}, "schema")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stdout, "#Package:") || !strings.Contains(stdout, "#SuggestionSet:") {
		t.Errorf("full schema missing definitions:\n%s", stdout)
	}

	if _, _, err := run(t, staticConfig{cfg: config.DefaultConfig()}, "schema", "formula"); err == nil {
		t.Error("expected an error for an unknown kind")
	}
}
