// SPDX-License-Identifier: MPL-2.0

// Package loader reads the record tree from disk into untyped documents.
//
// Each record kind lives in its own directory under the root (see
// record.Kind.Dir). Every *.yaml and *.yml file below those directories is
// decoded with a strict YAML reader. A file that cannot be read or decoded
// produces a parse violation and never stops the other files from loading.
package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/heimdal-dev/pkgdb/pkg/cueutil"
	"github.com/heimdal-dev/pkgdb/pkg/record"
	"github.com/heimdal-dev/pkgdb/pkg/violation"
)

// ErrRootNotFound is returned when the database root does not exist or is not a directory.
var ErrRootNotFound = errors.New("record root not found")

type (
	// Options configures Load.
	Options struct {
		// Workers bounds the number of files read concurrently. Zero means GOMAXPROCS.
		Workers int
		// MaxFileSize rejects larger files with a parse violation. Zero means cueutil.DefaultMaxFileSize.
		MaxFileSize int64
		// Logger receives debug output. Nil disables logging.
		Logger *log.Logger
	}

	// Result holds everything read from the tree.
	Result struct {
		// Raws holds the decoded documents of every kind, sorted by path within each kind.
		Raws map[record.Kind][]record.Raw
		// Violations holds one parse violation per file that could not be loaded.
		Violations violation.Violations
		// Files is the number of record files found.
		Files int
	}

	fileJob struct {
		kind record.Kind
		path string
	}

	fileResult struct {
		raw *record.Raw
		v   *violation.Violation
	}
)

// All returns every loaded document in kind order.
func (r *Result) All() []record.Raw {
	var out []record.Raw
	for _, k := range record.Kinds() {
		out = append(out, r.Raws[k]...)
	}
	return out
}

// Load reads every record file under root.
// Only an unusable root or a cancelled context is returned as an error.
func Load(ctx context.Context, root string, opts Options) (*Result, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRootNotFound, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrRootNotFound, root)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	jobs, err := collect(root, logger)
	if err != nil {
		return nil, err
	}

	results := make([]fileResult, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers(opts.Workers))
	for i, job := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = loadFile(job, maxFileSize(opts.MaxFileSize))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &Result{Raws: make(map[record.Kind][]record.Raw), Files: len(jobs)}
	for _, r := range results {
		if r.v != nil {
			res.Violations = append(res.Violations, *r.v)
			continue
		}
		res.Raws[r.raw.Kind] = append(res.Raws[r.raw.Kind], *r.raw)
	}

	logger.Debug("loaded record files", "files", res.Files, "parse_errors", len(res.Violations))
	return res, nil
}

// collect lists record files per kind, sorted by path so results are deterministic.
func collect(root string, logger *log.Logger) ([]fileJob, error) {
	var jobs []fileJob
	for _, kind := range record.Kinds() {
		dir := filepath.Join(root, kind.Dir())
		if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
			logger.Debug("record directory absent", "kind", kind, "dir", dir)
			continue
		}

		var paths []string
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != dir && strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if isRecordFile(d.Name()) {
				paths = append(paths, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking %s: %w", dir, err)
		}

		slices.Sort(paths)
		for _, p := range paths {
			jobs = append(jobs, fileJob{kind: kind, path: p})
		}
	}
	return jobs, nil
}

// isRecordFile reports whether name is a YAML record file.
func isRecordFile(name string) bool {
	if strings.HasPrefix(name, ".") {
		return false
	}
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}

func loadFile(job fileJob, maxSize int64) fileResult {
	data, err := os.ReadFile(job.path)
	if err != nil {
		return fileResult{v: parseViolation(job.path, err)}
	}
	if err := cueutil.CheckFileSize(data, maxSize, job.path); err != nil {
		return fileResult{v: &violation.Violation{
			Kind:    violation.KindParse,
			Path:    job.path,
			Message: fmt.Sprintf("file size %d bytes exceeds maximum %d bytes", len(data), maxSize),
		}}
	}

	doc, positions, err := decodeStrict(data)
	if err != nil {
		return fileResult{v: parseViolation(job.path, err)}
	}
	return fileResult{raw: &record.Raw{Kind: job.kind, Path: job.path, Data: doc, Positions: positions}}
}

func parseViolation(path string, err error) *violation.Violation {
	line, col := position(err)
	msg := err.Error()
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		msg = pathErr.Err.Error()
	}
	return &violation.Violation{
		Kind:    violation.KindParse,
		Path:    path,
		Message: msg,
		Line:    line,
		Column:  col,
	}
}

func workers(n int) int {
	if n > 0 {
		return n
	}
	return runtime.GOMAXPROCS(0)
}

func maxFileSize(n int64) int64 {
	if n > 0 {
		return n
	}
	return cueutil.DefaultMaxFileSize
}
