// SPDX-License-Identifier: MPL-2.0

// Package pipeline runs the validate-then-compile stages over a record tree:
// load, schema validation, integrity validation and, for an accepted batch,
// compilation of the binary database.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/heimdal-dev/pkgdb/internal/dbformat"
	"github.com/heimdal-dev/pkgdb/internal/integrity"
	"github.com/heimdal-dev/pkgdb/internal/loader"
	"github.com/heimdal-dev/pkgdb/internal/schema"
	"github.com/heimdal-dev/pkgdb/pkg/record"
	"github.com/heimdal-dev/pkgdb/pkg/violation"
)

// ErrRejected is returned by Compile when validation rejects the batch.
var ErrRejected = errors.New("batch rejected by validation")

type (
	// Options configures a Pipeline.
	Options struct {
		// Root is the directory holding the record kind directories.
		Root string
		// Workers bounds concurrent file reads. Zero selects a default.
		Workers int
		// MaxFileSize bounds a single record file. Zero selects a default.
		MaxFileSize int64
		// Logger receives stage progress. Nil discards it.
		Logger *log.Logger
	}

	// CompileOptions configures where and how an accepted batch is written.
	CompileOptions struct {
		// Output is the database path. Empty compiles in memory only.
		Output string
		// Checksum writes the "<Output>.sha256" companion. Without it an existing
		// companion is removed, since it would no longer match.
		Checksum bool
		// BuiltAt is stored in the header. Equal inputs and BuiltAt give equal bytes.
		BuiltAt time.Time
	}

	// Pipeline validates and compiles one record tree. A Pipeline may be run
	// repeatedly but not concurrently.
	Pipeline struct {
		opts      Options
		logger    *log.Logger
		validator *schema.Validator
	}

	// Outcome is the result of one run.
	Outcome struct {
		Report violation.Report
		// Batch holds the records that passed schema validation.
		Batch *record.Batch
		// Files is the number of record files read.
		Files int
		// Artifact is set by Compile for an accepted batch.
		Artifact *dbformat.Artifact
		// Output is the path the artifact was written to, if any.
		Output string
	}
)

// New prepares a pipeline for opts.Root.
func New(opts Options) (*Pipeline, error) {
	v, err := schema.New()
	if err != nil {
		return nil, fmt.Errorf("compiling record schemas: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Pipeline{opts: opts, logger: logger, validator: v}, nil
}

// Validate loads the tree and runs both validators. Integrity runs on the
// records that passed schema validation even when other records failed, so
// one run reports every problem. The returned error is only set when the
// tree could not be read at all.
func (p *Pipeline) Validate(ctx context.Context) (*Outcome, error) {
	start := time.Now()
	res, err := loader.Load(ctx, p.opts.Root, loader.Options{
		Workers:     p.opts.Workers,
		MaxFileSize: p.opts.MaxFileSize,
		Logger:      p.logger,
	})
	if err != nil {
		return nil, err
	}
	p.logger.Debug("loaded records", "files", res.Files, "parse_errors", len(res.Violations), "took", time.Since(start))

	stage := time.Now()
	batch, schemaViolations := p.validator.Validate(res.All())
	p.logger.Debug("schema validation", "records", batch.Len(), "violations", len(schemaViolations), "took", time.Since(stage))

	stage = time.Now()
	integrityViolations := integrity.Check(batch)
	p.logger.Debug("integrity validation", "violations", len(integrityViolations), "took", time.Since(stage))

	all := make(violation.Violations, 0, len(res.Violations)+len(schemaViolations)+len(integrityViolations))
	all = append(all, res.Violations...)
	all = append(all, schemaViolations...)
	all = append(all, integrityViolations...)

	out := &Outcome{Report: violation.NewReport(all), Batch: batch, Files: res.Files}
	p.logger.Info("validation finished",
		"verdict", out.Report.Verdict,
		"errors", out.Report.Violations.ErrorCount(),
		"warnings", out.Report.Violations.WarningCount(),
		"took", time.Since(start))
	return out, nil
}

// Compile validates the tree and, when accepted, compiles and writes the
// database. A rejected batch returns the outcome together with ErrRejected
// and writes nothing. Compiler defects are returned as *dbformat.CompileError.
func (p *Pipeline) Compile(ctx context.Context, opts CompileOptions) (*Outcome, error) {
	out, err := p.Validate(ctx)
	if err != nil {
		return nil, err
	}
	if !out.Report.Accepted() {
		return out, ErrRejected
	}

	art, err := dbformat.Compile(out.Batch, opts.BuiltAt)
	if err != nil {
		return out, err
	}
	out.Artifact = art
	p.logger.Debug("compiled database", "bytes", len(art.Blob), "sha256", art.Checksum)

	if opts.Output == "" {
		return out, nil
	}
	if err := dbformat.WriteArtifact(opts.Output, art.Blob, opts.Checksum); err != nil {
		return out, err
	}
	out.Output = opts.Output
	p.logger.Info("wrote database", "path", opts.Output, "bytes", len(art.Blob))
	return out, nil
}

// ArtifactSize returns the compiled size in bytes, or -1 when nothing was compiled.
func (o *Outcome) ArtifactSize() int64 {
	if o.Artifact == nil {
		return -1
	}
	return int64(len(o.Artifact.Blob))
}
