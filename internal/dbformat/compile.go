// SPDX-License-Identifier: MPL-2.0

package dbformat

import (
	"bytes"
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/heimdal-dev/pkgdb/pkg/record"
)

var errRoundTrip = errors.New("decoded database does not re-encode to the same bytes")

// Artifact is a compiled database ready to be written.
type Artifact struct {
	Blob     []byte
	Checksum string
	Database *Database
}

// Compile encodes an accepted batch and reads the result back before
// returning it. Any failure here is a defect of the compiler, reported as a
// *CompileError. Compiling the same batch with the same builtAt yields
// identical bytes.
func Compile(batch *record.Batch, builtAt time.Time) (*Artifact, error) {
	counts := batch.Counts()
	defect := func(err error) error {
		return &CompileError{Counts: counts, Err: err}
	}

	db := FromBatch(batch, builtAt)
	blob, err := Encode(db)
	if err != nil {
		return nil, defect(err)
	}

	decoded, err := Decode(blob)
	if err != nil {
		return nil, defect(fmt.Errorf("reading back: %w", err))
	}
	if got := decoded.Counts(); !maps.Equal(got, counts) {
		return nil, defect(fmt.Errorf("record counts changed: wrote %v, read %v", counts, got))
	}
	if !maps.Equal(decoded.Index.ByID, db.Index.ByID) {
		return nil, defect(errors.New("identifier index changed on read back"))
	}
	again, err := Encode(decoded)
	if err != nil {
		return nil, defect(err)
	}
	if !bytes.Equal(again, blob) {
		return nil, defect(errRoundTrip)
	}

	return &Artifact{Blob: blob, Checksum: Checksum(blob), Database: decoded}, nil
}
