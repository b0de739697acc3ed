// SPDX-License-Identifier: MPL-2.0

package dbformat

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ChecksumSuffix names the sha256sum companion written next to a database.
const ChecksumSuffix = ".sha256"

var (
	ErrChecksumMismatch = errors.New("checksum mismatch")
	ErrChecksumNotFound = errors.New("database not listed in checksum file")
)

// ChecksumError is a database whose SHA-256 differs from the one its
// companion lists. It matches ErrChecksumMismatch.
type ChecksumError struct {
	Filename string
	Expected string
	Got      string
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("checksum verification failed for %s\nExpected: %s\nGot:      %s", e.Filename, e.Expected, e.Got)
}

func (e *ChecksumError) Unwrap() error { return ErrChecksumMismatch }

// Checksum returns the lowercase hex SHA-256 of blob.
func Checksum(blob []byte) string {
	sum := sha256.Sum256(blob)
	return hex.EncodeToString(sum[:])
}

// WriteFile replaces path with blob through a synced temp file renamed into
// place, so a reader sees either the old database or the new one. The parent
// directory is created when missing.
func WriteFile(path string, blob []byte) error {
	tmp, err := stage(path, blob)
	if err != nil {
		return err
	}
	return commit(tmp, path)
}

// WriteChecksumFile writes the sha256sum companion for a database written to path.
func WriteChecksumFile(path string, blob []byte) error {
	return WriteFile(path+ChecksumSuffix, checksumLine(path, blob))
}

// WriteArtifact writes a database and, when withChecksum is set, its
// companion. Both files are staged under temp names before either is renamed,
// and the old companion is removed before the database is replaced. An
// interrupted write leaves the companion missing, never stale.
func WriteArtifact(path string, blob []byte, withChecksum bool) error {
	dbTmp, err := stage(path, blob)
	if err != nil {
		return err
	}
	var sumTmp string
	if withChecksum {
		if sumTmp, err = stage(path+ChecksumSuffix, checksumLine(path, blob)); err != nil {
			_ = os.Remove(dbTmp)
			return err
		}
	}

	if err := os.Remove(path + ChecksumSuffix); err != nil && !errors.Is(err, fs.ErrNotExist) {
		_ = os.Remove(dbTmp)
		if sumTmp != "" {
			_ = os.Remove(sumTmp)
		}
		return fmt.Errorf("removing old checksum file: %w", err)
	}
	if err := commit(dbTmp, path); err != nil {
		if sumTmp != "" {
			_ = os.Remove(sumTmp)
		}
		return err
	}
	if sumTmp == "" {
		return nil
	}
	return commit(sumTmp, path+ChecksumSuffix)
}

func checksumLine(path string, blob []byte) []byte {
	return fmt.Appendf(nil, "%s  %s\n", Checksum(blob), filepath.Base(path))
}

// stage writes data to a synced, hidden temp file next to path and returns
// its name.
func stage(path string, data []byte) (string, error) {
	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+base+"-*")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	_, err = tmp.Write(data)
	if err == nil {
		err = tmp.Sync()
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Chmod(tmpName, 0o644)
	}
	if err != nil {
		// Best effort; the temp file is hidden and unique.
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return tmpName, nil
}

func commit(tmpName, path string) error {
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// ReadFile reads and decodes the database at path.
func ReadFile(path string) (*Database, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	db, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return db, nil
}

// VerifyFile hashes the database at path and compares the result with the
// entry for its base name in path+ChecksumSuffix.
func VerifyFile(path string) error {
	listing, err := os.ReadFile(path + ChecksumSuffix)
	if err != nil {
		return err
	}
	expected, ok := parseChecksums(listing)[filepath.Base(path)]
	if !ok {
		return fmt.Errorf("%w: %s", ErrChecksumNotFound, filepath.Base(path))
	}

	blob, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if got := Checksum(blob); got != expected {
		return &ChecksumError{Filename: path, Expected: expected, Got: got}
	}
	return nil
}

// parseChecksums reads sha256sum output, "<hex>  <name>" or "<hex> *<name>"
// per line, into a name to lowercase hash map. Malformed lines are ignored.
func parseChecksums(listing []byte) map[string]string {
	sums := make(map[string]string)
	sc := bufio.NewScanner(bytes.NewReader(listing))
	for sc.Scan() {
		hash, name, ok := strings.Cut(strings.TrimSpace(sc.Text()), " ")
		name = strings.TrimPrefix(strings.TrimSpace(name), "*")
		if !ok || name == "" || len(hash) != 2*sha256.Size {
			continue
		}
		if _, err := hex.DecodeString(hash); err != nil {
			continue
		}
		sums[name] = strings.ToLower(hash)
	}
	return sums
}
