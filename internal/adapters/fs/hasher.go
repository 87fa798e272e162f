package fs

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/cespare/xxhash/v2"
	"go.trai.ch/crossbox/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.Hasher = (*Hasher)(nil)

// Hasher computes content digests of target directories.
type Hasher struct {
	walker *Walker
}

// NewHasher creates a new Hasher.
func NewHasher(walker *Walker) *Hasher {
	return &Hasher{walker: walker}
}

// ComputeFileHash computes the XXHash of a file's content.
func (h *Hasher) ComputeFileHash(path string) (uint64, error) {
	f, err := os.Open(path) //nolint:gosec // Path is controlled by caller
	if err != nil {
		return 0, zerr.With(zerr.Wrap(err, "failed to open file"), "path", path)
	}
	defer f.Close() //nolint:errcheck // Best effort close in defer

	hasher := xxhash.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return 0, zerr.With(zerr.Wrap(err, "failed to hash file content"), "path", path)
	}

	return hasher.Sum64(), nil
}

// ComputeDirDigest hashes the relative path and content of every file under dir.
// Files are visited in sorted order so the digest does not depend on directory listing order.
func (h *Hasher) ComputeDirDigest(dir string) (string, error) {
	var files []string
	for rel, err := range h.walker.WalkFiles(dir) {
		if err != nil {
			return "", zerr.With(zerr.Wrap(err, "failed to walk directory"), "path", dir)
		}
		files = append(files, rel)
	}
	slices.Sort(files)

	hasher := xxhash.New()
	for _, rel := range files {
		_, _ = hasher.WriteString(rel)
		_, _ = hasher.Write([]byte{0}) // Separator

		hash, err := h.ComputeFileHash(filepath.Join(dir, filepath.FromSlash(rel)))
		if err != nil {
			return "", err
		}
		if err := binary.Write(hasher, binary.LittleEndian, hash); err != nil {
			return "", zerr.Wrap(err, "failed to write hash to digest")
		}
	}

	return fmt.Sprintf("%016x", hasher.Sum64()), nil
}
