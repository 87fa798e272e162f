// Package cas implements the on-disk image archive cache.
package cas

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"
	"go.trai.ch/crossbox/internal/core/domain"
	"go.trai.ch/crossbox/internal/core/ports"
	"go.trai.ch/zerr"
)

const (
	archiveExt  = ".tar.gz"
	metadataExt = ".json"
)

var _ ports.CacheStore = (*Store)(nil)

// Store implements ports.CacheStore with one gzip archive and one JSON metadata file per target.
// Different targets never share a file, so concurrent invocations for different targets do not contend.
type Store struct {
	dir   string
	mu    sync.RWMutex
	cache map[domain.TargetID]domain.CacheEntry
}

// NewStore creates a store rooted at dir. The directory is created on first write.
func NewStore(dir string) *Store {
	return &Store{
		dir:   filepath.Clean(dir),
		cache: make(map[domain.TargetID]domain.CacheEntry),
	}
}

// Dir returns the directory holding the archives.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) archivePath(target domain.TargetID) string {
	return filepath.Join(s.dir, target.String()+archiveExt)
}

func (s *Store) metadataPath(target domain.TargetID) string {
	return filepath.Join(s.dir, target.String()+metadataExt)
}

// Lookup returns the metadata of the archive cached for target.
// An entry whose archive is missing is reported as absent.
func (s *Store) Lookup(target domain.TargetID) (*domain.CacheEntry, error) {
	s.mu.RLock()
	entry, ok := s.cache[target]
	s.mu.RUnlock()

	if !ok {
		loaded, err := s.readMetadata(target)
		if err != nil || loaded == nil {
			return nil, err
		}
		entry = *loaded

		s.mu.Lock()
		s.cache[target] = entry
		s.mu.Unlock()
	}

	if _, err := os.Stat(s.archivePath(target)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, zerr.With(zerr.Wrap(err, "failed to stat cache archive"), "target", target.String())
	}

	return &entry, nil
}

func (s *Store) readMetadata(target domain.TargetID) (*domain.CacheEntry, error) {
	//nolint:gosec // Path is built from a validated target id
	data, err := os.ReadFile(s.metadataPath(target))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, zerr.With(zerr.Wrap(err, "failed to read cache metadata"), "target", target.String())
	}

	var entry domain.CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to unmarshal cache metadata"), "target", target.String())
	}
	return &entry, nil
}

// Restore decompresses the archive of target into load.
func (s *Store) Restore(ctx context.Context, target domain.TargetID, load func(io.Reader) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	//nolint:gosec // Path is built from a validated target id
	f, err := os.Open(s.archivePath(target))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return zerr.With(zerr.Wrap(domain.ErrCacheEntryNotFound, "no archive for target"), "target", target.String())
		}
		return zerr.With(zerr.Wrap(err, "failed to open cache archive"), "target", target.String())
	}
	defer f.Close() //nolint:errcheck // Read-only file

	gz, err := gzip.NewReader(f)
	if err != nil {
		return zerr.With(zerr.Wrap(err, "failed to decompress cache archive"), "target", target.String())
	}
	defer gz.Close() //nolint:errcheck // Checksum errors surface through load

	if err := load(gz); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to load cache archive"), "target", target.String())
	}
	return nil
}

// Persist writes a new archive for entry.Target and then its metadata.
// Both files are written to temporary names and renamed into place, so a reader
// sees either the previous entry or the complete new one.
func (s *Store) Persist(
	ctx context.Context,
	entry domain.CacheEntry,
	save func(io.Writer) ([]string, error),
) (*domain.CacheEntry, error) {
	target := entry.Target
	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to create cache directory"), "path", s.dir)
	}

	tmp, err := os.CreateTemp(s.dir, "."+target.String()+".*.tmp")
	if err != nil {
		return nil, zerr.Wrap(err, "failed to create temporary archive")
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	gz := gzip.NewWriter(tmp)
	layers, err := save(gz)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to save image"), "target", target.String())
	}
	if err := gz.Close(); err != nil {
		return nil, zerr.Wrap(err, "failed to finish cache archive")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := tmp.Sync(); err != nil {
		return nil, zerr.Wrap(err, "failed to sync cache archive")
	}
	info, err := tmp.Stat()
	if err != nil {
		return nil, zerr.Wrap(err, "failed to stat cache archive")
	}
	if err := tmp.Close(); err != nil {
		return nil, zerr.Wrap(err, "failed to close cache archive")
	}

	if err := os.Rename(tmpPath, s.archivePath(target)); err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to commit cache archive"), "target", target.String())
	}
	committed = true

	entry.Layers = layers
	entry.Size = info.Size()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	if err := s.writeMetadata(entry); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cache[target] = entry
	s.mu.Unlock()

	return &entry, nil
}

func (s *Store) writeMetadata(entry domain.CacheEntry) error {
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return zerr.Wrap(err, "failed to marshal cache metadata")
	}

	tmp, err := os.CreateTemp(s.dir, "."+entry.Target.String()+".*.json.tmp")
	if err != nil {
		return zerr.Wrap(err, "failed to create temporary metadata file")
	}
	tmpPath := tmp.Name()

	_, werr := tmp.Write(data)
	cerr := tmp.Close()
	if err := errors.Join(werr, cerr); err != nil {
		_ = os.Remove(tmpPath)
		return zerr.Wrap(err, "failed to write cache metadata")
	}

	if err := os.Rename(tmpPath, s.metadataPath(entry.Target)); err != nil {
		_ = os.Remove(tmpPath)
		return zerr.With(zerr.Wrap(err, "failed to commit cache metadata"), "target", entry.Target.String())
	}
	return nil
}

// Evict removes the archive and metadata of target.
func (s *Store) Evict(target domain.TargetID) error {
	s.mu.Lock()
	delete(s.cache, target)
	s.mu.Unlock()

	var errs []error
	for _, path := range []string{s.metadataPath(target), s.archivePath(target)} {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, zerr.With(zerr.Wrap(err, "failed to remove cache file"), "path", path))
		}
	}
	return errors.Join(errs...)
}

// List returns every entry with a committed archive, ordered by target.
func (s *Store) List() ([]domain.CacheEntry, error) {
	files, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, zerr.With(zerr.Wrap(err, "failed to list cache directory"), "path", s.dir)
	}

	var entries []domain.CacheEntry
	for _, f := range files {
		name := f.Name()
		if f.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, metadataExt) {
			continue
		}

		target := domain.TargetID(strings.TrimSuffix(name, metadataExt))
		if target.Validate() != nil {
			continue
		}

		entry, err := s.Lookup(target)
		if err != nil {
			return nil, err
		}
		if entry != nil {
			entries = append(entries, *entry)
		}
	}

	slices.SortFunc(entries, func(a, b domain.CacheEntry) int {
		return strings.Compare(a.Target.String(), b.Target.String())
	})
	return entries, nil
}
