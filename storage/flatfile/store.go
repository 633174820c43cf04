package flatfile

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/poiesic/ragstore/core"
	"github.com/poiesic/ragstore/storage"
)

// Store implements storage.PartitionStore on a local directory tree:
// {base}/{tenant}/index.vec and {base}/{tenant}/documents.rec.
type Store struct {
	baseDir string
	logger  *slog.Logger
	closed  atomic.Bool
}

var _ storage.PartitionStore = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
	}
}

// NewStore creates a flat-file partition store rooted at baseDir.
// The base directory is created if it does not exist.
func NewStore(baseDir string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("flatfile: create base directory %s: %w", baseDir, err)
	}

	s := &Store{
		baseDir: baseDir,
		logger:  slog.Default().With("component", "flatfile-store"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Store) tenantDir(tenantID string) (string, error) {
	if err := core.ValidateTenantID(tenantID); err != nil {
		return "", err
	}
	return filepath.Join(s.baseDir, tenantID), nil
}

// Load reads both artifacts for the tenant and reassembles the partition.
func (s *Store) Load(ctx context.Context, tenantID string) (*core.Partition, error) {
	if s.closed.Load() {
		return nil, storage.ErrStorageClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dir, err := s.tenantDir(tenantID)
	if err != nil {
		return nil, err
	}

	indexPath := filepath.Join(dir, IndexFileName)
	documentsPath := filepath.Join(dir, DocumentsFileName)

	indexExists := fileExists(indexPath)
	documentsExists := fileExists(documentsPath)

	switch {
	case !indexExists && !documentsExists:
		return nil, fmt.Errorf("%w: tenant %s", storage.ErrNotPresent, tenantID)
	case indexExists != documentsExists:
		// Exactly one artifact survived a crash or was deleted by hand.
		return nil, fmt.Errorf("%w: tenant %s has an unpaired artifact", storage.ErrCorrupted, tenantID)
	}

	dimension, count, vectors, err := s.loadIndex(indexPath)
	if err != nil {
		return nil, fmt.Errorf("%w: tenant %s: %s: %w", storage.ErrCorrupted, tenantID, IndexFileName, err)
	}

	docDimension, records, err := s.loadDocuments(documentsPath)
	if err != nil {
		return nil, fmt.Errorf("%w: tenant %s: %s: %w", storage.ErrCorrupted, tenantID, DocumentsFileName, err)
	}

	if count != len(records) || dimension != docDimension {
		return nil, fmt.Errorf("%w: tenant %s: index has %d vectors (dim %d), documents has %d records (dim %d)",
			storage.ErrCorrupted, tenantID, count, dimension, len(records), docDimension)
	}

	s.logger.Debug("loaded partition", "tenant", tenantID, "documents", count, "dimension", dimension)

	return &core.Partition{
		Dimension: dimension,
		Vectors:   vectors,
		Records:   records,
	}, nil
}

func (s *Store) loadIndex(path string) (int, int, []float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, 0, nil, err
	}
	return decodeIndex(bufio.NewReader(f), info.Size())
}

func (s *Store) loadDocuments(path string) (int, []core.DocumentRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, nil, err
	}
	defer f.Close()

	return decodeDocuments(bufio.NewReader(f))
}

// Persist writes both artifacts to temporary files, then promotes the pair by
// renaming. A crash before the first rename leaves the old pair intact; a
// crash between the renames leaves a length mismatch that Load reports as
// corruption instead of silently reading a torn state.
func (s *Store) Persist(ctx context.Context, tenantID string, partition *core.Partition) error {
	if s.closed.Load() {
		return storage.ErrStorageClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	dir, err := s.tenantDir(tenantID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: create tenant directory: %w", storage.ErrPersistFailed, err)
	}

	indexTmp, err := s.writeTemp(dir, IndexFileName, func(f *os.File) error {
		return encodeIndex(f, partition)
	})
	if err != nil {
		return fmt.Errorf("%w: %s: %w", storage.ErrPersistFailed, IndexFileName, err)
	}
	defer os.Remove(indexTmp)

	documentsTmp, err := s.writeTemp(dir, DocumentsFileName, func(f *os.File) error {
		return encodeDocuments(f, partition)
	})
	if err != nil {
		return fmt.Errorf("%w: %s: %w", storage.ErrPersistFailed, DocumentsFileName, err)
	}
	defer os.Remove(documentsTmp)

	if err := os.Rename(indexTmp, filepath.Join(dir, IndexFileName)); err != nil {
		return fmt.Errorf("%w: promote %s: %w", storage.ErrPersistFailed, IndexFileName, err)
	}
	if err := os.Rename(documentsTmp, filepath.Join(dir, DocumentsFileName)); err != nil {
		return fmt.Errorf("%w: promote %s: %w", storage.ErrPersistFailed, DocumentsFileName, err)
	}

	// Best-effort: fsync directory so the renames survive power loss.
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}

	s.logger.Debug("persisted partition", "tenant", tenantID, "documents", partition.Count())
	return nil
}

// writeTemp writes one artifact to a temp file in the same directory (so the
// later rename stays on one filesystem) and syncs it before returning.
func (s *Store) writeTemp(dir, filename string, write func(*os.File) error) (string, error) {
	tmp, err := os.CreateTemp(dir, filename+".tmp-*")
	if err != nil {
		return "", err
	}

	if err := write(tmp); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}

// Close marks the store closed. Subsequent operations fail with ErrStorageClosed.
func (s *Store) Close() error {
	s.closed.Store(true)
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
