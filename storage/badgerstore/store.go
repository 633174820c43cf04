package badgerstore

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/ragstore/core"
	"github.com/poiesic/ragstore/storage"
)

// Store implements storage.PartitionStore on BadgerDB. Both partition
// artifacts (vector payload and metadata records) are written inside a single
// read-write transaction, so the pair can never be observed mismatched.
type Store struct {
	backend *Backend
	logger  *slog.Logger
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

// NewStore creates a partition store on top of an open backend.
func NewStore(backend *Backend, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		logger:  slog.Default().With("component", "badger-store"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// descriptor is the fixed-size partition descriptor value:
// dimension (4 bytes LE) followed by count (8 bytes LE).
func encodeDescriptor(dimension, count int) []byte {
	buf := make([]byte, 12)
	binary.LittleEndian.PutUint32(buf, uint32(dimension))
	binary.LittleEndian.PutUint64(buf[4:], uint64(count))
	return buf
}

func decodeDescriptor(data []byte) (dimension, count int, err error) {
	if len(data) != 12 {
		return 0, 0, fmt.Errorf("%w: descriptor has %d bytes", storage.ErrTruncatedData, len(data))
	}
	return int(binary.LittleEndian.Uint32(data)), int(binary.LittleEndian.Uint64(data[4:])), nil
}

func encodeVectors(vectors []float32) []byte {
	buf := new(bytes.Buffer)
	buf.Grow(len(vectors) * 4)
	_ = binary.Write(buf, binary.LittleEndian, vectors)
	return buf.Bytes()
}

func decodeVectors(data []byte, count int) ([]float32, error) {
	if len(data) != count*4 {
		return nil, fmt.Errorf("%w: vector payload has %d bytes, want %d", storage.ErrTruncatedData, len(data), count*4)
	}
	vectors := make([]float32, count)
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, vectors); err != nil {
		return nil, err
	}
	return vectors, nil
}

// Load reads the tenant's partition from the database.
func (s *Store) Load(ctx context.Context, tenantID string) (*core.Partition, error) {
	if s.backend.IsClosed() {
		return nil, storage.ErrStorageClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := core.ValidateTenantID(tenantID); err != nil {
		return nil, err
	}

	var partition *core.Partition
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeDescriptorKey(tenantID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: tenant %s", storage.ErrNotPresent, tenantID)
		}
		if err != nil {
			return err
		}

		var dimension, count int
		if err := item.Value(func(val []byte) error {
			dimension, count, err = decodeDescriptor(val)
			return err
		}); err != nil {
			return fmt.Errorf("%w: tenant %s: %w", storage.ErrCorrupted, tenantID, err)
		}

		item, err = tx.Get(makeVectorsKey(tenantID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: tenant %s: descriptor without vector payload", storage.ErrCorrupted, tenantID)
		}
		if err != nil {
			return err
		}

		var vectors []float32
		if err := item.Value(func(val []byte) error {
			vectors, err = decodeVectors(val, count*dimension)
			return err
		}); err != nil {
			return fmt.Errorf("%w: tenant %s: %w", storage.ErrCorrupted, tenantID, err)
		}

		records := make([]core.DocumentRecord, 0, count)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeDocumentPrefix(tenantID)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var record *core.DocumentRecord
			err := iter.Item().Value(func(val []byte) error {
				var err error
				record, err = storage.UnmarshalDocumentRecord(val)
				return err
			})
			if err != nil {
				return fmt.Errorf("%w: tenant %s: %w", storage.ErrCorrupted, tenantID, err)
			}
			records = append(records, *record)
		}

		if len(records) != count {
			return fmt.Errorf("%w: tenant %s: descriptor says %d records, found %d",
				storage.ErrCorrupted, tenantID, count, len(records))
		}

		partition = &core.Partition{
			Dimension: dimension,
			Vectors:   vectors,
			Records:   records,
		}
		return nil
	}, false)

	if err != nil {
		return nil, err
	}

	s.logger.Debug("loaded partition", "tenant", tenantID, "documents", partition.Count())
	return partition, nil
}

// Persist writes the partition inside one read-write transaction, replacing
// any previous state for the tenant.
func (s *Store) Persist(ctx context.Context, tenantID string, partition *core.Partition) error {
	if s.backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := core.ValidateTenantID(tenantID); err != nil {
		return err
	}

	err := s.backend.WithTx(func(tx *badger.Txn) error {
		// Drop stale record keys beyond the new count. Records are immutable
		// and append-only, so only a shrinking partition (never produced by
		// Append) would leave extras; this keeps Persist safe regardless.
		if err := s.deleteDocumentsFrom(tx, tenantID, partition.Count()); err != nil {
			return err
		}

		key := makeDescriptorKey(tenantID)
		if err := tx.Set(key, encodeDescriptor(partition.Dimension, partition.Count())); err != nil {
			return err
		}
		if err := tx.Set(makeVectorsKey(tenantID), encodeVectors(partition.Vectors)); err != nil {
			return err
		}
		for i := range partition.Records {
			if err := tx.Set(makeDocumentKey(tenantID, i), storage.MarshalDocumentRecord(&partition.Records[i])); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)

	if err != nil {
		return fmt.Errorf("%w: tenant %s: %w", storage.ErrPersistFailed, tenantID, err)
	}

	s.logger.Debug("persisted partition", "tenant", tenantID, "documents", partition.Count())
	return nil
}

func (s *Store) deleteDocumentsFrom(tx *badger.Txn, tenantID string, from int) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = makeDocumentPrefix(tenantID)
	opts.PrefetchValues = false
	iter := tx.NewIterator(opts)
	defer iter.Close()

	var stale [][]byte
	for iter.Seek(makeDocumentKey(tenantID, from)); iter.Valid(); iter.Next() {
		stale = append(stale, iter.Item().KeyCopy(nil))
	}
	for _, key := range stale {
		if err := tx.Delete(key); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the underlying backend.
func (s *Store) Close() error {
	return s.backend.Close()
}
