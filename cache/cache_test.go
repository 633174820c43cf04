package cache

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/ragstore/core"
	"github.com/poiesic/ragstore/storage"
	"github.com/poiesic/ragstore/storage/flatfile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T, opts ...Option) (*Cache, *flatfile.Store, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := flatfile.NewStore(dir)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	c, err := New(store, 2, opts...)
	require.NoError(t, err)
	return c, store, dir
}

func chunkOf(text string, vector ...float32) core.Chunk {
	return core.Chunk{
		Vector: vector,
		Record: core.DocumentRecord{Filename: "f.txt", Text: text},
	}
}

func appendChunks(c *Cache, tenantID string, chunks ...core.Chunk) error {
	return c.WithWrite(context.Background(), tenantID, func(p *core.Partition) (*core.Partition, error) {
		return p.Append(chunks)
	})
}

func TestNew(t *testing.T) {
	store, err := flatfile.NewStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	t.Run("valid configuration", func(t *testing.T) {
		c, err := New(store, 1536)
		require.NoError(t, err)
		assert.NotNil(t, c)
	})

	t.Run("nil store", func(t *testing.T) {
		_, err := New(nil, 1536)
		assert.Equal(t, ErrStoreRequired, err)
	})

	t.Run("invalid dimension", func(t *testing.T) {
		_, err := New(store, 0)
		assert.ErrorIs(t, err, core.ErrInvalidDimension)
	})
}

func TestAcquire_CreatesEmptyPartition(t *testing.T) {
	c, _, _ := newTestCache(t)

	err := c.WithRead(context.Background(), "newcomer", func(p *core.Partition) error {
		assert.Equal(t, 0, p.Count())
		assert.Equal(t, 2, p.Dimension)
		return nil
	})
	require.NoError(t, err)
}

func TestAcquire_ReturnsCachedHandle(t *testing.T) {
	c, _, _ := newTestCache(t)
	ctx := context.Background()

	h1, err := c.Acquire(ctx, "u1")
	require.NoError(t, err)
	h2, err := c.Acquire(ctx, "u1")
	require.NoError(t, err)
	assert.Same(t, h1, h2)
}

func TestAcquire_InvalidTenant(t *testing.T) {
	c, _, _ := newTestCache(t)
	_, err := c.Acquire(context.Background(), "../escape")
	assert.ErrorIs(t, err, core.ErrInvalidTenantID)
}

func TestWithWrite_AppendAndPersist(t *testing.T) {
	c, store, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, appendChunks(c, "u1", chunkOf("hello", 1, 0)))

	// Visible through the cache.
	err := c.WithRead(ctx, "u1", func(p *core.Partition) error {
		assert.Equal(t, 1, p.Count())
		return nil
	})
	require.NoError(t, err)

	// And durable in the store.
	loaded, err := store.Load(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.Count())
	assert.Equal(t, "hello", loaded.Records[0].Text)
}

func TestWithWrite_FnErrorKeepsOldPartition(t *testing.T) {
	c, _, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, appendChunks(c, "u1", chunkOf("keep me", 1, 0)))

	wantErr := errors.New("append rejected")
	err := c.WithWrite(ctx, "u1", func(p *core.Partition) (*core.Partition, error) {
		return nil, wantErr
	})
	assert.ErrorIs(t, err, wantErr)

	err = c.WithRead(ctx, "u1", func(p *core.Partition) error {
		assert.Equal(t, 1, p.Count())
		return nil
	})
	require.NoError(t, err)
}

// failingStore wraps a real store and fails Persist on demand.
type failingStore struct {
	storage.PartitionStore
	failPersist bool
}

func (f *failingStore) Persist(ctx context.Context, tenantID string, p *core.Partition) error {
	if f.failPersist {
		return fmt.Errorf("%w: disk full", storage.ErrPersistFailed)
	}
	return f.PartitionStore.Persist(ctx, tenantID, p)
}

func TestWithWrite_PersistErrorRollsBack(t *testing.T) {
	inner, err := flatfile.NewStore(t.TempDir())
	require.NoError(t, err)
	defer inner.Close()

	fs := &failingStore{PartitionStore: inner}
	c, err := New(fs, 2)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, appendChunks(c, "u1", chunkOf("durable", 1, 0)))

	fs.failPersist = true
	err = appendChunks(c, "u1", chunkOf("lost", 0, 1))
	assert.ErrorIs(t, err, storage.ErrPersistFailed)

	// The in-memory partition rolled back to the last persisted state.
	err = c.WithRead(ctx, "u1", func(p *core.Partition) error {
		assert.Equal(t, 1, p.Count())
		assert.Equal(t, "durable", p.Records[0].Text)
		return nil
	})
	require.NoError(t, err)
}

func TestTenantIsolation(t *testing.T) {
	c, _, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, appendChunks(c, "u1", chunkOf("belongs to u1", 1, 0)))
	require.NoError(t, appendChunks(c, "u2", chunkOf("belongs to u2", 0, 1)))

	err := c.WithRead(ctx, "u1", func(p *core.Partition) error {
		require.Equal(t, 1, p.Count())
		assert.Equal(t, "belongs to u1", p.Records[0].Text)
		return nil
	})
	require.NoError(t, err)
}

func TestCorruptedTenantIsPoisoned(t *testing.T) {
	c, _, dir := newTestCache(t)
	ctx := context.Background()

	// Leave an unpaired artifact behind: load must report corruption.
	tenantDir := filepath.Join(dir, "broken")
	require.NoError(t, os.MkdirAll(tenantDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(tenantDir, flatfile.IndexFileName), []byte("junk"), 0o644))

	_, err := c.Acquire(ctx, "broken")
	assert.ErrorIs(t, err, ErrTenantUnserviceable)

	// Subsequent accesses keep refusing without retrying the load.
	_, err = c.Acquire(ctx, "broken")
	assert.ErrorIs(t, err, ErrTenantUnserviceable)

	// Other tenants are unaffected.
	require.NoError(t, appendChunks(c, "healthy", chunkOf("fine", 1, 0)))
}

func TestWithRead_SharedLock(t *testing.T) {
	c, _, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, appendChunks(c, "u1", chunkOf("x", 1, 0)))

	firstIn := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		done <- c.WithRead(ctx, "u1", func(p *core.Partition) error {
			close(firstIn)
			<-release
			return nil
		})
	}()

	<-firstIn
	// A second reader must get in while the first still holds the lock.
	err := c.WithRead(ctx, "u1", func(p *core.Partition) error { return nil })
	require.NoError(t, err)

	close(release)
	require.NoError(t, <-done)
}

func TestWithWrite_LockTimeout(t *testing.T) {
	c, _, _ := newTestCache(t)

	holding := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		done <- c.WithWrite(context.Background(), "u1", func(p *core.Partition) (*core.Partition, error) {
			close(holding)
			<-release
			return p, nil
		})
	}()

	<-holding
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := c.WithWrite(ctx, "u1", func(p *core.Partition) (*core.Partition, error) {
		return p, nil
	})
	assert.ErrorIs(t, err, ErrLockTimeout)

	close(release)
	require.NoError(t, <-done)
}

func TestConcurrentReadWrite_ConsistentSnapshots(t *testing.T) {
	c, _, _ := newTestCache(t)
	ctx := context.Background()

	const appends = 20
	var wg sync.WaitGroup
	stop := make(chan struct{})

	// Readers: every observed snapshot must be internally consistent,
	// regardless of how the interleaving falls out.
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for {
				select {
				case <-stop:
					return
				default:
				}
				err := c.WithRead(ctx, "u1", func(p *core.Partition) error {
					if len(p.Vectors) != p.Count()*p.Dimension {
						t.Errorf("torn snapshot: %d vectors for %d records", len(p.Vectors), p.Count())
					}
					for i, rec := range p.Records {
						if rec.ChunkIndex != i {
							t.Errorf("record %d out of order: chunk index %d", i, rec.ChunkIndex)
						}
					}
					return nil
				})
				if err != nil {
					t.Errorf("read failed: %v", err)
					return
				}
				if rng.Intn(3) == 0 {
					time.Sleep(time.Duration(rng.Intn(100)) * time.Microsecond)
				}
			}
		}(int64(r))
	}

	for i := 0; i < appends; i++ {
		require.NoError(t, appendChunks(c, "u1", core.Chunk{
			Vector: []float32{float32(i), 1},
			Record: core.DocumentRecord{Filename: "f.txt", ChunkIndex: i, Text: fmt.Sprintf("chunk %d", i)},
		}))
	}

	close(stop)
	wg.Wait()

	err := c.WithRead(ctx, "u1", func(p *core.Partition) error {
		assert.Equal(t, appends, p.Count())
		return nil
	})
	require.NoError(t, err)
}

func TestFlush_PersistsCreatedEmptyPartitions(t *testing.T) {
	c, store, _ := newTestCache(t)
	ctx := context.Background()

	_, err := c.Acquire(ctx, "created-only")
	require.NoError(t, err)

	_, err = store.Load(ctx, "created-only")
	assert.ErrorIs(t, err, storage.ErrNotPresent)

	require.NoError(t, c.Flush(ctx))

	loaded, err := store.Load(ctx, "created-only")
	require.NoError(t, err)
	assert.Equal(t, 0, loaded.Count())
}

func TestClose(t *testing.T) {
	c, _, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, appendChunks(c, "u1", chunkOf("x", 1, 0)))
	require.NoError(t, c.Close(ctx))

	_, err := c.Acquire(ctx, "u1")
	assert.ErrorIs(t, err, ErrCacheClosed)
}

func TestWithCapacity_EvictionDuringWriteLosesNothing(t *testing.T) {
	c, store, _ := newTestCache(t, WithCapacity(1))
	ctx := context.Background()

	require.NoError(t, appendChunks(c, "u1", chunkOf("seed", 1, 0)))

	entered := make(chan struct{})
	release := make(chan struct{})
	first := make(chan error, 1)

	go func() {
		first <- c.WithWrite(ctx, "u1", func(p *core.Partition) (*core.Partition, error) {
			close(entered)
			<-release
			return p.Append([]core.Chunk{chunkOf("a", 0, 1)})
		})
	}()

	<-entered
	// Touching another tenant evicts u1's data entry while the writer still
	// holds u1's lock.
	require.NoError(t, c.WithRead(ctx, "u2", func(p *core.Partition) error { return nil }))

	second := make(chan error, 1)
	go func() {
		second <- c.WithWrite(ctx, "u1", func(p *core.Partition) (*core.Partition, error) {
			return p.Append([]core.Chunk{chunkOf("b", 1, 1)})
		})
	}()

	close(release)
	require.NoError(t, <-first)
	require.NoError(t, <-second)

	// Both appends made it to disk, in write order.
	loaded, err := store.Load(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, 3, loaded.Count())
	assert.Equal(t, "seed", loaded.Records[0].Text)
	assert.Equal(t, "a", loaded.Records[1].Text)
	assert.Equal(t, "b", loaded.Records[2].Text)
}

func TestWithCapacity_EvictionReloadsFromStore(t *testing.T) {
	c, _, _ := newTestCache(t, WithCapacity(1))
	ctx := context.Background()

	require.NoError(t, appendChunks(c, "u1", chunkOf("u1 data", 1, 0)))
	require.NoError(t, appendChunks(c, "u2", chunkOf("u2 data", 0, 1)))

	// u1 was evicted by u2; acquiring it again must reload the persisted state.
	err := c.WithRead(ctx, "u1", func(p *core.Partition) error {
		require.Equal(t, 1, p.Count())
		assert.Equal(t, "u1 data", p.Records[0].Text)
		return nil
	})
	require.NoError(t, err)
}
