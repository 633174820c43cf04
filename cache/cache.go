package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/poiesic/ragstore/core"
	"github.com/poiesic/ragstore/storage"
)

// lockWeight is the full weight of a tenant's semaphore. Readers take 1,
// writers take all of it, so up to lockWeight searches for one tenant can
// run in parallel.
const lockWeight = 64

// Handle is the in-memory cache entry for one tenant: the loaded partition
// data. Access is guarded by the tenant's lock, which lives in the cache's
// lock arena rather than on the handle so a bounded cache can evict the
// data without evicting the exclusivity primitive.
type Handle struct {
	partition *core.Partition
	dirty     bool // true for created-empty partitions not yet persisted
}

// Cache is the tenant → partition handle registry.
type Cache struct {
	store       storage.PartitionStore
	dimension   int
	lockTimeout time.Duration
	logger      *slog.Logger

	mu       sync.Mutex
	locks    map[string]*semaphore.Weighted // per-tenant, never evicted
	handles  map[string]*Handle             // capacity == 0 (unbounded)
	bounded  *lru.Cache[string, *Handle]    // capacity > 0
	poisoned map[string]error
	closed   bool

	loads singleflight.Group
}

// Option configures a Cache.
type Option func(*options)

type options struct {
	capacity    int
	lockTimeout time.Duration
	logger      *slog.Logger
}

// WithCapacity bounds the number of resident partitions with an LRU policy.
// Zero (the default) means unbounded: cache lifetime equals process lifetime.
func WithCapacity(capacity int) Option {
	return func(o *options) {
		if capacity < 0 {
			capacity = 0
		}
		o.capacity = capacity
	}
}

// WithLockTimeout caps how long WithRead/WithWrite wait on the per-tenant
// lock when the caller's context carries no deadline of its own.
// Zero (the default) means wait until the context is done.
func WithLockTimeout(timeout time.Duration) Option {
	return func(o *options) {
		o.lockTimeout = timeout
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = slog.Default()
		}
		o.logger = logger
	}
}

// New creates a partition cache over the given store. Partitions created for
// tenants the store has never seen use the configured dimension.
func New(store storage.PartitionStore, dimension int, opts ...Option) (*Cache, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if err := core.ValidateDimension(dimension); err != nil {
		return nil, err
	}

	o := &options{logger: slog.Default().With("component", "partition-cache")}
	for _, opt := range opts {
		opt(o)
	}

	c := &Cache{
		store:       store,
		dimension:   dimension,
		lockTimeout: o.lockTimeout,
		logger:      o.logger,
		locks:       make(map[string]*semaphore.Weighted),
		poisoned:    make(map[string]error),
	}

	if o.capacity > 0 {
		bounded, err := lru.New[string, *Handle](o.capacity)
		if err != nil {
			return nil, err
		}
		c.bounded = bounded
	} else {
		c.handles = make(map[string]*Handle)
	}

	return c, nil
}

// Acquire returns the tenant's handle, loading or creating its partition on
// first access. Concurrent first accesses for the same tenant share one load;
// first accesses for different tenants never block each other.
func (c *Cache) Acquire(ctx context.Context, tenantID string) (*Handle, error) {
	if err := core.ValidateTenantID(tenantID); err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrCacheClosed
	}
	if cause, ok := c.poisoned[tenantID]; ok {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %w", ErrTenantUnserviceable, cause)
	}
	if h, ok := c.get(tenantID); ok {
		c.mu.Unlock()
		return h, nil
	}
	c.mu.Unlock()

	// Load outside the map lock so a slow disk read for one tenant does not
	// stall the registry. singleflight collapses concurrent first accesses.
	v, err, _ := c.loads.Do(tenantID, func() (any, error) {
		return c.loadOrCreate(ctx, tenantID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Handle), nil
}

func (c *Cache) loadOrCreate(ctx context.Context, tenantID string) (*Handle, error) {
	partition, err := c.store.Load(ctx, tenantID)
	dirty := false
	switch {
	case err == nil:
	case errors.Is(err, storage.ErrNotPresent):
		partition = core.NewPartition(c.dimension)
		dirty = true
	case errors.Is(err, storage.ErrCorrupted):
		c.mu.Lock()
		c.poisoned[tenantID] = err
		c.mu.Unlock()
		c.logger.Error("refusing to serve tenant with corrupted partition", "tenant", tenantID, "err", err)
		return nil, fmt.Errorf("%w: %w", ErrTenantUnserviceable, err)
	default:
		return nil, err
	}

	h := &Handle{partition: partition, dirty: dirty}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrCacheClosed
	}
	// Another singleflight round may have inserted between our map miss and
	// this insert; keep the existing handle if so.
	if existing, ok := c.get(tenantID); ok {
		return existing, nil
	}
	c.put(tenantID, h)
	c.logger.Debug("partition handle created", "tenant", tenantID, "documents", partition.Count(), "loaded", !dirty)
	return h, nil
}

// get and put assume c.mu is held.
func (c *Cache) get(tenantID string) (*Handle, bool) {
	if c.bounded != nil {
		return c.bounded.Get(tenantID)
	}
	h, ok := c.handles[tenantID]
	return h, ok
}

func (c *Cache) put(tenantID string, h *Handle) {
	if c.bounded != nil {
		c.bounded.Add(tenantID, h)
		return
	}
	c.handles[tenantID] = h
}

func (c *Cache) tenants() []string {
	if c.bounded != nil {
		return c.bounded.Keys()
	}
	keys := make([]string, 0, len(c.handles))
	for k := range c.handles {
		keys = append(keys, k)
	}
	return keys
}

// lock returns the tenant's exclusivity semaphore, creating it on first use.
// Locks are never evicted: a bounded cache may drop a tenant's data while a
// writer is in flight, but the replacement handle still serializes through
// the same semaphore, so writes for one tenant can never interleave.
func (c *Cache) lock(tenantID string) (*semaphore.Weighted, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrCacheClosed
	}
	sem, ok := c.locks[tenantID]
	if !ok {
		sem = semaphore.NewWeighted(lockWeight)
		c.locks[tenantID] = sem
	}
	return sem, nil
}

func (c *Cache) lockContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.lockTimeout <= 0 {
		return ctx, func() {}
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.lockTimeout)
}

// WithRead executes fn against the tenant's current partition under a shared
// lock. Concurrent reads for the same tenant proceed in parallel; a writer
// excludes them. fn must not retain the partition beyond the call.
func (c *Cache) WithRead(ctx context.Context, tenantID string, fn func(partition *core.Partition) error) error {
	if err := core.ValidateTenantID(tenantID); err != nil {
		return err
	}
	sem, err := c.lock(tenantID)
	if err != nil {
		return err
	}

	lockCtx, cancel := c.lockContext(ctx)
	defer cancel()
	if err := sem.Acquire(lockCtx, 1); err != nil {
		return fmt.Errorf("%w: tenant %s: %w", ErrLockTimeout, tenantID, err)
	}
	defer sem.Release(1)

	h, err := c.Acquire(ctx, tenantID)
	if err != nil {
		return err
	}
	return fn(h.partition)
}

// WithWrite executes fn under the tenant's exclusive lock. fn receives the
// current partition and returns its replacement (typically via Append); the
// cache persists the replacement before installing it, so the lock spans
// append+persist as one critical section. On any failure the handle keeps the
// last durably persisted partition.
//
// The handle is fetched after the lock is granted, so a writer always sees
// the state left behind by the previous writer even if the data entry was
// evicted and reloaded in between.
func (c *Cache) WithWrite(ctx context.Context, tenantID string, fn func(partition *core.Partition) (*core.Partition, error)) error {
	if err := core.ValidateTenantID(tenantID); err != nil {
		return err
	}
	sem, err := c.lock(tenantID)
	if err != nil {
		return err
	}

	lockCtx, cancel := c.lockContext(ctx)
	defer cancel()
	if err := sem.Acquire(lockCtx, lockWeight); err != nil {
		return fmt.Errorf("%w: tenant %s: %w", ErrLockTimeout, tenantID, err)
	}
	defer sem.Release(lockWeight)

	h, err := c.Acquire(ctx, tenantID)
	if err != nil {
		return err
	}

	next, err := fn(h.partition)
	if err != nil {
		return err
	}

	if err := c.store.Persist(ctx, tenantID, next); err != nil {
		return err
	}
	h.partition = next
	h.dirty = false
	return nil
}

// Flush persists every handle that has in-memory state the store has never
// seen. Completed writes are persisted synchronously, so this only concerns
// partitions created empty and never written to.
func (c *Cache) Flush(ctx context.Context) error {
	c.mu.Lock()
	tenants := c.tenants()
	c.mu.Unlock()

	var errs []error
	for _, tenantID := range tenants {
		sem, err := c.lock(tenantID)
		if err != nil {
			return err
		}
		if err := sem.Acquire(ctx, lockWeight); err != nil {
			errs = append(errs, fmt.Errorf("%w: tenant %s: %w", ErrLockTimeout, tenantID, err))
			continue
		}

		c.mu.Lock()
		h, ok := c.get(tenantID)
		c.mu.Unlock()

		if ok && h.dirty {
			if err := c.store.Persist(ctx, tenantID, h.partition); err != nil {
				errs = append(errs, err)
			} else {
				h.dirty = false
			}
		}
		sem.Release(lockWeight)
	}
	return errors.Join(errs...)
}

// Close flushes and shuts the cache down. Subsequent operations fail with
// ErrCacheClosed.
func (c *Cache) Close(ctx context.Context) error {
	err := c.Flush(ctx)

	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	return err
}
