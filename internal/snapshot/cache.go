// Package snapshot materializes the task sheet into immutable tables and
// keeps the latest one for a bounded time.
package snapshot

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/starford/opsdash/internal/apperr"
	"github.com/starford/opsdash/internal/checksum"
	"github.com/starford/opsdash/internal/source"
	"github.com/starford/opsdash/internal/table"
)

// Snapshot is one materialized read of the source.
type Snapshot struct {
	ID        uuid.UUID
	Source    string
	FetchedAt time.Time
	Checksum  string
	Table     *table.Table
	// Fresh is true only for the Get that led the fetch. Callers that joined
	// an in-flight fetch or hit the cache see false.
	Fresh bool
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock sets the time source used for expiry.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// WithFetchTimeout bounds a single source fetch.
func WithFetchTimeout(d time.Duration) Option {
	return func(c *Cache) {
		c.fetchTimeout = d
	}
}

// Cache serves the latest snapshot for ttl and refetches afterwards.
// Concurrent misses share one fetch.
type Cache struct {
	provider     source.Provider
	ttl          time.Duration
	fetchTimeout time.Duration
	now          func() time.Time
	logger       *slog.Logger

	group   singleflight.Group
	mu      sync.RWMutex
	current *Snapshot
	// gen advances on Invalidate. A fetch started under an older generation
	// is neither shared with newer callers nor installed as current.
	gen uint64
}

// New creates a Cache over provider. A ttl <= 0 disables reuse.
func New(provider source.Provider, ttl time.Duration, logger *slog.Logger, opts ...Option) *Cache {
	c := &Cache{
		provider:     provider,
		ttl:          ttl,
		fetchTimeout: 30 * time.Second,
		now:          time.Now,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached snapshot while it is younger than ttl, otherwise
// fetches a new one. Fetch failures wrap apperr.ErrSourceUnavailable.
func (c *Cache) Get(ctx context.Context) (*Snapshot, error) {
	if s := c.cached(); s != nil {
		return s, nil
	}

	c.mu.RLock()
	gen := c.gen
	c.mu.RUnlock()

	led := false
	v, err, _ := c.group.Do("fetch:"+strconv.FormatUint(gen, 10), func() (any, error) {
		led = true
		// A waiter's cancellation must not fail the shared fetch.
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fetchTimeout)
		defer cancel()
		return c.fetch(fctx, gen)
	})
	if err != nil {
		return nil, err
	}
	s := *v.(*Snapshot)
	s.Fresh = led
	return &s, nil
}

// Invalidate drops the cached snapshot so the next Get refetches.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.current = nil
	c.gen++
	c.mu.Unlock()
}

// Peek returns the cached snapshot regardless of age, or nil.
func (c *Cache) Peek() *Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.current == nil {
		return nil
	}
	s := *c.current
	return &s
}

func (c *Cache) cached() *Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.current == nil || c.ttl <= 0 || c.now().Sub(c.current.FetchedAt) >= c.ttl {
		return nil
	}
	s := *c.current
	return &s
}

func (c *Cache) fetch(ctx context.Context, gen uint64) (*Snapshot, error) {
	start := c.now()
	records, err := c.provider.Fetch(ctx)
	if err != nil {
		c.logger.Error("snapshot: fetch failed",
			slog.String("source", c.provider.Name()),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("snapshot: fetch %s: %w: %w", c.provider.Name(), apperr.ErrSourceUnavailable, err)
	}

	s := &Snapshot{
		ID:        uuid.New(),
		Source:    c.provider.Name(),
		FetchedAt: c.now(),
		Checksum:  checksum.Records(records),
		Table:     table.FromRecords(records),
	}

	c.mu.Lock()
	if c.gen == gen {
		c.current = s
	}
	c.mu.Unlock()

	c.logger.Debug("snapshot: fetched",
		slog.String("source", s.Source),
		slog.String("id", s.ID.String()),
		slog.Int("rows", s.Table.Len()),
		slog.Duration("took", c.now().Sub(start)))
	return s, nil
}
