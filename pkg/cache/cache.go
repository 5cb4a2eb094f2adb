package cache

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	// IdleTTL is how long an entry may stay unused before the sweep
	// disconnects and removes it.
	IdleTTL = 15 * time.Minute

	// SweepInterval is the period of the background eviction sweep.
	SweepInterval = time.Minute
)

// Conn is the slice of a mailbox backend the cache needs to manage
// its entries.
type Conn interface {
	Connected() bool
	Disconnect() error
}

type entry struct {
	conn       Conn
	lastUsedAt time.Time
}

// Cache holds at most one live mailbox backend per account id. All
// map mutations, the lookup liveness check and the sweep included,
// run under one mutex.
type Cache struct {
	now func() time.Time
	log zerolog.Logger

	mu      sync.Mutex
	entries map[int64]*entry

	stop chan struct{}
	done chan struct{}
}

// New creates a cache using the wall clock.
func New(log zerolog.Logger) *Cache {
	return NewWithClock(time.Now, log)
}

// NewWithClock creates a cache with an injected clock.
func NewWithClock(now func() time.Time, log zerolog.Logger) *Cache {
	return &Cache{
		now:     now,
		log:     log,
		entries: make(map[int64]*entry),
	}
}

// GetOrCreate returns the cached backend for accountID, refreshing its
// last-used time, or stores and returns a freshly built one. A cached
// backend that no longer reports itself connected is dropped and
// rebuilt. build must not perform I/O; connecting is the caller's
// business.
func (c *Cache) GetOrCreate(accountID int64, build func() Conn) Conn {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[accountID]; ok {
		if e.conn.Connected() {
			e.lastUsedAt = c.now()
			return e.conn
		}
		delete(c.entries, accountID)
		c.log.Debug().Int64("account", accountID).Msg("dropping stale cached connection")
	}

	e := &entry{conn: build(), lastUsedAt: c.now()}
	c.entries[accountID] = e
	return e.conn
}

// Delete disconnects and removes the entry for accountID, if any.
// Used when account settings are deleted or rotated.
func (c *Cache) Delete(accountID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[accountID]
	if !ok {
		return
	}
	if e.conn.Connected() {
		if err := e.conn.Disconnect(); err != nil {
			c.log.Warn().Err(err).Int64("account", accountID).Msg("disconnect failed")
		}
	}
	delete(c.entries, accountID)
}

// Sweep disconnects and removes every entry idle longer than IdleTTL.
func (c *Cache) Sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for accountID, e := range c.entries {
		if now.Sub(e.lastUsedAt) <= IdleTTL {
			continue
		}
		if err := e.conn.Disconnect(); err != nil {
			c.log.Warn().Err(err).Int64("account", accountID).Msg("disconnect failed")
		}
		delete(c.entries, accountID)
		c.log.Debug().Int64("account", accountID).Msg("evicted idle connection")
	}
}

// Clear disconnects and removes every entry. Used on shutdown.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for accountID, e := range c.entries {
		if err := e.conn.Disconnect(); err != nil {
			c.log.Warn().Err(err).Int64("account", accountID).Msg("disconnect failed")
		}
		delete(c.entries, accountID)
	}
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Start launches the periodic sweep. Calling it on a running cache is
// a no-op.
func (c *Cache) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stop != nil {
		return
	}
	c.stop = make(chan struct{})
	c.done = make(chan struct{})
	go c.run(c.stop, c.done)
}

// Stop halts the sweep and waits for it to finish. The entries stay
// cached; use Clear to drop them.
func (c *Cache) Stop() {
	c.mu.Lock()
	stop, done := c.stop, c.done
	c.stop, c.done = nil, nil
	c.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}

func (c *Cache) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.Sweep()
		case <-stop:
			return
		}
	}
}
