package cache

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type fakeConn struct {
	connected   bool
	disconnects int
}

func (f *fakeConn) Connected() bool { return f.connected }

func (f *fakeConn) Disconnect() error {
	f.connected = false
	f.disconnects++
	return nil
}

func TestGetOrCreateReturnsSameBackend(t *testing.T) {
	c := NewWithClock(time.Now, zerolog.Nop())

	conn := &fakeConn{}
	first := c.GetOrCreate(1, func() Conn { return conn })
	if first != conn {
		t.Fatal("expected the built connection to be returned")
	}

	// The caller connects after construction.
	conn.connected = true

	second := c.GetOrCreate(1, func() Conn {
		t.Fatal("build called for a cached live entry")
		return nil
	})
	if second != first {
		t.Error("expected the identical backend instance on second lookup")
	}
}

func TestGetOrCreateDropsDeadEntry(t *testing.T) {
	c := NewWithClock(time.Now, zerolog.Nop())

	dead := &fakeConn{}
	c.GetOrCreate(1, func() Conn { return dead })
	// dead never connects, so the next lookup must treat the entry as
	// a miss and rebuild.

	fresh := &fakeConn{}
	got := c.GetOrCreate(1, func() Conn { return fresh })
	if got != fresh {
		t.Error("expected a dead entry to be rebuilt")
	}
	if c.Len() != 1 {
		t.Errorf("expected 1 entry, got %d", c.Len())
	}
}

func TestSweepEvictsIdleEntries(t *testing.T) {
	now := time.Now()
	c := NewWithClock(func() time.Time { return now }, zerolog.Nop())

	idle := &fakeConn{connected: true}
	c.GetOrCreate(1, func() Conn { return idle })

	// Not idle for long enough yet.
	now = now.Add(14 * time.Minute)
	c.Sweep()
	if c.Len() != 1 {
		t.Fatal("expected entry to survive a sweep before the idle threshold")
	}
	if idle.disconnects != 0 {
		t.Error("expected no disconnect before the idle threshold")
	}

	now = now.Add(2 * time.Minute)
	c.Sweep()
	if c.Len() != 0 {
		t.Error("expected idle entry to be evicted")
	}
	if idle.disconnects != 1 {
		t.Errorf("expected 1 disconnect, got %d", idle.disconnects)
	}
}

func TestLookupRefreshesLastUsed(t *testing.T) {
	now := time.Now()
	c := NewWithClock(func() time.Time { return now }, zerolog.Nop())

	conn := &fakeConn{connected: true}
	c.GetOrCreate(1, func() Conn { return conn })

	// Touch the entry shortly before it would expire.
	now = now.Add(14 * time.Minute)
	c.GetOrCreate(1, func() Conn {
		t.Fatal("build called for a cached live entry")
		return nil
	})

	now = now.Add(14 * time.Minute)
	c.Sweep()
	if c.Len() != 1 {
		t.Error("expected refreshed entry to survive the sweep")
	}
}

func TestDeleteDisconnects(t *testing.T) {
	c := NewWithClock(time.Now, zerolog.Nop())

	conn := &fakeConn{connected: true}
	c.GetOrCreate(7, func() Conn { return conn })

	c.Delete(7)
	if conn.disconnects != 1 {
		t.Errorf("expected 1 disconnect, got %d", conn.disconnects)
	}
	if c.Len() != 0 {
		t.Error("expected entry to be removed")
	}

	// Deleting a missing entry is a no-op.
	c.Delete(7)
}

func TestClearDisconnectsAll(t *testing.T) {
	c := NewWithClock(time.Now, zerolog.Nop())

	a := &fakeConn{connected: true}
	b := &fakeConn{connected: true}
	c.GetOrCreate(1, func() Conn { return a })
	c.GetOrCreate(2, func() Conn { return b })

	c.Clear()
	if c.Len() != 0 {
		t.Error("expected all entries to be removed")
	}
	if a.disconnects != 1 || b.disconnects != 1 {
		t.Error("expected every connection to be disconnected")
	}
}

func TestStartStop(t *testing.T) {
	c := New(zerolog.Nop())
	c.Start()
	c.Start() // no-op on a running cache
	c.Stop()
	c.Stop() // no-op on a stopped cache
}
