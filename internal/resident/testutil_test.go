package resident

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeArtifact counts Close calls and can be configured to fail.
type fakeArtifact struct {
	id       int
	closed   atomic.Int32
	closeErr error
	panicky  bool
}

func (f *fakeArtifact) Close() error {
	f.closed.Add(1)
	if f.panicky {
		panic("boom")
	}
	return f.closeErr
}

// countingFactory builds fakeArtifacts and records every construction.
type countingFactory struct {
	mu      sync.Mutex
	calls   int
	made    []*fakeArtifact
	delay   time.Duration
	failN   int // fail the first failN calls
	closeEr error
}

var errLoad = errors.New("cuda out of memory")

func (c *countingFactory) build() (*fakeArtifact, error) {
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.calls <= c.failN {
		return nil, errLoad
	}
	a := &fakeArtifact{id: c.calls, closeErr: c.closeEr}
	c.made = append(c.made, a)
	return a, nil
}

func (c *countingFactory) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// closedTotal sums Close calls across every artifact built so far.
func (c *countingFactory) closedTotal() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, a := range c.made {
		n += int(a.closed.Load())
	}
	return n
}

func (c *countingFactory) built() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.made)
}

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{now: time.Unix(1_700_000_000, 0)} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestManager(t *testing.T, cfg Config) *Manager[*fakeArtifact] {
	t.Helper()
	if cfg.Name == "" {
		cfg.Name = t.Name()
	}
	m := New[*fakeArtifact](cfg)
	t.Cleanup(func() { _ = m.Close() })
	return m
}
