package snapshot

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/starford/opsdash/internal/apperr"
	"github.com/starford/opsdash/internal/testutil"
)

var sheet = [][]string{
	{"Status", "Project"},
	{"Open", "Ops"},
	{"Done", "Ops"},
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func TestGet_ReusesWithinTTL(t *testing.T) {
	p := testutil.NewProvider(sheet)
	clock := &fakeClock{t: time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)}
	c := New(p, 5*time.Minute, testutil.Logger(), WithClock(clock.now))

	first, err := c.Get(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !first.Fresh {
		t.Error("first Get should fetch")
	}
	if first.Table.Len() != 2 {
		t.Errorf("rows = %d, want 2", first.Table.Len())
	}

	clock.advance(4 * time.Minute)
	second, err := c.Get(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if second.Fresh {
		t.Error("second Get should be served from cache")
	}
	if second.ID != first.ID {
		t.Error("cached snapshot should keep its id")
	}
	if p.Calls() != 1 {
		t.Errorf("calls = %d, want 1", p.Calls())
	}
}

func TestGet_RefetchesAfterTTL(t *testing.T) {
	p := testutil.NewProvider(sheet)
	clock := &fakeClock{t: time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)}
	c := New(p, 5*time.Minute, testutil.Logger(), WithClock(clock.now))

	first, err := c.Get(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	clock.advance(5 * time.Minute)
	second, err := c.Get(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !second.Fresh || second.ID == first.ID {
		t.Error("expired snapshot should be refetched")
	}
	if second.Checksum != first.Checksum {
		t.Error("same data should yield the same checksum")
	}
	if p.Calls() != 2 {
		t.Errorf("calls = %d, want 2", p.Calls())
	}
}

func TestGet_ZeroTTLAlwaysFetches(t *testing.T) {
	p := testutil.NewProvider(sheet)
	c := New(p, 0, testutil.Logger())
	for range 3 {
		if _, err := c.Get(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	if p.Calls() != 3 {
		t.Errorf("calls = %d, want 3", p.Calls())
	}
}

func TestInvalidate(t *testing.T) {
	p := testutil.NewProvider(sheet)
	c := New(p, time.Hour, testutil.Logger())

	first, err := c.Get(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	p.Set([][]string{{"Status"}, {"Archived"}})
	c.Invalidate()
	if c.Peek() != nil {
		t.Error("Peek after Invalidate should be nil")
	}

	second, err := c.Get(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if second.Checksum == first.Checksum {
		t.Error("changed data should change the checksum")
	}
	if second.Table.Len() != 1 {
		t.Errorf("rows = %d, want 1", second.Table.Len())
	}
}

func TestGet_FetchErrorIsSourceUnavailable(t *testing.T) {
	p := testutil.NewProvider(sheet)
	p.Fail(errors.New("quota exceeded"))
	c := New(p, time.Minute, testutil.Logger())

	_, err := c.Get(context.Background())
	if !errors.Is(err, apperr.ErrSourceUnavailable) {
		t.Fatalf("err = %v, want ErrSourceUnavailable", err)
	}
	if c.Peek() != nil {
		t.Error("failed fetch must not populate the cache")
	}
}

func TestGet_ConcurrentMissesShareFetch(t *testing.T) {
	p := testutil.NewProvider(sheet)
	p.Gate = make(chan struct{})
	c := New(p, time.Minute, testutil.Logger())

	const n = 8
	var wg sync.WaitGroup
	errs := make(chan error, n)
	var fresh atomic.Int32
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := c.Get(context.Background())
			if err == nil && s.Fresh {
				fresh.Add(1)
			}
			errs <- err
		}()
	}

	// Give the goroutines time to pile up behind the gated fetch.
	time.Sleep(50 * time.Millisecond)
	close(p.Gate)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatal(err)
		}
	}
	// Late goroutines may miss the shared flight and hit the warm cache;
	// either way the provider is reached once.
	if p.Calls() != 1 {
		t.Errorf("calls = %d, want 1", p.Calls())
	}
	if got := fresh.Load(); got != 1 {
		t.Errorf("fresh snapshots = %d, want 1 for the leading caller", got)
	}
}

func TestInvalidate_DuringFetchStartsNewFetch(t *testing.T) {
	p := testutil.NewProvider(sheet)
	p.Gate = make(chan struct{})
	c := New(p, time.Minute, testutil.Logger())

	stale := make(chan *Snapshot, 1)
	go func() {
		s, _ := c.Get(context.Background())
		stale <- s
	}()
	time.Sleep(50 * time.Millisecond)

	c.Invalidate()
	latest := make(chan *Snapshot, 1)
	go func() {
		s, _ := c.Get(context.Background())
		latest <- s
	}()
	time.Sleep(50 * time.Millisecond)
	close(p.Gate)

	old, cur := <-stale, <-latest
	if old == nil || cur == nil {
		t.Fatal("both gets should succeed")
	}
	if p.Calls() != 2 {
		t.Errorf("calls = %d, want 2: a get after Invalidate must not join the older fetch", p.Calls())
	}
	if old.ID == cur.ID || !cur.Fresh {
		t.Errorf("stale = %s, latest = %s (fresh %v)", old.ID, cur.ID, cur.Fresh)
	}
	if peek := c.Peek(); peek == nil || peek.ID != cur.ID {
		t.Errorf("cached snapshot should come from the fetch started after Invalidate")
	}
}

func TestGet_EmptySheet(t *testing.T) {
	p := testutil.NewProvider(nil)
	c := New(p, time.Minute, testutil.Logger())
	s, err := c.Get(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if s.Table.Len() != 0 || len(s.Table.Columns()) != 0 {
		t.Errorf("empty sheet should yield an empty table, got %v", s.Table.Columns())
	}
}
