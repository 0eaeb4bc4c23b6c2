package cache

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestLRUCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRUCache[int](2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a")
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted")
	}
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Errorf("Get(a) = %v, %v", v, ok)
	}
	if c.Size() != 2 {
		t.Errorf("Size() = %d, want 2", c.Size())
	}
}

func TestLRUCache_TTL(t *testing.T) {
	c := NewLRUCache[string](10, 10*time.Millisecond)
	c.Set("k", "v")
	time.Sleep(20 * time.Millisecond)

	if _, ok := c.Get("k"); ok {
		t.Error("expired item returned")
	}

	c.Set("x", "y")
	time.Sleep(20 * time.Millisecond)
	if n := c.CleanExpired(); n != 1 {
		t.Errorf("CleanExpired() = %d, want 1", n)
	}
}

func TestLRUCache_GetOrLoad(t *testing.T) {
	c := NewLRUCache[[]string](10, time.Minute)
	var calls int32
	load := func() ([]string, error) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(5 * time.Millisecond)
		return []string{"coffee"}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if v, err := c.GetOrLoad("scope", load); err != nil || len(v) != 1 {
				t.Errorf("GetOrLoad() = %v, %v", v, err)
			}
		}()
	}
	wg.Wait()

	if _, err := c.GetOrLoad("scope", load); err != nil {
		t.Fatal(err)
	}
	if n := atomic.LoadInt32(&calls); n < 1 || n > 8 {
		t.Errorf("load called %d times", n)
	}
	before := atomic.LoadInt32(&calls)
	_, _ = c.GetOrLoad("scope", load)
	if atomic.LoadInt32(&calls) != before {
		t.Errorf("cached value was not used")
	}
}

func TestLRUCache_GetOrLoadErrorNotCached(t *testing.T) {
	c := NewLRUCache[int](10, time.Minute)
	boom := errors.New("boom")

	if _, err := c.GetOrLoad("k", func() (int, error) { return 0, boom }); !errors.Is(err, boom) {
		t.Fatalf("GetOrLoad() error = %v, want boom", err)
	}
	if c.Size() != 0 {
		t.Fatalf("failed load was cached")
	}
}

func TestLRUCache_DeleteInvalidatesInFlightLoad(t *testing.T) {
	c := NewLRUCache[int](10, time.Minute)
	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)
		_, _ = c.GetOrLoad("k", func() (int, error) {
			close(started)
			<-release
			return 1, nil
		})
	}()

	<-started
	c.Delete("k")
	close(release)
	<-done

	if _, ok := c.Get("k"); ok {
		t.Fatal("stale load was stored after Delete")
	}
}

func TestManager_StartStop(t *testing.T) {
	c := NewLRUCache[int](10, time.Millisecond)
	c.Set("k", 1)

	m := NewManager()
	m.Register(c)
	m.StartCleanup(5 * time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	m.Stop()

	if c.Size() != 0 {
		t.Errorf("expired item not cleaned, size = %d", c.Size())
	}
}
